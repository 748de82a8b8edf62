package core

import (
	"sync"

	"github.com/urbaine/upwatch/pkg/progress"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Snapshot is the rendered UI state: the progress bar, its label and the
// result area.
type Snapshot struct {
	State   State
	Visible bool
	// Fill is the bar width as a percentage string, e.g. "42.5%".
	Fill string
	// Status is the label next to the bar, e.g. "Processing: 43%".
	Status string
	// Result holds the server's markup on success or "Error: ..." on failure.
	Result string
	Failed bool
	// Sent and Total count the bytes of the file part pushed to the server.
	Sent  int64
	Total int64
}

// Renderer is notified after every screen change, in order. Render must not
// call back into the Screen.
type Renderer interface {
	Render(Snapshot)
}

type RendererFunc func(Snapshot)

func (f RendererFunc) Render(s Snapshot) { f(s) }

type Screen struct {
	mu       sync.Mutex
	snap     Snapshot
	renderer Renderer
}

// NewScreen returns an idle, hidden screen. r may be nil.
func NewScreen(r Renderer) *Screen {
	return &Screen{
		snap:     Snapshot{Fill: progress.FillInitial},
		renderer: r,
	}
}

func (s *Screen) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *Screen) update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
	if s.renderer != nil {
		s.renderer.Render(s.snap)
	}
}

func resetSnapshot(s *Snapshot) {
	s.State = StateRunning
	s.Visible = true
	s.Status = progress.StatusInitial
	s.Fill = progress.FillInitial
	s.Result = ""
	s.Failed = false
	s.Sent = 0
	s.Total = 0
}
