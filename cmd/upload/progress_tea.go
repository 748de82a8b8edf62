//go:build !no_bubbletea

package upload

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/urbaine/upwatch/common/i18n"
	"github.com/urbaine/upwatch/common/i18n/i18nk"
	"github.com/urbaine/upwatch/common/utils/markup"
	"github.com/urbaine/upwatch/core"
	pct "github.com/urbaine/upwatch/pkg/progress"
)

var (
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
	statusStyle = lipgloss.NewStyle().Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
)

// snapshotMsg carries a screen change into the program
type snapshotMsg core.Snapshot

type uploadModel struct {
	progress progress.Model
	fileName string
	snap     core.Snapshot
	done     bool
}

func newUploadModel(fileName string) uploadModel {
	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(50),
	)
	return uploadModel{
		progress: p,
		fileName: fileName,
		snap:     core.Snapshot{Status: pct.StatusInitial, Fill: pct.FillInitial},
	}
}

func (m uploadModel) Init() tea.Cmd {
	return nil
}

func (m uploadModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.progress.Width = max(min(msg.Width-10, 80), 10)
		return m, nil

	case snapshotMsg:
		m.snap = core.Snapshot(msg)
		if m.snap.State == core.StateDone {
			m.done = true
			return m, tea.Quit
		}
		return m, m.progress.SetPercent(pct.Fraction(pct.ParseFill(m.snap.Fill)))

	case progress.FrameMsg:
		if m.done {
			return m, nil
		}
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m uploadModel) View() string {
	var sb strings.Builder
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("  📁 %s\n", m.fileName))
	if m.snap.Total > 0 {
		sb.WriteString("  📊 ")
		sb.WriteString(i18n.T(i18nk.UploadSent, map[string]any{
			"Sent":  humanize.Bytes(uint64(m.snap.Sent)),
			"Total": humanize.Bytes(uint64(m.snap.Total)),
		}))
		sb.WriteString("\n")
	}
	sb.WriteString("\n  ")
	if m.done {
		sb.WriteString(m.progress.ViewAs(pct.Fraction(pct.ParseFill(m.snap.Fill))))
	} else {
		sb.WriteString(m.progress.View())
	}
	sb.WriteString("\n  ")
	sb.WriteString(statusStyle.Render(m.snap.Status))
	sb.WriteString("\n\n")

	if !m.done {
		sb.WriteString(helpStyle.Render("  " + i18n.T(i18nk.UploadCancelHint)))
		sb.WriteString("\n\n")
		return sb.String()
	}
	text := markup.Text(m.snap.Result)
	if m.snap.Failed {
		text = errorStyle.Render(text)
	}
	for _, line := range strings.Split(text, "\n") {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

// teaView runs a bubbletea program fed by screen renders
type teaView struct {
	program *tea.Program
	cancel  context.CancelFunc
}

func newTeaView(ctx context.Context, fileName string) view {
	ctx, cancel := context.WithCancel(ctx)
	p := tea.NewProgram(
		newUploadModel(fileName),
		tea.WithoutSignalHandler(),
		tea.WithContext(ctx),
		tea.WithInput(nil), // rely on context cancellation for Ctrl+C
	)
	return &teaView{program: p, cancel: cancel}
}

func (v *teaView) Start() {
	go func() {
		v.program.Run()
	}()
}

func (v *teaView) Render(s core.Snapshot) {
	v.program.Send(snapshotMsg(s))
}

func (v *teaView) Wait() {
	v.program.Wait()
	v.cancel()
}
