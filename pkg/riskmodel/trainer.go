package riskmodel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/xid"
	"golang.org/x/sync/errgroup"
)

const (
	// MinRowsForParallel is the dataset size below which training runs on
	// the calling goroutine.
	MinRowsForParallel = 1000
	// QueueCapacity bounds the number of parts waiting for a worker.
	QueueCapacity = 100
	// DefaultMaxThreads caps the worker count a job may ask for.
	DefaultMaxThreads = 256
)

var (
	ErrBusy           = errors.New("a training job is already running")
	ErrTooManyThreads = errors.New("thread count above the limit")
)

type Result struct {
	JobID      string
	Rows       int
	Threads    int
	Parallel   bool
	Elapsed    time.Duration
	Generation uint64
}

// Trainer owns the current model and the progress counter read by
// GET /progress. Only one training runs at a time.
type Trainer struct {
	threads    int
	maxThreads int

	busy       atomic.Bool
	progress   atomic.Int64
	generation atomic.Uint64

	mu    sync.RWMutex
	model *Model
}

type Option func(*Trainer)

// WithMaxThreads sets the largest worker count a job may ask for. Values
// below the default count are raised to it.
func WithMaxThreads(n int) Option {
	return func(t *Trainer) {
		t.maxThreads = n
	}
}

// NewTrainer uses threads workers when a job does not ask for a count.
// threads <= 0 means runtime.NumCPU().
func NewTrainer(threads int, opts ...Option) *Trainer {
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	t := &Trainer{threads: threads, maxThreads: DefaultMaxThreads}
	for _, opt := range opts {
		opt(t)
	}
	t.maxThreads = max(t.maxThreads, t.threads)
	return t
}

// MaxThreads is the largest worker count Train accepts.
func (t *Trainer) MaxThreads() int {
	return t.maxThreads
}

// Progress is the number of workers that finished in the current or last job.
func (t *Trainer) Progress() int64 {
	return t.progress.Load()
}

func (t *Trainer) Busy() bool {
	return t.busy.Load()
}

// Generation increases every time a new model is installed.
func (t *Trainer) Generation() uint64 {
	return t.generation.Load()
}

func (t *Trainer) Model() *Model {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.model
}

func (t *Trainer) Predict(zone, time, day int) string {
	return t.Model().Predict(Key{Zone: zone, Time: time, Day: day})
}

// Train parses r and replaces the model. threads <= 0 uses the trainer's
// default; threads above MaxThreads fail with ErrTooManyThreads and leave
// the progress counter untouched.
func (t *Trainer) Train(ctx context.Context, r io.Reader, threads int) (Result, error) {
	if threads > t.maxThreads {
		return Result{}, fmt.Errorf("%w: %d > %d", ErrTooManyThreads, threads, t.maxThreads)
	}
	if !t.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer t.busy.Store(false)
	t.progress.Store(0)

	if threads <= 0 {
		threads = t.threads
	}
	res := Result{JobID: xid.New().String(), Threads: threads}
	logger := log.FromContext(ctx).WithPrefix("riskmodel").With("job", res.JobID)
	start := time.Now()

	ds, err := ParseCSV(r)
	if err != nil {
		return res, err
	}
	res.Rows = len(ds.Rows)

	var tl *tally
	if len(ds.Rows) < MinRowsForParallel {
		tl = newTally()
		tl.add(ds.Rows)
		t.progress.Store(int64(threads))
	} else {
		res.Parallel = true
		tl, err = t.trainParallel(ctx, ds.Rows, threads)
		if err != nil {
			return res, err
		}
	}

	m := tl.model()
	t.mu.Lock()
	t.model = m
	t.mu.Unlock()
	res.Generation = t.generation.Add(1)
	res.Elapsed = time.Since(start)
	logger.Info("Model trained",
		"rows", res.Rows,
		"keys", m.Keys(),
		"threads", threads,
		"parallel", res.Parallel,
		"elapsed", res.Elapsed)
	return res, nil
}

// trainParallel splits rows into parts on a bounded channel consumed by
// threads workers. Each worker bumps the progress counter when it exits.
func (t *Trainer) trainParallel(ctx context.Context, rows []Row, threads int) (*tally, error) {
	partSize := max(len(rows)/(threads*2), 1)
	parts := make(chan []Row, QueueCapacity)
	partials := make([]*tally, threads)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(parts)
		for start := 0; start < len(rows); start += partSize {
			end := min(start+partSize, len(rows))
			select {
			case parts <- rows[start:end]:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for i := range threads {
		g.Go(func() error {
			defer t.progress.Add(1)
			local := newTally()
			partials[i] = local
			for part := range parts {
				if err := gctx.Err(); err != nil {
					return err
				}
				local.add(part)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := newTally()
	for _, p := range partials {
		merged.merge(p)
	}
	return merged, nil
}
