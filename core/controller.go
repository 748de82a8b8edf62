package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/rs/xid"
	"github.com/urbaine/upwatch/config"
	"github.com/urbaine/upwatch/pkg/progress"
	"github.com/urbaine/upwatch/pkg/uploadclient"
)

var (
	ErrPollTimeout = errors.New("upload did not complete before the poll timeout")
	ErrSuperseded  = errors.New("superseded by a newer submission")
)

// Uploader is the server side of a submission.
type Uploader interface {
	Upload(ctx context.Context, req uploadclient.UploadRequest) (string, error)
	Progress(ctx context.Context) (float64, error)
}

type Options struct {
	// Interval between progress polls. Defaults to one second.
	Interval time.Duration
	// Timeout stops polling and abandons the upload. 0 polls until the
	// upload settles.
	Timeout time.Duration
	// Overlap is config.OverlapSkip (default) or config.OverlapAllow.
	Overlap string
}

// Outcome summarises one submission.
type Outcome struct {
	ID      string
	Body    string
	Err     error
	Elapsed time.Duration
	// Ticks is the number of progress polls issued, Skipped the number of
	// ticks dropped because the previous poll was still in flight.
	Ticks   int64
	Skipped int64
}

// Controller drives one upload at a time: it resets the screen, sends the
// form, polls progress while the upload is in flight and writes exactly one
// terminal update once it settles.
type Controller struct {
	uploader Uploader
	screen   *Screen
	opts     Options

	mu      sync.Mutex
	current *submission
}

type submission struct {
	id     string
	ctx    context.Context
	cancel context.CancelCauseFunc

	stopOnce sync.Once
	stopPoll context.CancelFunc
	pollDone chan struct{}
	ticks    sync.WaitGroup

	inFlight  atomic.Bool
	tickCount atomic.Int64
	skipped   atomic.Int64
	lastSent  atomic.Int64
}

type uploadResult struct {
	body string
	err  error
}

func NewController(u Uploader, screen *Screen, opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Overlap == "" {
		opts.Overlap = config.OverlapSkip
	}
	if screen == nil {
		screen = NewScreen(nil)
	}
	return &Controller{
		uploader: u,
		screen:   screen,
		opts:     opts,
	}
}

func (c *Controller) Screen() *Screen {
	return c.screen
}

// Busy reports whether a submission is in flight.
func (c *Controller) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Submit runs one submission cycle and blocks until it settles. A Submit
// issued while another is running supersedes it: the older one is cancelled
// and can no longer touch the screen.
func (c *Controller) Submit(ctx context.Context, form *Form) (Outcome, error) {
	sub := c.begin(ctx)
	defer sub.cancel(nil)
	logger := log.FromContext(ctx).WithPrefix("upload").With("run", sub.id)
	logger.Debug("Submission started", "file", form.FilePath, "threads", form.NumThreads())
	start := time.Now()

	results := make(chan uploadResult, 1)
	go func() {
		body, err := c.uploader.Upload(sub.ctx, form.request(c.onSent(sub)))
		results <- uploadResult{body: body, err: err}
	}()
	c.startPolling(sub, form, logger)

	var timeout <-chan time.Time
	if c.opts.Timeout > 0 {
		t := time.NewTimer(c.opts.Timeout)
		defer t.Stop()
		timeout = t.C
	}

	var res uploadResult
	select {
	case res = <-results:
	case <-timeout:
		res.err = fmt.Errorf("%w (%s)", ErrPollTimeout, c.opts.Timeout)
	case <-sub.ctx.Done():
		res.err = context.Cause(sub.ctx)
	}
	if res.err != nil && sub.ctx.Err() != nil {
		// report why the upload was cut short rather than its ctx error
		res.err = context.Cause(sub.ctx)
	}
	c.stopPolling(sub)
	sub.cancel(res.err)

	out := Outcome{
		ID:      sub.id,
		Body:    res.body,
		Err:     res.err,
		Elapsed: time.Since(start),
		Ticks:   sub.tickCount.Load(),
		Skipped: sub.skipped.Load(),
	}
	if !c.finish(sub, res) {
		logger.Debug("Submission superseded, leaving screen untouched")
		return out, res.err
	}
	if res.err != nil {
		logger.Error("Upload failed", "error", res.err, "elapsed", out.Elapsed)
	} else {
		logger.Info("Upload finished", "elapsed", out.Elapsed, "ticks", out.Ticks)
	}
	return out, res.err
}

func (c *Controller) begin(ctx context.Context) *submission {
	subCtx, cancel := context.WithCancelCause(ctx)
	sub := &submission{
		id:       xid.New().String(),
		ctx:      subCtx,
		cancel:   cancel,
		pollDone: make(chan struct{}),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prev := c.current; prev != nil {
		prev.cancel(ErrSuperseded)
	}
	c.current = sub
	c.screen.update(resetSnapshot)
	return sub
}

// apply runs fn against the screen only while sub is the current submission.
func (c *Controller) apply(sub *submission, fn func(*Snapshot)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != sub {
		return false
	}
	c.screen.update(fn)
	return true
}

// finish writes the terminal update and releases the controller.
func (c *Controller) finish(sub *submission, res uploadResult) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != sub {
		return false
	}
	c.current = nil
	c.screen.update(func(s *Snapshot) {
		s.State = StateDone
		if res.err != nil {
			s.Result = progress.ErrorPrefix + res.err.Error()
			s.Failed = true
			return
		}
		s.Result = res.body
		s.Status = progress.StatusDone
		s.Fill = progress.FillDone
	})
	return true
}

func (c *Controller) onSent(sub *submission) func(sent, total int64) {
	return func(sent, total int64) {
		last := sub.lastSent.Load()
		if sent < total && total > 0 && (sent-last)*100 < total {
			return
		}
		sub.lastSent.Store(sent)
		c.apply(sub, func(s *Snapshot) {
			s.Sent = sent
			s.Total = total
		})
	}
}

func (c *Controller) startPolling(sub *submission, form *Form, logger *log.Logger) {
	pollCtx, stop := context.WithCancel(sub.ctx)
	sub.stopPoll = stop
	go c.poll(pollCtx, sub, form, logger)
}

// stopPolling cancels the ticker and waits for in-flight ticks, so no tick
// can land after the terminal update. Safe to call more than once.
func (c *Controller) stopPolling(sub *submission) {
	sub.stopOnce.Do(func() {
		sub.stopPoll()
		<-sub.pollDone
		sub.ticks.Wait()
	})
}

func (c *Controller) poll(ctx context.Context, sub *submission, form *Form, logger *log.Logger) {
	defer close(sub.pollDone)
	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			if c.opts.Overlap == config.OverlapSkip {
				if !sub.inFlight.CompareAndSwap(false, true) {
					sub.skipped.Add(1)
					logger.Debug("Previous progress request still in flight, skipping tick")
					continue
				}
			}
			sub.ticks.Add(1)
			go c.updateProgress(ctx, sub, form, logger)
		}
	}
}

// updateProgress is one poll tick. Failures are logged and dropped; the
// next tick tries again.
func (c *Controller) updateProgress(ctx context.Context, sub *submission, form *Form, logger *log.Logger) {
	defer sub.ticks.Done()
	defer sub.inFlight.Store(false)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Progress tick panicked", "panic", r)
		}
	}()
	sub.tickCount.Add(1)

	completed, err := c.uploader.Progress(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		logger.Warn("Progress check failed", "error", err)
		return
	}
	percent := progress.Percent(completed, progress.EffectiveThreads(form.NumThreads()))
	c.apply(sub, func(s *Snapshot) {
		s.Fill = progress.FillWidth(percent)
		s.Status = progress.StatusText(percent)
	})
}
