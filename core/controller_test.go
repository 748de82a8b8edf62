package core_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/urbaine/upwatch/config"
	"github.com/urbaine/upwatch/core"
	"github.com/urbaine/upwatch/pkg/uploadclient"
)

type fakeUploader struct {
	upload   func(ctx context.Context, req uploadclient.UploadRequest) (string, error)
	progress func(ctx context.Context) (float64, error)

	calls     atomic.Int64
	active    atomic.Int64
	maxActive atomic.Int64
}

func (f *fakeUploader) Upload(ctx context.Context, req uploadclient.UploadRequest) (string, error) {
	return f.upload(ctx, req)
}

func (f *fakeUploader) Progress(ctx context.Context) (float64, error) {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxActive.Load()
		if n <= m || f.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if f.progress == nil {
		return 0, nil
	}
	return f.progress(ctx)
}

func blockUntil(release <-chan struct{}, body string) func(context.Context, uploadclient.UploadRequest) (string, error) {
	return func(ctx context.Context, _ uploadclient.UploadRequest) (string, error) {
		select {
		case <-release:
			return body, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func eventually(t *testing.T, cond func() bool, format string, args ...any) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf(format, args...)
}

func newController(u core.Uploader, opts core.Options) *core.Controller {
	if opts.Interval == 0 {
		opts.Interval = 10 * time.Millisecond
	}
	return core.NewController(u, core.NewScreen(nil), opts)
}

func TestSubmitSuccess(t *testing.T) {
	u := &fakeUploader{
		upload: func(ctx context.Context, req uploadclient.UploadRequest) (string, error) {
			if req.NumThreads != "2" || req.FilePath != "data.csv" {
				t.Errorf("unexpected request %+v", req)
			}
			time.Sleep(30 * time.Millisecond)
			return "<b>OK</b>", nil
		},
		progress: func(context.Context) (float64, error) { return 1, nil },
	}
	c := newController(u, core.Options{})

	out, err := c.Submit(context.Background(), core.NewForm("data.csv", "2"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if out.Body != "<b>OK</b>" || out.ID == "" {
		t.Fatalf("unexpected outcome %+v", out)
	}

	s := c.Screen().Snapshot()
	if s.Result != "<b>OK</b>" {
		t.Errorf("result = %q", s.Result)
	}
	if s.Status != "Processing: 100%" {
		t.Errorf("status = %q", s.Status)
	}
	if s.Fill != "100%" {
		t.Errorf("fill = %q", s.Fill)
	}
	if !s.Visible || s.State != core.StateDone {
		t.Errorf("expected visible done screen, got %+v", s)
	}
	if c.Busy() {
		t.Error("controller still busy after settle")
	}
}

func TestSubmitTransportFailure(t *testing.T) {
	u := &fakeUploader{
		upload: func(context.Context, uploadclient.UploadRequest) (string, error) {
			return "", errors.New("NetworkError")
		},
	}
	c := newController(u, core.Options{})

	_, err := c.Submit(context.Background(), core.NewForm("data.csv", "1"))
	if err == nil || err.Error() != "NetworkError" {
		t.Fatalf("expected NetworkError, got %v", err)
	}
	if got := c.Screen().Snapshot().Result; got != "Error: NetworkError" {
		t.Fatalf("result = %q", got)
	}
}

func TestSubmitStatusErrorUsesErrorPath(t *testing.T) {
	u := &fakeUploader{
		upload: func(context.Context, uploadclient.UploadRequest) (string, error) {
			return "boom", &uploadclient.StatusError{
				Op:         "upload",
				StatusCode: 500,
				Status:     "500 Internal Server Error",
				Body:       "boom",
			}
		},
	}
	c := newController(u, core.Options{})

	_, err := c.Submit(context.Background(), core.NewForm("data.csv", "1"))
	if !errors.Is(err, uploadclient.ErrStatus) {
		t.Fatalf("expected ErrStatus, got %v", err)
	}
	s := c.Screen().Snapshot()
	if s.Result != "Error: upload failed: 500 Internal Server Error: boom" {
		t.Errorf("result = %q", s.Result)
	}
	if s.Status == "Processing: 100%" || s.Fill == "100%" {
		t.Errorf("failed upload must not show completion, got %+v", s)
	}
}

func TestProgressRendering(t *testing.T) {
	release := make(chan struct{})
	u := &fakeUploader{
		upload:   blockUntil(release, "done"),
		progress: func(context.Context) (float64, error) { return 1, nil },
	}
	c := newController(u, core.Options{})
	form := core.NewForm("data.csv", "4")

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), form)
		done <- err
	}()

	eventually(t, func() bool {
		s := c.Screen().Snapshot()
		return s.Status == "Processing: 25%" && s.Fill == "25%"
	}, "expected 25%%, got %+v", c.Screen().Snapshot())

	// the thread count is read on every tick
	form.SetNumThreads("0")
	eventually(t, func() bool {
		return c.Screen().Snapshot().Status == "Processing: 100%"
	}, "expected zero threads to count as one, got %+v", c.Screen().Snapshot())

	form.SetNumThreads("3")
	eventually(t, func() bool {
		s := c.Screen().Snapshot()
		return s.Status == "Processing: 33%" && s.Fill == "33.33333333333333%"
	}, "expected 33%%, got %+v", c.Screen().Snapshot())

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestPollingStopsAfterSettle(t *testing.T) {
	release := make(chan struct{})
	u := &fakeUploader{upload: blockUntil(release, "ok")}
	c := newController(u, core.Options{Interval: 20 * time.Millisecond})

	done := make(chan core.Outcome, 1)
	go func() {
		out, _ := c.Submit(context.Background(), core.NewForm("data.csv", "1"))
		done <- out
	}()

	time.Sleep(110 * time.Millisecond)
	close(release)
	out := <-done

	settled := u.calls.Load()
	if settled < 2 || settled > 6 {
		t.Fatalf("expected roughly one poll per 20ms over 110ms, got %d", settled)
	}
	if out.Ticks != settled {
		t.Errorf("outcome ticks = %d, progress calls = %d", out.Ticks, settled)
	}

	time.Sleep(80 * time.Millisecond)
	if after := u.calls.Load(); after != settled {
		t.Fatalf("polling continued after settle: %d calls, was %d", after, settled)
	}
}

func TestProgressErrorsDoNotStopPolling(t *testing.T) {
	release := make(chan struct{})
	var n atomic.Int64
	u := &fakeUploader{
		upload: blockUntil(release, "ok"),
		progress: func(context.Context) (float64, error) {
			if n.Add(1) <= 2 {
				return 0, errors.New("connection reset")
			}
			return 2, nil
		},
	}
	c := newController(u, core.Options{})

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), core.NewForm("data.csv", "4"))
		done <- err
	}()

	eventually(t, func() bool {
		return c.Screen().Snapshot().Status == "Processing: 50%"
	}, "expected polling to recover, got %+v", c.Screen().Snapshot())

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}
}

func TestPollTimeout(t *testing.T) {
	uploadCancelled := make(chan struct{})
	u := &fakeUploader{
		upload: func(ctx context.Context, _ uploadclient.UploadRequest) (string, error) {
			<-ctx.Done()
			close(uploadCancelled)
			return "", ctx.Err()
		},
	}
	c := newController(u, core.Options{Timeout: 50 * time.Millisecond})

	_, err := c.Submit(context.Background(), core.NewForm("data.csv", "1"))
	if !errors.Is(err, core.ErrPollTimeout) {
		t.Fatalf("expected ErrPollTimeout, got %v", err)
	}
	if got := c.Screen().Snapshot().Result; !strings.HasPrefix(got, "Error: "+core.ErrPollTimeout.Error()) {
		t.Fatalf("result = %q", got)
	}
	select {
	case <-uploadCancelled:
	case <-time.After(time.Second):
		t.Fatal("upload was not cancelled after the poll timeout")
	}

	calls := u.calls.Load()
	time.Sleep(40 * time.Millisecond)
	if u.calls.Load() != calls {
		t.Fatal("polling continued after timeout")
	}
}

func TestOverlapPolicy(t *testing.T) {
	tests := []struct {
		name        string
		overlap     string
		wantSkipped bool
	}{
		{"skip", config.OverlapSkip, true},
		{"allow", config.OverlapAllow, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			release := make(chan struct{})
			u := &fakeUploader{
				upload: blockUntil(release, "ok"),
				progress: func(ctx context.Context) (float64, error) {
					select {
					case <-time.After(55 * time.Millisecond):
					case <-ctx.Done():
					}
					return 1, nil
				},
			}
			c := newController(u, core.Options{Overlap: tt.overlap})

			done := make(chan core.Outcome, 1)
			go func() {
				out, _ := c.Submit(context.Background(), core.NewForm("data.csv", "1"))
				done <- out
			}()
			time.Sleep(150 * time.Millisecond)
			close(release)
			out := <-done

			if tt.wantSkipped {
				if out.Skipped == 0 {
					t.Error("expected skipped ticks")
				}
				if u.maxActive.Load() != 1 {
					t.Errorf("expected at most one progress request in flight, got %d", u.maxActive.Load())
				}
			} else {
				if out.Skipped != 0 {
					t.Errorf("expected no skipped ticks, got %d", out.Skipped)
				}
				if u.maxActive.Load() < 2 {
					t.Errorf("expected overlapping progress requests, got %d", u.maxActive.Load())
				}
			}
		})
	}
}

func TestResubmitResetsScreen(t *testing.T) {
	var attempt atomic.Int64
	var seen core.Snapshot
	var c *core.Controller
	u := &fakeUploader{
		upload: func(ctx context.Context, _ uploadclient.UploadRequest) (string, error) {
			if attempt.Add(1) == 1 {
				return "", errors.New("first failure")
			}
			seen = c.Screen().Snapshot()
			return "second", nil
		},
	}
	c = newController(u, core.Options{})

	if _, err := c.Submit(context.Background(), core.NewForm("a.csv", "1")); err == nil {
		t.Fatal("expected first submission to fail")
	}
	if got := c.Screen().Snapshot().Result; got != "Error: first failure" {
		t.Fatalf("first result = %q", got)
	}

	if _, err := c.Submit(context.Background(), core.NewForm("b.csv", "1")); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if seen.Status != "Processing: 0%" || seen.Result != "" || !seen.Visible || seen.State != core.StateRunning {
		t.Fatalf("screen not reset before the second upload resolved: %+v", seen)
	}
	if got := c.Screen().Snapshot().Result; got != "second" {
		t.Fatalf("second result = %q", got)
	}
}

func TestSubmitSupersedesRunning(t *testing.T) {
	firstStarted := make(chan struct{})
	var once sync.Once
	u := &fakeUploader{
		upload: func(ctx context.Context, req uploadclient.UploadRequest) (string, error) {
			if req.FilePath == "first.csv" {
				once.Do(func() { close(firstStarted) })
				<-ctx.Done()
				return "", ctx.Err()
			}
			return "second", nil
		},
	}
	c := newController(u, core.Options{})

	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), core.NewForm("first.csv", "1"))
		firstErr <- err
	}()
	<-firstStarted

	if _, err := c.Submit(context.Background(), core.NewForm("second.csv", "1")); err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if err := <-firstErr; !errors.Is(err, core.ErrSuperseded) {
		t.Fatalf("expected ErrSuperseded, got %v", err)
	}
	if got := c.Screen().Snapshot().Result; got != "second" {
		t.Fatalf("superseded submission overwrote the screen: %q", got)
	}
}

func TestSubmitContextCancelled(t *testing.T) {
	u := &fakeUploader{
		upload: func(ctx context.Context, _ uploadclient.UploadRequest) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	c := newController(u, core.Options{})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := c.Submit(ctx, core.NewForm("data.csv", "1"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if got := c.Screen().Snapshot().Result; got != "Error: context canceled" {
		t.Fatalf("result = %q", got)
	}
}

func TestRendererSeesEveryChange(t *testing.T) {
	var (
		mu    sync.Mutex
		snaps []core.Snapshot
	)
	screen := core.NewScreen(core.RendererFunc(func(s core.Snapshot) {
		mu.Lock()
		snaps = append(snaps, s)
		mu.Unlock()
	}))
	u := &fakeUploader{
		upload: func(context.Context, uploadclient.UploadRequest) (string, error) { return "ok", nil },
	}
	c := core.NewController(u, screen, core.Options{Interval: time.Hour})

	if _, err := c.Submit(context.Background(), core.NewForm("data.csv", "1")); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(snaps) != 2 {
		t.Fatalf("expected reset and terminal renders, got %d", len(snaps))
	}
	if snaps[0].Status != "Processing: 0%" || snaps[0].State != core.StateRunning {
		t.Errorf("first render = %+v", snaps[0])
	}
	if snaps[1].Result != "ok" || snaps[1].State != core.StateDone {
		t.Errorf("last render = %+v", snaps[1])
	}
}
