package upload

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/urbaine/upwatch/common/i18n"
	"github.com/urbaine/upwatch/common/i18n/i18nk"
	"github.com/urbaine/upwatch/common/utils/markup"
	"github.com/urbaine/upwatch/core"
)

// view renders screen changes for the duration of one upload.
type view interface {
	core.Renderer
	Start()
	Wait()
}

// logView is used when stdout is not a terminal or the progress bar is
// disabled: every status change becomes a log line and the result text is
// printed to out.
type logView struct {
	logger     *log.Logger
	out        io.Writer
	lastStatus string
	sentLogged bool
}

func newLogView(logger *log.Logger, out io.Writer) *logView {
	return &logView{logger: logger, out: out}
}

func (v *logView) Start() {}

func (v *logView) Wait() {}

func (v *logView) Render(s core.Snapshot) {
	if s.State == core.StateDone {
		if s.Failed {
			v.logger.Error(i18n.T(i18nk.UploadFailed), "result", markup.Text(s.Result))
			return
		}
		v.logger.Info(s.Status)
		fmt.Fprintln(v.out, markup.Text(s.Result))
		return
	}
	if s.Total > 0 && s.Sent == s.Total && !v.sentLogged {
		v.sentLogged = true
		v.logger.Debug(i18n.T(i18nk.UploadSent, map[string]any{
			"Sent":  humanize.Bytes(uint64(s.Sent)),
			"Total": humanize.Bytes(uint64(s.Total)),
		}))
	}
	if s.Status != v.lastStatus {
		v.lastStatus = s.Status
		v.logger.Info(s.Status, "fill", s.Fill)
	}
}
