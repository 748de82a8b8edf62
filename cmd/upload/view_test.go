package upload

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/urbaine/upwatch/core"
)

func TestLogViewSuccess(t *testing.T) {
	var logs, out bytes.Buffer
	v := newLogView(log.NewWithOptions(&logs, log.Options{}), &out)

	v.Render(core.Snapshot{State: core.StateRunning, Status: "Processing: 0%", Fill: "0%"})
	v.Render(core.Snapshot{State: core.StateRunning, Status: "Processing: 0%", Fill: "0%"})
	v.Render(core.Snapshot{State: core.StateRunning, Status: "Processing: 50%", Fill: "50%"})
	v.Render(core.Snapshot{State: core.StateDone, Status: "Processing: 100%", Fill: "100%", Result: "<p>trained in <b>1 min</b></p>"})

	if got := strings.Count(logs.String(), "Processing: 0%"); got != 1 {
		t.Errorf("repeated status should be logged once, got %d in %q", got, logs.String())
	}
	if !strings.Contains(logs.String(), "Processing: 50%") {
		t.Errorf("missing progress line: %q", logs.String())
	}
	if out.String() != "trained in 1 min\n" {
		t.Errorf("result output = %q", out.String())
	}
}

func TestLogViewFailure(t *testing.T) {
	var logs, out bytes.Buffer
	v := newLogView(log.NewWithOptions(&logs, log.Options{}), &out)

	v.Render(core.Snapshot{State: core.StateDone, Failed: true, Result: "Error: NetworkError"})

	if out.Len() != 0 {
		t.Errorf("failure must not print a result, got %q", out.String())
	}
	if !strings.Contains(logs.String(), "Error: NetworkError") {
		t.Errorf("failure not logged: %q", logs.String())
	}
}
