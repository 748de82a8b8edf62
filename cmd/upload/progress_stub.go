//go:build no_bubbletea

package upload

import (
	"context"
	"os"

	"github.com/charmbracelet/log"
)

func newTeaView(ctx context.Context, fileName string) view {
	return newLogView(log.FromContext(ctx), os.Stdout)
}
