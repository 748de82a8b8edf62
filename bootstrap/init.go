package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/urbaine/upwatch/common/i18n"
	"github.com/urbaine/upwatch/config"
	"github.com/urbaine/upwatch/logger"
)

// Init binds the flags cmd declares, loads the configuration and returns
// cmd's context carrying the configured logger.
func Init(cmd *cobra.Command) (context.Context, error) {
	if cmd.Flags().Lookup("server") != nil {
		config.BindClientFlags(cmd)
	}
	if cmd.Flags().Lookup("port") != nil {
		config.BindServerFlags(cmd)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := config.Init(ctx, config.GetConfigFile(cmd)); err != nil {
		return ctx, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.C()
	i18n.Init(cfg.Lang)

	l := logger.New(os.Stderr, cfg.Log.Level)
	log.SetDefault(l)
	return log.WithContext(ctx, l), nil
}
