package cmd

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/urbaine/upwatch/api"
	"github.com/urbaine/upwatch/bootstrap"
	"github.com/urbaine/upwatch/common/i18n"
	"github.com/urbaine/upwatch/common/i18n/i18nk"
	"github.com/urbaine/upwatch/config"
	"github.com/urbaine/upwatch/pkg/riskmodel"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "run the upload and progress server",
	RunE:    Serve,
}

func init() {
	config.RegisterServerFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

func Serve(cmd *cobra.Command, _ []string) error {
	ctx, err := bootstrap.Init(cmd)
	if err != nil {
		return err
	}
	cfg := config.C()
	logger := log.FromContext(ctx)

	server, err := api.NewServer(ctx, riskmodel.NewTrainer(cfg.API.Workers, riskmodel.WithMaxThreads(cfg.API.MaxWorkers)))
	if err != nil {
		return err
	}
	logger.Info(i18n.T(i18nk.ServerStarting, map[string]any{"Port": cfg.API.Port}), "workers", cfg.API.Workers)
	if err := server.ListenAndServe(ctx, cfg.API.Port); err != nil {
		return err
	}
	logger.Info(i18n.T(i18nk.ServerStopped))
	return nil
}
