package upload

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/urbaine/upwatch/bootstrap"
	"github.com/urbaine/upwatch/common/i18n"
	"github.com/urbaine/upwatch/common/i18n/i18nk"
	"github.com/urbaine/upwatch/config"
	"github.com/urbaine/upwatch/core"
	"github.com/urbaine/upwatch/pkg/uploadclient"
	"golang.org/x/term"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "upload a file and watch the server process it",
	RunE:  Upload,
}

func Register(root *cobra.Command) {
	uploadCmd.Flags().StringP("file", "f", "", "file path to upload")
	uploadCmd.MarkFlagRequired("file")
	uploadCmd.Flags().StringP("threads", "t", "", "numThreads form value, also the divisor of the progress counter")
	uploadCmd.Flags().String("file-field", uploadclient.DefaultFileField, "form field name of the file part")
	uploadCmd.Flags().StringToString("field", nil, "extra form fields (key=value)")
	config.RegisterClientFlags(uploadCmd)
	root.AddCommand(uploadCmd)
}

func Upload(cmd *cobra.Command, args []string) error {
	fp, err := cmd.Flags().GetString("file")
	if err != nil {
		return err
	}
	threads, err := cmd.Flags().GetString("threads")
	if err != nil {
		return err
	}
	fileField, err := cmd.Flags().GetString("file-field")
	if err != nil {
		return err
	}
	fields, err := cmd.Flags().GetStringToString("field")
	if err != nil {
		return err
	}

	ctx, err := bootstrap.Init(cmd)
	if err != nil {
		return err
	}
	logger := log.FromContext(ctx).WithPrefix("upload")
	cfg := config.C()
	if threads == "" && cfg.Client.Threads > 0 {
		threads = strconv.Itoa(cfg.Client.Threads)
	}

	if _, err := os.Stat(fp); err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}

	client, err := bootstrap.NewClient()
	if err != nil {
		return err
	}
	if cfg.Client.Wait > 0 {
		logger.Info(i18n.T(i18nk.WaitingServer, map[string]any{"Server": client.BaseURL()}))
		if err := client.WaitReady(ctx, cfg.Client.Wait, func(err error, next time.Duration) {
			logger.Debug("Server not ready", "error", err, "retry_in", next)
		}); err != nil {
			return err
		}
	}

	var v view
	if !cfg.Client.NoProgress && term.IsTerminal(int(os.Stdout.Fd())) {
		v = newTeaView(ctx, filepath.Base(fp))
	} else {
		v = newLogView(logger, cmd.OutOrStdout())
	}

	ctrl := core.NewController(client, core.NewScreen(v), core.Options{
		Interval: cfg.Client.Interval,
		Timeout:  cfg.Client.Timeout,
		Overlap:  cfg.Client.Overlap,
	})
	form := core.NewForm(fp, threads)
	form.FileField = fileField
	form.Fields = fields

	logger.Info(i18n.T(i18nk.UploadStarting, map[string]any{
		"File":   fp,
		"Server": client.BaseURL(),
	}))
	v.Start()
	out, err := ctrl.Submit(ctx, form)
	v.Wait()
	if err != nil {
		return fmt.Errorf("%s: %w", i18n.T(i18nk.UploadFailed), err)
	}
	logger.Info(i18n.T(i18nk.UploadComplete), "run", out.ID, "elapsed", out.Elapsed.Round(time.Millisecond))
	return nil
}
