package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/urbaine/upwatch/cmd/upload"
	"github.com/urbaine/upwatch/config"
)

var rootCmd = &cobra.Command{
	Use:           "upwatch",
	Short:         "upload a dataset and watch it being processed",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	config.RegisterFlags(rootCmd)
	upload.Register(rootCmd)
}

func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
