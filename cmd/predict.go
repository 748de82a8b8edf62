package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/urbaine/upwatch/bootstrap"
	"github.com/urbaine/upwatch/common/i18n"
	"github.com/urbaine/upwatch/common/i18n/i18nk"
	"github.com/urbaine/upwatch/config"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "query the risk predicted by the last trained model",
	RunE:  Predict,
}

func init() {
	predictCmd.Flags().Int("zone", 0, "zone")
	predictCmd.Flags().Int("time", 0, "time of day")
	predictCmd.Flags().Int("day", 0, "day of week")
	predictCmd.MarkFlagRequired("zone")
	predictCmd.MarkFlagRequired("time")
	predictCmd.MarkFlagRequired("day")
	config.RegisterClientFlags(predictCmd)
	rootCmd.AddCommand(predictCmd)
}

func Predict(cmd *cobra.Command, _ []string) error {
	zone, _ := cmd.Flags().GetInt("zone")
	hour, _ := cmd.Flags().GetInt("time")
	day, _ := cmd.Flags().GetInt("day")

	ctx, err := bootstrap.Init(cmd)
	if err != nil {
		return err
	}
	cfg := config.C()
	client, err := bootstrap.NewClient()
	if err != nil {
		return err
	}
	if cfg.Client.Wait > 0 {
		if err := client.WaitReady(ctx, cfg.Client.Wait, nil); err != nil {
			return err
		}
	}
	risk, err := client.Predict(ctx, zone, hour, day)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), i18n.T(i18nk.PredictResult, map[string]any{
		"Zone": zone,
		"Time": hour,
		"Day":  day,
		"Risk": risk,
	}))
	return nil
}
