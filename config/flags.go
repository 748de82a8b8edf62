package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// RegisterFlags adds the global flags shared by every command.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.StringP("config", "c", "", "config file path")
	flags.StringP("lang", "l", "", "language (e.g., en, zh-Hans)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	viper.BindPFlag("lang", flags.Lookup("lang"))
	viper.BindPFlag("log.level", flags.Lookup("log-level"))
}

// RegisterClientFlags adds the flags of commands talking to the server.
func RegisterClientFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.String("server", "", "server base URL")
	flags.Duration("interval", 0, "progress poll interval")
	flags.Duration("timeout", 0, "give up polling after this long (0 keeps the configured value)")
	flags.Duration("request-timeout", 0, "timeout of a single progress request")
	flags.String("overlap", "", "policy for overlapping progress polls (skip, allow)")
	flags.Duration("wait", 0, "wait up to this long for the server to become ready")
	flags.Bool("no-progress", false, "disable progress bar")
	flags.String("proxy", "", "proxy URL for requests to the server")
}

// BindClientFlags binds the client flags of cmd into viper. Several commands
// define the same client flags, so binding happens when one of them runs.
func BindClientFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	viper.BindPFlag("client.server", flags.Lookup("server"))
	viper.BindPFlag("client.interval", flags.Lookup("interval"))
	viper.BindPFlag("client.timeout", flags.Lookup("timeout"))
	viper.BindPFlag("client.request_timeout", flags.Lookup("request-timeout"))
	viper.BindPFlag("client.overlap", flags.Lookup("overlap"))
	viper.BindPFlag("client.wait", flags.Lookup("wait"))
	viper.BindPFlag("client.no_progress", flags.Lookup("no-progress"))
	viper.BindPFlag("client.proxy", flags.Lookup("proxy"))
}

// RegisterServerFlags adds the flags of the serve command.
func RegisterServerFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.IntP("port", "p", 0, "port to listen on")
	flags.IntP("workers", "w", 0, "default number of training workers")
	flags.Float64("rate-limit", 0, "requests per second accepted by the API")
}

func BindServerFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	viper.BindPFlag("api.port", flags.Lookup("port"))
	viper.BindPFlag("api.workers", flags.Lookup("workers"))
	viper.BindPFlag("api.rate_limit", flags.Lookup("rate-limit"))
}

func GetConfigFile(cmd *cobra.Command) string {
	configFile, _ := cmd.Flags().GetString("config")
	return configFile
}
