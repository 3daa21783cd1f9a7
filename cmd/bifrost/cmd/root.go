package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "bifrost",
	Short: "Bifrost issues and validates hotspot access tokens",
	Long: `Bifrost sits behind a captive portal. It mints short-lived HMAC tokens
bound to a client IP and identity, validates them for the target
application, and can keep a client session locked to a valid token.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "info"), "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", envOr("LOG_FORMAT", "json"), "Log format (json, text)")
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
