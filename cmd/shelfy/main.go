package main

import (
	"os"

	"shelfy/internal/vitesy"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands
const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	// ExitCodeInvalidAuth means the vendor rejected the credentials
	ExitCodeInvalidAuth = 2
)

// Version can be set during build with -ldflags
var version = "dev"

// Global flags
var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "shelfy",
	Short: "Vitesy Shelfy and Natede cloud bridge",
	Long: `shelfy signs in to the Vitesy cloud, polls your Shelfy and Natede
devices and exposes their sensors and maintenance buttons over a small
HTTP API.

Configuration is read from the file given with --config, or from SHELFY_*
environment variables when no file is given.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to configuration file (default: environment variables)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (json or text)")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newLoginCmd())
	rootCmd.AddCommand(newLogoutCmd())
	rootCmd.AddCommand(newDevicesCmd())
	rootCmd.AddCommand(newResetCmd())
	rootCmd.AddCommand(newAPIKeyCmd())
	rootCmd.AddCommand(newWhoamiCmd())
}

func main() {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status
func exitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}
	if vitesy.IsInvalidAuth(err) {
		return ExitCodeInvalidAuth
	}
	return ExitCodeError
}
