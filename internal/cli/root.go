package cli

import (
	"github.com/spf13/cobra"

	"github.com/apkgrab/apkgrab/internal/config"
	"github.com/apkgrab/apkgrab/internal/logger"
)

// NewRootCmd creates the apkgrab root command with all subcommands attached.
func NewRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "apkgrab",
		Short: "Search and download Android packages from multiple sources",
		Long: `apkgrab reconciles search results from a mirror site and the official
store, then acquires binaries through a tiered download pipeline.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			cfg := config.Load()
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			logger.Init(logger.LogConfig{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Color:  cfg.LogColor,
			})
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (DEBUG, INFO, WARN, ERROR)")

	cmd.AddCommand(
		NewServeCmd(),
		NewSearchCmd(),
		NewInfoCmd(),
		NewGetCmd(),
		NewBrowseCmd(),
	)

	return cmd
}
