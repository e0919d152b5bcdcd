package cli

import (
	"github.com/spf13/cobra"

	"github.com/apkgrab/apkgrab/internal/config"
	"github.com/apkgrab/apkgrab/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg := config.Load()
			if port != "" {
				cfg.Port = port
			}
			return server.New(cfg).Run()
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default from PORT env, 8000)")

	return cmd
}
