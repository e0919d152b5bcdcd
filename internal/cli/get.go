package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apkgrab/apkgrab/internal/download"
	"github.com/apkgrab/apkgrab/internal/listing"
)

// NewGetCmd creates the get command.
func NewGetCmd() *cobra.Command {
	var (
		force  bool
		source string
	)

	cmd := &cobra.Command{
		Use:   "get <slug-or-package>",
		Short: "Download a binary",
		Long: `Download a binary by mirror slug or store package name. An already
downloaded file is served from the local cache unless --force is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]

			opts := download.Options{ForceRefetch: force}
			switch source {
			case "play":
				opts.SourceHint = listing.SourcePlay
			case "mirror":
				opts.SourceHint = listing.SourceMirror
			case "":
			default:
				return fmt.Errorf("unknown source %q, want mirror or play", source)
			}

			a := buildApp()

			result, err := a.engine.Acquire(cmd.Context(), id, opts)
			if err != nil {
				return err
			}

			fmt.Printf("Downloaded %s (%d bytes, via %s)\n", result.Path, result.Size, result.Source)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "refetch even when a cached file exists")
	cmd.Flags().StringVar(&source, "source", "", "preferred source (mirror or play)")

	return cmd
}
