package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/apkgrab/apkgrab/internal/listing"
)

// NewSearchCmd creates the search command.
func NewSearchCmd() *cobra.Command {
	var (
		limit    int
		combined bool
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search for apps across sources",
		Long: `Search the mirror site and the official store for a query and print the
reconciled result list. With --combined=false only the mirror is searched.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			a := buildApp()

			var records []listing.Record
			if combined {
				records = a.search.Search(cmd.Context(), query, limit).Combined
			} else {
				records = a.search.MirrorOnly(cmd.Context(), query, limit)
			}

			if asJSON {
				return printJSON(records)
			}

			if len(records) == 0 {
				fmt.Printf("No results for %q\n", query)
				return nil
			}
			printRecords(records)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().BoolVar(&combined, "combined", true, "merge mirror and store results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")

	return cmd
}

func printRecords(records []listing.Record) {
	fmt.Printf("%-40s %-12s %-10s %-7s %s\n", "NAME", "VERSION", "SIZE", "SOURCE", "URL")
	fmt.Println(strings.Repeat("-", 100))
	for _, rec := range records {
		name := rec.Name
		if len(name) > 38 {
			name = name[:35] + "..."
		}
		ref := rec.URL
		if rec.Source == listing.SourcePlay && rec.Package != "" {
			ref = rec.Package
		}
		fmt.Printf("%-40s %-12s %-10s %-7s %s\n", name, rec.Version, rec.Size, rec.Source, ref)
	}
}

func printJSON(v interface{}) error {
	data, err := sonic.ConfigFastest.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, string(data))
	return nil
}
