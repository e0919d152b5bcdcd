package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewBrowseCmd creates the browse command.
func NewBrowseCmd() *cobra.Command {
	var (
		page   int
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:       "browse <apps|games>",
		Short:     "List a mirror section page",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"apps", "games"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var section string
			switch args[0] {
			case "apps":
				section = "app"
			case "games":
				section = "game"
			default:
				return fmt.Errorf("unknown section %q, want apps or games", args[0])
			}
			a := buildApp()

			records, err := a.mirror.Browse(cmd.Context(), section, page, limit)
			if err != nil {
				return err
			}

			if asJSON {
				return printJSON(records)
			}
			if len(records) == 0 {
				fmt.Printf("No entries on %s page %d\n", args[0], page)
				return nil
			}
			printRecords(records)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "section page number")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")

	return cmd
}
