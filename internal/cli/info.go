package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/apkgrab/apkgrab/internal/playstore"
)

// NewInfoCmd creates the info command.
func NewInfoCmd() *cobra.Command {
	var (
		appURL string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "info <slug-or-package>",
		Short: "Show details for one listing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			a := buildApp()

			if playstore.IsPackageName(id) {
				rec := a.play.App(cmd.Context(), id)
				if rec == nil {
					return fmt.Errorf("no store listing for %s", id)
				}
				if asJSON {
					return printJSON(rec)
				}
				fmt.Printf("Name:      %s\n", rec.Name)
				fmt.Printf("Package:   %s\n", rec.Package)
				fmt.Printf("Version:   %s\n", rec.Version)
				fmt.Printf("Developer: %s\n", rec.Developer)
				fmt.Printf("Category:  %s\n", rec.Category)
				return nil
			}

			url := appURL
			if url == "" {
				url = a.mirror.ListingURL(id)
			}

			details, err := a.mirror.AppDetails(cmd.Context(), url)
			if err != nil {
				return fmt.Errorf("no listing found for %s: %w", id, err)
			}
			links, err := a.mirror.DownloadLinks(cmd.Context(), url)
			if err != nil {
				links = nil
			}
			pkg := a.search.ResolvePackage(cmd.Context(), id)

			if asJSON {
				return printJSON(map[string]interface{}{
					"id":      id,
					"url":     url,
					"details": details,
					"links":   links,
					"package": pkg,
				})
			}

			fmt.Printf("Name:         %s\n", details.Name)
			fmt.Printf("Version:      %s\n", details.Version)
			fmt.Printf("Size:         %s\n", details.Size)
			fmt.Printf("Category:     %s\n", details.Category)
			fmt.Printf("Publisher:    %s\n", details.Publisher)
			fmt.Printf("Requirements: %s\n", details.Requirements)
			if pkg != "" {
				fmt.Printf("Package:      %s\n", pkg)
			}
			if len(links) > 0 {
				fmt.Println("Downloads:")
				for _, link := range links {
					marker := " "
					if link.Direct {
						marker = "*"
					}
					fmt.Printf("  %s %-50s %s\n", marker, link.Name, link.URL)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&appURL, "url", "", "explicit listing URL instead of the slug-derived one")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")

	return cmd
}
