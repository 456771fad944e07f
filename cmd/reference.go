package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/seoul-reads/bookfinder/internal/reference"
)

func newDistrictsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "districts",
		Short: "List Seoul district codes and the library directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := reference.Load()
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "CODE\tDISTRICT\tLIBRARIES")
			for _, d := range ref.Districts {
				names := make([]string, 0)
				for _, lib := range ref.LibrariesIn(d.Code) {
					names = append(names, lib.Name)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Code, d.Name, strings.Join(names, ", "))
			}
			return tw.Flush()
		},
	}
}

func newCollectionsCmd() *cobra.Command {
	var brand string

	cmd := &cobra.Command{
		Use:   "collections",
		Short: "List curated children's book collections",
		Example: `  # Every collection
  bookfinder collections

  # One publisher's collections
  bookfinder collections --brand 아람북스`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := reference.Load()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			collections := ref.CollectionsFor(brand)
			if len(collections) == 0 {
				fmt.Fprintf(out, "No collections for brand %q. Brands: %s\n", brand, strings.Join(ref.Brands, ", "))
				return nil
			}
			for _, c := range collections {
				fmt.Fprintf(out, "[%s] %s - %s (%s, %s)\n", c.ID, c.Brand, c.Title, c.Category, c.AgeGroup)
				fmt.Fprintf(out, "  %s\n", c.Description)
				fmt.Fprintf(out, "  %s\n", strings.Join(c.Books, ", "))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&brand, "brand", "b", "", "Only list collections from this brand (전체 lists all)")

	return cmd
}
