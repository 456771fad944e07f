package cmd

import (
	"fmt"
	"io"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seoul-reads/bookfinder/internal/models"
	"github.com/seoul-reads/bookfinder/internal/ratelimit"
	"github.com/seoul-reads/bookfinder/internal/reference"
)

// cliClientKey identifies terminal searches to the quota check, which never refuses them
const cliClientKey = "cli"

func newSearchCmd(opts *rootOptions) *cobra.Command {
	var district string
	var format string

	cmd := &cobra.Command{
		Use:   "search TITLE...",
		Short: "Check library availability for up to five titles",
		Long: `Runs a single availability search from the terminal and prints the result.

Each argument is one title. The district is a Seoul district code (see
"bookfinder districts") or its Korean name. The daily search limit does not
apply to the command line.`,
		Example: `  # Two titles in Mapo-gu
  bookfinder search --district 11140 "소년이 온다" "채식주의자"

  # Same search by district name, as JSON
  bookfinder search --district 마포구 --format json "소년이 온다"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			render, err := renderer(format)
			if err != nil {
				return err
			}

			ref, err := reference.Load()
			if err != nil {
				return err
			}
			code, err := districtCode(ref, district)
			if err != nil {
				return err
			}

			svc := newSearchService(opts.cfg, ratelimit.Unlimited{})
			results, err := svc.Search(cmd.Context(), models.SearchRequest{
				District:  code,
				Titles:    args,
				ClientKey: cliClientKey,
			})
			if err != nil {
				return err
			}

			return render(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringVarP(&district, "district", "d", "", "Seoul district code or name (required)")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("district")

	return cmd
}

// districtCode accepts a district code or a district name
func districtCode(ref *reference.Data, district string) (string, error) {
	district = strings.TrimSpace(district)
	if ref.IsDistrict(district) {
		return district, nil
	}
	for _, d := range ref.Districts {
		if d.Name == district {
			return d.Code, nil
		}
	}
	return "", fmt.Errorf("unknown district %q: run \"bookfinder districts\" for the list", district)
}

type renderFunc func(w io.Writer, results []models.SearchResultItem) error

func renderer(format string) (renderFunc, error) {
	switch format {
	case "text":
		return printTextResults, nil
	case "json":
		return printJSONResults, nil
	case "yaml":
		return printYAMLResults, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printTextResults(w io.Writer, results []models.SearchResultItem) error {
	if len(results) == 0 {
		_, err := fmt.Fprintln(w, "No library in this district holds any of these titles.")
		return err
	}

	var b strings.Builder
	for i, item := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "== %s ==\n", item.SearchTerm)
		for _, book := range item.Books {
			m := book.Metadata
			fmt.Fprintf(&b, "%s / %s (%s, %s) ISBN %s\n", m.Title, m.Author, m.Publisher, m.PubYear, m.ISBN)
			for _, lib := range book.Libraries {
				status := "on loan"
				if lib.IsAvailable {
					status = "available"
				}
				fmt.Fprintf(&b, "  %-24s %s\n", lib.LibraryName, status)
			}
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func printJSONResults(w io.Writer, results []models.SearchResultItem) error {
	encoder := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}

func printYAMLResults(w io.Writer, results []models.SearchResultItem) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(results); err != nil {
		return err
	}
	return encoder.Close()
}
