package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"xbrl_lookup/pkg/core/concept"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show current database statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		return printStats(ctx, a)
	},
}

func printStats(ctx context.Context, a *app) error {
	sum, err := a.store.Summary(ctx, 5)
	if err != nil {
		return err
	}
	lastUpdated := sum.LastUpdated
	if lastUpdated == "" {
		lastUpdated = "N/A"
	}

	fmt.Println("Current Database Statistics:")
	fmt.Println("==================================================")
	fmt.Printf("Companies:       %d\n", sum.TotalCompanies)
	fmt.Printf("Financial Facts: %s\n", humanize.Comma(int64(sum.TotalFacts)))
	fmt.Printf("Unique Metrics:  %d\n", sum.UniqueTags)
	fmt.Printf("Total Filings:   %d\n", sum.TotalFilings)
	fmt.Printf("Year Range:      %s\n", sum.YearRange())
	fmt.Printf("Last Updated:    %s\n", lastUpdated)
	forms := make([]string, 0, len(sum.FormTypes))
	for form := range sum.FormTypes {
		forms = append(forms, form)
	}
	sort.Strings(forms)
	for _, form := range forms {
		fmt.Printf("  %-6s %s facts\n", form, humanize.Comma(int64(sum.FormTypes[form])))
	}

	if len(sum.TopCompanies) > 0 {
		fmt.Println("\nTop Companies by Data Volume:")
		for _, c := range sum.TopCompanies {
			fmt.Printf("  %s (%s): %s facts\n", c.Name, c.Ticker, humanize.Comma(int64(c.FactCount)))
		}
	}
	return nil
}

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search stored facts by label, tag, description or company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		results, err := a.engine.RankedSearch(ctx, args[0], searchLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Printf("No results for %q\n", args[0])
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SCORE\tCOMPANY\tLABEL\tTAG\tFY\tFORM\tVALUE\tURL")
		for _, r := range results {
			fy := "-"
			if r.FiscalYear != nil {
				fy = fmt.Sprint(*r.FiscalYear)
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.Score, r.CompanyName, r.Label, r.Tag, fy, r.FormType, humanize.Commaf(r.Value), r.SourceURL)
		}
		return tw.Flush()
	},
}

var (
	trendCompanies []string
	trendForms     []string
	trendPeriods   int
)

var trendCmd = &cobra.Command{
	Use:   "trend <tag>",
	Short: "Show a concept's value per fiscal year",
	Example: `  xbrl trend Revenues --company AAPL --company MSFT
  xbrl trend NetIncomeLoss --form 10-Q --periods 4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tag, ok := concept.Parse(args[0])
		if !ok {
			return fmt.Errorf("unknown tag %q (see /api/concepts for the tracked list)", args[0])
		}

		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		points, err := a.engine.Trend(ctx, tag, trendCompanies, trendForms, trendPeriods)
		if err != nil {
			return err
		}
		if len(points) == 0 {
			fmt.Printf("No %s data\n", tag)
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "FY\tCOMPANY\tTICKER\tVALUE\tUNIT")
		for _, p := range points {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", p.FiscalYear, p.CompanyName, p.Ticker, humanize.Commaf(p.Value), p.Unit)
		}
		return tw.Flush()
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum number of results")

	trendCmd.Flags().StringSliceVar(&trendCompanies, "company", nil, "ticker or CIK filter (repeatable)")
	trendCmd.Flags().StringSliceVar(&trendForms, "form", nil, "form types (default 10-K)")
	trendCmd.Flags().IntVar(&trendPeriods, "periods", 10, "most recent fiscal years per company (negative for all)")
}
