package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"xbrl_lookup/pkg/core/ingest"
	"xbrl_lookup/pkg/core/pipeline"
	"xbrl_lookup/pkg/core/xbrl"
)

var (
	company  string
	allMajor bool
	limit    int
)

var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Fetch SEC data for one company or all major companies",
	Long: `Integrate fetches the companyfacts document of each company, extracts the
tracked concepts and upserts them into the store.

Example:
  xbrl integrate --company AAPL
  xbrl integrate --all-major --limit 3 --demo-db`,
	RunE: runIntegrate,
}

func init() {
	integrateCmd.Flags().StringVarP(&company, "company", "c", "", "stock ticker to integrate (e.g., AAPL)")
	integrateCmd.Flags().BoolVar(&allMajor, "all-major", false, "integrate all major companies")
	integrateCmd.Flags().IntVar(&limit, "limit", 0, "limit number of companies (use with --all-major)")
	integrateCmd.MarkFlagsMutuallyExclusive("company", "all-major")
	integrateCmd.MarkFlagsOneRequired("company", "all-major")
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	registry, err := a.cfg.Registry()
	if err != nil {
		return err
	}

	client := ingest.NewEDGARClient(a.cfg.ClientOptions())
	integrator := pipeline.NewIntegrator(registry, client, a.store)
	integrator.SetExtractor(xbrl.NewExtractor(a.cfg.Verbose))

	if company != "" {
		ticker := strings.ToUpper(company)
		if err := integrator.Integrate(ctx, ticker); err != nil {
			return fmt.Errorf("%s integration failed: %w", ticker, err)
		}
		fmt.Printf("%s integration completed!\n", ticker)
	} else {
		res := integrator.IntegrateAll(ctx, limit)
		if res.AllFailed() {
			return errors.New("all integrations failed")
		}
		fmt.Printf("Integration completed! %d companies successful, %d failed.\n", res.Succeeded, res.Failed)
	}

	fmt.Println()
	return printStats(ctx, a)
}
