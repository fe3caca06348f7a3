package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"xbrl_lookup/pkg/core/config"
	"xbrl_lookup/pkg/core/search"
	"xbrl_lookup/pkg/core/store"
)

var (
	cfgFile string
	demoDB  bool
	verbose bool

	v = viper.New()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "xbrl",
	Short: "XBRL Financial Lookup - SEC company facts ingestion and search",
	Long: `xbrl pulls XBRL company facts from the SEC EDGAR API, stores the tracked
financial concepts in a local database and answers search and trend queries.

Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (XBRL_*, DATABASE_URL), including .env
  3. Config file (--config)
  4. Defaults`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&demoDB, "demo-db", false, "use the demo database instead of the production one")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string (overrides the SQLite files)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	_ = v.BindPFlag("database_url", rootCmd.PersistentFlags().Lookup("database-url"))
	_ = v.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(integrateCmd, statsCmd, searchCmd, trendCmd, serveCmd)
}

// loadConfig resolves flags, environment and config file.
func loadConfig() (*config.Config, error) {
	return config.LoadWith(v, cfgFile)
}

// app bundles the components a command needs.
type app struct {
	cfg    *config.Config
	store  *store.Store
	engine *search.Engine
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, cfg.StoreOptions(demoDB))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return &app{cfg: cfg, store: st, engine: search.NewEngine(st)}, nil
}

func (a *app) Close() {
	a.store.Close()
}
