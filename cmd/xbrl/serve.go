package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"xbrl_lookup/pkg/api/facts"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard data API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from XBRL_API_ADDR or :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := serveAddr
	if addr == "" {
		addr = a.cfg.APIAddr
	}

	mux := http.NewServeMux()
	facts.NewHandler(a.engine, a.store).Register(mux)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("API server starting on %s...\n", addr)
	fmt.Println("  - GET  /api/search?q=&limit=")
	fmt.Println("  - GET  /api/trend?tag=&company=&form=&periods=")
	fmt.Println("  - GET  /api/companies")
	fmt.Println("  - GET  /api/stats")
	fmt.Println("  - GET  /api/concepts")
	fmt.Println("  - GET  /api/ratios?cik=&year=")
	fmt.Println("  - GET  /api/quarterly?cik=&tag=&periods=")
	fmt.Println("  - GET  /api/latest?cik=")
	fmt.Println("  - GET  /api/filings?cik=")
	fmt.Println("  - GET  /api/line-items?cik=&limit=")
	fmt.Println("  - GET  /api/runs?limit=")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed to start: %w", err)
		}
		return nil
	case <-ctx.Done():
		log.Printf("[API] Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
