// Command xbrl fetches SEC XBRL company facts into a local store and queries them.
package main

import (
	"fmt"
	"os"

	"xbrl_lookup/pkg/core/config"
)

func main() {
	// Load environment variables
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "[WARNING] %v\n", err)
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
}
