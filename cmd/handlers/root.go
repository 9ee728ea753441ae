// Package handlers wires the CLI commands to the pipeline, store, and
// digest layers.
package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ainews/internal/config"
	"ainews/internal/store"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "ainews",
	Short: "Aggregate, rank, and digest technical news sources",
	Long: `ainews ingests configured sources (RSS, JSON APIs, scraped pages)
into a local SQLite database, deduplicates and scores the items, and
generates a daily digest.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: config.yaml)")
}

// openStore loads configuration and opens the database. Callers own the
// returned store and must Close it.
func openStore() (*store.Store, *config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.New(cfg.Storage.Path, cfg.Storage.CacheMB)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}
