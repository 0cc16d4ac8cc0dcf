package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"scanledger/internal/config"
)

var (
	cfgFile  string
	logLevel string
	cfg      *config.Config
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "scanledger",
	Short: "Scan report ingestion pipeline",
	Long: `scanledger converts nmap output into normalized envelopes and persists
them idempotently across two sinks:

- an append-only JSONL log keeping the full ingestion history
- a SQLite records table upserted by content address, keeping the
  latest state per scan

Input can be human-readable -oN reports, -oX XML reports, or planned-scan
JSON from the action generator.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (YAML; defaults apply when unset)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")

	rootCmd.AddCommand(textCmd)
	rootCmd.AddCommand(xmlCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(serveCmd)
}

func initConfig() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg = config.GetConfig()
	if cfgFile != "" {
		if err := cfg.LoadConfig(cfgFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
}
