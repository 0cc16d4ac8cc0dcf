package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"scanledger/internal/pipeline"
	"scanledger/internal/store"
)

var (
	planOutJSONL string
	planOutDB    string
)

var planCmd = &cobra.Command{
	Use:   "plan <path|->",
	Short: "Ingest planned scans from generator JSON",
	Long: `Read a generator JSON document (one planned-scan object or a list of
them) from a file or stdin and ingest each item as a planned-scan envelope
with empty results.

Examples:
  generate-actions | scanledger plan -
  scanledger plan samples.json`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planOutJSONL, "out-jsonl", "",
		"append-only log path (default knowledge.jsonl)")
	planCmd.Flags().StringVar(&planOutDB, "out-db", "",
		"records database path (default knowledge.db)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	var in io.Reader
	if args[0] == "-" {
		in = os.Stdin
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open generator input: %w", err)
		}
		defer f.Close()
		in = f
	}

	driver := pipeline.NewDriver(store.NewGateway(
		orDefault(planOutJSONL, cfg.Ingest.OutJSONL),
		orDefault(planOutDB, cfg.Ingest.OutDB),
	))

	summary, err := driver.IngestPlans(in)
	if err != nil {
		return err
	}

	fmt.Printf("Planned scans ingested: %d\n", summary.Envelopes)
	if summary.Failures > 0 {
		return fmt.Errorf("%d item(s) failed", summary.Failures)
	}
	return nil
}
