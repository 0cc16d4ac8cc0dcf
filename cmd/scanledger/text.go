package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"scanledger/internal/pipeline"
	"scanledger/internal/store"
)

var (
	textBundleOut   string
	textMakeSamples bool
	textOutJSONL    string
	textOutDB       string
)

var textCmd = &cobra.Command{
	Use:   "text [files...]",
	Short: "Ingest human-readable nmap -oN reports",
	Long: `Parse one or more nmap -oN report files, export the batch JSON bundle,
and ingest each report into both sinks.

Examples:
  scanledger text scans/host_discovery.txt scans/service_version.txt
  scanledger text scans/*.txt --out output/my_knowledge.json
  scanledger text --make-samples`,
	RunE: runText,
}

func init() {
	textCmd.Flags().StringVar(&textBundleOut, "out", "",
		"batch bundle output path (default output/nmap_knowledge.json)")
	textCmd.Flags().BoolVar(&textMakeSamples, "make-samples", false,
		"write sample nmap outputs into the samples folder and parse them")
	textCmd.Flags().StringVar(&textOutJSONL, "out-jsonl", "",
		"append-only log path (default knowledge.jsonl)")
	textCmd.Flags().StringVar(&textOutDB, "out-db", "",
		"records database path (default knowledge.db)")
}

func runText(cmd *cobra.Command, args []string) error {
	inputs := args
	if textMakeSamples {
		paths, err := pipeline.WriteSamples(cfg.Ingest.SamplesDir)
		if err != nil {
			return fmt.Errorf("failed to write samples: %w", err)
		}
		fmt.Printf("Samples written to %s\n", cfg.Ingest.SamplesDir)
		inputs = paths
	}

	if len(inputs) == 0 {
		return errors.New("no input files; pass file paths or use --make-samples")
	}

	bundleOut := textBundleOut
	if bundleOut == "" {
		bundleOut = cfg.Ingest.BundleOut
	}

	driver := pipeline.NewDriver(store.NewGateway(
		orDefault(textOutJSONL, cfg.Ingest.OutJSONL),
		orDefault(textOutDB, cfg.Ingest.OutDB),
	))

	summary, bundle, err := driver.IngestTextFiles(inputs, bundleOut)
	if err != nil {
		return err
	}

	fmt.Printf("Bundle saved to: %s\n", bundleOut)
	fmt.Printf("  Files:     %d\n", len(bundle.SourceFiles))
	fmt.Printf("  Hosts:     %d\n", summary.Hosts)
	fmt.Printf("  Envelopes: %d\n", summary.Envelopes)
	if summary.Failures > 0 {
		return fmt.Errorf("%d input(s) failed", summary.Failures)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}
