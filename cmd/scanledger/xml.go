package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scanledger/internal/pipeline"
	"scanledger/internal/store"
)

var (
	xmlCommand  string
	xmlOutJSONL string
	xmlOutDB    string
)

var xmlCmd = &cobra.Command{
	Use:   "xml <path>",
	Short: "Ingest a structured nmap -oX report",
	Long: `Parse one nmap XML report and ingest it into both sinks.

Examples:
  scanledger xml scan.xml --command "nmap -sS -sV -p 80,443 example.com"`,
	Args: cobra.ExactArgs(1),
	RunE: runXML,
}

func init() {
	xmlCmd.Flags().StringVar(&xmlCommand, "command", "",
		"original command line, recorded as the source command")
	xmlCmd.Flags().StringVar(&xmlOutJSONL, "out-jsonl", "",
		"append-only log path (default knowledge.jsonl)")
	xmlCmd.Flags().StringVar(&xmlOutDB, "out-db", "",
		"records database path (default knowledge.db)")
}

func runXML(cmd *cobra.Command, args []string) error {
	driver := pipeline.NewDriver(store.NewGateway(
		orDefault(xmlOutJSONL, cfg.Ingest.OutJSONL),
		orDefault(xmlOutDB, cfg.Ingest.OutDB),
	))

	env, err := driver.IngestXMLFile(args[0], xmlCommand)
	if err != nil {
		return err
	}

	fmt.Printf("XML -> _id=%s results_hosts=%d\n", env.ID, len(env.Payload.Results))
	return nil
}
