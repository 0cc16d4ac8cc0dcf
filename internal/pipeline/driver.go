// Package pipeline drives report ingestion: it selects a parser for the input
// format, builds envelopes, and hands them to the persistence gateway,
// reporting a per-batch summary. Processing is single-threaded and
// synchronous: one report is parsed and persisted to completion before the
// next begins.
package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scanledger/internal/envelope"
	"scanledger/internal/models"
	"scanledger/internal/parser"
	"scanledger/internal/store"
)

// Parser identity for generator-mode planned scans, which have no report
// parser behind them.
const (
	planParserName    = "plan_ingest"
	planParserVersion = "1.1.0"
)

// bundleSchemaVersion tags the batch JSON export.
const bundleSchemaVersion = "1.0"

// Driver runs ingestions against one pair of sinks.
type Driver struct {
	gateway *store.Gateway
	logger  zerolog.Logger
	runID   string
}

// NewDriver creates a driver over the given gateway. Each driver gets a run
// id that tags every log line of the batch.
func NewDriver(gateway *store.Gateway) *Driver {
	runID := uuid.New().String()
	return &Driver{
		gateway: gateway,
		logger:  log.With().Str("component", "pipeline").Str("runID", runID).Logger(),
		runID:   runID,
	}
}

// Summary reports what one batch did.
type Summary struct {
	RunID     string `json:"runId"`
	Files     int    `json:"files"`
	Hosts     int    `json:"hosts"`
	Envelopes int    `json:"envelopes"`
	Failures  int    `json:"failures"`
}

// IngestPlans reads a generator JSON document (a planned-scan object or a
// list of them) and persists one planned-scan envelope per item. A top-level
// document of the wrong shape fails the whole call; a malformed item fails
// only that item and the batch continues.
func (d *Driver) IngestPlans(r io.Reader) (*Summary, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &ValidationError{Reason: fmt.Sprintf("not valid JSON: %v", err)}
	}

	var items []any
	switch v := doc.(type) {
	case map[string]any:
		items = []any{v}
	case []any:
		items = v
	default:
		return nil, &ValidationError{Reason: "document must be a JSON object or a list of objects"}
	}

	summary := &Summary{RunID: d.runID}
	for i, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			d.logger.Error().Int("item", i+1).Msg("Generator item is not an object")
			summary.Failures++
			continue
		}

		env, err := d.planEnvelope(item)
		if err != nil {
			d.logger.Error().Err(err).Int("item", i+1).Msg("Failed to build planned-scan envelope")
			summary.Failures++
			continue
		}

		if err := d.gateway.Persist(env); err != nil {
			d.logger.Error().Err(err).Str("id", env.ID).Msg("Failed to persist planned scan")
			summary.Failures++
			continue
		}

		summary.Envelopes++
		d.logger.Info().
			Int("item", i+1).
			Str("id", env.ID).
			Str("scanType", env.Payload.ScanType).
			Strs("targets", env.Payload.Targets).
			Msg("Planned scan ingested")
	}

	return summary, nil
}

// planEnvelope converts one generator item {"action", "args", "command"} into
// a planned-scan envelope with empty results.
func (d *Driver) planEnvelope(item map[string]any) (models.Envelope, error) {
	args := map[string]any{}
	if raw, present := item["args"]; present && raw != nil {
		m, ok := raw.(map[string]any)
		if !ok {
			return models.Envelope{}, &ValidationError{Reason: "item args must be an object"}
		}
		args = m
	}

	scanType := "unknown"
	if action, ok := item["action"].(string); ok && action != "" {
		scanType = action
	}

	// Everything but the whitespace-separated target list becomes params.
	params := map[string]any{}
	for k, v := range args {
		if k != "targets" {
			params[k] = v
		}
	}

	payload := models.Payload{
		ScanType: scanType,
		Targets:  normalizeTargets(args["targets"]),
		Params:   params,
		Results:  []*models.Host{},
		Extras:   map[string]any{"planned": true},
	}

	command := "nmap"
	if c, ok := item["command"].(string); ok && c != "" {
		command = c
	}
	source := newSource(command, args, "(generator-json)")

	meta := models.ParserMeta{Name: planParserName, Version: planParserVersion}
	return envelope.Build(payload, source, envelope.SchemaPlan, meta), nil
}

// IngestXMLFile parses one nmap XML report and persists its envelope.
// commandStr supplies the source command when the report carries none.
func (d *Driver) IngestXMLFile(path, commandStr string) (models.Envelope, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return models.Envelope{}, fmt.Errorf("failed to read XML input: %w", err)
	}

	report, err := parser.ParseXML(raw, path)
	if err != nil {
		return models.Envelope{}, err
	}

	if commandStr == "" {
		commandStr = "nmap"
	}
	source := newSource(commandStr, map[string]any{}, path)
	meta := models.ParserMeta{Name: parser.XMLParserName, Version: parser.XMLParserVersion}
	env := envelope.Build(envelope.PayloadFromReport(report), source, envelope.SchemaXML, meta)

	if err := d.gateway.Persist(env); err != nil {
		return models.Envelope{}, err
	}

	d.logger.Info().
		Str("id", env.ID).
		Int("hosts", len(report.Hosts)).
		Str("path", path).
		Msg("XML report ingested")
	return env, nil
}

// IngestTextFiles parses each nmap -oN file, persists one envelope per file,
// and collects every parsed report into the batch bundle. Unreadable files
// are reported and skipped; the batch continues. When bundleOut is non-empty
// the bundle is written there as indented JSON.
func (d *Driver) IngestTextFiles(paths []string, bundleOut string) (*Summary, *models.Bundle, error) {
	bundle := &models.Bundle{
		SchemaVersion: bundleSchemaVersion,
		SourceFiles:   []string{},
		Results:       []*models.ScanReport{},
	}
	summary := &Summary{RunID: d.runID}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			d.logger.Error().Err(err).Str("path", path).Msg("Failed to read input file")
			summary.Failures++
			continue
		}

		report := parser.ParseText(string(data), path)
		bundle.SourceFiles = append(bundle.SourceFiles, path)
		bundle.Results = append(bundle.Results, report)
		summary.Files++
		summary.Hosts += len(report.Hosts)

		command := report.ScanMeta["cmdline"]
		if command == "" {
			command = "nmap"
		}
		source := newSource(command, map[string]any{}, path)
		meta := models.ParserMeta{Name: parser.TextParserName, Version: parser.TextParserVersion}
		env := envelope.Build(envelope.PayloadFromReport(report), source, envelope.SchemaText, meta)

		if err := d.gateway.Persist(env); err != nil {
			d.logger.Error().Err(err).Str("path", path).Msg("Failed to persist text report")
			summary.Failures++
			continue
		}
		summary.Envelopes++

		d.logger.Info().
			Str("id", env.ID).
			Str("path", path).
			Int("hosts", len(report.Hosts)).
			Int("unparsedLines", report.UnparsedLines).
			Msg("Text report ingested")
	}

	if bundleOut != "" && len(bundle.Results) > 0 {
		if err := WriteBundle(bundle, bundleOut); err != nil {
			return summary, bundle, err
		}
		d.logger.Info().Str("path", bundleOut).Int("files", len(bundle.SourceFiles)).Msg("Bundle written")
	}

	return summary, bundle, nil
}

// WriteBundle saves the batch export as indented JSON, creating parent
// directories as needed.
func WriteBundle(bundle *models.Bundle, path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create bundle directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create bundle file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("failed to write bundle: %w", err)
	}
	return nil
}

// normalizeTargets splits a whitespace-separated target value into a list.
func normalizeTargets(v any) []string {
	s, ok := v.(string)
	if !ok || s == "" {
		return []string{}
	}
	return strings.Fields(s)
}

// newSource stamps provenance for one ingestion.
func newSource(command string, args any, rawPath string) models.Source {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	return models.Source{
		Command: command,
		Args:    args,
		Host:    host,
		CWD:     cwd,
		RawPath: rawPath,
	}
}
