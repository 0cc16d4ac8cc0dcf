// Package envelope assembles persisted envelopes around parsed scan payloads
// and derives their content address. The address is a pure function of
// {scan_type, targets, results, command, args}: independent of key insertion
// order, of the ingestion timestamp, and of every other field.
package envelope

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"scanledger/internal/models"
)

// Payload schema tags.
const (
	SchemaXML  = "network.nmap.v1"
	SchemaPlan = "network.nmap.plan.v1"
	SchemaText = "network.nmap.text.v1"
)

// observedAtLayout matches the Z-suffixed ISO 8601 form of the existing
// stored records.
const observedAtLayout = "2006-01-02T15:04:05.000000Z"

// Build constructs an immutable envelope from a payload and fresh source
// metadata. Two builds over identical content yield equal IDs; ObservedAt is
// wall-clock and excluded from the ID.
func Build(payload models.Payload, source models.Source, schema string, parser models.ParserMeta) models.Envelope {
	return models.Envelope{
		Schema:     schema,
		ID:         ContentID(payload, source),
		ObservedAt: time.Now().UTC().Format(observedAtLayout),
		Source:     source,
		Payload:    payload,
		Parser:     parser,
	}
}

// ContentID derives the content address: canonical JSON of the payload core
// {scan_type, targets, results} concatenated with canonical JSON of the
// source meta {command, args}, hashed with SHA-256.
func ContentID(payload models.Payload, source models.Source) string {
	core := map[string]any{
		"scan_type": payload.ScanType,
		"targets":   targetsValue(payload.Targets),
		"results":   models.ResultMaps(payload.Results),
	}
	meta := map[string]any{
		"command": source.Command,
		"args":    argsValue(source.Args),
	}
	sum := sha256.Sum256([]byte(canonicalJSON(core) + canonicalJSON(meta)))
	return "sha256:" + hex.EncodeToString(sum[:])
}

func targetsValue(targets []string) []any {
	out := make([]any, len(targets))
	for i, t := range targets {
		out[i] = t
	}
	return out
}

func argsValue(args any) any {
	if args == nil {
		return map[string]any{}
	}
	return args
}

// PayloadFromReport wraps a parsed report into the envelope payload shape.
// Reports carry no scan type or explicit target list, so both default per the
// unknown-content convention.
func PayloadFromReport(report *models.ScanReport) models.Payload {
	return models.Payload{
		ScanType: "unknown",
		Targets:  []string{},
		Params:   map[string]any{},
		Results:  report.Hosts,
		Extras:   map[string]any{},
	}
}
