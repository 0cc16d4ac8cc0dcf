// Package models defines the data structures used throughout scanledger.
// It contains the parsed scan report shapes produced by the parsers, the
// payload/source/envelope forms persisted by the ingestion pipeline, and the
// batch export bundle.
package models

import (
	"bytes"
	"encoding/json"
)

// HostStatus is the liveness state of a scanned host.
type HostStatus string

const (
	StatusUp      HostStatus = "up"
	StatusDown    HostStatus = "down"
	StatusUnknown HostStatus = "unknown"
)

// ScanReport is one parsed scan report, either from a text (-oN) file or an
// XML (-oX) document. Hosts keep the order they were found in the input.
type ScanReport struct {
	SourceLabel string            `json:"source"`
	ScanMeta    map[string]string `json:"scan"`
	Hosts       []*Host           `json:"hosts"`

	// UnparsedLines counts non-blank lines the text parser skipped while a
	// host was active. Zero for XML reports.
	UnparsedLines int `json:"-"`
}

// Host is one scanned endpoint. Address and Hostname may both be empty when
// the input supplied neither; Status is always set, at minimum to unknown.
// The json tags give the bundle export shape; persisted envelope payloads
// render hosts through ResultMaps instead.
type Host struct {
	Hostname    string     `json:"hostname,omitempty"`
	Address     string     `json:"ip,omitempty"`
	Status      HostStatus `json:"status"`
	Ports       []Port     `json:"ports"`
	OS          OSInfo     `json:"os"`
	ServiceInfo string     `json:"service_info,omitempty"`
	// ScriptResults maps script id to output text; last write per key wins.
	ScriptResults map[string]string `json:"scripts,omitempty"`
}

// OSInfo holds OS detection fields from a report.
type OSInfo struct {
	DeviceType string `json:"device_type,omitempty"`
	Running    string `json:"running,omitempty"`
	Details    string `json:"details,omitempty"`
}

// Empty reports whether no OS detection field was populated.
func (o OSInfo) Empty() bool {
	return o.DeviceType == "" && o.Running == "" && o.Details == ""
}

// Port is one observed port record. The parsers are purely additive: repeated
// port numbers produce repeated entries, in encounter order.
type Port struct {
	Number   int    `json:"port"`
	Protocol string `json:"proto"`
	State    string `json:"state"`
	Service  string `json:"service,omitempty"`
	// Product is free text: product and version from an XML service element,
	// or the trailing VERSION column of a text port row.
	Product string         `json:"product,omitempty"`
	Version string         `json:"version,omitempty"`
	Scripts []ScriptResult `json:"scripts,omitempty"`
}

// ScriptResult is one NSE script outcome attached to a port.
type ScriptResult struct {
	ID     string `json:"id"`
	Output string `json:"output"`
}

// Source records the provenance of an ingested report.
type Source struct {
	Command string `json:"command"`
	// Args is the command argument set: a map for generator items, a list for
	// inline samples, or an empty map when unknown.
	Args    any    `json:"args"`
	Host    string `json:"host"`
	CWD     string `json:"cwd"`
	RawPath string `json:"raw_path"`
}

// Payload is the normalized scan content carried by an envelope. A planned
// scan has empty Results and Extras["planned"] set.
type Payload struct {
	ScanType string         `json:"scan_type"`
	Targets  []string       `json:"targets"`
	Params   map[string]any `json:"params"`
	Results  []*Host        `json:"results"`
	Extras   map[string]any `json:"extras"`
}

// MarshalJSON writes the payload in the persisted record form: results are
// rendered through ResultMaps, so stored payloads keep the original key names
// (address, state, hostname, ports) the content address is computed over.
func (p Payload) MarshalJSON() ([]byte, error) {
	targets := p.Targets
	if targets == nil {
		targets = []string{}
	}
	params := p.Params
	if params == nil {
		params = map[string]any{}
	}
	extras := p.Extras
	if extras == nil {
		extras = map[string]any{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any{
		"scan_type": p.ScanType,
		"targets":   targets,
		"params":    params,
		"results":   ResultMaps(p.Results),
		"extras":    extras,
	}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ResultMaps renders hosts into the result map form shared by the persisted
// payload and the content address. The four base keys are always present,
// null when absent; text-only extras (os, service_info, scripts) are added
// only when populated.
func ResultMaps(hosts []*Host) []any {
	out := make([]any, 0, len(hosts))
	for _, h := range hosts {
		m := map[string]any{
			"address":  nullable(h.Address),
			"state":    string(h.Status),
			"hostname": nullable(h.Hostname),
			"ports":    portMaps(h.Ports),
		}
		if !h.OS.Empty() {
			os := map[string]any{}
			if h.OS.DeviceType != "" {
				os["device_type"] = h.OS.DeviceType
			}
			if h.OS.Running != "" {
				os["running"] = h.OS.Running
			}
			if h.OS.Details != "" {
				os["details"] = h.OS.Details
			}
			m["os"] = os
		}
		if h.ServiceInfo != "" {
			m["service_info"] = h.ServiceInfo
		}
		if len(h.ScriptResults) > 0 {
			scripts := map[string]any{}
			for k, v := range h.ScriptResults {
				scripts[k] = v
			}
			m["scripts"] = scripts
		}
		out = append(out, m)
	}
	return out
}

func portMaps(ports []Port) []any {
	out := make([]any, 0, len(ports))
	for _, p := range ports {
		var scripts any
		if len(p.Scripts) > 0 {
			list := make([]any, 0, len(p.Scripts))
			for _, s := range p.Scripts {
				list = append(list, map[string]any{"id": s.ID, "output": s.Output})
			}
			scripts = list
		}
		out = append(out, map[string]any{
			"port":    p.Number,
			"proto":   p.Protocol,
			"state":   nullable(p.State),
			"service": nullable(p.Service),
			"product": nullable(p.Product),
			"version": nullable(p.Version),
			"scripts": scripts,
		})
	}
	return out
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ParserMeta identifies the parser that produced a payload.
type ParserMeta struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Envelope is the persisted unit: a payload plus provenance, a content
// address, and the ingestion timestamp. Envelopes are never mutated after
// construction; re-ingesting identical content yields a new envelope with the
// same ID and a fresh ObservedAt.
type Envelope struct {
	Schema     string     `json:"_schema"`
	ID         string     `json:"_id"`
	ObservedAt string     `json:"observed_at"`
	Source     Source     `json:"source"`
	Payload    Payload    `json:"payload"`
	Parser     ParserMeta `json:"_parser"`
}

// Bundle is the batch JSON export for the multi-file text variant.
type Bundle struct {
	SchemaVersion string        `json:"schema_version"`
	SourceFiles   []string      `json:"source_files"`
	Results       []*ScanReport `json:"results"`
}
