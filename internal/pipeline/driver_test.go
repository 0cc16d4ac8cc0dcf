package pipeline

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"scanledger/internal/models"
	"scanledger/internal/store"
)

func setupTestDriver(t *testing.T) (*Driver, *store.Gateway, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "scanledger-pipeline-test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	gw := store.NewGateway(filepath.Join(dir, "knowledge.jsonl"), filepath.Join(dir, "knowledge.db"))
	return NewDriver(gw), gw, dir
}

func readLogEnvelopes(t *testing.T, path string) []models.Envelope {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}

	var out []models.Envelope
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		if line == "" {
			continue
		}
		var env models.Envelope
		if err := json.Unmarshal([]byte(line), &env); err != nil {
			t.Fatalf("Bad log line %q: %v", line, err)
		}
		out = append(out, env)
	}
	return out
}

func countRecords(t *testing.T, dbPath string) int {
	t.Helper()
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		t.Fatalf("Failed to count records: %v", err)
	}
	return n
}

// TestIngestPlansSingleObject checks target splitting and params derivation
// for one generator item.
func TestIngestPlansSingleObject(t *testing.T) {
	driver, gw, _ := setupTestDriver(t)

	doc := `{"action": "scan_ports", "args": {"targets": "10.0.0.1 10.0.0.2", "ports": "80"}}`
	summary, err := driver.IngestPlans(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("IngestPlans failed: %v", err)
	}
	if summary.Envelopes != 1 || summary.Failures != 0 {
		t.Fatalf("Unexpected summary: %+v", summary)
	}

	envs := readLogEnvelopes(t, gw.JSONLPath)
	if len(envs) != 1 {
		t.Fatalf("Expected 1 log line, got %d", len(envs))
	}

	env := envs[0]
	if env.Schema != "network.nmap.plan.v1" {
		t.Errorf("Expected plan schema, got %q", env.Schema)
	}
	if env.Payload.ScanType != "scan_ports" {
		t.Errorf("Expected scan_type from action, got %q", env.Payload.ScanType)
	}
	if !reflect.DeepEqual(env.Payload.Targets, []string{"10.0.0.1", "10.0.0.2"}) {
		t.Errorf("Expected split targets, got %v", env.Payload.Targets)
	}
	if !reflect.DeepEqual(env.Payload.Params, map[string]any{"ports": "80"}) {
		t.Errorf("Expected params without targets, got %v", env.Payload.Params)
	}
	if len(env.Payload.Results) != 0 {
		t.Errorf("Expected empty results for a planned scan, got %v", env.Payload.Results)
	}
	if env.Payload.Extras["planned"] != true {
		t.Errorf("Expected the planned marker, got %v", env.Payload.Extras)
	}
	if env.Source.Command != "nmap" {
		t.Errorf("Expected the default command, got %q", env.Source.Command)
	}
	if env.Source.RawPath != "(generator-json)" {
		t.Errorf("Expected the generator raw_path marker, got %q", env.Source.RawPath)
	}
}

// TestIngestPlansList checks list input and per-item failure isolation.
func TestIngestPlansList(t *testing.T) {
	driver, gw, _ := setupTestDriver(t)

	doc := `[
		{"action": "host_discovery", "args": {"targets": "10.0.0.0/24"}},
		{"action": "scan_ports", "args": "not-an-object"},
		{"action": "os_detect", "args": {"targets": "10.0.0.5"}, "command": "sudo nmap"}
	]`
	summary, err := driver.IngestPlans(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("IngestPlans failed: %v", err)
	}
	if summary.Envelopes != 2 {
		t.Errorf("Expected 2 envelopes, got %d", summary.Envelopes)
	}
	if summary.Failures != 1 {
		t.Errorf("Expected 1 failure for the malformed item, got %d", summary.Failures)
	}

	envs := readLogEnvelopes(t, gw.JSONLPath)
	if len(envs) != 2 {
		t.Fatalf("Expected 2 log lines, got %d", len(envs))
	}
	if envs[1].Source.Command != "sudo nmap" {
		t.Errorf("Expected the item command to carry over, got %q", envs[1].Source.Command)
	}
}

func TestIngestPlansInvalidDocument(t *testing.T) {
	driver, _, _ := setupTestDriver(t)

	for _, doc := range []string{`"just a string"`, `42`, `not json at all`} {
		_, err := driver.IngestPlans(strings.NewReader(doc))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Document %q: expected a ValidationError, got %v", doc, err)
		}
	}
}

// TestIngestPlansIdempotent checks that the same plan ingested twice keeps
// one database row.
func TestIngestPlansIdempotent(t *testing.T) {
	driver, gw, _ := setupTestDriver(t)

	doc := `{"action": "scan_ports", "args": {"targets": "10.0.0.1", "ports": "443"}}`
	for i := 0; i < 2; i++ {
		if _, err := driver.IngestPlans(strings.NewReader(doc)); err != nil {
			t.Fatalf("IngestPlans failed: %v", err)
		}
	}

	if n := len(readLogEnvelopes(t, gw.JSONLPath)); n != 2 {
		t.Errorf("Expected 2 log lines, got %d", n)
	}
	if n := countRecords(t, gw.DBPath); n != 1 {
		t.Errorf("Expected 1 record, got %d", n)
	}
}

func TestIngestXMLFile(t *testing.T) {
	driver, gw, dir := setupTestDriver(t)

	doc := `<nmaprun args="nmap -sV -oX scan.xml 198.51.100.7">
  <host>
    <status state="up"/>
    <address addr="198.51.100.7" addrtype="ipv4"/>
    <ports><port protocol="tcp" portid="22"><state state="open"/><service name="ssh"/></port></ports>
  </host>
</nmaprun>`
	path := filepath.Join(dir, "scan.xml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	env, err := driver.IngestXMLFile(path, "")
	if err != nil {
		t.Fatalf("IngestXMLFile failed: %v", err)
	}
	if env.Schema != "network.nmap.v1" {
		t.Errorf("Expected the XML schema, got %q", env.Schema)
	}
	if len(env.Payload.Results) != 1 {
		t.Errorf("Expected 1 result host, got %d", len(env.Payload.Results))
	}
	if env.Parser.Name != "nmap_xml" {
		t.Errorf("Unexpected parser meta: %+v", env.Parser)
	}
	if n := countRecords(t, gw.DBPath); n != 1 {
		t.Errorf("Expected 1 record, got %d", n)
	}
}

// TestIngestXMLFileRecordShape pins the raw persisted payload form in both
// sinks: host maps keep the original record key names with explicit nulls,
// not the bundle export tags.
func TestIngestXMLFileRecordShape(t *testing.T) {
	driver, gw, dir := setupTestDriver(t)

	doc := `<nmaprun><host><status state="up"/><address addr="198.51.100.7" addrtype="ipv4"/>
<ports><port protocol="tcp" portid="22"><state state="open"/><service name="ssh"/></port></ports>
</host></nmaprun>`
	path := filepath.Join(dir, "scan.xml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}
	if _, err := driver.IngestXMLFile(path, ""); err != nil {
		t.Fatalf("IngestXMLFile failed: %v", err)
	}

	raw, err := os.ReadFile(gw.JSONLPath)
	if err != nil {
		t.Fatalf("Failed to read log: %v", err)
	}

	db, err := sql.Open("sqlite3", gw.DBPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	var stored string
	if err := db.QueryRow("SELECT payload FROM records").Scan(&stored); err != nil {
		t.Fatalf("Failed to read stored payload: %v", err)
	}

	for _, line := range []string{string(raw), stored} {
		for _, want := range []string{
			`"address":"198.51.100.7"`, `"hostname":null`, `"state":"up"`,
			`"product":null`, `"scripts":null`,
		} {
			if !strings.Contains(line, want) {
				t.Errorf("Expected persisted payload to contain %s, got %s", want, line)
			}
		}
		for _, reject := range []string{`"ip":`, `"status":`, `"os":{}`} {
			if strings.Contains(line, reject) {
				t.Errorf("Persisted payload carries bundle-tag key %s: %s", reject, line)
			}
		}
	}
}

func TestIngestXMLFileMalformed(t *testing.T) {
	driver, gw, dir := setupTestDriver(t)

	path := filepath.Join(dir, "broken.xml")
	if err := os.WriteFile(path, []byte("<nmaprun><host>"), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	if _, err := driver.IngestXMLFile(path, ""); err == nil {
		t.Fatal("Expected an error for a malformed document")
	}
	if _, err := os.Stat(gw.JSONLPath); !os.IsNotExist(err) {
		t.Errorf("Expected no sink writes for a failed parse")
	}
}

// TestIngestTextFiles checks the text batch path end to end, including the
// bundle export and the skip-and-continue behavior for missing files.
func TestIngestTextFiles(t *testing.T) {
	driver, gw, dir := setupTestDriver(t)

	report := `# Nmap 7.93 scan initiated Fri as: nmap -sS 192.0.2.7
Nmap scan report for 192.0.2.7
Host is up.
PORT STATE SERVICE
22/tcp open ssh
`
	path := filepath.Join(dir, "scan.txt")
	if err := os.WriteFile(path, []byte(report), 0644); err != nil {
		t.Fatalf("Failed to write input: %v", err)
	}

	bundleOut := filepath.Join(dir, "output", "bundle.json")
	missing := filepath.Join(dir, "missing.txt")
	summary, bundle, err := driver.IngestTextFiles([]string{path, missing}, bundleOut)
	if err != nil {
		t.Fatalf("IngestTextFiles failed: %v", err)
	}

	if summary.Files != 1 || summary.Envelopes != 1 || summary.Hosts != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if summary.Failures != 1 {
		t.Errorf("Expected the missing file to count as a failure, got %d", summary.Failures)
	}

	if len(bundle.Results) != 1 || len(bundle.SourceFiles) != 1 {
		t.Fatalf("Unexpected bundle shape: %+v", bundle)
	}
	if bundle.SchemaVersion != "1.0" {
		t.Errorf("Expected bundle schema version 1.0, got %q", bundle.SchemaVersion)
	}

	envs := readLogEnvelopes(t, gw.JSONLPath)
	if len(envs) != 1 {
		t.Fatalf("Expected 1 log line, got %d", len(envs))
	}
	if envs[0].Schema != "network.nmap.text.v1" {
		t.Errorf("Expected the text schema, got %q", envs[0].Schema)
	}
	if envs[0].Source.Command != "nmap -sS 192.0.2.7" {
		t.Errorf("Expected the command from the report header, got %q", envs[0].Source.Command)
	}

	raw, err := os.ReadFile(bundleOut)
	if err != nil {
		t.Fatalf("Failed to read bundle: %v", err)
	}
	var onDisk models.Bundle
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		t.Fatalf("Bundle is not valid JSON: %v", err)
	}
	if len(onDisk.Results) != 1 {
		t.Errorf("Expected 1 report in the written bundle, got %d", len(onDisk.Results))
	}
}

func TestWriteSamples(t *testing.T) {
	driver, _, dir := setupTestDriver(t)

	samplesDir := filepath.Join(dir, "samples")
	paths, err := WriteSamples(samplesDir)
	if err != nil {
		t.Fatalf("WriteSamples failed: %v", err)
	}
	if len(paths) != 4 {
		t.Fatalf("Expected 4 sample files, got %d", len(paths))
	}

	// Every sample must round-trip through the text ingestion.
	summary, _, err := driver.IngestTextFiles(paths, "")
	if err != nil {
		t.Fatalf("Failed to ingest samples: %v", err)
	}
	if summary.Failures != 0 {
		t.Errorf("Expected no failures ingesting samples, got %d", summary.Failures)
	}
	if summary.Envelopes != 4 {
		t.Errorf("Expected 4 envelopes, got %d", summary.Envelopes)
	}
	if summary.Hosts == 0 {
		t.Errorf("Expected sample reports to contain hosts")
	}
}

func TestNormalizeTargets(t *testing.T) {
	tests := []struct {
		in   any
		want []string
	}{
		{"10.0.0.1 10.0.0.2", []string{"10.0.0.1", "10.0.0.2"}},
		{"  10.0.0.1\t10.0.0.2  ", []string{"10.0.0.1", "10.0.0.2"}},
		{"", []string{}},
		{nil, []string{}},
		{42, []string{}},
	}
	for _, tt := range tests {
		if got := normalizeTargets(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("normalizeTargets(%v): expected %v, got %v", tt.in, tt.want, got)
		}
	}
}
