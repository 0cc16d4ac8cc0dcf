// Package store persists envelopes across the two sinks: an append-only JSONL
// log that keeps full ingestion history, and a SQLite table upserted by
// content address that keeps the latest state per scan.
package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"scanledger/internal/models"
)

// recordsSchema holds one row per content address; all non-key columns are
// replaced on conflict.
const recordsSchema = `
CREATE TABLE IF NOT EXISTS records(
	id TEXT PRIMARY KEY,
	schema TEXT,
	observed_at TEXT,
	command TEXT,
	payload TEXT
);
`

const upsertRecord = `
INSERT INTO records(id, schema, observed_at, command, payload)
VALUES(?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	schema=excluded.schema,
	observed_at=excluded.observed_at,
	command=excluded.command,
	payload=excluded.payload
`

// Gateway writes envelopes to both sinks. Each Persist call opens, uses, and
// closes the log file and the database; nothing is held across calls.
// Concurrent pipelines against the same paths are not coordinated: upserts to
// one id race at SQLite's isolation level and appends may interleave at line
// granularity.
type Gateway struct {
	JSONLPath string
	DBPath    string
	logger    zerolog.Logger
}

// NewGateway creates a gateway over the given sink paths.
func NewGateway(jsonlPath, dbPath string) *Gateway {
	return &Gateway{
		JSONLPath: jsonlPath,
		DBPath:    dbPath,
		logger:    log.With().Str("component", "store").Logger(),
	}
}

// Persist attempts both writes for one envelope: append to the log, then
// upsert into the records table. A sink that cannot be opened or written
// fails the call with a PersistenceError; no partial-success state is
// modeled.
func (g *Gateway) Persist(env models.Envelope) error {
	if err := g.appendJSONL(env); err != nil {
		return &PersistenceError{Sink: "jsonl", Path: g.JSONLPath, Err: err}
	}
	if err := g.upsert(env); err != nil {
		return &PersistenceError{Sink: "sqlite", Path: g.DBPath, Err: err}
	}
	g.logger.Debug().
		Str("id", env.ID).
		Str("schema", env.Schema).
		Msg("Envelope persisted")
	return nil
}

// appendJSONL writes the full envelope as one JSON line. The log never
// deduplicates: ingesting the same logical scan twice produces two lines.
func (g *Gateway) appendJSONL(env models.Envelope) error {
	if dir := filepath.Dir(g.JSONLPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(g.JSONLPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log for append: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		return fmt.Errorf("failed to append envelope: %w", err)
	}
	return nil
}

// upsert inserts or replaces the record keyed by the envelope id, so a given
// logical scan keeps exactly one row reflecting its most recent ingestion.
func (g *Gateway) upsert(env models.Envelope) error {
	if dir := filepath.Dir(g.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", g.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(recordsSchema); err != nil {
		return fmt.Errorf("failed to initialize records schema: %w", err)
	}

	payload, err := marshalPayload(env.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	if _, err := db.Exec(upsertRecord,
		env.ID, env.Schema, env.ObservedAt, env.Source.Command, payload,
	); err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func marshalPayload(p models.Payload) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}

// PersistenceError reports an unreachable or unwritable sink. It is fatal for
// the ingestion that raised it.
type PersistenceError struct {
	Sink string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist to %s sink %s: %v", e.Sink, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
