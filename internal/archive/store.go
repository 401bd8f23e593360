// Package archive persists the Builder Team's durable history: session
// records, every user/team exchange, and snapshots of each member's
// long-term memory, backed by SQLite.
//
// The archive is auxiliary — the team operates fully without it, so
// every caller treats a nil *Store as "archiving disabled".
package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// timeNow is stubbed in tests for deterministic timestamps.
var timeNow = time.Now

// Session is a recorded builder session.
type Session struct {
	ID          string  `json:"id"`
	ProjectName string  `json:"project_name"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	EndedAt     *string `json:"ended_at,omitempty"`
}

// Exchange is one user input and the team's response to it.
type Exchange struct {
	ID        int64  `json:"id"`
	SessionID string `json:"session_id"`
	Responder string `json:"responder"`
	Input     string `json:"input"`
	Response  string `json:"response"`
	CreatedAt string `json:"created_at"`
}

// Stats holds aggregate archive statistics.
type Stats struct {
	TotalSessions  int `json:"total_sessions"`
	TotalExchanges int `json:"total_exchanges"`
	MemoryEntries  int `json:"memory_entries"`
}

// Store is the SQLite-backed archive.
type Store struct {
	db *sql.DB
}

// Open creates or opens the archive database under dataDir.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("archive: create data dir: %w", err)
	}

	db, err := openDB("sqlite", filepath.Join(dataDir, "archive.db"))
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("archive: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("archive: migration: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			project_name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TEXT NOT NULL,
			ended_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS exchanges (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			responder TEXT NOT NULL,
			input TEXT NOT NULL,
			response TEXT NOT NULL,
			created_at TEXT NOT NULL,
			FOREIGN KEY (session_id) REFERENCES sessions(id)
		)`,
		`CREATE TABLE IF NOT EXISTS memory_entries (
			agent TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (agent, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_exchanges_session ON exchanges(session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database handle. Safe on a nil store.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func now() string {
	return timeNow().UTC().Format(time.RFC3339)
}

// RecordSession registers a new session. Safe on a nil store.
func (s *Store) RecordSession(id, projectName string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO sessions (id, project_name, status, created_at) VALUES (?, ?, 'active', ?)`,
		id, projectName, now(),
	)
	if err != nil {
		return fmt.Errorf("archive: record session: %w", err)
	}
	return nil
}

// EndSession marks a session finished with the given status. Safe on a
// nil store.
func (s *Store) EndSession(id, status string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`UPDATE sessions SET status = ?, ended_at = ? WHERE id = ?`,
		status, now(), id,
	)
	if err != nil {
		return fmt.Errorf("archive: end session: %w", err)
	}
	return nil
}

// RecordExchange appends one exchange to a session's history. Safe on
// a nil store.
func (s *Store) RecordExchange(sessionID, responder, input, response string) error {
	if s == nil {
		return nil
	}
	_, err := s.db.Exec(
		`INSERT INTO exchanges (session_id, responder, input, response, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, responder, input, response, now(),
	)
	if err != nil {
		return fmt.Errorf("archive: record exchange: %w", err)
	}
	return nil
}

// Exchanges returns a session's exchanges in insertion order.
func (s *Store) Exchanges(sessionID string) ([]Exchange, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.Query(
		`SELECT id, session_id, responder, input, response, created_at
		 FROM exchanges WHERE session_id = ? ORDER BY id`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: list exchanges: %w", err)
	}
	defer rows.Close()
	return scanExchanges(rows)
}

// SearchExchanges returns exchanges whose input or response contains
// the query text, newest first.
func (s *Store) SearchExchanges(query string, limit int) ([]Exchange, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + query + "%"
	rows, err := s.db.Query(
		`SELECT id, session_id, responder, input, response, created_at
		 FROM exchanges WHERE input LIKE ? OR response LIKE ?
		 ORDER BY id DESC LIMIT ?`,
		pattern, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: search exchanges: %w", err)
	}
	defer rows.Close()
	return scanExchanges(rows)
}

func scanExchanges(rows *sql.Rows) ([]Exchange, error) {
	var result []Exchange
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.Responder, &ex.Input, &ex.Response, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("archive: scan exchange: %w", err)
		}
		result = append(result, ex)
	}
	return result, rows.Err()
}

// SaveMemory snapshots an agent's long-term memory, one row per key.
// Values are stored as JSON. Safe on a nil store.
func (s *Store) SaveMemory(agent string, entries map[string]any) error {
	if s == nil {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("archive: save memory: %w", err)
	}
	defer tx.Rollback()

	stamp := now()
	for key, value := range entries {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("archive: marshal memory %s/%s: %w", agent, key, err)
		}
		if _, err := tx.Exec(
			`INSERT INTO memory_entries (agent, key, value, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(agent, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			agent, key, string(data), stamp,
		); err != nil {
			return fmt.Errorf("archive: save memory %s/%s: %w", agent, key, err)
		}
	}
	return tx.Commit()
}

// LoadMemory restores an agent's long-term memory snapshot.
func (s *Store) LoadMemory(agent string) (map[string]any, error) {
	if s == nil {
		return nil, nil
	}
	rows, err := s.db.Query(`SELECT key, value FROM memory_entries WHERE agent = ?`, agent)
	if err != nil {
		return nil, fmt.Errorf("archive: load memory: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]any)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("archive: scan memory entry: %w", err)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		entries[key] = value
	}
	return entries, rows.Err()
}

// Stats returns aggregate counts across the archive.
func (s *Store) Stats() (Stats, error) {
	if s == nil {
		return Stats{}, nil
	}
	var st Stats
	queries := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM sessions`, &st.TotalSessions},
		{`SELECT COUNT(*) FROM exchanges`, &st.TotalExchanges},
		{`SELECT COUNT(*) FROM memory_entries`, &st.MemoryEntries},
	}
	for _, q := range queries {
		if err := s.db.QueryRow(q.query).Scan(q.dest); err != nil {
			return Stats{}, fmt.Errorf("archive: stats: %w", err)
		}
	}
	return st, nil
}
