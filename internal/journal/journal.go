// Package journal persists printer telemetry history to SQLite.
//
// The embedding host typically has its own recorder, but the adapter keeps
// a local journal of lifecycle transitions and periodic snapshot samples so
// connection drops and job history can be diagnosed after the fact.
package journal

import (
	"fmt"
	"log"
	"sync"
	"time"

	// SQLite driver - imported for side effects (registers the driver).
	// Using modernc.org/sqlite which is a pure-Go implementation that
	// doesn't require CGO, making cross-compilation and testing easier.
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/crealink/crealink/internal/printererr"
	"github.com/crealink/crealink/internal/state"
)

// Journal records telemetry rows. It supports concurrent access through
// internal locking; in practice only the session's receive goroutine
// writes.
type Journal struct {
	db *sql.DB
	mu sync.Mutex
}

// Transition is one recorded lifecycle change.
type Transition struct {
	At   time.Time
	From state.Lifecycle
	To   state.Lifecycle
}

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	at_unix_ms  INTEGER NOT NULL,
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS samples (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	at_unix_ms   INTEGER NOT NULL,
	status       TEXT NOT NULL,
	progress     REAL NOT NULL,
	layer        INTEGER NOT NULL,
	total_layers INTEGER NOT NULL,
	nozzle_temp  REAL NOT NULL,
	bed_temp     REAL NOT NULL
);
`

// Open opens or creates the journal database at the given path.
// Use ":memory:" for an in-memory database (useful for testing).
func Open(path string) (*Journal, error) {
	log.Printf("journal: opening database at %s", path)

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, printererr.Wrap(printererr.CodeJournalOpenFailed, "open database", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, printererr.Wrap(printererr.CodeJournalOpenFailed, "ping database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, printererr.Wrap(printererr.CodeJournalOpenFailed, "init schema", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordTransition persists one lifecycle change.
func (j *Journal) RecordTransition(from, to state.Lifecycle, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO transitions (at_unix_ms, from_status, to_status) VALUES (?, ?, ?)`,
		at.UnixMilli(), string(from), string(to),
	)
	if err != nil {
		return printererr.Wrap(printererr.CodeJournalWriteFailed, "insert transition", err)
	}
	return nil
}

// RecordSample persists one snapshot sample. Bed temperature is taken from
// zone 0, the only zone most printers populate.
func (j *Journal) RecordSample(snap state.Snapshot, at time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.Exec(
		`INSERT INTO samples (at_unix_ms, status, progress, layer, total_layers, nozzle_temp, bed_temp)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		at.UnixMilli(), string(snap.Status), snap.Progress, snap.Layer, snap.TotalLayers,
		snap.Nozzle.Current, snap.Bed[0].Current,
	)
	if err != nil {
		return printererr.Wrap(printererr.CodeJournalWriteFailed, "insert sample", err)
	}
	return nil
}

// RecentTransitions returns up to limit transitions, newest first.
func (j *Journal) RecentTransitions(limit int) ([]Transition, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT at_unix_ms, from_status, to_status FROM transitions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var ms int64
		var from, to string
		if err := rows.Scan(&ms, &from, &to); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, Transition{
			At:   time.UnixMilli(ms),
			From: state.Lifecycle(from),
			To:   state.Lifecycle(to),
		})
	}
	return out, rows.Err()
}
