// Package store implements the storage engine: an embedded SQLite-backed
// node/edge store with optimistic versioning, soft deletion, and the
// traversal primitives the rest of the system is built on.
package store

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	id          TEXT NOT NULL,
	namespace   TEXT NOT NULL,
	type        TEXT NOT NULL,
	label       TEXT NOT NULL,
	properties  TEXT NOT NULL DEFAULT '{}',
	agent_id    TEXT NOT NULL DEFAULT '',
	observed_at INTEGER NOT NULL,
	confidence  REAL NOT NULL,
	version     INTEGER NOT NULL DEFAULT 1,
	seq         INTEGER NOT NULL,
	deleted_at  INTEGER,
	PRIMARY KEY (id, namespace)
);
CREATE INDEX IF NOT EXISTS idx_nodes_ns_seq  ON nodes(namespace, seq);
CREATE INDEX IF NOT EXISTS idx_nodes_ns_type ON nodes(namespace, type);

CREATE TABLE IF NOT EXISTS edges (
	id            TEXT NOT NULL,
	namespace     TEXT NOT NULL,
	source_id     TEXT NOT NULL,
	target_id     TEXT NOT NULL,
	relation      TEXT NOT NULL,
	weight        REAL NOT NULL DEFAULT 1,
	bidirectional INTEGER NOT NULL DEFAULT 0,
	agent_id      TEXT NOT NULL DEFAULT '',
	observed_at   INTEGER NOT NULL,
	confidence    REAL NOT NULL,
	version       INTEGER NOT NULL DEFAULT 1,
	seq           INTEGER NOT NULL,
	deleted_at    INTEGER,
	PRIMARY KEY (id, namespace)
);
CREATE INDEX IF NOT EXISTS idx_edges_ns_source ON edges(namespace, source_id);
CREATE INDEX IF NOT EXISTS idx_edges_ns_target ON edges(namespace, target_id);
CREATE INDEX IF NOT EXISTS idx_edges_ns_seq    ON edges(namespace, seq);

CREATE TABLE IF NOT EXISTS meta (
	namespace TEXT PRIMARY KEY,
	seq       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS watermarks (
	peer      TEXT NOT NULL,
	namespace TEXT NOT NULL,
	last_seq  INTEGER NOT NULL DEFAULT 0,
	synced_at INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (peer, namespace)
);

CREATE TABLE IF NOT EXISTS sync_rounds (
	id          TEXT PRIMARY KEY,
	peer        TEXT NOT NULL,
	namespace   TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  INTEGER NOT NULL,
	finished_at INTEGER,
	pushed      INTEGER NOT NULL DEFAULT 0,
	applied     INTEGER NOT NULL DEFAULT 0,
	conflicts   INTEGER NOT NULL DEFAULT 0,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_rounds_peer ON sync_rounds(namespace, peer, started_at);
`

// Store wraps a SQLite database scoped to one federation namespace. One
// physical file can host multiple namespaces without id collision; each
// Store instance reads and writes exactly one of them.
//
// Writes are serialized by an internal mutex; every mutation completes
// before returning and there are no background goroutines.
type Store struct {
	mu        sync.Mutex
	conn      *sql.DB
	Path      string
	Namespace string
}

// Open opens (or creates) the database at path with WAL mode and foreign
// keys enabled, runs migrations, and scopes the handle to namespace.
func Open(path, namespace string) (*Store, error) {
	if namespace == "" {
		namespace = "default"
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	if _, err := conn.Exec(`INSERT OR IGNORE INTO meta (namespace, seq) VALUES (?, 0)`, namespace); err != nil {
		conn.Close()
		return nil, fmt.Errorf("seeding sequence counter: %w", err)
	}

	return &Store{conn: conn, Path: path, Namespace: namespace}, nil
}

// Close releases the underlying database handle. Callers own the lifecycle
// and must call it on shutdown.
func (s *Store) Close() error {
	return s.conn.Close()
}

// CurrentSeq returns the highest change sequence allocated so far.
func (s *Store) CurrentSeq() (int64, error) {
	var seq int64
	err := s.conn.QueryRow(`SELECT seq FROM meta WHERE namespace = ?`, s.Namespace).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("reading sequence counter: %w", err)
	}
	return seq, nil
}

// nextSeq allocates the next change sequence inside tx.
func (s *Store) nextSeq(tx *sql.Tx) (int64, error) {
	if _, err := tx.Exec(`UPDATE meta SET seq = seq + 1 WHERE namespace = ?`, s.Namespace); err != nil {
		return 0, err
	}
	var seq int64
	if err := tx.QueryRow(`SELECT seq FROM meta WHERE namespace = ?`, s.Namespace).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}

// withTx runs fn inside a write transaction under the store mutex.
func (s *Store) withTx(fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
