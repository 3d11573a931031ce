package store

import (
	"database/sql"
	"fmt"
)

// Replication primitives. Replication never touches row representations
// directly: deltas are computed and applied through these operations, which
// see tombstones (unlike the ordinary read path) so deletions converge.

// ChangedNodesSince returns every node row (tombstones included) whose
// change sequence is greater than seq, in sequence order.
func (s *Store) ChangedNodesSince(seq int64) ([]Node, error) {
	rows, err := s.conn.Query(`
		SELECT `+nodeColumns+` FROM nodes
		WHERE namespace = ? AND seq > ?
		ORDER BY seq
	`, s.Namespace, seq)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// ChangedEdgesSince returns every edge row (tombstones included) whose
// change sequence is greater than seq, in sequence order.
func (s *Store) ChangedEdgesSince(seq int64) ([]Edge, error) {
	return s.queryEdges(`
		SELECT `+edgeColumns+` FROM edges
		WHERE namespace = ? AND seq > ?
		ORDER BY seq
	`, s.Namespace, seq)
}

// GetNodeRecord returns the raw node row by id, tombstones visible, or nil.
func (s *Store) GetNodeRecord(id string) (*Node, error) {
	row := s.conn.QueryRow(`
		SELECT `+nodeColumns+` FROM nodes WHERE id = ? AND namespace = ?
	`, id, s.Namespace)
	n, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// GetEdgeRecord returns the raw edge row by id, tombstones visible, or nil.
func (s *Store) GetEdgeRecord(id string) (*Edge, error) {
	row := s.conn.QueryRow(`
		SELECT `+edgeColumns+` FROM edges WHERE id = ? AND namespace = ?
	`, id, s.Namespace)
	e, err := scanEdge(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// PutNodeRecord writes a replicated node row verbatim, preserving its
// version and tombstone state but assigning a fresh local change sequence
// so the write propagates onward to this store's own peers.
func (s *Store) PutNodeRecord(n Node) error {
	if n.ID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if err := validateConfidence(n.Confidence); err != nil {
		return err
	}
	props, err := marshalProperties(n.Properties)
	if err != nil {
		return err
	}
	return s.withTx(func(tx *sql.Tx) error {
		seq, err := s.nextSeq(tx)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO nodes (id, namespace, type, label, properties, agent_id, observed_at, confidence, version, seq, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id, namespace) DO UPDATE SET
				type = excluded.type, label = excluded.label, properties = excluded.properties,
				agent_id = excluded.agent_id, observed_at = excluded.observed_at,
				confidence = excluded.confidence, version = excluded.version,
				seq = excluded.seq, deleted_at = excluded.deleted_at
		`, n.ID, s.Namespace, n.Type, n.Label, props, n.Source.AgentID,
			n.Source.Timestamp, n.Confidence, n.Version, seq, n.DeletedAt)
		return err
	})
}

// PutEdgeRecord writes a replicated edge row verbatim with a fresh local
// change sequence. Endpoint existence is not enforced here: the matching
// node records may arrive later in the same delta, and reads already hide
// edges with missing or tombstoned endpoints.
func (s *Store) PutEdgeRecord(e Edge) error {
	if e.ID == "" {
		return &ValidationError{Field: "id", Reason: "required"}
	}
	if err := validateConfidence(e.Confidence); err != nil {
		return err
	}
	return s.withTx(func(tx *sql.Tx) error {
		seq, err := s.nextSeq(tx)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO edges (id, namespace, source_id, target_id, relation, weight, bidirectional, agent_id, observed_at, confidence, version, seq, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id, namespace) DO UPDATE SET
				source_id = excluded.source_id, target_id = excluded.target_id,
				relation = excluded.relation, weight = excluded.weight,
				bidirectional = excluded.bidirectional, agent_id = excluded.agent_id,
				observed_at = excluded.observed_at, confidence = excluded.confidence,
				version = excluded.version, seq = excluded.seq, deleted_at = excluded.deleted_at
		`, e.ID, s.Namespace, e.SourceID, e.TargetID, e.Relation, e.Weight, e.Bidirectional,
			e.Source.AgentID, e.Source.Timestamp, e.Confidence, e.Version, seq, e.DeletedAt)
		return err
	})
}

// Watermark returns the last-synced change sequence checkpoint for peer,
// zero if the peer has never synced.
func (s *Store) Watermark(peer string) (int64, error) {
	var seq int64
	err := s.conn.QueryRow(`
		SELECT last_seq FROM watermarks WHERE peer = ? AND namespace = ?
	`, peer, s.Namespace).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

// SetWatermark advances the checkpoint for peer. Watermarks only move
// forward; a lower value is ignored.
func (s *Store) SetWatermark(peer string, seq int64) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO watermarks (peer, namespace, last_seq, synced_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (peer, namespace) DO UPDATE SET
				last_seq = MAX(watermarks.last_seq, excluded.last_seq),
				synced_at = excluded.synced_at
		`, peer, s.Namespace, seq, nowMillis())
		return err
	})
}

// RoundStatus is the lifecycle of one replication round.
type RoundStatus string

const (
	RoundRunning   RoundStatus = "running"
	RoundCompleted RoundStatus = "completed"
	RoundFailed    RoundStatus = "failed"
)

// Round is one recorded replication round for a (namespace, peer) pair.
type Round struct {
	ID         string      `json:"id"`
	Peer       string      `json:"peer"`
	Status     RoundStatus `json:"status"`
	StartedAt  int64       `json:"startedAt"`
	FinishedAt *int64      `json:"finishedAt,omitempty"`
	Pushed     int         `json:"pushed"`
	Applied    int         `json:"applied"`
	Conflicts  int         `json:"conflicts"`
	Error      string      `json:"error,omitempty"`
}

// BeginRound records a running round for peer and returns its id.
func (s *Store) BeginRound(id, peer string) error {
	return s.withTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO sync_rounds (id, peer, namespace, status, started_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, peer, s.Namespace, RoundRunning, nowMillis())
		return err
	})
}

// FinishRound records the outcome of a round. A round is never left
// half-recorded: it finishes as completed or failed.
func (s *Store) FinishRound(id string, status RoundStatus, pushed, applied, conflicts int, errMsg string) error {
	return s.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE sync_rounds
			SET status = ?, finished_at = ?, pushed = ?, applied = ?, conflicts = ?, error = ?
			WHERE id = ?
		`, status, nowMillis(), pushed, applied, conflicts, errMsg, id)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return fmt.Errorf("finishing round %s: %w", id, ErrNotFound)
		}
		return nil
	})
}

// RecentRounds returns the most recent rounds for peer, newest first.
// An empty peer matches all peers.
func (s *Store) RecentRounds(peer string, limit int) ([]Round, error) {
	if limit <= 0 {
		limit = 10
	}
	q := `SELECT id, peer, status, started_at, finished_at, pushed, applied, conflicts, COALESCE(error, '')
	      FROM sync_rounds WHERE namespace = ?`
	args := []any{s.Namespace}
	if peer != "" {
		q += ` AND peer = ?`
		args = append(args, peer)
	}
	q += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []Round
	for rows.Next() {
		var r Round
		if err := rows.Scan(&r.ID, &r.Peer, &r.Status, &r.StartedAt, &r.FinishedAt,
			&r.Pushed, &r.Applied, &r.Conflicts, &r.Error); err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}
