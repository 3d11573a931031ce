package store

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

const edgeColumns = `id, source_id, target_id, relation, weight, bidirectional, agent_id, observed_at, confidence, version, seq, deleted_at`

// liveEdgeQuery selects live edges whose endpoints are both live. Edges
// touching a tombstoned node stay in the table for replication but are
// absent from every read path.
const liveEdgeQuery = `
	SELECT e.id, e.source_id, e.target_id, e.relation, e.weight, e.bidirectional,
	       e.agent_id, e.observed_at, e.confidence, e.version, e.seq, e.deleted_at
	FROM edges e
	JOIN nodes src ON src.id = e.source_id AND src.namespace = e.namespace
	JOIN nodes dst ON dst.id = e.target_id AND dst.namespace = e.namespace
	WHERE e.namespace = ? AND e.deleted_at IS NULL
	  AND src.deleted_at IS NULL AND dst.deleted_at IS NULL`

// scanEdge scans a row into an Edge. The row must have all 12 edge columns
// in standard order.
func scanEdge(scanner interface{ Scan(dest ...any) error }) (Edge, error) {
	var e Edge
	err := scanner.Scan(
		&e.ID, &e.SourceID, &e.TargetID, &e.Relation, &e.Weight, &e.Bidirectional,
		&e.Source.AgentID, &e.Source.Timestamp, &e.Confidence, &e.Version, &e.Seq, &e.DeletedAt,
	)
	return e, err
}

func (s *Store) queryEdges(q string, args ...any) ([]Edge, error) {
	rows, err := s.conn.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// CreateEdge inserts a new edge at version 1. Both endpoints must exist and
// be live. No uniqueness is enforced across relations for the same pair.
func (s *Store) CreateEdge(spec EdgeSpec) (*Edge, error) {
	if spec.SourceID == "" {
		return nil, &ValidationError{Field: "sourceId", Reason: "required"}
	}
	if spec.TargetID == "" {
		return nil, &ValidationError{Field: "targetId", Reason: "required"}
	}
	if spec.Relation == "" {
		return nil, &ValidationError{Field: "relation", Reason: "required"}
	}
	if err := validateConfidence(spec.Confidence); err != nil {
		return nil, err
	}

	for _, endpoint := range []string{spec.SourceID, spec.TargetID} {
		n, err := s.GetNode(endpoint)
		if err != nil {
			return nil, err
		}
		if n == nil {
			return nil, &ValidationError{Field: "endpoint", Reason: fmt.Sprintf("node %s does not exist", endpoint)}
		}
	}

	observed := spec.ObservedAt
	if observed == 0 {
		observed = nowMillis()
	}
	weight := spec.Weight
	if weight == 0 {
		weight = 1
	}

	edge := &Edge{
		ID:            uuid.New().String(),
		SourceID:      spec.SourceID,
		TargetID:      spec.TargetID,
		Relation:      spec.Relation,
		Weight:        weight,
		Bidirectional: spec.Bidirectional,
		Source:        Provenance{AgentID: spec.AgentID, Timestamp: observed},
		Confidence:    spec.Confidence,
		Version:       1,
	}

	err := s.withTx(func(tx *sql.Tx) error {
		seq, err := s.nextSeq(tx)
		if err != nil {
			return err
		}
		edge.Seq = seq
		_, err = tx.Exec(`
			INSERT INTO edges (id, namespace, source_id, target_id, relation, weight, bidirectional, agent_id, observed_at, confidence, version, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		`, edge.ID, s.Namespace, edge.SourceID, edge.TargetID, edge.Relation, edge.Weight,
			edge.Bidirectional, edge.Source.AgentID, observed, edge.Confidence, seq)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating edge: %w", err)
	}
	return edge, nil
}

// DeleteEdge soft-deletes an edge. Same tombstone semantics as DeleteNode.
func (s *Store) DeleteEdge(id string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var deletedAt *int64
		err := tx.QueryRow(`
			SELECT deleted_at FROM edges WHERE id = ? AND namespace = ?
		`, id, s.Namespace).Scan(&deletedAt)
		if err == sql.ErrNoRows {
			return fmt.Errorf("deleting edge %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if deletedAt != nil {
			return nil
		}
		seq, err := s.nextSeq(tx)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			UPDATE edges SET deleted_at = ?, version = version + 1, seq = ?
			WHERE id = ? AND namespace = ?
		`, nowMillis(), seq, id, s.Namespace)
		return err
	})
}

// GetOutgoingEdges returns live edges whose source is nodeID, in creation
// order.
func (s *Store) GetOutgoingEdges(nodeID string) ([]Edge, error) {
	return s.queryEdges(liveEdgeQuery+` AND e.source_id = ? ORDER BY e.seq`, s.Namespace, nodeID)
}

// GetIncomingEdges returns live edges whose target is nodeID, in creation
// order.
func (s *Store) GetIncomingEdges(nodeID string) ([]Edge, error) {
	return s.queryEdges(liveEdgeQuery+` AND e.target_id = ? ORDER BY e.seq`, s.Namespace, nodeID)
}

// AllEdges returns every live edge (live endpoints included) in creation
// order. Traversal and analysis build adjacency from this.
func (s *Store) AllEdges() ([]Edge, error) {
	return s.queryEdges(liveEdgeQuery+` ORDER BY e.seq`, s.Namespace)
}

// FindEdge returns the first live edge matching (sourceID, targetID,
// relation), or nil. This is the synthesis edge de-dup lookup.
func (s *Store) FindEdge(sourceID, targetID, relation string) (*Edge, error) {
	edges, err := s.queryEdges(liveEdgeQuery+`
		AND e.source_id = ? AND e.target_id = ? AND e.relation = ?
		ORDER BY e.seq LIMIT 1`, s.Namespace, sourceID, targetID, relation)
	if err != nil {
		return nil, err
	}
	if len(edges) == 0 {
		return nil, nil
	}
	return &edges[0], nil
}
