package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

const nodeColumns = `id, type, label, properties, agent_id, observed_at, confidence, version, seq, deleted_at`

// scanNode scans a row into a Node. The row must have all 10 node columns
// in standard order.
func scanNode(scanner interface{ Scan(dest ...any) error }) (Node, error) {
	var n Node
	var props string
	err := scanner.Scan(
		&n.ID, &n.Type, &n.Label, &props, &n.Source.AgentID,
		&n.Source.Timestamp, &n.Confidence, &n.Version, &n.Seq, &n.DeletedAt,
	)
	if err != nil {
		return n, err
	}
	if props != "" {
		if err := json.Unmarshal([]byte(props), &n.Properties); err != nil {
			return n, fmt.Errorf("decoding properties of %s: %w", n.ID, err)
		}
	}
	return n, nil
}

func marshalProperties(props map[string]any) (string, error) {
	if props == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return "", &ValidationError{Field: "properties", Reason: err.Error()}
	}
	return string(raw), nil
}

func validateConfidence(c float64) error {
	if c < 0 || c > 1 {
		return &ValidationError{Field: "confidence", Reason: fmt.Sprintf("%v outside [0,1]", c)}
	}
	return nil
}

// CreateNode inserts a new node at version 1 with a fresh unique id.
func (s *Store) CreateNode(spec NodeSpec) (*Node, error) {
	if spec.Type == "" {
		return nil, &ValidationError{Field: "type", Reason: "required"}
	}
	if spec.Label == "" {
		return nil, &ValidationError{Field: "label", Reason: "required"}
	}
	if err := validateConfidence(spec.Confidence); err != nil {
		return nil, err
	}
	props, err := marshalProperties(spec.Properties)
	if err != nil {
		return nil, err
	}

	observed := spec.ObservedAt
	if observed == 0 {
		observed = nowMillis()
	}

	node := &Node{
		ID:         uuid.New().String(),
		Type:       spec.Type,
		Label:      spec.Label,
		Properties: spec.Properties,
		Source:     Provenance{AgentID: spec.AgentID, Timestamp: observed},
		Confidence: spec.Confidence,
		Version:    1,
	}

	err = s.withTx(func(tx *sql.Tx) error {
		seq, err := s.nextSeq(tx)
		if err != nil {
			return err
		}
		node.Seq = seq
		_, err = tx.Exec(`
			INSERT INTO nodes (id, namespace, type, label, properties, agent_id, observed_at, confidence, version, seq)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)
		`, node.ID, s.Namespace, node.Type, node.Label, props, node.Source.AgentID, observed, node.Confidence, seq)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating node: %w", err)
	}
	return node, nil
}

// GetNode returns a node by id, or nil for unknown ids and tombstones.
// Absence is not an error.
func (s *Store) GetNode(id string) (*Node, error) {
	row := s.conn.QueryRow(`
		SELECT `+nodeColumns+` FROM nodes
		WHERE id = ? AND namespace = ? AND deleted_at IS NULL
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

// UpdateNode merges patch into the stored node iff expectedVersion equals
// the stored version, setting version = expectedVersion + 1. Any other
// expectedVersion fails with VersionConflictError and leaves the row
// unchanged. Properties merge key-wise; label and confidence are replaced
// when the patch supplies them.
func (s *Store) UpdateNode(id string, patch NodePatch, expectedVersion int64) (*Node, error) {
	if patch.Confidence != nil {
		if err := validateConfidence(*patch.Confidence); err != nil {
			return nil, err
		}
	}
	if patch.Label != nil && *patch.Label == "" {
		return nil, &ValidationError{Field: "label", Reason: "required"}
	}

	var updated Node
	err := s.withTx(func(tx *sql.Tx) error {
		row := tx.QueryRow(`
			SELECT `+nodeColumns+` FROM nodes
			WHERE id = ? AND namespace = ? AND deleted_at IS NULL
		`, id, s.Namespace)
		current, err := scanNode(row)
		if err == sql.ErrNoRows {
			return fmt.Errorf("updating node %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if current.Version != expectedVersion {
			return &VersionConflictError{ID: id, Expected: expectedVersion, Actual: current.Version}
		}

		updated = current
		if patch.Label != nil {
			updated.Label = *patch.Label
		}
		if patch.Confidence != nil {
			updated.Confidence = *patch.Confidence
		}
		if len(patch.Properties) > 0 {
			if updated.Properties == nil {
				updated.Properties = make(map[string]any, len(patch.Properties))
			}
			for k, v := range patch.Properties {
				updated.Properties[k] = v
			}
		}
		updated.Version = expectedVersion + 1

		props, err := marshalProperties(updated.Properties)
		if err != nil {
			return err
		}
		seq, err := s.nextSeq(tx)
		if err != nil {
			return err
		}
		updated.Seq = seq

		_, err = tx.Exec(`
			UPDATE nodes SET label = ?, properties = ?, confidence = ?, version = ?, seq = ?
			WHERE id = ? AND namespace = ? AND version = ?
		`, updated.Label, props, updated.Confidence, updated.Version, seq, id, s.Namespace, expectedVersion)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteNode soft-deletes a node. The tombstone keeps its row (with a
// bumped version so the deletion wins at peers) and is excluded from every
// read path from then on. Deleting an already-tombstoned node is a no-op;
// deleting an unknown id returns ErrNotFound. Edges are not cascaded, but
// reads treat edges touching a tombstoned endpoint as absent.
func (s *Store) DeleteNode(id string) error {
	return s.withTx(func(tx *sql.Tx) error {
		var version int64
		var deletedAt *int64
		err := tx.QueryRow(`
			SELECT version, deleted_at FROM nodes WHERE id = ? AND namespace = ?
		`, id, s.Namespace).Scan(&version, &deletedAt)
		if err == sql.ErrNoRows {
			return fmt.Errorf("deleting node %s: %w", id, ErrNotFound)
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
			UPDATE nodes SET deleted_at = ?, version = version + 1, seq = ?
			WHERE id = ? AND namespace = ?
		`, nowMillis(), seq, id, s.Namespace)
		return err
	})
}

// ListNodes returns all live nodes matching every supplied filter, in
// creation order.
func (s *Store) ListNodes(filter NodeFilter) ([]Node, error) {
	q := `SELECT ` + nodeColumns + ` FROM nodes WHERE namespace = ? AND deleted_at IS NULL`
	args := []any{s.Namespace}
	if filter.Type != "" {
		q += ` AND type = ?`
		args = append(args, filter.Type)
	}
	if filter.MinConfidence != nil {
		q += ` AND confidence >= ?`
		args = append(args, *filter.MinConfidence)
	}
	q += ` ORDER BY seq`

	rows, err := s.conn.Query(q, args...)
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

// FindNodeByTypeLabel returns the first live node whose type matches and
// whose label equals label under normalization (see NormalizeLabel), or
// nil. This is the synthesis de-dup lookup.
func (s *Store) FindNodeByTypeLabel(nodeType, label string) (*Node, error) {
	want := NormalizeLabel(label)
	rows, err := s.conn.Query(`
		SELECT `+nodeColumns+` FROM nodes
		WHERE namespace = ? AND type = ? AND deleted_at IS NULL
		ORDER BY seq
	`, s.Namespace, nodeType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		if NormalizeLabel(n.Label) == want {
			return &n, nil
		}
	}
	return nil, rows.Err()
}
