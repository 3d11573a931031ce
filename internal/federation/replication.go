// Package federation exchanges entity deltas between peer graphs and
// converges them. Replication operates purely through the storage engine's
// record primitives; federation is the policy layer above it deciding
// which peers sync, when, and under what namespace.
package federation

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"knowfed/kfn/internal/store"
)

// Delta is an ordered batch of versioned entity records exchanged between
// peers. MaxSeq is the sender's change sequence covered by the batch; the
// receiver checkpoints it as the per-peer watermark after a successful
// apply.
type Delta struct {
	Namespace string       `json:"namespace"`
	Nodes     []store.Node `json:"nodes"`
	Edges     []store.Edge `json:"edges"`
	MaxSeq    int64        `json:"maxSeq"`
}

// Empty reports whether the delta carries no records.
func (d *Delta) Empty() bool { return len(d.Nodes) == 0 && len(d.Edges) == 0 }

// ApplyStats summarizes one delta application.
type ApplyStats struct {
	Applied   int `json:"applied"`
	Skipped   int `json:"skipped"`
	Conflicts int `json:"conflicts"`
}

// ReplicationError is a round-level failure. It is recorded as the round's
// outcome and retried on the next schedule tick, never surfaced to
// unrelated callers.
type ReplicationError struct {
	Peer  string
	Round string
	Err   error
}

func (e *ReplicationError) Error() string {
	return fmt.Sprintf("replication round %s with peer %s: %v", e.Round, e.Peer, e.Err)
}

func (e *ReplicationError) Unwrap() error { return e.Err }

// Replicator computes and applies deltas for one store.
type Replicator struct {
	store  *store.Store
	logger *zap.Logger
}

// NewReplicator creates a replicator over s.
func NewReplicator(s *store.Store, logger *zap.Logger) *Replicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replicator{store: s, logger: logger}
}

// DeltaSince collects every record changed after seq, tombstones included.
func (r *Replicator) DeltaSince(seq int64) (*Delta, error) {
	maxSeq, err := r.store.CurrentSeq()
	if err != nil {
		return nil, err
	}
	nodes, err := r.store.ChangedNodesSince(seq)
	if err != nil {
		return nil, err
	}
	edges, err := r.store.ChangedEdgesSince(seq)
	if err != nil {
		return nil, err
	}
	return &Delta{
		Namespace: r.store.Namespace,
		Nodes:     nodes,
		Edges:     edges,
		MaxSeq:    maxSeq,
	}, nil
}

// Apply merges an incoming delta record by record. Each application is
// atomic and idempotent: re-applying an already-applied (id, version) pair
// is a no-op, so a partially applied batch can safely be retried from the
// start.
func (r *Replicator) Apply(delta *Delta) (ApplyStats, error) {
	var stats ApplyStats
	if delta.Namespace != "" && delta.Namespace != r.store.Namespace {
		return stats, fmt.Errorf("delta namespace %q does not match store namespace %q", delta.Namespace, r.store.Namespace)
	}

	for _, rec := range delta.Nodes {
		outcome, err := r.applyNode(rec)
		if err != nil {
			return stats, fmt.Errorf("applying node %s: %w", rec.ID, err)
		}
		stats.count(outcome)
	}
	for _, rec := range delta.Edges {
		outcome, err := r.applyEdge(rec)
		if err != nil {
			return stats, fmt.Errorf("applying edge %s: %w", rec.ID, err)
		}
		stats.count(outcome)
	}
	return stats, nil
}

type applyOutcome int

const (
	outcomeApplied applyOutcome = iota
	outcomeSkipped
	outcomeConflict
)

func (s *ApplyStats) count(o applyOutcome) {
	switch o {
	case outcomeApplied:
		s.Applied++
	case outcomeSkipped:
		s.Skipped++
	case outcomeConflict:
		s.Conflicts++
	}
}

// applyNode merges one incoming node record:
//   - unknown id, or incoming version higher: take the incoming record
//     verbatim (causally newer, no version bump, so versions do not
//     escalate between converged peers)
//   - incoming version lower: local wins, no-op
//   - same version, identical content: already applied, no-op
//   - same version, diverging content: true concurrent edit; resolve by
//     confidence, then source timestamp, then agent id, and persist the
//     winner at version+1 so the merge is distinguishable from either
//     input. Both peers compute the same winner, so the follow-up
//     exchange converges as a no-op.
func (r *Replicator) applyNode(rec store.Node) (applyOutcome, error) {
	local, err := r.store.GetNodeRecord(rec.ID)
	if err != nil {
		return outcomeSkipped, err
	}
	if local == nil || rec.Version > local.Version {
		return outcomeApplied, r.store.PutNodeRecord(rec)
	}
	if rec.Version < local.Version {
		return outcomeSkipped, nil
	}
	if nodeContentEqual(*local, rec) {
		return outcomeSkipped, nil
	}

	winner := *local
	if nodeWins(rec, *local) {
		winner = rec
	}
	winner.Version = local.Version + 1
	r.logger.Debug("node conflict resolved",
		zap.String("id", rec.ID),
		zap.Int64("version", local.Version),
		zap.String("winner", winner.Source.AgentID))
	return outcomeConflict, r.store.PutNodeRecord(winner)
}

func (r *Replicator) applyEdge(rec store.Edge) (applyOutcome, error) {
	local, err := r.store.GetEdgeRecord(rec.ID)
	if err != nil {
		return outcomeSkipped, err
	}
	if local == nil || rec.Version > local.Version {
		return outcomeApplied, r.store.PutEdgeRecord(rec)
	}
	if rec.Version < local.Version {
		return outcomeSkipped, nil
	}
	if edgeContentEqual(*local, rec) {
		return outcomeSkipped, nil
	}

	winner := *local
	if provenanceWins(rec.Confidence, rec.Source, local.Confidence, local.Source) {
		winner = rec
	}
	winner.Version = local.Version + 1
	return outcomeConflict, r.store.PutEdgeRecord(winner)
}

// nodeWins decides a same-version conflict in favor of the incoming record.
func nodeWins(incoming, local store.Node) bool {
	return provenanceWins(incoming.Confidence, incoming.Source, local.Confidence, local.Source)
}

// provenanceWins is the tie-break chain after the version rule: higher
// confidence, then later source timestamp, then greater agent id (lexical).
func provenanceWins(inConf float64, inSrc store.Provenance, locConf float64, locSrc store.Provenance) bool {
	if inConf != locConf {
		return inConf > locConf
	}
	if inSrc.Timestamp != locSrc.Timestamp {
		return inSrc.Timestamp > locSrc.Timestamp
	}
	return inSrc.AgentID > locSrc.AgentID
}

// nodeContentEqual compares everything that replicates: the local change
// sequence is bookkeeping and excluded.
func nodeContentEqual(a, b store.Node) bool {
	a.Seq, b.Seq = 0, 0
	ra, err := json.Marshal(a)
	if err != nil {
		return false
	}
	rb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ra) == string(rb)
}

func edgeContentEqual(a, b store.Edge) bool {
	a.Seq, b.Seq = 0, 0
	ra, err := json.Marshal(a)
	if err != nil {
		return false
	}
	rb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ra) == string(rb)
}
