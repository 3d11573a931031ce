// Package synthesis turns unstructured agent observations into graph
// entities. Strategies are named pure functions over (source record, graph
// handle) selected from a registry, so new extraction strategies slot in
// without an inheritance hierarchy. All writes go through the storage
// engine's public CRUD contract.
package synthesis

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knowfed/kfn/internal/store"
)

// Status is the lifecycle of a synthesis job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// SourceError is a per-source failure within a job. It does not necessarily
// fail the whole job: the job's final status reflects the worst per-source
// outcome.
type SourceError struct {
	SourceID string `json:"sourceId"`
	Message  string `json:"message"`
}

func (e SourceError) Error() string {
	return fmt.Sprintf("source %s: %s", e.SourceID, e.Message)
}

// Job is the outcome of one synthesize call.
type Job struct {
	ID             string        `json:"id"`
	SourceType     string        `json:"sourceType"`
	SourceIDs      []string      `json:"sourceIds"`
	Strategy       string        `json:"strategy"`
	Status         Status        `json:"status"`
	CreatedNodeIDs []string      `json:"createdNodeIds"`
	MergedNodeIDs  []string      `json:"mergedNodeIds"`
	CreatedEdgeIDs []string      `json:"createdEdgeIds"`
	Errors         []SourceError `json:"errors,omitempty"`
	StartedAt      int64         `json:"startedAt"`
	FinishedAt     int64         `json:"finishedAt"`
}

// SourceRecord is one resolved source document handed to a strategy.
type SourceRecord struct {
	SourceType string
	SourceID   string
	Content    string
}

// SourceResolver fetches raw source content. The surrounding agent layer
// supplies it; the synthesizer never reaches outside the process itself.
type SourceResolver interface {
	Resolve(sourceType, sourceID string) (string, error)
}

// ResolverFunc adapts a function to the SourceResolver interface.
type ResolverFunc func(sourceType, sourceID string) (string, error)

func (f ResolverFunc) Resolve(sourceType, sourceID string) (string, error) {
	return f(sourceType, sourceID)
}

// StrategyResult reports what one strategy invocation wrote.
type StrategyResult struct {
	CreatedNodeIDs []string
	MergedNodeIDs  []string
	CreatedEdgeIDs []string
}

// Strategy extracts entities from one source record and writes them
// through the store. agentID is the synthesizer's configured identity,
// attributed as provenance on everything it writes.
type Strategy func(rec SourceRecord, g *store.Store, agentID string) (StrategyResult, error)

// Request parameterizes Synthesize.
type Request struct {
	SourceType string   `json:"sourceType"`
	SourceIDs  []string `json:"sourceIds"`
	Strategy   string   `json:"strategy"`
}

// Synthesizer runs synthesis jobs synchronously against one store.
type Synthesizer struct {
	store      *store.Store
	resolver   SourceResolver
	agentID    string
	logger     *zap.Logger
	strategies map[string]Strategy
}

// New creates a synthesizer writing as agentID, with the built-in
// strategies registered.
func New(s *store.Store, resolver SourceResolver, agentID string, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	syn := &Synthesizer{
		store:      s,
		resolver:   resolver,
		agentID:    agentID,
		logger:     logger,
		strategies: make(map[string]Strategy),
	}
	syn.RegisterStrategy(StrategyExtractEntities, extractEntities)
	syn.RegisterStrategy(StrategyVerbatim, verbatim)
	return syn
}

// RegisterStrategy adds or replaces a named strategy.
func (s *Synthesizer) RegisterStrategy(name string, fn Strategy) {
	s.strategies[name] = fn
}

// Synthesize runs a job to completion and returns it with final status.
// One failing source records a per-source error without aborting the rest
// of the batch; the job fails only when no source succeeded.
func (s *Synthesizer) Synthesize(req Request) (*Job, error) {
	if len(req.SourceIDs) == 0 {
		return nil, fmt.Errorf("synthesize: no source ids")
	}
	name := req.Strategy
	if name == "" {
		name = StrategyExtractEntities
	}
	strategy, ok := s.strategies[name]
	if !ok {
		return nil, fmt.Errorf("synthesize: unknown strategy %q", name)
	}

	job := &Job{
		ID:         uuid.New().String(),
		SourceType: req.SourceType,
		SourceIDs:  req.SourceIDs,
		Strategy:   name,
		Status:     StatusPending,
		StartedAt:  time.Now().UnixMilli(),
	}
	job.Status = StatusRunning

	succeeded := 0
	for _, sourceID := range req.SourceIDs {
		content, err := s.resolver.Resolve(req.SourceType, sourceID)
		if err != nil {
			job.Errors = append(job.Errors, SourceError{SourceID: sourceID, Message: fmt.Sprintf("resolving: %v", err)})
			continue
		}
		result, err := strategy(SourceRecord{SourceType: req.SourceType, SourceID: sourceID, Content: content}, s.store, s.agentID)
		// The partial result is folded in even on failure: whatever the
		// strategy wrote before erroring is committed, and the job must
		// account for it.
		job.CreatedNodeIDs = append(job.CreatedNodeIDs, result.CreatedNodeIDs...)
		job.MergedNodeIDs = append(job.MergedNodeIDs, result.MergedNodeIDs...)
		job.CreatedEdgeIDs = append(job.CreatedEdgeIDs, result.CreatedEdgeIDs...)
		if err != nil {
			job.Errors = append(job.Errors, SourceError{SourceID: sourceID, Message: err.Error()})
			continue
		}
		succeeded++
	}

	if succeeded == 0 {
		job.Status = StatusFailed
	} else {
		job.Status = StatusCompleted
	}
	job.FinishedAt = time.Now().UnixMilli()

	s.logger.Debug("synthesis job finished",
		zap.String("job", job.ID),
		zap.String("strategy", name),
		zap.String("status", string(job.Status)),
		zap.Int("created", len(job.CreatedNodeIDs)),
		zap.Int("merged", len(job.MergedNodeIDs)),
		zap.Int("errors", len(job.Errors)))

	return job, nil
}
