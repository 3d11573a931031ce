// Package kfn assembles the knowledge federation system: a versioned
// graph store shared by the query engine, the synthesis pipeline, and the
// federation layer. Every component operates on the same storage handle,
// so a synthesized entity is immediately visible to queries and picked up
// by the next replication round.
package kfn

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"knowfed/kfn/internal/federation"
	"knowfed/kfn/internal/query"
	"knowfed/kfn/internal/store"
	"knowfed/kfn/internal/synthesis"
	"knowfed/kfn/pkg/config"
)

// System is the assembled stack over one graph store.
type System struct {
	Store       *store.Store
	Query       *query.Engine
	Synthesizer *synthesis.Synthesizer
	Replicator  *federation.Replicator
	Federation  *federation.Federator

	logger *zap.Logger
}

// Option customizes system assembly.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	transport federation.Transport
	resolver  synthesis.SourceResolver
}

// WithLogger sets the logger shared by all components.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithTransport sets the federation transport. Without one, peers are
// served over an empty in-process transport, useful when no peers are
// configured.
func WithTransport(t federation.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithResolver sets the synthesis source resolver. The default reads
// sources of type "file" from disk.
func WithResolver(r synthesis.SourceResolver) Option {
	return func(o *options) { o.resolver = r }
}

// NewSystem opens the store at cfg.DBPath and wires every component
// around it. In async mode the federation scheduler starts immediately;
// Close stops it.
func NewSystem(cfg *config.Config, opts ...Option) (*System, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.transport == nil {
		o.transport = federation.NewInProcessTransport()
	}
	if o.resolver == nil {
		o.resolver = FileResolver{}
	}

	s, err := store.Open(cfg.DBPath, cfg.Namespace)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	repl := federation.NewReplicator(s, o.logger)
	fed, err := federation.New(federation.Config{
		Peers:        cfg.Federation.Peers,
		Namespace:    cfg.Namespace,
		SyncMode:     cfg.Federation.SyncMode,
		Interval:     time.Duration(cfg.Federation.Interval),
		RoundTimeout: time.Duration(cfg.Federation.RoundTimeout),
	}, s, repl, o.transport, o.logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	sys := &System{
		Store:       s,
		Query:       query.New(s),
		Synthesizer: synthesis.New(s, o.resolver, cfg.AgentID, o.logger),
		Replicator:  repl,
		Federation:  fed,
		logger:      o.logger,
	}
	// A no-op unless cfg.Federation.SyncMode is async.
	sys.Federation.Start(context.Background())
	return sys, nil
}

// Close stops background federation and releases the store.
func (s *System) Close() error {
	s.Federation.Stop()
	return s.Store.Close()
}

// FileResolver resolves sources of type "file" as paths on disk.
type FileResolver struct{}

// Resolve implements synthesis.SourceResolver.
func (FileResolver) Resolve(sourceType, sourceID string) (string, error) {
	if sourceType != "file" {
		return "", fmt.Errorf("unsupported source type %q", sourceType)
	}
	data, err := os.ReadFile(sourceID)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
