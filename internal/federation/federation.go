package federation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"knowfed/kfn/internal/store"
)

// Sync modes. In sync mode rounds run only when Sync is called and the
// caller blocks on the result; in async mode Start schedules rounds on a
// fixed interval in the background.
const (
	ModeSync  = "sync"
	ModeAsync = "async"
)

const (
	defaultInterval     = 30 * time.Second
	defaultRoundTimeout = 60 * time.Second
)

// Config controls a Federator.
type Config struct {
	Peers        []string      `yaml:"peers"`
	Namespace    string        `yaml:"namespace"`
	SyncMode     string        `yaml:"syncMode"`
	Interval     time.Duration `yaml:"interval"`
	RoundTimeout time.Duration `yaml:"roundTimeout"`
}

// PeerStatus is one peer's replication state as seen locally.
type PeerStatus struct {
	Peer      string       `json:"peer"`
	Watermark int64        `json:"watermark"`
	LastRound *store.Round `json:"lastRound,omitempty"`
}

// Federator runs replication rounds against a set of peers. Rounds for
// the same peer are serialized; rounds for different peers run
// concurrently.
type Federator struct {
	cfg       Config
	store     *store.Store
	repl      *Replicator
	transport Transport
	logger    *zap.Logger

	mu        sync.Mutex
	peerLocks map[string]*sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a federator. The replicator must wrap the same store.
func New(cfg Config, s *store.Store, repl *Replicator, transport Transport, logger *zap.Logger) (*Federator, error) {
	switch cfg.SyncMode {
	case "", ModeSync, ModeAsync:
	default:
		return nil, fmt.Errorf("unknown sync mode %q", cfg.SyncMode)
	}
	if cfg.SyncMode == "" {
		cfg.SyncMode = ModeSync
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.RoundTimeout <= 0 {
		cfg.RoundTimeout = defaultRoundTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Federator{
		cfg:       cfg,
		store:     s,
		repl:      repl,
		transport: transport,
		logger:    logger,
		peerLocks: make(map[string]*sync.Mutex),
	}, nil
}

func (f *Federator) peerLock(peer string) *sync.Mutex {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.peerLocks[peer]
	if !ok {
		l = &sync.Mutex{}
		f.peerLocks[peer] = l
	}
	return l
}

// Sync runs one round against every configured peer and blocks until all
// finish. Per-peer failures are recorded on their rounds and collected
// here; one failing peer does not abort the others.
func (f *Federator) Sync(ctx context.Context) error {
	var g errgroup.Group
	for _, peer := range f.cfg.Peers {
		g.Go(func() error {
			_, err := f.SyncPeer(ctx, peer)
			return err
		})
	}
	return g.Wait()
}

// SyncPeer runs a single replication round: pull the peer's changes past
// our watermark, merge them, push our own unacknowledged changes, then
// checkpoint. The round is recorded whatever the outcome.
func (f *Federator) SyncPeer(ctx context.Context, peer string) (*store.Round, error) {
	lock := f.peerLock(peer)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, f.cfg.RoundTimeout)
	defer cancel()

	roundID := uuid.New().String()
	if err := f.store.BeginRound(roundID, peer); err != nil {
		return nil, err
	}

	round, err := f.runRound(ctx, roundID, peer)
	status := string(store.RoundCompleted)
	if err != nil {
		status = string(store.RoundFailed)
	}
	roundsTotal.WithLabelValues(peer, status).Inc()
	if err != nil {
		f.logger.Warn("replication round failed",
			zap.String("peer", peer), zap.String("round", roundID), zap.Error(err))
		return round, &ReplicationError{Peer: peer, Round: roundID, Err: err}
	}
	f.logger.Debug("replication round completed",
		zap.String("peer", peer), zap.String("round", roundID),
		zap.Int("applied", round.Applied), zap.Int("pushed", round.Pushed),
		zap.Int("conflicts", round.Conflicts))
	return round, nil
}

func (f *Federator) runRound(ctx context.Context, roundID, peer string) (*store.Round, error) {
	fail := func(err error) (*store.Round, error) {
		_ = f.store.FinishRound(roundID, store.RoundFailed, 0, 0, 0, err.Error())
		return nil, err
	}

	watermark, err := f.store.Watermark(peer)
	if err != nil {
		return fail(err)
	}
	// The outgoing delta is snapshotted before the incoming one is merged,
	// so records just pulled from this peer are not echoed straight back.
	// The push checkpoint is tracked separately from the pull watermark and
	// only advances on success, so a failed push is retried next round.
	pushKey := "push:" + peer
	pushed, err := f.store.Watermark(pushKey)
	if err != nil {
		return fail(err)
	}
	outgoing, err := f.repl.DeltaSince(pushed)
	if err != nil {
		return fail(err)
	}

	incoming, err := f.transport.Pull(ctx, peer, f.cfg.Namespace, watermark)
	if err != nil {
		return fail(fmt.Errorf("pull: %w", err))
	}
	stats, err := f.repl.Apply(incoming)
	if err != nil {
		return fail(fmt.Errorf("apply: %w", err))
	}
	recordsAppliedTotal.WithLabelValues(peer).Add(float64(stats.Applied))
	conflictsTotal.WithLabelValues(peer).Add(float64(stats.Conflicts))
	if !outgoing.Empty() {
		if err := f.transport.Push(ctx, peer, outgoing); err != nil {
			return fail(fmt.Errorf("push: %w", err))
		}
	}
	if err := f.store.SetWatermark(pushKey, outgoing.MaxSeq); err != nil {
		return fail(err)
	}
	if err := f.store.SetWatermark(peer, incoming.MaxSeq); err != nil {
		return fail(err)
	}

	pushedCount := len(outgoing.Nodes) + len(outgoing.Edges)
	applied := stats.Applied + stats.Conflicts
	if err := f.store.FinishRound(roundID, store.RoundCompleted, pushedCount, applied, stats.Conflicts, ""); err != nil {
		return nil, err
	}
	rounds, err := f.store.RecentRounds(peer, 1)
	if err != nil || len(rounds) == 0 {
		return nil, err
	}
	return &rounds[0], nil
}

// Start launches the background sync loop in async mode. In sync mode,
// or when the loop is already running, it is a no-op: rounds run only
// through Sync.
func (f *Federator) Start(ctx context.Context) {
	if f.cfg.SyncMode != ModeAsync {
		return
	}
	f.mu.Lock()
	if f.cancel != nil {
		f.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ticker := time.NewTicker(f.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := f.Sync(ctx); err != nil {
					f.logger.Warn("scheduled sync", zap.Error(err))
				}
			}
		}
	}()
}

// Stop halts the background loop and waits for an in-flight sweep to
// finish.
func (f *Federator) Stop() {
	f.mu.Lock()
	cancel := f.cancel
	f.cancel = nil
	f.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	f.wg.Wait()
}

// Status reports per-peer watermarks and the latest recorded round.
func (f *Federator) Status() ([]PeerStatus, error) {
	statuses := make([]PeerStatus, 0, len(f.cfg.Peers))
	for _, peer := range f.cfg.Peers {
		wm, err := f.store.Watermark(peer)
		if err != nil {
			return nil, err
		}
		st := PeerStatus{Peer: peer, Watermark: wm}
		rounds, err := f.store.RecentRounds(peer, 1)
		if err != nil {
			return nil, err
		}
		if len(rounds) > 0 {
			st.LastRound = &rounds[0]
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}
