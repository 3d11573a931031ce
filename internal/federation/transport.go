package federation

import (
	"context"
	"fmt"
	"sync"
)

// Transport moves deltas between this process and a named peer. Pull asks
// the peer for its changes after sinceSeq (the caller's watermark for that
// peer); Push delivers the caller's own changes for the peer to merge.
type Transport interface {
	Pull(ctx context.Context, peer, namespace string, sinceSeq int64) (*Delta, error)
	Push(ctx context.Context, peer string, delta *Delta) error
}

// InProcessTransport connects replicators living in the same process. It
// backs single-binary multi-store setups and tests; a network transport
// implements the same interface.
type InProcessTransport struct {
	mu    sync.RWMutex
	peers map[string]*Replicator
}

// NewInProcessTransport returns a transport with no registered peers.
func NewInProcessTransport() *InProcessTransport {
	return &InProcessTransport{peers: make(map[string]*Replicator)}
}

// Register makes a replicator reachable under the given peer name.
func (t *InProcessTransport) Register(peer string, r *Replicator) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[peer] = r
}

func (t *InProcessTransport) replicator(peer string) (*Replicator, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.peers[peer]
	if !ok {
		return nil, fmt.Errorf("unknown peer %q", peer)
	}
	return r, nil
}

// Pull returns the peer's changes after sinceSeq.
func (t *InProcessTransport) Pull(ctx context.Context, peer, namespace string, sinceSeq int64) (*Delta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, err := t.replicator(peer)
	if err != nil {
		return nil, err
	}
	delta, err := r.DeltaSince(sinceSeq)
	if err != nil {
		return nil, err
	}
	if namespace != "" && delta.Namespace != namespace {
		return nil, fmt.Errorf("peer %q serves namespace %q, want %q", peer, delta.Namespace, namespace)
	}
	return delta, nil
}

// Push merges the delta into the peer's store.
func (t *InProcessTransport) Push(ctx context.Context, peer string, delta *Delta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r, err := t.replicator(peer)
	if err != nil {
		return err
	}
	_, err = r.Apply(delta)
	return err
}
