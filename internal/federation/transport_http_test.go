package federation

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowfed/kfn/internal/store"
)

func newHTTPPeer(t *testing.T, name string) (*peer, string) {
	t.Helper()
	p := newPeer(t, name)
	srv := httptest.NewServer(NewHandler(p.repl, nil))
	t.Cleanup(srv.Close)
	return p, srv.URL
}

func TestHTTPTransport_PullAndPush(t *testing.T) {
	remote, remoteURL := newHTTPPeer(t, "remote")
	local := newPeer(t, "local")
	tr := NewHTTPTransport(nil)

	ada := createNode(t, remote.store, "person", "Ada", "agent-remote")

	delta, err := tr.Pull(context.Background(), remoteURL, "test", 0)
	require.NoError(t, err)
	require.Len(t, delta.Nodes, 1)
	assert.Equal(t, ada.ID, delta.Nodes[0].ID)

	bob := createNode(t, local.store, "person", "Bob", "agent-local")
	outgoing, err := local.repl.DeltaSince(0)
	require.NoError(t, err)
	require.NoError(t, tr.Push(context.Background(), remoteURL, outgoing))

	got, err := remote.store.GetNode(bob.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Bob", got.Label)
}

func TestHTTPTransport_NamespaceMismatch(t *testing.T) {
	_, remoteURL := newHTTPPeer(t, "remote")
	tr := NewHTTPTransport(nil)

	_, err := tr.Pull(context.Background(), remoteURL, "other", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "namespace")
}

func TestHTTPTransport_RejectsBarePeerName(t *testing.T) {
	tr := NewHTTPTransport(nil)
	_, err := tr.Pull(context.Background(), "b", "test", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a base URL")

	err = tr.Push(context.Background(), "b", &Delta{Namespace: "test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a base URL")
}

func TestSyncPeer_ConvergesOverHTTP(t *testing.T) {
	remote, remoteURL := newHTTPPeer(t, "remote")
	local := newPeer(t, "local")
	fed := newFederator(t, local, NewHTTPTransport(nil), remoteURL)

	mine := createNode(t, local.store, "person", "Ada", "agent-local")
	theirs := createNode(t, remote.store, "concept", "analytical engine", "agent-remote")

	round, err := fed.SyncPeer(context.Background(), remoteURL)
	require.NoError(t, err)
	assert.Equal(t, store.RoundCompleted, round.Status)

	got, err := local.store.GetNode(theirs.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = remote.store.GetNode(mine.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
}
