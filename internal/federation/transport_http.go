package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const errBodyLimit = 4 << 10

// HTTPTransport reaches peers over HTTP. The peer name is the base URL of
// the remote's replication endpoints (see NewHandler); everything on the
// wire is the same Delta the in-process transport hands over directly.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps client, or a default one with a 30s timeout.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{client: client}
}

func peerURL(peer string) (*url.URL, error) {
	u, err := url.Parse(peer)
	if err != nil || u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("peer %q is not a base URL; remote peers are addressed as http(s)://host:port of their serve endpoint", peer)
	}
	return u, nil
}

// Pull fetches the peer's changes after sinceSeq.
func (t *HTTPTransport) Pull(ctx context.Context, peer, namespace string, sinceSeq int64) (*Delta, error) {
	u, err := peerURL(peer)
	if err != nil {
		return nil, err
	}
	u = u.JoinPath("replication", "delta")
	q := u.Query()
	q.Set("since", strconv.FormatInt(sinceSeq, 10))
	if namespace != "" {
		q.Set("namespace", namespace)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pulling from %s: %w", peer, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, remoteError(peer, resp)
	}

	var delta Delta
	if err := json.NewDecoder(resp.Body).Decode(&delta); err != nil {
		return nil, fmt.Errorf("decoding delta from %s: %w", peer, err)
	}
	if namespace != "" && delta.Namespace != namespace {
		return nil, fmt.Errorf("peer %q serves namespace %q, want %q", peer, delta.Namespace, namespace)
	}
	return &delta, nil
}

// Push delivers a delta for the peer to merge.
func (t *HTTPTransport) Push(ctx context.Context, peer string, delta *Delta) error {
	u, err := peerURL(peer)
	if err != nil {
		return err
	}
	body, err := json.Marshal(delta)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		u.JoinPath("replication", "apply").String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("pushing to %s: %w", peer, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return remoteError(peer, resp)
	}
	return nil
}

func remoteError(peer string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyLimit))
	return fmt.Errorf("peer %s: %s: %s", peer, resp.Status, strings.TrimSpace(string(msg)))
}

// NewHandler serves a replicator to remote HTTPTransports:
//
//	GET  /replication/delta?since=N[&namespace=ns]  -> Delta
//	POST /replication/apply                         -> ApplyStats
func NewHandler(r *Replicator, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("GET /replication/delta", func(w http.ResponseWriter, req *http.Request) {
		since := int64(0)
		if raw := req.URL.Query().Get("since"); raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, fmt.Sprintf("bad since %q", raw), http.StatusBadRequest)
				return
			}
			since = parsed
		}
		if ns := req.URL.Query().Get("namespace"); ns != "" && ns != r.store.Namespace {
			http.Error(w, fmt.Sprintf("serving namespace %q, not %q", r.store.Namespace, ns), http.StatusConflict)
			return
		}
		delta, err := r.DeltaSince(since)
		if err != nil {
			logger.Error("serving delta", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, delta)
	})

	mux.HandleFunc("POST /replication/apply", func(w http.ResponseWriter, req *http.Request) {
		var delta Delta
		if err := json.NewDecoder(req.Body).Decode(&delta); err != nil {
			http.Error(w, fmt.Sprintf("bad delta: %v", err), http.StatusBadRequest)
			return
		}
		stats, err := r.Apply(&delta)
		if err != nil {
			logger.Error("applying pushed delta", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, stats)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
