package query

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowfed/kfn/internal/store"
)

func setupEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "kfn.db"), "test")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s), s
}

func seedNode(t *testing.T, s *store.Store, nodeType, label string, confidence float64, props map[string]any) *store.Node {
	t.Helper()
	n, err := s.CreateNode(store.NodeSpec{Type: nodeType, Label: label, Confidence: confidence, Properties: props})
	require.NoError(t, err)
	return n
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"add", "flag", "function", "parsing"},
		Tokenize("Add the flag to a function for parsing"))
	assert.Equal(t, []string{"run", "fast"}, Tokenize("go do run fast"))
	assert.Empty(t, Tokenize("the a an in on at"))
	assert.Empty(t, Tokenize(""))
	assert.Empty(t, Tokenize("   \t  "))
}

func TestQuery_LabelAndPropertyMatching(t *testing.T) {
	e, s := setupEngine(t)
	graph := seedNode(t, s, "concept", "Graph Theory", 0.9, nil)
	seedNode(t, s, "concept", "Set Theory", 0.9, nil)
	tagged := seedNode(t, s, "entity", "Paper 42", 0.8, map[string]any{"topic": "graph algorithms"})

	res, err := e.Query(Request{Text: "graph"})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
	// Label hit (2 points) outranks property hit (1 point).
	assert.Equal(t, graph.ID, res.Nodes[0].ID)
	assert.Equal(t, tagged.ID, res.Nodes[1].ID)
	assert.Equal(t, 2, res.Metadata.TotalMatches)
	assert.GreaterOrEqual(t, res.Metadata.ExecutionTimeMs, 0.0)
}

func TestQuery_EmptyTextIsEmptyResult(t *testing.T) {
	e, s := setupEngine(t)
	seedNode(t, s, "entity", "Something", 0.5, nil)

	for _, text := range []string{"", "   ", "\t\n"} {
		res, err := e.Query(Request{Text: text})
		require.NoError(t, err)
		assert.Empty(t, res.Nodes)
	}
}

func TestQuery_Limit(t *testing.T) {
	e, s := setupEngine(t)
	for i := 0; i < 5; i++ {
		seedNode(t, s, "entity", "match target", 0.5, nil)
	}

	res, err := e.Query(Request{Text: "match", Options: Options{Limit: 2}})
	require.NoError(t, err)
	assert.Len(t, res.Nodes, 2)
	assert.Equal(t, 5, res.Metadata.TotalMatches)
}

func TestQuery_ConfidenceTieBreak(t *testing.T) {
	e, s := setupEngine(t)
	low := seedNode(t, s, "entity", "tie match", 0.3, nil)
	high := seedNode(t, s, "entity", "tie match", 0.9, nil)

	res, err := e.Query(Request{Text: "tie"})
	require.NoError(t, err)
	require.Len(t, res.Nodes, 2)
	assert.Equal(t, high.ID, res.Nodes[0].ID)
	assert.Equal(t, low.ID, res.Nodes[1].ID)
}

func TestQuery_UnsupportedType(t *testing.T) {
	e, _ := setupEngine(t)
	_, err := e.Query(Request{Text: "x", Type: "vector"})
	assert.Error(t, err)
}

func TestQuery_ExcludesTombstones(t *testing.T) {
	e, s := setupEngine(t)
	n := seedNode(t, s, "entity", "ghost entry", 0.5, nil)
	require.NoError(t, s.DeleteNode(n.ID))

	res, err := e.Query(Request{Text: "ghost"})
	require.NoError(t, err)
	assert.Empty(t, res.Nodes)
}

func TestFindByProperty(t *testing.T) {
	e, s := setupEngine(t)
	match := seedNode(t, s, "entity", "A", 0.5, map[string]any{"color": "red", "count": 42})
	seedNode(t, s, "entity", "B", 0.5, map[string]any{"color": "blue"})
	seedNode(t, s, "entity", "C", 0.5, nil)

	nodes, err := e.FindByProperty("color", "red")
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, match.ID, nodes[0].ID)

	// int probe matches the JSON-decoded float64.
	nodes, err = e.FindByProperty("count", 42)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, match.ID, nodes[0].ID)

	nodes, err = e.FindByProperty("color", "green")
	require.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestRelated_RanksByEdgeQuality(t *testing.T) {
	e, s := setupEngine(t)
	start := seedNode(t, s, "entity", "Start", 1, nil)
	strong := seedNode(t, s, "entity", "Strong", 1, nil)
	weak := seedNode(t, s, "entity", "Weak", 1, nil)
	far := seedNode(t, s, "entity", "Far", 1, nil)

	_, err := s.CreateEdge(store.EdgeSpec{SourceID: start.ID, TargetID: strong.ID, Relation: "supports", Weight: 1, Confidence: 0.95})
	require.NoError(t, err)
	_, err = s.CreateEdge(store.EdgeSpec{SourceID: start.ID, TargetID: weak.ID, Relation: "mentions", Weight: 0.2, Confidence: 0.3})
	require.NoError(t, err)
	_, err = s.CreateEdge(store.EdgeSpec{SourceID: strong.ID, TargetID: far.ID, Relation: "supports", Weight: 1, Confidence: 0.9})
	require.NoError(t, err)

	results, err := e.Related(start.ID, nil)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, strong.ID, results[0].Node.ID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 1, results[0].Hops)

	// Two cheap hops beat one expensive hop.
	assert.Equal(t, far.ID, results[1].Node.ID)
	assert.Equal(t, weak.ID, results[2].Node.ID)

	// Path reconstruction for the 2-hop result.
	require.Len(t, results[1].Path, 2)
	assert.Equal(t, strong.ID, results[1].Path[0].NodeID)
	assert.Equal(t, far.ID, results[1].Path[1].NodeID)
}

func TestRelated_RelationFilter(t *testing.T) {
	e, s := setupEngine(t)
	start := seedNode(t, s, "entity", "Start", 1, nil)
	kept := seedNode(t, s, "entity", "Kept", 1, nil)
	dropped := seedNode(t, s, "entity", "Dropped", 1, nil)

	_, err := s.CreateEdge(store.EdgeSpec{SourceID: start.ID, TargetID: kept.ID, Relation: "supports", Confidence: 0.9})
	require.NoError(t, err)
	_, err = s.CreateEdge(store.EdgeSpec{SourceID: start.ID, TargetID: dropped.ID, Relation: "contradicts", Confidence: 0.9})
	require.NoError(t, err)

	results, err := e.Related(start.ID, &RelatedOptions{Relations: []string{"supports"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, kept.ID, results[0].Node.ID)
}
