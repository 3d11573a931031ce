package synthesis

import (
	"encoding/json"
	"fmt"
	"strings"

	"knowfed/kfn/internal/store"
)

// Built-in strategy names.
const (
	StrategyExtractEntities = "extract_entities"
	StrategyVerbatim        = "verbatim"
)

const defaultConfidence = 0.5

// upsertRetries bounds the refetch-and-retry loop around version conflicts
// when several synthesis sources touch the same entity.
const upsertRetries = 3

// observation is the document shape extract_entities understands: an
// agent's structured observation with entities and the relations between
// them, relations referencing entities by label within the same record.
type observation struct {
	Entities  []observedEntity   `json:"entities"`
	Relations []observedRelation `json:"relations"`
}

type observedEntity struct {
	Type       string         `json:"type"`
	Label      string         `json:"label"`
	Confidence *float64       `json:"confidence"`
	Properties map[string]any `json:"properties"`
}

type observedRelation struct {
	Source        string   `json:"source"`
	Target        string   `json:"target"`
	Relation      string   `json:"relation"`
	Weight        float64  `json:"weight"`
	Bidirectional bool     `json:"bidirectional"`
	Confidence    *float64 `json:"confidence"`
}

// extractEntities parses a JSON observation and upserts its entities and
// relations. The de-dup key is (type, normalized label): replaying the
// same sources merges into the existing nodes instead of duplicating them,
// and a merge that would change nothing is skipped entirely so a replay
// does not advance versions.
func extractEntities(rec SourceRecord, g *store.Store, agentID string) (StrategyResult, error) {
	var result StrategyResult

	var obs observation
	if err := json.Unmarshal([]byte(rec.Content), &obs); err != nil {
		return result, fmt.Errorf("parsing observation: %w", err)
	}
	if len(obs.Entities) == 0 && len(obs.Relations) == 0 {
		return result, fmt.Errorf("observation has no entities or relations")
	}

	// Validate the whole record before touching the graph, so a malformed
	// relation cannot leave behind upserted entities the job never reports.
	declared := make(map[string]bool, len(obs.Entities))
	for _, ent := range obs.Entities {
		if ent.Type == "" || ent.Label == "" {
			return result, fmt.Errorf("entity missing type or label")
		}
		declared[store.NormalizeLabel(ent.Label)] = true
	}
	for _, rel := range obs.Relations {
		if rel.Relation == "" {
			return result, fmt.Errorf("relation missing relation label")
		}
		if !declared[store.NormalizeLabel(rel.Source)] {
			return result, fmt.Errorf("relation source %q not among this record's entities", rel.Source)
		}
		if !declared[store.NormalizeLabel(rel.Target)] {
			return result, fmt.Errorf("relation target %q not among this record's entities", rel.Target)
		}
	}

	// label -> node id, for resolving relation endpoints in this record
	byLabel := make(map[string]string, len(obs.Entities))

	for _, ent := range obs.Entities {
		confidence := defaultConfidence
		if ent.Confidence != nil {
			confidence = *ent.Confidence
		}

		id, created, err := upsertNode(g, ent.Type, ent.Label, confidence, ent.Properties, agentID)
		if err != nil {
			return result, err
		}
		byLabel[store.NormalizeLabel(ent.Label)] = id
		if created {
			result.CreatedNodeIDs = append(result.CreatedNodeIDs, id)
		} else {
			result.MergedNodeIDs = append(result.MergedNodeIDs, id)
		}
	}

	for _, rel := range obs.Relations {
		sourceID := byLabel[store.NormalizeLabel(rel.Source)]
		targetID := byLabel[store.NormalizeLabel(rel.Target)]

		existing, err := g.FindEdge(sourceID, targetID, rel.Relation)
		if err != nil {
			return result, err
		}
		if existing != nil {
			continue
		}
		confidence := defaultConfidence
		if rel.Confidence != nil {
			confidence = *rel.Confidence
		}
		edge, err := g.CreateEdge(store.EdgeSpec{
			SourceID:      sourceID,
			TargetID:      targetID,
			Relation:      rel.Relation,
			Weight:        rel.Weight,
			Bidirectional: rel.Bidirectional,
			Confidence:    confidence,
			AgentID:       agentID,
		})
		if err != nil {
			return result, err
		}
		result.CreatedEdgeIDs = append(result.CreatedEdgeIDs, edge.ID)
	}

	return result, nil
}

// verbatim stores each source as one observation node, label taken from
// the first line of content. Upserts like extract_entities, so replays
// are no-ops.
func verbatim(rec SourceRecord, g *store.Store, agentID string) (StrategyResult, error) {
	var result StrategyResult

	content := strings.TrimSpace(rec.Content)
	if content == "" {
		return result, fmt.Errorf("empty source content")
	}
	label := content
	if idx := strings.IndexByte(label, '\n'); idx >= 0 {
		label = label[:idx]
	}
	label = strings.TrimSpace(label)
	if len(label) > 80 {
		label = label[:80]
	}

	props := map[string]any{
		"content":    content,
		"sourceType": rec.SourceType,
		"sourceId":   rec.SourceID,
	}
	id, created, err := upsertNode(g, "observation", label, defaultConfidence, props, agentID)
	if err != nil {
		return result, err
	}
	if created {
		result.CreatedNodeIDs = append(result.CreatedNodeIDs, id)
	} else {
		result.MergedNodeIDs = append(result.MergedNodeIDs, id)
	}
	return result, nil
}

// upsertNode creates the node or merges into the live node with the same
// (type, normalized label). Merging unions properties (incoming wins) and
// keeps the higher confidence; when neither would change, the stored node
// is left untouched so its version does not advance.
func upsertNode(g *store.Store, nodeType, label string, confidence float64, props map[string]any, agentID string) (id string, created bool, err error) {
	for attempt := 0; attempt < upsertRetries; attempt++ {
		existing, err := g.FindNodeByTypeLabel(nodeType, label)
		if err != nil {
			return "", false, err
		}
		if existing == nil {
			node, err := g.CreateNode(store.NodeSpec{
				Type:       nodeType,
				Label:      label,
				Properties: props,
				Confidence: confidence,
				AgentID:    agentID,
			})
			if err != nil {
				return "", false, err
			}
			return node.ID, true, nil
		}

		patch := store.NodePatch{}
		dirty := false
		if confidence > existing.Confidence {
			patch.Confidence = &confidence
			dirty = true
		}
		merged := make(map[string]any)
		for k, v := range props {
			if cur, ok := existing.Properties[k]; !ok || !jsonEqual(cur, v) {
				merged[k] = v
				dirty = true
			}
		}
		if !dirty {
			return existing.ID, false, nil
		}
		if len(merged) > 0 {
			patch.Properties = merged
		}

		_, err = g.UpdateNode(existing.ID, patch, existing.Version)
		if err == nil {
			return existing.ID, false, nil
		}
		if !store.IsVersionConflict(err) {
			return "", false, err
		}
		// lost the race, refetch and retry
	}
	return "", false, fmt.Errorf("upserting %s/%s: too many version conflicts", nodeType, label)
}

func jsonEqual(a, b any) bool {
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
