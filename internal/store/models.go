package store

// Provenance records which agent produced an entity and when. It is
// attribution, not ownership: any agent may update an entity it did not
// create.
type Provenance struct {
	AgentID   string `json:"agentId"`
	Timestamp int64  `json:"timestamp"` // Unix millis
}

// Node is a versioned graph entity. Version starts at 1 and increases by
// exactly 1 per successful mutation. A non-nil DeletedAt marks a tombstone:
// the row is retained for replication convergence but excluded from every
// read path.
type Node struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
	Source     Provenance     `json:"source"`
	Confidence float64        `json:"confidence"`
	Version    int64          `json:"version"`
	Seq        int64          `json:"seq"` // local change sequence, watermark basis
	DeletedAt  *int64         `json:"deletedAt,omitempty"`
}

// Deleted reports whether the node is a tombstone.
func (n *Node) Deleted() bool { return n.DeletedAt != nil }

// Edge is a versioned directed relation between two nodes. A bidirectional
// edge is stored with a fixed source/target but traversable either way.
// Multiple edges between the same ordered pair are permitted as long as
// their relations differ.
type Edge struct {
	ID            string     `json:"id"`
	SourceID      string     `json:"sourceId"`
	TargetID      string     `json:"targetId"`
	Relation      string     `json:"relation"`
	Weight        float64    `json:"weight"`
	Bidirectional bool       `json:"bidirectional"`
	Source        Provenance `json:"source"`
	Confidence    float64    `json:"confidence"`
	Version       int64      `json:"version"`
	Seq           int64      `json:"seq"`
	DeletedAt     *int64     `json:"deletedAt,omitempty"`
}

// Deleted reports whether the edge is a tombstone.
func (e *Edge) Deleted() bool { return e.DeletedAt != nil }

// NodeSpec is the input to CreateNode.
type NodeSpec struct {
	Type       string
	Label      string
	Properties map[string]any
	Confidence float64
	AgentID    string
	ObservedAt int64 // Unix millis; zero means now
}

// NodePatch is a partial update applied by UpdateNode. Nil fields are left
// unchanged; Properties are merged key-wise into the existing map.
type NodePatch struct {
	Label      *string
	Properties map[string]any
	Confidence *float64
}

// EdgeSpec is the input to CreateEdge.
type EdgeSpec struct {
	SourceID      string
	TargetID      string
	Relation      string
	Weight        float64
	Bidirectional bool
	Confidence    float64
	AgentID       string
	ObservedAt    int64
}

// NodeFilter selects nodes for ListNodes. Zero values mean "no constraint";
// supplied constraints combine with logical AND.
type NodeFilter struct {
	Type          string
	MinConfidence *float64
}

// Direction selects which edges GetNeighbors follows.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// Path is the result of a shortest-path search: len(Nodes) == hops+1 and
// len(Edges) == hops, alternating node, edge, node from start to end.
type Path struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Hops returns the number of edges in the path.
func (p *Path) Hops() int { return len(p.Edges) }

// PathQuery parameterizes FindShortestPath.
type PathQuery struct {
	StartNodeID string
	EndNodeID   string
	MaxHops     int
}

// Degree counts the edges touching a node. TotalDegree is an edge count,
// not a distinct-neighbor count.
type Degree struct {
	OutDegree   int `json:"outDegree"`
	InDegree    int `json:"inDegree"`
	TotalDegree int `json:"totalDegree"`
}

// Stats summarizes the live (non-tombstoned) graph.
type Stats struct {
	NodeCount   int            `json:"nodeCount"`
	EdgeCount   int            `json:"edgeCount"`
	NodesByType map[string]int `json:"nodesByType"`
}
