package common

import "time"

// KnowledgeNode represents a typed entity in the knowledge graph, owned by
// a single tenant. Nodes are uniquely identified per tenant by their
// (name, type) pair; creating the same pair twice returns the existing node.
//
// The relational store assigns the numeric ID; PublicID is a stable,
// externally safe identifier shared with the mirror graph store.
type KnowledgeNode struct {
	ID         int64      `json:"id"`
	PublicID   string     `json:"public_id"`
	OwnerID    int64      `json:"owner_id"`
	Name       string     `json:"name"`
	Type       NodeType   `json:"type"`
	Properties Properties `json:"properties"`
	Confidence float64    `json:"confidence"`
	Provenance string     `json:"provenance"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// KnowledgeRelation represents a typed, directed edge between two nodes
// owned by the same tenant. Source and target must differ; per tenant at
// most one live relation exists for a (source, target, type) triple.
//
// Context carries the snippet of source text the relation was derived from.
type KnowledgeRelation struct {
	ID           int64        `json:"id"`
	PublicID     string       `json:"public_id"`
	OwnerID      int64        `json:"owner_id"`
	SourceNodeID int64        `json:"source_node_id"`
	TargetNodeID int64        `json:"target_node_id"`
	Type         RelationType `json:"type"`
	Properties   Properties   `json:"properties"`
	Confidence   float64      `json:"confidence"`
	Context      string       `json:"context"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NodeRef is a resolved endpoint summary attached to relation query results.
type NodeRef struct {
	ID   int64    `json:"id"`
	Name string   `json:"name"`
	Type NodeType `json:"type"`
}

// RelationWithEndpoints pairs a relation with its resolved endpoints for
// query results. Relations whose endpoints cannot be resolved for the
// querying tenant are excluded from results entirely.
type RelationWithEndpoints struct {
	KnowledgeRelation
	SourceNode NodeRef `json:"source_node"`
	TargetNode NodeRef `json:"target_node"`
}

// EntityCandidate is a transient extraction result for a single text span.
// Candidates are produced per chunk, consumed by the merge step, and
// discarded after persistence; they are never stored.
type EntityCandidate struct {
	Text       string   `json:"text"`
	Type       NodeType `json:"type"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	Confidence float64  `json:"confidence"`
	Strategy   string   `json:"strategy"`
}

// RelationCandidate is a transient relation extraction result linking two
// entity candidates from the same chunk.
type RelationCandidate struct {
	Source     EntityCandidate `json:"source"`
	Target     EntityCandidate `json:"target"`
	Type       RelationType    `json:"type"`
	Confidence float64         `json:"confidence"`
	Context    string          `json:"context"`
	Strategy   string          `json:"strategy"`
}

// Chunk is one ordered text segment of a document, as delivered by the
// document source.
type Chunk struct {
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// ProcessStats summarizes one document pipeline run. Counters reflect only
// what succeeded; chunks that failed extraction or persistence are skipped
// and not counted.
type ProcessStats struct {
	DocumentID         int64 `json:"document_id"`
	ChunksProcessed    int   `json:"chunks_processed"`
	EntitiesExtracted  int   `json:"entities_extracted"`
	RelationsExtracted int   `json:"relations_extracted"`
	NodesCreated       int   `json:"nodes_created"`
	EdgesCreated       int   `json:"edges_created"`
}

// GraphPath is a single path between two nodes, reported with its ordered
// node and relation sequence. Length counts edges.
type GraphPath struct {
	Nodes     []NodeRef      `json:"nodes"`
	Relations []PathRelation `json:"relations"`
	Length    int            `json:"length"`
}

// PathRelation is the per-edge payload inside a GraphPath.
type PathRelation struct {
	Type       RelationType `json:"type"`
	Confidence float64      `json:"confidence"`
}

// GraphStatistics aggregates per-tenant graph counts.
type GraphStatistics struct {
	TotalNodes     int64            `json:"total_nodes"`
	TotalRelations int64            `json:"total_relations"`
	NodeTypes      map[string]int64 `json:"node_types"`
	RelationTypes  map[string]int64 `json:"relation_types"`
	GraphDensity   float64          `json:"graph_density"`
}
