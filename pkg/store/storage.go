package store

import (
	"context"

	"github.com/knoweave/knoweave/pkg/common"
)

// KnowledgeStore defines the interface for the authoritative node/relation
// store. All operations are scoped by the owning tenant; no call may return
// or mutate data across tenants.
//
// Upserts are idempotent: creating a node or relation whose identity tuple
// already exists returns the existing row unchanged.
type KnowledgeStore interface {
	// UpsertNode creates a node or returns the existing one for the
	// (owner, name, type) tuple. The returned bool is true when a new row
	// was created. The operation is atomic under concurrent callers.
	UpsertNode(ctx context.Context, params UpsertNodeParams) (*common.KnowledgeNode, bool, error)

	// UpsertRelation creates a relation or returns the existing one for
	// the (owner, source, target, type) tuple. Fails with
	// ErrInvalidRelation for self-loops and ErrNotFound when either
	// endpoint is missing or belongs to a different owner.
	UpsertRelation(ctx context.Context, params UpsertRelationParams) (*common.KnowledgeRelation, bool, error)

	GetNode(ctx context.Context, ownerID, nodeID int64) (*common.KnowledgeNode, error)

	// DeleteNode soft-removes a node and its incident relations.
	DeleteNode(ctx context.Context, ownerID, nodeID int64) error
	DeleteRelation(ctx context.Context, ownerID, relationID int64) error

	SearchNodes(ctx context.Context, ownerID int64, filter NodeFilter) ([]common.KnowledgeNode, error)
	SearchRelations(ctx context.Context, ownerID int64, filter RelationFilter) ([]common.RelationWithEndpoints, error)

	// ListNodes and ListRelations stream the full live graph of one owner,
	// used by the mirror reconciliation job.
	ListNodes(ctx context.Context, ownerID int64) ([]common.KnowledgeNode, error)
	ListRelations(ctx context.Context, ownerID int64) ([]common.KnowledgeRelation, error)

	Statistics(ctx context.Context, ownerID int64) (*common.GraphStatistics, error)
}

// UpsertNodeParams carries the inputs for KnowledgeStore.UpsertNode.
type UpsertNodeParams struct {
	OwnerID    int64
	Name       string
	Type       common.NodeType
	Properties common.Properties
	Confidence float64
	Provenance string
}

// UpsertRelationParams carries the inputs for KnowledgeStore.UpsertRelation.
type UpsertRelationParams struct {
	OwnerID      int64
	SourceNodeID int64
	TargetNodeID int64
	Type         common.RelationType
	Properties   common.Properties
	Confidence   float64
	Context      string
}

// NodeFilter narrows a node search. Zero values mean "no constraint".
type NodeFilter struct {
	Type          common.NodeType
	NameContains  string
	MinConfidence float64
	Limit         int
}

// RelationFilter narrows a relation search. Zero values mean "no constraint".
type RelationFilter struct {
	Type         common.RelationType
	SourceNodeID int64
	TargetNodeID int64
	Limit        int
}

// DocumentSource yields the ordered text chunks of a document. Chunking and
// embedding are owned by an external collaborator; this engine only reads.
type DocumentSource interface {
	GetChunks(ctx context.Context, documentID int64) ([]common.Chunk, error)
}

// MirrorStore receives best-effort copies of authoritative writes for
// traversal queries. Mirror failures must never fail the authoritative
// write; implementations log and continue.
type MirrorStore interface {
	UpsertNode(ctx context.Context, node *common.KnowledgeNode) error
	UpsertRelation(ctx context.Context, rel *common.KnowledgeRelation) error
	DeleteNode(ctx context.Context, ownerID int64, publicID string) error
	DeleteRelation(ctx context.Context, ownerID int64, publicID string) error
}

// MirrorQueue is the fire-and-forget dispatch in front of a MirrorStore.
// Operations are applied in enqueue order, which preserves the per-node
// invariant that a node's mirror write lands before any relation mirror
// write referencing it.
type MirrorQueue interface {
	EnqueueNodeUpsert(node *common.KnowledgeNode)
	EnqueueRelationUpsert(rel *common.KnowledgeRelation)
	EnqueueNodeDelete(ownerID int64, publicID string)
	EnqueueRelationDelete(ownerID int64, publicID string)
}
