// Package query answers graph questions over the dual store: node and
// relation lookups go to the authoritative relational store, path and raw
// traversal queries go to the graph mirror.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/store"
)

const (
	defaultPathLength = 6
	maxPathLength     = 10
	defaultPathLimit  = 20
	maxPathLimit      = 100
)

// Traversal is the subset of mirror capabilities the engine needs. The
// authoritative store cannot serve these; when no mirror is configured the
// engine reports traversal queries as unavailable.
type Traversal interface {
	FindPaths(ctx context.Context, ownerID, sourceID, targetID int64, maxLength int) ([]common.GraphPath, error)
	RunRawQuery(ctx context.Context, ownerID int64, query string, params map[string]any) ([]map[string]any, error)
}

type Engine struct {
	store     store.KnowledgeStore
	traversal Traversal
}

type EngineOption func(*Engine)

// WithTraversal attaches the graph mirror used for path and raw queries.
func WithTraversal(t Traversal) EngineOption {
	return func(e *Engine) {
		e.traversal = t
	}
}

func NewEngine(s store.KnowledgeStore, opts ...EngineOption) *Engine {
	e := &Engine{store: s}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(e)
	}
	return e
}

// SearchNodes finds nodes by type, name substring, and minimum confidence.
func (e *Engine) SearchNodes(ctx context.Context, ownerID int64, filter store.NodeFilter) ([]common.KnowledgeNode, error) {
	return e.store.SearchNodes(ctx, ownerID, filter)
}

// SearchRelations finds relations with resolved endpoint summaries.
func (e *Engine) SearchRelations(ctx context.Context, ownerID int64, filter store.RelationFilter) ([]common.RelationWithEndpoints, error) {
	return e.store.SearchRelations(ctx, ownerID, filter)
}

func (e *Engine) GetNode(ctx context.Context, ownerID, nodeID int64) (*common.KnowledgeNode, error) {
	return e.store.GetNode(ctx, ownerID, nodeID)
}

// CreateNode creates a node directly, outside of document processing. It is
// idempotent per (owner, name, type).
func (e *Engine) CreateNode(ctx context.Context, params store.UpsertNodeParams) (*common.KnowledgeNode, error) {
	node, _, err := e.store.UpsertNode(ctx, params)
	return node, err
}

// CreateRelation creates a relation directly, outside of document
// processing. It is idempotent per (owner, source, target, type).
func (e *Engine) CreateRelation(ctx context.Context, params store.UpsertRelationParams) (*common.KnowledgeRelation, error) {
	rel, _, err := e.store.UpsertRelation(ctx, params)
	return rel, err
}

// FindPaths returns up to limit shortest paths between two nodes, each at
// most maxLength hops long. Zero or negative bounds fall back to defaults;
// values above the caps are clamped, not rejected. A missing endpoint
// yields an empty result rather than an error.
func (e *Engine) FindPaths(ctx context.Context, ownerID, sourceID, targetID int64, maxLength, limit int) ([]common.GraphPath, error) {
	if e.traversal == nil {
		return nil, fmt.Errorf("find paths: no traversal store configured")
	}

	if maxLength <= 0 {
		maxLength = defaultPathLength
	}
	if maxLength > maxPathLength {
		maxLength = maxPathLength
	}
	if limit <= 0 {
		limit = defaultPathLimit
	}
	if limit > maxPathLimit {
		limit = maxPathLimit
	}

	for _, id := range []int64{sourceID, targetID} {
		if _, err := e.store.GetNode(ctx, ownerID, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
	}

	paths, err := e.traversal.FindPaths(ctx, ownerID, sourceID, targetID, maxLength)
	if err != nil {
		return nil, err
	}

	// Post-filter so the bound holds regardless of how the traversal
	// store implements it.
	filtered := paths[:0]
	for _, p := range paths {
		if p.Length <= maxLength {
			filtered = append(filtered, p)
		}
		if len(filtered) == limit {
			break
		}
	}
	return filtered, nil
}

// RawQuery runs a vetted read-only traversal query against the mirror. The
// caller's tenant id is bound as $owner_id by the driver; queries that do
// not reference it, or that contain write clauses, are rejected before
// reaching the database.
func (e *Engine) RawQuery(ctx context.Context, ownerID int64, query string, params map[string]any) ([]map[string]any, error) {
	if e.traversal == nil {
		return nil, fmt.Errorf("raw query: no traversal store configured")
	}
	if err := vetRawQuery(query, params); err != nil {
		return nil, err
	}
	return e.traversal.RunRawQuery(ctx, ownerID, query, params)
}

// Statistics reports per-tenant graph counts from the authoritative store.
func (e *Engine) Statistics(ctx context.Context, ownerID int64) (*common.GraphStatistics, error) {
	return e.store.Statistics(ctx, ownerID)
}
