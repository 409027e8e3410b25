package graph

import (
	"context"
	"fmt"
	"strings"

	gUtil "github.com/knoweave/knoweave/internal/util"
	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/logger"
	"github.com/knoweave/knoweave/pkg/store"
)

// ProcessDocument runs the full pipeline for one document: fetch chunks,
// extract and merge candidates per chunk, persist nodes and relations, and
// report counters.
//
// Chunks are processed sequentially so a chunk's nodes exist before its
// relations reference them. A single chunk's failure is logged and skipped;
// counters only reflect what succeeded.
func (c *Client) ProcessDocument(ctx context.Context, documentID, ownerID int64) (*common.ProcessStats, error) {
	chunks, err := gUtil.RetryWithContext(ctx, c.maxRetries, func(ctx context.Context) ([]common.Chunk, error) {
		return c.source.GetChunks(ctx, documentID)
	})
	if err != nil {
		return nil, err
	}

	stats := &common.ProcessStats{DocumentID: documentID}
	for _, chunk := range chunks {
		if err := c.processChunk(ctx, documentID, ownerID, chunk, stats); err != nil {
			logger.Error("[Pipeline] Chunk failed, continuing with remaining chunks",
				"document_id", documentID, "chunk", chunk.Index, "error", err)
			continue
		}
		stats.ChunksProcessed++
	}

	logger.Info("[Pipeline] Document processed",
		"document_id", documentID,
		"owner_id", ownerID,
		"chunks", stats.ChunksProcessed,
		"entities", stats.EntitiesExtracted,
		"relations", stats.RelationsExtracted,
		"nodes_created", stats.NodesCreated,
		"edges_created", stats.EdgesCreated)
	return stats, nil
}

func (c *Client) processChunk(ctx context.Context, documentID, ownerID int64, chunk common.Chunk, stats *common.ProcessStats) error {
	entities, err := c.extract(chunk.Content, c.strategy)
	if err != nil {
		return fmt.Errorf("extract entities: %w", err)
	}
	relations := c.config.ExtractRelations(chunk.Content, entities)

	stats.EntitiesExtracted += len(entities)
	stats.RelationsExtracted += len(relations)

	provenance := fmt.Sprintf("document:%d chunk:%d", documentID, chunk.Index)

	// Nodes upserted in this chunk, keyed the same way merge groups
	// entities. Relations may only reference endpoints from this map.
	nodes := make(map[entityKey]*common.KnowledgeNode, len(entities))

	for _, entity := range entities {
		node, created, err := c.store.UpsertNode(ctx, store.UpsertNodeParams{
			OwnerID:    ownerID,
			Name:       entity.Text,
			Type:       entity.Type,
			Properties: common.Properties{"strategy": entity.Strategy},
			Confidence: entity.Confidence,
			Provenance: provenance,
		})
		if err != nil {
			logger.Error("[Pipeline] Node upsert failed, skipping entity",
				"document_id", documentID, "chunk", chunk.Index, "name", entity.Text, "error", err)
			continue
		}
		if created {
			stats.NodesCreated++
		}
		nodes[keyOf(entity)] = node
	}

	for _, rel := range relations {
		source, sourceOK := nodes[keyOf(rel.Source)]
		target, targetOK := nodes[keyOf(rel.Target)]
		if !sourceOK || !targetOK {
			continue
		}
		if source.ID == target.ID {
			continue
		}

		_, created, err := c.store.UpsertRelation(ctx, store.UpsertRelationParams{
			OwnerID:      ownerID,
			SourceNodeID: source.ID,
			TargetNodeID: target.ID,
			Type:         rel.Type,
			Properties:   common.Properties{"strategy": rel.Strategy},
			Confidence:   rel.Confidence,
			Context:      rel.Context,
		})
		if err != nil {
			logger.Error("[Pipeline] Relation upsert failed, skipping relation",
				"document_id", documentID, "chunk", chunk.Index,
				"source", rel.Source.Text, "target", rel.Target.Text, "error", err)
			continue
		}
		if created {
			stats.EdgesCreated++
		}
	}

	return nil
}

type entityKey struct {
	Text string
	Type common.NodeType
}

func keyOf(e common.EntityCandidate) entityKey {
	return entityKey{Text: strings.ToLower(e.Text), Type: e.Type}
}
