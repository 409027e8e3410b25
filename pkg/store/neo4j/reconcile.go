package neo4j

import (
	"context"
	"fmt"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/logger"
)

// Reconcile rebuilds one owner's mirror subgraph from the authoritative
// node and relation lists. The owner's existing mirror data is dropped and
// rewritten in a single transaction, so readers never observe a half-built
// subgraph.
func (m *GraphMirrorStore) Reconcile(ctx context.Context, ownerID int64, nodes []common.KnowledgeNode, relations []common.KnowledgeRelation) error {
	if !m.enabled() {
		return nil
	}

	nodeRows := make([]map[string]any, 0, len(nodes))
	for _, n := range nodes {
		nodeRows = append(nodeRows, map[string]any{
			"public_id":  n.PublicID,
			"node_id":    n.ID,
			"name":       n.Name,
			"type":       string(n.Type),
			"confidence": n.Confidence,
		})
	}

	relRows := make([]map[string]any, 0, len(relations))
	for _, r := range relations {
		relRows = append(relRows, map[string]any{
			"public_id":  r.PublicID,
			"source_id":  r.SourceNodeID,
			"target_id":  r.TargetNodeID,
			"type":       string(r.Type),
			"confidence": r.Confidence,
		})
	}

	session := m.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (n:KnowledgeNode {owner_id: $owner_id})
DETACH DELETE n
`, map[string]any{"owner_id": ownerID})
		if err != nil {
			return nil, err
		}
		if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(nodeRows) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS node
MERGE (n:KnowledgeNode {public_id: node.public_id})
SET n.node_id = node.node_id,
    n.owner_id = $owner_id,
    n.name = node.name,
    n.type = node.type,
    n.confidence = node.confidence
`, map[string]any{"owner_id": ownerID, "nodes": nodeRows})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(relRows) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $relations AS rel
MATCH (s:KnowledgeNode {owner_id: $owner_id, node_id: rel.source_id})
MATCH (t:KnowledgeNode {owner_id: $owner_id, node_id: rel.target_id})
MERGE (s)-[r:RELATES {public_id: rel.public_id}]->(t)
SET r.owner_id = $owner_id,
    r.type = rel.type,
    r.confidence = rel.confidence
`, map[string]any{"owner_id": ownerID, "relations": relRows})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("reconcile owner %d: %w", ownerID, err)
	}

	logger.Info("[Mirror] Reconciled owner subgraph",
		"owner_id", ownerID, "nodes", len(nodeRows), "relations", len(relRows))
	return nil
}
