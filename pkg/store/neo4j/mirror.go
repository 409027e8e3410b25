package neo4j

import (
	"context"
	"errors"
	"fmt"
	"strings"

	neo4jv5 "github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"

	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/store"
)

// GraphMirrorStore keeps a best-effort copy of the knowledge graph for
// traversal queries. Nodes are keyed by public_id; relations are single
// :RELATES edges carrying the semantic type as a property, so all writes
// stay fully parameterized.
type GraphMirrorStore struct {
	client *Client
}

func NewGraphMirrorStore(client *Client) *GraphMirrorStore {
	return &GraphMirrorStore{client: client}
}

func (m *GraphMirrorStore) enabled() bool {
	return m != nil && m.client != nil && m.client.Driver != nil
}

func (m *GraphMirrorStore) writeSession(ctx context.Context) neo4jv5.SessionWithContext {
	return m.client.Driver.NewSession(ctx, neo4jv5.SessionConfig{
		AccessMode:   neo4jv5.AccessModeWrite,
		DatabaseName: m.client.Database,
	})
}

func (m *GraphMirrorStore) readSession(ctx context.Context) neo4jv5.SessionWithContext {
	return m.client.Driver.NewSession(ctx, neo4jv5.SessionConfig{
		AccessMode:   neo4jv5.AccessModeRead,
		DatabaseName: m.client.Database,
	})
}

func (m *GraphMirrorStore) UpsertNode(ctx context.Context, node *common.KnowledgeNode) error {
	if !m.enabled() || node == nil {
		return nil
	}
	session := m.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MERGE (n:KnowledgeNode {public_id: $public_id})
SET n.node_id = $node_id,
    n.owner_id = $owner_id,
    n.name = $name,
    n.type = $type,
    n.confidence = $confidence,
    n.strategy = $strategy
`, map[string]any{
			"public_id":  node.PublicID,
			"node_id":    node.ID,
			"owner_id":   node.OwnerID,
			"name":       node.Name,
			"type":       string(node.Type),
			"confidence": node.Confidence,
			"strategy":   node.Properties.GetString("strategy"),
		})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("mirror upsert node %s: %w", node.PublicID, err)
	}
	return nil
}

func (m *GraphMirrorStore) UpsertRelation(ctx context.Context, rel *common.KnowledgeRelation) error {
	if !m.enabled() || rel == nil {
		return nil
	}
	session := m.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (s:KnowledgeNode {owner_id: $owner_id, node_id: $source_id})
MATCH (t:KnowledgeNode {owner_id: $owner_id, node_id: $target_id})
MERGE (s)-[r:RELATES {public_id: $public_id}]->(t)
SET r.owner_id = $owner_id,
    r.type = $type,
    r.confidence = $confidence
`, map[string]any{
			"public_id":  rel.PublicID,
			"owner_id":   rel.OwnerID,
			"source_id":  rel.SourceNodeID,
			"target_id":  rel.TargetNodeID,
			"type":       string(rel.Type),
			"confidence": rel.Confidence,
		})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary, nil
	})
	if err != nil {
		return fmt.Errorf("mirror upsert relation %s: %w", rel.PublicID, err)
	}
	return nil
}

func (m *GraphMirrorStore) DeleteNode(ctx context.Context, ownerID int64, publicID string) error {
	if !m.enabled() {
		return nil
	}
	session := m.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (n:KnowledgeNode {owner_id: $owner_id, public_id: $public_id})
DETACH DELETE n
`, map[string]any{"owner_id": ownerID, "public_id": publicID})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("mirror delete node %s: %w", publicID, err)
	}
	return nil
}

func (m *GraphMirrorStore) DeleteRelation(ctx context.Context, ownerID int64, publicID string) error {
	if !m.enabled() {
		return nil
	}
	session := m.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH ()-[r:RELATES {public_id: $public_id}]->()
WHERE r.owner_id = $owner_id
DELETE r
`, map[string]any{"owner_id": ownerID, "public_id": publicID})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("mirror delete relation %s: %w", publicID, err)
	}
	return nil
}

// FindPaths returns the shortest paths between two nodes, up to maxLength
// hops. Every node on a returned path belongs to the owner; paths crossing
// other tenants' nodes are filtered out. maxLength must already be clamped
// by the caller since variable-length bounds cannot be bound as parameters.
func (m *GraphMirrorStore) FindPaths(ctx context.Context, ownerID, sourceID, targetID int64, maxLength int) ([]common.GraphPath, error) {
	if !m.enabled() {
		return nil, nil
	}
	session := m.readSession(ctx)
	defer session.Close(ctx)

	query := fmt.Sprintf(`
MATCH (a:KnowledgeNode {owner_id: $owner_id, node_id: $source_id})
MATCH (b:KnowledgeNode {owner_id: $owner_id, node_id: $target_id})
MATCH p = allShortestPaths((a)-[:RELATES*..%d]-(b))
WHERE all(n IN nodes(p) WHERE n.owner_id = $owner_id)
RETURN [n IN nodes(p) | {id: n.node_id, name: n.name, type: n.type}] AS nodes,
       [r IN relationships(p) | {type: r.type, confidence: r.confidence}] AS relations
`, maxLength)

	result, err := session.ExecuteRead(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{
			"owner_id":  ownerID,
			"source_id": sourceID,
			"target_id": targetID,
		})
		if err != nil {
			return nil, err
		}

		var paths []common.GraphPath
		for res.Next(ctx) {
			record := res.Record()
			rawNodes, _ := record.Get("nodes")
			rawRels, _ := record.Get("relations")
			paths = append(paths, buildPath(rawNodes, rawRels))
		}
		return paths, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("find paths: %w", err)
	}
	paths, _ := result.([]common.GraphPath)
	return paths, nil
}

// RunRawQuery executes a read-only traversal query. The caller's tenant id
// is always bound as $owner_id; vetting that the query actually uses it is
// the query engine's job. Rows come back as column-name keyed maps.
func (m *GraphMirrorStore) RunRawQuery(ctx context.Context, ownerID int64, query string, params map[string]any) ([]map[string]any, error) {
	if !m.enabled() {
		return nil, nil
	}
	session := m.readSession(ctx)
	defer session.Close(ctx)

	bound := make(map[string]any, len(params)+1)
	for k, v := range params {
		bound[k] = v
	}
	bound["owner_id"] = ownerID

	result, err := session.ExecuteRead(ctx, func(tx neo4jv5.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, bound)
		if err != nil {
			return nil, err
		}

		var out []map[string]any
		for res.Next(ctx) {
			out = append(out, res.Record().AsMap())
		}
		return out, res.Err()
	})
	if err != nil {
		var n4jErr *db.Neo4jError
		if errors.As(err, &n4jErr) && strings.Contains(n4jErr.Code, "SyntaxError") {
			return nil, fmt.Errorf("%w: %s", store.ErrQuerySyntax, n4jErr.Msg)
		}
		return nil, fmt.Errorf("raw query: %w", err)
	}
	rows, _ := result.([]map[string]any)
	return rows, nil
}

func buildPath(rawNodes, rawRels any) common.GraphPath {
	var path common.GraphPath
	if nodeList, ok := rawNodes.([]any); ok {
		for _, raw := range nodeList {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			ref := common.NodeRef{Name: asString(entry["name"])}
			ref.ID = asInt64(entry["id"])
			ref.Type = common.NodeType(asString(entry["type"]))
			path.Nodes = append(path.Nodes, ref)
		}
	}
	if relList, ok := rawRels.([]any); ok {
		for _, raw := range relList {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			path.Relations = append(path.Relations, common.PathRelation{
				Type:       common.RelationType(asString(entry["type"])),
				Confidence: asFloat64(entry["confidence"]),
			})
		}
	}
	path.Length = len(path.Relations)
	return path
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func asFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}
