package pgx

import (
	"context"
	"fmt"

	"github.com/knoweave/knoweave/pkg/common"
)

// Statistics aggregates per-tenant graph counts. Density is edges over the
// maximum possible directed edges for the node count, zero for graphs with
// fewer than two nodes.
func (s *KnowledgeDBStore) Statistics(ctx context.Context, ownerID int64) (*common.GraphStatistics, error) {
	stats := &common.GraphStatistics{
		NodeTypes:     make(map[string]int64),
		RelationTypes: make(map[string]int64),
	}

	rows, err := s.conn.Query(ctx, `
		SELECT type, count(*)
		FROM knowledge_nodes
		WHERE owner_id = $1 AND deleted_at IS NULL
		GROUP BY type
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("node statistics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var count int64
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("node statistics: %w", err)
		}
		stats.NodeTypes[typ] = count
		stats.TotalNodes += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("node statistics: %w", err)
	}
	rows.Close()

	rows, err = s.conn.Query(ctx, `
		SELECT type, count(*)
		FROM knowledge_relations
		WHERE owner_id = $1 AND deleted_at IS NULL
		GROUP BY type
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("relation statistics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var count int64
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, fmt.Errorf("relation statistics: %w", err)
		}
		stats.RelationTypes[typ] = count
		stats.TotalRelations += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("relation statistics: %w", err)
	}

	if stats.TotalNodes > 1 {
		maxEdges := stats.TotalNodes * (stats.TotalNodes - 1)
		stats.GraphDensity = float64(stats.TotalRelations) / float64(maxEdges)
	}

	return stats, nil
}
