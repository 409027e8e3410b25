package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pgxv5 "github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/knoweave/knoweave/internal/util"
	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/logger"
	"github.com/knoweave/knoweave/pkg/store"
)

const nodeColumns = `id, public_id, owner_id, name, type, properties, confidence, provenance, created_at, updated_at`

// UpsertNode inserts a node or returns the existing row for the
// (owner, name, type) tuple. The conflict target is the partial unique
// index over live rows, so the insert-or-return is a single atomic
// statement. Existing rows come back with their stored fields untouched.
func (s *KnowledgeDBStore) UpsertNode(ctx context.Context, params store.UpsertNodeParams) (*common.KnowledgeNode, bool, error) {
	name := util.SanitizePostgresText(params.Name)
	if name == "" {
		return nil, false, fmt.Errorf("%w: node name is empty", store.ErrInvalidRelation)
	}
	if !params.Type.Valid() {
		return nil, false, fmt.Errorf("%w: unknown node type %q", store.ErrInvalidRelation, params.Type)
	}

	publicID, err := gonanoid.New()
	if err != nil {
		return nil, false, fmt.Errorf("generate node public id: %w", err)
	}

	props, err := params.Properties.MarshalJSONB()
	if err != nil {
		return nil, false, err
	}

	row := s.conn.QueryRow(ctx, `
		INSERT INTO knowledge_nodes (public_id, owner_id, name, type, properties, confidence, provenance)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, name, type) WHERE deleted_at IS NULL
		DO UPDATE SET name = EXCLUDED.name
		RETURNING `+nodeColumns+`, (xmax = 0) AS inserted
	`, publicID, params.OwnerID, name, string(params.Type), props, params.Confidence, util.SanitizePostgresText(params.Provenance))

	node, created, err := scanNodeWithInserted(row)
	if err != nil {
		return nil, false, fmt.Errorf("upsert node: %w", err)
	}

	if created && s.mirror != nil {
		s.mirror.EnqueueNodeUpsert(node)
	}

	return node, created, nil
}

// GetNode fetches a live node by id within the owner's scope.
func (s *KnowledgeDBStore) GetNode(ctx context.Context, ownerID, nodeID int64) (*common.KnowledgeNode, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT `+nodeColumns+`
		FROM knowledge_nodes
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
	`, nodeID, ownerID)

	node, err := scanNode(row)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, fmt.Errorf("%w: node %d", store.ErrNotFound, nodeID)
		}
		return nil, fmt.Errorf("get node: %w", err)
	}
	return node, nil
}

// DeleteNode soft-removes a node and its incident relations. Mirror
// deletion is dispatched best-effort after the authoritative delete.
func (s *KnowledgeDBStore) DeleteNode(ctx context.Context, ownerID, nodeID int64) error {
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("delete node: %w", err)
	}
	defer tx.Rollback(ctx)

	var publicID string
	err = tx.QueryRow(ctx, `
		UPDATE knowledge_nodes
		SET deleted_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
		RETURNING public_id
	`, nodeID, ownerID).Scan(&publicID)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return fmt.Errorf("%w: node %d", store.ErrNotFound, nodeID)
		}
		return fmt.Errorf("delete node: %w", err)
	}

	relRows, err := tx.Query(ctx, `
		UPDATE knowledge_relations
		SET deleted_at = now()
		WHERE owner_id = $1 AND deleted_at IS NULL
		  AND (source_node_id = $2 OR target_node_id = $2)
		RETURNING public_id
	`, ownerID, nodeID)
	if err != nil {
		return fmt.Errorf("delete incident relations: %w", err)
	}
	relPublicIDs := make([]string, 0)
	for relRows.Next() {
		var pid string
		if err := relRows.Scan(&pid); err != nil {
			relRows.Close()
			return fmt.Errorf("delete incident relations: %w", err)
		}
		relPublicIDs = append(relPublicIDs, pid)
	}
	relRows.Close()
	if err := relRows.Err(); err != nil {
		return fmt.Errorf("delete incident relations: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("delete node: %w", err)
	}

	if s.mirror != nil {
		for _, pid := range relPublicIDs {
			s.mirror.EnqueueRelationDelete(ownerID, pid)
		}
		s.mirror.EnqueueNodeDelete(ownerID, publicID)
	}

	logger.Debug("[Store] Node deleted", "owner_id", ownerID, "node_id", nodeID, "relations", len(relPublicIDs))
	return nil
}

// SearchNodes filters live nodes by optional type, case-insensitive name
// substring, and minimum confidence. The limit defaults to 20 and is capped
// at 100.
func (s *KnowledgeDBStore) SearchNodes(ctx context.Context, ownerID int64, filter store.NodeFilter) ([]common.KnowledgeNode, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + nodeColumns + ` FROM knowledge_nodes WHERE owner_id = $1 AND deleted_at IS NULL`)
	args := []any{ownerID}

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		fmt.Fprintf(&b, " AND type = $%d", len(args))
	}
	if filter.NameContains != "" {
		args = append(args, "%"+filter.NameContains+"%")
		fmt.Fprintf(&b, " AND name ILIKE $%d", len(args))
	}
	if filter.MinConfidence > 0 {
		args = append(args, filter.MinConfidence)
		fmt.Fprintf(&b, " AND confidence >= $%d", len(args))
	}

	args = append(args, clampLimit(filter.Limit))
	fmt.Fprintf(&b, " ORDER BY confidence DESC, id LIMIT $%d", len(args))

	rows, err := s.conn.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]common.KnowledgeNode, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("search nodes: %w", err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search nodes: %w", err)
	}
	return nodes, nil
}

// ListNodes returns every live node of one owner, for mirror reconciliation.
func (s *KnowledgeDBStore) ListNodes(ctx context.Context, ownerID int64) ([]common.KnowledgeNode, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+nodeColumns+`
		FROM knowledge_nodes
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]common.KnowledgeNode, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("list nodes: %w", err)
		}
		nodes = append(nodes, *node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	return nodes, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*common.KnowledgeNode, error) {
	var node common.KnowledgeNode
	var typ string
	var props []byte
	err := row.Scan(
		&node.ID, &node.PublicID, &node.OwnerID, &node.Name, &typ,
		&props, &node.Confidence, &node.Provenance, &node.CreatedAt, &node.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	node.Type = common.NodeType(typ)
	if err := node.Properties.UnmarshalJSONB(props); err != nil {
		return nil, err
	}
	return &node, nil
}

func scanNodeWithInserted(row rowScanner) (*common.KnowledgeNode, bool, error) {
	var node common.KnowledgeNode
	var typ string
	var props []byte
	var inserted bool
	err := row.Scan(
		&node.ID, &node.PublicID, &node.OwnerID, &node.Name, &typ,
		&props, &node.Confidence, &node.Provenance, &node.CreatedAt, &node.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, err
	}
	node.Type = common.NodeType(typ)
	if err := node.Properties.UnmarshalJSONB(props); err != nil {
		return nil, false, err
	}
	return &node, inserted, nil
}
