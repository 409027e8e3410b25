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

const relationColumns = `id, public_id, owner_id, source_node_id, target_node_id, type, properties, confidence, context, created_at, updated_at`

// UpsertRelation inserts a relation or returns the existing row for the
// (owner, source, target, type) tuple. Endpoint existence and ownership are
// checked inside the same statement, so a concurrent node delete cannot
// slip a dangling edge in.
func (s *KnowledgeDBStore) UpsertRelation(ctx context.Context, params store.UpsertRelationParams) (*common.KnowledgeRelation, bool, error) {
	if params.SourceNodeID == params.TargetNodeID {
		return nil, false, fmt.Errorf("%w: source and target node are the same (%d)", store.ErrInvalidRelation, params.SourceNodeID)
	}
	if !params.Type.Valid() {
		return nil, false, fmt.Errorf("%w: unknown relation type %q", store.ErrInvalidRelation, params.Type)
	}

	publicID, err := gonanoid.New()
	if err != nil {
		return nil, false, fmt.Errorf("generate relation public id: %w", err)
	}

	props, err := params.Properties.MarshalJSONB()
	if err != nil {
		return nil, false, err
	}

	row := s.conn.QueryRow(ctx, `
		INSERT INTO knowledge_relations (public_id, owner_id, source_node_id, target_node_id, type, properties, confidence, context)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8
		WHERE EXISTS (
			SELECT 1 FROM knowledge_nodes
			WHERE id = $3 AND owner_id = $2 AND deleted_at IS NULL
		) AND EXISTS (
			SELECT 1 FROM knowledge_nodes
			WHERE id = $4 AND owner_id = $2 AND deleted_at IS NULL
		)
		ON CONFLICT (owner_id, source_node_id, target_node_id, type) WHERE deleted_at IS NULL
		DO UPDATE SET type = EXCLUDED.type
		RETURNING `+relationColumns+`, (xmax = 0) AS inserted
	`, publicID, params.OwnerID, params.SourceNodeID, params.TargetNodeID,
		string(params.Type), props, params.Confidence, util.SanitizePostgresText(params.Context))

	rel, created, err := scanRelationWithInserted(row)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return nil, false, fmt.Errorf("%w: relation endpoints %d -> %d", store.ErrNotFound, params.SourceNodeID, params.TargetNodeID)
		}
		return nil, false, fmt.Errorf("upsert relation: %w", err)
	}

	if created && s.mirror != nil {
		s.mirror.EnqueueRelationUpsert(rel)
	}

	return rel, created, nil
}

// DeleteRelation soft-removes a single relation.
func (s *KnowledgeDBStore) DeleteRelation(ctx context.Context, ownerID, relationID int64) error {
	var publicID string
	err := s.conn.QueryRow(ctx, `
		UPDATE knowledge_relations
		SET deleted_at = now()
		WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL
		RETURNING public_id
	`, relationID, ownerID).Scan(&publicID)
	if err != nil {
		if errors.Is(err, pgxv5.ErrNoRows) {
			return fmt.Errorf("%w: relation %d", store.ErrNotFound, relationID)
		}
		return fmt.Errorf("delete relation: %w", err)
	}

	if s.mirror != nil {
		s.mirror.EnqueueRelationDelete(ownerID, publicID)
	}

	logger.Debug("[Store] Relation deleted", "owner_id", ownerID, "relation_id", relationID)
	return nil
}

// SearchRelations filters live relations and resolves endpoint summaries.
// Relations whose endpoints cannot be resolved within the owner's scope are
// excluded by the join rather than surfaced as errors.
func (s *KnowledgeDBStore) SearchRelations(ctx context.Context, ownerID int64, filter store.RelationFilter) ([]common.RelationWithEndpoints, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT r.id, r.public_id, r.owner_id, r.source_node_id, r.target_node_id,
		       r.type, r.properties, r.confidence, r.context, r.created_at, r.updated_at,
		       sn.id, sn.name, sn.type,
		       tn.id, tn.name, tn.type
		FROM knowledge_relations r
		JOIN knowledge_nodes sn
		  ON sn.id = r.source_node_id AND sn.owner_id = r.owner_id AND sn.deleted_at IS NULL
		JOIN knowledge_nodes tn
		  ON tn.id = r.target_node_id AND tn.owner_id = r.owner_id AND tn.deleted_at IS NULL
		WHERE r.owner_id = $1 AND r.deleted_at IS NULL`)
	args := []any{ownerID}

	if filter.Type != "" {
		args = append(args, string(filter.Type))
		fmt.Fprintf(&b, " AND r.type = $%d", len(args))
	}
	if filter.SourceNodeID != 0 {
		args = append(args, filter.SourceNodeID)
		fmt.Fprintf(&b, " AND r.source_node_id = $%d", len(args))
	}
	if filter.TargetNodeID != 0 {
		args = append(args, filter.TargetNodeID)
		fmt.Fprintf(&b, " AND r.target_node_id = $%d", len(args))
	}

	args = append(args, clampLimit(filter.Limit))
	fmt.Fprintf(&b, " ORDER BY r.confidence DESC, r.id LIMIT $%d", len(args))

	rows, err := s.conn.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search relations: %w", err)
	}
	defer rows.Close()

	relations := make([]common.RelationWithEndpoints, 0)
	for rows.Next() {
		var rel common.RelationWithEndpoints
		var relType, srcType, tgtType string
		var props []byte
		err := rows.Scan(
			&rel.ID, &rel.PublicID, &rel.OwnerID, &rel.SourceNodeID, &rel.TargetNodeID,
			&relType, &props, &rel.Confidence, &rel.Context, &rel.CreatedAt, &rel.UpdatedAt,
			&rel.SourceNode.ID, &rel.SourceNode.Name, &srcType,
			&rel.TargetNode.ID, &rel.TargetNode.Name, &tgtType,
		)
		if err != nil {
			return nil, fmt.Errorf("search relations: %w", err)
		}
		rel.Type = common.RelationType(relType)
		rel.SourceNode.Type = common.NodeType(srcType)
		rel.TargetNode.Type = common.NodeType(tgtType)
		if err := rel.Properties.UnmarshalJSONB(props); err != nil {
			return nil, fmt.Errorf("search relations: %w", err)
		}
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search relations: %w", err)
	}
	return relations, nil
}

// ListRelations returns every live relation of one owner, for mirror
// reconciliation.
func (s *KnowledgeDBStore) ListRelations(ctx context.Context, ownerID int64) ([]common.KnowledgeRelation, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT `+relationColumns+`
		FROM knowledge_relations
		WHERE owner_id = $1 AND deleted_at IS NULL
		ORDER BY id
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	defer rows.Close()

	relations := make([]common.KnowledgeRelation, 0)
	for rows.Next() {
		rel, err := scanRelation(rows)
		if err != nil {
			return nil, fmt.Errorf("list relations: %w", err)
		}
		relations = append(relations, *rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list relations: %w", err)
	}
	return relations, nil
}

func scanRelation(row rowScanner) (*common.KnowledgeRelation, error) {
	var rel common.KnowledgeRelation
	var typ string
	var props []byte
	err := row.Scan(
		&rel.ID, &rel.PublicID, &rel.OwnerID, &rel.SourceNodeID, &rel.TargetNodeID,
		&typ, &props, &rel.Confidence, &rel.Context, &rel.CreatedAt, &rel.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	rel.Type = common.RelationType(typ)
	if err := rel.Properties.UnmarshalJSONB(props); err != nil {
		return nil, err
	}
	return &rel, nil
}

func scanRelationWithInserted(row rowScanner) (*common.KnowledgeRelation, bool, error) {
	var rel common.KnowledgeRelation
	var typ string
	var props []byte
	var inserted bool
	err := row.Scan(
		&rel.ID, &rel.PublicID, &rel.OwnerID, &rel.SourceNodeID, &rel.TargetNodeID,
		&typ, &props, &rel.Confidence, &rel.Context, &rel.CreatedAt, &rel.UpdatedAt,
		&inserted,
	)
	if err != nil {
		return nil, false, err
	}
	rel.Type = common.RelationType(typ)
	if err := rel.Properties.UnmarshalJSONB(props); err != nil {
		return nil, false, err
	}
	return &rel, inserted, nil
}
