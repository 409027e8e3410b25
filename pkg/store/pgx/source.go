package pgx

import (
	"context"
	"fmt"

	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/store"
)

// ChunkSource reads document chunks written by the ingestion service. It is
// the default store.DocumentSource used by the worker pipeline.
type ChunkSource struct {
	conn pgxIConn
}

func NewChunkSource(conn pgxIConn) *ChunkSource {
	return &ChunkSource{conn: conn}
}

// GetChunks returns the ordered chunks of a document. A document with no
// chunks is indistinguishable from a missing one; both return ErrNotFound.
func (s *ChunkSource) GetChunks(ctx context.Context, documentID int64) ([]common.Chunk, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT chunk_index, content
		FROM document_chunks
		WHERE document_id = $1
		ORDER BY chunk_index
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	defer rows.Close()

	chunks := make([]common.Chunk, 0)
	for rows.Next() {
		var c common.Chunk
		if err := rows.Scan(&c.Index, &c.Content); err != nil {
			return nil, fmt.Errorf("get chunks: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %d has no chunks", store.ErrNotFound, documentID)
	}
	return chunks, nil
}
