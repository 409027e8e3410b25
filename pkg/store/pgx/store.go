package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/knoweave/knoweave/pkg/store"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// KnowledgeDBStore implements store.KnowledgeStore on PostgreSQL. Upserts
// rely on partial unique indexes plus conflict-aware inserts, so concurrent
// callers racing to create the same tuple converge on a single row without
// a read-then-write window.
//
// When a mirror queue is configured, every successful authoritative write
// enqueues the matching mirror operation. Mirror delivery is asynchronous
// and best-effort; it never affects the caller's result.
type KnowledgeDBStore struct {
	conn   pgxIConn
	mirror store.MirrorQueue
}

type KnowledgeDBStoreOption func(*KnowledgeDBStore)

// WithMirrorQueue attaches the async mirror dispatch used to keep the
// traversal store in sync.
func WithMirrorQueue(q store.MirrorQueue) KnowledgeDBStoreOption {
	return func(s *KnowledgeDBStore) {
		s.mirror = q
	}
}

// NewKnowledgeDBStore creates a store on an existing connection or pool.
func NewKnowledgeDBStore(conn pgxIConn, opts ...KnowledgeDBStoreOption) *KnowledgeDBStore {
	s := &KnowledgeDBStore{conn: conn}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}
