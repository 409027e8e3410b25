package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/knoweave/knoweave/internal/util"
	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/graph"
	"github.com/knoweave/knoweave/pkg/leaselock"
	"github.com/knoweave/knoweave/pkg/logger"
	"github.com/knoweave/knoweave/pkg/store"
	neo4jstore "github.com/knoweave/knoweave/pkg/store/neo4j"
)

// KnowledgeMsg asks the worker to run the document pipeline.
type KnowledgeMsg struct {
	DocumentID int64 `json:"document_id"`
	OwnerID    int64 `json:"owner_id"`
}

// ReconcileMsg asks the worker to rebuild one owner's graph mirror from the
// authoritative store.
type ReconcileMsg struct {
	OwnerID int64 `json:"owner_id"`
}

// Handler holds the long-lived clients shared by all message handlers.
//
// ProcessTimeout bounds a single pipeline run; zero means the default.
// ScheduleReconcile, when set, enqueues a mirror reconciliation for an
// owner after their document was processed, repairing any mirror writes
// that were dropped along the way.
type Handler struct {
	Graph  *graph.Client
	Store  store.KnowledgeStore
	Mirror *neo4jstore.GraphMirrorStore
	Locks  *leaselock.Client

	ProcessTimeout    time.Duration
	ScheduleReconcile func(ownerID int64) error
}

const defaultProcessTimeout = 10 * time.Minute

// ProcessKnowledgeMessage runs the document knowledge pipeline for one
// document under the handler's deadline.
func (h *Handler) ProcessKnowledgeMessage(ctx context.Context, msg string) error {
	data := new(KnowledgeMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("unmarshal knowledge message: %w", err)
	}
	if data.DocumentID == 0 || data.OwnerID == 0 {
		return fmt.Errorf("knowledge message missing document_id or owner_id")
	}

	timeout := h.ProcessTimeout
	if timeout <= 0 {
		timeout = defaultProcessTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stats, err := h.Graph.ProcessDocument(ctx, data.DocumentID, data.OwnerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// No chunks means nothing to retry; drop the message.
			logger.Warn("[Queue] Document has no chunks, skipping",
				"document_id", data.DocumentID, "owner_id", data.OwnerID)
			return nil
		}
		return err
	}

	logger.Info("[Queue] Knowledge message processed",
		"document_id", stats.DocumentID,
		"chunks", stats.ChunksProcessed,
		"nodes_created", stats.NodesCreated,
		"edges_created", stats.EdgesCreated)

	if h.ScheduleReconcile != nil {
		if err := h.ScheduleReconcile(data.OwnerID); err != nil {
			logger.Warn("[Queue] Failed to schedule reconcile",
				"owner_id", data.OwnerID, "err", err)
		}
	}
	return nil
}

// ProcessReconcileMessage rebuilds one owner's mirror subgraph under a
// lease lock, so concurrent workers never reconcile the same owner at once.
func (h *Handler) ProcessReconcileMessage(ctx context.Context, msg string) error {
	data := new(ReconcileMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("unmarshal reconcile message: %w", err)
	}
	if data.OwnerID == 0 {
		return fmt.Errorf("reconcile message missing owner_id")
	}
	if h.Mirror == nil {
		logger.Warn("[Queue] Mirror disabled, skipping reconcile", "owner_id", data.OwnerID)
		return nil
	}

	key := fmt.Sprintf("reconcile:owner:%d", data.OwnerID)
	err := h.Locks.WithLease(ctx, key, leaselock.Options{}, func(ctx context.Context) error {
		return util.RetryErrWithContext(ctx, 3, func(ctx context.Context) error {
			var nodes []common.KnowledgeNode
			var relations []common.KnowledgeRelation

			g, gCtx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				nodes, err = h.Store.ListNodes(gCtx, data.OwnerID)
				return err
			})
			g.Go(func() error {
				var err error
				relations, err = h.Store.ListRelations(gCtx, data.OwnerID)
				return err
			})
			if err := g.Wait(); err != nil {
				return err
			}

			return h.Mirror.Reconcile(ctx, data.OwnerID, nodes, relations)
		})
	})
	if errors.Is(err, leaselock.ErrBusy) {
		logger.Info("[Queue] Reconcile already running elsewhere, skipping", "owner_id", data.OwnerID)
		return nil
	}
	return err
}
