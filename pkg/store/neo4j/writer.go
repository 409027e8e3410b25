package neo4j

import (
	"context"
	"time"

	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/logger"
	"github.com/knoweave/knoweave/pkg/store"
)

type opKind int

const (
	opNodeUpsert opKind = iota
	opRelationUpsert
	opNodeDelete
	opRelationDelete
)

type mirrorOp struct {
	kind     opKind
	node     *common.KnowledgeNode
	relation *common.KnowledgeRelation
	ownerID  int64
	publicID string
}

// Writer is the async dispatch in front of a MirrorStore. A single worker
// goroutine drains the queue in enqueue order, so a node's mirror write
// always lands before relation writes that reference it.
//
// Enqueue never blocks the caller: when the buffer is full the operation is
// dropped and logged as a consistency warning. Dropped or failed operations
// are repaired by the reconciliation job, never retried inline.
type Writer struct {
	mirror  store.MirrorStore
	ops     chan mirrorOp
	done    chan struct{}
	timeout time.Duration
}

type WriterOption func(*Writer)

func WithBufferSize(n int) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.ops = make(chan mirrorOp, n)
		}
	}
}

func WithOpTimeout(d time.Duration) WriterOption {
	return func(w *Writer) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// NewWriter starts the background drain goroutine. Call Close to flush and
// stop it.
func NewWriter(mirror store.MirrorStore, opts ...WriterOption) *Writer {
	w := &Writer{
		mirror:  mirror,
		ops:     make(chan mirrorOp, 1024),
		done:    make(chan struct{}),
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(w)
	}
	go w.run()
	return w
}

func (w *Writer) EnqueueNodeUpsert(node *common.KnowledgeNode) {
	w.enqueue(mirrorOp{kind: opNodeUpsert, node: node})
}

func (w *Writer) EnqueueRelationUpsert(rel *common.KnowledgeRelation) {
	w.enqueue(mirrorOp{kind: opRelationUpsert, relation: rel})
}

func (w *Writer) EnqueueNodeDelete(ownerID int64, publicID string) {
	w.enqueue(mirrorOp{kind: opNodeDelete, ownerID: ownerID, publicID: publicID})
}

func (w *Writer) EnqueueRelationDelete(ownerID int64, publicID string) {
	w.enqueue(mirrorOp{kind: opRelationDelete, ownerID: ownerID, publicID: publicID})
}

func (w *Writer) enqueue(op mirrorOp) {
	select {
	case w.ops <- op:
	default:
		logger.Warn("[Mirror] Queue full, dropping operation; graph mirror may be inconsistent until next reconciliation",
			"kind", op.kind)
	}
}

// Close stops accepting operations, drains what is already queued, and
// waits for the worker to exit.
func (w *Writer) Close() {
	close(w.ops)
	<-w.done
}

func (w *Writer) run() {
	defer close(w.done)
	for op := range w.ops {
		w.apply(op)
	}
}

func (w *Writer) apply(op mirrorOp) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var err error
	switch op.kind {
	case opNodeUpsert:
		err = w.mirror.UpsertNode(ctx, op.node)
	case opRelationUpsert:
		err = w.mirror.UpsertRelation(ctx, op.relation)
	case opNodeDelete:
		err = w.mirror.DeleteNode(ctx, op.ownerID, op.publicID)
	case opRelationDelete:
		err = w.mirror.DeleteRelation(ctx, op.ownerID, op.publicID)
	}
	if err != nil {
		logger.Warn("[Mirror] Write failed; graph mirror may be inconsistent until next reconciliation",
			"kind", op.kind, "error", err)
	}
}
