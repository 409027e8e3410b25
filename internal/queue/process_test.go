package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/graph"
	"github.com/knoweave/knoweave/pkg/store"
)

// blockingSource never returns chunks until the context expires.
type blockingSource struct{}

func (blockingSource) GetChunks(ctx context.Context, documentID int64) ([]common.Chunk, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type staticSource struct {
	chunks []common.Chunk
}

func (s *staticSource) GetChunks(ctx context.Context, documentID int64) ([]common.Chunk, error) {
	if len(s.chunks) == 0 {
		return nil, fmt.Errorf("%w: document %d has no chunks", store.ErrNotFound, documentID)
	}
	return s.chunks, nil
}

type memStore struct {
	store.KnowledgeStore

	nextID int64
}

func (s *memStore) UpsertNode(ctx context.Context, params store.UpsertNodeParams) (*common.KnowledgeNode, bool, error) {
	s.nextID++
	return &common.KnowledgeNode{
		ID:      s.nextID,
		OwnerID: params.OwnerID,
		Name:    params.Name,
		Type:    params.Type,
	}, true, nil
}

func (s *memStore) UpsertRelation(ctx context.Context, params store.UpsertRelationParams) (*common.KnowledgeRelation, bool, error) {
	s.nextID++
	return &common.KnowledgeRelation{
		ID:           s.nextID,
		OwnerID:      params.OwnerID,
		SourceNodeID: params.SourceNodeID,
		TargetNodeID: params.TargetNodeID,
		Type:         params.Type,
	}, true, nil
}

func newHandler(t *testing.T, src store.DocumentSource) *Handler {
	t.Helper()
	client, err := graph.NewClient(graph.NewClientParams{
		Store:      &memStore{},
		Source:     src,
		Strategy:   graph.StrategyRule,
		MaxRetries: 1,
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return &Handler{Graph: client}
}

func TestProcessKnowledgeMessage_Deadline(t *testing.T) {
	h := newHandler(t, blockingSource{})
	h.ProcessTimeout = 50 * time.Millisecond

	err := h.ProcessKnowledgeMessage(context.Background(), `{"document_id":1,"owner_id":42}`)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestProcessKnowledgeMessage_SchedulesReconcile(t *testing.T) {
	h := newHandler(t, &staticSource{chunks: []common.Chunk{
		{Index: 0, Content: "混凝土项目使用C30混凝土。"},
	}})

	var scheduled []int64
	h.ScheduleReconcile = func(ownerID int64) error {
		scheduled = append(scheduled, ownerID)
		return nil
	}

	if err := h.ProcessKnowledgeMessage(context.Background(), `{"document_id":1,"owner_id":42}`); err != nil {
		t.Fatalf("ProcessKnowledgeMessage failed: %v", err)
	}
	if len(scheduled) != 1 || scheduled[0] != 42 {
		t.Fatalf("expected one reconcile scheduled for owner 42, got %v", scheduled)
	}
}

func TestProcessKnowledgeMessage_NoChunksDropsWithoutReconcile(t *testing.T) {
	h := newHandler(t, &staticSource{})

	called := false
	h.ScheduleReconcile = func(ownerID int64) error {
		called = true
		return nil
	}

	if err := h.ProcessKnowledgeMessage(context.Background(), `{"document_id":1,"owner_id":42}`); err != nil {
		t.Fatalf("missing document must be dropped, not retried: %v", err)
	}
	if called {
		t.Error("no reconcile should be scheduled when nothing was processed")
	}
}

func TestProcessKnowledgeMessage_BadPayload(t *testing.T) {
	h := newHandler(t, &staticSource{})

	cases := []string{
		"not json",
		`{}`,
		`{"document_id":1}`,
		`{"owner_id":42}`,
	}
	for _, msg := range cases {
		if err := h.ProcessKnowledgeMessage(context.Background(), msg); err == nil {
			t.Errorf("expected error for payload %q", msg)
		}
	}
}
