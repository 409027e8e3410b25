package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/store"
)

type fakeSource struct {
	chunks map[int64][]common.Chunk
}

func (s *fakeSource) GetChunks(ctx context.Context, documentID int64) ([]common.Chunk, error) {
	chunks, ok := s.chunks[documentID]
	if !ok || len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %d has no chunks", store.ErrNotFound, documentID)
	}
	return chunks, nil
}

type fakeStore struct {
	nodes     map[string]*common.KnowledgeNode
	relations map[string]*common.KnowledgeRelation
	nextID    int64

	failNodeNames map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nodes:         make(map[string]*common.KnowledgeNode),
		relations:     make(map[string]*common.KnowledgeRelation),
		failNodeNames: make(map[string]bool),
	}
}

func (s *fakeStore) UpsertNode(ctx context.Context, params store.UpsertNodeParams) (*common.KnowledgeNode, bool, error) {
	if s.failNodeNames[params.Name] {
		return nil, false, errors.New("store unavailable")
	}
	key := fmt.Sprintf("%d|%s|%s", params.OwnerID, strings.ToLower(params.Name), params.Type)
	if node, ok := s.nodes[key]; ok {
		return node, false, nil
	}
	s.nextID++
	node := &common.KnowledgeNode{
		ID:         s.nextID,
		OwnerID:    params.OwnerID,
		Name:       params.Name,
		Type:       params.Type,
		Confidence: params.Confidence,
		Provenance: params.Provenance,
	}
	s.nodes[key] = node
	return node, true, nil
}

func (s *fakeStore) UpsertRelation(ctx context.Context, params store.UpsertRelationParams) (*common.KnowledgeRelation, bool, error) {
	if params.SourceNodeID == params.TargetNodeID {
		return nil, false, store.ErrInvalidRelation
	}
	key := fmt.Sprintf("%d|%d|%d|%s", params.OwnerID, params.SourceNodeID, params.TargetNodeID, params.Type)
	if rel, ok := s.relations[key]; ok {
		return rel, false, nil
	}
	s.nextID++
	rel := &common.KnowledgeRelation{
		ID:           s.nextID,
		OwnerID:      params.OwnerID,
		SourceNodeID: params.SourceNodeID,
		TargetNodeID: params.TargetNodeID,
		Type:         params.Type,
		Confidence:   params.Confidence,
		Context:      params.Context,
	}
	s.relations[key] = rel
	return rel, true, nil
}

func (s *fakeStore) GetNode(ctx context.Context, ownerID, nodeID int64) (*common.KnowledgeNode, error) {
	for _, node := range s.nodes {
		if node.ID == nodeID && node.OwnerID == ownerID {
			return node, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *fakeStore) DeleteNode(ctx context.Context, ownerID, nodeID int64) error     { return nil }
func (s *fakeStore) DeleteRelation(ctx context.Context, ownerID, relID int64) error { return nil }

func (s *fakeStore) SearchNodes(ctx context.Context, ownerID int64, filter store.NodeFilter) ([]common.KnowledgeNode, error) {
	return nil, nil
}

func (s *fakeStore) SearchRelations(ctx context.Context, ownerID int64, filter store.RelationFilter) ([]common.RelationWithEndpoints, error) {
	return nil, nil
}

func (s *fakeStore) ListNodes(ctx context.Context, ownerID int64) ([]common.KnowledgeNode, error) {
	return nil, nil
}

func (s *fakeStore) ListRelations(ctx context.Context, ownerID int64) ([]common.KnowledgeRelation, error) {
	return nil, nil
}

func (s *fakeStore) Statistics(ctx context.Context, ownerID int64) (*common.GraphStatistics, error) {
	return nil, nil
}

func newTestClient(t *testing.T, st store.KnowledgeStore, src store.DocumentSource) *Client {
	t.Helper()
	client, err := NewClient(NewClientParams{Store: st, Source: src, Strategy: StrategyRule})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func TestProcessDocument_Scenario(t *testing.T) {
	st := newFakeStore()
	src := &fakeSource{chunks: map[int64][]common.Chunk{
		1: {{Index: 0, Content: scenarioText}},
	}}
	client := newTestClient(t, st, src)

	stats, err := client.ProcessDocument(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("ProcessDocument failed: %v", err)
	}

	if stats.ChunksProcessed != 1 {
		t.Errorf("ChunksProcessed = %d, want 1", stats.ChunksProcessed)
	}
	if stats.EntitiesExtracted == 0 || stats.NodesCreated == 0 {
		t.Errorf("expected extracted entities and created nodes, got %+v", stats)
	}
	if stats.EdgesCreated == 0 {
		t.Errorf("expected created edges, got %+v", stats)
	}
	if stats.NodesCreated != len(st.nodes) {
		t.Errorf("NodesCreated = %d, store has %d nodes", stats.NodesCreated, len(st.nodes))
	}

	for _, node := range st.nodes {
		if node.OwnerID != 42 {
			t.Errorf("node with wrong owner: %+v", node)
		}
		if node.Provenance != "document:1 chunk:0" {
			t.Errorf("node provenance = %q", node.Provenance)
		}
	}
}

func TestProcessDocument_NoChunks(t *testing.T) {
	client := newTestClient(t, newFakeStore(), &fakeSource{chunks: map[int64][]common.Chunk{}})

	_, err := client.ProcessDocument(context.Background(), 7, 42)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProcessDocument_Idempotent(t *testing.T) {
	st := newFakeStore()
	src := &fakeSource{chunks: map[int64][]common.Chunk{
		1: {{Index: 0, Content: scenarioText}},
	}}
	client := newTestClient(t, st, src)

	first, err := client.ProcessDocument(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second, err := client.ProcessDocument(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if second.NodesCreated != 0 || second.EdgesCreated != 0 {
		t.Errorf("second run created rows: %+v", second)
	}
	if first.EntitiesExtracted != second.EntitiesExtracted {
		t.Errorf("extraction counters differ between runs: %d vs %d", first.EntitiesExtracted, second.EntitiesExtracted)
	}
}

func TestProcessDocument_PartialSuccess(t *testing.T) {
	st := newFakeStore()
	st.failNodeNames["混凝土"] = true
	src := &fakeSource{chunks: map[int64][]common.Chunk{
		1: {{Index: 0, Content: scenarioText}},
	}}
	client := newTestClient(t, st, src)

	stats, err := client.ProcessDocument(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("ProcessDocument failed: %v", err)
	}
	if stats.ChunksProcessed != 1 {
		t.Errorf("failed entity must not fail the chunk, got %+v", stats)
	}
	if stats.NodesCreated != len(st.nodes) {
		t.Errorf("NodesCreated = %d, store has %d nodes", stats.NodesCreated, len(st.nodes))
	}
	for _, node := range st.nodes {
		if node.Name == "混凝土" {
			t.Errorf("failed entity must not be stored: %+v", node)
		}
	}
}

func TestProcessDocument_FailedChunkSkipped(t *testing.T) {
	st := newFakeStore()
	src := &fakeSource{chunks: map[int64][]common.Chunk{
		1: {
			{Index: 0, Content: scenarioText},
			{Index: 1, Content: "桥梁工程需要C30混凝土。"},
			{Index: 2, Content: "故障文本"},
			{Index: 3, Content: "北京的混凝土项目。"},
		},
	}}
	client := newTestClient(t, st, src)
	client.extract = func(text string, strategy Strategy) ([]common.EntityCandidate, error) {
		if strings.Contains(text, "故障") {
			return nil, errors.New("extraction failed")
		}
		return client.config.ExtractEntities(text, strategy)
	}

	stats, err := client.ProcessDocument(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("one bad chunk must not fail the document: %v", err)
	}
	if stats.ChunksProcessed != 3 {
		t.Errorf("ChunksProcessed = %d, want 3", stats.ChunksProcessed)
	}
	if stats.NodesCreated == 0 || stats.NodesCreated != len(st.nodes) {
		t.Errorf("counters must reflect the surviving chunks: %+v, store has %d nodes", stats, len(st.nodes))
	}
}

func TestProcessDocument_MultipleChunks(t *testing.T) {
	st := newFakeStore()
	src := &fakeSource{chunks: map[int64][]common.Chunk{
		1: {
			{Index: 0, Content: scenarioText},
			{Index: 1, Content: "桥梁工程需要C30混凝土。"},
		},
	}}
	client := newTestClient(t, st, src)

	stats, err := client.ProcessDocument(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("ProcessDocument failed: %v", err)
	}
	if stats.ChunksProcessed != 2 {
		t.Errorf("ChunksProcessed = %d, want 2", stats.ChunksProcessed)
	}

	// C30混凝土 appears in both chunks but is one node.
	count := 0
	for _, node := range st.nodes {
		if node.Name == "C30混凝土" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one C30混凝土 node, got %d", count)
	}
}
