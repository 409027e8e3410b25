package query

import (
	"context"
	"errors"
	"testing"

	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/store"
)

type stubStore struct {
	store.KnowledgeStore

	nodes map[int64]*common.KnowledgeNode
}

func (s *stubStore) GetNode(ctx context.Context, ownerID, nodeID int64) (*common.KnowledgeNode, error) {
	if node, ok := s.nodes[nodeID]; ok && node.OwnerID == ownerID {
		return node, nil
	}
	return nil, store.ErrNotFound
}

type stubTraversal struct {
	paths []common.GraphPath

	gotMaxLength int
	rawCalls     int
	gotQuery     string
	gotParams    map[string]any
}

func (t *stubTraversal) FindPaths(ctx context.Context, ownerID, sourceID, targetID int64, maxLength int) ([]common.GraphPath, error) {
	t.gotMaxLength = maxLength
	return t.paths, nil
}

func (t *stubTraversal) RunRawQuery(ctx context.Context, ownerID int64, query string, params map[string]any) ([]map[string]any, error) {
	t.rawCalls++
	t.gotQuery = query
	t.gotParams = params
	return []map[string]any{{"n.name": "混凝土"}}, nil
}

func pathOfLength(n int) common.GraphPath {
	return common.GraphPath{Length: n}
}

func engineWith(nodes map[int64]*common.KnowledgeNode, trav Traversal) *Engine {
	return NewEngine(&stubStore{nodes: nodes}, WithTraversal(trav))
}

func twoNodes() map[int64]*common.KnowledgeNode {
	return map[int64]*common.KnowledgeNode{
		1: {ID: 1, OwnerID: 42, Name: "a", Type: common.NodeGeneric},
		2: {ID: 2, OwnerID: 42, Name: "b", Type: common.NodeGeneric},
	}
}

func TestFindPaths_DefaultsAndClamping(t *testing.T) {
	cases := []struct {
		name          string
		maxLength     int
		wantMaxLength int
	}{
		{name: "zero uses default", maxLength: 0, wantMaxLength: 6},
		{name: "negative uses default", maxLength: -3, wantMaxLength: 6},
		{name: "within bounds kept", maxLength: 4, wantMaxLength: 4},
		{name: "above cap clamped", maxLength: 25, wantMaxLength: 10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			trav := &stubTraversal{}
			engine := engineWith(twoNodes(), trav)

			if _, err := engine.FindPaths(context.Background(), 42, 1, 2, tc.maxLength, 0); err != nil {
				t.Fatalf("FindPaths failed: %v", err)
			}
			if trav.gotMaxLength != tc.wantMaxLength {
				t.Errorf("traversal got maxLength %d, want %d", trav.gotMaxLength, tc.wantMaxLength)
			}
		})
	}
}

func TestFindPaths_LimitClamping(t *testing.T) {
	paths := make([]common.GraphPath, 30)
	for i := range paths {
		paths[i] = pathOfLength(2)
	}
	trav := &stubTraversal{paths: paths}
	engine := engineWith(twoNodes(), trav)

	got, err := engine.FindPaths(context.Background(), 42, 1, 2, 6, 0)
	if err != nil {
		t.Fatalf("FindPaths failed: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("default limit: got %d paths, want 20", len(got))
	}

	got, err = engine.FindPaths(context.Background(), 42, 1, 2, 6, 5)
	if err != nil {
		t.Fatalf("FindPaths failed: %v", err)
	}
	if len(got) != 5 {
		t.Errorf("explicit limit: got %d paths, want 5", len(got))
	}
}

func TestFindPaths_FiltersOverlongPaths(t *testing.T) {
	trav := &stubTraversal{paths: []common.GraphPath{
		pathOfLength(2), pathOfLength(5), pathOfLength(9),
	}}
	engine := engineWith(twoNodes(), trav)

	got, err := engine.FindPaths(context.Background(), 42, 1, 2, 4, 0)
	if err != nil {
		t.Fatalf("FindPaths failed: %v", err)
	}
	if len(got) != 1 || got[0].Length != 2 {
		t.Errorf("expected only the length-2 path, got %+v", got)
	}
}

func TestFindPaths_MissingEndpointYieldsEmpty(t *testing.T) {
	trav := &stubTraversal{paths: []common.GraphPath{pathOfLength(1)}}
	engine := engineWith(twoNodes(), trav)

	got, err := engine.FindPaths(context.Background(), 42, 1, 999, 6, 0)
	if err != nil {
		t.Fatalf("missing endpoint must not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}

	// Endpoint owned by another tenant behaves the same as missing.
	got, err = engine.FindPaths(context.Background(), 7, 1, 2, 6, 0)
	if err != nil {
		t.Fatalf("foreign endpoint must not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty result for foreign owner, got %+v", got)
	}
}

func TestFindPaths_NoTraversalConfigured(t *testing.T) {
	engine := NewEngine(&stubStore{nodes: twoNodes()})

	if _, err := engine.FindPaths(context.Background(), 42, 1, 2, 6, 0); err == nil {
		t.Fatal("expected error when no traversal store is configured")
	}
}

func TestRawQuery_VetsBeforeRunning(t *testing.T) {
	trav := &stubTraversal{}
	engine := engineWith(twoNodes(), trav)

	_, err := engine.RawQuery(context.Background(), 42, "MATCH (n) DELETE n", nil)
	if !errors.Is(err, store.ErrQuerySyntax) {
		t.Fatalf("expected ErrQuerySyntax, got %v", err)
	}
	if trav.rawCalls != 0 {
		t.Errorf("rejected query must not reach the traversal store")
	}

	rows, err := engine.RawQuery(context.Background(), 42,
		"MATCH (n {owner_id: $owner_id}) RETURN n.name", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("RawQuery failed: %v", err)
	}
	if trav.rawCalls != 1 || len(rows) != 1 {
		t.Errorf("expected one traversal call with one row, got calls=%d rows=%d", trav.rawCalls, len(rows))
	}
}
