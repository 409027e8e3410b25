package pgx

import (
	"context"
	"errors"
	"testing"

	"github.com/knoweave/knoweave/pkg/common"
	"github.com/knoweave/knoweave/pkg/store"
)

// Validation paths reject bad input before touching the connection, so a
// nil conn is enough for these tests.

func TestUpsertNode_Validation(t *testing.T) {
	s := NewKnowledgeDBStore(nil)

	cases := []struct {
		name   string
		params store.UpsertNodeParams
	}{
		{
			name:   "empty name",
			params: store.UpsertNodeParams{OwnerID: 1, Name: "", Type: common.NodeMaterial},
		},
		{
			name:   "name of only control bytes",
			params: store.UpsertNodeParams{OwnerID: 1, Name: "\x00", Type: common.NodeMaterial},
		},
		{
			name:   "unknown type",
			params: store.UpsertNodeParams{OwnerID: 1, Name: "混凝土", Type: common.NodeType("mystery")},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, created, err := s.UpsertNode(context.Background(), tc.params)
			if !errors.Is(err, store.ErrInvalidRelation) {
				t.Fatalf("expected ErrInvalidRelation, got %v", err)
			}
			if created {
				t.Error("created must be false on validation failure")
			}
		})
	}
}

func TestUpsertRelation_Validation(t *testing.T) {
	s := NewKnowledgeDBStore(nil)

	cases := []struct {
		name   string
		params store.UpsertRelationParams
	}{
		{
			name:   "self loop",
			params: store.UpsertRelationParams{OwnerID: 1, SourceNodeID: 7, TargetNodeID: 7, Type: common.RelUses},
		},
		{
			name:   "unknown type",
			params: store.UpsertRelationParams{OwnerID: 1, SourceNodeID: 1, TargetNodeID: 2, Type: common.RelationType("knows_of")},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, created, err := s.UpsertRelation(context.Background(), tc.params)
			if !errors.Is(err, store.ErrInvalidRelation) {
				t.Fatalf("expected ErrInvalidRelation, got %v", err)
			}
			if created {
				t.Error("created must be false on validation failure")
			}
		})
	}
}

func TestClampLimit(t *testing.T) {
	cases := []struct {
		in   int
		want int
	}{
		{in: 0, want: 20},
		{in: -5, want: 20},
		{in: 1, want: 1},
		{in: 50, want: 50},
		{in: 100, want: 100},
		{in: 101, want: 100},
		{in: 100000, want: 100},
	}

	for _, tc := range cases {
		if got := clampLimit(tc.in); got != tc.want {
			t.Errorf("clampLimit(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
