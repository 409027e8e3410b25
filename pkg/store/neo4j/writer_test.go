package neo4j

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/knoweave/knoweave/pkg/common"
)

type recordingMirror struct {
	mu  sync.Mutex
	ops []string

	failPublicID string
}

func (m *recordingMirror) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops = append(m.ops, op)
}

func (m *recordingMirror) recorded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ops...)
}

func (m *recordingMirror) UpsertNode(ctx context.Context, node *common.KnowledgeNode) error {
	if node.PublicID == m.failPublicID {
		return errors.New("mirror unavailable")
	}
	m.record("node:" + node.PublicID)
	return nil
}

func (m *recordingMirror) UpsertRelation(ctx context.Context, rel *common.KnowledgeRelation) error {
	m.record("rel:" + rel.PublicID)
	return nil
}

func (m *recordingMirror) DeleteNode(ctx context.Context, ownerID int64, publicID string) error {
	m.record("del-node:" + publicID)
	return nil
}

func (m *recordingMirror) DeleteRelation(ctx context.Context, ownerID int64, publicID string) error {
	m.record("del-rel:" + publicID)
	return nil
}

func TestWriter_AppliesInEnqueueOrder(t *testing.T) {
	mirror := &recordingMirror{}
	writer := NewWriter(mirror)

	writer.EnqueueNodeUpsert(&common.KnowledgeNode{PublicID: "n1"})
	writer.EnqueueNodeUpsert(&common.KnowledgeNode{PublicID: "n2"})
	writer.EnqueueRelationUpsert(&common.KnowledgeRelation{PublicID: "r1"})
	writer.EnqueueRelationDelete(42, "r1")
	writer.EnqueueNodeDelete(42, "n2")
	writer.Close()

	want := []string{"node:n1", "node:n2", "rel:r1", "del-rel:r1", "del-node:n2"}
	got := mirror.recorded()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("op %d = %q, want %q (full: %v)", i, got[i], want[i], got)
		}
	}
}

func TestWriter_CloseDrainsQueue(t *testing.T) {
	mirror := &recordingMirror{}
	writer := NewWriter(mirror, WithBufferSize(256))

	for i := 0; i < 100; i++ {
		writer.EnqueueNodeUpsert(&common.KnowledgeNode{PublicID: fmt.Sprintf("n%d", i)})
	}
	writer.Close()

	if got := len(mirror.recorded()); got != 100 {
		t.Fatalf("drained %d ops, want 100", got)
	}
}

func TestWriter_FailedOpDoesNotStopWorker(t *testing.T) {
	mirror := &recordingMirror{failPublicID: "bad"}
	writer := NewWriter(mirror)

	writer.EnqueueNodeUpsert(&common.KnowledgeNode{PublicID: "bad"})
	writer.EnqueueNodeUpsert(&common.KnowledgeNode{PublicID: "good"})
	writer.Close()

	got := mirror.recorded()
	if len(got) != 1 || got[0] != "node:good" {
		t.Fatalf("expected only the good op to land, got %v", got)
	}
}

func TestWriter_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	// No consumer runs until Close, so ops past the buffer must be dropped.
	mirror := &recordingMirror{}
	writer := &Writer{
		mirror:  mirror,
		ops:     make(chan mirrorOp, 2),
		done:    make(chan struct{}),
		timeout: time.Second,
	}

	for i := 0; i < 10; i++ {
		writer.EnqueueNodeUpsert(&common.KnowledgeNode{PublicID: fmt.Sprintf("n%d", i)})
	}

	go writer.run()
	writer.Close()

	if got := len(mirror.recorded()); got != 2 {
		t.Fatalf("expected 2 buffered ops to land, got %d", got)
	}
}
