package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	types "github.com/yungbote/neurobridge-adaptive/internal/domain"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

type fakeSource struct {
	mu       sync.Mutex
	concepts []types.ConceptNode
	err      error
	calls    atomic.Int32
	gate     chan struct{}
}

func (f *fakeSource) ListConcepts(ctx context.Context) ([]types.ConceptNode, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.ConceptNode(nil), f.concepts...), f.err
}

func chain() []types.ConceptNode {
	return []types.ConceptNode{
		{ID: "A", Name: "A"},
		{ID: "B", Name: "B", Prerequisites: []string{"A"}},
		{ID: "C", Name: "C", Prerequisites: []string{"B", "ghost"}},
	}
}

func TestKnowledgeBaseRefreshSwapsGraph(t *testing.T) {
	src := &fakeSource{concepts: chain()}
	kb := NewKnowledgeBaseService(logger.Nop(), src, nil, 0)
	before := kb.Current()
	if before.Len() != 0 {
		t.Fatalf("expected empty graph before refresh")
	}
	res, err := kb.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if res.Concepts != 3 || res.Rejected != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	if kb.Current() == before || kb.Current().Len() != 3 {
		t.Fatalf("graph was not swapped")
	}
	if before.Len() != 0 {
		t.Fatalf("old snapshot must stay untouched")
	}
	if kb.RefreshedAt().IsZero() {
		t.Fatalf("refresh time not recorded")
	}
}

func TestKnowledgeBaseKeepsGraphOnFailure(t *testing.T) {
	src := &fakeSource{concepts: chain()}
	kb := NewKnowledgeBaseService(logger.Nop(), src, nil, 0)
	if _, err := kb.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	g := kb.Current()

	src.mu.Lock()
	src.err = errors.New("db down")
	src.mu.Unlock()
	if _, err := kb.Refresh(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if kb.Current() != g {
		t.Fatalf("graph replaced after failed refresh")
	}

	src.mu.Lock()
	src.err = nil
	src.concepts = nil
	src.mu.Unlock()
	res, err := kb.Refresh(context.Background())
	if err != nil || !res.Kept || kb.Current() != g {
		t.Fatalf("empty source should keep graph: res=%+v err=%v", res, err)
	}
}

func TestKnowledgeBaseRefreshIsShared(t *testing.T) {
	src := &fakeSource{concepts: chain(), gate: make(chan struct{})}
	kb := NewKnowledgeBaseService(logger.Nop(), src, nil, 0)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := kb.Refresh(context.Background()); err != nil {
				t.Errorf("Refresh: %v", err)
			}
		}()
	}
	// Give the callers time to join the in-flight refresh.
	time.Sleep(50 * time.Millisecond)
	close(src.gate)
	wg.Wait()
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("expected one source call, got %d", n)
	}
}

func TestKnowledgeBaseRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{concepts: chain()}
	kb := NewKnowledgeBaseService(logger.Nop(), src, nil, 5*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		kb.Run(ctx)
		close(done)
	}()
	deadline := time.After(2 * time.Second)
	for kb.Current().Len() == 0 {
		select {
		case <-deadline:
			t.Fatalf("periodic refresh never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop")
	}
}
