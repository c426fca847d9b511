package state

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/neurobridge-adaptive/internal/modules/learning/bandit"
	"github.com/yungbote/neurobridge-adaptive/internal/platform/logger"
)

var strategies = []string{"rule_based", "graph_based", "content_based", "collaborative"}

func initIfEmpty(st *bandit.State) {
	if st.Empty() {
		*st = bandit.NewState(strategies, bandit.DefaultConfig())
	}
}

// exerciseStore runs concurrent updates and checks none are lost.
func exerciseStore(t *testing.T, store bandit.Store, key string) {
	t.Helper()
	ctx := context.Background()
	if err := store.Reset(ctx, key); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, ok, err := store.Get(ctx, key); err != nil || ok {
		t.Fatalf("Get after reset: ok=%v err=%v", ok, err)
	}

	const workers, perWorker = 8, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_, err := store.Update(ctx, key, func(st *bandit.State) error {
					initIfEmpty(st)
					st.Update(strategies[w%len(strategies)], 0.9, 0.5, bandit.DefaultConfig())
					return nil
				})
				if err != nil {
					errs <- err
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("Update: %v", err)
	}

	st, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if st.Updates != workers*perWorker {
		t.Fatalf("updates=%d want %d (lost updates)", st.Updates, workers*perWorker)
	}
	sum := 0.0
	for _, w := range st.Weights {
		sum += w
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("weights sum=%v", sum)
	}

	if _, err := store.Update(ctx, key, func(*bandit.State) error { return fmt.Errorf("boom") }); err == nil {
		t.Fatalf("expected fn error to propagate")
	}
	after, _, _ := store.Get(ctx, key)
	if after.Updates != st.Updates {
		t.Fatalf("failed update was applied")
	}
	if err := store.Reset(ctx, key); err != nil {
		t.Fatalf("Reset: %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(), bandit.GlobalKey)
}

func TestMemoryStoreIsolatesKeys(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if _, err := store.Update(ctx, "learner:a", func(st *bandit.State) error { initIfEmpty(st); return nil }); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "learner:b"); ok {
		t.Fatalf("state leaked across keys")
	}
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis store tests")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	store, err := NewRedisStore(logger.Nop(), rdb, "test:adaptive:bandit:")
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	exerciseStore(t, store, "global")
}
