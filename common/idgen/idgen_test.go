package idgen

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/levi04206/hmdp/common/kv"
	"github.com/levi04206/hmdp/common/kv/kvtest"
)

func newTestGenerator(t *testing.T) (*Generator, *kvtest.Store) {
	t.Helper()
	store := kvtest.New()
	return NewGenerator(store), store
}

func TestNextIDMonotonic(t *testing.T) {
	gen, _ := newTestGenerator(t)
	ctx := context.Background()

	var prev int64
	for i := 0; i < 100; i++ {
		id, err := gen.NextID(ctx, "order")
		if err != nil {
			t.Fatalf("NextID: %v", err)
		}
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
}

func TestNextIDTimestampAndSequence(t *testing.T) {
	gen, _ := newTestGenerator(t)
	fixed := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	gen.now = func() time.Time { return fixed }

	ctx := context.Background()
	id, err := gen.NextID(ctx, "order")
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}

	if got := Timestamp(id); !got.Equal(fixed) {
		t.Errorf("Timestamp(id) = %v, want %v", got, fixed)
	}
	if got := Sequence(id); got != 1 {
		t.Errorf("Sequence(id) = %d, want 1", got)
	}

	id2, err := gen.NextID(ctx, "order")
	if err != nil {
		t.Fatalf("NextID: %v", err)
	}
	if got := Sequence(id2); got != 2 {
		t.Errorf("Sequence(id2) = %d, want 2", got)
	}
}

func TestNextIDDailyCounterRollover(t *testing.T) {
	gen, _ := newTestGenerator(t)
	ctx := context.Background()

	day1 := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)
	gen.now = func() time.Time { return day1 }
	if _, err := gen.NextID(ctx, "order"); err != nil {
		t.Fatalf("NextID day1: %v", err)
	}
	if _, err := gen.NextID(ctx, "order"); err != nil {
		t.Fatalf("NextID day1: %v", err)
	}

	// 跨天后序列号重新从 1 开始
	day2 := day1.Add(time.Second)
	gen.now = func() time.Time { return day2 }
	id, err := gen.NextID(ctx, "order")
	if err != nil {
		t.Fatalf("NextID day2: %v", err)
	}
	if got := Sequence(id); got != 1 {
		t.Errorf("Sequence after rollover = %d, want 1", got)
	}
}

func TestNextIDSeparateCountersPerBusiness(t *testing.T) {
	gen, _ := newTestGenerator(t)
	ctx := context.Background()

	if _, err := gen.NextID(ctx, "order"); err != nil {
		t.Fatalf("NextID order: %v", err)
	}
	id, err := gen.NextID(ctx, "shop")
	if err != nil {
		t.Fatalf("NextID shop: %v", err)
	}
	if got := Sequence(id); got != 1 {
		t.Errorf("shop sequence = %d, want 1 (independent counter)", got)
	}
}

func TestNextIDConcurrentUnique(t *testing.T) {
	gen, _ := newTestGenerator(t)
	fixed := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	gen.now = func() time.Time { return fixed }

	const workers = 50
	const perWorker = 20

	var mu sync.Mutex
	seen := make(map[int64]bool, workers*perWorker)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				id, err := gen.NextID(context.Background(), "order")
				if err != nil {
					t.Errorf("NextID: %v", err)
					return
				}
				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("got %d unique ids, want %d", len(seen), workers*perWorker)
	}
}

func TestNextIDStoreUnavailable(t *testing.T) {
	gen, store := newTestGenerator(t)
	store.SetErr(kv.ErrStoreUnavailable)

	if _, err := gen.NextID(context.Background(), "order"); err == nil {
		t.Fatal("expected error when store unavailable")
	}
}
