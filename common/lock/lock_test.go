package lock

import (
	"context"
	"testing"
	"time"

	"github.com/levi04206/hmdp/common/kv"
	"github.com/levi04206/hmdp/common/kv/kvtest"
)

func newTestStore() *kvtest.Store {
	store := kvtest.New()
	store.RegisterScript(UnlockScript, func(tx *kvtest.Tx, keys []string, args []string) (interface{}, error) {
		val, ok := tx.Get(keys[0])
		if ok && val == args[0] {
			tx.Del(keys[0])
			return int64(1), nil
		}
		return int64(0), nil
	})
	return store
}

func TestTryLockMutualExclusion(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	first := NewRedisLock(store, "order:1", 10*time.Second)
	ok, err := first.TryLock(ctx)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("first TryLock should succeed")
	}

	second := NewRedisLock(store, "order:1", 10*time.Second)
	ok, err = second.TryLock(ctx)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if ok {
		t.Fatal("second TryLock should fail while lock held")
	}

	// 不同业务名互不影响
	other := NewRedisLock(store, "order:2", 10*time.Second)
	ok, err = other.TryLock(ctx)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("lock on different name should succeed")
	}
}

func TestUnlockReleasesLock(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	first := NewRedisLock(store, "order:1", 10*time.Second)
	if ok, _ := first.TryLock(ctx); !ok {
		t.Fatal("first TryLock should succeed")
	}
	if err := first.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	second := NewRedisLock(store, "order:1", 10*time.Second)
	ok, err := second.TryLock(ctx)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("TryLock after Unlock should succeed")
	}
}

func TestUnlockDoesNotReleaseOthersLock(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	first := NewRedisLock(store, "order:1", time.Second)
	if ok, _ := first.TryLock(ctx); !ok {
		t.Fatal("first TryLock should succeed")
	}

	// 锁超时自动释放后被第二个持有者获取
	store.Advance(2 * time.Second)
	second := NewRedisLock(store, "order:1", 10*time.Second)
	if ok, _ := second.TryLock(ctx); !ok {
		t.Fatal("second TryLock after expiry should succeed")
	}

	// 第一个持有者迟到的 Unlock 不能删掉第二个持有者的锁
	if err := first.Unlock(ctx); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	third := NewRedisLock(store, "order:1", 10*time.Second)
	ok, err := third.TryLock(ctx)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if ok {
		t.Fatal("lock should still be held by second holder")
	}
}

func TestLockExpiresAfterTTL(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	first := NewRedisLock(store, "order:1", time.Second)
	if ok, _ := first.TryLock(ctx); !ok {
		t.Fatal("first TryLock should succeed")
	}

	store.Advance(2 * time.Second)

	second := NewRedisLock(store, "order:1", time.Second)
	ok, err := second.TryLock(ctx)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("TryLock after TTL expiry should succeed")
	}
}

func TestUniqueTokens(t *testing.T) {
	store := newTestStore()

	a := NewRedisLock(store, "order:1", time.Second)
	b := NewRedisLock(store, "order:1", time.Second)
	if a.Token() == b.Token() {
		t.Fatalf("tokens should be unique, both %q", a.Token())
	}
}

func TestTryLockStoreUnavailable(t *testing.T) {
	store := newTestStore()
	store.SetErr(kv.ErrStoreUnavailable)

	l := NewRedisLock(store, "order:1", time.Second)
	if _, err := l.TryLock(context.Background()); err == nil {
		t.Fatal("expected error when store unavailable")
	}
}

func TestRetryLockSucceedsAfterRelease(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	holder := NewRedisLock(store, "order:1", 10*time.Second)
	if ok, _ := holder.TryLock(ctx); !ok {
		t.Fatal("holder TryLock should succeed")
	}

	// 第二次重试前释放锁
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = holder.Unlock(ctx)
	}()

	retrier := NewRetryLock(NewRedisLock(store, "order:1", 10*time.Second), 5, 15*time.Millisecond)
	ok, err := retrier.TryLock(ctx)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("RetryLock should acquire after holder releases")
	}
}

func TestRetryLockGivesUpAfterAttempts(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	holder := NewRedisLock(store, "order:1", 10*time.Second)
	if ok, _ := holder.TryLock(ctx); !ok {
		t.Fatal("holder TryLock should succeed")
	}

	retrier := NewRetryLock(NewRedisLock(store, "order:1", 10*time.Second), 3, time.Millisecond)
	ok, err := retrier.TryLock(ctx)
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if ok {
		t.Fatal("RetryLock should give up while lock held")
	}
}

func TestRetryLockHonorsContextCancel(t *testing.T) {
	store := newTestStore()
	holder := NewRedisLock(store, "order:1", 10*time.Second)
	if ok, _ := holder.TryLock(context.Background()); !ok {
		t.Fatal("holder TryLock should succeed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	retrier := NewRetryLock(NewRedisLock(store, "order:1", 10*time.Second), 10, time.Second)
	if _, err := retrier.TryLock(ctx); err == nil {
		t.Fatal("expected context error")
	}
}

func TestNoopLock(t *testing.T) {
	l := NewNoopLock()
	ok, err := l.TryLock(context.Background())
	if err != nil || !ok {
		t.Fatalf("NoopLock.TryLock = %v, %v", ok, err)
	}
	if err := l.Unlock(context.Background()); err != nil {
		t.Fatalf("NoopLock.Unlock: %v", err)
	}
}
