package seckill

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/levi04206/hmdp/app/market/model"
	"github.com/levi04206/hmdp/common/constants"
	"github.com/levi04206/hmdp/common/errorx"
	"github.com/levi04206/hmdp/common/idgen"
	"github.com/levi04206/hmdp/common/kv"
	"github.com/levi04206/hmdp/common/kv/kvtest"
)

// ==================== 测试替身 ====================

type fakeVouchers struct {
	vouchers map[uint64]*model.SeckillVoucher
}

func (f *fakeVouchers) FindByVoucherID(ctx context.Context, voucherID uint64) (*model.SeckillVoucher, error) {
	v, ok := f.vouchers[voucherID]
	if !ok {
		return nil, model.ErrVoucherNotFound
	}
	return v, nil
}

type fakePersister struct {
	mu     sync.Mutex
	orders map[string]*model.VoucherOrder // userID:voucherID -> 订单

	// transientFailures 前 N 次调用返回瞬时错误
	transientFailures int
	// permanentErr 非 nil 时每次调用都返回该错误
	permanentErr error
	calls        int
}

func newFakePersister() *fakePersister {
	return &fakePersister{orders: make(map[string]*model.VoucherOrder)}
}

func (f *fakePersister) Persist(ctx context.Context, order *model.VoucherOrder) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.permanentErr != nil {
		return f.permanentErr
	}
	if f.transientFailures > 0 {
		f.transientFailures--
		return fmt.Errorf("db connection reset")
	}

	key := fmt.Sprintf("%d:%d", order.UserID, order.VoucherID)
	if _, exists := f.orders[key]; exists {
		return model.ErrOrderExists
	}
	f.orders[key] = order
	return nil
}

func (f *fakePersister) orderCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakePersister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// dlqFailStore 死信流写入失败的存储替身，其余操作透传
type dlqFailStore struct {
	*kvtest.Store
	mu   sync.Mutex
	fail bool
}

func (s *dlqFailStore) setFail(v bool) {
	s.mu.Lock()
	s.fail = v
	s.mu.Unlock()
}

func (s *dlqFailStore) XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error) {
	s.mu.Lock()
	fail := s.fail
	s.mu.Unlock()
	if fail && stream == constants.SeckillOrderDLQStream {
		return "", kv.ErrStoreUnavailable
	}
	return s.Store.XAdd(ctx, stream, values)
}

// ==================== 组装工具 ====================

func registerAdmissionScript(store *kvtest.Store) {
	store.RegisterScript(AdmissionScript, func(tx *kvtest.Tx, keys []string, args []string) (interface{}, error) {
		stockStr, ok := tx.Get(keys[0])
		if !ok {
			return int64(1), nil
		}
		stock, err := strconv.Atoi(stockStr)
		if err != nil || stock <= 0 {
			return int64(1), nil
		}
		if tx.SIsMember(keys[1], args[1]) {
			return int64(2), nil
		}
		if _, err := tx.IncrBy(keys[0], -1); err != nil {
			return nil, err
		}
		tx.SAdd(keys[1], args[1])
		tx.XAdd(keys[2], map[string]interface{}{
			"userId":    args[1],
			"voucherId": args[0],
			"id":        args[2],
		})
		return int64(0), nil
	})
}

func alwaysOpenVoucher(voucherID uint64, stock int32) *fakeVouchers {
	return &fakeVouchers{vouchers: map[uint64]*model.SeckillVoucher{
		voucherID: {
			VoucherID: voucherID,
			Stock:     stock,
			BeginTime: time.Now().Add(-time.Hour),
			EndTime:   time.Now().Add(time.Hour),
		},
	}}
}

func newTestPipeline(t *testing.T, vouchers VoucherReader, persister OrderPersister) (*Pipeline, *kvtest.Store) {
	t.Helper()
	store := kvtest.New()
	registerAdmissionScript(store)
	metrics := NewMetrics(prometheus.NewRegistry())
	return NewPipeline(store, idgen.NewGenerator(store), vouchers, persister, metrics), store
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting: %s", msg)
}

// ==================== 提交路径测试 ====================

func TestSubmitSuccess(t *testing.T) {
	p, store := newTestPipeline(t, alwaysOpenVoucher(10, 5), newFakePersister())
	ctx := context.Background()

	if err := p.PreloadStock(ctx, 10, 5); err != nil {
		t.Fatalf("PreloadStock: %v", err)
	}

	orderID, err := p.Submit(ctx, 1001, 10)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if orderID == 0 {
		t.Fatal("orderID should not be zero")
	}

	// 库存已预扣，消息已入流
	stock, err := store.Get(ctx, "seckill:stock:10")
	if err != nil {
		t.Fatalf("Get stock: %v", err)
	}
	if stock != "4" {
		t.Errorf("stock = %s, want 4", stock)
	}
	if n := store.StreamLen(constants.SeckillOrderStream); n != 1 {
		t.Errorf("stream len = %d, want 1", n)
	}
}

func TestSubmitStockExhausted(t *testing.T) {
	p, _ := newTestPipeline(t, alwaysOpenVoucher(10, 1), newFakePersister())
	ctx := context.Background()

	if err := p.PreloadStock(ctx, 10, 1); err != nil {
		t.Fatalf("PreloadStock: %v", err)
	}

	if _, err := p.Submit(ctx, 1001, 10); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := p.Submit(ctx, 1002, 10)
	if !errorx.Is(err, errorx.CodeStockExhausted) {
		t.Fatalf("Submit = %v, want CodeStockExhausted", err)
	}
}

func TestSubmitDuplicateUser(t *testing.T) {
	p, store := newTestPipeline(t, alwaysOpenVoucher(10, 5), newFakePersister())
	ctx := context.Background()

	if err := p.PreloadStock(ctx, 10, 5); err != nil {
		t.Fatalf("PreloadStock: %v", err)
	}

	if _, err := p.Submit(ctx, 1001, 10); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := p.Submit(ctx, 1001, 10)
	if !errorx.Is(err, errorx.CodeDuplicateOrder) {
		t.Fatalf("Submit = %v, want CodeDuplicateOrder", err)
	}

	// 重复请求不扣库存、不入流
	stock, _ := store.Get(ctx, "seckill:stock:10")
	if stock != "4" {
		t.Errorf("stock = %s, want 4", stock)
	}
	if n := store.StreamLen(constants.SeckillOrderStream); n != 1 {
		t.Errorf("stream len = %d, want 1", n)
	}
}

func TestSubmitOutsideWindow(t *testing.T) {
	vouchers := &fakeVouchers{vouchers: map[uint64]*model.SeckillVoucher{
		10: {
			VoucherID: 10,
			Stock:     5,
			BeginTime: time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC),
			EndTime:   time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	}}
	p, _ := newTestPipeline(t, vouchers, newFakePersister())
	ctx := context.Background()

	p.now = func() time.Time { return time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC) }
	if _, err := p.Submit(ctx, 1001, 10); err == nil {
		t.Fatal("Submit before BeginTime should fail")
	}

	p.now = func() time.Time { return time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC) }
	if _, err := p.Submit(ctx, 1001, 10); err == nil {
		t.Fatal("Submit after EndTime should fail")
	}
}

func TestSubmitVoucherNotFound(t *testing.T) {
	p, _ := newTestPipeline(t, &fakeVouchers{vouchers: map[uint64]*model.SeckillVoucher{}}, newFakePersister())

	_, err := p.Submit(context.Background(), 1001, 999)
	if !errorx.Is(err, errorx.CodeVoucherNotFound) {
		t.Fatalf("Submit = %v, want CodeVoucherNotFound", err)
	}
}

func TestConcurrentSubmitNoOversell(t *testing.T) {
	const stock = 10
	const users = 100

	p, store := newTestPipeline(t, alwaysOpenVoucher(10, stock), newFakePersister())
	ctx := context.Background()
	if err := p.PreloadStock(ctx, 10, stock); err != nil {
		t.Fatalf("PreloadStock: %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(userID uint64) {
			defer wg.Done()
			if _, err := p.Submit(ctx, userID, 10); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}(uint64(2000 + i))
	}
	wg.Wait()

	if succeeded != stock {
		t.Errorf("succeeded = %d, want %d (no oversell)", succeeded, stock)
	}
	if got, _ := store.Get(ctx, "seckill:stock:10"); got != "0" {
		t.Errorf("remaining stock = %s, want 0", got)
	}
	if n := store.StreamLen(constants.SeckillOrderStream); n != stock {
		t.Errorf("stream len = %d, want %d", n, stock)
	}
}

// ==================== 落库路径测试 ====================

func TestConsumerPersistsOrders(t *testing.T) {
	persister := newFakePersister()
	p, store := newTestPipeline(t, alwaysOpenVoucher(10, 5), persister)
	ctx := context.Background()
	if err := p.PreloadStock(ctx, 10, 5); err != nil {
		t.Fatalf("PreloadStock: %v", err)
	}

	go p.Start()
	defer p.Stop()

	for i := 0; i < 3; i++ {
		if _, err := p.Submit(ctx, uint64(1001+i), 10); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	waitFor(t, 3*time.Second, func() bool {
		return persister.orderCount() == 3
	}, "orders persisted")

	waitFor(t, 3*time.Second, func() bool {
		return store.PendingCount(constants.SeckillOrderStream, constants.SeckillOrderGroup) == 0
	}, "all messages acked")
}

func TestPendingRecoveryAfterTransientFailure(t *testing.T) {
	persister := newFakePersister()
	persister.transientFailures = 2
	p, store := newTestPipeline(t, alwaysOpenVoucher(10, 5), persister)
	ctx := context.Background()
	if err := p.PreloadStock(ctx, 10, 5); err != nil {
		t.Fatalf("PreloadStock: %v", err)
	}

	go p.Start()
	defer p.Stop()

	if _, err := p.Submit(ctx, 1001, 10); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// 前两次落库失败，补偿流程最终落库成功
	waitFor(t, 3*time.Second, func() bool {
		return persister.orderCount() == 1
	}, "order recovered from pending list")

	waitFor(t, 3*time.Second, func() bool {
		return store.PendingCount(constants.SeckillOrderStream, constants.SeckillOrderGroup) == 0
	}, "pending list drained")

	// 不会进入死信流
	if n := store.StreamLen(constants.SeckillOrderDLQStream); n != 0 {
		t.Errorf("dlq len = %d, want 0", n)
	}
}

func TestConflictGoesToDeadLetter(t *testing.T) {
	persister := newFakePersister()
	persister.permanentErr = model.ErrStockNotEnough
	p, store := newTestPipeline(t, alwaysOpenVoucher(10, 5), persister)
	ctx := context.Background()
	if err := p.PreloadStock(ctx, 10, 5); err != nil {
		t.Fatalf("PreloadStock: %v", err)
	}

	go p.Start()
	defer p.Stop()

	if _, err := p.Submit(ctx, 1001, 10); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// 库存矛盾不可重试，直接进入死信流并确认
	waitFor(t, 3*time.Second, func() bool {
		return store.StreamLen(constants.SeckillOrderDLQStream) == 1
	}, "message moved to DLQ")

	waitFor(t, 3*time.Second, func() bool {
		return store.PendingCount(constants.SeckillOrderStream, constants.SeckillOrderGroup) == 0
	}, "conflicted message acked")
}

func TestRepeatedFailureGoesToDeadLetter(t *testing.T) {
	persister := newFakePersister()
	persister.permanentErr = fmt.Errorf("db down")
	p, store := newTestPipeline(t, alwaysOpenVoucher(10, 5), persister)
	ctx := context.Background()
	if err := p.PreloadStock(ctx, 10, 5); err != nil {
		t.Fatalf("PreloadStock: %v", err)
	}

	go p.Start()
	defer p.Stop()

	if _, err := p.Submit(ctx, 1001, 10); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// 重试超限后转入死信流，pending 列表不被堵死
	waitFor(t, 5*time.Second, func() bool {
		return store.StreamLen(constants.SeckillOrderDLQStream) == 1
	}, "message moved to DLQ after retries")

	waitFor(t, 3*time.Second, func() bool {
		return store.PendingCount(constants.SeckillOrderStream, constants.SeckillOrderGroup) == 0
	}, "failed message acked")
}

func TestDeadLetterWriteFailureKeepsPending(t *testing.T) {
	persister := newFakePersister()
	persister.permanentErr = fmt.Errorf("db down")

	inner := kvtest.New()
	registerAdmissionScript(inner)
	store := &dlqFailStore{Store: inner, fail: true}
	p := NewPipeline(store, idgen.NewGenerator(inner), alwaysOpenVoucher(10, 5), persister,
		NewMetrics(prometheus.NewRegistry()))

	ctx := context.Background()
	if err := p.PreloadStock(ctx, 10, 5); err != nil {
		t.Fatalf("PreloadStock: %v", err)
	}

	go p.Start()

	if _, err := p.Submit(ctx, 1001, 10); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// 等待重试超限并至少经历一次死信流写入失败
	waitFor(t, 5*time.Second, func() bool {
		return persister.callCount() >= maxPersistAttempts+2
	}, "message retried past limit")
	p.Stop()

	// 死信流写不进去就不确认，消息保留在 pending 列表
	if n := inner.PendingCount(constants.SeckillOrderStream, constants.SeckillOrderGroup); n != 1 {
		t.Errorf("pending count = %d, want 1", n)
	}
	if n := inner.StreamLen(constants.SeckillOrderDLQStream); n != 0 {
		t.Errorf("dlq len = %d, want 0", n)
	}
	if persister.orderCount() != 0 {
		t.Errorf("order count = %d, want 0", persister.orderCount())
	}

	// 死信流恢复后，重启的消费者把遗留消息转入死信流并确认
	store.setFail(false)
	p2 := NewPipeline(store, idgen.NewGenerator(inner), alwaysOpenVoucher(10, 5), persister,
		NewMetrics(prometheus.NewRegistry()))
	go p2.Start()
	defer p2.Stop()

	waitFor(t, 5*time.Second, func() bool {
		return inner.StreamLen(constants.SeckillOrderDLQStream) == 1
	}, "message moved to DLQ after store recovery")
	waitFor(t, 3*time.Second, func() bool {
		return inner.PendingCount(constants.SeckillOrderStream, constants.SeckillOrderGroup) == 0
	}, "message acked after dead letter")
}

func TestStopImmediatelyAfterStart(t *testing.T) {
	p, _ := newTestPipeline(t, alwaysOpenVoucher(10, 5), newFakePersister())

	go p.Start()

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop should return even when called right after Start")
	}
}

func TestRedeliveredOrderIsIdempotent(t *testing.T) {
	persister := newFakePersister()
	p, store := newTestPipeline(t, alwaysOpenVoucher(10, 5), persister)
	ctx := context.Background()

	// 预先落库同一订单，模拟重复投递
	persister.orders["1001:10"] = &model.VoucherOrder{ID: 42, UserID: 1001, VoucherID: 10}

	go p.Start()
	defer p.Stop()

	if err := p.PreloadStock(ctx, 10, 5); err != nil {
		t.Fatalf("PreloadStock: %v", err)
	}
	if _, err := p.Submit(ctx, 1001, 10); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// 重复订单按成功处理并确认，不进死信流
	waitFor(t, 3*time.Second, func() bool {
		return store.PendingCount(constants.SeckillOrderStream, constants.SeckillOrderGroup) == 0
	}, "duplicate order acked")

	if n := store.StreamLen(constants.SeckillOrderDLQStream); n != 0 {
		t.Errorf("dlq len = %d, want 0", n)
	}
	if persister.orderCount() != 1 {
		t.Errorf("order count = %d, want 1", persister.orderCount())
	}
}
