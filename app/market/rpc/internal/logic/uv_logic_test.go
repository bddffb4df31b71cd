package logic

import (
	"context"
	"testing"
	"time"

	"github.com/levi04206/hmdp/app/market/rpc/internal/svc"
	"github.com/levi04206/hmdp/common/kv/kvtest"
)

func TestUVRecordAndCount(t *testing.T) {
	store := kvtest.New()
	l := NewUVLogic(context.Background(), &svc.ServiceContext{Store: store})
	day := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return day }

	// 3 个用户访问，其中用户 1 访问两次
	for _, uid := range []uint64{1, 2, 3, 1} {
		if err := l.Record("shop", uid); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	count, err := l.Count("shop", day)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3 (deduplicated)", count)
	}
}

func TestUVDaysIsolated(t *testing.T) {
	store := kvtest.New()
	l := NewUVLogic(context.Background(), &svc.ServiceContext{Store: store})
	day1 := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	day2 := day1.AddDate(0, 0, 1)

	l.now = func() time.Time { return day1 }
	if err := l.Record("shop", 1); err != nil {
		t.Fatalf("Record: %v", err)
	}

	l.now = func() time.Time { return day2 }
	if err := l.Record("shop", 1); err != nil {
		t.Fatalf("Record: %v", err)
	}

	for _, day := range []time.Time{day1, day2} {
		count, err := l.Count("shop", day)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count != 1 {
			t.Errorf("count(%s) = %d, want 1", day.Format("20060102"), count)
		}
	}
}

func TestUVBizIsolated(t *testing.T) {
	store := kvtest.New()
	l := NewUVLogic(context.Background(), &svc.ServiceContext{Store: store})
	day := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return day }

	if err := l.Record("shop", 1); err != nil {
		t.Fatalf("Record: %v", err)
	}

	count, err := l.Count("blog", day)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 (different biz)", count)
	}
}
