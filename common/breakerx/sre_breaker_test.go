package breakerx

import (
	"errors"
	"testing"
	"time"

	"github.com/zeromicro/go-zero/core/breaker"
)

var errBoom = errors.New("boom")

func TestBreakerOpensOnErrorRate(t *testing.T) {
	b := NewSREBreaker(SREConfig{
		Name:      "test",
		Requests:  10,
		ErrorRate: 0.5,
		Timeout:   time.Minute,
	})

	for i := 0; i < 10; i++ {
		_ = b.Do(func() error { return errBoom })
	}

	called := false
	err := b.Do(func() error {
		called = true
		return nil
	})
	if !errors.Is(err, breaker.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
	if called {
		t.Fatal("request executed while breaker open")
	}
}

func TestBreakerStaysClosedBelowMinRequests(t *testing.T) {
	b := NewSREBreaker(SREConfig{
		Name:      "test",
		Requests:  100,
		ErrorRate: 0.5,
		Timeout:   time.Minute,
	})

	// 样本不足，不熔断
	for i := 0; i < 20; i++ {
		_ = b.Do(func() error { return errBoom })
	}

	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do = %v, want nil", err)
	}
}

func TestBreakerAcceptableErrorsDoNotOpen(t *testing.T) {
	b := NewSREBreaker(SREConfig{
		Name:      "test",
		Requests:  10,
		ErrorRate: 0.5,
		Timeout:   time.Minute,
	})

	// 业务错误标记为可接受，不计入失败
	for i := 0; i < 50; i++ {
		_ = b.DoWithAcceptable(
			func() error { return errBoom },
			func(err error) bool { return true },
		)
	}

	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do = %v, want nil", err)
	}
}

func TestBreakerRecoversAfterTimeout(t *testing.T) {
	b := NewSREBreaker(SREConfig{
		Name:      "test",
		Requests:  10,
		ErrorRate: 0.5,
		Timeout:   50 * time.Millisecond,
	})

	for i := 0; i < 10; i++ {
		_ = b.Do(func() error { return errBoom })
	}
	if err := b.Do(func() error { return nil }); !errors.Is(err, breaker.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}

	time.Sleep(60 * time.Millisecond)

	if err := b.Do(func() error { return nil }); err != nil {
		t.Fatalf("Do after recovery = %v, want nil", err)
	}
}

func TestBreakerFallback(t *testing.T) {
	b := NewSREBreaker(SREConfig{
		Name:      "test",
		Requests:  10,
		ErrorRate: 0.5,
		Timeout:   time.Minute,
	})

	for i := 0; i < 10; i++ {
		_ = b.Do(func() error { return errBoom })
	}

	errFallback := errors.New("降级")
	err := b.DoWithFallback(
		func() error { return nil },
		func(err error) error { return errFallback },
	)
	if !errors.Is(err, errFallback) {
		t.Fatalf("err = %v, want fallback error", err)
	}
}
