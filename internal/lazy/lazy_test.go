package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestResolveRunsOnceForConcurrentCallers(t *testing.T) {
	var r Resolver
	var runs atomic.Int32
	release := make(chan struct{})

	fn := func(context.Context) error {
		runs.Add(1)
		<-release
		return nil
	}

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Resolve(context.Background(), fn)
		}()
	}

	// дать всем горутинам встать в ожидание
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if runs.Load() != 1 {
		t.Fatalf("fn ran %d times, want 1", runs.Load())
	}
	if !r.Resolved() {
		t.Fatalf("expected resolved")
	}

	// повторный вызов: no-op
	if err := r.Resolve(context.Background(), fn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs.Load() != 1 {
		t.Fatalf("resolved resolver ran fn again")
	}
}

func TestResolveFailureIsSharedAndRetryable(t *testing.T) {
	var r Resolver
	boom := errors.New("boom")

	if err := r.Resolve(context.Background(), func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if r.Resolved() {
		t.Fatalf("failed resolve must not mark resolved")
	}

	if err := r.Resolve(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !r.Resolved() {
		t.Fatalf("expected resolved after retry")
	}
}

func TestWaiterHonoursContext(t *testing.T) {
	var r Resolver
	release := make(chan struct{})
	defer close(release)

	go r.Resolve(context.Background(), func(context.Context) error {
		<-release
		return nil
	})
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := r.Resolve(ctx, func(context.Context) error { return nil }); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestStarterCancelDoesNotFailOthers(t *testing.T) {
	var r Resolver
	release := make(chan struct{})
	var fnErr atomic.Value

	fn := func(ctx context.Context) error {
		<-release
		if err := ctx.Err(); err != nil {
			fnErr.Store(err)
			return err
		}
		return nil
	}

	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	starter := make(chan error, 1)
	go func() { starter <- r.Resolve(short, fn) }()
	time.Sleep(5 * time.Millisecond)

	other := make(chan error, 1)
	go func() { other <- r.Resolve(context.Background(), fn) }()

	if err := <-starter; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("starter: expected deadline exceeded, got %v", err)
	}
	close(release)
	if err := <-other; err != nil {
		t.Fatalf("healthy caller failed: %v", err)
	}
	if v := fnErr.Load(); v != nil {
		t.Fatalf("fn saw cancelled context: %v", v)
	}
	if !r.Resolved() {
		t.Fatalf("expected resolved")
	}
}
