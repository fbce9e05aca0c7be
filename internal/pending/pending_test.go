package pending

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCompleteResolvesExactlyOnce(t *testing.T) {
	m := New[string]()
	ch := m.Register("abc")

	if !m.Complete("abc", "hello") {
		t.Fatalf("expected waiter for abc")
	}
	if m.Complete("abc", "again") {
		t.Fatalf("second completion must be ignored")
	}
	if m.Len() != 0 {
		t.Fatalf("entry must be removed after completion")
	}

	v, err := m.Wait(context.Background(), "abc", ch)
	if err != nil || v != "hello" {
		t.Fatalf("got %q, %v", v, err)
	}
}

func TestCompleteOnlyMatchingKey(t *testing.T) {
	m := New[int]()
	a := m.Register("a")
	b := m.Register("b")

	m.Complete("b", 2)

	select {
	case <-a:
		t.Fatalf("waiter a must not be resolved")
	default:
	}
	if r := <-b; r.Value != 2 {
		t.Fatalf("unexpected value %d", r.Value)
	}
	if !m.Has("a") || m.Has("b") {
		t.Fatalf("unexpected pending state")
	}
}

func TestWaitCancelRemovesEntry(t *testing.T) {
	m := New[int]()
	ch := m.Register("k")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := m.Wait(ctx, "k", ch); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("cancelled wait must not leak")
	}
	if m.Complete("k", 1) {
		t.Fatalf("late ack must find no waiter")
	}
}

func TestFailAll(t *testing.T) {
	m := New[int]()
	a := m.Register("a")
	b := m.Register("b")
	lost := errors.New("connection lost")

	if n := m.FailAll(lost); n != 2 {
		t.Fatalf("failed %d waiters, want 2", n)
	}
	for _, ch := range []<-chan Result[int]{a, b} {
		if r := <-ch; !errors.Is(r.Err, lost) {
			t.Fatalf("expected lost, got %v", r.Err)
		}
	}
}

func TestRegisterSameKeyAbandonsPrevious(t *testing.T) {
	m := New[int]()
	first := m.Register("dup")
	second := m.Register("dup")

	if r := <-first; !errors.Is(r.Err, ErrAbandoned) {
		t.Fatalf("expected ErrAbandoned, got %v", r.Err)
	}
	m.Complete("dup", 5)
	if r := <-second; r.Value != 5 {
		t.Fatalf("unexpected value %d", r.Value)
	}
}

func TestClaimHidesEntryFromFailAll(t *testing.T) {
	m := New[int]()
	ch := m.Register("k")

	deliver, ok := m.Claim("k")
	if !ok {
		t.Fatalf("expected waiter for k")
	}
	if _, again := m.Claim("k"); again {
		t.Fatalf("key claimed twice")
	}
	if n := m.FailAll(errors.New("connection lost")); n != 0 {
		t.Fatalf("FailAll touched %d claimed waiters", n)
	}

	deliver(7, nil)
	deliver(8, nil)
	if r := <-ch; r.Err != nil || r.Value != 7 {
		t.Fatalf("got %+v, want 7", r)
	}
}
