package store

import (
	"sync"
	"testing"
)

type entity struct {
	id   int
	name string
}

func TestAddDoesNotReplace(t *testing.T) {
	s := New[int, *entity]()
	first := &entity{id: 1, name: "first"}
	got, added := s.Add(1, first)
	if !added || got != first {
		t.Fatalf("expected first insert to be stored")
	}

	second := &entity{id: 1, name: "second"}
	got, added = s.Add(1, second)
	if added {
		t.Fatalf("duplicate key must not be added")
	}
	if got != first {
		t.Fatalf("expected cached instance, got %+v", got)
	}
	if v, _ := s.Get(1); v != first {
		t.Fatalf("store entry was replaced silently")
	}
}

func TestReplace(t *testing.T) {
	s := New[int, *entity]()
	old := &entity{id: 7}
	s.Add(7, old)

	fresh := &entity{id: 7, name: "fresh"}
	prev, ok := s.Replace(7, fresh)
	if !ok || prev != old {
		t.Fatalf("expected previous value to be returned")
	}
	if v, _ := s.Get(7); v != fresh {
		t.Fatalf("expected replaced value")
	}
}

func TestGetOrCreateCreatesOnce(t *testing.T) {
	s := New[int, *entity]()
	var calls int
	var mu sync.Mutex

	var wg sync.WaitGroup
	results := make([]*entity, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.GetOrCreate(0, func() *entity {
				mu.Lock()
				calls++
				mu.Unlock()
				return &entity{id: 0, name: "global"}
			})
		}(i)
	}
	wg.Wait()

	if calls != 1 {
		t.Fatalf("create called %d times", calls)
	}
	for _, r := range results {
		if r != results[0] {
			t.Fatalf("expected the same instance for every caller")
		}
	}
}

func TestFind(t *testing.T) {
	s := New[int, *entity]()
	s.Add(1, &entity{id: 1, name: "a"})
	s.Add(2, &entity{id: 2, name: "b"})

	v, ok := s.Find(func(e *entity) bool { return e.name == "b" })
	if !ok || v.id != 2 {
		t.Fatalf("find returned %+v, %v", v, ok)
	}
	if _, ok := s.Find(func(e *entity) bool { return e.name == "zzz" }); ok {
		t.Fatalf("expected no match")
	}
	if s.Len() != 2 || len(s.Values()) != 2 {
		t.Fatalf("unexpected size")
	}
}
