// Package store кэширует сущности по ключу (пользователи, кланы, комнаты,
// сообщения). Запись существующего ключа через Add не перетирает значение:
// заменить запись можно только явно через Replace (force-refresh).
// Кэш не ограничен по размеру и живёт столько же, сколько процесс.
package store

import "sync"

type Store[K comparable, V any] struct {
	mu    sync.RWMutex
	items map[K]V
}

func New[K comparable, V any]() *Store[K, V] {
	return &Store[K, V]{items: make(map[K]V)}
}

// Get: значение из кэша, без I/O.
func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok
}

// Add кладёт v, если ключа ещё нет. Возвращает то, что реально лежит в кэше,
// и true, если положили именно v.
func (s *Store[K, V]) Add(key K, v V) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.items[key]; ok {
		return cur, false
	}
	s.items[key] = v
	return v, true
}

// GetOrCreate возвращает запись или создаёт её: create вызывается под блокировкой и не больше
// одного раза на ключ.
func (s *Store[K, V]) GetOrCreate(key K, create func() V) (V, bool) {
	if v, ok := s.Get(key); ok {
		return v, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.items[key]; ok {
		return v, false
	}
	v := create()
	s.items[key] = v
	return v, true
}

// Replace: явная замена (force-refresh). Возвращает предыдущее значение.
func (s *Store[K, V]) Replace(key K, v V) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.items[key]
	s.items[key] = v
	return prev, ok
}

func (s *Store[K, V]) Find(match func(V) bool) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.items {
		if match(v) {
			return v, true
		}
	}
	var zero V
	return zero, false
}

// Values: снимок значений, порядок не определён.
func (s *Store[K, V]) Values() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.items))
	for _, v := range s.items {
		out = append(out, v)
	}
	return out
}

func (s *Store[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
