// Package pending связывает отправленные действия с асинхронными
// подтверждениями: token -> одноразовый future.
//
// Аналог seq->callback карты в клиенте сокета, только ключ строковый
// (customKey) и результат забирается через канал.
package pending

import (
	"context"
	"errors"
	"sync"
)

// ErrAbandoned: ожидание снято до прихода подтверждения.
var ErrAbandoned = errors.New("pending: wait abandoned")

type Result[T any] struct {
	Value T
	Err   error
}

type Map[T any] struct {
	mu      sync.Mutex
	waiters map[string]chan Result[T]
}

func New[T any]() *Map[T] {
	return &Map[T]{waiters: make(map[string]chan Result[T])}
}

// Register регистрирует ожидание по key. Повторная регистрация того же key
// вытесняет предыдущее ожидание с ErrAbandoned.
func (m *Map[T]) Register(key string) <-chan Result[T] {
	ch := make(chan Result[T], 1)
	m.mu.Lock()
	if old, ok := m.waiters[key]; ok {
		old <- Result[T]{Err: ErrAbandoned}
	}
	m.waiters[key] = ch
	m.mu.Unlock()
	return ch
}

func (m *Map[T]) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.waiters[key]
	return ok
}

// Complete отдаёт значение ожидающему и снимает регистрацию.
// Возвращает false, если по key никто не ждёт (уже завершён или не было).
func (m *Map[T]) Complete(key string, v T) bool {
	return m.finish(key, Result[T]{Value: v})
}

func (m *Map[T]) Fail(key string, err error) bool {
	return m.finish(key, Result[T]{Err: err})
}

// Claim сразу снимает ожидание по key и возвращает функцию, которая позже
// доставит результат (один раз). Забранное ожидание уже не видят FailAll
// и Cancel.
func (m *Map[T]) Claim(key string) (func(T, error), bool) {
	m.mu.Lock()
	ch, ok := m.waiters[key]
	if ok {
		delete(m.waiters, key)
	}
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	var once sync.Once
	return func(v T, err error) {
		once.Do(func() { ch <- Result[T]{Value: v, Err: err} })
	}, true
}

// Cancel снимает ожидание без результата (вызывающий больше не слушает).
func (m *Map[T]) Cancel(key string) {
	m.mu.Lock()
	delete(m.waiters, key)
	m.mu.Unlock()
}

// FailAll: при разрыве соединения все ожидающие получают err.
func (m *Map[T]) FailAll(err error) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.waiters)
	for k, ch := range m.waiters {
		ch <- Result[T]{Err: err}
		delete(m.waiters, k)
	}
	return n
}

func (m *Map[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}

// Wait ждёт результат по ch; при отмене ctx снимает регистрацию key.
func (m *Map[T]) Wait(ctx context.Context, key string, ch <-chan Result[T]) (T, error) {
	select {
	case r := <-ch:
		return r.Value, r.Err
	case <-ctx.Done():
		m.Cancel(key)
		var zero T
		return zero, ctx.Err()
	}
}

func (m *Map[T]) finish(key string, r Result[T]) bool {
	m.mu.Lock()
	ch, ok := m.waiters[key]
	if ok {
		delete(m.waiters, key)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}
	ch <- r
	return true
}
