// Package event хранит слушателей одного типа события.
//
// Регистрация возвращает Handle, через который слушателя можно снять.
// Emit вызывает всех слушателей синхронно, по одному разу на событие;
// паника одного слушателя логируется и не мешает остальным.
package event

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type Registry[T any] struct {
	name string
	log  *zap.Logger

	mu        sync.RWMutex
	next      uint64
	listeners []listener[T]
}

type listener[T any] struct {
	id uint64
	fn func(T)
}

// Handle: capability на снятие слушателя. Повторный Off безопасен.
type Handle struct {
	once sync.Once
	off  func()
}

func (h *Handle) Off() {
	if h == nil || h.off == nil {
		return
	}
	h.once.Do(h.off)
}

func NewRegistry[T any](name string, log *zap.Logger) *Registry[T] {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry[T]{name: name, log: log}
}

func (r *Registry[T]) Name() string { return r.name }

func (r *Registry[T]) On(fn func(T)) *Handle {
	r.mu.Lock()
	r.next++
	id := r.next
	r.listeners = append(r.listeners, listener[T]{id: id, fn: fn})
	r.mu.Unlock()

	return &Handle{off: func() { r.remove(id) }}
}

// Once: слушатель, снимающий себя после первого вызова.
func (r *Registry[T]) Once(fn func(T)) *Handle {
	var h *Handle
	var once sync.Once
	ready := make(chan struct{})
	h = r.On(func(v T) {
		<-ready
		once.Do(func() {
			h.Off()
			fn(v)
		})
	})
	close(ready)
	return h
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners)
}

// Emit возвращает число слушателей, завершившихся без паники.
func (r *Registry[T]) Emit(v T) int {
	r.mu.RLock()
	snapshot := make([]listener[T], len(r.listeners))
	copy(snapshot, r.listeners)
	r.mu.RUnlock()

	ok := 0
	for _, l := range snapshot {
		if r.call(l.fn, v) {
			ok++
		}
	}
	return ok
}

func (r *Registry[T]) call(fn func(T), v T) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("listener panicked",
				zap.String("event", r.name),
				zap.String("panic", fmt.Sprint(p)),
				zap.Stack("stack"))
			ok = false
		}
	}()
	fn(v)
	return true
}

func (r *Registry[T]) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l.id == id {
			r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
			return
		}
	}
}
