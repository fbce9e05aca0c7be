// Package sched планирует отложенные задачи (дедлайн heartbeat, истечение бустера,
// пауза перед реконнектом) поверх подменяемых часов.
//
// Task хранит не больше одного запланированного таймера: новый Schedule
// отменяет предыдущий, и уже отменённый колбэк гарантированно ничего не делает.
package sched

import (
	"sync"
	"time"
)

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	After(d time.Duration) <-chan time.Time
}

// Real: обычные часы на time.AfterFunc.
var Real Clock = realClock{}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

type Task struct {
	mu    sync.Mutex
	clock Clock
	timer Timer
	gen   uint64
}

func NewTask(clock Clock) *Task {
	if clock == nil {
		clock = Real
	}
	return &Task{clock: clock}
}

// Schedule запускает fn через d, отменяя ранее запланированное.
func (t *Task) Schedule(d time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(d, func() {
		t.mu.Lock()
		if gen != t.gen {
			t.mu.Unlock()
			return
		}
		t.timer = nil
		t.mu.Unlock()
		fn()
	})
}

func (t *Task) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// Pending: есть ли запланированный и ещё не сработавший колбэк.
func (t *Task) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}
