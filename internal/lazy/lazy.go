// Package lazy откладывает и делает идемпотентной загрузку ссылок сущности.
//
// Первый вызов Resolve запускает fn, остальные конкурентные вызовы ждут его
// результат (fn не дублируется). После успеха флаг resolved больше не
// сбрасывается; после ошибки следующий вызов попробует снова.
package lazy

import (
	"context"
	"errors"
	"sync"
)

var errAborted = errors.New("lazy: resolve aborted")

type Resolver struct {
	mu       sync.Mutex
	resolved bool
	inflight *call
}

type call struct {
	done chan struct{}
	err  error
}

func (r *Resolver) Resolved() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolved
}

// Resolve выполняет fn не более одного раза успешно. fn работает на
// контексте без отмены (значения первого вызывающего сохраняются), каждый
// вызывающий, включая первого, ждёт результат до своего ctx.Done.
func (r *Resolver) Resolve(ctx context.Context, fn func(context.Context) error) error {
	r.mu.Lock()
	if r.resolved {
		r.mu.Unlock()
		return nil
	}
	c := r.inflight
	if c == nil {
		c = &call{done: make(chan struct{}), err: errAborted}
		r.inflight = c
		go r.run(context.WithoutCancel(ctx), c, fn)
	}
	r.mu.Unlock()

	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Resolver) run(ctx context.Context, c *call, fn func(context.Context) error) {
	defer func() {
		r.mu.Lock()
		r.inflight = nil
		if c.err == nil {
			r.resolved = true
		}
		r.mu.Unlock()
		close(c.done)
	}()
	c.err = fn(ctx)
}
