package blacket

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// node: сущность с отложенными ссылками.
//
// resolveRefs загружает только прямые ссылки (через load менеджеров, без
// рекурсии), поэтому никогда не ждёт чужой resolve. edges, уже загруженные
// соседи, которых нужно дорезолвить.
type node interface {
	nodeKey() string
	resolveRefs(ctx context.Context) error
	edges() []node
}

// resolveGraph дорезолвивает всё, что достижимо из root, уровнями.
// visited обрывает циклы (user -> clan -> members -> тот же user).
// Ошибка любой загрузки: ошибка всего вызова.
func resolveGraph(ctx context.Context, root node) error {
	visited := map[string]struct{}{root.nodeKey(): {}}
	level := []node{root}

	for len(level) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, n := range level {
			g.Go(func() error { return n.resolveRefs(gctx) })
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var next []node
		for _, n := range level {
			for _, e := range n.edges() {
				k := e.nodeKey()
				if _, seen := visited[k]; seen {
					continue
				}
				visited[k] = struct{}{}
				next = append(next, e)
			}
		}
		level = next
	}
	return nil
}

// loadAll грузит ids параллельно; порядок не важен, результат лежит в кэше.
func loadAll(ctx context.Context, ids []int64, load func(context.Context, int64) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		g.Go(func() error { return load(gctx, id) })
	}
	return g.Wait()
}

// share: одна загрузка на key. fn работает на контексте без отмены, каждый
// вызывающий ждёт результат до своего ctx.Done.
func share(ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := g.DoChan(key, func() (any, error) { return fn(detached) })
	select {
	case r := <-ch:
		return r.Val, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
