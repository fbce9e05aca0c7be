package bot

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"example.com/blacket/pkg/blacket"
)

// fetchClan: принудительная загрузка клана; nil: клана нет.
type fetchClan func(ctx context.Context, id int64) (*blacket.Clan, error)

// clanWatch опрашивает кланы из списка и сообщает, кто вступил и кто
// вышел. Первый снимок клана: без уведомлений.
type clanWatch struct {
	fetch fetchClan
	list  func() []int64
	log   *zap.Logger

	mu      sync.Mutex
	last    map[int64]clanSnapshot
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

type clanSnapshot struct {
	name    string
	members map[int64]string
}

func newClanWatch(fetch fetchClan, list func() []int64, log *zap.Logger) *clanWatch {
	return &clanWatch{
		fetch: fetch,
		list:  list,
		log:   log,
		last:  map[int64]clanSnapshot{},
	}
}

// Start запускает фоновый опрос; повторный вызов ничего не делает.
func (w *clanWatch) Start(interval time.Duration, notify func(string)) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	stop, done := w.stopCh, w.done
	w.mu.Unlock()

	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			<-stop
			cancel()
		}()

		for {
			select {
			case <-t.C:
				w.Scan(ctx, notify)
			case <-stop:
				return
			}
		}
	}()
}

func (w *clanWatch) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.running = false
	done := w.done
	w.mu.Unlock()
	<-done
}

// Scan: один проход по списку.
func (w *clanWatch) Scan(ctx context.Context, notify func(string)) {
	for _, id := range w.list() {
		if ctx.Err() != nil {
			return
		}
		cl, err := w.fetch(ctx, id)
		if err != nil {
			w.log.Warn("clan watch fetch failed", zap.Int64("clan", id), zap.Error(err))
			continue
		}
		if cl == nil {
			w.log.Info("watched clan does not exist", zap.Int64("clan", id))
			w.forget(id)
			continue
		}
		for _, line := range w.diff(cl) {
			notify(line)
		}
	}
}

// diff обновляет снимок клана и возвращает объявления.
func (w *clanWatch) diff(cl *blacket.Clan) []string {
	cur := clanSnapshot{name: cl.Name, members: map[int64]string{}}
	for _, m := range cl.MemberStubs() {
		cur.members[m.ID] = m.Username
	}

	w.mu.Lock()
	prev, seen := w.last[cl.ID]
	w.last[cl.ID] = cur
	w.mu.Unlock()
	if !seen {
		return nil
	}

	var out []string
	for _, id := range slices.Sorted(maps.Keys(cur.members)) {
		if _, ok := prev.members[id]; !ok {
			out = append(out, fmt.Sprintf("➡ %s joined %s", cur.members[id], cl.Name))
		}
	}
	for _, id := range slices.Sorted(maps.Keys(prev.members)) {
		if _, ok := cur.members[id]; !ok {
			out = append(out, fmt.Sprintf("⬅ %s left %s", prev.members[id], cl.Name))
		}
	}
	return out
}

func (w *clanWatch) forget(id int64) {
	w.mu.Lock()
	delete(w.last, id)
	w.mu.Unlock()
}

// Status: имя и число участников по последнему снимку; false: снимка ещё нет.
func (w *clanWatch) Status(id int64) (string, int, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.last[id]
	return s.name, len(s.members), ok
}
