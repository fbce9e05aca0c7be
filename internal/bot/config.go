package bot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// WatchConf: кланы под наблюдением, как они лежат в файле.
type WatchConf struct {
	Clans []int64 `json:"clans"`
}

// watchStore: JSON-файл со списком кланов. Команды !watch меняют его и
// сразу сохраняют. Пустой path: только в памяти.
type watchStore struct {
	mu   sync.Mutex
	path string
	data WatchConf
}

func newWatchStore(path string) *watchStore {
	return &watchStore{path: path}
}

// Load читает файл; если его нет, создаёт пустой.
func (ws *watchStore) Load() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.path == "" {
		return nil
	}
	b, err := os.ReadFile(ws.path)
	if errors.Is(err, os.ErrNotExist) {
		return ws.saveLocked()
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, &ws.data)
}

func (ws *watchStore) Save() error {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.saveLocked()
}

func (ws *watchStore) saveLocked() error {
	if ws.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(ws.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(&ws.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(ws.path, b, 0o644)
}

// Add возвращает false, если клан уже в списке.
func (ws *watchStore) Add(id int64) (bool, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if slices.Contains(ws.data.Clans, id) {
		return false, nil
	}
	ws.data.Clans = append(ws.data.Clans, id)
	return true, ws.saveLocked()
}

func (ws *watchStore) Remove(id int64) (bool, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	i := slices.Index(ws.data.Clans, id)
	if i < 0 {
		return false, nil
	}
	ws.data.Clans = slices.Delete(ws.data.Clans, i, i+1)
	return true, ws.saveLocked()
}

func (ws *watchStore) Clans() []int64 {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return slices.Clone(ws.data.Clans)
}
