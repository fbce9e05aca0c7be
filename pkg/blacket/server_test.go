package blacket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"example.com/blacket/pkg/socket"
)

const (
	meID     = 1
	aliceID  = 2
	bobID    = 3
	clanID   = 8424028
	testTok  = "tok"
	loginTok = "fresh-token"
)

// fakeServer: REST и сокет Blacket в одном httptest-сервере.
type fakeServer struct {
	t   *testing.T
	srv *httptest.Server

	mu      sync.Mutex
	calls   map[string]int
	bodies  map[string][]string
	users   map[string]string
	clans   map[string]string
	data    string
	autoAck bool
	nextID  atomic.Int64
	// userDelay: пауза перед ответом на запрос пользователя
	userDelay time.Duration

	peers chan *peer
}

// peer: серверная сторона ws; запись под мьютексом, авто-ack пишет параллельно тесту.
type peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
	got  chan socket.Frame
}

func (p *peer) send(t *testing.T, v any) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.WriteJSON(v); err != nil {
		t.Errorf("server write: %v", err)
	}
}

func (p *peer) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.Close()
}

const meJSON = `{
	"id": 1, "username": "me", "created": 1700000000000,
	"badges": ["Plus"], "blooks": {"Dog": 5},
	"clan": {"id": "8424028", "name": "Lard", "color": "#fff", "room": 50},
	"friends": [2], "otp": false, "moneySpent": 1.5, "perms": ["chat"]
}`

func userJSON(id int64, name string, clan bool, friends ...int64) string {
	c := "null"
	if clan {
		c = `{"id": 8424028, "name": "Lard", "color": "#fff"}`
	}
	fs, _ := json.Marshal(friends)
	if friends == nil {
		fs = []byte("[]")
	}
	return fmt.Sprintf(`{"id": %d, "username": %q, "badges": [], "blooks": {}, "clan": %s, "friends": %s}`, id, name, c, fs)
}

const clanJSON = `{
	"id": 8424028, "name": "Lard", "description": "full of lard",
	"owner": {"id": 2, "username": "alice"},
	"members": [{"id": 1, "username": "me"}, {"id": 2, "username": "alice"}, {"id": 3, "username": "bob"}],
	"online": 2, "offline": 1
}`

func dataJSON(boosterActive bool, boosterMS int64) string {
	return fmt.Sprintf(`{
	"config": {"name": "Blacket", "version": "2.0"},
	"booster": {"active": %t, "time": %d, "multiplier": 2, "user": {"id": 2}},
	"credits": [{"nickname": "alice", "image": "/a.png", "note": "art", "user": 2}],
	"blooks": {
		"Dog": {"rarity": "Common", "chance": 50, "price": 5, "image": "/dog.png", "art": "/dog-art.png"},
		"Cat": {"rarity": "Common", "chance": 50, "price": 5, "image": "/cat.png", "art": "/cat-art.png", "onlyOnDay": 3}
	},
	"rarities": {"Common": {"color": "#fff", "animation": "common", "exp": 1, "wait": 0}},
	"packs": {"Pet": {"price": 25, "color1": "#000", "color2": "#111", "image": "/pet.png", "blooks": ["Dog", "Cat"]}},
	"banners": {"Default": {"image": "/banner.png"}},
	"badges": {"Plus": {"image": "/plus.png", "description": "plus"}},
	"emojis": {"lard": {"image": "/lard.png"}},
	"weekly_shop": {"Clan Shield": {"price": 90000, "glow": true}}
}`, boosterActive, boosterMS)
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{
		t:      t,
		calls:  map[string]int{},
		bodies: map[string][]string{},
		users: map[string]string{
			"1":     userJSON(meID, "me", true, aliceID),
			"2":     userJSON(aliceID, "alice", true),
			"3":     userJSON(bobID, "bob", false),
			"alice": userJSON(aliceID, "alice", true),
		},
		clans:   map[string]string{idKey(clanID): clanJSON},
		data:    dataJSON(false, 0),
		autoAck: true,
		peers:   make(chan *peer, 4),
	}
	fs.nextID.Store(100)

	mux := http.NewServeMux()
	mux.HandleFunc("/worker2/user/", fs.handleUser)
	mux.HandleFunc("/worker/clans/", fs.handleClan)
	mux.HandleFunc("/data/index.json", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		fs.mu.Lock()
		body := fs.data
		fs.mu.Unlock()
		io.WriteString(w, body)
	})
	mux.HandleFunc("/worker3/open", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		io.WriteString(w, `{"error": false, "blook": "Dog"}`)
	})
	mux.HandleFunc("/worker/login", fs.handleLogin)
	mux.HandleFunc("/worker/socket", fs.handleSocket)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		io.WriteString(w, `{"error": false, "message": "ok"}`)
	})
	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (fs *fakeServer) record(r *http.Request) string {
	b, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path
	fs.mu.Lock()
	fs.calls[key]++
	if len(b) > 0 {
		fs.bodies[key] = append(fs.bodies[key], string(b))
	}
	fs.mu.Unlock()
	return string(b)
}

func (fs *fakeServer) count(key string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.calls[key]
}

func (fs *fakeServer) lastBody(key string) string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	b := fs.bodies[key]
	if len(b) == 0 {
		return ""
	}
	return b[len(b)-1]
}

func (fs *fakeServer) setData(body string) {
	fs.mu.Lock()
	fs.data = body
	fs.mu.Unlock()
}

func (fs *fakeServer) setUser(key, body string) {
	fs.mu.Lock()
	fs.users[key] = body
	fs.mu.Unlock()
}

func (fs *fakeServer) setClan(key, body string) {
	fs.mu.Lock()
	fs.clans[key] = body
	fs.mu.Unlock()
}

func (fs *fakeServer) setAutoAck(on bool) {
	fs.mu.Lock()
	fs.autoAck = on
	fs.mu.Unlock()
}

func (fs *fakeServer) setUserDelay(d time.Duration) {
	fs.mu.Lock()
	fs.userDelay = d
	fs.mu.Unlock()
}

func (fs *fakeServer) handleUser(w http.ResponseWriter, r *http.Request) {
	fs.record(r)
	fs.mu.Lock()
	delay := fs.userDelay
	fs.mu.Unlock()
	time.Sleep(delay)
	if r.Header.Get("Cookie") != "token="+testTok+";" {
		io.WriteString(w, `{"error": true, "reason": "You are not logged in."}`)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/worker2/user/")
	if key == "" {
		fmt.Fprintf(w, `{"error": false, "user": %s}`, meJSON)
		return
	}
	fs.mu.Lock()
	body, ok := fs.users[key]
	fs.mu.Unlock()
	if !ok {
		io.WriteString(w, `{"error": true, "reason": "User not found."}`)
		return
	}
	if strings.HasPrefix(body, `{"error"`) {
		io.WriteString(w, body)
		return
	}
	fmt.Fprintf(w, `{"error": false, "user": %s}`, body)
}

func (fs *fakeServer) handleClan(w http.ResponseWriter, r *http.Request) {
	fs.record(r)
	fs.mu.Lock()
	body, ok := fs.clans[strings.TrimPrefix(r.URL.Path, "/worker/clans/")]
	fs.mu.Unlock()
	if !ok {
		io.WriteString(w, `{"error": true, "reason": "Clan does not exist."}`)
		return
	}
	io.WriteString(w, body)
}

func (fs *fakeServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	body := fs.record(r)
	var req loginPayload
	_ = json.Unmarshal([]byte(body), &req)
	if req.Password != "hunter2" {
		io.WriteString(w, `{"error": true, "reason": "Invalid username or password."}`)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "token", Value: loginTok, Path: "/", HttpOnly: true})
	io.WriteString(w, `{"error": false}`)
}

var upgrader = websocket.Upgrader{}

func (fs *fakeServer) handleSocket(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Cookie"), "token="+testTok) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		fs.t.Errorf("upgrade: %v", err)
		return
	}
	p := &peer{conn: conn, got: make(chan socket.Frame, 16)}
	fs.peers <- p

	for {
		var f socket.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		select {
		case p.got <- f:
		default:
		}
		if f.Event != socket.EventMessageCreate {
			continue
		}
		fs.mu.Lock()
		ack := fs.autoAck
		fs.mu.Unlock()
		if !ack {
			continue
		}
		var send sendPayload
		if err := json.Unmarshal(f.Data, &send); err != nil {
			fs.t.Errorf("bad send payload: %v", err)
			continue
		}
		p.send(fs.t, map[string]any{
			"error":     false,
			"event":     socket.EventMessageAck,
			"customKey": send.CustomKey,
			"data":      messageData(fs.nextID.Add(1), meID, send.Room, "global", send.Content),
		})
	}
}

func (fs *fakeServer) peer(t *testing.T) *peer {
	t.Helper()
	select {
	case p := <-fs.peers:
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("no socket connection")
		return nil
	}
}

func (fs *fakeServer) wsURL() string {
	return "ws" + strings.TrimPrefix(fs.srv.URL, "http") + "/worker/socket"
}

func messageData(id, author, room int64, roomName, content string) map[string]any {
	return map[string]any{
		"message": map[string]any{
			"id": id, "user": author, "room": room, "content": content,
			"mentions": []any{}, "date": 1700000000000,
		},
		"author": map[string]any{"id": author, "username": "someone"},
		"room":   map[string]any{"id": room, "name": roomName},
	}
}

func frame(event string, data any) map[string]any {
	return map[string]any{"error": false, "event": event, "data": data}
}

func newTestClient(t *testing.T, fs *fakeServer, mod func(*Options)) *Client {
	t.Helper()
	opts := Options{
		Token:     testTok,
		BaseURL:   fs.srv.URL,
		SocketURL: fs.wsURL(),
		Logger:    zap.NewNop(),
	}
	if mod != nil {
		mod(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// readyClient: клиент с загруженным профилем, без сокета.
func readyClient(t *testing.T, fs *fakeServer) *Client {
	t.Helper()
	c := newTestClient(t, fs, nil)
	if _, err := c.Users.Init(context.Background()); err != nil {
		t.Fatalf("Users.Init: %v", err)
	}
	return c
}

// connected: клиент после Connect и серверная сторона его сокета.
func connected(t *testing.T, fs *fakeServer, mod func(*Options)) (*Client, *peer) {
	t.Helper()
	c := newTestClient(t, fs, mod)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	return c, fs.peer(t)
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out")
		var zero T
		return zero
	}
}
