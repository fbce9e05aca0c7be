// Package fakeblacket поднимает поддельный сервер Blacket (REST и сокет)
// для тестов пакетов поверх клиента.
package fakeblacket

import (
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

	"example.com/blacket/pkg/blacket"
	"example.com/blacket/pkg/socket"
)

const (
	Token  = "fake-token"
	MeID   = 1
	MeName = "me"
)

// Server: REST и сокет в одном httptest-сервере. Неизвестные пользователи
// и кланы отвечают "not found".
type Server struct {
	t   testing.TB
	srv *httptest.Server

	mu    sync.Mutex
	calls map[string]int
	users map[string]string
	clans map[string]string
	data  string

	nextID atomic.Int64
	peers  chan *Peer
}

// Peer: серверная сторона одного ws-соединения.
type Peer struct {
	conn *websocket.Conn
	mu   sync.Mutex
	got  chan socket.Frame
}

func (p *Peer) Send(t testing.TB, v any) {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.conn.WriteJSON(v); err != nil {
		t.Errorf("fakeblacket: write: %v", err)
	}
}

// Frames: кадры, присланные клиентом.
func (p *Peer) Frames() <-chan socket.Frame { return p.got }

func (p *Peer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	_ = p.conn.Close()
}

func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		t:     t,
		calls: map[string]int{},
		users: map[string]string{},
		clans: map[string]string{},
		data:  Data(false),
		peers: make(chan *Peer, 4),
	}
	s.nextID.Store(1000)
	s.SetUser(User(MeID, MeName, 0))

	mux := http.NewServeMux()
	mux.HandleFunc("/worker2/user/", s.handleUser)
	mux.HandleFunc("/worker/clans/", s.handleClan)
	mux.HandleFunc("/data/index.json", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		s.mu.Lock()
		body := s.data
		s.mu.Unlock()
		io.WriteString(w, body)
	})
	mux.HandleFunc("/worker/socket", s.handleSocket)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		io.WriteString(w, `{"error": false}`)
	})
	s.srv = httptest.NewServer(mux)
	t.Cleanup(s.srv.Close)
	return s
}

func (s *Server) URL() string { return s.srv.URL }

func (s *Server) SocketURL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/worker/socket"
}

// Options: настройки клиента, смотрящего на этот сервер.
func (s *Server) Options() blacket.Options {
	return blacket.Options{
		Token:     Token,
		BaseURL:   s.URL(),
		SocketURL: s.SocketURL(),
		Logger:    zap.NewNop(),
	}
}

// Client: клиент после Connect и серверная сторона его сокета.
func (s *Server) Client(t testing.TB, mod func(*blacket.Options)) (*blacket.Client, *Peer) {
	t.Helper()
	opts := s.Options()
	if mod != nil {
		mod(&opts)
	}
	c, err := blacket.New(opts)
	if err != nil {
		t.Fatalf("fakeblacket: New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	ctx, cancel := contextWithTimeout()
	defer cancel()
	if err := c.Connect(ctx); err != nil {
		t.Fatalf("fakeblacket: Connect: %v", err)
	}
	return c, s.Peer(t)
}

// Peer ждёт следующего ws-подключения.
func (s *Server) Peer(t testing.TB) *Peer {
	t.Helper()
	select {
	case p := <-s.peers:
		return p
	case <-time.After(2 * time.Second):
		t.Fatalf("fakeblacket: no socket connection")
		return nil
	}
}

// SetUser регистрирует пользователя по id и по имени.
func (s *Server) SetUser(body string) {
	var head struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal([]byte(body), &head); err != nil {
		s.t.Fatalf("fakeblacket: bad user json: %v", err)
	}
	s.mu.Lock()
	s.users[fmt.Sprint(head.ID)] = body
	s.users[head.Username] = body
	s.mu.Unlock()
}

func (s *Server) SetClan(id int64, body string) {
	s.mu.Lock()
	s.clans[fmt.Sprint(id)] = body
	s.mu.Unlock()
}

func (s *Server) SetData(body string) {
	s.mu.Lock()
	s.data = body
	s.mu.Unlock()
}

// Calls: сколько раз дёрнули "METHOD /path".
func (s *Server) Calls(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[key]
}

func (s *Server) record(r *http.Request) {
	_, _ = io.Copy(io.Discard, r.Body)
	s.mu.Lock()
	s.calls[r.Method+" "+r.URL.Path]++
	s.mu.Unlock()
}

func (s *Server) authorized(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Cookie"), "token="+Token)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	if !s.authorized(r) {
		io.WriteString(w, `{"error": true, "reason": "You are not logged in."}`)
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/worker2/user/")
	if key == "" {
		key = fmt.Sprint(MeID)
	}
	s.mu.Lock()
	body, ok := s.users[key]
	s.mu.Unlock()
	if !ok {
		io.WriteString(w, `{"error": true, "reason": "User not found."}`)
		return
	}
	fmt.Fprintf(w, `{"error": false, "user": %s}`, body)
}

func (s *Server) handleClan(w http.ResponseWriter, r *http.Request) {
	s.record(r)
	s.mu.Lock()
	body, ok := s.clans[strings.TrimPrefix(r.URL.Path, "/worker/clans/")]
	s.mu.Unlock()
	if !ok {
		io.WriteString(w, `{"error": true, "reason": "Clan does not exist."}`)
		return
	}
	io.WriteString(w, body)
}

var upgrader = websocket.Upgrader{}

// handleSocket подтверждает каждый messages-create эхом messages-ack.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.t.Errorf("fakeblacket: upgrade: %v", err)
		return
	}
	p := &Peer{conn: conn, got: make(chan socket.Frame, 64)}
	s.peers <- p

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
		var send struct {
			Room      int64  `json:"room"`
			Content   string `json:"content"`
			CustomKey string `json:"customKey"`
		}
		if err := json.Unmarshal(f.Data, &send); err != nil {
			continue
		}
		p.Send(s.t, map[string]any{
			"error":     false,
			"event":     socket.EventMessageAck,
			"customKey": send.CustomKey,
			"data":      MessageData(s.nextID.Add(1), MeID, send.Room, "global", send.Content),
		})
	}
}
