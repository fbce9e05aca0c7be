package bot

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"example.com/blacket/internal/fakeblacket"
	"example.com/blacket/pkg/blacket"
	"example.com/blacket/pkg/socket"
)

func TestSplitArgs(t *testing.T) {
	got := splitArgs(`user "big lard" 42`)
	want := []string{"user", "big lard", "42"}
	if len(got) != len(want) {
		t.Fatalf("splitArgs = %q", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("splitArgs = %q, want %q", got, want)
		}
	}
}

func TestWatchStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "watch.json")

	ws := newWatchStore(path)
	if err := ws.Load(); err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("empty file not created: %v", err)
	}
	if added, err := ws.Add(7); err != nil || !added {
		t.Fatalf("Add = %v, %v", added, err)
	}
	if added, _ := ws.Add(7); added {
		t.Error("duplicate add reported as added")
	}
	ws.Add(9)
	if removed, _ := ws.Remove(7); !removed {
		t.Error("Remove(7) = false")
	}

	again := newWatchStore(path)
	if err := again.Load(); err != nil {
		t.Fatal(err)
	}
	if ids := again.Clans(); len(ids) != 1 || ids[0] != 9 {
		t.Errorf("reloaded clans = %v", ids)
	}
}

func TestClanWatchDiff(t *testing.T) {
	srv := fakeblacket.New(t)
	c, _ := srv.Client(t, nil)
	ctx := context.Background()

	srv.SetUser(fakeblacket.User(2, "user2", 0))
	srv.SetUser(fakeblacket.User(3, "user3", 0))
	srv.SetUser(fakeblacket.User(4, "user4", 0))
	srv.SetClan(77, fakeblacket.Clan(77, "Lard", 2, 3))

	ids := []int64{77, 88}
	w := newClanWatch(
		func(ctx context.Context, id int64) (*blacket.Clan, error) { return c.Clans.Fetch(ctx, id, true) },
		func() []int64 { return ids },
		zap.NewNop(),
	)

	var got []string
	notify := func(s string) { got = append(got, s) }

	w.Scan(ctx, notify)
	if len(got) != 0 {
		t.Fatalf("first scan announced %q", got)
	}
	if _, n, ok := w.Status(77); !ok || n != 2 {
		t.Errorf("status = %d, %v", n, ok)
	}
	if _, _, ok := w.Status(88); ok {
		t.Error("missing clan has a snapshot")
	}

	srv.SetClan(77, fakeblacket.Clan(77, "Lard", 2, 4))
	w.Scan(ctx, notify)
	want := []string{"➡ user4 joined Lard", "⬅ user3 left Lard"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("announcements = %q, want %q", got, want)
	}
}

func newBot(t *testing.T, srv *fakeblacket.Server, c *blacket.Client) *Bot {
	t.Helper()
	b, err := New(c, Config{
		Prefix:        "!",
		WatchInterval: time.Hour,
		WatchFile:     filepath.Join(t.TempDir(), "watch.json"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestCommands(t *testing.T) {
	srv := fakeblacket.New(t)
	srv.SetData(fakeblacket.Data(true))
	srv.SetUser(fakeblacket.User(2, "alice", 77))
	srv.SetUser(fakeblacket.User(3, "bob", 77))
	srv.SetClan(77, fakeblacket.Clan(77, "Lard", 2, 3))
	c, peer := srv.Client(t, nil)
	b := newBot(t, srv, c)
	ctx := context.Background()

	got := make(chan *blacket.Message, 1)
	c.OnMessageCreate(func(m *blacket.Message) { got <- m })
	peer.Send(t, fakeblacket.MessageCreate(10, 2, 0, "hi"))
	peer.Send(t, fakeblacket.MessageEdit(10, "hi!"))
	<-got
	deadline := time.Now().Add(3 * time.Second)
	for len(c.Messages.Get(10).Edits()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	cases := []struct {
		in   string
		want string
	}{
		{"!ping", "pong"},
		{"!user alice", "alice (2)"},
		{"!user 3", "bob (3)"},
		{"!user nobody", "user nobody not found"},
		{"!clan 77", "Lard (77): owner alice, 2 members"},
		{"!clan 5", "clan 5 not found"},
		{"!booster", "x2 booster by me"},
		{"!edits 10", "hi → hi!"},
		{"!edits 11", "message 11 is not cached"},
		{"!watch list", "watched: (empty)"},
		{"!watch add 77", "watching Lard (77)"},
		{"!watch add 77", "already watching"},
		{"!watch list", "Lard (77): 2 members"},
		{"!watch del 77", "stopped watching 77"},
		{"!help", "!watch list"},
	}
	for _, tc := range cases {
		reply, err := b.HandleCommand(ctx, tc.in)
		if err != nil {
			t.Errorf("%s: %v", tc.in, err)
			continue
		}
		if !strings.Contains(reply, tc.want) {
			t.Errorf("%s = %q, want it to contain %q", tc.in, reply, tc.want)
		}
	}

	for _, in := range []string{"!nope", "!clan abc", "!user", "!watch"} {
		if _, err := b.HandleCommand(ctx, in); err == nil {
			t.Errorf("%s: expected error", in)
		}
	}
}

// sent ждёт следующий messages-create от клиента и возвращает его текст.
func sent(t *testing.T, peer *fakeblacket.Peer) string {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case f := <-peer.Frames():
			if f.Event != socket.EventMessageCreate {
				continue
			}
			var p struct {
				Content string `json:"content"`
			}
			if err := json.Unmarshal(f.Data, &p); err != nil {
				t.Fatalf("bad send payload: %v", err)
			}
			return p.Content
		case <-timeout:
			t.Fatal("nothing sent")
			return ""
		}
	}
}

func TestBotRepliesInChat(t *testing.T) {
	srv := fakeblacket.New(t)
	srv.SetUser(fakeblacket.User(2, "alice", 0))
	c, peer := srv.Client(t, nil)
	b := newBot(t, srv, c)
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	defer b.Stop()
	if err := b.Start(); err == nil {
		t.Error("second Start succeeded")
	}

	peer.Send(t, fakeblacket.MessageCreate(10, 2, 0, "just chatting"))
	peer.Send(t, fakeblacket.MessageCreate(11, 2, 0, "!ping"))
	if got := sent(t, peer); got != "<@2> pong" {
		t.Errorf("reply = %q", got)
	}

	peer.Send(t, fakeblacket.MessageCreate(12, 2, 0, "!nope"))
	if got := sent(t, peer); !strings.HasPrefix(got, "<@2> err: unknown command") {
		t.Errorf("error reply = %q", got)
	}

	// свои сообщения бот не разбирает
	peer.Send(t, fakeblacket.MessageCreate(13, fakeblacket.MeID, 0, "!ping"))
	peer.Send(t, fakeblacket.MessageCreate(14, 2, 0, "!ping"))
	if got := sent(t, peer); got != "<@2> pong" {
		t.Errorf("reply = %q", got)
	}
}

func TestWatchAnnouncesIntoRoom(t *testing.T) {
	srv := fakeblacket.New(t)
	srv.SetUser(fakeblacket.User(2, "user2", 0))
	srv.SetUser(fakeblacket.User(3, "user3", 0))
	srv.SetClan(77, fakeblacket.Clan(77, "Lard", 2))
	c, peer := srv.Client(t, nil)
	b := newBot(t, srv, c)
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	defer b.Stop()

	ctx := context.Background()
	if _, err := b.HandleCommand(ctx, "!watch add 77"); err != nil {
		t.Fatal(err)
	}
	srv.SetClan(77, fakeblacket.Clan(77, "Lard", 2, 3))
	b.watch.Scan(ctx, b.announce)

	if got := sent(t, peer); got != "➡ user3 joined Lard" {
		t.Errorf("announcement = %q", got)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	srv := fakeblacket.New(t)
	c, _ := srv.Client(t, nil)
	b := newBot(t, srv, c)
	if err := b.Start(); err != nil {
		t.Fatal(err)
	}
	b.Stop()
	b.Stop()
	// после Stop объявления не уходят
	b.announce("late")
}
