package blacket

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"example.com/blacket/internal/sched"
	"example.com/blacket/pkg/rest"
)

func TestNewRequiresToken(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrNoToken) {
		t.Fatalf("err = %v, want ErrNoToken", err)
	}
}

func TestUsersNotReady(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs, nil)

	if _, err := c.Users.Fetch(context.Background(), bobID, false); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Fetch err = %v, want ErrNotReady", err)
	}
	if _, err := c.Users.Me(context.Background(), false); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Me err = %v, want ErrNotReady", err)
	}

	defer func() {
		p := recover()
		err, ok := p.(error)
		if !ok || !errors.Is(err, ErrNotReady) {
			t.Fatalf("panic = %v, want ErrNotReady", p)
		}
		if n := fs.count("GET /worker2/user/3"); n != 0 {
			t.Fatalf("requests before init = %d", n)
		}
	}()
	c.Users.Get(bobID)
}

func TestUsersInitOnce(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)

	me := c.Me()
	if me == nil || me.ID != meID || me.Username != "me" {
		t.Fatalf("me = %+v", me)
	}
	if me.ClanStub() == nil || me.ClanStub().ID != clanID {
		t.Fatalf("clan stub = %+v", me.ClanStub())
	}
	if !me.IsPlus() || me.MoneySpent != 1.5 {
		t.Fatalf("private fields not decoded: %+v", me)
	}
	if c.Users.Get(meID) != &me.User {
		t.Fatalf("own profile is not cached")
	}
	if _, err := c.Users.Init(context.Background()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Init err = %v", err)
	}
}

func TestFetchReturnsCachedInstance(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()

	first, err := c.Users.Fetch(ctx, bobID, false)
	if err != nil || first == nil {
		t.Fatalf("Fetch: %v, %v", first, err)
	}
	second, err := c.Users.Fetch(ctx, bobID, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if first != second {
		t.Fatalf("cached fetch returned a different instance")
	}
	if c.Users.Get(bobID) != first {
		t.Fatalf("Get does not return the cached instance")
	}
	if n := fs.count("GET /worker2/user/3"); n != 1 {
		t.Fatalf("requests = %d, want 1", n)
	}
}

func TestForceFetchReplacesEntry(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()

	old, _ := c.Users.Fetch(ctx, bobID, false)
	fs.setUser("3", userJSON(bobID, "bobby", false))

	fresh, err := c.Users.Fetch(ctx, bobID, true)
	if err != nil {
		t.Fatalf("force Fetch: %v", err)
	}
	if fresh == old {
		t.Fatalf("force fetch kept the old instance")
	}
	if fresh.Username != "bobby" {
		t.Fatalf("username = %q", fresh.Username)
	}
	if c.Users.Get(bobID) != fresh {
		t.Fatalf("store entry was not replaced")
	}
	if n := fs.count("GET /worker2/user/3"); n != 2 {
		t.Fatalf("requests = %d, want 2", n)
	}
}

func TestConcurrentFetchIssuesOneRequestPerID(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	got := make([]*User, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got[i], errs[i] = c.Users.Fetch(ctx, aliceID, false)
		}()
	}
	wg.Wait()

	for i := range callers {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if got[i] != got[0] {
			t.Fatalf("caller %d got a different instance", i)
		}
	}
	alice := got[0]
	if !alice.Resolved() || alice.Clan() == nil {
		t.Fatalf("alice not resolved: clan=%v", alice.Clan())
	}
	for key, want := range map[string]int{
		"GET /worker2/user/2":       1,
		"GET /worker/clans/8424028": 1,
		"GET /worker2/user/3":       1,
		"GET /worker2/user/1":       0,
	} {
		if n := fs.count(key); n != want {
			t.Errorf("%s: %d requests, want %d", key, n, want)
		}
	}
}

func TestFetchSurvivesOtherCallersTimeout(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	fs.setUserDelay(200 * time.Millisecond)

	short, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	first := make(chan error, 1)
	go func() {
		_, err := c.Users.Fetch(short, bobID, false)
		first <- err
	}()
	time.Sleep(10 * time.Millisecond)

	bob, err := c.Users.Fetch(context.Background(), bobID, false)
	if err != nil || bob == nil {
		t.Fatalf("healthy caller: user=%v err=%v", bob, err)
	}
	if err := <-first; !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("short caller: expected deadline exceeded, got %v", err)
	}
	if n := fs.count("GET /worker2/user/3"); n != 1 {
		t.Errorf("GET /worker2/user/3: %d requests, want 1", n)
	}
	if c.Users.Get(bobID) != bob {
		t.Errorf("bob not cached")
	}
}

func TestConcurrentResolveSharesLoads(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()

	raw := &rawUser{ID: 50, Username: "fresh", Clan: &rawClanStub{ID: clanID}, Friends: []flexID{aliceID, bobID}}
	u := c.Users.put(newUser(c, raw), false)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := u.Resolve(ctx); err != nil {
				t.Errorf("Resolve: %v", err)
			}
		}()
	}
	wg.Wait()

	if !u.Resolved() || len(u.Friends()) != 2 || u.Clan() == nil {
		t.Fatalf("resolved=%v friends=%d clan=%v", u.Resolved(), len(u.Friends()), u.Clan())
	}
	for _, key := range []string{"GET /worker2/user/2", "GET /worker2/user/3", "GET /worker/clans/8424028"} {
		if n := fs.count(key); n != 1 {
			t.Errorf("%s: %d requests, want 1", key, n)
		}
	}
}

func TestFetchNotFoundIsAbsent(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()

	u, err := c.Users.Fetch(ctx, 99, false)
	if err != nil || u != nil {
		t.Fatalf("Fetch(99) = %v, %v; want nil, nil", u, err)
	}
	u, err = c.Users.FetchByName(ctx, "nobody", false)
	if err != nil || u != nil {
		t.Fatalf("FetchByName = %v, %v; want nil, nil", u, err)
	}
	cl, err := c.Clans.Fetch(ctx, 5, false)
	if err != nil || cl != nil {
		t.Fatalf("Clans.Fetch(5) = %v, %v; want nil, nil", cl, err)
	}
}

func TestFetchErrorCarriesReason(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	fs.setUser("4", `{"error": true, "reason": "You are being rate limited."}`)

	_, err := c.Users.Fetch(context.Background(), 4, false)
	if !rest.IsReason(err, "You are being rate limited.") {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("error text lost the reason: %v", err)
	}
	if c.Users.Get(4) != nil {
		t.Fatalf("failed fetch must not be cached")
	}
}

func TestFetchByNameSharesStore(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()

	byName, err := c.Users.FetchByName(ctx, "alice", false)
	if err != nil || byName == nil {
		t.Fatalf("FetchByName: %v, %v", byName, err)
	}
	byID, err := c.Users.Fetch(ctx, aliceID, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if byID != byName {
		t.Fatalf("name and id lookups returned different instances")
	}
	if c.Users.GetByName("alice") != byName {
		t.Fatalf("GetByName miss")
	}
	if n := fs.count("GET /worker2/user/2"); n != 0 {
		t.Fatalf("id lookup hit the network %d times", n)
	}
}

func TestClanFetchResolvesOwnerAndMembers(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()

	cl, err := c.Clans.Fetch(ctx, clanID, false)
	if err != nil || cl == nil {
		t.Fatalf("Fetch: %v, %v", cl, err)
	}
	if n := fs.count("GET /worker/clans/8424028"); n != 1 {
		t.Fatalf("clan requests = %d, want 1", n)
	}
	owner := cl.Owner()
	if owner == nil || owner.Username != "alice" || !owner.Resolved() {
		t.Fatalf("owner = %+v", owner)
	}
	members := cl.Members()
	if len(members) != 3 {
		t.Fatalf("members = %d, want 3", len(members))
	}
	for _, m := range members {
		if !m.Resolved() {
			t.Errorf("member %d not resolved", m.ID)
		}
	}
	if !cl.Resolved() || cl.Online != 2 {
		t.Fatalf("clan = %+v", cl)
	}

	// цикл user -> clan -> members -> user возвращает те же экземпляры
	me := c.Users.Get(meID)
	if me.Clan() != cl {
		t.Fatalf("me.Clan() is not the cached clan")
	}
	found := false
	for _, m := range me.Clan().Members() {
		if m == me {
			found = true
		}
	}
	if !found {
		t.Fatalf("clan members do not include the same user instance")
	}

	if _, err := c.Clans.Fetch(ctx, clanID, false); err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if n := fs.count("GET /worker/clans/8424028"); n != 1 {
		t.Fatalf("cached clan refetched: %d", n)
	}
}

func TestAttackOwnClanFailsLocally(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()
	fs.setClan("77", `{"id": 77, "name": "Other", "owner": {"id": 3}, "members": [{"id": 3}]}`)

	own, _ := c.Clans.Fetch(ctx, clanID, false)
	if _, err := own.Attack(ctx); !errors.Is(err, ErrOwnClan) {
		t.Fatalf("err = %v, want ErrOwnClan", err)
	}
	if n := fs.count("POST /worker/use"); n != 0 {
		t.Fatalf("own clan attack sent %d requests", n)
	}

	other, err := c.Clans.Fetch(ctx, 77, false)
	if err != nil || other == nil {
		t.Fatalf("Fetch(77): %v, %v", other, err)
	}
	if _, err := other.Attack(ctx); err != nil {
		t.Fatalf("Attack: %v", err)
	}
	body := fs.lastBody("POST /worker/use")
	if !strings.Contains(body, `"clan":77`) || !strings.Contains(body, fragmentGrenade) {
		t.Fatalf("attack body = %s", body)
	}
}

func TestSellChecksQuantity(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()
	if err := c.Data.Init(ctx); err != nil {
		t.Fatalf("Data.Init: %v", err)
	}
	dog := c.Data.Blook("Dog")

	if err := dog.Sell(ctx, 10, false); !errors.Is(err, ErrNotEnoughBlooks) {
		t.Fatalf("err = %v, want ErrNotEnoughBlooks", err)
	}
	for _, q := range []int64{0, -3} {
		if err := dog.Sell(ctx, q, true); !errors.Is(err, ErrBadQuantity) {
			t.Fatalf("Sell(%d) err = %v, want ErrBadQuantity", q, err)
		}
	}
	if n := fs.count("GET /worker2/user/"); n != 1 {
		t.Fatalf("bad quantity reread the profile: %d requests", n)
	}
	if n := fs.count("POST /worker/sell"); n != 0 {
		t.Fatalf("sell sent %d requests", n)
	}

	if err := dog.Sell(ctx, 2, false); err != nil {
		t.Fatalf("Sell: %v", err)
	}
	if body := fs.lastBody("POST /worker/sell"); !strings.Contains(body, `"quantity":2`) {
		t.Fatalf("sell body = %s", body)
	}
	if n, _ := dog.Quantity(ctx, false); n != 3 {
		t.Fatalf("quantity after sale = %d, want 3", n)
	}
}

func TestDataCatalog(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()

	if c.Data.Item("Clan Shield") == nil {
		t.Fatalf("static items must be available before Init")
	}
	if _, err := c.Data.Booster(ctx, false); !errors.Is(err, ErrNotReady) {
		t.Fatalf("Booster before Init: %v", err)
	}

	if err := c.Data.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := c.Data.Init(ctx); err != nil {
		t.Fatalf("second Init: %v", err)
	}
	if n := fs.count("GET /data/index.json"); n != 1 {
		t.Fatalf("catalog requests = %d, want 1", n)
	}

	if cfg := c.Data.Config(); cfg == nil || cfg.Name != "Blacket" {
		t.Fatalf("config = %+v", cfg)
	}
	blooks := c.Data.Blooks()
	if len(blooks) != 2 || blooks[0].Name != "Cat" || blooks[1].Name != "Dog" {
		t.Fatalf("blooks = %v", blooks)
	}
	dog := c.Data.Blook("Dog")
	if dog.Pack() == nil || dog.Pack().Name != "Pet" || dog.Rarity().Name != "Common" {
		t.Fatalf("dog links: pack=%v rarity=%v", dog.Pack(), dog.Rarity())
	}
	if dog.ImageURL() != fs.srv.URL+"/dog.png" || dog.Emoji() != "[Dog]" {
		t.Fatalf("dog urls: %s %s", dog.ImageURL(), dog.Emoji())
	}
	cat := c.Data.Blook("Cat")
	if !cat.IsDay(time.Wednesday) || cat.IsDay(time.Monday) || !dog.IsDay(time.Monday) {
		t.Fatalf("onlyOnDay not honoured")
	}
	if got := len(c.Data.Rarity("Common").Blooks()); got != 2 {
		t.Fatalf("rarity blooks = %d", got)
	}
	if w := c.Data.WeeklyShopItem("Clan Shield"); w == nil || w.Item() == nil || !w.Glow {
		t.Fatalf("weekly shop = %+v", w)
	}
	credits := c.Data.Credits()
	if len(credits) != 1 || credits[0].UserID != aliceID || credits[0].Image != "/a.png" {
		t.Fatalf("credits = %+v", credits)
	}
	if c.Data.Banner("Default") == nil || c.Data.Badge("Plus") == nil || c.Data.Emoji("lard") == nil {
		t.Fatalf("banner/badge/emoji lookups failed")
	}

	b, err := c.Data.Booster(ctx, false)
	if err != nil || b.Active() {
		t.Fatalf("booster = %+v, %v", b, err)
	}
	if b.User() == nil || b.User().ID != aliceID {
		t.Fatalf("booster user not resolved")
	}
}

func TestPackOpen(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()
	if err := c.Data.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	got, err := c.Data.Pack("Pet").Open(ctx)
	if err != nil || got != c.Data.Blook("Dog") {
		t.Fatalf("Open = %v, %v", got, err)
	}
	if body := fs.lastBody("POST /worker3/open"); body != `{"pack":"Pet"}` {
		t.Fatalf("open body = %s", body)
	}
}

func TestBoosterExpires(t *testing.T) {
	fs := newFakeServer(t)
	fs.setData(dataJSON(true, 60_000))
	clock := sched.NewFake()
	c := newTestClient(t, fs, func(o *Options) { o.Clock = clock })
	ctx := context.Background()
	if err := c.Data.Init(ctx); err != nil {
		t.Fatalf("Init: %v", err)
	}
	b, _ := c.Data.Booster(ctx, false)
	if !b.Active() || b.Duration != time.Minute || b.Multiplier != 2 {
		t.Fatalf("booster = %+v", b)
	}

	clock.Advance(59 * time.Second)
	if !b.Active() {
		t.Fatalf("booster expired early")
	}
	clock.Advance(time.Second)
	if b.Active() {
		t.Fatalf("booster still active after its duration")
	}
}

func TestRoomGetOrCreate(t *testing.T) {
	fs := newFakeServer(t)
	c := newTestClient(t, fs, nil)

	g := c.Rooms.Global()
	if g == nil || g.ID != GlobalRoomID || g.Name != GlobalRoomName {
		t.Fatalf("global room = %+v", g)
	}
	before := len(c.Rooms.Values())

	r1 := c.Rooms.GetOrCreate(7, "lard")
	r2 := c.Rooms.GetOrCreate(7, "renamed")
	if r1 != r2 || r2.Name != "lard" {
		t.Fatalf("get-or-create returned %p %p (%q)", r1, r2, r2.Name)
	}
	if got := len(c.Rooms.Values()); got != before+1 {
		t.Fatalf("rooms = %d, want %d", got, before+1)
	}
	if c.Rooms.Get(8) != nil {
		t.Fatalf("Get must not create")
	}
}

func TestIngestResolvesAuthorAndRoom(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()

	raw := &rawMessage{
		Message: rawMessageData{ID: 10, User: bobID, Room: 9, Content: "hi", Date: 1700000000000},
		Author:  rawAuthor{ID: bobID, Username: "bob"},
		Room:    rawRoom{ID: 9, Name: "trade"},
	}
	msg, err := c.Messages.ingest(ctx, raw)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if msg.Room() != c.Rooms.Get(9) || msg.Room().Name != "trade" {
		t.Fatalf("room = %+v", msg.Room())
	}
	if a := msg.Author(); a == nil || a.ID != bobID || !a.Resolved() {
		t.Fatalf("author = %+v", a)
	}
	if !msg.Resolved() || c.Messages.Get(10) != msg {
		t.Fatalf("message not stored resolved")
	}

	again, _ := c.Messages.ingest(ctx, raw)
	if again != msg {
		t.Fatalf("second ingest created a new instance")
	}
	if n := fs.count("GET /worker2/user/3"); n != 1 {
		t.Fatalf("author requests = %d", n)
	}
}

func TestMessageEditHistory(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	msg, err := c.Messages.ingest(context.Background(), &rawMessage{
		Message: rawMessageData{ID: 11, User: meID, Content: "v0"},
		Room:    rawRoom{ID: 0, Name: "global"},
	})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if msg.Author() != &c.Me().User {
		t.Fatalf("author falls back to message.user")
	}

	const k = 3
	for i := 1; i <= k; i++ {
		msg.applyEdit(strings.Repeat("v", i))
	}
	edits := msg.Edits()
	if len(edits) != k+1 || edits[0] != "v0" {
		t.Fatalf("edits = %q", edits)
	}
	if msg.CurrentEdit() != k || msg.Content() != edits[k] || !msg.Edited() {
		t.Fatalf("cursor = %d, content = %q", msg.CurrentEdit(), msg.Content())
	}
}

func TestMessageRestActions(t *testing.T) {
	fs := newFakeServer(t)
	c := readyClient(t, fs)
	ctx := context.Background()
	msg, _ := c.Messages.ingest(ctx, &rawMessage{Message: rawMessageData{ID: 12, User: meID, Content: "x"}})

	if err := msg.Edit(ctx, "y"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if body := fs.lastBody("POST /worker/messages/12/edit"); body != `{"content":"y"}` {
		t.Fatalf("edit body = %s", body)
	}
	if err := msg.Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := fs.count("POST /worker/messages/12/delete"); n != 1 {
		t.Fatalf("delete requests = %d", n)
	}
	// состояние меняется только по событиям сокета
	if msg.Content() != "x" || msg.Deleted() {
		t.Fatalf("REST call changed local state")
	}
}

func TestLogin(t *testing.T) {
	fs := newFakeServer(t)
	ctx := context.Background()

	tok, err := Login{BaseURL: fs.srv.URL, Username: "me", Password: "hunter2", OTP: "123456"}.Token(ctx)
	if err != nil || tok != loginTok {
		t.Fatalf("Token = %q, %v", tok, err)
	}
	if body := fs.lastBody("POST /worker/login"); !strings.Contains(body, `"code":"123456"`) {
		t.Fatalf("login body = %s", body)
	}

	_, err = Login{BaseURL: fs.srv.URL, Username: "me", Password: "nope"}.Token(ctx)
	if !rest.IsReason(err, "Invalid username or password.") {
		t.Fatalf("err = %v", err)
	}
}
