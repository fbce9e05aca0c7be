package bot

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"example.com/blacket/pkg/blacket"
)

// сплит с поддержкой кавычек: !user "name with spaces"
var reArg = regexp.MustCompile(`"([^"]*)"|(\S+)`)

// HandleCommand выполняет команду и возвращает текст ответа.
func (b *Bot) HandleCommand(ctx context.Context, text string) (string, error) {
	text = strings.TrimPrefix(strings.TrimSpace(text), b.cfg.Prefix)
	fields := splitArgs(text)
	if len(fields) == 0 {
		return "", nil
	}
	cmd := strings.ToLower(fields[0])
	p := b.cfg.Prefix

	switch cmd {
	case "help":
		return strings.Join([]string{
			p + "help",
			p + "ping",
			p + "user <name|id>",
			p + "clan <id>",
			p + "booster",
			p + "edits <message id>",
			p + "watch add|del <clan id>",
			p + "watch list",
		}, "\n"), nil

	case "ping":
		return "pong", nil

	// ---------- USERS / CLANS ----------
	case "user":
		if len(fields) < 2 {
			return "", fmt.Errorf("usage: %suser <name|id>", p)
		}
		u, err := b.lookupUser(ctx, fields[1])
		if err != nil {
			return "", err
		}
		if u == nil {
			return fmt.Sprintf("user %s not found", fields[1]), nil
		}
		return formatUser(u), nil

	case "clan":
		if len(fields) < 2 {
			return "", fmt.Errorf("usage: %sclan <id>", p)
		}
		id, err := parseID(fields[1])
		if err != nil {
			return "", err
		}
		cl, err := b.c.Clans.Fetch(ctx, id, false)
		if err != nil {
			return "", err
		}
		if cl == nil {
			return fmt.Sprintf("clan %d not found", id), nil
		}
		return formatClan(cl), nil

	// ---------- DATA ----------
	case "booster":
		bst, err := b.c.Data.Booster(ctx, false)
		if err != nil {
			return "", err
		}
		if !bst.Active() {
			return "no booster active", nil
		}
		by := "someone"
		if u := bst.User(); u != nil {
			by = u.Username
		}
		return fmt.Sprintf("x%g booster by %s (%s)", bst.Multiplier, by, bst.Duration), nil

	// ---------- MESSAGES ----------
	case "edits":
		if len(fields) < 2 {
			return "", fmt.Errorf("usage: %sedits <message id>", p)
		}
		id, err := parseID(fields[1])
		if err != nil {
			return "", err
		}
		m := b.c.Messages.Get(id)
		if m == nil {
			return fmt.Sprintf("message %d is not cached", id), nil
		}
		edits := m.Edits()
		if len(edits) == 1 {
			return fmt.Sprintf("message %d was never edited", id), nil
		}
		return fmt.Sprintf("message %d edits: %s", id, strings.Join(edits, " → ")), nil

	// ---------- WATCH ----------
	case "watch":
		if len(fields) < 2 {
			return "", fmt.Errorf("usage: %swatch add|del|list", p)
		}
		return b.watchCommand(ctx, strings.ToLower(fields[1]), fields[2:])

	default:
		return "", fmt.Errorf("unknown command. try %shelp", p)
	}
}

func (b *Bot) watchCommand(ctx context.Context, sub string, args []string) (string, error) {
	p := b.cfg.Prefix
	switch sub {
	case "list":
		ids := b.store.Clans()
		if len(ids) == 0 {
			return "watched: (empty)", nil
		}
		rows := make([]string, 0, len(ids))
		for _, id := range ids {
			if name, n, ok := b.watch.Status(id); ok {
				rows = append(rows, fmt.Sprintf("%s (%d): %d members", name, id, n))
			} else {
				rows = append(rows, fmt.Sprintf("%d: not scanned yet", id))
			}
		}
		return "watched:\n" + strings.Join(rows, "\n"), nil

	case "add":
		if len(args) < 1 {
			return "", fmt.Errorf("usage: %swatch add <clan id>", p)
		}
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		cl, err := b.c.Clans.Fetch(ctx, id, false)
		if err != nil {
			return "", err
		}
		if cl == nil {
			return fmt.Sprintf("clan %d not found", id), nil
		}
		added, err := b.store.Add(id)
		if err != nil {
			return "", err
		}
		if !added {
			return fmt.Sprintf("already watching %s (%d)", cl.Name, id), nil
		}
		// первый снимок без объявлений
		b.watch.diff(cl)
		return fmt.Sprintf("watching %s (%d)", cl.Name, id), nil

	case "del":
		if len(args) < 1 {
			return "", fmt.Errorf("usage: %swatch del <clan id>", p)
		}
		id, err := parseID(args[0])
		if err != nil {
			return "", err
		}
		removed, err := b.store.Remove(id)
		if err != nil {
			return "", err
		}
		if !removed {
			return fmt.Sprintf("clan %d is not watched", id), nil
		}
		b.watch.forget(id)
		return fmt.Sprintf("stopped watching %d", id), nil

	default:
		return "", fmt.Errorf("usage: %swatch add|del|list", p)
	}
}

// lookupUser: по id, если аргумент число, иначе по имени.
func (b *Bot) lookupUser(ctx context.Context, arg string) (*blacket.User, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return b.c.Users.Fetch(ctx, id, false)
	}
	return b.c.Users.FetchByName(ctx, arg, false)
}

func formatUser(u *blacket.User) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d)", u.Username, u.ID)
	if u.Role != "" {
		fmt.Fprintf(&sb, " [%s]", u.Role)
	}
	if cl := u.ClanStub(); cl != nil {
		fmt.Fprintf(&sb, ", clan %s", cl.Name)
	}
	fmt.Fprintf(&sb, ", %d tokens, %d blook kinds, %d friends", u.Tokens, len(u.Blooks()), len(u.FriendIDs()))
	if u.IsBanned() {
		sb.WriteString(", banned")
	} else if u.IsMuted() {
		sb.WriteString(", muted")
	}
	return sb.String()
}

func formatClan(cl *blacket.Clan) string {
	owner := "?"
	if o := cl.Owner(); o != nil {
		owner = o.Username
	}
	return fmt.Sprintf("%s (%d): owner %s, %d members (%d online)",
		cl.Name, cl.ID, owner, len(cl.MemberIDs()), cl.Online)
}

var errBadID = errors.New("id must be a positive number")

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q: %w", s, errBadID)
	}
	return id, nil
}

func splitArgs(s string) []string {
	var out []string
	for _, m := range reArg.FindAllStringSubmatch(s, -1) {
		if m[1] != "" {
			out = append(out, m[1])
		} else {
			out = append(out, m[2])
		}
	}
	return out
}
