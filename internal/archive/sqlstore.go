package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"time"
)

// dialect: то, чем SQLite и MySQL отличаются для наших двух таблиц.
type dialect struct {
	name   string
	schema []string
	// insertIgnore: INSERT, молча пропускающий существующий id.
	insertIgnore string
}

// sqlStore: Store поверх database/sql.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func newSQLStore(db *sql.DB, d dialect) (*sqlStore, error) {
	s := &sqlStore{db: db, d: d}
	if err := s.initDB(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *sqlStore) initDB() error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%s schema: %w", s.d.name, err)
		}
	}
	return nil
}

func (s *sqlStore) SaveMessage(ctx context.Context, r *Record) error {
	original := r.Original
	if original == "" {
		original = r.Content
	}
	_, err := s.db.ExecContext(ctx, s.d.insertIgnore,
		r.ID, r.Room, r.RoomName, r.Author, original, r.Content,
		r.Date.UnixMilli(), r.Edited, r.Deleted,
	)
	if err != nil {
		return fmt.Errorf("save message %d: %w", r.ID, err)
	}
	return nil
}

func (s *sqlStore) AppendEdit(ctx context.Context, id int64, content string, at time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE messages SET content = ?, edited = ? WHERE id = ?`, content, true, id)
	if err != nil {
		return fmt.Errorf("edit message %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM messages WHERE id = ?`, id).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO message_edits (message_id, content, edited_at) VALUES (?, ?, ?)`,
		id, content, at.UnixMilli(),
	); err != nil {
		return fmt.Errorf("edit message %d: %w", id, err)
	}
	return tx.Commit()
}

func (s *sqlStore) MarkDeleted(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE messages SET deleted = ? WHERE id = ?`, true, id)
	if err != nil {
		return fmt.Errorf("delete message %d: %w", id, err)
	}
	// MySQL не считает строку затронутой, если deleted уже стоял
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := s.Message(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

const selectMessage = `SELECT id, room, room_name, author, original, content, sent_at, edited, deleted FROM messages`

func scanRecord(row interface{ Scan(...any) error }) (*Record, error) {
	var (
		r    Record
		date int64
	)
	if err := row.Scan(&r.ID, &r.Room, &r.RoomName, &r.Author, &r.Original, &r.Content,
		&date, &r.Edited, &r.Deleted); err != nil {
		return nil, err
	}
	r.Date = time.UnixMilli(date)
	return &r, nil
}

func (s *sqlStore) Message(ctx context.Context, id int64) (*Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectMessage+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("message %d: %w", id, err)
	}
	return r, nil
}

func (s *sqlStore) History(ctx context.Context, id int64) ([]string, error) {
	r, err := s.Message(ctx, id)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM message_edits WHERE message_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("history %d: %w", id, err)
	}
	defer rows.Close()

	history := []string{r.Original}
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, err
		}
		history = append(history, content)
	}
	return history, rows.Err()
}

func (s *sqlStore) RecentMessages(ctx context.Context, room int64, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		selectMessage+` WHERE room = ? ORDER BY sent_at DESC, id DESC LIMIT ?`, room, limit)
	if err != nil {
		return nil, fmt.Errorf("recent messages %d: %w", room, err)
	}
	defer rows.Close()

	var list []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(list)
	return list, nil
}

func (s *sqlStore) Close() error { return s.db.Close() }
