package archive

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

var sqliteDialect = dialect{
	name: "sqlite3",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY,
			room INTEGER NOT NULL,
			room_name TEXT NOT NULL DEFAULT '',
			author INTEGER NOT NULL,
			original TEXT NOT NULL,
			content TEXT NOT NULL,
			sent_at INTEGER NOT NULL,
			edited BOOLEAN NOT NULL DEFAULT 0,
			deleted BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room, sent_at DESC)`,
		`CREATE TABLE IF NOT EXISTS message_edits (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id INTEGER NOT NULL REFERENCES messages(id),
			content TEXT NOT NULL,
			edited_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_edits_message ON message_edits(message_id)`,
	},
	insertIgnore: `INSERT OR IGNORE INTO messages
		(id, room, room_name, author, original, content, sent_at, edited, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
}

// NewSQLite открывает архив в файле SQLite.
func NewSQLite(path string) (Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// один писатель: иначе "database is locked" на параллельных транзакциях
	db.SetMaxOpenConns(1)
	return newSQLStore(db, sqliteDialect)
}
