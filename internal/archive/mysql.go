package archive

import (
	"database/sql"

	_ "github.com/go-sql-driver/mysql"
)

var mysqlDialect = dialect{
	name: "mysql",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id BIGINT PRIMARY KEY,
			room BIGINT NOT NULL,
			room_name VARCHAR(255) NOT NULL DEFAULT '',
			author BIGINT NOT NULL,
			original TEXT NOT NULL,
			content TEXT NOT NULL,
			sent_at BIGINT NOT NULL,
			edited BOOLEAN NOT NULL DEFAULT FALSE,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			INDEX idx_messages_room (room, sent_at)
		) DEFAULT CHARSET = utf8mb4`,
		`CREATE TABLE IF NOT EXISTS message_edits (
			seq BIGINT AUTO_INCREMENT PRIMARY KEY,
			message_id BIGINT NOT NULL,
			content TEXT NOT NULL,
			edited_at BIGINT NOT NULL,
			INDEX idx_message_edits_message (message_id)
		) DEFAULT CHARSET = utf8mb4`,
	},
	insertIgnore: `INSERT IGNORE INTO messages
		(id, room, room_name, author, original, content, sent_at, edited, deleted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
}

// NewMySQL открывает архив в MySQL; dsn в формате go-sql-driver/mysql.
func NewMySQL(dsn string) (Store, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	return newSQLStore(db, mysqlDialect)
}
