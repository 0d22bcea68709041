package archive

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"dm-service/internal/models"
)

var migrations = []string{
	`
CREATE TABLE IF NOT EXISTS messages (
  sender_id      INTEGER NOT NULL,
  recipient_id   INTEGER NOT NULL,
  body           TEXT NOT NULL,
  attachment_url TEXT NOT NULL DEFAULT '',
  sent_at        INTEGER NOT NULL,
  PRIMARY KEY (sender_id, sent_at)
);`,
	`CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages (recipient_id, sent_at);`,
}

// Archive is a local SQLite copy of messages this client has sent or
// received, for offline review. Writes are idempotent on the message
// identity, so re-recording after a retry or reconnect is harmless.
type Archive struct {
	db *sql.DB
}

// Open creates or opens the archive database and applies migrations.
func Open(path string) (*Archive, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate archive: %w", err)
		}
	}
	return &Archive{db: db}, nil
}

// Save stores one message, ignoring a record already archived under the
// same identity.
func (a *Archive) Save(msg models.Message) error {
	if msg.Body == "" {
		return fmt.Errorf("body is required")
	}
	if msg.SentAt == 0 {
		return fmt.Errorf("sent_at is required")
	}
	_, err := a.db.Exec(
		`INSERT INTO messages (sender_id, recipient_id, body, attachment_url, sent_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (sender_id, sent_at) DO NOTHING`,
		msg.SenderID, msg.RecipientID, msg.Body, msg.AttachmentURL, msg.SentAt,
	)
	return err
}

// Recent returns up to limit of the newest archived messages between the two
// users, in chronological order.
func (a *Archive) Recent(localID, peerID, limit int) ([]models.Message, error) {
	rows, err := a.db.Query(
		`SELECT sender_id, recipient_id, body, attachment_url, sent_at FROM messages
         WHERE (sender_id = ? AND recipient_id = ?) OR (sender_id = ? AND recipient_id = ?)
         ORDER BY sent_at DESC LIMIT ?`,
		localID, peerID, peerID, localID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.SenderID, &m.RecipientID, &m.Body, &m.AttachmentURL, &m.SentAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}
