package repositories

import (
	"context"

	"github.com/jmoiron/sqlx"

	"dm-service/internal/models"
)

// MessageRepository defines the persistence collaborator for direct messages.
type MessageRepository interface {
	// Record stores one acknowledged message. Re-recording the same
	// (sender, recipient, sent_at) identity is a no-op, so client retries
	// cannot duplicate rows.
	Record(ctx context.Context, msg models.Message) error
	// HistoryPage returns up to limit messages of the conversation strictly
	// older than before (newest page when before is zero), in chronological
	// order.
	HistoryPage(ctx context.Context, localID, peerID, limit int, before int64) ([]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Record upserts a message by identity, ignoring duplicates.
func (r *MessageRepo) Record(ctx context.Context, msg models.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO messages (sender_id, recipient_id, body, attachment_url, sent_at)
         VALUES ($1, $2, $3, $4, $5)
         ON CONFLICT (sender_id, recipient_id, sent_at) DO NOTHING`,
		msg.SenderID, msg.RecipientID, msg.Body, msg.AttachmentURL, msg.SentAt)
	return err
}

// HistoryPage pages the conversation backwards from the cursor.
func (r *MessageRepo) HistoryPage(ctx context.Context, localID, peerID, limit int, before int64) ([]models.Message, error) {
	query := `SELECT sender_id, recipient_id, body, attachment_url, sent_at FROM messages
        WHERE ((sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1))`
	args := []interface{}{localID, peerID}
	if before > 0 {
		query += ` AND sent_at < $3 ORDER BY sent_at DESC LIMIT $4`
		args = append(args, before, limit)
	} else {
		query += ` ORDER BY sent_at DESC LIMIT $3`
		args = append(args, limit)
	}

	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, err
	}
	// Newest-first from the index, chronological for the caller.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
