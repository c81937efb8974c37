package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/message"
)

const messageColumns = `id, sender_id, recipient_id, subject, content, created_at`

type messageRepository struct {
	db *sqlx.DB
}

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *sqlx.DB) *messageRepository {
	return &messageRepository{db: db}
}

func (repo messageRepository) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	msg.ID = uuid.New().String()
	q := `INSERT INTO message (` + messageColumns + `)
VALUES (:id, :sender_id, :recipient_id, :subject, :content, :created_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, msg); err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo messageRepository) GetMessageByID(ctx context.Context, id string) (message.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return message.Message{}, message.ErrNotFound
	}
	var msg message.Message
	q := `SELECT ` + messageColumns + ` FROM message WHERE id = $1`
	if err := repo.db.GetContext(ctx, &msg, q, id); err != nil {
		if err == sql.ErrNoRows {
			return message.Message{}, message.ErrNotFound
		}
		return message.Message{}, errors.Wrap(err, "finding message")
	}
	return msg, nil
}

func (repo messageRepository) QueryMessagesByRecipient(ctx context.Context, userID string) ([]message.Message, error) {
	return repo.query(ctx, `recipient_id = $1`, userID)
}

func (repo messageRepository) QueryMessagesBySender(ctx context.Context, userID string) ([]message.Message, error) {
	return repo.query(ctx, `sender_id = $1`, userID)
}

func (repo messageRepository) query(ctx context.Context, where string, args ...interface{}) ([]message.Message, error) {
	msgs := make([]message.Message, 0)
	q := `SELECT ` + messageColumns + ` FROM message WHERE ` + where + ` ORDER BY created_at DESC`
	if err := repo.db.SelectContext(ctx, &msgs, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying messages")
	}
	return msgs, nil
}
