package message

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/darasahq/darasa/core"
)

type Message struct {
	ID          string    `json:"id" db:"id"`
	SenderID    string    `json:"sender_id" db:"sender_id"`
	RecipientID string    `json:"recipient_id" db:"recipient_id"`
	Subject     string    `json:"subject" db:"subject"`
	Content     string    `json:"content" db:"content"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
}

// NewMessage contains information needed to send a Message.
// SenderID comes from the authenticated user, never from the request body.
type NewMessage struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Subject     string `json:"subject" validate:"required"`
	Content     string `json:"content" validate:"required"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.RecipientID = core.CleanString(nm.RecipientID)
	nm.Subject = core.CleanString(nm.Subject)
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}

// Broadcast is a one-to-many email notice; recipients are all accounts of the target role.
type Broadcast struct {
	Subject string `json:"subject" validate:"required"`
	Content string `json:"content" validate:"required"`
}

func (b *Broadcast) Validate(validate *validator.Validate) error {
	b.Subject = core.CleanString(b.Subject)
	b.Content = core.CleanString(b.Content)
	return validate.Struct(b)
}
