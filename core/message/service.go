package message

import (
	"context"
	"errors"
	"net/mail"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound          = errors.New("message not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrNoRecipients      = errors.New("no accounts to notify")
)

const newMessageSubject = "New message"

type (
	Repository interface {
		CreateMessage(ctx context.Context, msg Message) (Message, error)
		GetMessageByID(ctx context.Context, id string) (Message, error)
		// QueryMessagesByRecipient and QueryMessagesBySender return messages newest first.
		QueryMessagesByRecipient(ctx context.Context, userID string) ([]Message, error)
		QueryMessagesBySender(ctx context.Context, userID string) ([]Message, error)
	}

	Service interface {
		Send(ctx context.Context, sender user.User, nm NewMessage) (Message, error)
		Inbox(ctx context.Context, userID string) ([]Message, error)
		Sent(ctx context.Context, userID string) ([]Message, error)
		// BroadcastToRole emails every active account of the given role in a single BCC batch.
		BroadcastToRole(ctx context.Context, sender user.User, role string, b Broadcast) (int, error)
	}

	service struct {
		repo    Repository
		usrSvc  user.Service
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, usrSvc user.Service, mailSvc core.EmailService) Service {
	return &service{
		repo:    repo,
		usrSvc:  usrSvc,
		mailSvc: mailSvc,
	}
}

// Send stores the message and emails the recipient a copy.
func (svc *service) Send(ctx context.Context, sender user.User, nm NewMessage) (Message, error) {
	rcpt, err := svc.usrSvc.GetByID(ctx, nm.RecipientID)
	if err != nil {
		if pkgerrors.Cause(err) == user.ErrNotFound {
			return Message{}, ErrRecipientNotFound
		}
		return Message{}, err
	}

	msg := Message{
		SenderID:    sender.ID,
		RecipientID: rcpt.ID,
		Subject:     nm.Subject,
		Content:     nm.Content,
		CreatedAt:   NowFunc().UTC(),
	}
	msg, err = svc.repo.CreateMessage(ctx, msg)
	if err != nil {
		return Message{}, err
	}

	go svc.sendNoticeMail(sender, msg, rcpt)
	return msg, nil
}

func (svc *service) sendNoticeMail(sender user.User, msg Message, rcpt user.User) {
	m := &core.EmailMessage{
		To:           []mail.Address{{Name: rcpt.FullName(), Address: rcpt.Email}},
		Subject:      newMessageSubject,
		TemplateName: "new-message",
		TemplateData: struct {
			Name    string
			Sender  string
			Subject string
			Content string
		}{rcpt.Name, sender.FullName(), msg.Subject, msg.Content},
	}
	svc.mailSvc.SendMessages(m)
}

func (svc *service) Inbox(ctx context.Context, userID string) ([]Message, error) {
	return svc.repo.QueryMessagesByRecipient(ctx, userID)
}

func (svc *service) Sent(ctx context.Context, userID string) ([]Message, error) {
	return svc.repo.QueryMessagesBySender(ctx, userID)
}

// BroadcastToRole returns the number of accounts notified.
func (svc *service) BroadcastToRole(ctx context.Context, sender user.User, role string, b Broadcast) (int, error) {
	active := true
	users, err := svc.usrSvc.Filter(ctx, &user.QueryFilter{Role: role, IsActive: &active})
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, ErrNoRecipients
	}

	go svc.mailSvc.SendMessages(broadcastMail(sender, users, b))
	return len(users), nil
}

func broadcastMail(sender user.User, users []user.User, b Broadcast) *core.EmailMessage {
	bcc := make([]mail.Address, 0, len(users))
	for _, usr := range users {
		bcc = append(bcc, mail.Address{Name: usr.FullName(), Address: usr.Email})
	}
	return &core.EmailMessage{
		Bcc:          bcc,
		Subject:      b.Subject,
		TemplateName: "broadcast",
		TemplateData: struct {
			Sender  string
			Content string
		}{sender.FullName(), b.Content},
	}
}

