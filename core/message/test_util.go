package message

import (
	"context"

	pkgerrors "github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

// serviceMock sends mails synchronously so tests can assert on them.
type serviceMock struct {
	service
}

func NewServiceMock(repo Repository, usrSvc user.Service, mailSvc core.EmailService) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			usrSvc:  usrSvc,
			mailSvc: mailSvc,
		},
	}
}

func (svc *serviceMock) Send(ctx context.Context, sender user.User, nm NewMessage) (Message, error) {
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
	// run synchronously
	svc.sendNoticeMail(sender, msg, rcpt)
	return msg, nil
}

func (svc *serviceMock) BroadcastToRole(ctx context.Context, sender user.User, role string, b Broadcast) (int, error) {
	active := true
	users, err := svc.usrSvc.Filter(ctx, &user.QueryFilter{Role: role, IsActive: &active})
	if err != nil {
		return 0, err
	}
	if len(users) == 0 {
		return 0, ErrNoRecipients
	}
	// run synchronously
	svc.mailSvc.SendMessages(broadcastMail(sender, users, b))
	return len(users), nil
}
