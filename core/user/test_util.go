package user

import (
	"context"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/otp"
)

// serviceMock sends mails synchronously so tests can assert on them.
type serviceMock struct {
	service
}

func NewServiceMock(repo Repository, otpSvc otp.Service, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			otpSvc:  otpSvc,
			mailSvc: mailSvc,
			conf:    conf,
		},
	}
}

func (svc *serviceMock) Register(ctx context.Context, nu NewUser) (User, error) {
	usr, err := svc.Create(ctx, nu)
	if err != nil {
		return User{}, err
	}
	cred, err := svc.otpSvc.Issue(ctx, usr.Email, usr.Role)
	if err != nil {
		return User{}, err
	}
	// run synchronously
	svc.sendVerificationMail(usr, cred)
	return usr, nil
}

func (svc *serviceMock) VerifyEmail(ctx context.Context, email, code string) (User, error) {
	cred, err := svc.otpSvc.Verify(ctx, email, code)
	if err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUserByEmail(ctx, cred.Email)
	if err != nil {
		return User{}, err
	}
	if !usr.IsVerified {
		usr.IsVerified = true
		usr.UpdatedAt = NowFunc().UTC()
		if usr, err = svc.repo.UpdateUser(ctx, usr, nil); err != nil {
			return User{}, err
		}
		// run synchronously
		svc.sendVerifiedMail(usr)
	}
	return usr, nil
}

func (svc *serviceMock) ResendOTP(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.IsVerified {
		return ErrAlreadyVerified
	}
	cred, err := svc.otpSvc.Issue(ctx, usr.Email, usr.Role)
	if err != nil {
		return err
	}
	// run synchronously
	svc.sendVerificationMail(usr, cred)
	return nil
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	now := NowFunc().UTC()
	usr.ResetToken = newResetToken()
	usr.ResetLinkSent = true
	usr.ResetExpiresAt = now.Add(svc.conf.PasswordResetTimeoutDelta)
	usr.UpdatedAt = now
	if usr, err = svc.repo.UpdateUser(ctx, usr, nil); err != nil {
		return err
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
