package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/otp"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound        = errors.New("user not found")
	ErrEmailExists     = errors.New("a user with this email already exists")
	ErrUsernameExists  = errors.New("a user with this username already exists")
	ErrAlreadyVerified = errors.New("this account has already been verified")
	ErrNotVerified     = errors.New("this account has not been verified yet")
	ErrLinkExpired     = errors.New("this password reset link has expired")
	ErrInvalidPassword = errors.New("invalid password")
)

const (
	verificationSubject  = "Verify your email address"
	verifiedSubject      = "Your account is verified"
	passwordResetSubject = "Password reset"
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		QueryAllUsers(ctx context.Context) ([]User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByUsername(ctx context.Context, username string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Name, Surname, Username or Email.
		FilterUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User, isActive *bool) (User, error)
		SetUserLastLogin(ctx context.Context, id string, t time.Time) error
		DeleteUsersByID(ctx context.Context, ids ...string) error
	}

	Service interface {
		CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error
		Register(ctx context.Context, nu NewUser) (User, error)
		VerifyEmail(ctx context.Context, email, code string) (User, error)
		ResendOTP(ctx context.Context, email string) error
		RequestPasswordReset(ctx context.Context, email string) error
		ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error)
		ChangePassword(ctx context.Context, id string, cp ChangePassword) (User, error)
		Create(ctx context.Context, nu NewUser) (User, error)
		QueryAll(ctx context.Context) ([]User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		GetByUsernameOrEmail(ctx context.Context, uname string) (User, error)
		Filter(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		Update(ctx context.Context, id string, uu UpdateUser) (User, error)
		SetLastLogin(ctx context.Context, usr User) error
		SetProfilePicture(ctx context.Context, id, path string) (User, error)
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo    Repository
		otpSvc  otp.Service
		mailSvc core.EmailService
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, otpSvc otp.Service, mailSvc core.EmailService, conf *core.Config) Service {
	return &service{
		repo:    repo,
		otpSvc:  otpSvc,
		mailSvc: mailSvc,
		conf:    conf,
	}
}

func (svc *service) CheckUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates an unverified account and emails it a one-time verification code.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	usr, err := svc.Create(ctx, nu)
	if err != nil {
		return User{}, err
	}

	cred, err := svc.otpSvc.Issue(ctx, usr.Email, usr.Role)
	if err != nil {
		return User{}, err
	}

	go svc.sendVerificationMail(usr, cred)
	return usr, nil
}

// VerifyEmail consumes the one-time code and flips the account to verified.
func (svc *service) VerifyEmail(ctx context.Context, email, code string) (User, error) {
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
		go svc.sendVerifiedMail(usr)
	}
	return usr, nil
}

// ResendOTP issues a fresh code for an account that has not verified yet.
func (svc *service) ResendOTP(ctx context.Context, email string) error {
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
	go svc.sendVerificationMail(usr, cred)
	return nil
}

// RequestPasswordReset stores a single-use reset token on the account and mails the reset link.
// A new request overwrites any outstanding token.
func (svc *service) RequestPasswordReset(ctx context.Context, email string) error {
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

	go svc.sendPasswordResetMail(usr)
	return nil
}

// ResetPassword consumes the reset token and sets the new password.
func (svc *service) ResetPassword(ctx context.Context, rp ResetUserPassword) (User, error) {
	usr, err := svc.GetByEmail(ctx, rp.Email)
	if err != nil {
		return User{}, err
	}
	if usr.ResetToken == "" || usr.ResetToken != rp.Token {
		return User{}, ErrNotFound
	}
	if !usr.ResetLinkSent || !NowFunc().Before(usr.ResetExpiresAt) {
		return User{}, ErrLinkExpired
	}

	if err := usr.SetPassword(rp.Password); err != nil {
		return User{}, err
	}
	usr.ResetToken = ""
	usr.ResetLinkSent = false
	usr.ResetExpiresAt = time.Time{}
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

// ChangePassword sets a new password after checking the current one.
func (svc *service) ChangePassword(ctx context.Context, id string, cp ChangePassword) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return User{}, core.NewValidationError(ErrInvalidPassword, core.FieldError{
			Field: "old_password", Error: ErrInvalidPassword.Error(),
		})
	}

	if err := usr.SetPassword(cp.Password); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

func (svc *service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Name:          nu.Name,
		Surname:       nu.Surname,
		Username:      nu.Username,
		Email:         nu.Email,
		Role:          nu.Role,
		Subject:       nu.Subject,
		Qualification: nu.Qualification,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *service) QueryAll(ctx context.Context) ([]User, error) {
	return svc.repo.QueryAllUsers(ctx)
}

func (svc *service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsername(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

func (svc *service) Filter(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	if filter == nil || filter.IsEmpty() {
		return svc.repo.QueryAllUsers(ctx)
	}
	return svc.repo.FilterUsers(ctx, *filter, ordering...)
}

func (svc *service) Update(ctx context.Context, id string, uu UpdateUser) (User, error) {
	usr := User{
		ID:            id,
		Name:          uu.Name,
		Surname:       uu.Surname,
		Username:      uu.Username,
		Email:         uu.Email,
		Subject:       uu.Subject,
		Qualification: uu.Qualification,
		UpdatedAt:     NowFunc().UTC(),
	}
	return svc.repo.UpdateUser(ctx, usr, uu.IsActive)
}

func (svc *service) SetLastLogin(ctx context.Context, usr User) error {
	return svc.repo.SetUserLastLogin(ctx, usr.ID, NowFunc().UTC())
}

func (svc *service) SetProfilePicture(ctx context.Context, id, path string) (User, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	usr.ProfilePicture = path
	usr.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr, nil)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteUsersByID(ctx, ids...)
}

// Mails

func (svc *service) sendVerificationMail(usr User, cred otp.Credential) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      verificationSubject,
		TemplateName: "email-verification",
		TemplateData: struct {
			Name          string
			Code          string
			ExpiryMinutes int
		}{usr.Name, cred.Code, int(svc.conf.OTPExpirationDelta.Minutes())},
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) sendVerifiedMail(usr User) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      verifiedSubject,
		TemplateName: "email-verified",
		TemplateData: struct{ Name string }{usr.Name},
	}
	svc.mailSvc.SendMessages(msg)
}

func (svc *service) sendPasswordResetMail(usr User) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      passwordResetSubject,
		TemplateName: "password-reset",
		TemplateData: struct {
			Name          string
			ResetURL      string
			ExpiryMinutes int
		}{
			usr.Name,
			fmt.Sprintf("%s/password-reset?email=%s&token=%s", svc.conf.FrontendBaseURL, usr.Email, usr.ResetToken),
			int(svc.conf.PasswordResetTimeoutDelta.Minutes()),
		},
	}
	svc.mailSvc.SendMessages(msg)
}

func newResetToken() string {
	return uuid.New().String()
}
