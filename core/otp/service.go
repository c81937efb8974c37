package otp

import (
	"context"
	"errors"
	"time"

	"github.com/darasahq/darasa/core"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound    = errors.New("no matching code was sent to this email")
	ErrExpired     = errors.New("code has expired")
	ErrAlreadyUsed = errors.New("code has already been used")
)

type (
	Repository interface {
		CreateCredential(ctx context.Context, cred Credential) (Credential, error)
		// GetCredential matches by the (email, code) tuple.
		GetCredential(ctx context.Context, email, code string) (Credential, error)
		UpdateCredential(ctx context.Context, cred Credential) (Credential, error)
	}

	Service interface {
		Issue(ctx context.Context, email, role string) (Credential, error)
		Verify(ctx context.Context, email, code string) (Credential, error)
	}

	service struct {
		repo Repository
		conf *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, conf *core.Config) Service {
	return &service{repo: repo, conf: conf}
}

// Issue persists exactly one new credential for email, expiring after the
// configured delta. Mail dispatch is the caller's concern.
func (svc *service) Issue(ctx context.Context, email, role string) (Credential, error) {
	code, err := generateCode()
	if err != nil {
		return Credential{}, err
	}

	now := NowFunc().UTC()
	cred := Credential{
		Email:     core.CleanString(email, true /* lower */),
		Role:      role,
		Code:      code,
		ExpiresAt: now.Add(svc.conf.OTPExpirationDelta),
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateCredential(ctx, cred)
}

// Verify consumes the credential matching (email, code).
// Expired codes are rejected before consumption; consumed codes are rejected on replay.
func (svc *service) Verify(ctx context.Context, email, code string) (Credential, error) {
	cred, err := svc.repo.GetCredential(ctx, core.CleanString(email, true /* lower */), core.CleanString(code))
	if err != nil {
		return Credential{}, err
	}
	if cred.Expired(NowFunc()) {
		return Credential{}, ErrExpired
	}
	if cred.Verified {
		return Credential{}, ErrAlreadyUsed
	}

	cred.Verified = true
	cred.UpdatedAt = NowFunc().UTC()
	return svc.repo.UpdateCredential(ctx, cred)
}
