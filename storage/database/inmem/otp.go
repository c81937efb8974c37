package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/darasahq/darasa/core/otp"
)

type otpRepository struct {
	db *otpTable
}

var _ otp.Repository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *DB) *otpRepository {
	return &otpRepository{db: db.otp}
}

func (repo *otpRepository) CreateCredential(_ context.Context, cred otp.Credential) (otp.Credential, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	cred.ID = uuid.New().String()
	repo.db.table[cred.ID] = &cred
	return cred, nil
}

func (repo *otpRepository) GetCredential(_ context.Context, email, code string) (otp.Credential, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	// latest matching credential wins
	var match *otp.Credential
	for _, cred := range repo.db.table {
		if cred.Email == email && cred.Code == code {
			if match == nil || cred.CreatedAt.After(match.CreatedAt) {
				match = cred
			}
		}
	}
	if match == nil {
		return otp.Credential{}, otp.ErrNotFound
	}
	return *match, nil
}

func (repo *otpRepository) UpdateCredential(_ context.Context, cred otp.Credential) (otp.Credential, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	orig, ok := repo.db.table[cred.ID]
	if !ok {
		return otp.Credential{}, otp.ErrNotFound
	}
	orig.Verified = cred.Verified
	orig.UpdatedAt = cred.UpdatedAt
	return *orig, nil
}
