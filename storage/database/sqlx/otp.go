package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/otp"
)

const otpColumns = `id, email, role, code, expires_at, verified, created_at, updated_at`

type otpRepository struct {
	db *sqlx.DB
}

var _ otp.Repository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(db *sqlx.DB) *otpRepository {
	return &otpRepository{db: db}
}

func (repo otpRepository) CreateCredential(ctx context.Context, cred otp.Credential) (otp.Credential, error) {
	cred.ID = uuid.New().String()
	q := `INSERT INTO otp_credential (` + otpColumns + `)
VALUES (:id, :email, :role, :code, :expires_at, :verified, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, cred); err != nil {
		return otp.Credential{}, errors.Wrap(err, "inserting otp credential")
	}
	return cred, nil
}

func (repo otpRepository) GetCredential(ctx context.Context, email, code string) (otp.Credential, error) {
	var cred otp.Credential
	q := `SELECT ` + otpColumns + ` FROM otp_credential
WHERE email = $1 AND code = $2 ORDER BY created_at DESC LIMIT 1`
	if err := repo.db.GetContext(ctx, &cred, q, email, code); err != nil {
		if err == sql.ErrNoRows {
			return otp.Credential{}, otp.ErrNotFound
		}
		return otp.Credential{}, errors.Wrap(err, "finding otp credential")
	}
	return cred, nil
}

func (repo otpRepository) UpdateCredential(ctx context.Context, cred otp.Credential) (otp.Credential, error) {
	q := `UPDATE otp_credential SET verified = :verified, updated_at = :updated_at WHERE id = :id`
	if _, err := repo.db.NamedExecContext(ctx, q, cred); err != nil {
		return otp.Credential{}, errors.Wrap(err, "updating otp credential")
	}
	return cred, nil
}
