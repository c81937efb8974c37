package otp

import "time"

// Credential is a one-time numeric code mailed to a recipient for email
// verification. It is matched by the (email, code) tuple; it is not
// foreign-keyed to an account.
type Credential struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Role      string    `json:"role" db:"role"`
	Code      string    `json:"-" db:"code"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"` // UTC
	Verified  bool      `json:"verified" db:"verified"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"` // UTC
}

// Expired reports whether the credential is past its expiration time.
func (c Credential) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
