package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

const userColumns = `id, name, surname, username, email, role, subject, qualification, password_hash,
is_active, is_verified, profile_picture, reset_token, reset_link_sent, reset_expires_at,
created_at, updated_at, last_login`

type userRow struct {
	ID             string       `db:"id"`
	Name           string       `db:"name"`
	Surname        string       `db:"surname"`
	Username       string       `db:"username"`
	Email          string       `db:"email"`
	Role           string       `db:"role"`
	Subject        string       `db:"subject"`
	Qualification  string       `db:"qualification"`
	PasswordHash   []byte       `db:"password_hash"`
	IsActive       bool         `db:"is_active"`
	IsVerified     bool         `db:"is_verified"`
	ProfilePicture string       `db:"profile_picture"`
	ResetToken     string       `db:"reset_token"`
	ResetLinkSent  bool         `db:"reset_link_sent"`
	ResetExpiresAt sql.NullTime `db:"reset_expires_at"`
	CreatedAt      time.Time    `db:"created_at"`
	UpdatedAt      time.Time    `db:"updated_at"`
	LastLogin      sql.NullTime `db:"last_login"`
}

func (r userRow) user() user.User {
	return user.User{
		ID:             r.ID,
		Name:           r.Name,
		Surname:        r.Surname,
		Username:       r.Username,
		Email:          r.Email,
		Role:           r.Role,
		Subject:        r.Subject,
		Qualification:  r.Qualification,
		PasswordHash:   r.PasswordHash,
		IsActive:       r.IsActive,
		IsVerified:     r.IsVerified,
		ProfilePicture: r.ProfilePicture,
		ResetToken:     r.ResetToken,
		ResetLinkSent:  r.ResetLinkSent,
		ResetExpiresAt: r.ResetExpiresAt.Time,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
		LastLogin:      r.LastLogin.Time,
	}
}

func newUserRow(usr user.User) userRow {
	return userRow{
		ID:             usr.ID,
		Name:           usr.Name,
		Surname:        usr.Surname,
		Username:       usr.Username,
		Email:          usr.Email,
		Role:           usr.Role,
		Subject:        usr.Subject,
		Qualification:  usr.Qualification,
		PasswordHash:   usr.PasswordHash,
		IsActive:       usr.IsActive,
		IsVerified:     usr.IsVerified,
		ProfilePicture: usr.ProfilePicture,
		ResetToken:     usr.ResetToken,
		ResetLinkSent:  usr.ResetLinkSent,
		ResetExpiresAt: sql.NullTime{Time: usr.ResetExpiresAt.UTC(), Valid: !usr.ResetExpiresAt.IsZero()},
		CreatedAt:      usr.CreatedAt.UTC(),
		UpdatedAt:      usr.UpdatedAt.UTC(),
		LastLogin:      sql.NullTime{Time: usr.LastLogin.UTC(), Valid: !usr.LastLogin.IsZero()},
	}
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	q := `SELECT username, email FROM "user" WHERE ((username = $1 AND $1 <> '') OR email = $2)`
	args := []interface{}{username, email}
	for _, u := range excludedUsers {
		args = append(args, u.ID)
		q += fmt.Sprintf(" AND id <> $%d", len(args))
	}
	q += " LIMIT 1"

	var row userRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	if row.Username == username && username != "" {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	usr.ID = uuid.New().String()
	row := newUserRow(usr)
	q := fmt.Sprintf(`INSERT INTO "user" (%s) VALUES (:id, :name, :surname, :username, :email, :role,
:subject, :qualification, :password_hash, :is_active, :is_verified, :profile_picture,
:reset_token, :reset_link_sent, :reset_expires_at, :created_at, :updated_at, :last_login)`, userColumns)
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryAllUsers(ctx context.Context) ([]user.User, error) {
	var rows []userRow
	q := fmt.Sprintf(`SELECT %s FROM "user" ORDER BY created_at DESC`, userColumns)
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return rowsToUsers(rows), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return user.User{}, user.ErrNotFound
	}
	return repo.getOne(ctx, `id = $1`, id)
}

func (repo userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getOne(ctx, `username = $1 AND username <> ''`, username)
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	return repo.getOne(ctx, `email = $1`, email)
}

func (repo userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.getOne(ctx, `(username = $1 AND username <> '') OR email = $1`, username)
}

func (repo userRepository) getOne(ctx context.Context, where string, args ...interface{}) (user.User, error) {
	var row userRow
	q := fmt.Sprintf(`SELECT %s FROM "user" WHERE %s`, userColumns, where)
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return user.User{}, trapNoRowsErr(err, "finding user")
	}
	return row.user(), nil
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// users with Name, Surname, Username or Email matching the search keyword
	if filter.Search != "" {
		val := arg("%" + filter.Search + "%")
		conds = append(conds, fmt.Sprintf(
			"(name ILIKE %[1]s OR surname ILIKE %[1]s OR username ILIKE %[1]s OR email ILIKE %[1]s)", val))
	}
	if filter.Role != "" {
		conds = append(conds, fmt.Sprintf("role = %s", arg(filter.Role)))
	}
	if filter.IsActive != nil {
		conds = append(conds, fmt.Sprintf("is_active = %s", arg(*filter.IsActive)))
	}
	if filter.IsVerified != nil {
		conds = append(conds, fmt.Sprintf("is_verified = %s", arg(*filter.IsVerified)))
	}
	if !filter.CreatedFrom.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at >= %s", arg(filter.CreatedFrom.UTC())))
	}
	if !filter.CreatedTo.IsZero() {
		conds = append(conds, fmt.Sprintf("created_at <= %s", arg(filter.CreatedTo.UTC())))
	}

	q := fmt.Sprintf(`SELECT %s FROM "user"`, userColumns)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if len(ordering) > 0 {
		orderList := make([]string, 0, len(ordering))
		for _, ord := range ordering {
			orderList = append(orderList, ord.String())
		}
		q += " ORDER BY " + strings.Join(orderList, ", ")
	} else {
		q += " ORDER BY created_at DESC"
	}

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return rowsToUsers(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, isActive *bool) (user.User, error) {
	// only save set fields
	origUsr, err := repo.GetUserByID(ctx, usr.ID)
	if err != nil {
		return user.User{}, err
	}
	if usr.Role != "" {
		origUsr.Role = usr.Role
	}
	if usr.PasswordHash != nil {
		origUsr.PasswordHash = usr.PasswordHash
	}
	if isActive != nil {
		origUsr.IsActive = *isActive
	}
	if usr.Name != "" {
		origUsr.Name = usr.Name
	}
	if usr.Surname != "" {
		origUsr.Surname = usr.Surname
	}
	if usr.Username != "" {
		origUsr.Username = usr.Username
	}
	if usr.Email != "" {
		origUsr.Email = usr.Email
	}
	if usr.Subject != "" {
		origUsr.Subject = usr.Subject
	}
	if usr.Qualification != "" {
		origUsr.Qualification = usr.Qualification
	}
	if usr.ProfilePicture != "" {
		origUsr.ProfilePicture = usr.ProfilePicture
	}
	origUsr.IsVerified = usr.IsVerified || origUsr.IsVerified
	origUsr.ResetToken = usr.ResetToken
	origUsr.ResetLinkSent = usr.ResetLinkSent
	origUsr.ResetExpiresAt = usr.ResetExpiresAt
	origUsr.UpdatedAt = usr.UpdatedAt

	row := newUserRow(origUsr)
	q := `UPDATE "user" SET name = :name, surname = :surname, username = :username, email = :email,
role = :role, subject = :subject, qualification = :qualification, password_hash = :password_hash,
is_active = :is_active, is_verified = :is_verified, profile_picture = :profile_picture,
reset_token = :reset_token, reset_link_sent = :reset_link_sent, reset_expires_at = :reset_expires_at,
updated_at = :updated_at WHERE id = :id`
	if _, err := repo.db.NamedExecContext(ctx, q, row); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return origUsr, nil
}

func (repo userRepository) SetUserLastLogin(ctx context.Context, id string, t time.Time) error {
	if _, err := repo.db.ExecContext(ctx, `UPDATE "user" SET last_login = $1 WHERE id = $2`, t.UTC(), id); err != nil {
		return errors.Wrap(err, "setting last login")
	}
	return nil
}

func (repo userRepository) DeleteUsersByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	q, args, err := sqlx.In(`DELETE FROM "user" WHERE id IN (?)`, ids)
	if err != nil {
		return errors.Wrap(err, "deleting users")
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(q), args...)
	if err != nil {
		return errors.Wrap(err, "deleting users")
	}
	if cnt, err := res.RowsAffected(); err == nil && cnt == 0 {
		return user.ErrNotFound
	}
	return nil
}

func rowsToUsers(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users
}
