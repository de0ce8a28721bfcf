package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sakif/starblog/internal/apperror"
	"github.com/sakif/starblog/internal/model"
	"github.com/sakif/starblog/internal/repository"
)

// compile-time checks
var (
	_ repository.UserRepository = (*DB)(nil)
	_ repository.UserStore      = userStore{}
)

const userColumns = `id, email, name, password_hash, google_id, avatar_url, created_at, updated_at`

// userStore runs user queries against either the pool or an open transaction.
type userStore struct {
	q queryer
}

func (d *DB) users() userStore { return userStore{q: d.db} }

func (d *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return d.users().GetUserByID(ctx, id)
}

func (d *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return d.users().GetUserByEmail(ctx, email)
}

func (d *DB) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return d.users().GetUserByGoogleID(ctx, googleID)
}

func (d *DB) CreateUser(ctx context.Context, user *model.User) error {
	return d.users().CreateUser(ctx, user)
}

func (d *DB) UpdateIdentity(ctx context.Context, user *model.User) error {
	return d.users().UpdateIdentity(ctx, user)
}

// InUserTx runs fn with a UserStore bound to a single transaction.
func (d *DB) InUserTx(ctx context.Context, fn func(tx repository.UserStore) error) error {
	return d.withTx(ctx, func(tx *sqlx.Tx) error {
		return fn(userStore{q: tx})
	})
}

// UpdatePassword replaces the stored bcrypt hash.
func (d *DB) UpdatePassword(ctx context.Context, id int64, hash string) error {
	res, err := d.db.ExecContext(ctx,
		`UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating password of user %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound(apperror.ErrUserNotFound, id)
	}
	return nil
}

func (s userStore) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.getOne(ctx, fmt.Sprintf("id %d", id),
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s userStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.getOne(ctx, "email "+email,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s userStore) GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error) {
	return s.getOne(ctx, "google id "+googleID,
		`SELECT `+userColumns+` FROM users WHERE google_id = ?`, googleID)
}

func (s userStore) getOne(ctx context.Context, what, query string, args ...any) (*model.User, error) {
	var u model.User
	if err := s.q.GetContext(ctx, &u, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.Wrap(apperror.ErrUserNotFound, "user not found with "+what)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s: %w", what, err)
	}
	return &u, nil
}

// CreateUser inserts a new account. The UNIQUE constraints on email and
// google_id are the final arbiter between concurrent first logins; losing
// that race surfaces as apperror.ErrDuplicateEmail.
func (s userStore) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`INSERT INTO users (email, name, password_hash, google_id, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.Email, user.Name, user.PasswordHash, user.GoogleID, user.AvatarURL, now, now,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return apperror.Wrap(apperror.ErrDuplicateEmail, "an account with this email already exists")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading new user id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now
	return nil
}

// UpdateIdentity writes the provider-sourced fields. Email and password_hash
// are deliberately absent from the statement.
func (s userStore) UpdateIdentity(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	res, err := s.q.ExecContext(ctx,
		`UPDATE users SET google_id = ?, name = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		user.GoogleID, user.Name, user.AvatarURL, now, user.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return apperror.Wrap(apperror.ErrDuplicateEmail, "this Google account is linked to another user")
		}
		return fmt.Errorf("sqlite: updating identity of user %d: %w", user.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperror.NotFound(apperror.ErrUserNotFound, user.ID)
	}
	user.UpdatedAt = now
	return nil
}
