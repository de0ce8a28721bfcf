// Package service holds the business logic between handlers and storage.
//
// AuthService resolves every way of signing in to one canonical user row
// and issues the session credential for it:
//
//	AuthHandler (HTTP) → AuthService → UserRepository (DB)
//	                                 ↘ TokenService (JWT)
//
// Two identity sources feed the same users table: email + password, and
// Google. Email is the linking key between them.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/starblog/internal/apperror"
	"github.com/sakif/starblog/internal/auth"
	"github.com/sakif/starblog/internal/model"
	"github.com/sakif/starblog/internal/repository"
)

// defaultGoogleName is stored when Google provides no display name.
const defaultGoogleName = "Google User"

// AuthService handles the authentication business logic.
type AuthService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger
}

// NewAuthService creates an AuthService with all required dependencies.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// AuthResult bundles the resolved user and the issued session credential.
type AuthResult struct {
	User  *model.User
	Token string
}

// normalizeEmail is applied to every email before lookup and storage, so
// "Ann@Example.com " and "ann@example.com" are the same account.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// =========================================================================
// PASSWORD PATH
// =========================================================================

// Register creates a password account. An existing email yields
// apperror.ErrDuplicateEmail; nothing is linked or overwritten.
func (s *AuthService) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if err := validateNewPassword("password", password); err != nil {
		return nil, err
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, duplicateEmail()
	} else if !errors.Is(err, apperror.ErrUserNotFound) {
		return nil, fmt.Errorf("service/auth: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: %w", err)
	}

	user := &model.User{Email: email, PasswordHash: &hash}
	if name = strings.TrimSpace(name); name != "" {
		user.Name = &name
	}

	// A concurrent registration can still win between the check and the
	// insert; the UNIQUE constraint turns that into ErrDuplicateEmail too.
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrDuplicateEmail) {
			return nil, duplicateEmail()
		}
		return nil, fmt.Errorf("service/auth: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.Int64("userID", user.ID))
	return user, nil
}

// Login verifies an email and password.
//
// Unknown email, wrong password, and an account without a password (created
// through Google) all produce the same apperror.ErrInvalidCredentials, and
// all of them pay for one bcrypt comparison.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrUserNotFound) {
			s.passwords.VerifyDummy(password)
			return nil, invalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: looking up user: %w", err)
	}

	if !user.HasPassword() {
		s.passwords.VerifyDummy(password)
		return nil, invalidCredentials()
	}

	if err := s.passwords.Verify(*user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, invalidCredentials()
		}
		return nil, fmt.Errorf("service/auth: verifying password of user %d: %w", user.ID, err)
	}

	return s.issue(user, "password")
}

// ChangePassword replaces the password of a password account after checking
// the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, current, next string) error {
	if current == "" {
		return apperror.ValidationFailed("currentPassword", "current password is required")
	}
	if err := validateNewPassword("newPassword", next); err != nil {
		return err
	}
	if current == next {
		return apperror.ValidationFailed("newPassword", "new password must differ from the current one")
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("service/auth: loading user %d: %w", userID, err)
	}
	if !user.HasPassword() {
		return apperror.ValidationFailed("currentPassword", "this account signs in with Google and has no password to change")
	}

	if err := s.passwords.Verify(*user.PasswordHash, current); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return apperror.Wrap(apperror.ErrInvalidCredentials, "current password is incorrect")
		}
		return fmt.Errorf("service/auth: verifying password of user %d: %w", userID, err)
	}

	hash, err := s.passwords.Hash(next)
	if err != nil {
		return fmt.Errorf("service/auth: %w", err)
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("service/auth: updating password of user %d: %w", userID, err)
	}

	s.logger.Info("password changed", slog.Int64("userID", userID))
	return nil
}

func validateNewPassword(field, password string) error {
	if password == "" {
		return apperror.ValidationFailed(field, "password is required")
	}
	if len(password) < auth.MinPasswordLength {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("password must be at least %d characters", auth.MinPasswordLength))
	}
	if len(password) > auth.MaxPasswordBytes {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("password must be %d bytes or fewer", auth.MaxPasswordBytes))
	}
	return nil
}

// =========================================================================
// GOOGLE PATH
// =========================================================================

// googleAction is what a Google login does to the users table.
type googleAction int

const (
	googleUseExisting googleAction = iota // matched by Google ID, nothing changed
	googleRefresh                         // matched by Google ID, name or avatar changed
	googleLink                            // matched by email, attach the Google ID
	googleCreate                          // no match, new account without password
)

func (a googleAction) String() string {
	switch a {
	case googleUseExisting:
		return "existing"
	case googleRefresh:
		return "refresh"
	case googleLink:
		return "link"
	case googleCreate:
		return "create"
	}
	return "unknown"
}

// googleDecision is the outcome of resolving a Google profile against the
// two possible existing rows. user is the row to write (or return).
type googleDecision struct {
	action googleAction
	user   *model.User
}

// decideGoogleLogin is the pure resolution rule:
//
//  1. a row with this Google ID wins; refresh its name/avatar if they changed
//  2. else a row with this email gets the Google ID attached
//  3. else a new row is created
//
// It never touches email or password_hash of an existing row. A row found
// by email that is already linked to a different Google account is a
// conflict rather than a silent relink. Linking also requires Google to
// have verified the address; an unverified one is refused.
func decideGoogleLogin(byGoogleID, byEmail *model.User, p *auth.GoogleProfile) (googleDecision, error) {
	if byGoogleID != nil {
		u := *byGoogleID
		changed := applyProfile(&u, p)
		if changed {
			return googleDecision{action: googleRefresh, user: &u}, nil
		}
		return googleDecision{action: googleUseExisting, user: &u}, nil
	}

	if byEmail != nil {
		if byEmail.GoogleID != nil && *byEmail.GoogleID != p.ID {
			return googleDecision{}, apperror.Conflict("this email is linked to a different Google account")
		}
		if byEmail.GoogleID == nil && !p.VerifiedEmail {
			return googleDecision{}, apperror.Forbidden("Google has not verified this email address")
		}
		u := *byEmail
		googleID := p.ID
		u.GoogleID = &googleID
		applyProfile(&u, p)
		return googleDecision{action: googleLink, user: &u}, nil
	}

	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = defaultGoogleName
	}
	googleID := p.ID
	u := &model.User{
		Email:    p.Email,
		Name:     &name,
		GoogleID: &googleID,
	}
	if p.Picture != "" {
		avatar := p.Picture
		u.AvatarURL = &avatar
	}
	return googleDecision{action: googleCreate, user: u}, nil
}

// applyProfile copies non-empty name and avatar from the profile and
// reports whether anything changed.
func applyProfile(u *model.User, p *auth.GoogleProfile) bool {
	changed := false
	if name := strings.TrimSpace(p.Name); name != "" && (u.Name == nil || *u.Name != name) {
		u.Name = &name
		changed = true
	}
	if p.Picture != "" && (u.AvatarURL == nil || *u.AvatarURL != p.Picture) {
		avatar := p.Picture
		u.AvatarURL = &avatar
		changed = true
	}
	return changed
}

// LoginGoogle resolves a Google profile to a user and issues a credential.
//
// Both reads, the decision and the single write run in one transaction. If
// a concurrent first login inserts the same email first, the insert fails
// with ErrDuplicateEmail; the resolution then runs once more and finds the
// winner's row, so both logins end up on the same account.
func (s *AuthService) LoginGoogle(ctx context.Context, profile *auth.GoogleProfile) (*AuthResult, error) {
	if profile == nil {
		return nil, errors.New("service/auth: Google profile must not be nil")
	}
	p := *profile
	p.Email = normalizeEmail(p.Email)
	if p.Email == "" {
		return nil, apperror.ValidationFailed("email", "Google account has no email address")
	}
	if p.ID == "" {
		return nil, apperror.ValidationFailed("googleId", "Google account has no id")
	}

	user, action, err := s.resolveGoogle(ctx, &p)
	if errors.Is(err, apperror.ErrDuplicateEmail) {
		s.logger.Info("google login lost a race, retrying", slog.String("googleID", p.ID))
		user, action, err = s.resolveGoogle(ctx, &p)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("user authenticated via Google",
		slog.Int64("userID", user.ID),
		slog.String("action", action.String()),
	)
	return s.issue(user, "google")
}

func (s *AuthService) resolveGoogle(ctx context.Context, p *auth.GoogleProfile) (*model.User, googleAction, error) {
	var (
		result *model.User
		action googleAction
	)

	err := s.users.InUserTx(ctx, func(tx repository.UserStore) error {
		byGoogleID, err := optionalUser(tx.GetUserByGoogleID(ctx, p.ID))
		if err != nil {
			return err
		}
		var byEmail *model.User
		if byGoogleID == nil {
			if byEmail, err = optionalUser(tx.GetUserByEmail(ctx, p.Email)); err != nil {
				return err
			}
		}

		d, err := decideGoogleLogin(byGoogleID, byEmail, p)
		if err != nil {
			return err
		}

		switch d.action {
		case googleRefresh, googleLink:
			err = tx.UpdateIdentity(ctx, d.user)
		case googleCreate:
			err = tx.CreateUser(ctx, d.user)
		}
		if err != nil {
			return err
		}

		result, action = d.user, d.action
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("service/auth: resolving Google login: %w", err)
	}
	return result, action, nil
}

// optionalUser turns ErrUserNotFound into (nil, nil).
func optionalUser(u *model.User, err error) (*model.User, error) {
	if errors.Is(err, apperror.ErrUserNotFound) {
		return nil, nil
	}
	return u, err
}

// =========================================================================
// SHARED
// =========================================================================

// GetUserByID returns the user for the /auth/me endpoint.
func (s *AuthService) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/auth: fetching user %d: %w", id, err)
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User, method string) (*AuthResult, error) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for user %d: %w", user.ID, err)
	}
	s.logger.Debug("session issued", slog.Int64("userID", user.ID), slog.String("method", method))
	return &AuthResult{User: user, Token: token}, nil
}

func invalidCredentials() error {
	return apperror.Wrap(apperror.ErrInvalidCredentials, "invalid email or password")
}

func duplicateEmail() error {
	return apperror.Wrap(apperror.ErrDuplicateEmail, "an account with this email already exists")
}
