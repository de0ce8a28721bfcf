// Package auth issues and verifies session credentials and hashes passwords.
//
// SESSION CREDENTIAL:
// A session is an HS256-signed JWT that carries the user's identity:
//
//	{"userId":1,"email":"a@b.c","name":"Ann","avatarUrl":null,
//	 "sub":"1","iss":"starblog","iat":...,"exp":...}
//
// Nothing is stored server-side. A token is valid until exp (1 hour after
// issue) and cannot be revoked earlier. The same TokenService verifies
// bearer headers on HTTP routes and the handshake frame on the websocket.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/starblog/internal/apperror"
	"github.com/sakif/starblog/internal/model"
)

const (
	// TokenTTL is the lifetime of a session credential.
	TokenTTL = time.Hour

	issuer = "starblog"
)

// TokenService handles JWT creation and validation.
//
// It holds the HMAC secret key used to sign and verify tokens.
// The same secret must be used for both operations.
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given secret.
// The secret should be at least 32 bytes of random data in production.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret), now: time.Now}, nil
}

// Claims is the verified content of a session credential.
type Claims struct {
	UserID    int64   `json:"userId"`
	Email     string  `json:"email"`
	Name      *string `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
	jwt.RegisteredClaims
}

// Issue creates and signs a session credential for the user, valid for TokenTTL.
func (s *TokenService) Issue(user *model.User) (string, error) {
	return s.IssueWithDuration(user, TokenTTL)
}

// IssueWithDuration creates a token with a custom expiry duration.
// Used in tests (negative durations produce already-expired tokens) and by
// the operator CLI.
func (s *TokenService) IssueWithDuration(user *model.User, d time.Duration) (string, error) {
	if user == nil || user.ID <= 0 {
		return "", errors.New("auth: cannot issue a token without a user id")
	}

	now := s.now()
	c := Claims{
		UserID:    user.ID,
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Verify parses and verifies a session credential.
//
// The returned error always wraps exactly one of apperror.ErrTokenMissing,
// apperror.ErrTokenExpired or apperror.ErrTokenInvalid. Expiry is reported
// only for tokens whose signature checked out; a tampered expired token is
// simply invalid.
//
// ALGORITHM CONFUSION ATTACK:
// Without checking the algorithm, an attacker could send a token signed with
// "none" and the library might accept it. jwt.WithValidMethods prevents this.
func (s *TokenService) Verify(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, apperror.ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("auth: %w", apperror.ErrTokenExpired)
		}
		return nil, fmt.Errorf("auth: %w: %v", apperror.ErrTokenInvalid, err)
	}

	c, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("auth: %w: unexpected claims", apperror.ErrTokenInvalid)
	}
	if c.UserID <= 0 || c.Subject != strconv.FormatInt(c.UserID, 10) {
		return nil, fmt.Errorf("auth: %w: token has no usable subject", apperror.ErrTokenInvalid)
	}

	return c, nil
}
