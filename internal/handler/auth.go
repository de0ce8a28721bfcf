package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/xid"

	"github.com/sakif/starblog/internal/apperror"
	"github.com/sakif/starblog/internal/auth"
	"github.com/sakif/starblog/internal/service"
)

const oauthStateCookie = "oauth_state"

// GoogleOAuth is the part of *auth.GoogleProvider the handler needs.
type GoogleOAuth interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleProfile, error)
}

// AuthHandler manages registration, password login, the Google OAuth flow
// and the signed-in user's account.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create a password account
//   - HandleLogin          → verify a password and issue a token
//   - HandleGoogleLogin    → redirect the browser to Google's consent page
//   - HandleGoogleCallback → resolve the Google profile to a user, redirect to the frontend with a token
//   - HandleMe             → return the currently logged-in user's profile
//   - HandleChangePassword → replace the caller's password
type AuthHandler struct {
	auth        *service.AuthService
	google      GoogleOAuth // nil when Google sign-in is not configured
	validate    *RequestValidator
	frontendURL string
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. google may be nil.
func NewAuthHandler(
	authService *service.AuthService,
	google GoogleOAuth,
	validate *RequestValidator,
	frontendURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:        authService,
		google:      google,
		validate:    validate,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
	}
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"omitempty,max=100"`
}

type registerResponse struct {
	UserID int64 `json:"userId"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

// HandleRegister creates a password account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"email": "...", "password": "...", "name": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := h.bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.auth.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{UserID: user.ID})
}

// HandleLogin verifies an email and password.
//
// HTTP: POST /auth/login
// Every failure cause gets the same 401 body.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Token: res.Token, User: res.User})
}

// HandleGoogleLogin redirects the user to Google's consent page.
//
// HTTP: GET /auth/google
//
// CSRF PROTECTION VIA STATE:
// A random state value goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when both match.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a Google profile
//  3. Resolve the profile to a user (existing, linked by email, or new)
//  4. Redirect to {FRONTEND_URL}/auth/callback?token=...
//
// Any failure redirects to {FRONTEND_URL}/login?error=google-auth-failed;
// the browser never sees an API error body here.
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	fail := func(msg string, attrs ...any) {
		h.logger.Warn("google callback: "+msg, attrs...)
		http.Redirect(w, r, h.frontendURL+"/login?error=google-auth-failed", http.StatusSeeOther)
	}

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" {
		fail("missing state cookie")
		return
	}
	if r.URL.Query().Get("state") != stateCookie.Value {
		fail("state mismatch")
		return
	}

	// Single-use
	http.SetCookie(w, &http.Cookie{
		Name:   oauthStateCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		fail("user denied authorization", slog.String("error", errParam))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		fail("missing code")
		return
	}

	// --- Step 2: Exchange code for a profile ---
	profile, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		fail("exchange failed", slog.String("error", err.Error()))
		return
	}

	// --- Step 3: Resolve the user ---
	res, err := h.auth.LoginGoogle(r.Context(), profile)
	if err != nil {
		fail("resolving user failed", slog.String("error", err.Error()))
		return
	}

	// --- Step 4: Hand the token to the frontend ---
	http.Redirect(w, r,
		h.frontendURL+"/auth/callback?token="+url.QueryEscape(res.Token),
		http.StatusSeeOther)
}

// HandleMe returns the currently authenticated user's profile.
//
// HTTP: GET /auth/me
// Auth: Required
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Warn("HandleMe: user lookup failed",
			slog.Int64("userID", userID),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// HandleChangePassword replaces the caller's password.
//
// HTTP: PUT /users/password
// Auth: Required
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("authentication required"))
		return
	}

	var req changePasswordRequest
	if err := h.bind(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.auth.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *AuthHandler) bind(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	return h.validate.Validate(dst)
}
