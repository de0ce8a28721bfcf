package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/starblog/internal/auth"
	"github.com/sakif/starblog/internal/handler"
	sqliteRepo "github.com/sakif/starblog/internal/repository/sqlite"
	"github.com/sakif/starblog/internal/service"
)

const testSecret = "handler-test-secret-0123456789"

// fakeGoogle returns a fixed profile for the code "good" and fails otherwise.
type fakeGoogle struct {
	profile *auth.GoogleProfile
}

func (f *fakeGoogle) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (f *fakeGoogle) Exchange(_ context.Context, code string) (*auth.GoogleProfile, error) {
	if code != "good" {
		return nil, errors.New("bad code")
	}
	return f.profile, nil
}

type testAPI struct {
	router http.Handler
	google *fakeGoogle
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := sqliteRepo.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	google := &fakeGoogle{profile: &auth.GoogleProfile{ID: "g-1", Email: "ann@example.com", VerifiedEmail: true, Name: "Ann G"}}
	validate := handler.NewRequestValidator()

	authSvc := service.NewAuthService(db, tokens, auth.NewPasswordServiceForTest(4), logger)
	authH := handler.NewAuthHandler(authSvc, google, validate, "http://front.test/", logger)
	postH := handler.NewPostHandler(service.NewPostService(db, logger), validate, logger)
	interH := handler.NewInteractionHandler(service.NewInteractionService(db, nil, logger), logger)

	r := chi.NewRouter()
	r.Post("/auth/register", authH.HandleRegister)
	r.Post("/auth/login", authH.HandleLogin)
	r.Get("/auth/google", authH.HandleGoogleLogin)
	r.Get("/auth/google/callback", authH.HandleGoogleCallback)
	r.With(auth.OptionalAuth(tokens)).Get("/posts/{postId}", postH.HandleGet)
	r.Get("/posts/{postId}/comments", postH.HandleListComments)
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(tokens, logger))
		r.Get("/auth/me", authH.HandleMe)
		r.Put("/users/password", authH.HandleChangePassword)
		r.Post("/posts", postH.HandleCreate)
		r.Post("/posts/{postId}/like", interH.HandleToggleLike)
		r.Post("/posts/{postId}/comments", interH.HandleCreateComment)
		r.Put("/comments/{commentId}", interH.HandleUpdateComment)
		r.Delete("/comments/{commentId}", interH.HandleDeleteComment)
	})

	return &testAPI{router: r, google: google}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

// signUp registers and logs in, returning the token.
func (a *testAPI) signUp(t *testing.T, email string) string {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "secret123", "name": "User " + email,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = a.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var res struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	return res.Token
}

func (a *testAPI) createPost(t *testing.T, token string) int64 {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/posts", token, map[string]string{"title": "Trip", "content": "..."})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var p struct {
		ID int64 `json:"id"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&p))
	return p.ID
}

func itoa(v int64) string { return strconv.FormatInt(v, 10) }

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var e handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&e))
	return e
}

// =========================================================================
// AUTH
// =========================================================================

func TestRegisterAndLogin(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ann@example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusCreated, rr.Code)
	var reg struct {
		UserID int64 `json:"userId"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&reg))
	assert.Positive(t, reg.UserID)

	rr = api.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "ann@example.com", "password": "other123",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "wrong-pw",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid email or password", decodeError(t, rr).Message)

	rr = api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "wrong-pw",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "invalid email or password", decodeError(t, rr).Message)
}

func TestRegister_Validation(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name string
		body any
	}{
		{name: "missing email", body: map[string]string{"password": "secret123"}},
		{name: "bad email", body: map[string]string{"email": "nope", "password": "secret123"}},
		{name: "short password", body: map[string]string{"email": "a@example.com", "password": "123"}},
		{name: "password over 72 bytes", body: map[string]string{"email": "a@example.com", "password": strings.Repeat("p", 80)}},
		{name: "unknown field", body: map[string]string{"email": "a@example.com", "password": "secret123", "role": "admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := api.do(t, http.MethodPost, "/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Equal(t, "validation_error", decodeError(t, rr).Error)
		})
	}
}

func TestMe_RequiresToken(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	token := api.signUp(t, "ann@example.com")
	rr = api.do(t, http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var me map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&me))
	assert.Equal(t, "ann@example.com", me["email"])
	assert.NotContains(t, me, "passwordHash")
	assert.NotContains(t, me, "password_hash")
}

func TestChangePassword(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp(t, "ann@example.com")

	rr := api.do(t, http.MethodPut, "/users/password", token, map[string]string{
		"currentPassword": "wrong-pw", "newPassword": "newsecret1",
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = api.do(t, http.MethodPut, "/users/password", token, map[string]string{
		"currentPassword": "secret123", "newPassword": strings.Repeat("p", 80),
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	e := decodeError(t, rr)
	assert.Equal(t, "validation_error", e.Error)
	assert.Equal(t, "newPassword", e.Field)

	rr = api.do(t, http.MethodPut, "/users/password", token, map[string]string{
		"currentPassword": "secret123", "newPassword": "newsecret1",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "ann@example.com", "password": "newsecret1",
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestGoogleFlow(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/auth/google", "", nil)
	require.Equal(t, http.StatusTemporaryRedirect, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	state := cookies[0].Value
	assert.Contains(t, rr.Header().Get("Location"), "state="+state)

	callback := func(query string, withCookie bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+query, nil)
		if withCookie {
			req.AddCookie(&http.Cookie{Name: "oauth_state", Value: state})
		}
		rr := httptest.NewRecorder()
		api.router.ServeHTTP(rr, req)
		return rr
	}

	t.Run("missing cookie", func(t *testing.T) {
		rr := callback("state="+state+"&code=good", false)
		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "http://front.test/login?error=google-auth-failed", rr.Header().Get("Location"))
	})

	t.Run("state mismatch", func(t *testing.T) {
		rr := callback("state=other&code=good", true)
		assert.Equal(t, "http://front.test/login?error=google-auth-failed", rr.Header().Get("Location"))
	})

	t.Run("exchange fails", func(t *testing.T) {
		rr := callback("state="+state+"&code=bad", true)
		assert.Equal(t, "http://front.test/login?error=google-auth-failed", rr.Header().Get("Location"))
	})

	t.Run("success", func(t *testing.T) {
		rr := callback("state="+state+"&code=good", true)
		require.Equal(t, http.StatusSeeOther, rr.Code)

		loc, err := url.Parse(rr.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "/auth/callback", loc.Path)
		token := loc.Query().Get("token")
		require.NotEmpty(t, token)

		me := api.do(t, http.MethodGet, "/auth/me", token, nil)
		assert.Equal(t, http.StatusOK, me.Code)
	})
}

// =========================================================================
// POSTS & INTERACTIONS
// =========================================================================

func TestToggleLike(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp(t, "ann@example.com")
	postID := api.createPost(t, token)
	path := "/posts/" + itoa(postID) + "/like"

	for i, want := range []bool{true, false, true} {
		rr := api.do(t, http.MethodPost, path, token, nil)
		require.Equal(t, http.StatusOK, rr.Code)
		var res struct {
			Liked bool `json:"liked"`
			Likes int  `json:"likes"`
		}
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
		assert.Equal(t, want, res.Liked, "toggle %d", i+1)
	}

	rr := api.do(t, http.MethodGet, "/posts/"+itoa(postID), token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var post map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&post))
	assert.EqualValues(t, 1, post["likes"])
	assert.Equal(t, true, post["likedByMe"])

	rr = api.do(t, http.MethodPost, "/posts/999/like", token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodPost, path, "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateComment(t *testing.T) {
	api := newTestAPI(t)
	author := api.signUp(t, "ann@example.com")
	reader := api.signUp(t, "bob@example.com")
	postID := api.createPost(t, author)
	path := "/posts/" + itoa(postID) + "/comments"

	rr := api.do(t, http.MethodPost, path, reader, map[string]string{"content": "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	e := decodeError(t, rr)
	assert.Equal(t, "empty_content", e.Error)
	assert.Equal(t, "content", e.Field)

	rr = api.do(t, http.MethodPost, "/posts/999/comments", reader, map[string]string{"content": "hi"})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = api.do(t, http.MethodPost, path, reader, map[string]string{"content": " nice "})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var c struct {
		ID      int64  `json:"id"`
		Content string `json:"content"`
		User    struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"user"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&c))
	assert.Equal(t, "nice", c.Content)
	assert.Equal(t, "User bob@example.com", c.User.Name)

	rr = api.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	assert.Len(t, list, 1)

	commentPath := "/comments/" + itoa(c.ID)

	rr = api.do(t, http.MethodPut, commentPath, author, map[string]string{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(t, http.MethodPut, commentPath, reader, map[string]string{"content": "edited"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(t, http.MethodDelete, commentPath, author, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = api.do(t, http.MethodDelete, commentPath, reader, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = api.do(t, http.MethodDelete, commentPath, reader, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPathIDValidation(t *testing.T) {
	api := newTestAPI(t)

	rr := api.do(t, http.MethodGet, "/posts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = api.do(t, http.MethodGet, "/posts/0/comments", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
