package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/starblog/internal/config"
	"github.com/sakif/starblog/internal/model"
	"github.com/sakif/starblog/internal/realtime"
	sqliteRepo "github.com/sakif/starblog/internal/repository/sqlite"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	db, err := sqliteRepo.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{
		Port:        8080,
		DBPath:      ":memory:",
		JWTSecret:   "server-test-secret-0123456789",
		FrontendURL: "http://localhost:5173",
	}
	s, err := NewWithDB(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), db)
	require.NoError(t, err)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func call(t *testing.T, ts *httptest.Server, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func register(t *testing.T, ts *httptest.Server, email, name string) string {
	t.Helper()

	resp, body := call(t, ts, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "secret123", "name": name,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = call(t, ts, http.MethodPost, "/auth/login", "", map[string]string{
		"email": email, "password": "secret123",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(body, &out))
	return out.Token
}

func dialWS(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })

	var hs realtime.Handshake
	hs.Auth.Token = token
	require.NoError(t, wsjson.Write(ctx, conn, hs))
	return conn
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t)

	resp, body := call(t, ts, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))
}

func TestGoogleRoutesAbsentWithoutCredentials(t *testing.T) {
	_, ts := newTestServer(t)

	resp, _ := call(t, ts, http.MethodGet, "/auth/google", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCommentPushesLiveNotification(t *testing.T) {
	s, ts := newTestServer(t)

	authorToken := register(t, ts, "ann@example.com", "Ann")
	readerToken := register(t, ts, "bob@example.com", "Bob")

	resp, body := call(t, ts, http.MethodPost, "/posts", authorToken, map[string]string{
		"title": "Trip", "content": "we went places",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var post model.Post
	require.NoError(t, json.Unmarshal(body, &post))

	conn := dialWS(t, ts, authorToken)
	require.Eventually(t, func() bool { return s.Hub().Users() == 1 },
		2*time.Second, 10*time.Millisecond)

	commentsPath := "/posts/" + strconv.FormatInt(post.ID, 10) + "/comments"

	// The author's own comment must not notify them.
	resp, body = call(t, ts, http.MethodPost, commentsPath, authorToken, map[string]string{"content": "thanks"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = call(t, ts, http.MethodPost, commentsPath, readerToken, map[string]string{"content": "lovely"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var comment model.Comment
	require.NoError(t, json.Unmarshal(body, &comment))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var frame struct {
		Event string             `json:"event"`
		Data  model.Notification `json:"data"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &frame))

	assert.Equal(t, model.EventNewNotification, frame.Event)
	assert.Equal(t, `Bob commented on your post "Trip"`, frame.Data.Message)
	assert.Equal(t, post.ID, frame.Data.PostID)
	assert.Equal(t, comment.ID, frame.Data.CommentID)
	assert.WithinDuration(t, time.Now(), frame.Data.Timestamp, time.Minute)
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	s, ts := newTestServer(t)

	conn := dialWS(t, ts, "garbage")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	assert.Zero(t, s.Hub().Users())
}
