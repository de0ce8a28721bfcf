package realtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/sakif/starblog/internal/apperror"
	"github.com/sakif/starblog/internal/auth"
)

// Close reasons sent with a policy-violation close frame.
const (
	ReasonNoToken      = "unauthenticated: no token provided"
	ReasonInvalidToken = "unauthenticated: invalid token"
)

const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
)

// ErrConnectionRejected wraps the token error of a failed handshake.
var ErrConnectionRejected = errors.New("connection rejected")

// errHandshakeTimeout marks a rejection whose close frame the handshake
// timer has already sent.
var errHandshakeTimeout = errors.New("handshake timed out")

// Handshake is the first frame a client sends: {"auth":{"token":"..."}}.
type Handshake struct {
	Auth struct {
		Token string `json:"token"`
	} `json:"auth"`
}

// GateConfig tunes the websocket gate. Zero values fall back to defaults.
type GateConfig struct {
	// OriginPatterns are the host patterns allowed to open a connection in
	// addition to the request's own host.
	OriginPatterns   []string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// Gate authenticates websocket connections and subscribes them to their
// user's room in the Hub.
//
// CONNECTION LIFECYCLE:
//
//	connecting → authenticated → subscribed → closed
//	connecting → rejected
//
// The credential arrives in the handshake frame, never as an application
// message. A rejected connection is closed with status 1008 and a reason
// that says whether a token was missing or unusable; the client must open a
// new connection to try again.
type Gate struct {
	hub    *Hub
	tokens auth.Verifier
	logger *slog.Logger
	cfg    GateConfig
}

func NewGate(hub *Hub, tokens auth.Verifier, logger *slog.Logger, cfg GateConfig) *Gate {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	return &Gate{hub: hub, tokens: tokens, logger: logger, cfg: cfg}
}

// ServeHTTP upgrades the request and owns the connection until it closes.
func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: g.cfg.OriginPatterns,
	})
	if err != nil {
		// Accept has already written the HTTP error.
		g.logger.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.CloseNow()

	claims, err := g.authenticate(r.Context(), conn)
	if err != nil {
		reason := ReasonInvalidToken
		if errors.Is(err, apperror.ErrTokenMissing) {
			reason = ReasonNoToken
		}
		g.logger.Info("connection rejected",
			slog.String("remote", r.RemoteAddr),
			slog.String("reason", auth.RejectReason(err)),
		)
		if !errors.Is(err, errHandshakeTimeout) {
			_ = conn.Close(websocket.StatusPolicyViolation, reason)
		}
		return
	}

	client := NewClient(claims.UserID)
	g.hub.Add(client)
	defer g.hub.Remove(client)

	g.logger.Info("connection subscribed",
		slog.Int64("userID", claims.UserID),
		slog.Int("connections", g.hub.Connections(claims.UserID)),
		slog.Int("users", g.hub.Users()),
	)

	// The client never sends after the handshake. CloseRead discards
	// anything it does send and cancels ctx once the peer goes away.
	ctx := conn.CloseRead(r.Context())

	err = g.writeLoop(ctx, conn, client)
	g.logger.Debug("connection closed",
		slog.Int64("userID", claims.UserID),
		slog.String("cause", err.Error()),
	)
}

// authenticate reads the handshake frame and verifies its token.
// A handshake that never arrives or cannot be decoded counts as no token.
//
// The read itself is not bounded by a deadline: a cancelled read makes the
// library drop the connection without a close frame. Instead a timer sends
// the policy-violation close, which in turn ends the pending read.
func (g *Gate) authenticate(ctx context.Context, conn *websocket.Conn) (*auth.Claims, error) {
	timer := time.AfterFunc(g.cfg.HandshakeTimeout, func() {
		_ = conn.Close(websocket.StatusPolicyViolation, ReasonNoToken)
	})

	var hs Handshake
	readErr := wsjson.Read(ctx, conn, &hs)
	if !timer.Stop() {
		return nil, fmt.Errorf("%w: %w: %w", ErrConnectionRejected, errHandshakeTimeout, apperror.ErrTokenMissing)
	}
	if readErr != nil {
		return nil, fmt.Errorf("%w: reading handshake: %w", ErrConnectionRejected, apperror.ErrTokenMissing)
	}

	claims, err := g.tokens.Verify(hs.Auth.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionRejected, err)
	}
	return claims, nil
}

// writeLoop forwards pushed frames until the connection ends. It always
// returns a non-nil error describing why.
func (g *Gate) writeLoop(ctx context.Context, conn *websocket.Conn, client *Client) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame := <-client.Messages():
			wctx, cancel := context.WithTimeout(ctx, g.cfg.WriteTimeout)
			err := conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return fmt.Errorf("writing frame: %w", err)
			}
		}
	}
}
