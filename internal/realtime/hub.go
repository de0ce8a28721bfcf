// Package realtime keeps the live websocket connections of authenticated
// users and pushes events to them.
//
// ROOMS:
// Every connection joins the room keyed by its user ID. A user with two
// browser tabs open has two members in the same room and both receive every
// push. Rooms live only in memory; a restart drops them and clients must
// handshake again.
package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// sendBuffer is the number of frames a slow client may fall behind before
// further pushes to it are dropped.
const sendBuffer = 16

// Envelope is the frame written to the client for every push.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Client is one open connection in a user's room.
type Client struct {
	userID int64
	send   chan []byte
}

// NewClient creates a client for userID. Frames pushed to it are read from
// Messages by whoever owns the connection.
func NewClient(userID int64) *Client {
	return &Client{userID: userID, send: make(chan []byte, sendBuffer)}
}

func (c *Client) UserID() int64 { return c.userID }

// Messages returns the frames pushed to this client.
func (c *Client) Messages() <-chan []byte { return c.send }

// Hub is the registry of rooms. It is safe for concurrent use; connections
// join and leave from their own goroutines while pushes arrive from request
// goroutines.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[int64]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[int64]map[*Client]struct{}),
		logger: logger,
	}
}

// Add subscribes c to its user's room.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.userID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.userID] = room
	}
	room[c] = struct{}{}
}

// Remove drops c from its room and deletes the room once it is empty.
// Removing a client twice is a no-op.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.userID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.userID)
	}
}

// PushToUser sends event to every connection of userID and reports how many
// accepted the frame. A user with no open connections is not an error: the
// push is dropped and 0 is returned.
//
// Delivery never blocks. A client whose buffer is full misses this frame.
func (h *Hub) PushToUser(userID int64, event string, data any) (int, error) {
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return 0, fmt.Errorf("encoding %s event: %w", event, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for c := range h.rooms[userID] {
		select {
		case c.send <- frame:
			delivered++
		default:
			h.logger.Warn("dropping push for slow connection",
				slog.Int64("userID", userID),
				slog.String("event", event),
			)
		}
	}
	return delivered, nil
}

// Connections returns the number of open connections of userID.
func (h *Hub) Connections(userID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Users returns the number of users with at least one open connection.
// It is diagnostic: the gate logs it, and nothing routes on it.
func (h *Hub) Users() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}
