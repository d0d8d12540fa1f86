package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"relay/pkg/logger"
)

// Hub tracks live clients and the rooms they are subscribed to. A room is
// either a conversation (conversationRoom) or a single user (userRoom).
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
	closing bool

	wg  sync.WaitGroup
	log logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		joined:  make(map[*Client]map[string]struct{}),
		log:     log,
	}
}

var errHubClosed = errors.New("hub is shutting down")

func conversationRoom(conversationID string) string { return "conversation:" + conversationID }

func userRoom(userID string) string { return "user:" + userID }

func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return errHubClosed
	}
	h.clients[c] = struct{}{}
	h.joined[c] = make(map[string]struct{})
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("Client registered", "conn_id", c.ID, "user_id", c.UserID, "total", total)
	return nil
}

// Unregister removes c from every room it joined.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	for room := range h.joined[c] {
		members := h.rooms[room]
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.joined, c)
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	h.log.Debug("Client unregistered", "conn_id", c.ID, "user_id", c.UserID, "total", total)
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.joined[c][room] = struct{}{}
}

// members returns a snapshot so frames are queued without holding the hub lock.
func (h *Hub) members(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members := h.rooms[room]
	out := make([]*Client, 0, len(members))
	for c := range members {
		out = append(out, c)
	}
	return out
}

// EmitRoom queues frame for every client in room accepted by keep (nil keeps
// everyone) and returns how many clients took it.
func (h *Hub) EmitRoom(room string, frame []byte, keep func(*Client) bool) int {
	sent := 0
	for _, c := range h.members(room) {
		if keep != nil && !keep(c) {
			continue
		}
		if c.Send(frame) {
			sent++
		}
	}
	return sent
}

func (h *Hub) EmitUser(userID string, frame []byte) int {
	return h.EmitRoom(userRoom(userID), frame, nil)
}

func (h *Hub) EmitAll(frame []byte) int {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	sent := 0
	for _, c := range clients {
		if c.Send(frame) {
			sent++
		}
	}
	return sent
}

// Reachable returns the users among userIDs with at least one live client
// subscribed to the conversation room.
func (h *Hub) Reachable(conversationID string, userIDs []string) []string {
	want := make(map[string]struct{}, len(userIDs))
	for _, id := range userIDs {
		want[id] = struct{}{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	found := make(map[string]struct{})
	for c := range h.rooms[conversationRoom(conversationID)] {
		if _, ok := want[c.UserID]; ok && !c.Closed() {
			found[c.UserID] = struct{}{}
		}
	}

	out := make([]string, 0, len(found))
	for _, id := range userIDs {
		if _, ok := found[id]; ok {
			out = append(out, id)
			delete(found, id)
		}
	}
	return out
}

func (h *Hub) inRoom(c *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[room][c]
	return ok
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// enter counts a connection that Shutdown must wait for. It reports false
// once Shutdown has started; the caller then owns nothing and must call leave
// only after a true result.
func (h *Hub) enter() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.wg.Add(1)
	return true
}

func (h *Hub) leave() {
	h.wg.Done()
}

// track runs fn as a connection goroutine that Shutdown waits for. Only call
// it between enter and leave.
func (h *Hub) track(fn func()) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
}

// Shutdown closes every client and waits for their goroutines until ctx is done.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.log.Info("Closing realtime connections", "count", len(clients))
	for _, c := range clients {
		c.Close()
		if c.conn != nil {
			_ = c.conn.SetReadDeadline(time.Now())
		}
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
