package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Hub is the room registry: the authoritative map of room -> connected
// members used for fan-out. Pure in-memory bookkeeping, no failure modes.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]*room
	byConn map[*clientConn]string // reverse index for Leave
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]*room),
		byConn: make(map[*clientConn]string),
	}
}

// Join registers the connection in roomID, creating the room lazily. A
// connection is in at most one room: joining a second room leaves the first.
// Joining the same room twice is a no-op.
func (h *Hub) Join(roomID string, c *clientConn) {
	h.mu.Lock()
	if prev, ok := h.byConn[c]; ok {
		if prev == roomID {
			h.mu.Unlock()
			return
		}
		h.removeLocked(prev, c)
	}
	r, ok := h.rooms[roomID]
	if !ok {
		r = newRoom()
		h.rooms[roomID] = r
	}
	h.byConn[c] = roomID
	// add under h.mu so a concurrent leave cannot prune the room between
	// registering the conn and inserting it.
	r.add(c)
	h.mu.Unlock()
}

// Leave removes the connection from whatever room it is in. No-op for
// connections that never joined.
func (h *Hub) Leave(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	roomID, ok := h.byConn[c]
	if !ok {
		return
	}
	h.removeLocked(roomID, c)
	delete(h.byConn, c)
}

func (h *Hub) removeLocked(roomID string, c *clientConn) {
	r, ok := h.rooms[roomID]
	if !ok {
		return
	}
	r.remove(c)
	if r.size() == 0 {
		delete(h.rooms, roomID)
	}
}

// Room reports which room the connection currently occupies.
func (h *Hub) Room(c *clientConn) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	roomID, ok := h.byConn[c]
	return roomID, ok
}

// MemberCount returns 0 for unknown rooms.
func (h *Hub) MemberCount(roomID string) int {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return 0
	}
	return r.size()
}

func (h *Hub) members(roomID string) []*clientConn {
	h.mu.RLock()
	r, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	return r.snapshot()
}

// Broadcast delivers the frame to every current member of the room,
// including the sender. A failed write evicts only that connection; the
// remaining members still get the frame.
func (h *Hub) Broadcast(roomID string, frame []byte) {
	var failed []*clientConn
	for _, c := range h.members(roomID) {
		if err := c.write(websocket.TextMessage, frame); err != nil {
			failed = append(failed, c)
		}
	}
	for _, c := range failed {
		h.Leave(c)
		c.close()
	}
}
