// Package chat holds per-connection session state: who a connection is
// (anonymous handle) and which room it last joined.
package chat

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// Session is the server-side identity of one live connection. It is created
// on connect, gains a handle and room on the first join, and is destroyed on
// disconnect. Only the owning connection's goroutine reads it; all mutation
// goes through the SessionManager.
type Session struct {
	ID     string
	Handle string
	Room   string
}

type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*Session)}
}

// Create registers a fresh session with no handle and no room.
func (m *SessionManager) Create() *Session {
	s := &Session{ID: uuid.NewString()}
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// AssignHandle gives the session its anonymous handle. The handle is
// assigned once; later joins keep the original. Unknown sessions get an
// empty handle back.
func (m *SessionManager) AssignHandle(sessionID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return ""
	}
	if s.Handle == "" {
		s.Handle = RandomHandle()
	}
	return s.Handle
}

// SetRoom records the room the session last joined.
func (m *SessionManager) SetRoom(sessionID, roomID string) {
	m.mu.Lock()
	if s, ok := m.sessions[sessionID]; ok {
		s.Room = roomID
	}
	m.mu.Unlock()
}

// Destroy drops the session. Safe to call twice.
func (m *SessionManager) Destroy(sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RandomHandle returns "Anon-" plus 6 lowercase hex chars. 24 bits is weak
// enough that collisions can happen; they are tolerated, not an error.
func RandomHandle() string {
	var b [3]byte
	_, _ = rand.Read(b[:])
	return "Anon-" + hex.EncodeToString(b[:])
}
