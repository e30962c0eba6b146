// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/beatroom/network"
)

// Session binds a player id to its connection.
type Session struct {
	ID         string
	Conn       network.Connection
	CreatedAt time.Time
}

func NewSession(id string, conn network.Connection) *Session {
	return &Session{
		ID:        id,
		Conn:      conn,
		CreatedAt: time.Now(),
	}
}

// Send queues an already encoded payload for the client.
func (s *Session) Send(event string, data []byte) error {
	return s.Conn.Send(event, data)
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Session管理器
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// CloseAll closes every connection, e.g. on shutdown.
func (m *Manager) CloseAll() {
	m.mutex.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mutex.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}
