// Package session owns the table of live MCP connections.
package session

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/server"

	logflaremodel "github.com/logflare-community/logflare-mcp/internal/model/logflare"
)

const (
	// IdleTimeout is the fixed inactivity window after which a session is
	// silently removed. It is measured from creation or the last Touch.
	IdleTimeout = 30 * time.Minute

	sweepInterval = 30 * time.Second
)

var (
	ErrNotFound = errors.New("session: not found")
	// ErrDuplicateID means the transport layer handed out a colliding id,
	// which is a logic error, not a runtime condition to recover from.
	ErrDuplicateID = errors.New("session: id already registered")
)

// Session pairs one live SSE connection with its MCP server instance and the
// credentials captured at creation. Credentials never change afterwards.
type Session struct {
	ID          string
	Server      *server.MCPServer
	Transport   *Transport
	Credentials logflaremodel.Credentials

	lastActive time.Time
}

// Manager maps session ids to live sessions and enforces idle expiry with a
// periodic sweep over last-activity timestamps. All table access goes through
// the mutex; sessions are never reachable outside the table.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock substitutes the time source, for deterministic expiry tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager builds the table and starts the expiry sweeper.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions: make(map[string]*Session),
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	go m.sweepLoop()
	return m
}

// Create registers a new session with a fresh idle window.
func (m *Manager) Create(id string, srv *server.MCPServer, transport *Transport, creds logflaremodel.Credentials) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[id]; exists {
		return nil, ErrDuplicateID
	}

	sess := &Session{
		ID:          id,
		Server:      srv,
		Transport:   transport,
		Credentials: creds,
		lastActive:  m.now(),
	}
	m.sessions[id] = sess
	log.Printf("[session] created %s (%d live)", id, len(m.sessions))
	return sess, nil
}

// Touch refreshes the idle window and returns the session, so message routing
// needs a single lookup. An expired-but-unswept session counts as absent.
func (m *Manager) Touch(id string) (*Session, error) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok && m.expired(sess) {
		delete(m.sessions, id)
		m.mu.Unlock()
		sess.Transport.Close()
		log.Printf("[session] expired %s", id)
		return nil, ErrNotFound
	}
	if !ok {
		m.mu.Unlock()
		return nil, ErrNotFound
	}
	sess.lastActive = m.now()
	m.mu.Unlock()
	return sess, nil
}

// Get is a read-only lookup. Like Touch, it reports expired sessions as
// absent, but it does not refresh the idle window.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	expired := ok && m.expired(sess)
	m.mu.RUnlock()

	if !ok || expired {
		if expired {
			m.Remove(id)
		}
		return nil, ErrNotFound
	}
	return sess, nil
}

// Remove deletes a session and closes its transport. Safe to call any number
// of times from any cleanup path; removing an absent id is a no-op.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	remaining := len(m.sessions)
	m.mu.Unlock()

	if ok {
		sess.Transport.Close()
		log.Printf("[session] removed %s (%d live)", id, remaining)
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops the sweeper and removes every session.
func (m *Manager) Close() {
	m.once.Do(func() { close(m.stop) })

	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Transport.Close()
	}
}

func (m *Manager) expired(sess *Session) bool {
	return m.now().Sub(sess.lastActive) > IdleTimeout
}

func (m *Manager) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep removes every session whose idle window has elapsed.
func (m *Manager) sweep() {
	m.mu.Lock()
	var expired []*Session
	for id, sess := range m.sessions {
		if m.expired(sess) {
			delete(m.sessions, id)
			expired = append(expired, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range expired {
		sess.Transport.Close()
		log.Printf("[session] expired %s", sess.ID)
	}
}
