package streaming

import (
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config bounds the behaviour of every session created by a Manager
type Config struct {
	// PartialThresholdBytes triggers a partial pass once the buffer reaches it
	PartialThresholdBytes int
	// MaxBufferBytes is the hard cap on audio held without a successful pass
	MaxBufferBytes int
	// TranscribeTimeout bounds a single pass; zero means no limit
	TranscribeTimeout time.Duration
	// IdleTimeout is how long a session may go without inbound frames
	IdleTimeout time.Duration
}

// DefaultConfig assumes 16 kHz mono LINEAR16 audio: a partial pass every
// ~3s and at most a minute of untranscribed audio.
func DefaultConfig() Config {
	return Config{
		PartialThresholdBytes: 96000,
		MaxBufferBytes:        1920000,
		TranscribeTimeout:     30 * time.Second,
		IdleTimeout:           2 * time.Minute,
	}
}

// Validate rejects configurations no session could honour
func (c Config) Validate() error {
	if c.PartialThresholdBytes <= 0 {
		return errors.New("partial threshold must be positive")
	}
	if c.MaxBufferBytes < c.PartialThresholdBytes {
		return errors.New("max buffer must be at least the partial threshold")
	}
	if c.TranscribeTimeout < 0 || c.IdleTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}

// Option customises a Manager
type Option func(*Manager)

// WithObserver attaches an instrumentation sink to every session
func WithObserver(obs Observer) Option {
	return func(m *Manager) {
		if obs != nil {
			m.observer = obs
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// Manager is the registry of live sessions keyed by connection identity
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg         Config
	transcriber Transcriber
	observer    Observer
	logger      *zap.Logger
	now         func() time.Time
}

// NewManager creates an empty registry
func NewManager(cfg Config, transcriber Transcriber, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		sessions:    make(map[string]*Session),
		cfg:         cfg,
		transcriber: transcriber,
		observer:    nopObserver{},
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Config returns the session limits in effect
func (m *Manager) Config() Config {
	return m.cfg
}

// Open registers a new IDLE session for connID
func (m *Manager) Open(connID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[connID]; ok {
		return nil, &DuplicateSessionError{ConnectionID: connID, SessionID: existing.ID}
	}

	s := newSession(connID, m.cfg, m.transcriber, m.observer, m.logger, m.now)
	m.sessions[connID] = s
	m.observer.SessionOpened()

	m.logger.Debug("Session opened",
		zap.String("connectionID", connID),
		zap.String("sessionID", s.ID),
		zap.Int("activeSessions", len(m.sessions)))
	return s, nil
}

// Get looks up the session owned by connID
func (m *Manager) Get(connID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[connID]
	return s, ok
}

// Close removes the session for connID and releases its buffer. A session
// that is still open is aborted first. Closing an unknown identity is a no-op.
// It must be called from the connection's own worker.
func (m *Manager) Close(connID string) {
	m.mu.Lock()
	s, ok := m.sessions[connID]
	if ok {
		delete(m.sessions, connID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	if s.State() != StateClosed {
		s.Abort()
	}
	s.release()
	m.observer.SessionClosed(s.CloseReason())
}

// Idle returns the connections whose sessions saw no activity within IdleTimeout
func (m *Manager) Idle(now time.Time) []string {
	if m.cfg.IdleTimeout <= 0 {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for connID, s := range m.sessions {
		if now.Sub(s.LastActivity()) >= m.cfg.IdleTimeout {
			ids = append(ids, connID)
		}
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// IDs returns the connection identities of all live sessions
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for connID := range m.sessions {
		ids = append(ids, connID)
	}
	sort.Strings(ids)
	return ids
}
