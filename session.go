package linkauthn

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const (
	// DefaultSessionTTL is the default for SessionConfig.TTL.
	DefaultSessionTTL = 300 * time.Second

	// sessionGCGrace is added to the TTL passed to SessionStore.Save, so stores
	// don't drop a session before SessionManager considers it expired.
	sessionGCGrace = time.Minute
)

// Session is the server side state of a logged in client.
type Session struct {
	// ID is the opaque reference handed to the client.
	ID string `json:"id"`

	UID   int64  `json:"uid"`
	Email string `json:"email"`

	// Secret that was redeemed to open the session (already consumed).
	Secret string `json:"secret"`

	// CreatedAt is the time of the redemption.
	CreatedAt time.Time `json:"created"`

	// Client information at the time of the redemption.
	Client *Client `json:"client,omitempty"`
}

// Identity returns the identity of the session owner.
func (s *Session) Identity() Identity {
	return Identity{UID: s.UID, Email: s.Email}
}

// SessionStore persists sessions by ID.
type SessionStore interface {
	// Save stores sess under sess.ID. ttl is a hint for garbage collection;
	// expiry is decided by SessionManager.
	Save(ctx context.Context, sess *Session, ttl time.Duration) error

	// Load returns the session with the given ID, or ErrNoSession.
	Load(ctx context.Context, id string) (*Session, error)

	// Delete removes the session with the given ID. Deleting a missing
	// session is not an error.
	Delete(ctx context.Context, id string) error
}

// SessionConfig holds SessionManager configuration.
// A zero value is a valid configuration, see constants for default values.
type SessionConfig struct {
	// TTL tells how long a session remains valid after it was opened.
	// Sessions are not extended by activity.
	TTL time.Duration `yaml:"ttl"`

	// Clock is the source of time for expiry checks.
	Clock clockwork.Clock `yaml:"-"`
}

// SessionManager opens, validates and destroys sessions.
// It's safe to use it concurrently from multiple goroutines.
type SessionManager struct {
	store SessionStore
	cfg   SessionConfig
}

// NewSessionManager creates a new SessionManager.
// This function panics if store is nil.
func NewSessionManager(store SessionStore, cfg SessionConfig) *SessionManager {
	if store == nil {
		panic("store must be provided")
	}
	if cfg.TTL == 0 {
		cfg.TTL = DefaultSessionTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	return &SessionManager{store: store, cfg: cfg}
}

// Config returns the effective configuration (with defaults applied).
func (m *SessionManager) Config() SessionConfig {
	return m.cfg
}

// Open opens a new session for a redeemed identity.
// Should only be called with the result of a successful Authenticator.Redeem().
//
// prevID is the session reference the client presented, if any; that session
// is destroyed, so a client never holds more than one session. The new
// session always gets a new ID.
func (m *SessionManager) Open(ctx context.Context, prevID string, id Identity, secret string, client *Client) (*Session, error) {
	if prevID != "" {
		if err := m.store.Delete(ctx, prevID); err != nil {
			return nil, fmt.Errorf("failed to destroy previous session: %w", err)
		}
	}

	sess := &Session{
		ID:        uuid.NewString(),
		UID:       id.UID,
		Email:     id.Email,
		Secret:    secret,
		CreatedAt: m.cfg.Clock.Now(),
		Client:    client,
	}
	if err := m.store.Save(ctx, sess, m.cfg.TTL+sessionGCGrace); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return sess, nil
}

// Validate returns the session with the given ID if it's still active.
// ErrNoSession is returned if there is no such session, ErrSessionExpired if
// it's older than the configured TTL. Expired sessions must be destroyed by
// the caller.
func (m *SessionManager) Validate(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, ErrNoSession
	}
	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.cfg.Clock.Since(sess.CreatedAt) > m.cfg.TTL {
		return sess, ErrSessionExpired
	}
	return sess, nil
}

// Destroy destroys the session with the given ID.
// Destroying a missing session is a no-op.
func (m *SessionManager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	return nil
}

// MemorySessionStore is a SessionStore keeping sessions in memory.
// Sessions are dropped once the ttl passed to Save elapses (wall clock),
// lazily, on subsequent saves.
// It's safe to use it concurrently from multiple goroutines.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]memSession
}

type memSession struct {
	Session
	purgeAt time.Time
}

// NewMemorySessionStore creates a new MemorySessionStore.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]memSession{}}
}

// Save implements SessionStore.
func (s *MemorySessionStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	if sess == nil || sess.ID == "" {
		return errors.New("session ID must be provided")
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ms := range s.sessions {
		if now.After(ms.purgeAt) {
			delete(s.sessions, id)
		}
	}
	s.sessions[sess.ID] = memSession{Session: *sess, purgeAt: now.Add(ttl)}
	return nil
}

// Load implements SessionStore.
func (s *MemorySessionStore) Load(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	ms, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return nil, ErrNoSession
	}
	return &ms.Session, nil
}

// Delete implements SessionStore.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored sessions.
func (s *MemorySessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
