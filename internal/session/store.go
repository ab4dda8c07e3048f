// Package session owns the record of who is using a browser client right now.
// The record is mirrored into a durable key-value backend so a returning
// client is still signed in.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SnapshotKey is the only key a Store writes, namespaced per client.
const SnapshotKey = "user"

var (
	// ErrInvalidSession is returned when a user record has no email
	ErrInvalidSession = errors.New("invalid session: email is required")
	// ErrInvalidRole is returned for roles outside the enumeration or not open to self-service
	ErrInvalidRole = errors.New("invalid role")
	// ErrRoleSwitchForbidden is returned when an admin session tries to switch role
	ErrRoleSwitchForbidden = errors.New("role switch not allowed for this account")
)

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the expiry of the persisted snapshot. Zero means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithLogger sets the logger used for best-effort persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store holds the current session of one client. All mutation goes through
// Login, Logout and SwitchRole; each one updates memory first and then
// rewrites the snapshot.
type Store struct {
	backend  Backend
	clientID string
	key      string
	ttl      time.Duration
	logger   *slog.Logger

	mu        sync.Mutex
	user      *User
	observers map[int]Observer
	nextObs   int
}

// New creates an anonymous store for clientID. Call Initialize to adopt a
// persisted snapshot.
func New(backend Backend, clientID string, opts ...Option) *Store {
	s := &Store{
		backend:   backend,
		clientID:  clientID,
		key:       KeyFor(clientID),
		logger:    slog.Default(),
		observers: make(map[int]Observer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KeyFor returns the backend key of the snapshot for clientID.
func KeyFor(clientID string) string {
	return fmt.Sprintf("client:%s:%s", clientID, SnapshotKey)
}

// ClientID returns the client this store belongs to.
func (s *Store) ClientID() string {
	return s.clientID
}

// Initialize adopts the persisted snapshot when it is well formed. Missing,
// unreadable or malformed snapshots leave the store anonymous.
func (s *Store) Initialize(ctx context.Context) {
	raw, err := s.backend.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("Failed to read session snapshot",
				"client_id", s.clientID,
				"error", err,
			)
		}
		s.set(nil)
		return
	}

	user, err := decodeSnapshot(raw)
	if err != nil {
		s.logger.Debug("Ignoring malformed session snapshot",
			"client_id", s.clientID,
			"error", err,
		)
		s.set(nil)
		return
	}

	s.set(&user)
}

// decodeSnapshot parses raw and checks it carries an email and a known role.
func decodeSnapshot(raw string) (User, error) {
	var user User
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return User{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	if err := user.validate(); err != nil {
		return User{}, err
	}
	return user, nil
}

// Current returns a copy of the active session.
func (s *Store) Current() (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// Login replaces any previous session with user and persists it. Records
// without an email or with an unknown role are rejected and nothing changes.
func (s *Store) Login(ctx context.Context, user User) error {
	if err := user.validate(); err != nil {
		return err
	}

	next := user
	prev := s.swap(&next)
	s.persist(ctx, next)
	s.notify(Change{Kind: ChangeLogin, Previous: prev, Current: &next})
	return nil
}

// Logout clears the session and its snapshot. Calling it while anonymous is
// a no-op apart from removing any stale snapshot.
func (s *Store) Logout(ctx context.Context) {
	prev := s.swap(nil)

	if err := s.backend.Delete(ctx, s.key); err != nil {
		s.logger.Warn("Failed to delete session snapshot",
			"client_id", s.clientID,
			"error", err,
		)
	}

	if prev != nil {
		s.notify(Change{Kind: ChangeLogout, Previous: prev})
	}
}

// SwitchRole changes only the role of the active session and persists the
// result. Without a session it does nothing. Only buyer and seller are valid
// targets, and admin sessions cannot switch.
func (s *Store) SwitchRole(ctx context.Context, role Role) error {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil
	}
	if !role.SelfService() {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if s.user.Role == RoleAdmin {
		s.mu.Unlock()
		return ErrRoleSwitchForbidden
	}
	prev := *s.user
	next := prev
	next.Role = role
	s.user = &next
	s.mu.Unlock()

	s.persist(ctx, next)
	s.notify(Change{Kind: ChangeRoleSwitched, Previous: &prev, Current: &next})
	return nil
}

// Subscribe registers observer for future changes and returns a function
// that removes it.
func (s *Store) Subscribe(observer Observer) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextObs
	s.nextObs++
	s.observers[id] = observer

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.observers, id)
	}
}

func (s *Store) set(user *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// swap installs user and returns a copy of what was there before.
func (s *Store) swap(user *User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.user
	s.user = user
	if prev == nil {
		return nil
	}
	cp := *prev
	return &cp
}

// persist writes the snapshot. Failures only cost the convenience of staying
// signed in, so they are logged and dropped.
func (s *Store) persist(ctx context.Context, user User) {
	data, err := json.Marshal(user)
	if err != nil {
		s.logger.Warn("Failed to marshal session snapshot",
			"client_id", s.clientID,
			"error", err,
		)
		return
	}

	if err := s.backend.Set(ctx, s.key, string(data), s.ttl); err != nil {
		s.logger.Warn("Failed to persist session snapshot",
			"client_id", s.clientID,
			"error", err,
		)
	}
}

func (s *Store) notify(change Change) {
	change.ClientID = s.clientID

	s.mu.Lock()
	observers := make([]Observer, 0, len(s.observers))
	for _, obs := range s.observers {
		observers = append(observers, obs)
	}
	s.mu.Unlock()

	for _, obs := range observers {
		obs(change)
	}
}
