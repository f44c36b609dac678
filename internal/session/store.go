package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/digital-library-api/internal/models"
	"github.com/noah-isme/digital-library-api/pkg/config"
)

// ErrNotFound is returned when a session id does not resolve to stored data.
var ErrNotFound = errors.New("session not found")

// Data is the server-side session payload: the authenticated principal plus
// at most one pending success and one pending error flash message. Flashes
// are consumed exactly once via PopFlashes.
type Data struct {
	Principal *models.Principal `json:"principal,omitempty"`
	Success   string            `json:"success,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Manager stores sessions in Redis keyed by an opaque id delivered via
// cookie. It is injected explicitly everywhere a session is read so nothing
// depends on ambient process state.
type Manager struct {
	client *redis.Client
	cfg    config.SessionConfig
}

// NewManager constructs the store with defaults applied.
func NewManager(client *redis.Client, cfg config.SessionConfig) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "library_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	return &Manager{client: client, cfg: cfg}
}

// CookieName returns the configured session cookie name.
func (m *Manager) CookieName() string { return m.cfg.CookieName }

// TTL returns the session lifetime.
func (m *Manager) TTL() time.Duration { return m.cfg.TTL }

// Secure reports whether the cookie must be marked Secure.
func (m *Manager) Secure() bool { return m.cfg.Secure }

// Create issues a fresh anonymous session.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	s := &Session{ID: uuid.NewString(), manager: m}
	if err := s.save(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Fetch resolves a session id to its stored data.
func (m *Manager) Fetch(ctx context.Context, id string) (*Session, error) {
	raw, err := m.client.Get(ctx, m.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch session: %w", err)
	}
	s := &Session{ID: id, manager: m}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return s, nil
}

// Destroy removes a session entirely.
func (m *Manager) Destroy(ctx context.Context, id string) error {
	if err := m.client.Del(ctx, m.key(id)).Err(); err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

func (m *Manager) key(id string) string { return "session:" + id }

// Session is a handle on one stored session.
type Session struct {
	ID      string
	data    Data
	manager *Manager
}

// Principal returns the authenticated identity, or nil for anonymous
// sessions.
func (s *Session) Principal() *models.Principal {
	return s.data.Principal
}

// Login attaches the principal to the session.
func (s *Session) Login(ctx context.Context, p models.Principal) error {
	s.data.Principal = &p
	return s.save(ctx)
}

// FlashSuccess stores the pending success message, replacing any prior one.
func (s *Session) FlashSuccess(ctx context.Context, msg string) error {
	s.data.Success = msg
	return s.save(ctx)
}

// FlashError stores the pending error message, replacing any prior one.
func (s *Session) FlashError(ctx context.Context, msg string) error {
	s.data.Error = msg
	return s.save(ctx)
}

// PopFlashes returns both pending messages and clears them, so each is
// displayed exactly once.
func (s *Session) PopFlashes(ctx context.Context) (success, errMsg string, err error) {
	success, errMsg = s.data.Success, s.data.Error
	if success == "" && errMsg == "" {
		return "", "", nil
	}
	s.data.Success, s.data.Error = "", ""
	return success, errMsg, s.save(ctx)
}

// Touch refreshes the session TTL (sliding expiration).
func (s *Session) Touch(ctx context.Context) error {
	if err := s.manager.client.Expire(ctx, s.manager.key(s.ID), s.manager.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (s *Session) save(ctx context.Context) error {
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.manager.client.Set(ctx, s.manager.key(s.ID), raw, s.manager.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
