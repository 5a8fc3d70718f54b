// Package session manages server-side login sessions.
//
// A session is an opaque random token handed to the browser in a cookie and
// mapped, through the sessions table, to a user id and an expiry. Nothing
// about the principal lives in the cookie itself, so there is no signing key
// to manage and a stolen database backup cannot be replayed into cookies.
//
// Per-session view state (the last submitted case number) lives on the
// session row rather than in process memory, so concurrent sessions never
// observe each other's values.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/stolasapp/caseview/internal/sec"
	"github.com/stolasapp/caseview/internal/storage"
	"github.com/stolasapp/caseview/internal/storage/db"
)

// ErrNotAuthenticated is returned for tokens that are unknown, expired, or
// otherwise unusable. Callers cannot tell the cases apart.
var ErrNotAuthenticated = errors.New("no authenticated session")

// Session lifetimes. Remembered sessions survive browser restarts; plain
// ones are kept short so an abandoned login goes stale the same day.
const (
	DefaultTTL  = 12 * time.Hour
	RememberTTL = 30 * 24 * time.Hour
)

const tokenBytes = 32

// Principal is the authenticated identity bound to a session token.
type Principal struct {
	Token     string
	UserID    uint64
	Username  string
	CaseID    int64
	HasCaseID bool
	ExpiresAt time.Time
}

// Manager turns credentials into sessions and resolves tokens back to
// principals.
type Manager struct {
	store       storage.Store
	ttl         time.Duration
	rememberTTL time.Duration
	now         func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTLs overrides the default and remembered session lifetimes.
func WithTTLs(ttl, rememberTTL time.Duration) Option {
	return func(m *Manager) {
		m.ttl = ttl
		m.rememberTTL = rememberTTL
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager on top of the given store.
func NewManager(store storage.Store, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		ttl:         DefaultTTL,
		rememberTTL: RememberTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login validates the credentials and, on success, creates a session. The
// remember flag selects the extended lifetime. Credential failures resolve to
// [sec.ErrInvalidCredentials] regardless of cause.
func (m *Manager) Login(ctx context.Context, username, password string, remember bool) (Principal, error) {
	user, err := sec.Authenticate(ctx, m.store, username, password)
	if err != nil {
		return Principal{}, err
	}

	token, err := newToken()
	if err != nil {
		return Principal{}, err
	}

	ttl := m.ttl
	if remember {
		ttl = m.rememberTTL
	}
	now := m.now()
	session := db.Session{
		Token:     token,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := m.store.CreateSession(ctx, session); err != nil {
		return Principal{}, fmt.Errorf("failed to create session: %w", err)
	}
	return Principal{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Name,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Get resolves a token to its principal. Expired sessions are deleted lazily
// and reported as [ErrNotAuthenticated].
func (m *Manager) Get(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrNotAuthenticated
	}
	session, err := m.store.GetSession(ctx, token)
	if errors.Is(err, storage.ErrNotFound) {
		return Principal{}, ErrNotAuthenticated
	} else if err != nil {
		return Principal{}, err
	}

	if m.now().After(session.ExpiresAt) {
		if err := m.store.DeleteSession(ctx, token); err != nil {
			return Principal{}, err
		}
		return Principal{}, ErrNotAuthenticated
	}

	user, err := m.store.GetUser(ctx, session.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		// The user was deleted out from under the session.
		return Principal{}, ErrNotAuthenticated
	} else if err != nil {
		return Principal{}, err
	}

	return Principal{
		Token:     session.Token,
		UserID:    user.ID,
		Username:  user.Name,
		CaseID:    session.CaseID.Int64,
		HasCaseID: session.CaseID.Valid,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Logout invalidates the session for the given token. Unknown tokens are a
// no-op.
func (m *Manager) Logout(ctx context.Context, token string) error {
	return m.store.DeleteSession(ctx, token)
}

// SetCaseID records the submitted case number on the session.
func (m *Manager) SetCaseID(ctx context.Context, token string, caseID int64) error {
	err := m.store.SetSessionCase(ctx, token, caseID)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotAuthenticated
	}
	return err
}

// Sweep removes expired sessions and reports how many were deleted.
func (m *Manager) Sweep(ctx context.Context) (int64, error) {
	return m.store.DeleteExpiredSessions(ctx, m.now())
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
