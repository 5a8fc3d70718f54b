// Package storage provides the state management for users and their login
// sessions.
package storage

import (
	"context"
	"time"

	"github.com/stolasapp/caseview/internal/storage/db"
)

const (
	// ErrNotFound is returned when a user or session cannot be found.
	ErrNotFound Error = "not found"
	// ErrAlreadyExists is returned if a unique user already exists.
	ErrAlreadyExists Error = "already exists"
	// ErrInvalidUsername is returned when a username fails validation.
	ErrInvalidUsername Error = "username must be 3-64 characters, alphanumeric and underscores only"
	// ErrInternal is returned for any other type of error.
	ErrInternal Error = "internal error"
)

// Error is an error type returned by the storage implementation.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// Users are the methods on a storage implementation that are responsible for
// accessing and modifying users.
type Users interface {
	// CreateUser inserts a new user and returns it with its assigned ID. An
	// [ErrAlreadyExists] error is returned if the username is already in use;
	// an existing row is never overwritten.
	CreateUser(ctx context.Context, user db.User) (db.User, error)
	// UpdatePassword replaces the password hash for the named user. An
	// [ErrNotFound] is returned if no such user exists. The previous hash is
	// not retained.
	UpdatePassword(ctx context.Context, name string, passwordHash []byte) error
	// GetUser returns a single user with the specified ID. An [ErrNotFound] is
	// returned if the user ID does not exist.
	GetUser(ctx context.Context, userID uint64) (db.User, error)
	// GetUserByName returns a single user with the specified name. An
	// [ErrNotFound] is returned if the user name does not exist.
	GetUserByName(ctx context.Context, name string) (db.User, error)
	// ListUsers returns the users in a list, paginated by the given name (if
	// provided) up to the given limit of records.
	ListUsers(ctx context.Context, afterName string, limit int32) ([]db.User, error)
	// DeleteUser removes a user and any sessions bound to them. Note that this
	// is a hard delete; data is not recoverable.
	DeleteUser(ctx context.Context, userID uint64) error
}

// Sessions are the methods on a storage implementation that map opaque
// session tokens to users, with expiry.
type Sessions interface {
	// CreateSession inserts a new session row.
	CreateSession(ctx context.Context, session db.Session) error
	// GetSession returns the session for the given token. An [ErrNotFound] is
	// returned for unknown tokens; expiry is the caller's concern.
	GetSession(ctx context.Context, token string) (db.Session, error)
	// SetSessionCase records the submitted case number on the session. An
	// [ErrNotFound] is returned for unknown tokens.
	SetSessionCase(ctx context.Context, token string, caseID int64) error
	// DeleteSession removes the session for the given token. Deleting an
	// unknown token is not an error.
	DeleteSession(ctx context.Context, token string) error
	// DeleteExpiredSessions removes every session that expired before now and
	// reports how many rows were swept.
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Store is the combination interface for [Users] and [Sessions].
type Store interface {
	Users
	Sessions
	// Close releases any resources held by the store. An error is returned if
	// the store cannot be cleanly closed.
	Close() error
}
