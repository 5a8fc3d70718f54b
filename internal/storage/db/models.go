package db

import (
	"database/sql"
	"time"
)

// User is a row in the users table. PasswordHash is a bcrypt hash and is
// never exposed to page rendering.
type User struct {
	ID           uint64
	Name         string
	PasswordHash []byte
}

// Session is a row in the sessions table. Token is the opaque identifier
// handed to the browser; CaseID holds the last case number the session
// submitted, if any.
type Session struct {
	Token     string
	UserID    uint64
	CaseID    sql.NullInt64
	CreatedAt time.Time
	ExpiresAt time.Time
}
