package storage

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"math/rand/v2"
	"regexp"
	"time"

	"github.com/influxdata/influxdb/pkg/snowflake"

	"github.com/stolasapp/caseview/internal/storage/db"
)

// Username validation constraints.
const (
	minUsernameLen = 3
	maxUsernameLen = 64
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// validateUsername validates that a username meets the requirements:
// 3-64 characters, alphanumeric and underscores only.
func validateUsername(name string) bool {
	return len(name) >= minUsernameLen &&
		len(name) <= maxUsernameLen &&
		usernameRegex.MatchString(name)
}

// DB is a [Store] backed by a SQLite database.
type DB struct {
	ids *snowflake.Generator
	db  *sql.DB
}

// NewDB initializes a DB at the given file path, creating and migrating the
// database as needed.
func NewDB(ctx context.Context, logger *slog.Logger, dbPath string) (*DB, error) {
	handle, err := db.Open(ctx, logger, dbPath)
	if err != nil {
		return nil, err
	}
	return &DB{
		ids: snowflake.New(rand.IntN(1023)), //nolint:gosec,mnd // this isn't for crypto
		db:  handle,
	}, nil
}

// Close satisfies the [Store] interface.
func (d *DB) Close() error {
	return d.db.Close()
}

// CreateUser satisfies the [Users] interface.
func (d *DB) CreateUser(ctx context.Context, user db.User) (db.User, error) {
	if !validateUsername(user.Name) {
		return user, ErrInvalidUsername
	}
	if user.ID == 0 {
		user.ID = d.ids.Next()
	}
	const query = `
	insert into users (id, name, password_hash) values (?, ?, ?)
	on conflict (name) do nothing
	returning id`
	var id uint64
	switch err := d.db.QueryRowContext(ctx, query, user.ID, user.Name, user.PasswordHash).Scan(&id); {
	case errors.Is(err, sql.ErrNoRows):
		return user, ErrAlreadyExists
	case err != nil:
		return user, err
	default:
		user.ID = id
		return user, nil
	}
}

// UpdatePassword satisfies the [Users] interface.
func (d *DB) UpdatePassword(ctx context.Context, name string, passwordHash []byte) error {
	const query = `update users set password_hash = ? where name = ? returning id`
	var id uint64
	err := d.db.QueryRowContext(ctx, query, passwordHash, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// GetUser satisfies the [Users] interface.
func (d *DB) GetUser(ctx context.Context, userID uint64) (db.User, error) {
	const query = `select id, name, password_hash from users where id = ?`
	return scanUser(d.db.QueryRowContext(ctx, query, userID))
}

// GetUserByName satisfies the [Users] interface.
func (d *DB) GetUserByName(ctx context.Context, name string) (db.User, error) {
	const query = `select id, name, password_hash from users where name = ?`
	return scanUser(d.db.QueryRowContext(ctx, query, name))
}

func scanUser(row *sql.Row) (db.User, error) {
	var user db.User
	err := row.Scan(&user.ID, &user.Name, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return user, ErrNotFound
	}
	return user, err
}

// ListUsers satisfies the [Users] interface.
func (d *DB) ListUsers(ctx context.Context, afterName string, limit int32) ([]db.User, error) {
	const query = `
	select id, name, password_hash from users
	where name > ? order by name limit ?`
	rows, err := d.db.QueryContext(ctx, query, afterName, int64(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // read-only rows

	var users []db.User
	for rows.Next() {
		var user db.User
		if err := rows.Scan(&user.ID, &user.Name, &user.PasswordHash); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// DeleteUser satisfies the [Users] interface.
func (d *DB) DeleteUser(ctx context.Context, userID uint64) error {
	const query = `delete from users where id = ?`
	_, err := d.db.ExecContext(ctx, query, userID)
	return err
}

// CreateSession satisfies the [Sessions] interface.
func (d *DB) CreateSession(ctx context.Context, session db.Session) error {
	const query = `
	insert into sessions (token, user_id, case_id, created_at, expires_at)
	values (?, ?, ?, ?, ?)`
	_, err := d.db.ExecContext(ctx, query,
		session.Token, session.UserID, session.CaseID,
		session.CreatedAt, session.ExpiresAt,
	)
	return err
}

// GetSession satisfies the [Sessions] interface.
func (d *DB) GetSession(ctx context.Context, token string) (db.Session, error) {
	const query = `
	select token, user_id, case_id, created_at, expires_at
	from sessions where token = ?`
	var session db.Session
	err := d.db.QueryRowContext(ctx, query, token).Scan(
		&session.Token, &session.UserID, &session.CaseID,
		&session.CreatedAt, &session.ExpiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return session, ErrNotFound
	}
	return session, err
}

// SetSessionCase satisfies the [Sessions] interface.
func (d *DB) SetSessionCase(ctx context.Context, token string, caseID int64) error {
	const query = `update sessions set case_id = ? where token = ? returning token`
	var updated string
	err := d.db.QueryRowContext(ctx, query, caseID, token).Scan(&updated)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// DeleteSession satisfies the [Sessions] interface.
func (d *DB) DeleteSession(ctx context.Context, token string) error {
	const query = `delete from sessions where token = ?`
	_, err := d.db.ExecContext(ctx, query, token)
	return err
}

// DeleteExpiredSessions satisfies the [Sessions] interface.
func (d *DB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	const query = `delete from sessions where expires_at < ?`
	res, err := d.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

var _ Store = (*DB)(nil)
