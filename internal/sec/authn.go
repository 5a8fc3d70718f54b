package sec

import (
	"context"
	"errors"

	"github.com/stolasapp/caseview/internal/storage"
	"github.com/stolasapp/caseview/internal/storage/db"
)

// ErrInvalidCredentials is returned whether the user is unknown or the
// password mismatches, so callers cannot tell the two apart.
var ErrInvalidCredentials = errors.New("invalid username or password")

// Authenticate resolves the user for a username/password pair. Any failure
// resolves to [ErrInvalidCredentials].
func Authenticate(ctx context.Context, users storage.Users, username, password string) (db.User, error) {
	user, err := users.GetUserByName(ctx, username)
	if err != nil {
		return user, ErrInvalidCredentials
	}
	if err = ComparePassword(password, user.PasswordHash); err != nil {
		return user, ErrInvalidCredentials
	}
	return user, nil
}
