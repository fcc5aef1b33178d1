// Package users provides read access to user accounts for authentication and
// operator tooling.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stchstepan/passbolt/pkg/model"
)

// ErrNotFound is returned when no matching user exists.
var ErrNotFound = errors.New("user not found")

// Store reads user accounts from postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a user store over the given connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const userSelect = `
	SELECT u.id, u.username, ro.name, u.active, u.deleted, u.disabled,
	       u.created, u.modified,
	       p.id, p.user_id, p.first_name, p.last_name
	FROM users u
	INNER JOIN roles ro ON ro.id = u.role_id
	LEFT JOIN profiles p ON p.user_id = u.id`

// ByID returns the non-deleted user with the given id, or ErrNotFound.
func (s *Store) ByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, userSelect+` WHERE u.id = $1 AND u.deleted = FALSE`, id)
	return scanUser(row)
}

// ByUsername returns the non-deleted user with the given username, or
// ErrNotFound. Usernames compare case-insensitively.
func (s *Store) ByUsername(ctx context.Context, username string) (*model.User, error) {
	row := s.db.QueryRowContext(ctx,
		userSelect+` WHERE LOWER(u.username) = LOWER($1) AND u.deleted = FALSE`, username)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var user model.User
	var role string
	var disabled sql.NullTime
	var created, modified time.Time
	var profileID, profileUserID uuid.NullUUID
	var firstName, lastName sql.NullString

	err := row.Scan(
		&user.ID, &user.Username, &role, &user.Active, &user.Deleted, &disabled,
		&created, &modified,
		&profileID, &profileUserID, &firstName, &lastName,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	user.Role = model.RoleName(role)
	if disabled.Valid {
		t := disabled.Time
		user.Disabled = &t
	}
	user.Created = model.NewTime(created)
	user.Modified = model.NewTime(modified)
	if profileID.Valid {
		user.Profile = &model.Profile{
			ID:        profileID.UUID,
			UserID:    profileUserID.UUID,
			FirstName: firstName.String,
			LastName:  lastName.String,
		}
	}

	return &user, nil
}
