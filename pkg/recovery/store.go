// Package recovery issues and manages account-recovery tokens. The operator
// CLI uses it to hand a recovery link to a locked-out user; a background
// sweeper deactivates tokens that were never used.
package recovery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stchstepan/passbolt/pkg/model"
)

// Token types persisted in authentication_tokens.
const (
	TypeRecover  = "recover"
	TypeRegister = "register"
)

// ErrNoActiveToken is returned when a user has no active token of the
// requested type.
var ErrNoActiveToken = errors.New("no active token")

// Token is one authentication token row.
type Token struct {
	ID       uuid.UUID  `json:"id"`
	Token    uuid.UUID  `json:"token"`
	UserID   uuid.UUID  `json:"user_id"`
	Type     string     `json:"type"`
	Active   bool       `json:"active"`
	Created  model.Time `json:"created"`
	Modified model.Time `json:"modified"`
}

// Store persists authentication tokens in postgres.
type Store struct {
	db *sql.DB
}

// NewStore creates a token store over the given connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ActiveToken returns the most recent active token of the given type for the
// user, or ErrNoActiveToken.
func (s *Store) ActiveToken(ctx context.Context, userID uuid.UUID, tokenType string) (*Token, error) {
	query := `
		SELECT id, token, user_id, type, active, created, modified
		FROM authentication_tokens
		WHERE user_id = $1 AND type = $2 AND active = TRUE
		ORDER BY created DESC
		LIMIT 1`

	var token Token
	var created, modified time.Time
	err := s.db.QueryRowContext(ctx, query, userID, tokenType).Scan(
		&token.ID, &token.Token, &token.UserID, &token.Type, &token.Active,
		&created, &modified,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query active token: %w", err)
	}
	token.Created = model.NewTime(created)
	token.Modified = model.NewTime(modified)

	return &token, nil
}

// Create inserts a fresh active token for the user.
func (s *Store) Create(ctx context.Context, userID uuid.UUID, tokenType string) (*Token, error) {
	token := &Token{
		ID:     uuid.New(),
		Token:  uuid.New(),
		UserID: userID,
		Type:   tokenType,
		Active: true,
	}

	query := `
		INSERT INTO authentication_tokens (id, token, user_id, type, active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING created, modified`

	var created, modified time.Time
	err := s.db.QueryRowContext(ctx, query, token.ID, token.Token, token.UserID, token.Type).
		Scan(&created, &modified)
	if err != nil {
		return nil, fmt.Errorf("failed to create token: %w", err)
	}
	token.Created = model.NewTime(created)
	token.Modified = model.NewTime(modified)

	return token, nil
}

// Deactivate marks the token inactive.
func (s *Store) Deactivate(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE authentication_tokens SET active = FALSE, modified = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate token: %w", err)
	}
	return nil
}

// DeactivateExpired marks every active token of the given type older than the
// lifetime as inactive and returns how many rows changed.
func (s *Store) DeactivateExpired(ctx context.Context, tokenType string, lifetime time.Duration) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE authentication_tokens
		SET active = FALSE, modified = NOW()
		WHERE type = $1 AND active = TRUE AND created < NOW() - $2::interval`,
		tokenType, fmt.Sprintf("%d seconds", int(lifetime.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired tokens: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deactivated tokens: %w", err)
	}
	return rows, nil
}
