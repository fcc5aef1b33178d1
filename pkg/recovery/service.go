package recovery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stchstepan/passbolt/pkg/model"
	"github.com/stchstepan/passbolt/pkg/users"
)

// Account-state failures surfaced to the operator CLI.
var (
	ErrUserNotFound = errors.New("the user does not exist or has been deleted")
	ErrUserInactive = errors.New("the user has not completed the setup")
	ErrUserDisabled = errors.New("the user is disabled")
)

// UserFinder resolves an account by username. *users.Store implements it.
type UserFinder interface {
	ByUsername(ctx context.Context, username string) (*model.User, error)
}

// Service issues recovery tokens. An active non-expired token is reused so
// that repeated operator invocations hand out the same link; anything stale
// is deactivated and replaced.
type Service struct {
	store    *Store
	users    UserFinder
	lifetime time.Duration
}

// NewService creates a recovery service. lifetime bounds how long an issued
// token stays valid.
func NewService(store *Store, users UserFinder, lifetime time.Duration) *Service {
	return &Service{store: store, users: users, lifetime: lifetime}
}

// Recover issues (or reuses) a recovery token for the named user and returns
// the user together with the token.
func (s *Service) Recover(ctx context.Context, username string) (*model.User, *Token, error) {
	user, err := s.users.ByUsername(ctx, username)
	if errors.Is(err, users.ErrNotFound) {
		return nil, nil, ErrUserNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if user.Deleted {
		return nil, nil, ErrUserNotFound
	}
	if !user.Active {
		return nil, nil, ErrUserInactive
	}
	if user.IsDisabled(time.Now()) {
		return nil, nil, ErrUserDisabled
	}

	token, err := s.tokenFor(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	return user, token, nil
}

func (s *Service) tokenFor(ctx context.Context, userID uuid.UUID) (*Token, error) {
	token, err := s.store.ActiveToken(ctx, userID, TypeRecover)
	if err == nil {
		if time.Since(token.Created.Time) < s.lifetime {
			return token, nil
		}
		if err := s.store.Deactivate(ctx, token.ID); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, ErrNoActiveToken) {
		return nil, err
	}

	return s.store.Create(ctx, userID, TypeRecover)
}

// StartURL renders the recovery link the operator hands to the user.
func StartURL(baseURL string, userID, token uuid.UUID) string {
	return fmt.Sprintf("%s/setup/recover/start/%s/%s",
		strings.TrimRight(baseURL, "/"), userID, token)
}
