package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/stchstepan/passbolt/pkg/contextkeys"
	"github.com/stchstepan/passbolt/pkg/httputil"
	"github.com/stchstepan/passbolt/pkg/model"
	"github.com/stchstepan/passbolt/pkg/observability"
	"github.com/stchstepan/passbolt/pkg/permissions"
	"github.com/stchstepan/passbolt/pkg/principal"
	"github.com/stchstepan/passbolt/pkg/users"
)

// SessionCookieName is the cookie carrying the session token when no
// Authorization header is present.
const SessionCookieName = "passbolt_session"

const unauthorizedMessage = "Authentication is required to access this resource."

// UserLoader resolves a user account by id. *users.Store implements it.
type UserLoader interface {
	ByID(ctx context.Context, id uuid.UUID) (*model.User, error)
}

// SessionMiddleware validates the caller's session token, loads the account,
// resolves group memberships and installs an immutable principal context on
// the request. Requests by deleted, inactive or disabled users fail here with
// 401; handlers behind the middleware may assume a live caller.
type SessionMiddleware struct {
	users   UserLoader
	index   permissions.Reader
	secret  []byte
	cookies *httputil.SecureCookieService
	logger  *observability.Logger
}

// NewSessionMiddleware creates the session middleware. Rejected session
// cookies are expired on the client through the cookie service.
func NewSessionMiddleware(users UserLoader, index permissions.Reader, secret []byte, cookies *httputil.SecureCookieService, logger *observability.Logger) *SessionMiddleware {
	return &SessionMiddleware{
		users:   users,
		index:   index,
		secret:  secret,
		cookies: cookies,
		logger:  logger,
	}
}

// Handler wraps an HTTP handler with session authentication.
func (m *SessionMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			httputil.WriteUnauthorized(w, unauthorizedMessage)
			return
		}

		userID, err := m.validateToken(token)
		if err != nil {
			m.rejectSession(w, r)
			return
		}

		now := time.Now()
		pc, err := m.resolvePrincipal(r.Context(), userID, now)
		if err != nil {
			if errors.Is(err, errAccountUnavailable) {
				m.rejectSession(w, r)
				return
			}
			m.logger.WithError(err).Error("failed to resolve principal")
			httputil.WriteInternalError(w, errors.New("internal server error"))
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), pc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var errAccountUnavailable = errors.New("account unavailable")

// rejectSession answers 401 and, when the token came in through the session
// cookie, expires that cookie so the client stops replaying it.
func (m *SessionMiddleware) rejectSession(w http.ResponseWriter, r *http.Request) {
	if m.cookies != nil {
		if _, err := r.Cookie(SessionCookieName); err == nil {
			http.SetCookie(w, m.cookies.Expire(SessionCookieName, ""))
		}
	}
	httputil.WriteUnauthorized(w, unauthorizedMessage)
}

// resolvePrincipal loads the account and its group memberships. Accounts that
// are deleted, inactive or disabled are treated the same as a missing one.
func (m *SessionMiddleware) resolvePrincipal(ctx context.Context, userID uuid.UUID, now time.Time) (*principal.Context, error) {
	user, err := m.users.ByID(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, errAccountUnavailable
	}
	if err != nil {
		return nil, err
	}
	if !user.Active || user.Deleted || user.IsDisabled(now) {
		return nil, errAccountUnavailable
	}

	groupIDs, err := m.index.GroupIDsFor(ctx, userID)
	if err != nil {
		return nil, err
	}

	return principal.New(user.ID, user.Role, groupIDs, now), nil
}

// validateToken parses and verifies the JWT and returns its subject.
func (m *SessionMiddleware) validateToken(token string) (uuid.UUID, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil {
		return uuid.Nil, err
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return uuid.Nil, errors.New("missing subject claim")
	}
	return uuid.Parse(claims.Subject)
}

// extractToken prefers the Authorization header and falls back to the
// session cookie.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// IssueSessionToken signs a session JWT for the user. The CLI and tests use
// it; production sessions come from the login flow.
func IssueSessionToken(secret []byte, userID uuid.UUID, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
