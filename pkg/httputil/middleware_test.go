package httputil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stchstepan/passbolt/pkg/observability"
)

func TestRequireJSONSuffix(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireJSONSuffix(next)

	t.Run("json path passes through", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/resources.json", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("non-json path yields 404", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/resources", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("short path yields 404", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	handler := RecoveryMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/resources.json", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestBracketParams(t *testing.T) {
	r := httptest.NewRequest("GET", "/resources.json?filter[has-id][]=a&filter[has-id][]=b&filter[is-favorite]=1&contain[creator]=1", nil)

	filters := BracketParams(r, "filter")
	assert.ElementsMatch(t, []string{"a", "b"}, filters["has-id"])
	assert.Equal(t, []string{"1"}, filters["is-favorite"])

	contains := BracketParams(r, "contain")
	assert.Equal(t, []string{"1"}, contains["creator"])
	assert.NotContains(t, contains, "is-favorite")
}

func TestTruthy(t *testing.T) {
	assert.True(t, Truthy("1"))
	assert.True(t, Truthy("true"))
	assert.False(t, Truthy("0"))
	assert.False(t, Truthy("yes"))
	assert.False(t, Truthy(""))
}

func TestSecureCookieService(t *testing.T) {
	svc := NewSecureCookieService("/", true)

	c := svc.Create("session", "abc", "/auth")
	assert.Equal(t, "session", c.Name)
	assert.Equal(t, "/auth", c.Path)
	assert.True(t, c.Secure)
	assert.True(t, c.HttpOnly)

	expired := svc.Expire("session", "")
	assert.Equal(t, -1, expired.MaxAge)
	assert.Empty(t, expired.Value)
}
