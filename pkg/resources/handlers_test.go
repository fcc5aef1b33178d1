package resources

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stchstepan/passbolt/pkg/contextkeys"
)

func newTestRouter(t *testing.T, index *fakeIndex, mock func(sqlmock.Sqlmock)) *mux.Router {
	t.Helper()
	db, sqlMock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	if mock != nil {
		mock(sqlMock)
	}

	service := NewService(index, NewStore(db), testLogger(), nil)
	handler := NewHandler(service, testLogger())
	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	return router
}

func doRequest(router *mux.Router, target string, authenticated bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authenticated {
		pc := testPrincipal(uuid.New())
		req = req.WithContext(contextkeys.WithPrincipal(req.Context(), pc))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Index_Unauthenticated(t *testing.T) {
	router := newTestRouter(t, &fakeIndex{}, nil)

	rec := doRequest(router, "/resources.json", false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_Index_MissingJSONSuffix(t *testing.T) {
	router := newTestRouter(t, &fakeIndex{}, nil)

	rec := doRequest(router, "/resources", true)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "The requested address was not found on this server.", body["error"])
}

func TestHandler_Index_OrderValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		message string
	}{
		{
			name:    "unknown field",
			target:  "/resources.json?order[]=Users.modi",
			message: `Invalid order. "Users.modi" is not in the list of allowed order.`,
		},
		{
			name:    "invalid direction",
			target:  "/resources.json?order[]=User.modified%20RAND",
			message: `Invalid order. "RAND" is not a valid order.`,
		},
		{
			name:    "empty clause",
			target:  "/resources.json?order[]=",
			message: `Invalid order. "" is not a valid field.`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(t, &fakeIndex{}, nil)

			rec := doRequest(router, tc.target, true)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.message, body["error"])
		})
	}
}

func TestHandler_Index_ReturnsResourceArray(t *testing.T) {
	resourceID := uuid.New()
	index := &fakeIndex{visible: []uuid.UUID{resourceID}}

	router := newTestRouter(t, index, func(mock sqlmock.Sqlmock) {
		rows := sqlmock.NewRows(resourceColumns())
		addResourceRow(rows, resourceID, "apache")
		expectFetch(mock, rows)
	})

	rec := doRequest(router, "/resources.json", true)

	require.Equal(t, http.StatusOK, rec.Code)
	var body []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)

	row := body[0]
	for _, field := range []string{
		"id", "name", "username", "uri", "description", "resource_type_id",
		"folder_parent_id", "created", "modified", "created_by", "modified_by", "deleted",
	} {
		assert.Contains(t, row, field)
	}
	for _, field := range []string{"creator", "modifier", "secrets", "favorite", "permission", "permissions"} {
		assert.NotContains(t, row, field)
	}
	assert.Equal(t, resourceID.String(), row["id"])
}

func TestHandler_Index_EmptyResultIsAnArray(t *testing.T) {
	router := newTestRouter(t, &fakeIndex{}, nil)

	rec := doRequest(router, "/resources.json", true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
