package resources

import (
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Defaults(t *testing.T) {
	plan, err := Compile(url.Values{})

	require.NoError(t, err)
	assert.Equal(t, 1, plan.Page)
	assert.Equal(t, DefaultLimit, plan.Limit)
	assert.Equal(t, 0, plan.Offset())
	assert.Nil(t, plan.HasID)
	assert.False(t, plan.IsFavorite)
	assert.False(t, plan.IsSharedWithMe)
	assert.Nil(t, plan.SharedWithGroup)
	assert.Empty(t, plan.OrderBy)
	assert.False(t, plan.Contains.Any())
}

func TestCompile_Filters(t *testing.T) {
	resourceID := uuid.New()
	groupID := uuid.New()

	query := url.Values{
		"filter[has-id][]":             {resourceID.String()},
		"filter[is-favorite]":          {"1"},
		"filter[is-shared-with-me]":    {"true"},
		"filter[is-shared-with-group]": {groupID.String()},
	}

	plan, err := Compile(query)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{resourceID}, plan.HasID)
	assert.True(t, plan.IsFavorite)
	assert.True(t, plan.IsSharedWithMe)
	require.NotNil(t, plan.SharedWithGroup)
	assert.Equal(t, groupID, *plan.SharedWithGroup)
}

func TestCompile_HasIDCommaSeparated(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	query := url.Values{"filter[has-id]": {a.String() + "," + b.String()}}

	plan, err := Compile(query)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{a, b}, plan.HasID)
}

func TestCompile_HasIDCapExceeded(t *testing.T) {
	ids := make([]string, MaxHasIDs+1)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	query := url.Values{"filter[has-id]": {strings.Join(ids, ",")}}

	_, err := Compile(query)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, "has-id")
}

func TestCompile_HasIDRejectsMalformedID(t *testing.T) {
	query := url.Values{"filter[has-id]": {"not-a-uuid"}}

	_, err := Compile(query)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, `"not-a-uuid"`)
}

func TestCompile_SharedWithGroupRejectsMalformedID(t *testing.T) {
	query := url.Values{"filter[is-shared-with-group]": {"developers"}}

	_, err := Compile(query)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Message, `"developers"`)
}

func TestCompile_Contains(t *testing.T) {
	query := url.Values{
		"contain[creator]":                  {"1"},
		"contain[modifier]":                 {"true"},
		"contain[permission]":               {"1"},
		"contain[permissions.user.profile]": {"1"},
		"contain[permissions.group]":        {"1"},
		"contain[secret]":                   {"1"},
		"contain[favorite]":                 {"1"},
	}

	plan, err := Compile(query)

	require.NoError(t, err)
	assert.True(t, plan.Contains.Creator)
	assert.True(t, plan.Contains.Modifier)
	assert.True(t, plan.Contains.Permission)
	assert.True(t, plan.Contains.PermissionsUserProfile)
	assert.True(t, plan.Contains.PermissionsGroup)
	assert.True(t, plan.Contains.Secret)
	assert.True(t, plan.Contains.Favorite)
	assert.True(t, plan.Contains.Permissions, "nested permission paths imply the permissions list")
}

func TestCompile_ContainsDropsUnknownPaths(t *testing.T) {
	query := url.Values{
		"contain[secrets.decrypted]": {"1"},
		"contain[everything]":        {"1"},
	}

	plan, err := Compile(query)

	require.NoError(t, err)
	assert.False(t, plan.Contains.Any())
}

func TestCompile_ContainsNonTruthyValuesAreFalse(t *testing.T) {
	query := url.Values{
		"contain[creator]":  {"yes"},
		"contain[modifier]": {"0"},
		"contain[secret]":   {"TRUE"},
	}

	plan, err := Compile(query)

	require.NoError(t, err)
	assert.False(t, plan.Contains.Any())
}

func TestCompile_Order(t *testing.T) {
	query := url.Values{"order[]": {"Resource.name DESC", "User.username"}}

	plan, err := Compile(query)

	require.NoError(t, err)
	require.Len(t, plan.OrderBy, 2)
	assert.Equal(t, OrderClause{Field: "Resource.name", Direction: OrderDesc}, plan.OrderBy[0])
	assert.Equal(t, OrderClause{Field: "User.username", Direction: OrderAsc}, plan.OrderBy[1])
}

func TestCompile_OrderUnknownField(t *testing.T) {
	query := url.Values{"order[]": {"Users.modi"}}

	_, err := Compile(query)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, `Invalid order. "Users.modi" is not in the list of allowed order.`, validationErr.Message)
}

func TestCompile_OrderInvalidDirection(t *testing.T) {
	query := url.Values{"order[]": {"User.modified RAND"}}

	_, err := Compile(query)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, `Invalid order. "RAND" is not a valid order.`, validationErr.Message)
}

func TestCompile_OrderEmptyClause(t *testing.T) {
	query := url.Values{"order[]": {""}}

	_, err := Compile(query)

	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, `Invalid order. "" is not a valid field.`, validationErr.Message)
}

func TestCompile_Pagination(t *testing.T) {
	query := url.Values{"page": {"3"}, "limit": {"50"}}

	plan, err := Compile(query)

	require.NoError(t, err)
	assert.Equal(t, 3, plan.Page)
	assert.Equal(t, 50, plan.Limit)
	assert.Equal(t, 100, plan.Offset())
}

func TestCompile_PaginationBounds(t *testing.T) {
	query := url.Values{"page": {"-1"}, "limit": {"5000"}}

	plan, err := Compile(query)

	require.NoError(t, err)
	assert.Equal(t, 1, plan.Page)
	assert.Equal(t, MaxLimit, plan.Limit)
}
