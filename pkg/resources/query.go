package resources

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/stchstepan/passbolt/pkg/httputil"
)

const (
	// DefaultLimit is the page size used when the request does not name one.
	DefaultLimit = 20
	// MaxLimit caps the page size a request may ask for.
	MaxLimit = 100
	// MaxHasIDs caps the number of ids accepted by the has-id filter.
	MaxHasIDs = 200
)

// ValidationError reports a malformed or disallowed query parameter. The
// message names the offending token and is safe to return to the client.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// OrderDirection is a validated sort direction.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

// OrderClause is one validated order[] entry. Field is an external name from
// the whitelist, never a raw client string.
type OrderClause struct {
	Field     string
	Direction OrderDirection
}

// allowedOrderFields maps the external order field names to the column
// references used by the storage layer. Client input never reaches the
// database except through this map.
var allowedOrderFields = map[string]string{
	"Resource.name":      "r.name",
	"Resource.username":  "r.username",
	"Resource.uri":       "r.uri",
	"Resource.created":   "r.created",
	"Resource.modified":  "r.modified",
	"User.username":      "cu.username",
	"User.created":       "cu.created",
	"User.modified":      "cu.modified",
	"Profile.first_name": "cp.first_name",
	"Profile.last_name":  "cp.last_name",
}

// ContainSet records which optional relations the response should carry.
// Requesting a path twice is idempotent; unknown paths never reach this set.
type ContainSet struct {
	Creator                bool
	Modifier               bool
	Permission             bool
	Permissions            bool
	PermissionsUserProfile bool
	PermissionsGroup       bool
	Secret                 bool
	Favorite               bool
}

// Any reports whether at least one relation was requested.
func (c ContainSet) Any() bool {
	return c.Creator || c.Modifier || c.Permission || c.Permissions ||
		c.Secret || c.Favorite
}

// Plan is the validated, normalized form of an index query. A nil HasID means
// the filter is absent; an empty slice means the filter matched nothing.
type Plan struct {
	HasID           []uuid.UUID
	IsFavorite      bool
	IsSharedWithMe  bool
	SharedWithGroup *uuid.UUID
	HasParent       []uuid.UUID
	Contains        ContainSet
	OrderBy         []OrderClause
	Page            int
	Limit           int
}

// Offset returns the number of rows the plan skips.
func (p *Plan) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Compile parses and validates raw query parameters into a Plan. The first
// validation failure short-circuits with a *ValidationError; nothing after it
// is evaluated.
func Compile(query url.Values) (*Plan, error) {
	plan := &Plan{
		Page:  1,
		Limit: DefaultLimit,
	}

	if err := compileFilters(plan, httputil.BracketValues(query, "filter")); err != nil {
		return nil, err
	}
	compileContains(plan, httputil.BracketValues(query, "contain"))
	if err := compileOrder(plan, query["order[]"]); err != nil {
		return nil, err
	}
	compilePagination(plan, query)

	return plan, nil
}

func compileFilters(plan *Plan, filters map[string][]string) error {
	if values, ok := filters["has-id"]; ok {
		ids, err := parseIDList("has-id", values)
		if err != nil {
			return err
		}
		if len(ids) > MaxHasIDs {
			return validationErrorf("Invalid filter. The has-id filter accepts at most %d ids.", MaxHasIDs)
		}
		plan.HasID = ids
	}

	if values, ok := filters["is-favorite"]; ok {
		plan.IsFavorite = anyTruthy(values)
	}

	if values, ok := filters["is-shared-with-me"]; ok {
		plan.IsSharedWithMe = anyTruthy(values)
	}

	if values, ok := filters["is-shared-with-group"]; ok && len(values) > 0 {
		groupID, err := uuid.Parse(values[len(values)-1])
		if err != nil {
			return validationErrorf("Invalid filter. %q is not a valid group id.", values[len(values)-1])
		}
		plan.SharedWithGroup = &groupID
	}

	if values, ok := filters["has-parent"]; ok {
		ids, err := parseIDList("has-parent", values)
		if err != nil {
			return err
		}
		plan.HasParent = ids
	}

	return nil
}

// compileContains never fails: unknown paths are silently dropped and values
// other than "1" or "true" parse as false.
func compileContains(plan *Plan, contains map[string][]string) {
	for path, values := range contains {
		if !anyTruthy(values) {
			continue
		}
		switch path {
		case "creator":
			plan.Contains.Creator = true
		case "modifier":
			plan.Contains.Modifier = true
		case "permission":
			plan.Contains.Permission = true
		case "permissions":
			plan.Contains.Permissions = true
		case "permissions.user.profile":
			plan.Contains.PermissionsUserProfile = true
			plan.Contains.Permissions = true
		case "permissions.group":
			plan.Contains.PermissionsGroup = true
			plan.Contains.Permissions = true
		case "secret":
			plan.Contains.Secret = true
		case "favorite":
			plan.Contains.Favorite = true
		}
	}
}

func compileOrder(plan *Plan, clauses []string) error {
	for _, raw := range clauses {
		tokens := strings.Fields(raw)
		if len(tokens) == 0 {
			return validationErrorf("Invalid order. %q is not a valid field.", "")
		}

		field := tokens[0]
		if _, ok := allowedOrderFields[field]; !ok {
			return validationErrorf("Invalid order. %q is not in the list of allowed order.", field)
		}

		direction := OrderAsc
		if len(tokens) > 1 {
			switch strings.ToUpper(tokens[1]) {
			case string(OrderAsc):
				direction = OrderAsc
			case string(OrderDesc):
				direction = OrderDesc
			default:
				return validationErrorf("Invalid order. %q is not a valid order.", tokens[1])
			}
		}
		if len(tokens) > 2 {
			return validationErrorf("Invalid order. %q is not a valid order.", tokens[2])
		}

		plan.OrderBy = append(plan.OrderBy, OrderClause{Field: field, Direction: direction})
	}
	return nil
}

func compilePagination(plan *Plan, query url.Values) {
	if page, err := strconv.Atoi(query.Get("page")); err == nil && page > 0 {
		plan.Page = page
	}
	if limit, err := strconv.Atoi(query.Get("limit")); err == nil && limit > 0 {
		if limit > MaxLimit {
			limit = MaxLimit
		}
		plan.Limit = limit
	}
}

// parseIDList accepts repeated values and comma-separated lists.
func parseIDList(filter string, values []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(values))
	for _, value := range values {
		for _, token := range strings.Split(value, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			id, err := uuid.Parse(token)
			if err != nil {
				return nil, validationErrorf("Invalid filter. %q is not a valid id for %s.", token, filter)
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func anyTruthy(values []string) bool {
	for _, value := range values {
		if httputil.Truthy(value) {
			return true
		}
	}
	return false
}
