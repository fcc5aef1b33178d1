// Package principal carries the per-request identity of the caller.
package principal

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/stchstepan/passbolt/pkg/model"
)

// Context identifies the authenticated caller for the duration of one
// request. It is immutable: the auth middleware builds it once at request
// entry and it is discarded at response emission. The caller is guaranteed to
// be a live, active, non-disabled user; anything else fails authentication
// before a Context exists.
type Context struct {
	userID   uuid.UUID
	role     model.RoleName
	groupIDs []uuid.UUID
	now      time.Time
}

// New builds a principal context. Group ids are copied and sorted so that
// membership lookups and serializations are deterministic.
func New(userID uuid.UUID, role model.RoleName, groupIDs []uuid.UUID, now time.Time) *Context {
	ids := make([]uuid.UUID, len(groupIDs))
	copy(ids, groupIDs)
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return &Context{
		userID:   userID,
		role:     role,
		groupIDs: ids,
		now:      now,
	}
}

// UserID returns the caller's user id.
func (c *Context) UserID() uuid.UUID {
	return c.userID
}

// Role returns the caller's system role.
func (c *Context) Role() model.RoleName {
	return c.role
}

// GroupIDs returns the caller's group memberships, sorted.
func (c *Context) GroupIDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(c.groupIDs))
	copy(ids, c.groupIDs)
	return ids
}

// InGroup reports whether the caller belongs to the given group.
func (c *Context) InGroup(groupID uuid.UUID) bool {
	for _, id := range c.groupIDs {
		if id == groupID {
			return true
		}
	}
	return false
}

// Now returns the timestamp fixed at request entry.
func (c *Context) Now() time.Time {
	return c.now
}

// IsAdmin reports whether the caller holds the admin role.
func (c *Context) IsAdmin() bool {
	return c.role == model.RoleAdmin
}

// Principals returns every principal facet of the caller: the user itself
// plus one facet per group membership.
func (c *Context) Principals() []model.Principal {
	principals := make([]model.Principal, 0, len(c.groupIDs)+1)
	principals = append(principals, model.UserPrincipal(c.userID))
	for _, id := range c.groupIDs {
		principals = append(principals, model.GroupPrincipal(id))
	}
	return principals
}
