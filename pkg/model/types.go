// Package model defines the entities shared across the server: users, groups,
// resources, permissions, secrets and favorites. All entities are read-only
// within a request; the storage layer owns their lifecycle.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Time wraps time.Time to emit the API timestamp format: ISO-8601 with a
// numeric timezone offset (yyyy-MM-dd'T'HH:mm:ssxxx).
type Time struct {
	time.Time
}

// TimeFormat is the wire format for all timestamps.
const TimeFormat = "2006-01-02T15:04:05-07:00"

// NewTime wraps a time.Time.
func NewTime(t time.Time) Time {
	return Time{Time: t}
}

// MarshalJSON formats the timestamp with a numeric offset.
func (t Time) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format(TimeFormat) + `"`), nil
}

// UnmarshalJSON parses the wire timestamp format, falling back to RFC3339.
func (t *Time) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := time.Parse(TimeFormat, s)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return err
		}
	}
	t.Time = parsed
	return nil
}

// RoleName is the name of a system role.
type RoleName string

const (
	RoleGuest RoleName = "guest"
	RoleUser  RoleName = "user"
	RoleAdmin RoleName = "admin"
)

// User represents an account holder.
type User struct {
	ID       uuid.UUID  `json:"id"`
	Username string     `json:"username"`
	Role     RoleName   `json:"role,omitempty"`
	Active   bool       `json:"active"`
	Deleted  bool       `json:"deleted"`
	Disabled *time.Time `json:"disabled,omitempty"`
	Created  Time       `json:"created"`
	Modified Time       `json:"modified"`
	Profile  *Profile   `json:"profile,omitempty"`
}

// IsDisabled reports whether the user is disabled at the given instant.
func (u *User) IsDisabled(now time.Time) bool {
	return u.Disabled != nil && !u.Disabled.After(now)
}

// Profile holds the public attributes of a user.
type Profile struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Created   Time      `json:"created"`
	Modified  Time      `json:"modified"`
}

// Group is a named set of users.
type Group struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Deleted  bool      `json:"deleted"`
	Created  Time      `json:"created"`
	Modified Time      `json:"modified"`
}

// Resource is an encrypted-credential record.
type Resource struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Username       string     `json:"username"`
	URI            string     `json:"uri"`
	Description    string     `json:"description"`
	ResourceTypeID uuid.UUID  `json:"resource_type_id"`
	FolderParentID *uuid.UUID `json:"folder_parent_id"`
	Created        Time       `json:"created"`
	Modified       Time       `json:"modified"`
	CreatedBy      uuid.UUID  `json:"created_by"`
	ModifiedBy     uuid.UUID  `json:"modified_by"`
	Deleted        bool       `json:"deleted"`
}

// PrincipalKind distinguishes user principals from group principals.
type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "User"
	PrincipalGroup PrincipalKind = "Group"
)

// Principal is a tagged variant: either a user or a group. Equality is by
// (kind, id).
type Principal struct {
	Kind PrincipalKind `json:"kind"`
	ID   uuid.UUID     `json:"id"`
}

// UserPrincipal builds a user principal.
func UserPrincipal(id uuid.UUID) Principal {
	return Principal{Kind: PrincipalUser, ID: id}
}

// GroupPrincipal builds a group principal.
func GroupPrincipal(id uuid.UUID) Principal {
	return Principal{Kind: PrincipalGroup, ID: id}
}

// PermissionLevel is the access level a principal holds on a resource.
// Levels are monotone: a higher numeric value implies every lower one.
type PermissionLevel int

const (
	LevelRead   PermissionLevel = 1
	LevelUpdate PermissionLevel = 7
	LevelOwner  PermissionLevel = 15
)

// Valid reports whether the level is one of the three defined levels.
func (l PermissionLevel) Valid() bool {
	return l == LevelRead || l == LevelUpdate || l == LevelOwner
}

// ACO object type for resource permissions.
const ACOResource = "Resource"

// Permission grants a principal (the ARO) a level on a resource (the ACO).
type Permission struct {
	ID            uuid.UUID       `json:"id"`
	ACO           string          `json:"aco"`
	ACOForeignKey uuid.UUID       `json:"aco_foreign_key"`
	ARO           PrincipalKind   `json:"aro"`
	AROForeignKey uuid.UUID       `json:"aro_foreign_key"`
	Type          PermissionLevel `json:"type"`
	Created       Time            `json:"created"`
	Modified      Time            `json:"modified"`
	User          *User           `json:"user,omitempty"`
	Group         *Group          `json:"group,omitempty"`
}

// Secret is the caller-specific ciphertext for a resource. Exactly one exists
// per (visible user, resource).
type Secret struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	ResourceID uuid.UUID `json:"resource_id"`
	Data       string    `json:"data"`
	Created    Time      `json:"created"`
	Modified   Time      `json:"modified"`
}

// Favorite marks a resource as a favorite of a user. At most one exists per
// (user, resource).
type Favorite struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"user_id"`
	ForeignKey uuid.UUID `json:"foreign_key"`
	Created    Time      `json:"created"`
}
