// Package permissions implements the permission read model for resources: a
// read-optimized view over the permissions table that answers which resources
// a user can see and at which level, taking group memberships into account.
//
// The effective level of a user on a resource is the maximum over every
// principal facet of the user (the user itself plus each group it belongs
// to). Permissions referencing deleted users or groups are tombstones and
// never contribute. The package never mutates permission data.
package permissions
