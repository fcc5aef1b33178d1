// Package resources implements the permission-aware resource index: the
// endpoint that lists the encrypted-credential records visible to the
// authenticated caller, filtered by shareability predicates, sorted against a
// whitelist of order fields, and optionally enriched with related entities
// (creator, modifier, permissions, the caller's secret and favorite).
//
// The package is split along the request pipeline: Compile turns raw query
// parameters into a validated Plan, Service resolves visibility and fetches
// rows, and Projector attaches the contained relations. Visibility questions
// are delegated to the permissions package.
package resources
