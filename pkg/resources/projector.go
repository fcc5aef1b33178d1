package resources

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/stchstepan/passbolt/pkg/model"
	"github.com/stchstepan/passbolt/pkg/principal"
)

// Projector hydrates the contained relations of index entries. One batched
// lookup runs per requested relation; lookups run concurrently and results
// are merged keyed by resource id, so the output is deterministic.
type Projector struct {
	store *Store
}

// NewProjector creates a projector over the given store.
func NewProjector(store *Store) *Projector {
	return &Projector{store: store}
}

// Project attaches the relations requested by the contain set to the entries,
// in place. A storage failure aborts the whole projection; entries are never
// partially hydrated in the response.
func (p *Projector) Project(ctx context.Context, pc *principal.Context, entries []*Entry, contains ContainSet) error {
	if len(entries) == 0 || !contains.Any() {
		return nil
	}

	resourceIDs := make([]uuid.UUID, len(entries))
	for i, entry := range entries {
		resourceIDs[i] = entry.ID
	}

	var (
		users       map[uuid.UUID]*UserView
		permissions map[uuid.UUID][]*PermissionView
		secrets     map[uuid.UUID]model.Secret
		favorites   map[uuid.UUID]model.Favorite
	)

	g, gctx := errgroup.WithContext(ctx)

	if contains.Creator || contains.Modifier {
		userIDs := relatedUserIDs(entries, contains)
		g.Go(func() error {
			var err error
			users, err = p.store.UsersByIDs(gctx, userIDs)
			return err
		})
	}
	if contains.Permissions || contains.Permission {
		g.Go(func() error {
			var err error
			permissions, err = p.store.PermissionsByResourceIDs(gctx, resourceIDs,
				contains.PermissionsUserProfile, contains.PermissionsGroup)
			return err
		})
	}
	if contains.Secret {
		g.Go(func() error {
			var err error
			secrets, err = p.store.SecretsForUser(gctx, pc.UserID(), resourceIDs)
			return err
		})
	}
	if contains.Favorite {
		g.Go(func() error {
			var err error
			favorites, err = p.store.FavoritesForUser(gctx, pc.UserID(), resourceIDs)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	for _, entry := range entries {
		if contains.Creator {
			entry.Creator = users[entry.CreatedBy]
		}
		if contains.Modifier {
			entry.Modifier = users[entry.ModifiedBy]
		}
		if contains.Permissions {
			entry.Permissions = permissions[entry.ID]
			if entry.Permissions == nil {
				entry.Permissions = []*PermissionView{}
			}
		}
		if contains.Permission {
			entry.Permission = effectivePermission(pc, permissions[entry.ID])
		}
		if contains.Secret {
			if secret, ok := secrets[entry.ID]; ok {
				entry.Secrets = []model.Secret{secret}
			}
		}
		if contains.Favorite {
			if favorite, ok := favorites[entry.ID]; ok {
				f := favorite
				entry.Favorite = &f
			}
		}
	}

	return nil
}

// relatedUserIDs collects the distinct creator and modifier ids needed by the
// contain set.
func relatedUserIDs(entries []*Entry, contains ContainSet) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{})
	ids := make([]uuid.UUID, 0, len(entries))
	add := func(id uuid.UUID) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	for _, entry := range entries {
		if contains.Creator {
			add(entry.CreatedBy)
		}
		if contains.Modifier {
			add(entry.ModifiedBy)
		}
	}
	return ids
}

// effectivePermission picks the caller's highest-level permission row among
// their principal facets: the user itself plus every group membership. The
// returned view keeps the source principal so the caller can tell how the
// level was granted. Hydrated user or group principals are dropped from the
// summary; it describes the caller's own access.
func effectivePermission(pc *principal.Context, rows []*PermissionView) *PermissionView {
	var best *PermissionView
	for _, row := range rows {
		switch row.ARO {
		case model.PrincipalUser:
			if row.AROForeignKey != pc.UserID() {
				continue
			}
		case model.PrincipalGroup:
			if !pc.InGroup(row.AROForeignKey) {
				continue
			}
		default:
			continue
		}
		if best == nil || row.Type > best.Type {
			best = row
		}
	}
	if best == nil {
		return nil
	}
	summary := *best
	summary.User = nil
	summary.Group = nil
	return &summary
}
