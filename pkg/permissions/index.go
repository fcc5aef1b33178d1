package permissions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/stchstepan/passbolt/pkg/model"
)

// Reader answers visibility questions over the permission read model. The
// postgres Index implements it directly; CachedIndex decorates it.
type Reader interface {
	// LevelsFor returns the effective level per resource for the user,
	// considering direct permissions and permissions granted via groups.
	// Resources the user cannot see are absent from the map.
	LevelsFor(ctx context.Context, userID uuid.UUID, resourceIDs []uuid.UUID) (map[uuid.UUID]model.PermissionLevel, error)

	// VisibleResourceIDs returns one page of ids of non-deleted resources the
	// user can see, ordered by id ascending for cursor stability.
	VisibleResourceIDs(ctx context.Context, userID uuid.UUID, offset, limit int) ([]uuid.UUID, error)

	// SharedWithGroup returns the ids of non-deleted resources carrying a
	// direct permission row for the group. Group members' personal
	// permissions do not count.
	SharedWithGroup(ctx context.Context, groupID uuid.UUID) (map[uuid.UUID]struct{}, error)

	// SharedWithMe returns the ids of visible resources where the user's
	// effective level is at least READ but below OWNER.
	SharedWithMe(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error)

	// GroupIDsFor returns the ids of the non-deleted groups the user is a
	// non-deleted member of.
	GroupIDsFor(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Index is the postgres-backed permission read model.
type Index struct {
	db *sql.DB
}

// NewIndex creates a permission index over the given read connection.
func NewIndex(db *sql.DB) *Index {
	return &Index{db: db}
}

// activeGroupMembership selects the group ids a user belongs to. A membership
// counts only when the group, the user and the membership row are all
// non-deleted.
const activeGroupMembership = `
	SELECT gu.group_id FROM groups_users gu
	INNER JOIN groups g ON g.id = gu.group_id AND g.deleted = FALSE
	WHERE gu.user_id = $1 AND gu.deleted = FALSE`

// LevelsFor returns the effective level per resource for the user.
func (i *Index) LevelsFor(ctx context.Context, userID uuid.UUID, resourceIDs []uuid.UUID) (map[uuid.UUID]model.PermissionLevel, error) {
	if len(resourceIDs) == 0 {
		return map[uuid.UUID]model.PermissionLevel{}, nil
	}

	query := `
		SELECT p.aco_foreign_key, MAX(p.type)
		FROM permissions p
		INNER JOIN resources r ON r.id = p.aco_foreign_key AND r.deleted = FALSE
		WHERE p.aco = 'Resource'
		  AND p.aco_foreign_key = ANY($2)
		  AND (
		    (p.aro = 'User' AND p.aro_foreign_key = $1)
		    OR (p.aro = 'Group' AND p.aro_foreign_key IN (` + activeGroupMembership + `))
		  )
		GROUP BY p.aco_foreign_key`

	rows, err := i.db.QueryContext(ctx, query, userID, pq.Array(uuidStrings(resourceIDs)))
	if err != nil {
		return nil, fmt.Errorf("failed to query permission levels: %w", err)
	}
	defer rows.Close()

	levels := make(map[uuid.UUID]model.PermissionLevel)
	for rows.Next() {
		var resourceID uuid.UUID
		var level int
		if err := rows.Scan(&resourceID, &level); err != nil {
			return nil, fmt.Errorf("failed to scan permission level: %w", err)
		}
		levels[resourceID] = model.PermissionLevel(level)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permission levels: %w", err)
	}

	return levels, nil
}

// VisibleResourceIDs returns one page of visible resource ids, ordered by id.
func (i *Index) VisibleResourceIDs(ctx context.Context, userID uuid.UUID, offset, limit int) ([]uuid.UUID, error) {
	query := `
		SELECT r.id
		FROM resources r
		WHERE r.deleted = FALSE
		  AND EXISTS (
		    SELECT 1 FROM permissions p
		    WHERE p.aco = 'Resource'
		      AND p.aco_foreign_key = r.id
		      AND (
		        (p.aro = 'User' AND p.aro_foreign_key = $1)
		        OR (p.aro = 'Group' AND p.aro_foreign_key IN (` + activeGroupMembership + `))
		      )
		  )
		ORDER BY r.id ASC
		LIMIT $2 OFFSET $3`

	rows, err := i.db.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query visible resources: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// SharedWithGroup returns resources with a direct permission row for the group.
func (i *Index) SharedWithGroup(ctx context.Context, groupID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	query := `
		SELECT p.aco_foreign_key
		FROM permissions p
		INNER JOIN resources r ON r.id = p.aco_foreign_key AND r.deleted = FALSE
		INNER JOIN groups g ON g.id = p.aro_foreign_key AND g.deleted = FALSE
		WHERE p.aco = 'Resource' AND p.aro = 'Group' AND p.aro_foreign_key = $1`

	rows, err := i.db.QueryContext(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("failed to query group resources: %w", err)
	}
	defer rows.Close()

	return scanIDSet(rows)
}

// SharedWithMe returns visible resources the user does not own.
func (i *Index) SharedWithMe(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	query := `
		SELECT p.aco_foreign_key
		FROM permissions p
		INNER JOIN resources r ON r.id = p.aco_foreign_key AND r.deleted = FALSE
		WHERE p.aco = 'Resource'
		  AND (
		    (p.aro = 'User' AND p.aro_foreign_key = $1)
		    OR (p.aro = 'Group' AND p.aro_foreign_key IN (` + activeGroupMembership + `))
		  )
		GROUP BY p.aco_foreign_key
		HAVING MAX(p.type) >= $2 AND MAX(p.type) < $3`

	rows, err := i.db.QueryContext(ctx, query, userID, int(model.LevelRead), int(model.LevelOwner))
	if err != nil {
		return nil, fmt.Errorf("failed to query shared resources: %w", err)
	}
	defer rows.Close()

	return scanIDSet(rows)
}

// GroupIDsFor returns the user's active group memberships.
func (i *Index) GroupIDsFor(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := i.db.QueryContext(ctx, activeGroupMembership+" ORDER BY gu.group_id ASC", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query group memberships: %w", err)
	}
	defer rows.Close()

	return scanIDs(rows)
}

// scanIDs reads a single-column uuid result set into a slice.
func scanIDs(rows *sql.Rows) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ids: %w", err)
	}
	return ids, nil
}

// scanIDSet reads a single-column uuid result set into a set.
func scanIDSet(rows *sql.Rows) (map[uuid.UUID]struct{}, error) {
	set := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		set[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ids: %w", err)
	}
	return set, nil
}

// uuidStrings converts uuids to their canonical text form for pq.Array.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
