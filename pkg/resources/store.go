package resources

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/stchstepan/passbolt/pkg/model"
)

// UserView is the projection of a related user exposed in responses. It
// deliberately carries only the public attributes: id, username and the
// profile names. Nothing else about other users ever leaves the index.
type UserView struct {
	ID       uuid.UUID    `json:"id"`
	Username string       `json:"username"`
	Profile  *ProfileView `json:"profile,omitempty"`
}

// ProfileView is the public slice of a user profile.
type ProfileView struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// PermissionView is one permission row as exposed in responses, optionally
// hydrated with its user or group principal.
type PermissionView struct {
	ID            uuid.UUID             `json:"id"`
	ACO           string                `json:"aco"`
	ACOForeignKey uuid.UUID             `json:"aco_foreign_key"`
	ARO           model.PrincipalKind   `json:"aro"`
	AROForeignKey uuid.UUID             `json:"aro_foreign_key"`
	Type          model.PermissionLevel `json:"type"`
	Created       model.Time            `json:"created"`
	Modified      model.Time            `json:"modified"`
	User          *UserView             `json:"user,omitempty"`
	Group         *GroupView            `json:"group,omitempty"`
}

// GroupView is the projection of a group exposed in responses.
type GroupView struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Entry is one row of the index response: the resource itself plus whatever
// contained relations the plan requested. Absent relations are omitted from
// the JSON entirely; for favorite the field's presence is the boolean.
type Entry struct {
	model.Resource
	Creator     *UserView         `json:"creator,omitempty"`
	Modifier    *UserView         `json:"modifier,omitempty"`
	Permission  *PermissionView   `json:"permission,omitempty"`
	Permissions []*PermissionView `json:"permissions,omitempty"`
	Secrets     []model.Secret    `json:"secrets,omitempty"`
	Favorite    *model.Favorite   `json:"favorite,omitempty"`
}

// Store performs the primary fetch and the batched relation lookups for the
// index. All methods are read-only.
type Store struct {
	db *sql.DB
}

// NewStore creates a resource store over the given read connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// FetchOrdered returns the non-deleted resources with the given ids, ordered
// by the plan's clauses with resource id ascending as the final tie-break.
// The creator's user and profile rows are joined so that User.* and Profile.*
// order fields resolve; they are not part of the result. When parentIDs is
// non-empty only resources filed under one of those folders are returned.
func (s *Store) FetchOrdered(ctx context.Context, ids []uuid.UUID, parentIDs []uuid.UUID, orderBy []OrderClause) ([]*Entry, error) {
	if len(ids) == 0 {
		return []*Entry{}, nil
	}

	query := `
		SELECT r.id, r.name, r.username, r.uri, r.description, r.resource_type_id,
		       r.folder_parent_id, r.created, r.modified, r.created_by, r.modified_by, r.deleted
		FROM resources r
		LEFT JOIN users cu ON cu.id = r.created_by
		LEFT JOIN profiles cp ON cp.user_id = cu.id
		WHERE r.deleted = FALSE AND r.id = ANY($1)`
	args := []interface{}{pq.Array(uuidStrings(ids))}

	if len(parentIDs) > 0 {
		query += ` AND r.folder_parent_id = ANY($2)`
		args = append(args, pq.Array(uuidStrings(parentIDs)))
	}
	query += ` ORDER BY ` + orderByClause(orderBy)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resources: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		var entry Entry
		var folderParent uuid.NullUUID
		var created, modified time.Time
		if err := rows.Scan(
			&entry.ID, &entry.Name, &entry.Username, &entry.URI, &entry.Description,
			&entry.ResourceTypeID, &folderParent, &created, &modified,
			&entry.CreatedBy, &entry.ModifiedBy, &entry.Deleted,
		); err != nil {
			return nil, fmt.Errorf("failed to scan resource: %w", err)
		}
		if folderParent.Valid {
			id := folderParent.UUID
			entry.FolderParentID = &id
		}
		entry.Created = model.NewTime(created)
		entry.Modified = model.NewTime(modified)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resources: %w", err)
	}

	return entries, nil
}

// orderByClause renders the whitelist-mapped ORDER BY expression. Every
// variant ends with the resource id so the total order is deterministic.
func orderByClause(orderBy []OrderClause) string {
	var b strings.Builder
	for _, clause := range orderBy {
		column, ok := allowedOrderFields[clause.Field]
		if !ok {
			continue
		}
		b.WriteString(column)
		b.WriteString(" ")
		b.WriteString(string(clause.Direction))
		b.WriteString(", ")
	}
	b.WriteString("r.id ASC")
	return b.String()
}

// UsersByIDs returns the public view of the given users, keyed by id. Deleted
// users are excluded; callers tolerate missing keys.
func (s *Store) UsersByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*UserView, error) {
	if len(ids) == 0 {
		return map[uuid.UUID]*UserView{}, nil
	}

	query := `
		SELECT u.id, u.username, p.first_name, p.last_name
		FROM users u
		LEFT JOIN profiles p ON p.user_id = u.id
		WHERE u.deleted = FALSE AND u.id = ANY($1)`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(uuidStrings(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := make(map[uuid.UUID]*UserView)
	for rows.Next() {
		var user UserView
		var firstName, lastName sql.NullString
		if err := rows.Scan(&user.ID, &user.Username, &firstName, &lastName); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if firstName.Valid || lastName.Valid {
			user.Profile = &ProfileView{FirstName: firstName.String, LastName: lastName.String}
		}
		users[user.ID] = &user
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// PermissionsByResourceIDs returns the non-tombstoned permission rows for the
// given resources, keyed by resource id and ordered by permission id for
// deterministic output. Rows whose principal has been deleted are ignored.
// User and group principals are hydrated according to the flags.
func (s *Store) PermissionsByResourceIDs(ctx context.Context, resourceIDs []uuid.UUID, withUsers, withGroups bool) (map[uuid.UUID][]*PermissionView, error) {
	if len(resourceIDs) == 0 {
		return map[uuid.UUID][]*PermissionView{}, nil
	}

	query := `
		SELECT p.id, p.aco, p.aco_foreign_key, p.aro, p.aro_foreign_key, p.type,
		       p.created, p.modified,
		       u.id, u.username, pr.first_name, pr.last_name,
		       g.id, g.name
		FROM permissions p
		LEFT JOIN users u ON u.id = p.aro_foreign_key AND p.aro = 'User' AND u.deleted = FALSE
		LEFT JOIN profiles pr ON pr.user_id = u.id
		LEFT JOIN groups g ON g.id = p.aro_foreign_key AND p.aro = 'Group' AND g.deleted = FALSE
		WHERE p.aco = 'Resource'
		  AND p.aco_foreign_key = ANY($1)
		  AND (u.id IS NOT NULL OR g.id IS NOT NULL)
		ORDER BY p.id ASC`

	rows, err := s.db.QueryContext(ctx, query, pq.Array(uuidStrings(resourceIDs)))
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	permissions := make(map[uuid.UUID][]*PermissionView)
	for rows.Next() {
		var perm PermissionView
		var created, modified time.Time
		var userID, groupID uuid.NullUUID
		var username, firstName, lastName, groupName sql.NullString
		if err := rows.Scan(
			&perm.ID, &perm.ACO, &perm.ACOForeignKey, &perm.ARO, &perm.AROForeignKey,
			&perm.Type, &created, &modified,
			&userID, &username, &firstName, &lastName,
			&groupID, &groupName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perm.Created = model.NewTime(created)
		perm.Modified = model.NewTime(modified)
		if withUsers && userID.Valid {
			perm.User = &UserView{
				ID:       userID.UUID,
				Username: username.String,
				Profile:  &ProfileView{FirstName: firstName.String, LastName: lastName.String},
			}
		}
		if withGroups && groupID.Valid {
			perm.Group = &GroupView{ID: groupID.UUID, Name: groupName.String}
		}
		permissions[perm.ACOForeignKey] = append(permissions[perm.ACOForeignKey], &perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate permissions: %w", err)
	}

	return permissions, nil
}

// SecretsForUser returns the caller's secrets for the given resources, keyed
// by resource id. Other users' secrets are never selected.
func (s *Store) SecretsForUser(ctx context.Context, userID uuid.UUID, resourceIDs []uuid.UUID) (map[uuid.UUID]model.Secret, error) {
	if len(resourceIDs) == 0 {
		return map[uuid.UUID]model.Secret{}, nil
	}

	query := `
		SELECT id, user_id, resource_id, data, created, modified
		FROM secrets
		WHERE user_id = $1 AND resource_id = ANY($2)`

	rows, err := s.db.QueryContext(ctx, query, userID, pq.Array(uuidStrings(resourceIDs)))
	if err != nil {
		return nil, fmt.Errorf("failed to query secrets: %w", err)
	}
	defer rows.Close()

	secrets := make(map[uuid.UUID]model.Secret)
	for rows.Next() {
		var secret model.Secret
		var created, modified time.Time
		if err := rows.Scan(&secret.ID, &secret.UserID, &secret.ResourceID, &secret.Data, &created, &modified); err != nil {
			return nil, fmt.Errorf("failed to scan secret: %w", err)
		}
		secret.Created = model.NewTime(created)
		secret.Modified = model.NewTime(modified)
		secrets[secret.ResourceID] = secret
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate secrets: %w", err)
	}

	return secrets, nil
}

// FavoritesForUser returns the caller's favorites for the given resources,
// keyed by resource id.
func (s *Store) FavoritesForUser(ctx context.Context, userID uuid.UUID, resourceIDs []uuid.UUID) (map[uuid.UUID]model.Favorite, error) {
	if len(resourceIDs) == 0 {
		return map[uuid.UUID]model.Favorite{}, nil
	}

	query := `
		SELECT id, user_id, foreign_key, created
		FROM favorites
		WHERE user_id = $1 AND foreign_key = ANY($2)`

	rows, err := s.db.QueryContext(ctx, query, userID, pq.Array(uuidStrings(resourceIDs)))
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	favorites := make(map[uuid.UUID]model.Favorite)
	for rows.Next() {
		var favorite model.Favorite
		var created time.Time
		if err := rows.Scan(&favorite.ID, &favorite.UserID, &favorite.ForeignKey, &created); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		favorite.Created = model.NewTime(created)
		favorites[favorite.ForeignKey] = favorite
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate favorites: %w", err)
	}

	return favorites, nil
}

// FavoriteResourceIDs returns the ids of every resource the user favorited,
// used by the is-favorite filter.
func (s *Store) FavoriteResourceIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	query := `SELECT foreign_key FROM favorites WHERE user_id = $1`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorite ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[uuid.UUID]struct{})
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan favorite id: %w", err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate favorite ids: %w", err)
	}

	return ids, nil
}

// uuidStrings converts uuids to their canonical text form for pq.Array.
func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
