// Package rbacs seeds the role-based UI-action defaults: the catalog of
// actions the web client can gate per role, plus the allow rules that make
// every action available to regular users out of the box.
package rbacs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/stchstepan/passbolt/pkg/model"
	"github.com/stchstepan/passbolt/pkg/observability"
)

// Control functions a rbac rule can carry.
const (
	ControlFunctionAllow = "Allow"
	ControlFunctionDeny  = "Deny"
)

// ForeignModelUIAction is the foreign model name for UI-action rules.
const ForeignModelUIAction = "UiAction"

// DefaultUIActions is the catalog of UI actions seeded on install.
var DefaultUIActions = []string{
	"Resources.import",
	"Resources.export",
	"Secrets.preview",
	"Secrets.copy",
	"Resources.toggleDescription",
	"Resources.seeComments",
	"Resources.seeActivities",
	"Folders.use",
	"Resources.filterByGroups",
	"Tags.use",
	"Share.viewList",
	"Share.viewUsersInAutocomplete",
	"Share.viewGroupsInAutocomplete",
	"InFormMenu.use",
	"Resources.editPasswordGeneratorSettings",
	"Users.viewWorkspace",
	"Users.viewGroups",
	"Mobile.transfer",
	"Desktop.transfer",
}

// Seeder inserts the default UI actions and their allow rules. Seeding is
// idempotent: actions and rules that already exist are left alone, so it is
// safe to run on every deploy.
type Seeder struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewSeeder creates a seeder over the given connection.
func NewSeeder(db *sql.DB, logger *observability.Logger) *Seeder {
	return &Seeder{db: db, logger: logger}
}

// SeedDefaults inserts the missing UI actions and allows each of them for
// the user role. It returns how many actions were newly inserted.
func (s *Seeder) SeedDefaults(ctx context.Context) (int, error) {
	roleID, err := s.userRoleID(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := existingActions(ctx, tx)
	if err != nil {
		return 0, err
	}

	inserted := 0
	for _, name := range DefaultUIActions {
		if _, ok := existing[name]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ui_actions (id, name) VALUES ($1, $2)`,
			uuid.New(), name,
		); err != nil {
			return 0, fmt.Errorf("failed to insert ui action %s: %w", name, err)
		}
		inserted++
	}

	if err := allowActionsForRole(ctx, tx, roleID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit seed: %w", err)
	}

	if inserted > 0 {
		s.logger.WithField("count", inserted).Info("seeded default ui actions")
	}
	return inserted, nil
}

func (s *Seeder) userRoleID(ctx context.Context) (uuid.UUID, error) {
	var roleID uuid.UUID
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM roles WHERE name = $1`, string(model.RoleUser),
	).Scan(&roleID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve user role: %w", err)
	}
	return roleID, nil
}

func existingActions(ctx context.Context, tx *sql.Tx) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT name FROM ui_actions WHERE name = ANY($1)`, pq.Array(DefaultUIActions))
	if err != nil {
		return nil, fmt.Errorf("failed to query ui actions: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan ui action: %w", err)
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ui actions: %w", err)
	}
	return existing, nil
}

// allowActionsForRole creates an Allow rule for every default action. The
// unique constraint on (role, model, action) makes re-runs no-ops.
func allowActionsForRole(ctx context.Context, tx *sql.Tx, roleID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO rbacs (id, role_id, control_function, foreign_model, foreign_id)
		SELECT gen_random_uuid(), $1, $2, $3, ua.id
		FROM ui_actions ua
		WHERE ua.name = ANY($4)
		ON CONFLICT (role_id, foreign_model, foreign_id) DO NOTHING`,
		roleID, ControlFunctionAllow, ForeignModelUIAction, pq.Array(DefaultUIActions))
	if err != nil {
		return fmt.Errorf("failed to insert allow rules: %w", err)
	}
	return nil
}
