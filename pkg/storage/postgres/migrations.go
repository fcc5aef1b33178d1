package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all schema migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create roles table",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id UUID PRIMARY KEY,
					name VARCHAR(50) NOT NULL UNIQUE,
					description VARCHAR(255),
					created TIMESTAMP NOT NULL DEFAULT NOW(),
					modified TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create users and profiles tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id UUID PRIMARY KEY,
					role_id UUID NOT NULL REFERENCES roles(id),
					username VARCHAR(255) NOT NULL,
					active BOOLEAN NOT NULL DEFAULT FALSE,
					deleted BOOLEAN NOT NULL DEFAULT FALSE,
					created TIMESTAMP NOT NULL DEFAULT NOW(),
					modified TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE UNIQUE INDEX idx_users_username_active
					ON users(LOWER(username)) WHERE deleted = FALSE;

				CREATE TABLE IF NOT EXISTS profiles (
					id UUID PRIMARY KEY,
					user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					first_name VARCHAR(255) NOT NULL,
					last_name VARCHAR(255) NOT NULL,
					created TIMESTAMP NOT NULL DEFAULT NOW(),
					modified TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id)
				);
			`,
		},
		{
			Version:     3,
			Description: "Create groups and groups_users tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS groups (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					deleted BOOLEAN NOT NULL DEFAULT FALSE,
					created TIMESTAMP NOT NULL DEFAULT NOW(),
					modified TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by UUID NOT NULL REFERENCES users(id),
					modified_by UUID NOT NULL REFERENCES users(id)
				);

				CREATE TABLE IF NOT EXISTS groups_users (
					id UUID PRIMARY KEY,
					group_id UUID NOT NULL REFERENCES groups(id),
					user_id UUID NOT NULL REFERENCES users(id),
					is_admin BOOLEAN NOT NULL DEFAULT FALSE,
					deleted BOOLEAN NOT NULL DEFAULT FALSE,
					created TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(group_id, user_id)
				);

				CREATE INDEX idx_groups_users_user_id ON groups_users(user_id);
				CREATE INDEX idx_groups_users_group_id ON groups_users(group_id);
			`,
		},
		{
			Version:     4,
			Description: "Create resources table",
			SQL: `
				CREATE TABLE IF NOT EXISTS resources (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					username VARCHAR(255),
					uri VARCHAR(1024),
					description TEXT,
					resource_type_id UUID NOT NULL,
					folder_parent_id UUID,
					deleted BOOLEAN NOT NULL DEFAULT FALSE,
					created TIMESTAMP NOT NULL DEFAULT NOW(),
					modified TIMESTAMP NOT NULL DEFAULT NOW(),
					created_by UUID NOT NULL REFERENCES users(id),
					modified_by UUID NOT NULL REFERENCES users(id)
				);

				CREATE INDEX idx_resources_deleted ON resources(deleted);
				CREATE INDEX idx_resources_folder_parent_id ON resources(folder_parent_id);
			`,
		},
		{
			Version:     5,
			Description: "Create permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS permissions (
					id UUID PRIMARY KEY,
					aco VARCHAR(30) NOT NULL,
					aco_foreign_key UUID NOT NULL,
					aro VARCHAR(30) NOT NULL,
					aro_foreign_key UUID NOT NULL,
					type INT NOT NULL,
					created TIMESTAMP NOT NULL DEFAULT NOW(),
					modified TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(aco_foreign_key, aro_foreign_key)
				);

				CREATE INDEX idx_permissions_aro ON permissions(aro, aro_foreign_key);
				CREATE INDEX idx_permissions_aco_foreign_key ON permissions(aco_foreign_key);
			`,
		},
		{
			Version:     6,
			Description: "Create secrets and favorites tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS secrets (
					id UUID PRIMARY KEY,
					user_id UUID NOT NULL REFERENCES users(id),
					resource_id UUID NOT NULL REFERENCES resources(id),
					data TEXT NOT NULL,
					created TIMESTAMP NOT NULL DEFAULT NOW(),
					modified TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, resource_id)
				);

				CREATE TABLE IF NOT EXISTS favorites (
					id UUID PRIMARY KEY,
					user_id UUID NOT NULL REFERENCES users(id),
					foreign_key UUID NOT NULL,
					created TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, foreign_key)
				);

				CREATE INDEX idx_secrets_resource_id ON secrets(resource_id);
				CREATE INDEX idx_favorites_user_id ON favorites(user_id);
			`,
		},
		{
			Version:     7,
			Description: "Create authentication_tokens table",
			SQL: `
				CREATE TABLE IF NOT EXISTS authentication_tokens (
					id UUID PRIMARY KEY,
					token UUID NOT NULL,
					user_id UUID NOT NULL REFERENCES users(id),
					type VARCHAR(30) NOT NULL,
					active BOOLEAN NOT NULL DEFAULT TRUE,
					created TIMESTAMP NOT NULL DEFAULT NOW(),
					modified TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE INDEX idx_authentication_tokens_user_id
					ON authentication_tokens(user_id, type, active);
			`,
		},
		{
			Version:     8,
			Description: "Delete legacy root role",
			SQL: `
				DELETE FROM roles WHERE name = 'root';
			`,
		},
		{
			Version:     9,
			Description: "Create ui_actions and rbacs tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS ui_actions (
					id UUID PRIMARY KEY,
					name VARCHAR(255) NOT NULL UNIQUE
				);

				CREATE TABLE IF NOT EXISTS rbacs (
					id UUID PRIMARY KEY,
					role_id UUID NOT NULL REFERENCES roles(id),
					control_function VARCHAR(255) NOT NULL,
					foreign_model VARCHAR(36) NOT NULL,
					foreign_id UUID NOT NULL,
					created TIMESTAMP NOT NULL DEFAULT NOW(),
					modified TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(role_id, foreign_model, foreign_id)
				);
			`,
		},
		{
			Version:     10,
			Description: "Add users disabled timestamp",
			SQL: `
				ALTER TABLE users ADD COLUMN IF NOT EXISTS disabled TIMESTAMP NULL DEFAULT NULL;
			`,
		},
	}
}

// RunMigrations applies all pending migrations in order, each in its own
// transaction, recording applied versions in schema_migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	appliedVersions := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		appliedVersions[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if appliedVersions[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}

		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}
