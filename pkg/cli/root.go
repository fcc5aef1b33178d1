// Package cli implements the operator command line: account recovery, schema
// migrations, RBAC defaults seeding and health diagnostics.
package cli

import (
	"database/sql"
	"flag"
	"fmt"
	"os"

	"github.com/stchstepan/passbolt/pkg/config"
	"github.com/stchstepan/passbolt/pkg/storage/postgres"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet
}

// NewRootCommand creates the root command
func NewRootCommand() *Command {
	root := &Command{
		Name:        "passbolt-cli",
		Description: "Passbolt operator CLI",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("passbolt-cli", flag.ExitOnError),
	}

	// Add subcommands
	root.Subcommands["recover-user"] = newRecoverUserCommand()
	root.Subcommands["migrate"] = newMigrateCommand()
	root.Subcommands["seed-ui-actions"] = newSeedUIActionsCommand()
	root.Subcommands["healthcheck"] = newHealthcheckCommand()

	return root
}

// Execute runs the command
func (c *Command) Execute() error {
	args := os.Args[1:]
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if args[0] == "-h" || args[0] == "--help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Printf("Usage: %s <command> [args]\n\n", c.Name)
	fmt.Printf("Commands:\n")
	for name, cmd := range c.Subcommands {
		fmt.Printf("  %-15s %s\n", name, cmd.Description)
	}
	return nil
}

// openDatabase loads the configuration and opens the primary connection.
// The returned cleanup closes the connection pool.
func openDatabase() (*config.Config, *sql.DB, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	cm, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: cfg.Database.MaxLifetime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return cfg, cm.Primary(), func() { cm.Close() }, nil
}
