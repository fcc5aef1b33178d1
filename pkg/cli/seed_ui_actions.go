package cli

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/stchstepan/passbolt/pkg/observability"
	"github.com/stchstepan/passbolt/pkg/rbacs"
)

func newSeedUIActionsCommand() *Command {
	return &Command{
		Name:        "seed-ui-actions",
		Description: "Insert the default UI actions and allow them for users",
		Flags:       flag.NewFlagSet("seed-ui-actions", flag.ExitOnError),
		Run:         runSeedUIActions,
	}
}

func runSeedUIActions(args []string) error {
	flags := flag.NewFlagSet("seed-ui-actions", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, db, cleanup, err := openDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stderr)
	seeder := rbacs.NewSeeder(db, logger)

	inserted, err := seeder.SeedDefaults(context.Background())
	if err != nil {
		return fmt.Errorf("seeding failed: %w", err)
	}

	if inserted == 0 {
		fmt.Println("UI actions already up to date")
	} else {
		fmt.Printf("Inserted %d UI actions\n", inserted)
	}
	return nil
}
