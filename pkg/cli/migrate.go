package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/stchstepan/passbolt/pkg/storage/postgres"
)

func newMigrateCommand() *Command {
	return &Command{
		Name:        "migrate",
		Description: "Apply pending schema migrations",
		Flags:       flag.NewFlagSet("migrate", flag.ExitOnError),
		Run:         runMigrate,
	}
}

func runMigrate(args []string) error {
	flags := flag.NewFlagSet("migrate", flag.ExitOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}

	_, db, cleanup, err := openDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := postgres.RunMigrations(context.Background(), db); err != nil {
		return fmt.Errorf("migrations failed: %w", err)
	}

	fmt.Println("Migrations applied")
	return nil
}
