package cli

import (
	"context"
	"flag"
	"fmt"

	"github.com/stchstepan/passbolt/pkg/recovery"
	"github.com/stchstepan/passbolt/pkg/users"
)

func newRecoverUserCommand() *Command {
	return &Command{
		Name:        "recover-user",
		Description: "Issue an account recovery link for a user",
		Flags:       flag.NewFlagSet("recover-user", flag.ExitOnError),
		Run:         runRecoverUser,
	}
}

func runRecoverUser(args []string) error {
	flags := flag.NewFlagSet("recover-user", flag.ExitOnError)
	username := flags.String("username", "", "Username (email) of the account to recover")

	if err := flags.Parse(args); err != nil {
		return err
	}
	if *username == "" {
		return fmt.Errorf("the --username flag is required")
	}

	cfg, db, cleanup, err := openDatabase()
	if err != nil {
		return err
	}
	defer cleanup()

	service := recovery.NewService(
		recovery.NewStore(db),
		users.NewStore(db),
		cfg.Auth.RecoveryTokenExpiry,
	)

	user, token, err := service.Recover(context.Background(), *username)
	if err != nil {
		return err
	}

	fmt.Printf("Recovery link for %s:\n", user.Username)
	fmt.Println(recovery.StartURL(cfg.Server.FullBaseURL, user.ID, token.Token))
	fmt.Printf("The link expires %s after issuance.\n", cfg.Auth.RecoveryTokenExpiry)
	return nil
}
