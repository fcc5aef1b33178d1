// Command passbolt-cli is the operator CLI: account recovery, migrations,
// RBAC defaults seeding and health diagnostics.
package main

import (
	"fmt"
	"os"

	"github.com/stchstepan/passbolt/pkg/cli"
)

func main() {
	root := cli.NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
