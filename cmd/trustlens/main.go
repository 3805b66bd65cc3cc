// Command trustlens is the credit network admin data-access CLI.
package main

import (
	"context"
	"errors"
	"os"

	"github.com/roach88/trustlens/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		// Commands report their own failures; anything else is a usage error
		// from flag or argument parsing.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			cmd.PrintErrln("Error:", err)
			os.Exit(cli.ExitCommandError)
		}
		os.Exit(exitErr.Code)
	}
}
