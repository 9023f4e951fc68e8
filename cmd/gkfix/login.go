package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/rwool/gkfix/fixture"
)

const (
	helperName = "gkfix login"
	loginUsage = "usage: " + helperName + " <host> <port> <user> <password>"
)

func (a *app) loginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login <host> <port> <user> <password>",
		Short: "Log into an SSH server by answering its password prompt",
		Long: `login starts an SSH client for user@host:port, waits for the password prompt,
answers it and then hands the terminal over to the session. The exit status
is the session's.

Use -- before the arguments if the password starts with a dash.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := fixture.ParseTarget(args)
			if errors.Cause(err) == fixture.ErrUsage {
				fmt.Fprintln(a.errOut, loginUsage)
				return exitStatus(1)
			}
			if err != nil {
				return err
			}
			return a.newFixture().Login(cmd.Context(), t)
		},
	}
}

func (a *app) connectCmd() *cobra.Command {
	var printOnly bool

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Log into the running git-keeper-server container",
		Long: `connect looks up the container engine's address and the host port mapped to
the SSH port of the fixture container, then logs in with the configured test
credentials.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := a.newFixture()
			t, err := a.connect(cmd.Context(), f)
			if err != nil {
				return err
			}

			if printOnly {
				fmt.Fprintln(a.out, t.Invocation(helperName))
				return nil
			}
			return f.Login(cmd.Context(), t)
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "print the login command instead of running it")
	return cmd
}
