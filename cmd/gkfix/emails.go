package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rwool/gkfix/config"
)

func (a *app) emailsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "emails",
		Short: "Count the messages the dev image's SMTP stub captured per user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f := a.newFixture()
			t, err := a.connect(ctx, f)
			if err != nil {
				return err
			}

			counts, err := f.Emails(ctx, t, a.cfg.Emails.Dir)
			if err != nil {
				return err
			}
			for _, user := range counts.Users() {
				fmt.Fprintf(a.out, "%s %d\n", user, counts[user])
			}
			return nil
		},
	}
	cmd.Flags().String("dir", "", "directory the messages are written to, relative to the login's home")
	_ = a.v.BindPFlag(config.KeyEmailsDir, cmd.Flags().Lookup("dir"))
	return cmd
}
