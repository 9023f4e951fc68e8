package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rwool/gkfix/config"
	"github.com/rwool/gkfix/engine"
	"github.com/rwool/gkfix/images"
)

func (a *app) upCmd() *cobra.Command {
	var image, smtpStub string

	cmd := &cobra.Command{
		Use:   "up",
		Short: "Start the fixture container, building its image if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := lookupRecipe(image)
			if err != nil {
				return err
			}
			if err := engine.CheckAccess(a.cfg.Docker()); err != nil {
				a.logger.Warnf("docker may not be usable: %v", err)
			}

			ctx := cmd.Context()
			if err := a.builder(smtpStub).Ensure(ctx, r); err != nil {
				return err
			}
			id, err := a.containers().Up(ctx, engine.RunOptions{
				Name:       a.cfg.Engine.Container,
				Image:      r.Tag,
				Privileged: r.Privileged,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, id)
			return nil
		},
	}
	cmd.Flags().StringVar(&image, "image", images.Server, "recipe to run: server or dev")
	cmd.Flags().StringVar(&smtpStub, "smtp-stub", "", "SMTP stub script for the dev image (overrides "+config.KeyImagesSMTPStub+")")
	return cmd
}

func (a *app) downCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down",
		Short: "Remove the fixture container",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.containers().Down(cmd.Context(), a.cfg.Engine.Container)
		},
	}
}
