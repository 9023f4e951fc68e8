package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rwool/gkfix/config"
	"github.com/rwool/gkfix/images"
)

func (a *app) imageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Inspect and build the fixture images",
	}
	cmd.AddCommand(a.imageListCmd(), a.imageShowCmd(), a.imageBuildCmd())
	return cmd
}

func (a *app) imageListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the image recipes",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTAG\tNEEDS")
			for _, r := range images.Recipes() {
				needs := strings.Join(r.External, ",")
				if needs == "" {
					needs = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, r.Tag, needs)
			}
			return w.Flush()
		},
	}
}

func (a *app) imageShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the Dockerfile of a recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			r, err := lookupRecipe(args[0])
			if err != nil {
				return err
			}
			_, err = a.out.Write(r.Dockerfile)
			return err
		},
	}
}

func (a *app) imageBuildCmd() *cobra.Command {
	var smtpStub string

	cmd := &cobra.Command{
		Use:   "build <name>",
		Short: "Build an image from its recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := lookupRecipe(args[0])
			if err != nil {
				return err
			}
			if err := a.builder(smtpStub).Build(cmd.Context(), r); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "built %s\n", r.Tag)
			return nil
		},
	}
	cmd.Flags().StringVar(&smtpStub, "smtp-stub", "", "SMTP stub script for the dev image (overrides "+config.KeyImagesSMTPStub+")")
	return cmd
}
