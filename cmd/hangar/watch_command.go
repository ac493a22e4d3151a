package main

import (
	"github.com/spf13/cobra"

	"github.com/five82/hangar/internal/app"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		Aliases: []string{"ui", "tui"},
		Short:   "Open the live console",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Watch(cmd.Context(), ctx.options(cmd))
		},
	}
}
