package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/five82/hangar/internal/app"
	"github.com/five82/hangar/internal/config"
	"github.com/five82/hangar/internal/logtail"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int

	cmd := &cobra.Command{
		Use:   "logs [instance-id]",
		Short: "Show the local client log, or follow an instance console",
		Long: "Without an argument, print the tail of hangar's own log file.\n" +
			"With an instance id, stream that instance's console until interrupted.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return printLocalLog(cmd, ctx, lines)
			}
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				return followConsole(cmd, rt, args[0])
			})
		},
	}
	cmd.Flags().IntVarP(&lines, "lines", "n", 100, "Number of lines to show from the local log")
	return cmd
}

func printLocalLog(cmd *cobra.Command, ctx *commandContext, lines int) error {
	cfg, err := config.Load(ctx.options(cmd).ConfigPath)
	if err != nil {
		return err
	}
	path := cfg.LogPath()
	tail, err := logtail.Read(path, lines)
	if err != nil {
		return err
	}
	if len(tail) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No log entries at %s\n", path)
		return nil
	}
	out := cmd.OutOrStdout()
	for _, line := range tail {
		fmt.Fprintln(out, line)
	}
	return nil
}

func followConsole(cmd *cobra.Command, rt *app.Runtime, instanceID string) error {
	out := cmd.OutOrStdout()
	err := logtail.Follow(cmd.Context(), logtail.FollowOptions{
		URL:        logtail.ConsoleURL(rt.Client.BaseURL(), instanceID),
		HTTPClient: rt.Client.HTTPClient(),
		Logger:     rt.Logger,
		OnLine: func(line string) {
			_, _ = io.WriteString(out, line+"\n")
		},
	}, nil)
	if err != nil {
		return fmt.Errorf("follow %s: %w", instanceID, err)
	}
	return nil
}
