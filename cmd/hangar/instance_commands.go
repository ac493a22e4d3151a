package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/five82/hangar/internal/app"
	"github.com/five82/hangar/internal/instances"
)

var titleCaser = cases.Title(language.Und)

func newInstancesCommand(ctx *commandContext) *cobra.Command {
	instancesCmd := &cobra.Command{
		Use:     "instances",
		Aliases: []string{"instance", "i"},
		Short:   "List and control instances",
	}
	instancesCmd.AddCommand(newInstancesListCommand(ctx))
	for _, c := range []instances.Command{instances.CommandStart, instances.CommandStop, instances.CommandRestart} {
		instancesCmd.AddCommand(newInstanceLifecycleCommand(ctx, c))
	}
	return instancesCmd
}

func newInstancesListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List instances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				list, err := rt.Instances.List(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No instances")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Name", "Status", "Node", "Players", "Updated"},
					buildInstanceRows(list, time.Now()),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func buildInstanceRows(list []instances.Instance, now time.Time) [][]string {
	rows := make([][]string, 0, len(list))
	for _, inst := range list {
		updated := "-"
		if inst.UpdatedAt > 0 {
			updated = now.Sub(time.UnixMilli(inst.UpdatedAt)).Truncate(time.Second).String() + " ago"
		}
		rows = append(rows, []string{
			inst.ID,
			inst.Label(),
			titleCaser.String(string(inst.Status.Normalize())),
			inst.Node,
			strconv.Itoa(inst.Players),
			updated,
		})
	}
	return rows
}

func newInstanceLifecycleCommand(ctx *commandContext, command instances.Command) *cobra.Command {
	return &cobra.Command{
		Use:   string(command) + " <instance-id>",
		Short: titleCaser.String(string(command)) + " an instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				updated, err := rt.Instances.Run(cmd.Context(), command, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if updated == nil {
					fmt.Fprintf(out, "%s requested for %s\n", titleCaser.String(string(command)), args[0])
					return nil
				}
				fmt.Fprintf(out, "%s: %s\n", updated.Label(), titleCaser.String(string(updated.Status)))
				return nil
			})
		},
	}
}
