package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/hangar/internal/app"
	"github.com/five82/hangar/internal/downloads"
)

func newDownloadsCommand(ctx *commandContext) *cobra.Command {
	downloadsCmd := &cobra.Command{
		Use:     "downloads",
		Aliases: []string{"download", "dl"},
		Short:   "Inspect and manage the download queue",
	}
	downloadsCmd.AddCommand(newDownloadsListCommand(ctx))
	for _, action := range []downloads.Action{downloads.ActionPause, downloads.ActionResume, downloads.ActionCancel, downloads.ActionRetry} {
		downloadsCmd.AddCommand(newDownloadActionCommand(ctx, action))
	}
	downloadsCmd.AddCommand(newDownloadReorderCommand(ctx))
	downloadsCmd.AddCommand(newDownloadEnqueueCommand(ctx))
	return downloadsCmd
}

func newDownloadsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var states []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List download jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseStates(states)
			if err != nil {
				return err
			}
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				jobs, err := rt.Downloads.List(cmd.Context())
				if err != nil {
					return err
				}
				jobs = filterJobs(jobs, filter)
				if asJSON {
					return writeJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Download queue is empty")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(
					[]string{"#", "ID", "Template", "Target", "State", "Progress", "Actions"},
					buildJobRows(jobs),
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().StringSliceVar(&states, "state", nil, "Only show jobs in these states (repeatable)")
	return cmd
}

func parseStates(values []string) (map[downloads.State]bool, error) {
	if len(values) == 0 {
		return nil, nil
	}
	filter := make(map[downloads.State]bool, len(values))
	for _, v := range values {
		s := downloads.State(strings.ToLower(strings.TrimSpace(v)))
		if !s.Valid() {
			return nil, fmt.Errorf("unknown state %q", v)
		}
		filter[s] = true
	}
	return filter, nil
}

func filterJobs(jobs []downloads.Job, filter map[downloads.State]bool) []downloads.Job {
	if len(filter) == 0 {
		return jobs
	}
	out := jobs[:0:0]
	for _, job := range jobs {
		if filter[job.State] {
			out = append(out, job)
		}
	}
	return out
}

func buildJobRows(jobs []downloads.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for i, job := range jobs {
		template := job.TemplateID
		if job.Version != "" {
			template += "@" + job.Version
		}
		progress := "-"
		if pct, ok := job.Percent(); ok {
			progress = fmt.Sprintf("%.1f%%", pct)
		}
		actions := "-"
		if list := downloads.AllowedActions(job).List(); len(list) > 0 {
			names := make([]string, len(list))
			for j, a := range list {
				names[j] = string(a)
			}
			actions = strings.Join(names, ", ")
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			job.ID,
			template,
			string(job.Target),
			titleCaser.String(string(job.State)),
			progress,
			actions,
		})
	}
	return rows
}

// findJob fetches the queue and returns the job with id.
func findJob(cmd *cobra.Command, rt *app.Runtime, id string) (downloads.Job, error) {
	jobs, err := rt.Downloads.List(cmd.Context())
	if err != nil {
		return downloads.Job{}, err
	}
	id = strings.TrimSpace(id)
	for _, job := range jobs {
		if job.ID == id {
			return job, nil
		}
	}
	return downloads.Job{}, fmt.Errorf("download job %s not found", id)
}

func newDownloadActionCommand(ctx *commandContext, action downloads.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <job-id>",
		Short: titleCaser.String(string(action)) + " a download job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				job, err := findJob(cmd, rt, args[0])
				if err != nil {
					return err
				}
				updated, err := rt.Downloads.Apply(cmd.Context(), job, action, 0)
				if err != nil {
					return actionError(job, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", job.ID,
					titleCaser.String(string(job.State)), titleCaser.String(string(updated.State)))
				return nil
			})
		},
	}
}

func actionError(job downloads.Job, err error) error {
	if errors.Is(err, downloads.ErrActionNotAllowed) {
		return fmt.Errorf("%w; allowed while %s: %s", err, job.State, downloads.AllowedActions(job))
	}
	return err
}

func newDownloadReorderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <job-id> <position>",
		Short: "Move a waiting job to a queue position (1 is first)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			position, err := strconv.Atoi(args[1])
			if err != nil || position < 1 {
				return fmt.Errorf("position must be a positive number, got %q", args[1])
			}
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				job, err := findJob(cmd, rt, args[0])
				if err != nil {
					return err
				}
				if _, err := rt.Downloads.Reorder(cmd.Context(), job, position-1); err != nil {
					return actionError(job, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s moved to position %d\n", job.ID, position)
				return nil
			})
		},
	}
}

func newDownloadEnqueueCommand(ctx *commandContext) *cobra.Command {
	var req downloads.EnqueueRequest
	var target string
	var params []string

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a new download",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Target = downloads.Target(strings.ToLower(strings.TrimSpace(target)))
			parsed, err := parseParams(params)
			if err != nil {
				return err
			}
			req.Params = parsed
			return ctx.withRuntime(cmd, func(rt *app.Runtime) error {
				job, err := rt.Downloads.Enqueue(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s (%s)\n", job.ID, job.State)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", string(downloads.TargetTemplate), "What to download: template, runtime, or plugin")
	cmd.Flags().StringVar(&req.TemplateID, "template", "", "Template identifier")
	cmd.Flags().StringVar(&req.Version, "version", "", "Version to fetch (default latest)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Extra parameter as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func parseParams(values []string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for _, v := range values {
		key, value, ok := strings.Cut(v, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q, want key=value", v)
		}
		out[key] = value
	}
	return out, nil
}
