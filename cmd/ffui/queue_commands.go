package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ffui/internal/console"
	"ffui/internal/ipc"
	"ffui/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the transcode queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFilters []string
	var typeFilters []string
	var sortField string
	var direction string
	var viewMode string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			view, err := buildListView(ctx, viewMode, sortField, direction, statusFilters, typeFilters)
			if err != nil {
				return err
			}

			return ctx.withDaemon(func(client *ipc.Client) error {
				state, err := client.QueueState()
				if err != nil {
					return err
				}
				jobs := view.Visible(state.Jobs)
				if jsonOut {
					return writeJSON(cmd, jobs)
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				tbl := renderTable(
					[]column{
						{Header: "ID"},
						{Header: "File"},
						{Header: "Type"},
						{Header: "Status"},
						{Header: "Progress", Right: true},
						{Header: "Elapsed", Right: true},
						{Header: "Size", Right: true},
						{Header: "Output", Right: true},
					},
					buildQueueListRows(jobs),
				)
				fmt.Fprintln(cmd.OutOrStdout(), tbl)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statusFilters, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().StringSliceVarP(&typeFilters, "type", "t", nil, "Filter by job type (repeatable)")
	cmd.Flags().StringVar(&sortField, "sort", "", "Sort field (addedTime, filename, status, ...)")
	cmd.Flags().StringVar(&direction, "direction", "", "Sort direction: asc or desc")
	cmd.Flags().StringVar(&viewMode, "mode", "", "Ordering mode: display or queue")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

// buildListView assembles a console view from list flags, falling back to the
// configured console defaults for anything unset.
func buildListView(ctx *commandContext, viewMode, sortField, direction string, statusFilters, typeFilters []string) (*console.View, error) {
	mode := console.ModeDisplay
	primary := console.SortSpec{Field: console.SortAddedTime, Direction: console.Ascending}
	if cfg := ctx.configValue(); cfg != nil {
		if parsed, ok := console.ParseViewMode(cfg.Console.ViewMode); ok {
			mode = parsed
		}
		if parsed, ok := console.ParseSortField(cfg.Console.SortField); ok {
			primary.Field = parsed
		}
		if parsed, ok := console.ParseDirection(cfg.Console.SortDirection); ok {
			primary.Direction = parsed
		}
	}

	if viewMode != "" {
		parsed, ok := console.ParseViewMode(viewMode)
		if !ok {
			return nil, fmt.Errorf("unknown mode %q (expected display or queue)", viewMode)
		}
		mode = parsed
	}
	if sortField != "" {
		parsed, ok := console.ParseSortField(sortField)
		if !ok {
			return nil, fmt.Errorf("unknown sort field %q", sortField)
		}
		primary.Field = parsed
	}
	if direction != "" {
		parsed, ok := console.ParseDirection(direction)
		if !ok {
			return nil, fmt.Errorf("unknown direction %q (expected asc or desc)", direction)
		}
		primary.Direction = parsed
	}

	view := console.NewView(mode, primary)
	for _, raw := range statusFilters {
		status, ok := queue.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", raw)
		}
		view.ToggleStatusFilter(status)
	}
	for _, raw := range typeFilters {
		jobType, ok := queue.ParseJobType(raw)
		if !ok {
			return nil, fmt.Errorf("unknown job type %q", raw)
		}
		view.ToggleTypeFilter(jobType)
	}
	return view, nil
}

func buildQueueListRows(jobs []*queue.Job) [][]string {
	rows := make([][]string, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, []string{
			shortJobID(job.ID),
			job.Filename,
			string(job.Type),
			string(job.Status),
			formatProgress(job),
			formatElapsed(job),
			formatSizeMB(job.OriginalSizeMB),
			formatOutputSize(job),
		})
	}
	return rows
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(client *ipc.Client) error {
				state, err := client.QueueState()
				if err != nil {
					return err
				}
				job := findJob(state.Jobs, args[0])
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				if jsonOut {
					return writeJSON(cmd, job)
				}
				printJobDetail(cmd, job)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

// findJob matches jobs by full id first, then by unambiguous prefix.
func findJob(jobs []*queue.Job, id string) *queue.Job {
	for _, job := range jobs {
		if job.ID == id {
			return job
		}
	}
	var match *queue.Job
	for _, job := range jobs {
		if strings.HasPrefix(job.ID, id) {
			if match != nil {
				return nil
			}
			match = job
		}
	}
	return match
}

func printJobDetail(cmd *cobra.Command, job *queue.Job) {
	out := cmd.OutOrStdout()
	kv := func(label, value string) {
		fmt.Fprintf(out, "%-14s %s\n", label+":", value)
	}

	kv("ID", job.ID)
	kv("File", job.Filename)
	kv("Type", string(job.Type))
	kv("Source", string(job.Source))
	kv("Status", string(job.Status))
	kv("Progress", formatProgress(job))
	kv("Input", job.InputPath)
	if job.OutputPath != "" {
		kv("Output", job.OutputPath)
	}
	kv("Size", formatSizeMB(job.OriginalSizeMB))
	if job.OutputSizeMB != nil {
		kv("Output size", formatOutputSize(job))
	}
	if job.Preset != "" {
		kv("Preset", job.Preset)
	}
	kv("Added", formatRelativeMs(job.CreatedAtMs))
	if job.StartTimeMs != nil {
		kv("Started", formatTimestampMs(*job.StartTimeMs))
	}
	if job.EndTimeMs != nil {
		kv("Finished", formatTimestampMs(*job.EndTimeMs))
	}
	if job.ElapsedMs != nil {
		kv("Elapsed", formatElapsed(job))
	}
	if job.Media != nil && job.Media.DurationSeconds != nil {
		kv("Duration", formatDurationSeconds(*job.Media.DurationSeconds))
	}
	if job.QueueOrder != nil {
		kv("Queue slot", fmt.Sprintf("%d", *job.QueueOrder))
	}
	if job.FailureReason != "" {
		kv("Failure", job.FailureReason)
	}
	if job.SkipReason != "" {
		kv("Skipped", job.SkipReason)
	}
	for _, warning := range job.Warnings {
		kv("Warning", fmt.Sprintf("%s: %s", warning.Code, warning.Message))
	}
	if job.Command != "" {
		kv("Command", job.Command)
	}
	if job.LogTail != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Log tail:")
		for _, line := range strings.Split(strings.TrimRight(job.LogTail, "\n"), "\n") {
			fmt.Fprintf(out, "  %s\n", line)
		}
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all finished jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(client *ipc.Client) error {
				removed, err := client.ClearTerminal()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d finished jobs\n", removed)
				return nil
			})
		},
	}
}
