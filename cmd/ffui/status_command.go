package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"ffui/internal/daemonctl"
	"ffui/internal/ipc"
	"ffui/internal/queue"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, statusResp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range formatSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonStatusLines(statusResp, colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout)

			for _, line := range formatSectionHeader("Paths", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, formatStatusLine("Socket", statusInfo, statusResp.SocketPath, colorize))
			fmt.Fprintln(stdout, formatStatusLine("Queue DB", statusInfo, statusResp.QueueDBPath, colorize))
			fmt.Fprintln(stdout, formatStatusLine("Log", statusInfo, statusResp.LogPath, colorize))
			fmt.Fprintln(stdout)

			for _, line := range formatSectionHeader("Queue", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := buildQueueStatusRows(statusResp.QueueStats)
			if len(rows) == 0 {
				fmt.Fprintln(stdout, "Queue is empty")
				return nil
			}
			tbl := renderTable(
				[]column{{Header: "Status"}, {Header: "Count", Right: true}},
				rows,
			)
			fmt.Fprintln(stdout, tbl)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}

func daemonStatusLines(resp *ipc.StatusResponse, colorize bool) []string {
	if !resp.Running {
		return []string{formatStatusLine("Daemon", statusWarn, "not running", colorize)}
	}
	lines := []string{
		formatStatusLine("Daemon", statusOK, fmt.Sprintf("running (pid %d)", resp.PID), colorize),
		formatStatusLine("Version", statusInfo, resp.Version, colorize),
	}
	if resp.StartedAtMs > 0 {
		uptime := time.Since(time.UnixMilli(resp.StartedAtMs)).Round(time.Second)
		lines = append(lines, formatStatusLine("Uptime", statusInfo, uptime.String(), colorize))
	}
	active := len(resp.ActiveIDs)
	kind := statusInfo
	if active > 0 {
		kind = statusOK
	}
	lines = append(lines, formatStatusLine("Encoding", kind, fmt.Sprintf("%d active, %d waiting", active, resp.QueueDepth), colorize))
	return lines
}

// buildQueueStatusRows orders status counts in lifecycle order with unknown
// statuses trailing alphabetically.
func buildQueueStatusRows(stats map[string]int) [][]string {
	if len(stats) == 0 {
		return nil
	}
	lifecycle := []queue.Status{
		queue.StatusProcessing,
		queue.StatusQueued,
		queue.StatusPaused,
		queue.StatusCompleted,
		queue.StatusFailed,
		queue.StatusSkipped,
		queue.StatusCancelled,
	}
	seen := make(map[string]struct{}, len(lifecycle))
	rows := make([][]string, 0, len(stats))
	for _, status := range lifecycle {
		seen[string(status)] = struct{}{}
		if count, ok := stats[string(status)]; ok && count > 0 {
			rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
		}
	}
	var rest []string
	for status, count := range stats {
		if _, ok := seen[status]; !ok && count > 0 {
			rest = append(rest, status)
		}
	}
	sort.Strings(rest)
	for _, status := range rest {
		rows = append(rows, []string{status, fmt.Sprintf("%d", stats[status])})
	}
	return rows
}
