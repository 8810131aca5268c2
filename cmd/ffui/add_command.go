package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"ffui/internal/ipc"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var preset string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "add <path>...",
		Short: "Submit files to the transcode queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				abs, err := filepath.Abs(arg)
				if err != nil {
					return fmt.Errorf("resolve path %q: %w", arg, err)
				}
				paths = append(paths, abs)
			}

			return ctx.withDaemon(func(client *ipc.Client) error {
				resp, err := client.Submit(paths, preset)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}

				out := cmd.OutOrStdout()
				for _, job := range resp.Accepted {
					fmt.Fprintf(out, "Queued %s as job %s\n", job.Filename, shortJobID(job.ID))
				}
				for _, skipped := range resp.Skipped {
					fmt.Fprintf(out, "Skipped %s: %s\n", skipped.Path, skipped.Reason)
				}
				if len(resp.Accepted) == 0 && len(resp.Skipped) == 0 {
					fmt.Fprintln(out, "Nothing to queue")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&preset, "preset", "p", "", "Encoder preset for the submitted jobs")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit machine-readable JSON")
	return cmd
}
