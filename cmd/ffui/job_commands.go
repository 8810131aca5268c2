package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ffui/internal/console"
	"ffui/internal/ipc"
)

func newWaitCommand(ctx *commandContext) *cobra.Command {
	return newAckCommand(ctx, ackVerbs{
		use:   "wait <job-id>...",
		short: "Pause jobs at the next safe point",
		done:  "Wait requested for job %s\n",
		noop:  "Job %s cannot wait (not processing)\n",
		bulk:  func(client *ipc.Client, ids []string) ([]bool, error) { return client.WaitBulk(ids) },
	})
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return newAckCommand(ctx, ackVerbs{
		use:   "resume <job-id>...",
		short: "Resume paused jobs",
		done:  "Resumed job %s\n",
		noop:  "Job %s cannot resume (not paused)\n",
		bulk:  func(client *ipc.Client, ids []string) ([]bool, error) { return client.ResumeBulk(ids) },
	})
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return newAckCommand(ctx, ackVerbs{
		use:   "cancel <job-id>...",
		short: "Cancel jobs",
		done:  "Cancelled job %s\n",
		noop:  "Job %s already finished\n",
		bulk:  func(client *ipc.Client, ids []string) ([]bool, error) { return client.CancelBulk(ids) },
	})
}

func newRestartCommand(ctx *commandContext) *cobra.Command {
	return newAckCommand(ctx, ackVerbs{
		use:   "restart <job-id>...",
		short: "Re-queue finished jobs",
		done:  "Restarted job %s\n",
		noop:  "Job %s cannot restart (not finished)\n",
		bulk:  func(client *ipc.Client, ids []string) ([]bool, error) { return client.RestartBulk(ids) },
	})
}

// ackVerbs parameterizes the four per-job control commands, which differ only
// in wording and the RPC they call.
type ackVerbs struct {
	use   string
	short string
	done  string
	noop  string
	bulk  func(*ipc.Client, []string) ([]bool, error)
}

func newAckCommand(ctx *commandContext, verbs ackVerbs) *cobra.Command {
	return &cobra.Command{
		Use:   verbs.use,
		Short: verbs.short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(client *ipc.Client) error {
				ids, missing, err := resolveJobIDs(client, args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, arg := range missing {
					fmt.Fprintf(out, "Job %s not found\n", arg)
				}
				if len(ids) == 0 {
					return nil
				}
				acks, err := verbs.bulk(client, ids)
				if err != nil {
					return err
				}
				for i, id := range ids {
					if i < len(acks) && acks[i] {
						fmt.Fprintf(out, verbs.done, shortJobID(id))
					} else {
						fmt.Fprintf(out, verbs.noop, shortJobID(id))
					}
				}
				return nil
			})
		},
	}
}

// resolveJobIDs expands id prefixes against the current queue state. Ambiguous
// prefixes and unknown ids land in missing.
func resolveJobIDs(client *ipc.Client, args []string) (ids []string, missing []string, err error) {
	state, err := client.QueueState()
	if err != nil {
		return nil, nil, err
	}
	for _, arg := range args {
		job := findJob(state.Jobs, arg)
		if job == nil {
			missing = append(missing, arg)
			continue
		}
		ids = append(ids, job.ID)
	}
	return ids, missing, nil
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>...",
		Short: "Remove finished jobs from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withDaemon(func(client *ipc.Client) error {
				ids, missing, err := resolveJobIDs(client, args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, arg := range missing {
					fmt.Fprintf(out, "Job %s not found\n", arg)
				}
				if len(ids) == 0 {
					return nil
				}
				resp, err := client.Remove(ids)
				if err != nil {
					return err
				}
				for _, id := range resp.Removed {
					fmt.Fprintf(out, "Removed job %s\n", shortJobID(id))
				}
				for _, id := range resp.Skipped {
					fmt.Fprintf(out, "Job %s still active; cancel it first\n", shortJobID(id))
				}
				return nil
			})
		},
	}
}

func newMoveCommand(ctx *commandContext) *cobra.Command {
	var toTop bool
	var toBottom bool

	cmd := &cobra.Command{
		Use:   "move <job-id>...",
		Short: "Move waiting jobs to the front or back of the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if toTop == toBottom {
				return errors.New("specify exactly one of --top or --bottom")
			}
			return ctx.withDaemon(func(client *ipc.Client) error {
				ids, missing, err := resolveJobIDs(client, args)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, arg := range missing {
					fmt.Fprintf(out, "Job %s not found\n", arg)
				}
				if len(ids) == 0 {
					return nil
				}

				// The console session owns the reorder payload rules
				// (full waiting order, targets keep relative position), so
				// the CLI drives a throwaway session over live state.
				state, err := client.QueueState()
				if err != nil {
					return err
				}
				session := console.NewSession(console.NewModel(), console.NewIPCBackend(client))
				session.ApplySnapshot(state, 0)

				movable := 0
				for _, id := range ids {
					if job := session.Model().Job(id); job != nil && job.Status.IsSchedulable() {
						movable++
					} else {
						fmt.Fprintf(out, "Job %s is not waiting; left in place\n", shortJobID(id))
					}
				}
				if movable == 0 {
					fmt.Fprintln(out, "No waiting jobs to move")
					return nil
				}

				if toTop {
					err = session.MoveToTop(ids)
				} else {
					err = session.MoveToBottom(ids)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "Queue order updated")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&toTop, "top", false, "Move jobs to the front of the waiting queue")
	cmd.Flags().BoolVar(&toBottom, "bottom", false, "Move jobs to the back of the waiting queue")
	return cmd
}
