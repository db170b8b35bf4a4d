package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/mediacorr/internal/domain"
	"github.com/shaiso/mediacorr/internal/repo"
)

// NewHistoryCmd создаёт группу команд истории runs (нужен database.url).
func NewHistoryCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse recorded runs",
	}

	cmd.AddCommand(
		newHistoryListCmd(envFn, outputFn),
		newHistoryShowCmd(envFn, outputFn),
	)

	return cmd
}

func newHistoryListCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	var status string
	var limit, offset int
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			out := outputFn()

			runs, closeFn, err := env.requireDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			filter := repo.RunFilter{
				Status: domain.RunStatus(strings.ToUpper(status)),
				Limit:  limit,
				Offset: offset,
			}
			if !all {
				filter.Pipeline = env.Config.Pipeline.Name
			}

			list, err := runs.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			t := NewTable("ID", "PIPELINE", "TRIGGER", "STATUS", "FAILED_JOB", "STARTED", "DURATION")
			for _, r := range list {
				t.Add(
					r.ID.String(),
					r.Pipeline,
					r.Trigger,
					string(r.Status),
					r.FailedJob,
					formatTime(r.StartedAt),
					formatDuration(r.Duration()),
				)
			}
			out.Print(t, list)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (RUNNING, SUCCEEDED, FAILED, TIMED_OUT, CANCELLED)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many results")
	cmd.Flags().BoolVar(&all, "all", false, "Include runs of every pipeline")

	return cmd
}

func newHistoryShowCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run and its jobs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			env, err := envFn()
			if err != nil {
				return err
			}
			out := outputFn()

			runs, closeFn, err := env.requireDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			run, err := runs.GetByID(cmd.Context(), id)
			if err != nil {
				return err
			}

			printRun(out, run)
			if !out.JSONMode() {
				msg := fmt.Sprintf("Run %s %s (trigger %s)", run.ID, run.Status, dash(run.Trigger))
				if run.Error != "" {
					msg += ": " + run.Error
				}
				out.Success(msg)
			}
			return nil
		},
	}
}
