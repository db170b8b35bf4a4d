package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/mediacorr/internal/runner"
)

// TriggerCLI — источник run, запущенного командой run.
const TriggerCLI = "cli"

var errOnlyWithRange = errors.New("--only cannot be combined with --from or --to")

// NewRunCmd создаёт команду однократного запуска пайплайна.
func NewRunCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	var from, to, only string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once, job by job",
		Long: `Submit the pipeline jobs to Kubernetes one at a time, waiting for each
to complete before submitting the next. Stops at the first failure.

Exit codes: 0 success, 1 error, 2 submission failed, 3 job failed,
4 wait timed out, 130 cancelled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if only != "" {
				if from != "" || to != "" {
					return errOnlyWithRange
				}
				from, to = only, only
			}

			env, err := envFn()
			if err != nil {
				return err
			}
			out := outputFn()
			if timeout > 0 {
				env.Config.Pipeline.Timeout = timeout
			}

			backend, err := env.Backend()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			in, err := env.Connect(ctx)
			if err != nil {
				return err
			}
			defer in.Close()

			r := env.Runner(backend, in.Observers()...)
			run, runErr := r.Run(ctx, env.Pipeline(), runner.Options{
				Trigger: TriggerCLI,
				From:    from,
				To:      to,
			})
			if run == nil {
				return runErr
			}

			printRun(out, run)
			if runErr == nil {
				out.Success(fmt.Sprintf("Run %s %s in %s", run.ID, run.Status, formatDuration(run.Duration())))
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Start from this job (inclusive)")
	cmd.Flags().StringVar(&to, "to", "", "Stop after this job (inclusive)")
	cmd.Flags().StringVar(&only, "only", "", "Run a single job")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Wait timeout for jobs without their own (default from config, 30m)")

	return cmd
}
