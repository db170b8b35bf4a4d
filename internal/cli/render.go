package cli

import (
	"github.com/spf13/cobra"
	batchv1 "k8s.io/api/batch/v1"

	"github.com/shaiso/mediacorr/internal/domain"
	"github.com/shaiso/mediacorr/internal/manifest"
)

// NewRenderCmd создаёт команду вывода манифестов Jobs.
func NewRenderCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "render [JOB]",
		Short: "Print the Job manifests that run would submit",
		Long: `Print the resolved Job manifests as YAML (or JSON with --json).
Labels and namespace are applied exactly as on submission. Does not
contact the cluster.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			out := outputFn()

			p, jobs, err := env.selectJobs(args)
			if err != nil {
				return err
			}

			backend := env.Renderer()
			manifests := make([]*batchv1.Job, 0, len(jobs))
			for _, job := range jobs {
				m, err := backend.Render(cmd.Context(), domain.Submission{
					Pipeline:  p.Name,
					Namespace: p.Namespace,
					Job:       job,
				})
				if err != nil {
					return err
				}
				manifests = append(manifests, m)
			}

			if out.JSONMode() {
				out.JSON(manifests)
				return nil
			}
			for i, m := range manifests {
				data, err := manifest.Encode(m)
				if err != nil {
					return err
				}
				if i > 0 {
					out.Raw([]byte("---\n"))
				}
				out.Raw(data)
			}
			return nil
		},
	}
}
