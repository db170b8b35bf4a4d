package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shaiso/mediacorr/internal/domain"
	"github.com/shaiso/mediacorr/internal/engine"
	"github.com/shaiso/mediacorr/internal/scheduler"
)

// JobView — описание job для вывода validate.
type JobView struct {
	Name     string   `json:"name"`
	Manifest string   `json:"manifest"`
	Resource string   `json:"resource"`
	Image    string   `json:"image,omitempty"`
	Timeout  string   `json:"timeout"`
	Requires []string `json:"requires,omitempty"`
	Produces []string `json:"produces,omitempty"`
}

// NewValidateCmd создаёт команду проверки пайплайна и манифестов.
func NewValidateCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the pipeline definition and resolve every manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			out := outputFn()

			p := env.Pipeline()
			if err := engine.Validate(p); err != nil {
				return err
			}
			if expr := env.Config.Schedule.Cron; expr != "" {
				if err := scheduler.ValidateCronExpr(expr); err != nil {
					return err
				}
			}

			r := env.Runner(nil)
			backend := env.Renderer()

			var errs []error
			views := make([]JobView, 0, len(p.Jobs))
			for _, job := range p.Jobs {
				m, err := backend.Render(cmd.Context(), domain.Submission{
					Pipeline:  p.Name,
					Namespace: p.Namespace,
					Job:       job,
				})
				if err != nil {
					errs = append(errs, fmt.Errorf("job %s: %w", job.Name, err))
					continue
				}

				view := JobView{
					Name:     job.Name,
					Manifest: job.ManifestRef(),
					Resource: m.Name,
					Timeout:  r.Timeout(job).String(),
					Requires: job.Requires,
					Produces: job.Produces,
				}
				if containers := m.Spec.Template.Spec.Containers; len(containers) > 0 {
					view.Image = containers[0].Image
				}
				views = append(views, view)
			}
			if len(errs) > 0 {
				return errors.Join(errs...)
			}

			t := NewTable("JOB", "RESOURCE", "IMAGE", "TIMEOUT", "REQUIRES", "PRODUCES")
			for _, v := range views {
				t.Add(v.Name, v.Resource, v.Image, v.Timeout, strings.Join(v.Requires, ","), strings.Join(v.Produces, ","))
			}
			out.Print(t, views)
			out.Success(fmt.Sprintf("Pipeline %s is valid (%d jobs, namespace %s)", p.Name, len(p.Jobs), p.Namespace))
			return nil
		},
	}
}
