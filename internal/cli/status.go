package cli

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"
	apierrors "k8s.io/apimachinery/pkg/api/errors"

	"github.com/shaiso/mediacorr/internal/domain"
)

// JobStatusView — строка вывода команды status.
type JobStatusView struct {
	Job       string           `json:"job"`
	Resource  string           `json:"resource"`
	Namespace string           `json:"namespace"`
	Found     bool             `json:"found"`
	State     *domain.JobState `json:"state,omitempty"`
}

// NewStatusCmd создаёт команду просмотра состояния Jobs в кластере.
func NewStatusCmd(envFn func() (*Env, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status [JOB]",
		Short: "Show the Kubernetes state of pipeline jobs",
		Args:  cobra.MaximumNArgs(1),
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

			backend, err := env.Backend()
			if err != nil {
				return err
			}

			views := make([]JobStatusView, 0, len(jobs))
			for _, job := range jobs {
				view, err := jobStatus(cmd.Context(), backend, p, job)
				if err != nil {
					return err
				}
				views = append(views, view)
			}

			t := NewTable("JOB", "RESOURCE", "ACTIVE", "SUCCEEDED", "FAILED", "CONDITION")
			for _, v := range views {
				if !v.Found {
					t.Add(v.Job, v.Resource, "", "", "", "NOT FOUND")
					continue
				}
				cond := ""
				if c := v.State.Condition; c != nil {
					cond = string(c.Type)
					if c.Reason != "" {
						cond += " (" + c.Reason + ")"
					}
				}
				t.Add(
					v.Job,
					v.Resource,
					strconv.Itoa(int(v.State.Active)),
					strconv.Itoa(int(v.State.Succeeded)),
					strconv.Itoa(int(v.State.Failed)),
					cond,
				)
			}
			out.Print(t, views)
			return nil
		},
	}
}

func jobStatus(ctx context.Context, backend Backend, p *domain.Pipeline, job domain.JobDef) (JobStatusView, error) {
	manifest, err := backend.Render(ctx, domain.Submission{Pipeline: p.Name, Namespace: p.Namespace, Job: job})
	if err != nil {
		return JobStatusView{}, err
	}

	view := JobStatusView{Job: job.Name, Resource: manifest.Name, Namespace: manifest.Namespace}
	state, err := backend.Status(ctx, domain.JobRef{Namespace: manifest.Namespace, Name: manifest.Name})
	if apierrors.IsNotFound(err) {
		return view, nil
	}
	if err != nil {
		return JobStatusView{}, err
	}

	view.Found = true
	view.State = &state
	return view, nil
}
