package repo

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/mediacorr/internal/domain"
)

// RunStore — хранилище, в которое History пишет runs.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
	SaveJob(ctx context.Context, runID uuid.UUID, position int, job *domain.JobRun) error
}

// History записывает ход runs в хранилище. Реализует runner.Observer.
type History struct {
	store RunStore
}

// NewHistory создаёт History.
func NewHistory(store RunStore) *History {
	return &History{store: store}
}

func (h *History) OnRunStarted(ctx context.Context, run *domain.Run) error {
	return h.store.Create(ctx, run)
}

func (h *History) OnJobStarted(ctx context.Context, run *domain.Run, job *domain.JobRun) error {
	return h.saveJob(ctx, run, job)
}

func (h *History) OnJobFinished(ctx context.Context, run *domain.Run, job *domain.JobRun) error {
	return h.saveJob(ctx, run, job)
}

func (h *History) OnRunFinished(ctx context.Context, run *domain.Run) error {
	return h.store.Update(ctx, run)
}

func (h *History) saveJob(ctx context.Context, run *domain.Run, job *domain.JobRun) error {
	for i := range run.Jobs {
		if &run.Jobs[i] == job {
			return h.store.SaveJob(ctx, run.ID, i, job)
		}
	}
	return ErrNotFound
}
