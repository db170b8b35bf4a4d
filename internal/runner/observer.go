package runner

import (
	"context"

	"github.com/shaiso/mediacorr/internal/domain"
)

// Observer получает уведомления о ходе run.
//
// Ошибки observer'а логируются и не влияют на run. Вызовы идут
// синхронно из горутины run, в порядке событий. Контекст вызова не
// отменяется вместе с run, чтобы финальный статус прерванного run
// тоже был записан.
type Observer interface {
	OnRunStarted(ctx context.Context, run *domain.Run) error
	OnJobStarted(ctx context.Context, run *domain.Run, job *domain.JobRun) error
	OnJobFinished(ctx context.Context, run *domain.Run, job *domain.JobRun) error
	OnRunFinished(ctx context.Context, run *domain.Run) error
}

// NopObserver — Observer, который ничего не делает. Удобен для встраивания.
type NopObserver struct{}

func (NopObserver) OnRunStarted(context.Context, *domain.Run) error                  { return nil }
func (NopObserver) OnJobStarted(context.Context, *domain.Run, *domain.JobRun) error  { return nil }
func (NopObserver) OnJobFinished(context.Context, *domain.Run, *domain.JobRun) error { return nil }
func (NopObserver) OnRunFinished(context.Context, *domain.Run) error                 { return nil }
