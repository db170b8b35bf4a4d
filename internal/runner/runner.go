package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/shaiso/mediacorr/internal/domain"
	"github.com/shaiso/mediacorr/internal/engine"
	"github.com/shaiso/mediacorr/internal/telemetry"
)

// DefaultTimeout — таймаут ожидания job по умолчанию.
const DefaultTimeout = 30 * time.Minute

// Backend — исполнительный backend jobs.
type Backend interface {
	// Submit отправляет job и возвращает идентификатор ресурса.
	Submit(ctx context.Context, sub domain.Submission) (domain.JobRef, error)

	// Await блокируется до терминального условия job или отмены ctx.
	Await(ctx context.Context, ref domain.JobRef) (domain.Condition, error)
}

// Config — конфигурация Runner.
type Config struct {
	// Backend — исполнительный backend.
	Backend Backend

	// Namespace — namespace для пайплайнов, у которых он не задан.
	Namespace string

	// DefaultTimeout — таймаут для jobs без собственного (по умолчанию 30m).
	DefaultTimeout time.Duration

	// Observers — получатели событий run.
	Observers []Observer

	// Logger — логгер.
	Logger *slog.Logger
}

// Options — параметры одного run.
type Options struct {
	// Trigger — источник запуска ("cli", "cron", "queue").
	Trigger string

	// From/To — выполнить только часть пайплайна (включительно).
	From string
	To   string
}

// Runner выполняет пайплайны по одному job за раз.
type Runner struct {
	backend        Backend
	namespace      string
	defaultTimeout time.Duration
	observers      []Observer
	logger         *slog.Logger

	running atomic.Bool
}

// New создаёт Runner.
func New(cfg Config) *Runner {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Runner{
		backend:        cfg.Backend,
		namespace:      cfg.Namespace,
		defaultTimeout: cfg.DefaultTimeout,
		observers:      cfg.Observers,
		logger:         cfg.Logger,
	}
}

// Running возвращает true, пока выполняется run.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Prepare применяет namespace по умолчанию, вырезает диапазон
// From/To и валидирует результат.
func (r *Runner) Prepare(p *domain.Pipeline, opts Options) (*domain.Pipeline, error) {
	if p == nil {
		return nil, engine.ErrEmptyPipeline
	}

	sliced, err := p.Slice(opts.From, opts.To)
	if err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}
	if sliced.Namespace == "" {
		sliced.Namespace = r.namespace
	}

	if err := engine.Validate(sliced); err != nil {
		return nil, err
	}
	return sliced, nil
}

// Timeout возвращает таймаут ожидания job.
func (r *Runner) Timeout(job domain.JobDef) time.Duration {
	if job.Timeout > 0 {
		return job.Timeout
	}
	return r.defaultTimeout
}

// Run выполняет пайплайн.
//
// Возвращает run с результатами всех jobs. Если run остановился на job,
// ошибка — *JobError с именем job. Ошибка подготовки (валидация,
// ErrRunInProgress) возвращается без run.
func (r *Runner) Run(ctx context.Context, p *domain.Pipeline, opts Options) (*domain.Run, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	p, err := r.Prepare(p, opts)
	if err != nil {
		return nil, err
	}

	run := domain.NewRun(p, opts.Trigger)
	logger := telemetry.WithPipeline(telemetry.WithRunID(r.logger, run.ID.String()), p.Name, p.Namespace)
	notifyCtx := context.WithoutCancel(ctx)

	run.MarkRunning()
	logger.Info("run started", "jobs", len(p.Jobs), "trigger", opts.Trigger)
	r.notify(logger, "run started", func(o Observer) error { return o.OnRunStarted(notifyCtx, run) })

	for i, job := range p.Jobs {
		jr := &run.Jobs[i]
		jobLogger := telemetry.WithJob(logger, job.Name)

		jr.MarkRunning()
		r.notify(jobLogger, "job started", func(o Observer) error { return o.OnJobStarted(notifyCtx, run, jr) })

		jobErr := r.runJob(ctx, run, job, jr, jobLogger)
		if jobErr != nil {
			jr.MarkFinished(jobErr.Status(), jobErr.Reason(), jobErr.Error())
		} else {
			jr.MarkSucceeded()
			jobLogger.Info("job succeeded", "resource", jr.Resource, "duration", jr.Duration())
		}
		r.notify(jobLogger, "job finished", func(o Observer) error { return o.OnJobFinished(notifyCtx, run, jr) })

		if jobErr != nil {
			run.MarkStopped(job.Name, jr.Status.RunStatus(), jobErr.Error())
			logger.Error("run stopped",
				"job", job.Name,
				"status", run.Status,
				"error", jobErr,
				"skipped", len(p.Jobs)-i-1,
			)
			r.notify(logger, "run finished", func(o Observer) error { return o.OnRunFinished(notifyCtx, run) })
			return run, jobErr
		}
	}

	run.MarkSucceeded()
	logger.Info("run succeeded", "duration", run.Duration())
	r.notify(logger, "run finished", func(o Observer) error { return o.OnRunFinished(notifyCtx, run) })

	return run, nil
}

// runJob отправляет один job и ждёт его условия.
func (r *Runner) runJob(ctx context.Context, run *domain.Run, job domain.JobDef, jr *domain.JobRun, logger *slog.Logger) *JobError {
	if ctx.Err() != nil {
		return &JobError{Job: job.Name, Kind: ErrCancelled, Err: ctx.Err()}
	}

	ref, err := r.backend.Submit(ctx, domain.Submission{
		RunID:     run.ID,
		Pipeline:  run.Pipeline,
		Namespace: run.Namespace,
		Job:       job,
	})
	if err != nil {
		if ctx.Err() != nil {
			return &JobError{Job: job.Name, Kind: ErrCancelled, Err: err}
		}
		return &JobError{Job: job.Name, Kind: ErrSubmission, Err: err}
	}
	jr.Resource = ref.Name

	timeout := r.Timeout(job)
	logger.Info("job submitted", "resource", ref.String(), "timeout", timeout)

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cond, err := r.backend.Await(waitCtx, ref)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return &JobError{Job: job.Name, Resource: ref.Name, Kind: ErrCancelled, Err: ctx.Err()}
		case errors.Is(waitCtx.Err(), context.DeadlineExceeded):
			return &JobError{Job: job.Name, Resource: ref.Name, Kind: ErrWaitTimeout, Timeout: timeout}
		default:
			return &JobError{Job: job.Name, Resource: ref.Name, Kind: ErrJobFailed, Err: err}
		}
	}

	if !cond.Succeeded() {
		return &JobError{Job: job.Name, Resource: ref.Name, Kind: ErrJobFailed, Condition: &cond}
	}
	return nil
}

// notify вызывает observers и логирует их ошибки.
func (r *Runner) notify(logger *slog.Logger, event string, fn func(Observer) error) {
	for _, o := range r.observers {
		if err := fn(o); err != nil {
			logger.Warn("observer failed", "event", event, "observer", fmt.Sprintf("%T", o), "error", err)
		}
	}
}
