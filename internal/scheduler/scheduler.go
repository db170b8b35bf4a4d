package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/mediacorr/internal/domain"
	"github.com/shaiso/mediacorr/internal/runner"
)

// Источники триггеров.
const (
	SourceCron  = "cron"
	SourceQueue = "queue"
)

// Runner — то, что выполняет пайплайн. Реализуется *runner.Runner.
type Runner interface {
	Run(ctx context.Context, p *domain.Pipeline, opts runner.Options) (*domain.Run, error)
}

// Trigger — запрос на запуск пайплайна.
type Trigger struct {
	// Source — источник: SourceCron или SourceQueue.
	Source string

	// From/To — диапазон jobs (пусто — весь пайплайн).
	From string
	To   string

	// ID — идентификатор запроса (message id), для логов.
	ID string
}

// Config — конфигурация Scheduler.
type Config struct {
	// Runner выполняет пайплайн.
	Runner Runner

	// Pipeline — пайплайн, который запускают триггеры.
	Pipeline *domain.Pipeline

	// Cron — расписание. Пусто → только внешние триггеры.
	Cron string

	// OnSkip вызывается, когда триггер пропущен из-за выполняющегося run.
	OnSkip func(Trigger)

	// Logger — логгер.
	Logger *slog.Logger
}

// Scheduler — цикл режима serve: принимает триггеры от cron и очереди
// и выполняет не больше одного run одновременно.
type Scheduler struct {
	runner   Runner
	pipeline *domain.Pipeline
	cronExpr string
	onSkip   func(Trigger)
	logger   *slog.Logger

	// triggers без буфера: отправка проходит, только пока цикл свободен.
	triggers chan Trigger

	mu      sync.Mutex
	lastRun *domain.Run
}

// New создаёт Scheduler. Cron-выражение проверяется сразу.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Cron != "" {
		if err := ValidateCronExpr(cfg.Cron); err != nil {
			return nil, err
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Scheduler{
		runner:   cfg.Runner,
		pipeline: cfg.Pipeline,
		cronExpr: cfg.Cron,
		onSkip:   cfg.OnSkip,
		logger:   cfg.Logger,
		triggers: make(chan Trigger),
	}, nil
}

// Trigger передаёт запрос циклу, не блокируясь.
//
// Возвращает ErrInvalidRequest, если диапазон From/To не существует,
// и ErrBusy, если run уже выполняется (или цикл не запущен).
func (s *Scheduler) Trigger(t Trigger) error {
	if _, err := s.pipeline.Slice(t.From, t.To); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	select {
	case s.triggers <- t:
		return nil
	default:
		s.logger.Warn("trigger skipped, run in progress",
			"source", t.Source,
			"request_id", t.ID,
		)
		if s.onSkip != nil {
			s.onSkip(t)
		}
		return ErrBusy
	}
}

// LastRun возвращает последний завершённый run (nil, если runs не было).
func (s *Scheduler) LastRun() *domain.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

// Start запускает цикл и блокируется до отмены ctx.
// Выполняющийся run при отмене прерывается через тот же ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	var c *cron.Cron
	if s.cronExpr != "" {
		cl := cronLogger{logger: s.logger}
		c = cron.New(
			cron.WithParser(cronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl)),
		)
		if _, err := c.AddFunc(s.cronExpr, func() {
			_ = s.Trigger(Trigger{Source: SourceCron})
		}); err != nil {
			return fmt.Errorf("%w %q: %v", ErrInvalidCron, s.cronExpr, err)
		}
		c.Start()

		next, _ := NextRun(s.cronExpr, time.Now())
		s.logger.Info("cron schedule enabled", "cron", s.cronExpr, "next_run", next)
	}

	s.logger.Info("scheduler started", "pipeline", s.pipeline.Name)

	for {
		select {
		case <-ctx.Done():
			if c != nil {
				<-c.Stop().Done()
			}
			s.logger.Info("scheduler stopped")
			return nil

		case t := <-s.triggers:
			s.execute(ctx, t)
		}
	}
}

// execute выполняет один run. Ошибки run логируются, цикл продолжается.
func (s *Scheduler) execute(ctx context.Context, t Trigger) {
	logger := s.logger.With("source", t.Source)
	if t.ID != "" {
		logger = logger.With("request_id", t.ID)
	}
	logger.Info("trigger accepted", "from", t.From, "to", t.To)

	run, err := s.runner.Run(ctx, s.pipeline, runner.Options{
		Trigger: t.Source,
		From:    t.From,
		To:      t.To,
	})
	if run != nil {
		s.mu.Lock()
		s.lastRun = run
		s.mu.Unlock()
	}

	switch {
	case err == nil:
	case errors.Is(err, runner.ErrCancelled):
		logger.Warn("run cancelled", "error", err)
	default:
		// Итог run уже залогирован runner'ом; здесь только ошибки подготовки.
		if run == nil {
			logger.Error("run not started", "error", err)
		}
	}
}
