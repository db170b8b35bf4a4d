package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/shaiso/mediacorr/internal/domain"
	"github.com/shaiso/mediacorr/internal/mq"
	"github.com/shaiso/mediacorr/internal/repo"
	"github.com/shaiso/mediacorr/internal/runner"
	"github.com/shaiso/mediacorr/internal/scheduler"
	"github.com/shaiso/mediacorr/internal/telemetry"
)

const (
	// leaderRetryInterval — как часто резервный процесс пытается взять lock.
	leaderRetryInterval = 5 * time.Second
	// leaderCheckInterval — как часто лидер проверяет соединение lock'а.
	leaderCheckInterval = 10 * time.Second
)

// NewServeCmd создаёт команду долгоживущего режима.
func NewServeCmd(envFn func() (*Env, error)) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a cron schedule and on queue requests",
		Long: `Run as a long-lived process. Triggers come from schedule.cron and from
pipeline.requested messages (when rabbitmq.url is set); runs never
overlap. Serves /healthz and /metrics. With database.url set, runs are
recorded and only the process holding the advisory lock executes them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := envFn()
			if err != nil {
				return err
			}
			if addr != "" {
				env.Config.Serve.Addr = addr
			}
			return Serve(cmd.Context(), env)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address for /healthz and /metrics (default from config, :8080)")

	return cmd
}

// Serve запускает режим serve и блокируется до отмены ctx.
func Serve(ctx context.Context, env *Env) error {
	logger := env.Logger

	backend, err := env.Backend()
	if err != nil {
		return err
	}

	in, err := env.Connect(ctx)
	if err != nil {
		return err
	}
	defer in.Close()

	// Занятый порт — ошибка запуска, а не фоновый сбой.
	ln, err := net.Listen("tcp", env.Config.Serve.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", env.Config.Serve.Addr, err)
	}
	defer ln.Close()

	metrics := telemetry.NewMetrics(nil)
	r := env.Runner(backend, append(in.Observers(), metrics)...)

	pipeline := env.Pipeline()
	if _, err := r.Prepare(pipeline, runner.Options{}); err != nil {
		return err
	}

	sched, err := scheduler.New(scheduler.Config{
		Runner:   r,
		Pipeline: pipeline,
		Cron:     env.Config.Schedule.Cron,
		OnSkip:   func(scheduler.Trigger) { metrics.TriggerSkipped() },
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	if env.Config.Schedule.Cron == "" && in.Conn == nil {
		logger.Warn("no triggers configured, set schedule.cron or rabbitmq.url")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Первая ошибка фоновой части (HTTP, потеря lock) останавливает serve
	// и становится результатом Serve.
	failed := make(chan error, 1)
	fail := func(err error) {
		select {
		case failed <- err:
		default:
		}
		cancel()
	}
	result := func(err error) error {
		select {
		case ferr := <-failed:
			return ferr
		default:
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	var leader atomic.Bool
	srv := &http.Server{
		Handler:           serveMux(&leader, r, sched),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			fail(fmt.Errorf("http server: %w", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	var lock *repo.Lock
	if in.Pool != nil {
		lock, err = acquireLeadership(ctx, in.Pool, repo.LockKey(pipeline.Name), logger)
		if err != nil {
			return result(err)
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				logger.Warn("release leader lock", "error", err)
			}
		}()

		n, err := in.Runs.MarkInterrupted(ctx, pipeline.Name)
		if err != nil {
			return result(err)
		}
		if n > 0 {
			logger.Warn("marked interrupted runs as cancelled", "count", n)
		}
	}
	leader.Store(true)

	if lock != nil {
		go func() {
			if err := watchLeadership(ctx, lock, leaderCheckInterval); err != nil {
				leader.Store(false)
				logger.Error("leader lock lost, stopping", "error", err)
				fail(err)
			}
		}()
	}

	if in.Conn != nil {
		consumer := mq.NewConsumer(in.Conn, logger, mq.ConsumerConfig{
			Queue:   mq.QueuePipelineRequested,
			Handler: requestHandler(sched),
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "error", err)
			}
		}()
		logger.Debug("rabbitmq topology" + mq.TopologyInfo())
	}

	return result(sched.Start(ctx))
}

// lockHolder — соединение, на котором держится advisory lock.
type lockHolder interface {
	Ping(ctx context.Context) error
}

// watchLeadership проверяет соединение lock'а каждые interval.
// Lock живёт только пока живо соединение: при обрыве сервер его
// отпускает, и возвращается ErrLeadershipLost. Отмена ctx → nil.
func watchLeadership(ctx context.Context, lock lockHolder, interval time.Duration) error {
	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tk.C:
		}

		pingCtx, cancel := context.WithTimeout(ctx, interval)
		err := lock.Ping(pingCtx)
		cancel()
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("%w: %v", ErrLeadershipLost, err)
		}
	}
}

// acquireLeadership ждёт advisory lock пайплайна.
func acquireLeadership(ctx context.Context, pool *pgxpool.Pool, key int64, logger *slog.Logger) (*repo.Lock, error) {
	tk := time.NewTicker(leaderRetryInterval)
	defer tk.Stop()

	waiting := false
	for {
		lock, err := repo.TryLock(ctx, pool, key)
		switch {
		case err == nil:
			logger.Info("leader lock acquired")
			return lock, nil
		case errors.Is(err, repo.ErrLockHeld):
			if !waiting {
				logger.Info("another process holds the leader lock, standing by")
				waiting = true
			}
		default:
			logger.Warn("leader lock attempt failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-tk.C:
		}
	}
}

// triggerer — то, что принимает запросы на запуск. Реализуется *scheduler.Scheduler.
type triggerer interface {
	Trigger(scheduler.Trigger) error
}

// requestHandler обрабатывает pipeline.requested.
//
// Некорректный запрос уходит в DLQ; запрос, пришедший во время run,
// возвращается в очередь.
func requestHandler(t triggerer) mq.Handler {
	return func(ctx context.Context, d *mq.Delivery) error {
		if d.Message.Type != mq.MessageTypePipelineRequest {
			return mq.Permanent(fmt.Errorf("unexpected message type %q", d.Message.Type))
		}

		req, err := mq.ParsePayload[mq.RunRequestPayload](&d.Message)
		if err != nil {
			return mq.Permanent(err)
		}

		err = t.Trigger(scheduler.Trigger{
			Source: scheduler.SourceQueue,
			From:   req.From,
			To:     req.To,
			ID:     d.Message.ID,
		})
		if errors.Is(err, scheduler.ErrInvalidRequest) {
			return mq.Permanent(err)
		}
		return err
	}
}

// healthView — ответ /healthz.
type healthView struct {
	Status  string `json:"status"`
	Leader  bool   `json:"leader"`
	Running bool   `json:"running"`
	LastRun any    `json:"last_run,omitempty"`
}

type runState interface {
	Running() bool
}

type lastRunner interface {
	LastRun() *domain.Run
}

func serveMux(leader *atomic.Bool, r runState, s lastRunner) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		view := healthView{
			Status:  "ok",
			Leader:  leader.Load(),
			Running: r.Running(),
		}
		if last := s.LastRun(); last != nil {
			view.LastRun = map[string]any{
				"id":         last.ID,
				"status":     last.Status,
				"trigger":    last.Trigger,
				"failed_job": last.FailedJob,
				"finished":   last.FinishedAt,
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(view)
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
