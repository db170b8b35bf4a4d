package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	batchv1 "k8s.io/api/batch/v1"

	"github.com/shaiso/mediacorr/internal/config"
	"github.com/shaiso/mediacorr/internal/domain"
	"github.com/shaiso/mediacorr/internal/kube"
	"github.com/shaiso/mediacorr/internal/mq"
	"github.com/shaiso/mediacorr/internal/repo"
	"github.com/shaiso/mediacorr/internal/runner"
)

// ErrNotConfigured — команде нужна интеграция, которая не настроена.
var ErrNotConfigured = errors.New("not configured")

// ErrLeadershipLost — serve потерял соединение, на котором держал advisory lock.
var ErrLeadershipLost = errors.New("leader lock lost")

// Backend — backend jobs, которым пользуются команды. Реализуется *kube.Backend.
type Backend interface {
	runner.Backend
	Render(ctx context.Context, sub domain.Submission) (*batchv1.Job, error)
	Status(ctx context.Context, ref domain.JobRef) (domain.JobState, error)
}

// Env — общее окружение команд: конфигурация, логгер и backend.
type Env struct {
	Config *config.Config
	Logger *slog.Logger

	backend Backend
}

// LoadEnv читает конфигурацию.
func LoadEnv(path string, logger *slog.Logger) (*Env, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.File != "" {
		logger.Debug("config loaded", "file", cfg.File)
	}
	return &Env{Config: cfg, Logger: logger}, nil
}

// Pipeline строит пайплайн из конфигурации.
func (e *Env) Pipeline() *domain.Pipeline {
	return e.Config.BuildPipeline()
}

// Backend возвращает Kubernetes backend, создавая клиент при первом вызове.
func (e *Env) Backend() (Backend, error) {
	if e.backend != nil {
		return e.backend, nil
	}

	policy, err := kube.ParsePolicy(e.Config.Kube.OnConflict)
	if err != nil {
		return nil, err
	}
	client, err := kube.NewClient(e.Config.Kube.Kubeconfig, e.Config.Kube.RequestTimeout)
	if err != nil {
		return nil, err
	}

	e.backend = kube.New(kube.Config{
		Client:         client,
		Store:          e.Config.Store(),
		PollInterval:   e.Config.Kube.PollInterval,
		OnConflict:     policy,
		ReplaceTimeout: e.Config.Kube.ReplaceTimeout,
		Logger:         e.Logger,
	})
	return e.backend, nil
}

// Renderer возвращает backend без клиента: только для Render.
// render и validate работают без доступа к кластеру.
func (e *Env) Renderer() Backend {
	if e.backend != nil {
		return e.backend
	}
	return kube.New(kube.Config{Store: e.Config.Store(), Logger: e.Logger})
}

// Runner создаёт Runner с observers.
func (e *Env) Runner(backend runner.Backend, observers ...runner.Observer) *runner.Runner {
	return runner.New(runner.Config{
		Backend:        backend,
		Namespace:      e.Config.Pipeline.Namespace,
		DefaultTimeout: e.Config.Pipeline.Timeout,
		Observers:      observers,
		Logger:         e.Logger,
	})
}

// Integrations — подключения к PostgreSQL и RabbitMQ, если они настроены.
type Integrations struct {
	Pool      *pgxpool.Pool
	Runs      *repo.RunRepo
	Conn      *mq.Connection
	Publisher *mq.Publisher
}

// Observers возвращает observers history и events для настроенных интеграций.
func (i *Integrations) Observers() []runner.Observer {
	var observers []runner.Observer
	if i.Runs != nil {
		observers = append(observers, repo.NewHistory(i.Runs))
	}
	if i.Publisher != nil {
		observers = append(observers, mq.NewEvents(i.Publisher))
	}
	return observers
}

// Close закрывает подключения.
func (i *Integrations) Close() {
	if i.Conn != nil {
		_ = i.Conn.Close()
	}
	if i.Pool != nil {
		i.Pool.Close()
	}
}

// Connect подключает PostgreSQL (с миграцией схемы) и RabbitMQ
// (с объявлением топологии). Ненастроенная интеграция пропускается.
func (e *Env) Connect(ctx context.Context) (*Integrations, error) {
	in := &Integrations{}

	if url := e.Config.Database.URL; url != "" {
		pool, err := repo.NewPool(ctx, url)
		if err != nil {
			return nil, err
		}
		in.Pool = pool
		if err := repo.Migrate(ctx, pool); err != nil {
			in.Close()
			return nil, err
		}
		in.Runs = repo.NewRunRepo(pool)
		e.Logger.Info("run history enabled")
	}

	if url := e.Config.RabbitMQ.URL; url != "" {
		conn, err := mq.NewConnection(url, e.Logger)
		if err != nil {
			in.Close()
			return nil, err
		}
		in.Conn = conn
		if err := mq.SetupTopology(ctx, conn); err != nil {
			in.Close()
			return nil, err
		}
		in.Publisher = mq.NewPublisher(conn, e.Logger)
		e.Logger.Info("run events enabled")
	}

	return in, nil
}

// requireDatabase открывает пул для команд, которым нужна история.
func (e *Env) requireDatabase(ctx context.Context) (*repo.RunRepo, func(), error) {
	if e.Config.Database.URL == "" {
		return nil, nil, fmt.Errorf("database: %w (set database.url or DB_URL)", ErrNotConfigured)
	}
	pool, err := repo.NewPool(ctx, e.Config.Database.URL)
	if err != nil {
		return nil, nil, err
	}
	return repo.NewRunRepo(pool), pool.Close, nil
}

// selectJobs возвращает jobs пайплайна или один job по имени. Имя может
// ссылаться и на дополнительный шаблон вне пайплайна (icolcap).
func (e *Env) selectJobs(args []string) (*domain.Pipeline, []domain.JobDef, error) {
	p := e.Pipeline()
	if len(args) == 0 {
		return p, p.Jobs, nil
	}

	name := args[0]
	if i := p.Index(name); i >= 0 {
		return p, p.Jobs[i : i+1], nil
	}
	for _, t := range e.Config.Templates {
		if t.Name == name {
			return p, []domain.JobDef{{Name: t.Name, Manifest: t.Manifest}}, nil
		}
	}
	return nil, nil, fmt.Errorf("unknown job %q", name)
}
