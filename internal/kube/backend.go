package kube

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/kubernetes"
	"k8s.io/utils/ptr"

	"github.com/shaiso/mediacorr/internal/domain"
	"github.com/shaiso/mediacorr/internal/manifest"
)

// Метки, которые backend ставит на Job и его pod'ы.
const (
	LabelPartOf = "app.kubernetes.io/part-of"
	LabelJob    = "mediacorr.io/job"
	LabelRunID  = "mediacorr.io/run-id"
)

// ConflictPolicy — что делать, если Job с таким именем уже есть.
type ConflictPolicy string

const (
	// PolicyReplace — удалить старый Job и создать заново.
	PolicyReplace ConflictPolicy = "replace"

	// PolicyReuse — оставить существующий Job и ждать его условия.
	PolicyReuse ConflictPolicy = "reuse"
)

// ParsePolicy разбирает политику из конфигурации. Пусто → PolicyReplace.
func ParsePolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(s) {
	case "", PolicyReplace:
		return PolicyReplace, nil
	case PolicyReuse:
		return PolicyReuse, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Config — конфигурация Backend.
type Config struct {
	// Client — клиент Kubernetes.
	Client kubernetes.Interface

	// Store разрешает ссылки на манифесты.
	Store manifest.Store

	// PollInterval — интервал опроса статуса Job (по умолчанию 2s).
	PollInterval time.Duration

	// OnConflict — политика для уже существующего Job (по умолчанию replace).
	OnConflict ConflictPolicy

	// ReplaceTimeout — сколько ждать удаления старого Job (по умолчанию 2m).
	ReplaceTimeout time.Duration

	// Logger — логгер.
	Logger *slog.Logger
}

// Backend отправляет Jobs в кластер и ждёт их завершения.
type Backend struct {
	client         kubernetes.Interface
	store          manifest.Store
	pollInterval   time.Duration
	onConflict     ConflictPolicy
	replaceTimeout time.Duration
	logger         *slog.Logger
}

// New создаёт Backend.
func New(cfg Config) *Backend {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.OnConflict == "" {
		cfg.OnConflict = PolicyReplace
	}
	if cfg.ReplaceTimeout <= 0 {
		cfg.ReplaceTimeout = 2 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Backend{
		client:         cfg.Client,
		store:          cfg.Store,
		pollInterval:   cfg.PollInterval,
		onConflict:     cfg.OnConflict,
		replaceTimeout: cfg.ReplaceTimeout,
		logger:         cfg.Logger,
	}
}

// Render разрешает манифест и готовит его к отправке, но не создаёт Job.
func (b *Backend) Render(ctx context.Context, sub domain.Submission) (*batchv1.Job, error) {
	job, err := b.store.Resolve(ctx, sub.Job.ManifestRef())
	if err != nil {
		return nil, fmt.Errorf("resolve manifest %s: %w", sub.Job.ManifestRef(), err)
	}

	job.Namespace = sub.Namespace
	job.ResourceVersion = ""

	labels := jobLabels(sub)
	job.Labels = mergeLabels(job.Labels, labels)
	job.Spec.Template.Labels = mergeLabels(job.Spec.Template.Labels, labels)

	return job, nil
}

// Submit создаёт Job в namespace submission'а.
func (b *Backend) Submit(ctx context.Context, sub domain.Submission) (domain.JobRef, error) {
	job, err := b.Render(ctx, sub)
	if err != nil {
		return domain.JobRef{}, err
	}

	ref := domain.JobRef{Namespace: job.Namespace, Name: job.Name}
	logger := b.logger.With("job", sub.Job.Name, "resource", ref.String())

	_, err = b.client.BatchV1().Jobs(ref.Namespace).Create(ctx, job, metav1.CreateOptions{})
	if err == nil {
		logger.Info("job created")
		return ref, nil
	}
	if !apierrors.IsAlreadyExists(err) {
		return domain.JobRef{}, fmt.Errorf("create job %s: %w", ref, err)
	}

	switch b.onConflict {
	case PolicyReuse:
		logger.Warn("job already exists, reusing")
		return ref, nil

	case PolicyReplace:
		logger.Info("job already exists, replacing")
		if err := b.delete(ctx, ref); err != nil {
			return domain.JobRef{}, err
		}
		if _, err := b.client.BatchV1().Jobs(ref.Namespace).Create(ctx, job, metav1.CreateOptions{}); err != nil {
			return domain.JobRef{}, fmt.Errorf("re-create job %s: %w", ref, err)
		}
		logger.Info("job re-created")
		return ref, nil

	default:
		return domain.JobRef{}, fmt.Errorf("%w: %q", ErrUnknownPolicy, b.onConflict)
	}
}

// delete удаляет Job (pod'ы удаляет сборщик мусора) и ждёт, пока
// объект исчезнет из API.
func (b *Backend) delete(ctx context.Context, ref domain.JobRef) error {
	jobs := b.client.BatchV1().Jobs(ref.Namespace)

	err := jobs.Delete(ctx, ref.Name, metav1.DeleteOptions{
		PropagationPolicy: ptr.To(metav1.DeletePropagationBackground),
	})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("delete job %s: %w", ref, err)
	}

	err = wait.PollUntilContextTimeout(ctx, b.pollInterval, b.replaceTimeout, true,
		func(ctx context.Context) (bool, error) {
			_, err := jobs.Get(ctx, ref.Name, metav1.GetOptions{})
			if apierrors.IsNotFound(err) {
				return true, nil
			}
			return false, nil
		})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s", ErrReplaceTimeout, ref)
	}
	return nil
}

// Await блокируется, пока Job не получит условие Complete или Failed.
//
// Возвращает ошибку, если Job исчез, доступ запрещён или контекст
// завершился. Временные ошибки API логируются, опрос продолжается.
// Таймаут задаёт вызывающий через ctx.
func (b *Backend) Await(ctx context.Context, ref domain.JobRef) (domain.Condition, error) {
	var cond domain.Condition
	logger := b.logger.With("resource", ref.String())

	err := wait.PollUntilContextCancel(ctx, b.pollInterval, true, func(ctx context.Context) (bool, error) {
		job, err := b.client.BatchV1().Jobs(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
		switch {
		case apierrors.IsNotFound(err):
			return false, fmt.Errorf("%w: %s", ErrJobGone, ref)
		case apierrors.IsForbidden(err), apierrors.IsUnauthorized(err):
			return false, fmt.Errorf("get job %s: %w", ref, err)
		case err != nil:
			if ctx.Err() == nil {
				logger.Warn("get job failed, retrying", "error", err)
			}
			return false, nil
		}

		c, ok := TerminalCondition(job)
		if !ok {
			logger.Debug("job not finished",
				"active", job.Status.Active,
				"succeeded", job.Status.Succeeded,
				"failed", job.Status.Failed,
			)
			return false, nil
		}
		cond = c
		return true, nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Condition{}, ctxErr
		}
		return domain.Condition{}, err
	}
	return cond, nil
}

// Status возвращает снимок счётчиков pod'ов Job.
func (b *Backend) Status(ctx context.Context, ref domain.JobRef) (domain.JobState, error) {
	job, err := b.client.BatchV1().Jobs(ref.Namespace).Get(ctx, ref.Name, metav1.GetOptions{})
	if err != nil {
		return domain.JobState{}, fmt.Errorf("get job %s: %w", ref, err)
	}

	state := domain.JobState{
		Name:      job.Name,
		Active:    job.Status.Active,
		Succeeded: job.Status.Succeeded,
		Failed:    job.Status.Failed,
	}
	if c, ok := TerminalCondition(job); ok {
		state.Condition = &c
	}
	return state, nil
}

// TerminalCondition ищет у Job условие Complete=True или Failed=True.
func TerminalCondition(job *batchv1.Job) (domain.Condition, bool) {
	for _, c := range job.Status.Conditions {
		if c.Status != corev1.ConditionTrue {
			continue
		}
		switch c.Type {
		case batchv1.JobComplete:
			return domain.Condition{Type: domain.ConditionComplete, Reason: c.Reason, Message: c.Message}, true
		case batchv1.JobFailed:
			return domain.Condition{Type: domain.ConditionFailed, Reason: c.Reason, Message: c.Message}, true
		}
	}
	return domain.Condition{}, false
}

func jobLabels(sub domain.Submission) map[string]string {
	labels := map[string]string{LabelJob: sub.Job.Name}
	if sub.Pipeline != "" {
		labels[LabelPartOf] = sub.Pipeline
	}
	if sub.RunID != uuid.Nil {
		labels[LabelRunID] = sub.RunID.String()
	}
	return labels
}

func mergeLabels(dst, src map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
