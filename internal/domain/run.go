package domain

import (
	"time"

	"github.com/google/uuid"
)

// Run — один запуск пайплайна.
//
// Run создаётся когда:
// - Оператор запускает пайплайн через CLI
// - Cron-расписание срабатывает в режиме serve
// - Приходит сообщение pipeline.requested из RabbitMQ
//
// Run содержит по одному JobRun на каждый job пайплайна, в том же порядке.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Pipeline — имя пайплайна.
	Pipeline string `json:"pipeline"`

	// Namespace — namespace, куда отправлялись jobs.
	Namespace string `json:"namespace"`

	// Trigger — источник запуска: "cli", "cron", "queue".
	Trigger string `json:"trigger,omitempty"`

	// Status — текущий статус run.
	Status RunStatus `json:"status"`

	// Jobs — результаты jobs в порядке пайплайна.
	Jobs []JobRun `json:"jobs"`

	// FailedJob — имя job, на котором run остановился.
	FailedJob string `json:"failed_job,omitempty"`

	// Error — текст ошибки, если run не SUCCEEDED.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт run в статусе PENDING с JobRun на каждый job.
func NewRun(p *Pipeline, trigger string) *Run {
	jobs := make([]JobRun, len(p.Jobs))
	for i, j := range p.Jobs {
		jobs[i] = JobRun{Name: j.Name, Status: JobStatusPending}
	}
	return &Run{
		ID:        uuid.New(),
		Pipeline:  p.Name,
		Namespace: p.Namespace,
		Trigger:   trigger,
		Status:    RunStatusPending,
		Jobs:      jobs,
		CreatedAt: time.Now(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// Succeeded возвращает true, если все jobs завершились успешно.
func (r *Run) Succeeded() bool {
	return r.Status == RunStatusSucceeded
}

// Submitted возвращает имена jobs, которые были отправлены в backend.
func (r *Run) Submitted() []string {
	var names []string
	for _, j := range r.Jobs {
		if j.Status != JobStatusPending {
			names = append(names, j.Name)
		}
	}
	return names
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now()
	r.Status = RunStatusRunning
	r.StartedAt = &now
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
}

// MarkStopped завершает run на job с указанным статусом.
func (r *Run) MarkStopped(job string, status RunStatus, err string) {
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
	r.FailedJob = job
	r.Error = err
}

// JobRun — результат одного job внутри run.
type JobRun struct {
	// Name — имя job из пайплайна.
	Name string `json:"name"`

	// Resource — фактическое имя ресурса в backend.
	Resource string `json:"resource,omitempty"`

	// Status — статус job.
	Status JobStatus `json:"status"`

	// Reason — причина из терминального условия (например, BackoffLimitExceeded).
	Reason string `json:"reason,omitempty"`

	// Error — текст ошибки.
	Error string `json:"error,omitempty"`

	// StartedAt — время отправки в backend.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время получения терминального условия.
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration возвращает продолжительность выполнения.
func (j *JobRun) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// MarkRunning переводит job в статус RUNNING.
func (j *JobRun) MarkRunning() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// MarkSucceeded переводит job в статус SUCCEEDED.
func (j *JobRun) MarkSucceeded() {
	now := time.Now()
	j.Status = JobStatusSucceeded
	j.FinishedAt = &now
}

// MarkFinished завершает job с неуспешным статусом.
func (j *JobRun) MarkFinished(status JobStatus, reason, err string) {
	now := time.Now()
	j.Status = status
	j.FinishedAt = &now
	j.Reason = reason
	j.Error = err
}
