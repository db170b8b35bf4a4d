package mq

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/mediacorr/internal/domain"
)

// Sender — то, куда Events отправляет сообщения. Реализуется *Publisher.
type Sender interface {
	Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error
}

// RunEventPayload — payload событий run.started и run.finished.
type RunEventPayload struct {
	RunID      uuid.UUID        `json:"run_id"`
	Pipeline   string           `json:"pipeline"`
	Namespace  string           `json:"namespace"`
	Trigger    string           `json:"trigger,omitempty"`
	Status     domain.RunStatus `json:"status"`
	Jobs       []string         `json:"jobs,omitempty"`
	FailedJob  string           `json:"failed_job,omitempty"`
	Error      string           `json:"error,omitempty"`
	StartedAt  *time.Time       `json:"started_at,omitempty"`
	FinishedAt *time.Time       `json:"finished_at,omitempty"`
	DurationMs int64            `json:"duration_ms,omitempty"`
}

// JobEventPayload — payload событий job.started и job.finished.
type JobEventPayload struct {
	RunID      uuid.UUID        `json:"run_id"`
	Pipeline   string           `json:"pipeline"`
	Job        string           `json:"job"`
	Resource   string           `json:"resource,omitempty"`
	Status     domain.JobStatus `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	Error      string           `json:"error,omitempty"`
	DurationMs int64            `json:"duration_ms,omitempty"`
}

// Events публикует ход runs в mediacorr.events. Реализует runner.Observer.
type Events struct {
	sender Sender
}

// NewEvents создаёт Events.
func NewEvents(sender Sender) *Events {
	return &Events{sender: sender}
}

func (e *Events) OnRunStarted(ctx context.Context, run *domain.Run) error {
	payload := runPayload(run)
	for _, j := range run.Jobs {
		payload.Jobs = append(payload.Jobs, j.Name)
	}
	return e.send(ctx, RoutingKeyRunStarted, MessageTypeRunStarted, payload)
}

func (e *Events) OnJobStarted(ctx context.Context, run *domain.Run, job *domain.JobRun) error {
	return e.send(ctx, RoutingKeyJobStarted, MessageTypeJobStarted, jobPayload(run, job))
}

func (e *Events) OnJobFinished(ctx context.Context, run *domain.Run, job *domain.JobRun) error {
	return e.send(ctx, RoutingKeyJobFinished, MessageTypeJobFinished, jobPayload(run, job))
}

func (e *Events) OnRunFinished(ctx context.Context, run *domain.Run) error {
	return e.send(ctx, RoutingKeyRunFinished, MessageTypeRunFinished, runPayload(run))
}

func (e *Events) send(ctx context.Context, key RoutingKey, msgType MessageType, payload any) error {
	return e.sender.Publish(ctx, ExchangeEvents, key, NewMessage(msgType, payload))
}

func runPayload(run *domain.Run) RunEventPayload {
	return RunEventPayload{
		RunID:      run.ID,
		Pipeline:   run.Pipeline,
		Namespace:  run.Namespace,
		Trigger:    run.Trigger,
		Status:     run.Status,
		FailedJob:  run.FailedJob,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DurationMs: run.Duration().Milliseconds(),
	}
}

func jobPayload(run *domain.Run, job *domain.JobRun) JobEventPayload {
	return JobEventPayload{
		RunID:      run.ID,
		Pipeline:   run.Pipeline,
		Job:        job.Name,
		Resource:   job.Resource,
		Status:     job.Status,
		Reason:     job.Reason,
		Error:      job.Error,
		DurationMs: job.Duration().Milliseconds(),
	}
}
