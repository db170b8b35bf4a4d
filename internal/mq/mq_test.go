package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/mediacorr/internal/domain"
)

type sent struct {
	exchange Exchange
	key      RoutingKey
	msg      *Message
}

type fakeSender struct {
	sent []sent
	err  error
}

func (f *fakeSender) Publish(_ context.Context, exchange Exchange, key RoutingKey, msg *Message) error {
	f.sent = append(f.sent, sent{exchange, key, msg})
	return f.err
}

// ackRecorder реализует amqp.Acknowledger.
type ackRecorder struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked = true; return nil }
func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}
func (a *ackRecorder) Reject(_ uint64, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func delivery(t *testing.T, ack *ackRecorder, msg *Message) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	return amqp.Delivery{Acknowledger: ack, Body: body}
}

func TestEvents_Run(t *testing.T) {
	p := &domain.Pipeline{
		Name:      "mediacorr",
		Namespace: "mediacorr",
		Jobs:      []domain.JobDef{{Name: "sources"}, {Name: "ingestor"}},
	}
	run := domain.NewRun(p, "cron")
	sender := &fakeSender{}
	events := NewEvents(sender)
	ctx := context.Background()

	run.MarkRunning()
	if err := events.OnRunStarted(ctx, run); err != nil {
		t.Fatal(err)
	}
	job := &run.Jobs[0]
	job.MarkRunning()
	job.Resource = "sources-job"
	_ = events.OnJobStarted(ctx, run, job)
	job.MarkFinished(domain.JobStatusFailed, "BackoffLimitExceeded", "job sources: failed")
	_ = events.OnJobFinished(ctx, run, job)
	run.MarkStopped("sources", domain.RunStatusFailed, "job sources: failed")
	_ = events.OnRunFinished(ctx, run)

	expected := []RoutingKey{RoutingKeyRunStarted, RoutingKeyJobStarted, RoutingKeyJobFinished, RoutingKeyRunFinished}
	if len(sender.sent) != len(expected) {
		t.Fatalf("expected %d messages, got %d", len(expected), len(sender.sent))
	}
	for i, key := range expected {
		if sender.sent[i].exchange != ExchangeEvents {
			t.Errorf("message %d: expected exchange %s, got %s", i, ExchangeEvents, sender.sent[i].exchange)
		}
		if sender.sent[i].key != key {
			t.Errorf("message %d: expected key %s, got %s", i, key, sender.sent[i].key)
		}
		if string(sender.sent[i].msg.Type) != string(key) {
			t.Errorf("message %d: type %s should match routing key", i, sender.sent[i].msg.Type)
		}
	}

	started := sender.sent[0].msg.Payload.(RunEventPayload)
	if len(started.Jobs) != 2 || started.Trigger != "cron" {
		t.Errorf("unexpected run.started payload %+v", started)
	}

	finishedJob, err := ParsePayload[JobEventPayload](sender.sent[2].msg)
	if err != nil {
		t.Fatal(err)
	}
	if finishedJob.Job != "sources" || finishedJob.Status != domain.JobStatusFailed || finishedJob.Reason != "BackoffLimitExceeded" {
		t.Errorf("unexpected job.finished payload %+v", finishedJob)
	}

	finished, err := ParsePayload[RunEventPayload](sender.sent[3].msg)
	if err != nil {
		t.Fatal(err)
	}
	if finished.RunID != run.ID || finished.FailedJob != "sources" || finished.Status != domain.RunStatusFailed {
		t.Errorf("unexpected run.finished payload %+v", finished)
	}
}

func TestEvents_SenderError(t *testing.T) {
	sender := &fakeSender{err: ErrNoChannel}
	run := domain.NewRun(&domain.Pipeline{Name: "p", Jobs: []domain.JobDef{{Name: "a"}}}, "cli")

	if err := NewEvents(sender).OnRunStarted(context.Background(), run); !errors.Is(err, ErrNoChannel) {
		t.Errorf("expected ErrNoChannel, got %v", err)
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("unknown job")

	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
	if IsPermanent(base) {
		t.Error("plain error is not permanent")
	}

	err := fmt.Errorf("handle request: %w", Permanent(base))
	if !IsPermanent(err) {
		t.Error("wrapped permanent error should be detected")
	}
	if !errors.Is(err, base) {
		t.Error("permanent error should unwrap to the cause")
	}
	if err.Error() != "handle request: unknown job" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestParsePayload(t *testing.T) {
	msg := NewMessage(MessageTypePipelineRequest, RunRequestPayload{From: "filter", RequestedBy: "ops"})

	// Сообщение после доставки: payload приходит как map.
	body, _ := json.Marshal(msg)
	var received Message
	if err := json.Unmarshal(body, &received); err != nil {
		t.Fatal(err)
	}

	req, err := ParsePayload[RunRequestPayload](&received)
	if err != nil {
		t.Fatal(err)
	}
	if req.From != "filter" || req.To != "" || req.RequestedBy != "ops" {
		t.Errorf("unexpected payload %+v", req)
	}

	received.Payload = "not an object"
	if _, err := ParsePayload[RunRequestPayload](&received); err == nil {
		t.Error("expected error for mismatched payload")
	}
}

func TestConsumer_HandleDelivery(t *testing.T) {
	tests := []struct {
		name        string
		handlerErr  error
		body        []byte
		wantAck     bool
		wantRequeue bool
	}{
		{name: "success", wantAck: true},
		{name: "retryable error", handlerErr: errors.New("busy"), wantRequeue: true},
		{name: "permanent error", handlerErr: Permanent(errors.New("bad request"))},
		{name: "malformed body", body: []byte("{not json")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			c := NewConsumer(nil, nil, ConsumerConfig{
				Queue:        QueuePipelineRequested,
				RequeueDelay: time.Millisecond,
				Handler: func(_ context.Context, d *Delivery) error {
					called = true
					if d.Message.Type != MessageTypePipelineRequest {
						t.Errorf("unexpected type %s", d.Message.Type)
					}
					return tt.handlerErr
				},
			})

			ack := &ackRecorder{}
			raw := delivery(t, ack, NewMessage(MessageTypePipelineRequest, RunRequestPayload{}))
			if tt.body != nil {
				raw.Body = tt.body
			}

			c.handleDelivery(context.Background(), raw)

			if tt.body != nil && called {
				t.Error("handler should not see a malformed message")
			}
			if ack.acked != tt.wantAck {
				t.Errorf("acked = %v, want %v", ack.acked, tt.wantAck)
			}
			if !tt.wantAck && !ack.nacked {
				t.Error("expected nack")
			}
			if ack.requeued != tt.wantRequeue {
				t.Errorf("requeued = %v, want %v", ack.requeued, tt.wantRequeue)
			}
		})
	}
}

func TestConsumer_RequeueDelayHonoursContext(t *testing.T) {
	c := NewConsumer(nil, nil, ConsumerConfig{
		RequeueDelay: time.Hour,
		Handler:      func(context.Context, *Delivery) error { return errors.New("busy") },
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ack := &ackRecorder{}
	raw := delivery(t, ack, NewMessage(MessageTypePipelineRequest, nil))
	done := make(chan struct{})
	go func() {
		c.handleDelivery(ctx, raw)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handleDelivery should not wait the delay after cancellation")
	}
	if !ack.requeued {
		t.Error("message should still be requeued")
	}
}
