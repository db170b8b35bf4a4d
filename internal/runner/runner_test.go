package runner

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/mediacorr/internal/domain"
	"github.com/shaiso/mediacorr/internal/engine"
	"github.com/shaiso/mediacorr/internal/manifest"
)

// fakeBackend — backend в памяти. По умолчанию каждый job завершается
// условием Complete сразу после отправки.
type fakeBackend struct {
	mu        sync.Mutex
	submitted []string
	subs      []domain.Submission

	submitErr  map[string]error
	conditions map[string]domain.Condition
	awaitErr   map[string]error
	hang       map[string]bool

	// onSubmit вызывается после успешной отправки job.
	onSubmit func(job string)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		submitErr:  map[string]error{},
		conditions: map[string]domain.Condition{},
		awaitErr:   map[string]error{},
		hang:       map[string]bool{},
	}
}

func (b *fakeBackend) Submit(_ context.Context, sub domain.Submission) (domain.JobRef, error) {
	b.mu.Lock()
	b.submitted = append(b.submitted, sub.Job.Name)
	b.subs = append(b.subs, sub)
	err := b.submitErr[sub.Job.Name]
	hook := b.onSubmit
	b.mu.Unlock()

	if err != nil {
		return domain.JobRef{}, err
	}
	if hook != nil {
		hook(sub.Job.Name)
	}
	return domain.JobRef{Namespace: sub.Namespace, Name: sub.Job.ManifestRef()}, nil
}

func (b *fakeBackend) Await(ctx context.Context, ref domain.JobRef) (domain.Condition, error) {
	job := ref.Name[:len(ref.Name)-len("-job")]

	b.mu.Lock()
	hang := b.hang[job]
	err := b.awaitErr[job]
	cond, ok := b.conditions[job]
	b.mu.Unlock()

	if hang {
		<-ctx.Done()
		return domain.Condition{}, ctx.Err()
	}
	if err != nil {
		return domain.Condition{}, err
	}
	if !ok {
		cond = domain.Condition{Type: domain.ConditionComplete}
	}
	return cond, nil
}

func (b *fakeBackend) Submitted() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.submitted...)
}

func mediacorrPipeline() *domain.Pipeline {
	return &domain.Pipeline{
		Name:      "mediacorr",
		Namespace: "mediacorr",
		Jobs: []domain.JobDef{
			{Name: "sources", Produces: []string{"sources"}},
			{Name: "ingestor", Requires: []string{"sources"}, Produces: []string{"raw"}},
			{Name: "filter", Requires: []string{"raw"}, Produces: []string{"filtered"}},
			{Name: "classifier", Requires: []string{"filtered"}, Produces: []string{"sentiment"}},
			{Name: "correlator", Requires: []string{"sentiment"}, Produces: []string{"analysis"}},
		},
	}
}

func newRunner(b Backend, observers ...Observer) *Runner {
	return New(Config{Backend: b, Observers: observers})
}

func jobStatuses(run *domain.Run) []domain.JobStatus {
	statuses := make([]domain.JobStatus, len(run.Jobs))
	for i, j := range run.Jobs {
		statuses[i] = j.Status
	}
	return statuses
}

// --- Run Tests ---

func TestRunner_AllSucceed(t *testing.T) {
	b := newFakeBackend()
	r := newRunner(b)

	run, err := r.Run(context.Background(), mediacorrPipeline(), Options{Trigger: "cli"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := []string{"sources", "ingestor", "filter", "classifier", "correlator"}
	if !slices.Equal(b.Submitted(), expected) {
		t.Errorf("expected submissions %v, got %v", expected, b.Submitted())
	}
	if !run.Succeeded() {
		t.Errorf("expected SUCCEEDED, got %s", run.Status)
	}
	if run.FinishedAt == nil || run.StartedAt == nil {
		t.Error("run timestamps should be set")
	}
	for _, j := range run.Jobs {
		if j.Status != domain.JobStatusSucceeded {
			t.Errorf("job %s: expected SUCCEEDED, got %s", j.Name, j.Status)
		}
		if j.Resource != j.Name+"-job" {
			t.Errorf("job %s: unexpected resource %q", j.Name, j.Resource)
		}
	}
	for _, sub := range b.subs {
		if sub.RunID != run.ID || sub.Namespace != "mediacorr" || sub.Pipeline != "mediacorr" {
			t.Errorf("unexpected submission %+v", sub)
		}
	}
}

func TestRunner_JobFailed(t *testing.T) {
	b := newFakeBackend()
	b.conditions["filter"] = domain.Condition{
		Type:    domain.ConditionFailed,
		Reason:  "BackoffLimitExceeded",
		Message: "Job has reached the specified backoff limit",
	}
	r := newRunner(b)

	run, err := r.Run(context.Background(), mediacorrPipeline(), Options{})
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("expected ErrJobFailed, got %v", err)
	}

	var jobErr *JobError
	if !errors.As(err, &jobErr) {
		t.Fatalf("expected *JobError, got %T", err)
	}
	if jobErr.Job != "filter" {
		t.Errorf("expected failing job filter, got %s", jobErr.Job)
	}
	if jobErr.Reason() != "BackoffLimitExceeded" {
		t.Errorf("unexpected reason %q", jobErr.Reason())
	}

	expected := []string{"sources", "ingestor", "filter"}
	if !slices.Equal(b.Submitted(), expected) {
		t.Errorf("expected submissions %v, got %v", expected, b.Submitted())
	}

	if run.Status != domain.RunStatusFailed || run.FailedJob != "filter" {
		t.Errorf("expected FAILED at filter, got %s at %q", run.Status, run.FailedJob)
	}
	statuses := []domain.JobStatus{
		domain.JobStatusSucceeded,
		domain.JobStatusSucceeded,
		domain.JobStatusFailed,
		domain.JobStatusPending,
		domain.JobStatusPending,
	}
	if !slices.Equal(jobStatuses(run), statuses) {
		t.Errorf("expected %v, got %v", statuses, jobStatuses(run))
	}
	if run.Jobs[2].Reason != "BackoffLimitExceeded" {
		t.Errorf("job reason should be recorded, got %q", run.Jobs[2].Reason)
	}
}

func TestRunner_WaitTimeout(t *testing.T) {
	b := newFakeBackend()
	b.hang["ingestor"] = true

	p := mediacorrPipeline()
	p.Jobs[1].Timeout = 20 * time.Millisecond
	r := newRunner(b)

	run, err := r.Run(context.Background(), p, Options{})
	if !errors.Is(err, ErrWaitTimeout) {
		t.Fatalf("expected ErrWaitTimeout, got %v", err)
	}

	var jobErr *JobError
	if errors.As(err, &jobErr) && jobErr.Timeout != 20*time.Millisecond {
		t.Errorf("expected timeout 20ms, got %s", jobErr.Timeout)
	}

	if !slices.Equal(b.Submitted(), []string{"sources", "ingestor"}) {
		t.Errorf("later jobs should not be submitted, got %v", b.Submitted())
	}
	if run.Status != domain.RunStatusTimedOut || run.FailedJob != "ingestor" {
		t.Errorf("expected TIMED_OUT at ingestor, got %s at %q", run.Status, run.FailedJob)
	}
	if run.Jobs[1].Status != domain.JobStatusTimedOut {
		t.Errorf("expected job TIMED_OUT, got %s", run.Jobs[1].Status)
	}
}

func TestRunner_SubmissionError(t *testing.T) {
	b := newFakeBackend()
	b.submitErr["classifier"] = fmt.Errorf("resolve manifest classifier-job: %w", manifest.ErrNotFound)
	r := newRunner(b)

	run, err := r.Run(context.Background(), mediacorrPipeline(), Options{})
	if !errors.Is(err, ErrSubmission) {
		t.Fatalf("expected ErrSubmission, got %v", err)
	}
	if !errors.Is(err, manifest.ErrNotFound) {
		t.Errorf("cause should be preserved, got %v", err)
	}

	statuses := []domain.JobStatus{
		domain.JobStatusSucceeded,
		domain.JobStatusSucceeded,
		domain.JobStatusSucceeded,
		domain.JobStatusFailed,
		domain.JobStatusPending,
	}
	if !slices.Equal(jobStatuses(run), statuses) {
		t.Errorf("expected %v, got %v", statuses, jobStatuses(run))
	}
	if run.Jobs[3].Resource != "" {
		t.Error("rejected job should have no resource")
	}
	if slices.Contains(b.Submitted(), "correlator") {
		t.Error("correlator should not be submitted")
	}
}

func TestRunner_AwaitError(t *testing.T) {
	b := newFakeBackend()
	gone := errors.New("job disappeared while waiting")
	b.awaitErr["sources"] = gone
	r := newRunner(b)

	_, err := r.Run(context.Background(), mediacorrPipeline(), Options{})
	if !errors.Is(err, ErrJobFailed) || !errors.Is(err, gone) {
		t.Errorf("expected ErrJobFailed wrapping cause, got %v", err)
	}
}

func TestRunner_Cancelled(t *testing.T) {
	b := newFakeBackend()
	b.hang["filter"] = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b.onSubmit = func(job string) {
		if job == "filter" {
			cancel()
		}
	}
	r := newRunner(b)

	run, err := r.Run(ctx, mediacorrPipeline(), Options{})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if run.Status != domain.RunStatusCancelled || run.FailedJob != "filter" {
		t.Errorf("expected CANCELLED at filter, got %s at %q", run.Status, run.FailedJob)
	}
	if len(b.Submitted()) != 3 {
		t.Errorf("expected 3 submissions, got %v", b.Submitted())
	}
}

func TestRunner_CancelledBeforeStart(t *testing.T) {
	b := newFakeBackend()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run, err := newRunner(b).Run(ctx, mediacorrPipeline(), Options{})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if len(b.Submitted()) != 0 {
		t.Errorf("nothing should be submitted, got %v", b.Submitted())
	}
	if run.FailedJob != "sources" {
		t.Errorf("expected stop at sources, got %q", run.FailedJob)
	}
}

func TestRunner_Range(t *testing.T) {
	b := newFakeBackend()
	r := newRunner(b)

	run, err := r.Run(context.Background(), mediacorrPipeline(), Options{From: "filter", To: "classifier"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(b.Submitted(), []string{"filter", "classifier"}) {
		t.Errorf("unexpected submissions %v", b.Submitted())
	}
	if len(run.Jobs) != 2 {
		t.Errorf("run should contain only selected jobs, got %d", len(run.Jobs))
	}
}

func TestRunner_ValidationError(t *testing.T) {
	b := newFakeBackend()
	p := mediacorrPipeline()
	p.Jobs[3].Name = "filter"

	run, err := newRunner(b).Run(context.Background(), p, Options{})
	if !errors.Is(err, engine.ErrDuplicateJobName) {
		t.Fatalf("expected ErrDuplicateJobName, got %v", err)
	}
	if run != nil {
		t.Error("no run should be created for an invalid pipeline")
	}
	if len(b.Submitted()) != 0 {
		t.Errorf("nothing should be submitted, got %v", b.Submitted())
	}
}

func TestRunner_UnknownRange(t *testing.T) {
	_, err := newRunner(newFakeBackend()).Run(context.Background(), mediacorrPipeline(), Options{From: "parser"})
	if err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestRunner_DefaultNamespace(t *testing.T) {
	b := newFakeBackend()
	r := New(Config{Backend: b, Namespace: "batch"})

	p := mediacorrPipeline()
	p.Namespace = ""

	run, err := r.Run(context.Background(), p, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Namespace != "batch" || b.subs[0].Namespace != "batch" {
		t.Errorf("expected namespace batch, got %s / %s", run.Namespace, b.subs[0].Namespace)
	}
}

func TestRunner_Timeout(t *testing.T) {
	r := newRunner(newFakeBackend())

	if got := r.Timeout(domain.JobDef{Name: "sources"}); got != DefaultTimeout {
		t.Errorf("expected %s, got %s", DefaultTimeout, got)
	}
	if got := r.Timeout(domain.JobDef{Name: "sources", Timeout: time.Minute}); got != time.Minute {
		t.Errorf("expected 1m, got %s", got)
	}
}

func TestRunner_RunInProgress(t *testing.T) {
	b := newFakeBackend()
	b.hang["sources"] = true

	started := make(chan struct{})
	b.onSubmit = func(string) { close(started) }
	r := newRunner(b)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Run(ctx, mediacorrPipeline(), Options{})
		done <- err
	}()

	<-started
	if !r.Running() {
		t.Error("runner should report a run in progress")
	}
	if _, err := r.Run(context.Background(), mediacorrPipeline(), Options{}); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("expected ErrRunInProgress, got %v", err)
	}

	cancel()
	if err := <-done; !errors.Is(err, ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
	if r.Running() {
		t.Error("runner should be idle after the run")
	}
}

// --- Observer Tests ---

type recordingObserver struct {
	events []string
	fail   bool
}

func (o *recordingObserver) record(event string) error {
	o.events = append(o.events, event)
	if o.fail {
		return errors.New("observer down")
	}
	return nil
}

func (o *recordingObserver) OnRunStarted(_ context.Context, run *domain.Run) error {
	return o.record("run.started:" + string(run.Status))
}

func (o *recordingObserver) OnJobStarted(_ context.Context, _ *domain.Run, job *domain.JobRun) error {
	return o.record("job.started:" + job.Name)
}

func (o *recordingObserver) OnJobFinished(_ context.Context, _ *domain.Run, job *domain.JobRun) error {
	return o.record("job.finished:" + job.Name + ":" + string(job.Status))
}

func (o *recordingObserver) OnRunFinished(ctx context.Context, run *domain.Run) error {
	if ctx.Err() != nil {
		return o.record("run.finished:context done")
	}
	return o.record("run.finished:" + string(run.Status))
}

func TestRunner_Observers(t *testing.T) {
	b := newFakeBackend()
	b.conditions["ingestor"] = domain.Condition{Type: domain.ConditionFailed}

	failing := &recordingObserver{fail: true}
	rec := &recordingObserver{}
	r := newRunner(b, failing, rec)

	_, err := r.Run(context.Background(), mediacorrPipeline(), Options{})
	if !errors.Is(err, ErrJobFailed) {
		t.Fatalf("observer errors must not change the result, got %v", err)
	}

	expected := []string{
		"run.started:RUNNING",
		"job.started:sources",
		"job.finished:sources:SUCCEEDED",
		"job.started:ingestor",
		"job.finished:ingestor:FAILED",
		"run.finished:FAILED",
	}
	if !slices.Equal(rec.events, expected) {
		t.Errorf("expected events %v, got %v", expected, rec.events)
	}
	if len(failing.events) != len(expected) {
		t.Errorf("failing observer should still see every event, got %v", failing.events)
	}
}

func TestRunner_ObserversAfterCancel(t *testing.T) {
	b := newFakeBackend()
	b.hang["sources"] = true

	ctx, cancel := context.WithCancel(context.Background())
	b.onSubmit = func(string) { cancel() }

	rec := &recordingObserver{}
	_, _ = newRunner(b, rec).Run(ctx, mediacorrPipeline(), Options{})

	last := rec.events[len(rec.events)-1]
	if last != "run.finished:CANCELLED" {
		t.Errorf("final event should be delivered with a live context, got %s", last)
	}
}

// --- JobError Tests ---

func TestJobError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *JobError
		expected string
	}{
		{
			"failed with reason",
			&JobError{Job: "filter", Kind: ErrJobFailed, Condition: &domain.Condition{Type: domain.ConditionFailed, Reason: "BackoffLimitExceeded"}},
			"job filter: job failed: BackoffLimitExceeded",
		},
		{
			"timeout",
			&JobError{Job: "ingestor", Kind: ErrWaitTimeout, Timeout: 30 * time.Minute},
			"job ingestor: timed out waiting for job after 30m0s",
		},
		{
			"submission",
			&JobError{Job: "classifier", Kind: ErrSubmission, Err: errors.New("not found")},
			"job classifier: job submission failed: not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestJobError_Status(t *testing.T) {
	tests := []struct {
		kind     error
		expected domain.JobStatus
	}{
		{ErrSubmission, domain.JobStatusFailed},
		{ErrJobFailed, domain.JobStatusFailed},
		{ErrWaitTimeout, domain.JobStatusTimedOut},
		{ErrCancelled, domain.JobStatusCancelled},
	}

	for _, tt := range tests {
		e := &JobError{Job: "x", Kind: tt.kind}
		if got := e.Status(); got != tt.expected {
			t.Errorf("%v: expected %s, got %s", tt.kind, tt.expected, got)
		}
	}
}
