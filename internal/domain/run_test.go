package domain

import (
	"reflect"
	"testing"
)

func TestNewRun(t *testing.T) {
	run := NewRun(mediacorrPipeline(), "cli")

	if run.Status != RunStatusPending {
		t.Errorf("expected PENDING, got %s", run.Status)
	}
	if len(run.Jobs) != 5 {
		t.Fatalf("expected 5 job runs, got %d", len(run.Jobs))
	}
	for _, j := range run.Jobs {
		if j.Status != JobStatusPending {
			t.Errorf("job %s: expected PENDING, got %s", j.Name, j.Status)
		}
	}
	if len(run.Submitted()) != 0 {
		t.Error("nothing should be submitted yet")
	}
}

func TestRun_Lifecycle(t *testing.T) {
	run := NewRun(mediacorrPipeline(), "cli")
	run.MarkRunning()

	run.Jobs[0].MarkRunning()
	run.Jobs[0].MarkSucceeded()
	run.Jobs[1].MarkRunning()
	run.Jobs[1].MarkFinished(JobStatusTimedOut, "", "timeout")
	run.MarkStopped("ingestor", JobStatusTimedOut.RunStatus(), "timeout")

	if !run.IsFinished() {
		t.Error("run should be finished")
	}
	if run.Status != RunStatusTimedOut {
		t.Errorf("expected TIMED_OUT, got %s", run.Status)
	}
	if run.FailedJob != "ingestor" {
		t.Errorf("expected failed job ingestor, got %s", run.FailedJob)
	}
	if got := run.Submitted(); !reflect.DeepEqual(got, []string{"sources", "ingestor"}) {
		t.Errorf("unexpected submitted jobs: %v", got)
	}
	if run.Duration() < 0 {
		t.Error("duration should not be negative")
	}
}

func TestJobStatus_RunStatus(t *testing.T) {
	tests := map[JobStatus]RunStatus{
		JobStatusSucceeded: RunStatusSucceeded,
		JobStatusFailed:    RunStatusFailed,
		JobStatusTimedOut:  RunStatusTimedOut,
		JobStatusCancelled: RunStatusCancelled,
	}
	for in, want := range tests {
		if got := in.RunStatus(); got != want {
			t.Errorf("%s: expected %s, got %s", in, want, got)
		}
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	if RunStatusRunning.IsTerminal() || RunStatusPending.IsTerminal() {
		t.Error("PENDING/RUNNING are not terminal")
	}
	if !RunStatusTimedOut.IsTerminal() {
		t.Error("TIMED_OUT is terminal")
	}
	if JobStatusRunning.IsTerminal() {
		t.Error("job RUNNING is not terminal")
	}
	if !JobStatusCancelled.IsTerminal() {
		t.Error("job CANCELLED is terminal")
	}
}
