package kube

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/kubernetes/fake"
	k8stesting "k8s.io/client-go/testing"

	"github.com/shaiso/mediacorr/internal/domain"
	"github.com/shaiso/mediacorr/internal/manifest"
)

const testNamespace = "mediacorr"

var jobsResource = schema.GroupResource{Group: "batch", Resource: "jobs"}

func newStore() manifest.Store {
	return manifest.NewTemplateStore(manifest.Storage{}, map[string]manifest.Template{
		"filter-job":  {Image: "mediacorr-filter:latest", Command: []string{"python", "-m", "app.filter"}},
		"sources-job": {Image: "mediacorr-sources:latest"},
	})
}

func newBackend(client *fake.Clientset, policy ConflictPolicy) *Backend {
	return New(Config{
		Client:         client,
		Store:          newStore(),
		PollInterval:   5 * time.Millisecond,
		OnConflict:     policy,
		ReplaceTimeout: time.Second,
	})
}

func submission(name string) domain.Submission {
	return domain.Submission{
		RunID:     uuid.New(),
		Pipeline:  "mediacorr",
		Namespace: testNamespace,
		Job:       domain.JobDef{Name: name},
	}
}

func existingJob(name string, conds ...batchv1.JobCondition) *batchv1.Job {
	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: testNamespace},
		Status:     batchv1.JobStatus{Conditions: conds},
	}
}

func condition(t batchv1.JobConditionType, reason string) batchv1.JobCondition {
	return batchv1.JobCondition{Type: t, Status: corev1.ConditionTrue, Reason: reason}
}

// setConditions имитирует job controller: выставляет условия Job.
func setConditions(t *testing.T, client *fake.Clientset, name string, conds ...batchv1.JobCondition) {
	t.Helper()
	jobs := client.BatchV1().Jobs(testNamespace)
	job, err := jobs.Get(context.Background(), name, metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get %s: %v", name, err)
	}
	job.Status.Conditions = conds
	if _, err := jobs.Update(context.Background(), job, metav1.UpdateOptions{}); err != nil {
		t.Fatalf("update %s: %v", name, err)
	}
}

// --- Submit Tests ---

func TestBackend_Submit(t *testing.T) {
	client := fake.NewSimpleClientset()
	b := newBackend(client, PolicyReplace)
	sub := submission("filter")

	ref, err := b.Submit(context.Background(), sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Namespace != testNamespace || ref.Name != "filter-job" {
		t.Errorf("unexpected ref %s", ref)
	}

	job, err := client.BatchV1().Jobs(testNamespace).Get(context.Background(), "filter-job", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("job not created: %v", err)
	}
	for _, labels := range []map[string]string{job.Labels, job.Spec.Template.Labels} {
		if labels[LabelJob] != "filter" {
			t.Errorf("expected %s=filter, got %q", LabelJob, labels[LabelJob])
		}
		if labels[LabelPartOf] != "mediacorr" {
			t.Errorf("expected %s=mediacorr, got %q", LabelPartOf, labels[LabelPartOf])
		}
		if labels[LabelRunID] != sub.RunID.String() {
			t.Errorf("expected %s=%s, got %q", LabelRunID, sub.RunID, labels[LabelRunID])
		}
	}
}

func TestBackend_Submit_UnknownManifest(t *testing.T) {
	client := fake.NewSimpleClientset()
	b := newBackend(client, PolicyReplace)

	_, err := b.Submit(context.Background(), submission("classifier"))
	if !errors.Is(err, manifest.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := len(client.Actions()); n != 0 {
		t.Errorf("nothing should reach the API, got %d actions", n)
	}
}

func TestBackend_Submit_Rejected(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("create", "jobs", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewNotFound(schema.GroupResource{Resource: "namespaces"}, testNamespace)
	})
	b := newBackend(client, PolicyReplace)

	_, err := b.Submit(context.Background(), submission("filter"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !apierrors.IsNotFound(err) {
		t.Errorf("API error should be wrapped, got %v", err)
	}
}

func TestBackend_Submit_Replace(t *testing.T) {
	client := fake.NewSimpleClientset(existingJob("filter-job", condition(batchv1.JobComplete, "")))
	b := newBackend(client, PolicyReplace)
	sub := submission("filter")

	if _, err := b.Submit(context.Background(), sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	job, err := client.BatchV1().Jobs(testNamespace).Get(context.Background(), "filter-job", metav1.GetOptions{})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if job.Labels[LabelRunID] != sub.RunID.String() {
		t.Error("old job should be replaced by the new one")
	}
	if len(job.Status.Conditions) != 0 {
		t.Error("replaced job should not keep the old conditions")
	}

	var deleted bool
	for _, a := range client.Actions() {
		if a.GetVerb() == "delete" {
			deleted = true
		}
	}
	if !deleted {
		t.Error("expected a delete action")
	}
}

func TestBackend_Submit_Reuse(t *testing.T) {
	client := fake.NewSimpleClientset(existingJob("filter-job"))
	b := newBackend(client, PolicyReuse)

	ref, err := b.Submit(context.Background(), submission("filter"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Name != "filter-job" {
		t.Errorf("unexpected ref %s", ref)
	}

	job, _ := client.BatchV1().Jobs(testNamespace).Get(context.Background(), "filter-job", metav1.GetOptions{})
	if _, ok := job.Labels[LabelRunID]; ok {
		t.Error("existing job should be kept as is")
	}
}

// --- Await Tests ---

func TestBackend_Await(t *testing.T) {
	tests := []struct {
		name     string
		conds    []batchv1.JobCondition
		expected domain.ConditionType
	}{
		{"complete", []batchv1.JobCondition{condition(batchv1.JobComplete, "")}, domain.ConditionComplete},
		{"failed", []batchv1.JobCondition{condition(batchv1.JobFailed, "BackoffLimitExceeded")}, domain.ConditionFailed},
		{
			"failure target precedes failed",
			[]batchv1.JobCondition{
				condition(batchv1.JobFailureTarget, "BackoffLimitExceeded"),
				condition(batchv1.JobFailed, "BackoffLimitExceeded"),
			},
			domain.ConditionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := fake.NewSimpleClientset()
			b := newBackend(client, PolicyReplace)

			ref, err := b.Submit(context.Background(), submission("filter"))
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			setConditions(t, client, ref.Name, tt.conds...)

			cond, err := b.Await(context.Background(), ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cond.Type != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, cond.Type)
			}
		})
	}
}

func TestBackend_Await_FalseConditionIgnored(t *testing.T) {
	job := existingJob("filter-job", batchv1.JobCondition{Type: batchv1.JobComplete, Status: corev1.ConditionFalse})
	b := newBackend(fake.NewSimpleClientset(job), PolicyReplace)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Await(ctx, domain.JobRef{Namespace: testNamespace, Name: "filter-job"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestBackend_Await_Timeout(t *testing.T) {
	b := newBackend(fake.NewSimpleClientset(existingJob("filter-job")), PolicyReplace)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Await(ctx, domain.JobRef{Namespace: testNamespace, Name: "filter-job"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected DeadlineExceeded, got %v", err)
	}
}

func TestBackend_Await_JobGone(t *testing.T) {
	b := newBackend(fake.NewSimpleClientset(), PolicyReplace)

	_, err := b.Await(context.Background(), domain.JobRef{Namespace: testNamespace, Name: "filter-job"})
	if !errors.Is(err, ErrJobGone) {
		t.Errorf("expected ErrJobGone, got %v", err)
	}
}

func TestBackend_Await_TransientErrors(t *testing.T) {
	client := fake.NewSimpleClientset(existingJob("filter-job", condition(batchv1.JobComplete, "")))

	calls := 0
	client.PrependReactor("get", "jobs", func(k8stesting.Action) (bool, runtime.Object, error) {
		calls++
		if calls <= 2 {
			return true, nil, apierrors.NewServiceUnavailable("apiserver restarting")
		}
		return false, nil, nil
	})
	b := newBackend(client, PolicyReplace)

	cond, err := b.Await(context.Background(), domain.JobRef{Namespace: testNamespace, Name: "filter-job"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cond.Succeeded() {
		t.Errorf("expected Complete, got %s", cond.Type)
	}
	if calls != 3 {
		t.Errorf("expected 3 get calls, got %d", calls)
	}
}

func TestBackend_Await_Forbidden(t *testing.T) {
	client := fake.NewSimpleClientset()
	client.PrependReactor("get", "jobs", func(k8stesting.Action) (bool, runtime.Object, error) {
		return true, nil, apierrors.NewForbidden(jobsResource, "filter-job", errors.New("rbac"))
	})
	b := newBackend(client, PolicyReplace)

	_, err := b.Await(context.Background(), domain.JobRef{Namespace: testNamespace, Name: "filter-job"})
	if !apierrors.IsForbidden(err) {
		t.Errorf("expected Forbidden, got %v", err)
	}
}

// --- Status Tests ---

func TestBackend_Status(t *testing.T) {
	job := existingJob("correlator-job", condition(batchv1.JobComplete, ""))
	job.Status.Active = 1
	job.Status.Succeeded = 3
	job.Status.Failed = 2
	b := newBackend(fake.NewSimpleClientset(job), PolicyReplace)

	state, err := b.Status(context.Background(), domain.JobRef{Namespace: testNamespace, Name: "correlator-job"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Active != 1 || state.Succeeded != 3 || state.Failed != 2 {
		t.Errorf("unexpected counts %+v", state)
	}
	if state.Condition == nil || !state.Condition.Succeeded() {
		t.Errorf("expected Complete condition, got %+v", state.Condition)
	}

	if _, err := b.Status(context.Background(), domain.JobRef{Namespace: testNamespace, Name: "missing"}); !apierrors.IsNotFound(err) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in       string
		expected ConflictPolicy
		wantErr  bool
	}{
		{"", PolicyReplace, false},
		{"replace", PolicyReplace, false},
		{"reuse", PolicyReuse, false},
		{"skip", "", true},
	}

	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: unexpected error %v", tt.in, err)
		}
		if got != tt.expected {
			t.Errorf("%q: expected %s, got %s", tt.in, tt.expected, got)
		}
	}
}
