package manifest

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"
)

// Значения по умолчанию для шаблонов.
const (
	DefaultClaimName    = "mediacorr-pvc"
	DefaultVolumeName   = "data-volume"
	DefaultMountPath    = "/app/data"
	DefaultPullPolicy   = corev1.PullIfNotPresent
	DefaultBackoffLimit = int32(1)
)

// Storage — общий том, через который jobs передают друг другу данные.
type Storage struct {
	ClaimName  string
	VolumeName string
	MountPath  string
}

// Template — описание job, из которого строится манифест.
type Template struct {
	// Name — имя ресурса Job (metadata.name).
	Name string

	Image           string
	ImagePullPolicy corev1.PullPolicy
	Command         []string
	Args            []string
	Env             map[string]string

	// BackoffLimit — число повторов pod'а внутри Kubernetes (nil → 1).
	BackoffLimit *int32

	// Completions/Parallelism/Indexed — для jobs, делящих работу по
	// JOB_COMPLETION_INDEX (correlator).
	Completions *int32
	Parallelism *int32
	Indexed     bool

	// TTLSecondsAfterFinished — через сколько Kubernetes удалит завершённый job.
	TTLSecondsAfterFinished *int32

	ServiceAccountName string
}

// TemplateStore строит манифесты из шаблонов.
type TemplateStore struct {
	storage   Storage
	templates map[string]Template
}

// NewTemplateStore создаёт TemplateStore. Ключ карты — ссылка на манифест.
func NewTemplateStore(storage Storage, templates map[string]Template) *TemplateStore {
	if storage.ClaimName == "" {
		storage.ClaimName = DefaultClaimName
	}
	if storage.VolumeName == "" {
		storage.VolumeName = DefaultVolumeName
	}
	if storage.MountPath == "" {
		storage.MountPath = DefaultMountPath
	}
	return &TemplateStore{storage: storage, templates: templates}
}

// Refs возвращает известные ссылки в алфавитном порядке.
func (s *TemplateStore) Refs() []string {
	refs := make([]string, 0, len(s.templates))
	for ref := range s.templates {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// Resolve строит Job по шаблону.
func (s *TemplateStore) Resolve(_ context.Context, ref string) (*batchv1.Job, error) {
	tmpl, ok := s.templates[ref]
	if !ok {
		return nil, fmt.Errorf("%w: no template %s", ErrNotFound, ref)
	}
	if tmpl.Image == "" {
		return nil, fmt.Errorf("%w: template %s has no image", ErrInvalidManifest, ref)
	}
	if tmpl.Name == "" {
		tmpl.Name = ref
	}
	return s.build(tmpl), nil
}

// build собирает Job: один контейнер, restartPolicy Never, общий PVC.
func (s *TemplateStore) build(t Template) *batchv1.Job {
	pullPolicy := t.ImagePullPolicy
	if pullPolicy == "" {
		pullPolicy = DefaultPullPolicy
	}

	backoff := t.BackoffLimit
	if backoff == nil {
		backoff = ptr.To(DefaultBackoffLimit)
	}

	spec := batchv1.JobSpec{
		BackoffLimit:            copyInt32(backoff),
		Completions:             copyInt32(t.Completions),
		Parallelism:             copyInt32(t.Parallelism),
		TTLSecondsAfterFinished: copyInt32(t.TTLSecondsAfterFinished),
		Template: corev1.PodTemplateSpec{
			Spec: corev1.PodSpec{
				RestartPolicy:      corev1.RestartPolicyNever,
				ServiceAccountName: t.ServiceAccountName,
				Containers: []corev1.Container{{
					Name:            t.Name,
					Image:           t.Image,
					ImagePullPolicy: pullPolicy,
					Command:         append([]string(nil), t.Command...),
					Args:            append([]string(nil), t.Args...),
					Env:             envVars(t),
					VolumeMounts: []corev1.VolumeMount{{
						Name:      s.storage.VolumeName,
						MountPath: s.storage.MountPath,
					}},
				}},
				Volumes: []corev1.Volume{{
					Name: s.storage.VolumeName,
					VolumeSource: corev1.VolumeSource{
						PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{
							ClaimName: s.storage.ClaimName,
						},
					},
				}},
			},
		},
	}
	if t.Indexed {
		mode := batchv1.IndexedCompletion
		spec.CompletionMode = &mode
	}

	return &batchv1.Job{
		TypeMeta: metav1.TypeMeta{
			APIVersion: "batch/v1",
			Kind:       "Job",
		},
		ObjectMeta: metav1.ObjectMeta{Name: t.Name},
		Spec:       spec,
	}
}

// envVars возвращает переменные окружения в стабильном порядке.
// Для indexed jobs добавляется JOB_COMPLETIONS: Kubernetes сам выставляет
// только JOB_COMPLETION_INDEX.
func envVars(t Template) []corev1.EnvVar {
	keys := make([]string, 0, len(t.Env))
	for k := range t.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var env []corev1.EnvVar
	for _, k := range keys {
		env = append(env, corev1.EnvVar{Name: k, Value: t.Env[k]})
	}

	if t.Indexed && t.Completions != nil {
		if _, set := t.Env["JOB_COMPLETIONS"]; !set {
			env = append(env, corev1.EnvVar{
				Name:  "JOB_COMPLETIONS",
				Value: strconv.Itoa(int(*t.Completions)),
			})
		}
	}
	return env
}

func copyInt32(v *int32) *int32 {
	if v == nil {
		return nil
	}
	return ptr.To(*v)
}
