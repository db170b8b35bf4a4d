package engine

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/shaiso/mediacorr/internal/domain"
)

// Validate выполняет полную валидацию пайплайна.
//
// Проверяет:
// - Наличие jobs и namespace
// - Имена jobs (непустые, уникальные, DNS-1123)
// - Таймауты
// - Контракт хранилища: каждый requires произведён раньше (или есть в Inputs)
func Validate(p *domain.Pipeline) error {
	if p == nil || len(p.Jobs) == 0 {
		return ErrEmptyPipeline
	}

	if strings.TrimSpace(p.Namespace) == "" {
		return NewValidationError("", "namespace", "pipeline has empty namespace", ErrEmptyNamespace)
	}

	names := make(map[string]bool)
	for i := range p.Jobs {
		if err := ValidateJob(&p.Jobs[i], names); err != nil {
			return err
		}
	}

	return validateContracts(p)
}

// ValidateJob валидирует один job.
// names — уже встреченные имена (для проверки уникальности).
func ValidateJob(job *domain.JobDef, names map[string]bool) error {
	if job.Name == "" {
		return NewValidationError("", "name", "job has empty name", ErrEmptyJobName)
	}

	if errs := validation.IsDNS1123Label(job.Name); len(errs) > 0 {
		return NewValidationError(job.Name, "name",
			fmt.Sprintf("invalid job name: %s", strings.Join(errs, "; ")), ErrInvalidJobName)
	}

	if names[job.Name] {
		return NewValidationError(job.Name, "name",
			fmt.Sprintf("duplicate job name: %s", job.Name), ErrDuplicateJobName)
	}
	names[job.Name] = true

	if job.Timeout < 0 {
		return NewValidationError(job.Name, "timeout",
			fmt.Sprintf("negative timeout: %s", job.Timeout), ErrInvalidTimeout)
	}

	return nil
}

// validateContracts проходит jobs по порядку и проверяет, что каждый
// требуемый артефакт уже был произведён.
func validateContracts(p *domain.Pipeline) error {
	available := make(map[string]bool)
	for _, in := range p.Inputs {
		available[in] = true
	}

	for _, job := range p.Jobs {
		for _, req := range job.Requires {
			if !available[req] {
				return NewValidationError(job.Name, "requires",
					fmt.Sprintf("requires %q, which no earlier job produces", req), ErrUnsatisfiedRequirement)
			}
		}
		for _, out := range job.Produces {
			available[out] = true
		}
	}

	return nil
}

// Artifacts возвращает артефакты, доступные после успешного run.
func Artifacts(p *domain.Pipeline) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(a string) {
		if !seen[a] {
			seen[a] = true
			out = append(out, a)
		}
	}
	for _, in := range p.Inputs {
		add(in)
	}
	for _, job := range p.Jobs {
		for _, a := range job.Produces {
			add(a)
		}
	}
	return out
}
