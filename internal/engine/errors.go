package engine

import "errors"

// Ошибки валидации пайплайна.
var (
	// ErrEmptyPipeline — пайплайн не содержит jobs.
	ErrEmptyPipeline = errors.New("pipeline has no jobs")

	// ErrEmptyNamespace — не задан namespace.
	ErrEmptyNamespace = errors.New("pipeline has empty namespace")

	// ErrEmptyJobName — job не имеет имени.
	ErrEmptyJobName = errors.New("job has empty name")

	// ErrInvalidJobName — имя job не является DNS-1123 label.
	ErrInvalidJobName = errors.New("invalid job name")

	// ErrDuplicateJobName — несколько jobs с одинаковым именем.
	ErrDuplicateJobName = errors.New("duplicate job name")

	// ErrInvalidTimeout — отрицательный таймаут.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrUnsatisfiedRequirement — job читает артефакт, который никто до него не производит.
	ErrUnsatisfiedRequirement = errors.New("required artifact is not produced by an earlier job")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	Job     string // имя job, где произошла ошибка
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Job != "" {
		return "job " + e.Job + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(job, field, message string, err error) *ValidationError {
	return &ValidationError{
		Job:     job,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
