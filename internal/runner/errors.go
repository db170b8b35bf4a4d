package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/mediacorr/internal/domain"
)

// Виды ошибок job. Проверяются через errors.Is на *JobError.
var (
	// ErrSubmission — backend отклонил job или манифест не найден.
	ErrSubmission = errors.New("job submission failed")

	// ErrWaitTimeout — job не достиг терминального условия за таймаут.
	ErrWaitTimeout = errors.New("timed out waiting for job")

	// ErrJobFailed — backend сообщил о падении job.
	ErrJobFailed = errors.New("job failed")

	// ErrCancelled — run прерван отменой контекста.
	ErrCancelled = errors.New("run cancelled")
)

// ErrRunInProgress — Runner уже выполняет другой run.
var ErrRunInProgress = errors.New("run already in progress")

// JobError — ошибка, остановившая run.
type JobError struct {
	// Job — имя job в пайплайне.
	Job string

	// Resource — имя ресурса в backend (пусто, если отправка не удалась).
	Resource string

	// Kind — вид ошибки (ErrSubmission, ErrWaitTimeout, ErrJobFailed, ErrCancelled).
	Kind error

	// Timeout — таймаут ожидания (для ErrWaitTimeout).
	Timeout time.Duration

	// Condition — терминальное условие (для ErrJobFailed).
	Condition *domain.Condition

	// Err — исходная ошибка backend, если есть.
	Err error
}

func (e *JobError) Error() string {
	msg := fmt.Sprintf("job %s: %v", e.Job, e.Kind)

	switch {
	case e.Kind == ErrWaitTimeout && e.Timeout > 0:
		msg += fmt.Sprintf(" after %s", e.Timeout)
	case e.Condition != nil && e.Condition.Reason != "":
		msg += ": " + e.Condition.Reason
		if e.Condition.Message != "" {
			msg += ": " + e.Condition.Message
		}
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *JobError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Status возвращает статус job, соответствующий виду ошибки.
func (e *JobError) Status() domain.JobStatus {
	switch e.Kind {
	case ErrWaitTimeout:
		return domain.JobStatusTimedOut
	case ErrCancelled:
		return domain.JobStatusCancelled
	default:
		return domain.JobStatusFailed
	}
}

// Reason возвращает причину из терминального условия.
func (e *JobError) Reason() string {
	if e.Condition == nil {
		return ""
	}
	return e.Condition.Reason
}
