package domain

// RunStatus — статус выполнения run пайплайна.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	                  ↘ TIMED_OUT
//	                  ↘ CANCELLED (процесс получил сигнал)
type RunStatus string

const (
	// RunStatusPending — run создан, первый job ещё не отправлен.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — все jobs завершились успешно.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusFailed — job отклонён при отправке или сообщил о падении.
	RunStatusFailed RunStatus = "FAILED"

	// RunStatusTimedOut — job не достиг терминального условия за таймаут.
	RunStatusTimedOut RunStatus = "TIMED_OUT"

	// RunStatusCancelled — run прерван отменой контекста.
	RunStatusCancelled RunStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusFailed, RunStatusTimedOut, RunStatusCancelled:
		return true
	default:
		return false
	}
}

// JobStatus — результат выполнения одного job внутри run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	                  ↘ TIMED_OUT
//	                  ↘ CANCELLED
//
// Jobs после упавшего остаются в PENDING — они никогда не отправлялись.
type JobStatus string

const (
	// JobStatusPending — job ещё не отправлен в backend.
	JobStatusPending JobStatus = "PENDING"

	// JobStatusRunning — job отправлен, runner ждёт терминального условия.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusSucceeded — backend сообщил условие Complete.
	JobStatusSucceeded JobStatus = "SUCCEEDED"

	// JobStatusFailed — отправка отклонена или backend сообщил условие Failed.
	JobStatusFailed JobStatus = "FAILED"

	// JobStatusTimedOut — терминальное условие не достигнуто за таймаут.
	JobStatusTimedOut JobStatus = "TIMED_OUT"

	// JobStatusCancelled — ожидание прервано отменой контекста.
	JobStatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusTimedOut, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// RunStatus возвращает статус run, которым завершается run при таком
// результате job.
func (s JobStatus) RunStatus() RunStatus {
	switch s {
	case JobStatusSucceeded:
		return RunStatusSucceeded
	case JobStatusTimedOut:
		return RunStatusTimedOut
	case JobStatusCancelled:
		return RunStatusCancelled
	default:
		return RunStatusFailed
	}
}

// ConditionType — тип терминального условия job в backend.
type ConditionType string

const (
	// ConditionComplete — job завершился успешно.
	ConditionComplete ConditionType = "Complete"

	// ConditionFailed — job упал (например, исчерпан backoffLimit).
	ConditionFailed ConditionType = "Failed"
)

// Condition — терминальное условие, о котором сообщил backend.
type Condition struct {
	Type    ConditionType `json:"type"`
	Reason  string        `json:"reason,omitempty"`
	Message string        `json:"message,omitempty"`
}

// Succeeded возвращает true для условия Complete.
func (c Condition) Succeeded() bool {
	return c.Type == ConditionComplete
}

// JobState — снимок счётчиков pod'ов job.
type JobState struct {
	Name      string     `json:"name"`
	Active    int32      `json:"active"`
	Succeeded int32      `json:"succeeded"`
	Failed    int32      `json:"failed"`
	Condition *Condition `json:"condition,omitempty"`
}
