package cli

import (
	"context"
	"errors"

	"github.com/shaiso/mediacorr/internal/runner"
)

// Коды завершения процесса.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitSubmission = 2
	ExitJobFailed  = 3
	ExitTimeout    = 4
	ExitCancelled  = 130
)

// ExitCode возвращает код завершения для ошибки команды.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, runner.ErrCancelled), errors.Is(err, context.Canceled):
		return ExitCancelled
	case errors.Is(err, runner.ErrSubmission):
		return ExitSubmission
	case errors.Is(err, runner.ErrWaitTimeout):
		return ExitTimeout
	case errors.Is(err, runner.ErrJobFailed):
		return ExitJobFailed
	default:
		return ExitError
	}
}
