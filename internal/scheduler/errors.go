package scheduler

import "errors"

var (
	// ErrBusy — run уже выполняется, триггер пропущен.
	ErrBusy = errors.New("runner is busy")

	// ErrInvalidRequest — триггер ссылается на неизвестные jobs.
	ErrInvalidRequest = errors.New("invalid run request")

	// ErrInvalidCron — некорректное cron-выражение.
	ErrInvalidCron = errors.New("invalid cron expression")
)
