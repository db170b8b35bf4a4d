package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrNoDSN — строка подключения не задана.
	ErrNoDSN = errors.New("database url is not set")

	// ErrLockHeld — advisory lock удерживает другой процесс.
	ErrLockHeld = errors.New("lock held by another process")
)
