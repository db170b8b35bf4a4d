package repo

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Lock — advisory lock PostgreSQL, удерживаемый на отдельном соединении.
//
// Несколько процессов serve с одной БД выполняют каждый запуск
// пайплайна не более одного раза: run стартует только у того, кто
// взял lock.
type Lock struct {
	conn *pgxpool.Conn
	key  int64
}

// LockKey возвращает ключ advisory lock для имени пайплайна.
func LockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte("mediacorr:" + name))
	return int64(h.Sum64())
}

// TryLock пытается взять lock без ожидания.
// Занятый lock → ErrLockHeld.
func TryLock(ctx context.Context, pool *pgxpool.Pool, key int64) (*Lock, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRow(ctx, "select pg_try_advisory_lock($1)", key).Scan(&ok); err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !ok {
		conn.Release()
		return nil, ErrLockHeld
	}
	return &Lock{conn: conn, key: key}, nil
}

// Ping проверяет соединение, на котором держится lock.
// Ошибка значит, что lock, скорее всего, уже отпущен сервером.
func (l *Lock) Ping(ctx context.Context) error {
	if err := l.conn.Ping(ctx); err != nil {
		return fmt.Errorf("ping lock conn: %w", err)
	}
	return nil
}

// Release отпускает lock и возвращает соединение в пул.
func (l *Lock) Release(ctx context.Context) error {
	defer l.conn.Release()
	if _, err := l.conn.Exec(ctx, "select pg_advisory_unlock($1)", l.key); err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}
