package manifest

import (
	"context"
	"errors"
	"fmt"

	batchv1 "k8s.io/api/batch/v1"
)

// Ошибки хранилища манифестов.
var (
	// ErrNotFound — ссылка на манифест не разрешается ни одним хранилищем.
	ErrNotFound = errors.New("manifest not found")

	// ErrInvalidManifest — манифест не удалось разобрать или это не batch/v1 Job.
	ErrInvalidManifest = errors.New("invalid manifest")

	// ErrOutsideDir — ссылка указывает за пределы каталога манифестов.
	ErrOutsideDir = errors.New("manifest reference escapes manifests dir")
)

// Store разрешает ссылку на манифест в объект Job.
//
// Каждый вызов Resolve возвращает новую копию: backend изменяет
// namespace и labels перед отправкой.
type Store interface {
	Resolve(ctx context.Context, ref string) (*batchv1.Job, error)
}

// Chain — цепочка хранилищ. Побеждает первое, которое знает ссылку.
type Chain []Store

// Resolve опрашивает хранилища по порядку.
func (c Chain) Resolve(ctx context.Context, ref string) (*batchv1.Job, error) {
	for _, s := range c {
		job, err := s.Resolve(ctx, ref)
		if err == nil {
			return job, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
}
