package kube

import "errors"

// Ошибки backend.
var (
	// ErrJobGone — Job удалён из кластера, пока мы ждали его условия.
	ErrJobGone = errors.New("job disappeared while waiting")

	// ErrReplaceTimeout — предыдущий Job с тем же именем не удалился вовремя.
	ErrReplaceTimeout = errors.New("timed out waiting for previous job deletion")

	// ErrUnknownPolicy — неизвестная политика для существующего Job.
	ErrUnknownPolicy = errors.New("unknown conflict policy")
)
