// Package manifest разрешает ссылки на манифесты jobs.
//
// Структура:
//   - store.go    — интерфейс Store, цепочка Chain, ошибки
//   - dir.go      — DirStore: YAML/JSON файлы в каталоге, Decode/Encode
//   - template.go — TemplateStore: манифесты из образа, команды и общего PVC
//
// Неизвестная ссылка всегда даёт ErrNotFound: runner превращает её в
// ошибку отправки, job не пропускается молча.
package manifest
