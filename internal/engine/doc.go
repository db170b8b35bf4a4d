// Package engine содержит проверку пайплайна перед запуском.
//
// Включает:
//   - parser.go — валидация имён jobs, таймаутов и контракта хранилища
//   - errors.go — ошибки валидации
//
// Контракт хранилища: jobs обмениваются данными через общий PVC.
// Каждый job объявляет requires (что читает) и produces (что пишет);
// Validate проверяет, что порядок jobs эти зависимости удовлетворяет.
package engine
