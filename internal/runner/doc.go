// Package runner последовательно выполняет пайплайн jobs.
//
// Для каждого job по порядку runner:
//  1. Отправляет манифест в backend (Submit)
//  2. Ждёт терминального условия с таймаутом (Await)
//  3. При любой ошибке останавливает run: следующие jobs не отправляются
//
// Структура:
//   - runner.go   — Runner, Run
//   - errors.go   — JobError и виды ошибок
//   - observer.go — Observer: история, события, метрики
//
// Runner выполняет не больше одного run одновременно. Повторов нет:
// повторы pod'ов внутри job — забота backoffLimit в манифесте.
package runner
