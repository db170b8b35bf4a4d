// Package scheduler реализует цикл режима serve.
//
// Scheduler принимает триггеры из двух источников:
//   - cron-расписание (robfig/cron)
//   - запросы pipeline.requested из RabbitMQ (через Trigger)
//
// и выполняет не больше одного run одновременно. Триггер, пришедший во
// время run, не ставится в очередь: Trigger возвращает ErrBusy. Для cron
// это пропуск тика, для очереди — nack с возвратом сообщения.
//
// Структура:
//   - scheduler.go — цикл Start, Trigger, LastRun
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Runner:   r,
//	    Pipeline: pipeline,
//	    Cron:     "0 3 * * *",
//	    OnSkip:   func(scheduler.Trigger) { metrics.TriggerSkipped() },
//	    Logger:   logger,
//	})
//	go sched.Start(ctx)
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в команде serve через pg_try_advisory_lock.
// Start вызывается только лидером.
package scheduler
