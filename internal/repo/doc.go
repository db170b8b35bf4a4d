// Package repo хранит историю runs в PostgreSQL.
//
// Таблицы (schema.sql, применяется через Migrate):
//   - pipeline_runs — по строке на run
//   - job_runs      — по строке на job run'а, в порядке пайплайна
//
// History подключает RunRepo к runner как Observer. Lock — advisory
// lock, не дающий двум процессам serve запустить пайплайн одновременно.
package repo
