// Package scheduler периодически запускает приёмку бакетов.
//
// Расписания задаются переменной INGEST_SCHEDULES:
//
//	INGEST_SCHEDULES="raw=0 * * * *;landing=@daily"
//
// Структура:
//   - scheduler.go — Scheduler (Tick, Run)
//   - cron.go      — разбор расписаний, вычисление следующего запуска
//   - lock.go      — лидерство через pg_try_advisory_lock
//
// Tick вызывается раз в секунду и только лидером: между репликами
// лидерство разыгрывается через Postgres advisory lock.
package scheduler
