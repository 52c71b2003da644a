// Package worker исполняет стадии конвейера для jobs Execution Backend.
//
// # Обзор
//
// Worker — stateless процесс. Он:
//
//   - получает job.ready из RabbitMQ (event-driven)
//   - периодически забирает готовые PENDING jobs из Postgres (polling fallback)
//   - атомарно захватывает job (PENDING → RUNNING), чтобы два worker'а не взяли один job
//   - вызывает Executor стадии с retry и backoff
//   - сохраняет результат и публикует job.completed для dispatcher'а
//
// # Executors
//
//	ingest-unit   IngestExecutor  — читает заголовок CSV, пишет Unit в каталог
//	profile-unit  ProfileExecutor — отправляет таблицу во внешний профайлер
//	profile-all   ProfileExecutor — отправляет весь бакет во внешний профайлер
//
// # Ошибки
//
// Два уровня ошибок:
//   - инфраструктурные (error из Execute) — всегда повторяются
//   - логические (Result.Error) — повторяются, только если RetryPolicy.OnStatus
//     содержит HTTP код ответа, либо OnStatus пуст и Result помечен Retryable
package worker
