// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go       — Handler и интерфейс Pipeline
//   - routes.go        — регистрация маршрутов
//   - middleware.go    — request id, logging, recovery
//   - response.go      — JSON-ответы и отображение ошибок на HTTP коды
//   - dto.go           — запросы и ответы
//   - table_handler.go — /buckets, /tables, /purge
//   - job_handler.go   — /jobs/{id}
package api
