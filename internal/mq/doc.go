// Package mq содержит транспорт Execution Backend поверх RabbitMQ.
//
// Файлы:
//   - connection.go — соединение с переподключением
//   - topology.go   — exchanges, очереди и привязки
//   - publisher.go  — события job.ready и job.completed
//   - consumer.go   — чтение очередей с ручным ack
//
// Поток событий:
//
//	backend/dispatcher --job.ready-->     jobs.ready     --> worker
//	worker             --job.completed--> jobs.completed --> dispatcher
//
// Очередь jobs.ready отправляет отвергнутые сообщения в dlq.jobs.
package mq
