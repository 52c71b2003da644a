// Package backend описывает контракт Execution Backend и его реализации.
//
// Backend принимает вызовы стадий и присваивает им идентификаторы:
//
//   - Submit      — один job, готовый к выполнению
//   - SubmitGroup — группа независимых jobs
//   - SubmitJoin  — finalize job, который станет готов после успеха всей группы
//   - QueryState  — текущее состояние job по идентификатору
//
// Postgres хранит jobs в таблице jobs и будит worker'ов через RabbitMQ.
// Memory держит всё в процессе и используется в тестах.
package backend
