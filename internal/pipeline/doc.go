// Package pipeline — фасад над ядром для API и scheduler.
//
// Каждая операция отправки проходит один путь: кандидаты → Gate →
// план → backend → Persist → идентификатор. Идентификатор возвращается
// только после того, как дерево записано в Store, поэтому любой
// процесс может восстановить статус по нему после рестарта.
package pipeline
