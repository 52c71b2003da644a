// Package catalog хранит метаданные принятых таблиц и отсекает повторную приёмку.
//
// Запись Unit создаёт стадия ingest-unit после того, как таблица прочитана.
// Наличие записи и есть признак "уже принята": Gate проверяет его для каждого
// кандидата перед построением плана.
//
// Проверка и запись не атомарны. Два одновременных запроса на один бакет
// могут оба пройти Gate и поставить по листу на одну таблицу. Это допустимо:
// ingest-unit идемпотентен по пути, второй лист перезапишет ту же запись.
package catalog
