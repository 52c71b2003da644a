// Package cli реализует инструмент командной строки tabledisco.
//
// CLI работает с API только по HTTP и не импортирует внутренние пакеты
// системы.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API: разбирает DataResponse, ListResponse и
// ErrorResponse. 204 на отправку означает "нечего делать" и
// возвращается как nil без ошибки.
//
//	client := cli.NewClient("http://localhost:8080")
//	sub, err := client.IngestBucket("raw")
//
// ## Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Статус отправки печатается деревом с отступами.
//
// ## Commands
//
//   - bucket: ingest
//   - table: add, profile, list, preview
//   - job: status
//   - purge
//
// Каждая группа создаётся фабрикой (NewTableCmd и т.д.), принимающей
// clientFn и outputFn — замыкания, которые создают Client и Output
// после разбора PersistentFlags.
package cli
