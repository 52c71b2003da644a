package domain

// JobState — состояние job в Execution Backend.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//
// Finalize job может перейти PENDING → FAILED без запуска,
// если одна из задач его группы упала.
type JobState string

const (
	// JobStatePending — job ещё не запускался (в том числе ждёт группу).
	JobStatePending JobState = "PENDING"

	// JobStateRunning — job выполняется worker'ом.
	JobStateRunning JobState = "RUNNING"

	// JobStateSucceeded — job завершился успешно.
	JobStateSucceeded JobState = "SUCCEEDED"

	// JobStateFailed — job завершился ошибкой после всех попыток.
	JobStateFailed JobState = "FAILED"
)

// IsTerminal возвращает true для SUCCEEDED и FAILED.
func (s JobState) IsTerminal() bool {
	return s == JobStateSucceeded || s == JobStateFailed
}

// Valid сообщает, известно ли состояние.
func (s JobState) Valid() bool {
	switch s {
	case JobStatePending, JobStateRunning, JobStateSucceeded, JobStateFailed:
		return true
	default:
		return false
	}
}
