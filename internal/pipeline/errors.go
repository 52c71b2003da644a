package pipeline

import "errors"

var (
	// ErrBucketNotFound — бакета нет в хранилище.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrBucketEmpty — в бакете нет ни одной таблицы.
	ErrBucketEmpty = errors.New("bucket has no tables")

	// ErrTableNotFound — таблицы нет в бакете.
	ErrTableNotFound = errors.New("table not found")

	// ErrNotIngested — таблица ещё не принята, профилировать нечего.
	ErrNotIngested = errors.New("table has not been ingested")
)
