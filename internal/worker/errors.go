package worker

import "errors"

// Ошибки воркера.
var (
	// ErrJobNotFound — job не найден в БД.
	ErrJobNotFound = errors.New("job not found")

	// ErrJobNotClaimable — job уже взят другим worker'ом или ещё ждёт группу.
	ErrJobNotClaimable = errors.New("job is not claimable")

	// ErrUnknownStage — нет executor'а для стадии.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrProfiler — запрос к профайлеру не удался.
	ErrProfiler = errors.New("profiler request failed")
)
