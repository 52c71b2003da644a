package topology

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPlan — план нельзя отправить: неизвестная стадия, кривые аргументы, длина цепочки.
	ErrInvalidPlan = errors.New("invalid plan")

	// ErrNothingToDo — после фильтрации не осталось ни одного листа.
	ErrNothingToDo = errors.New("nothing to do")

	// ErrNotFound — по этому идентификатору топология не сохранялась или была очищена.
	ErrNotFound = errors.New("topology not found")

	// ErrBackendUnavailable — backend не принял план или не ответил на запрос состояния.
	ErrBackendUnavailable = errors.New("execution backend unavailable")

	// ErrTopologyCorrupt — сохранённая запись не декодируется или нарушает форму дерева.
	ErrTopologyCorrupt = errors.New("topology record corrupt")
)

// ValidationError описывает, какой вызов плана не прошёл проверку.
type ValidationError struct {
	Index   int // позиция вызова в плане, -1 для плана целиком
	Message string
	Err     error
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("invalid plan: invocation %d: %s", e.Index, e.Message)
	}
	return "invalid plan: " + e.Message
}

// Unwrap позволяет errors.Is(err, ErrInvalidPlan) и проверку исходной причины.
func (e *ValidationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvalidPlan}
	}
	return []error{ErrInvalidPlan, e.Err}
}

func invalid(index int, err error) *ValidationError {
	return &ValidationError{Index: index, Message: err.Error(), Err: err}
}
