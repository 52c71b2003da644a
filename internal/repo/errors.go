package repo

import "errors"

// Ошибки репозитория.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState — переход состояния невозможен.
	ErrInvalidState = errors.New("invalid state")
)
