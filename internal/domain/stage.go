package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Stage — именованная операция конвейера.
type Stage string

const (
	// StageIngestUnit читает заголовок таблицы и регистрирует её в каталоге.
	StageIngestUnit Stage = "ingest-unit"

	// StageProfileUnit профилирует одну таблицу.
	StageProfileUnit Stage = "profile-unit"

	// StageProfileAll профилирует все таблицы бакета. Используется как finalize.
	StageProfileAll Stage = "profile-all"
)

// Stages перечисляет все известные стадии.
var Stages = []Stage{StageIngestUnit, StageProfileUnit, StageProfileAll}

var (
	// ErrUnknownStage — стадия не зарегистрирована.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrInvalidArgs — аргументы не подходят стадии.
	ErrInvalidArgs = errors.New("invalid stage arguments")
)

// Validate проверяет, что стадия известна.
func (s Stage) Validate() error {
	for _, known := range Stages {
		if s == known {
			return nil
		}
	}
	if s == "" {
		return fmt.Errorf("%w: empty name", ErrUnknownStage)
	}
	return fmt.Errorf("%w: %q", ErrUnknownStage, string(s))
}

// NeedsPath сообщает, работает ли стадия с одной таблицей.
func (s Stage) NeedsPath() bool {
	return s == StageIngestUnit || s == StageProfileUnit
}

// StageArgs — аргументы вызова стадии.
type StageArgs struct {
	Bucket string `json:"bucket"`
	Path   string `json:"path,omitempty"`
}

// List возвращает снимок аргументов в том виде, в каком он хранится в топологии.
func (a StageArgs) List() []string {
	if a.Path == "" {
		return []string{a.Bucket}
	}
	return []string{a.Bucket, a.Path}
}

// Invocation — стадия вместе с аргументами.
type Invocation struct {
	Stage Stage     `json:"stage"`
	Args  StageArgs `json:"args"`
}

// Validate проверяет стадию и форму аргументов.
func (i Invocation) Validate() error {
	if err := i.Stage.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(i.Args.Bucket) == "" {
		return fmt.Errorf("%w: %s requires bucket", ErrInvalidArgs, i.Stage)
	}
	if i.Stage.NeedsPath() && strings.TrimSpace(i.Args.Path) == "" {
		return fmt.Errorf("%w: %s requires path", ErrInvalidArgs, i.Stage)
	}
	if !i.Stage.NeedsPath() && i.Args.Path != "" {
		return fmt.Errorf("%w: %s takes bucket only", ErrInvalidArgs, i.Stage)
	}
	return nil
}

// String — короткая форма для логов: "ingest-unit(bucket, path)".
func (i Invocation) String() string {
	return fmt.Sprintf("%s(%s)", i.Stage, strings.Join(i.Args.List(), ", "))
}

// IngestUnit — вызов ingest-unit.
func IngestUnit(bucket, path string) Invocation {
	return Invocation{Stage: StageIngestUnit, Args: StageArgs{Bucket: bucket, Path: path}}
}

// ProfileUnit — вызов profile-unit.
func ProfileUnit(bucket, path string) Invocation {
	return Invocation{Stage: StageProfileUnit, Args: StageArgs{Bucket: bucket, Path: path}}
}

// ProfileAll — вызов profile-all.
func ProfileAll(bucket string) Invocation {
	return Invocation{Stage: StageProfileAll, Args: StageArgs{Bucket: bucket}}
}
