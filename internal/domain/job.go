package domain

import (
	"time"

	"github.com/google/uuid"
)

// Job — запись Execution Backend о запуске одной стадии.
//
// Обычный job готов к выполнению сразу (Ready). Finalize job создаётся
// с AfterGroup и Ready=false; dispatcher выставляет Ready, когда все
// члены группы завершились успешно.
type Job struct {
	ID    uuid.UUID `json:"id"`
	Stage Stage     `json:"stage"`
	Args  StageArgs `json:"args"`
	State JobState  `json:"state"`

	// GroupID — группа, в которую входит job.
	GroupID *uuid.UUID `json:"group_id,omitempty"`

	// AfterGroup — группа, завершения которой ждёт job.
	AfterGroup *uuid.UUID `json:"after_group,omitempty"`

	Ready   bool `json:"ready"`
	Attempt int  `json:"attempt"`

	// Result — выход стадии.
	Result map[string]any `json:"result,omitempty"`

	Error      string     `json:"error,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// NewJob создаёт PENDING job для вызова.
func NewJob(inv Invocation) *Job {
	return &Job{
		ID:        uuid.New(),
		Stage:     inv.Stage,
		Args:      inv.Args,
		State:     JobStatePending,
		Ready:     true,
		CreatedAt: time.Now().UTC(),
	}
}

// Invocation возвращает вызов, который исполняет job.
func (j *Job) Invocation() Invocation {
	return Invocation{Stage: j.Stage, Args: j.Args}
}

// MarkRunning начинает очередную попытку.
func (j *Job) MarkRunning() {
	now := time.Now().UTC()
	j.State = JobStateRunning
	j.StartedAt = &now
	j.FinishedAt = nil
	j.Error = ""
	j.Attempt++
}

// MarkSucceeded фиксирует успешный результат.
func (j *Job) MarkSucceeded(result map[string]any) {
	now := time.Now().UTC()
	j.State = JobStateSucceeded
	j.FinishedAt = &now
	j.Result = result
}

// MarkFailed фиксирует ошибку.
func (j *Job) MarkFailed(msg string) {
	now := time.Now().UTC()
	j.State = JobStateFailed
	j.FinishedAt = &now
	j.Error = msg
}

// Requeue возвращает прерванную попытку в очередь. Попытка не засчитывается.
func (j *Job) Requeue() {
	j.State = JobStatePending
	j.Ready = true
	j.StartedAt = nil
	j.FinishedAt = nil
	j.Error = ""
	j.Attempt = max(j.Attempt-1, 0)
}

// Duration — время последней попытки.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}
