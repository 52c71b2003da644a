package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей, без секунд).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Entry — расписание приёмки одного бакета.
type Entry struct {
	Bucket string
	Expr   string

	schedule cron.Schedule
}

// Next возвращает следующее время запуска после from, в UTC.
func (e Entry) Next(from time.Time) time.Time {
	return e.schedule.Next(from).UTC()
}

// NewEntry разбирает cron-выражение для бакета.
func NewEntry(bucket, expr string) (Entry, error) {
	if bucket == "" {
		return Entry{}, fmt.Errorf("empty bucket for schedule %q", expr)
	}
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return Entry{}, fmt.Errorf("parse cron expression %q: %w", expr, err)
	}
	return Entry{Bucket: bucket, Expr: expr, schedule: schedule}, nil
}

// ParseSchedules разбирает INGEST_SCHEDULES: "bucket=cron;bucket=cron".
// Пустая строка — расписаний нет.
func ParseSchedules(s string) ([]Entry, error) {
	var entries []Entry
	seen := make(map[string]bool)

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bucket, expr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("invalid schedule %q, expected BUCKET=CRON", part)
		}
		bucket = strings.TrimSpace(bucket)
		if seen[bucket] {
			return nil, fmt.Errorf("duplicate schedule for bucket %q", bucket)
		}
		seen[bucket] = true

		entry, err := NewEntry(bucket, strings.TrimSpace(expr))
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
