package backend

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("backend: not found")

type Repository interface {
	CreateTimer(ctx context.Context, in TimerRecord) error
	GetTimer(ctx context.Context, id string) (TimerRecord, error)
	UpdateTimer(ctx context.Context, in TimerRecord) error
	DeleteTimer(ctx context.Context, id string) error
	ListTimers(ctx context.Context, filter TimerListFilter) ([]TimerRecord, error)

	CreateSchedule(ctx context.Context, in ScheduleRecord) error
	GetSchedule(ctx context.Context, id string) (ScheduleRecord, error)
	UpdateSchedule(ctx context.Context, in ScheduleRecord) error
	DeleteSchedule(ctx context.Context, id string) error
	ListSchedules(ctx context.Context, filter ScheduleListFilter) ([]ScheduleRecord, error)
}
