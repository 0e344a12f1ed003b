package backend

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "timercard-test.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := MigrateUp(db); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	repo, err := NewSQLiteRepository(db)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	return repo
}

func parseRFC3339(t *testing.T, value string) time.Time {
	t.Helper()
	out, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}
	return out
}

func TestTimerCRUDAndList(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	started := parseRFC3339(t, "2026-03-14T12:00:00Z")

	rec := TimerRecord{
		ID:         "timer-1",
		EntityID:   "light.kitchen",
		EntityName: "Kitchen Light",
		Duration:   "00:30:00",
		ActionType: "turn_off",
		UserID:     "alice",
		Status:     StatusRunning,
		StartedAt:  started,
		EndTime:    started.Add(30 * time.Minute),
	}
	if err := repo.CreateTimer(ctx, rec); err != nil {
		t.Fatalf("create timer: %v", err)
	}

	got, err := repo.GetTimer(ctx, "timer-1")
	if err != nil {
		t.Fatalf("get timer: %v", err)
	}
	if got.EntityID != rec.EntityID || got.Status != StatusRunning || !got.EndTime.Equal(rec.EndTime) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	executed := started.Add(30 * time.Minute)
	got.Status = StatusCompleted
	got.ExecutedAt = &executed
	if err := repo.UpdateTimer(ctx, got); err != nil {
		t.Fatalf("update timer: %v", err)
	}

	running, err := repo.ListTimers(ctx, TimerListFilter{Status: StatusRunning})
	if err != nil {
		t.Fatalf("list running: %v", err)
	}
	if len(running) != 0 {
		t.Fatalf("running = %d, want 0", len(running))
	}

	byEntity, err := repo.ListTimers(ctx, TimerListFilter{EntityID: "light.kitchen"})
	if err != nil {
		t.Fatalf("list by entity: %v", err)
	}
	if len(byEntity) != 1 || byEntity[0].ExecutedAt == nil {
		t.Fatalf("by entity = %+v", byEntity)
	}

	if err := repo.DeleteTimer(ctx, "timer-1"); err != nil {
		t.Fatalf("delete timer: %v", err)
	}
	if _, err := repo.GetTimer(ctx, "timer-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScheduleRoundTripKeepsRuleFields(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()
	created := parseRFC3339(t, "2026-03-14T08:00:00Z")
	next := created.Add(48 * time.Hour)

	rec := ScheduleRecord{
		ID:            "sched-1",
		EntityID:      "fan.attic",
		EntityName:    "Attic Fan",
		RepeatType:    "weekly",
		ScheduleTime:  "07:30:00",
		ActionType:    "turn_off",
		UserID:        "alice",
		Status:        StatusActive,
		Weekdays:      []string{"monday", "friday"},
		MonthDays:     nil,
		NextExecution: &next,
		CreatedAt:     created,
	}
	if err := repo.CreateSchedule(ctx, rec); err != nil {
		t.Fatalf("create schedule: %v", err)
	}

	got, err := repo.GetSchedule(ctx, "sched-1")
	if err != nil {
		t.Fatalf("get schedule: %v", err)
	}
	if len(got.Weekdays) != 2 || got.Weekdays[0] != "monday" || got.Weekdays[1] != "friday" {
		t.Fatalf("weekdays = %v", got.Weekdays)
	}
	if got.NextExecution == nil || !got.NextExecution.Equal(next) {
		t.Fatalf("next execution = %v, want %v", got.NextExecution, next)
	}

	monthly := ScheduleRecord{
		ID:           "sched-2",
		EntityID:     "switch.heater",
		RepeatType:   "monthly",
		ScheduleTime: "06:00:00",
		Status:       StatusActive,
		MonthDays:    []int{1, 15},
		CreatedAt:    created,
	}
	if err := repo.CreateSchedule(ctx, monthly); err != nil {
		t.Fatalf("create monthly: %v", err)
	}
	gotMonthly, err := repo.GetSchedule(ctx, "sched-2")
	if err != nil {
		t.Fatalf("get monthly: %v", err)
	}
	if len(gotMonthly.MonthDays) != 2 || gotMonthly.MonthDays[1] != 15 {
		t.Fatalf("month days = %v", gotMonthly.MonthDays)
	}

	active, err := repo.ListSchedules(ctx, ScheduleListFilter{Status: StatusActive})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2", len(active))
	}

	got.Status = StatusCancelled
	if err := repo.UpdateSchedule(ctx, got); err != nil {
		t.Fatalf("update schedule: %v", err)
	}
	active, err = repo.ListSchedules(ctx, ScheduleListFilter{Status: StatusActive})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "sched-2" {
		t.Fatalf("active after cancel = %+v", active)
	}
}

func TestUpdateMissingRowReturnsNotFound(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	err := repo.UpdateTimer(ctx, TimerRecord{ID: "ghost", StartedAt: time.Now(), EndTime: time.Now()})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	err = repo.DeleteSchedule(ctx, "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
