package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"timercard/internal/protocol"
)

// Broadcaster fans a response out to every connected card.
type Broadcaster interface {
	Broadcast(resp protocol.Response)
}

// Service owns timer and schedule lifecycle: it persists records, arms the
// fire engine, and answers commands with broadcast responses. The outbound
// channel is fire-and-forget, so every mutation is followed by a fresh
// snapshot broadcast that lets cards reconcile.
type Service struct {
	repo   Repository
	engine *Engine
	bcast  Broadcaster
	log    *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, engine *Engine, bcast Broadcaster, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:   repo,
		engine: engine,
		bcast:  bcast,
		log:    log,
		now:    time.Now,
	}
}

// Restore re-arms persisted state after a restart. Timers that expired
// while the daemon was down are marked completed; live ones and active
// schedules go back on the engine.
func (s *Service) Restore(ctx context.Context) error {
	now := s.now()

	timers, err := s.repo.ListTimers(ctx, TimerListFilter{Status: StatusRunning})
	if err != nil {
		return fmt.Errorf("restore timers: %w", err)
	}
	for _, t := range timers {
		if !t.EndTime.After(now) {
			s.completeTimer(ctx, t, now)
			continue
		}
		if err := s.engine.Schedule(FireEvent{ID: t.ID, Kind: KindTimer, EntityID: t.EntityID, FireAt: t.EndTime}); err != nil {
			return err
		}
	}

	schedules, err := s.repo.ListSchedules(ctx, ScheduleListFilter{Status: StatusActive})
	if err != nil {
		return fmt.Errorf("restore schedules: %w", err)
	}
	for _, sc := range schedules {
		if err := s.armSchedule(ctx, sc); err != nil {
			s.log.Warn("schedule not restorable", "schedule_id", sc.ID, "error", err)
		}
	}

	s.log.Info("state restored", "timers", len(timers), "schedules", len(schedules))
	return nil
}

// HandleCommand processes one inbound command and broadcasts the results.
// Errors go back as an error response, never as a dropped connection.
func (s *Service) HandleCommand(ctx context.Context, cmd protocol.Command) {
	if err := cmd.Validate(); err != nil {
		s.fail(cmd, err)
		return
	}

	var err error
	switch cmd.Action {
	case protocol.ActionGetAllTimers:
		err = s.broadcastSnapshot(ctx)
	case protocol.ActionGetAllSchedules:
		err = s.broadcastSchedules(ctx)
	case protocol.ActionCreateTimer:
		err = s.createTimer(ctx, cmd)
	case protocol.ActionCancelEntityTimer:
		err = s.cancelEntityTimer(ctx, cmd.EntityID)
	case protocol.ActionCreateSchedule:
		err = s.createSchedule(ctx, cmd)
	case protocol.ActionCancelSchedule:
		err = s.cancelSchedule(ctx, cmd.ScheduleID)
	}
	if err != nil {
		s.fail(cmd, err)
	}
}

func (s *Service) fail(cmd protocol.Command, err error) {
	s.log.Warn("command failed", "action", cmd.Action, "entity_id", cmd.EntityID, "error", err)
	s.bcast.Broadcast(protocol.Response{
		Action:   protocol.ActionError,
		EntityID: cmd.EntityID,
		Error:    err.Error(),
	})
}

// createTimer replaces any running timer on the same entity, then persists
// and arms the new one.
func (s *Service) createTimer(ctx context.Context, cmd protocol.Command) error {
	secs, err := protocol.ParseDuration(cmd.Duration)
	if err != nil {
		return err
	}
	if secs <= 0 {
		return fmt.Errorf("backend: zero duration")
	}

	if err := s.cancelEntityTimer(ctx, cmd.EntityID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	now := s.now()
	rec := TimerRecord{
		ID:         uuid.NewString(),
		EntityID:   cmd.EntityID,
		EntityName: cmd.EntityID,
		Duration:   cmd.Duration,
		ActionType: cmd.ActionType,
		UserID:     cmd.UserID,
		Status:     StatusRunning,
		StartedAt:  now,
		EndTime:    now.Add(time.Duration(secs) * time.Second),
	}
	if err := s.repo.CreateTimer(ctx, rec); err != nil {
		return err
	}
	if err := s.engine.Schedule(FireEvent{ID: rec.ID, Kind: KindTimer, EntityID: rec.EntityID, FireAt: rec.EndTime}); err != nil {
		return err
	}

	s.log.Info("timer created", "timer_id", rec.ID, "entity_id", rec.EntityID, "duration", rec.Duration)
	end := rec.EndTime
	s.bcast.Broadcast(protocol.Response{
		Action:     protocol.ActionTimerCreated,
		TimerID:    rec.ID,
		EntityID:   rec.EntityID,
		EntityName: rec.EntityName,
		Duration:   rec.Duration,
		EndTime:    &end,
	})
	return s.broadcastSnapshot(ctx)
}

func (s *Service) cancelEntityTimer(ctx context.Context, entityID string) error {
	timers, err := s.repo.ListTimers(ctx, TimerListFilter{EntityID: entityID, Status: StatusRunning})
	if err != nil {
		return err
	}
	if len(timers) == 0 {
		return ErrNotFound
	}
	for _, t := range timers {
		t.Status = StatusCancelled
		if err := s.repo.UpdateTimer(ctx, t); err != nil {
			return err
		}
		s.engine.Cancel(t.ID)
		s.log.Info("timer cancelled", "timer_id", t.ID, "entity_id", t.EntityID)
		s.bcast.Broadcast(protocol.Response{
			Action:   protocol.ActionTimerCancelled,
			TimerID:  t.ID,
			EntityID: t.EntityID,
		})
	}
	return s.broadcastSnapshot(ctx)
}

func (s *Service) createSchedule(ctx context.Context, cmd protocol.Command) error {
	now := s.now()
	next, err := NextExecution(cmd.RepeatType, cmd.ScheduleTime, cmd.Weekdays, cmd.MonthDays, now)
	if err != nil {
		return err
	}

	rec := ScheduleRecord{
		ID:            uuid.NewString(),
		EntityID:      cmd.EntityID,
		EntityName:    cmd.EntityID,
		RepeatType:    cmd.RepeatType,
		ScheduleTime:  cmd.ScheduleTime,
		ActionType:    cmd.ActionType,
		UserID:        cmd.UserID,
		Status:        StatusActive,
		Weekdays:      cmd.Weekdays,
		MonthDays:     cmd.MonthDays,
		NextExecution: &next,
		CreatedAt:     now,
	}
	if err := s.repo.CreateSchedule(ctx, rec); err != nil {
		return err
	}
	if err := s.engine.Schedule(FireEvent{ID: rec.ID, Kind: KindSchedule, EntityID: rec.EntityID, FireAt: next}); err != nil {
		return err
	}

	s.log.Info("schedule created", "schedule_id", rec.ID, "entity_id", rec.EntityID, "repeat_type", rec.RepeatType, "next", next)
	s.bcast.Broadcast(protocol.Response{
		Action:       protocol.ActionScheduleCreated,
		ScheduleID:   rec.ID,
		EntityID:     rec.EntityID,
		RepeatType:   rec.RepeatType,
		ScheduleTime: rec.ScheduleTime,
	})
	return s.broadcastSnapshot(ctx)
}

func (s *Service) cancelSchedule(ctx context.Context, scheduleID string) error {
	sc, err := s.repo.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	sc.Status = StatusCancelled
	if err := s.repo.UpdateSchedule(ctx, sc); err != nil {
		return err
	}
	s.engine.Cancel(sc.ID)
	s.log.Info("schedule cancelled", "schedule_id", sc.ID, "entity_id", sc.EntityID)
	s.bcast.Broadcast(protocol.Response{
		Action:     protocol.ActionScheduleCancelled,
		ScheduleID: sc.ID,
		EntityID:   sc.EntityID,
	})
	return s.broadcastSnapshot(ctx)
}

// OnFire handles one due event from the engine.
func (s *Service) OnFire(ctx context.Context, ev FireEvent) {
	switch ev.Kind {
	case KindTimer:
		t, err := s.repo.GetTimer(ctx, ev.ID)
		if err != nil || t.Status != StatusRunning {
			return
		}
		s.completeTimer(ctx, t, s.now())
		if err := s.broadcastSnapshot(ctx); err != nil {
			s.log.Warn("snapshot after expiry failed", "error", err)
		}

	case KindSchedule:
		sc, err := s.repo.GetSchedule(ctx, ev.ID)
		if err != nil || sc.Status != StatusActive {
			return
		}
		now := s.now()
		sc.LastExecuted = &now
		s.bcast.Broadcast(protocol.Response{
			Action:     protocol.ActionScheduleExecuted,
			ScheduleID: sc.ID,
			EntityID:   sc.EntityID,
		})
		if err := s.armSchedule(ctx, sc); err != nil {
			s.log.Warn("schedule re-arm failed", "schedule_id", sc.ID, "error", err)
		}
		if err := s.broadcastSnapshot(ctx); err != nil {
			s.log.Warn("snapshot after execution failed", "error", err)
		}
	}
}

// armSchedule recomputes the next execution, persists it, and puts the
// schedule on the engine.
func (s *Service) armSchedule(ctx context.Context, sc ScheduleRecord) error {
	next, err := NextExecution(sc.RepeatType, sc.ScheduleTime, sc.Weekdays, sc.MonthDays, s.now())
	if err != nil {
		return err
	}
	sc.NextExecution = &next
	if err := s.repo.UpdateSchedule(ctx, sc); err != nil {
		return err
	}
	return s.engine.Schedule(FireEvent{ID: sc.ID, Kind: KindSchedule, EntityID: sc.EntityID, FireAt: next})
}

func (s *Service) completeTimer(ctx context.Context, t TimerRecord, now time.Time) {
	t.Status = StatusCompleted
	t.ExecutedAt = &now
	if err := s.repo.UpdateTimer(ctx, t); err != nil {
		s.log.Warn("timer completion not persisted", "timer_id", t.ID, "error", err)
		return
	}
	s.log.Info("timer completed", "timer_id", t.ID, "entity_id", t.EntityID)
	s.bcast.Broadcast(protocol.Response{
		Action:   protocol.ActionTimerCompleted,
		TimerID:  t.ID,
		EntityID: t.EntityID,
	})
}

// Snapshot builds the timers_list response. Running timers that slipped
// past their end time without firing yet are marked completed here, so the
// list a card sees never contains an expired "running" entry.
func (s *Service) Snapshot(ctx context.Context) (protocol.Response, error) {
	now := s.now()

	records, err := s.repo.ListTimers(ctx, TimerListFilter{Status: StatusRunning})
	if err != nil {
		return protocol.Response{}, err
	}
	timers := make([]protocol.Timer, 0, len(records))
	for _, t := range records {
		remaining := t.EndTime.Sub(now).Seconds()
		if remaining <= 0 {
			s.completeTimer(ctx, t, now)
			continue
		}
		end := t.EndTime
		timers = append(timers, protocol.Timer{
			TimerID:          t.ID,
			EntityID:         t.EntityID,
			EntityName:       t.EntityName,
			Duration:         t.Duration,
			EndTime:          &end,
			RemainingSeconds: remaining,
			Status:           "running",
			Action:           t.ActionType,
		})
	}

	schedules, err := s.activeSchedules(ctx)
	if err != nil {
		return protocol.Response{}, err
	}

	ts := now
	return protocol.Response{
		Action:        protocol.ActionTimersList,
		Timers:        timers,
		Schedules:     schedules,
		TimerCount:    len(timers),
		ScheduleCount: len(schedules),
		Timestamp:     &ts,
	}, nil
}

func (s *Service) activeSchedules(ctx context.Context) ([]protocol.Schedule, error) {
	records, err := s.repo.ListSchedules(ctx, ScheduleListFilter{Status: StatusActive})
	if err != nil {
		return nil, err
	}
	out := make([]protocol.Schedule, 0, len(records))
	for _, sc := range records {
		out = append(out, protocol.Schedule{
			ScheduleID:    sc.ID,
			EntityID:      sc.EntityID,
			EntityName:    sc.EntityName,
			RepeatType:    sc.RepeatType,
			ScheduleTime:  sc.ScheduleTime,
			Status:        "active",
			Weekdays:      sc.Weekdays,
			MonthDays:     sc.MonthDays,
			NextExecution: sc.NextExecution,
			LastExecuted:  sc.LastExecuted,
			ActionType:    sc.ActionType,
		})
	}
	return out, nil
}

func (s *Service) broadcastSnapshot(ctx context.Context) error {
	resp, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	s.bcast.Broadcast(resp)
	return nil
}

func (s *Service) broadcastSchedules(ctx context.Context) error {
	schedules, err := s.activeSchedules(ctx)
	if err != nil {
		return err
	}
	s.bcast.Broadcast(protocol.Response{
		Action:        protocol.ActionSchedulesList,
		Schedules:     schedules,
		ScheduleCount: len(schedules),
	})
	return nil
}
