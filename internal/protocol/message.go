package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrUnknownAction = errors.New("protocol: unknown action")
	ErrMissingField  = errors.New("protocol: missing required field")
)

// Command actions sent from the card to the backend.
const (
	ActionGetAllTimers      = "get_all_timers"
	ActionCreateTimer       = "create_timer"
	ActionCancelEntityTimer = "cancel_entity_timer"
	ActionCreateSchedule    = "create_schedule"
	ActionCancelSchedule    = "cancel_schedule"
	ActionGetAllSchedules   = "get_all_schedules"
)

// Response actions emitted by the backend.
const (
	ActionTimersList        = "timers_list"
	ActionTimerCreated      = "timer_created"
	ActionTimerCancelled    = "timer_cancelled"
	ActionTimerCompleted    = "timer_completed"
	ActionScheduleCreated   = "schedule_created"
	ActionScheduleCancelled = "schedule_cancelled"
	ActionScheduleExecuted  = "schedule_executed"
	ActionSchedulesList     = "schedules_list"
	ActionError             = "error"
)

type RepeatType string

const (
	RepeatDaily   RepeatType = "daily"
	RepeatWeekly  RepeatType = "weekly"
	RepeatMonthly RepeatType = "monthly"
)

func (r RepeatType) IsValid() bool {
	switch r {
	case RepeatDaily, RepeatWeekly, RepeatMonthly:
		return true
	default:
		return false
	}
}

// Command is an outbound event payload. The channel is fire-and-forget:
// there is no correlation id, success is only observable through a later
// inbound response.
type Command struct {
	Action       string   `json:"action"`
	EntityID     string   `json:"entity_id,omitempty"`
	Duration     string   `json:"duration,omitempty"`
	ActionType   string   `json:"action_type,omitempty"`
	UserID       string   `json:"user_id,omitempty"`
	RepeatType   string   `json:"repeat_type,omitempty"`
	ScheduleTime string   `json:"schedule_time,omitempty"`
	Weekdays     []string `json:"weekdays,omitempty"`
	MonthDays    []int    `json:"month_days,omitempty"`
	ScheduleID   string   `json:"schedule_id,omitempty"`
}

func (c Command) Validate() error {
	switch c.Action {
	case ActionGetAllTimers, ActionGetAllSchedules:
		return nil
	case ActionCreateTimer:
		if strings.TrimSpace(c.EntityID) == "" {
			return fmt.Errorf("%w: entity_id", ErrMissingField)
		}
		if strings.TrimSpace(c.Duration) == "" {
			return fmt.Errorf("%w: duration", ErrMissingField)
		}
		if _, err := ParseDuration(c.Duration); err != nil {
			return err
		}
		return nil
	case ActionCancelEntityTimer:
		if strings.TrimSpace(c.EntityID) == "" {
			return fmt.Errorf("%w: entity_id", ErrMissingField)
		}
		return nil
	case ActionCreateSchedule:
		if strings.TrimSpace(c.EntityID) == "" {
			return fmt.Errorf("%w: entity_id", ErrMissingField)
		}
		if !RepeatType(c.RepeatType).IsValid() {
			return fmt.Errorf("protocol: invalid repeat_type %q", c.RepeatType)
		}
		if strings.TrimSpace(c.ScheduleTime) == "" {
			return fmt.Errorf("%w: schedule_time", ErrMissingField)
		}
		if _, err := ParseDuration(c.ScheduleTime); err != nil {
			return err
		}
		if c.RepeatType == string(RepeatWeekly) && len(c.Weekdays) == 0 {
			return fmt.Errorf("%w: weekdays", ErrMissingField)
		}
		if c.RepeatType == string(RepeatMonthly) && len(c.MonthDays) == 0 {
			return fmt.Errorf("%w: month_days", ErrMissingField)
		}
		return nil
	case ActionCancelSchedule:
		if strings.TrimSpace(c.ScheduleID) == "" {
			return fmt.Errorf("%w: schedule_id", ErrMissingField)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
	}
}

func (c Command) Encode() ([]byte, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(c)
}

// Timer is one countdown entry in a snapshot. RemainingSeconds is a float
// because the backend computes it from wall-clock arithmetic; consumers
// floor it.
type Timer struct {
	TimerID          string     `json:"timer_id,omitempty"`
	EntityID         string     `json:"entity_id"`
	EntityName       string     `json:"entity_name,omitempty"`
	Duration         string     `json:"duration,omitempty"`
	EndTime          *time.Time `json:"end_time,omitempty"`
	RemainingSeconds float64    `json:"remaining_seconds,omitempty"`
	Status           string     `json:"status,omitempty"`
	Action           string     `json:"action,omitempty"`
}

// Running reports whether the timer belongs in the running set: status says
// so, or it still has remaining time, or its end time is in the future.
func (t Timer) Running(now time.Time) bool {
	if t.Status == "running" {
		return true
	}
	if t.RemainingSeconds > 0 {
		return true
	}
	return t.EndTime != nil && t.EndTime.After(now)
}

type Schedule struct {
	ScheduleID    string     `json:"schedule_id"`
	EntityID      string     `json:"entity_id"`
	EntityName    string     `json:"entity_name,omitempty"`
	RepeatType    string     `json:"repeat_type"`
	ScheduleTime  string     `json:"schedule_time"`
	Status        string     `json:"status,omitempty"`
	Weekdays      []string   `json:"weekdays,omitempty"`
	MonthDays     []int      `json:"month_days,omitempty"`
	NextExecution *time.Time `json:"next_execution,omitempty"`
	LastExecuted  *time.Time `json:"last_executed,omitempty"`
	ActionType    string     `json:"action_type,omitempty"`
}

// Countdown derives the seconds until the next execution. It is recomputed
// on every refresh rather than stored, so it cannot drift.
func (s Schedule) Countdown(now time.Time) int {
	if s.NextExecution == nil {
		return 0
	}
	d := s.NextExecution.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}

// Summary renders a short human description like "weekly Mon,Fri 07:30:00".
func (s Schedule) Summary() string {
	switch RepeatType(s.RepeatType) {
	case RepeatWeekly:
		if len(s.Weekdays) > 0 {
			return fmt.Sprintf("weekly %s %s", WeekdaysLabel(s.Weekdays), s.ScheduleTime)
		}
	case RepeatMonthly:
		if len(s.MonthDays) > 0 {
			return fmt.Sprintf("monthly %s %s", MonthDaysLabel(s.MonthDays), s.ScheduleTime)
		}
	}
	return fmt.Sprintf("%s %s", s.RepeatType, s.ScheduleTime)
}

// Response is the inbound event payload, tagged by Action. One struct covers
// every variant; which fields are meaningful depends on the tag.
type Response struct {
	Action        string     `json:"action"`
	Timers        []Timer    `json:"timers,omitempty"`
	Schedules     []Schedule `json:"schedules,omitempty"`
	TimerCount    int        `json:"timer_count,omitempty"`
	ScheduleCount int        `json:"schedule_count,omitempty"`
	TimerID       string     `json:"timer_id,omitempty"`
	ScheduleID    string     `json:"schedule_id,omitempty"`
	EntityID      string     `json:"entity_id,omitempty"`
	EntityName    string     `json:"entity_name,omitempty"`
	Duration      string     `json:"duration,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	RepeatType    string     `json:"repeat_type,omitempty"`
	ScheduleTime  string     `json:"schedule_time,omitempty"`
	Status        string     `json:"status,omitempty"`
	Message       string     `json:"message,omitempty"`
	Error         string     `json:"error,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

func KnownResponseAction(action string) bool {
	switch action {
	case ActionTimersList, ActionTimerCreated, ActionTimerCancelled, ActionTimerCompleted,
		ActionScheduleCreated, ActionScheduleCancelled, ActionScheduleExecuted,
		ActionSchedulesList, ActionError:
		return true
	default:
		return false
	}
}

// DecodeResponse parses an inbound payload and rejects anything without a
// recognized action tag. Rejection never mutates caller state; the card
// records it as a sync failure.
func DecodeResponse(raw []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Response{}, fmt.Errorf("protocol: decode response: %w", err)
	}
	if !KnownResponseAction(resp.Action) {
		return Response{}, fmt.Errorf("%w: %q", ErrUnknownAction, resp.Action)
	}
	return resp, nil
}

// DecodeCommand parses an outbound payload on the backend side.
func DecodeCommand(raw []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		return Command{}, fmt.Errorf("protocol: decode command: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}
	return cmd, nil
}
