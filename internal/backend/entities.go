package backend

import "time"

// TimerRecord is one persisted countdown. Status moves running → completed
// on expiry or running → cancelled on an explicit cancel; only one running
// timer may exist per entity.
type TimerRecord struct {
	ID         string
	EntityID   string
	EntityName string
	Duration   string
	ActionType string
	UserID     string
	Status     string
	StartedAt  time.Time
	EndTime    time.Time
	ExecutedAt *time.Time
}

// ScheduleRecord is one persisted recurring rule.
type ScheduleRecord struct {
	ID            string
	EntityID      string
	EntityName    string
	RepeatType    string
	ScheduleTime  string
	ActionType    string
	UserID        string
	Status        string
	Weekdays      []string
	MonthDays     []int
	NextExecution *time.Time
	LastExecuted  *time.Time
	CreatedAt     time.Time
}

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusActive    = "active"
)

type TimerListFilter struct {
	EntityID string
	Status   string
	UserID   string
	Limit    int
	Offset   int
}

type ScheduleListFilter struct {
	EntityID string
	Status   string
	UserID   string
	Limit    int
	Offset   int
}
