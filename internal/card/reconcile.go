package card

import (
	"fmt"
	"math"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"timercard/internal/protocol"
)

// handleResponse merges one inbound message into local state. A payload
// without a recognized action tag is flagged as a sync failure and changes
// nothing else.
func (m *Model) handleResponse(resp protocol.Response) tea.Cmd {
	if !protocol.KnownResponseAction(resp.Action) {
		m.sync.LastSyncFailed = true
		m.debugInfo = fmt.Sprintf("unknown response format: %q", resp.Action)
		return nil
	}

	// Any well-formed response proves the backend is alive, including an
	// explicit error.
	m.sync.BackendConnected = true
	m.sync.LastSyncSuccess = m.now()
	m.sync.LastSyncFailed = false

	switch resp.Action {
	case protocol.ActionTimersList:
		return m.applySnapshot(resp)

	case protocol.ActionSchedulesList:
		m.applySchedules(resp.Schedules)
		m.rebuildTasks(nil)
		return m.adjustScroll()

	case protocol.ActionTimerCreated, protocol.ActionScheduleCreated:
		// Creation echoes carry no full state; pull a snapshot shortly,
		// but only when the echo concerns the bound entity.
		if resp.EntityID == m.cfg.Entity {
			m.status = StatusBar{Text: "created"}
			return deferredSyncCmd(createRefreshDelay, false)
		}
		return nil

	case protocol.ActionTimerCancelled, protocol.ActionTimerCompleted:
		if resp.EntityID == m.cfg.Entity {
			m.clearTimer()
		}
		return nil

	case protocol.ActionScheduleCancelled, protocol.ActionScheduleExecuted:
		return deferredSyncCmd(createRefreshDelay, false)

	case protocol.ActionError:
		m.sync.LastSyncFailed = true
		m.sync.LastError = resp.Error
		m.debugInfo = fmt.Sprintf("backend error: %s", resp.Error)
		return nil
	}
	return nil
}

// applySnapshot is the full merge of a timers+schedules list. The bound
// timer is located on the unfiltered array so that a just-expired entry
// still matches and gets cleared by remaining arithmetic rather than by
// silent absence.
func (m *Model) applySnapshot(resp protocol.Response) tea.Cmd {
	now := m.now()

	running := make([]protocol.Timer, 0, len(resp.Timers))
	for _, t := range resp.Timers {
		if t.Running(now) {
			running = append(running, t)
		}
	}
	m.applySchedules(resp.Schedules)
	m.rebuildTasks(running)

	var bound *protocol.Timer
	for i := range resp.Timers {
		if resp.Timers[i].EntityID == m.cfg.Entity {
			bound = &resp.Timers[i]
			break
		}
	}

	if bound == nil {
		m.clearTimer()
	} else {
		m.mergeBoundTimer(*bound, now)
	}

	// The snapshot satisfies any in-flight request.
	m.bumpSeq()
	m.sync.RetryCount = 0
	m.sync.Phase = PhaseIdle
	m.restoring = false

	return m.adjustScroll()
}

// mergeBoundTimer applies the authoritative remaining time with the
// anti-jitter band: sub-3-second disagreement keeps the local tick to avoid
// the countdown visibly stuttering on every round trip.
func (m *Model) mergeBoundTimer(t protocol.Timer, now time.Time) {
	candidate := remainingFrom(t, now)

	current := 0
	if m.timer != nil {
		current = m.timer.RemainingSeconds
	}

	if m.timer == nil || m.timer.EntityID != t.EntityID {
		m.timer = &TimerState{
			EntityID:         t.EntityID,
			RemainingSeconds: current,
		}
	}
	m.timer.EndTime = t.EndTime
	if t.Duration != "" {
		m.timer.Duration = t.Duration
		if total, err := protocol.ParseDuration(t.Duration); err == nil && total > 0 {
			m.timer.TotalSeconds = total
		}
	}
	if m.timer.TotalSeconds <= 0 {
		m.timer.TotalSeconds = candidate
	}

	if abs(candidate-current) > jitterBandSeconds {
		m.timer.RemainingSeconds = candidate
	}
}

// remainingFrom derives whole seconds left, preferring the end time over the
// server-computed remaining_seconds. Both are floored and never negative.
func remainingFrom(t protocol.Timer, now time.Time) int {
	if t.EndTime != nil {
		d := t.EndTime.Sub(now)
		if d < 0 {
			return 0
		}
		return int(d / time.Second)
	}
	if t.RemainingSeconds < 0 {
		return 0
	}
	return int(math.Floor(t.RemainingSeconds))
}

func (m *Model) applySchedules(schedules []protocol.Schedule) {
	now := m.now()
	out := make([]ScheduleState, 0, len(schedules))
	for _, s := range schedules {
		if s.Status != "" && s.Status != "active" {
			continue
		}
		out = append(out, ScheduleState{
			ScheduleID:       s.ScheduleID,
			EntityID:         s.EntityID,
			EntityName:       s.EntityName,
			RepeatType:       s.RepeatType,
			ScheduleTime:     s.ScheduleTime,
			Weekdays:         s.Weekdays,
			MonthDays:        s.MonthDays,
			NextExecution:    s.NextExecution,
			CountdownSeconds: s.Countdown(now),
			Summary:          s.Summary(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ScheduleID < out[j].ScheduleID
	})
	m.schedules = out
}

// rebuildTasks merges running timers and active schedules into the ordered
// display list. A nil timer slice keeps the previous timer entries.
func (m *Model) rebuildTasks(running []protocol.Timer) {
	var tasks []TaskEntry
	if running == nil {
		for _, e := range m.tasks {
			if !e.IsSchedule {
				tasks = append(tasks, e)
			}
		}
	} else {
		for _, t := range running {
			tasks = append(tasks, TaskEntry{Timer: t})
		}
	}
	for _, s := range m.schedules {
		tasks = append(tasks, TaskEntry{IsSchedule: true, Schedule: s})
	}
	m.tasks = tasks
	m.taskCount = len(tasks)
}

func (m *Model) clearTimer() {
	m.timer = nil
	m.restoring = false
	m.bumpSeq()
	m.sync.RetryCount = 0
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
