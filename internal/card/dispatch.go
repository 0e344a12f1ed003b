package card

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"timercard/internal/protocol"
)

// send encodes and sends one command. Validation failures surface in the
// status bar; transport failures mark the sync state.
func (m *Model) send(cmd protocol.Command) error {
	if err := cmd.Validate(); err != nil {
		m.status = StatusBar{Text: err.Error(), IsError: true}
		return err
	}
	if !m.ready() {
		m.status = StatusBar{Text: "not connected", IsError: true}
		return ErrNotReady
	}
	if err := m.bus.Send(cmd); err != nil {
		m.sync.LastSyncFailed = true
		m.debugInfo = fmt.Sprintf("send failed: %v", err)
		return err
	}
	return nil
}

// ErrNotReady mirrors the transport sentinel for callers that only have a
// card handle.
var ErrNotReady = fmt.Errorf("card: transport not ready")

// StartTimer sends create_timer and optimistically binds a local countdown
// so the display reacts before the authoritative response arrives.
func (m *Model) StartTimer(duration string) tea.Cmd {
	if m.cfg.Entity == "" {
		m.status = StatusBar{Text: "select a device first", IsError: true}
		return nil
	}
	total, err := protocol.ParseDuration(duration)
	if err != nil || total <= 0 {
		m.status = StatusBar{Text: "invalid duration", IsError: true}
		return nil
	}
	err = m.send(protocol.Command{
		Action:     protocol.ActionCreateTimer,
		EntityID:   m.cfg.Entity,
		Duration:   duration,
		ActionType: "turn_off",
		UserID:     m.cfg.UserID,
	})
	if err != nil {
		return nil
	}
	m.timer = &TimerState{
		EntityID:         m.cfg.Entity,
		Duration:         duration,
		RemainingSeconds: total,
		TotalSeconds:     total,
	}
	m.restoring = true
	m.status = StatusBar{Text: "timer started"}
	return deferredSyncCmd(commandRefreshDelay, false)
}

// CancelTimer clears the bound timer optimistically and asks the backend to
// do the same.
func (m *Model) CancelTimer() tea.Cmd {
	if m.cfg.Entity == "" {
		m.status = StatusBar{Text: "select a device first", IsError: true}
		return nil
	}
	err := m.send(protocol.Command{
		Action:   protocol.ActionCancelEntityTimer,
		EntityID: m.cfg.Entity,
		UserID:   m.cfg.UserID,
	})
	if err != nil {
		return nil
	}
	m.clearTimer()
	m.status = StatusBar{Text: "timer cancelled"}
	return deferredSyncCmd(commandRefreshDelay, false)
}

// ModifyTimer cancels the running timer and creates a replacement half a
// second later so the backend finishes the cancel first.
func (m *Model) ModifyTimer(duration string) tea.Cmd {
	if _, err := protocol.ParseDuration(duration); err != nil {
		m.status = StatusBar{Text: "invalid duration", IsError: true}
		return nil
	}
	cancel := m.CancelTimer()
	if cancel == nil {
		return nil
	}
	m.pendingMake = &protocol.Command{
		Action:     protocol.ActionCreateTimer,
		EntityID:   m.cfg.Entity,
		Duration:   duration,
		ActionType: "turn_off",
		UserID:     m.cfg.UserID,
	}
	return tea.Batch(cancel, tea.Tick(cancelAllSpacing, func(time.Time) tea.Msg {
		return sendPendingMsg{}
	}))
}

func (m *Model) onSendPending() tea.Cmd {
	if m.pendingMake == nil {
		return nil
	}
	cmd := *m.pendingMake
	m.pendingMake = nil
	if m.send(cmd) != nil {
		return nil
	}
	if total, err := protocol.ParseDuration(cmd.Duration); err == nil {
		m.timer = &TimerState{
			EntityID:         cmd.EntityID,
			Duration:         cmd.Duration,
			RemainingSeconds: total,
			TotalSeconds:     total,
		}
		m.restoring = true
	}
	m.status = StatusBar{Text: "timer updated"}
	return deferredSyncCmd(commandRefreshDelay, false)
}

// CreateSchedule sends create_schedule for the bound entity.
func (m *Model) CreateSchedule(repeat protocol.RepeatType, at string, weekdays []string, monthDays []int) tea.Cmd {
	if m.cfg.Entity == "" {
		m.status = StatusBar{Text: "select a device first", IsError: true}
		return nil
	}
	err := m.send(protocol.Command{
		Action:       protocol.ActionCreateSchedule,
		EntityID:     m.cfg.Entity,
		RepeatType:   string(repeat),
		ScheduleTime: at,
		ActionType:   "turn_off",
		UserID:       m.cfg.UserID,
		Weekdays:     weekdays,
		MonthDays:    monthDays,
	})
	if err != nil {
		return nil
	}
	m.status = StatusBar{Text: "schedule created"}
	return deferredSyncCmd(commandRefreshDelay, false)
}

func (m *Model) CancelSchedule(scheduleID string) tea.Cmd {
	err := m.send(protocol.Command{
		Action:     protocol.ActionCancelSchedule,
		ScheduleID: scheduleID,
		UserID:     m.cfg.UserID,
	})
	if err != nil {
		return nil
	}
	m.status = StatusBar{Text: "schedule cancelled"}
	return deferredSyncCmd(commandRefreshDelay, false)
}

// CancelAll queues one cancel per known task and drains the queue with
// half-second spacing so the backend is not flooded.
func (m *Model) CancelAll() tea.Cmd {
	m.pendingQueue = m.pendingQueue[:0]
	seen := map[string]bool{}
	for _, e := range m.tasks {
		if e.IsSchedule {
			m.pendingQueue = append(m.pendingQueue, protocol.Command{
				Action:     protocol.ActionCancelSchedule,
				ScheduleID: e.Schedule.ScheduleID,
				UserID:     m.cfg.UserID,
			})
			continue
		}
		if seen[e.Timer.EntityID] {
			continue
		}
		seen[e.Timer.EntityID] = true
		m.pendingQueue = append(m.pendingQueue, protocol.Command{
			Action:   protocol.ActionCancelEntityTimer,
			EntityID: e.Timer.EntityID,
			UserID:   m.cfg.UserID,
		})
	}
	if len(m.pendingQueue) == 0 {
		m.status = StatusBar{Text: "nothing to cancel"}
		return nil
	}
	return m.drainQueue()
}

func (m *Model) drainQueue() tea.Cmd {
	if len(m.pendingQueue) == 0 {
		return deferredSyncCmd(commandRefreshDelay, false)
	}
	cmd := m.pendingQueue[0]
	m.pendingQueue = m.pendingQueue[1:]
	if err := m.send(cmd); err != nil {
		m.pendingQueue = m.pendingQueue[:0]
		return nil
	}
	if cmd.Action == protocol.ActionCancelEntityTimer && cmd.EntityID == m.cfg.Entity {
		m.clearTimer()
	}
	return tea.Tick(cancelAllSpacing, func(time.Time) tea.Msg { return drainQueueMsg{} })
}

// Picker editing. Hours wrap at 24, minutes and seconds at 60.

func (m *Model) pickerStep(delta int) {
	p := &m.picker
	switch p.Field {
	case FieldHours:
		p.Hours = wrap(p.Hours+delta, 24)
	case FieldMinutes:
		p.Minutes = wrap(p.Minutes+delta, 60)
	case FieldSeconds:
		p.Seconds = wrap(p.Seconds+delta, 60)
	}
}

func wrap(v, mod int) int {
	v %= mod
	if v < 0 {
		v += mod
	}
	return v
}

func (m *Model) pickerNextField() {
	m.picker.Field = (m.picker.Field + 1) % 3
}

// SetQuickDuration loads one of the preset durations into the picker.
func (m *Model) SetQuickDuration(minutes int) {
	m.picker = DurationPicker{
		Hours:   (minutes / 60) % 24,
		Minutes: minutes % 60,
	}
}

// DurationUntil converts an absolute HH:MM time of day into the countdown
// needed to reach it. A time already past today rolls to tomorrow.
func DurationUntil(hour, minute int, now time.Time) string {
	target := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !target.After(now) {
		target = target.Add(24 * time.Hour)
	}
	secs := int(target.Sub(now) / time.Second)
	return protocol.FormatSeconds(secs)
}
