package card

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// onCountdownTick advances the visible countdown once per second without a
// network round trip. It also carries two drift guards: an out-of-band
// refresh when a running timer has not been confirmed for 30s, and a paced
// refresh when no timer is bound but one may have been created elsewhere.
func (m *Model) onCountdownTick() tea.Cmd {
	var cmds []tea.Cmd
	now := m.now()

	if m.timer != nil && m.timer.RemainingSeconds > 0 {
		m.timer.RemainingSeconds--
		if m.timer.RemainingSeconds == 0 {
			// Natural expiry. Give the backend a moment to process it
			// before asking for the authoritative state.
			m.clearTimer()
			cmds = append(cmds, deferredSyncCmd(expiryRefreshDelay, false))
		} else if staleFor(now, m.sync.LastSyncSuccess) > activeResyncAfter && m.ready() {
			m.refreshOnce()
		}
	} else if m.timer == nil && m.visible && m.ready() {
		if m.sync.LastSyncAttempt.IsZero() || now.Sub(m.sync.LastSyncAttempt) > staleAttemptAfter {
			m.refreshOnce()
		}
	}

	cmds = append(cmds, countdownTickCmd())
	return tea.Batch(cmds...)
}

// onScheduleTick re-derives every schedule countdown from its next
// execution time. Stored countdowns only go stale; derived ones cannot.
func (m *Model) onScheduleTick() tea.Cmd {
	now := m.now()
	for i := range m.schedules {
		m.schedules[i].CountdownSeconds = untilSeconds(m.schedules[i].NextExecution, now)
	}
	for i := range m.tasks {
		if m.tasks[i].IsSchedule {
			m.tasks[i].Schedule.CountdownSeconds = untilSeconds(m.tasks[i].Schedule.NextExecution, now)
		}
	}
	return scheduleTickCmd()
}

func untilSeconds(next *time.Time, now time.Time) int {
	if next == nil {
		return 0
	}
	d := next.Sub(now)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
