package card

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"timercard/internal/protocol"
)

// requestSnapshot fires one "get all timers" command. Success is only ever
// confirmed by a later inbound response.
func (m *Model) requestSnapshot() error {
	if m.bus == nil {
		return fmt.Errorf("card: no bus attached")
	}
	m.sync.LastSyncAttempt = m.now()
	return m.bus.Send(protocol.Command{
		Action: protocol.ActionGetAllTimers,
		UserID: m.cfg.UserID,
	})
}

// refreshOnce is the plain best-effort refresh used by the background
// loops. Failures are recorded and left to the retry engine.
func (m *Model) refreshOnce() {
	if err := m.requestSnapshot(); err != nil {
		m.sync.LastSyncFailed = true
		m.debugInfo = fmt.Sprintf("refresh failed: %v", err)
	}
}

// syncWithRetry resets the retry counter and enters the fast refresh path.
// When the transport is not ready yet it re-checks every second.
func (m *Model) syncWithRetry() tea.Cmd {
	if !m.ready() {
		return tea.Tick(connectRetryDelay, func(time.Time) tea.Msg {
			return deferredSyncMsg{full: true}
		})
	}
	m.sync.RetryCount = 0
	return m.performRefresh()
}

// performRefresh is one step of the Requesting → WaitingResponse machine.
// Send failures back off exponentially; a sent request arms the response
// timeout. After maxRetries consecutive attempts the fast path gives up and
// leaves recovery to the 15s/30s loops.
func (m *Model) performRefresh() tea.Cmd {
	if m.sync.RetryCount >= maxRetries {
		m.sync.Phase = PhaseGivenUp
		m.sync.BackendConnected = false
		m.sync.LastSyncFailed = true
		m.debugInfo = "backend unresponsive, check the timer daemon"
		return nil
	}
	m.sync.RetryCount++
	m.sync.Phase = PhaseRequesting

	if err := m.requestSnapshot(); err != nil {
		m.sync.LastSyncFailed = true
		m.debugInfo = fmt.Sprintf("refresh failed: %v", err)
		m.sync.Phase = PhaseRetrying
		seq := m.bumpSeq()
		delay := backoffDelay(m.sync.RetryCount)
		return tea.Tick(delay, func(time.Time) tea.Msg {
			return retryDelayElapsed{seq: seq}
		})
	}

	m.sync.Phase = PhaseWaiting
	seq := m.bumpSeq()
	return tea.Tick(responseTimeout, func(time.Time) tea.Msg {
		return responseExpired{seq: seq}
	})
}

// backoffDelay computes min(1000 * 2^n, 10000) milliseconds for the n-th
// consecutive send failure.
func backoffDelay(retryCount int) time.Duration {
	d := time.Second << retryCount
	if d > backoffCap {
		return backoffCap
	}
	return d
}

func (m *Model) onResponseTimeout(msg responseExpired) tea.Cmd {
	if msg.seq != m.timeoutSeq {
		return nil
	}
	if m.timer == nil && m.visible {
		m.sync.Phase = PhaseRetrying
		return m.performRefresh()
	}
	m.sync.Phase = PhaseIdle
	return nil
}

func (m *Model) onRetryDelay(msg retryDelayElapsed) tea.Cmd {
	if msg.seq != m.timeoutSeq {
		return nil
	}
	return m.performRefresh()
}

// onPollTick runs every 15 seconds for the whole lifetime of the card: a
// visibility-gated plain refresh, plus the staleness override that forces a
// full retry cycle when nothing succeeded for a minute.
func (m *Model) onPollTick() tea.Cmd {
	var cmds []tea.Cmd
	if m.visible && m.ready() {
		m.refreshOnce()
	}
	if staleFor(m.now(), m.sync.LastSyncSuccess) > forceResyncAfter {
		cmds = append(cmds, m.syncWithRetry())
	}
	cmds = append(cmds, pollTickCmd())
	return tea.Batch(cmds...)
}

// onResyncTick is the independent 30-second steady-state refresh that
// catches silent drift the push events missed.
func (m *Model) onResyncTick() tea.Cmd {
	if m.visible && m.ready() {
		m.refreshOnce()
	}
	return resyncTickCmd()
}

// onConnectTick polls for transport readiness after attach and sends the
// initial snapshot as soon as the link is up. A send failure retries on the
// slower cadence.
func (m *Model) onConnectTick() tea.Cmd {
	if !m.ready() {
		m.debugInfo = "waiting for connection"
		m.sync.LastSyncFailed = true
		return tea.Tick(connectRetryDelay, func(time.Time) tea.Msg { return connectTickMsg{} })
	}
	if err := m.requestSnapshot(); err != nil {
		m.sync.LastSyncFailed = true
		m.debugInfo = fmt.Sprintf("initial sync failed: %v", err)
		return tea.Tick(connectFailDelay, func(time.Time) tea.Msg { return connectTickMsg{} })
	}
	return nil
}

func (m *Model) onDeferredSync(msg deferredSyncMsg) tea.Cmd {
	if msg.full {
		return m.syncWithRetry()
	}
	m.refreshOnce()
	return nil
}

// staleFor treats a zero timestamp as infinitely stale.
func staleFor(now, last time.Time) time.Duration {
	if last.IsZero() {
		return forceResyncAfter + time.Hour
	}
	return now.Sub(last)
}

func deferredSyncCmd(after time.Duration, full bool) tea.Cmd {
	return tea.Tick(after, func(time.Time) tea.Msg { return deferredSyncMsg{full: full} })
}

func pollTickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(time.Time) tea.Msg { return pollTickMsg{} })
}

func resyncTickCmd() tea.Cmd {
	return tea.Tick(resyncInterval, func(time.Time) tea.Msg { return resyncTickMsg{} })
}

func countdownTickCmd() tea.Cmd {
	return tea.Tick(countdownInterval, func(time.Time) tea.Msg { return countdownTickMsg{} })
}

func scheduleTickCmd() tea.Cmd {
	return tea.Tick(scheduleRefresh, func(time.Time) tea.Msg { return scheduleTickMsg{} })
}

func scrollTickCmd() tea.Cmd {
	return tea.Tick(scrollInterval, func(time.Time) tea.Msg { return scrollTickMsg{} })
}
