package card

import (
	tea "github.com/charmbracelet/bubbletea"
)

// VisibilityGate abstracts whatever the host platform uses to tell whether
// the card is scrolled into view. Background polling and the scroll
// animation only run while visible.
type VisibilityGate interface {
	Visible() bool
	// Changes delivers visibility flips. A nil channel means the gate
	// never changes.
	Changes() <-chan bool
}

// AlwaysVisible is the gate used when the host provides none.
type AlwaysVisible struct{}

func (AlwaysVisible) Visible() bool        { return true }
func (AlwaysVisible) Changes() <-chan bool { return nil }

// watchVisibility blocks on the gate's change channel and turns each flip
// into a message.
func (m *Model) watchVisibility() tea.Cmd {
	ch := m.gate.Changes()
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return visibilityMsg{visible: v}
	}
}

// onVisibility applies a flip. Becoming visible forces a prompt resync
// rather than trusting local ticking across the hidden period; becoming
// hidden stops the scroll animation, while the countdown keeps running so
// the bound timer does not desync.
func (m *Model) onVisibility(msg visibilityMsg) tea.Cmd {
	was := m.visible
	m.visible = msg.visible

	cmds := []tea.Cmd{m.watchVisibility()}
	if m.visible && !was {
		cmds = append(cmds, deferredSyncCmd(visibleSyncDelay, true))
		cmds = append(cmds, m.adjustScroll())
	}
	if !m.visible {
		m.scroll = ScrollState{}
	}
	return tea.Batch(cmds...)
}
