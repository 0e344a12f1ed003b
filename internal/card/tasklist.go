package card

import (
	"math"

	tea "github.com/charmbracelet/bubbletea"
)

// maxVisibleRows is how many task rows fit the configured viewport, never
// fewer than one.
func (m *Model) maxVisibleRows() int {
	rows := m.cfg.NormalHeight / m.cfg.rowHeight()
	if rows < 1 {
		return 1
	}
	return rows
}

// cycleHeight is one full logical scroll cycle in pixels.
func (m *Model) cycleHeight() float64 {
	return float64(m.cfg.rowHeight() * len(m.tasks))
}

// scrollNeeded reports whether the list overflows the viewport and the
// card is in the style that scrolls.
func (m *Model) scrollNeeded() bool {
	return m.cfg.CardStyle == "normal" && len(m.tasks) > m.maxVisibleRows() && len(m.tasks) > 1
}

// adjustScroll starts or stops the scroll loop after a list change. When
// the list fits the viewport the offset resets so a later overflow starts
// from the top.
func (m *Model) adjustScroll() tea.Cmd {
	if !m.scrollNeeded() || !m.visible {
		m.scroll = ScrollState{}
		return nil
	}
	if m.scroll.Active {
		return nil
	}
	m.scroll.Active = true
	return scrollTickCmd()
}

// onScrollTick advances the offset by a fixed step and wraps it modulo one
// full cycle. Modulo wrapping, not clamping, is what makes the loop
// seamless: offset cycle+x renders identically to offset x.
func (m *Model) onScrollTick() tea.Cmd {
	if !m.scroll.Active {
		return nil
	}
	if !m.scrollNeeded() || !m.visible {
		m.scroll = ScrollState{}
		return nil
	}
	cycle := m.cycleHeight()
	if cycle <= 0 {
		m.scroll = ScrollState{}
		return nil
	}
	m.scroll.Offset = math.Mod(m.scroll.Offset+scrollStep, cycle)
	return scrollTickCmd()
}

// VisibleWindow resolves the scroll offset into the rows currently shown,
// walking the repeated row set from the first partially visible row.
func (m *Model) VisibleWindow() []TaskEntry {
	if len(m.tasks) == 0 {
		return nil
	}
	max := m.maxVisibleRows()
	if len(m.tasks) <= max || !m.scroll.Active {
		if len(m.tasks) < max {
			max = len(m.tasks)
		}
		return m.tasks[:max]
	}
	first := int(m.scroll.Offset) / m.cfg.rowHeight()
	out := make([]TaskEntry, 0, max+1)
	for i := 0; i <= max; i++ {
		out = append(out, m.tasks[(first+i)%len(m.tasks)])
	}
	return out
}
