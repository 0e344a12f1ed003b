package card

import (
	tea "github.com/charmbracelet/bubbletea"

	"timercard/internal/protocol"
	"timercard/internal/views"
)

// Init starts the four background loops and the inbound event wait. All of
// the widget's work happens as messages from here on.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.waitEvent(),
		m.watchVisibility(),
		func() tea.Msg { return visibilityMsg{visible: m.gate.Visible()} },
		func() tea.Msg { return connectTickMsg{} },
		countdownTickCmd(),
		pollTickCmd(),
		resyncTickCmd(),
		scheduleTickCmd(),
		m.spin.Tick,
	)
}

// waitEvent blocks on the bus until the next inbound response.
func (m *Model) waitEvent() tea.Cmd {
	if m.bus == nil {
		return nil
	}
	ch := m.bus.Events()
	return func() tea.Msg {
		resp, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{resp: resp}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		return m, tea.Batch(m.handleResponse(msg.resp), m.waitEvent())
	case eventsClosedMsg:
		m.sync.BackendConnected = false
		m.sync.LastSyncFailed = true
		m.debugInfo = "event stream closed"
		return m, nil

	case countdownTickMsg:
		return m, m.onCountdownTick()
	case pollTickMsg:
		return m, m.onPollTick()
	case resyncTickMsg:
		return m, m.onResyncTick()
	case scheduleTickMsg:
		return m, m.onScheduleTick()
	case scrollTickMsg:
		return m, m.onScrollTick()
	case connectTickMsg:
		return m, m.onConnectTick()

	case responseExpired:
		return m, m.onResponseTimeout(msg)
	case retryDelayElapsed:
		return m, m.onRetryDelay(msg)
	case deferredSyncMsg:
		return m, m.onDeferredSync(msg)
	case drainQueueMsg:
		return m, m.drainQueue()
	case sendPendingMsg:
		return m, m.onSendPending()
	case visibilityMsg:
		return m, m.onVisibility(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.palette.Active {
		return m.handlePaletteKey(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit
	case "?":
		m.helpVisible = !m.helpVisible
		return m, nil
	case "/":
		m.palette.Active = true
		m.palette.Input.SetValue("")
		return m, m.palette.Input.Focus()

	case "enter", " ":
		if m.timer != nil {
			return m, m.ModifyTimer(m.picker.Duration())
		}
		return m, m.StartTimer(m.picker.Duration())
	case "c":
		return m, m.CancelTimer()
	case "C":
		return m, m.CancelAll()

	case "tab":
		m.pickerNextField()
		return m, nil
	case "up", "k":
		m.pickerStep(1)
		return m, nil
	case "down", "j":
		m.pickerStep(-1)
		return m, nil
	case "shift+up":
		m.pickerStep(5)
		return m, nil
	case "shift+down":
		m.pickerStep(-5)
		return m, nil

	case "1":
		m.SetQuickDuration(15)
		return m, nil
	case "2":
		m.SetQuickDuration(30)
		return m, nil
	case "3":
		m.SetQuickDuration(60)
		return m, nil
	case "4":
		m.SetQuickDuration(120)
		return m, nil

	case "r":
		return m, m.syncWithRetry()
	}
	return m, nil
}

func (m Model) handlePaletteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.palette.Active = false
		m.palette.Input.Blur()
		return m, nil
	case "enter":
		line := m.palette.Input.Value()
		m.palette.Active = false
		m.palette.Input.Blur()
		return m, m.runPalette(line)
	}
	var cmd tea.Cmd
	m.palette.Input, cmd = m.palette.Input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	data := views.CardData{
		Style:     m.cfg.CardStyle,
		Entity:    m.cfg.Entity,
		Connected: m.sync.Connected(m.now()),
		SyncBad:   m.sync.LastSyncFailed,
		Status:    m.status.Text,
		StatusErr: m.status.IsError,
		Debug:     m.debugInfo,
		Spinner:   m.spin.View(),
		Waiting:   m.sync.Phase == PhaseWaiting || m.sync.Phase == PhaseRequesting,
		Picker: views.PickerData{
			Hours:   m.picker.Hours,
			Minutes: m.picker.Minutes,
			Seconds: m.picker.Seconds,
			Field:   int(m.picker.Field),
		},
		Help:    m.helpVisible,
		Palette: "",
	}
	if m.palette.Active {
		data.Palette = m.palette.Input.View()
	}
	if m.timer != nil {
		data.Timer = &views.TimerData{
			Remaining:   protocol.FormatSeconds(m.timer.RemainingSeconds),
			Progress:    m.bar.ViewAs(m.timer.ProgressPercent() / 100),
			Percent:     m.timer.ProgressPercent(),
			Unconfirmed: m.restoring,
		}
	}
	for _, e := range m.VisibleWindow() {
		row := views.TaskRow{
			Entity:     e.EntityID(),
			IsSchedule: e.IsSchedule,
			Countdown:  protocol.FormatSeconds(e.CountdownSeconds(m.now())),
		}
		if e.IsSchedule {
			row.Detail = e.Schedule.Summary
		} else {
			row.Detail = e.Timer.Duration
		}
		data.Tasks = append(data.Tasks, row)
	}
	data.TaskCount = m.taskCount

	return views.RenderCard(data)
}
