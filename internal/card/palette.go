package card

import (
	tea "github.com/charmbracelet/bubbletea"

	"timercard/internal/commands"
)

// runPalette parses one palette line and dispatches it against the card.
// Handlers capture the follow-up command; parse and dispatch errors land in
// the status bar.
func (m *Model) runPalette(line string) tea.Cmd {
	cmd, err := commands.Parse(line)
	if err != nil {
		m.status = StatusBar{Text: err.Error(), IsError: true}
		return nil
	}

	var followUp tea.Cmd
	ok := commands.Result{Message: "ok"}

	_, err = commands.Execute(cmd, commands.Handlers{
		Start: func(a commands.StartArgs) (commands.Result, error) {
			followUp = m.StartTimer(a.Duration)
			return ok, nil
		},
		At: func(a commands.AtArgs) (commands.Result, error) {
			followUp = m.StartTimer(DurationUntil(a.Hour, a.Minute, m.now()))
			return ok, nil
		},
		Cancel: func() (commands.Result, error) {
			followUp = m.CancelTimer()
			return ok, nil
		},
		CancelAll: func() (commands.Result, error) {
			followUp = m.CancelAll()
			return ok, nil
		},
		Schedule: func(a commands.ScheduleArgs) (commands.Result, error) {
			followUp = m.CreateSchedule(a.Repeat, a.At, a.Weekdays, a.MonthDays)
			return ok, nil
		},
		Unschedule: func(a commands.UnscheduleArgs) (commands.Result, error) {
			followUp = m.CancelSchedule(a.ScheduleID)
			return ok, nil
		},
		Sync: func() (commands.Result, error) {
			followUp = m.syncWithRetry()
			return ok, nil
		},
	})
	if err != nil {
		m.status = StatusBar{Text: err.Error(), IsError: true}
		return nil
	}
	return followUp
}
