package views

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// CardData is everything the renderer needs for one frame. The card model
// fills it in; nothing in here reaches back into mutable state.
type CardData struct {
	Style     string
	Entity    string
	Connected bool
	SyncBad   bool
	Waiting   bool
	Spinner   string
	Status    string
	StatusErr bool
	Debug     string
	Timer     *TimerData
	Picker    PickerData
	Tasks     []TaskRow
	TaskCount int
	Palette   string
	Help      bool
}

type TimerData struct {
	Remaining string
	Progress  string
	Percent   float64
	// Unconfirmed means the timer was started locally and the next snapshot
	// has not echoed it back yet.
	Unconfirmed bool
}

type PickerData struct {
	Hours   int
	Minutes int
	Seconds int
	Field   int
}

type TaskRow struct {
	Entity     string
	IsSchedule bool
	Countdown  string
	Detail     string
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	timeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	activeStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// RenderCard assembles one frame: header with the connection dot, the big
// time box or the scrolling list depending on style, the picker, and the
// status line.
func RenderCard(data CardData) string {
	lines := []string{renderHeader(data)}

	if data.Style == "normal" {
		lines = append(lines, RenderTaskList(data))
	} else {
		lines = append(lines, renderTimeBox(data))
	}
	lines = append(lines, RenderPicker(data.Picker))

	if data.Status != "" {
		if data.StatusErr {
			lines = append(lines, errorStyle.Render(data.Status))
		} else {
			lines = append(lines, okStyle.Render(data.Status))
		}
	}
	if data.Debug != "" {
		lines = append(lines, dimStyle.Render(data.Debug))
	}
	if data.Palette != "" {
		lines = append(lines, data.Palette)
	}
	if data.Help {
		lines = append(lines, RenderMarkdown(helpText))
	}
	return strings.Join(lines, "\n")
}

func renderHeader(data CardData) string {
	dot := errorStyle.Render("●")
	if data.Connected {
		dot = okStyle.Render("●")
	}
	head := dot + " " + titleStyle.Render(data.Entity)
	if data.SyncBad {
		head += " " + errorStyle.Render("sync failed")
	}
	if data.Waiting && data.Spinner != "" {
		head += " " + data.Spinner
	}
	return head
}

func renderTimeBox(data CardData) string {
	if data.Timer == nil {
		return panelStyle.Render(dimStyle.Render("no timer"))
	}
	remaining := timeStyle.Render(data.Timer.Remaining)
	if data.Timer.Unconfirmed {
		remaining = dimStyle.Render(data.Timer.Remaining)
	}
	body := remaining + "\n" + data.Timer.Progress
	return panelStyle.Render(body)
}

const helpText = `## keys

| key | action |
|---|---|
| enter/space | start or modify timer |
| c / C | cancel timer / cancel everything |
| tab, up/down | edit duration |
| 1-4 | quick durations |
| / | command palette |
| r | force resync |
| q | quit |

Palette commands: start, at, cancel, cancelall, schedule, unschedule, sync.`

func RenderMarkdown(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	out, err := glamour.Render(md, "dark")
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}
