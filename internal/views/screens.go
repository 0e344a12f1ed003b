package views

import (
	"fmt"
	"strings"
)

// RenderTaskList draws the multi-item view: every active timer and schedule
// with its live countdown. The model has already resolved the scroll offset
// into the visible window, so this stays a dumb row printer.
func RenderTaskList(data CardData) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("active tasks: %d\n", data.TaskCount))
	if len(data.Tasks) == 0 {
		b.WriteString(dimStyle.Render("nothing running"))
		return panelStyle.Render(strings.TrimSpace(b.String()))
	}
	for _, row := range data.Tasks {
		b.WriteString(renderTaskRow(row) + "\n")
	}
	return panelStyle.Render(strings.TrimSpace(b.String()))
}

func renderTaskRow(row TaskRow) string {
	kind := "timer"
	if row.IsSchedule {
		kind = "sched"
	}
	line := fmt.Sprintf("%-5s %-24s %s", kind, row.Entity, timeStyle.Render(row.Countdown))
	if row.Detail != "" {
		line += " " + dimStyle.Render(row.Detail)
	}
	return line
}

// RenderPicker draws the flip-clock duration selector with the active
// column highlighted.
func RenderPicker(p PickerData) string {
	cols := []string{
		fmt.Sprintf("%02d", p.Hours),
		fmt.Sprintf("%02d", p.Minutes),
		fmt.Sprintf("%02d", p.Seconds),
	}
	if p.Field >= 0 && p.Field < len(cols) {
		cols[p.Field] = activeStyle.Render(cols[p.Field])
	}
	return "set: " + strings.Join(cols, ":")
}
