package commands

import (
	"errors"
	"testing"

	"timercard/internal/protocol"
)

func TestParseSupportedCommands(t *testing.T) {
	cases := []struct {
		in       string
		typeWant Type
	}{
		{"/start 00:15:00", TypeStart},
		{"at 22:30", TypeAt},
		{"cancel", TypeCancel},
		{"/cancelall", TypeCancelAll},
		{"schedule daily 07:30:00", TypeSchedule},
		{"unschedule abc-123", TypeUnschedule},
		{"/sync", TypeSync},
	}

	for _, tc := range cases {
		cmd, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("parse %q failed: %v", tc.in, err)
		}
		if cmd.Type != tc.typeWant {
			t.Fatalf("parse %q type = %s, want %s", tc.in, cmd.Type, tc.typeWant)
		}
	}
}

func TestParseUnknownCommand(t *testing.T) {
	_, err := Parse("/unknown do x")
	if err == nil {
		t.Fatal("expected error")
	}
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Code != ErrCodeUnknownCommand {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestParseWeeklySchedule(t *testing.T) {
	cmd, err := Parse("/schedule weekly mon,fri 07:30:00")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	sa := cmd.Schedule
	if sa == nil || sa.Repeat != protocol.RepeatWeekly {
		t.Fatalf("unexpected schedule args: %+v", sa)
	}
	if len(sa.Weekdays) != 2 || sa.Weekdays[0] != "monday" || sa.Weekdays[1] != "friday" {
		t.Fatalf("unexpected weekdays: %v", sa.Weekdays)
	}
	if sa.At != "07:30:00" {
		t.Fatalf("unexpected time: %q", sa.At)
	}
}

func TestParseMonthlySchedule(t *testing.T) {
	cmd, err := Parse("schedule monthly 1,15 06:00:00")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	sa := cmd.Schedule
	if len(sa.MonthDays) != 2 || sa.MonthDays[0] != 1 || sa.MonthDays[1] != 15 {
		t.Fatalf("unexpected month days: %v", sa.MonthDays)
	}
}

func TestParseScheduleRejectsBadInput(t *testing.T) {
	cases := []string{
		"schedule weekly 07:30:00",
		"schedule weekly funday 07:30:00",
		"schedule monthly 32 07:30:00",
		"schedule hourly 07:30:00",
		"schedule daily 7:30",
	}
	for _, in := range cases {
		if _, err := Parse(in); err == nil {
			t.Fatalf("parse %q should have failed", in)
		}
	}
}

func TestParseAtRejectsBadTimes(t *testing.T) {
	for _, in := range []string{"at 24:00", "at 9", "at 09:60", "at nine"} {
		if _, err := Parse(in); err == nil {
			t.Fatalf("parse %q should have failed", in)
		}
	}
}

func TestExecuteDispatch(t *testing.T) {
	cmd, err := Parse("/start 00:10:00")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	called := false
	res, err := Execute(cmd, Handlers{
		Start: func(a StartArgs) (Result, error) {
			called = true
			if a.Duration != "00:10:00" {
				t.Fatalf("unexpected duration: %q", a.Duration)
			}
			return Result{Message: "ok"}, nil
		},
	})
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}
	if !called || res.Message != "ok" {
		t.Fatalf("handler not invoked correctly: called=%v res=%+v", called, res)
	}
}

func TestExecuteMissingHandler(t *testing.T) {
	cmd, _ := Parse("cancel")
	_, err := Execute(cmd, Handlers{})
	var ce *CommandError
	if !errors.As(err, &ce) || ce.Code != ErrCodeHandlerMissing {
		t.Fatalf("expected handler missing error, got %v", err)
	}
}
