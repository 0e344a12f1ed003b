package commands

import (
	"fmt"
	"strconv"
	"strings"

	"timercard/internal/protocol"
)

type Type string

const (
	TypeStart      Type = "start"
	TypeAt         Type = "at"
	TypeCancel     Type = "cancel"
	TypeCancelAll  Type = "cancelall"
	TypeSchedule   Type = "schedule"
	TypeUnschedule Type = "unschedule"
	TypeSync       Type = "sync"
)

type ErrorCode string

const (
	ErrCodeEmptyInput      ErrorCode = "empty_input"
	ErrCodeUnknownCommand  ErrorCode = "unknown_command"
	ErrCodeInvalidArgument ErrorCode = "invalid_argument"
	ErrCodeHandlerMissing  ErrorCode = "handler_missing"
)

type CommandError struct {
	Code    ErrorCode
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type StartArgs struct {
	Duration string
}

type AtArgs struct {
	Hour   int
	Minute int
}

type ScheduleArgs struct {
	Repeat    protocol.RepeatType
	At        string
	Weekdays  []string
	MonthDays []int
}

type UnscheduleArgs struct {
	ScheduleID string
}

type Command struct {
	Type       Type
	Raw        string
	Start      *StartArgs
	At         *AtArgs
	Schedule   *ScheduleArgs
	Unschedule *UnscheduleArgs
}

func Parse(input string) (Command, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}
	if strings.HasPrefix(raw, "/") {
		raw = strings.TrimSpace(strings.TrimPrefix(raw, "/"))
	}
	if raw == "" {
		return Command{}, &CommandError{Code: ErrCodeEmptyInput, Message: "command is empty"}
	}

	parts := strings.Fields(raw)
	head := strings.ToLower(parts[0])
	args := parts[1:]

	switch Type(head) {
	case TypeStart:
		return parseStart(input, args)
	case TypeAt:
		return parseAt(input, args)
	case TypeCancel:
		return Command{Type: TypeCancel, Raw: input}, nil
	case TypeCancelAll:
		return Command{Type: TypeCancelAll, Raw: input}, nil
	case TypeSchedule:
		return parseSchedule(input, args)
	case TypeUnschedule:
		return parseUnschedule(input, args)
	case TypeSync:
		return Command{Type: TypeSync, Raw: input}, nil
	default:
		return Command{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unsupported command: %s", head)}
	}
}

func parseStart(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "start requires a duration like 00:15:00"}
	}
	d := args[0]
	if _, err := protocol.ParseDuration(d); err != nil {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("bad duration %q", d)}
	}
	return Command{Type: TypeStart, Raw: raw, Start: &StartArgs{Duration: d}}, nil
}

func parseAt(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "at requires a time like 22:30"}
	}
	pieces := strings.Split(args[0], ":")
	if len(pieces) != 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("bad time %q", args[0])}
	}
	h, errH := strconv.Atoi(pieces[0])
	m, errM := strconv.Atoi(pieces[1])
	if errH != nil || errM != nil || h < 0 || h > 23 || m < 0 || m > 59 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("bad time %q", args[0])}
	}
	return Command{Type: TypeAt, Raw: raw, At: &AtArgs{Hour: h, Minute: m}}, nil
}

// parseSchedule accepts:
//
//	schedule daily 07:30:00
//	schedule weekly mon,fri 07:30:00
//	schedule monthly 1,15 07:30:00
func parseSchedule(raw string, args []string) (Command, error) {
	if len(args) < 2 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "schedule requires a repeat type and a time"}
	}
	repeat := protocol.RepeatType(strings.ToLower(args[0]))
	if !repeat.IsValid() {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("unknown repeat type %q", args[0])}
	}

	sa := &ScheduleArgs{Repeat: repeat}
	rest := args[1:]

	switch repeat {
	case protocol.RepeatWeekly:
		if len(rest) < 2 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "weekly schedule requires weekdays and a time"}
		}
		for _, d := range strings.Split(rest[0], ",") {
			wd, err := protocol.ParseWeekday(d)
			if err != nil {
				return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("bad weekday %q", d)}
			}
			sa.Weekdays = append(sa.Weekdays, strings.ToLower(wd.String()))
		}
		rest = rest[1:]
	case protocol.RepeatMonthly:
		if len(rest) < 2 {
			return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "monthly schedule requires month days and a time"}
		}
		for _, d := range strings.Split(rest[0], ",") {
			n, err := strconv.Atoi(d)
			if err != nil || n < 1 || n > 31 {
				return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("bad month day %q", d)}
			}
			sa.MonthDays = append(sa.MonthDays, n)
		}
		rest = rest[1:]
	}

	at := rest[0]
	if _, err := protocol.ParseDuration(at); err != nil {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: fmt.Sprintf("bad time %q", at)}
	}
	sa.At = at
	return Command{Type: TypeSchedule, Raw: raw, Schedule: sa}, nil
}

func parseUnschedule(raw string, args []string) (Command, error) {
	if len(args) == 0 {
		return Command{}, &CommandError{Code: ErrCodeInvalidArgument, Message: "unschedule requires a schedule id"}
	}
	return Command{Type: TypeUnschedule, Raw: raw, Unschedule: &UnscheduleArgs{ScheduleID: args[0]}}, nil
}
