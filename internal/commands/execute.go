package commands

import "fmt"

type Result struct {
	Message string
}

type Handlers struct {
	Start      func(StartArgs) (Result, error)
	At         func(AtArgs) (Result, error)
	Cancel     func() (Result, error)
	CancelAll  func() (Result, error)
	Schedule   func(ScheduleArgs) (Result, error)
	Unschedule func(UnscheduleArgs) (Result, error)
	Sync       func() (Result, error)
}

func Execute(cmd Command, handlers Handlers) (Result, error) {
	switch cmd.Type {
	case TypeStart:
		if handlers.Start == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "start handler not configured"}
		}
		return handlers.Start(*cmd.Start)
	case TypeAt:
		if handlers.At == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "at handler not configured"}
		}
		return handlers.At(*cmd.At)
	case TypeCancel:
		if handlers.Cancel == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "cancel handler not configured"}
		}
		return handlers.Cancel()
	case TypeCancelAll:
		if handlers.CancelAll == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "cancelall handler not configured"}
		}
		return handlers.CancelAll()
	case TypeSchedule:
		if handlers.Schedule == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "schedule handler not configured"}
		}
		return handlers.Schedule(*cmd.Schedule)
	case TypeUnschedule:
		if handlers.Unschedule == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "unschedule handler not configured"}
		}
		return handlers.Unschedule(*cmd.Unschedule)
	case TypeSync:
		if handlers.Sync == nil {
			return Result{}, &CommandError{Code: ErrCodeHandlerMissing, Message: "sync handler not configured"}
		}
		return handlers.Sync()
	default:
		return Result{}, &CommandError{Code: ErrCodeUnknownCommand, Message: fmt.Sprintf("unknown command type: %s", cmd.Type)}
	}
}
