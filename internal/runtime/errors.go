package runtime

import (
	"fmt"

	"github.com/stplatform/st-platform/internal/lexer"
)

// ErrorCode names the RuntimeError taxonomy of spec.md §7: a closed set
// of tagged faults the evaluator can raise, as opposed to Go's usual
// open-ended error values — the scheduler's fault policy switches on
// this code.
type ErrorCode int

const (
	ErrTypeMismatch ErrorCode = iota
	ErrUndefinedVariable
	ErrUndefinedProgram
	ErrUndefinedFunctionBlock
	ErrDivisionByZero
	ErrOutOfRange
	ErrAssertionFailed
	ErrExecutionTimeout
	ErrControlError
)

func (c ErrorCode) String() string {
	switch c {
	case ErrTypeMismatch:
		return "TypeMismatch"
	case ErrUndefinedVariable:
		return "UndefinedVariable"
	case ErrUndefinedProgram:
		return "UndefinedProgram"
	case ErrUndefinedFunctionBlock:
		return "UndefinedFunctionBlock"
	case ErrDivisionByZero:
		return "DivisionByZero"
	case ErrOutOfRange:
		return "OutOfRange"
	case ErrAssertionFailed:
		return "AssertionFailed"
	case ErrExecutionTimeout:
		return "ExecutionTimeout"
	case ErrControlError:
		return "ControlError"
	default:
		return "Unknown"
	}
}

// Error is the tagged RuntimeError value the evaluator returns up
// through the call stack; the scheduler turns it into a runtime event
// and applies the configured fault policy (spec §7).
type Error struct {
	Code    ErrorCode
	Message string
	Loc     lexer.Range
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code.String()
}

func NewError(code ErrorCode, loc lexer.Range, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Loc: loc}
}

// controlSignal is the non-error sum type used by the evaluator for
// EXIT/CONTINUE/RETURN non-local exits (spec §9: "exceptions for control
// flow are not used; all non-local exits are explicit sum-typed
// results"). It is carried as a distinguished Go error so statement
// execution can propagate it through normal error returns without a
// panic/recover pair. The FOR/WHILE/REPEAT loops absorb EXIT and
// CONTINUE, and callFunction/callInstance absorb RETURN.
type controlSignal int

const (
	signalExit controlSignal = iota
	signalContinue
	signalReturn
)

func (s controlSignal) Error() string {
	switch s {
	case signalExit:
		return "EXIT"
	case signalContinue:
		return "CONTINUE"
	case signalReturn:
		return "RETURN"
	default:
		return "signal"
	}
}
