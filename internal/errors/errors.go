// Package errors implements the engine's error-handling design (spec
// §7): a Violation type for programmer precondition violations, raised
// via panic and recovered only at the CLI boundary, plus a small
// leveled Logger for front-end mismatches that are recovered locally
// instead of propagated. Abstract-interpretation signals (bottom
// states, contradictory constraints) are not modeled here at all —
// spec §7 class 2 are ordinary values, observed via IsBottom(), never
// errors.
package errors

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Kind enumerates the precondition violations spec §7.1 class 1 names.
type Kind string

const (
	DivisionByZero           Kind = "division_by_zero"
	BitWidthMismatch         Kind = "bit_width_mismatch"
	UndefinedBoundArithmetic Kind = "undefined_bound_arithmetic"
	InvalidSExprType         Kind = "invalid_sexpr_type"
	ShiftOutOfRange          Kind = "shift_out_of_range"
)

// Violation is a programmer precondition violation: a bug in the
// caller, not a recoverable condition. The only correct response is an
// unrecoverable assertion in development builds (spec §7.1); library
// code never recovers one itself; only the CLI's top-level Recover
// does, so a human sees a stack trace instead of a bare panic message.
type Violation struct {
	Kind    Kind
	Package string
	Message string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %s: %s", v.Package, v.Kind, v.Message)
}

// Raise panics with a Violation. pkg names the raising package
// (bigint, machint, interval, symbol, ...) without requiring those
// packages to depend on anything beyond this one function call.
func Raise(pkg string, kind Kind, format string, args ...any) {
	panic(&Violation{Kind: kind, Package: pkg, Message: fmt.Sprintf(format, args...)})
}

// Recover turns a recovered panic into a stack-trace-carrying error.
// It is the one place a Violation crosses back into a normal error
// return, matching spec §7's "the engine never throws across its
// public interface" at the one boundary that must present a panic to
// a human: `defer func() { err = errors.Recover(recover()) }()` in
// cmd/knightc's main.
func Recover(r any) error {
	if r == nil {
		return nil
	}
	if v, ok := r.(*Violation); ok {
		return errors.WithStack(v)
	}
	return errors.Errorf("panic: %v", r)
}

// Level is a Logger message's severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	default:
		return "?"
	}
}

// Logger reports spec §7.1 class 3 front-end mismatches: an unknown
// AST node kind, an unsupported type, a missing region. These are
// recovered locally by the caller (conjuring a symbol, forcing a
// domain to top) and only logged here at debug level — the analysis
// itself must continue. A nil *Logger discards everything, so callers
// that don't care about mismatch diagnostics can pass one without a
// nil check at every call site.
type Logger struct {
	out      io.Writer
	minLevel Level
}

// NewLogger builds a Logger that writes messages at or above minLevel
// to out.
func NewLogger(out io.Writer, minLevel Level) *Logger {
	return &Logger{out: out, minLevel: minLevel}
}

// Mismatch logs a front-end mismatch at debug level. cause, if
// non-nil, is wrapped with a stack trace so a --verbose run can show
// where the front-end's shape diverged from what the engine expected.
func (l *Logger) Mismatch(component, msg string, cause error) {
	l.log(LevelDebug, component, msg, cause)
}

func (l *Logger) log(level Level, component, msg string, cause error) {
	if l == nil || level < l.minLevel {
		return
	}
	if cause != nil {
		cause = errors.WithStack(cause)
		fmt.Fprintf(l.out, "[%s] %s: %s: %+v\n", level, component, msg, cause)
		return
	}
	fmt.Fprintf(l.out, "[%s] %s: %s\n", level, component, msg)
}
