package vm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Runtime Error Types
// ---------------------------------------------------------------------------

// ErrModuleNotLoaded is returned by Run when no module has been loaded.
var ErrModuleNotLoaded = errors.New("no module loaded")

// InvalidConstantError indicates a constant-pool access with a bad index or
// an unexpected constant kind.
type InvalidConstantError struct {
	Index uint16
}

func (e *InvalidConstantError) Error() string {
	return fmt.Sprintf("invalid constant index %d", e.Index)
}

// UndefinedFunctionError indicates a call to a function the module does not
// define. Callee holds the name or index rendering used for resolution.
type UndefinedFunctionError struct {
	Callee string
}

func (e *UndefinedFunctionError) Error() string {
	return fmt.Sprintf("undefined function %s", e.Callee)
}

// TypeMismatchError indicates an operand of the wrong type.
type TypeMismatchError struct {
	Expected string
	Found    string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, found %s", e.Expected, e.Found)
}

// InvalidOperationError indicates an operation that is defined for the
// operand types but invalid for the operand values.
type InvalidOperationError struct {
	Op     string
	Detail string
}

func (e *InvalidOperationError) Error() string {
	return fmt.Sprintf("invalid operation %s: %s", e.Op, e.Detail)
}

// IndexOutOfBoundsError indicates an array access outside [0, Length).
type IndexOutOfBoundsError struct {
	Index  int
	Length int
}

func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("index %d out of bounds for length %d", e.Index, e.Length)
}

// AssertionError carries the message of a failed AssertR.
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s", e.Message)
}

// DivisionByZeroError indicates integer or float division or modulo by zero.
type DivisionByZeroError struct {
	Op string // "divide" or "modulo"
}

func (e *DivisionByZeroError) Error() string {
	return e.Op + " by zero"
}

// ---------------------------------------------------------------------------
// Stack traces
// ---------------------------------------------------------------------------

// StackFrame is one entry in a diagnostic stack trace.
type StackFrame struct {
	Function string
	PC       int
}

func (f StackFrame) String() string {
	return fmt.Sprintf("%s at pc %d", f.Function, f.PC)
}
