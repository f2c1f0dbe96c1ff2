// Package errors defines the typed compile-time and evaluation-time error
// kinds this module can raise, per the error taxonomy in SPEC_FULL.md §9.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// ErrorKind is a closed enumeration of the fatal error classes raised while
// compiling or evaluating an algorithm.
type ErrorKind string

const (
	ConfigurationError    ErrorKind = "ConfigurationError"
	FreeParameterError    ErrorKind = "FreeParameterError"
	SparsityMismatchError ErrorKind = "SparsityMismatchError"
	IntegerOverflowError  ErrorKind = "IntegerOverflowError"
	SubCallError          ErrorKind = "SubCallError"
	UnknownOpcodeError    ErrorKind = "UnknownOpcodeError"
)

// CompileError is raised during compilation (topological sort, instruction
// emission, register allocation, option validation).
type CompileError struct {
	Kind     ErrorKind
	Function string
	Message  string
	// Names holds offending identifiers for errors that need to list them,
	// e.g. the free symbols that made a function uncompilable, or an
	// unrecognized option key.
	Names []string
	cause error
}

func (e *CompileError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Kind))
	if e.Function != "" {
		fmt.Fprintf(&sb, " in %q", e.Function)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if len(e.Names) > 0 {
		sb.WriteString(": ")
		sb.WriteString(strings.Join(e.Names, ", "))
	}
	return sb.String()
}

func (e *CompileError) Unwrap() error { return e.cause }

// Format implements fmt.Formatter so "%+v" on a CompileError also prints the
// pkg/errors stack of its wrapped cause.
func (e *CompileError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') && e.cause != nil {
			fmt.Fprintf(s, "%s\n%+v", e.Error(), e.cause)
			return
		}
		fmt.Fprint(s, e.Error())
	default:
		fmt.Fprint(s, e.Error())
	}
}

// NewConfigurationError reports an unrecognized option or an invalid option
// value (e.g. a default_in of the wrong length, or a JIT flag set to true).
func NewConfigurationError(function, message string) *CompileError {
	return &CompileError{Kind: ConfigurationError, Function: function, Message: message,
		cause: pkgerrors.New(message)}
}

// NewIntegerOverflowError reports a node or output count exceeding the
// 32-bit signed range during compilation.
func NewIntegerOverflowError(function, message string) *CompileError {
	return &CompileError{Kind: IntegerOverflowError, Function: function, Message: message,
		cause: pkgerrors.New(message)}
}

// NewSubCallError reports a compile-time operation that cannot cross an
// opaque CALL boundary, e.g. a symbolic Jacobian requested through a
// sub-function the calltable.Function interface gives no derivative for.
func NewSubCallError(function, message string) *CompileError {
	return &CompileError{Kind: SubCallError, Function: function, Message: message,
		cause: pkgerrors.New(message)}
}

// NewUnknownOpcodeError reports an AlgEl whose opcode has no dispatch case —
// a serialization or build bug, never expected in a function this package
// compiled itself.
func NewUnknownOpcodeError(function string, op fmt.Stringer) *CompileError {
	msg := fmt.Sprintf("unknown opcode %s in compiled algorithm", op)
	return &CompileError{Kind: UnknownOpcodeError, Function: function, Message: msg,
		cause: pkgerrors.New(msg)}
}

// EvalError is returned from the hot numeric sweeps (EvalDouble, ADForward,
// ADReverse, SPForward, SPReverse). Unlike CompileError it is not wrapped
// with a pkg/errors stack: these paths are performance sensitive and the
// caller only needs the kind and message, per SPEC_FULL.md §4.2.
type EvalError struct {
	Kind     ErrorKind
	Function string
	Message  string
}

func (e *EvalError) Error() string {
	if e.Function != "" {
		return fmt.Sprintf("%s in %q: %s", e.Kind, e.Function, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewFreeParameterEvalError reports evaluation attempted on a function
// whose free_vars set is non-empty.
func NewFreeParameterEvalError(function string, freeSymbols []string) *EvalError {
	return &EvalError{Kind: FreeParameterError, Function: function,
		Message: "evaluation attempted with free parameters: " + strings.Join(freeSymbols, ", ")}
}

// NewSubCallEvalError wraps a nonzero return from an embedded CALL's
// external function.
func NewSubCallEvalError(function, subFunction string, code int) *EvalError {
	return &EvalError{Kind: SubCallError, Function: function,
		Message: fmt.Sprintf("sub-call %q failed with code %d", subFunction, code)}
}
