// Package codegen renders a compiled alg.Function as target-language
// source: an element-wise matrix-language body (EmitMatlab) and a typed
// LLVM IR function (EmitLLVMIR) for downstream JIT compilation.
package codegen

import (
	"fmt"
	"io"
	"strings"

	"sx/internal/alg"
	"sx/internal/calltable"
	cerrors "sx/internal/errors"
)

// EmitMatlab writes f as a MATLAB/Octave function body: element-wise
// operators (.*, ./, .^), bitwise-style comparisons (|, &, ~=), and direct
// calls into the math library for everything else. Requires f.FreeVars to
// be empty; otherwise it fails listing the offending symbols.
func EmitMatlab(w io.Writer, f *alg.Function) error {
	if len(f.FreeVars) > 0 {
		err := cerrors.NewConfigurationError(f.Name, "cannot emit code for a function with free parameters")
		for _, h := range f.FreeVars {
			err.Names = append(err.Names, fmt.Sprintf("node#%d", h))
		}
		return err
	}

	fmt.Fprintf(w, "function varargout = %s(%s)\n", f.Name, joinArgs(f.InNames))

	for _, e := range f.Algorithm {
		switch e.Op {
		case alg.CONST:
			fmt.Fprintf(w, "  w%d = %s;\n", e.I0, matlabFloat(e.D))
		case alg.INPUT:
			fmt.Fprintf(w, "  w%d = %s(%d);\n", e.I0, f.InNames[e.I1], e.I2+1)
		case alg.OUTPUT:
			fmt.Fprintf(w, "  varargout{%d}(%d) = w%d;\n", e.I0+1, e.I2+1, e.I1)
		case alg.CALL:
			emitMatlabCall(w, f.CallTable[e.I1])
		default:
			writeMatlabOp(w, e)
		}
	}
	fmt.Fprintln(w, "end")
	return nil
}

// emitMatlabCall renders one embedded CALL as a multi-return MATLAB call
// into a temporary per sub-function output, followed by one indented
// assignment per bound destination slot: two clearly separated, properly
// indented statements rather than one compound line.
func emitMatlabCall(w io.Writer, ce calltable.CallEntry) {
	args := make([]string, len(ce.Dep))
	for k, d := range ce.Dep {
		args[k] = fmt.Sprintf("w%d", d)
	}
	tmp := make([]string, len(ce.FNNZOut))
	for k := range tmp {
		tmp[k] = fmt.Sprintf("%s_out%d", ce.F.Name(), k)
	}
	fmt.Fprintf(w, "  [%s] = %s(%s);\n", strings.Join(tmp, ", "), ce.F.Name(), strings.Join(args, ", "))
	pos := 0
	for j, n := range ce.FNNZOut {
		for k := 0; k < n; k++ {
			if slot := ce.Out[pos]; slot != calltable.NoOutput {
				fmt.Fprintf(w, "  w%d = %s(%d);\n", slot, tmp[j], k+1)
			}
			pos++
		}
	}
}

func joinArgs(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

func matlabFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}

func writeMatlabOp(w io.Writer, e alg.AlgEl) {
	l, r := fmt.Sprintf("w%d", e.I1), fmt.Sprintf("w%d", e.I2)
	dst := fmt.Sprintf("w%d", e.I0)
	var rhs string
	switch e.Op {
	case alg.ADD:
		rhs = l + " + " + r
	case alg.SUB:
		rhs = l + " - " + r
	case alg.MUL:
		rhs = l + " .* " + r
	case alg.DIV:
		rhs = l + " ./ " + r
	case alg.POW, alg.CONSTPOW:
		rhs = l + " .^ " + r
	case alg.ATAN2:
		rhs = "atan2(" + l + ", " + r + ")"
	case alg.FMOD:
		rhs = "mod(" + l + ", " + r + ")"
	case alg.FMIN:
		rhs = "min(" + l + ", " + r + ")"
	case alg.FMAX:
		rhs = "max(" + l + ", " + r + ")"
	case alg.AND:
		rhs = l + " & " + r
	case alg.OR:
		rhs = l + " | " + r
	case alg.EQ:
		rhs = l + " == " + r
	case alg.NE:
		rhs = l + " ~= " + r
	case alg.LT:
		rhs = l + " < " + r
	case alg.LE:
		rhs = l + " <= " + r
	case alg.GT:
		rhs = l + " > " + r
	case alg.GE:
		rhs = l + " >= " + r
	case alg.IF_ELSE_ZERO:
		rhs = "(" + l + " ~= 0) .* " + r
	case alg.NEG:
		rhs = "-" + l
	case alg.INV:
		rhs = "1 ./ " + l
	case alg.TWICE:
		rhs = "2 * " + l
	case alg.SQ:
		rhs = l + ".^2"
	case alg.SQRT:
		rhs = "sqrt(" + l + ")"
	case alg.FABS:
		rhs = "abs(" + l + ")"
	case alg.SIGN:
		rhs = "sign(" + l + ")"
	case alg.FLOOR:
		rhs = "floor(" + l + ")"
	case alg.CEIL:
		rhs = "ceil(" + l + ")"
	case alg.NOT:
		rhs = "~" + l
	default:
		rhs = transcendentalName(e.Op) + "(" + l + ")"
	}
	fmt.Fprintf(w, "  %s = %s;\n", dst, rhs)
}

func transcendentalName(op alg.OpCode) string {
	switch op {
	case alg.EXP:
		return "exp"
	case alg.LOG:
		return "log"
	case alg.SIN:
		return "sin"
	case alg.COS:
		return "cos"
	case alg.TAN:
		return "tan"
	case alg.ASIN:
		return "asin"
	case alg.ACOS:
		return "acos"
	case alg.ATAN:
		return "atan"
	case alg.SINH:
		return "sinh"
	case alg.COSH:
		return "cosh"
	case alg.TANH:
		return "tanh"
	default:
		return "error_unknown_op"
	}
}
