package eval

import (
	"fmt"

	"sx/internal/alg"
	cerrors "sx/internal/errors"
)

// EvalDouble runs the double-precision forward sweep over a compiled
// Function. arg[i] is the caller's i-th input vector; a nil entry
// means every scalar of that input is treated as zero. res[i] is the
// caller's i-th output vector; a nil entry means that output is not
// requested and its OUTPUT instructions are skipped. iw and w are
// caller-owned scratch, sized at least f.SzIW() and f.SzW(); only
// w[0:f.Worksize] is addressed directly by this function, the remainder
// being spare capacity for embedded sub-calls (sub-calls here pack their own
// scratch freshly per invocation rather than slicing w, trading a small
// amount of allocation for a simpler, easier-to-verify implementation).
func EvalDouble(f *alg.Function, arg [][]float64, res [][]float64, iw []int32, w []float64) error {
	for _, e := range f.Algorithm {
		switch e.Op {
		case alg.CONST:
			w[e.I0] = e.D
		case alg.PARAMETER:
			return cerrors.NewFreeParameterEvalError(f.Name, freeNames(f))
		case alg.INPUT:
			if int(e.I1) < len(arg) && arg[e.I1] != nil {
				w[e.I0] = arg[e.I1][e.I2]
			} else {
				w[e.I0] = 0
			}
		case alg.OUTPUT:
			if int(e.I0) < len(res) && res[e.I0] != nil {
				res[e.I0][e.I2] = w[e.I1]
			}
		case alg.CALL:
			ce := &f.CallTable[e.I1]
			packedArg := packInputs[float64](ce.FNNZIn, ce.Dep, w)
			packedRes := packOutputs[float64](ce.FNNZOut)
			if err := ce.F.Eval(packedArg, packedRes, iw, make([]float64, ce.F.SzW())); err != nil {
				return cerrors.NewSubCallEvalError(f.Name, ce.F.Name(), subCallCode(err))
			}
			scatterOutputs(ce.FNNZOut, ce.Out, packedRes, w)
		default:
			w[e.I0] = alg.ApplyDouble(e.Op, w[e.I1], w[e.I2])
		}
	}
	return nil
}

func freeNames(f *alg.Function) []string {
	names := make([]string, len(f.FreeVars))
	for i, h := range f.FreeVars {
		names[i] = fmt.Sprintf("node#%d", h)
	}
	return names
}

// subCallCode reports a nonzero status for a failed sub-call; this
// implementation's calltable.Function.Eval returns a Go error rather than a
// CasADi-style int status, so every failure is reported as code 1.
func subCallCode(err error) int {
	if err == nil {
		return 0
	}
	return 1
}
