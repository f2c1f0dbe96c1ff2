package eval

import (
	"sx/internal/alg"
	"sx/internal/calltable"
)

// TapeEl caches one instruction's local derivative information at a fixed
// nominal point, computed once by BuildTape and replayed by every forward
// or reverse sweep direction.
type TapeEl struct {
	d0, d1 float64 // local partials, valid for arithmetic instructions

	// nominalArg/nominalRes cache a CALL's packed nominal input/output
	// values, gathered once here and reused unchanged by every sweep
	// direction; fwd/rev cache the forwarded/reversed sub-function handle
	// after its first use so repeated directions don't re-derive it.
	nominalArg [][]float64
	nominalRes [][]float64
	fwd        calltable.Function
	rev        calltable.Function
}

// Tape is a compiled Function's instruction stream annotated with the local
// derivative data ad_forward and ad_reverse need, at one fixed nominal
// input point.
type Tape struct {
	F  *alg.Function
	El []TapeEl
	W  []float64 // nominal register values, indexed like EvalDouble's w
}

// BuildTape runs the nominal double sweep one instruction at a time and
// records each instruction's local partial derivatives from its operands as
// they stand just before it executes, i.e. at that nominal point, before a
// later instruction can reuse their registers. The tape is valid until the
// nominal input point changes; a new BuildTape is required per distinct
// nominal point the caller wants to differentiate at.
func BuildTape(f *alg.Function, arg [][]float64, iw []int32) (*Tape, error) {
	w := make([]float64, f.SzW())
	res := packOutputs[float64](f.NNZOut)
	step := *f

	el := make([]TapeEl, len(f.Algorithm))
	for i, e := range f.Algorithm {
		var a, b float64
		if e.Op.IsArithmetic() {
			a, b = w[e.I1], w[e.I2]
		} else if e.Op == alg.CALL {
			ce := &f.CallTable[e.I1]
			el[i].nominalArg = packInputs[float64](ce.FNNZIn, ce.Dep, w)
		}
		step.Algorithm = f.Algorithm[i : i+1]
		if err := EvalDouble(&step, arg, res, iw, w); err != nil {
			return nil, err
		}
		switch e.Op {
		case alg.CONST, alg.PARAMETER, alg.INPUT, alg.OUTPUT:
		case alg.CALL:
			ce := &f.CallTable[e.I1]
			el[i].nominalRes = packOutputs[float64](ce.FNNZOut)
			for j := range el[i].nominalRes {
				for k := range el[i].nominalRes[j] {
					pos := outPos(ce.FNNZOut, j, k)
					if slot := ce.Out[pos]; slot != calltable.NoOutput {
						el[i].nominalRes[j][k] = w[slot]
					}
				}
			}
		default:
			el[i].d0, el[i].d1 = alg.Derivative(e.Op, a, b, w[e.I0])
		}
	}
	return &Tape{F: f, El: el, W: w}, nil
}

// outPos returns the flat position of output j's k-th nonzero in a
// FNNZOut-shaped flattening, matching the layout packInputs/scatterOutputs
// use for Dep/Out.
func outPos(nnz []int, j, k int) int {
	pos := 0
	for i := 0; i < j; i++ {
		pos += nnz[i]
	}
	return pos + k
}
