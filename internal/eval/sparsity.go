package eval

import (
	"sx/internal/alg"
	"sx/internal/calltable"
	cerrors "sx/internal/errors"
)

// SPForward runs the bit-pattern forward sparsity sweep: structurally
// identical to EvalDouble, but every unary and binary op
// degenerates to a single OR of its operand dependency bits. arg/res carry
// one uint64 bit-word per scalar (bit k set means "depends on seed k"); w is
// caller-owned scratch sized at least f.SzW().
func SPForward(f *alg.Function, arg [][]uint64, res [][]uint64, iw []int32, w []uint64) error {
	for _, e := range f.Algorithm {
		switch e.Op {
		case alg.CONST:
			w[e.I0] = 0
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
			packedArg := packInputs[uint64](ce.FNNZIn, ce.Dep, w)
			packedRes := packOutputs[uint64](ce.FNNZOut)
			if err := ce.F.EvalSparsityForward(packedArg, packedRes, iw, make([]uint64, ce.F.SzW())); err != nil {
				return cerrors.NewSubCallEvalError(f.Name, ce.F.Name(), 1)
			}
			scatterOutputs(ce.FNNZOut, ce.Out, packedRes, w)
		default:
			w[e.I0] = w[e.I1] | w[e.I2]
		}
	}
	return nil
}

// SPReverse runs the bit-pattern reverse sparsity sweep. Unlike
// SPForward/EvalDouble it accumulates into its operands (OR, not
// overwrite) and clears each instruction's own slot once consumed, the
// usual reverse-mode "drain as you go" discipline.
func SPReverse(f *alg.Function, arg [][]uint64, res [][]uint64, iw []int32, w []uint64) error {
	for i := len(f.Algorithm) - 1; i >= 0; i-- {
		e := f.Algorithm[i]
		switch e.Op {
		case alg.CONST:
			w[e.I0] = 0
		case alg.PARAMETER:
			return cerrors.NewFreeParameterEvalError(f.Name, freeNames(f))
		case alg.INPUT:
			if int(e.I1) < len(arg) && arg[e.I1] != nil {
				arg[e.I1][e.I2] |= w[e.I0]
			}
			w[e.I0] = 0
		case alg.OUTPUT:
			if int(e.I0) < len(res) && res[e.I0] != nil {
				w[e.I1] |= res[e.I0][e.I2]
			}
		case alg.CALL:
			ce := &f.CallTable[e.I1]
			if err := reverseSparsityCall(f, ce, w, iw); err != nil {
				return err
			}
		default:
			seed := w[e.I0]
			w[e.I0] = 0
			w[e.I1] |= seed
			if e.Op.IsBinary() {
				w[e.I2] |= seed
			}
		}
	}
	return nil
}

func reverseSparsityCall(f *alg.Function, ce *calltable.CallEntry, w []uint64, iw []int32) error {
	outAdj := make([][]uint64, len(ce.FNNZOut))
	pos := 0
	for j, n := range ce.FNNZOut {
		seg := make([]uint64, n)
		for k := 0; k < n; k++ {
			if slot := ce.Out[pos]; slot != calltable.NoOutput {
				seg[k] = w[slot]
				w[slot] = 0
			}
			pos++
		}
		outAdj[j] = seg
	}

	inAdj := packOutputs[uint64](ce.FNNZIn)
	if err := ce.F.EvalSparsityReverse(inAdj, outAdj, iw, make([]uint64, ce.F.SzW())); err != nil {
		return cerrors.NewSubCallEvalError(f.Name, ce.F.Name(), 1)
	}

	orInto(ce.FNNZIn, ce.Dep, inAdj, w)
	return nil
}
