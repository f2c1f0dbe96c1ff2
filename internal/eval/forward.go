package eval

import (
	"sx/internal/alg"
	"sx/internal/calltable"
	cerrors "sx/internal/errors"
)

// ADForward runs the forward-mode AD sweep against a tape built at a fixed
// nominal point. fseed[dir][i] holds the seed values for declared input i's
// nonzeros, one slice per forward direction; fsens[dir][o] receives output
// o's forward-sensitivity nonzeros for that direction. Every direction
// replays the same tape, so sweeping many directions at once is just a loop
// here rather than a batched instruction stream — batching is purely a
// performance option this implementation does not need.
//
// A sub-function's Forward(1) handle is invoked as: packed nominal inputs
// (cached on the tape) followed by packed dot inputs, producing the packed
// forward-sensitivity outputs only — no nominal outputs, written back into
// w[out[i]].
func ADForward(tape *Tape, fseed [][][]float64, fsens [][][]float64) error {
	f := tape.F
	for dir := range fseed {
		w2 := make([]float64, len(tape.W))
		for i, e := range f.Algorithm {
			switch e.Op {
			case alg.CONST, alg.PARAMETER:
				w2[e.I0] = 0
			case alg.INPUT:
				if int(e.I1) < len(fseed[dir]) && fseed[dir][e.I1] != nil {
					w2[e.I0] = fseed[dir][e.I1][e.I2]
				} else {
					w2[e.I0] = 0
				}
			case alg.OUTPUT:
				if int(e.I0) < len(fsens[dir]) && fsens[dir][e.I0] != nil {
					fsens[dir][e.I0][e.I2] = w2[e.I1]
				}
			case alg.CALL:
				ce := &f.CallTable[e.I1]
				if err := forwardCall(tape, i, ce, w2); err != nil {
					return cerrors.NewSubCallEvalError(f.Name, ce.F.Name(), 1)
				}
			default:
				el := tape.El[i]
				d := el.d0 * w2[e.I1]
				if e.Op.IsBinary() {
					d += el.d1 * w2[e.I2]
				}
				w2[e.I0] = d
			}
		}
	}
	return nil
}

func forwardCall(tape *Tape, algIdx int, ce *calltable.CallEntry, w2 []float64) error {
	el := &tape.El[algIdx]
	if el.fwd == nil {
		fwd, err := ce.F.Forward(1)
		if err != nil {
			return err
		}
		el.fwd = fwd
	}

	dotArg := packInputs[float64](ce.FNNZIn, ce.Dep, w2)
	combined := make([][]float64, 0, 2*len(ce.FNNZIn))
	combined = append(combined, el.nominalArg...)
	combined = append(combined, dotArg...)

	sens := packOutputs[float64](ce.FNNZOut)
	iw := make([]int32, el.fwd.SzIW())
	w := make([]float64, el.fwd.SzW())
	if err := el.fwd.Eval(combined, sens, iw, w); err != nil {
		return err
	}
	scatterOutputs(ce.FNNZOut, ce.Out, sens, w2)
	return nil
}
