package eval

import (
	"sx/internal/alg"
	"sx/internal/calltable"
	cerrors "sx/internal/errors"
)

// ADReverse runs the reverse-mode AD sweep against a tape built at a fixed
// nominal point, one adjoint direction per element of aseed/asens:
// aseed[dir][o] holds output o's adjoint seed nonzeros, and asens[dir][i]
// receives declared input i's sensitivity nonzeros.
//
// A sub-function's Reverse(1) handle is invoked as: packed nominal inputs
// (cached on the tape) followed by packed output adjoints, producing the
// packed input adjoints, scattered into w[dep[i]] += ret[i].
func ADReverse(tape *Tape, aseed [][][]float64, asens [][][]float64) error {
	f := tape.F
	for dir := range aseed {
		w2 := make([]float64, len(tape.W))
		for i := len(f.Algorithm) - 1; i >= 0; i-- {
			e := f.Algorithm[i]
			switch e.Op {
			case alg.CONST, alg.PARAMETER:
				w2[e.I0] = 0
			case alg.OUTPUT:
				if int(e.I0) < len(aseed[dir]) && aseed[dir][e.I0] != nil {
					w2[e.I1] += aseed[dir][e.I0][e.I2]
				}
			case alg.INPUT:
				if int(e.I1) < len(asens[dir]) && asens[dir][e.I1] != nil {
					asens[dir][e.I1][e.I2] = w2[e.I0]
				}
				w2[e.I0] = 0
			case alg.CALL:
				ce := &f.CallTable[e.I1]
				if err := reverseCall(tape, i, ce, w2); err != nil {
					return cerrors.NewSubCallEvalError(f.Name, ce.F.Name(), 1)
				}
			default:
				seed := w2[e.I0]
				w2[e.I0] = 0
				el := tape.El[i]
				w2[e.I1] += el.d0 * seed
				if e.Op.IsBinary() {
					w2[e.I2] += el.d1 * seed
				}
			}
		}
	}
	return nil
}

func reverseCall(tape *Tape, algIdx int, ce *calltable.CallEntry, w2 []float64) error {
	el := &tape.El[algIdx]
	if el.rev == nil {
		rev, err := ce.F.Reverse(1)
		if err != nil {
			return err
		}
		el.rev = rev
	}

	outAdj := make([][]float64, len(ce.FNNZOut))
	pos := 0
	for j, n := range ce.FNNZOut {
		seg := make([]float64, n)
		for k := 0; k < n; k++ {
			slot := ce.Out[pos]
			if slot != calltable.NoOutput {
				seg[k] = w2[slot]
				w2[slot] = 0
			}
			pos++
		}
		outAdj[j] = seg
	}

	combined := make([][]float64, 0, len(ce.FNNZIn)+len(ce.FNNZOut))
	combined = append(combined, el.nominalArg...)
	combined = append(combined, outAdj...)

	inAdj := packOutputs[float64](ce.FNNZIn)
	iw := make([]int32, el.rev.SzIW())
	w := make([]float64, el.rev.SzW())
	if err := el.rev.Eval(combined, inAdj, iw, w); err != nil {
		return err
	}

	pos = 0
	for j, n := range ce.FNNZIn {
		for k := 0; k < n; k++ {
			w2[ce.Dep[pos]] += inAdj[j][k]
			pos++
		}
	}
	return nil
}
