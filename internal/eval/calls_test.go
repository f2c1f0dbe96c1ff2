package eval_test

import (
	"fmt"
	"testing"

	"sx/internal/alg"
	"sx/internal/calltable"
	"sx/internal/compile"
	"sx/internal/eval"
	"sx/internal/expr"
)

// vectorOutFn is an opaque sub-function with two declared outputs, the
// first a vector of two nonzeros (out0 = [2x, 3x]) and the second a scalar
// (out1 = x+1), exercising a CALL whose destination slots can't be indexed
// by declared output count alone.
type vectorOutFn struct{}

func (vectorOutFn) Name() string  { return "vector_out_fn" }
func (vectorOutFn) NIn() int      { return 1 }
func (vectorOutFn) NOut() int     { return 2 }
func (vectorOutFn) NNZIn(int) int { return 1 }
func (vectorOutFn) NNZOut(i int) int {
	if i == 0 {
		return 2
	}
	return 1
}
func (vectorOutFn) SzArg() int { return 1 }
func (vectorOutFn) SzRes() int { return 3 }
func (vectorOutFn) SzIW() int  { return 0 }
func (vectorOutFn) SzW() int   { return 1 }

func (vectorOutFn) Eval(arg [][]float64, res [][]float64, iw []int32, w []float64) error {
	x := arg[0][0]
	res[0][0] = 2 * x
	res[0][1] = 3 * x
	res[1][0] = x + 1
	return nil
}

func (vectorOutFn) EvalSparsityForward(arg [][]uint64, res [][]uint64, iw []int32, w []uint64) error {
	res[0][0] = arg[0][0]
	res[0][1] = arg[0][0]
	res[1][0] = arg[0][0]
	return nil
}

func (vectorOutFn) EvalSparsityReverse(arg [][]uint64, res [][]uint64, iw []int32, w []uint64) error {
	arg[0][0] |= res[0][0] | res[0][1] | res[1][0]
	return nil
}

func (vectorOutFn) Forward(nfwd int) (calltable.Function, error) {
	return nil, fmt.Errorf("vectorOutFn.Forward not needed by this test")
}

func (vectorOutFn) Reverse(nadj int) (calltable.Function, error) {
	return nil, fmt.Errorf("vectorOutFn.Reverse not needed by this test")
}

// TestCallWithMultiNonzeroOutputScattersByFlatScalarPosition builds
// g(x) = out0[1] + out1[0], deliberately leaving out0[0] unused, so the
// call table's destination slots must be addressed by flat scalar position
// (0, 1, 2) rather than by declared output index (0, 1).
func TestCallWithMultiNonzeroOutputScattersByFlatScalarPosition(t *testing.T) {
	store := expr.NewStore()
	x := store.Symbol("x")
	outs := store.Call(vectorOutFn{}, []expr.Handle{x})
	if len(outs) != 3 {
		t.Fatalf("Call returned %d handles, want 3 (flat scalar count)", len(outs))
	}
	out := store.Binary(alg.ADD, outs[1], outs[2])

	f, err := compile.NewFunction(store, "g",
		[]string{"x"}, []string{"out"},
		[][]expr.Handle{{x}},
		[][]expr.Handle{{out}},
		alg.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	if len(f.CallTable) != 1 {
		t.Fatalf("expected one call-table entry, got %d", len(f.CallTable))
	}
	ce := f.CallTable[0]
	if len(ce.Out) != 3 || len(ce.OutSX) != 3 {
		t.Fatalf("Out/OutSX length = %d/%d, want 3 (sum of FNNZOut, not NOut)", len(ce.Out), len(ce.OutSX))
	}

	arg := [][]float64{{4}}
	res := [][]float64{make([]float64, 1)}
	w := make([]float64, f.SzW())
	if err := eval.EvalDouble(f, arg, res, nil, w); err != nil {
		t.Fatalf("EvalDouble: %v", err)
	}
	// out0[1] = 3*4 = 12, out1[0] = 4+1 = 5.
	want := 17.0
	if res[0][0] != want {
		t.Errorf("got %v, want %v", res[0][0], want)
	}
}
