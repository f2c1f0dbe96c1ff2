package eval_test

import (
	"testing"

	"sx/internal/eval"
)

func TestSPForwardPropagatesDependencyBits(t *testing.T) {
	f, _, _, _ := buildXYSquaredPlusY(t)

	const bitX, bitY = 1 << 0, 1 << 1
	arg := [][]uint64{{bitX}, {bitY}}
	res := [][]uint64{make([]uint64, 1)}
	w := make([]uint64, f.SzW())

	if err := eval.SPForward(f, arg, res, nil, w); err != nil {
		t.Fatalf("SPForward: %v", err)
	}
	// out = (x*y)^2 + y depends on both x and y.
	if got, want := res[0][0], uint64(bitX|bitY); got != want {
		t.Errorf("got %#x, want %#x", got, want)
	}
}

func TestSPReversePropagatesDependencyBits(t *testing.T) {
	f, _, _, _ := buildXYSquaredPlusY(t)

	const bitOut = 1 << 0
	arg := [][]uint64{make([]uint64, 1), make([]uint64, 1)}
	res := [][]uint64{{bitOut}}
	w := make([]uint64, f.SzW())

	if err := eval.SPReverse(f, arg, res, nil, w); err != nil {
		t.Fatalf("SPReverse: %v", err)
	}
	if got := arg[0][0]; got&bitOut == 0 {
		t.Errorf("x sparsity = %#x, expected the output bit to propagate back", got)
	}
	if got := arg[1][0]; got&bitOut == 0 {
		t.Errorf("y sparsity = %#x, expected the output bit to propagate back", got)
	}
}
