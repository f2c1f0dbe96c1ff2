package compile_test

import (
	"testing"

	"sx/internal/alg"
	"sx/internal/compile"
	"sx/internal/eval"
	"sx/internal/expr"
)

// buildDeepChain compiles a function with several operations where early
// operands die well before the end of the algorithm, giving live-range
// reuse room to actually reuse a slot rather than merely not needing to.
func buildDeepChain(t *testing.T, live bool) *alg.Function {
	t.Helper()
	store := expr.NewStore()
	x := store.Symbol("x")
	y := store.Symbol("y")
	a := store.Binary(alg.MUL, x, y) // x, y die here
	b := store.Unary(alg.SQ, a)      // a dies here
	c := store.Binary(alg.ADD, b, b) // b dies here (both operands)
	d := store.Unary(alg.NEG, c)     // c dies here
	out := store.Binary(alg.ADD, d, d)

	opts := alg.DefaultOptions()
	opts.LiveVariables = live
	f, err := compile.NewFunction(store, "chain",
		[]string{"x", "y"}, []string{"out"},
		[][]expr.Handle{{x}, {y}},
		[][]expr.Handle{{out}},
		opts)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	return f
}

// TestLiveVariablesReuseSlotsBelowNodeCount pins the live-range allocator's
// whole point: reusing freed slots keeps worksize well under one register
// per node for a chain where operands die early and often.
func TestLiveVariablesReuseSlotsBelowNodeCount(t *testing.T) {
	f := buildDeepChain(t, true)
	// 7 nodes total (x, y, mul, sq, add, neg, add) but live-range reuse
	// should never need more than a handful of live slots at once.
	if f.Worksize >= 7 {
		t.Errorf("worksize = %d, want well under 7 with live_variables", f.Worksize)
	}
}

// TestWithoutLiveVariablesWorksizeEqualsNodeCount confirms the documented
// fallback: with LiveVariables off, every node gets its own permanent slot.
func TestWithoutLiveVariablesWorksizeEqualsNodeCount(t *testing.T) {
	f := buildDeepChain(t, false)
	if f.Worksize != 7 {
		t.Errorf("worksize = %d, want 7 (one slot per node)", f.Worksize)
	}
}

// TestLiveAndNonLiveAllocationsAgreeNumerically is the live-variable safety
// property stated as an equivalence: renumbering every slot with a fresh
// number per node (LiveVariables=false) must produce the same numeric
// result as the live-allocated version, for the same inputs.
func TestLiveAndNonLiveAllocationsAgreeNumerically(t *testing.T) {
	live := buildDeepChain(t, true)
	nonLive := buildDeepChain(t, false)

	arg := [][]float64{{3}, {-2}}

	liveRes := [][]float64{make([]float64, 1)}
	if err := eval.EvalDouble(live, arg, liveRes, nil, make([]float64, live.SzW())); err != nil {
		t.Fatalf("EvalDouble(live): %v", err)
	}
	nonLiveRes := [][]float64{make([]float64, 1)}
	if err := eval.EvalDouble(nonLive, arg, nonLiveRes, nil, make([]float64, nonLive.SzW())); err != nil {
		t.Fatalf("EvalDouble(non-live): %v", err)
	}

	if liveRes[0][0] != nonLiveRes[0][0] {
		t.Errorf("live result %v != non-live result %v", liveRes[0][0], nonLiveRes[0][0])
	}
}
