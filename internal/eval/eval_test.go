package eval_test

import (
	"math"
	"testing"

	"sx/internal/alg"
	"sx/internal/compile"
	cerrors "sx/internal/errors"
	"sx/internal/eval"
	"sx/internal/expr"
)

// buildXYSquaredPlusY compiles f(x, y) = (x*y)^2 + y, a small DAG with a
// shared leaf (y feeds both x*y and the final sum) to
// exercise both arithmetic dispatch and live-range reuse.
func buildXYSquaredPlusY(t *testing.T) (*alg.Function, *expr.Store, expr.Handle, expr.Handle) {
	t.Helper()
	store := expr.NewStore()
	x := store.Symbol("x")
	y := store.Symbol("y")
	xy := store.Binary(alg.MUL, x, y)
	sq := store.Unary(alg.SQ, xy)
	out := store.Binary(alg.ADD, sq, y)

	f, err := compile.NewFunction(store, "f",
		[]string{"x", "y"}, []string{"out"},
		[][]expr.Handle{{x}, {y}},
		[][]expr.Handle{{out}},
		alg.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	return f, store, x, y
}

func TestEvalDouble(t *testing.T) {
	f, _, _, _ := buildXYSquaredPlusY(t)

	arg := [][]float64{{3}, {4}}
	res := [][]float64{make([]float64, 1)}
	w := make([]float64, f.SzW())

	if err := eval.EvalDouble(f, arg, res, nil, w); err != nil {
		t.Fatalf("EvalDouble: %v", err)
	}
	want := math.Pow(3*4, 2) + 4
	if got := res[0][0]; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEvalDoubleMissingInputTreatedAsZero(t *testing.T) {
	f, _, _, _ := buildXYSquaredPlusY(t)

	arg := [][]float64{nil, {4}}
	res := [][]float64{make([]float64, 1)}
	w := make([]float64, f.SzW())

	if err := eval.EvalDouble(f, arg, res, nil, w); err != nil {
		t.Fatalf("EvalDouble: %v", err)
	}
	if got, want := res[0][0], 4.0; got != want {
		t.Errorf("got %v, want %v (x treated as zero)", got, want)
	}
}

func TestEvalDoubleSkipsUnrequestedOutput(t *testing.T) {
	f, _, _, _ := buildXYSquaredPlusY(t)
	arg := [][]float64{{1}, {2}}
	res := [][]float64{nil}
	w := make([]float64, f.SzW())

	if err := eval.EvalDouble(f, arg, res, nil, w); err != nil {
		t.Fatalf("EvalDouble: %v", err)
	}
}

func TestWorksizeReusesRegistersWhenLive(t *testing.T) {
	f, _, _, _ := buildXYSquaredPlusY(t)
	// Three operations (mul, sq, add) but several inputs die early; with
	// live_variables the worksize must stay well under one-register-per-
	// node.
	if f.Worksize >= 5 {
		t.Errorf("worksize %d: expected live-range reuse to keep this small", f.Worksize)
	}
}

func TestWorksizeWithoutLiveVariablesIsOnePerNode(t *testing.T) {
	store := expr.NewStore()
	x := store.Symbol("x")
	y := store.Symbol("y")
	xy := store.Binary(alg.MUL, x, y)
	sq := store.Unary(alg.SQ, xy)
	out := store.Binary(alg.ADD, sq, y)

	opts := alg.DefaultOptions()
	opts.LiveVariables = false
	f, err := compile.NewFunction(store, "f",
		[]string{"x", "y"}, []string{"out"},
		[][]expr.Handle{{x}, {y}},
		[][]expr.Handle{{out}}, opts)
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	// Five produced nodes: x, y, x*y, sq, add.
	if f.Worksize != 5 {
		t.Errorf("worksize = %d, want 5 with live_variables disabled", f.Worksize)
	}
}

func TestFreeParameterCompilesButFailsAtEvalEntry(t *testing.T) {
	store := expr.NewStore()
	x := store.Symbol("x")
	free := store.Symbol("unbound")
	out := store.Binary(alg.ADD, x, free)

	f, err := compile.NewFunction(store, "f",
		[]string{"x"}, []string{"out"},
		[][]expr.Handle{{x}},
		[][]expr.Handle{{out}},
		alg.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	if len(f.FreeVars) != 1 {
		t.Fatalf("FreeVars = %v, want exactly the one unbound symbol", f.FreeVars)
	}

	arg := [][]float64{{1}}
	res := [][]float64{make([]float64, 1)}
	w := make([]float64, f.SzW())
	err = eval.EvalDouble(f, arg, res, nil, w)
	if err == nil {
		t.Fatal("expected a free-parameter error from EvalDouble")
	}
	evalErr, ok := err.(*cerrors.EvalError)
	if !ok {
		t.Fatalf("error type = %T, want *errors.EvalError", err)
	}
	if evalErr.Kind != cerrors.FreeParameterError {
		t.Errorf("error kind = %s, want %s", evalErr.Kind, cerrors.FreeParameterError)
	}
}
