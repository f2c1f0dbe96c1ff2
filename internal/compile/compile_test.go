package compile_test

import (
	"fmt"
	"math"
	"testing"

	"sx/internal/alg"
	"sx/internal/calltable"
	"sx/internal/compile"
	"sx/internal/eval"
	"sx/internal/expr"
)

// TestCompileAndEvalXYPlusSinX compiles f(x, y) = x*y + sin(x) and checks
// both the numeric result and the worksize a live-range allocation produces.
func TestCompileAndEvalXYPlusSinX(t *testing.T) {
	store := expr.NewStore()
	x := store.Symbol("x")
	y := store.Symbol("y")
	xy := store.Binary(alg.MUL, x, y)
	sx := store.Unary(alg.SIN, x)
	out := store.Binary(alg.ADD, xy, sx)

	f, err := compile.NewFunction(store, "f",
		[]string{"x", "y"}, []string{"out"},
		[][]expr.Handle{{x}, {y}},
		[][]expr.Handle{{out}},
		alg.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	if f.Worksize > 3 {
		t.Errorf("worksize = %d, want <= 3 with live_variables", f.Worksize)
	}

	arg := [][]float64{{2}, {3}}
	res := [][]float64{make([]float64, 1)}
	w := make([]float64, f.SzW())
	if err := eval.EvalDouble(f, arg, res, nil, w); err != nil {
		t.Fatalf("EvalDouble: %v", err)
	}
	want := 2*3 + math.Sin(2)
	if got := res[0][0]; math.Abs(got-want) > 1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}
}

// squarePlusX is an opaque external function computing x^2 + x, bound into
// an embedded CALL instruction.
type squarePlusX struct{}

func (squarePlusX) Name() string   { return "square_plus_x" }
func (squarePlusX) NIn() int       { return 1 }
func (squarePlusX) NOut() int      { return 1 }
func (squarePlusX) NNZIn(int) int  { return 1 }
func (squarePlusX) NNZOut(int) int { return 1 }
func (squarePlusX) SzArg() int     { return 1 }
func (squarePlusX) SzRes() int     { return 1 }
func (squarePlusX) SzIW() int      { return 0 }
func (squarePlusX) SzW() int       { return 1 }

func (squarePlusX) Eval(arg [][]float64, res [][]float64, iw []int32, w []float64) error {
	x := arg[0][0]
	res[0][0] = x*x + x
	return nil
}

func (squarePlusX) EvalSparsityForward(arg [][]uint64, res [][]uint64, iw []int32, w []uint64) error {
	res[0][0] = arg[0][0]
	return nil
}

func (squarePlusX) EvalSparsityReverse(arg [][]uint64, res [][]uint64, iw []int32, w []uint64) error {
	arg[0][0] |= res[0][0]
	return nil
}

func (squarePlusX) Forward(nfwd int) (calltable.Function, error) {
	return nil, fmt.Errorf("square_plus_x: forward mode not implemented")
}

func (squarePlusX) Reverse(nadj int) (calltable.Function, error) {
	return nil, fmt.Errorf("square_plus_x: reverse mode not implemented")
}

// TestCompileCallInstructionHasOneCallTableEntry compiles G(x) = f(x) + 1
// where f is an opaque Function computing x^2 + x, evaluates at x=4, and
// confirms the call table carries exactly one entry with n_dep=1, n_out=1.
func TestCompileCallInstructionHasOneCallTableEntry(t *testing.T) {
	store := expr.NewStore()
	x := store.Symbol("x")
	outs := store.Call(squarePlusX{}, []expr.Handle{x})
	one := store.Const(1)
	out := store.Binary(alg.ADD, outs[0], one)

	f, err := compile.NewFunction(store, "g",
		[]string{"x"}, []string{"out"},
		[][]expr.Handle{{x}},
		[][]expr.Handle{{out}},
		alg.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	if len(f.CallTable) != 1 {
		t.Fatalf("CallTable length = %d, want 1", len(f.CallTable))
	}
	ce := f.CallTable[0]
	if len(ce.Dep) != 1 {
		t.Errorf("n_dep = %d, want 1", len(ce.Dep))
	}
	if len(ce.Out) != 1 {
		t.Errorf("n_out = %d, want 1", len(ce.Out))
	}

	arg := [][]float64{{4}}
	res := [][]float64{make([]float64, 1)}
	w := make([]float64, f.SzW())
	if err := eval.EvalDouble(f, arg, res, nil, w); err != nil {
		t.Fatalf("EvalDouble: %v", err)
	}
	if got, want := res[0][0], 4.0*4+4+1; got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// TestCompileUnreachedSymbolicBranchLeavesFreeVarsEmpty builds K(x) = x
// where x is declared as an input but also referenced indirectly through a
// symbolic branch that no output reaches: compilation must still leave
// FreeVars empty, and evaluating with a nil input must treat it as zero.
func TestCompileUnreachedSymbolicBranchLeavesFreeVarsEmpty(t *testing.T) {
	store := expr.NewStore()
	x := store.Symbol("x")
	unreached := store.Symbol("shadow")
	_ = store.Binary(alg.ADD, unreached, x) // never fed into an output

	f, err := compile.NewFunction(store, "k",
		[]string{"x"}, []string{"out"},
		[][]expr.Handle{{x}},
		[][]expr.Handle{{x}},
		alg.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	if len(f.FreeVars) != 0 {
		t.Fatalf("FreeVars = %v, want empty: the unreached branch must never be compiled", f.FreeVars)
	}

	res := [][]float64{make([]float64, 1)}
	w := make([]float64, f.SzW())
	if err := eval.EvalDouble(f, [][]float64{nil}, res, nil, w); err != nil {
		t.Fatalf("EvalDouble: %v", err)
	}
	if got, want := res[0][0], 0.0; got != want {
		t.Errorf("got %v, want %v (missing input treated as zero)", got, want)
	}
}
