package codegen_test

import (
	"strings"
	"testing"

	"sx/internal/alg"
	"sx/internal/codegen"
	"sx/internal/compile"
	"sx/internal/expr"
)

func buildSquarePlusOne(t *testing.T) *alg.Function {
	t.Helper()
	store := expr.NewStore()
	x := store.Symbol("x")
	sq := store.Unary(alg.SQ, x)
	one := store.Const(1)
	out := store.Binary(alg.ADD, sq, one)

	f, err := compile.NewFunction(store, "square_plus_one",
		[]string{"x"}, []string{"y"},
		[][]expr.Handle{{x}},
		[][]expr.Handle{{out}},
		alg.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	return f
}

func TestEmitMatlabRendersOutputAssignment(t *testing.T) {
	f := buildSquarePlusOne(t)
	var sb strings.Builder
	if err := codegen.EmitMatlab(&sb, f); err != nil {
		t.Fatalf("EmitMatlab: %v", err)
	}
	out := sb.String()
	if !strings.Contains(out, "function varargout = square_plus_one(x)") {
		t.Errorf("missing function signature:\n%s", out)
	}
	if !strings.Contains(out, "varargout{1}(1)") {
		t.Errorf("missing output assignment:\n%s", out)
	}
}

func TestEmitMatlabRejectsFreeParameters(t *testing.T) {
	store := expr.NewStore()
	x := store.Symbol("x")
	free := store.Symbol("unbound")
	out := store.Binary(alg.ADD, x, free)
	f := &alg.Function{
		Name:     "bad",
		InNames:  []string{"x"},
		OutNames: []string{"y"},
		NNZIn:    []int{1},
		NNZOut:   []int{1},
		FreeVars: []expr.Handle{free},
		Algorithm: []alg.AlgEl{
			{Op: alg.OUTPUT, I0: 0, I1: 0, I2: 0},
		},
	}
	_ = out
	var sb strings.Builder
	if err := codegen.EmitMatlab(&sb, f); err == nil {
		t.Fatal("expected an error for a function with free parameters")
	}
}

func TestEmitLLVMIRBuildsFunctionNamedAfterF(t *testing.T) {
	f := buildSquarePlusOne(t)
	mod, err := codegen.EmitLLVMIR(f)
	if err != nil {
		t.Fatalf("EmitLLVMIR: %v", err)
	}
	if len(mod.Funcs) == 0 {
		t.Fatal("expected at least one function in the module")
	}
	found := false
	for _, fn := range mod.Funcs {
		if fn.Name() == "square_plus_one" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a function named square_plus_one, got %v", mod.Funcs)
	}
}
