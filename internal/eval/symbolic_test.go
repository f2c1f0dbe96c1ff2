package eval_test

import (
	"testing"

	"sx/internal/eval"
	"sx/internal/expr"
)

func TestEvalSXReusesHandlesWhenInputsUnchanged(t *testing.T) {
	f, store, x, y := buildXYSquaredPlusY(t)

	res1, err := eval.EvalSX(store, f, [][]expr.Handle{{x}, {y}})
	if err != nil {
		t.Fatalf("EvalSX (first): %v", err)
	}
	res2, err := eval.EvalSX(store, f, [][]expr.Handle{{x}, {y}})
	if err != nil {
		t.Fatalf("EvalSX (second): %v", err)
	}
	if res1[0][0] != res2[0][0] {
		t.Errorf("re-evaluating with the same substituted inputs should reuse the same handle, got %v and %v", res1[0][0], res2[0][0])
	}
}
