package eval_test

import (
	"math"
	"testing"

	"sx/internal/eval"
)

// f(x, y) = (x*y)^2 + y, so:
//   d/dx = 2*x*y^2
//   d/dy = 2*x^2*y + 1

func TestADForwardMatchesAnalyticGradient(t *testing.T) {
	f, _, _, _ := buildXYSquaredPlusY(t)
	x0, y0 := 3.0, 4.0

	tape, err := eval.BuildTape(f, [][]float64{{x0}, {y0}}, nil)
	if err != nil {
		t.Fatalf("BuildTape: %v", err)
	}

	fseed := [][][]float64{
		{{1}, {0}}, // direction 0: d/dx
		{{0}, {1}}, // direction 1: d/dy
	}
	fsens := [][][]float64{{make([]float64, 1)}, {make([]float64, 1)}}

	if err := eval.ADForward(tape, fseed, fsens); err != nil {
		t.Fatalf("ADForward: %v", err)
	}

	wantDX := 2 * x0 * y0 * y0
	wantDY := 2*x0*x0*y0 + 1
	if got := fsens[0][0][0]; math.Abs(got-wantDX) > 1e-9 {
		t.Errorf("d/dx = %v, want %v", got, wantDX)
	}
	if got := fsens[1][0][0]; math.Abs(got-wantDY) > 1e-9 {
		t.Errorf("d/dy = %v, want %v", got, wantDY)
	}
}

func TestADReverseMatchesAnalyticGradient(t *testing.T) {
	f, _, _, _ := buildXYSquaredPlusY(t)
	x0, y0 := 3.0, 4.0

	tape, err := eval.BuildTape(f, [][]float64{{x0}, {y0}}, nil)
	if err != nil {
		t.Fatalf("BuildTape: %v", err)
	}

	aseed := [][][]float64{{{1}}}
	asens := [][][]float64{{make([]float64, 1), make([]float64, 1)}}

	if err := eval.ADReverse(tape, aseed, asens); err != nil {
		t.Fatalf("ADReverse: %v", err)
	}

	wantDX := 2 * x0 * y0 * y0
	wantDY := 2*x0*x0*y0 + 1
	if got := asens[0][0][0]; math.Abs(got-wantDX) > 1e-9 {
		t.Errorf("d/dx = %v, want %v", got, wantDX)
	}
	if got := asens[0][1][0]; math.Abs(got-wantDY) > 1e-9 {
		t.Errorf("d/dy = %v, want %v", got, wantDY)
	}
}
