package eval_test

import (
	"math"
	"testing"

	"golang.org/x/sync/errgroup"

	"sx/internal/eval"
)

// TestEvalDoubleConcurrentReentrant pins the reentrancy invariant: the
// caller may invoke independent function handles concurrently as long as
// each goroutine uses its own arg/res/iw/w buffers. A single compiled
// Function is evaluated from many goroutines at once with distinct scratch,
// and every result must match the single-threaded answer.
func TestEvalDoubleConcurrentReentrant(t *testing.T) {
	f, _, _, _ := buildXYSquaredPlusY(t)

	var g errgroup.Group
	const n = 64
	for i := 0; i < n; i++ {
		x, y := float64(i), float64(n-i)
		g.Go(func() error {
			arg := [][]float64{{x}, {y}}
			res := [][]float64{make([]float64, 1)}
			w := make([]float64, f.SzW())
			if err := eval.EvalDouble(f, arg, res, nil, w); err != nil {
				return err
			}
			want := math.Pow(x*y, 2) + y
			if res[0][0] != want {
				t.Errorf("x=%v y=%v: got %v, want %v", x, y, res[0][0], want)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent EvalDouble: %v", err)
	}
}
