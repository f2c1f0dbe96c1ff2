package main

import (
	"fmt"

	"sx/internal/alg"
	"sx/internal/calltable"
	"sx/internal/expr"
)

// This CLI has no textual surface syntax to parse SX expressions from — the
// core only ever consumes a DAG built programmatically, and no such syntax
// is defined — so "build"/"dump"/"eval"/"export"/"jac" all operate on a
// small named registry of example functions instead of a source file. A
// caller embedding this module builds its own DAG directly against
// internal/expr and internal/compile; this registry exists only so the CLI
// has something to point at.
type example struct {
	describe string
	build    func() (store *expr.Store, name string, inNames, outNames []string, inputs, outputs [][]expr.Handle)
}

var examples = map[string]example{
	"xysin": {
		describe: "f(x, y) = x*y + sin(x)",
		build: func() (*expr.Store, string, []string, []string, [][]expr.Handle, [][]expr.Handle) {
			store := expr.NewStore()
			x := store.Symbol("x")
			y := store.Symbol("y")
			xy := store.Binary(alg.MUL, x, y)
			sx := store.Unary(alg.SIN, x)
			out := store.Binary(alg.ADD, xy, sx)
			return store, "xysin", []string{"x", "y"}, []string{"out"},
				[][]expr.Handle{{x}, {y}}, [][]expr.Handle{{out}}
		},
	},
	"quad": {
		describe: "q(x) = x^2 + 3*x + 1",
		build: func() (*expr.Store, string, []string, []string, [][]expr.Handle, [][]expr.Handle) {
			store := expr.NewStore()
			x := store.Symbol("x")
			sq := store.Unary(alg.SQ, x)
			three := store.Const(3)
			threeX := store.Binary(alg.MUL, three, x)
			sum := store.Binary(alg.ADD, sq, threeX)
			one := store.Const(1)
			out := store.Binary(alg.ADD, sum, one)
			return store, "quad", []string{"x"}, []string{"out"},
				[][]expr.Handle{{x}}, [][]expr.Handle{{out}}
		},
	},
	"step": {
		describe: "h(x, y) = (x > 0) * y  (non-smooth)",
		build: func() (*expr.Store, string, []string, []string, [][]expr.Handle, [][]expr.Handle) {
			store := expr.NewStore()
			x := store.Symbol("x")
			y := store.Symbol("y")
			zero := store.Const(0)
			gt := store.Binary(alg.GT, x, zero)
			out := store.Binary(alg.MUL, gt, y)
			return store, "step", []string{"x", "y"}, []string{"out"},
				[][]expr.Handle{{x}, {y}}, [][]expr.Handle{{out}}
		},
	},
	"call": {
		describe: "g(x) = f(x) + 1, where f is an opaque CALL computing x^2 + x",
		build: func() (*expr.Store, string, []string, []string, [][]expr.Handle, [][]expr.Handle) {
			store := expr.NewStore()
			x := store.Symbol("x")
			outs := store.Call(squarePlusX{}, []expr.Handle{x})
			one := store.Const(1)
			out := store.Binary(alg.ADD, outs[0], one)
			return store, "call", []string{"x"}, []string{"out"},
				[][]expr.Handle{{x}}, [][]expr.Handle{{out}}
		},
	},
}

// squarePlusX is the opaque external Function bound into the "call"
// example, computing x^2 + x the same way serialize_test.go's fake does.
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
	return nil, fmt.Errorf("square_plus_x: forward mode not implemented by this example")
}

func (squarePlusX) Reverse(nadj int) (calltable.Function, error) {
	return nil, fmt.Errorf("square_plus_x: reverse mode not implemented by this example")
}

// resolveExample is the Resolver `sxc load` uses to rebind call tables: the only
// name any example's call table can carry is square_plus_x.
func resolveExample(name string) (calltable.Function, error) {
	if name == "square_plus_x" {
		return squarePlusX{}, nil
	}
	return nil, fmt.Errorf("no registered function named %q", name)
}
