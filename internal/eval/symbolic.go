package eval

import (
	"sx/internal/alg"
	"sx/internal/calltable"
	cerrors "sx/internal/errors"
	"sx/internal/expr"
)

// EvalSX runs the symbolic dispatch sweep: the same instruction stream as
// EvalDouble, but with expr.Handle operands, so a
// function may be re-evaluated with different symbolic substitutions for
// its declared inputs (e.g. to graft it into a larger expression, or to
// re-derive it against a changed subexpression) while still reusing an
// unchanged subexpression's original handle rather than growing the arena
// with a structurally-identical duplicate every time.
//
// arg[i] supplies the substituted handles for declared input i's nonzeros.
// The returned slice has one entry per declared output.
func EvalSX(store *expr.Store, f *alg.Function, arg [][]expr.Handle) ([][]expr.Handle, error) {
	w := make([]expr.Handle, f.SzW())
	res := make([][]expr.Handle, len(f.NNZOut))
	for i, n := range f.NNZOut {
		res[i] = make([]expr.Handle, n)
	}

	cIdx, bIdx := 0, 0
	for _, e := range f.Algorithm {
		switch e.Op {
		case alg.CONST:
			w[e.I0] = f.Constants[cIdx]
			cIdx++
		case alg.PARAMETER:
			return nil, cerrors.NewFreeParameterEvalError(f.Name, freeNames(f))
		case alg.INPUT:
			if int(e.I1) < len(arg) && arg[e.I1] != nil {
				w[e.I0] = arg[e.I1][e.I2]
			} else {
				w[e.I0] = store.Const(0)
			}
		case alg.OUTPUT:
			res[e.I0][e.I2] = w[e.I1]
		case alg.CALL:
			ce := &f.CallTable[e.I1]
			bIdx++ // keeps the operations cursor aligned; the call's own
			       // handle is not otherwise needed (OrigDep/OutSX already
			       // cache what the sweep needs).
			if err := evalSXCall(store, ce, w); err != nil {
				return nil, cerrors.NewSubCallEvalError(f.Name, ce.F.Name(), 1)
			}
		default:
			var candidate expr.Handle
			if e.Op.IsBinary() {
				candidate = store.Binary(e.Op, w[e.I1], w[e.I2])
			} else {
				candidate = store.Unary(e.Op, w[e.I1])
			}
			orig := f.Operations[bIdx]
			bIdx++
			if store.StructurallyEqualDepth2(candidate, orig) {
				w[e.I0] = orig
			} else {
				w[e.I0] = candidate
			}
		}
	}
	return res, nil
}

// evalSXCall implements the symbolic sweep's CALL handling: if every current
// dependency is structurally equal (depth 2) to the dependency recorded at
// bind time, the cached per-output symbolic subexpressions are reused
// unchanged, preserving sharing. Otherwise — the dependencies genuinely
// changed — this implementation reports a SubCallError rather than
// re-invoking the sub-function symbolically: doing that would need a
// parallel symbolic entry point on calltable.Function, which this module's
// Function interface intentionally does not carry (see DESIGN.md).
func evalSXCall(store *expr.Store, ce *calltable.CallEntry, w []expr.Handle) error {
	unchanged := true
	for k, d := range ce.Dep {
		if !store.StructurallyEqualDepth2(w[d], ce.OrigDep[k]) {
			unchanged = false
			break
		}
	}
	if !unchanged {
		return errSubCallDependenciesChanged
	}
	for i, h := range ce.OutSX {
		if h.IsNil() {
			continue
		}
		if slot := ce.Out[i]; slot != calltable.NoOutput {
			w[slot] = h
		}
	}
	return nil
}

var errSubCallDependenciesChanged = &symbolicCallError{}

type symbolicCallError struct{}

func (*symbolicCallError) Error() string {
	return "symbolic re-evaluation through a changed CALL dependency is not supported"
}
