package compile

import (
	"fmt"

	"sx/internal/alg"
	cerrors "sx/internal/errors"
	"sx/internal/expr"
)

// Jacobian builds J = jacobian(veccat(out), veccat(in)) and compiles it as a
// new Function, the standard jacobian() convenience wrapper: the declared
// inputs are the original inputs followed by one fresh symbolic dummy per
// original declared output (matching the general derivative-function
// signature even though a plain Jacobian never reads them), and the single
// declared output is J flattened row-major — output o's partial with
// respect to input i lands at jac[o*n_in+i], where n_in is the total
// scalar input count.
func Jacobian(store *expr.Store, name string, inNames, outNames []string, inputs, outputs [][]expr.Handle, opts alg.Options) (*alg.Function, error) {
	flatOut := flattenOutputs(outputs)
	var flatIn []expr.Handle
	for _, nzs := range inputs {
		flatIn = append(flatIn, nzs...)
	}

	jac := make([]expr.Handle, 0, len(flatOut)*len(flatIn))
	for _, or := range flatOut {
		for _, in := range flatIn {
			d, err := scalarJacobian(store, name, or.handle, in)
			if err != nil {
				return nil, err
			}
			jac = append(jac, d)
		}
	}

	dummyInputs := make([][]expr.Handle, len(outputs))
	dummyNames := make([]string, len(outputs))
	for oi, nzs := range outputs {
		dummy := make([]expr.Handle, len(nzs))
		for k := range nzs {
			dummy[k] = store.Symbol(fmt.Sprintf("%s_dummy_out%d_%d", name, oi, k))
		}
		dummyInputs[oi] = dummy
		if oi < len(outNames) {
			dummyNames[oi] = "dummy_" + outNames[oi]
		} else {
			dummyNames[oi] = fmt.Sprintf("dummy_out%d", oi)
		}
	}

	jacInNames := append(append([]string(nil), inNames...), dummyNames...)
	jacInputs := append(append([][]expr.Handle(nil), inputs...), dummyInputs...)

	return NewFunction(store, name+"_jac", jacInNames, []string{"jac"}, jacInputs, [][]expr.Handle{jac}, opts)
}

// scalarJacobian builds the symbolic partial derivative of one output
// expression with respect to one input expression, by running a symbolic
// reverse-mode sweep over the output's own subgraph: each visited node
// accumulates an adjoint expression, built with the same store the forward
// graph lives in, and the result is the adjoint accumulated at the
// requested input leaf (store.Const(0) if the input does not appear in the
// output's subgraph at all). Jacobian calls this once per (output,input)
// pair to assemble the full matrix.
//
// CALL nodes are opaque to this sweep: a subgraph that depends on one
// through a CALL cannot be differentiated symbolically without that
// function's own Jacobian, which the calltable.Function interface does not
// expose, so scalarJacobian reports a SubCallError instead of silently
// treating the call as constant.
func scalarJacobian(store *expr.Store, functionName string, output, input expr.Handle) (expr.Handle, error) {
	flat := []outputRef{{handle: output}}
	nodes, nodeIndex, numNodes, err := topoSort(store, functionName, flat)
	if err != nil {
		return expr.Nil, err
	}

	adjoint := make([]expr.Handle, numNodes)

	seed := nodeIndex[output]
	adjoint[seed] = store.Const(1)

	// nodes is in forward topological order with one trailing Nil
	// separator for the single output; walk it backwards, skipping that
	// separator, to get the reverse-mode visiting order.
	for i := len(nodes) - 1; i >= 0; i-- {
		h := nodes[i]
		if h.IsNil() {
			continue
		}
		ni := nodeIndex[h]
		bar := adjoint[ni]
		if bar.IsNil() {
			continue // unreached by the seed: no contribution flows through here
		}

		op := store.Op(h)
		switch op {
		case alg.CONST, alg.PARAMETER:
			continue
		case alg.CALL, alg.OUTPUT_EXTRACT:
			return expr.Nil, cerrors.NewSubCallError(functionName,
				"jacobian cannot differentiate through a CALL node symbolically")
		}

		deps := store.Deps(h)
		d0, d1, err := symbolicDerivative(store, op, deps, h)
		if err != nil {
			return expr.Nil, cerrors.NewSubCallError(functionName, err.Error())
		}

		accumulate(store, adjoint, nodeIndex[deps[0]], store.Binary(alg.MUL, bar, d0))
		if op.IsBinary() {
			accumulate(store, adjoint, nodeIndex[deps[1]], store.Binary(alg.MUL, bar, d1))
		}
	}

	ii := nodeIndex[input]
	if ii < 0 || adjoint[ii].IsNil() {
		return store.Const(0), nil
	}
	return adjoint[ii], nil
}

func accumulate(store *expr.Store, adjoint []expr.Handle, ni int32, contribution expr.Handle) {
	if adjoint[ni].IsNil() {
		adjoint[ni] = contribution
		return
	}
	adjoint[ni] = store.Binary(alg.ADD, adjoint[ni], contribution)
}

// symbolicDerivative mirrors alg.Derivative's per-op local partials, but
// builds expression handles in terms of the operands themselves instead of
// evaluating them against concrete floats. Piecewise ops (abs, min, max,
// if_else_zero) select their branch with a comparison node; ops whose
// alg.Derivative is zero (sign, floor, ceil, not, logical and comparison
// ops) contribute a zero local derivative.
func symbolicDerivative(store *expr.Store, op alg.OpCode, deps []expr.Handle, node expr.Handle) (d0, d1 expr.Handle, err error) {
	x := deps[0]
	zero := store.Const(0)
	one := store.Const(1)

	if op.IsBinary() {
		y := deps[1]
		switch op {
		case alg.ADD:
			return one, one, nil
		case alg.SUB:
			return one, store.Const(-1), nil
		case alg.MUL:
			return y, x, nil
		case alg.DIV:
			return store.Binary(alg.DIV, one, y),
				store.Unary(alg.NEG, store.Binary(alg.DIV, x, store.Binary(alg.MUL, y, y))), nil
		case alg.POW:
			// d/dx x^y = y*x^(y-1); d/dy x^y = x^y*log(x)
			dx := store.Binary(alg.MUL, y, store.Binary(alg.POW, x, store.Binary(alg.SUB, y, one)))
			dy := store.Binary(alg.MUL, node, store.Unary(alg.LOG, x))
			return dx, dy, nil
		case alg.CONSTPOW:
			// y is a constant exponent: d/dx x^y = y*x^(y-1), no y term.
			return store.Binary(alg.MUL, y, store.Binary(alg.POW, x, store.Binary(alg.SUB, y, one))), zero, nil
		case alg.ATAN2:
			denom := store.Binary(alg.ADD, store.Binary(alg.MUL, x, x), store.Binary(alg.MUL, y, y))
			return store.Binary(alg.DIV, y, denom),
				store.Unary(alg.NEG, store.Binary(alg.DIV, x, denom)), nil
		case alg.FMOD:
			return one, zero, nil
		case alg.FMIN:
			return store.Binary(alg.LE, x, y), store.Binary(alg.GT, x, y), nil
		case alg.FMAX:
			return store.Binary(alg.GE, x, y), store.Binary(alg.LT, x, y), nil
		case alg.IF_ELSE_ZERO:
			return zero, store.Binary(alg.NE, x, zero), nil
		case alg.AND, alg.OR, alg.EQ, alg.NE, alg.LT, alg.LE, alg.GT, alg.GE:
			return zero, zero, nil
		default:
			return zero, zero, nil
		}
	}

	switch op {
	case alg.NEG:
		return store.Const(-1), zero, nil
	case alg.EXP:
		return node, zero, nil
	case alg.LOG:
		return store.Binary(alg.DIV, one, x), zero, nil
	case alg.SIN:
		return store.Unary(alg.COS, x), zero, nil
	case alg.COS:
		return store.Unary(alg.NEG, store.Unary(alg.SIN, x)), zero, nil
	case alg.TAN:
		return store.Binary(alg.ADD, one, store.Binary(alg.MUL, node, node)), zero, nil
	case alg.ASIN:
		return store.Binary(alg.DIV, one, store.Unary(alg.SQRT, store.Binary(alg.SUB, one, store.Binary(alg.MUL, x, x)))), zero, nil
	case alg.ACOS:
		return store.Unary(alg.NEG, store.Binary(alg.DIV, one, store.Unary(alg.SQRT, store.Binary(alg.SUB, one, store.Binary(alg.MUL, x, x))))), zero, nil
	case alg.ATAN:
		return store.Binary(alg.DIV, one, store.Binary(alg.ADD, one, store.Binary(alg.MUL, x, x))), zero, nil
	case alg.SINH:
		return store.Unary(alg.COSH, x), zero, nil
	case alg.COSH:
		return store.Unary(alg.SINH, x), zero, nil
	case alg.TANH:
		return store.Binary(alg.SUB, one, store.Binary(alg.MUL, node, node)), zero, nil
	case alg.SQ:
		return store.Binary(alg.MUL, store.Const(2), x), zero, nil
	case alg.SQRT:
		return store.Binary(alg.DIV, one, store.Binary(alg.MUL, store.Const(2), node)), zero, nil
	case alg.TWICE:
		return store.Const(2), zero, nil
	case alg.INV:
		return store.Unary(alg.NEG, store.Binary(alg.MUL, node, node)), zero, nil
	case alg.FABS:
		return store.Unary(alg.SIGN, x), zero, nil
	case alg.SIGN, alg.FLOOR, alg.CEIL, alg.NOT:
		return zero, zero, nil
	default:
		return zero, zero, nil
	}
}
