// Package calltable defines the opaque external-function collaborator
// invoked by an embedded CALL instruction, and the per-invocation binding
// record (CallEntry).
package calltable

import "sx/internal/ref"

// Function is the narrow seam through which the core reaches an opaque
// external function (an MX function, a map/parallel wrapper, an NLP solver
// binding, or another compiled SX function) without knowing its internals.
// Implementations must be reentrant and pure with respect to their scratch
// arguments.
type Function interface {
	Name() string
	NIn() int
	NOut() int
	NNZIn(i int) int
	NNZOut(i int) int
	SzArg() int
	SzRes() int
	SzIW() int
	SzW() int

	// Eval runs the double-precision evaluation: arg[i] is nil iff that
	// input was not supplied (treated as all-zero by the callee), res[i] is
	// nil iff that output is not requested. iw/w are caller-owned scratch
	// sized per SzIW/SzW.
	Eval(arg [][]float64, res [][]float64, iw []int32, w []float64) error

	// EvalSparsityForward runs the bit-pattern forward sweep: ORs input
	// dependency bits through to output dependency bits.
	EvalSparsityForward(arg [][]uint64, res [][]uint64, iw []int32, w []uint64) error

	// EvalSparsityReverse runs the bit-pattern reverse sweep.
	EvalSparsityReverse(arg [][]uint64, res [][]uint64, iw []int32, w []uint64) error

	// Forward returns a new Function computing nfwd forward-mode directional
	// derivatives (nominal inputs followed by nfwd seed directions per
	// input, producing nfwd sensitivity directions per output).
	Forward(nfwd int) (Function, error)

	// Reverse returns a new Function computing nadj reverse-mode adjoint
	// directions (nominal inputs followed by nadj seed directions per
	// output, producing nadj sensitivity directions per input).
	Reverse(nadj int) (Function, error)
}

// CallEntry is one side-table entry for an embedded CALL instruction.
type CallEntry struct {
	F Function

	// Dep holds the work-vector slots feeding F's packed input, one per
	// scalar dependency (n_dep == len(Dep)).
	Dep []uint32

	// OrigDep caches the original symbolic dependency handles, in the same
	// order as Dep, as they stood when this call was bound (before register
	// allocation rewrote Dep to slots). The symbolic sweep compares a
	// re-evaluation's substituted dependencies against these to decide
	// whether the cached OutSX can be reused unchanged.
	OrigDep []ref.Handle

	// Out holds destination slots for each of F's scalar outputs, indexed
	// by flat scalar position across every declared output; Out[i] ==
	// NoOutput marks an output scalar that is unused downstream (it is set
	// iff the symbolic output was actually used).
	Out []uint32

	// FNNZIn/FNNZOut record F's per-input/per-output nonzero arities at the
	// time of binding, cached so the dispatch loop never has to query F.
	FNNZIn  []int
	FNNZOut []int

	// OutSX caches the symbolic output expressions the symbolic sweep uses
	// to preserve identity across re-evaluations, one handle per flat
	// scalar output position (ref.Nil where that output is not used
	// downstream).
	OutSX []ref.Handle
}

// NoOutput marks an unused CALL output slot (Out[i] == NoOutput).
const NoOutput = ^uint32(0)

// Sizes is the set of maxima (sz_arg/sz_res/sz_iw/sz_w/sz_w_arg/sz_w_res)
// computed across every CallEntry in a compiled Function's call table,
// sufficient to size one shared scratch region for any single active CALL.
type Sizes struct {
	SzArg, SzRes, SzIW, SzW, SzWArg, SzWRes int
}

// Accumulate folds one entry's sizing requirements into s, keeping maxima
// across calls even though the outer Function buffer allocates the result
// additively alongside its own worksize.
func (s *Sizes) Accumulate(e *CallEntry) {
	s.SzArg = max(s.SzArg, e.F.SzArg())
	s.SzRes = max(s.SzRes, e.F.SzRes())
	s.SzIW = max(s.SzIW, e.F.SzIW())
	s.SzW = max(s.SzW, e.F.SzW())
	s.SzWArg = max(s.SzWArg, len(e.Dep))
	s.SzWRes = max(s.SzWRes, len(e.Out))
}
