// Package eval implements the six evaluation sweeps a compiled alg.Function
// supports: double-precision forward (EvalDouble), symbolic forward with
// CSE (EvalSX), forward- and reverse-mode automatic differentiation
// (ADForward/ADReverse, sharing a tape built once per nominal point by
// BuildTape), and forward/reverse bit-pattern sparsity propagation
// (SPForward/SPReverse). Every sweep is reentrant and touches only
// caller-supplied scratch, so independent Function handles may be evaluated
// concurrently.
package eval

import "sx/internal/calltable"

// packInputs gathers a CALL's scalar dependencies out of the primary work
// vector into a fresh, input-arity-shaped 2D buffer, ready to hand to the
// sub-function's own Eval/EvalSparsityForward/EvalSparsityReverse.
func packInputs[T any](nnz []int, dep []uint32, w []T) [][]T {
	out := make([][]T, len(nnz))
	pos := 0
	for i, n := range nnz {
		seg := make([]T, n)
		for k := 0; k < n; k++ {
			seg[k] = w[dep[pos+k]]
		}
		out[i] = seg
		pos += n
	}
	return out
}

// packOutputs allocates a fresh output-arity-shaped 2D buffer for a CALL's
// sub-function to write into.
func packOutputs[T any](nnz []int) [][]T {
	out := make([][]T, len(nnz))
	for i, n := range nnz {
		out[i] = make([]T, n)
	}
	return out
}

// scatterOutputs writes a CALL's packed output buffer back into the primary
// work vector at each bound destination slot, skipping outputs nothing
// downstream uses (calltable.NoOutput, invariant 3).
func scatterOutputs[T any](nnz []int, outSlots []uint32, packed [][]T, w []T) {
	pos := 0
	for i, n := range nnz {
		for k := 0; k < n; k++ {
			if slot := outSlots[pos]; slot != calltable.NoOutput {
				w[slot] = packed[i][k]
			}
			pos++
		}
	}
}

// orInto ORs a CALL's packed sparsity output buffer back into the primary
// bit-vector work slots; used instead of scatterOutputs because reverse
// sparsity propagation accumulates rather than overwrites.
func orInto(nnz []int, outSlots []uint32, packed [][]uint64, w []uint64) {
	pos := 0
	for i, n := range nnz {
		for k := 0; k < n; k++ {
			if slot := outSlots[pos]; slot != calltable.NoOutput {
				w[slot] |= packed[i][k]
			}
			pos++
		}
	}
}
