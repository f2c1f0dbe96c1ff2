// Package expr implements the immutable DAG of scalar symbolic expression
// nodes that the compiler (package compile) walks: an arena of u32-indexed
// handles in place of reference-counted node pointers, so a handle may only
// ever reference an earlier-allocated node and the DAG cannot contain a
// cycle by construction.
package expr

import (
	"fmt"

	"sx/internal/alg"
	"sx/internal/calltable"
	"sx/internal/ref"
)

// Handle is a 1-based index into a Store's arena; the zero Handle is the nil
// sentinel used as a topological-sort separator. It is a
// type alias for ref.Handle so callers outside this package (alg,
// calltable) can record handles in their own bookkeeping without importing
// the arena itself.
type Handle = ref.Handle

// Nil is the sentinel handle referencing no node.
const Nil = ref.Nil

type node struct {
	op   alg.OpCode
	deps []Handle // unary: len 1; binary: len 2; CALL: n_dep; else: nil
	val  float64  // CONST value
	name string   // symbolic leaf / CALL name
	fn   calltable.Function
	idx  int // OUTPUT_EXTRACT: flat scalar index into the parent CALL's outputs
}

// Store is the arena: an append-only slice of nodes addressed by Handle.
// It is built once and is immutable once a Function has been compiled from
// it; the compiler's own scratch ("temp") lives in a parallel
// slice outside the Store, not on the node record, so two independent
// compiles never share mutable node state even when they reference the
// same arena.
type Store struct {
	nodes []node
}

// NewStore returns an empty expression arena.
func NewStore() *Store { return &Store{} }

// Len returns the number of live nodes, used by the compiler to size its
// parallel temp/visited arrays.
func (s *Store) Len() int { return len(s.nodes) }

func (s *Store) alloc(n node) Handle {
	s.nodes = append(s.nodes, n)
	return Handle(len(s.nodes))
}

func (s *Store) at(h Handle) *node {
	if h.IsNil() {
		panic("expr: nil handle dereferenced")
	}
	return &s.nodes[h-1]
}

// Const allocates a constant leaf.
func (s *Store) Const(v float64) Handle {
	return s.alloc(node{op: alg.CONST, val: v})
}

// Symbol allocates a named symbolic leaf. Until bound as a declared
// function input by the compiler's post-pass, it compiles to a tentative
// PARAMETER instruction.
func (s *Store) Symbol(name string) Handle {
	return s.alloc(node{op: alg.PARAMETER, name: name})
}

// Unary allocates a one-argument arithmetic node.
func (s *Store) Unary(op alg.OpCode, x Handle) Handle {
	if !op.IsUnary() {
		panic(fmt.Sprintf("expr: %s is not a unary op", op))
	}
	return s.alloc(node{op: op, deps: []Handle{x}})
}

// Binary allocates a two-argument arithmetic node.
func (s *Store) Binary(op alg.OpCode, x, y Handle) Handle {
	if !op.IsBinary() {
		panic(fmt.Sprintf("expr: %s is not a binary op", op))
	}
	return s.alloc(node{op: op, deps: []Handle{x, y}})
}

// Call allocates a CALL node invoking f with the given scalar dependencies,
// plus one OUTPUT_EXTRACT node per scalar nonzero of every output of f, and
// returns those handles flattened in (output, nonzero) order — these are the
// only handles downstream expressions may reference; the CALL node itself is
// never an operand. A vector-valued output (NNZOut(i) > 1) gets one
// OUTPUT_EXTRACT per scalar entry, not one for the whole output, so each
// entry can be independently referenced, shared, or left unused.
func (s *Store) Call(f calltable.Function, deps []Handle) []Handle {
	callHandle := s.alloc(node{op: alg.CALL, deps: append([]Handle(nil), deps...), name: f.Name(), fn: f})
	total := 0
	for i := 0; i < f.NOut(); i++ {
		total += f.NNZOut(i)
	}
	outs := make([]Handle, total)
	for i := range outs {
		outs[i] = s.alloc(node{op: alg.OUTPUT_EXTRACT, deps: []Handle{callHandle}, idx: i})
	}
	return outs
}

// Op returns h's opcode.
func (s *Store) Op(h Handle) alg.OpCode { return s.at(h).op }

// NumDeps returns the number of operand/dependency handles h carries.
func (s *Store) NumDeps(h Handle) int { return len(s.at(h).deps) }

// Dep returns h's i-th operand/dependency handle.
func (s *Store) Dep(h Handle, i int) Handle { return s.at(h).deps[i] }

// Deps returns h's full dependency slice (read-only; callers must not
// mutate it).
func (s *Store) Deps(h Handle) []Handle { return s.at(h).deps }

// IsConstant reports whether h is a CONST leaf.
func (s *Store) IsConstant(h Handle) bool { return s.at(h).op == alg.CONST }

// IsSymbolic reports whether h is a still-unbound symbolic leaf
// (PARAMETER). The compiler's input-binding post-pass rewrites only the
// emitted AlgEl of a bound symbol to INPUT; the arena node stays PARAMETER,
// so IsSymbolic stays a property of the node, not of compilation state.
func (s *Store) IsSymbolic(h Handle) bool { return s.at(h).op == alg.PARAMETER }

// ToDouble returns h's constant value and true iff h is a CONST leaf.
func (s *Store) ToDouble(h Handle) (float64, bool) {
	n := s.at(h)
	if n.op != alg.CONST {
		return 0, false
	}
	return n.val, true
}

// Name returns a symbolic leaf's or CALL's declared name.
func (s *Store) Name(h Handle) string { return s.at(h).name }

// CallFunction returns the external Function a CALL node invokes.
func (s *Store) CallFunction(h Handle) calltable.Function { return s.at(h).fn }

// OutputIndex returns an OUTPUT_EXTRACT node's flat scalar index into its
// parent CALL's outputs (i.e. its position in the flattened (output,
// nonzero) order Call produced it in, not the declared output's own index).
func (s *Store) OutputIndex(h Handle) int { return s.at(h).idx }

// Parent returns an OUTPUT_EXTRACT node's parent CALL handle.
func (s *Store) Parent(h Handle) Handle { return s.at(h).deps[0] }

// StructurallyEqualDepth2 reports whether a and b have the same shape down
// to two levels of nesting: same opcode (and, for CONST, the same value;
// for PARAMETER, the same name), and each child equal by opcode one level
// further. This backs assignIfDuplicate in the symbolic dispatch sweep,
// which reuses an original subexpression handle instead of allocating a
// fresh structurally-identical one.
func (s *Store) StructurallyEqualDepth2(a, b Handle) bool {
	return s.equalDepth(a, b, 2)
}

func (s *Store) equalDepth(a, b Handle, depth int) bool {
	if a == b {
		return true
	}
	if a.IsNil() || b.IsNil() {
		return false
	}
	na, nb := s.at(a), s.at(b)
	if na.op != nb.op {
		return false
	}
	switch na.op {
	case alg.CONST:
		return na.val == nb.val
	case alg.PARAMETER:
		return na.name == nb.name
	}
	if len(na.deps) != len(nb.deps) {
		return false
	}
	if depth == 0 {
		return true
	}
	for i := range na.deps {
		if !s.equalDepth(na.deps[i], nb.deps[i], depth-1) {
			return false
		}
	}
	return true
}
