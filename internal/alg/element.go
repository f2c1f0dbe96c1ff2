package alg

// AlgEl is one compiled instruction. Field interpretation is keyed by Op:
//
//	op             i0            i1            i2              d
//	INPUT          dst slot      input index   nonzero index   —
//	OUTPUT         output index  src slot      nonzero index   —
//	CONST          dst slot      —             —               value
//	PARAMETER      dst slot      —             —               —
//	CALL           dst (unused)  call index    —               —
//	unary op       dst slot      arg slot      arg slot (=i1)  —
//	binary op      dst slot      lhs slot      rhs slot        —
//
// Invariant: for every unary op, I2 == I1 — this keeps the interpreter
// branchless on arity.
type AlgEl struct {
	Op     OpCode
	I0, I1, I2 uint32
	D      float64
}

// CallIndex returns the call-table index of a CALL instruction.
func (e AlgEl) CallIndex() uint32 { return e.I1 }
