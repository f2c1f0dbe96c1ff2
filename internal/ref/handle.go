// Package ref defines the node-handle type shared by package expr (which
// allocates handles into its arena) and package alg/calltable (which record
// handles in a compiled Function's bookkeeping lists without needing to
// import the arena itself). Splitting this one type into its own package
// keeps expr -> alg -> calltable a DAG instead of a cycle.
package ref

// Handle is a 1-based index into an expr.Store's arena; the zero Handle is
// the nil sentinel.
type Handle uint32

// Nil is the sentinel handle referencing no node.
const Nil Handle = 0

// IsNil reports whether h is the nil sentinel.
func (h Handle) IsNil() bool { return h == Nil }
