package alg

import (
	"fmt"
	"io"
	"strings"

	"sx/internal/calltable"
	"sx/internal/ref"
)

// Options is the exact four-key configuration set the compiler accepts.
// Being a typed struct, it has no way to carry an unrecognized option name.
type Options struct {
	// DefaultIn records a default value per function input (its length must
	// equal NIn, or zero to mean "all zero"). It is stored on the compiled
	// Function and serialized with it; the evaluation sweeps do not read it
	// and treat a nil input as all zeros.
	DefaultIn []float64

	// LiveVariables enables the live-range register allocator; when false,
	// every node gets a fresh slot and worksize equals the node count.
	LiveVariables bool

	// JustInTimeOpenCL and JustInTimeSparsity must both be false; they are
	// accepted as configuration only to be rejected with a clear error.
	JustInTimeOpenCL   bool
	JustInTimeSparsity bool
}

// DefaultOptions returns the baseline defaults: no default input values,
// live-variable allocation on, both JIT flags off.
func DefaultOptions() Options {
	return Options{LiveVariables: true}
}

// Function is the complete, immutable result of compiling a DAG of scalar
// outputs over a DAG of scalar inputs. It is written once by package compile
// and safe for concurrent evaluation from multiple goroutines given
// separate arg/res/iw/w buffers.
type Function struct {
	Name    string
	InNames  []string
	OutNames []string

	// NIn/NOut are the number of declared (vector) inputs/outputs; NNZIn/
	// NNZOut give the nonzero-scalar count of each, in declaration order.
	NNZIn  []int
	NNZOut []int

	Algorithm []AlgEl
	CallTable []calltable.CallEntry
	Worksize  uint32

	// Operations/Constants/FreeVars are recorded in encounter order during
	// compilation and consumed by the AD tape builder and by diagnostics.
	Operations []ref.Handle
	Constants  []ref.Handle
	FreeVars   []ref.Handle

	DefaultIn []float64

	calltable.Sizes
}

// IsSmooth reports whether Algorithm contains no non-smooth instruction:
// abs, sign/floor/ceil, min/max, if_else_zero, or any comparison. CALL
// instructions are opaque and never counted as
// non-smooth by this classification — the callee's own IsSmooth (if it
// exposes one) is a separate question.
func (f *Function) IsSmooth() bool {
	for _, e := range f.Algorithm {
		if e.Op.IsNonSmooth() {
			return false
		}
	}
	return true
}

// SzArg/SzRes/SzIW report the buffer sizes this Function itself needs as a
// sub-call (i.e. if embedded inside another Function's CALL instruction):
// one slot per declared input/output, plus the integer scratch its own
// embedded calls need.
func (f *Function) SzArg() int { return len(f.NNZIn) }
func (f *Function) SzRes() int { return len(f.NNZOut) }
func (f *Function) SzIW() int  { return f.Sizes.SzIW }

// SzW reports the scalar work-vector size this Function needs as a whole:
// its own worksize plus the scratch region reserved for its own embedded
// CALL instructions, sized additively rather than shared across sub-calls.
func (f *Function) SzW() int {
	return int(f.Worksize) + f.Sizes.SzW + f.Sizes.SzWArg + f.Sizes.SzWRes
}

func (f *Function) NIn() int  { return len(f.NNZIn) }
func (f *Function) NOut() int { return len(f.NNZOut) }

func (f *Function) NNZInAt(i int) int  { return f.NNZIn[i] }
func (f *Function) NNZOutAt(i int) int { return f.NNZOut[i] }

// DispMore writes a human-readable dump of the compiled algorithm, one line
// per instruction, temporaries named "@k", outputs as "output[i][j] = @k".
func (f *Function) DispMore(w io.Writer) {
	fmt.Fprintf(w, "%s(", f.Name)
	fmt.Fprint(w, strings.Join(f.InNames, ", "))
	fmt.Fprintf(w, ") -> (%s)\n", strings.Join(f.OutNames, ", "))

	for _, e := range f.Algorithm {
		switch e.Op {
		case CONST:
			fmt.Fprintf(w, "  @%d = %v\n", e.I0, e.D)
		case PARAMETER:
			fmt.Fprintf(w, "  @%d = param\n", e.I0)
		case INPUT:
			fmt.Fprintf(w, "  @%d = input[%d][%d]\n", e.I0, e.I1, e.I2)
		case OUTPUT:
			fmt.Fprintf(w, "  output[%d][%d] = @%d\n", e.I0, e.I2, e.I1)
		case CALL:
			fmt.Fprintf(w, "  @%d = call(%s)\n", e.I0, f.CallTable[e.I1].F.Name())
		default:
			if e.Op.IsUnary() {
				fmt.Fprintf(w, "  @%d = %s(@%d)\n", e.I0, strings.ToLower(e.Op.String()), e.I1)
			} else {
				fmt.Fprintf(w, "  @%d = %s(@%d, @%d)\n", e.I0, strings.ToLower(e.Op.String()), e.I1, e.I2)
			}
		}
	}
}
