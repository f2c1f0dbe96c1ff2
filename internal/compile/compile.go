package compile

import (
	"sx/internal/alg"
	cerrors "sx/internal/errors"
	"sx/internal/expr"
)

// NewFunction compiles a declared set of scalar outputs over a declared set
// of scalar inputs into a Function: topological sort, then instruction
// emission, then live-range register allocation, then sizing.
//
// name identifies the function for diagnostics. inNames/outNames label each
// declared (vector) input/output. inputs[i] lists the symbolic leaf handles
// of input i's nonzero scalar entries, in declaration order; outputs[j]
// lists the expression handles of output j's nonzero scalar entries, in the
// same order. opts is validated before any compilation work begins.
func NewFunction(store *expr.Store, name string, inNames, outNames []string, inputs, outputs [][]expr.Handle, opts alg.Options) (*alg.Function, error) {
	if err := validateOptions(name, opts); err != nil {
		return nil, err
	}
	if len(inNames) != len(inputs) {
		return nil, cerrors.NewConfigurationError(name, "inNames and inputs must have the same length")
	}
	if len(outNames) != len(outputs) {
		return nil, cerrors.NewConfigurationError(name, "outNames and outputs must have the same length")
	}
	if opts.DefaultIn != nil && len(opts.DefaultIn) != len(inputs) {
		return nil, cerrors.NewConfigurationError(name, "default_in length must equal the number of declared inputs")
	}

	flat := flattenOutputs(outputs)

	nodes, nodeIndex, numNodes, err := topoSort(store, name, flat)
	if err != nil {
		return nil, err
	}

	res := emit(store, nodes, nodeIndex, numNodes, flat, inputs)

	worksize := allocateRegisters(numNodes, res.algorithm, res.callTable, opts.LiveVariables)

	f := &alg.Function{
		Name:      name,
		InNames:   append([]string(nil), inNames...),
		OutNames:  append([]string(nil), outNames...),
		NNZIn:     nnzOf(inputs),
		NNZOut:    nnzOf(outputs),
		Algorithm: res.algorithm,
		CallTable: res.callTable,
		Worksize:  worksize,
		Operations: res.operations,
		Constants:  res.constants,
		FreeVars:   res.freeVars,
		DefaultIn:  opts.DefaultIn,
	}
	for i := range f.CallTable {
		f.Sizes.Accumulate(&f.CallTable[i])
	}
	return f, nil
}

func nnzOf(vecs [][]expr.Handle) []int {
	out := make([]int, len(vecs))
	for i, v := range vecs {
		out[i] = len(v)
	}
	return out
}

// validateOptions rejects the two JIT flags this implementation accepts
// only to reject: there is no OpenCL or sparsity-JIT backend.
func validateOptions(name string, opts alg.Options) error {
	if opts.JustInTimeOpenCL {
		return cerrors.NewConfigurationError(name, "just_in_time_opencl is not supported")
	}
	if opts.JustInTimeSparsity {
		return cerrors.NewConfigurationError(name, "just_in_time_sparsity is not supported")
	}
	return nil
}
