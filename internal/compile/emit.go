package compile

import (
	"sx/internal/alg"
	"sx/internal/calltable"
	"sx/internal/expr"
	"sx/internal/ref"
)

// emitResult bundles everything the instruction emitter produces, prior to
// register allocation.
type emitResult struct {
	algorithm  []alg.AlgEl
	callTable  []calltable.CallEntry
	constants  []expr.Handle
	operations []expr.Handle
	freeVars   []expr.Handle
}

// emit walks the sorted node list, classifying each node into a flat AlgEl
// stream and running the input-binding post-pass. Slots in
// the returned algorithm still name node indices (nodeIndex), not work
// registers — regalloc.go renumbers them in a second pass.
func emit(store *expr.Store, nodes []expr.Handle, nodeIndex []int32, numNodes int32, flat []outputRef, inputs [][]expr.Handle) emitResult {
	algIndexOf := make([]int32, numNodes)
	for i := range algIndexOf {
		algIndexOf[i] = -1
	}

	var res emitResult
	symbLoc := make(map[expr.Handle]int) // handle -> index into algorithm of its tentative PARAMETER
	var symbOrder []expr.Handle          // encounter order, for free_vars ordering

	outPos := 0
	for _, h := range nodes {
		if h.IsNil() {
			or := flat[outPos]
			outPos++
			srcIdx := nodeIndex[or.handle]
			res.algorithm = append(res.algorithm, alg.AlgEl{
				Op: alg.OUTPUT,
				I0: uint32(or.outIndex),
				I1: uint32(srcIdx),
				I2: uint32(or.nzIndex),
			})
			continue
		}

		ni := nodeIndex[h]
		op := store.Op(h)

		switch {
		case op == alg.CONST:
			v, _ := store.ToDouble(h)
			algIndexOf[ni] = int32(len(res.algorithm))
			res.algorithm = append(res.algorithm, alg.AlgEl{Op: alg.CONST, I0: uint32(ni), D: v})
			res.constants = append(res.constants, h)

		case op == alg.PARAMETER:
			algIndexOf[ni] = int32(len(res.algorithm))
			symbLoc[h] = len(res.algorithm)
			symbOrder = append(symbOrder, h)
			res.algorithm = append(res.algorithm, alg.AlgEl{Op: alg.PARAMETER, I0: uint32(ni)})

		case op == alg.CALL:
			f := store.CallFunction(h)
			deps := store.Deps(h)
			entry := calltable.CallEntry{F: f}
			entry.Dep = make([]uint32, len(deps))
			entry.OrigDep = append([]ref.Handle(nil), deps...)
			for k, d := range deps {
				entry.Dep[k] = uint32(nodeIndex[d])
			}
			entry.FNNZIn = make([]int, f.NIn())
			for k := range entry.FNNZIn {
				entry.FNNZIn[k] = f.NNZIn(k)
			}
			entry.FNNZOut = make([]int, f.NOut())
			totalOut := 0
			for k := range entry.FNNZOut {
				entry.FNNZOut[k] = f.NNZOut(k)
				totalOut += entry.FNNZOut[k]
			}
			// Out/OutSX are indexed by flat scalar position across every
			// output (matching expr.Store.Call's OUTPUT_EXTRACT numbering
			// and scatterOutputs/orInto's pos accumulation), not by declared
			// output count: an output with NNZOut > 1 needs one destination
			// slot per scalar entry.
			entry.Out = make([]uint32, totalOut)
			for k := range entry.Out {
				entry.Out[k] = calltable.NoOutput
			}
			entry.OutSX = make([]ref.Handle, totalOut)
			res.callTable = append(res.callTable, entry)
			callIdx := len(res.callTable) - 1
			algIndexOf[ni] = int32(len(res.algorithm))
			res.algorithm = append(res.algorithm, alg.AlgEl{Op: alg.CALL, I0: uint32(ni), I1: uint32(callIdx)})
			res.operations = append(res.operations, h)

		case op == alg.OUTPUT_EXTRACT:
			parent := store.Parent(h)
			parentOff := algIndexOf[nodeIndex[parent]]
			callIdx := res.algorithm[parentOff].I1
			oi := store.OutputIndex(h)
			res.callTable[callIdx].Out[oi] = uint32(ni)
			res.callTable[callIdx].OutSX[oi] = h
			// No AlgEl of its own (invariant 5): the node's value lives in
			// whatever slot the CALL instruction's Out[oi] resolves to.

		default: // unary/binary arithmetic
			deps := store.Deps(h)
			algIndexOf[ni] = int32(len(res.algorithm))
			d0 := uint32(nodeIndex[deps[0]])
			d1 := d0
			if op.IsBinary() {
				d1 = uint32(nodeIndex[deps[1]])
			}
			res.algorithm = append(res.algorithm, alg.AlgEl{Op: op, I0: uint32(ni), I1: d0, I2: d1})
			res.operations = append(res.operations, h)
		}
	}

	// Post-pass: bind declared inputs, rewriting tentative PARAMETER
	// instructions to INPUT.
	for i, nzs := range inputs {
		for j, h := range nzs {
			if off, ok := symbLoc[h]; ok {
				res.algorithm[off].Op = alg.INPUT
				res.algorithm[off].I1 = uint32(i)
				res.algorithm[off].I2 = uint32(j)
				delete(symbLoc, h)
			}
		}
	}
	for _, h := range symbOrder {
		if _, stillFree := symbLoc[h]; stillFree {
			res.freeVars = append(res.freeVars, h)
		}
	}

	return res
}
