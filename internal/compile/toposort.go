// Package compile implements the core compiler: topological sort (this
// file), instruction emission (emit.go), and live-range register allocation
// (regalloc.go), orchestrated by NewFunction in compile.go.
package compile

import (
	"math"

	cerrors "sx/internal/errors"
	"sx/internal/expr"
)

// outputRef names one scalar nonzero entry of one declared output, in the
// order the topological sort must visit them: for each output o, for each
// of its nonzero scalar entries in column/row traversal order.
type outputRef struct {
	handle         expr.Handle
	outIndex, nzIndex int
}

// flattenOutputs builds the ordered (output, nonzero) worklist the sorter
// and emitter both walk. An output with zero nonzeros contributes no
// entries — invariant 4 ("output indices are visited in order, skipping
// outputs of zero nonzero count") falls out of this for free.
func flattenOutputs(outputs [][]expr.Handle) []outputRef {
	var flat []outputRef
	for oi, nzs := range outputs {
		for nz, h := range nzs {
			flat = append(flat, outputRef{handle: h, outIndex: oi, nzIndex: nz})
		}
	}
	return flat
}

// topoSort performs an iterative depth-first post-order traversal: an
// explicit stack drives the walk so the DAG's depth never risks Go's call
// stack, a node's "visited" mark is its nodeIndex, set when it is emitted
// (a shared node may sit on the stack more than once, but only its first
// pop after expansion emits it; later copies are discarded, so a
// diamond-shaped DAG is expanded only once per shared node and every node
// follows all of its children), and children are pushed in reverse order so
// they pop — and so emit — left before right, matching each op's intrinsic
// dependency order.
//
// It returns nodes (the sorted list, with the nil handle marking the point
// after each output nonzero's subtree where its OUTPUT instruction belongs)
// and nodeIndex, a dense 0-based id per visited node ("temp") used by
// emit.go and regalloc.go to address slots before register allocation has
// assigned real ones.
func topoSort(store *expr.Store, functionName string, flat []outputRef) (nodes []expr.Handle, nodeIndex []int32, numNodes int32, err error) {
	n := store.Len()
	nodeIndex = make([]int32, n+1)
	for i := range nodeIndex {
		nodeIndex[i] = -1
	}
	nodes = make([]expr.Handle, 0, n+len(flat))

	type frame struct {
		h        expr.Handle
		expanded bool
	}
	var stack []frame
	var counter int32

	pushChild := func(d expr.Handle) {
		if d.IsNil() || nodeIndex[d] >= 0 {
			return
		}
		stack = append(stack, frame{h: d})
	}

	for _, ref := range flat {
		root := ref.handle
		if nodeIndex[root] < 0 {
			stack = append(stack, frame{h: root})
			for len(stack) > 0 {
				top := len(stack) - 1
				if nodeIndex[stack[top].h] >= 0 {
					stack = stack[:top] // already emitted via another path
					continue
				}
				if !stack[top].expanded {
					stack[top].expanded = true
					h := stack[top].h
					deps := store.Deps(h)
					for i := len(deps) - 1; i >= 0; i-- {
						pushChild(deps[i])
					}
					continue
				}
				h := stack[top].h
				stack = stack[:top]
				if counter == math.MaxInt32 {
					return nil, nil, 0, cerrors.NewIntegerOverflowError(functionName,
						"expression node count exceeds the 32-bit signed range")
				}
				nodes = append(nodes, h)
				nodeIndex[h] = counter
				counter++
			}
		}
		nodes = append(nodes, expr.Nil)
	}
	return nodes, nodeIndex, counter, nil
}
