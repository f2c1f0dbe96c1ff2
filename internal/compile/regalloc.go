package compile

import (
	"sx/internal/alg"
	"sx/internal/calltable"
)

// allocateRegisters rewrites algorithm and callTable in place, replacing
// every node-index-addressed slot emit.go produced with a work-vector
// register. With live enabled it reuses a register as soon as its last
// consumer has read it (live-range allocation, LIFO reuse order); with live
// disabled every produced value gets its own register for the lifetime of
// the evaluation, and worksize equals the node count (the LiveVariables
// option). It returns the register count the compiled Function must
// reserve as its Worksize.
func allocateRegisters(numNodes int32, algorithm []alg.AlgEl, callTable []calltable.CallEntry, live bool) uint32 {
	refcount := make([]int32, numNodes)
	use := func(ni uint32) { refcount[ni]++ }

	for _, e := range algorithm {
		switch e.Op {
		case alg.CONST, alg.PARAMETER, alg.INPUT, alg.CALL:
		case alg.OUTPUT:
			use(e.I1)
		default:
			use(e.I1)
			if e.Op.IsBinary() {
				use(e.I2)
			}
		}
	}
	for _, ce := range callTable {
		for _, d := range ce.Dep {
			use(d)
		}
	}

	place := make([]int32, numNodes)
	for i := range place {
		place[i] = -1
	}

	var freeSlots []uint32
	var nextSlot uint32

	allocSlot := func(ni uint32) uint32 {
		var slot uint32
		if live && len(freeSlots) > 0 {
			slot = freeSlots[len(freeSlots)-1]
			freeSlots = freeSlots[:len(freeSlots)-1]
		} else {
			slot = nextSlot
			nextSlot++
		}
		place[ni] = int32(slot)
		return slot
	}

	// release translates ni's slot, decrements its refcount, and returns the
	// slot to the free pool once nothing later reads it.
	release := func(ni uint32) uint32 {
		slot := uint32(place[ni])
		refcount[ni]--
		if refcount[ni] == 0 && live {
			freeSlots = append(freeSlots, slot)
		}
		return slot
	}

	callOfAlgIndex := make(map[int]int, len(callTable))
	for i, e := range algorithm {
		if e.Op == alg.CALL {
			callOfAlgIndex[i] = int(e.I1)
		}
	}

	for i := range algorithm {
		e := &algorithm[i]
		switch e.Op {
		case alg.CONST, alg.PARAMETER, alg.INPUT:
			e.I0 = allocSlot(e.I0)

		case alg.OUTPUT:
			e.I1 = release(e.I1)

		case alg.CALL:
			ce := &callTable[callOfAlgIndex[i]]
			for k, d := range ce.Dep {
				ce.Dep[k] = release(d)
			}
			for k, o := range ce.Out {
				if o != calltable.NoOutput {
					ce.Out[k] = allocSlot(o)
				}
			}

		default:
			if e.Op.IsBinary() {
				b := release(e.I2)
				a := release(e.I1)
				e.I0 = allocSlot(e.I0)
				e.I1, e.I2 = a, b
			} else {
				a := release(e.I1)
				e.I0 = allocSlot(e.I0)
				e.I1, e.I2 = a, a
			}
		}
	}

	return nextSlot
}
