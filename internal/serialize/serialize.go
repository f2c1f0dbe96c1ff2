// Package serialize implements the tag-and-payload wire format for a
// compiled alg.Function (the persisted state layout) and a pluggable
// database/sql persistence layer built on top of it (store.go).
//
// Every field is written in a fixed order: magic, version, name, in_names,
// out_names, nnz_in, nnz_out, n_instr, worksize, free_vars, operations,
// constants, default_in, the six call-table size maxima, call_nodes_size,
// then per call node (f, dep, orig_dep, out, out_sx, f_nnz_in, f_nnz_out),
// then algorithm_size and per algorithm element (op, i0, i1, i2, plus
// const_val for a CONST). Tags are
// free-form strings used only for integrity (a reader that desyncs trips
// over a garbage length prefix quickly); they carry no dispatch meaning, so
// Deserialize reads back in exactly the order Serialize wrote.
package serialize

import (
	"encoding/binary"
	"fmt"
	"io"

	"sx/internal/alg"
	"sx/internal/calltable"
	"sx/internal/ref"
)

// MagicNumber and Version identify the wire format, the same pattern the
// teacher's bytecode file header uses.
const (
	MagicNumber uint32 = 0x53584643 // "SXFC"
	Version     uint32 = 1
)

// Resolver recovers a calltable.Function from the stable name it was
// serialized under. Serialize never needs one (it only ever writes
// F.Name()); Deserialize needs one to re-establish the opaque external
// collaborators a CallEntry binds to — the finalize step that
// re-establishes shared resources.
type Resolver func(name string) (calltable.Function, error)

// Serializer wraps an io.Writer with the tagged-primitive vocabulary the
// wire format is built from. The first error encountered is sticky: once
// set, every subsequent write is a no-op, so a caller can chain writes and
// check Err once at the end.
type Serializer struct {
	w   io.Writer
	err error
}

// NewSerializer returns a Serializer writing to w.
func NewSerializer(w io.Writer) *Serializer {
	return &Serializer{w: w}
}

// Err returns the first error this Serializer encountered, if any.
func (s *Serializer) Err() error { return s.err }

func (s *Serializer) fail(tag string, err error) {
	if s.err == nil {
		s.err = fmt.Errorf("serialize: writing %q: %w", tag, err)
	}
}

func (s *Serializer) tag(tag string) {
	if s.err != nil {
		return
	}
	if err := binary.Write(s.w, binary.LittleEndian, uint32(len(tag))); err != nil {
		s.fail(tag, err)
		return
	}
	if _, err := io.WriteString(s.w, tag); err != nil {
		s.fail(tag, err)
	}
}

// I32 writes a tagged int32.
func (s *Serializer) I32(tag string, v int32) {
	s.tag(tag)
	if s.err != nil {
		return
	}
	if err := binary.Write(s.w, binary.LittleEndian, v); err != nil {
		s.fail(tag, err)
	}
}

// U32 writes a tagged uint32.
func (s *Serializer) U32(tag string, v uint32) {
	s.tag(tag)
	if s.err != nil {
		return
	}
	if err := binary.Write(s.w, binary.LittleEndian, v); err != nil {
		s.fail(tag, err)
	}
}

// F64 writes a tagged float64.
func (s *Serializer) F64(tag string, v float64) {
	s.tag(tag)
	if s.err != nil {
		return
	}
	if err := binary.Write(s.w, binary.LittleEndian, v); err != nil {
		s.fail(tag, err)
	}
}

// Bool writes a tagged boolean as a single byte.
func (s *Serializer) Bool(tag string, v bool) {
	s.tag(tag)
	if s.err != nil {
		return
	}
	var b byte
	if v {
		b = 1
	}
	if err := binary.Write(s.w, binary.LittleEndian, b); err != nil {
		s.fail(tag, err)
	}
}

// Str writes a tagged length-prefixed string.
func (s *Serializer) Str(tag string, v string) {
	s.tag(tag)
	if s.err != nil {
		return
	}
	if err := binary.Write(s.w, binary.LittleEndian, uint32(len(v))); err != nil {
		s.fail(tag, err)
		return
	}
	if _, err := io.WriteString(s.w, v); err != nil {
		s.fail(tag, err)
	}
}

// Handle writes a tagged expression handle, opaque outside the Store it was
// allocated from; Deserialize hands it back unchanged.
func (s *Serializer) Handle(tag string, h ref.Handle) {
	s.U32(tag, uint32(h))
}

// Deserializer is the read-side counterpart of Serializer.
type Deserializer struct {
	r   io.Reader
	err error
}

// NewDeserializer returns a Deserializer reading from r.
func NewDeserializer(r io.Reader) *Deserializer {
	return &Deserializer{r: r}
}

// Err returns the first error this Deserializer encountered, if any.
func (d *Deserializer) Err() error { return d.err }

func (d *Deserializer) fail(what string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("deserialize: reading %s: %w", what, err)
	}
}

func (d *Deserializer) tag() string {
	if d.err != nil {
		return ""
	}
	var n uint32
	if err := binary.Read(d.r, binary.LittleEndian, &n); err != nil {
		d.fail("tag length", err)
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.fail("tag", err)
		return ""
	}
	return string(buf)
}

// I32 reads a tagged int32; the tag itself is discarded once read — tags
// are integrity-only, never a dispatch key.
func (d *Deserializer) I32() int32 {
	tag := d.tag()
	if d.err != nil {
		return 0
	}
	var v int32
	if err := binary.Read(d.r, binary.LittleEndian, &v); err != nil {
		d.fail(tag, err)
	}
	return v
}

// U32 reads a tagged uint32.
func (d *Deserializer) U32() uint32 {
	tag := d.tag()
	if d.err != nil {
		return 0
	}
	var v uint32
	if err := binary.Read(d.r, binary.LittleEndian, &v); err != nil {
		d.fail(tag, err)
	}
	return v
}

// F64 reads a tagged float64.
func (d *Deserializer) F64() float64 {
	tag := d.tag()
	if d.err != nil {
		return 0
	}
	var v float64
	if err := binary.Read(d.r, binary.LittleEndian, &v); err != nil {
		d.fail(tag, err)
	}
	return v
}

// Bool reads a tagged boolean.
func (d *Deserializer) Bool() bool {
	tag := d.tag()
	if d.err != nil {
		return false
	}
	var b byte
	if err := binary.Read(d.r, binary.LittleEndian, &b); err != nil {
		d.fail(tag, err)
	}
	return b != 0
}

// Str reads a tagged length-prefixed string.
func (d *Deserializer) Str() string {
	tag := d.tag()
	if d.err != nil {
		return ""
	}
	var n uint32
	if err := binary.Read(d.r, binary.LittleEndian, &n); err != nil {
		d.fail(tag, err)
		return ""
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		d.fail(tag, err)
		return ""
	}
	return string(buf)
}

// Handle reads a tagged expression handle back unchanged.
func (d *Deserializer) Handle() ref.Handle {
	return ref.Handle(d.U32())
}

// Serialize writes the full compile result f in the fixed field order this
// package documents above. Each CallEntry.F is written as its F.Name().
func Serialize(w io.Writer, f *alg.Function) error {
	s := NewSerializer(w)

	s.U32("magic", MagicNumber)
	s.U32("version", Version)

	s.Str("name", f.Name)
	writeStrings(s, "in_names", f.InNames)
	writeStrings(s, "out_names", f.OutNames)
	writeInts(s, "nnz_in", f.NNZIn)
	writeInts(s, "nnz_out", f.NNZOut)

	s.I32("n_instr", int32(len(f.Algorithm)))
	s.U32("worksize", f.Worksize)

	s.I32("free_vars", int32(len(f.FreeVars)))
	for _, h := range f.FreeVars {
		s.Handle("free_var", h)
	}

	s.I32("operations", int32(len(f.Operations)))
	for _, h := range f.Operations {
		s.Handle("operation", h)
	}

	s.I32("constants", int32(len(f.Constants)))
	for _, h := range f.Constants {
		s.Handle("constant", h)
	}

	s.I32("default_in", int32(len(f.DefaultIn)))
	for _, v := range f.DefaultIn {
		s.F64("default_in_val", v)
	}

	s.I32("sz_arg", int32(f.Sizes.SzArg))
	s.I32("sz_res", int32(f.Sizes.SzRes))
	s.I32("sz_iw", int32(f.Sizes.SzIW))
	s.I32("sz_w", int32(f.Sizes.SzW))
	s.I32("sz_w_arg", int32(f.Sizes.SzWArg))
	s.I32("sz_w_res", int32(f.Sizes.SzWRes))

	s.I32("call_nodes_size", int32(len(f.CallTable)))
	for i := range f.CallTable {
		writeCallEntry(s, &f.CallTable[i])
	}

	s.I32("algorithm_size", int32(len(f.Algorithm)))
	for _, e := range f.Algorithm {
		s.U32("op", uint32(e.Op))
		s.U32("i0", e.I0)
		s.U32("i1", e.I1)
		s.U32("i2", e.I2)
		if e.Op == alg.CONST {
			s.F64("const_val", e.D)
		}
	}

	if err := s.Err(); err != nil {
		return err
	}
	return nil
}

func writeCallEntry(s *Serializer, ce *calltable.CallEntry) {
	s.Str("call_f", ce.F.Name())

	s.I32("call_dep", int32(len(ce.Dep)))
	for _, d := range ce.Dep {
		s.U32("dep", d)
	}
	for _, d := range ce.OrigDep {
		s.Handle("orig_dep", d)
	}

	s.I32("call_out", int32(len(ce.Out)))
	for _, o := range ce.Out {
		s.U32("out", o)
	}

	s.I32("call_out_sx", int32(len(ce.OutSX)))
	for _, h := range ce.OutSX {
		s.Handle("out_sx", h)
	}

	writeInts(s, "f_nnz_in", ce.FNNZIn)
	writeInts(s, "f_nnz_out", ce.FNNZOut)
}

func writeStrings(s *Serializer, tag string, vs []string) {
	s.I32(tag, int32(len(vs)))
	for _, v := range vs {
		s.Str(tag+"_val", v)
	}
}

func writeInts(s *Serializer, tag string, vs []int) {
	s.I32(tag, int32(len(vs)))
	for _, v := range vs {
		s.I32(tag+"_val", int32(v))
	}
}

// Deserialize reads back a Function written by Serialize. resolve recovers
// each CallEntry.F from the name Serialize recorded it under; it is the
// finalize step that re-establishes the opaque external collaborators a
// freshly-loaded Function cannot reconstruct on its own.
func Deserialize(r io.Reader, resolve Resolver) (*alg.Function, error) {
	d := NewDeserializer(r)

	magic := d.U32()
	if d.err == nil && magic != MagicNumber {
		return nil, fmt.Errorf("deserialize: bad magic number %#x", magic)
	}
	version := d.U32()
	if d.err == nil && version > Version {
		return nil, fmt.Errorf("deserialize: unsupported version %d", version)
	}

	f := &alg.Function{}
	f.Name = d.Str()
	f.InNames = readStrings(d)
	f.OutNames = readStrings(d)
	f.NNZIn = readInts(d)
	f.NNZOut = readInts(d)

	nInstr := d.I32()
	f.Worksize = d.U32()

	nFree := d.I32()
	f.FreeVars = make([]ref.Handle, 0, max0(nFree))
	for i := int32(0); i < nFree; i++ {
		f.FreeVars = append(f.FreeVars, d.Handle())
	}

	nOps := d.I32()
	f.Operations = make([]ref.Handle, 0, max0(nOps))
	for i := int32(0); i < nOps; i++ {
		f.Operations = append(f.Operations, d.Handle())
	}

	nConsts := d.I32()
	f.Constants = make([]ref.Handle, 0, max0(nConsts))
	for i := int32(0); i < nConsts; i++ {
		f.Constants = append(f.Constants, d.Handle())
	}

	nDefaultIn := d.I32()
	f.DefaultIn = make([]float64, 0, max0(nDefaultIn))
	for i := int32(0); i < nDefaultIn; i++ {
		f.DefaultIn = append(f.DefaultIn, d.F64())
	}

	f.Sizes.SzArg = int(d.I32())
	f.Sizes.SzRes = int(d.I32())
	f.Sizes.SzIW = int(d.I32())
	f.Sizes.SzW = int(d.I32())
	f.Sizes.SzWArg = int(d.I32())
	f.Sizes.SzWRes = int(d.I32())

	nCalls := d.I32()
	f.CallTable = make([]calltable.CallEntry, max0(nCalls))
	for i := int32(0); i < nCalls && d.err == nil; i++ {
		entry, err := readCallEntry(d, resolve)
		if err != nil {
			return nil, err
		}
		f.CallTable[i] = entry
	}
	if d.err != nil {
		return nil, d.err
	}

	nAlg := d.I32()
	if nAlg != nInstr {
		return nil, fmt.Errorf("deserialize: algorithm_size %d does not match n_instr %d", nAlg, nInstr)
	}
	f.Algorithm = make([]alg.AlgEl, 0, max0(nAlg))
	for i := int32(0); i < nAlg; i++ {
		op := alg.OpCode(d.U32())
		i0 := d.U32()
		i1 := d.U32()
		i2 := d.U32()
		el := alg.AlgEl{Op: op, I0: i0, I1: i1, I2: i2}
		if op == alg.CONST {
			el.D = d.F64()
		}
		f.Algorithm = append(f.Algorithm, el)
	}

	if err := d.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

func readCallEntry(d *Deserializer, resolve Resolver) (calltable.CallEntry, error) {
	name := d.Str()

	nDep := d.I32()
	dep := make([]uint32, 0, max0(nDep))
	for i := int32(0); i < nDep; i++ {
		dep = append(dep, d.U32())
	}
	origDep := make([]ref.Handle, 0, max0(nDep))
	for i := int32(0); i < nDep; i++ {
		origDep = append(origDep, d.Handle())
	}

	nOut := d.I32()
	out := make([]uint32, 0, max0(nOut))
	for i := int32(0); i < nOut; i++ {
		out = append(out, d.U32())
	}

	nOutSX := d.I32()
	outSX := make([]ref.Handle, 0, max0(nOutSX))
	for i := int32(0); i < nOutSX; i++ {
		outSX = append(outSX, d.Handle())
	}

	fnnzIn := readInts(d)
	fnnzOut := readInts(d)

	if d.err != nil {
		return calltable.CallEntry{}, d.err
	}

	fn, err := resolve(name)
	if err != nil {
		return calltable.CallEntry{}, fmt.Errorf("deserialize: resolving call-table entry %q: %w", name, err)
	}

	return calltable.CallEntry{
		F:       fn,
		Dep:     dep,
		OrigDep: origDep,
		Out:     out,
		FNNZIn:  fnnzIn,
		FNNZOut: fnnzOut,
		OutSX:   outSX,
	}, nil
}

func readStrings(d *Deserializer) []string {
	n := d.I32()
	out := make([]string, 0, max0(n))
	for i := int32(0); i < n; i++ {
		out = append(out, d.Str())
	}
	return out
}

func readInts(d *Deserializer) []int {
	n := d.I32()
	out := make([]int, 0, max0(n))
	for i := int32(0); i < n; i++ {
		out = append(out, int(d.I32()))
	}
	return out
}

func max0(n int32) int32 {
	if n < 0 {
		return 0
	}
	return n
}
