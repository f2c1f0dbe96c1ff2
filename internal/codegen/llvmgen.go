package codegen

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"sx/internal/alg"
	"sx/internal/calltable"
	cerrors "sx/internal/errors"
)

// EmitLLVMIR builds a real *ir.Module containing one function implementing
// f: scalar double inputs by value, one output per declared output as a
// double* out-parameter, matching a C-like calling convention for JIT
// compilation — rather than hand-emitting C text, this backend builds and
// renders a typed LLVM IR function body via llir/llvm, so a downstream JIT
// can compile the result directly.
//
// Transcendental ops are lowered to calls against declared libm functions
// (sinf64-style names are avoided; this targets the platform's "sin",
// "cos", etc. symbols). Requires f.FreeVars to be empty.
//
// Embedded CALL instructions are only supported when the sub-function has
// exactly one output; a multi-output sub-call fails with a
// ConfigurationError, since representing it would need a struct return
// type this backend does not build.
func EmitLLVMIR(f *alg.Function) (*ir.Module, error) {
	if len(f.FreeVars) > 0 {
		return nil, cerrors.NewConfigurationError(f.Name, "cannot emit code for a function with free parameters")
	}

	mod := ir.NewModule()
	libm := map[string]*ir.Func{}
	declareLibm := func(name string, arity int) *ir.Func {
		key := fmt.Sprintf("%s/%d", name, arity)
		if fn, ok := libm[key]; ok {
			return fn
		}
		params := make([]*ir.Param, arity)
		for i := range params {
			params[i] = ir.NewParam("", types.Double)
		}
		fn := mod.NewFunc(name, types.Double, params...)
		libm[key] = fn
		return fn
	}

	var params []*ir.Param
	inParams := make([][]*ir.Param, len(f.InNames))
	for i, name := range f.InNames {
		inParams[i] = make([]*ir.Param, f.NNZIn[i])
		for j := range inParams[i] {
			p := ir.NewParam(fmt.Sprintf("%s_%d", name, j), types.Double)
			inParams[i][j] = p
			params = append(params, p)
		}
	}
	outParams := make([]*ir.Param, len(f.OutNames))
	for i, name := range f.OutNames {
		p := ir.NewParam("out_"+name, types.NewPointer(types.Double))
		outParams[i] = p
		params = append(params, p)
	}

	fn := mod.NewFunc(f.Name, types.Void, params...)
	block := fn.NewBlock("entry")

	w := make([]value.Value, f.SzW())
	oind, onz := 0, 0

	for _, e := range f.Algorithm {
		switch e.Op {
		case alg.CONST:
			w[e.I0] = constant.NewFloat(types.Double, e.D)
		case alg.INPUT:
			w[e.I0] = inParams[e.I1][e.I2]
		case alg.OUTPUT:
			block.NewStore(w[e.I1], outParams[oind])
			onz++
			if onz >= f.NNZOut[oind] {
				onz = 0
				oind++
			}
		case alg.CALL:
			ce := f.CallTable[e.I1]
			if len(ce.FNNZOut) != 1 || ce.FNNZOut[0] != 1 {
				return nil, cerrors.NewConfigurationError(f.Name,
					fmt.Sprintf("EmitLLVMIR cannot render a multi-output call to %q", ce.F.Name()))
			}
			callee := declareLibm(ce.F.Name(), len(ce.Dep))
			args := make([]value.Value, len(ce.Dep))
			for k, d := range ce.Dep {
				args[k] = w[d]
			}
			result := block.NewCall(callee, args...)
			if ce.Out[0] != calltable.NoOutput {
				w[ce.Out[0]] = result
			}
		default:
			v, err := writeLLVMOp(block, e, w, declareLibm)
			if err != nil {
				return nil, cerrors.NewConfigurationError(f.Name, err.Error())
			}
			w[e.I0] = v
		}
	}
	block.NewRet(nil)

	return mod, nil
}

func writeLLVMOp(block *ir.Block, e alg.AlgEl, w []value.Value, declareLibm func(string, int) *ir.Func) (value.Value, error) {
	x := w[e.I1]
	switch e.Op {
	case alg.ADD:
		return block.NewFAdd(x, w[e.I2]), nil
	case alg.SUB:
		return block.NewFSub(x, w[e.I2]), nil
	case alg.MUL:
		return block.NewFMul(x, w[e.I2]), nil
	case alg.DIV:
		return block.NewFDiv(x, w[e.I2]), nil
	case alg.NEG:
		return block.NewFNeg(x), nil
	case alg.SQ:
		return block.NewFMul(x, x), nil
	case alg.TWICE:
		return block.NewFAdd(x, x), nil
	case alg.INV:
		return block.NewFDiv(constant.NewFloat(types.Double, 1), x), nil
	case alg.EQ, alg.NE, alg.LT, alg.LE, alg.GT, alg.GE:
		return block.NewFCmp(fcmpPred(e.Op), x, w[e.I2]), nil
	default:
		name := libmName(e.Op)
		if name == "" {
			return nil, fmt.Errorf("EmitLLVMIR has no lowering for opcode %s", e.Op)
		}
		if e.Op.IsBinary() {
			callee := declareLibm(name, 2)
			return block.NewCall(callee, x, w[e.I2]), nil
		}
		callee := declareLibm(name, 1)
		return block.NewCall(callee, x), nil
	}
}

func fcmpPred(op alg.OpCode) enum.FPred {
	switch op {
	case alg.EQ:
		return enum.FPredOEQ
	case alg.NE:
		return enum.FPredONE
	case alg.LT:
		return enum.FPredOLT
	case alg.LE:
		return enum.FPredOLE
	case alg.GT:
		return enum.FPredOGT
	case alg.GE:
		return enum.FPredOGE
	default:
		return enum.FPredFalse
	}
}

func libmName(op alg.OpCode) string {
	switch op {
	case alg.EXP:
		return "exp"
	case alg.LOG:
		return "log"
	case alg.SIN:
		return "sin"
	case alg.COS:
		return "cos"
	case alg.TAN:
		return "tan"
	case alg.ASIN:
		return "asin"
	case alg.ACOS:
		return "acos"
	case alg.ATAN:
		return "atan"
	case alg.SINH:
		return "sinh"
	case alg.COSH:
		return "cosh"
	case alg.TANH:
		return "tanh"
	case alg.SQRT:
		return "sqrt"
	case alg.FABS:
		return "fabs"
	case alg.SIGN:
		return "copysign" // approximation: sign(x) via caller-provided wrapper
	case alg.FLOOR:
		return "floor"
	case alg.CEIL:
		return "ceil"
	case alg.POW, alg.CONSTPOW:
		return "pow"
	case alg.ATAN2:
		return "atan2"
	case alg.FMOD:
		return "fmod"
	case alg.FMIN:
		return "fmin"
	case alg.FMAX:
		return "fmax"
	default:
		return ""
	}
}
