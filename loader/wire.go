// Package loader reads and writes machine-dialect bytecode files and
// produces the in-memory modules the VM executes.
package loader

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/machine-dialect/mdvm/vm"
)

// cborEncMode uses canonical mode for deterministic encoding.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("loader: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Wire records
// ---------------------------------------------------------------------------

// wireModule is the CBOR body of a bytecode file.
type wireModule struct {
	Name      string         `cbor:"name"`
	Constants []wireConstant `cbor:"constants"`
	Code      []wireInstr    `cbor:"code"`
	Functions []wireFunction `cbor:"functions"`
	Globals   []string       `cbor:"globals"`
}

// wireConstant is one constant-pool entry on the wire.
type wireConstant struct {
	Kind  uint8   `cbor:"k"`
	Bool  bool    `cbor:"b,omitempty"`
	Int   int64   `cbor:"i,omitempty"`
	Float float64 `cbor:"f,omitempty"`
	Str   string  `cbor:"s,omitempty"`
	Entry uint32  `cbor:"e,omitempty"`
}

// wireFunction is one function-table entry; order is preserved.
type wireFunction struct {
	Name  string `cbor:"n"`
	Entry uint32 `cbor:"e"`
}

// wireInstr is one instruction on the wire: an opcode byte plus the operand
// fields that opcode uses.
type wireInstr struct {
	Op     uint8    `cbor:"op"`
	A      uint8    `cbor:"a,omitempty"`
	B      uint8    `cbor:"b,omitempty"`
	C      uint8    `cbor:"c,omitempty"`
	Idx    uint16   `cbor:"x,omitempty"`
	Off    int32    `cbor:"o,omitempty"`
	Src    int16    `cbor:"r,omitempty"`
	Kind   uint8    `cbor:"t,omitempty"`
	Min    int64    `cbor:"lo,omitempty"`
	Max    int64    `cbor:"hi,omitempty"`
	Args   []uint8  `cbor:"as,omitempty"`
	Blocks []uint32 `cbor:"bs,omitempty"`
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func encodeConstant(c vm.ConstantValue) wireConstant {
	return wireConstant{
		Kind:  uint8(c.Kind),
		Bool:  c.Bool,
		Int:   c.Int,
		Float: c.Float,
		Str:   c.Str,
		Entry: uint32(c.Entry),
	}
}

func decodeConstant(w wireConstant) vm.ConstantValue {
	return vm.ConstantValue{
		Kind:  vm.ConstantKind(w.Kind),
		Bool:  w.Bool,
		Int:   w.Int,
		Float: w.Float,
		Str:   w.Str,
		Entry: int(w.Entry),
	}
}

func encodeInstruction(inst vm.Instruction) (wireInstr, error) {
	switch inst := inst.(type) {
	case vm.Nop, vm.Halt, vm.BreakPoint:
		return wireInstr{Op: uint8(inst.Op())}, nil
	case vm.DebugPrint:
		return wireInstr{Op: uint8(vm.OpDebugPrint), A: inst.Src}, nil
	case vm.LoadConstR:
		return wireInstr{Op: uint8(vm.OpLoadConst), A: inst.Dst, Idx: inst.Const}, nil
	case vm.MoveR:
		return wireInstr{Op: uint8(vm.OpMove), A: inst.Dst, B: inst.Src}, nil
	case vm.LoadGlobalR:
		return wireInstr{Op: uint8(vm.OpLoadGlobal), A: inst.Dst, Idx: inst.Name}, nil
	case vm.StoreGlobalR:
		return wireInstr{Op: uint8(vm.OpStoreGlobal), A: inst.Src, Idx: inst.Name}, nil
	case vm.DefineR:
		return wireInstr{Op: uint8(vm.OpDefine), A: inst.Dst, Idx: inst.TypeID}, nil
	case vm.CheckTypeR:
		return wireInstr{Op: uint8(vm.OpCheckType), A: inst.Dst, B: inst.Src, Idx: inst.TypeID}, nil
	case vm.CastR:
		return wireInstr{Op: uint8(vm.OpCast), A: inst.Dst, B: inst.Src, Idx: inst.TypeID}, nil
	case vm.AddR:
		return wireInstr{Op: uint8(vm.OpAdd), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.SubR:
		return wireInstr{Op: uint8(vm.OpSub), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.MulR:
		return wireInstr{Op: uint8(vm.OpMul), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.DivR:
		return wireInstr{Op: uint8(vm.OpDiv), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.ModR:
		return wireInstr{Op: uint8(vm.OpMod), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.NegR:
		return wireInstr{Op: uint8(vm.OpNeg), A: inst.Dst, B: inst.Src}, nil
	case vm.NotR:
		return wireInstr{Op: uint8(vm.OpNot), A: inst.Dst, B: inst.Src}, nil
	case vm.AndR:
		return wireInstr{Op: uint8(vm.OpAnd), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.OrR:
		return wireInstr{Op: uint8(vm.OpOr), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.EqR:
		return wireInstr{Op: uint8(vm.OpEq), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.NeqR:
		return wireInstr{Op: uint8(vm.OpNeq), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.LtR:
		return wireInstr{Op: uint8(vm.OpLt), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.GtR:
		return wireInstr{Op: uint8(vm.OpGt), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.LteR:
		return wireInstr{Op: uint8(vm.OpLte), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.GteR:
		return wireInstr{Op: uint8(vm.OpGte), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.JumpR:
		return wireInstr{Op: uint8(vm.OpJump), Off: inst.Offset}, nil
	case vm.JumpIfR:
		return wireInstr{Op: uint8(vm.OpJumpIf), A: inst.Cond, Off: inst.Offset}, nil
	case vm.JumpIfNotR:
		return wireInstr{Op: uint8(vm.OpJumpIfNot), A: inst.Cond, Off: inst.Offset}, nil
	case vm.CallR:
		return wireInstr{Op: uint8(vm.OpCall), A: inst.Dst, B: inst.Func, Args: inst.Args}, nil
	case vm.ReturnR:
		return wireInstr{Op: uint8(vm.OpReturn), Src: inst.Src}, nil
	case vm.PhiR:
		w := wireInstr{Op: uint8(vm.OpPhi), A: inst.Dst}
		for _, s := range inst.Sources {
			w.Args = append(w.Args, s.Src)
			w.Blocks = append(w.Blocks, s.Block)
		}
		return w, nil
	case vm.AssertR:
		return wireInstr{Op: uint8(vm.OpAssert), A: inst.Reg, Kind: uint8(inst.Kind), Min: inst.Min, Max: inst.Max, Idx: inst.Msg}, nil
	case vm.ScopeEnterR:
		return wireInstr{Op: uint8(vm.OpScopeEnter), Idx: inst.Scope}, nil
	case vm.ScopeExitR:
		return wireInstr{Op: uint8(vm.OpScopeExit), Idx: inst.Scope}, nil
	case vm.ConcatStrR:
		return wireInstr{Op: uint8(vm.OpConcatStr), A: inst.Dst, B: inst.Left, C: inst.Right}, nil
	case vm.StrLenR:
		return wireInstr{Op: uint8(vm.OpStrLen), A: inst.Dst, B: inst.Src}, nil
	case vm.NewArrayR:
		return wireInstr{Op: uint8(vm.OpNewArray), A: inst.Dst, B: inst.Size}, nil
	case vm.ArrayGetR:
		return wireInstr{Op: uint8(vm.OpArrayGet), A: inst.Dst, B: inst.Array, C: inst.Index}, nil
	case vm.ArraySetR:
		return wireInstr{Op: uint8(vm.OpArraySet), A: inst.Array, B: inst.Index, C: inst.Value}, nil
	case vm.ArrayLenR:
		return wireInstr{Op: uint8(vm.OpArrayLen), A: inst.Dst, B: inst.Array}, nil
	default:
		return wireInstr{}, fmt.Errorf("%w: unsupported instruction %T", ErrInvalidFormat, inst)
	}
}

func decodeInstruction(w wireInstr) (vm.Instruction, error) {
	switch vm.Opcode(w.Op) {
	case vm.OpNop:
		return vm.Nop{}, nil
	case vm.OpHalt:
		return vm.Halt{}, nil
	case vm.OpBreakPoint:
		return vm.BreakPoint{}, nil
	case vm.OpDebugPrint:
		return vm.DebugPrint{Src: w.A}, nil
	case vm.OpLoadConst:
		return vm.LoadConstR{Dst: w.A, Const: w.Idx}, nil
	case vm.OpMove:
		return vm.MoveR{Dst: w.A, Src: w.B}, nil
	case vm.OpLoadGlobal:
		return vm.LoadGlobalR{Dst: w.A, Name: w.Idx}, nil
	case vm.OpStoreGlobal:
		return vm.StoreGlobalR{Src: w.A, Name: w.Idx}, nil
	case vm.OpDefine:
		return vm.DefineR{Dst: w.A, TypeID: w.Idx}, nil
	case vm.OpCheckType:
		return vm.CheckTypeR{Dst: w.A, Src: w.B, TypeID: w.Idx}, nil
	case vm.OpCast:
		return vm.CastR{Dst: w.A, Src: w.B, TypeID: w.Idx}, nil
	case vm.OpAdd:
		return vm.AddR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpSub:
		return vm.SubR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpMul:
		return vm.MulR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpDiv:
		return vm.DivR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpMod:
		return vm.ModR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpNeg:
		return vm.NegR{Dst: w.A, Src: w.B}, nil
	case vm.OpNot:
		return vm.NotR{Dst: w.A, Src: w.B}, nil
	case vm.OpAnd:
		return vm.AndR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpOr:
		return vm.OrR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpEq:
		return vm.EqR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpNeq:
		return vm.NeqR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpLt:
		return vm.LtR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpGt:
		return vm.GtR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpLte:
		return vm.LteR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpGte:
		return vm.GteR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpJump:
		return vm.JumpR{Offset: w.Off}, nil
	case vm.OpJumpIf:
		return vm.JumpIfR{Cond: w.A, Offset: w.Off}, nil
	case vm.OpJumpIfNot:
		return vm.JumpIfNotR{Cond: w.A, Offset: w.Off}, nil
	case vm.OpCall:
		return vm.CallR{Dst: w.A, Func: w.B, Args: w.Args}, nil
	case vm.OpReturn:
		// Any negative Src means "no value"; positive values must name one of
		// the 256 registers.
		if w.Src > 255 {
			return nil, fmt.Errorf("%w: return register %d out of range", ErrInvalidFormat, w.Src)
		}
		return vm.ReturnR{Src: w.Src}, nil
	case vm.OpPhi:
		if len(w.Args) != len(w.Blocks) {
			return nil, fmt.Errorf("%w: phi sources and blocks differ in length", ErrInvalidFormat)
		}
		sources := make([]vm.PhiSource, len(w.Args))
		for i := range w.Args {
			sources[i] = vm.PhiSource{Src: w.Args[i], Block: w.Blocks[i]}
		}
		return vm.PhiR{Dst: w.A, Sources: sources}, nil
	case vm.OpAssert:
		return vm.AssertR{Reg: w.A, Kind: vm.AssertKind(w.Kind), Min: w.Min, Max: w.Max, Msg: w.Idx}, nil
	case vm.OpScopeEnter:
		return vm.ScopeEnterR{Scope: w.Idx}, nil
	case vm.OpScopeExit:
		return vm.ScopeExitR{Scope: w.Idx}, nil
	case vm.OpConcatStr:
		return vm.ConcatStrR{Dst: w.A, Left: w.B, Right: w.C}, nil
	case vm.OpStrLen:
		return vm.StrLenR{Dst: w.A, Src: w.B}, nil
	case vm.OpNewArray:
		return vm.NewArrayR{Dst: w.A, Size: w.B}, nil
	case vm.OpArrayGet:
		return vm.ArrayGetR{Dst: w.A, Array: w.B, Index: w.C}, nil
	case vm.OpArraySet:
		return vm.ArraySetR{Array: w.A, Index: w.B, Value: w.C}, nil
	case vm.OpArrayLen:
		return vm.ArrayLenR{Dst: w.A, Array: w.B}, nil
	default:
		return nil, fmt.Errorf("%w: unknown opcode 0x%02x", ErrInvalidFormat, w.Op)
	}
}

// encodeBody serializes a module's CBOR body.
func encodeBody(mod *vm.BytecodeModule) ([]byte, error) {
	body := wireModule{
		Name:    mod.Name,
		Globals: mod.GlobalNames,
	}
	for _, c := range mod.Constants.Entries() {
		body.Constants = append(body.Constants, encodeConstant(c))
	}
	for _, inst := range mod.Instructions {
		w, err := encodeInstruction(inst)
		if err != nil {
			return nil, err
		}
		body.Code = append(body.Code, w)
	}
	for _, name := range mod.FunctionOrder {
		entry := mod.Functions[name]
		body.Functions = append(body.Functions, wireFunction{Name: name, Entry: uint32(entry)})
	}
	return cborEncMode.Marshal(&body)
}

// decodeBody deserializes a module's CBOR body.
func decodeBody(data []byte, version, flags uint32) (*vm.BytecodeModule, error) {
	var body wireModule
	if err := cbor.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	mod := vm.NewBytecodeModule(body.Name)
	mod.Version = version
	mod.Flags = flags
	mod.GlobalNames = body.Globals

	for _, c := range body.Constants {
		mod.Constants.Append(decodeConstant(c))
	}
	for _, w := range body.Code {
		inst, err := decodeInstruction(w)
		if err != nil {
			return nil, err
		}
		mod.Instructions = append(mod.Instructions, inst)
	}
	for _, fn := range body.Functions {
		if _, exists := mod.Functions[fn.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate function %q", ErrInvalidFormat, fn.Name)
		}
		mod.AddFunction(fn.Name, int(fn.Entry))
	}

	return mod, nil
}
