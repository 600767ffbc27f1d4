package vm

import (
	"fmt"
	"strings"
)

// Opcode identifies an instruction for encoding and disassembly.
// Opcodes are organized into ranges by category.
type Opcode byte

const (
	// ========================================================================
	// Control (0x00-0x0F)
	// ========================================================================

	OpNop        Opcode = 0x00 // No operation
	OpHalt       Opcode = 0x01 // Stop execution
	OpBreakPoint Opcode = 0x02 // No-op unless debug mode is enabled
	OpDebugPrint Opcode = 0x03 // Render a register's value

	// ========================================================================
	// Data movement (0x10-0x1F)
	// ========================================================================

	OpLoadConst   Opcode = 0x10 // dst <- constant pool entry
	OpMove        Opcode = 0x11 // dst <- src
	OpLoadGlobal  Opcode = 0x12 // dst <- global named by string constant
	OpStoreGlobal Opcode = 0x13 // global named by string constant <- src

	// ========================================================================
	// Type operations (0x20-0x2F)
	// ========================================================================

	OpDefine    Opcode = 0x20 // set declared register type
	OpCheckType Opcode = 0x21 // dst <- declared type of src == expected
	OpCast      Opcode = 0x22 // dst <- src converted to target type

	// ========================================================================
	// Arithmetic (0x30-0x3F)
	// ========================================================================

	OpAdd Opcode = 0x30
	OpSub Opcode = 0x31
	OpMul Opcode = 0x32
	OpDiv Opcode = 0x33
	OpMod Opcode = 0x34
	OpNeg Opcode = 0x35

	// ========================================================================
	// Logic (0x40-0x47)
	// ========================================================================

	OpNot Opcode = 0x40
	OpAnd Opcode = 0x41
	OpOr  Opcode = 0x42

	// ========================================================================
	// Comparisons (0x48-0x4F)
	// ========================================================================

	OpEq  Opcode = 0x48
	OpNeq Opcode = 0x49
	OpLt  Opcode = 0x4A
	OpGt  Opcode = 0x4B
	OpLte Opcode = 0x4C
	OpGte Opcode = 0x4D

	// ========================================================================
	// Control flow and calls (0x50-0x5F)
	// ========================================================================

	OpJump      Opcode = 0x50 // pc += offset
	OpJumpIf    Opcode = 0x51 // pc += offset if cond truthy
	OpJumpIfNot Opcode = 0x52 // pc += offset if cond falsy
	OpCall      Opcode = 0x53 // call function, binding up to 16 args
	OpReturn    Opcode = 0x54 // return to caller, optionally with a value

	// ========================================================================
	// SSA support (0x60-0x6F)
	// ========================================================================

	OpPhi        Opcode = 0x60 // select source by predecessor block
	OpAssert     Opcode = 0x61 // raise AssertionFailed unless predicate holds
	OpScopeEnter Opcode = 0x62 // push a lexical scope id
	OpScopeExit  Opcode = 0x63 // pop a lexical scope id

	// ========================================================================
	// Strings and arrays (0x70-0x7F)
	// ========================================================================

	OpConcatStr Opcode = 0x70
	OpStrLen    Opcode = 0x71
	OpNewArray  Opcode = 0x72
	OpArrayGet  Opcode = 0x73
	OpArraySet  Opcode = 0x74
	OpArrayLen  Opcode = 0x75
)

// Instruction is one decoded instruction: an opcode plus its typed operands.
// The set is closed; the engine's dispatch switch matches it exhaustively.
type Instruction interface {
	Op() Opcode
	String() string
}

// AssertKind selects the predicate evaluated by AssertR.
type AssertKind uint8

const (
	AssertTrue AssertKind = iota
	AssertNonNull
	AssertRange
)

func (k AssertKind) String() string {
	switch k {
	case AssertTrue:
		return "true"
	case AssertNonNull:
		return "nonnull"
	case AssertRange:
		return "range"
	default:
		return fmt.Sprintf("AssertKind(%d)", uint8(k))
	}
}

// PhiSource is one (source register, originating block) pair of a PhiR.
type PhiSource struct {
	Src   uint8
	Block uint32 // pc of the predecessor block's terminating jump
}

// --- Control ---

type Nop struct{}

func (Nop) Op() Opcode     { return OpNop }
func (Nop) String() string { return "nop" }

type Halt struct{}

func (Halt) Op() Opcode     { return OpHalt }
func (Halt) String() string { return "halt" }

type BreakPoint struct{}

func (BreakPoint) Op() Opcode     { return OpBreakPoint }
func (BreakPoint) String() string { return "breakpoint" }

type DebugPrint struct {
	Src uint8
}

func (i DebugPrint) Op() Opcode     { return OpDebugPrint }
func (i DebugPrint) String() string { return fmt.Sprintf("debug_print r%d", i.Src) }

// --- Data movement ---

type LoadConstR struct {
	Dst   uint8
	Const uint16
}

func (i LoadConstR) Op() Opcode     { return OpLoadConst }
func (i LoadConstR) String() string { return fmt.Sprintf("load_const r%d, #%d", i.Dst, i.Const) }

type MoveR struct {
	Dst uint8
	Src uint8
}

func (i MoveR) Op() Opcode     { return OpMove }
func (i MoveR) String() string { return fmt.Sprintf("move r%d, r%d", i.Dst, i.Src) }

type LoadGlobalR struct {
	Dst  uint8
	Name uint16 // string constant index
}

func (i LoadGlobalR) Op() Opcode     { return OpLoadGlobal }
func (i LoadGlobalR) String() string { return fmt.Sprintf("load_global r%d, #%d", i.Dst, i.Name) }

type StoreGlobalR struct {
	Src  uint8
	Name uint16 // string constant index
}

func (i StoreGlobalR) Op() Opcode     { return OpStoreGlobal }
func (i StoreGlobalR) String() string { return fmt.Sprintf("store_global #%d, r%d", i.Name, i.Src) }

// --- Type operations ---

type DefineR struct {
	Dst    uint8
	TypeID uint16
}

func (i DefineR) Op() Opcode { return OpDefine }
func (i DefineR) String() string {
	return fmt.Sprintf("define r%d, %s", i.Dst, TypeFromID(i.TypeID))
}

type CheckTypeR struct {
	Dst    uint8
	Src    uint8
	TypeID uint16
}

func (i CheckTypeR) Op() Opcode { return OpCheckType }
func (i CheckTypeR) String() string {
	return fmt.Sprintf("check_type r%d, r%d, %s", i.Dst, i.Src, TypeFromID(i.TypeID))
}

type CastR struct {
	Dst    uint8
	Src    uint8
	TypeID uint16
}

func (i CastR) Op() Opcode { return OpCast }
func (i CastR) String() string {
	return fmt.Sprintf("cast r%d, r%d, %s", i.Dst, i.Src, TypeFromID(i.TypeID))
}

// --- Arithmetic ---

type AddR struct{ Dst, Left, Right uint8 }

func (i AddR) Op() Opcode     { return OpAdd }
func (i AddR) String() string { return fmt.Sprintf("add r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

type SubR struct{ Dst, Left, Right uint8 }

func (i SubR) Op() Opcode     { return OpSub }
func (i SubR) String() string { return fmt.Sprintf("sub r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

type MulR struct{ Dst, Left, Right uint8 }

func (i MulR) Op() Opcode     { return OpMul }
func (i MulR) String() string { return fmt.Sprintf("mul r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

type DivR struct{ Dst, Left, Right uint8 }

func (i DivR) Op() Opcode     { return OpDiv }
func (i DivR) String() string { return fmt.Sprintf("div r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

type ModR struct{ Dst, Left, Right uint8 }

func (i ModR) Op() Opcode     { return OpMod }
func (i ModR) String() string { return fmt.Sprintf("mod r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

type NegR struct{ Dst, Src uint8 }

func (i NegR) Op() Opcode     { return OpNeg }
func (i NegR) String() string { return fmt.Sprintf("neg r%d, r%d", i.Dst, i.Src) }

// --- Logic ---

type NotR struct{ Dst, Src uint8 }

func (i NotR) Op() Opcode     { return OpNot }
func (i NotR) String() string { return fmt.Sprintf("not r%d, r%d", i.Dst, i.Src) }

type AndR struct{ Dst, Left, Right uint8 }

func (i AndR) Op() Opcode     { return OpAnd }
func (i AndR) String() string { return fmt.Sprintf("and r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

type OrR struct{ Dst, Left, Right uint8 }

func (i OrR) Op() Opcode     { return OpOr }
func (i OrR) String() string { return fmt.Sprintf("or r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

// --- Comparisons ---

type EqR struct{ Dst, Left, Right uint8 }

func (i EqR) Op() Opcode     { return OpEq }
func (i EqR) String() string { return fmt.Sprintf("eq r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

type NeqR struct{ Dst, Left, Right uint8 }

func (i NeqR) Op() Opcode     { return OpNeq }
func (i NeqR) String() string { return fmt.Sprintf("neq r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

type LtR struct{ Dst, Left, Right uint8 }

func (i LtR) Op() Opcode     { return OpLt }
func (i LtR) String() string { return fmt.Sprintf("lt r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

type GtR struct{ Dst, Left, Right uint8 }

func (i GtR) Op() Opcode     { return OpGt }
func (i GtR) String() string { return fmt.Sprintf("gt r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

type LteR struct{ Dst, Left, Right uint8 }

func (i LteR) Op() Opcode     { return OpLte }
func (i LteR) String() string { return fmt.Sprintf("lte r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

type GteR struct{ Dst, Left, Right uint8 }

func (i GteR) Op() Opcode     { return OpGte }
func (i GteR) String() string { return fmt.Sprintf("gte r%d, r%d, r%d", i.Dst, i.Left, i.Right) }

// --- Control flow ---

type JumpR struct {
	Offset int32 // applied to the post-increment pc
}

func (i JumpR) Op() Opcode     { return OpJump }
func (i JumpR) String() string { return fmt.Sprintf("jump %+d", i.Offset) }

type JumpIfR struct {
	Cond   uint8
	Offset int32
}

func (i JumpIfR) Op() Opcode     { return OpJumpIf }
func (i JumpIfR) String() string { return fmt.Sprintf("jump_if r%d, %+d", i.Cond, i.Offset) }

type JumpIfNotR struct {
	Cond   uint8
	Offset int32
}

func (i JumpIfNotR) Op() Opcode     { return OpJumpIfNot }
func (i JumpIfNotR) String() string { return fmt.Sprintf("jump_if_not r%d, %+d", i.Cond, i.Offset) }

// MaxCallArgs is the number of parameter registers a call can bind.
const MaxCallArgs = 16

// CallR calls the function identified by the Func register: a String value
// resolves through the function table by name, an Int by table order, a
// Function value calls its own entry, and anything else falls back to the
// module's default entry. Args are bound positionally into registers 0..15.
type CallR struct {
	Dst  uint8
	Func uint8
	Args []uint8
}

func (i CallR) Op() Opcode { return OpCall }
func (i CallR) String() string {
	args := make([]string, len(i.Args))
	for n, a := range i.Args {
		args[n] = fmt.Sprintf("r%d", a)
	}
	return fmt.Sprintf("call r%d, r%d, [%s]", i.Dst, i.Func, strings.Join(args, ", "))
}

// ReturnR returns to the caller. Src < 0 means no value is returned.
type ReturnR struct {
	Src int16
}

func (i ReturnR) Op() Opcode { return OpReturn }
func (i ReturnR) String() string {
	if i.Src < 0 {
		return "return"
	}
	return fmt.Sprintf("return r%d", i.Src)
}

// --- SSA support ---

type PhiR struct {
	Dst     uint8
	Sources []PhiSource
}

func (i PhiR) Op() Opcode { return OpPhi }
func (i PhiR) String() string {
	parts := make([]string, len(i.Sources))
	for n, s := range i.Sources {
		parts[n] = fmt.Sprintf("r%d@%d", s.Src, s.Block)
	}
	return fmt.Sprintf("phi r%d, [%s]", i.Dst, strings.Join(parts, ", "))
}

type AssertR struct {
	Reg  uint8
	Kind AssertKind
	Min  int64 // AssertRange only
	Max  int64 // AssertRange only
	Msg  uint16
}

func (i AssertR) Op() Opcode { return OpAssert }
func (i AssertR) String() string {
	if i.Kind == AssertRange {
		return fmt.Sprintf("assert r%d, range[%d..%d], #%d", i.Reg, i.Min, i.Max, i.Msg)
	}
	return fmt.Sprintf("assert r%d, %s, #%d", i.Reg, i.Kind, i.Msg)
}

type ScopeEnterR struct {
	Scope uint16
}

func (i ScopeEnterR) Op() Opcode     { return OpScopeEnter }
func (i ScopeEnterR) String() string { return fmt.Sprintf("scope_enter %d", i.Scope) }

type ScopeExitR struct {
	Scope uint16
}

func (i ScopeExitR) Op() Opcode     { return OpScopeExit }
func (i ScopeExitR) String() string { return fmt.Sprintf("scope_exit %d", i.Scope) }

// --- Strings and arrays ---

type ConcatStrR struct{ Dst, Left, Right uint8 }

func (i ConcatStrR) Op() Opcode { return OpConcatStr }
func (i ConcatStrR) String() string {
	return fmt.Sprintf("concat r%d, r%d, r%d", i.Dst, i.Left, i.Right)
}

type StrLenR struct{ Dst, Src uint8 }

func (i StrLenR) Op() Opcode     { return OpStrLen }
func (i StrLenR) String() string { return fmt.Sprintf("str_len r%d, r%d", i.Dst, i.Src) }

// NewArrayR allocates an array of Empty; the size is read from the Size
// register.
type NewArrayR struct{ Dst, Size uint8 }

func (i NewArrayR) Op() Opcode     { return OpNewArray }
func (i NewArrayR) String() string { return fmt.Sprintf("new_array r%d, r%d", i.Dst, i.Size) }

type ArrayGetR struct{ Dst, Array, Index uint8 }

func (i ArrayGetR) Op() Opcode { return OpArrayGet }
func (i ArrayGetR) String() string {
	return fmt.Sprintf("array_get r%d, r%d, r%d", i.Dst, i.Array, i.Index)
}

type ArraySetR struct{ Array, Index, Value uint8 }

func (i ArraySetR) Op() Opcode { return OpArraySet }
func (i ArraySetR) String() string {
	return fmt.Sprintf("array_set r%d, r%d, r%d", i.Array, i.Index, i.Value)
}

type ArrayLenR struct{ Dst, Array uint8 }

func (i ArrayLenR) Op() Opcode     { return OpArrayLen }
func (i ArrayLenR) String() string { return fmt.Sprintf("array_len r%d, r%d", i.Dst, i.Array) }
