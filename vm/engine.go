package vm

import (
	"fmt"
	"io"
	"os"
)

// DefaultMaxCallDepth bounds the call stack unless configured otherwise.
const DefaultMaxCallDepth = 1024

// ---------------------------------------------------------------------------
// VM: register-based execution engine
// ---------------------------------------------------------------------------

// VM executes one loaded bytecode module. It is an explicit, independently
// constructible value: one instance per program. A VM is single-threaded and
// not safe for concurrent use.
type VM struct {
	Registers *RegisterFile
	State     *VMState

	// Debug enables instruction tracing, breakpoints and verbose DebugPrint.
	Debug bool

	// MaxCallDepth bounds the explicit call stack.
	MaxCallDepth int

	// Stdout receives DebugPrint output and debug traces.
	Stdout io.Writer

	module           *BytecodeModule
	instructions     []Instruction
	constants        *ConstantPool
	instructionCount uint64
}

// New creates a VM with no module loaded.
func New() *VM {
	return &VM{
		Registers:    NewRegisterFile(),
		State:        NewVMState(),
		MaxCallDepth: DefaultMaxCallDepth,
		Stdout:       os.Stdout,
		constants:    NewConstantPool(),
	}
}

// LoadModule installs a module, replacing any previous one, and resets the
// registers, state and instruction counter.
func (m *VM) LoadModule(mod *BytecodeModule) error {
	m.module = mod
	m.instructions = mod.Instructions
	m.constants = mod.Constants
	m.State.Reset()
	m.Registers.Clear()
	m.instructionCount = 0
	return nil
}

// Module returns the loaded module, or nil.
func (m *VM) Module() *BytecodeModule {
	return m.module
}

// InstructionCount returns the number of instructions stepped since the
// module was loaded.
func (m *VM) InstructionCount() uint64 {
	return m.instructionCount
}

// Run executes until the VM halts or faults. It returns the terminal value
// of the program's top-level return, with hasResult false when the program
// produced none. The run loop is fail-fast: the first error stops it.
func (m *VM) Run() (result Value, hasResult bool, err error) {
	if m.module == nil {
		return Empty, false, ErrModuleNotLoaded
	}

	for m.State.IsRunning() && m.State.PC < len(m.instructions) {
		v, ok, err := m.Step()
		if err != nil {
			m.State.Halt()
			return Empty, false, err
		}
		if ok {
			result, hasResult = v, true
		}
	}

	return result, hasResult, nil
}

// Step executes exactly one instruction. It returns a value only on a
// top-level return, which terminates the program.
func (m *VM) Step() (Value, bool, error) {
	// A jump landing outside the code, before or after it, halts the same
	// way running off the end does.
	if m.State.PC < 0 || m.State.PC >= len(m.instructions) {
		m.State.Halt()
		return Empty, false, nil
	}

	pc := m.State.PC
	inst := m.instructions[pc]

	// pc moves past the instruction before it executes; jump offsets are
	// relative to the post-increment pc.
	m.State.PC++
	m.instructionCount++

	if m.Debug {
		fmt.Fprintf(m.Stdout, "pc=%d %s\n", pc, inst)
	}

	return m.execute(inst, pc)
}

// execute dispatches one instruction. pc is the instruction's own index.
func (m *VM) execute(inst Instruction, pc int) (Value, bool, error) {
	switch inst := inst.(type) {

	// --- Data movement ---

	case LoadConstR:
		c, ok := m.constants.Get(inst.Const)
		if !ok {
			return Empty, false, &InvalidConstantError{Index: inst.Const}
		}
		m.Registers.Set(inst.Dst, c.ToValue())

	case MoveR:
		m.Registers.Set(inst.Dst, m.Registers.Get(inst.Src))

	case LoadGlobalR:
		name, err := m.stringConstant(inst.Name)
		if err != nil {
			return Empty, false, err
		}
		// Globals are sparse: an absent name yields Empty, not an error.
		value, ok := m.State.Globals[name]
		if !ok {
			value = Empty
		}
		m.Registers.Set(inst.Dst, value)

	case StoreGlobalR:
		name, err := m.stringConstant(inst.Name)
		if err != nil {
			return Empty, false, err
		}
		m.State.Globals[name] = m.Registers.Get(inst.Src)

	// --- Type operations ---

	case DefineR:
		m.Registers.SetType(inst.Dst, TypeFromID(inst.TypeID))

	case CheckTypeR:
		declared := m.Registers.GetType(inst.Src)
		m.Registers.Set(inst.Dst, BoolValue(declared == TypeFromID(inst.TypeID)))

	case CastR:
		casted, err := m.castValue(m.Registers.Get(inst.Src), TypeFromID(inst.TypeID))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, casted)

	// --- Arithmetic ---

	case AddR:
		result, err := Add(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, result)

	case SubR:
		result, err := Sub(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, result)

	case MulR:
		result, err := Mul(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, result)

	case DivR:
		result, err := Div(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, result)

	case ModR:
		result, err := Mod(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, result)

	case NegR:
		result, err := Negate(m.Registers.Get(inst.Src))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, result)

	// --- Logic ---

	case NotR:
		m.Registers.Set(inst.Dst, Not(m.Registers.Get(inst.Src)))

	case AndR:
		m.Registers.Set(inst.Dst, And(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right)))

	case OrR:
		m.Registers.Set(inst.Dst, Or(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right)))

	// --- Comparisons ---

	case EqR:
		m.Registers.Set(inst.Dst, BoolValue(Eq(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))))

	case NeqR:
		m.Registers.Set(inst.Dst, BoolValue(Neq(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))))

	case LtR:
		result, err := Lt(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, BoolValue(result))

	case GtR:
		result, err := Gt(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, BoolValue(result))

	case LteR:
		result, err := Lte(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, BoolValue(result))

	case GteR:
		result, err := Gte(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, BoolValue(result))

	// --- Control flow ---

	case JumpR:
		m.State.PC += int(inst.Offset)
		m.State.Predecessor = pc

	case JumpIfR:
		if m.Registers.Get(inst.Cond).IsTruthy() {
			m.State.PC += int(inst.Offset)
			m.State.Predecessor = pc
		}

	case JumpIfNotR:
		if !m.Registers.Get(inst.Cond).IsTruthy() {
			m.State.PC += int(inst.Offset)
			m.State.Predecessor = pc
		}

	case CallR:
		if err := m.call(inst); err != nil {
			return Empty, false, err
		}

	case ReturnR:
		var value Value
		var hasValue bool
		if inst.Src >= 0 {
			value = m.Registers.Get(uint8(inst.Src))
			hasValue = true
		}

		frame, ok := m.State.PopFrame()
		if !ok {
			// Top-level return: the value becomes the program's result.
			m.State.Halt()
			return value, hasValue, nil
		}

		m.State.PC = frame.ReturnAddr
		m.State.FP = frame.SavedFP
		m.Registers.Restore(frame.SavedRegs)
		if hasValue {
			m.Registers.Set(frame.Dst, value)
		}

	// --- SSA support ---

	case PhiR:
		// No matching predecessor leaves the destination unchanged. This is
		// the lowering contract the compiler relies on.
		if m.State.Predecessor != noPredecessor {
			for _, src := range inst.Sources {
				if int(src.Block) == m.State.Predecessor {
					m.Registers.Set(inst.Dst, m.Registers.Get(src.Src))
					break
				}
			}
		}

	case AssertR:
		value := m.Registers.Get(inst.Reg)
		var failed bool
		switch inst.Kind {
		case AssertTrue:
			failed = !value.IsTruthy()
		case AssertNonNull:
			failed = value.IsEmpty()
		case AssertRange:
			if value.TypeOf() == TypeInt {
				n := value.Int()
				failed = n < inst.Min || n > inst.Max
			} else {
				failed = true
			}
		}
		if failed {
			msg, err := m.stringConstant(inst.Msg)
			if err != nil {
				return Empty, false, err
			}
			return Empty, false, &AssertionError{Message: msg}
		}

	case ScopeEnterR:
		m.State.EnterScope(inst.Scope)

	case ScopeExitR:
		m.State.ExitScope(inst.Scope)

	// --- Strings and arrays ---

	case ConcatStrR:
		result, err := Concat(m.Registers.Get(inst.Left), m.Registers.Get(inst.Right))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, result)

	case StrLenR:
		result, err := StrLen(m.Registers.Get(inst.Src))
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, result)

	case NewArrayR:
		size := m.Registers.Get(inst.Size)
		if size.TypeOf() != TypeInt {
			return Empty, false, &TypeMismatchError{Expected: TypeInt.String(), Found: size.TypeOf().String()}
		}
		if n := size.Int(); n < 0 || n > MaxArrayLen {
			return Empty, false, &InvalidOperationError{Op: "new_array", Detail: fmt.Sprintf("size %d out of range", n)}
		}
		m.Registers.Set(inst.Dst, ArrayValue(NewArrayBuffer(int(size.Int()))))

	case ArrayGetR:
		arr, err := m.arrayOperand(inst.Array)
		if err != nil {
			return Empty, false, err
		}
		idx, err := m.indexOperand(inst.Index, arr.Len())
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, arr.At(idx))

	case ArraySetR:
		arr, err := m.arrayOperand(inst.Array)
		if err != nil {
			return Empty, false, err
		}
		idx, err := m.indexOperand(inst.Index, arr.Len())
		if err != nil {
			return Empty, false, err
		}
		// Copy-on-write: the writing register gets a new buffer; other
		// holders of the old buffer are unaffected.
		m.Registers.Set(inst.Array, ArrayValue(arr.With(idx, m.Registers.Get(inst.Value))))

	case ArrayLenR:
		arr, err := m.arrayOperand(inst.Array)
		if err != nil {
			return Empty, false, err
		}
		m.Registers.Set(inst.Dst, IntValue(int64(arr.Len())))

	// --- Debug and control ---

	case DebugPrint:
		value := m.Registers.Get(inst.Src)
		if !value.IsEmpty() {
			if m.Debug {
				fmt.Fprintln(m.Stdout, value.Debug())
			} else {
				fmt.Fprintln(m.Stdout, value.String())
			}
		}

	case BreakPoint:
		if m.Debug {
			fmt.Fprintf(m.Stdout, "breakpoint at pc %d\n", pc)
		}

	case Halt:
		m.State.Halt()

	case Nop:
		// nothing

	default:
		return Empty, false, &InvalidOperationError{Op: "dispatch", Detail: fmt.Sprintf("unhandled instruction %T", inst)}
	}

	return Empty, false, nil
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// call implements CallR: resolve the callee, snapshot and bind the parameter
// registers, push a frame and transfer control. Calls run on the explicit
// frame stack inside the dispatch loop, so call depth never grows the host
// stack.
func (m *VM) call(inst CallR) error {
	if len(inst.Args) > MaxCallArgs {
		return &InvalidOperationError{Op: "call", Detail: fmt.Sprintf("%d arguments exceeds maximum of %d", len(inst.Args), MaxCallArgs)}
	}
	if m.State.Depth() >= m.MaxCallDepth {
		return &InvalidOperationError{Op: "call", Detail: fmt.Sprintf("call depth exceeds %d", m.MaxCallDepth)}
	}

	entry, fn, err := m.resolveCallee(m.Registers.Get(inst.Func))
	if err != nil {
		return err
	}

	// Read all argument values before binding: an argument register may
	// itself be one of the parameter registers about to be overwritten.
	args := make([]Value, len(inst.Args))
	for i, reg := range inst.Args {
		args[i] = m.Registers.Get(reg)
	}

	// Snapshot exactly the parameter registers this call clobbers.
	params := make([]uint8, len(args))
	for i := range params {
		params[i] = uint8(i)
	}
	saved := m.Registers.Snapshot(params)

	for i, v := range args {
		m.Registers.Set(uint8(i), v)
	}

	m.State.PushFrame(CallFrame{
		ReturnAddr: m.State.PC,
		SavedFP:    m.State.FP,
		SavedRegs:  saved,
		Dst:        inst.Dst,
		Function:   fn,
	})
	m.State.FP = m.State.Depth()
	m.State.PC = entry
	return nil
}

// resolveCallee maps a callee value to an entry offset: String by name, Int
// by table index, Function by its own entry, anything else to the module's
// default entry.
func (m *VM) resolveCallee(callee Value) (int, *Function, error) {
	switch callee.TypeOf() {
	case TypeFunction:
		fn := callee.Func()
		if fn == nil {
			return 0, nil, &UndefinedFunctionError{Callee: "function<nil>"}
		}
		return fn.Entry, fn, nil

	case TypeString:
		name := callee.Str()
		entry, ok := m.module.FunctionByName(name)
		if !ok {
			return 0, nil, &UndefinedFunctionError{Callee: name}
		}
		return entry, &Function{Name: name, Entry: entry}, nil

	case TypeInt:
		idx := callee.Int()
		name, entry, ok := m.module.FunctionByIndex(int(idx))
		if !ok {
			return 0, nil, &UndefinedFunctionError{Callee: fmt.Sprintf("index %d", idx)}
		}
		return entry, &Function{Name: name, Entry: entry}, nil

	default:
		entry, fn := m.module.DefaultEntry()
		return entry, fn, nil
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// stringConstant resolves a constant index that must hold a String.
func (m *VM) stringConstant(idx uint16) (string, error) {
	c, ok := m.constants.Get(idx)
	if !ok || c.Kind != ConstString {
		return "", &InvalidConstantError{Index: idx}
	}
	return c.Str, nil
}

// castValue converts a value to a target type. Unsupported targets are a
// TypeMismatch.
func (m *VM) castValue(v Value, target Type) (Value, error) {
	switch target {
	case TypeBool:
		return BoolValue(v.ToBool()), nil
	case TypeInt:
		n, err := v.ToInt()
		if err != nil {
			return Empty, err
		}
		return IntValue(n), nil
	case TypeFloat:
		f, err := v.ToFloat()
		if err != nil {
			return Empty, err
		}
		return FloatValue(f), nil
	case TypeString:
		return StringValue(v.String()), nil
	default:
		return Empty, &TypeMismatchError{Expected: target.String(), Found: v.TypeOf().String()}
	}
}

func (m *VM) arrayOperand(reg uint8) (*Array, error) {
	v := m.Registers.Get(reg)
	if v.TypeOf() != TypeArray || v.Arr() == nil {
		return nil, &TypeMismatchError{Expected: TypeArray.String(), Found: v.TypeOf().String()}
	}
	return v.Arr(), nil
}

func (m *VM) indexOperand(reg uint8, length int) (int, error) {
	v := m.Registers.Get(reg)
	if v.TypeOf() != TypeInt {
		return 0, &TypeMismatchError{Expected: TypeInt.String(), Found: v.TypeOf().String()}
	}
	idx := int(v.Int())
	if idx < 0 || idx >= length {
		return 0, &IndexOutOfBoundsError{Index: idx, Length: length}
	}
	return idx, nil
}

// ---------------------------------------------------------------------------
// Stack traces
// ---------------------------------------------------------------------------

// StackTrace walks the current pc and every active call frame for
// diagnostic reporting. Frames without a resolved function name report
// "anonymous".
func (m *VM) StackTrace() []StackFrame {
	trace := make([]StackFrame, 0, m.State.Depth()+1)

	frameName := func(fn *Function) string {
		if fn == nil {
			return "anonymous"
		}
		return fn.Name
	}

	current := "main"
	if n := m.State.Depth(); n > 0 {
		current = frameName(m.State.CallStack[n-1].Function)
	}
	trace = append(trace, StackFrame{Function: current, PC: m.State.PC})

	for i := m.State.Depth() - 1; i >= 0; i-- {
		caller := "main"
		if i > 0 {
			caller = frameName(m.State.CallStack[i-1].Function)
		}
		trace = append(trace, StackFrame{Function: caller, PC: m.State.CallStack[i].ReturnAddr})
	}

	return trace
}
