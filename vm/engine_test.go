package vm

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// mustRun loads and runs a module, failing the test on any runtime error.
func mustRun(t *testing.T, mod *BytecodeModule) (*VM, Value, bool) {
	t.Helper()
	m := New()
	m.Stdout = io.Discard
	if err := m.LoadModule(mod); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	v, ok, err := m.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return m, v, ok
}

// runExpectingError loads and runs a module that must fault.
func runExpectingError(t *testing.T, mod *BytecodeModule) (*VM, error) {
	t.Helper()
	m := New()
	m.Stdout = io.Discard
	if err := m.LoadModule(mod); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	_, _, err := m.Run()
	if err == nil {
		t.Fatal("Run: expected an error")
	}
	return m, err
}

func TestRunWithoutModule(t *testing.T) {
	if _, _, err := New().Run(); !errors.Is(err, ErrModuleNotLoaded) {
		t.Errorf("got %v, want ErrModuleNotLoaded", err)
	}
}

func TestTopLevelReturn(t *testing.T) {
	mod := NewBytecodeModule("answer")
	c := mod.Constants.Add(IntConstant(42))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: c},
		ReturnR{Src: 0},
	}

	_, v, ok := mustRun(t, mod)
	if !ok {
		t.Fatal("expected a result")
	}
	if v.TypeOf() != TypeInt || v.Int() != 42 {
		t.Errorf("result = %s, want Int(42)", v.Debug())
	}
}

func TestHaltProducesNoResult(t *testing.T) {
	mod := NewBytecodeModule("halt")
	mod.Instructions = []Instruction{Halt{}}

	_, _, ok := mustRun(t, mod)
	if ok {
		t.Error("halt should not produce a result")
	}
}

func TestReturnWithoutValue(t *testing.T) {
	mod := NewBytecodeModule("bare-return")
	mod.Instructions = []Instruction{ReturnR{Src: -1}}

	_, _, ok := mustRun(t, mod)
	if ok {
		t.Error("bare return should not produce a result")
	}
}

func TestFallingOffTheEndHalts(t *testing.T) {
	mod := NewBytecodeModule("no-terminator")
	mod.Instructions = []Instruction{Nop{}, Nop{}}

	m, _, ok := mustRun(t, mod)
	if ok {
		t.Error("expected no result")
	}
	if m.InstructionCount() != 2 {
		t.Errorf("InstructionCount = %d, want 2", m.InstructionCount())
	}
}

func TestStringIntAdditionFaults(t *testing.T) {
	// "42" + 8 is a type error, not a coercion.
	mod := NewBytecodeModule("bad-add")
	cs := mod.Constants.Add(StringConstant("42"))
	ci := mod.Constants.Add(IntConstant(8))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: cs},
		LoadConstR{Dst: 1, Const: ci},
		AddR{Dst: 2, Left: 0, Right: 1},
		ReturnR{Src: 2},
	}

	_, err := runExpectingError(t, mod)
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("got %v, want TypeMismatchError", err)
	}
}

func TestCountingLoop(t *testing.T) {
	// i = 0; while i < 5 { i = i + 1 }; return i
	mod := NewBytecodeModule("count")
	c0 := mod.Constants.Add(IntConstant(0))
	c5 := mod.Constants.Add(IntConstant(5))
	c1 := mod.Constants.Add(IntConstant(1))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: c0}, // 0: i
		LoadConstR{Dst: 2, Const: c5}, // 1: limit
		LoadConstR{Dst: 3, Const: c1}, // 2: step
		LtR{Dst: 1, Left: 0, Right: 2},  // 3
		JumpIfNotR{Cond: 1, Offset: 2},  // 4: exit to 7
		AddR{Dst: 0, Left: 0, Right: 3}, // 5
		JumpR{Offset: -4},               // 6: back to 3
		ReturnR{Src: 0},                 // 7
	}

	m, v, ok := mustRun(t, mod)
	if !ok || v.TypeOf() != TypeInt || v.Int() != 5 {
		t.Fatalf("result = %s (ok=%v), want Int(5)", v.Debug(), ok)
	}
	// 3 setup + 5 iterations of 4 + exit check of 2 + return.
	if m.InstructionCount() != 26 {
		t.Errorf("InstructionCount = %d, want 26", m.InstructionCount())
	}
}

func TestJumpOffsetsAreRelativeToNextInstruction(t *testing.T) {
	mod := NewBytecodeModule("skip")
	c1 := mod.Constants.Add(IntConstant(1))
	c2 := mod.Constants.Add(IntConstant(2))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: c1}, // 0
		JumpR{Offset: 1},              // 1: lands on 3, skipping 2
		LoadConstR{Dst: 0, Const: c2}, // 2
		ReturnR{Src: 0},               // 3
	}

	_, v, _ := mustRun(t, mod)
	if v.Int() != 1 {
		t.Errorf("result = %s, want Int(1): offset must skip the overwrite", v.Debug())
	}
}

func TestJumpBeforeProgramStartHalts(t *testing.T) {
	// A taken jump can land before instruction 0; that halts cleanly instead
	// of faulting or indexing out of range.
	mod := NewBytecodeModule("backwards")
	mod.Instructions = []Instruction{
		JumpR{Offset: -10},
		Halt{},
	}

	m, _, ok := mustRun(t, mod)
	if ok {
		t.Error("expected no result")
	}
	if m.State.IsRunning() {
		t.Error("engine should have halted")
	}
	if m.InstructionCount() != 1 {
		t.Errorf("InstructionCount = %d, want 1", m.InstructionCount())
	}
}

func TestConditionalJumpBeforeProgramStartHalts(t *testing.T) {
	mod := NewBytecodeModule("cond-backwards")
	c := mod.Constants.Add(BoolConstant(true))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: c},
		JumpIfR{Cond: 0, Offset: -100},
		Halt{},
	}

	_, _, ok := mustRun(t, mod)
	if ok {
		t.Error("expected no result")
	}
}

func TestPhiSelectsByPredecessor(t *testing.T) {
	build := func(cond bool) *BytecodeModule {
		mod := NewBytecodeModule("branch")
		cc := mod.Constants.Add(BoolConstant(cond))
		c1 := mod.Constants.Add(IntConstant(1))
		c2 := mod.Constants.Add(IntConstant(2))
		mod.Instructions = []Instruction{
			LoadConstR{Dst: 0, Const: cc},    // 0
			JumpIfNotR{Cond: 0, Offset: 3},   // 1: else at 5
			LoadConstR{Dst: 1, Const: c1},    // 2: then
			JumpR{Offset: 3},                 // 3: merge at 7
			Nop{},                            // 4
			LoadConstR{Dst: 2, Const: c2},    // 5: else
			JumpR{Offset: 0},                 // 6: merge at 7
			PhiR{Dst: 3, Sources: []PhiSource{{Src: 1, Block: 3}, {Src: 2, Block: 6}}}, // 7
			ReturnR{Src: 3}, // 8
		}
		return mod
	}

	if _, v, _ := mustRun(t, build(true)); v.Int() != 1 {
		t.Errorf("then branch: phi selected %s, want Int(1)", v.Debug())
	}
	if _, v, _ := mustRun(t, build(false)); v.Int() != 2 {
		t.Errorf("else branch: phi selected %s, want Int(2)", v.Debug())
	}
}

func TestPhiWithoutMatchLeavesDestination(t *testing.T) {
	mod := NewBytecodeModule("phi-nomatch")
	c := mod.Constants.Add(IntConstant(42))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 3, Const: c},                                // 0
		JumpR{Offset: 0},                                            // 1: predecessor is now 1
		PhiR{Dst: 3, Sources: []PhiSource{{Src: 0, Block: 99}}},     // 2: no source matches
		ReturnR{Src: 3},                                             // 3
	}

	_, v, _ := mustRun(t, mod)
	if v.Int() != 42 {
		t.Errorf("result = %s, want the prior Int(42)", v.Debug())
	}
}

func TestCallBindsArgsAndDeliversReturnValue(t *testing.T) {
	// main calls add1(10) by name; add1 reads its argument from r0.
	mod := NewBytecodeModule("call")
	c10 := mod.Constants.Add(IntConstant(10))
	c99 := mod.Constants.Add(IntConstant(99))
	cfn := mod.Constants.Add(StringConstant("add1"))
	c1 := mod.Constants.Add(IntConstant(1))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 5, Const: c10},                // 0: argument
		LoadConstR{Dst: 0, Const: c99},                // 1: sentinel in the param register
		LoadConstR{Dst: 6, Const: cfn},                // 2: callee name
		CallR{Dst: 7, Func: 6, Args: []uint8{5}},      // 3
		ReturnR{Src: 7},                               // 4
		LoadConstR{Dst: 1, Const: c1},                 // 5: add1 body
		AddR{Dst: 2, Left: 0, Right: 1},               // 6
		ReturnR{Src: 2},                               // 7
	}
	mod.AddFunction("add1", 5)

	m, v, ok := mustRun(t, mod)
	if !ok || v.Int() != 11 {
		t.Fatalf("result = %s, want Int(11)", v.Debug())
	}
	// The parameter register the call clobbered is restored on return.
	if got := m.Registers.Get(0); got.Int() != 99 {
		t.Errorf("r0 = %s after return, want the caller's Int(99)", got.Debug())
	}
}

func TestCallResolvesByIndexAndFunctionValue(t *testing.T) {
	mod := NewBytecodeModule("resolve")
	cIdx := mod.Constants.Add(IntConstant(0))
	cFn := mod.Constants.Add(FunctionConstant("seven", 4))
	c7 := mod.Constants.Add(IntConstant(7))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 6, Const: cIdx},          // 0: callee by table index
		CallR{Dst: 1, Func: 6, Args: nil},        // 1
		LoadConstR{Dst: 6, Const: cFn},           // 2: callee as a Function value
		CallR{Dst: 2, Func: 6, Args: nil},        // 3 -> then the add below runs after both return
		LoadConstR{Dst: 0, Const: c7},            // 4: seven body
		ReturnR{Src: 0},                          // 5
	}
	mod.AddFunction("seven", 4)

	// The program as laid out returns from the second call into pc 4 and runs
	// seven's body at the top level, returning 7.
	_, v, ok := mustRun(t, mod)
	if !ok || v.Int() != 7 {
		t.Fatalf("result = %s, want Int(7)", v.Debug())
	}
}

func TestCallUndefinedFunction(t *testing.T) {
	mod := NewBytecodeModule("missing")
	c := mod.Constants.Add(StringConstant("nope"))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: c},
		CallR{Dst: 1, Func: 0, Args: nil},
	}

	_, err := runExpectingError(t, mod)
	var undef *UndefinedFunctionError
	if !errors.As(err, &undef) {
		t.Fatalf("got %v, want UndefinedFunctionError", err)
	}
	if undef.Callee != "nope" {
		t.Errorf("Callee = %q, want \"nope\"", undef.Callee)
	}
}

func TestCallDepthIsBounded(t *testing.T) {
	// loop() calls itself forever; the depth bound stops it.
	mod := NewBytecodeModule("recurse")
	c := mod.Constants.Add(StringConstant("loop"))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 6, Const: c},      // 0
		CallR{Dst: 7, Func: 6, Args: nil}, // 1
	}
	mod.AddFunction("loop", 0)

	m := New()
	m.Stdout = io.Discard
	m.MaxCallDepth = 8
	if err := m.LoadModule(mod); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	_, _, err := m.Run()
	var invalid *InvalidOperationError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidOperationError", err)
	}
	if !strings.Contains(invalid.Detail, "call depth") {
		t.Errorf("Detail = %q, want a call depth message", invalid.Detail)
	}
}

func TestTooManyCallArguments(t *testing.T) {
	mod := NewBytecodeModule("too-many-args")
	args := make([]uint8, MaxCallArgs+1)
	mod.Instructions = []Instruction{
		CallR{Dst: 0, Func: 0, Args: args},
	}
	mod.AddFunction("main", 0)

	_, err := runExpectingError(t, mod)
	var invalid *InvalidOperationError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v, want InvalidOperationError", err)
	}
}

func TestGlobals(t *testing.T) {
	mod := NewBytecodeModule("globals")
	cName := mod.Constants.Add(StringConstant("counter"))
	cVal := mod.Constants.Add(IntConstant(10))
	cMissing := mod.Constants.Add(StringConstant("missing"))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: cVal},
		StoreGlobalR{Src: 0, Name: cName},
		LoadGlobalR{Dst: 1, Name: cName},
		LoadGlobalR{Dst: 2, Name: cMissing},
		ReturnR{Src: 1},
	}
	mod.GlobalNames = []string{"counter"}

	m, v, _ := mustRun(t, mod)
	if v.Int() != 10 {
		t.Errorf("result = %s, want Int(10)", v.Debug())
	}
	// Reading an absent global yields Empty, not an error.
	if got := m.Registers.Get(2); !got.IsEmpty() {
		t.Errorf("absent global read %s, want Empty", got.Debug())
	}
}

func TestCastStringToInt(t *testing.T) {
	mod := NewBytecodeModule("cast")
	c := mod.Constants.Add(StringConstant("12"))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: c},
		CastR{Dst: 1, Src: 0, TypeID: 2},
		ReturnR{Src: 1},
	}

	_, v, _ := mustRun(t, mod)
	if v.TypeOf() != TypeInt || v.Int() != 12 {
		t.Errorf("result = %s, want Int(12)", v.Debug())
	}
}

func TestCastFailures(t *testing.T) {
	build := func(c ConstantValue, typeID uint16) *BytecodeModule {
		mod := NewBytecodeModule("cast-fail")
		idx := mod.Constants.Add(c)
		mod.Instructions = []Instruction{
			LoadConstR{Dst: 0, Const: idx},
			CastR{Dst: 1, Src: 0, TypeID: typeID},
		}
		return mod
	}

	// Unparsable string to int.
	_, err := runExpectingError(t, build(StringConstant("abc"), 2))
	var invalid *InvalidOperationError
	if !errors.As(err, &invalid) {
		t.Errorf("cast \"abc\" to int: got %v, want InvalidOperationError", err)
	}

	// Function is not a cast target.
	_, err = runExpectingError(t, build(IntConstant(1), 5))
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Errorf("cast to function: got %v, want TypeMismatchError", err)
	}
}

func TestDefineAndCheckType(t *testing.T) {
	mod := NewBytecodeModule("typecheck")
	mod.Instructions = []Instruction{
		DefineR{Dst: 0, TypeID: 2},              // declare r0 as int
		CheckTypeR{Dst: 1, Src: 0, TypeID: 2},   // matches
		CheckTypeR{Dst: 2, Src: 0, TypeID: 4},   // does not
		ReturnR{Src: 1},
	}

	m, v, _ := mustRun(t, mod)
	if v.TypeOf() != TypeBool || !v.Bool() {
		t.Errorf("matching check = %s, want Bool(true)", v.Debug())
	}
	if got := m.Registers.Get(2); got.Bool() {
		t.Errorf("mismatched check = %s, want Bool(false)", got.Debug())
	}
}

func TestAsserts(t *testing.T) {
	buildAssert := func(c ConstantValue, kind AssertKind, min, max int64) *BytecodeModule {
		mod := NewBytecodeModule("assert")
		idx := mod.Constants.Add(c)
		msg := mod.Constants.Add(StringConstant("check failed"))
		mod.Instructions = []Instruction{
			LoadConstR{Dst: 0, Const: idx},
			AssertR{Reg: 0, Kind: kind, Min: min, Max: max, Msg: msg},
			ReturnR{Src: 0},
		}
		return mod
	}

	// Passing asserts are invisible.
	if _, v, _ := mustRun(t, buildAssert(IntConstant(5), AssertRange, 0, 10)); v.Int() != 5 {
		t.Errorf("passing range assert changed the result: %s", v.Debug())
	}
	mustRun(t, buildAssert(BoolConstant(true), AssertTrue, 0, 0))
	mustRun(t, buildAssert(IntConstant(1), AssertNonNull, 0, 0))

	var assertion *AssertionError

	_, err := runExpectingError(t, buildAssert(IntConstant(0), AssertTrue, 0, 0))
	if !errors.As(err, &assertion) {
		t.Fatalf("failed AssertTrue: got %v, want AssertionError", err)
	}
	if assertion.Message != "check failed" {
		t.Errorf("Message = %q", assertion.Message)
	}

	if _, err := runExpectingError(t, buildAssert(IntConstant(11), AssertRange, 0, 10)); !errors.As(err, &assertion) {
		t.Errorf("out-of-range assert: got %v", err)
	}
	if _, err := runExpectingError(t, buildAssert(EmptyConstant(), AssertNonNull, 0, 0)); !errors.As(err, &assertion) {
		t.Errorf("AssertNonNull on Empty: got %v", err)
	}
	// Range asserts only hold for ints.
	if _, err := runExpectingError(t, buildAssert(StringConstant("5"), AssertRange, 0, 10)); !errors.As(err, &assertion) {
		t.Errorf("range assert on string: got %v", err)
	}
}

func TestScopeTracking(t *testing.T) {
	mod := NewBytecodeModule("scopes")
	mod.Instructions = []Instruction{
		ScopeEnterR{Scope: 1},
		ScopeEnterR{Scope: 2},
		ScopeExitR{Scope: 2},
		Halt{},
	}

	m, _, _ := mustRun(t, mod)
	if m.State.ScopeDepth() != 1 {
		t.Errorf("ScopeDepth = %d, want 1", m.State.ScopeDepth())
	}
}

func TestArrayCopyOnWrite(t *testing.T) {
	mod := NewBytecodeModule("cow")
	cSize := mod.Constants.Add(IntConstant(3))
	cIdx := mod.Constants.Add(IntConstant(0))
	cVal := mod.Constants.Add(IntConstant(7))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: cSize},          // 0
		NewArrayR{Dst: 1, Size: 0},                // 1
		MoveR{Dst: 2, Src: 1},                     // 2: alias the buffer
		LoadConstR{Dst: 3, Const: cIdx},           // 3
		LoadConstR{Dst: 4, Const: cVal},           // 4
		ArraySetR{Array: 1, Index: 3, Value: 4},   // 5: writes a fresh buffer into r1
		ArrayGetR{Dst: 5, Array: 2, Index: 3},     // 6: the alias still sees the old buffer
		ArrayGetR{Dst: 6, Array: 1, Index: 3},     // 7
		ReturnR{Src: 6},                           // 8
	}

	m, v, _ := mustRun(t, mod)
	if v.Int() != 7 {
		t.Errorf("written element = %s, want Int(7)", v.Debug())
	}
	if got := m.Registers.Get(5); !got.IsEmpty() {
		t.Errorf("aliased buffer element = %s, want Empty: writes must not leak through aliases", got.Debug())
	}
}

func TestArrayLen(t *testing.T) {
	mod := NewBytecodeModule("arraylen")
	cSize := mod.Constants.Add(IntConstant(4))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: cSize},
		NewArrayR{Dst: 1, Size: 0},
		ArrayLenR{Dst: 2, Array: 1},
		ReturnR{Src: 2},
	}

	_, v, _ := mustRun(t, mod)
	if v.Int() != 4 {
		t.Errorf("length = %s, want Int(4)", v.Debug())
	}
}

func TestArrayBounds(t *testing.T) {
	mod := NewBytecodeModule("bounds")
	cSize := mod.Constants.Add(IntConstant(3))
	cIdx := mod.Constants.Add(IntConstant(5))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: cSize},
		NewArrayR{Dst: 1, Size: 0},
		LoadConstR{Dst: 2, Const: cIdx},
		ArrayGetR{Dst: 3, Array: 1, Index: 2},
	}

	_, err := runExpectingError(t, mod)
	var oob *IndexOutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("got %v, want IndexOutOfBoundsError", err)
	}
	if oob.Index != 5 || oob.Length != 3 {
		t.Errorf("got index %d length %d, want 5 and 3", oob.Index, oob.Length)
	}
}

func TestNewArraySizeOutOfRange(t *testing.T) {
	// Negative sizes and sizes too large to allocate both fail typed; a
	// loadable module can carry any int64 constant as the size.
	for _, size := range []int64{-1, MaxArrayLen + 1, 1 << 62} {
		mod := NewBytecodeModule("badsize")
		c := mod.Constants.Add(IntConstant(size))
		mod.Instructions = []Instruction{
			LoadConstR{Dst: 0, Const: c},
			NewArrayR{Dst: 1, Size: 0},
		}

		_, err := runExpectingError(t, mod)
		var invalid *InvalidOperationError
		if !errors.As(err, &invalid) {
			t.Fatalf("size %d: got %v, want InvalidOperationError", size, err)
		}
	}
}

func TestInvalidConstantIndex(t *testing.T) {
	mod := NewBytecodeModule("badconst")
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: 9},
	}

	_, err := runExpectingError(t, mod)
	var badConst *InvalidConstantError
	if !errors.As(err, &badConst) {
		t.Fatalf("got %v, want InvalidConstantError", err)
	}
	if badConst.Index != 9 {
		t.Errorf("Index = %d, want 9", badConst.Index)
	}
}

func TestDebugPrintOutput(t *testing.T) {
	mod := NewBytecodeModule("print")
	c := mod.Constants.Add(IntConstant(5))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: c},
		DebugPrint{Src: 0},
		DebugPrint{Src: 1}, // Empty prints nothing
		Halt{},
	}

	var out bytes.Buffer
	m := New()
	m.Stdout = &out
	if err := m.LoadModule(mod); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if _, _, err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if out.String() != "5\n" {
		t.Errorf("output = %q, want \"5\\n\"", out.String())
	}

	// Debug mode prints the tagged form plus a trace line per instruction.
	out.Reset()
	m.Debug = true
	if err := m.LoadModule(mod); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if _, _, err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "Int(5)") {
		t.Errorf("debug output %q should contain Int(5)", out.String())
	}
	if !strings.Contains(out.String(), "pc=0") {
		t.Errorf("debug output %q should contain a trace line", out.String())
	}
}

func TestLoadModuleResetsState(t *testing.T) {
	mod := NewBytecodeModule("reset")
	c := mod.Constants.Add(IntConstant(1))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 0, Const: c},
		ReturnR{Src: 0},
	}

	m := New()
	m.Stdout = io.Discard
	if err := m.LoadModule(mod); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if _, _, err := m.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.InstructionCount() != 2 {
		t.Fatalf("InstructionCount = %d, want 2", m.InstructionCount())
	}

	// Reloading starts fresh: counter zeroed, registers cleared, pc at 0.
	if err := m.LoadModule(mod); err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	if m.InstructionCount() != 0 {
		t.Errorf("InstructionCount after reload = %d, want 0", m.InstructionCount())
	}
	if !m.Registers.Get(0).IsEmpty() {
		t.Error("registers should be cleared on reload")
	}
	if m.State.PC != 0 || !m.State.IsRunning() {
		t.Error("state should be reset on reload")
	}
}

func TestStackTraceOnFault(t *testing.T) {
	// main calls boom, which divides by zero.
	mod := NewBytecodeModule("trace")
	cfn := mod.Constants.Add(StringConstant("boom"))
	c1 := mod.Constants.Add(IntConstant(1))
	c0 := mod.Constants.Add(IntConstant(0))
	mod.Instructions = []Instruction{
		LoadConstR{Dst: 6, Const: cfn},    // 0
		CallR{Dst: 7, Func: 6, Args: nil}, // 1
		ReturnR{Src: -1},                  // 2
		LoadConstR{Dst: 0, Const: c1},     // 3: boom body
		LoadConstR{Dst: 1, Const: c0},     // 4
		DivR{Dst: 2, Left: 0, Right: 1},   // 5
	}
	mod.AddFunction("boom", 3)

	m, err := runExpectingError(t, mod)
	var divErr *DivisionByZeroError
	if !errors.As(err, &divErr) {
		t.Fatalf("got %v, want DivisionByZeroError", err)
	}

	trace := m.StackTrace()
	if len(trace) != 2 {
		t.Fatalf("trace has %d frames, want 2: %v", len(trace), trace)
	}
	if trace[0].Function != "boom" {
		t.Errorf("innermost frame = %q, want \"boom\"", trace[0].Function)
	}
	if trace[1].Function != "main" {
		t.Errorf("outermost frame = %q, want \"main\"", trace[1].Function)
	}
}
