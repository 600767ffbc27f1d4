package vm

// ---------------------------------------------------------------------------
// Call frames and VM state
// ---------------------------------------------------------------------------

// CallFrame is the saved caller state pushed on call and popped on return.
// SavedRegs covers exactly the registers clobbered by argument binding for
// this call.
type CallFrame struct {
	ReturnAddr int
	SavedFP    int
	SavedRegs  []RegisterSnapshot
	Dst        uint8     // caller register receiving the return value
	Function   *Function // callee, for stack traces; nil means anonymous
}

// noPredecessor marks that no branch has been taken yet.
const noPredecessor = -1

// VMState holds the mutable execution state of one VM instance.
type VMState struct {
	PC        int
	FP        int
	CallStack []CallFrame
	Globals   map[string]Value
	Scopes    []uint16

	// Predecessor is the pc of the last taken jump instruction, consumed by
	// phi resolution. noPredecessor until the first taken branch.
	Predecessor int

	running bool
}

// NewVMState creates a fresh state, ready to run at pc 0.
func NewVMState() *VMState {
	s := &VMState{}
	s.Reset()
	return s
}

// Reset restores pc=0, fp=0, an empty call stack, empty globals and scopes,
// and marks the VM running.
func (s *VMState) Reset() {
	s.PC = 0
	s.FP = 0
	s.CallStack = s.CallStack[:0]
	s.Globals = make(map[string]Value)
	s.Scopes = s.Scopes[:0]
	s.Predecessor = noPredecessor
	s.running = true
}

// IsRunning reports whether the VM has not halted.
func (s *VMState) IsRunning() bool {
	return s.running
}

// Halt stops execution.
func (s *VMState) Halt() {
	s.running = false
}

// PushFrame pushes a call frame.
func (s *VMState) PushFrame(frame CallFrame) {
	s.CallStack = append(s.CallStack, frame)
}

// PopFrame pops the innermost call frame. The second return is false when
// the call stack is empty, which callers treat as program termination.
func (s *VMState) PopFrame() (CallFrame, bool) {
	if len(s.CallStack) == 0 {
		return CallFrame{}, false
	}
	frame := s.CallStack[len(s.CallStack)-1]
	s.CallStack = s.CallStack[:len(s.CallStack)-1]
	return frame, true
}

// Depth returns the current call depth.
func (s *VMState) Depth() int {
	return len(s.CallStack)
}

// EnterScope pushes a lexical scope id.
func (s *VMState) EnterScope(id uint16) {
	s.Scopes = append(s.Scopes, id)
}

// ExitScope pops the top scope entry. Scope tracking is bookkeeping only; a
// mismatched id is ignored since the compiler emits balanced pairs.
func (s *VMState) ExitScope(id uint16) {
	if len(s.Scopes) > 0 {
		s.Scopes = s.Scopes[:len(s.Scopes)-1]
	}
}

// ScopeDepth returns the number of active scopes.
func (s *VMState) ScopeDepth() int {
	return len(s.Scopes)
}
