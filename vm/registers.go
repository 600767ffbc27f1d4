package vm

// MaxRegisters is the fixed capacity of the register file. Register operands
// are a single byte, so the instruction encoding cannot address past it.
const MaxRegisters = 256

// RegisterSnapshot records one register's prior contents, replayed verbatim
// when a call frame is restored.
type RegisterSnapshot struct {
	Index uint8
	Value Value
}

// RegisterFile is the fixed-size array of typed value slots. Each slot holds
// a Value and a declared Type tag set by DefineR, independent of the Value's
// runtime tag.
type RegisterFile struct {
	values [MaxRegisters]Value
	types  [MaxRegisters]Type
}

// NewRegisterFile creates a register file with all slots Empty and all
// declared types Unknown.
func NewRegisterFile() *RegisterFile {
	rf := &RegisterFile{}
	rf.Clear()
	return rf
}

// Get returns the value in register i.
func (rf *RegisterFile) Get(i uint8) Value {
	return rf.values[i]
}

// Set stores v into register i.
func (rf *RegisterFile) Set(i uint8, v Value) {
	rf.values[i] = v
}

// GetType returns the declared type of register i.
func (rf *RegisterFile) GetType(i uint8) Type {
	return rf.types[i]
}

// SetType sets the declared type of register i without touching its value.
func (rf *RegisterFile) SetType(i uint8, t Type) {
	rf.types[i] = t
}

// Clear resets every slot to Empty and every declared type to Unknown.
func (rf *RegisterFile) Clear() {
	for i := range rf.values {
		rf.values[i] = Empty
		rf.types[i] = TypeUnknown
	}
}

// Snapshot records the current contents of the given registers.
func (rf *RegisterFile) Snapshot(indices []uint8) []RegisterSnapshot {
	snap := make([]RegisterSnapshot, len(indices))
	for i, idx := range indices {
		snap[i] = RegisterSnapshot{Index: idx, Value: rf.values[idx]}
	}
	return snap
}

// Restore replays a snapshot, returning the recorded registers to their
// exact prior contents.
func (rf *RegisterFile) Restore(snap []RegisterSnapshot) {
	for _, s := range snap {
		rf.values[s.Index] = s.Value
	}
}
