package vm

// BytecodeModule is the fully loaded, in-memory representation of one
// compiled program. It is immutable once loaded and owned by exactly one VM
// instance at a time; reloading replaces it wholesale.
type BytecodeModule struct {
	Name    string
	Version uint32
	Flags   uint32

	Constants    *ConstantPool
	Instructions []Instruction

	// Functions maps unique function names to entry instruction offsets.
	// FunctionOrder preserves table order for resolution by numeric index.
	Functions     map[string]int
	FunctionOrder []string

	// GlobalNames lists the module's declared globals, in declaration order.
	GlobalNames []string
}

// NewBytecodeModule creates an empty module with the given name.
func NewBytecodeModule(name string) *BytecodeModule {
	return &BytecodeModule{
		Name:      name,
		Version:   1,
		Constants: NewConstantPool(),
		Functions: make(map[string]int),
	}
}

// AddFunction registers a function entry. The first registration of a name
// wins; duplicate names are rejected by the loader before this point.
func (m *BytecodeModule) AddFunction(name string, entry int) {
	if _, exists := m.Functions[name]; exists {
		return
	}
	m.Functions[name] = entry
	m.FunctionOrder = append(m.FunctionOrder, name)
}

// FunctionByName resolves a function entry by name.
func (m *BytecodeModule) FunctionByName(name string) (int, bool) {
	entry, ok := m.Functions[name]
	return entry, ok
}

// FunctionByIndex resolves a function by table order.
func (m *BytecodeModule) FunctionByIndex(i int) (string, int, bool) {
	if i < 0 || i >= len(m.FunctionOrder) {
		return "", 0, false
	}
	name := m.FunctionOrder[i]
	return name, m.Functions[name], true
}

// DefaultEntry returns the module-level default call target: the function
// named "main" when present, otherwise instruction offset 0 with no name.
func (m *BytecodeModule) DefaultEntry() (int, *Function) {
	if entry, ok := m.Functions["main"]; ok {
		return entry, &Function{Name: "main", Entry: entry}
	}
	return 0, nil
}
