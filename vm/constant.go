package vm

// ---------------------------------------------------------------------------
// Constant Pool
// ---------------------------------------------------------------------------

// ConstantKind identifies the kind of a constant-pool entry.
type ConstantKind uint8

const (
	ConstEmpty ConstantKind = iota
	ConstBool
	ConstInt
	ConstFloat
	ConstString
	ConstURL
	ConstFunction
)

// ConstantValue is one entry in a module's constant pool. Each entry converts
// deterministically to exactly one runtime Value.
type ConstantValue struct {
	Kind  ConstantKind
	Bool  bool
	Int   int64
	Float float64
	Str   string // String and URL payload; Function name
	Entry int    // Function entry offset
}

// EmptyConstant creates an Empty constant.
func EmptyConstant() ConstantValue {
	return ConstantValue{Kind: ConstEmpty}
}

// BoolConstant creates a Bool constant.
func BoolConstant(b bool) ConstantValue {
	return ConstantValue{Kind: ConstBool, Bool: b}
}

// IntConstant creates an Int constant.
func IntConstant(n int64) ConstantValue {
	return ConstantValue{Kind: ConstInt, Int: n}
}

// FloatConstant creates a Float constant.
func FloatConstant(f float64) ConstantValue {
	return ConstantValue{Kind: ConstFloat, Float: f}
}

// StringConstant creates a String constant.
func StringConstant(s string) ConstantValue {
	return ConstantValue{Kind: ConstString, Str: s}
}

// URLConstant creates a URL constant.
func URLConstant(s string) ConstantValue {
	return ConstantValue{Kind: ConstURL, Str: s}
}

// FunctionConstant creates a Function constant.
func FunctionConstant(name string, entry int) ConstantValue {
	return ConstantValue{Kind: ConstFunction, Str: name, Entry: entry}
}

// ToValue converts the constant into its runtime Value. String constants
// yield a fresh shared String value.
func (c ConstantValue) ToValue() Value {
	switch c.Kind {
	case ConstBool:
		return BoolValue(c.Bool)
	case ConstInt:
		return IntValue(c.Int)
	case ConstFloat:
		return FloatValue(c.Float)
	case ConstString:
		return StringValue(c.Str)
	case ConstURL:
		return URLValue(c.Str)
	case ConstFunction:
		return FuncValue(&Function{Name: c.Str, Entry: c.Entry})
	default:
		return Empty
	}
}

// ConstantPool is an ordered, indexable table of constants.
type ConstantPool struct {
	entries []ConstantValue
}

// NewConstantPool creates an empty pool.
func NewConstantPool() *ConstantPool {
	return &ConstantPool{entries: make([]ConstantValue, 0, 8)}
}

// Add appends a constant and returns its index. Identical entries are
// deduplicated.
func (p *ConstantPool) Add(c ConstantValue) uint16 {
	for i, existing := range p.entries {
		if existing == c {
			return uint16(i)
		}
	}
	idx := uint16(len(p.entries))
	p.entries = append(p.entries, c)
	return idx
}

// Append appends a constant without deduplication, preserving indices
// exactly. Used when reconstructing a pool from the wire.
func (p *ConstantPool) Append(c ConstantValue) {
	p.entries = append(p.entries, c)
}

// Get returns the constant at the given index. Out-of-range lookups report
// failure, never a default.
func (p *ConstantPool) Get(idx uint16) (ConstantValue, bool) {
	if int(idx) >= len(p.entries) {
		return ConstantValue{}, false
	}
	return p.entries[idx], true
}

// Len returns the number of entries.
func (p *ConstantPool) Len() int {
	return len(p.entries)
}

// Entries returns the ordered entries for serialization.
func (p *ConstantPool) Entries() []ConstantValue {
	return p.entries
}
