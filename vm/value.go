package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Type: runtime type tags
// ---------------------------------------------------------------------------

// Type identifies the runtime kind of a Value. It is also used for declared
// register types (DefineR) and runtime type checks and casts.
type Type uint8

const (
	TypeEmpty Type = iota
	TypeBool
	TypeInt
	TypeFloat
	TypeString
	TypeFunction
	TypeURL
	TypeArray
	TypeUnknown
)

// String returns a human-readable name for the type.
func (t Type) String() string {
	switch t {
	case TypeEmpty:
		return "empty"
	case TypeBool:
		return "bool"
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeFunction:
		return "function"
	case TypeURL:
		return "url"
	case TypeArray:
		return "array"
	default:
		return "unknown"
	}
}

// TypeFromID maps a bytecode type id to a Type. Ids 0-6 follow the original
// encoding table; 7 is array; anything else is unknown.
func TypeFromID(id uint16) Type {
	switch id {
	case 0:
		return TypeEmpty
	case 1:
		return TypeBool
	case 2:
		return TypeInt
	case 3:
		return TypeFloat
	case 4:
		return TypeString
	case 5:
		return TypeFunction
	case 6:
		return TypeURL
	case 7:
		return TypeArray
	default:
		return TypeUnknown
	}
}

// ---------------------------------------------------------------------------
// Function and Array payloads
// ---------------------------------------------------------------------------

// Function describes a callable entry in a module's function table.
type Function struct {
	Name  string
	Entry int // entry instruction offset
}

// Array is a shared immutable buffer of Values. Mutation goes through With,
// which copies; holders of the old buffer are never affected.
type Array struct {
	elems []Value
}

// MaxArrayLen bounds the element count a single allocation will accept. A
// loadable module can request any int64 size, so the engine checks against
// this before allocating.
const MaxArrayLen = 1 << 30

// NewArrayBuffer allocates an array of the given size, filled with Empty.
func NewArrayBuffer(size int) *Array {
	return &Array{elems: make([]Value, size)}
}

// Len returns the number of elements.
func (a *Array) Len() int {
	return len(a.elems)
}

// At returns the element at index i. The caller checks bounds.
func (a *Array) At(i int) Value {
	return a.elems[i]
}

// With returns a new Array equal to a except that index i holds v.
func (a *Array) With(i int, v Value) *Array {
	elems := make([]Value, len(a.elems))
	copy(elems, a.elems)
	elems[i] = v
	return &Array{elems: elems}
}

// ---------------------------------------------------------------------------
// Value: tagged runtime value
// ---------------------------------------------------------------------------

// Value is the runtime value union. The zero Value is Empty.
//
// Strings and URLs are Go strings: immutable, shared by header copy, and
// reclaimed by the collector, which gives the shared-immutable-buffer
// semantics the array payload also follows.
type Value struct {
	kind Type
	n    int64 // Int payload; Bool stored as 0/1
	f    float64
	s    string // String and URL payload
	fn   *Function
	arr  *Array
}

// Empty is the absent value.
var Empty = Value{kind: TypeEmpty}

// BoolValue creates a Bool value.
func BoolValue(b bool) Value {
	if b {
		return Value{kind: TypeBool, n: 1}
	}
	return Value{kind: TypeBool}
}

// IntValue creates an Int value.
func IntValue(n int64) Value {
	return Value{kind: TypeInt, n: n}
}

// FloatValue creates a Float value.
func FloatValue(f float64) Value {
	return Value{kind: TypeFloat, f: f}
}

// StringValue creates a String value.
func StringValue(s string) Value {
	return Value{kind: TypeString, s: s}
}

// URLValue creates a URL value.
func URLValue(s string) Value {
	return Value{kind: TypeURL, s: s}
}

// FuncValue creates a Function value.
func FuncValue(fn *Function) Value {
	return Value{kind: TypeFunction, fn: fn}
}

// ArrayValue creates an Array value.
func ArrayValue(a *Array) Value {
	return Value{kind: TypeArray, arr: a}
}

// TypeOf returns the runtime type tag.
func (v Value) TypeOf() Type {
	return v.kind
}

// IsEmpty returns true if v is the Empty value.
func (v Value) IsEmpty() bool {
	return v.kind == TypeEmpty
}

// Bool returns the Bool payload. Valid only when TypeOf() is TypeBool.
func (v Value) Bool() bool {
	return v.n != 0
}

// Int returns the Int payload. Valid only when TypeOf() is TypeInt.
func (v Value) Int() int64 {
	return v.n
}

// Float returns the Float payload. Valid only when TypeOf() is TypeFloat.
func (v Value) Float() float64 {
	return v.f
}

// Str returns the String or URL payload.
func (v Value) Str() string {
	return v.s
}

// Func returns the Function payload, or nil.
func (v Value) Func() *Function {
	return v.fn
}

// Arr returns the Array payload, or nil.
func (v Value) Arr() *Array {
	return v.arr
}

// ---------------------------------------------------------------------------
// Truthiness
// ---------------------------------------------------------------------------

// IsTruthy reports whether v counts as true in conditionals. Empty and
// Bool(false) are falsy; numeric zero is falsy; strings, URLs and arrays are
// truthy iff non-empty; functions are always truthy. The same rule is applied
// by conditional jumps, the logic ops and AssertTrue.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case TypeEmpty:
		return false
	case TypeBool:
		return v.n != 0
	case TypeInt:
		return v.n != 0
	case TypeFloat:
		return v.f != 0
	case TypeString, TypeURL:
		return v.s != ""
	case TypeArray:
		return v.arr != nil && v.arr.Len() > 0
	default:
		return true
	}
}

// ---------------------------------------------------------------------------
// Coercions (used by CastR)
// ---------------------------------------------------------------------------

// ToBool converts v to a bool via truthiness. Never fails.
func (v Value) ToBool() bool {
	return v.IsTruthy()
}

// ToInt converts v to an int64. Float truncates toward zero, Bool maps to
// 0/1, strings are parsed. Values with no numeric coercion fail.
func (v Value) ToInt() (int64, error) {
	switch v.kind {
	case TypeInt:
		return v.n, nil
	case TypeFloat:
		return int64(v.f), nil
	case TypeBool:
		return v.n, nil
	case TypeString, TypeURL:
		n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64)
		if err != nil {
			return 0, &InvalidOperationError{Op: "cast", Detail: fmt.Sprintf("cannot parse %q as int", v.s)}
		}
		return n, nil
	default:
		return 0, &TypeMismatchError{Expected: TypeInt.String(), Found: v.kind.String()}
	}
}

// ToFloat converts v to a float64. Values with no numeric coercion fail.
func (v Value) ToFloat() (float64, error) {
	switch v.kind {
	case TypeFloat:
		return v.f, nil
	case TypeInt:
		return float64(v.n), nil
	case TypeBool:
		return float64(v.n), nil
	case TypeString, TypeURL:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, &InvalidOperationError{Op: "cast", Detail: fmt.Sprintf("cannot parse %q as float", v.s)}
		}
		return f, nil
	default:
		return 0, &TypeMismatchError{Expected: TypeFloat.String(), Found: v.kind.String()}
	}
}

// String renders the clean, user-facing form of v.
func (v Value) String() string {
	switch v.kind {
	case TypeEmpty:
		return ""
	case TypeBool:
		if v.n != 0 {
			return "true"
		}
		return "false"
	case TypeInt:
		return strconv.FormatInt(v.n, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case TypeString, TypeURL:
		return v.s
	case TypeFunction:
		if v.fn != nil {
			return fmt.Sprintf("function<%s>", v.fn.Name)
		}
		return "function<anonymous>"
	case TypeArray:
		if v.arr == nil {
			return "[]"
		}
		parts := make([]string, v.arr.Len())
		for i := range parts {
			parts[i] = v.arr.At(i).Debug()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "unknown"
	}
}

// Debug renders the verbose tagged form of v, used when debug mode is on.
func (v Value) Debug() string {
	switch v.kind {
	case TypeEmpty:
		return "Empty"
	case TypeBool:
		return fmt.Sprintf("Bool(%s)", v.String())
	case TypeInt:
		return fmt.Sprintf("Int(%s)", v.String())
	case TypeFloat:
		return fmt.Sprintf("Float(%s)", v.String())
	case TypeString:
		return fmt.Sprintf("String(%q)", v.s)
	case TypeURL:
		return fmt.Sprintf("URL(%q)", v.s)
	case TypeFunction:
		return v.String()
	case TypeArray:
		return "Array" + v.String()
	default:
		return "Unknown"
	}
}

// Equal reports whether two values are equal. Equality is total: cross-type
// pairs are unequal, except that Int and Float compare numerically.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		// Numeric cross-type comparison promotes to float.
		if (v.kind == TypeInt && other.kind == TypeFloat) ||
			(v.kind == TypeFloat && other.kind == TypeInt) {
			lf, _ := v.ToFloat()
			rf, _ := other.ToFloat()
			return lf == rf
		}
		return false
	}
	switch v.kind {
	case TypeEmpty:
		return true
	case TypeBool, TypeInt:
		return v.n == other.n
	case TypeFloat:
		return v.f == other.f
	case TypeString, TypeURL:
		return v.s == other.s
	case TypeFunction:
		return v.fn == other.fn
	case TypeArray:
		return v.arr == other.arr
	default:
		return false
	}
}
