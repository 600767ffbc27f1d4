// Package host is the embedding layer: it wraps the loader and engine
// behind the interface a host application consumes, marshalling terminal
// values into native Go representations.
package host

import (
	"fmt"

	"github.com/machine-dialect/mdvm/loader"
	"github.com/machine-dialect/mdvm/vm"
)

// VM is an embeddable machine-dialect virtual machine. One instance runs
// one program; embed multiple programs as multiple instances.
type VM struct {
	inner *vm.VM
	meta  *loader.Metadata
}

// New creates a VM with no bytecode loaded.
func New() *VM {
	return &VM{inner: vm.New()}
}

// LoadBytecode loads a bytecode file pair and installs the module,
// replacing any previously loaded program.
func (h *VM) LoadBytecode(path string) error {
	mod, meta, err := loader.LoadModule(path)
	if err != nil {
		return fmt.Errorf("failed to load bytecode: %w", err)
	}
	if err := h.inner.LoadModule(mod); err != nil {
		return fmt.Errorf("failed to load module: %w", err)
	}
	h.meta = meta
	return nil
}

// Execute runs the loaded program to completion and returns its terminal
// value marshalled to a native Go representation, or nil when the program
// produced none.
func (h *VM) Execute() (any, error) {
	result, ok, err := h.inner.Run()
	if err != nil {
		return nil, fmt.Errorf("runtime error: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return marshalValue(result), nil
}

// SetDebug toggles verbose tracing.
func (h *VM) SetDebug(debug bool) {
	h.inner.Debug = debug
}

// SetMaxCallDepth overrides the engine's call-depth bound.
func (h *VM) SetMaxCallDepth(depth int) {
	if depth > 0 {
		h.inner.MaxCallDepth = depth
	}
}

// InstructionCount exposes the profiling counter.
func (h *VM) InstructionCount() uint64 {
	return h.inner.InstructionCount()
}

// Metadata returns the sidecar metadata of the loaded program, or nil.
func (h *VM) Metadata() *loader.Metadata {
	return h.meta
}

// StackTrace returns the current diagnostic stack trace.
func (h *VM) StackTrace() []vm.StackFrame {
	return h.inner.StackTrace()
}

// Engine exposes the underlying engine for hosts that need direct access
// to registers or stepping.
func (h *VM) Engine() *vm.VM {
	return h.inner
}

// marshalValue converts a runtime Value to the host representation:
// Empty -> nil, Bool -> bool, Int -> int64, Float -> float64, String and
// URL -> string, Function -> an opaque descriptor string, Array -> []any.
func marshalValue(v vm.Value) any {
	switch v.TypeOf() {
	case vm.TypeEmpty:
		return nil
	case vm.TypeBool:
		return v.Bool()
	case vm.TypeInt:
		return v.Int()
	case vm.TypeFloat:
		return v.Float()
	case vm.TypeString, vm.TypeURL:
		return v.Str()
	case vm.TypeFunction:
		return v.String()
	case vm.TypeArray:
		arr := v.Arr()
		out := make([]any, arr.Len())
		for i := range out {
			out[i] = marshalValue(arr.At(i))
		}
		return out
	default:
		return nil
	}
}
