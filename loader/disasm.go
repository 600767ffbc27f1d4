package loader

import (
	"fmt"
	"strings"

	"github.com/machine-dialect/mdvm/vm"
)

// Disassemble renders a module as a human-readable listing.
func Disassemble(mod *vm.BytecodeModule) string {
	var b strings.Builder

	fmt.Fprintf(&b, "module %s (version %d, flags 0x%x)\n", mod.Name, mod.Version, mod.Flags)

	if len(mod.FunctionOrder) > 0 {
		b.WriteString("\nfunctions:\n")
		for i, name := range mod.FunctionOrder {
			fmt.Fprintf(&b, "  %3d: %s -> %04d\n", i, name, mod.Functions[name])
		}
	}

	if mod.Constants.Len() > 0 {
		b.WriteString("\nconstants:\n")
		for i, c := range mod.Constants.Entries() {
			fmt.Fprintf(&b, "  #%-3d %s\n", i, c.ToValue().Debug())
		}
	}

	if len(mod.GlobalNames) > 0 {
		b.WriteString("\nglobals:\n")
		for _, name := range mod.GlobalNames {
			fmt.Fprintf(&b, "  %s\n", name)
		}
	}

	b.WriteString("\ncode:\n")
	for pc, inst := range mod.Instructions {
		fmt.Fprintf(&b, "  %04d: %s\n", pc, inst)
	}

	return b.String()
}

// Summary renders the one-screen module overview used by mdvm info.
func Summary(mod *vm.BytecodeModule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "module:       %s\n", mod.Name)
	fmt.Fprintf(&b, "version:      %d\n", mod.Version)
	fmt.Fprintf(&b, "flags:        0x%x\n", mod.Flags)
	fmt.Fprintf(&b, "instructions: %d\n", len(mod.Instructions))
	fmt.Fprintf(&b, "constants:    %d\n", mod.Constants.Len())
	fmt.Fprintf(&b, "functions:    %d\n", len(mod.FunctionOrder))
	fmt.Fprintf(&b, "globals:      %d\n", len(mod.GlobalNames))
	return b.String()
}
