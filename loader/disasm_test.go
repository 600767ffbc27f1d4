package loader

import (
	"strings"
	"testing"

	"github.com/machine-dialect/mdvm/vm"
)

func TestDisassemble(t *testing.T) {
	mod := vm.NewBytecodeModule("listing")
	c := mod.Constants.Add(vm.IntConstant(42))
	mod.Instructions = []vm.Instruction{
		vm.LoadConstR{Dst: 0, Const: c},
		vm.AddR{Dst: 1, Left: 0, Right: 0},
		vm.ReturnR{Src: 1},
	}
	mod.AddFunction("main", 0)
	mod.GlobalNames = []string{"total"}

	out := Disassemble(mod)

	for _, want := range []string{
		"module listing",
		"main -> 0000",
		"Int(42)",
		"total",
		"0000: load_const r0, #0",
		"0001: add r1, r0, r0",
		"0002: return r1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestSummary(t *testing.T) {
	mod := vm.NewBytecodeModule("overview")
	mod.Instructions = []vm.Instruction{vm.Halt{}}

	out := Summary(mod)
	for _, want := range []string{"module:", "overview", "instructions: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
