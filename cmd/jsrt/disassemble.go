package main

import (
	"fmt"

	"github.com/kristofer/jsrt/pkg/bytecode"
)

// printDisassembly renders a bytecode module's constant pool and
// instruction stream in human-readable form, covering the richer
// constant-pool entries (FunctionTemplate, ClassTemplate) this engine's
// compiler emits.
func printDisassembly(filename string, code *bytecode.Bytecode) {
	fmt.Printf("=== Bytecode Disassembly: %s ===\n\n", filename)
	fmt.Printf("locals=%d upvalues=%d\n\n", code.NumLocals, code.UpvalueCount)

	fmt.Println("Constants Pool:")
	if len(code.Constants) == 0 {
		fmt.Println("  (empty)")
	} else {
		for i, c := range code.Constants {
			fmt.Printf("  [%d] %s\n", i, formatConstant(c))
		}
	}

	fmt.Println("\nInstructions:")
	if len(code.Instructions) == 0 {
		fmt.Println("  (empty)")
		return
	}
	for i, instr := range code.Instructions {
		fmt.Printf("  %4d: %-16s", i, instr.Op.String())
		switch instr.Op {
		case bytecode.OpCallMethod:
			selectorIdx := instr.Operand >> bytecode.CallMethodSelectorShift
			argCount := instr.Operand & bytecode.CallMethodArgCountMask
			fmt.Printf(" selector=%d args=%d", selectorIdx, argCount)
		default:
			if instr.Operand != 0 {
				fmt.Printf(" %d", instr.Operand)
			}
		}
		fmt.Println()
	}
}

func formatConstant(c any) string {
	switch v := c.(type) {
	case int64:
		return fmt.Sprintf("int64: %d", v)
	case float64:
		return fmt.Sprintf("float64: %v", v)
	case string:
		return fmt.Sprintf("string: %q", v)
	case bool:
		return fmt.Sprintf("bool: %t", v)
	case nil:
		return "nil"
	case *bytecode.FunctionTemplate:
		return fmt.Sprintf("function: %s (%d params, %d instructions)",
			v.Name, v.ParamCount, len(v.Code.Instructions))
	case *bytecode.ClassTemplate:
		return fmt.Sprintf("class: %s (%d fields, %d methods)",
			v.Name, len(v.Fields), len(v.Methods))
	case *bytecode.Bytecode:
		return fmt.Sprintf("bytecode: %d instructions, %d constants",
			len(v.Instructions), len(v.Constants))
	default:
		return fmt.Sprintf("unknown: %T", c)
	}
}
