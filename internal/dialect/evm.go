package dialect

import (
	"smelt/internal/asm"
	"smelt/internal/ast"
)

// EVM is the default dialect: each builtin maps to one opcode of the target
// machine.
type EVM struct {
	builtins map[string]*Builtin
}

// NewEVM builds the default catalogue.
func NewEVM() *EVM {
	d := &EVM{builtins: make(map[string]*Builtin)}

	op := func(name string, opcode asm.Op, args, rets int) {
		d.builtins[name] = &Builtin{
			Name:      name,
			Arguments: args,
			Returns:   rets,
			Generate: func(_ *ast.FunctionCall, a asm.Assembly, _ *Context) {
				a.AppendInstruction(opcode)
			},
		}
	}

	op("add", asm.ADD, 2, 1)
	op("mul", asm.MUL, 2, 1)
	op("sub", asm.SUB, 2, 1)
	op("div", asm.DIV, 2, 1)
	op("mod", asm.MOD, 2, 1)
	op("lt", asm.LT, 2, 1)
	op("gt", asm.GT, 2, 1)
	op("eq", asm.EQ, 2, 1)
	op("iszero", asm.ISZERO, 1, 1)
	op("and", asm.AND, 2, 1)
	op("or", asm.OR, 2, 1)
	op("xor", asm.XOR, 2, 1)
	op("not", asm.NOT, 1, 1)
	op("shl", asm.SHL, 2, 1)
	op("shr", asm.SHR, 2, 1)
	op("mload", asm.MLOAD, 1, 1)
	op("mstore", asm.MSTORE, 2, 0)
	op("sload", asm.SLOAD, 1, 1)
	op("sstore", asm.SSTORE, 2, 0)
	op("pc", asm.PC, 0, 1)

	terminating := func(name string, opcode asm.Op, args int) {
		d.builtins[name] = &Builtin{
			Name:        name,
			Arguments:   args,
			Returns:     0,
			SideEffects: ControlFlowSideEffects{Terminates: true},
			Generate: func(_ *ast.FunctionCall, a asm.Assembly, _ *Context) {
				a.AppendInstruction(opcode)
			},
		}
	}

	terminating("stop", asm.STOP, 0)
	terminating("return", asm.RETURN, 2)
	terminating("revert", asm.REVERT, 2)

	return d
}

// Builtin implements Dialect.
func (d *EVM) Builtin(name string) *Builtin {
	return d.builtins[name]
}

// EqualityFunction implements Dialect.
func (d *EVM) EqualityFunction() *Builtin {
	return d.builtins["eq"]
}
