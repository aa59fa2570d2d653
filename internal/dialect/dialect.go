// Package dialect describes the builtin catalogue the backend compiles
// against. The backend itself only depends on the interfaces here; the
// concrete machine dialect lives in evm.go.
package dialect

import (
	"smelt/internal/asm"
	"smelt/internal/ast"
)

// ControlFlowSideEffects captures the control-flow behaviour of a builtin.
type ControlFlowSideEffects struct {
	// Terminates marks builtins that never return to the caller; the block
	// containing such a call ends there.
	Terminates bool
}

// Context carries dialect-wide state a builtin's code generator may need.
// The core passes it through untouched.
type Context struct {
	// ObjectName names the assembly unit being produced, for dialects whose
	// builtins reference sibling objects.
	ObjectName string
}

// GenerateFunc emits the code of one builtin call. Stack arguments are
// already in place on top of the stack (first argument topmost); the
// function must leave exactly the builtin's returns behind.
type GenerateFunc func(call *ast.FunctionCall, a asm.Assembly, ctx *Context)

// Builtin is one entry of the dialect's catalogue.
type Builtin struct {
	Name        string
	Arguments   int // total argument count, including literal arguments
	Returns     int
	SideEffects ControlFlowSideEffects
	// Literals flags arguments that are inlined at emission time instead of
	// being passed on the stack; nil means all arguments are stack-passed.
	Literals []bool
	Generate GenerateFunc
}

// LiteralArgument reports whether argument i is an inlined immediate.
func (b *Builtin) LiteralArgument(i int) bool {
	return i < len(b.Literals) && b.Literals[i]
}

// StackArguments returns how many arguments travel on the stack.
func (b *Builtin) StackArguments() int {
	n := b.Arguments
	for _, lit := range b.Literals {
		if lit {
			n--
		}
	}
	return n
}

// Dialect is the catalogue the backend queries while lowering calls.
type Dialect interface {
	// Builtin resolves a name to a builtin, or nil if the name refers to a
	// user-defined function.
	Builtin(name string) *Builtin
	// EqualityFunction returns the builtin used for synthesized equality
	// comparisons (switch lowering).
	EqualityFunction() *Builtin
}
