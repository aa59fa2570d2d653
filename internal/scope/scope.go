// Package scope models the name analysis result the backend consumes: a
// scope tree over the AST's lexical blocks, with variables and functions
// resolved by identity.
package scope

import (
	"smelt/internal/ast"
	"smelt/internal/source"
)

// Variable is a resolved scope variable. Identity (the pointer) is what the
// backend compares; two variables with the same name in different scopes are
// distinct.
type Variable struct {
	Name string
	Span source.Span
}

// Function is a resolved user-defined function.
type Function struct {
	Name      string
	Arguments int
	Returns   int
	Span      source.Span
}

// Entry is the result of a scope lookup; exactly one field is non-nil.
type Entry struct {
	Var *Variable
	Fun *Function
}

// Scope maps names to variables and functions declared in one lexical block.
type Scope struct {
	Parent      *Scope
	Identifiers map[string]Entry
	// FunctionScope marks the virtual scope of a function body: variable
	// lookups do not cross it outwards.
	FunctionScope bool
}

// Lookup resolves name through the scope chain.
func (s *Scope) Lookup(name string) (Entry, bool) {
	for cur := s; cur != nil; cur = cur.Parent {
		if e, ok := cur.Identifiers[name]; ok {
			return e, true
		}
		if cur.FunctionScope {
			// Functions stay visible across the boundary, variables do not.
			for outer := cur.Parent; outer != nil; outer = outer.Parent {
				if e, ok := outer.Identifiers[name]; ok && e.Fun != nil {
					return e, true
				}
			}
			return Entry{}, false
		}
	}
	return Entry{}, false
}

func (s *Scope) declareVariable(name string, span source.Span) *Variable {
	v := &Variable{Name: name, Span: span}
	s.Identifiers[name] = Entry{Var: v}
	return v
}

func (s *Scope) declareFunction(f *ast.FunctionDefinition) *Function {
	fn := &Function{
		Name:      f.Name,
		Arguments: len(f.Parameters),
		Returns:   len(f.ReturnVariables),
		Span:      f.Span,
	}
	s.Identifiers[f.Name] = Entry{Fun: fn}
	return fn
}

// Info is the per-program analysis result: one scope per lexical block and
// one synthetic "virtual" block per function carrying its parameters and
// return variables.
type Info struct {
	Scopes        map[*ast.Block]*Scope
	VirtualBlocks map[*ast.FunctionDefinition]*ast.Block
}

// ScopeOf returns the scope attached to a block.
func (i *Info) ScopeOf(b *ast.Block) *Scope {
	return i.Scopes[b]
}

// VirtualBlock returns the synthetic block of a function definition.
func (i *Info) VirtualBlock(f *ast.FunctionDefinition) *ast.Block {
	return i.VirtualBlocks[f]
}
