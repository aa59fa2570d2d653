package scope

import (
	"fmt"

	"smelt/internal/ast"
)

// Resolve walks the program and produces the analysis info the backend
// consumes. The front end normally ships this result alongside the AST; the
// resolver exists so the CLI and tests can compile self-contained inputs.
func Resolve(root *ast.Block) (*Info, error) {
	r := &resolver{
		info: &Info{
			Scopes:        make(map[*ast.Block]*Scope),
			VirtualBlocks: make(map[*ast.FunctionDefinition]*ast.Block),
		},
	}
	if err := r.block(root, nil); err != nil {
		return nil, err
	}
	return r.info, nil
}

type resolver struct {
	info *Info
}

func (r *resolver) block(b *ast.Block, parent *Scope) error {
	if b == nil {
		return fmt.Errorf("scope: nil block")
	}
	s := r.newScope(b, parent)

	// Functions are hoisted: visible everywhere in the declaring block.
	for i := range b.Statements {
		if b.Statements[i].Kind == ast.StmtFuncDef {
			def := b.Statements[i].FuncDef
			if _, exists := s.Identifiers[def.Name]; exists {
				return fmt.Errorf("scope: duplicate function %q", def.Name)
			}
			s.declareFunction(def)
		}
	}

	for i := range b.Statements {
		if err := r.stmt(&b.Statements[i], s); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) stmt(st *ast.Stmt, s *Scope) error {
	switch st.Kind {
	case ast.StmtVarDecl:
		for _, v := range st.VarDecl.Variables {
			if _, exists := s.Identifiers[v.Name]; exists {
				return fmt.Errorf("scope: redeclaration of %q", v.Name)
			}
			s.declareVariable(v.Name, v.Span)
		}
	case ast.StmtIf:
		return r.block(st.If.Body, s)
	case ast.StmtSwitch:
		for i := range st.Switch.Cases {
			if err := r.block(st.Switch.Cases[i].Body, s); err != nil {
				return err
			}
		}
	case ast.StmtFor:
		// The pre block's scope spans condition, body and post.
		pre := r.newScope(st.For.Pre, s)
		for i := range st.For.Pre.Statements {
			if err := r.stmt(&st.For.Pre.Statements[i], pre); err != nil {
				return err
			}
		}
		if err := r.block(st.For.Body, pre); err != nil {
			return err
		}
		return r.block(st.For.Post, pre)
	case ast.StmtBlock:
		return r.block(st.Block, s)
	case ast.StmtFuncDef:
		return r.function(st.FuncDef, s)
	case ast.StmtExpr, ast.StmtAssign, ast.StmtBreak, ast.StmtContinue, ast.StmtLeave:
		// No scope effect.
	}
	return nil
}

func (r *resolver) function(def *ast.FunctionDefinition, s *Scope) error {
	// Parameters and return variables live in a synthetic block wrapping the
	// body; variable lookups stop at it.
	virtual := &ast.Block{Span: def.Span}
	vs := r.newScope(virtual, s)
	vs.FunctionScope = true
	for _, p := range def.Parameters {
		if _, exists := vs.Identifiers[p.Name]; exists {
			return fmt.Errorf("scope: duplicate parameter %q of %q", p.Name, def.Name)
		}
		vs.declareVariable(p.Name, p.Span)
	}
	for _, ret := range def.ReturnVariables {
		if _, exists := vs.Identifiers[ret.Name]; exists {
			return fmt.Errorf("scope: duplicate return variable %q of %q", ret.Name, def.Name)
		}
		vs.declareVariable(ret.Name, ret.Span)
	}
	r.info.VirtualBlocks[def] = virtual
	return r.block(def.Body, vs)
}

func (r *resolver) newScope(b *ast.Block, parent *Scope) *Scope {
	s := &Scope{Parent: parent, Identifiers: make(map[string]Entry)}
	r.info.Scopes[b] = s
	return s
}
