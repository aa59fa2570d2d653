// Package testkit provides AST construction helpers and pipeline invariant
// checks shared by the backend's tests.
package testkit

import (
	"math/big"

	"smelt/internal/ast"
	"smelt/internal/source"
)

var nextSpan uint32

// span hands out distinct spans so node identities stay distinguishable in
// dumps.
func span() source.Span {
	nextSpan += 2
	return source.Span{File: 1, Start: nextSpan, End: nextSpan + 1}
}

// Lit builds a literal expression.
func Lit(v int64) ast.Expr {
	return ast.LitExpr(&ast.Literal{Value: big.NewInt(v), Span: span()})
}

// Ident builds a variable reference.
func Ident(name string) ast.Expr {
	return ast.IdentExpr(&ast.Identifier{Name: name, Span: span()})
}

// Call builds a call expression.
func Call(name string, args ...ast.Expr) ast.Expr {
	return ast.CallExpr(&ast.FunctionCall{
		FuncName:  ast.Identifier{Name: name, Span: span()},
		Arguments: args,
		Span:      span(),
	})
}

// ExprStmt wraps a call into an expression statement.
func ExprStmt(e ast.Expr) ast.Stmt {
	return ast.Stmt{Kind: ast.StmtExpr, Expr: &ast.ExpressionStatement{Expression: e, Span: span()}}
}

// Decl declares one variable, optionally initialized.
func Decl(name string, value *ast.Expr) ast.Stmt {
	return DeclMulti([]string{name}, value)
}

// DeclMulti declares several variables from one initializer.
func DeclMulti(names []string, value *ast.Expr) ast.Stmt {
	decl := &ast.VariableDeclaration{Value: value, Span: span()}
	for _, n := range names {
		decl.Variables = append(decl.Variables, ast.TypedName{Name: n, Span: span()})
	}
	return ast.Stmt{Kind: ast.StmtVarDecl, VarDecl: decl}
}

// Assign assigns value to the named variables.
func Assign(value ast.Expr, names ...string) ast.Stmt {
	assign := &ast.Assignment{Value: &value, Span: span()}
	for _, n := range names {
		assign.VariableNames = append(assign.VariableNames, ast.Identifier{Name: n, Span: span()})
	}
	return ast.Stmt{Kind: ast.StmtAssign, Assign: assign}
}

// If builds a conditional statement.
func If(cond ast.Expr, body ...ast.Stmt) ast.Stmt {
	return ast.Stmt{Kind: ast.StmtIf, If: &ast.If{
		Condition: cond,
		Body:      Block(body...),
		Span:      span(),
	}}
}

// SwitchCase builds one non-default switch arm.
func SwitchCase(value int64, body ...ast.Stmt) ast.Case {
	return ast.Case{
		Value: &ast.Literal{Value: big.NewInt(value), Span: span()},
		Body:  Block(body...),
		Span:  span(),
	}
}

// DefaultCase builds the default switch arm.
func DefaultCase(body ...ast.Stmt) ast.Case {
	return ast.Case{Body: Block(body...), Span: span()}
}

// Switch builds a switch statement.
func Switch(scrutinee ast.Expr, cases ...ast.Case) ast.Stmt {
	return ast.Stmt{Kind: ast.StmtSwitch, Switch: &ast.Switch{
		Expression: scrutinee,
		Cases:      cases,
		Span:       span(),
	}}
}

// For builds a loop statement.
func For(pre []ast.Stmt, cond ast.Expr, post []ast.Stmt, body ...ast.Stmt) ast.Stmt {
	return ast.Stmt{Kind: ast.StmtFor, For: &ast.ForLoop{
		Pre:       Block(pre...),
		Condition: cond,
		Post:      Block(post...),
		Body:      Block(body...),
		Span:      span(),
	}}
}

// Break builds a break statement.
func Break() ast.Stmt {
	return ast.Stmt{Kind: ast.StmtBreak, Break: &ast.Break{Span: span()}}
}

// Continue builds a continue statement.
func Continue() ast.Stmt {
	return ast.Stmt{Kind: ast.StmtContinue, Continue: &ast.Continue{Span: span()}}
}

// Leave builds a leave statement.
func Leave() ast.Stmt {
	return ast.Stmt{Kind: ast.StmtLeave, Leave: &ast.Leave{Span: span()}}
}

// FuncDef builds a function definition.
func FuncDef(name string, params, returns []string, body ...ast.Stmt) ast.Stmt {
	def := &ast.FunctionDefinition{Name: name, Body: Block(body...), Span: span()}
	for _, p := range params {
		def.Parameters = append(def.Parameters, ast.TypedName{Name: p, Span: span()})
	}
	for _, r := range returns {
		def.ReturnVariables = append(def.ReturnVariables, ast.TypedName{Name: r, Span: span()})
	}
	return ast.Stmt{Kind: ast.StmtFuncDef, FuncDef: def}
}

// Block wraps statements into a block node.
func Block(stmts ...ast.Stmt) *ast.Block {
	return &ast.Block{Statements: stmts, Span: span()}
}

// ExprPtr returns a pointer to e for initializer positions.
func ExprPtr(e ast.Expr) *ast.Expr {
	return &e
}
