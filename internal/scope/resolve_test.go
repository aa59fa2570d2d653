package scope_test

import (
	"testing"

	"smelt/internal/ast"
	"smelt/internal/scope"
	"smelt/internal/testkit"
)

func TestResolveDeclaresVariables(t *testing.T) {
	root := testkit.Block(
		testkit.Decl("x", testkit.ExprPtr(testkit.Lit(1))),
		testkit.Decl("y", nil),
	)
	info, err := scope.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	s := info.ScopeOf(root)
	if s == nil {
		t.Fatalf("no scope for root block")
	}
	for _, name := range []string{"x", "y"} {
		entry, ok := s.Lookup(name)
		if !ok || entry.Var == nil {
			t.Errorf("lookup %q: got %+v, %v; want a variable", name, entry, ok)
		}
	}
	if _, ok := s.Lookup("z"); ok {
		t.Errorf("lookup of undeclared name succeeded")
	}
}

func TestResolveNestedBlockShadowing(t *testing.T) {
	inner := testkit.Block(testkit.Decl("x", nil))
	root := testkit.Block(
		testkit.Decl("x", nil),
		ast.Stmt{Kind: ast.StmtBlock, Block: inner},
	)
	info, err := scope.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	outer, _ := info.ScopeOf(root).Lookup("x")
	shadow, _ := info.ScopeOf(inner).Lookup("x")
	if outer.Var == shadow.Var {
		t.Errorf("inner declaration did not shadow the outer variable")
	}
}

func TestResolveRejectsRedeclaration(t *testing.T) {
	root := testkit.Block(
		testkit.Decl("x", nil),
		testkit.Decl("x", nil),
	)
	if _, err := scope.Resolve(root); err == nil {
		t.Fatalf("redeclaration not rejected")
	}
}

func TestResolveHoistsFunctions(t *testing.T) {
	root := testkit.Block(
		// The call site precedes the definition.
		testkit.Decl("x", testkit.ExprPtr(testkit.Call("f"))),
		testkit.FuncDef("f", nil, []string{"r"},
			testkit.Assign(testkit.Lit(1), "r"),
		),
	)
	info, err := scope.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	entry, ok := info.ScopeOf(root).Lookup("f")
	if !ok || entry.Fun == nil {
		t.Fatalf("function not hoisted into the block scope")
	}
	if entry.Fun.Arguments != 0 || entry.Fun.Returns != 1 {
		t.Errorf("function signature = (%d, %d), want (0, 1)", entry.Fun.Arguments, entry.Fun.Returns)
	}
}

func TestResolveFunctionScopeIsClosed(t *testing.T) {
	def := testkit.FuncDef("f", []string{"p"}, []string{"r"},
		testkit.Assign(testkit.Ident("p"), "r"),
	)
	root := testkit.Block(
		testkit.Decl("outer", nil),
		def,
	)
	info, err := scope.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	virtual := info.VirtualBlock(def.FuncDef)
	if virtual == nil {
		t.Fatalf("no virtual block for the function")
	}
	vs := info.ScopeOf(virtual)
	if vs == nil {
		t.Fatalf("no scope for the virtual block")
	}
	if entry, ok := vs.Lookup("p"); !ok || entry.Var == nil {
		t.Errorf("parameter not in virtual scope")
	}
	if entry, ok := vs.Lookup("r"); !ok || entry.Var == nil {
		t.Errorf("return variable not in virtual scope")
	}
	// Outer variables stay invisible, sibling functions stay visible.
	if _, ok := vs.Lookup("outer"); ok {
		t.Errorf("function body sees outer variable")
	}
	if entry, ok := vs.Lookup("f"); !ok || entry.Fun == nil {
		t.Errorf("function body cannot resolve sibling function names")
	}

	body := def.FuncDef.Body
	bs := info.ScopeOf(body)
	if bs == nil {
		t.Fatalf("no scope for the function body")
	}
	if entry, ok := bs.Lookup("p"); !ok || entry.Var == nil {
		t.Errorf("body cannot see parameters through the virtual scope")
	}
}

func TestResolveForLoopScope(t *testing.T) {
	loop := testkit.For(
		[]ast.Stmt{testkit.Decl("i", testkit.ExprPtr(testkit.Lit(0)))},
		testkit.Call("lt", testkit.Ident("i"), testkit.Lit(10)),
		[]ast.Stmt{testkit.Assign(testkit.Call("add", testkit.Ident("i"), testkit.Lit(1)), "i")},
		testkit.ExprStmt(testkit.Call("sstore", testkit.Ident("i"), testkit.Ident("i"))),
	)
	root := testkit.Block(loop)
	info, err := scope.Resolve(root)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	pre := info.ScopeOf(loop.For.Pre)
	if pre == nil {
		t.Fatalf("no scope for the pre block")
	}
	if entry, ok := pre.Lookup("i"); !ok || entry.Var == nil {
		t.Fatalf("loop variable not in pre scope")
	}
	// Body and post see the pre block's declarations.
	for _, b := range []*ast.Block{loop.For.Body, loop.For.Post} {
		s := info.ScopeOf(b)
		if s == nil {
			t.Fatalf("no scope for loop sub-block")
		}
		if entry, ok := s.Lookup("i"); !ok || entry.Var == nil {
			t.Errorf("loop sub-block cannot see the loop variable")
		}
	}
	// The loop variable stays invisible outside.
	if _, ok := info.ScopeOf(root).Lookup("i"); ok {
		t.Errorf("loop variable leaked into the enclosing scope")
	}
}
