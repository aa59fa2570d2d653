package dfg

import (
	"fmt"

	"smelt/internal/ast"
	"smelt/internal/dialect"
	"smelt/internal/scope"
	"smelt/internal/slots"
)

// ExternalIdentifierError reports a name that resolves outside the program;
// external identifier access is unsupported by this backend.
type ExternalIdentifierError struct {
	Name string
}

func (e *ExternalIdentifierError) Error() string {
	return fmt.Sprintf("dfg: access to external identifier %q is unsupported", e.Name)
}

// Build lowers the program rooted at root into a fresh DFG. After lowering,
// predecessor edges from unreachable blocks are pruned so that every entry
// of a reachable block is itself reachable.
func Build(info *scope.Info, d dialect.Dialect, root *ast.Block) (*DFG, error) {
	g := &DFG{Functions: make(map[*scope.Function]*FunctionInfo)}
	g.Entry = g.MakeBlock()

	b := &builder{graph: g, info: info, dialect: d, current: g.Entry}
	if err := b.block(root); err != nil {
		return nil, err
	}

	pruneUnreachableEntries(g)
	return g, nil
}

// pruneUnreachableEntries removes predecessor edges originating in blocks
// that no entry point reaches.
func pruneUnreachableEntries(g *DFG) {
	roots := []*BasicBlock{g.Entry}
	for _, fn := range g.FunctionOrder {
		roots = append(roots, g.Functions[fn].Entry)
	}
	reachable := make(map[*BasicBlock]bool)
	BreadthFirst(roots, func(b *BasicBlock, enqueue func(*BasicBlock)) {
		reachable[b] = true
		for _, succ := range b.Exit.Successors() {
			enqueue(succ)
		}
	})
	for b := range reachable {
		kept := b.Entries[:0]
		for _, entry := range b.Entries {
			if reachable[entry] {
				kept = append(kept, entry)
			}
		}
		b.Entries = kept
	}
}

type forLoopInfo struct {
	afterLoop *BasicBlock
	post      *BasicBlock
}

type builder struct {
	graph   *DFG
	info    *scope.Info
	dialect dialect.Dialect

	current      *BasicBlock
	scope        *scope.Scope
	forLoop      *forLoopInfo
	functionExit *BasicBlock
}

func (b *builder) block(blk *ast.Block) error {
	saved := b.scope
	b.scope = b.info.ScopeOf(blk)
	if b.scope == nil {
		return fmt.Errorf("dfg: no scope recorded for block at %s", blk.Span)
	}
	for i := range blk.Statements {
		if err := b.stmt(&blk.Statements[i]); err != nil {
			return err
		}
	}
	b.scope = saved
	return nil
}

func (b *builder) stmt(st *ast.Stmt) error {
	switch st.Kind {
	case ast.StmtExpr:
		return b.expressionStatement(st.Expr)
	case ast.StmtVarDecl:
		return b.variableDeclaration(st.VarDecl)
	case ast.StmtAssign:
		return b.assignment(st.Assign)
	case ast.StmtIf:
		return b.ifStmt(st.If)
	case ast.StmtSwitch:
		return b.switchStmt(st.Switch)
	case ast.StmtFor:
		return b.forLoopStmt(st.For)
	case ast.StmtBreak:
		if b.forLoop == nil {
			return fmt.Errorf("dfg: break outside of loop at %s", st.Break.Span)
		}
		b.jump(b.forLoop.afterLoop, false)
		b.current = b.graph.MakeBlock()
		return nil
	case ast.StmtContinue:
		if b.forLoop == nil {
			return fmt.Errorf("dfg: continue outside of loop at %s", st.Continue.Span)
		}
		b.jump(b.forLoop.post, false)
		b.current = b.graph.MakeBlock()
		return nil
	case ast.StmtLeave:
		if b.functionExit == nil {
			return fmt.Errorf("dfg: leave outside of function at %s", st.Leave.Span)
		}
		b.jump(b.functionExit, false)
		b.current = b.graph.MakeBlock()
		return nil
	case ast.StmtBlock:
		return b.block(st.Block)
	case ast.StmtFuncDef:
		return b.functionDefinition(st.FuncDef)
	}
	return fmt.Errorf("dfg: unknown statement kind %d", st.Kind)
}

func (b *builder) lookupVariable(name string) (*scope.Variable, error) {
	if b.scope == nil {
		return nil, fmt.Errorf("dfg: variable lookup outside of any scope")
	}
	entry, ok := b.scope.Lookup(name)
	if !ok {
		return nil, &ExternalIdentifierError{Name: name}
	}
	if entry.Var == nil {
		return nil, fmt.Errorf("dfg: %q names a function where a variable is expected", name)
	}
	return entry.Var, nil
}

func (b *builder) lookupFunction(name string) (*scope.Function, error) {
	entry, ok := b.scope.Lookup(name)
	if !ok {
		return nil, &ExternalIdentifierError{Name: name}
	}
	if entry.Fun == nil {
		return nil, fmt.Errorf("dfg: %q names a variable where a function is expected", name)
	}
	return entry.Fun, nil
}

// makeConditionalJump ends the current block with a branch on condition
// into two fresh blocks and leaves the builder without a current block.
func (b *builder) makeConditionalJump(condition slots.Slot) (*BasicBlock, *BasicBlock) {
	nonZero := b.graph.MakeBlock()
	zero := b.graph.MakeBlock()
	b.makeConditionalJumpTo(condition, nonZero, zero)
	return nonZero, zero
}

func (b *builder) makeConditionalJumpTo(condition slots.Slot, nonZero, zero *BasicBlock) {
	b.current.Exit = Exit{Kind: ExitConditionalJump, Cond: ConditionalJumpExit{
		Condition: condition,
		NonZero:   nonZero,
		Zero:      zero,
	}}
	nonZero.Entries = append(nonZero.Entries, b.current)
	zero.Entries = append(zero.Entries, b.current)
	b.current = nil
}

// jump ends the current block with an unconditional jump and continues
// building in the target.
func (b *builder) jump(target *BasicBlock, backwards bool) {
	b.current.Exit = Exit{Kind: ExitJump, Jump: JumpExit{Target: target, Backwards: backwards}}
	target.Entries = append(target.Entries, b.current)
	b.current = target
}
