package dfg

import (
	"fmt"

	"smelt/internal/ast"
	"smelt/internal/scope"
	"smelt/internal/slots"
	"smelt/internal/source"
)

func (b *builder) variableDeclaration(decl *ast.VariableDeclaration) error {
	variables := make(slots.Stack, 0, len(decl.Variables))
	for _, name := range decl.Variables {
		v, err := b.lookupVariable(name.Name)
		if err != nil {
			return err
		}
		variables = append(variables, slots.VariableSlot(v, name.Span))
	}
	if decl.Value == nil {
		// Uninitialized declarations read as zero.
		input := make(slots.Stack, 0, len(variables))
		for range variables {
			input = append(input, slots.LiteralInt(0, decl.Span))
		}
		b.appendAssignment(input, variables, decl.Span)
		return nil
	}
	return b.assignFrom(decl.Value, variables, decl.Span)
}

func (b *builder) assignment(assign *ast.Assignment) error {
	variables := make(slots.Stack, 0, len(assign.VariableNames))
	for _, name := range assign.VariableNames {
		v, err := b.lookupVariable(name.Name)
		if err != nil {
			return err
		}
		variables = append(variables, slots.VariableSlot(v, name.Span))
	}
	return b.assignFrom(assign.Value, variables, assign.Span)
}

// assignFrom lowers the right-hand side and appends the assignment
// operation. A call may supply several values at once; any other expression
// supplies exactly one.
func (b *builder) assignFrom(value *ast.Expr, variables slots.Stack, debug source.Span) error {
	if value.Kind == ast.ExprCall {
		output, err := b.visitFunctionCall(value.Call)
		if err != nil {
			return err
		}
		if len(variables) != len(output) {
			return fmt.Errorf("dfg: assigning %d values to %d variables at %s",
				len(output), len(variables), debug)
		}
		b.appendAssignment(output, variables, debug)
		return nil
	}
	if len(variables) != 1 {
		return fmt.Errorf("dfg: single value assigned to %d variables at %s", len(variables), debug)
	}
	slot, err := b.expr(value)
	if err != nil {
		return err
	}
	b.appendAssignment(slots.Stack{slot}, variables, debug)
	return nil
}

func (b *builder) appendAssignment(input, variables slots.Stack, debug source.Span) {
	b.current.Operations = append(b.current.Operations, Operation{
		Input:  input,
		Output: variables,
		Kind:   OpAssignment,
		Assign: Assignment{Variables: variables, Debug: debug},
	})
}

func (b *builder) expressionStatement(st *ast.ExpressionStatement) error {
	if st.Expression.Kind != ast.ExprCall {
		return fmt.Errorf("dfg: expression statement at %s is not a call", st.Span)
	}
	call := st.Expression.Call
	output, err := b.visitFunctionCall(call)
	if err != nil {
		return err
	}
	if len(output) != 0 {
		return fmt.Errorf("dfg: discarded call to %q returns %d values at %s",
			call.FuncName.Name, len(output), st.Span)
	}
	if builtin := b.dialect.Builtin(call.FuncName.Name); builtin != nil && builtin.SideEffects.Terminates {
		b.current.Exit = Exit{Kind: ExitTerminated}
		b.current = b.graph.MakeBlock()
	}
	return nil
}

func (b *builder) ifStmt(st *ast.If) error {
	condition, err := b.expr(&st.Condition)
	if err != nil {
		return err
	}
	ifBranch, afterIf := b.makeConditionalJump(condition)
	b.current = ifBranch
	if err := b.block(st.Body); err != nil {
		return err
	}
	b.jump(afterIf, false)
	return nil
}

func (b *builder) switchStmt(st *ast.Switch) error {
	if len(st.Cases) == 0 {
		return fmt.Errorf("dfg: switch without cases at %s", st.Span)
	}

	// Bind the scrutinee to a ghost variable so every case comparison reads
	// the same slot.
	ghost := &scope.Variable{
		Name: fmt.Sprintf("GHOST[%d]", len(b.graph.GhostVariables)),
		Span: st.Span,
	}
	b.graph.GhostVariables = append(b.graph.GhostVariables, ghost)
	ghostSlot := slots.VariableSlot(ghost, st.Span)

	scrutinee, err := b.expr(&st.Expression)
	if err != nil {
		return err
	}
	b.appendAssignment(slots.Stack{scrutinee}, slots.Stack{ghostSlot}, st.Span)

	// makeValueCompare lowers `eq(value, ghost)` through a ghost call so the
	// comparison's temporary has a call site to reference.
	makeValueCompare := func(value *ast.Literal) (slots.Slot, error) {
		eq := b.dialect.EqualityFunction()
		if eq == nil {
			return slots.Slot{}, fmt.Errorf("dfg: dialect provides no equality builtin")
		}
		ghostCall := &ast.FunctionCall{
			FuncName: ast.Identifier{Name: eq.Name, Span: st.Span},
			Arguments: []ast.Expr{
				ast.LitExpr(value),
				ast.IdentExpr(&ast.Identifier{Name: ghost.Name, Span: st.Span}),
			},
			Span: st.Span,
		}
		b.graph.GhostCalls = append(b.graph.GhostCalls, ghostCall)
		op := Operation{
			Input:  slots.Stack{ghostSlot, slots.LiteralSlot(value.Value, value.Span)},
			Output: slots.Stack{slots.Temporary(ghostCall, 0)},
			Kind:   OpBuiltinCall,
			Builtin: BuiltinCall{
				Builtin:   eq,
				Call:      ghostCall,
				Arguments: 2,
				Debug:     st.Span,
			},
		}
		b.current.Operations = append(b.current.Operations, op)
		return op.Output[0], nil
	}

	afterSwitch := b.graph.MakeBlock()
	for i := 0; i+1 < len(st.Cases); i++ {
		c := &st.Cases[i]
		if c.Value == nil {
			return fmt.Errorf("dfg: default case of switch at %s is not last", st.Span)
		}
		cmp, err := makeValueCompare(c.Value)
		if err != nil {
			return err
		}
		caseBranch, elseBranch := b.makeConditionalJump(cmp)
		b.current = caseBranch
		if err := b.block(c.Body); err != nil {
			return err
		}
		b.jump(afterSwitch, false)
		b.current = elseBranch
	}

	last := &st.Cases[len(st.Cases)-1]
	if last.Value != nil {
		cmp, err := makeValueCompare(last.Value)
		if err != nil {
			return err
		}
		caseBranch := b.graph.MakeBlock()
		b.makeConditionalJumpTo(cmp, caseBranch, afterSwitch)
		b.current = caseBranch
		if err := b.block(last.Body); err != nil {
			return err
		}
	} else {
		if err := b.block(last.Body); err != nil {
			return err
		}
	}
	b.jump(afterSwitch, false)
	return nil
}

func (b *builder) forLoopStmt(st *ast.ForLoop) error {
	// The pre block's scope spans the condition, body and post.
	savedScope := b.scope
	if err := b.block(st.Pre); err != nil {
		return err
	}
	b.scope = b.info.ScopeOf(st.Pre)

	var constantCondition *bool
	if st.Condition.Kind == ast.ExprLit {
		v := st.Condition.Lit.Value.Sign() != 0
		constantCondition = &v
	}

	loopCondition := b.graph.MakeBlock()
	loopBody := b.graph.MakeBlock()
	post := b.graph.MakeBlock()
	afterLoop := b.graph.MakeBlock()

	savedLoop := b.forLoop
	b.forLoop = &forLoopInfo{afterLoop: afterLoop, post: post}

	switch {
	case constantCondition != nil && *constantCondition:
		b.jump(loopBody, false)
		if err := b.block(st.Body); err != nil {
			return err
		}
		b.jump(post, false)
		if err := b.block(st.Post); err != nil {
			return err
		}
		b.jump(loopBody, true)
	case constantCondition != nil:
		b.jump(afterLoop, false)
	default:
		b.jump(loopCondition, false)
		condition, err := b.expr(&st.Condition)
		if err != nil {
			return err
		}
		b.makeConditionalJumpTo(condition, loopBody, afterLoop)
		b.current = loopBody
		if err := b.block(st.Body); err != nil {
			return err
		}
		b.jump(post, false)
		if err := b.block(st.Post); err != nil {
			return err
		}
		b.jump(loopCondition, true)
	}

	b.forLoop = savedLoop
	b.current = afterLoop
	b.scope = savedScope
	return nil
}

func (b *builder) functionDefinition(def *ast.FunctionDefinition) error {
	function, err := b.lookupFunction(def.Name)
	if err != nil {
		return err
	}
	if _, exists := b.graph.Functions[function]; exists {
		return fmt.Errorf("dfg: function %q lowered twice", def.Name)
	}

	info := &FunctionInfo{
		Function: function,
		Entry:    b.graph.MakeBlock(),
		Debug:    def.Span,
	}
	b.graph.Functions[function] = info
	b.graph.FunctionOrder = append(b.graph.FunctionOrder, function)

	virtual := b.info.VirtualBlock(def)
	if virtual == nil {
		return fmt.Errorf("dfg: no virtual block recorded for function %q", def.Name)
	}
	virtualScope := b.info.ScopeOf(virtual)
	if virtualScope == nil {
		return fmt.Errorf("dfg: no scope recorded for virtual block of %q", def.Name)
	}
	for _, p := range def.Parameters {
		entry, ok := virtualScope.Identifiers[p.Name]
		if !ok || entry.Var == nil {
			return fmt.Errorf("dfg: parameter %q of %q missing from virtual scope", p.Name, def.Name)
		}
		info.Parameters = append(info.Parameters, slots.VariableSlot(entry.Var, p.Span))
	}
	for _, ret := range def.ReturnVariables {
		entry, ok := virtualScope.Identifiers[ret.Name]
		if !ok || entry.Var == nil {
			return fmt.Errorf("dfg: return variable %q of %q missing from virtual scope", ret.Name, def.Name)
		}
		info.ReturnVariables = append(info.ReturnVariables, slots.VariableSlot(entry.Var, ret.Span))
	}

	sub := &builder{
		graph:   b.graph,
		info:    b.info,
		dialect: b.dialect,
		scope:   virtualScope,
	}
	sub.functionExit = b.graph.MakeBlock()
	sub.functionExit.Exit = Exit{Kind: ExitFunctionReturn, Ret: FunctionReturnExit{Info: info}}
	sub.current = info.Entry
	if err := sub.block(def.Body); err != nil {
		return err
	}
	sub.jump(sub.functionExit, false)
	return nil
}
