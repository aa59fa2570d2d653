package dfg

import (
	"fmt"

	"smelt/internal/ast"
	"smelt/internal/slots"
)

// expr evaluates an expression to the single slot holding its value,
// appending call operations to the current block as needed.
func (b *builder) expr(e *ast.Expr) (slots.Slot, error) {
	switch e.Kind {
	case ast.ExprLit:
		return slots.LiteralSlot(e.Lit.Value, e.Lit.Span), nil
	case ast.ExprIdent:
		v, err := b.lookupVariable(e.Ident.Name)
		if err != nil {
			return slots.Slot{}, err
		}
		return slots.VariableSlot(v, e.Ident.Span), nil
	case ast.ExprCall:
		output, err := b.visitFunctionCall(e.Call)
		if err != nil {
			return slots.Slot{}, err
		}
		if len(output) != 1 {
			return slots.Slot{}, fmt.Errorf("dfg: call to %q used as value but returns %d values",
				e.Call.FuncName.Name, len(output))
		}
		return output[0], nil
	}
	return slots.Slot{}, fmt.Errorf("dfg: unknown expression kind %d", e.Kind)
}

// visitFunctionCall lowers a call into an operation of the current block
// and returns the operation's output stack. Arguments are evaluated right
// to left so that the first argument ends up on top of the stack; builtin
// arguments flagged as literal are inlined at emission time and never
// touch the stack.
func (b *builder) visitFunctionCall(call *ast.FunctionCall) (slots.Stack, error) {
	if b.current == nil {
		return nil, fmt.Errorf("dfg: call to %q in unreachable position", call.FuncName.Name)
	}

	if builtin := b.dialect.Builtin(call.FuncName.Name); builtin != nil {
		if len(call.Arguments) != builtin.Arguments {
			return nil, fmt.Errorf("dfg: builtin %q expects %d arguments, got %d",
				builtin.Name, builtin.Arguments, len(call.Arguments))
		}
		var input slots.Stack
		for i := len(call.Arguments) - 1; i >= 0; i-- {
			if builtin.LiteralArgument(i) {
				continue
			}
			slot, err := b.expr(&call.Arguments[i])
			if err != nil {
				return nil, err
			}
			input = append(input, slot)
		}
		op := Operation{
			Input: input,
			Kind:  OpBuiltinCall,
			Builtin: BuiltinCall{
				Builtin:   builtin,
				Call:      call,
				Arguments: len(input),
				Debug:     call.Span,
			},
		}
		for i := 0; i < builtin.Returns; i++ {
			op.Output = append(op.Output, slots.Temporary(call, i))
		}
		b.current.Operations = append(b.current.Operations, op)
		return op.Output.Clone(), nil
	}

	function, err := b.lookupFunction(call.FuncName.Name)
	if err != nil {
		return nil, err
	}
	if len(call.Arguments) != function.Arguments {
		return nil, fmt.Errorf("dfg: function %q expects %d arguments, got %d",
			function.Name, function.Arguments, len(call.Arguments))
	}
	input := slots.Stack{slots.CallReturnLabel(call)}
	for i := len(call.Arguments) - 1; i >= 0; i-- {
		slot, err := b.expr(&call.Arguments[i])
		if err != nil {
			return nil, err
		}
		input = append(input, slot)
	}
	op := Operation{
		Input: input,
		Kind:  OpFunctionCall,
		Call: FunctionCall{
			Function: function,
			Call:     call,
			Debug:    call.Span,
		},
	}
	for i := 0; i < function.Returns; i++ {
		op.Output = append(op.Output, slots.Temporary(call, i))
	}
	b.current.Operations = append(b.current.Operations, op)
	return op.Output.Clone(), nil
}
