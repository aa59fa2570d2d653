package codegen

import (
	"smelt/internal/asm"
	"smelt/internal/dfg"
	"smelt/internal/slots"
)

// emitBlock emits one block: entry label if one was allocated, each
// operation behind its entry layout, the exit layout, and the exit itself.
// Emission is idempotent per block.
func (gen *generator) emitBlock(block *dfg.BasicBlock) error {
	if gen.generated[block] {
		return nil
	}
	gen.generated[block] = true

	info := gen.layout.Block(block)
	if info == nil {
		return invariantf("block emitted without a layout")
	}

	if label, ok := gen.blockLabels[block]; ok {
		gen.asm.AppendLabel(label)
	}

	if err := assertLayoutCompatibility(gen.stack, info.Entry); err != nil {
		return err
	}
	gen.stack = info.Entry.Clone()
	if gen.asm.StackHeight() != len(gen.stack) {
		return invariantf("assembly height %d diverged from model %s", gen.asm.StackHeight(), gen.stack)
	}

	for i := range block.Operations {
		op := &block.Operations[i]
		if err := gen.createStackLayout(gen.layout.OperationEntry[op]); err != nil {
			return err
		}
		var err error
		switch op.Kind {
		case dfg.OpBuiltinCall:
			err = gen.emitBuiltinCall(op)
		case dfg.OpFunctionCall:
			err = gen.emitFunctionCall(op)
		case dfg.OpAssignment:
			err = gen.applyAssignment(op)
		}
		if err != nil {
			return err
		}
	}

	if err := gen.createStackLayout(info.Exit); err != nil {
		return err
	}
	return gen.emitExit(block)
}

func (gen *generator) emitExit(block *dfg.BasicBlock) error {
	switch block.Exit.Kind {
	case dfg.ExitMain:
		gen.asm.AppendInstruction(asm.STOP)
		return nil

	case dfg.ExitJump:
		jump := block.Exit.Jump
		targetEntry := gen.layout.Block(jump.Target).Entry
		if err := gen.createStackLayout(targetEntry); err != nil {
			return err
		}
		if _, hasLabel := gen.blockLabels[jump.Target]; !hasLabel && len(jump.Target.Entries) == 1 {
			// Sole predecessor: fall through into the target.
			return gen.emitBlock(jump.Target)
		}
		if _, hasLabel := gen.blockLabels[jump.Target]; !hasLabel {
			gen.blockLabels[jump.Target] = gen.asm.NewLabelID()
		}
		if !gen.stack.Equal(targetEntry) {
			return invariantf("stack %s does not match %s at jump", gen.stack, targetEntry)
		}
		gen.asm.AppendJumpTo(gen.blockLabels[jump.Target], 0, asm.JumpOrdinary)
		if !gen.generated[jump.Target] {
			gen.stagedBlocks = append(gen.stagedBlocks, jump.Target)
		}
		return nil

	case dfg.ExitConditionalJump:
		cond := block.Exit.Cond
		if _, ok := gen.blockLabels[cond.NonZero]; !ok {
			gen.blockLabels[cond.NonZero] = gen.asm.NewLabelID()
		}
		gen.asm.AppendJumpToIf(gen.blockLabels[cond.NonZero])
		if len(gen.stack) == 0 {
			return invariantf("conditional jump with empty stack model")
		}
		gen.stack = gen.stack[:len(gen.stack)-1]

		if err := assertLayoutCompatibility(gen.stack, gen.layout.Block(cond.NonZero).Entry); err != nil {
			return err
		}
		if err := assertLayoutCompatibility(gen.stack, gen.layout.Block(cond.Zero).Entry); err != nil {
			return err
		}

		if !gen.generated[cond.NonZero] {
			gen.stagedBlocks = append(gen.stagedBlocks, cond.NonZero)
		}
		if _, ok := gen.blockLabels[cond.Zero]; !ok {
			gen.blockLabels[cond.Zero] = gen.asm.NewLabelID()
		}
		if gen.generated[cond.Zero] {
			gen.asm.AppendJumpTo(gen.blockLabels[cond.Zero], 0, asm.JumpOrdinary)
			return nil
		}
		return gen.emitBlock(cond.Zero)

	case dfg.ExitFunctionReturn:
		ret := block.Exit.Ret
		if gen.currentFunction != ret.Info {
			return invariantf("return from %q emitted outside of it", ret.Info.Function.Name)
		}
		exitStack := make(slots.Stack, 0, len(ret.Info.ReturnVariables)+1)
		exitStack = append(exitStack, ret.Info.ReturnVariables...)
		exitStack = append(exitStack, slots.ReturnLabel())
		if err := gen.createStackLayout(exitStack); err != nil {
			return err
		}
		gen.asm.SetSourceLocation(ret.Info.Debug)
		gen.asm.AppendJump(0, asm.JumpOutOfFunction)
		gen.asm.SetStackHeight(0)
		gen.stack = gen.stack[:0]
		return nil

	case dfg.ExitTerminated:
		// The terminating builtin already ended the instruction stream.
		return nil
	}
	return invariantf("unknown exit kind %d", block.Exit.Kind)
}

// emitBuiltinCall validates the staged arguments, defers to the builtin's
// own code generator, and updates the model.
func (gen *generator) emitBuiltinCall(op *dfg.Operation) error {
	call := op.Builtin.Call
	builtin := op.Builtin.Builtin

	// Stack arguments sit on top, first stack-passed argument topmost.
	depth := 0
	for i := 0; i < len(call.Arguments); i++ {
		if builtin.LiteralArgument(i) {
			continue
		}
		slot := gen.stack[len(gen.stack)-1-depth]
		if err := validateSlot(slot, &call.Arguments[i]); err != nil {
			return err
		}
		depth++
	}
	if depth != op.Builtin.Arguments {
		return invariantf("builtin %q staged %d stack arguments, expected %d",
			builtin.Name, depth, op.Builtin.Arguments)
	}

	gen.asm.SetSourceLocation(op.Builtin.Debug)
	builtin.Generate(call, gen.asm, gen.ctx)

	gen.stack = gen.stack[:len(gen.stack)-op.Builtin.Arguments]
	for i := 0; i < builtin.Returns; i++ {
		gen.stack = append(gen.stack, slots.Temporary(call, i))
	}
	if gen.asm.StackHeight() != len(gen.stack) {
		return invariantf("assembly height %d diverged from model after builtin %q",
			gen.asm.StackHeight(), builtin.Name)
	}
	return nil
}

// emitFunctionCall jumps into the function and places its return label; the
// consumed slots are replaced by the call's temporaries.
func (gen *generator) emitFunctionCall(op *dfg.Operation) error {
	call := op.Call.Call
	fn := op.Call.Function

	returnLabel, ok := gen.returnLabels[call]
	if !ok {
		return invariantf("call to %q emitted before its return label was pushed", fn.Name)
	}

	// Arguments sit on top of the return label, first argument topmost.
	for i := range call.Arguments {
		slot := gen.stack[len(gen.stack)-1-i]
		if err := validateSlot(slot, &call.Arguments[i]); err != nil {
			return err
		}
	}
	labelSlot := gen.stack[len(gen.stack)-len(call.Arguments)-1]
	if labelSlot.Kind != slots.KindCallReturnLabel || labelSlot.Call != call {
		return invariantf("call to %q: return label slot missing below the arguments", fn.Name)
	}

	entryLabel, err := gen.functionLabel(fn)
	if err != nil {
		return err
	}
	gen.asm.SetSourceLocation(op.Call.Debug)
	gen.asm.AppendJumpTo(entryLabel, fn.Returns-fn.Arguments-1, asm.JumpIntoFunction)
	gen.asm.AppendLabel(returnLabel)

	gen.stack = gen.stack[:len(gen.stack)-fn.Arguments-1]
	for i := 0; i < fn.Returns; i++ {
		gen.stack = append(gen.stack, slots.Temporary(call, i))
	}
	if gen.asm.StackHeight() != len(gen.stack) {
		return invariantf("assembly height %d diverged from model after call to %q",
			gen.asm.StackHeight(), fn.Name)
	}
	return nil
}

// applyAssignment is a pure model update: the top slots become the assigned
// variables and stale copies below become junk.
func (gen *generator) applyAssignment(op *dfg.Operation) error {
	if len(gen.stack) < len(op.Assign.Variables) {
		return invariantf("assignment to %d variables with only %d slots staged",
			len(op.Assign.Variables), len(gen.stack))
	}
	for i := range gen.stack {
		if gen.stack[i].Kind == slots.KindVariable {
			if _, found := slots.FindOffset(op.Assign.Variables, gen.stack[i]); found {
				gen.stack[i] = slots.Junk()
			}
		}
	}
	base := len(gen.stack) - len(op.Assign.Variables)
	for i, v := range op.Assign.Variables {
		gen.stack[base+i] = v
	}
	return nil
}
