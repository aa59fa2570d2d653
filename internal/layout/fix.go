package layout

import (
	"smelt/internal/dfg"
	"smelt/internal/slots"
)

// fixStackTooDeep walks the subgraph checking that every shuffle the code
// generator will perform stays within reach. Unreachable slots found while
// entering an operation are spliced into the entry layouts of the earlier
// operations of the same block, which carries them upward (duplicated
// shallower) from the block entry on. Violations at block-to-block
// transitions cannot be repaired this way and are reported.
func (gen *generator) fixStackTooDeep(entry *dfg.BasicBlock, function string) []StackTooDeepError {
	var reports []StackTooDeepError

	dfg.BreadthFirst([]*dfg.BasicBlock{entry}, func(b *dfg.BasicBlock, enqueue func(*dfg.BasicBlock)) {
		info := gen.blockInfo(b)
		stack := info.Entry.Clone()

		for i := range b.Operations {
			op := &b.Operations[i]
			opEntry := gen.layout.OperationEntry[op]
			if unreachable := slots.UnreachableSlots(stack, opEntry); len(unreachable) > 0 {
				gen.carryThroughOperations(b.Operations[:i], unreachable)
			}
			opEntry = gen.layout.OperationEntry[op]
			stack = opEntry.Clone()
			stack = stack[:len(stack)-len(op.Input)]
			stack = append(stack, op.Output...)
		}

		if unreachable := slots.UnreachableSlots(stack, info.Exit); len(unreachable) > 0 {
			gen.carryThroughOperations(b.Operations, unreachable)
		}
		stack = info.Exit

		check := func(target *dfg.BasicBlock) {
			targetEntry := gen.blockInfo(target).Entry
			if unreachable := slots.UnreachableSlots(stack, targetEntry); len(unreachable) > 0 {
				// The repair is block-local; a violation on an edge is
				// reported for the caller to handle.
				reports = append(reports, StackTooDeepError{
					Function: function,
					Slots:    unreachable,
				})
			}
		}

		switch b.Exit.Kind {
		case dfg.ExitJump:
			check(b.Exit.Jump.Target)
			if !b.Exit.Jump.Backwards {
				enqueue(b.Exit.Jump.Target)
			}
		case dfg.ExitConditionalJump:
			check(b.Exit.Cond.Zero)
			check(b.Exit.Cond.NonZero)
			enqueue(b.Exit.Cond.Zero)
			enqueue(b.Exit.Cond.NonZero)
		}
	})

	return reports
}

// carryThroughOperations splices the given slots beneath every operation's
// inputs, walking the prefix of a block backwards, so that each of them is
// available (and duplicated shallower) before the stack grows too deep.
func (gen *generator) carryThroughOperations(ops []dfg.Operation, carried slots.Stack) {
	for i := len(ops) - 1; i >= 0; i-- {
		op := &ops[i]
		entry := gen.layout.OperationEntry[op]
		split := len(entry) - len(op.Input)
		patched := make(slots.Stack, 0, len(entry)+len(carried))
		patched = append(patched, entry[:split]...)
		patched = append(patched, carried...)
		patched = append(patched, entry[split:]...)
		gen.layout.OperationEntry[op] = patched
	}
}
