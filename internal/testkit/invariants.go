package testkit

import (
	"fmt"

	"smelt/internal/dfg"
	"smelt/internal/layout"
	"smelt/internal/slots"
)

// CheckLayoutConsistency verifies the structural relationships between a
// graph and its computed layout:
//
//  1. every reachable block has entry and exit layouts, and every operation
//     entry layout carries the operation's inputs on top;
//  2. folding the operations over the block's entry layout is consistent
//     with its exit layout (every non-regenerable exit slot is available);
//  3. both successors of a conditional jump enter with the branch's exit
//     stack minus the condition, up to junk.
func CheckLayoutConsistency(g *dfg.DFG, l *layout.Layout) error {
	var err error
	roots := []*dfg.BasicBlock{g.Entry}
	for _, fn := range g.FunctionOrder {
		roots = append(roots, g.Functions[fn].Entry)
	}
	dfg.BreadthFirst(roots, func(b *dfg.BasicBlock, enqueue func(*dfg.BasicBlock)) {
		for _, succ := range b.Exit.Successors() {
			enqueue(succ)
		}
		if err != nil {
			return
		}
		err = checkBlock(b, l)
	})
	return err
}

func checkBlock(b *dfg.BasicBlock, l *layout.Layout) error {
	info := l.Block(b)
	if info == nil {
		return fmt.Errorf("reachable block has no layout")
	}

	stack := info.Entry.Clone()
	for i := range b.Operations {
		op := &b.Operations[i]
		opEntry, ok := l.OperationEntry[op]
		if !ok {
			return fmt.Errorf("operation %d has no entry layout", i)
		}
		if len(opEntry) < len(op.Input) {
			return fmt.Errorf("operation %d: entry layout %s narrower than inputs %s", i, opEntry, op.Input)
		}
		if !slots.Stack(opEntry[len(opEntry)-len(op.Input):]).Equal(op.Input) {
			return fmt.Errorf("operation %d: entry layout %s does not stage inputs %s", i, opEntry, op.Input)
		}
		stack = opEntry.Clone()
		stack = stack[:len(stack)-len(op.Input)]
		stack = append(stack, op.Output...)
	}

	// Exit feasibility: everything the exit layout carries must be either
	// regenerable or produced above.
	for _, slot := range info.Exit {
		if slot.CanBeFreelyGenerated() {
			continue
		}
		if _, found := slots.FindOffset(stack, slot); !found {
			return fmt.Errorf("exit layout %s demands %s, absent after the block's operations (%s)",
				info.Exit, slot, stack)
		}
	}

	if b.Exit.Kind == dfg.ExitConditionalJump {
		if len(info.Exit) == 0 {
			return fmt.Errorf("conditional jump with empty exit layout")
		}
		want := info.Exit[:len(info.Exit)-1]
		for _, succ := range []*dfg.BasicBlock{b.Exit.Cond.Zero, b.Exit.Cond.NonZero} {
			entry := l.Block(succ).Entry
			if len(entry) != len(want) {
				return fmt.Errorf("stitched successor entry %s differs in width from %s", entry, want)
			}
			for i := range entry {
				if entry[i].Kind != slots.KindJunk && !entry[i].Equal(want[i]) {
					return fmt.Errorf("stitched successor entry %s diverges from %s at %d", entry, want, i)
				}
			}
		}
	}
	return nil
}
