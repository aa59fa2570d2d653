package dfg

import (
	"errors"
	"fmt"

	"smelt/internal/slots"
)

// Validate checks the structural invariants of a built graph. It is run by
// tests and, under a flag, by the driver; a failure indicates a bug in the
// builder, not a user error.
func Validate(g *DFG) error {
	var errs []error

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

	ids := make(map[*BasicBlock]int, len(g.Blocks))
	for i, b := range g.Blocks {
		ids[b] = i
	}

	for _, b := range g.Blocks {
		if !reachable[b] {
			continue
		}
		for _, entry := range b.Entries {
			if !reachable[entry] {
				errs = append(errs, fmt.Errorf("bb%d: entry edge from unreachable bb%d survived pruning",
					ids[b], ids[entry]))
			}
		}
		backEdges := 0
		for _, entry := range b.Entries {
			if entry.Exit.Kind == ExitJump && entry.Exit.Jump.Backwards && entry.Exit.Jump.Target == b {
				backEdges++
			}
		}
		if backEdges > 1 {
			errs = append(errs, fmt.Errorf("bb%d: %d incoming back-edges", ids[b], backEdges))
		}
		for i := range b.Operations {
			if err := validateOperation(&b.Operations[i]); err != nil {
				errs = append(errs, fmt.Errorf("bb%d op %d: %w", ids[b], i, err))
			}
		}
	}
	return errors.Join(errs...)
}

func validateOperation(op *Operation) error {
	switch op.Kind {
	case OpBuiltinCall:
		if len(op.Input) != op.Builtin.Arguments {
			return fmt.Errorf("builtin %q consumes %d slots, expected %d",
				op.Builtin.Builtin.Name, len(op.Input), op.Builtin.Arguments)
		}
		if len(op.Output) != op.Builtin.Builtin.Returns {
			return fmt.Errorf("builtin %q produces %d slots, expected %d",
				op.Builtin.Builtin.Name, len(op.Output), op.Builtin.Builtin.Returns)
		}
	case OpFunctionCall:
		fn := op.Call.Function
		if len(op.Input) != fn.Arguments+1 {
			return fmt.Errorf("call to %q consumes %d slots, expected %d arguments plus return label",
				fn.Name, len(op.Input), fn.Arguments)
		}
		if op.Input[0].Kind != slots.KindCallReturnLabel || op.Input[0].Call != op.Call.Call {
			return fmt.Errorf("call to %q: deepest input slot is not this call's return label", fn.Name)
		}
		if len(op.Output) != fn.Returns {
			return fmt.Errorf("call to %q produces %d slots, expected %d", fn.Name, len(op.Output), fn.Returns)
		}
		for i, out := range op.Output {
			if out.Kind != slots.KindTemporary || out.Call != op.Call.Call || out.Index != i {
				return fmt.Errorf("call to %q: output %d is not this call's temporary", fn.Name, i)
			}
		}
	case OpAssignment:
		if len(op.Input) != len(op.Output) {
			return fmt.Errorf("assignment consumes %d slots but targets %d variables",
				len(op.Input), len(op.Output))
		}
		for _, v := range op.Assign.Variables {
			if v.Kind != slots.KindVariable {
				return fmt.Errorf("assignment target %s is not a variable", v)
			}
		}
	}
	return nil
}
