package dfg

import (
	"fmt"
	"io"
)

// Dump writes a human-readable rendering of the graph: the main entry
// first, then each function in encounter order.
func Dump(w io.Writer, g *DFG) error {
	ids := make(map[*BasicBlock]int, len(g.Blocks))
	for i, b := range g.Blocks {
		ids[b] = i
	}

	fmt.Fprintf(w, "entry bb%d\n", ids[g.Entry])
	if err := dumpReachable(w, ids, g.Entry); err != nil {
		return err
	}
	for _, fn := range g.FunctionOrder {
		info := g.Functions[fn]
		fmt.Fprintf(w, "func %s args=%d rets=%d entry bb%d\n",
			fn.Name, fn.Arguments, fn.Returns, ids[info.Entry])
		if err := dumpReachable(w, ids, info.Entry); err != nil {
			return err
		}
	}
	return nil
}

func dumpReachable(w io.Writer, ids map[*BasicBlock]int, entry *BasicBlock) error {
	var err error
	BreadthFirst([]*BasicBlock{entry}, func(b *BasicBlock, enqueue func(*BasicBlock)) {
		if err != nil {
			return
		}
		err = dumpBlock(w, ids, b)
		for _, succ := range b.Exit.Successors() {
			enqueue(succ)
		}
	})
	return err
}

func dumpBlock(w io.Writer, ids map[*BasicBlock]int, b *BasicBlock) error {
	fmt.Fprintf(w, "bb%d:\n", ids[b])
	for i := range b.Operations {
		op := &b.Operations[i]
		var what string
		switch op.Kind {
		case OpBuiltinCall:
			what = "builtin " + op.Builtin.Builtin.Name
		case OpFunctionCall:
			what = "call " + op.Call.Function.Name
		case OpAssignment:
			what = "assign"
		}
		fmt.Fprintf(w, "  %s %s -> %s\n", what, op.Input, op.Output)
	}
	switch b.Exit.Kind {
	case ExitMain:
		fmt.Fprintln(w, "  exit: main")
	case ExitJump:
		arrow := "jump"
		if b.Exit.Jump.Backwards {
			arrow = "jump back"
		}
		fmt.Fprintf(w, "  exit: %s bb%d\n", arrow, ids[b.Exit.Jump.Target])
	case ExitConditionalJump:
		fmt.Fprintf(w, "  exit: if %s then bb%d else bb%d\n",
			b.Exit.Cond.Condition, ids[b.Exit.Cond.NonZero], ids[b.Exit.Cond.Zero])
	case ExitFunctionReturn:
		fmt.Fprintf(w, "  exit: return from %s\n", b.Exit.Ret.Info.Function.Name)
	case ExitTerminated:
		fmt.Fprintln(w, "  exit: terminated")
	}
	return nil
}
