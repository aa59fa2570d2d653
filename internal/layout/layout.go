// Package layout chooses, for every block edge and every operation, the
// stack arrangement that minimizes shuffling while keeping all live slots
// within the machine's reach. It is a backwards data-flow analysis over the
// DFG; the result is immutable input to the code generator.
package layout

import (
	"fmt"
	"strings"

	"smelt/internal/dfg"
	"smelt/internal/slots"
)

// BlockInfo carries the layouts chosen for one block.
type BlockInfo struct {
	// Entry is what predecessors must supply when entering the block.
	Entry slots.Stack
	// Exit is what the block must hold when its exit executes.
	Exit slots.Stack
}

// Layout maps graph identities to their chosen stacks. It holds non-owning
// references only.
type Layout struct {
	Blocks         map[*dfg.BasicBlock]*BlockInfo
	OperationEntry map[*dfg.Operation]slots.Stack
}

// Block returns the info of a processed block.
func (l *Layout) Block(b *dfg.BasicBlock) *BlockInfo {
	return l.Blocks[b]
}

// StackTooDeepError reports that the repair pass could not bring every
// stack access within reach on some path. codegen.Run emits nothing for a
// program with any such report and returns the reports as its error.
type StackTooDeepError struct {
	// Function is empty when the violation is in the main program.
	Function string
	Slots    slots.Stack
}

func (e *StackTooDeepError) Error() string {
	where := "main program"
	if e.Function != "" {
		where = fmt.Sprintf("function %q", e.Function)
	}
	names := make([]string, len(e.Slots))
	for i, s := range e.Slots {
		names[i] = s.String()
	}
	return fmt.Sprintf("layout: stack too deep in %s: cannot reach %s",
		where, strings.Join(names, ", "))
}
