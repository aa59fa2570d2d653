package layout

import (
	"smelt/internal/dfg"
	"smelt/internal/slots"
)

// maxCarriedWidth bounds how many slots a layout carries across an edge
// before the generator falls back to deduplicated essentials; regenerable
// slots past this width cost less to rebuild than to keep reachable.
const maxCarriedWidth = 12

// combineCandidateLimit bounds the permutation search at control-flow
// joins; beyond it the unpermuted candidate is used as is.
const combineCandidateLimit = 8

// shuffleDepthPenalty is the cost added for every shuffle move that would
// reach below the machine's limit when scoring join candidates.
const shuffleDepthPenalty = 1000

// Generate runs the backwards fixed point over the graph, stitches
// conditional-jump successors, and repairs stack-too-deep situations where
// it can. Violations that survive the repair are returned; the layout is
// still complete and usable for the unaffected parts.
func Generate(g *dfg.DFG) (*Layout, []StackTooDeepError) {
	l := &Layout{
		Blocks:         make(map[*dfg.BasicBlock]*BlockInfo),
		OperationEntry: make(map[*dfg.Operation]slots.Stack),
	}
	gen := &generator{layout: l}

	gen.processEntryPoint(g.Entry)
	for _, fn := range g.FunctionOrder {
		gen.processEntryPoint(g.Functions[fn].Entry)
	}

	gen.stitchConditionalJumps(g.Entry)
	for _, fn := range g.FunctionOrder {
		gen.stitchConditionalJumps(g.Functions[fn].Entry)
	}

	var reports []StackTooDeepError
	reports = append(reports, gen.fixStackTooDeep(g.Entry, "")...)
	for _, fn := range g.FunctionOrder {
		reports = append(reports, gen.fixStackTooDeep(g.Functions[fn].Entry, fn.Name)...)
	}
	return l, reports
}

type generator struct {
	layout *Layout
}

type backJump struct {
	from   *dfg.BasicBlock
	target *dfg.BasicBlock
}

// processEntryPoint runs the backwards fixed point from one entry block.
// Blocks are visited once their successors have layouts; back-edges break
// the cycle by using the target's current (possibly empty) entry layout and
// are re-checked afterwards.
func (gen *generator) processEntryPoint(entry *dfg.BasicBlock) {
	toVisit := []*dfg.BasicBlock{entry}
	visited := make(map[*dfg.BasicBlock]bool)
	var backJumps []backJump

	for len(toVisit) > 0 {
		block := toVisit[0]
		toVisit = toVisit[1:]
		if visited[block] {
			continue
		}

		exitLayout, ok := gen.deriveExitLayout(block, visited, &toVisit, &backJumps)
		if !ok {
			continue
		}

		info := gen.blockInfo(block)
		info.Exit = exitLayout
		info.Entry = gen.propagateThroughBlock(exitLayout.Clone(), block)
		toVisit = append(toVisit, block.Entries...)
	}

	for _, bj := range backJumps {
		exit := gen.blockInfo(bj.from).Exit
		missing := false
		for _, slot := range gen.blockInfo(bj.target).Entry {
			if _, found := slots.FindOffset(exit, slot); !found {
				missing = true
				break
			}
		}
		if missing {
			// The loop exit does not provide everything the header demands;
			// revisit the subgraph from the back-edge source, which now
			// starts from the required entry layout. The set of demandable
			// slots is bounded, so this terminates.
			gen.processEntryPoint(bj.from)
		}
	}
}

// deriveExitLayout computes the exit layout of block from its exit variant.
// It returns false when a successor still lacks a layout; the successor has
// then been prepended to the worklist and block stays unvisited.
func (gen *generator) deriveExitLayout(
	block *dfg.BasicBlock,
	visited map[*dfg.BasicBlock]bool,
	toVisit *[]*dfg.BasicBlock,
	backJumps *[]backJump,
) (slots.Stack, bool) {
	switch block.Exit.Kind {
	case dfg.ExitMain, dfg.ExitTerminated:
		visited[block] = true
		return nil, true

	case dfg.ExitJump:
		jump := block.Exit.Jump
		if jump.Backwards {
			visited[block] = true
			*backJumps = append(*backJumps, backJump{from: block, target: jump.Target})
			if info := gen.layout.Blocks[jump.Target]; info != nil {
				return info.Entry.Clone(), true
			}
			return nil, true
		}
		if visited[jump.Target] {
			visited[block] = true
			return gen.blockInfo(jump.Target).Entry.Clone(), true
		}
		*toVisit = append([]*dfg.BasicBlock{jump.Target}, *toVisit...)
		return nil, false

	case dfg.ExitConditionalJump:
		cond := block.Exit.Cond
		zeroVisited := visited[cond.Zero]
		nonZeroVisited := visited[cond.NonZero]
		if zeroVisited && nonZeroVisited {
			stack := gen.combine(
				gen.blockInfo(cond.Zero).Entry,
				gen.blockInfo(cond.NonZero).Entry,
			)
			stack = append(stack, cond.Condition)
			visited[block] = true
			return stack, true
		}
		if !zeroVisited {
			*toVisit = append([]*dfg.BasicBlock{cond.Zero}, *toVisit...)
		}
		if !nonZeroVisited {
			*toVisit = append([]*dfg.BasicBlock{cond.NonZero}, *toVisit...)
		}
		return nil, false

	case dfg.ExitFunctionReturn:
		visited[block] = true
		info := block.Exit.Ret.Info
		stack := make(slots.Stack, 0, len(info.ReturnVariables)+1)
		stack = append(stack, info.ReturnVariables...)
		stack = append(stack, slots.ReturnLabel())
		return stack, true
	}
	return nil, false
}

func (gen *generator) blockInfo(b *dfg.BasicBlock) *BlockInfo {
	info := gen.layout.Blocks[b]
	if info == nil {
		info = &BlockInfo{}
		gen.layout.Blocks[b] = info
	}
	return info
}

// propagateThroughBlock folds the per-operation back-propagation over the
// block's operations in reverse.
func (gen *generator) propagateThroughBlock(exit slots.Stack, block *dfg.BasicBlock) slots.Stack {
	stack := exit
	for i := len(block.Operations) - 1; i >= 0; i-- {
		stack = gen.propagateThroughOperation(stack, &block.Operations[i])
	}
	return stack
}

// propagateThroughOperation derives the stack wanted immediately before op
// from the stack wanted immediately after it, records it as the operation's
// entry layout, and compresses the remainder for the journey further up.
func (gen *generator) propagateThroughOperation(exit slots.Stack, op *dfg.Operation) slots.Stack {
	stack := idealLayoutBefore(exit, op.Output)

	// The assigned variables' previous values are dead below the operation.
	if op.Kind == dfg.OpAssignment {
		for i := range stack {
			if stack[i].Kind == slots.KindVariable {
				if _, found := slots.FindOffset(op.Assign.Variables, stack[i]); found {
					stack[i] = slots.Junk()
				}
			}
		}
	}

	stack = append(stack, op.Input...)
	gen.layout.OperationEntry[op] = stack.Clone()

	// Compression: regenerable or duplicated slots on top need not be
	// carried to the predecessors.
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.CanBeFreelyGenerated() {
			stack = stack[:len(stack)-1]
			continue
		}
		if _, found := slots.FindOffset(stack[:len(stack)-1], top); found {
			stack = stack[:len(stack)-1]
			continue
		}
		break
	}

	if len(stack) > maxCarriedWidth {
		compressed := make(slots.Stack, 0, len(stack))
		for _, slot := range stack {
			if slot.Kind == slots.KindLiteral || slot.Kind == slots.KindCallReturnLabel {
				continue
			}
			if _, found := slots.FindOffset(compressed, slot); found {
				continue
			}
			compressed = append(compressed, slot)
		}
		stack = compressed
	}
	return stack
}

// idealLayoutBefore arranges the slots an operation must find beneath its
// inputs: outputs claim the exit positions where they are consumed, and the
// surviving slots fill the remaining positions in their exit order.
func idealLayoutBefore(exit slots.Stack, output slots.Stack) slots.Stack {
	claimed := make([]bool, len(exit))
	numToKeep := 0
	for _, out := range output {
		for _, off := range slots.FindAllOffsets(exit, out) {
			if !claimed[off] {
				claimed[off] = true
				numToKeep++
			}
		}
	}
	result := make(slots.Stack, 0, len(exit)-numToKeep)
	for pos := 0; pos < len(exit); pos++ {
		if !claimed[pos] {
			result = append(result, exit[pos])
		}
	}
	return result
}

// combine merges the entry layouts of a conditional jump's successors into
// one stack both can be shuffled from cheaply. The common prefix is kept;
// for the rest, every permutation of the carried slots is scored by
// simulating the shuffler against both sides.
func (gen *generator) combine(stack1, stack2 slots.Stack) slots.Stack {
	if len(stack1) == 0 {
		return stack2.Clone()
	}
	if len(stack2) == 0 {
		return stack1.Clone()
	}

	var prefix slots.Stack
	for i := 0; i < len(stack1) && i < len(stack2); i++ {
		if !stack1[i].Equal(stack2[i]) {
			break
		}
		prefix = append(prefix, stack1[i])
	}
	rest1 := stack1[len(prefix):]
	rest2 := stack2[len(prefix):]

	var candidate slots.Stack
	for _, slot := range rest1 {
		if _, found := slots.FindOffset(candidate, slot); !found {
			candidate = append(candidate, slot)
		}
	}
	for _, slot := range rest2 {
		if _, found := slots.FindOffset(candidate, slot); !found {
			candidate = append(candidate, slot)
		}
	}
	kept := candidate[:0]
	for _, slot := range candidate {
		if slot.Kind == slots.KindLiteral || slot.Kind == slots.KindCallReturnLabel {
			continue
		}
		kept = append(kept, slot)
	}
	candidate = kept

	if len(candidate) > combineCandidateLimit {
		return append(prefix, candidate...)
	}

	evaluate := func(c slots.Stack) int {
		cost := 0
		work := c.Clone()
		slots.Shuffle(&work, rest1, slots.CountingOps(&cost, shuffleDepthPenalty))
		work = c.Clone()
		slots.Shuffle(&work, rest2, slots.CountingOps(&cost, shuffleDepthPenalty))
		return cost
	}

	best := candidate.Clone()
	bestCost := evaluate(candidate)

	// Heap's algorithm over the candidate permutations.
	n := len(candidate)
	counters := make([]int, n)
	for i := 1; i < n; {
		if counters[i] < i {
			if i%2 == 1 {
				candidate[0], candidate[i] = candidate[i], candidate[0]
			} else {
				candidate[counters[i]], candidate[i] = candidate[i], candidate[counters[i]]
			}
			if cost := evaluate(candidate); cost < bestCost {
				bestCost = cost
				best = candidate.Clone()
			}
			counters[i]++
			i = 1
		} else {
			counters[i] = 0
			i++
		}
	}

	return append(prefix, best...)
}

// stitchConditionalJumps forces both successors of every conditional jump
// to enter with the branch's exit stack minus the condition, junking the
// slots a successor does not need. The branch itself then never shuffles.
func (gen *generator) stitchConditionalJumps(entry *dfg.BasicBlock) {
	dfg.BreadthFirst([]*dfg.BasicBlock{entry}, func(b *dfg.BasicBlock, enqueue func(*dfg.BasicBlock)) {
		info := gen.blockInfo(b)
		switch b.Exit.Kind {
		case dfg.ExitJump:
			if !b.Exit.Jump.Backwards {
				enqueue(b.Exit.Jump.Target)
			}
		case dfg.ExitConditionalJump:
			cond := b.Exit.Cond
			exitLayout := info.Exit.Clone()
			if len(exitLayout) == 0 {
				panic("layout: conditional jump with empty exit layout")
			}
			exitLayout = exitLayout[:len(exitLayout)-1]
			for _, target := range []*dfg.BasicBlock{cond.Zero, cond.NonZero} {
				targetInfo := gen.blockInfo(target)
				stitched := exitLayout.Clone()
				for i := range stitched {
					if _, found := slots.FindOffset(targetInfo.Entry, stitched[i]); !found {
						stitched[i] = slots.Junk()
					}
				}
				targetInfo.Entry = stitched
			}
			enqueue(cond.Zero)
			enqueue(cond.NonZero)
		}
	})
}
