package slots

import "fmt"

// ShuffleOps receives the primitive stack moves chosen by Shuffle. Depths
// are 1-based distances from the top: Swap(1) exchanges the two topmost
// slots, Dup(1) copies the top.
type ShuffleOps struct {
	Swap func(depth int)
	Dup  func(depth int)
	Push func(slot Slot)
	Pop  func()
}

// CountingOps returns ops that only count moves, for cost estimation.
// penalty is added whenever a swap or dup reaches deeper than the machine
// allows.
func CountingOps(count *int, penalty int) ShuffleOps {
	return ShuffleOps{
		Swap: func(depth int) {
			*count++
			if depth > MaxStackDepth {
				*count += penalty
			}
		},
		Dup: func(depth int) {
			*count++
			if depth > MaxStackDepth {
				*count += penalty
			}
		},
		Push: func(Slot) {},
		Pop:  func() {},
	}
}

// MaxStackDepth is the deepest position swap and dup can reach on the
// target machine.
const MaxStackDepth = 16

// Shuffle mutates current in place, issuing ops callbacks, until it equals
// target. It never chooses a move that is not strictly necessary: equal
// stacks produce no callbacks.
//
// The policy, in order:
//  1. pop the top while it occurs more often than the target wants it;
//  2. if the top is in its final position, dup a slot that is still
//     missing copies, else push a slot not yet on the stack, else swap the
//     deepest out-of-place slot up;
//  3. otherwise swap the top down into a position that wants it.
//
// Keeping every chosen depth within MaxStackDepth is the layout
// generator's obligation, not Shuffle's.
func Shuffle(current *Stack, target Stack, ops ShuffleOps) {
	for {
		cur := *current
		if cur.Equal(target) {
			return
		}

		if len(cur) == 0 {
			for len(*current) < len(target) {
				slot := target[len(*current)]
				ops.Push(slot)
				*current = append(*current, slot)
			}
			if !current.Equal(target) {
				panic(fmt.Sprintf("slots: shuffle failed to build %v from empty stack", target))
			}
			return
		}

		top := cur.Top()
		topTargets := FindAllOffsets(target, top)
		if len(topTargets) < CountOccurrences(cur, top) {
			ops.Pop()
			*current = cur[:len(cur)-1]
			continue
		}

		if len(target) >= len(cur) && target[len(cur)-1].Equal(top) {
			// Top already in place.
			if shuffleDupOrPush(current, target, ops) {
				continue
			}
			// Nothing to dup or push: swap the deepest out-of-place slot up.
			swapped := false
			for offset := range cur {
				if !cur[offset].Equal(target[offset]) && !cur[offset].Equal(top) {
					ops.Swap(len(cur) - offset - 1)
					cur[offset], cur[len(cur)-1] = cur[len(cur)-1], cur[offset]
					swapped = true
					break
				}
			}
			if swapped {
				continue
			}
			if !cur.Equal(target) {
				panic(fmt.Sprintf("slots: shuffle stuck transforming %v into %v", cur, target))
			}
			return
		}

		// Top is not in place: move it into a position that wants it and is
		// not correct yet.
		swapped := false
		for _, pos := range topTargets {
			if pos >= len(cur) {
				break
			}
			if !cur[pos].Equal(target[pos]) {
				ops.Swap(len(cur) - pos - 1)
				cur[pos], cur[len(cur)-1] = cur[len(cur)-1], cur[pos]
				swapped = true
				break
			}
		}
		if swapped {
			continue
		}
		if shuffleDupOrPush(current, target, ops) {
			continue
		}
		panic(fmt.Sprintf("slots: shuffle stuck transforming %v into %v", cur, target))
	}
}

// shuffleDupOrPush duplicates a slot that target wants more copies of, or
// pushes a slot not on the stack at all. Reports whether it made a move.
func shuffleDupOrPush(current *Stack, target Stack, ops ShuffleOps) bool {
	cur := *current
	for offset := range cur {
		if CountOccurrences(cur, cur[offset]) < CountOccurrences(target, cur[offset]) {
			depth := shallowestDepth(cur, cur[offset])
			ops.Dup(depth)
			*current = append(cur, cur[offset])
			return true
		}
	}
	for _, slot := range target {
		if _, found := FindOffset(cur, slot); !found {
			ops.Push(slot)
			*current = append(cur, slot)
			return true
		}
	}
	return false
}

// shallowestDepth returns the 1-based depth of the occurrence of slot
// closest to the top.
func shallowestDepth(s Stack, slot Slot) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Equal(slot) {
			return len(s) - i
		}
	}
	panic("slots: slot not on stack")
}

// UnreachableSlots dry-runs Shuffle from current into target and collects
// the slots a real emission would have to reach below MaxStackDepth. An
// empty result means the transformation is fully realizable.
func UnreachableSlots(current, target Stack) Stack {
	work := current.Clone()
	var unreachable Stack
	record := func(slot Slot) {
		if _, found := FindOffset(unreachable, slot); !found {
			unreachable = append(unreachable, slot)
		}
	}
	Shuffle(&work, target, ShuffleOps{
		Swap: func(depth int) {
			if depth > MaxStackDepth {
				record(work[len(work)-1-depth])
			}
		},
		Dup: func(depth int) {
			if depth > MaxStackDepth {
				record(work[len(work)-depth])
			}
		},
		Push: func(Slot) {},
		Pop:  func() {},
	})
	return unreachable
}
