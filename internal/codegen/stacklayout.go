package codegen

import (
	"math/big"
	"sort"

	"smelt/internal/asm"
	"smelt/internal/slots"
)

// createStackLayout brings the model (and the emitted stream) from the
// current stack into target. The common prefix is left untouched; if the
// remainder would need accesses below the machine's reach, slots are first
// duplicated shallower, deepest first.
func (gen *generator) createStackLayout(target slots.Stack) error {
	prefixLen := commonPrefixLen(gen.stack, target)

	if !gen.tryCreateStackLayout(target) {
		gen.dupUnreachable(target, prefixLen)
		prefixLen = commonPrefixLen(gen.stack, target)
	}

	temporary := gen.stack[prefixLen:].Clone()
	rest := target[prefixLen:]
	var emitErr error
	fail := func(err error) {
		if emitErr == nil {
			emitErr = err
		}
	}

	slots.Shuffle(&temporary, rest, slots.ShuffleOps{
		Swap: func(depth int) {
			if depth > asm.MaxReach {
				fail(invariantf("swap of depth %d emitted; layout should have prevented it", depth))
				return
			}
			gen.asm.AppendInstruction(asm.Swap(depth))
		},
		Dup: func(depth int) {
			if depth > asm.MaxReach {
				fail(invariantf("dup of depth %d emitted; layout should have prevented it", depth))
				return
			}
			gen.asm.AppendInstruction(asm.Dup(depth))
		},
		Push: func(slot slots.Slot) {
			fail(gen.pushSlot(slot, gen.stack[:prefixLen], temporary))
		},
		Pop: func() {
			gen.asm.AppendInstruction(asm.POP)
		},
	})
	if emitErr != nil {
		return emitErr
	}

	gen.stack = append(gen.stack[:prefixLen], temporary...)
	if gen.asm.StackHeight() != len(gen.stack) {
		return invariantf("assembly height %d diverged from model %s after shuffling",
			gen.asm.StackHeight(), gen.stack)
	}
	return nil
}

// pushSlot materializes a slot that the shuffler found missing. A slot
// still present anywhere on the full stack is duplicated; otherwise it must
// be one of the regenerable variants.
func (gen *generator) pushSlot(slot slots.Slot, prefix, temporary slots.Stack) error {
	// The callback fires before Shuffle records the new top, so the full
	// stack is exactly prefix plus the shuffle region.
	full := make(slots.Stack, 0, len(prefix)+len(temporary))
	full = append(full, prefix...)
	full = append(full, temporary...)
	for depth := 1; depth <= len(full); depth++ {
		if full[len(full)-depth].Equal(slot) {
			gen.asm.AppendInstruction(asm.Dup(depth))
			return nil
		}
	}

	switch slot.Kind {
	case slots.KindLiteral:
		gen.asm.SetSourceLocation(slot.Debug)
		gen.asm.AppendConstant(slot.Value)
		return nil
	case slots.KindCallReturnLabel:
		gen.asm.AppendLabelReference(gen.callReturnLabel(slot.Call))
		return nil
	case slots.KindVariable:
		if gen.currentFunction != nil {
			for _, ret := range gen.currentFunction.ReturnVariables {
				if ret.Equal(slot) {
					// Return variables start out uninitialized.
					gen.asm.AppendConstant(big.NewInt(0))
					return nil
				}
			}
		}
		return invariantf("variable %s requested but not on the stack", slot)
	case slots.KindJunk:
		// Any cheap deterministic value serves; it is dead by definition.
		gen.asm.AppendInstruction(asm.PC)
		return nil
	case slots.KindReturnLabel:
		return invariantf("cannot regenerate the function return label")
	}
	return invariantf("temporary %s requested but not on the stack", slot)
}

// tryCreateStackLayout dry-runs the shuffle and reports whether every move
// stays within the machine's reach.
func (gen *generator) tryCreateStackLayout(target slots.Stack) bool {
	prefixLen := commonPrefixLen(gen.stack, target)
	temporary := gen.stack[prefixLen:].Clone()
	prefix := gen.stack[:prefixLen]
	good := true

	slots.Shuffle(&temporary, target[prefixLen:], slots.ShuffleOps{
		Swap: func(depth int) {
			if depth > asm.MaxReach {
				good = false
			}
		},
		Dup: func(depth int) {
			if depth > asm.MaxReach {
				good = false
			}
		},
		Push: func(slot slots.Slot) {
			full := make(slots.Stack, 0, len(prefix)+len(temporary))
			full = append(full, prefix...)
			full = append(full, temporary...)
			for depth := 1; depth <= len(full); depth++ {
				if full[len(full)-depth].Equal(slot) {
					if depth > asm.MaxReach {
						good = false
					}
					return
				}
			}
		},
		Pop: func() {},
	})
	return good
}

// dupUnreachable copies the target's deep slots towards the top, deepest
// first, so that the subsequent shuffle never has to reach below the limit.
func (gen *generator) dupUnreachable(target slots.Stack, prefixLen int) {
	type deepSlot struct {
		depth int
		slot  slots.Slot
	}
	var found []deepSlot
	for _, slot := range target[prefixLen:] {
		for depth := 1; depth <= len(gen.stack); depth++ {
			if gen.stack[len(gen.stack)-depth].Equal(slot) {
				found = append(found, deepSlot{depth: depth, slot: slot})
				break
			}
		}
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].depth > found[j].depth })

	for _, ds := range found {
		if _, present := slots.FindOffset(gen.stack[prefixLen:], ds.slot); present {
			continue
		}
		for depth := 1; depth <= len(gen.stack); depth++ {
			if gen.stack[len(gen.stack)-depth].Equal(ds.slot) {
				gen.asm.AppendInstruction(asm.Dup(depth))
				gen.stack = append(gen.stack, ds.slot)
				break
			}
		}
	}
}

func commonPrefixLen(a, b slots.Stack) int {
	n := 0
	for n < len(a) && n < len(b) && a[n].Equal(b[n]) {
		n++
	}
	return n
}
