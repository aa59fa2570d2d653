package slots

import (
	"testing"

	"smelt/internal/scope"
	"smelt/internal/source"
)

type move struct {
	kind  string
	depth int
	slot  Slot
}

func recordingOps(moves *[]move) ShuffleOps {
	return ShuffleOps{
		Swap: func(depth int) { *moves = append(*moves, move{kind: "swap", depth: depth}) },
		Dup:  func(depth int) { *moves = append(*moves, move{kind: "dup", depth: depth}) },
		Push: func(slot Slot) { *moves = append(*moves, move{kind: "push", slot: slot}) },
		Pop:  func() { *moves = append(*moves, move{kind: "pop"}) },
	}
}

func vslot(name string) Slot {
	return VariableSlot(&scope.Variable{Name: name}, source.Span{})
}

func TestShuffleIdentityEmitsNothing(t *testing.T) {
	a, b, c := vslot("a"), vslot("b"), vslot("c")
	for _, stack := range []Stack{nil, {a}, {a, b, c}, {a, a, Junk()}} {
		var moves []move
		current := stack.Clone()
		Shuffle(&current, stack, recordingOps(&moves))
		if len(moves) != 0 {
			t.Errorf("Shuffle(%s, itself) emitted %v", stack, moves)
		}
	}
}

func TestShuffleBuildsFromEmptyStack(t *testing.T) {
	target := Stack{LiteralInt(1, source.Span{}), LiteralInt(2, source.Span{})}
	var moves []move
	current := Stack{}
	Shuffle(&current, target, recordingOps(&moves))
	if !current.Equal(target) {
		t.Fatalf("current = %s, want %s", current, target)
	}
	if len(moves) != 2 || moves[0].kind != "push" || moves[1].kind != "push" {
		t.Errorf("moves = %v, want two pushes in order", moves)
	}
	if !moves[0].slot.Equal(target[0]) || !moves[1].slot.Equal(target[1]) {
		t.Errorf("pushes out of order: %v", moves)
	}
}

func TestShufflePopsExtraSlots(t *testing.T) {
	a, b := vslot("a"), vslot("b")
	current := Stack{a, b}
	var moves []move
	Shuffle(&current, Stack{a}, recordingOps(&moves))
	if !current.Equal(Stack{a}) {
		t.Fatalf("current = %s", current)
	}
	if len(moves) != 1 || moves[0].kind != "pop" {
		t.Errorf("moves = %v, want a single pop", moves)
	}
}

func TestShuffleSwapsIntoPlace(t *testing.T) {
	a, b := vslot("a"), vslot("b")
	current := Stack{a, b}
	var moves []move
	Shuffle(&current, Stack{b, a}, recordingOps(&moves))
	if !current.Equal(Stack{b, a}) {
		t.Fatalf("current = %s", current)
	}
	if len(moves) != 1 || moves[0].kind != "swap" || moves[0].depth != 1 {
		t.Errorf("moves = %v, want a single swap(1)", moves)
	}
}

func TestShuffleDupsForRepeatedTarget(t *testing.T) {
	a := vslot("a")
	current := Stack{a}
	var moves []move
	Shuffle(&current, Stack{a, a, a}, recordingOps(&moves))
	if !current.Equal(Stack{a, a, a}) {
		t.Fatalf("current = %s", current)
	}
	for _, m := range moves {
		if m.kind != "dup" {
			t.Errorf("unexpected move %v, want dups only", m)
		}
	}
	if len(moves) != 2 {
		t.Errorf("got %d moves, want 2 dups", len(moves))
	}
}

func TestShuffleMixedPermutation(t *testing.T) {
	a, b, c, d := vslot("a"), vslot("b"), vslot("c"), vslot("d")
	current := Stack{a, b, c, d}
	target := Stack{d, c, a, b, a}
	var moves []move
	Shuffle(&current, target, recordingOps(&moves))
	if !current.Equal(target) {
		t.Fatalf("current = %s, want %s", current, target)
	}
}

func TestShuffleReplacesWithJunk(t *testing.T) {
	a := vslot("a")
	current := Stack{a}
	target := Stack{Junk()}
	var moves []move
	Shuffle(&current, target, recordingOps(&moves))
	if !current.Equal(target) {
		t.Fatalf("current = %s, want %s", current, target)
	}
}

func TestCountingOpsPenalizesDeepAccess(t *testing.T) {
	cost := 0
	ops := CountingOps(&cost, 1000)
	ops.Swap(3)
	if cost != 1 {
		t.Fatalf("cost = %d after shallow swap, want 1", cost)
	}
	ops.Dup(MaxStackDepth + 1)
	if cost != 1002 {
		t.Fatalf("cost = %d after deep dup, want 1002", cost)
	}
}

func TestUnreachableSlots(t *testing.T) {
	deep := make(Stack, 0, 20)
	bottom := vslot("deep")
	deep = append(deep, bottom)
	for i := 0; i < 17; i++ {
		deep = append(deep, LiteralInt(int64(i), source.Span{}))
	}
	// The bottom variable must come up to the top; everything above is
	// popped first, so this is reachable.
	if unreachable := UnreachableSlots(deep, Stack{bottom}); len(unreachable) != 0 {
		t.Errorf("pop-then-reach reported unreachable: %s", unreachable)
	}

	// Keeping all the fill alive while duplicating the bottom slot cannot
	// stay within reach.
	full := deep.Clone()
	wide := full.Clone()
	wide = append(wide, bottom)
	if unreachable := UnreachableSlots(full, wide); len(unreachable) == 0 {
		t.Errorf("deep dup not reported")
	} else if _, found := FindOffset(unreachable, bottom); !found {
		t.Errorf("unreachable = %s, want it to contain %s", unreachable, bottom)
	}
}
