package asm

import (
	"math/big"
	"strings"
	"testing"
)

func TestSwapDupHelpers(t *testing.T) {
	if Swap(1) != SWAP1 || Swap(16) != SWAP16 {
		t.Errorf("Swap endpoints wrong: %s %s", Swap(1), Swap(16))
	}
	if Dup(1) != DUP1 || Dup(16) != DUP16 {
		t.Errorf("Dup endpoints wrong: %s %s", Dup(1), Dup(16))
	}
	if !Swap(3).IsSwap() || Swap(3).IsDup() {
		t.Errorf("classification wrong for %s", Swap(3))
	}
	if !Dup(7).IsDup() || Dup(7).IsSwap() {
		t.Errorf("classification wrong for %s", Dup(7))
	}

	for _, bad := range []int{0, 17, -1} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Swap(%d) did not panic", bad)
				}
			}()
			Swap(bad)
		}()
	}
}

func TestListingTracksStackHeight(t *testing.T) {
	l := NewListing()
	if l.StackHeight() != 0 {
		t.Fatalf("fresh listing height = %d", l.StackHeight())
	}
	l.AppendConstant(big.NewInt(1))
	l.AppendConstant(big.NewInt(2))
	if l.StackHeight() != 2 {
		t.Errorf("height after two pushes = %d, want 2", l.StackHeight())
	}
	l.AppendInstruction(ADD)
	if l.StackHeight() != 1 {
		t.Errorf("height after ADD = %d, want 1", l.StackHeight())
	}
	l.AppendInstruction(Dup(1))
	if l.StackHeight() != 2 {
		t.Errorf("height after DUP1 = %d, want 2", l.StackHeight())
	}
	l.AppendInstruction(Swap(1))
	if l.StackHeight() != 2 {
		t.Errorf("height after SWAP1 = %d, want 2", l.StackHeight())
	}
	l.AppendInstruction(SSTORE)
	if l.StackHeight() != 0 {
		t.Errorf("height after SSTORE = %d, want 0", l.StackHeight())
	}

	id := l.NewLabelID()
	l.AppendLabelReference(id)
	if l.StackHeight() != 1 {
		t.Errorf("height after label reference = %d, want 1", l.StackHeight())
	}
	l.AppendJumpToIf(id)
	if l.StackHeight() != 0 {
		t.Errorf("height after JUMPI = %d, want 0", l.StackHeight())
	}

	l.SetStackHeight(5)
	if l.StackHeight() != 5 {
		t.Errorf("SetStackHeight ignored")
	}
}

func TestListingJumpHeightDiffs(t *testing.T) {
	l := NewListing()
	fn := l.NamedLabel("f", 2, 1)
	l.SetStackHeight(3) // return label + two arguments
	l.AppendJumpTo(fn, 1-2-1, JumpIntoFunction)
	if l.StackHeight() != 1 {
		t.Errorf("height after call jump = %d, want 1 (one return value)", l.StackHeight())
	}
	info := l.Label(fn)
	if info.Name != "f" || info.Args != 2 || info.Rets != 1 {
		t.Errorf("label info = %+v", info)
	}
}

func TestListingCounts(t *testing.T) {
	l := NewListing()
	l.AppendInstruction(POP)
	l.AppendInstruction(POP)
	l.AppendConstant(big.NewInt(7))
	if n := l.CountOp(POP); n != 2 {
		t.Errorf("CountOp(POP) = %d, want 2", n)
	}
	if n := l.CountKind(ItemConst); n != 1 {
		t.Errorf("CountKind(const) = %d, want 1", n)
	}
}

func TestWriteListing(t *testing.T) {
	l := NewListing()
	fn := l.NamedLabel("f", 0, 1)
	anon := l.NewLabelID()
	l.AppendLabel(fn)
	l.AppendConstant(big.NewInt(255))
	l.AppendInstruction(Dup(2))
	l.AppendLabelReference(anon)
	l.AppendJumpTo(fn, 0, JumpIntoFunction)
	l.AppendLabel(anon)
	l.AppendJumpToIf(anon)
	l.AppendJump(0, JumpOutOfFunction)
	l.AppendInstruction(STOP)

	var b strings.Builder
	if err := WriteListing(&b, l); err != nil {
		t.Fatalf("WriteListing: %v", err)
	}
	out := b.String()
	for _, want := range []string{
		"f:",
		"PUSH        0xff",
		"  DUP2",
		"PUSH        tag_1",
		"JUMP        f [in]",
		"tag_1:",
		"JUMPI       tag_1",
		"  JUMP [out]",
		"  STOP",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("listing missing %q:\n%s", want, out)
		}
	}
}

func TestUnallocatedLabelPanics(t *testing.T) {
	l := NewListing()
	defer func() {
		if recover() == nil {
			t.Errorf("reference to unallocated label did not panic")
		}
	}()
	l.AppendLabel(LabelID(3))
}
