package asm

import (
	"fmt"
	"math/big"

	"smelt/internal/source"
)

// ItemKind discriminates listing items.
type ItemKind uint8

const (
	// ItemInstr is a plain opcode.
	ItemInstr ItemKind = iota
	// ItemConst pushes a constant.
	ItemConst
	// ItemLabel places a label definition.
	ItemLabel
	// ItemLabelRef pushes a label's address.
	ItemLabelRef
	// ItemJumpTo is an unconditional jump to a label.
	ItemJumpTo
	// ItemJumpToIf is a conditional jump to a label.
	ItemJumpToIf
	// ItemJump is an unconditional jump consuming a pushed target.
	ItemJump
)

// Item is one appended element of a listing.
type Item struct {
	Kind      ItemKind
	Op        Op
	Value     *big.Int
	Label     LabelID
	StackDiff int
	JumpType  JumpType
	Span      source.Span
}

// LabelInfo describes an allocated label.
type LabelInfo struct {
	Name string // empty for anonymous labels
	Args int
	Rets int
}

// Listing is a recording Assembly: it stores the appended stream verbatim
// and tracks the stack height the same way a real assembler would. It is
// the implementation behind the CLI output and the end-to-end tests.
type Listing struct {
	items    []Item
	labels   []LabelInfo
	height   int
	location source.Span
}

// NewListing returns an empty recording assembly.
func NewListing() *Listing {
	return &Listing{}
}

var _ Assembly = (*Listing)(nil)

func (l *Listing) append(it Item) {
	it.Span = l.location
	l.items = append(l.items, it)
}

// AppendInstruction appends op and adjusts the stack height by its delta.
func (l *Listing) AppendInstruction(op Op) {
	l.height += op.stackDelta()
	l.append(Item{Kind: ItemInstr, Op: op})
}

// AppendConstant appends a constant push.
func (l *Listing) AppendConstant(value *big.Int) {
	l.height++
	l.append(Item{Kind: ItemConst, Value: new(big.Int).Set(value)})
}

// AppendLabel places a label definition at the current position.
func (l *Listing) AppendLabel(id LabelID) {
	l.checkLabel(id)
	l.append(Item{Kind: ItemLabel, Label: id})
}

// AppendLabelReference pushes the address of a label.
func (l *Listing) AppendLabelReference(id LabelID) {
	l.checkLabel(id)
	l.height++
	l.append(Item{Kind: ItemLabelRef, Label: id})
}

// AppendJumpTo appends an unconditional jump to id, adjusting the height by
// stackDiff (non-zero when jumping into or out of functions).
func (l *Listing) AppendJumpTo(id LabelID, stackDiff int, kind JumpType) {
	l.checkLabel(id)
	l.height += stackDiff
	l.append(Item{Kind: ItemJumpTo, Label: id, StackDiff: stackDiff, JumpType: kind})
}

// AppendJumpToIf appends a jump to id taken when the top of the stack is
// non-zero; the condition is consumed.
func (l *Listing) AppendJumpToIf(id LabelID) {
	l.checkLabel(id)
	l.height--
	l.append(Item{Kind: ItemJumpToIf, Label: id})
}

// AppendJump appends an unconditional jump consuming an already-pushed
// target.
func (l *Listing) AppendJump(stackDiff int, kind JumpType) {
	l.height += stackDiff
	l.append(Item{Kind: ItemJump, StackDiff: stackDiff, JumpType: kind})
}

// NewLabelID allocates a fresh anonymous label.
func (l *Listing) NewLabelID() LabelID {
	l.labels = append(l.labels, LabelInfo{})
	return LabelID(len(l.labels) - 1)
}

// NamedLabel allocates a label carrying a function signature.
func (l *Listing) NamedLabel(name string, args, rets int) LabelID {
	l.labels = append(l.labels, LabelInfo{Name: name, Args: args, Rets: rets})
	return LabelID(len(l.labels) - 1)
}

// SetStackHeight forces the tracked height, used at function boundaries.
func (l *Listing) SetStackHeight(height int) {
	l.height = height
}

// StackHeight returns the tracked height.
func (l *Listing) StackHeight() int {
	return l.height
}

// SetSourceLocation records the span attached to subsequently appended
// items.
func (l *Listing) SetSourceLocation(span source.Span) {
	l.location = span
}

// Items returns the recorded stream.
func (l *Listing) Items() []Item {
	return l.items
}

// Label returns the info of an allocated label.
func (l *Listing) Label(id LabelID) LabelInfo {
	return l.labels[id]
}

// CountOp returns how many times op was appended, counting plain
// instructions only.
func (l *Listing) CountOp(op Op) int {
	n := 0
	for _, it := range l.items {
		if it.Kind == ItemInstr && it.Op == op {
			n++
		}
	}
	return n
}

// CountKind returns how many items of the given kind were appended.
func (l *Listing) CountKind(kind ItemKind) int {
	n := 0
	for _, it := range l.items {
		if it.Kind == kind {
			n++
		}
	}
	return n
}

func (l *Listing) checkLabel(id LabelID) {
	if int(id) >= len(l.labels) {
		panic(fmt.Sprintf("asm: label %d was never allocated", id))
	}
}
