package asm

import (
	"math/big"

	"smelt/internal/source"
)

// LabelID identifies a label within one assembly.
type LabelID uint64

// JumpType classifies jumps for consumers that model call frames.
type JumpType uint8

const (
	// JumpOrdinary is a plain control transfer.
	JumpOrdinary JumpType = iota
	// JumpIntoFunction enters a function body.
	JumpIntoFunction
	// JumpOutOfFunction returns from a function body.
	JumpOutOfFunction
)

func (t JumpType) String() string {
	switch t {
	case JumpIntoFunction:
		return "[in]"
	case JumpOutOfFunction:
		return "[out]"
	}
	return ""
}

// Assembly is the append-only instruction sink the backend emits into. The
// code generator keeps the assembly's stack height in sync with its own
// model; StackHeight exists so that this can be asserted.
type Assembly interface {
	AppendInstruction(op Op)
	AppendConstant(value *big.Int)
	AppendLabel(id LabelID)
	AppendLabelReference(id LabelID)
	AppendJumpTo(id LabelID, stackDiff int, kind JumpType)
	AppendJumpToIf(id LabelID)
	AppendJump(stackDiff int, kind JumpType)
	NewLabelID() LabelID
	NamedLabel(name string, args, rets int) LabelID
	SetStackHeight(height int)
	StackHeight() int
	SetSourceLocation(span source.Span)
}
