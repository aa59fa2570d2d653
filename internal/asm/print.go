package asm

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// WriteListing renders a human-readable listing. Label definitions are
// flush left, instructions indented, operands padded into a second column.
func WriteListing(w io.Writer, l *Listing) error {
	const mnemonicCol = 12
	for _, it := range l.items {
		var line string
		switch it.Kind {
		case ItemInstr:
			line = "  " + it.Op.String()
		case ItemConst:
			line = "  " + pad("PUSH", mnemonicCol) + "0x" + it.Value.Text(16)
		case ItemLabel:
			line = l.labelName(it.Label) + ":"
		case ItemLabelRef:
			line = "  " + pad("PUSH", mnemonicCol) + l.labelName(it.Label)
		case ItemJumpTo:
			line = "  " + pad("JUMP", mnemonicCol) + l.labelName(it.Label)
			if s := it.JumpType.String(); s != "" {
				line += " " + s
			}
		case ItemJumpToIf:
			line = "  " + pad("JUMPI", mnemonicCol) + l.labelName(it.Label)
		case ItemJump:
			line = "  JUMP"
			if s := it.JumpType.String(); s != "" {
				line += " " + s
			}
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (l *Listing) labelName(id LabelID) string {
	info := l.labels[id]
	if info.Name != "" {
		return info.Name
	}
	return fmt.Sprintf("tag_%d", id)
}

func pad(s string, width int) string {
	if w := runewidth.StringWidth(s); w < width {
		return s + strings.Repeat(" ", width-w)
	}
	return s + " "
}
