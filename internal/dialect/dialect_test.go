package dialect

import (
	"testing"

	"smelt/internal/asm"
)

func TestEVMCatalogue(t *testing.T) {
	d := NewEVM()

	cases := []struct {
		name       string
		args, rets int
		terminates bool
	}{
		{"add", 2, 1, false},
		{"iszero", 1, 1, false},
		{"sstore", 2, 0, false},
		{"pc", 0, 1, false},
		{"stop", 0, 0, true},
		{"return", 2, 0, true},
		{"revert", 2, 0, true},
	}
	for _, tc := range cases {
		b := d.Builtin(tc.name)
		if b == nil {
			t.Errorf("builtin %q missing", tc.name)
			continue
		}
		if b.Arguments != tc.args || b.Returns != tc.rets {
			t.Errorf("%q signature = (%d, %d), want (%d, %d)",
				tc.name, b.Arguments, b.Returns, tc.args, tc.rets)
		}
		if b.SideEffects.Terminates != tc.terminates {
			t.Errorf("%q terminates = %v, want %v", tc.name, b.SideEffects.Terminates, tc.terminates)
		}
	}

	if d.Builtin("userFunction") != nil {
		t.Errorf("unknown name resolved to a builtin")
	}
	if eq := d.EqualityFunction(); eq == nil || eq.Name != "eq" {
		t.Errorf("equality function = %+v, want eq", eq)
	}
}

func TestEVMGenerateEmitsOpcode(t *testing.T) {
	d := NewEVM()
	l := asm.NewListing()
	l.SetStackHeight(2)
	d.Builtin("add").Generate(nil, l, &Context{})
	items := l.Items()
	if len(items) != 1 || items[0].Op != asm.ADD {
		t.Fatalf("add generated %v", items)
	}
	if l.StackHeight() != 1 {
		t.Errorf("height after add = %d, want 1", l.StackHeight())
	}
}

func TestLiteralArguments(t *testing.T) {
	b := &Builtin{
		Name:      "withimmediate",
		Arguments: 3,
		Returns:   1,
		Literals:  []bool{false, true, false},
	}
	if b.LiteralArgument(0) || !b.LiteralArgument(1) || b.LiteralArgument(2) {
		t.Errorf("literal flags wrong")
	}
	if b.LiteralArgument(7) {
		t.Errorf("out-of-range argument flagged literal")
	}
	if n := b.StackArguments(); n != 2 {
		t.Errorf("StackArguments = %d, want 2", n)
	}

	plain := &Builtin{Name: "plain", Arguments: 2}
	if plain.StackArguments() != 2 {
		t.Errorf("builtin without literal flags must pass everything on the stack")
	}
}
