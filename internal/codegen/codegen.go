// Package codegen walks the DFG forward, realizes the chosen stack layouts
// by emitting swap/dup/pop/push instructions, and stitches blocks together
// with labels and jumps. It also hosts the backend's entry point, Run,
// which chains the three passes.
package codegen

import (
	"errors"
	"fmt"

	"smelt/internal/asm"
	"smelt/internal/ast"
	"smelt/internal/dfg"
	"smelt/internal/dialect"
	"smelt/internal/layout"
	"smelt/internal/scope"
	"smelt/internal/slots"
)

// Options tune emission.
type Options struct {
	// UseNamedLabelsForFunctions makes function entry labels carry the
	// function's name and signature instead of being anonymous.
	UseNamedLabelsForFunctions bool
}

// Run compiles the program rooted at root into a, using the analysis info
// and dialect the upstream pipeline supplies. The assembly receives the
// complete instruction stream; on error nothing useful was emitted.
func Run(
	a asm.Assembly,
	info *scope.Info,
	root *ast.Block,
	d dialect.Dialect,
	ctx *dialect.Context,
	opts Options,
) error {
	graph, err := dfg.Build(info, d, root)
	if err != nil {
		return err
	}
	stackLayout, tooDeep := layout.Generate(graph)
	if len(tooDeep) > 0 {
		errs := make([]error, len(tooDeep))
		for i := range tooDeep {
			errs[i] = &tooDeep[i]
		}
		return errors.Join(errs...)
	}

	gen := &generator{
		asm:            a,
		ctx:            ctx,
		opts:           opts,
		graph:          graph,
		layout:         stackLayout,
		returnLabels:   make(map[*ast.FunctionCall]asm.LabelID),
		blockLabels:    make(map[*dfg.BasicBlock]asm.LabelID),
		functionLabels: make(map[*dfg.FunctionInfo]asm.LabelID),
		generated:      make(map[*dfg.BasicBlock]bool),
		generatedFuncs: make(map[*dfg.FunctionInfo]bool),
	}
	if err := gen.emitBlock(graph.Entry); err != nil {
		return err
	}
	return gen.generateStaged()
}

type generator struct {
	asm    asm.Assembly
	ctx    *dialect.Context
	opts   Options
	graph  *dfg.DFG
	layout *layout.Layout

	stack slots.Stack

	returnLabels   map[*ast.FunctionCall]asm.LabelID
	blockLabels    map[*dfg.BasicBlock]asm.LabelID
	functionLabels map[*dfg.FunctionInfo]asm.LabelID

	generated      map[*dfg.BasicBlock]bool
	stagedBlocks   []*dfg.BasicBlock
	stagedFuncs    []*dfg.FunctionInfo
	generatedFuncs map[*dfg.FunctionInfo]bool

	currentFunction *dfg.FunctionInfo
}

func invariantf(format string, args ...any) error {
	return fmt.Errorf("codegen: internal: "+format, args...)
}

// functionLabel returns (allocating on first touch) the entry label of a
// function and stages the function for emission.
func (gen *generator) functionLabel(fn *scope.Function) (asm.LabelID, error) {
	info := gen.graph.Functions[fn]
	if info == nil {
		return 0, invariantf("call to %q, which was never lowered", fn.Name)
	}
	if id, ok := gen.functionLabels[info]; ok {
		return id, nil
	}
	var id asm.LabelID
	if gen.opts.UseNamedLabelsForFunctions {
		id = gen.asm.NamedLabel(fn.Name, fn.Arguments, fn.Returns)
	} else {
		id = gen.asm.NewLabelID()
	}
	gen.functionLabels[info] = id
	gen.stagedFuncs = append(gen.stagedFuncs, info)
	return id, nil
}

// callReturnLabel returns (allocating on first touch) the return label of
// one user call site.
func (gen *generator) callReturnLabel(call *ast.FunctionCall) asm.LabelID {
	if id, ok := gen.returnLabels[call]; ok {
		return id
	}
	id := gen.asm.NewLabelID()
	gen.returnLabels[call] = id
	return id
}

// validateSlot checks that the slot the layout placed for an argument
// matches the argument expression; any mismatch is a bug in the layout.
func validateSlot(slot slots.Slot, expr *ast.Expr) error {
	switch expr.Kind {
	case ast.ExprLit:
		if slot.Kind != slots.KindLiteral || slot.Value.Cmp(expr.Lit.Value) != 0 {
			return invariantf("argument slot %s does not hold literal %s", slot, expr.Lit.Value)
		}
	case ast.ExprIdent:
		if slot.Kind != slots.KindVariable || slot.Var.Name != expr.Ident.Name {
			return invariantf("argument slot %s does not hold variable %q", slot, expr.Ident.Name)
		}
	case ast.ExprCall:
		if slot.Kind != slots.KindTemporary || slot.Call != expr.Call {
			return invariantf("argument slot %s does not hold a result of call to %q",
				slot, expr.Call.FuncName.Name)
		}
	}
	return nil
}

// assertLayoutCompatibility checks the model against a desired layout,
// slot-wise, treating junk as a wildcard.
func assertLayoutCompatibility(current, desired slots.Stack) error {
	for i := 0; i < len(current) && i < len(desired); i++ {
		if desired[i].Kind != slots.KindJunk && !current[i].Equal(desired[i]) {
			return invariantf("stack %s incompatible with desired %s at position %d",
				current, desired, i)
		}
	}
	return nil
}

// generateStaged drains the block queue of the main program, then emits
// staged functions (each of which may stage more blocks and functions).
func (gen *generator) generateStaged() error {
	if err := gen.drainStagedBlocks(); err != nil {
		return err
	}
	for len(gen.stagedFuncs) > 0 {
		info := gen.stagedFuncs[0]
		gen.stagedFuncs = gen.stagedFuncs[1:]
		if !gen.generatedFuncs[info] {
			gen.generatedFuncs[info] = true
			if err := gen.emitFunction(info); err != nil {
				return err
			}
		}
		if gen.currentFunction != nil {
			return invariantf("staged function emitted inside another function")
		}
		gen.currentFunction = info
		if err := gen.drainStagedBlocks(); err != nil {
			return err
		}
		gen.currentFunction = nil
	}
	return nil
}

func (gen *generator) drainStagedBlocks() error {
	for len(gen.stagedBlocks) > 0 {
		block := gen.stagedBlocks[0]
		gen.stagedBlocks = gen.stagedBlocks[1:]
		gen.stack = gen.layout.Block(block).Entry.Clone()
		gen.asm.SetStackHeight(len(gen.stack))
		if err := gen.emitBlock(block); err != nil {
			return err
		}
	}
	return nil
}

// emitFunction emits a function's entry label, brings the calling
// convention's stack into the entry layout, and emits the body.
func (gen *generator) emitFunction(info *dfg.FunctionInfo) error {
	if gen.currentFunction != nil {
		return invariantf("function %q emitted inside another function", info.Function.Name)
	}
	gen.currentFunction = info

	entryLayout := gen.layout.Block(info.Entry).Entry

	// The caller leaves the return label below the arguments, first
	// argument topmost.
	gen.stack = gen.stack[:0]
	gen.stack = append(gen.stack, slots.ReturnLabel())
	for i := len(info.Parameters) - 1; i >= 0; i-- {
		gen.stack = append(gen.stack, info.Parameters[i])
	}
	gen.asm.SetStackHeight(len(gen.stack))
	gen.asm.SetSourceLocation(info.Debug)

	label, ok := gen.functionLabels[info]
	if !ok {
		return invariantf("function %q emitted before its label was allocated", info.Function.Name)
	}
	gen.asm.AppendLabel(label)
	if err := gen.createStackLayout(entryLayout); err != nil {
		return err
	}
	if err := gen.emitBlock(info.Entry); err != nil {
		return err
	}

	gen.currentFunction = nil
	return nil
}
