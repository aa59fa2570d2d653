package ast

import (
	"fmt"
	"io"
	"math/big"

	"github.com/vmihailenco/msgpack/v5"

	"smelt/internal/source"
)

// Schema version of the interchange format - increment when the wire layout
// changes.
const codecSchemaVersion uint16 = 1

// The wire structs decouple serialization from the in-memory nodes: literal
// values travel as decimal strings and node identity is re-established on
// decode by allocating fresh pointers.

type wireSpan struct {
	File  uint32
	Start uint32
	End   uint32
}

type wireName struct {
	Name string
	Span wireSpan
}

type wireExpr struct {
	Kind  uint8
	Value string // ExprLit: decimal
	Name  string // ExprIdent
	Call  *wireCall
	Span  wireSpan
}

type wireCall struct {
	Name     string
	NameSpan wireSpan
	Args     []wireExpr
	Span     wireSpan
}

type wireCase struct {
	HasValue bool
	Value    string
	ValSpan  wireSpan
	Body     *wireBlock
	Span     wireSpan
}

type wireStmt struct {
	Kind     uint8
	Expr     *wireExpr  // StmtExpr, and the value of StmtVarDecl/StmtAssign
	Names    []wireName // StmtVarDecl variables, StmtAssign targets
	Cond     *wireExpr  // StmtIf, StmtFor condition, StmtSwitch scrutinee
	Body     *wireBlock // StmtIf, StmtFor, StmtBlock, StmtFuncDef
	Pre      *wireBlock // StmtFor
	Post     *wireBlock // StmtFor
	Cases    []wireCase // StmtSwitch
	FuncName string     // StmtFuncDef
	Params   []wireName // StmtFuncDef
	Returns  []wireName // StmtFuncDef
	Span     wireSpan
}

type wireBlock struct {
	Stmts []wireStmt
	Span  wireSpan
}

type wireProgram struct {
	Schema uint16
	Root   *wireBlock
}

// Encode writes the program rooted at block in the msgpack interchange
// format.
func Encode(w io.Writer, root *Block) error {
	prog := wireProgram{
		Schema: codecSchemaVersion,
		Root:   blockToWire(root),
	}
	return msgpack.NewEncoder(w).Encode(&prog)
}

// Decode reads a program in the msgpack interchange format.
func Decode(r io.Reader) (*Block, error) {
	var prog wireProgram
	if err := msgpack.NewDecoder(r).Decode(&prog); err != nil {
		return nil, fmt.Errorf("ast: decode: %w", err)
	}
	if prog.Schema != codecSchemaVersion {
		return nil, fmt.Errorf("ast: decode: unsupported schema %d (want %d)", prog.Schema, codecSchemaVersion)
	}
	if prog.Root == nil {
		return nil, fmt.Errorf("ast: decode: missing root block")
	}
	return blockFromWire(prog.Root)
}

func spanToWire(s source.Span) wireSpan {
	return wireSpan{File: uint32(s.File), Start: s.Start, End: s.End}
}

func spanFromWire(s wireSpan) source.Span {
	return source.Span{File: source.FileID(s.File), Start: s.Start, End: s.End}
}

func namesToWire(names []TypedName) []wireName {
	out := make([]wireName, len(names))
	for i, n := range names {
		out[i] = wireName{Name: n.Name, Span: spanToWire(n.Span)}
	}
	return out
}

func namesFromWire(names []wireName) []TypedName {
	out := make([]TypedName, len(names))
	for i, n := range names {
		out[i] = TypedName{Name: n.Name, Span: spanFromWire(n.Span)}
	}
	return out
}

func identsToWire(ids []Identifier) []wireName {
	out := make([]wireName, len(ids))
	for i, id := range ids {
		out[i] = wireName{Name: id.Name, Span: spanToWire(id.Span)}
	}
	return out
}

func identsFromWire(names []wireName) []Identifier {
	out := make([]Identifier, len(names))
	for i, n := range names {
		out[i] = Identifier{Name: n.Name, Span: spanFromWire(n.Span)}
	}
	return out
}

func exprToWire(e *Expr) *wireExpr {
	if e == nil {
		return nil
	}
	out := &wireExpr{Kind: uint8(e.Kind), Span: spanToWire(e.Span())}
	switch e.Kind {
	case ExprLit:
		out.Value = e.Lit.Value.String()
	case ExprIdent:
		out.Name = e.Ident.Name
	case ExprCall:
		out.Call = callToWire(e.Call)
	}
	return out
}

func exprFromWire(e *wireExpr) (Expr, error) {
	if e == nil {
		return Expr{}, fmt.Errorf("ast: decode: missing expression")
	}
	switch ExprKind(e.Kind) {
	case ExprLit:
		v, ok := new(big.Int).SetString(e.Value, 10)
		if !ok {
			return Expr{}, fmt.Errorf("ast: decode: bad literal %q", e.Value)
		}
		return LitExpr(&Literal{Value: v, Span: spanFromWire(e.Span)}), nil
	case ExprIdent:
		return IdentExpr(&Identifier{Name: e.Name, Span: spanFromWire(e.Span)}), nil
	case ExprCall:
		call, err := callFromWire(e.Call)
		if err != nil {
			return Expr{}, err
		}
		return CallExpr(call), nil
	}
	return Expr{}, fmt.Errorf("ast: decode: unknown expression kind %d", e.Kind)
}

func callToWire(c *FunctionCall) *wireCall {
	out := &wireCall{
		Name:     c.FuncName.Name,
		NameSpan: spanToWire(c.FuncName.Span),
		Span:     spanToWire(c.Span),
	}
	for i := range c.Arguments {
		out.Args = append(out.Args, *exprToWire(&c.Arguments[i]))
	}
	return out
}

func callFromWire(c *wireCall) (*FunctionCall, error) {
	if c == nil {
		return nil, fmt.Errorf("ast: decode: missing call payload")
	}
	out := &FunctionCall{
		FuncName: Identifier{Name: c.Name, Span: spanFromWire(c.NameSpan)},
		Span:     spanFromWire(c.Span),
	}
	for i := range c.Args {
		arg, err := exprFromWire(&c.Args[i])
		if err != nil {
			return nil, err
		}
		out.Arguments = append(out.Arguments, arg)
	}
	return out, nil
}

func blockToWire(b *Block) *wireBlock {
	if b == nil {
		return nil
	}
	out := &wireBlock{Span: spanToWire(b.Span)}
	for i := range b.Statements {
		out.Stmts = append(out.Stmts, stmtToWire(&b.Statements[i]))
	}
	return out
}

func blockFromWire(b *wireBlock) (*Block, error) {
	if b == nil {
		return nil, fmt.Errorf("ast: decode: missing block")
	}
	out := &Block{Span: spanFromWire(b.Span)}
	for i := range b.Stmts {
		st, err := stmtFromWire(&b.Stmts[i])
		if err != nil {
			return nil, err
		}
		out.Statements = append(out.Statements, st)
	}
	return out, nil
}

func stmtToWire(st *Stmt) wireStmt {
	out := wireStmt{Kind: uint8(st.Kind)}
	switch st.Kind {
	case StmtExpr:
		out.Expr = exprToWire(&st.Expr.Expression)
		out.Span = spanToWire(st.Expr.Span)
	case StmtVarDecl:
		out.Names = namesToWire(st.VarDecl.Variables)
		out.Expr = exprToWire(st.VarDecl.Value)
		out.Span = spanToWire(st.VarDecl.Span)
	case StmtAssign:
		out.Names = identsToWire(st.Assign.VariableNames)
		out.Expr = exprToWire(st.Assign.Value)
		out.Span = spanToWire(st.Assign.Span)
	case StmtIf:
		out.Cond = exprToWire(&st.If.Condition)
		out.Body = blockToWire(st.If.Body)
		out.Span = spanToWire(st.If.Span)
	case StmtSwitch:
		out.Cond = exprToWire(&st.Switch.Expression)
		for i := range st.Switch.Cases {
			c := &st.Switch.Cases[i]
			wc := wireCase{Body: blockToWire(c.Body), Span: spanToWire(c.Span)}
			if c.Value != nil {
				wc.HasValue = true
				wc.Value = c.Value.Value.String()
				wc.ValSpan = spanToWire(c.Value.Span)
			}
			out.Cases = append(out.Cases, wc)
		}
		out.Span = spanToWire(st.Switch.Span)
	case StmtFor:
		out.Pre = blockToWire(st.For.Pre)
		out.Cond = exprToWire(&st.For.Condition)
		out.Post = blockToWire(st.For.Post)
		out.Body = blockToWire(st.For.Body)
		out.Span = spanToWire(st.For.Span)
	case StmtBreak:
		out.Span = spanToWire(st.Break.Span)
	case StmtContinue:
		out.Span = spanToWire(st.Continue.Span)
	case StmtLeave:
		out.Span = spanToWire(st.Leave.Span)
	case StmtBlock:
		out.Body = blockToWire(st.Block)
		out.Span = spanToWire(st.Block.Span)
	case StmtFuncDef:
		out.FuncName = st.FuncDef.Name
		out.Params = namesToWire(st.FuncDef.Parameters)
		out.Returns = namesToWire(st.FuncDef.ReturnVariables)
		out.Body = blockToWire(st.FuncDef.Body)
		out.Span = spanToWire(st.FuncDef.Span)
	}
	return out
}

func stmtFromWire(st *wireStmt) (Stmt, error) {
	span := spanFromWire(st.Span)
	switch StmtKind(st.Kind) {
	case StmtExpr:
		e, err := exprFromWire(st.Expr)
		if err != nil {
			return Stmt{}, err
		}
		return Stmt{Kind: StmtExpr, Expr: &ExpressionStatement{Expression: e, Span: span}}, nil
	case StmtVarDecl:
		decl := &VariableDeclaration{Variables: namesFromWire(st.Names), Span: span}
		if st.Expr != nil {
			e, err := exprFromWire(st.Expr)
			if err != nil {
				return Stmt{}, err
			}
			decl.Value = &e
		}
		return Stmt{Kind: StmtVarDecl, VarDecl: decl}, nil
	case StmtAssign:
		e, err := exprFromWire(st.Expr)
		if err != nil {
			return Stmt{}, err
		}
		return Stmt{Kind: StmtAssign, Assign: &Assignment{
			VariableNames: identsFromWire(st.Names),
			Value:         &e,
			Span:          span,
		}}, nil
	case StmtIf:
		cond, err := exprFromWire(st.Cond)
		if err != nil {
			return Stmt{}, err
		}
		body, err := blockFromWire(st.Body)
		if err != nil {
			return Stmt{}, err
		}
		return Stmt{Kind: StmtIf, If: &If{Condition: cond, Body: body, Span: span}}, nil
	case StmtSwitch:
		scrutinee, err := exprFromWire(st.Cond)
		if err != nil {
			return Stmt{}, err
		}
		sw := &Switch{Expression: scrutinee, Span: span}
		for i := range st.Cases {
			wc := &st.Cases[i]
			body, err := blockFromWire(wc.Body)
			if err != nil {
				return Stmt{}, err
			}
			c := Case{Body: body, Span: spanFromWire(wc.Span)}
			if wc.HasValue {
				v, ok := new(big.Int).SetString(wc.Value, 10)
				if !ok {
					return Stmt{}, fmt.Errorf("ast: decode: bad case literal %q", wc.Value)
				}
				c.Value = &Literal{Value: v, Span: spanFromWire(wc.ValSpan)}
			}
			sw.Cases = append(sw.Cases, c)
		}
		return Stmt{Kind: StmtSwitch, Switch: sw}, nil
	case StmtFor:
		pre, err := blockFromWire(st.Pre)
		if err != nil {
			return Stmt{}, err
		}
		cond, err := exprFromWire(st.Cond)
		if err != nil {
			return Stmt{}, err
		}
		post, err := blockFromWire(st.Post)
		if err != nil {
			return Stmt{}, err
		}
		body, err := blockFromWire(st.Body)
		if err != nil {
			return Stmt{}, err
		}
		return Stmt{Kind: StmtFor, For: &ForLoop{Pre: pre, Condition: cond, Post: post, Body: body, Span: span}}, nil
	case StmtBreak:
		return Stmt{Kind: StmtBreak, Break: &Break{Span: span}}, nil
	case StmtContinue:
		return Stmt{Kind: StmtContinue, Continue: &Continue{Span: span}}, nil
	case StmtLeave:
		return Stmt{Kind: StmtLeave, Leave: &Leave{Span: span}}, nil
	case StmtBlock:
		body, err := blockFromWire(st.Body)
		if err != nil {
			return Stmt{}, err
		}
		return Stmt{Kind: StmtBlock, Block: body}, nil
	case StmtFuncDef:
		body, err := blockFromWire(st.Body)
		if err != nil {
			return Stmt{}, err
		}
		return Stmt{Kind: StmtFuncDef, FuncDef: &FunctionDefinition{
			Name:            st.FuncName,
			Parameters:      namesFromWire(st.Params),
			ReturnVariables: namesFromWire(st.Returns),
			Body:            body,
			Span:            span,
		}}, nil
	}
	return Stmt{}, fmt.Errorf("ast: decode: unknown statement kind %d", st.Kind)
}
