package expr

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2"

	"github.com/leapstack-labs/leapmetrics/pkg/sqlast"
)

type formulaAST struct {
	Expr *additive `@@`
}

type additive struct {
	Head *term    `@@`
	Tail []*addOp `@@*`
}

type addOp struct {
	Op   string `@("+" | "-")`
	Term *term  `@@`
}

type term struct {
	Head *unary   `@@`
	Tail []*mulOp `@@*`
}

type mulOp struct {
	Op    string `@("*" | "/" | "%")`
	Unary *unary `@@`
}

type unary struct {
	Neg     bool     `@"-"?`
	Primary *primary `@@`
}

type primary struct {
	Number *string    `  @Number`
	Ref    *reference `| @@`
	Group  *additive  `| "(" @@ ")"`
}

type reference struct {
	Name string    `@Ident`
	Call *callArgs `@@?`
}

type callArgs struct {
	Args []*additive `"(" ( @@ ( "," @@ )* )? ")"`
}

var formulaParser = participle.MustBuild[formulaAST](
	participle.Lexer(SQLLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)

// Formula is a parsed derived-metric expression.
type Formula struct {
	src  string
	root *additive
}

// ParseFormula parses an arithmetic formula over metric names, e.g.
// "revenue / completed_orders" or "COALESCE(a, 0) - b".
func ParseFormula(src string) (*Formula, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty formula")
	}
	ast, err := formulaParser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("invalid formula %q: %w", src, err)
	}
	return &Formula{src: src, root: ast.Expr}, nil
}

// String returns the source text.
func (f *Formula) String() string {
	return f.src
}

// Identifiers returns the distinct metric references in order of first
// appearance. Function names and keywords are not references.
func (f *Formula) Identifiers() []string {
	seen := make(map[string]bool)
	var out []string
	walkAdditive(f.root, func(name string) {
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	})
	return out
}

func walkAdditive(a *additive, visit func(string)) {
	walkTerm(a.Head, visit)
	for _, op := range a.Tail {
		walkTerm(op.Term, visit)
	}
}

func walkTerm(t *term, visit func(string)) {
	walkPrimary(t.Head.Primary, visit)
	for _, op := range t.Tail {
		walkPrimary(op.Unary.Primary, visit)
	}
}

func walkPrimary(p *primary, visit func(string)) {
	switch {
	case p.Ref != nil && p.Ref.Call != nil:
		for _, arg := range p.Ref.Call.Args {
			walkAdditive(arg, visit)
		}
	case p.Ref != nil:
		if !IsKeyword(p.Ref.Name) {
			visit(p.Ref.Name)
		}
	case p.Group != nil:
		walkAdditive(p.Group, visit)
	}
}

// ToSQL converts the formula to a SQL expression, replacing every metric
// reference with resolve(name). Division guards its divisor with NULLIF and
// forces decimal arithmetic so integer aggregates do not truncate.
func (f *Formula) ToSQL(resolve func(name string) sqlast.Expr) sqlast.Expr {
	return additiveSQL(f.root, resolve)
}

func additiveSQL(a *additive, resolve func(string) sqlast.Expr) sqlast.Expr {
	out := termSQL(a.Head, resolve)
	for _, op := range a.Tail {
		out = &sqlast.BinaryExpr{Left: out, Op: op.Op, Right: termSQL(op.Term, resolve)}
	}
	return out
}

func termSQL(t *term, resolve func(string) sqlast.Expr) sqlast.Expr {
	out := unarySQL(t.Head, resolve)
	for _, op := range t.Tail {
		right := unarySQL(op.Unary, resolve)
		if op.Op == "/" {
			out = &sqlast.BinaryExpr{
				Left:  &sqlast.BinaryExpr{Left: out, Op: "*", Right: &sqlast.NumberLit{Value: "1.0"}},
				Op:    "/",
				Right: sqlast.Call("NULLIF", right, &sqlast.NumberLit{Value: "0"}),
			}
			continue
		}
		out = &sqlast.BinaryExpr{Left: out, Op: op.Op, Right: right}
	}
	return out
}

func unarySQL(u *unary, resolve func(string) sqlast.Expr) sqlast.Expr {
	e := primarySQL(u.Primary, resolve)
	if u.Neg {
		return &sqlast.UnaryExpr{Op: "-", Operand: e}
	}
	return e
}

func primarySQL(p *primary, resolve func(string) sqlast.Expr) sqlast.Expr {
	switch {
	case p.Number != nil:
		return &sqlast.NumberLit{Value: *p.Number}
	case p.Ref != nil && p.Ref.Call != nil:
		args := make([]sqlast.Expr, len(p.Ref.Call.Args))
		for i, a := range p.Ref.Call.Args {
			args[i] = additiveSQL(a, resolve)
		}
		return sqlast.Call(p.Ref.Name, args...)
	case p.Ref != nil:
		if IsKeyword(p.Ref.Name) {
			return &sqlast.Raw{SQL: strings.ToUpper(p.Ref.Name)}
		}
		return resolve(p.Ref.Name)
	default:
		return &sqlast.ParenExpr{Expr: additiveSQL(p.Group, resolve)}
	}
}
