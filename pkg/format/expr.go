package format

import (
	"strings"

	"github.com/leapstack-labs/leapmetrics/pkg/sqlast"
)

func (p *Printer) formatExpr(expr sqlast.Expr) {
	switch e := expr.(type) {
	case nil:
		p.keyword("NULL")
	case *sqlast.Raw:
		p.write(e.SQL)
	case *sqlast.ColumnRef:
		if e.Table != "" {
			p.ident(e.Table)
			p.write(".")
		}
		p.ident(e.Column)
	case *sqlast.StringLit:
		p.write(quoteString(e.Value))
	case *sqlast.NumberLit:
		p.write(e.Value)
	case *sqlast.DateLit:
		p.keyword("DATE")
		p.space()
		p.write(quoteString(e.Value))
	case *sqlast.IntervalLit:
		p.keyword("INTERVAL")
		p.space()
		p.write(quoteString(e.Value))
	case *sqlast.FuncCall:
		p.formatFuncCall(e)
	case *sqlast.BinaryExpr:
		p.formatExpr(e.Left)
		p.space()
		p.keyword(e.Op)
		p.space()
		p.formatExpr(e.Right)
	case *sqlast.UnaryExpr:
		p.write(e.Op)
		p.formatExpr(e.Operand)
	case *sqlast.ParenExpr:
		p.write("(")
		p.formatExpr(e.Expr)
		p.write(")")
	case *sqlast.AndExpr:
		p.formatAnd(e)
	case *sqlast.DateTrunc:
		p.formatDateTrunc(e)
	case *sqlast.ExistsExpr:
		p.formatExists(e)
	}
}

func (p *Printer) formatExists(e *sqlast.ExistsExpr) {
	if e.Not {
		p.keyword("NOT")
		p.space()
	}
	p.keyword("EXISTS")
	p.write(" (")
	p.writeln()
	p.indent()
	p.formatSelectStmt(e.Select)
	p.dedent()
	p.write(")")
}

func (p *Printer) formatAnd(e *sqlast.AndExpr) {
	if len(e.Terms) == 1 {
		p.formatExpr(e.Terms[0])
		return
	}
	for i, t := range e.Terms {
		if i > 0 {
			p.space()
			p.keyword("AND")
			p.space()
		}
		p.write("(")
		p.formatExpr(t)
		p.write(")")
	}
}

func (p *Printer) formatDateTrunc(e *sqlast.DateTrunc) {
	cast := p.dialect.DateTruncCast()
	if cast != "" {
		p.keyword("CAST")
		p.write("(")
	}
	p.keyword("DATE_TRUNC")
	p.write("(")
	p.write(quoteString(e.Grain))
	p.write(", ")
	p.formatExpr(e.Expr)
	p.write(")")
	if cast != "" {
		p.space()
		p.keyword("AS")
		p.space()
		p.keyword(cast)
		p.write(")")
	}
}

func (p *Printer) formatFuncCall(f *sqlast.FuncCall) {
	p.keyword(f.Name)
	p.write("(")
	if f.Distinct {
		p.keyword("DISTINCT")
		p.space()
	}
	p.formatList(len(f.Args), func(i int) { p.formatExpr(f.Args[i]) }, ",", false)
	p.write(")")

	if f.Over != nil {
		p.space()
		p.keyword("OVER")
		p.space()
		p.formatWindowSpec(f.Over)
	}
}

func (p *Printer) formatWindowSpec(w *sqlast.WindowSpec) {
	p.write("(")
	needSpace := false
	if len(w.PartitionBy) > 0 {
		p.keyword("PARTITION BY")
		p.space()
		p.formatList(len(w.PartitionBy), func(i int) { p.formatExpr(w.PartitionBy[i]) }, ",", false)
		needSpace = true
	}
	if len(w.OrderBy) > 0 {
		if needSpace {
			p.space()
		}
		p.keyword("ORDER BY")
		p.space()
		p.formatList(len(w.OrderBy), func(i int) { p.formatOrderByItem(w.OrderBy[i]) }, ",", false)
		needSpace = true
	}
	if w.Frame != nil {
		if needSpace {
			p.space()
		}
		p.keyword("RANGE BETWEEN")
		p.space()
		if w.Frame.Preceding == nil {
			p.keyword("UNBOUNDED")
		} else {
			p.formatExpr(w.Frame.Preceding)
		}
		p.space()
		p.keyword("PRECEDING AND CURRENT ROW")
	}
	p.write(")")
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
