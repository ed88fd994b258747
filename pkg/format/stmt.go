package format

import (
	"strconv"

	"github.com/leapstack-labs/leapmetrics/pkg/sqlast"
)

func (p *Printer) formatSelectStmt(stmt *sqlast.SelectStmt) {
	if stmt == nil {
		return
	}

	if stmt.With != nil && len(stmt.With.CTEs) > 0 {
		p.formatWithClause(stmt.With)
	}

	p.formatSelectCore(stmt.Core)
	for _, sc := range stmt.Union {
		p.keyword("UNION")
		p.writeln()
		p.formatSelectCore(sc)
	}
}

func (p *Printer) formatWithClause(with *sqlast.WithClause) {
	p.keyword("WITH")
	p.writeln()

	p.indent()
	p.formatList(len(with.CTEs), func(i int) {
		cte := with.CTEs[i]
		p.ident(cte.Name)
		p.space()
		p.keyword("AS")
		p.write(" (")
		p.writeln()

		p.indent()
		p.formatSelectStmt(cte.Select)
		p.dedent()

		p.write(")")
	}, ",", true)
	p.writeln()
	p.dedent()
}

func (p *Printer) formatSelectCore(sc *sqlast.SelectCore) {
	if sc == nil {
		return
	}

	p.keyword("SELECT")
	p.writeln()

	p.indent()
	p.formatList(len(sc.Columns), func(i int) { p.formatSelectItem(sc.Columns[i]) }, ",", true)
	p.writeln()
	p.dedent()

	if sc.From != nil {
		p.keyword("FROM")
		p.space()
		p.formatFromClause(sc.From)
		p.writeln()
	}

	if sc.Where != nil {
		p.keyword("WHERE")
		p.space()
		p.formatExpr(sc.Where)
		p.writeln()
	}

	if len(sc.GroupBy) > 0 {
		p.keyword("GROUP BY")
		p.space()
		p.formatList(len(sc.GroupBy), func(i int) { p.formatExpr(sc.GroupBy[i]) }, ",", false)
		p.writeln()
	}

	if len(sc.OrderBy) > 0 {
		p.keyword("ORDER BY")
		p.space()
		p.formatList(len(sc.OrderBy), func(i int) { p.formatOrderByItem(sc.OrderBy[i]) }, ",", false)
		p.writeln()
	}

	if sc.Limit > 0 {
		p.keyword("LIMIT")
		p.space()
		p.write(strconv.Itoa(sc.Limit))
		p.writeln()
	}
}

func (p *Printer) formatSelectItem(item sqlast.SelectItem) {
	if item.Star {
		p.write("*")
		return
	}
	if item.TableStar != "" {
		p.ident(item.TableStar)
		p.write(".*")
		return
	}

	p.formatExpr(item.Expr)
	if item.Alias != "" && !sameColumn(item.Expr, item.Alias) {
		p.space()
		p.keyword("AS")
		p.space()
		p.ident(item.Alias)
	}
}

// sameColumn reports whether aliasing e to alias would be a no-op.
func sameColumn(e sqlast.Expr, alias string) bool {
	switch v := e.(type) {
	case *sqlast.ColumnRef:
		return v.Table == "" && v.Column == alias
	case *sqlast.Raw:
		return v.SQL == alias
	}
	return false
}

func (p *Printer) formatFromClause(from *sqlast.FromClause) {
	p.formatTableRef(from.Source)

	for _, join := range from.Joins {
		p.writeln()
		p.formatJoin(join)
	}
}

func (p *Printer) formatTableRef(ref sqlast.TableRef) {
	switch t := ref.(type) {
	case *sqlast.TableName:
		if t.Schema != "" {
			p.ident(t.Schema)
			p.write(".")
		}
		p.ident(t.Name)
		if t.Alias != "" {
			p.space()
			p.keyword("AS")
			p.space()
			p.ident(t.Alias)
		}
	case *sqlast.DerivedTable:
		p.write("(")
		p.writeln()
		p.indent()
		p.formatSelectStmt(t.Select)
		p.dedent()
		p.write(")")
		if t.Alias != "" {
			p.space()
			p.keyword("AS")
			p.space()
			p.ident(t.Alias)
		}
	}
}

func (p *Printer) formatJoin(join *sqlast.Join) {
	p.keyword(string(join.Type))
	p.space()
	p.keyword("JOIN")
	p.space()
	p.formatTableRef(join.Right)

	if join.Condition != nil {
		p.space()
		p.keyword("ON")
		p.space()
		p.formatExpr(join.Condition)
	}
}

func (p *Printer) formatOrderByItem(item sqlast.OrderByItem) {
	p.formatExpr(item.Expr)
	if item.Desc {
		p.space()
		p.keyword("DESC")
	}
}
