package format

import (
	"github.com/leapstack-labs/leapmetrics/pkg/dialect"
	"github.com/leapstack-labs/leapmetrics/pkg/sqlast"
)

// Format renders a statement in the given dialect.
func Format(stmt *sqlast.SelectStmt, d *dialect.Dialect) string {
	p := newPrinter(d)
	p.formatSelectStmt(stmt)
	return p.String()
}

// Expr renders a single expression on one line.
func Expr(e sqlast.Expr, d *dialect.Dialect) string {
	p := newPrinter(d)
	p.formatExpr(e)
	return p.output.String()
}
