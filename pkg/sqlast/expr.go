package sqlast

// Expr is any SQL expression node.
type Expr interface {
	exprNode()
}

// Raw is a trusted SQL fragment rendered verbatim.
type Raw struct {
	SQL string
}

// ColumnRef is a possibly table-qualified column reference.
type ColumnRef struct {
	Table  string
	Column string
}

// StringLit is a single-quoted string literal.
type StringLit struct {
	Value string
}

// NumberLit is a numeric literal kept in its source spelling.
type NumberLit struct {
	Value string
}

// DateLit is a DATE 'YYYY-MM-DD' literal.
type DateLit struct {
	Value string
}

// IntervalLit is an INTERVAL '<n> <unit>' literal.
type IntervalLit struct {
	Value string
}

// FuncCall is a function or aggregate call, optionally windowed.
type FuncCall struct {
	Name     string
	Distinct bool
	Args     []Expr
	Over     *WindowSpec
}

// BinaryExpr is Left Op Right.
type BinaryExpr struct {
	Left  Expr
	Op    string
	Right Expr
}

// UnaryExpr is Op Operand, e.g. unary minus.
type UnaryExpr struct {
	Op      string
	Operand Expr
}

// ParenExpr wraps an expression in parentheses.
type ParenExpr struct {
	Expr Expr
}

// AndExpr is a conjunction. A single term renders bare; several terms are
// each parenthesized.
type AndExpr struct {
	Terms []Expr
}

// DateTrunc truncates a time expression to a grain. Dialects may cast the
// result.
type DateTrunc struct {
	Grain string
	Expr  Expr
}

// ExistsExpr is EXISTS (subquery), or NOT EXISTS when Not is set.
type ExistsExpr struct {
	Not    bool
	Select *SelectStmt
}

// WindowSpec is the OVER (...) clause of a window aggregate.
type WindowSpec struct {
	PartitionBy []Expr
	OrderBy     []OrderByItem
	Frame       *FrameSpec
}

// FrameSpec is "RANGE BETWEEN <Preceding> PRECEDING AND CURRENT ROW".
// A nil Preceding means UNBOUNDED PRECEDING.
type FrameSpec struct {
	Preceding Expr
}

func (*Raw) exprNode()         {}
func (*ColumnRef) exprNode()   {}
func (*StringLit) exprNode()   {}
func (*NumberLit) exprNode()   {}
func (*DateLit) exprNode()     {}
func (*IntervalLit) exprNode() {}
func (*FuncCall) exprNode()    {}
func (*BinaryExpr) exprNode()  {}
func (*UnaryExpr) exprNode()   {}
func (*ParenExpr) exprNode()   {}
func (*AndExpr) exprNode()     {}
func (*DateTrunc) exprNode()   {}
func (*ExistsExpr) exprNode()  {}

// Col returns an unqualified column reference.
func Col(name string) *ColumnRef {
	return &ColumnRef{Column: name}
}

// QualifiedCol returns a table-qualified column reference.
func QualifiedCol(table, name string) *ColumnRef {
	return &ColumnRef{Table: table, Column: name}
}

// Call returns a plain function call.
func Call(name string, args ...Expr) *FuncCall {
	return &FuncCall{Name: name, Args: args}
}

// Coalesce returns COALESCE(args...), or the only argument when there is one.
func Coalesce(args ...Expr) Expr {
	if len(args) == 1 {
		return args[0]
	}
	return Call("COALESCE", args...)
}

// And conjoins terms, dropping nils. It returns nil when nothing remains.
func And(terms ...Expr) Expr {
	kept := make([]Expr, 0, len(terms))
	for _, t := range terms {
		if t == nil {
			continue
		}
		if r, ok := t.(*Raw); ok && r.SQL == "" {
			continue
		}
		kept = append(kept, t)
	}
	if len(kept) == 0 {
		return nil
	}
	return &AndExpr{Terms: kept}
}
