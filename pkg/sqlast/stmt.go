package sqlast

// SelectStmt is a complete SELECT statement with an optional WITH clause.
type SelectStmt struct {
	With *WithClause
	Core *SelectCore
	// Union holds further SELECT blocks combined with Core by UNION, which
	// drops duplicate rows.
	Union []*SelectCore
}

// WithClause holds CTEs in definition order.
type WithClause struct {
	CTEs []*CTE
}

// CTE is a named common table expression.
type CTE struct {
	Name   string
	Select *SelectStmt
}

// SelectCore is one SELECT ... FROM ... block.
type SelectCore struct {
	Columns []SelectItem
	From    *FromClause
	Where   Expr
	GroupBy []Expr
	OrderBy []OrderByItem
	// Limit is omitted when zero.
	Limit int
}

// SelectItem is an entry of the SELECT list.
type SelectItem struct {
	Star      bool
	TableStar string
	Expr      Expr
	Alias     string
}

// FromClause is the FROM clause with its joins.
type FromClause struct {
	Source TableRef
	Joins  []*Join
}

// TableRef is a FROM source.
type TableRef interface {
	tableRefNode()
}

// TableName is a physical or CTE relation.
type TableName struct {
	Schema string
	Name   string
	Alias  string
}

// DerivedTable is a parenthesized subquery.
type DerivedTable struct {
	Select *SelectStmt
	Alias  string
}

func (*TableName) tableRefNode()    {}
func (*DerivedTable) tableRefNode() {}

// JoinType is the SQL join keyword.
type JoinType string

// Join types emitted by the compiler.
const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinCross JoinType = "CROSS"
)

// Join is a JOIN clause. Condition is nil for CROSS joins.
type Join struct {
	Type      JoinType
	Right     TableRef
	Condition Expr
}

// OrderByItem is an entry of ORDER BY.
type OrderByItem struct {
	Expr Expr
	Desc bool
}
