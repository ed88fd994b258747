// Package expr parses the small expression languages found in metric
// definitions: derived-metric formulas and filter predicates.
//
// Formulas are parsed into an AST and converted to pkg/sqlast with every
// metric reference substituted. Filters are trusted SQL; they are only
// tokenized so that bare identifiers can be found and rewritten while the
// rest of the text is kept byte for byte.
package expr

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// SQLLexer tokenizes formulas and filter predicates.
var SQLLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "QuotedIdent", Pattern: `"(?:[^"]|"")*"`},
	{Name: "Number", Pattern: `\d+(?:\.\d+)?(?:[eE][+-]?\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_$]*`},
	{Name: "Operator", Pattern: `<>|<=|>=|!=|\|\||::|[-+*/%=<>]`},
	{Name: "Punct", Pattern: `[(),.\[\];:]`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Other", Pattern: `.`},
})

// keywords are identifiers that never name a metric or dimension.
var keywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "is": true, "null": true,
	"like": true, "ilike": true, "between": true, "true": true, "false": true,
	"case": true, "when": true, "then": true, "else": true, "end": true,
	"date": true, "timestamp": true, "interval": true, "time": true,
	"cast": true, "as": true, "exists": true, "select": true, "from": true,
	"where": true, "distinct": true, "any": true, "all": true, "some": true,
	"similar": true, "to": true, "escape": true, "current_date": true,
	"current_timestamp": true, "asc": true, "desc": true,
}

// IsKeyword reports whether name is a reserved SQL word.
func IsKeyword(name string) bool {
	return keywords[strings.ToLower(name)]
}

func tokenize(src string) ([]lexer.Token, error) {
	lex, err := SQLLexer.LexString("", src)
	if err != nil {
		return nil, err
	}
	return lexer.ConsumeAll(lex)
}
