package expr

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Predicate is a tokenized filter predicate.
type Predicate struct {
	src    string
	tokens []lexer.Token
	refs   []int // indexes of bare identifier tokens
}

// ParsePredicate tokenizes a trusted SQL predicate such as
// "status = 'completed' AND country IN ('US', 'UK')".
func ParsePredicate(src string) (*Predicate, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("empty filter")
	}
	toks, err := tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", src, err)
	}
	if err := checkBalanced(toks); err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", src, err)
	}
	p := &Predicate{src: src, tokens: toks}
	p.refs = bareIdentifiers(toks)
	return p, nil
}

// String returns the source text.
func (p *Predicate) String() string {
	return p.src
}

// Identifiers returns the distinct bare identifiers in order of first
// appearance. Keywords, function names, qualified names and cast types are
// excluded.
func (p *Predicate) Identifiers() []string {
	seen := make(map[string]bool)
	var out []string
	for _, i := range p.refs {
		name := p.tokens[i].Value
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// Rewrite returns the predicate with every bare identifier for which
// replace returns true substituted. All other text is preserved.
func (p *Predicate) Rewrite(replace func(name string) (string, bool)) string {
	isRef := make(map[int]bool, len(p.refs))
	for _, i := range p.refs {
		isRef[i] = true
	}

	var b strings.Builder
	for i, tok := range p.tokens {
		if tok.EOF() {
			break
		}
		if isRef[i] {
			if sub, ok := replace(tok.Value); ok {
				b.WriteString(sub)
				continue
			}
		}
		b.WriteString(tok.Value)
	}
	return b.String()
}

// checkBalanced rejects unterminated quotes and unbalanced parentheses.
func checkBalanced(toks []lexer.Token) error {
	depth := 0
	for _, tok := range toks {
		switch tok.Value {
		case "'", `"`:
			return fmt.Errorf("unterminated quote at %s", tok.Pos)
		case "(":
			depth++
		case ")":
			depth--
			if depth < 0 {
				return fmt.Errorf("unexpected ) at %s", tok.Pos)
			}
		}
	}
	if depth > 0 {
		return fmt.Errorf("unclosed (")
	}
	return nil
}

func bareIdentifiers(toks []lexer.Token) []int {
	identType := SQLLexer.Symbols()["Ident"]

	var refs []int
	for i, tok := range toks {
		if tok.Type != identType || IsKeyword(tok.Value) {
			continue
		}
		prev := neighbour(toks, i, -1)
		next := neighbour(toks, i, 1)
		if prev == "." || prev == "::" || next == "." || next == "(" {
			continue
		}
		refs = append(refs, i)
	}
	return refs
}

// neighbour returns the value of the nearest non-whitespace token in
// direction dir from i.
func neighbour(toks []lexer.Token, i, dir int) string {
	wsType := SQLLexer.Symbols()["Whitespace"]
	for j := i + dir; j >= 0 && j < len(toks); j += dir {
		if toks[j].Type == wsType {
			continue
		}
		if toks[j].EOF() {
			return ""
		}
		return toks[j].Value
	}
	return ""
}
