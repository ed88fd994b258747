// Package dialect provides SQL dialect configuration for rendering compiled
// metric queries.
//
// This package contains the public contract for dialect definitions used by
// the SQL formatter and the query engine adapters. Concrete dialects are
// registered from pkg/dialects/*/ packages.
package dialect

import (
	"regexp"
	"strings"
)

// NormalizationStrategy is how unquoted identifiers are case-folded.
type NormalizationStrategy int

// NormalizationStrategy constants.
const (
	NormLowercase NormalizationStrategy = iota
	NormUppercase
	NormCaseSensitive
)

// IdentifierConfig configures identifier quoting.
type IdentifierConfig struct {
	Quote         string
	QuoteEnd      string
	Escape        string
	Normalization NormalizationStrategy
}

// Config is pure dialect data, shared by adapters and the formatter.
type Config struct {
	Name          string
	DefaultSchema string
	Identifiers   IdentifierConfig
	// DateTruncCast, when set, wraps DATE_TRUNC results in a cast to this
	// type so truncated values keep a date type.
	DateTruncCast string
}

// Dialect is a built, immutable SQL dialect.
type Dialect struct {
	Name          string
	DefaultSchema string
	Identifiers   IdentifierConfig
	dateTruncCast string
	reservedWords map[string]struct{}
}

var plainIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NormalizeName case-folds an unquoted identifier.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case NormUppercase:
		return strings.ToUpper(name)
	case NormCaseSensitive:
		return name
	default:
		return strings.ToLower(name)
	}
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToLower(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes an identifier only if it is reserved, is not
// a plain identifier, or would be case-folded by the dialect.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if !plainIdent.MatchString(name) || d.IsReservedWord(name) || d.NormalizeName(name) != name {
		return d.QuoteIdentifier(name)
	}
	return name
}

// DateTruncCast returns the type DATE_TRUNC results are cast to, if any.
func (d *Dialect) DateTruncCast() string {
	return d.dateTruncCast
}

// Builder assembles a Dialect from a Config.
type Builder struct {
	dialect *Dialect
}

// New starts a dialect from its configuration.
func New(cfg *Config) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name:          cfg.Name,
			DefaultSchema: cfg.DefaultSchema,
			Identifiers:   cfg.Identifiers,
			dateTruncCast: cfg.DateTruncCast,
			reservedWords: make(map[string]struct{}),
		},
	}
}

// WithReservedWords adds words that must be quoted as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[strings.ToLower(w)] = struct{}{}
	}
	return b
}

// Build returns the finished dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
