// Package rdf defines the term model for tripled: IRIs, literals, triples,
// and query patterns.
//
// All term types are immutable value types with structural equality. A
// Triple is comparable, which lets the store use triples directly as map
// keys for set semantics. Patterns are triple templates where each position
// is either bound to a concrete term or left as a wildcard.
//
// Usage:
//
//	s, _ := rdf.NewIRI("https://example.org/note/42")
//	p, _ := rdf.NewIRI("https://example.org/vocab/title")
//	o, _ := rdf.NewLiteral("Meeting notes")
//
//	t := rdf.NewTriple(s, p, o)
package rdf

import (
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
)

// Sentinel errors for term construction. Check with errors.Is.
var (
	// ErrInvalidIRI indicates an IRI string that is not an absolute identifier.
	ErrInvalidIRI = errors.New("invalid IRI")

	// ErrInvalidLiteral indicates a malformed literal, such as one carrying
	// both a datatype and a language tag.
	ErrInvalidLiteral = errors.New("invalid literal")
)

// TermKind identifies the kind of a term.
type TermKind uint8

const (
	// TermIRI is an absolute resource identifier.
	TermIRI TermKind = iota
	// TermLiteral is a data value, optionally tagged with a datatype or language.
	TermLiteral
)

// Term is a value that can appear in the object position of a triple.
// Subjects and predicates are always IRIs.
//
// The two implementations, IRI and Literal, are both comparable structs, so
// Term values compare correctly with == and work as map keys.
type Term interface {
	Kind() TermKind
	// String returns the canonical serialized form of the term. Two terms
	// are structurally equal exactly when their String forms are equal.
	String() string
}

// IRI is an absolute resource identifier.
type IRI struct {
	value string
}

// NewIRI validates and wraps an absolute identifier string.
//
// Validation is deliberately shallow: the value must be non-empty, contain a
// scheme separator, and be free of whitespace and control characters. Full
// RFC 3987 validation belongs to the ingesting collaborator.
func NewIRI(value string) (IRI, error) {
	if value == "" {
		return IRI{}, errors.Wrap(ErrInvalidIRI, "empty value")
	}
	colon := strings.IndexByte(value, ':')
	if colon <= 0 {
		return IRI{}, errors.Wrapf(ErrInvalidIRI, "missing scheme in %q", value)
	}
	for _, r := range value {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return IRI{}, errors.Wrapf(ErrInvalidIRI, "whitespace or control character in %q", value)
		}
	}
	return IRI{value: value}, nil
}

// MustIRI is like NewIRI but panics on invalid input. For tests and
// compile-time-constant vocabulary terms.
func MustIRI(value string) IRI {
	iri, err := NewIRI(value)
	if err != nil {
		panic(err)
	}
	return iri
}

// Kind returns TermIRI.
func (i IRI) Kind() TermKind { return TermIRI }

// Value returns the raw identifier string.
func (i IRI) Value() string { return i.value }

// String returns the identifier in angle brackets.
func (i IRI) String() string { return "<" + i.value + ">" }

// IsZero reports whether the IRI is the zero value (no identifier).
func (i IRI) IsZero() bool { return i.value == "" }

// Literal is a data value with at most one of a datatype IRI or a language
// tag. Language tags are lowercased on construction so that structural
// equality matches the case-insensitive comparison the data model requires.
type Literal struct {
	value    string
	datatype IRI
	lang     string
}

// NewLiteral creates a plain literal.
func NewLiteral(value string) (Literal, error) {
	return newLiteral(value, IRI{}, "")
}

// NewTypedLiteral creates a literal with a datatype IRI.
func NewTypedLiteral(value string, datatype IRI) (Literal, error) {
	return newLiteral(value, datatype, "")
}

// NewLangLiteral creates a language-tagged literal. The tag is normalized
// to lower case.
func NewLangLiteral(value, lang string) (Literal, error) {
	return newLiteral(value, IRI{}, lang)
}

// NewLiteralFull creates a literal from all three components at once, as
// produced by an external parser. A zero datatype and empty lang mean a
// plain literal. Supplying both a datatype and a language tag fails with
// ErrInvalidLiteral.
func NewLiteralFull(value string, datatype IRI, lang string) (Literal, error) {
	return newLiteral(value, datatype, lang)
}

func newLiteral(value string, datatype IRI, lang string) (Literal, error) {
	if value == "" {
		return Literal{}, errors.Wrap(ErrInvalidLiteral, "empty value")
	}
	if !datatype.IsZero() && lang != "" {
		return Literal{}, errors.Wrapf(ErrInvalidLiteral,
			"literal %q has both datatype %s and language tag %q", value, datatype, lang)
	}
	return Literal{
		value:    value,
		datatype: datatype,
		lang:     strings.ToLower(lang),
	}, nil
}

// Kind returns TermLiteral.
func (l Literal) Kind() TermKind { return TermLiteral }

// Value returns the literal's string value.
func (l Literal) Value() string { return l.value }

// Datatype returns the datatype IRI and whether one is set.
func (l Literal) Datatype() (IRI, bool) { return l.datatype, !l.datatype.IsZero() }

// Lang returns the lowercased language tag, or "" for none.
func (l Literal) Lang() string { return l.lang }

// String returns the N-Triples-style serialization of the literal.
func (l Literal) String() string {
	var b strings.Builder
	b.WriteByte('"')
	b.WriteString(escapeLiteral(l.value))
	b.WriteByte('"')
	switch {
	case l.lang != "":
		b.WriteByte('@')
		b.WriteString(l.lang)
	case !l.datatype.IsZero():
		b.WriteString("^^")
		b.WriteString(l.datatype.String())
	}
	return b.String()
}

func escapeLiteral(s string) string {
	if !strings.ContainsAny(s, "\"\\\n\r\t") {
		return s
	}
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return r.Replace(s)
}
