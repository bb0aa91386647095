package rdf

import "strings"

// Triple is an ordered (subject, predicate, object) fact. Subjects and
// predicates are IRIs; the object is an IRI or a Literal.
//
// Triple is a comparable value type: two triples are equal exactly when all
// three components are structurally equal, so a map[Triple]T gives set
// semantics directly.
type Triple struct {
	S IRI
	P IRI
	O Term
}

// NewTriple constructs a triple from its components.
func NewTriple(subject, predicate IRI, object Term) Triple {
	return Triple{S: subject, P: predicate, O: object}
}

// String returns the N-Triples-style serialization "<s> <p> o .".
func (t Triple) String() string {
	var b strings.Builder
	b.WriteString(t.S.String())
	b.WriteByte(' ')
	b.WriteString(t.P.String())
	b.WriteByte(' ')
	if t.O != nil {
		b.WriteString(t.O.String())
	}
	b.WriteString(" .")
	return b.String()
}
