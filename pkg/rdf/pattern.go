package rdf

import "strings"

// Pattern is a triple template. Each position is either bound to a concrete
// term or left unbound as a wildcard that matches anything. All eight
// binding combinations are valid, from the fully-unbound pattern (matches
// every triple) to the fully-bound pattern (existence check).
//
// The zero Pattern is fully unbound.
type Pattern struct {
	S *IRI // nil = wildcard
	P *IRI // nil = wildcard
	O Term // nil = wildcard
}

// NewPattern builds a pattern from optional components. Pass nil for an
// unbound position.
func NewPattern(subject, predicate *IRI, object Term) Pattern {
	return Pattern{S: subject, P: predicate, O: object}
}

// SubjectBound reports whether the subject position is bound.
func (p Pattern) SubjectBound() bool { return p.S != nil }

// PredicateBound reports whether the predicate position is bound.
func (p Pattern) PredicateBound() bool { return p.P != nil }

// ObjectBound reports whether the object position is bound.
func (p Pattern) ObjectBound() bool { return p.O != nil }

// BoundCount returns how many positions are bound (0..3).
func (p Pattern) BoundCount() int {
	n := 0
	if p.S != nil {
		n++
	}
	if p.P != nil {
		n++
	}
	if p.O != nil {
		n++
	}
	return n
}

// Matches reports whether the triple satisfies every bound position.
func (p Pattern) Matches(t Triple) bool {
	if p.S != nil && *p.S != t.S {
		return false
	}
	if p.P != nil && *p.P != t.P {
		return false
	}
	if p.O != nil && p.O != t.O {
		return false
	}
	return true
}

// Key returns a canonical, collision-free serialization of the pattern,
// suitable as a result-cache key. Unbound positions serialize as "*"; bound
// positions use the term's canonical String form, which no valid term can
// produce for "*".
func (p Pattern) Key() string {
	var b strings.Builder
	if p.S != nil {
		b.WriteString(p.S.String())
	} else {
		b.WriteByte('*')
	}
	b.WriteByte(' ')
	if p.P != nil {
		b.WriteString(p.P.String())
	} else {
		b.WriteByte('*')
	}
	b.WriteByte(' ')
	if p.O != nil {
		b.WriteString(p.O.String())
	} else {
		b.WriteByte('*')
	}
	return b.String()
}
