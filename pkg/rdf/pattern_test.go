package rdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iriPtr(v string) *IRI {
	iri := MustIRI(v)
	return &iri
}

func TestPatternBoundCount(t *testing.T) {
	s := iriPtr("https://example.org/s")
	p := iriPtr("https://example.org/p")
	o := MustIRI("https://example.org/o")

	assert.Equal(t, 0, Pattern{}.BoundCount())
	assert.Equal(t, 1, Pattern{S: s}.BoundCount())
	assert.Equal(t, 2, Pattern{S: s, O: o}.BoundCount())
	assert.Equal(t, 3, Pattern{S: s, P: p, O: o}.BoundCount())
}

func TestPatternMatches(t *testing.T) {
	s := MustIRI("https://example.org/alice")
	p := MustIRI("https://example.org/vocab/knows")
	o := MustIRI("https://example.org/bob")
	triple := NewTriple(s, p, o)

	other := iriPtr("https://example.org/carol")

	tests := []struct {
		name    string
		pattern Pattern
		want    bool
	}{
		{"fully unbound", Pattern{}, true},
		{"subject match", Pattern{S: &s}, true},
		{"subject mismatch", Pattern{S: other}, false},
		{"predicate match", Pattern{P: &p}, true},
		{"object match", Pattern{O: o}, true},
		{"object mismatch", Pattern{O: MustIRI("https://example.org/carol")}, false},
		{"all bound match", Pattern{S: &s, P: &p, O: o}, true},
		{"two bound one wrong", Pattern{S: &s, P: &p, O: MustIRI("https://example.org/carol")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pattern.Matches(triple))
		})
	}
}

func TestPatternMatchesLiteralObject(t *testing.T) {
	s := MustIRI("https://example.org/alice")
	p := MustIRI("https://example.org/vocab/name")
	name, err := NewLiteral("Alice")
	require.NoError(t, err)
	triple := NewTriple(s, p, name)

	same, err := NewLiteral("Alice")
	require.NoError(t, err)
	assert.True(t, Pattern{O: same}.Matches(triple))

	tagged, err := NewLangLiteral("Alice", "en")
	require.NoError(t, err)
	assert.False(t, Pattern{O: tagged}.Matches(triple),
		"a language-tagged literal is not equal to the plain literal")
}

func TestPatternKey(t *testing.T) {
	s := iriPtr("https://example.org/s")
	p := iriPtr("https://example.org/p")
	lit, err := NewLiteral("v")
	require.NoError(t, err)

	tests := []struct {
		name    string
		pattern Pattern
		want    string
	}{
		{"unbound", Pattern{}, "* * *"},
		{"subject only", Pattern{S: s}, "<https://example.org/s> * *"},
		{"predicate only", Pattern{P: p}, "* <https://example.org/p> *"},
		{"literal object", Pattern{O: lit}, `* * "v"`},
		{"all bound", Pattern{S: s, P: p, O: lit}, `<https://example.org/s> <https://example.org/p> "v"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.pattern.Key())
		})
	}
}

func TestPatternKeyDistinguishesBindings(t *testing.T) {
	// The same term in different positions must not collide.
	x := iriPtr("https://example.org/x")
	keys := map[string]bool{}
	keys[Pattern{S: x}.Key()] = true
	keys[Pattern{P: x}.Key()] = true
	keys[Pattern{O: MustIRI("https://example.org/x")}.Key()] = true
	assert.Len(t, keys, 3)
}
