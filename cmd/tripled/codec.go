package main

import (
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/tripled-io/tripled/pkg/rdf"
)

// The CLI speaks a small N-Triples-like line format:
//
//	<subject> <predicate> <object-iri> .
//	<subject> <predicate> "literal" .
//	<subject> <predicate> "literal"@en .
//	<subject> <predicate> "literal"^^<datatype> .
//
// Patterns use the same term syntax with * for unbound positions. The core
// packages never parse this format; it exists only so the CLI has something
// to load and query.

var errSyntax = errors.New("syntax error")

// parseTripleLine parses one data line. Blank lines and #-comments return
// (zero, false, nil).
func parseTripleLine(line string) (rdf.Triple, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return rdf.Triple{}, false, nil
	}

	toks, err := splitTerms(line)
	if err != nil {
		return rdf.Triple{}, false, err
	}
	if len(toks) == 4 && toks[3] == "." {
		toks = toks[:3]
	}
	if len(toks) != 3 {
		return rdf.Triple{}, false, errors.Wrapf(errSyntax, "want 3 terms, got %d in %q", len(toks), line)
	}

	s, err := parseIRIToken(toks[0])
	if err != nil {
		return rdf.Triple{}, false, err
	}
	p, err := parseIRIToken(toks[1])
	if err != nil {
		return rdf.Triple{}, false, err
	}
	o, err := parseObjectToken(toks[2])
	if err != nil {
		return rdf.Triple{}, false, err
	}
	return rdf.NewTriple(s, p, o), true, nil
}

// parsePattern parses a three-term pattern where * marks unbound positions.
func parsePattern(input string) (rdf.Pattern, error) {
	toks, err := splitTerms(strings.TrimSpace(input))
	if err != nil {
		return rdf.Pattern{}, err
	}
	if len(toks) != 3 {
		return rdf.Pattern{}, errors.Wrapf(errSyntax, "want 3 terms, got %d in %q", len(toks), input)
	}

	var p rdf.Pattern
	if toks[0] != "*" {
		s, err := parseIRIToken(toks[0])
		if err != nil {
			return rdf.Pattern{}, err
		}
		p.S = &s
	}
	if toks[1] != "*" {
		pr, err := parseIRIToken(toks[1])
		if err != nil {
			return rdf.Pattern{}, err
		}
		p.P = &pr
	}
	if toks[2] != "*" {
		o, err := parseObjectToken(toks[2])
		if err != nil {
			return rdf.Pattern{}, err
		}
		p.O = o
	}
	return p, nil
}

// splitTerms tokenizes a line into term tokens, keeping quoted literals
// (which may contain spaces) intact together with their @lang / ^^<dt>
// suffix.
func splitTerms(line string) ([]string, error) {
	var toks []string
	i := 0
	for i < len(line) {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
		if i >= len(line) {
			break
		}
		start := i
		switch line[i] {
		case '<':
			end := strings.IndexByte(line[i:], '>')
			if end < 0 {
				return nil, errors.Wrapf(errSyntax, "unterminated IRI in %q", line)
			}
			i += end + 1
		case '"':
			i++
			for i < len(line) {
				if line[i] == '\\' {
					i += 2
					continue
				}
				if line[i] == '"' {
					break
				}
				i++
			}
			if i >= len(line) {
				return nil, errors.Wrapf(errSyntax, "unterminated literal in %q", line)
			}
			i++ // closing quote
			// Optional @lang or ^^<datatype> suffix.
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
		default:
			for i < len(line) && line[i] != ' ' && line[i] != '\t' {
				i++
			}
		}
		toks = append(toks, line[start:i])
	}
	return toks, nil
}

func parseIRIToken(tok string) (rdf.IRI, error) {
	if !strings.HasPrefix(tok, "<") || !strings.HasSuffix(tok, ">") {
		return rdf.IRI{}, errors.Wrapf(errSyntax, "expected <iri>, got %q", tok)
	}
	return rdf.NewIRI(tok[1 : len(tok)-1])
}

func parseObjectToken(tok string) (rdf.Term, error) {
	if strings.HasPrefix(tok, "<") {
		return parseIRIToken(tok)
	}
	if !strings.HasPrefix(tok, `"`) {
		return nil, errors.Wrapf(errSyntax, "expected <iri> or literal, got %q", tok)
	}

	// Find the closing quote, honoring escapes.
	end := -1
	for i := 1; i < len(tok); i++ {
		if tok[i] == '\\' {
			i++
			continue
		}
		if tok[i] == '"' {
			end = i
			break
		}
	}
	if end < 0 {
		return nil, errors.Wrapf(errSyntax, "unterminated literal %q", tok)
	}

	value := unescapeLiteral(tok[1:end])
	suffix := tok[end+1:]
	switch {
	case suffix == "":
		return rdf.NewLiteral(value)
	case strings.HasPrefix(suffix, "@"):
		return rdf.NewLangLiteral(value, suffix[1:])
	case strings.HasPrefix(suffix, "^^"):
		dt, err := parseIRIToken(suffix[2:])
		if err != nil {
			return nil, err
		}
		return rdf.NewTypedLiteral(value, dt)
	default:
		return nil, errors.Wrapf(errSyntax, "bad literal suffix %q", suffix)
	}
}

func unescapeLiteral(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	r := strings.NewReplacer(
		`\\`, `\`,
		`\"`, `"`,
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
	)
	return r.Replace(s)
}
