// Package grammar parses BNF-like grammar specifications into substitution
// tables used by the mapping engine. Productions are flat alternative lists;
// there is no derivation-tree construction.
package grammar

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// StartSymbol is the nonterminal a genotype mapping begins from.
	StartSymbol = "<S>"

	// statementPrefix marks nonterminals whose alternatives form a verbatim
	// code block. Their per-line leading whitespace is preserved and the
	// lines are joined by newline into a single alternative.
	statementPrefix = "<S"

	defineToken = "::="
)

var (
	ErrSyntax     = errors.New("malformed grammar line")
	ErrUnresolved = errors.New("unresolved nonterminal")
)

// Table maps a nonterminal to its ordered alternatives. Alternative order is
// significant: codon selection is positional.
type Table map[string][]string

// Parse builds a Table from a grammar specification. Each definition line has
// the form "<token> ::= alt1 | alt2 | ...". A line without "::=" continues the
// previous token. Statement-tagged tokens (names starting "<S") keep exact
// leading whitespace per line and collapse to a single verbatim alternative.
func Parse(text string) (Table, error) {
	table := Table{}
	current := ""

	for lineNo, line := range strings.Split(text, "\n") {
		switch {
		case strings.Contains(line, defineToken):
			parts := strings.SplitN(line, defineToken, 2)
			key := strings.TrimSpace(parts[0])
			if !isNonterminal(key) {
				return nil, fmt.Errorf("%w: line %d: bad token %q", ErrSyntax, lineNo+1, key)
			}
			table[key] = splitAlternatives(key, parts[1])
			current = key
		case strings.TrimSpace(line) != "":
			if current == "" {
				return nil, fmt.Errorf("%w: line %d: continuation before any definition", ErrSyntax, lineNo+1)
			}
			values := append(table[current], splitAlternatives(current, line)...)
			if isStatement(current) {
				values = []string{strings.Join(values, "\n")}
			}
			table[current] = values
		default:
			// blank line
		}
	}
	return table, nil
}

// Alternatives returns the ordered alternatives for a nonterminal.
func (t Table) Alternatives(name string) ([]string, error) {
	alts, ok := t[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnresolved, name)
	}
	if len(alts) == 0 {
		return nil, fmt.Errorf("%w: %s has no alternatives", ErrUnresolved, name)
	}
	return alts, nil
}

// Clone returns a deep copy so per-genotype tables never alias the canonical
// grammar or each other.
func (t Table) Clone() Table {
	out := make(Table, len(t))
	for key, alts := range t {
		out[key] = append([]string(nil), alts...)
	}
	return out
}

// Set replaces the alternatives for a nonterminal.
func (t Table) Set(name string, alternatives []string) {
	t[name] = append([]string(nil), alternatives...)
}

func isStatement(key string) bool {
	return strings.HasPrefix(key, statementPrefix)
}

func isNonterminal(token string) bool {
	return len(token) > 2 &&
		strings.HasPrefix(token, "<") &&
		strings.HasSuffix(token, ">") &&
		!strings.ContainsAny(token[1:len(token)-1], "<> \t")
}

func splitAlternatives(key, values string) []string {
	out := []string{}
	for _, value := range strings.Split(values, "|") {
		if isStatement(key) {
			value = strings.TrimRight(value, " \t\r")
		} else {
			value = strings.TrimSpace(value)
		}
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
