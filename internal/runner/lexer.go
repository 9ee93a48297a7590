package runner

import (
	"fmt"
	"strconv"
	"strings"
)

type tokKind int

const (
	tokEOF tokKind = iota
	tokNewline
	tokNumber
	tokString
	tokIdent
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokComma
	tokAssign
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
	tokAnd
	tokOr
	tokNot
)

type token struct {
	kind tokKind
	text string
	num  float64
	line int
}

func lex(src string) ([]token, error) {
	toks := make([]token, 0, len(src)/4)
	line := 1
	i := 0

	emit := func(kind tokKind, text string) {
		toks = append(toks, token{kind: kind, text: text, line: line})
	}

	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n' || c == ';':
			emit(tokNewline, string(c))
			if c == '\n' {
				line++
			}
			i++
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c >= '0' && c <= '9' || c == '.' && i+1 < len(src) && isDigit(src[i+1]):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				i++
			}
			text := src[start:i]
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad number %q", ErrSyntax, line, text)
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: num, line: line})
		case c == '\'' || c == '"':
			quote := c
			i++
			var sb strings.Builder
			closed := false
			for i < len(src) {
				if src[i] == quote {
					closed = true
					i++
					break
				}
				if src[i] == '\n' {
					break
				}
				if src[i] == '\\' && i+1 < len(src) {
					i++
					switch src[i] {
					case 'n':
						sb.WriteByte('\n')
					case 't':
						sb.WriteByte('\t')
					default:
						sb.WriteByte(src[i])
					}
					i++
					continue
				}
				sb.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: line %d: unterminated string", ErrSyntax, line)
			}
			emit(tokString, sb.String())
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			emit(tokIdent, src[start:i])
		case c == '<' && nonterminalEnd(src, i) > 0:
			// Angle-bracketed nonterminal left unresolved at build time; the
			// lexer keeps it intact so hook calls can receive it as a name.
			end := nonterminalEnd(src, i)
			emit(tokString, src[i:end])
			i = end
		default:
			tok, width, err := lexOperator(src[i:], line)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tok, text: src[i : i+width], line: line})
			i += width
		}
	}
	toks = append(toks, token{kind: tokEOF, line: line})
	return toks, nil
}

func lexOperator(rest string, line int) (tokKind, int, error) {
	two := map[string]tokKind{
		"==": tokEq, "!=": tokNeq, "<=": tokLte, ">=": tokGte,
		"&&": tokAnd, "||": tokOr,
	}
	if len(rest) >= 2 {
		if kind, ok := two[rest[:2]]; ok {
			return kind, 2, nil
		}
	}
	one := map[byte]tokKind{
		'(': tokLParen, ')': tokRParen, '{': tokLBrace, '}': tokRBrace,
		',': tokComma, '=': tokAssign, '+': tokPlus, '-': tokMinus,
		'*': tokStar, '/': tokSlash, '%': tokPercent,
		'<': tokLt, '>': tokGt, '!': tokNot,
	}
	if kind, ok := one[rest[0]]; ok {
		return kind, 1, nil
	}
	return tokEOF, 0, fmt.Errorf("%w: line %d: unexpected character %q", ErrSyntax, line, rest[0])
}

// nonterminalEnd returns the index just past the closing '>' when src[i:]
// opens an angle-bracketed nonterminal: at least one character, none of
// which is a bracket, '|', or whitespace. Returns -1 otherwise, so
// comparison chains like a<b && c>d lex as operators.
func nonterminalEnd(src string, i int) int {
	for j := i + 1; j < len(src); j++ {
		switch src[j] {
		case '>':
			if j == i+1 {
				return -1
			}
			return j + 1
		case '<', '|', ' ', '\t', '\r', '\n':
			return -1
		}
	}
	return -1
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
