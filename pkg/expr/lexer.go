package expr

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokDot
	tokComma
	tokStar
	tokNot
	tokEq
	tokNeq
	tokAnd
	tokOr
	tokLt
	tokLe
	tokGt
	tokGe
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokIdent:
		return "identifier"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokDot:
		return "'.'"
	case tokComma:
		return "','"
	case tokStar:
		return "'*'"
	case tokNot:
		return "'!'"
	case tokEq:
		return "'=='"
	case tokNeq:
		return "'!='"
	case tokAnd:
		return "'&&'"
	case tokOr:
		return "'||'"
	case tokLt:
		return "'<'"
	case tokLe:
		return "'<='"
	case tokGt:
		return "'>'"
	case tokGe:
		return "'>='"
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

type token struct {
	kind tokenKind
	text string
	pos  int
}

// ParseError is returned for expression text that doesn't conform to the
// grammar. It is recoverable: callers log and skip the offending expression.
type ParseError struct {
	Pos  int
	Text string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d in %q: %s", e.Pos, e.Text, e.Msg)
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) errorf(pos int, format string, args ...any) error {
	return &ParseError{Pos: pos, Text: l.input, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && isSpace(l.input[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{tokLParen, "(", start}, nil
	case c == ')':
		l.pos++
		return token{tokRParen, ")", start}, nil
	case c == '[':
		l.pos++
		return token{tokLBracket, "[", start}, nil
	case c == ']':
		l.pos++
		return token{tokRBracket, "]", start}, nil
	case c == '.':
		l.pos++
		return token{tokDot, ".", start}, nil
	case c == ',':
		l.pos++
		return token{tokComma, ",", start}, nil
	case c == '*':
		l.pos++
		return token{tokStar, "*", start}, nil
	case c == '!':
		if l.peekAt(l.pos+1) == '=' {
			l.pos += 2
			return token{tokNeq, "!=", start}, nil
		}
		l.pos++
		return token{tokNot, "!", start}, nil
	case c == '=':
		if l.peekAt(l.pos+1) == '=' {
			l.pos += 2
			return token{tokEq, "==", start}, nil
		}
		return token{}, l.errorf(start, "unexpected '='; did you mean '=='?")
	case c == '&':
		if l.peekAt(l.pos+1) == '&' {
			l.pos += 2
			return token{tokAnd, "&&", start}, nil
		}
		return token{}, l.errorf(start, "unexpected '&'; did you mean '&&'?")
	case c == '|':
		if l.peekAt(l.pos+1) == '|' {
			l.pos += 2
			return token{tokOr, "||", start}, nil
		}
		return token{}, l.errorf(start, "unexpected '|'; did you mean '||'?")
	case c == '<':
		if l.peekAt(l.pos+1) == '=' {
			l.pos += 2
			return token{tokLe, "<=", start}, nil
		}
		l.pos++
		return token{tokLt, "<", start}, nil
	case c == '>':
		if l.peekAt(l.pos+1) == '=' {
			l.pos += 2
			return token{tokGe, ">=", start}, nil
		}
		l.pos++
		return token{tokGt, ">", start}, nil
	case c == '\'':
		return l.lexString()
	case c >= '0' && c <= '9':
		return l.lexNumber()
	case c == '-':
		// The expression language has no subtraction; a leading '-' can
		// only introduce a negative number literal.
		if d := l.peekAt(l.pos + 1); d >= '0' && d <= '9' {
			return l.lexNumber()
		}
		return token{}, l.errorf(start, "unexpected '-'")
	case isIdentStart(c):
		return l.lexIdent()
	default:
		return token{}, l.errorf(start, "unexpected character %q", c)
	}
}

func (l *lexer) peekAt(i int) byte {
	if i >= len(l.input) {
		return 0
	}
	return l.input[i]
}

// lexString scans a single-quoted string. A doubled quote ('') inside the
// literal unescapes to a single quote.
func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '\'' {
			if l.peekAt(l.pos+1) == '\'' {
				sb.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return token{tokString, sb.String(), start}, nil
		}
		sb.WriteByte(c)
		l.pos++
	}
	return token{}, l.errorf(start, "unterminated string literal")
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	if l.peekAt(l.pos) == '0' && (l.peekAt(l.pos+1) == 'x' || l.peekAt(l.pos+1) == 'X') {
		l.pos += 2
		for l.pos < len(l.input) && isHexDigit(l.input[l.pos]) {
			l.pos++
		}
		return token{tokNumber, l.input[start:l.pos], start}, nil
	}
	for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
		l.pos++
	}
	if l.peekAt(l.pos) == '.' && isDigit(l.peekAt(l.pos+1)) {
		l.pos++
		for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
			l.pos++
		}
	}
	if c := l.peekAt(l.pos); c == 'e' || c == 'E' {
		cursor := l.pos + 1
		if s := l.peekAt(cursor); s == '+' || s == '-' {
			cursor++
		}
		if isDigit(l.peekAt(cursor)) {
			l.pos = cursor
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
	}
	return token{tokNumber, l.input[start:l.pos], start}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	l.pos++
	for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
		l.pos++
	}
	return token{tokIdent, l.input[start:l.pos], start}, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '-'
}
