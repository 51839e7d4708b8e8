/*
Copyright 2025 Argos Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package expr

import (
	"strconv"
	"strings"
)

// maxDepth bounds expression nesting so that pathological inputs produce a
// parse error instead of exhausting the stack.
const maxDepth = 512

// Parse parses the bare text of a template expression (the content inside a
// `${{ ... }}` marker, without the marker itself) into an Expr tree. It is a
// pure function: it never panics on malformed input and has no side effects.
func Parse(text string) (Expr, error) {
	p := &parser{lex: lexer{input: text}}
	if err := p.prime(); err != nil {
		return nil, err
	}
	e, err := p.orExpr(0)
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.errorf("unexpected %s after expression", p.tok.kind)
	}
	return e, nil
}

type parser struct {
	lex lexer
	tok token
}

func (p *parser) prime() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) advance() error {
	return p.prime()
}

func (p *parser) expect(kind tokenKind) (token, error) {
	if p.tok.kind != kind {
		return token{}, p.errorf("expected %s, found %s", kind, p.tok.kind)
	}
	tok := p.tok
	if err := p.advance(); err != nil {
		return token{}, err
	}
	return tok, nil
}

func (p *parser) errorf(format string, args ...any) error {
	return p.lex.errorf(p.tok.pos, format, args...)
}

func (p *parser) orExpr(depth int) (Expr, error) {
	left, err := p.andExpr(depth + 1)
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.andExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Op: OpOr, Right: right}
	}
	return left, nil
}

func (p *parser) andExpr(depth int) (Expr, error) {
	left, err := p.eqExpr(depth + 1)
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.eqExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Op: OpAnd, Right: right}
	}
	return left, nil
}

func (p *parser) eqExpr(depth int) (Expr, error) {
	left, err := p.relExpr(depth + 1)
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokEq || p.tok.kind == tokNeq {
		op := OpEq
		if p.tok.kind == tokNeq {
			op = OpNeq
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.relExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}
	return left, nil
}

func (p *parser) relExpr(depth int) (Expr, error) {
	left, err := p.unary(depth + 1)
	if err != nil {
		return nil, err
	}
	for {
		var op BinOp
		switch p.tok.kind {
		case tokLt:
			op = OpLt
		case tokLe:
			op = OpLe
		case tokGt:
			op = OpGt
		case tokGe:
			op = OpGe
		default:
			return left, nil
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.unary(depth + 1)
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Left: left, Op: op, Right: right}
	}
}

func (p *parser) unary(depth int) (Expr, error) {
	if depth > maxDepth {
		return nil, p.errorf("expression nests too deeply")
	}
	if p.tok.kind == tokNot {
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.unary(depth + 1)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNot, Operand: operand}, nil
	}
	return p.postfix(depth + 1)
}

// postfix parses a primary and any trailing `.name`, `.*`, `[expr]`, or
// `[*]` accesses. Accesses on a bare identifier chain accumulate into a
// single ContextExpr; accesses on anything else build IndexExpr nodes.
func (p *parser) postfix(depth int) (Expr, error) {
	base, err := p.primary(depth + 1)
	if err != nil {
		return nil, err
	}

	for {
		switch p.tok.kind {
		case tokDot:
			if err := p.advance(); err != nil {
				return nil, err
			}
			switch p.tok.kind {
			case tokIdent:
				name := p.tok.text
				if err := p.advance(); err != nil {
					return nil, err
				}
				base = extendPath(base, &Ident{Name: name}, "."+name)
			case tokStar:
				if err := p.advance(); err != nil {
					return nil, err
				}
				base = extendPath(base, &StarExpr{}, ".*")
			default:
				return nil, p.errorf("expected identifier or '*' after '.', found %s", p.tok.kind)
			}
		case tokLBracket:
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.kind == tokStar {
				if err := p.advance(); err != nil {
					return nil, err
				}
				if _, err := p.expect(tokRBracket); err != nil {
					return nil, err
				}
				base = extendPath(base, &StarExpr{}, "[*]")
				continue
			}
			sub, err := p.orExpr(depth + 1)
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket); err != nil {
				return nil, err
			}
			base = extendPath(base, sub, "["+Format(sub)+"]")
		default:
			return base, nil
		}
	}
}

// extendPath grows a context path with one more segment, or wraps a
// non-context base in an IndexExpr.
func extendPath(base Expr, segment Expr, rawSuffix string) Expr {
	if ctx, ok := base.(*ContextExpr); ok {
		return &ContextExpr{
			Raw:   ctx.Raw + rawSuffix,
			Parts: append(append([]Expr{}, ctx.Parts...), segment),
		}
	}
	return &IndexExpr{Base: base, Subscript: segment}
}

func (p *parser) primary(depth int) (Expr, error) {
	if depth > maxDepth {
		return nil, p.errorf("expression nests too deeply")
	}

	switch p.tok.kind {
	case tokNumber:
		text := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		value, err := parseNumber(text)
		if err != nil {
			return nil, p.errorf("invalid number %q", text)
		}
		return &NumberLit{Value: value}, nil

	case tokString:
		value := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &StringLit{Value: value}, nil

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.orExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return inner, nil

	case tokIdent:
		name := p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.tok.kind == tokLParen {
			return p.callArgs(name, depth+1)
		}
		switch {
		case strings.EqualFold(name, "true"):
			return &BoolLit{Value: true}, nil
		case strings.EqualFold(name, "false"):
			return &BoolLit{Value: false}, nil
		case strings.EqualFold(name, "null"):
			return &NullLit{}, nil
		}
		return &ContextExpr{Raw: name, Parts: []Expr{&Ident{Name: name}}}, nil

	default:
		return nil, p.errorf("expected expression, found %s", p.tok.kind)
	}
}

func (p *parser) callArgs(name string, depth int) (Expr, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	call := &CallExpr{Func: name}
	if p.tok.kind == tokRParen {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return call, nil
	}
	for {
		arg, err := p.orExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
		if p.tok.kind == tokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return call, nil
	}
}

func parseNumber(text string) (float64, error) {
	negative := strings.HasPrefix(text, "-")
	digits := strings.TrimPrefix(text, "-")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		v, err := strconv.ParseUint(digits[2:], 16, 64)
		if err != nil {
			return 0, err
		}
		f := float64(v)
		if negative {
			f = -f
		}
		return f, nil
	}
	return strconv.ParseFloat(text, 64)
}
