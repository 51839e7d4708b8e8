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

// Package expr parses the template expression language embedded in GitHub
// Actions workflows (the text inside `${{ ... }}` markers) and provides the
// tree walks used to classify expressions.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Expr is a single node in a parsed template expression. The node set is
// closed: every Expr is one of the concrete types in this package.
type Expr interface {
	exprNode()
}

// NumberLit is a numeric literal (`1`, `-3.5`, `0x1f`).
type NumberLit struct {
	Value float64
}

// StringLit is a single-quoted string literal. Value holds the unescaped
// content ('' collapses to ').
type StringLit struct {
	Value string
}

// BoolLit is `true` or `false`.
type BoolLit struct {
	Value bool
}

// NullLit is `null`.
type NullLit struct{}

// StarExpr is the `*` wildcard. It only ever appears as a path segment or
// index subscript inside a ContextExpr or IndexExpr.
type StarExpr struct{}

// Ident is a bare identifier. It only ever appears as a path segment inside
// a ContextExpr; identifiers in other positions parse into calls or contexts.
type Ident struct {
	Name string
}

// ContextExpr is a dotted, possibly indexed reference into a named context,
// e.g. `github.event.issue.number` or `matrix.os[0]`. Raw preserves the
// normalized source text; Parts holds the ordered path segments (Ident,
// StarExpr, or an arbitrary index expression).
type ContextExpr struct {
	Raw   string
	Parts []Expr
}

// Head returns the context's root identifier (e.g. "secrets" for
// `secrets.foo`), or "" if the context is malformed.
func (c *ContextExpr) Head() string {
	if len(c.Parts) == 0 {
		return ""
	}
	if id, ok := c.Parts[0].(*Ident); ok {
		return id.Name
	}
	return ""
}

// ChildOf reports whether the context is rooted at the named context,
// including the bare context itself. Context names are case-insensitive.
func (c *ContextExpr) ChildOf(name string) bool {
	return strings.EqualFold(c.Head(), name)
}

// Bare reports whether the context is exactly the named context with no
// further path, e.g. `secrets` but not `secrets.foo`.
func (c *ContextExpr) Bare(name string) bool {
	return len(c.Parts) == 1 && c.ChildOf(name)
}

// IndexExpr is an index or property access on a non-context base, e.g.
// `fromJSON(x)[0]` or `fromJSON(x).key`. Property accesses store the
// property name as an Ident subscript; `[*]` and `.*` store a StarExpr.
type IndexExpr struct {
	Base      Expr
	Subscript Expr
}

// CallExpr is a function call. Function names are not validated; unknown
// functions are syntactically legal.
type CallExpr struct {
	Func string
	Args []Expr
}

// BinOp identifies a binary operator.
type BinOp int

const (
	OpEq BinOp = iota
	OpNeq
	OpAnd
	OpOr
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op BinOp) String() string {
	switch op {
	case OpEq:
		return "=="
	case OpNeq:
		return "!="
	case OpAnd:
		return "&&"
	case OpOr:
		return "||"
	case OpLt:
		return "<"
	case OpLe:
		return "<="
	case OpGt:
		return ">"
	case OpGe:
		return ">="
	default:
		return fmt.Sprintf("BinOp(%d)", int(op))
	}
}

// BinaryExpr is a binary operation.
type BinaryExpr struct {
	Left  Expr
	Op    BinOp
	Right Expr
}

// UnOp identifies a unary operator. Logical negation is the only one.
type UnOp int

const (
	OpNot UnOp = iota
)

func (op UnOp) String() string {
	if op == OpNot {
		return "!"
	}
	return fmt.Sprintf("UnOp(%d)", int(op))
}

// UnaryExpr is a unary operation.
type UnaryExpr struct {
	Op      UnOp
	Operand Expr
}

func (*NumberLit) exprNode()   {}
func (*StringLit) exprNode()   {}
func (*BoolLit) exprNode()     {}
func (*NullLit) exprNode()     {}
func (*StarExpr) exprNode()    {}
func (*Ident) exprNode()       {}
func (*ContextExpr) exprNode() {}
func (*IndexExpr) exprNode()   {}
func (*CallExpr) exprNode()    {}
func (*BinaryExpr) exprNode()  {}
func (*UnaryExpr) exprNode()   {}

// Format renders an expression back into normalized source form. Reparsing
// the result yields a structurally identical tree.
func Format(e Expr) string {
	switch e := e.(type) {
	case *NumberLit:
		return strconv.FormatFloat(e.Value, 'f', -1, 64)
	case *StringLit:
		return "'" + strings.ReplaceAll(e.Value, "'", "''") + "'"
	case *BoolLit:
		return strconv.FormatBool(e.Value)
	case *NullLit:
		return "null"
	case *StarExpr:
		return "*"
	case *Ident:
		return e.Name
	case *ContextExpr:
		return e.Raw
	case *IndexExpr:
		switch sub := e.Subscript.(type) {
		case *Ident:
			return Format(e.Base) + "." + sub.Name
		case *StarExpr:
			return Format(e.Base) + ".*"
		default:
			return Format(e.Base) + "[" + Format(sub) + "]"
		}
	case *CallExpr:
		args := make([]string, len(e.Args))
		for i, arg := range e.Args {
			args[i] = Format(arg)
		}
		return e.Func + "(" + strings.Join(args, ", ") + ")"
	case *BinaryExpr:
		return "(" + Format(e.Left) + " " + e.Op.String() + " " + Format(e.Right) + ")"
	case *UnaryExpr:
		return e.Op.String() + Format(e.Operand)
	default:
		return ""
	}
}
