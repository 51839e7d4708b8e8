package expr

import "strings"

// Walk traverses the expression tree rooted at e in depth-first order,
// calling visit for each node. If visit returns false for a node, its
// children are not visited. Computed index subscripts and context path
// segments are part of the traversal.
func Walk(e Expr, visit func(Expr) bool) {
	if e == nil || !visit(e) {
		return
	}
	switch n := e.(type) {
	case *ContextExpr:
		for _, part := range n.Parts {
			Walk(part, visit)
		}
	case *IndexExpr:
		Walk(n.Base, visit)
		Walk(n.Subscript, visit)
	case *CallExpr:
		for _, arg := range n.Args {
			Walk(arg, visit)
		}
	case *BinaryExpr:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *UnaryExpr:
		Walk(n.Operand, visit)
	}
}

// IsSafe reports whether e can only ever evaluate to a value derived from
// literals. Negation and the (in)equality operators count as safe regardless
// of their operands, since they always produce a boolean. && is judged by its
// right operand alone: the operator evaluates to the right side whenever the
// left side is truthy. Everything that reads a context, calls a function, or
// indexes into a value is unsafe.
func IsSafe(e Expr) bool {
	switch n := e.(type) {
	case *NumberLit, *StringLit, *BoolLit, *NullLit:
		return true
	case *UnaryExpr:
		return true
	case *BinaryExpr:
		switch n.Op {
		case OpEq, OpNeq:
			return true
		case OpAnd:
			return IsSafe(n.Right)
		default:
			return IsSafe(n.Left) && IsSafe(n.Right)
		}
	default:
		return false
	}
}

// Contexts returns every context referenced anywhere in e, in syntactic
// order. Contexts nested inside computed index subscripts are included, so
// `github.event[inputs.name]` yields both the outer and the inner context.
func Contexts(e Expr) []*ContextExpr {
	var out []*ContextExpr
	Walk(e, func(n Expr) bool {
		if ctx, ok := n.(*ContextExpr); ok {
			out = append(out, ctx)
		}
		return true
	})
	return out
}

// userControllableContexts are contexts whose values an external actor can
// influence, e.g. through the name of a branch or tag. A workflow that feeds
// one of these into contains() as the needle can be bypassed by an attacker
// who embeds the expected value in their own input.
var userControllableContexts = map[string]bool{
	"env.github_actor":            true,
	"env.github_base_ref":         true,
	"env.github_head_ref":         true,
	"env.github_ref":              true,
	"env.github_ref_name":         true,
	"env.github_sha":              true,
	"env.github_triggering_actor": true,
	"github.actor":                true,
	"github.base_ref":             true,
	"github.head_ref":             true,
	"github.ref":                  true,
	"github.ref_name":             true,
	"github.sha":                  true,
	"github.triggering_actor":     true,
}

// UserControllable reports whether an external actor can influence the
// context's value, e.g. through the name of a branch or tag.
func UserControllable(ctx *ContextExpr) bool {
	raw := strings.ToLower(ctx.Raw)
	if strings.HasPrefix(raw, "inputs.") {
		return true
	}
	return userControllableContexts[raw]
}

// BypassableContains returns the contexts that appear as the second argument
// of a `contains(literal, context)` call anywhere in e. That shape inverts
// the intended containment test: the context value is the needle, so any
// substring of the literal passes the check. Callers grade each hit by
// whether the context is UserControllable.
func BypassableContains(e Expr) []*ContextExpr {
	var out []*ContextExpr
	Walk(e, func(n Expr) bool {
		call, ok := n.(*CallExpr)
		if !ok || !strings.EqualFold(call.Func, "contains") || len(call.Args) != 2 {
			return true
		}
		if _, ok := call.Args[0].(*StringLit); !ok {
			return true
		}
		if ctx, ok := call.Args[1].(*ContextExpr); ok {
			out = append(out, ctx)
			return false
		}
		return true
	})
	return out
}

// FromJSONSecrets returns every fromJSON call in e whose argument is rooted
// in the secrets context. Values that pass through fromJSON lose the
// runner's secret redaction, so their contents can leak into logs.
func FromJSONSecrets(e Expr) []*CallExpr {
	var out []*CallExpr
	Walk(e, func(n Expr) bool {
		call, ok := n.(*CallExpr)
		if !ok || !strings.EqualFold(call.Func, "fromjson") {
			return true
		}
		for _, arg := range call.Args {
			if ctx, ok := arg.(*ContextExpr); ok && ctx.ChildOf("secrets") {
				out = append(out, call)
				return false
			}
		}
		return true
	})
	return out
}

// ToJSONSecrets returns every toJSON call in e whose argument is the bare
// secrets context. Serializing the whole context grants the step every
// secret the workflow can reach, not just the ones it needs.
func ToJSONSecrets(e Expr) []*CallExpr {
	var out []*CallExpr
	Walk(e, func(n Expr) bool {
		call, ok := n.(*CallExpr)
		if !ok || !strings.EqualFold(call.Func, "tojson") {
			return true
		}
		for _, arg := range call.Args {
			if ctx, ok := arg.(*ContextExpr); ok && ctx.Bare("secrets") {
				out = append(out, call)
				return false
			}
		}
		return true
	})
	return out
}
