// Package simplify normalizes predicate trees into canonical algebraic form:
// flattening, identity/annihilator collapse, idempotence, absorption,
// complement, range collapse, constant folding and canonical orientation.
// Simplification is sound (it never changes the evaluated result for a
// bound environment) and is run to a fixed point; rule application order
// does not affect the final result.
//
// Simplification takes no lock and touches no package-level state: every
// entry point closes over its own Simplifier, so a Schema shared by many
// concurrently-planning goroutines (§5) never has its nullability lookups
// race.
package simplify

import "github.com/satishbabariya/toasty-go/internal/stmt"

// Expr simplifies e to a fixed point, treating every leaf as nullable (the
// always-sound default used when no schema-derived type info is
// available).
func Expr(e stmt.Expr) stmt.Expr {
	return defaultSimplifier.Expr(e)
}

// Expr simplifies e to a fixed point using s's type environment to decide
// self-comparison and complement eligibility.
func (s Simplifier) Expr(e stmt.Expr) stmt.Expr {
	for {
		next := stmt.MapExpr(e, s.simplifyOnce)
		if stmt.Equal(next, e) {
			return next
		}
		e = next
	}
}

// simplifyOnce applies every rule once to the (already child-simplified)
// node produced by MapExpr's post-order walk.
func (s Simplifier) simplifyOnce(e stmt.Expr) stmt.Expr {
	switch v := e.(type) {
	case stmt.ExprAnd:
		return s.simplifyAnd(v)
	case stmt.ExprOr:
		return s.simplifyOr(v)
	case stmt.ExprNot:
		return simplifyNot(v)
	case stmt.ExprBinaryOp:
		return s.simplifyBinaryOp(v)
	default:
		return e
	}
}

func simplifyNot(v stmt.ExprNot) stmt.Expr {
	if stmt.IsTrue(v.Expr) {
		return stmt.False
	}
	if stmt.IsFalse(v.Expr) {
		return stmt.True
	}
	if inner, ok := v.Expr.(stmt.ExprNot); ok {
		return inner.Expr
	}
	return v
}
