package simplify

import "github.com/satishbabariya/toasty-go/internal/stmt"

// simplifyAnd implements spec.md §4.1's conjunction rules: flatten, identity,
// annihilator, idempotence, absorption, complement, unwrap and null
// propagation, mirroring the shape of the reference planner's
// simplify_expr_and (one rule, one pass, applied repeatedly by the Expr
// fixed-point driver in simplify.go).
func (s Simplifier) simplifyAnd(v stmt.ExprAnd) stmt.Expr {
	operands := flattenAnd(v.Operands)

	// Annihilator: and(..., false, ...) -> false
	for _, o := range operands {
		if stmt.IsFalse(o) {
			return stmt.False
		}
	}

	// Identity: drop literal `true` operands.
	operands = filterOut(operands, stmt.IsTrue)

	// Idempotence: drop duplicate operands.
	operands = dedup(operands)

	// Absorption: and(a, or(a, b)) -> a. An OR operand is dropped if any of
	// its own operands also appears as a direct (non-OR) operand of this AND.
	nonOr := make([]stmt.Expr, 0, len(operands))
	for _, o := range operands {
		if _, isOr := o.(stmt.ExprOr); !isOr {
			nonOr = append(nonOr, o)
		}
	}
	operands = filterOut(operands, func(o stmt.Expr) bool {
		or, ok := o.(stmt.ExprOr)
		if !ok {
			return false
		}
		for _, orOperand := range or.Operands {
			if containsExpr(nonOr, orOperand) {
				return true
			}
		}
		return false
	})

	// Range collapse: and(x >= k, x <= k) -> x = k, for any pair of operands
	// sharing the same left-hand expression and literal bound.
	operands = collapseRanges(operands)

	// Complement: and(a, not(a)) -> false, only when a is non-nullable.
	if s.hasComplementPair(operands) {
		return stmt.False
	}

	// Null propagation: if every remaining operand is a constant and any is
	// NULL, the conjunction is NULL (a FALSE operand already short-circuited
	// above).
	if allConstant(operands) {
		for _, o := range operands {
			if stmt.IsNullExpr(o) {
				return stmt.ExprValue{Value: stmt.NullValue{}}
			}
		}
	}

	switch len(operands) {
	case 0:
		return stmt.True
	case 1:
		return operands[0]
	default:
		return stmt.ExprAnd{Operands: operands}
	}
}

func flattenAnd(operands []stmt.Expr) []stmt.Expr {
	out := make([]stmt.Expr, 0, len(operands))
	for _, o := range operands {
		if nested, ok := o.(stmt.ExprAnd); ok {
			out = append(out, flattenAnd(nested.Operands)...)
		} else {
			out = append(out, o)
		}
	}
	return out
}

func filterOut(operands []stmt.Expr, drop func(stmt.Expr) bool) []stmt.Expr {
	out := make([]stmt.Expr, 0, len(operands))
	for _, o := range operands {
		if !drop(o) {
			out = append(out, o)
		}
	}
	return out
}

func dedup(operands []stmt.Expr) []stmt.Expr {
	out := make([]stmt.Expr, 0, len(operands))
	for _, o := range operands {
		if !containsExpr(out, o) {
			out = append(out, o)
		}
	}
	return out
}

func containsExpr(haystack []stmt.Expr, needle stmt.Expr) bool {
	for _, h := range haystack {
		if stmt.Equal(h, needle) {
			return true
		}
	}
	return false
}

func (s Simplifier) hasComplementPair(operands []stmt.Expr) bool {
	var negated []stmt.Expr
	for _, o := range operands {
		if not, ok := o.(stmt.ExprNot); ok {
			negated = append(negated, not.Expr)
		}
	}
	for _, o := range operands {
		if _, isNot := o.(stmt.ExprNot); isNot {
			continue
		}
		if containsExpr(negated, o) && s.isNonNullable(o) {
			return true
		}
	}
	return false
}

func allConstant(operands []stmt.Expr) bool {
	for _, o := range operands {
		if _, ok := o.(stmt.ExprValue); !ok {
			return false
		}
	}
	return true
}
