package simplify

import "github.com/satishbabariya/toasty-go/internal/stmt"

// simplifyOr implements the disjunction rules symmetric to simplifyAnd:
// flatten, annihilator (true short-circuits), identity (drop false),
// idempotence, complement (a or not(a) -> true, non-nullable only), unwrap,
// and null propagation (OR of constants-with-NULL is NULL unless a TRUE is
// present).
func (s Simplifier) simplifyOr(v stmt.ExprOr) stmt.Expr {
	operands := flattenOr(v.Operands)

	for _, o := range operands {
		if stmt.IsTrue(o) {
			return stmt.True
		}
	}

	operands = filterOut(operands, stmt.IsFalse)
	operands = dedup(operands)

	if s.hasOrComplementPair(operands) {
		return stmt.True
	}

	if allConstant(operands) {
		for _, o := range operands {
			if stmt.IsNullExpr(o) {
				return stmt.ExprValue{Value: stmt.NullValue{}}
			}
		}
	}

	switch len(operands) {
	case 0:
		return stmt.False
	case 1:
		return operands[0]
	default:
		return stmt.ExprOr{Operands: operands}
	}
}

func flattenOr(operands []stmt.Expr) []stmt.Expr {
	out := make([]stmt.Expr, 0, len(operands))
	for _, o := range operands {
		if nested, ok := o.(stmt.ExprOr); ok {
			out = append(out, flattenOr(nested.Operands)...)
		} else {
			out = append(out, o)
		}
	}
	return out
}

func (s Simplifier) hasOrComplementPair(operands []stmt.Expr) bool {
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
