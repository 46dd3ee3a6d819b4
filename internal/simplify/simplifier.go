package simplify

import "github.com/satishbabariya/toasty-go/internal/stmt"

// TypeOf resolves the declared type of a leaf expression (ExprField,
// ExprColumn, ExprArg, ...) so the simplifier can decide whether a
// self-comparison or complement rule is safe to apply. A nil TypeOf (the
// zero Simplifier) treats every leaf as nullable, which is always sound —
// it just forgoes the self-comparison/complement optimizations.
type TypeOf func(stmt.Expr) (stmt.Type, bool)

// Simplifier carries the (optional) type environment the complement and
// self-comparison rules consult. It holds no mutable state of its own, so
// many Simplifiers (or the zero value) can run concurrently over
// independent statements that share one read-only Schema (§5).
type Simplifier struct {
	TypeOf TypeOf
}

var defaultSimplifier = Simplifier{}

// Statement simplifies every filter-bearing Expr embedded in s, using no
// schema-derived type information (a conservative, always-sound default).
func Statement(s stmt.Statement) stmt.Statement {
	return defaultSimplifier.Statement(s)
}

func (s Simplifier) isNonNullable(e stmt.Expr) bool {
	if v, ok := e.(stmt.ExprValue); ok {
		return !stmt.IsNull(v.Value)
	}
	if s.TypeOf == nil {
		return false
	}
	t, ok := s.TypeOf(e)
	if !ok {
		return false
	}
	return t.NonNullable()
}

// Statement simplifies the Exprs embedded in st: a Query's Select filters
// (every branch of a set operation), an Insert's ReturningExpr, an Update's
// filter, assignment values and ReturningExpr, and a Delete's filter. A
// Select's Returning, a Query's With and sub-statements carried by ExprStmt
// are left as they are.
func (s Simplifier) Statement(st stmt.Statement) stmt.Statement {
	switch v := st.(type) {
	case stmt.Query:
		v.Body = s.simplifyExprSet(v.Body)
		return v
	case stmt.Insert:
		if v.Returning.Kind == stmt.ReturningExpr {
			v.Returning.Expr = s.Expr(v.Returning.Expr)
		}
		return v
	case stmt.Update:
		v.Filter = s.Expr(v.Filter)
		for i := range v.Assignments {
			v.Assignments[i].Value = s.Expr(v.Assignments[i].Value)
		}
		if v.Returning.Kind == stmt.ReturningExpr {
			v.Returning.Expr = s.Expr(v.Returning.Expr)
		}
		return v
	case stmt.Delete:
		v.Filter = s.Expr(v.Filter)
		return v
	default:
		return st
	}
}

func (s Simplifier) simplifyExprSet(set stmt.ExprSet) stmt.ExprSet {
	switch set.Kind {
	case stmt.ExprSetSelect:
		sel := *set.Select
		sel.Filter = s.Expr(sel.Filter)
		set.Select = &sel
	case stmt.ExprSetSetOp:
		op := *set.SetOp
		for i := range op.Branches {
			op.Branches[i] = s.simplifyExprSet(op.Branches[i])
		}
		set.SetOp = &op
	}
	return set
}
