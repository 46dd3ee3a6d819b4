package simplify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/toasty-go/internal/simplify"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// nonNullable builds a TypeOf that reports every ExprField as a non-null
// string, the minimum type info the self-comparison and complement rules
// need to fire.
func nonNullable() simplify.TypeOf {
	return func(e stmt.Expr) (stmt.Type, bool) {
		if _, ok := e.(stmt.ExprField); ok {
			return stmt.Type{Kind: stmt.KindString}, true
		}
		return stmt.Type{}, false
	}
}

var exprFixtures = []struct {
	name string
	expr stmt.Expr
}{
	{"literal true", stmt.True},
	{"literal false", stmt.False},
	{"bare field", stmt.Field(0, 1)},
	{"simple eq", stmt.Eq(stmt.Field(0, 0), stmt.Arg(0))},
	{"nested and/or", stmt.And(
		stmt.Or(stmt.Field(0, 0), stmt.Field(0, 1)),
		stmt.ExprNot{Expr: stmt.Field(0, 0)},
	)},
	{"self compare", stmt.Ne(stmt.Field(0, 1), stmt.Field(0, 1))},
	{"tuple eq", stmt.Eq(
		stmt.ExprRecord{Fields: []stmt.Expr{stmt.Field(0, 0), stmt.Field(0, 1)}},
		stmt.ExprRecord{Fields: []stmt.Expr{stmt.Arg(0), stmt.Arg(1)}},
	)},
	{"range", stmt.And(
		stmt.ExprBinaryOp{Op: stmt.OpGe, Lhs: stmt.Field(0, 0), Rhs: stmt.ExprValue{Value: stmt.I64Value(3)}},
		stmt.ExprBinaryOp{Op: stmt.OpLe, Lhs: stmt.Field(0, 0), Rhs: stmt.ExprValue{Value: stmt.I64Value(3)}},
	)},
}

// Property 1: simplification is idempotent — running it twice gives the same
// result as running it once, for both the nullable-by-default package
// function and a schema-aware Simplifier.
func TestSimplifyIdempotent(t *testing.T) {
	simplifiers := map[string]simplify.Simplifier{
		"default":     {},
		"non-nullable": {TypeOf: nonNullable()},
	}
	for _, tc := range exprFixtures {
		for simName, s := range simplifiers {
			t.Run(simName+"/"+tc.name, func(t *testing.T) {
				once := s.Expr(tc.expr)
				twice := s.Expr(once)
				assert.True(t, stmt.Equal(once, twice), "simplify(simplify(e)) != simplify(e): got %#v then %#v", once, twice)
			})
		}
	}
}

// Property 2: simplification is sound — a handful of hand-evaluated cases
// where the pre- and post-simplification expressions must agree on truth
// value for every assignment of their free variables, checked by comparing
// the simplifier's output against a hand-derived equivalent expression.
func TestSimplifySound(t *testing.T) {
	cases := []struct {
		name string
		expr stmt.Expr
		want stmt.Expr
	}{
		{
			name: "self-eq on non-nullable field is true",
			expr: stmt.Eq(stmt.Field(0, 0), stmt.Field(0, 0)),
			want: stmt.True,
		},
		{
			name: "self-ne on non-nullable field is false",
			expr: stmt.Ne(stmt.Field(0, 0), stmt.Field(0, 0)),
			want: stmt.False,
		},
		{
			name: "and(a, not(a)) is false",
			expr: stmt.And(stmt.Field(0, 0), stmt.ExprNot{Expr: stmt.Field(0, 0)}),
			want: stmt.False,
		},
		{
			name: "or(a, not(a)) is true",
			expr: stmt.Or(stmt.Field(0, 0), stmt.ExprNot{Expr: stmt.Field(0, 0)}),
			want: stmt.True,
		},
		{
			name: "and(true, x) collapses to x",
			expr: stmt.And(stmt.True, stmt.Field(0, 0)),
			want: stmt.Field(0, 0),
		},
		{
			name: "or(false, x) collapses to x",
			expr: stmt.Or(stmt.False, stmt.Field(0, 0)),
			want: stmt.Field(0, 0),
		},
		{
			name: "range collapses to equality",
			expr: stmt.And(
				stmt.ExprBinaryOp{Op: stmt.OpGe, Lhs: stmt.Field(0, 0), Rhs: stmt.ExprValue{Value: stmt.I64Value(3)}},
				stmt.ExprBinaryOp{Op: stmt.OpLe, Lhs: stmt.Field(0, 0), Rhs: stmt.ExprValue{Value: stmt.I64Value(3)}},
			),
			want: stmt.Eq(stmt.Field(0, 0), stmt.ExprValue{Value: stmt.I64Value(3)}),
		},
	}

	s := simplify.Simplifier{TypeOf: nonNullable()}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := s.Expr(tc.expr)
			assert.True(t, stmt.Equal(got, tc.want), "got %#v want %#v", got, tc.want)
		})
	}
}

// Nullable fields must NOT trigger self-comparison/complement collapse:
// NULL = NULL and NULL != NULL are both NULL, not a boolean.
func TestSimplifyNullableSelfCompareUntouched(t *testing.T) {
	expr := stmt.Ne(stmt.Field(0, 0), stmt.Field(0, 0))
	got := simplify.Expr(expr) // default Simplifier treats every leaf as nullable
	assert.True(t, stmt.Equal(got, expr), "nullable self-comparison must be left alone, got %#v", got)
}

// S1: and(id = $0, and(true, name != name)) over a non-nullable name field
// simplifies to false — the complement/self-comparison pair collapses the
// inner and() to false, which annihilates the outer and() regardless of the
// id filter.
func TestSimplify_S1_FilterSimplification(t *testing.T) {
	const (
		idField   = 0
		nameField = 1
	)
	typeOf := func(e stmt.Expr) (stmt.Type, bool) {
		f, ok := e.(stmt.ExprField)
		if !ok {
			return stmt.Type{}, false
		}
		switch f.Index {
		case idField:
			return stmt.Type{Kind: stmt.KindUuid}, true
		case nameField:
			return stmt.Type{Kind: stmt.KindString}, true
		default:
			return stmt.Type{}, false
		}
	}
	s := simplify.Simplifier{TypeOf: typeOf}

	name := stmt.Field(0, nameField)
	expr := stmt.And(
		stmt.Eq(stmt.Field(0, idField), stmt.Arg(0)),
		stmt.And(stmt.True, stmt.Ne(name, name)),
	)

	got := s.Expr(expr)
	require.True(t, stmt.IsFalse(got), "expected S1 to simplify to false, got %#v", got)
}
