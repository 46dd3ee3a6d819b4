package lower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/toasty-go/internal/fixtures"
	"github.com/satishbabariya/toasty-go/internal/lower"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

func userQuery(filter stmt.Expr) stmt.Query {
	return stmt.Query{
		Body: stmt.ExprSet{
			Kind: stmt.ExprSetSelect,
			Select: &stmt.Select{
				Source:    stmt.Source{Kind: stmt.SourceModel, Model: "User"},
				Filter:    filter,
				Returning: stmt.Returning{Kind: stmt.ReturningModel},
			},
		},
	}
}

// Property 3: lowering round-trip. After lowering, a Query has no
// model-altitude Source and its Returning is a table->model record built
// purely from ExprColumn/literal leaves -- no ExprField survives.
func TestLowerQuery_NoModelAltitudeSurvives(t *testing.T) {
	s := fixtures.UserTodoProfileSchema()
	q := userQuery(stmt.Eq(stmt.Field(0, fixtures.UserName), stmt.Arg(0)))

	out, err := lower.Statement(s, q)
	require.NoError(t, err)

	lq, ok := out.(stmt.Query)
	require.True(t, ok)
	sel := lq.Body.Select
	require.NotNil(t, sel)
	assert.Equal(t, stmt.SourceTable, sel.Source.Kind)
	assert.Equal(t, "users", sel.Source.Table)
	assert.Equal(t, stmt.ReturningExpr, sel.Returning.Kind)

	assertNoExprField(t, sel.Filter)
	assertNoExprField(t, sel.Returning.Expr)

	rec, ok := sel.Returning.Expr.(stmt.ExprRecord)
	require.True(t, ok)
	assert.Len(t, rec.Fields, 5) // id, name, email, todos(null placeholder), profile(null placeholder)
}

// lowerReturning's ReturningModel case builds one record field per model
// field, including relation fields which own no column -- those fold to a
// NULL placeholder rather than a real ExprColumn.
func TestLowerReturning_RelationFieldsAreNullPlaceholders(t *testing.T) {
	s := fixtures.UserTodoProfileSchema()
	q := userQuery(stmt.True)

	out, err := lower.Statement(s, q)
	require.NoError(t, err)
	sel := out.(stmt.Query).Body.Select
	rec := sel.Returning.Expr.(stmt.ExprRecord)

	_, isNull := rec.Fields[fixtures.UserTodos].(stmt.ExprValue)
	assert.True(t, isNull, "todos field should lower to a literal placeholder, got %#v", rec.Fields[fixtures.UserTodos])
	_, isNull = rec.Fields[fixtures.UserProfile].(stmt.ExprValue)
	assert.True(t, isNull, "profile field should lower to a literal placeholder, got %#v", rec.Fields[fixtures.UserProfile])
}

func assertNoExprField(t *testing.T, e stmt.Expr) {
	t.Helper()
	if e == nil {
		return
	}
	stmt.WalkExpr(e, func(n stmt.Expr) {
		if _, ok := n.(stmt.ExprField); ok {
			t.Fatalf("lowered expression still contains an ExprField: %#v", e)
		}
	})
}

// Property 4: discriminated-column constraint. Reading model A over a table
// shared with B must equality- or prefix-constrain the discriminated PK
// column to A's own prefix, even when the caller's filter says nothing
// about it (S2).
func TestLower_S2_DiscriminatedColumnConstraint(t *testing.T) {
	s := fixtures.DiscriminatedABSchema()
	q := stmt.Query{
		Body: stmt.ExprSet{
			Kind: stmt.ExprSetSelect,
			Select: &stmt.Select{
				Source:    stmt.Source{Kind: stmt.SourceModel, Model: "A"},
				Filter:    stmt.Eq(stmt.Field(0, 0), stmt.ExprValue{Value: stmt.StringValue("x")}),
				Returning: stmt.Returning{Kind: stmt.ReturningModel},
			},
		},
	}

	out, err := lower.Statement(s, q)
	require.NoError(t, err)
	sel := out.(stmt.Query).Body.Select

	// The caller's filter already equality-constrains the pk column, so no
	// extra BeginsWith guard is injected.
	assertFilterConstrainsValue(t, sel.Filter, "x")
	_, isPattern := sel.Filter.(stmt.ExprPattern)
	assert.False(t, isPattern, "equality filter on the discriminated column should not also get a BeginsWith guard")
}

// When the caller's filter says nothing about the discriminated column, a
// BeginsWith guard must be injected so A's read never sees B's rows.
func TestLower_DiscriminatedColumnConstraint_NoFilter(t *testing.T) {
	s := fixtures.DiscriminatedABSchema()
	q := stmt.Query{
		Body: stmt.ExprSet{
			Kind: stmt.ExprSetSelect,
			Select: &stmt.Select{
				Source:    stmt.Source{Kind: stmt.SourceModel, Model: "A"},
				Filter:    stmt.True,
				Returning: stmt.Returning{Kind: stmt.ReturningModel},
			},
		},
	}

	out, err := lower.Statement(s, q)
	require.NoError(t, err)
	sel := out.(stmt.Query).Body.Select

	pattern, ok := sel.Filter.(stmt.ExprPattern)
	require.True(t, ok, "expected an injected BeginsWith guard, got %#v", sel.Filter)
	assert.Equal(t, stmt.PatternBeginsWith, pattern.Kind)
	lit := pattern.Pattern.(stmt.ExprValue).Value.(stmt.StringValue)
	assert.Equal(t, "0#", string(lit))
}

func assertFilterConstrainsValue(t *testing.T, filter stmt.Expr, want string) {
	t.Helper()
	found := false
	stmt.WalkExpr(filter, func(e stmt.Expr) {
		v, ok := e.(stmt.ExprValue)
		if !ok {
			return
		}
		if s, ok := v.Value.(stmt.StringValue); ok && string(s) == want {
			found = true
		}
	})
	assert.True(t, found, "expected filter to reference literal %q, got %#v", want, filter)
}
