package materialize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/toasty-go/internal/capability"
	"github.com/satishbabariya/toasty-go/internal/fixtures"
	"github.com/satishbabariya/toasty-go/internal/materialize"
	"github.com/satishbabariya/toasty-go/internal/opir"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

func countExecStatements(actions []opir.Action) int {
	n := 0
	for _, a := range actions {
		if _, ok := a.(opir.ExecStatement); ok {
			n++
		}
	}
	return n
}

func userWithTodosQuery() stmt.Query {
	return stmt.Query{
		Body: stmt.ExprSet{
			Kind: stmt.ExprSetSelect,
			Select: &stmt.Select{
				Source:    stmt.Source{Kind: stmt.SourceModel, Model: "User"},
				Filter:    stmt.Eq(stmt.Field(0, fixtures.UserName), stmt.ExprValue{Value: stmt.StringValue("jane")}),
				Returning: stmt.Returning{Kind: stmt.ReturningModel},
			},
		},
		With: []stmt.With{{
			Relation: "todos",
			Stmt: stmt.Query{
				Body: stmt.ExprSet{
					Kind: stmt.ExprSetSelect,
					Select: &stmt.Select{
						Source:    stmt.Source{Kind: stmt.SourceModel, Model: "Todo"},
						Filter:    stmt.True,
						Returning: stmt.Returning{Kind: stmt.ReturningModel},
					},
				},
			},
		}},
	}
}

// Property 6 (materialization non-duplication) / S3 (eager load): User.
// filter(...).include(todos) must compile to exactly two ExecStatement
// round trips -- one for the parent, one for all matching Todos via a single
// IN-list bound to the parent's materialized keys -- never one child query
// per parent row.
func TestMaterialize_S3_EagerLoadIsTwoExecStatements(t *testing.T) {
	s := fixtures.UserTodoProfileSchema()
	plan, err := materialize.Plan(s, capability.SQLite, userWithTodosQuery())
	require.NoError(t, err)

	assert.Equal(t, 2, countExecStatements(plan.Actions))

	var merge *opir.NestedMerge
	for _, a := range plan.Actions {
		if nm, ok := a.(opir.NestedMerge); ok {
			m := nm
			merge = &m
		}
	}
	require.NotNil(t, merge, "expected a NestedMerge action assembling parent+children")
	assert.Equal(t, plan.Root, merge.Out)
	require.Len(t, merge.Root.Children, 1)

	// The child ExecStatement must carry the parent's output Var as an
	// Input -- the IN-list is bound against the parent's materialized PK
	// column at Eval time, not re-queried per row.
	childSource := merge.Root.Children[0].Source
	var childExec *opir.ExecStatement
	for _, a := range plan.Actions {
		if es, ok := a.(opir.ExecStatement); ok && es.Out == childSource {
			e := es
			childExec = &e
		}
	}
	require.NotNil(t, childExec)
	assert.Contains(t, childExec.Inputs, merge.Root.Source)
}

// A plain, non-eager-load query compiles to a single ExecStatement with no
// NestedMerge at all.
func TestMaterialize_PlainQuery_SingleExecStatement(t *testing.T) {
	s := fixtures.UserTodoProfileSchema()
	q := stmt.Query{
		Body: stmt.ExprSet{
			Kind: stmt.ExprSetSelect,
			Select: &stmt.Select{
				Source:    stmt.Source{Kind: stmt.SourceModel, Model: "User"},
				Filter:    stmt.Eq(stmt.Field(0, fixtures.UserID), stmt.ExprValue{Value: stmt.IdValue{Model: "User", Key: stmt.StringValue("u1")}}),
				Returning: stmt.Returning{Kind: stmt.ReturningModel},
			},
		},
	}
	plan, err := materialize.Plan(s, capability.SQLite, q)
	require.NoError(t, err)

	assert.Equal(t, 1, countExecStatements(plan.Actions))
	for _, a := range plan.Actions {
		_, isMerge := a.(opir.NestedMerge)
		assert.False(t, isMerge)
	}
}

// Against a KV-capability backend, a PK-equality read compiles to a point
// GetByKey (seeded by a SetVar), not an ExecStatement at all.
func TestMaterialize_KVBackend_PKEqualityIsGetByKey(t *testing.T) {
	s := fixtures.UserTodoProfileSchema()
	q := stmt.Query{
		Body: stmt.ExprSet{
			Kind: stmt.ExprSetSelect,
			Select: &stmt.Select{
				Source:    stmt.Source{Kind: stmt.SourceModel, Model: "User"},
				Filter:    stmt.Eq(stmt.Field(0, fixtures.UserID), stmt.ExprValue{Value: stmt.IdValue{Model: "User", Key: stmt.StringValue("u1")}}),
				Returning: stmt.Returning{Kind: stmt.ReturningModel},
			},
		},
	}
	plan, err := materialize.Plan(s, capability.DynamoStyleKV, q)
	require.NoError(t, err)

	assert.Equal(t, 0, countExecStatements(plan.Actions))
	found := false
	for _, a := range plan.Actions {
		if _, ok := a.(opir.GetByKey); ok {
			found = true
		}
	}
	assert.True(t, found, "expected a GetByKey action for a KV-backend PK-equality read")
}
