package writeplan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/toasty-go/internal/capability"
	"github.com/satishbabariya/toasty-go/internal/fixtures"
	"github.com/satishbabariya/toasty-go/internal/opir"
	"github.com/satishbabariya/toasty-go/internal/stmt"
	"github.com/satishbabariya/toasty-go/internal/writeplan"
)

func countActions[T opir.Action](actions []opir.Action) (n int) {
	for _, a := range actions {
		if _, ok := a.(T); ok {
			n++
		}
	}
	return n
}

// Property 7 (Returning constantization): inserting a Todo whose every field
// is a bound literal (no nested BelongsTo, no server-generated value beyond
// the @auto id which is itself resolved to a literal UUID at plan time)
// evaluates its ReturningModel in-memory via a SetVar, with no ExecStatement
// round trip at all.
func TestWritePlan_ConstantizesLiteralReturning(t *testing.T) {
	s := fixtures.UserTodoProfileSchema()
	ins := stmt.Insert{
		Target: stmt.InsertTarget{Kind: stmt.InsertTargetModel, Model: "Todo"},
		Source: stmt.Values{Rows: []stmt.ExprRecordLit{{ByField: map[int]stmt.Expr{
			fixtures.TodoTitle:  stmt.ExprValue{Value: stmt.StringValue("buy milk")},
			fixtures.TodoUserID: stmt.ExprValue{Value: stmt.IdValue{Model: "User", Key: stmt.StringValue("u1")}},
		}}}},
		Returning: stmt.Returning{Kind: stmt.ReturningModel},
	}

	plan, err := writeplan.Plan(s, capability.SQLite, ins)
	require.NoError(t, err)

	assert.Equal(t, 0, countActions[opir.ExecStatement](plan.Actions))
	assert.Equal(t, 1, countActions[opir.SetVar](plan.Actions))
}

// S5: a nested BelongsTo insert (Todo.create().user(User.create()...)) plans
// the parent User row as its own dependency: the resulting dependency Var
// must appear in the Todo ExecStatement's Inputs, and the user_id column
// value must be the ExprArg{Position:0} placeholder threading that
// dependency's single Returning column through at Eval time.
func TestWritePlan_S5_BelongsToNestedInsert(t *testing.T) {
	s := fixtures.UserTodoProfileSchema()
	nestedUser := stmt.Insert{
		Target: stmt.InsertTarget{Kind: stmt.InsertTargetModel, Model: "User"},
		Source: stmt.Values{Rows: []stmt.ExprRecordLit{{ByField: map[int]stmt.Expr{
			fixtures.UserName:  stmt.ExprValue{Value: stmt.StringValue("jane")},
			fixtures.UserEmail: stmt.ExprValue{Value: stmt.StringValue("jane@example.com")},
		}}}},
	}
	ins := stmt.Insert{
		Target: stmt.InsertTarget{Kind: stmt.InsertTargetModel, Model: "Todo"},
		Source: stmt.Values{Rows: []stmt.ExprRecordLit{{ByField: map[int]stmt.Expr{
			fixtures.TodoTitle:  stmt.ExprValue{Value: stmt.StringValue("buy milk")},
			fixtures.TodoUserID: stmt.ExprStmt{Stmt: nestedUser},
		}}}},
		Returning: stmt.Returning{Kind: stmt.ReturningModel},
	}

	plan, err := writeplan.Plan(s, capability.SQLite, ins)
	require.NoError(t, err)

	require.Equal(t, 2, countActions[opir.ExecStatement](plan.Actions))

	var userExec, todoExec *opir.ExecStatement
	for _, a := range plan.Actions {
		es, ok := a.(opir.ExecStatement)
		if !ok {
			continue
		}
		es := es
		if es.Out == plan.Root {
			todoExec = &es
			continue
		}
		userExec = &es
	}
	require.NotNil(t, userExec)
	require.NotNil(t, todoExec)
	assert.Empty(t, userExec.Inputs)
	assert.Contains(t, todoExec.Inputs, userExec.Out)
}

// S4: updating User.email on a backend without native unique secondary
// indices (DynamoStyleKV) compiles the assignment into a FindPkByIndex
// resolving the filter's old email value to the row's primary key, followed
// by an opir.ReadModifyWrite gated on that same old value -- never a plain
// ExecStatement.
func TestWritePlan_S4_UniqueIndexMaintenance(t *testing.T) {
	s := fixtures.UserTodoProfileSchema()
	upd := stmt.Update{
		Target: stmt.UpdateTarget{Kind: stmt.InsertTargetModel, Model: "User"},
		Filter: stmt.Eq(stmt.Field(0, fixtures.UserEmail), stmt.ExprValue{Value: stmt.StringValue("a")}),
		Assignments: []stmt.Assignment{
			{FieldIndex: fixtures.UserEmail, Value: stmt.ExprValue{Value: stmt.StringValue("b")}},
		},
		Returning: stmt.Returning{Kind: stmt.ReturningNone},
	}

	plan, err := writeplan.Plan(s, capability.DynamoStyleKV, upd)
	require.NoError(t, err)

	assert.Equal(t, 0, countActions[opir.ExecStatement](plan.Actions))
	require.Equal(t, 1, countActions[opir.FindPkByIndex](plan.Actions))
	require.Equal(t, 1, countActions[opir.ReadModifyWrite](plan.Actions))

	var find opir.FindPkByIndex
	var rmw opir.ReadModifyWrite
	for _, a := range plan.Actions {
		switch v := a.(type) {
		case opir.FindPkByIndex:
			find = v
		case opir.ReadModifyWrite:
			rmw = v
		}
	}
	assert.Equal(t, "users_by_email", find.IndexName)
	assert.Equal(t, find.Out, rmw.Keys)
	assert.True(t, stmt.Equal(rmw.OldKeyExpr, stmt.ExprValue{Value: stmt.StringValue("a")}))
	assert.True(t, stmt.Equal(rmw.NewKeyExpr, stmt.ExprValue{Value: stmt.StringValue("b")}))
}

// The same unique-index assignment on a backend with native support
// (capability.UniqueSecondaryIndex == true) compiles straight to a plain
// ExecStatement -- Property 8, capability obedience.
func TestWritePlan_Property8_CapabilityObedience(t *testing.T) {
	s := fixtures.UserTodoProfileSchema()
	upd := stmt.Update{
		Target: stmt.UpdateTarget{Kind: stmt.InsertTargetModel, Model: "User"},
		Filter: stmt.Eq(stmt.Field(0, fixtures.UserEmail), stmt.ExprValue{Value: stmt.StringValue("a")}),
		Assignments: []stmt.Assignment{
			{FieldIndex: fixtures.UserEmail, Value: stmt.ExprValue{Value: stmt.StringValue("b")}},
		},
		Returning: stmt.Returning{Kind: stmt.ReturningNone},
	}

	plan, err := writeplan.Plan(s, capability.SQLite, upd)
	require.NoError(t, err)

	assert.Equal(t, 1, countActions[opir.ExecStatement](plan.Actions))
	assert.Equal(t, 0, countActions[opir.FindPkByIndex](plan.Actions))
	assert.Equal(t, 0, countActions[opir.ReadModifyWrite](plan.Actions))
}

// S6: replacing a User's HasOne profile disconnects the prior occupant (a
// cascade delete, since Profile.user_id is non-nullable in this fixture)
// before the new Profile row is inserted; the parent User row itself is
// never updated, since no primitive assignment remains once the relation
// assignment is split off.
func TestWritePlan_S6_HasOneReplacement(t *testing.T) {
	s := fixtures.UserTodoProfileSchema()
	newProfile := stmt.Insert{
		Target: stmt.InsertTarget{Kind: stmt.InsertTargetModel, Model: "Profile"},
		Source: stmt.Values{Rows: []stmt.ExprRecordLit{{ByField: map[int]stmt.Expr{
			fixtures.ProfileBio: stmt.ExprValue{Value: stmt.StringValue("new")},
		}}}},
	}
	upd := stmt.Update{
		Target: stmt.UpdateTarget{Kind: stmt.InsertTargetModel, Model: "User"},
		Filter: stmt.Eq(stmt.Field(0, fixtures.UserID), stmt.ExprValue{Value: stmt.IdValue{Model: "User", Key: stmt.StringValue("u1")}}),
		Assignments: []stmt.Assignment{
			{FieldIndex: fixtures.UserProfile, Value: stmt.ExprStmt{Stmt: newProfile}},
		},
		Returning: stmt.Returning{Kind: stmt.ReturningNone},
	}

	plan, err := writeplan.Plan(s, capability.SQLite, upd)
	require.NoError(t, err)

	// One delete (disconnect the old profile) and one insert (the new
	// profile row); no Update on the User row itself.
	require.Len(t, plan.Actions, 2)
	assert.Equal(t, 2, countActions[opir.ExecStatement](plan.Actions))
}
