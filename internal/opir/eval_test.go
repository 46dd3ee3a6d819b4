package opir_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/toasty-go/internal/capability"
	"github.com/satishbabariya/toasty-go/internal/driver"
	"github.com/satishbabariya/toasty-go/internal/opir"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// fakeDriver is a minimal in-memory driver.Driver stand-in: it answers each
// driver call through a caller-supplied callback so eval tests can
// exercise opir.Eval's wiring (wave scheduling, NestedMerge assembly, Var
// threading) without any real storage engine.
type fakeDriver struct {
	cap      capability.Capability
	execFn   func(st stmt.Statement, inputs []driver.Row) ([]driver.Row, error)
	getByKey func(table string, keys []driver.Row) ([]driver.Row, error)
	findPk   func(table, index string, keys []driver.Row) ([]driver.Row, error)
}

func (f *fakeDriver) Capability() capability.Capability { return f.cap }
func (f *fakeDriver) ExecStatement(_ context.Context, st stmt.Statement, inputs []driver.Row) ([]driver.Row, error) {
	return f.execFn(st, inputs)
}
func (f *fakeDriver) GetByKey(_ context.Context, table string, keys []driver.Row) ([]driver.Row, error) {
	return f.getByKey(table, keys)
}
func (f *fakeDriver) FindPkByIndex(_ context.Context, table, indexName string, keys []driver.Row) ([]driver.Row, error) {
	return f.findPk(table, indexName, keys)
}
func (f *fakeDriver) DeleteByKey(context.Context, string, []driver.Row) error { return nil }
func (f *fakeDriver) UpdateByKey(context.Context, string, []driver.Row, []stmt.Assignment, stmt.Expr) ([]driver.Row, error) {
	return nil, nil
}
func (f *fakeDriver) QueryPk(context.Context, string, stmt.Expr, stmt.Expr) ([]driver.Row, error) {
	return nil, nil
}
func (f *fakeDriver) ReadModifyWrite(context.Context, string, []driver.Row, string, stmt.Value, stmt.Value, []stmt.Assignment) ([]driver.Row, error) {
	return nil, nil
}

// A two-stage plan (GetByKey seeded by a SetVar) threads the seed row
// through correctly and ends up bound to Root.
func TestEval_ThreadsVarsAcrossWaves(t *testing.T) {
	seed := opir.Var(0)
	out := opir.Var(1)
	plan := opir.NewPlan([]opir.Action{
		opir.SetVar{Out: seed, Rows: []driver.Row{{stmt.StringValue("u1")}}},
		opir.GetByKey{Out: out, Keys: seed, Table: "users"},
	}, out)

	var gotKeys []driver.Row
	d := &fakeDriver{
		cap: capability.SQLite,
		getByKey: func(table string, keys []driver.Row) ([]driver.Row, error) {
			gotKeys = keys
			return []driver.Row{{stmt.StringValue("u1"), stmt.StringValue("jane")}}, nil
		},
	}

	rows, err := opir.Eval(context.Background(), d, plan)
	require.NoError(t, err)
	require.Len(t, gotKeys, 1)
	assert.Equal(t, stmt.StringValue("u1"), gotKeys[0][0])
	require.Len(t, rows, 1)
	assert.Equal(t, stmt.StringValue("jane"), rows[0][1])
}

// A plan with a dependency cycle is rejected by the scheduler rather than
// hanging or silently dropping an Action.
func TestEval_RejectsDependencyCycle(t *testing.T) {
	a := opir.Var(0)
	b := opir.Var(1)
	plan := opir.Plan{
		Actions: []opir.Action{
			opir.GetByKey{Out: a, Keys: b, Table: "x"},
			opir.GetByKey{Out: b, Keys: a, Table: "x"},
		},
		Root: a,
	}
	d := &fakeDriver{cap: capability.SQLite}
	_, err := opir.Eval(context.Background(), d, plan)
	assert.Error(t, err)
}

// ReadModifyWrite's key expressions must already be literal by Eval time;
// a non-literal OldKeyExpr/NewKeyExpr is a planner bug surfaced as an error,
// not silently coerced.
func TestEval_ReadModifyWriteRejectsNonLiteralKey(t *testing.T) {
	keys := opir.Var(0)
	out := opir.Var(1)
	plan := opir.NewPlan([]opir.Action{
		opir.SetVar{Out: keys, Rows: []driver.Row{{stmt.StringValue("pk1")}}},
		opir.ReadModifyWrite{
			Out:        out,
			Table:      "users",
			Keys:       keys,
			IndexTable: "users_by_email",
			OldKeyExpr: stmt.ExprColumn{Column: "email"}, // not a literal
			NewKeyExpr: stmt.ExprValue{Value: stmt.StringValue("b")},
		},
	}, out)

	d := &fakeDriver{cap: capability.SQLite}
	_, err := opir.Eval(context.Background(), d, plan)
	assert.Error(t, err)
}

// NestedMerge assembles a parent row stream with a qualifying child stream
// in memory, using each NestedChild's Qualify predicate -- the in-process
// equivalent of materialize's eager-load assembly (S3), exercised here
// directly against canned parent/child rows instead of a live query.
func TestEval_NestedMergeAssemblesChildren(t *testing.T) {
	parents := opir.Var(0)
	children := opir.Var(1)
	merged := opir.Var(2)

	plan := opir.NewPlan([]opir.Action{
		opir.SetVar{Out: parents, Rows: []driver.Row{
			{stmt.StringValue("u1")},
			{stmt.StringValue("u2")},
		}},
		opir.SetVar{Out: children, Rows: []driver.Row{
			{stmt.StringValue("t1"), stmt.StringValue("u1")},
			{stmt.StringValue("t2"), stmt.StringValue("u2")},
			{stmt.StringValue("t3"), stmt.StringValue("u1")},
		}},
		opir.NestedMerge{
			Out: merged,
			Root: opir.NestedLevel{
				Source: parents,
				Children: []opir.NestedChild{{
					Source: children,
					Qualify: func(parent, child driver.Row) bool {
						return stmt.Equal(stmt.ExprValue{Value: parent[0]}, stmt.ExprValue{Value: child[1]})
					},
				}},
				Projection: func(row driver.Row, kids [][]driver.Row) driver.Row {
					return driver.Row{row[0], stmt.I64Value(int64(len(kids[0])))}
				},
			},
		},
	}, merged)

	d := &fakeDriver{cap: capability.SQLite}
	rows, err := opir.Eval(context.Background(), d, plan)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, stmt.I64Value(2), rows[0][1]) // u1 has two todos
	assert.Equal(t, stmt.I64Value(1), rows[1][1]) // u2 has one todo
}
