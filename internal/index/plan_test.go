package index_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/toasty-go/internal/capability"
	"github.com/satishbabariya/toasty-go/internal/fixtures"
	"github.com/satishbabariya/toasty-go/internal/index"
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

func usersTable(t *testing.T) schema.Table {
	t.Helper()
	s := fixtures.UserTodoProfileSchema()
	return s.Db.Tables[0]
}

// Property 5: index selection optimality on the primary key. A filter that
// equality-constrains the PK column must select the PK index, not the unique
// secondary index on email also present on the table: that index has no
// match for a filter on id, so the PK index is the only candidate.
func TestSelect_PKEqualityWinsOverSecondaryIndex(t *testing.T) {
	table := usersTable(t)
	idCol := stmt.ExprColumn{Column: "id"}
	filter := stmt.Eq(idCol, stmt.ExprValue{Value: stmt.StringValue("u1")})

	plan := index.Select(table, capability.SQLite, filter)

	assert.Equal(t, "users_pk", plan.Index.Name)
	assert.True(t, stmt.Equal(plan.IndexFilter, filter))
	assert.True(t, stmt.IsTrue(plan.ResultFilter))
}

// An equality filter on a unique secondary index column is selected when the
// PK itself isn't constrained.
func TestSelect_UniqueSecondaryIndexOnEmailEquality(t *testing.T) {
	table := usersTable(t)
	emailCol := stmt.ExprColumn{Column: "email"}
	filter := stmt.Eq(emailCol, stmt.ExprValue{Value: stmt.StringValue("a@example.com")})

	plan := index.Select(table, capability.SQLite, filter)

	assert.Equal(t, "users_by_email", plan.Index.Name)
	assert.True(t, stmt.Equal(plan.IndexFilter, filter))
}

// A filter that matches no declared index's leading column falls back to a
// full table scan via the PK index, with the whole filter routed to
// ResultFilter.
func TestSelect_NoIndexMatch_FallsBackToPKScan(t *testing.T) {
	table := usersTable(t)
	nameCol := stmt.ExprColumn{Column: "name"}
	filter := stmt.Eq(nameCol, stmt.ExprValue{Value: stmt.StringValue("jane")})

	plan := index.Select(table, capability.SQLite, filter)

	assert.Equal(t, "users_pk", plan.Index.Name)
	assert.True(t, stmt.IsTrue(plan.IndexFilter))
	assert.True(t, stmt.Equal(plan.ResultFilter, filter))
}

// An AND filter combining a PK-index conjunct with an unrelated conjunct
// partitions: the PK conjunct goes to IndexFilter, the rest to ResultFilter.
func TestSelect_PartitionsMixedFilter(t *testing.T) {
	table := usersTable(t)
	idCol := stmt.ExprColumn{Column: "id"}
	nameCol := stmt.ExprColumn{Column: "name"}
	idEq := stmt.Eq(idCol, stmt.ExprValue{Value: stmt.StringValue("u1")})
	nameEq := stmt.Eq(nameCol, stmt.ExprValue{Value: stmt.StringValue("jane")})
	filter := stmt.And(idEq, nameEq)

	plan := index.Select(table, capability.SQLite, filter)

	assert.Equal(t, "users_pk", plan.Index.Name)
	assert.True(t, stmt.Equal(plan.IndexFilter, idEq))
	assert.True(t, stmt.Equal(plan.ResultFilter, nameEq))
}

// When the backend lacks PrimaryKeyNePredicate, a != on the PK column can't
// be pushed into the index lookup: it is neutralized in both IndexFilter and
// ResultFilter and the original filter is appended whole to PostFilter.
func TestSelect_PkNePredicateGap(t *testing.T) {
	table := usersTable(t)
	idCol := stmt.ExprColumn{Column: "id"}
	filter := stmt.Ne(idCol, stmt.ExprValue{Value: stmt.StringValue("u1")})

	dynamo := capability.DynamoStyleKV
	require.False(t, dynamo.PrimaryKeyNePredicate)

	plan := index.Select(table, dynamo, filter)

	assert.True(t, stmt.IsTrue(plan.IndexFilter))
	assert.True(t, stmt.IsTrue(plan.ResultFilter))
	assert.True(t, stmt.Equal(plan.PostFilter, filter))
}

// A backend that does support PrimaryKeyNePredicate hands the != to the
// engine as the ResultFilter of a PK-index scan (the partition-scoped PK
// column takes equality matches only), without the PostFilter escape hatch.
func TestSelect_PkNePredicateSupported(t *testing.T) {
	table := usersTable(t)
	idCol := stmt.ExprColumn{Column: "id"}
	filter := stmt.Ne(idCol, stmt.ExprValue{Value: stmt.StringValue("u1")})

	plan := index.Select(table, capability.SQLite, filter)

	assert.True(t, stmt.Equal(plan.ResultFilter, filter))
	assert.Nil(t, plan.PostFilter)
}
