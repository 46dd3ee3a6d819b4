// Package fixtures builds the small, self-contained schemas used by the
// scenario tests (spec.md's S1-S6 worked examples) and by cmd/toastyplan's
// explain command. These are scaffolding, not planner logic, so they are
// not grounded in any one teacher file; shape follows spec.md's own
// example wording directly.
package fixtures

import (
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// TypeOf builds a simplify.TypeOf-shaped lookup (returned as a plain func to
// keep internal/simplify free of a schema import) resolving a nesting-0
// ExprField against model's declared field types, so the self-comparison and
// complement rules can see which fields are non-nullable.
func TypeOf(model schema.Model) func(stmt.Expr) (stmt.Type, bool) {
	return func(e stmt.Expr) (stmt.Type, bool) {
		f, ok := e.(stmt.ExprField)
		if !ok || f.Nesting != 0 || f.Index >= len(model.Fields) {
			return stmt.Type{}, false
		}
		field := model.Fields[f.Index]
		t := field.Type
		t.Nullable = field.Nullable
		return t, true
	}
}

func ptrInt(n int) *int { return &n }

// Field indices, named here once so scenario-building code in tests and
// cmd/toastyplan doesn't scatter magic numbers.
const (
	UserID    = 0
	UserName  = 1
	UserEmail = 2
	UserTodos = 3
	UserProfile = 4

	TodoID     = 0
	TodoTitle  = 1
	TodoUserID = 2

	ProfileID     = 0
	ProfileBio    = 1
	ProfileUserID = 2
)

// UserTodoProfileSchema builds the User/Todo/Profile schema used by S3
// (eager load), S5 (belongs-to nested insert) and S6 (has-one replacement):
// a User has many Todos and at most one Profile; Todo and Profile each
// belong to a User.
func UserTodoProfileSchema() schema.Schema {
	users := schema.Model{
		ID:   0,
		Name: "User",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.FieldPrimitive, Type: stmt.Type{Kind: stmt.KindUuid}, Auto: true},
			{Name: "name", Kind: schema.FieldPrimitive, Type: stmt.Type{Kind: stmt.KindString}, MaxLength: ptrInt(255)},
			{Name: "email", Kind: schema.FieldPrimitive, Type: stmt.Type{Kind: stmt.KindString}, MaxLength: ptrInt(255)},
			{Name: "todos", Kind: schema.FieldHasMany, TargetModel: "Todo", PairField: ptrInt(TodoUserID)},
			{Name: "profile", Kind: schema.FieldHasOne, Nullable: true, TargetModel: "Profile", PairField: ptrInt(ProfileUserID)},
		},
		PrimaryKey: []int{UserID},
		Table:      0,
	}
	todos := schema.Model{
		ID:   1,
		Name: "Todo",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.FieldPrimitive, Type: stmt.Type{Kind: stmt.KindUuid}, Auto: true},
			{Name: "title", Kind: schema.FieldPrimitive, Type: stmt.Type{Kind: stmt.KindString}, MaxLength: ptrInt(500)},
			{Name: "user_id", Kind: schema.FieldBelongsTo, Type: stmt.Type{Kind: stmt.KindUuid}, TargetModel: "User", PairField: ptrInt(UserTodos)},
		},
		PrimaryKey: []int{TodoID},
		Table:      1,
	}
	profiles := schema.Model{
		ID:   2,
		Name: "Profile",
		Fields: []schema.Field{
			{Name: "id", Kind: schema.FieldPrimitive, Type: stmt.Type{Kind: stmt.KindUuid}, Auto: true},
			{Name: "bio", Kind: schema.FieldPrimitive, Type: stmt.Type{Kind: stmt.KindString}, Nullable: true, MaxLength: ptrInt(2000)},
			{Name: "user_id", Kind: schema.FieldBelongsTo, Type: stmt.Type{Kind: stmt.KindUuid}, TargetModel: "User", PairField: ptrInt(UserProfile)},
		},
		PrimaryKey: []int{ProfileID},
		Table:      2,
	}

	usersTable := schema.Table{
		ID:   0,
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", Storage: schema.StorageUuid},
			{Name: "name", Storage: schema.StorageVarChar},
			{Name: "email", Storage: schema.StorageVarChar},
		},
		Indices: []schema.Index{
			{Name: "users_pk", Columns: []int{0}, Unique: true, PartitionScope: []int{0}},
			{Name: "users_by_email", Columns: []int{2}, Unique: true},
		},
	}
	todosTable := schema.Table{
		ID:   1,
		Name: "todos",
		Columns: []schema.Column{
			{Name: "id", Storage: schema.StorageUuid},
			{Name: "title", Storage: schema.StorageVarChar},
			{Name: "user_id", Storage: schema.StorageUuid},
		},
		Indices: []schema.Index{
			{Name: "todos_pk", Columns: []int{0}, Unique: true, PartitionScope: []int{0}},
		},
	}
	profilesTable := schema.Table{
		ID:   2,
		Name: "profiles",
		Columns: []schema.Column{
			{Name: "id", Storage: schema.StorageUuid},
			{Name: "bio", Storage: schema.StorageVarChar},
			{Name: "user_id", Storage: schema.StorageUuid},
		},
		Indices: []schema.Index{
			{Name: "profiles_pk", Columns: []int{0}, Unique: true, PartitionScope: []int{0}},
			{Name: "profiles_by_user", Columns: []int{2}, Unique: true},
		},
	}

	return schema.Schema{
		App: schema.AppSchema{Models: []schema.Model{users, todos, profiles}},
		Db:  schema.DbSchema{Tables: []schema.Table{usersTable, todosTable, profilesTable}},
		Mappings: []schema.Mapping{
			identityMapping(0, 0, []string{"id", "name", "email"}, 5),
			identityMapping(1, 1, []string{"id", "title", "user_id"}, 3),
			identityMapping(2, 2, []string{"id", "bio", "user_id"}, 3),
		},
	}
}

// identityMapping builds the straight-through field<->column mapping used
// by every fixture model: the first len(columns) fields map 1:1 onto
// table columns in order; any remaining model fields (HasMany/HasOne
// relations, which never own a column) get a Null placeholder in
// TableToModel, since lowerReturning's ReturningModel path projects every
// model field unconditionally and relation fields are stitched in later by
// the materializer's NestedMerge/Associate, never read off this record.
func identityMapping(model schema.ModelID, table schema.TableID, columns []string, modelFieldCount int) schema.Mapping {
	m2t := make([]stmt.Expr, len(columns))
	for i := range columns {
		m2t[i] = stmt.Field(0, i)
	}
	t2m := make([]stmt.Expr, modelFieldCount)
	for i := 0; i < modelFieldCount; i++ {
		if i < len(columns) {
			t2m[i] = stmt.ExprColumn{Nesting: 0, Column: columns[i]}
		} else {
			t2m[i] = stmt.ExprValue{Value: stmt.NullValue{}}
		}
	}
	return schema.Mapping{Model: model, Table: table, ModelToTable: m2t, TableToModel: t2m}
}

// DiscriminatedABSchema builds the S2 fixture: models A and B sharing table
// T, discriminated by a "0#"/"1#" prefix on the shared primary key column.
func DiscriminatedABSchema() schema.Schema {
	a := schema.Model{
		ID:   0,
		Name: "A",
		Fields: []schema.Field{
			{Name: "pk", Kind: schema.FieldPrimitive, Type: stmt.Type{Kind: stmt.KindString}},
		},
		PrimaryKey: []int{0},
		Table:      0,
	}
	b := schema.Model{
		ID:   1,
		Name: "B",
		Fields: []schema.Field{
			{Name: "pk", Kind: schema.FieldPrimitive, Type: stmt.Type{Kind: stmt.KindString}},
		},
		PrimaryKey: []int{0},
		Table:      0,
	}
	t := schema.Table{
		ID:   0,
		Name: "t",
		Columns: []schema.Column{
			{Name: "pk", Storage: schema.StorageText, Discriminants: []string{"0", "1"}},
		},
		Indices: []schema.Index{
			{Name: "t_pk", Columns: []int{0}, Unique: true, PartitionScope: []int{0}},
		},
	}
	mapping := func(model schema.ModelID, disc string) schema.Mapping {
		return schema.Mapping{
			Model: model,
			Table: 0,
			ModelToTable: []stmt.Expr{
				stmt.ExprConcatStr{Lhs: stmt.ExprValue{Value: stmt.StringValue(disc)}, Rhs: stmt.Field(0, 0), Sep: "#"},
			},
			TableToModel: []stmt.Expr{
				stmt.ExprColumn{Nesting: 0, Column: "pk"},
			},
			Discriminant: disc,
		}
	}
	return schema.Schema{
		App:      schema.AppSchema{Models: []schema.Model{a, b}},
		Db:       schema.DbSchema{Tables: []schema.Table{t}},
		Mappings: []schema.Mapping{mapping(0, "0"), mapping(1, "1")},
	}
}
