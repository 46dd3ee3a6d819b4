package main

import (
	"fmt"

	"github.com/satishbabariya/toasty-go/internal/capability"
	"github.com/satishbabariya/toasty-go/internal/fixtures"
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/simplify"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// scenario bundles one of spec.md's §8 worked examples (S1-S6) into a
// schema + statement (or a bare expression for S1, which exercises the
// simplifier directly rather than a full plan) that explain can feed to
// the planner.
type scenario struct {
	name        string
	description string
	schema      func() schema.Schema
	// one of stmt (planned via internal/planner) or expr (simplified via
	// internal/simplify) is set
	stmt func() stmt.Statement
	expr func() stmt.Expr
	// capability overrides the dialect flag's capability, for scenarios
	// that only make sense against a specific backend (S4).
	capability *capability.Capability
}

var scenarios = map[string]scenario{
	"s1": {
		name:        "S1",
		description: "filter simplification: and(id=$0, and(true, name != name)) over non-nullable name",
		schema:      fixtures.UserTodoProfileSchema,
		expr: func() stmt.Expr {
			name := stmt.Field(0, fixtures.UserName)
			return stmt.And(
				stmt.Eq(stmt.Field(0, fixtures.UserID), stmt.Arg(0)),
				stmt.And(stmt.True, stmt.Ne(name, name)),
			)
		},
	},
	"s2": {
		name:        "S2",
		description: "discriminated table read: A.filter(pk = \"x\") over a table shared with B",
		schema:      fixtures.DiscriminatedABSchema,
		stmt: func() stmt.Statement {
			return stmt.Query{
				Body: stmt.ExprSet{
					Kind: stmt.ExprSetSelect,
					Select: &stmt.Select{
						Source:    stmt.Source{Kind: stmt.SourceModel, Model: "A"},
						Filter:    stmt.Eq(stmt.Field(0, 0), stmt.ExprValue{Value: stmt.StringValue("x")}),
						Returning: stmt.Returning{Kind: stmt.ReturningModel},
					},
				},
			}
		},
	},
	"s3": {
		name:        "S3",
		description: "eager load: User.filter(name = \"jane\").include(todos)",
		schema:      fixtures.UserTodoProfileSchema,
		stmt: func() stmt.Statement {
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
		},
	},
	"s4": {
		name:        "S4",
		description: "unique-index maintenance on a KV store: User.update().email(\"b\") where email was \"a\"",
		schema:      fixtures.UserTodoProfileSchema,
		capability:  &capability.DynamoStyleKV,
		stmt: func() stmt.Statement {
			return stmt.Update{
				Target: stmt.UpdateTarget{Kind: stmt.InsertTargetModel, Model: "User"},
				Filter: stmt.Eq(stmt.Field(0, fixtures.UserEmail), stmt.ExprValue{Value: stmt.StringValue("a")}),
				Assignments: []stmt.Assignment{
					{FieldIndex: fixtures.UserEmail, Value: stmt.ExprValue{Value: stmt.StringValue("b")}},
				},
				Returning: stmt.Returning{Kind: stmt.ReturningNone},
			}
		},
	},
	"s5": {
		name:        "S5",
		description: "belongs-to by nested insert: Todo.create().user(User.create().name(\"jane\"))",
		schema:      fixtures.UserTodoProfileSchema,
		stmt: func() stmt.Statement {
			nestedUser := stmt.Insert{
				Target: stmt.InsertTarget{Kind: stmt.InsertTargetModel, Model: "User"},
				Source: stmt.Values{Rows: []stmt.ExprRecordLit{{ByField: map[int]stmt.Expr{
					fixtures.UserName:  stmt.ExprValue{Value: stmt.StringValue("jane")},
					fixtures.UserEmail: stmt.ExprValue{Value: stmt.StringValue("jane@example.com")},
				}}}},
			}
			return stmt.Insert{
				Target: stmt.InsertTarget{Kind: stmt.InsertTargetModel, Model: "Todo"},
				Source: stmt.Values{Rows: []stmt.ExprRecordLit{{ByField: map[int]stmt.Expr{
					fixtures.TodoTitle:  stmt.ExprValue{Value: stmt.StringValue("buy milk")},
					fixtures.TodoUserID: stmt.ExprStmt{Stmt: nestedUser},
				}}}},
				Returning: stmt.Returning{Kind: stmt.ReturningModel},
			}
		},
	},
	"s6": {
		name:        "S6",
		description: "has-one replacement: user.update().profile(Profile.create().bio(\"new\"))",
		schema:      fixtures.UserTodoProfileSchema,
		stmt: func() stmt.Statement {
			newProfile := stmt.Insert{
				Target: stmt.InsertTarget{Kind: stmt.InsertTargetModel, Model: "Profile"},
				Source: stmt.Values{Rows: []stmt.ExprRecordLit{{ByField: map[int]stmt.Expr{
					fixtures.ProfileBio: stmt.ExprValue{Value: stmt.StringValue("new")},
				}}}},
			}
			return stmt.Update{
				Target: stmt.UpdateTarget{Kind: stmt.InsertTargetModel, Model: "User"},
				Filter: stmt.Eq(stmt.Field(0, fixtures.UserID), stmt.ExprValue{Value: stmt.IdValue{Model: "User", Key: stmt.StringValue("u1")}}),
				Assignments: []stmt.Assignment{
					{FieldIndex: fixtures.UserProfile, Value: stmt.ExprStmt{Stmt: newProfile}},
				},
				Returning: stmt.Returning{Kind: stmt.ReturningNone},
			}
		},
	},
}

func scenarioNames() []string {
	names := make([]string, 0, len(scenarios))
	for _, k := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
		if _, ok := scenarios[k]; ok {
			names = append(names, k)
		}
	}
	return names
}

func runScenario(name string, dialectCap capability.Capability) (any, error) {
	sc, ok := scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (known: %v)", name, scenarioNames())
	}
	s := sc.schema()
	cap := dialectCap
	if sc.capability != nil {
		cap = *sc.capability
	}
	if sc.expr != nil {
		user, _ := s.App.ModelByName("User")
		simplifier := simplify.Simplifier{TypeOf: fixtures.TypeOf(user)}
		return simplifier.Expr(sc.expr()), nil
	}
	return plan(s, cap, sc.stmt())
}
