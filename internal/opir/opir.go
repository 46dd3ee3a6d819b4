// Package opir defines the Operation IR: the backend-agnostic Action sum
// type emitted by the materialization and write planners, and a small
// cooperative VM that evaluates a compiled Plan against a driver. Grounded
// on spec.md §4.6 and §5 (concurrency/resource model): Actions declare the
// Vars they read and the Var they write, so the VM can dispatch
// data-independent Actions concurrently while still enforcing per-statement
// topological order.
package opir

import (
	"github.com/satishbabariya/toasty-go/internal/driver"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// Var identifies one planner-local variable slot: a driver round trip's
// result, an in-memory projection, or a constantized literal.
type Var int

// Action is the closed sum of executable plan steps.
type Action interface {
	actionNode()
	// Output is the Var this Action assigns, or -1 if it produces none
	// (DeleteByKey produces none; the VM checks this rather than assuming
	// every Action writes a variable).
	Output() Var
	// Reads lists every Var this Action consumes as input.
	Reads() []Var
}

// ExecStatement dispatches a lowered Statement to the driver, producing a
// list of records.
type ExecStatement struct {
	Out    Var
	Inputs []Var
	Stmt   stmt.Statement
}

func (ExecStatement) actionNode()   {}
func (a ExecStatement) Output() Var { return a.Out }
func (a ExecStatement) Reads() []Var { return a.Inputs }

// GetByKey performs a point read on a table's primary key.
type GetByKey struct {
	Out   Var
	Keys  Var
	Table string
}

func (GetByKey) actionNode()    {}
func (a GetByKey) Output() Var  { return a.Out }
func (a GetByKey) Reads() []Var { return []Var{a.Keys} }

// FindPkByIndex looks up the owning primary key of a unique secondary index
// entry.
type FindPkByIndex struct {
	Out        Var
	IndexVar   Var
	Table      string
	IndexName  string
}

func (FindPkByIndex) actionNode()    {}
func (a FindPkByIndex) Output() Var  { return a.Out }
func (a FindPkByIndex) Reads() []Var { return []Var{a.IndexVar} }

// DeleteByKey removes a row by primary key.
type DeleteByKey struct {
	Keys  Var
	Table string
}

func (DeleteByKey) actionNode()    {}
func (DeleteByKey) Output() Var    { return -1 }
func (a DeleteByKey) Reads() []Var { return []Var{a.Keys} }

// UpdateByKey mutates a row by primary key, optionally gated by Condition.
type UpdateByKey struct {
	Out         Var
	Keys        Var
	Table       string
	Assignments []stmt.Assignment
	Condition   stmt.Expr
}

func (UpdateByKey) actionNode()    {}
func (a UpdateByKey) Output() Var  { return a.Out }
func (a UpdateByKey) Reads() []Var { return []Var{a.Keys} }

// QueryPk scans a primary-key range with an index filter and a row filter.
type QueryPk struct {
	Out         Var
	Table       string
	IndexFilter stmt.Expr
	RowFilter   stmt.Expr
}

func (QueryPk) actionNode()    {}
func (a QueryPk) Output() Var  { return a.Out }
func (a QueryPk) Reads() []Var { return nil }

// ReadModifyWrite is the read-then-conditional-write pair used to maintain a
// unique secondary index on a backend without native unique secondary
// indices: read the current indexed-column values, then issue a
// transact-write batch (primary update/delete plus index-row
// delete-then-put) gated on those previously-read values.
type ReadModifyWrite struct {
	Out         Var
	Table       string
	Keys        Var
	IndexTable  string
	OldKeyExpr  stmt.Expr
	NewKeyExpr  stmt.Expr
	Assignments []stmt.Assignment
}

func (ReadModifyWrite) actionNode()    {}
func (a ReadModifyWrite) Output() Var  { return a.Out }
func (a ReadModifyWrite) Reads() []Var { return []Var{a.Keys} }

// Filter applies an in-memory predicate to a variable's rows.
type Filter struct {
	Out  Var
	In   Var
	Pred func(driver.Row) bool
}

func (Filter) actionNode()    {}
func (a Filter) Output() Var  { return a.Out }
func (a Filter) Reads() []Var { return []Var{a.In} }

// Project applies an in-memory projection to a variable's rows.
type Project struct {
	Out  Var
	In   Var
	Proj func(driver.Row) driver.Row
}

func (Project) actionNode()    {}
func (a Project) Output() Var  { return a.Out }
func (a Project) Reads() []Var { return []Var{a.In} }

// NestedChild is one branch of a NestedLevel: a source variable paired with
// a qualification predicate over (parent row, child row), and its own
// nested children.
type NestedChild struct {
	Source  Var
	Qualify func(parent, child driver.Row) bool
	Nested  *NestedLevel
}

// NestedLevel describes one parent level of a NestedMerge: the variable
// holding this level's rows, the projection evaluated with arg(0)=row and
// arg(1..)=each child's collected results, and the child branches.
type NestedLevel struct {
	Source     Var
	Projection func(row driver.Row, children [][]driver.Row) driver.Row
	Children   []NestedChild
}

// NestedMerge combines a parent row stream with its nested children's row
// streams in memory.
type NestedMerge struct {
	Out  Var
	Root NestedLevel
}

func (NestedMerge) actionNode()   {}
func (a NestedMerge) Output() Var { return a.Out }
func (a NestedMerge) Reads() []Var {
	return collectNestedReads(a.Root, nil)
}

func collectNestedReads(level NestedLevel, acc []Var) []Var {
	acc = append(acc, level.Source)
	for _, c := range level.Children {
		acc = append(acc, c.Source)
		if c.Nested != nil {
			acc = collectNestedReads(*c.Nested, acc)
		}
	}
	return acc
}

// SetVar seeds a variable with constant rows, used for constantized
// Returnings (§4.5 step 5) and nested-merge seed data.
type SetVar struct {
	Out  Var
	Rows []driver.Row
}

func (SetVar) actionNode()   {}
func (a SetVar) Output() Var { return a.Out }
func (SetVar) Reads() []Var  { return nil }

// Associate attaches a loaded related-row stream to its parent objects,
// used by include()'s final assembly step.
type Associate struct {
	Out    Var
	Parent Var
	Source Var
}

func (Associate) actionNode()    {}
func (a Associate) Output() Var  { return a.Out }
func (a Associate) Reads() []Var { return []Var{a.Parent, a.Source} }

// Plan is a compiled, ready-to-evaluate sequence of Actions: a topologically
// ordered list, the root output variable (if the plan produces a final
// value), and each variable's use count so the VM can free row buffers after
// their last read.
type Plan struct {
	Actions []Action
	Root    Var
	UseCount map[Var]int
}

// NewPlan computes UseCount from actions' Reads() and wraps them into a
// Plan rooted at root.
func NewPlan(actions []Action, root Var) Plan {
	uses := map[Var]int{}
	for _, a := range actions {
		for _, v := range a.Reads() {
			uses[v]++
		}
	}
	if root >= 0 {
		uses[root]++
	}
	return Plan{Actions: actions, Root: root, UseCount: uses}
}
