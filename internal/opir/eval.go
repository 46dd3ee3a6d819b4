package opir

import (
	"context"
	"sync"

	"github.com/satishbabariya/toasty-go/internal/driver"
	"github.com/satishbabariya/toasty-go/internal/perr"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// maxConcurrentActions bounds how many independent Actions the VM dispatches
// at once within one evaluation wave. golang.org/x/sync/errgroup is not in
// the retrieval pack's dependency set, so concurrent dispatch is built on a
// plain sync.WaitGroup plus a buffered error channel (documented in
// DESIGN.md as a standard-library concern with no pack library fit).
const maxConcurrentActions = 8

// Eval evaluates plan against d, returning the rows bound to plan.Root (or
// nil if plan.Root is negative, meaning the plan has no single output
// variable). Per spec.md §5, Actions with no variable dependency on one
// another may run concurrently; Eval groups the plan into dependency waves
// (Kahn's algorithm over Reads()/Output()) and dispatches each wave's
// Actions across a bounded goroutine pool.
func Eval(ctx context.Context, d driver.Driver, plan Plan) ([]driver.Row, error) {
	waves, err := schedule(plan.Actions)
	if err != nil {
		return nil, err
	}

	env := make(map[Var][]driver.Row, len(plan.Actions))
	remaining := map[Var]int{}
	for v, n := range plan.UseCount {
		remaining[v] = n
	}

	for _, wave := range waves {
		if err := runWave(ctx, d, wave, env); err != nil {
			return nil, err
		}
		for _, a := range wave {
			for _, v := range a.Reads() {
				remaining[v]--
				if remaining[v] <= 0 {
					delete(env, v)
				}
			}
		}
	}

	if plan.Root < 0 {
		return nil, nil
	}
	return env[plan.Root], nil
}

// schedule partitions actions into dependency waves via Kahn's algorithm:
// every Action in a wave reads only Vars already produced by an earlier
// wave (or consumes none at all).
func schedule(actions []Action) ([][]Action, error) {
	produced := map[Var]bool{}
	remaining := append([]Action(nil), actions...)
	var waves [][]Action

	for len(remaining) > 0 {
		var wave []Action
		var next []Action
		for _, a := range remaining {
			ready := true
			for _, v := range a.Reads() {
				if !produced[v] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, a)
			} else {
				next = append(next, a)
			}
		}
		if len(wave) == 0 {
			return nil, perr.New(perr.KindUnsupported, "opir: plan has a variable dependency cycle")
		}
		for _, a := range wave {
			if out := a.Output(); out >= 0 {
				produced[out] = true
			}
		}
		waves = append(waves, wave)
		remaining = next
	}
	return waves, nil
}

func runWave(ctx context.Context, d driver.Driver, wave []Action, env map[Var][]driver.Row) error {
	sem := make(chan struct{}, maxConcurrentActions)
	errCh := make(chan error, len(wave))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, a := range wave {
		a := a
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			inputs := make([][]driver.Row, len(a.Reads()))
			mu.Lock()
			for i, v := range a.Reads() {
				inputs[i] = env[v]
			}
			mu.Unlock()

			out, err := dispatch(ctx, d, a, inputs)
			if err != nil {
				errCh <- err
				return
			}
			if dst := a.Output(); dst >= 0 {
				mu.Lock()
				env[dst] = out
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

func dispatch(ctx context.Context, d driver.Driver, a Action, inputs [][]driver.Row) ([]driver.Row, error) {
	switch v := a.(type) {
	case ExecStatement:
		var in []driver.Row
		if len(inputs) > 0 {
			in = inputs[0]
		}
		return d.ExecStatement(ctx, v.Stmt, in)
	case GetByKey:
		return d.GetByKey(ctx, v.Table, firstOrNil(inputs))
	case FindPkByIndex:
		return d.FindPkByIndex(ctx, v.Table, v.IndexName, firstOrNil(inputs))
	case DeleteByKey:
		return nil, d.DeleteByKey(ctx, v.Table, firstOrNil(inputs))
	case UpdateByKey:
		return d.UpdateByKey(ctx, v.Table, firstOrNil(inputs), v.Assignments, v.Condition)
	case QueryPk:
		return d.QueryPk(ctx, v.Table, v.IndexFilter, v.RowFilter)
	case ReadModifyWrite:
		ov, err := literalValue(v.OldKeyExpr)
		if err != nil {
			return nil, err
		}
		nv, err := literalValue(v.NewKeyExpr)
		if err != nil {
			return nil, err
		}
		return d.ReadModifyWrite(ctx, v.Table, firstOrNil(inputs), v.IndexTable, ov, nv, v.Assignments)
	case Filter:
		rows := firstOrNil(inputs)
		out := make([]driver.Row, 0, len(rows))
		for _, r := range rows {
			if v.Pred(r) {
				out = append(out, r)
			}
		}
		return out, nil
	case Project:
		rows := firstOrNil(inputs)
		out := make([]driver.Row, len(rows))
		for i, r := range rows {
			out[i] = v.Proj(r)
		}
		return out, nil
	case NestedMerge:
		byVar := map[Var][]driver.Row{}
		for i, r := range v.Reads() {
			byVar[r] = inputs[i]
		}
		return evalNestedLevel(v.Root, byVar), nil
	case SetVar:
		return v.Rows, nil
	case Associate:
		// Associate is a thin pass-through: the source stream is already
		// keyed by the parent's identity via the preceding NestedMerge; it
		// exists as a distinct Action so the VM's use-count bookkeeping
		// frees the parent variable at the right point.
		return firstOrNil(inputs), nil
	default:
		return nil, perr.Newf(perr.KindUnsupported, "opir: eval: unhandled action %T", a)
	}
}

func firstOrNil(inputs [][]driver.Row) []driver.Row {
	if len(inputs) == 0 {
		return nil
	}
	return inputs[0]
}

// literalValue extracts the constant Value a write planner key expression
// constantized to before reaching opir; by the time a plan reaches Eval,
// ReadModifyWrite's key exprs have already been folded to ExprValue by
// simplify, so anything else is a planner bug, not a runtime data problem.
func literalValue(e stmt.Expr) (stmt.Value, error) {
	v, ok := e.(stmt.ExprValue)
	if !ok {
		return nil, perr.Newf(perr.KindUnsupported, "opir: eval: ReadModifyWrite key expression %T is not a constant", e)
	}
	return v.Value, nil
}

// evalNestedLevel assembles one level of a NestedMerge in memory: for every
// parent row, every child branch's candidates are filtered by Qualify (the
// materialization planner compiles this from the relation's key-equality
// condition), recursed into if the branch nests further, then handed to
// Projection to build the merged row.
func evalNestedLevel(level NestedLevel, byVar map[Var][]driver.Row) []driver.Row {
	rows := byVar[level.Source]
	out := make([]driver.Row, 0, len(rows))
	for _, parent := range rows {
		children := make([][]driver.Row, len(level.Children))
		for i, c := range level.Children {
			var matched []driver.Row
			for _, candidate := range byVar[c.Source] {
				if c.Qualify(parent, candidate) {
					matched = append(matched, candidate)
				}
			}
			if c.Nested != nil {
				matched = evalNestedLevel(*c.Nested, map[Var][]driver.Row{c.Nested.Source: matched})
			}
			children[i] = matched
		}
		out = append(out, level.Projection(parent, children))
	}
	return out
}
