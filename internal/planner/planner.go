// Package planner is the top-level entry point: given a schema, a backend's
// capability matrix and a model-altitude statement, it produces a ready-to
// evaluate opir.Plan, and can drive that plan straight through a driver.
// Grounded on original_source/.../engine/planner/mod.rs, which is the single
// dispatch point the Rust planner exposes to its executor.
package planner

import (
	"context"

	"github.com/satishbabariya/toasty-go/internal/capability"
	"github.com/satishbabariya/toasty-go/internal/driver"
	"github.com/satishbabariya/toasty-go/internal/materialize"
	"github.com/satishbabariya/toasty-go/internal/opir"
	"github.com/satishbabariya/toasty-go/internal/perr"
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/stmt"
	"github.com/satishbabariya/toasty-go/internal/writeplan"
)

// Plan compiles st into an opir.Plan: a Query goes through the
// materialization planner (§4.4), an Insert/Update/Delete through the write
// planner (§4.5).
func Plan(s schema.Schema, cap capability.Capability, st stmt.Statement) (opir.Plan, error) {
	switch v := st.(type) {
	case stmt.Query:
		return materialize.Plan(s, cap, v)
	case stmt.Insert, stmt.Update, stmt.Delete:
		return writeplan.Plan(s, cap, v)
	default:
		return opir.Plan{}, perr.Newf(perr.KindUnsupported, "planner: unsupported statement %T", st)
	}
}

// Execute compiles st and evaluates it against d in one step.
func Execute(ctx context.Context, d driver.Driver, s schema.Schema, st stmt.Statement) ([]driver.Row, error) {
	p, err := Plan(s, d.Capability(), st)
	if err != nil {
		return nil, err
	}
	return opir.Eval(ctx, d, p)
}
