// Package writeplan implements the Write Planner (spec.md §4.5): it turns a
// model-altitude Insert/Update/Delete into a cascade of lowered statements
// wired together as opir.Action nodes, handling relation cascades
// (BelongsTo/HasMany/HasOne), default generation, non-nullable/constraint
// enforcement, Returning constantization, and the unique-secondary-index
// transact-write pattern for backends without native unique secondary
// indices. Grounded on original_source/.../engine/planner/write.rs and
// .../write/{insert,update,delete}.rs.
package writeplan

import (
	"github.com/satishbabariya/toasty-go/internal/capability"
	"github.com/satishbabariya/toasty-go/internal/driver"
	"github.com/satishbabariya/toasty-go/internal/lower"
	"github.com/satishbabariya/toasty-go/internal/opir"
	"github.com/satishbabariya/toasty-go/internal/perr"
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

type writePlanner struct {
	schema  schema.Schema
	cap     capability.Capability
	next    opir.Var
	actions []opir.Action
}

// Plan compiles a model-altitude Insert, Update or Delete into an opir.Plan.
func Plan(s schema.Schema, cap capability.Capability, st stmt.Statement) (opir.Plan, error) {
	w := &writePlanner{schema: s, cap: cap}
	root, err := w.planStatement(st)
	if err != nil {
		return opir.Plan{}, err
	}
	return opir.NewPlan(w.actions, root), nil
}

func (w *writePlanner) freshVar() opir.Var {
	v := w.next
	w.next++
	return v
}

func (w *writePlanner) emit(a opir.Action) {
	w.actions = append(w.actions, a)
}

func (w *writePlanner) planStatement(st stmt.Statement) (opir.Var, error) {
	switch v := st.(type) {
	case stmt.Insert:
		out, _, err := w.planInsert(v)
		return out, err
	case stmt.Update:
		return w.planUpdate(v)
	case stmt.Delete:
		return w.planDelete(v)
	default:
		return 0, perr.Newf(perr.KindUnsupported, "writeplan: unsupported statement %T", st)
	}
}

func modelByName(s schema.Schema, name string) (schema.Model, error) {
	m, ok := s.App.ModelByName(name)
	if !ok {
		return schema.Model{}, perr.Newf(perr.KindSchemaViolation, "writeplan: unknown model %q", name).WithModel(name)
	}
	return m, nil
}

// planInsert implements §4.5's Insert contract. It returns the Var holding
// the statement's Returning output and, for BelongsTo-consuming callers, the
// resolved primary-key expression of the inserted row (a literal when the
// key was known at plan time, an ExprArg bound to the just-emitted
// ExecStatement's single output otherwise).
func (w *writePlanner) planInsert(ins stmt.Insert) (opir.Var, stmt.Expr, error) {
	model, err := modelByName(w.schema, ins.Target.Model)
	if err != nil {
		return 0, nil, err
	}

	if len(ins.Source.Rows) != 1 {
		return 0, nil, perr.New(perr.KindUnsupported, "writeplan: relation cascades are only planned for single-row inserts")
	}
	row := ins.Source.Rows[0]
	fields := map[int]stmt.Expr{}
	for k, v := range row.ByField {
		fields[k] = v
	}

	var inputs []opir.Var

	for i, f := range model.Fields {
		if _, ok := fields[i]; ok {
			continue
		}
		switch f.Kind {
		case schema.FieldPrimitive:
			if f.Auto {
				fields[i] = stmt.ExprValue{Value: stmt.IdValue{Model: model.Name, Key: stmt.NewUUID()}}
			} else if !f.Nullable {
				return 0, nil, perr.Newf(perr.KindSchemaViolation, "writeplan: missing required field %q", f.Name).WithField(model.Name, f.Name)
			}
		case schema.FieldHasOne:
			if !f.Nullable {
				return 0, nil, perr.Newf(perr.KindSchemaViolation, "writeplan: missing required relation %q", f.Name).WithField(model.Name, f.Name)
			}
		}
	}

	for i, f := range model.Fields {
		val, present := fields[i]
		if !present {
			continue
		}
		switch f.Kind {
		case schema.FieldBelongsTo:
			resolved, dep, err := w.resolveBelongsTo(val)
			if err != nil {
				return 0, nil, err
			}
			fields[i] = resolved
			if dep >= 0 {
				inputs = append(inputs, dep)
			}
		case schema.FieldHasMany, schema.FieldHasOne:
			delete(fields, i) // consumed into a cascade below, not a column on this table
		case schema.FieldPrimitive:
			if err := checkConstraint(model, f, val); err != nil {
				return 0, nil, err
			}
		}
	}

	pkExpr, pkLiteral := fields[model.PrimaryKey[0]]
	if !pkLiteral {
		return 0, nil, perr.Newf(perr.KindSchemaViolation, "writeplan: primary key %q not resolved before insert", model.Fields[model.PrimaryKey[0]].Name).WithModel(model.Name)
	}

	modelIns := stmt.Insert{
		Target:    ins.Target,
		Source:    stmt.Values{Rows: []stmt.ExprRecordLit{{ByField: fields}}},
		Returning: ins.Returning,
	}

	constant, ok := constantizeReturning(model, fields, ins.Returning)
	var out opir.Var
	if ok {
		modelIns.Returning = stmt.Returning{Kind: stmt.ReturningNone}
		out = w.freshVar()
		w.emit(opir.SetVar{Out: out, Rows: []driver.Row{constant}})
	} else {
		lowered, err := lower.Statement(w.schema, modelIns)
		if err != nil {
			return 0, nil, err
		}
		out = w.freshVar()
		w.emit(opir.ExecStatement{Out: out, Inputs: inputs, Stmt: lowered})
	}

	if err := w.planHasRelations(model, fields, pkExpr, row); err != nil {
		return 0, nil, err
	}

	return out, pkExpr, nil
}

// resolveBelongsTo implements the BelongsTo bullet of §4.5's Insert
// contract: a nested Insert plans first and its returned key is threaded
// back via ExprArg (see S5); a nested Query must yield its key by static key
// extraction, and one that does not is rejected as unsupported (no read is
// planned for it); anything else is already the key value.
func (w *writePlanner) resolveBelongsTo(val stmt.Expr) (stmt.Expr, opir.Var, error) {
	wrapped, ok := val.(stmt.ExprStmt)
	if !ok {
		return val, -1, nil
	}
	switch sub := wrapped.Stmt.(type) {
	case stmt.Insert:
		sub.Returning = stmt.Returning{Kind: stmt.ReturningChanged, Keys: nil} // rewritten to Expr(key) below
		model, err := modelByName(w.schema, sub.Target.Model)
		if err != nil {
			return nil, -1, err
		}
		sub.Returning = stmt.Returning{Kind: stmt.ReturningExpr, Expr: stmt.Field(0, model.PrimaryKey[0])}
		depVar, _, err := w.planInsert(sub)
		if err != nil {
			return nil, -1, err
		}
		return stmt.ExprArg{Position: 0}, depVar, nil
	case stmt.Query:
		if key, ok := extractLiteralKey(sub); ok {
			return key, -1, nil
		}
		return nil, -1, perr.New(perr.KindUnsupported, "writeplan: belongs-to nested query requires static key extraction (fallback read planning not implemented)")
	default:
		return nil, -1, perr.Newf(perr.KindUnsupported, "writeplan: unsupported belongs-to nested statement %T", sub)
	}
}

// extractLiteralKey implements §4.5's "Key extraction (belongs-to from
// query)": and(f1=v1, ..., fn=vn) with literal RHS values yields the literal
// record (v1,...,vn); anything else is "not derivable".
func extractLiteralKey(q stmt.Query) (stmt.Expr, bool) {
	sel := q.Body.AsSelect()
	if sel == nil {
		return nil, false
	}
	var vals []stmt.Expr
	var walk func(e stmt.Expr) bool
	walk = func(e stmt.Expr) bool {
		switch v := e.(type) {
		case stmt.ExprAnd:
			for _, o := range v.Operands {
				if !walk(o) {
					return false
				}
			}
			return true
		case stmt.ExprBinaryOp:
			if v.Op != stmt.OpEq {
				return false
			}
			if _, ok := v.Lhs.(stmt.ExprField); ok {
				if lit, ok := v.Rhs.(stmt.ExprValue); ok {
					vals = append(vals, lit)
					return true
				}
			}
			return false
		default:
			return stmt.IsTrue(e)
		}
	}
	if !walk(sel.Filter) || len(vals) == 0 {
		return nil, false
	}
	if len(vals) == 1 {
		return vals[0], true
	}
	return stmt.ExprRecord{Fields: vals}, true
}

// checkConstraint enforces non-nullable and field-length constraints
// statically when val is a literal; non-literal (server/computed) values are
// left to the driver.
func checkConstraint(model schema.Model, f schema.Field, val stmt.Expr) error {
	lit, ok := val.(stmt.ExprValue)
	if !ok {
		return nil
	}
	if !f.Nullable && stmt.IsNull(lit.Value) {
		return perr.Newf(perr.KindSchemaViolation, "writeplan: field %q is non-nullable", f.Name).WithField(model.Name, f.Name)
	}
	if f.MaxLength != nil {
		if s, ok := lit.Value.(stmt.StringValue); ok && len(string(s)) > *f.MaxLength {
			return perr.Newf(perr.KindSchemaViolation, "writeplan: field %q exceeds max length %d", f.Name, *f.MaxLength).WithField(model.Name, f.Name)
		}
	}
	return nil
}

// constantizeReturning implements step 5: when Returning is a function only
// of the bound row's own literal values, evaluate it in-memory and drop the
// database-level Returning.
func constantizeReturning(model schema.Model, fields map[int]stmt.Expr, r stmt.Returning) (driver.Row, bool) {
	if r.Kind == stmt.ReturningNone {
		return nil, false
	}
	lits := make([]stmt.Value, len(model.Fields))
	for i := range model.Fields {
		v, ok := fields[i]
		if !ok {
			return nil, false
		}
		lit, ok := v.(stmt.ExprValue)
		if !ok {
			return nil, false // still server-dependent (e.g. unresolved ExprArg)
		}
		lits[i] = lit.Value
	}
	switch r.Kind {
	case stmt.ReturningModel:
		return driver.Row(lits), true
	case stmt.ReturningExpr:
		val, ok := evalConstExpr(r.Expr, lits)
		if !ok {
			return nil, false
		}
		return driver.Row{val}, true
	case stmt.ReturningChanged:
		row := make(driver.Row, len(r.Keys))
		for i, k := range r.Keys {
			row[i] = lits[k]
		}
		return row, true
	default:
		return nil, false
	}
}

func evalConstExpr(e stmt.Expr, row []stmt.Value) (stmt.Value, bool) {
	switch v := e.(type) {
	case stmt.ExprValue:
		return v.Value, true
	case stmt.ExprField:
		if v.Nesting == 0 && v.Index < len(row) {
			return row[v.Index], true
		}
	case stmt.ExprRecord:
		vals := make([]stmt.Value, len(v.Fields))
		for i, f := range v.Fields {
			val, ok := evalConstExpr(f, row)
			if !ok {
				return nil, false
			}
			vals[i] = val
		}
		return stmt.RecordValue(vals), true
	}
	return nil, false
}
