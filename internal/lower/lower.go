// Package lower rewrites model-altitude statements into table-altitude ones
// using the schema's per-model Mapping, per spec step "Statement lowering":
// field references become column references, Source/InsertTarget/
// UpdateTarget switch from Model to Table, and Returning::Model/Changed are
// normalized to Returning::Expr. Grounded on
// original_source/crates/toasty/src/engine/planner/lower.rs and
// .../lower/relation.rs — the single in-order mutable walk described there is
// realized here as a set of small, composable rewrite functions driven by
// stmt.MapExpr instead of a hand-rolled recursive visitor per node kind.
package lower

import (
	"github.com/satishbabariya/toasty-go/internal/perr"
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/simplify"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// Statement lowers st from model altitude to table altitude against s. After
// Statement returns successfully, the result contains no nesting-0
// ExprField (references at nesting > 0 are left for the enclosing level;
// see substituteFields), no
// ReturningModel/ReturningChanged, and no SourceModel/InsertTargetModel.
func Statement(s schema.Schema, st stmt.Statement) (stmt.Statement, error) {
	switch v := st.(type) {
	case stmt.Query:
		return lowerQuery(s, v)
	case stmt.Insert:
		return lowerInsert(s, v)
	case stmt.Update:
		return lowerUpdate(s, v)
	case stmt.Delete:
		return lowerDelete(s, v)
	default:
		return nil, perr.Newf(perr.KindUnsupported, "lower: unrecognized statement %T", st)
	}
}

func modelByName(s schema.Schema, name string) (schema.Model, error) {
	m, ok := s.App.ModelByName(name)
	if !ok {
		return schema.Model{}, perr.Newf(perr.KindSchemaViolation, "lower: unknown model %q", name).WithModel(name)
	}
	return m, nil
}

func lowerQuery(s schema.Schema, q stmt.Query) (stmt.Statement, error) {
	body, err := lowerExprSet(s, q.Body)
	if err != nil {
		return nil, err
	}
	q.Body = body
	out := simplify.Statement(stmt.Statement(q))
	return out, nil
}

func lowerExprSet(s schema.Schema, set stmt.ExprSet) (stmt.ExprSet, error) {
	switch set.Kind {
	case stmt.ExprSetSelect:
		sel := *set.Select
		if sel.Source.Kind != stmt.SourceModel {
			return set, nil // already table altitude
		}
		m, err := modelByName(s, sel.Source.Model)
		if err != nil {
			return set, err
		}
		mapping := s.MappingFor(m.ID)
		table := s.TableFor(m.ID)

		sel.Filter = substituteFields(mapping, sel.Filter)
		sel.Returning = lowerReturning(mapping, sel.Returning)
		sel.Source = stmt.Source{Kind: stmt.SourceTable, Table: table.Name}
		sel.Filter = foldSpecialForms(sel.Filter)
		sel.Filter = injectDiscriminantConstraint(mapping, table, sel.Filter)
		set.Select = &sel
		return set, nil
	case stmt.ExprSetSetOp:
		op := *set.SetOp
		for i := range op.Branches {
			branch, err := lowerExprSet(s, op.Branches[i])
			if err != nil {
				return set, err
			}
			op.Branches[i] = branch
		}
		set.SetOp = &op
		return set, nil
	default:
		return set, nil
	}
}

// lowerReturning implements step 1: Model -> Expr(table→model record),
// Changed -> Expr(cast(Record[...], SparseRecord(keys))).
func lowerReturning(mapping schema.Mapping, r stmt.Returning) stmt.Returning {
	switch r.Kind {
	case stmt.ReturningModel:
		return stmt.Returning{Kind: stmt.ReturningExpr, Expr: stmt.ExprRecord{Fields: mapping.TableToModel}}
	case stmt.ReturningChanged:
		fields := make([]stmt.Expr, len(r.Keys))
		for i, k := range r.Keys {
			fields[i] = mapping.TableToModel[k]
		}
		rec := stmt.ExprRecord{Fields: fields}
		return stmt.Returning{Kind: stmt.ReturningExpr, Expr: stmt.ExprCast{
			Expr: rec,
			Type: stmt.SparseRecord(r.Keys),
		}}
	case stmt.ReturningExpr:
		return stmt.Returning{Kind: stmt.ReturningExpr, Expr: substituteFields(mapping, r.Expr)}
	default:
		return r
	}
}

// substituteFields implements step 3: every ExprField{0, i} is replaced by
// the i-th expression of table→model (mapping.TableToModel), recursively.
// References at nesting > 0 (an enclosing statement's model) are left
// untouched here — they are substituted when that enclosing level is lowered.
func substituteFields(mapping schema.Mapping, e stmt.Expr) stmt.Expr {
	if e == nil {
		return nil
	}
	return stmt.MapExpr(e, func(n stmt.Expr) stmt.Expr {
		f, ok := n.(stmt.ExprField)
		if !ok || f.Nesting != 0 {
			return n
		}
		return mapping.TableToModel[f.Index]
	})
}

// lowerColumnExpr implements the shared core of steps 4 and 5: projecting a
// model-altitude value through mapping.ModelToTable[col], substituting each
// ExprField{0, j} that appears in that column's lowering expression with the
// caller-supplied, already-lowered expression for field j (fieldValues).
// Columns whose lowering references no field (pure discriminant literals)
// pass through unchanged.
func lowerColumnExpr(mapping schema.Mapping, col int, fieldValues map[int]stmt.Expr) stmt.Expr {
	return stmt.MapExpr(mapping.ModelToTable[col], func(n stmt.Expr) stmt.Expr {
		f, ok := n.(stmt.ExprField)
		if !ok || f.Nesting != 0 {
			return n
		}
		if v, ok := fieldValues[f.Index]; ok {
			return v
		}
		return n
	})
}

// foldSpecialForms implements step 6: DecodeEnum-comparison folding and
// eq/ne-with-NULL rewriting into IsNull.
func foldSpecialForms(e stmt.Expr) stmt.Expr {
	if e == nil {
		return nil
	}
	return stmt.MapExpr(e, func(n stmt.Expr) stmt.Expr {
		b, ok := n.(stmt.ExprBinaryOp)
		if !ok {
			return n
		}
		if dec, ok := b.Lhs.(stmt.ExprDecodeEnum); ok {
			return stmt.ExprBinaryOp{
				Op:  stmt.OpEq,
				Lhs: dec.Base,
				Rhs: stmt.ExprConcatStr{Lhs: stmt.ExprValue{Value: stmt.StringValue(dec.Disc)}, Rhs: stmt.ExprCast{Expr: b.Rhs, Type: stmt.Type{Kind: stmt.KindString}}, Sep: "#"},
			}
		}
		if stmt.IsNullExpr(b.Rhs) {
			switch b.Op {
			case stmt.OpEq:
				return stmt.ExprIsNull{Expr: b.Lhs}
			case stmt.OpNe:
				return stmt.ExprNot{Expr: stmt.ExprIsNull{Expr: b.Lhs}}
			}
		}
		return n
	})
}

// injectDiscriminantConstraint implements step 7: when table is shared by
// several models (mapping.Discriminant != ""), every read must constrain the
// discriminated PK column to this model's prefix. If the filter does not
// already equality-constrain that column, BeginsWith(col, "<prefix>#") is
// conjoined.
func injectDiscriminantConstraint(mapping schema.Mapping, table schema.Table, filter stmt.Expr) stmt.Expr {
	if mapping.Discriminant == "" {
		return filter
	}
	pk := table.PKIndex()
	for _, col := range pk.Columns {
		if !isDiscriminatedColumn(mapping, col) {
			continue
		}
		colName := table.Columns[col].Name
		if filterHasEquality(filter, colName) {
			continue
		}
		prefix := mapping.Discriminant + "#"
		guard := stmt.ExprPattern{
			Kind:    stmt.PatternBeginsWith,
			Expr:    stmt.ExprColumn{Table: table.Name, Column: colName},
			Pattern: stmt.ExprValue{Value: stmt.StringValue(prefix)},
		}
		if filter == nil || stmt.IsTrue(filter) {
			return guard
		}
		return stmt.ExprAnd{Operands: []stmt.Expr{filter, guard}}
	}
	return filter
}

func isDiscriminatedColumn(mapping schema.Mapping, col int) bool {
	_, ok := mapping.ModelToTable[col].(stmt.ExprConcatStr)
	return ok
}

func filterHasEquality(filter stmt.Expr, colName string) bool {
	found := false
	stmt.WalkExpr(filter, func(e stmt.Expr) {
		b, ok := e.(stmt.ExprBinaryOp)
		if !ok || b.Op != stmt.OpEq {
			return
		}
		if matchesColumn(b.Lhs, colName) || matchesColumn(b.Rhs, colName) {
			found = true
		}
	})
	return found
}

func matchesColumn(e stmt.Expr, colName string) bool {
	c, ok := e.(stmt.ExprColumn)
	return ok && c.Column == colName
}
