package writeplan

import (
	"github.com/satishbabariya/toasty-go/internal/driver"
	"github.com/satishbabariya/toasty-go/internal/lower"
	"github.com/satishbabariya/toasty-go/internal/opir"
	"github.com/satishbabariya/toasty-go/internal/perr"
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// planHasRelations implements the HasMany/HasOne bullet of §4.5's Insert
// contract: each nested row is planned as its own Insert, with the owning
// row's own PK substituted in literally (a nested value that is not an
// Insert, such as an already-persisted row, is rejected as unsupported; no
// Update setting its foreign key is planned) --
// per spec.md's wording that this cascade uses "this row's query expression
// (derived from its PK)", which is always resolved to a literal by the time
// defaults have run, so no VM-level Var dependency is needed here (contrast
// resolveBelongsTo, which always wires one).
func (w *writePlanner) planHasRelations(model schema.Model, fields map[int]stmt.Expr, pkExpr stmt.Expr, row stmt.ExprRecordLit) error {
	for i, f := range model.Fields {
		if f.Kind != schema.FieldHasMany && f.Kind != schema.FieldHasOne {
			continue
		}
		val, ok := row.ByField[i]
		if !ok {
			continue
		}
		if f.PairField == nil {
			return perr.Newf(perr.KindSchemaViolation, "writeplan: relation %q has no inverse field", f.Name).WithField(model.Name, f.Name)
		}
		childModel, err := modelByName(w.schema, f.TargetModel)
		if err != nil {
			return err
		}
		pairIdx := *f.PairField

		children, err := nestedChildren(val)
		if err != nil {
			return err
		}
		for _, childRow := range children {
			if _, err := w.planRelatedRow(childModel, pairIdx, pkExpr, childRow); err != nil {
				return err
			}
		}
	}
	return nil
}

// nestedChildren normalizes a HasMany/HasOne field's bound value (a single
// nested Insert for HasOne, an ExprList of Inserts for HasMany) into a flat
// list of nested Insert rows.
func nestedChildren(val stmt.Expr) ([]stmt.Insert, error) {
	switch v := val.(type) {
	case stmt.ExprStmt:
		ins, ok := v.Stmt.(stmt.Insert)
		if !ok {
			return nil, perr.Newf(perr.KindUnsupported, "writeplan: relation value is %T, not a nested insert", v.Stmt)
		}
		return []stmt.Insert{ins}, nil
	case stmt.ExprList:
		var out []stmt.Insert
		for _, item := range v.Items {
			sub, ok := item.(stmt.ExprStmt)
			if !ok {
				return nil, perr.Newf(perr.KindUnsupported, "writeplan: relation list item is %T, not a nested statement", item)
			}
			ins, ok := sub.Stmt.(stmt.Insert)
			if !ok {
				return nil, perr.Newf(perr.KindUnsupported, "writeplan: relation list item is %T, not a nested insert", sub.Stmt)
			}
			out = append(out, ins)
		}
		return out, nil
	default:
		return nil, perr.Newf(perr.KindUnsupported, "writeplan: unsupported relation value %T", val)
	}
}

func (w *writePlanner) planRelatedRow(childModel schema.Model, pairIdx int, parentPK stmt.Expr, childRow stmt.Insert) (opir.Var, error) {
	row := childRow.Source.Rows
	if len(row) != 1 {
		return 0, perr.New(perr.KindUnsupported, "writeplan: nested relation inserts must be single-row")
	}
	fields := map[int]stmt.Expr{}
	for k, v := range row[0].ByField {
		fields[k] = v
	}
	fields[pairIdx] = parentPK
	childRow.Source = stmt.Values{Rows: []stmt.ExprRecordLit{{ByField: fields}}}
	childRow.Returning = stmt.Returning{Kind: stmt.ReturningNone}
	out, _, err := w.planInsert(childRow)
	return out, err
}

// disconnectChildren severs the existing link between a parent keyed by key
// and whatever child rows currently point at it through pairIdx: nullified
// if the inverse field is nullable, cascade-deleted otherwise. Shared by
// planDelete (the row is going away entirely) and a HasOne/HasMany
// assignment on an Update (S6: replacing a HasOne pointer disconnects the
// prior occupant before the new child is inserted).
func (w *writePlanner) disconnectChildren(childModel schema.Model, pairIdx int, key stmt.Expr) error {
	pairField := childModel.Fields[pairIdx]
	childFilter := stmt.Eq(stmt.Field(0, pairIdx), key)
	if pairField.Nullable {
		nullify := stmt.Update{
			Target:      stmt.UpdateTarget{Kind: stmt.InsertTargetModel, Model: childModel.Name},
			Filter:      childFilter,
			Assignments: []stmt.Assignment{{FieldIndex: pairIdx, Value: stmt.ExprValue{Value: stmt.NullValue{}}}},
			Returning:   stmt.Returning{Kind: stmt.ReturningNone},
		}
		_, err := w.planUpdate(nullify)
		return err
	}
	cascadeDel := stmt.Delete{
		Target: stmt.UpdateTarget{Kind: stmt.InsertTargetModel, Model: childModel.Name},
		Filter: childFilter,
	}
	_, err := w.planDelete(cascadeDel)
	return err
}

// planRelationAssignments implements a HasMany/HasOne field carried among an
// Update's Assignments: spec.md's HasOne-replacement contract (S6). The
// prior occupant(s) are disconnected, the new nested row(s) are inserted
// with their foreign key set to the statically-extracted parent key, and
// the parent row itself is otherwise left untouched.
func (w *writePlanner) planRelationAssignments(model schema.Model, upd stmt.Update, assignments []stmt.Assignment) (opir.Var, error) {
	key, ok := extractLiteralKey(stmt.Query{Body: stmt.ExprSet{Kind: stmt.ExprSetSelect, Select: &stmt.Select{Source: stmt.Source{Kind: stmt.SourceModel, Model: model.Name}, Filter: upd.Filter}}})
	if !ok {
		return 0, perr.New(perr.KindUnsupported, "writeplan: relation assignment on update requires a statically-extractable key filter")
	}

	var out opir.Var = -1
	for _, a := range assignments {
		f := model.Fields[a.FieldIndex]
		if f.PairField == nil {
			return 0, perr.Newf(perr.KindSchemaViolation, "writeplan: relation %q has no inverse field", f.Name).WithField(model.Name, f.Name)
		}
		childModel, err := modelByName(w.schema, f.TargetModel)
		if err != nil {
			return 0, err
		}
		pairIdx := *f.PairField

		if err := w.disconnectChildren(childModel, pairIdx, key); err != nil {
			return 0, err
		}

		children, err := nestedChildren(a.Value)
		if err != nil {
			return 0, err
		}
		for _, childRow := range children {
			v, err := w.planRelatedRow(childModel, pairIdx, key, childRow)
			if err != nil {
				return 0, err
			}
			out = v
		}
	}
	return out, nil
}

// planUpdate implements §4.5's Update contract: primitive assignments lower
// through internal/lower as usual; a unique-secondary-index assignment on a
// backend lacking native support (capability.UniqueSecondaryIndex == false)
// is instead compiled to a FindPkByIndex resolving the filter's literal old
// value to a primary key, followed by an opir.ReadModifyWrite gated on that
// same old value (S4).
func (w *writePlanner) planUpdate(upd stmt.Update) (opir.Var, error) {
	model, err := modelByName(w.schema, upd.Target.Model)
	if err != nil {
		return 0, err
	}

	var relationAssignments, primitiveAssignments []stmt.Assignment
	for _, a := range upd.Assignments {
		if k := model.Fields[a.FieldIndex].Kind; k == schema.FieldHasMany || k == schema.FieldHasOne {
			relationAssignments = append(relationAssignments, a)
			continue
		}
		primitiveAssignments = append(primitiveAssignments, a)
	}
	if len(relationAssignments) > 0 {
		out, err := w.planRelationAssignments(model, upd, relationAssignments)
		if err != nil {
			return 0, err
		}
		if len(primitiveAssignments) == 0 {
			return out, nil
		}
		upd = stmt.Update{Target: upd.Target, Filter: upd.Filter, Assignments: primitiveAssignments, Condition: upd.Condition, Returning: upd.Returning}
	}

	uniqueAssignment := -1
	if !w.cap.UniqueSecondaryIndex {
		table := w.schema.TableFor(model.ID)
		for ai, a := range upd.Assignments {
			if indexedByUniqueSecondary(table, w.schema.MappingFor(model.ID), a.FieldIndex) {
				uniqueAssignment = ai
				break
			}
		}
	}

	if uniqueAssignment < 0 {
		lowered, err := lower.Statement(w.schema, upd)
		if err != nil {
			return 0, err
		}
		out := w.freshVar()
		w.emit(opir.ExecStatement{Out: out, Stmt: lowered})
		return out, nil
	}

	// S4's filter is the statement's only statically-known handle on the
	// row: the indexed column's *old* value (e.g. email = "a"). That value
	// both seeds the FindPkByIndex lookup that resolves it to a primary
	// key and becomes ReadModifyWrite's OldKeyExpr precondition -- opir.Eval
	// requires that expression pre-folded to a literal (see
	// opir.literalValue), which a filter of shape field = <literal> always
	// is.
	oldKey, ok := extractLiteralKey(stmt.Query{Body: stmt.ExprSet{Kind: stmt.ExprSetSelect, Select: &stmt.Select{Source: stmt.Source{Kind: stmt.SourceModel, Model: model.Name}, Filter: upd.Filter}}})
	if !ok {
		return 0, perr.New(perr.KindUnsupported, "writeplan: unique-index update requires a statically-extractable old-value filter")
	}
	oldKeyRow, ok := literalExprToRow(oldKey)
	if !ok {
		return 0, perr.New(perr.KindUnsupported, "writeplan: unique-index update key did not constantize")
	}

	table := w.schema.TableFor(model.ID)
	mapping := w.schema.MappingFor(model.ID)
	idxName, _ := uniqueIndexFor(table, mapping, upd.Assignments[uniqueAssignment].FieldIndex)

	indexKeyVar := w.freshVar()
	w.emit(opir.SetVar{Out: indexKeyVar, Rows: []driver.Row{oldKeyRow}})

	pkVar := w.freshVar()
	w.emit(opir.FindPkByIndex{Out: pkVar, IndexVar: indexKeyVar, Table: table.Name, IndexName: idxName})

	assignments := make([]stmt.Assignment, len(upd.Assignments))
	var newVal stmt.Expr
	for i, a := range upd.Assignments {
		col := columnFor(mapping, table, a.FieldIndex)
		assignments[i] = stmt.Assignment{Column: col, Value: a.Value}
		if i == uniqueAssignment {
			newVal = a.Value
		}
	}

	out := w.freshVar()
	w.emit(opir.ReadModifyWrite{
		Out:         out,
		Table:       table.Name,
		Keys:        pkVar,
		IndexTable:  idxName,
		OldKeyExpr:  oldKey,
		NewKeyExpr:  newVal,
		Assignments: assignments,
	})
	return out, nil
}

// planDelete implements §4.5's Delete contract: HasMany/HasOne children are
// either nullified (nullable inverse FK) or recursively deleted (non-null
// inverse FK), matching S6, then the row itself is deleted.
func (w *writePlanner) planDelete(del stmt.Delete) (opir.Var, error) {
	model, err := modelByName(w.schema, del.Target.Model)
	if err != nil {
		return 0, err
	}

	key, hasKey := extractLiteralKey(stmt.Query{Body: stmt.ExprSet{Kind: stmt.ExprSetSelect, Select: &stmt.Select{Source: stmt.Source{Kind: stmt.SourceModel, Model: model.Name}, Filter: del.Filter}}})

	for _, f := range model.Fields {
		if f.Kind != schema.FieldHasMany && f.Kind != schema.FieldHasOne {
			continue
		}
		if f.PairField == nil {
			continue
		}
		childModel, err := modelByName(w.schema, f.TargetModel)
		if err != nil {
			return 0, err
		}
		if !hasKey {
			return 0, perr.New(perr.KindUnsupported, "writeplan: relation cascade delete requires a statically-extractable key filter")
		}
		if err := w.disconnectChildren(childModel, *f.PairField, key); err != nil {
			return 0, err
		}
	}

	lowered, err := lower.Statement(w.schema, del)
	if err != nil {
		return 0, err
	}
	out := w.freshVar()
	w.emit(opir.ExecStatement{Out: out, Stmt: lowered})
	return out, nil
}

// literalExprToRow converts a key expression already reduced to a constant
// (by extractLiteralKey) into the driver.Row shape opir Actions key on: a
// single value for a scalar key, one value per field for a composite key.
func literalExprToRow(e stmt.Expr) (driver.Row, bool) {
	switch v := e.(type) {
	case stmt.ExprValue:
		return driver.Row{v.Value}, true
	case stmt.ExprRecord:
		row := make(driver.Row, len(v.Fields))
		for i, f := range v.Fields {
			lit, ok := f.(stmt.ExprValue)
			if !ok {
				return nil, false
			}
			row[i] = lit.Value
		}
		return row, true
	default:
		return nil, false
	}
}

func columnFor(mapping schema.Mapping, table schema.Table, fieldIdx int) string {
	for c := range table.Columns {
		if mapping.FieldForColumn(c) == fieldIdx {
			return table.Columns[c].Name
		}
	}
	return ""
}

func indexedByUniqueSecondary(table schema.Table, mapping schema.Mapping, fieldIdx int) bool {
	col := -1
	for c := range table.Columns {
		if mapping.FieldForColumn(c) == fieldIdx {
			col = c
			break
		}
	}
	if col < 0 {
		return false
	}
	for _, idx := range table.Indices {
		if !idx.Unique || isPKColumns(table, idx) {
			continue
		}
		for _, c := range idx.Columns {
			if c == col {
				return true
			}
		}
	}
	return false
}

func uniqueIndexFor(table schema.Table, mapping schema.Mapping, fieldIdx int) (indexName, column string) {
	col := -1
	for c := range table.Columns {
		if mapping.FieldForColumn(c) == fieldIdx {
			col = c
			break
		}
	}
	for _, idx := range table.Indices {
		if !idx.Unique || isPKColumns(table, idx) {
			continue
		}
		for _, c := range idx.Columns {
			if c == col {
				return idx.Name, table.Columns[c].Name
			}
		}
	}
	return "", ""
}

func isPKColumns(table schema.Table, idx schema.Index) bool {
	pk := table.PKIndex()
	if len(pk.Columns) != len(idx.Columns) {
		return false
	}
	for i := range pk.Columns {
		if pk.Columns[i] != idx.Columns[i] {
			return false
		}
	}
	return true
}
