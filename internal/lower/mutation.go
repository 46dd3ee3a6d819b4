package lower

import (
	"github.com/satishbabariya/toasty-go/internal/perr"
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/simplify"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

func lowerInsert(s schema.Schema, ins stmt.Insert) (stmt.Statement, error) {
	if ins.Target.Kind != stmt.InsertTargetModel {
		return ins, nil
	}
	m, err := modelByName(s, ins.Target.Model)
	if err != nil {
		return nil, err
	}
	mapping := s.MappingFor(m.ID)
	table := s.TableFor(m.ID)

	rows := make([]stmt.ExprRecordLit, len(ins.Source.Rows))
	for i, row := range ins.Source.Rows {
		lowered := make(map[int]stmt.Expr, len(row.ByField))
		for field, expr := range row.ByField {
			lowered[field] = substituteFields(mapping, expr)
		}
		positional := make([]stmt.Expr, len(table.Columns))
		for col := range table.Columns {
			positional[col] = lowerColumnExpr(mapping, col, lowered)
		}
		rows[i] = stmt.ExprRecordLit{Positional: positional}
	}

	out := stmt.Insert{
		Target:    stmt.InsertTarget{Kind: stmt.InsertTargetTable, Table: table.Name},
		Source:    stmt.Values{Rows: rows},
		Returning: lowerReturning(mapping, ins.Returning),
	}
	return simplify.Statement(out), nil
}

// lowerUpdate implements step 4 (assignment lowering) and folds the
// resulting column filter through steps 6-7.
func lowerUpdate(s schema.Schema, upd stmt.Update) (stmt.Statement, error) {
	if upd.Target.Kind != stmt.InsertTargetModel {
		return upd, nil
	}
	m, err := modelByName(s, upd.Target.Model)
	if err != nil {
		return nil, err
	}
	mapping := s.MappingFor(m.ID)
	table := s.TableFor(m.ID)

	for _, fi := range m.PrimaryKey {
		for _, a := range upd.Assignments {
			if a.FieldIndex == fi {
				return nil, perr.Newf(perr.KindSchemaViolation, "lower: update assigns to primary key field %q", m.Fields[fi].Name).WithModel(m.Name)
			}
		}
	}

	assignments := make([]stmt.Assignment, 0, len(upd.Assignments))
	keys := make([]int, 0, len(upd.Assignments))
	for _, a := range upd.Assignments {
		col := -1
		for c := range table.Columns {
			if mapping.FieldForColumn(c) == a.FieldIndex {
				col = c
				break
			}
		}
		if col == -1 {
			return nil, perr.Newf(perr.KindSchemaViolation, "lower: no column maps to field %q", m.Fields[a.FieldIndex].Name).WithModel(m.Name)
		}
		value := substituteFields(mapping, a.Value)
		colExpr := lowerColumnExpr(mapping, col, map[int]stmt.Expr{a.FieldIndex: value})
		assignments = append(assignments, stmt.Assignment{Column: table.Columns[col].Name, Value: colExpr})
		keys = append(keys, a.FieldIndex)
	}

	out := stmt.Update{
		Target:      stmt.UpdateTarget{Kind: stmt.InsertTargetTable, Table: table.Name},
		Filter:      foldSpecialForms(substituteFields(mapping, upd.Filter)),
		Assignments: assignments,
		Condition:   substituteFields(mapping, upd.Condition),
		Returning:   lowerReturning(mapping, withDefaultKeys(upd.Returning, keys)),
	}
	out.Filter = injectDiscriminantConstraint(mapping, table, out.Filter)
	return simplify.Statement(out), nil
}

func withDefaultKeys(r stmt.Returning, keys []int) stmt.Returning {
	if r.Kind == stmt.ReturningChanged && r.Keys == nil {
		r.Keys = keys
	}
	return r
}

func lowerDelete(s schema.Schema, del stmt.Delete) (stmt.Statement, error) {
	if del.Target.Kind != stmt.InsertTargetModel {
		return del, nil
	}
	m, err := modelByName(s, del.Target.Model)
	if err != nil {
		return nil, err
	}
	mapping := s.MappingFor(m.ID)
	table := s.TableFor(m.ID)

	out := stmt.Delete{
		Target: stmt.UpdateTarget{Kind: stmt.InsertTargetTable, Table: table.Name},
		Filter: foldSpecialForms(substituteFields(mapping, del.Filter)),
	}
	out.Filter = injectDiscriminantConstraint(mapping, table, out.Filter)
	return simplify.Statement(out), nil
}
