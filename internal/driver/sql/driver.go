package sqlcompile

import (
	"context"
	gosql "database/sql"

	"github.com/satishbabariya/toasty-go/internal/capability"
	"github.com/satishbabariya/toasty-go/internal/driver"
	"github.com/satishbabariya/toasty-go/internal/perr"
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// Driver implements driver.Driver over a *database/sql.DB shared by the
// postgres, mysql and sqlite packages; only the placeholder style and
// capability matrix differ between them. Grounded on the Execute/Query/Begin
// shape of v3/internal/adapters/database/*/adapter.go, collapsed into one
// generic implementation since the three adapters differed only in
// placeholder syntax and open driver name.
type Driver struct {
	DB     *gosql.DB
	Schema schema.Schema
	Cap    capability.Capability
	PH     Placeholder
}

func (d *Driver) Capability() capability.Capability { return d.Cap }

func (d *Driver) ExecStatement(ctx context.Context, st stmt.Statement, inputs []driver.Row) ([]driver.Row, error) {
	var inputArgs []stmt.Value
	if len(inputs) > 0 {
		inputArgs = inputs[0]
	}
	compiled, err := Compile(st, d.PH, inputArgs)
	if err != nil {
		return nil, err
	}

	table, returns := d.targetTable(st)
	if !returns {
		if _, err := d.DB.ExecContext(ctx, compiled.SQL, compiled.Args...); err != nil {
			return nil, perr.Newf(perr.KindUnsupported, "sql: exec failed: %v", err)
		}
		return nil, nil
	}

	rows, err := d.DB.QueryContext(ctx, compiled.SQL, compiled.Args...)
	if err != nil {
		return nil, perr.Newf(perr.KindUnsupported, "sql: query failed: %v", err)
	}
	defer rows.Close()
	return d.scanAll(rows, table)
}

// targetTable reports the schema.Table a statement reads/writes and whether
// the caller should expect result rows back (a Query always does; an
// Insert/Update/Delete only when it carries a non-None Returning).
func (d *Driver) targetTable(st stmt.Statement) (schema.Table, bool) {
	switch v := st.(type) {
	case stmt.Query:
		if sel := v.Body.AsSelect(); sel != nil {
			return d.tableByName(sel.Source.Table), true
		}
	case stmt.Insert:
		return d.tableByName(v.Target.Table), v.Returning.Kind != stmt.ReturningNone
	case stmt.Update:
		return d.tableByName(v.Target.Table), v.Returning.Kind != stmt.ReturningNone
	case stmt.Delete:
		return schema.Table{}, false
	}
	return schema.Table{}, false
}

func (d *Driver) tableByName(name string) schema.Table {
	for _, t := range d.Schema.Db.Tables {
		if t.Name == name {
			return t
		}
	}
	return schema.Table{}
}

func (d *Driver) scanAll(rows *gosql.Rows, table schema.Table) ([]driver.Row, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, perr.Newf(perr.KindUnsupported, "sql: columns: %v", err)
	}
	var out []driver.Row
	for rows.Next() {
		scanned := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range scanned {
			ptrs[i] = &scanned[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, perr.Newf(perr.KindUnsupported, "sql: scan: %v", err)
		}
		tableCols := table.Columns
		if len(tableCols) != len(scanned) {
			tableCols = make([]schema.Column, len(scanned))
		}
		row, err := DecodeRow(tableCols, scanned)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// unsupportedKV is returned by the key-value-primitive methods of the
// Driver interface: a SQL-capability backend's materializer/write planner
// never emits GetByKey/FindPkByIndex/DeleteByKey/UpdateByKey/QueryPk/
// ReadModifyWrite (internal/materialize and internal/writeplan branch on
// capability.SQL before choosing which Action family to emit), so reaching
// here is a planner bug, not a runtime condition to recover from.
func unsupportedKV(op string) error {
	return perr.Newf(perr.KindUnsupported, "sql: %s is a key-value primitive, unsupported by a SQL driver", op)
}

func (d *Driver) GetByKey(ctx context.Context, table string, keys []driver.Row) ([]driver.Row, error) {
	return nil, unsupportedKV("GetByKey")
}

func (d *Driver) FindPkByIndex(ctx context.Context, table, indexName string, keys []driver.Row) ([]driver.Row, error) {
	return nil, unsupportedKV("FindPkByIndex")
}

func (d *Driver) DeleteByKey(ctx context.Context, table string, keys []driver.Row) error {
	return unsupportedKV("DeleteByKey")
}

func (d *Driver) UpdateByKey(ctx context.Context, table string, keys []driver.Row, assignments []stmt.Assignment, condition stmt.Expr) ([]driver.Row, error) {
	return nil, unsupportedKV("UpdateByKey")
}

func (d *Driver) QueryPk(ctx context.Context, table string, indexFilter, rowFilter stmt.Expr) ([]driver.Row, error) {
	return nil, unsupportedKV("QueryPk")
}

func (d *Driver) ReadModifyWrite(ctx context.Context, table string, keys []driver.Row, indexTable string, oldKey, newKey stmt.Value, assignments []stmt.Assignment) ([]driver.Row, error) {
	return nil, unsupportedKV("ReadModifyWrite")
}

var _ driver.Driver = (*Driver)(nil)
