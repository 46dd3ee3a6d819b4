// Package sqlcompile renders lowered, table-altitude stmt.Statements to
// parameterized SQL text and decodes database/sql result rows back into
// driver.Row, shared by the postgres, mysql and sqlite driver packages.
// Grounded on the dialect-aware compiler in
// v3/internal/core/query/compiler/compiler.go (placeholder style keyed off
// the target dialect) and the adapter shape in
// v3/internal/adapters/database/{postgres,mysql,sqlite}/adapter.go.
package sqlcompile

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/toasty-go/internal/perr"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// Placeholder renders the n-th (1-based) bind parameter marker for a
// dialect: "$1" style for Postgres, "?" for MySQL/SQLite.
type Placeholder func(n int) string

// Dollar is the Postgres placeholder style.
func Dollar(n int) string { return fmt.Sprintf("$%d", n) }

// Question is the MySQL/SQLite placeholder style.
func Question(int) string { return "?" }

// Compiled is one statement's rendered text plus its bind arguments, in the
// order the compiler encountered them.
type Compiled struct {
	SQL  string
	Args []any
}

type compiler struct {
	ph     Placeholder
	n      int
	args   []any
	inputs []stmt.Value // driver.ExecStatement's positional ExprArg bindings, flattened
}

// Compile renders st (already lowered to table altitude by
// internal/lower and simplified by internal/simplify) into SQL text and a
// bind-argument list. inputArgs supplies the values ExprArg nodes reference
// (the materializer's parent-row batch-rewrite binds one row position at a
// time; the write planner's nested-insert key binds a single value at
// position 0).
func Compile(st stmt.Statement, ph Placeholder, inputArgs []stmt.Value) (Compiled, error) {
	c := &compiler{ph: ph, inputs: inputArgs}
	var b strings.Builder
	var err error
	switch v := st.(type) {
	case stmt.Query:
		err = c.compileQuery(&b, v)
	case stmt.Insert:
		err = c.compileInsert(&b, v)
	case stmt.Update:
		err = c.compileUpdate(&b, v)
	case stmt.Delete:
		err = c.compileDelete(&b, v)
	default:
		return Compiled{}, perr.Newf(perr.KindUnsupported, "sql: unsupported statement %T", st)
	}
	if err != nil {
		return Compiled{}, err
	}
	return Compiled{SQL: b.String(), Args: c.args}, nil
}

func (c *compiler) compileQuery(b *strings.Builder, q stmt.Query) error {
	sel := q.Body.AsSelect()
	if sel == nil {
		return perr.New(perr.KindUnsupported, "sql: only Select-bodied queries are compiled")
	}
	if sel.Source.Kind != stmt.SourceTable {
		return perr.New(perr.KindUnsupported, "sql: query source is not table-altitude")
	}
	b.WriteString("SELECT * FROM ")
	b.WriteString(quoteIdent(sel.Source.Table))
	if sel.Filter != nil && !stmt.IsTrue(sel.Filter) {
		b.WriteString(" WHERE ")
		if err := c.compileExpr(b, sel.Filter); err != nil {
			return err
		}
	}
	if len(q.OrderBy) > 0 {
		b.WriteString(" ORDER BY ")
		for i, ob := range q.OrderBy {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := c.compileExpr(b, ob.Expr); err != nil {
				return err
			}
			if ob.Desc {
				b.WriteString(" DESC")
			}
		}
	}
	if q.Limit != nil {
		fmt.Fprintf(b, " LIMIT %d", *q.Limit)
	}
	if q.Offset != nil {
		fmt.Fprintf(b, " OFFSET %d", *q.Offset)
	}
	if q.Lock == stmt.LockForUpdate {
		b.WriteString(" FOR UPDATE")
	} else if q.Lock == stmt.LockForShare {
		b.WriteString(" FOR SHARE")
	}
	return nil
}

func (c *compiler) compileInsert(b *strings.Builder, ins stmt.Insert) error {
	if ins.Target.Kind != stmt.InsertTargetTable {
		return perr.New(perr.KindUnsupported, "sql: insert target is not table-altitude")
	}
	if len(ins.Source.Rows) == 0 {
		return perr.New(perr.KindUnsupported, "sql: insert has no rows")
	}
	ncols := len(ins.Source.Rows[0].Positional)
	fmt.Fprintf(b, "INSERT INTO %s VALUES ", quoteIdent(ins.Target.Table))
	for ri, row := range ins.Source.Rows {
		if ri > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for i := 0; i < ncols; i++ {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := c.compileExpr(b, row.Positional[i]); err != nil {
				return err
			}
		}
		b.WriteString(")")
	}
	return appendReturning(b, ins.Returning)
}

func (c *compiler) compileUpdate(b *strings.Builder, upd stmt.Update) error {
	if upd.Target.Kind != stmt.InsertTargetTable {
		return perr.New(perr.KindUnsupported, "sql: update target is not table-altitude")
	}
	fmt.Fprintf(b, "UPDATE %s SET ", quoteIdent(upd.Target.Table))
	for i, a := range upd.Assignments {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(quoteIdent(a.Column))
		b.WriteString(" = ")
		if err := c.compileExpr(b, a.Value); err != nil {
			return err
		}
	}
	filter := upd.Filter
	if upd.Condition != nil && !stmt.IsTrue(upd.Condition) {
		filter = stmt.And(filter, upd.Condition)
	}
	if filter != nil && !stmt.IsTrue(filter) {
		b.WriteString(" WHERE ")
		if err := c.compileExpr(b, filter); err != nil {
			return err
		}
	}
	return appendReturning(b, upd.Returning)
}

func (c *compiler) compileDelete(b *strings.Builder, del stmt.Delete) error {
	if del.Target.Kind != stmt.InsertTargetTable {
		return perr.New(perr.KindUnsupported, "sql: delete target is not table-altitude")
	}
	fmt.Fprintf(b, "DELETE FROM %s", quoteIdent(del.Target.Table))
	if del.Filter != nil && !stmt.IsTrue(del.Filter) {
		b.WriteString(" WHERE ")
		if err := c.compileExpr(b, del.Filter); err != nil {
			return err
		}
	}
	return nil
}

// appendReturning renders RETURNING * whenever r is not ReturningNone.
// Neither this function nor the write planner checks
// capability.ReturningFromMutation, so the clause is emitted on every
// dialect, including those without RETURNING support.
func appendReturning(b *strings.Builder, r stmt.Returning) error {
	if r.Kind != stmt.ReturningNone {
		b.WriteString(" RETURNING *")
	}
	return nil
}

func (c *compiler) compileExpr(b *strings.Builder, e stmt.Expr) error {
	switch v := e.(type) {
	case stmt.ExprValue:
		c.bind(b, v.Value)
		return nil
	case stmt.ExprArg:
		if v.Position >= len(c.inputs) {
			return perr.Newf(perr.KindUnsupported, "sql: ExprArg position %d has no bound input", v.Position)
		}
		c.bind(b, c.inputs[v.Position])
		return nil
	case stmt.ExprColumn:
		b.WriteString(quoteIdent(v.Column))
		return nil
	case stmt.ExprAnd:
		return c.compileJunction(b, " AND ", v.Operands)
	case stmt.ExprOr:
		return c.compileJunction(b, " OR ", v.Operands)
	case stmt.ExprNot:
		b.WriteString("NOT (")
		if err := c.compileExpr(b, v.Expr); err != nil {
			return err
		}
		b.WriteString(")")
		return nil
	case stmt.ExprBinaryOp:
		if err := c.compileExpr(b, v.Lhs); err != nil {
			return err
		}
		b.WriteString(" ")
		b.WriteString(binaryOpSQL(v.Op))
		b.WriteString(" ")
		return c.compileExpr(b, v.Rhs)
	case stmt.ExprInList:
		if err := c.compileExpr(b, v.Expr); err != nil {
			return err
		}
		b.WriteString(" IN (")
		list, ok := v.List.(stmt.ExprList)
		if !ok {
			return perr.New(perr.KindUnsupported, "sql: IN list operand is not a literal list")
		}
		for i, item := range list.Items {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := c.compileExpr(b, item); err != nil {
				return err
			}
		}
		b.WriteString(")")
		return nil
	case stmt.ExprIsNull:
		if err := c.compileExpr(b, v.Expr); err != nil {
			return err
		}
		if v.Negate {
			b.WriteString(" IS NOT NULL")
		} else {
			b.WriteString(" IS NULL")
		}
		return nil
	case stmt.ExprPattern:
		if err := c.compileExpr(b, v.Expr); err != nil {
			return err
		}
		b.WriteString(" LIKE ")
		return c.compilePatternValue(b, v)
	case stmt.ExprConcatStr:
		b.WriteString("(")
		if err := c.compileExpr(b, v.Lhs); err != nil {
			return err
		}
		fmt.Fprintf(b, " || %s || ", sqlLiteralString(v.Sep))
		if err := c.compileExpr(b, v.Rhs); err != nil {
			return err
		}
		b.WriteString(")")
		return nil
	case stmt.ExprCast:
		b.WriteString("CAST(")
		if err := c.compileExpr(b, v.Expr); err != nil {
			return err
		}
		b.WriteString(" AS ")
		b.WriteString(castTypeSQL(v.Type))
		b.WriteString(")")
		return nil
	default:
		return perr.Newf(perr.KindUnsupported, "sql: unsupported expression %T", e)
	}
}

func (c *compiler) compileJunction(b *strings.Builder, sep string, operands []stmt.Expr) error {
	if len(operands) == 0 {
		b.WriteString("TRUE")
		return nil
	}
	b.WriteString("(")
	for i, o := range operands {
		if i > 0 {
			b.WriteString(sep)
		}
		if err := c.compileExpr(b, o); err != nil {
			return err
		}
	}
	b.WriteString(")")
	return nil
}

// compilePatternValue renders a BeginsWith guard as a LIKE '<prefix>%'
// literal (the prefix is always a compile-time constant emitted by
// internal/lower's discriminant guard) and a Like pattern as a bound
// parameter.
func (c *compiler) compilePatternValue(b *strings.Builder, p stmt.ExprPattern) error {
	lit, ok := p.Pattern.(stmt.ExprValue)
	if !ok {
		return c.compileExpr(b, p.Pattern)
	}
	s, ok := lit.Value.(stmt.StringValue)
	if !ok {
		return c.compileExpr(b, p.Pattern)
	}
	switch p.Kind {
	case stmt.PatternBeginsWith:
		b.WriteString(sqlLiteralString(string(s) + "%"))
	default:
		c.bind(b, s)
	}
	return nil
}

func (c *compiler) bind(b *strings.Builder, v stmt.Value) {
	c.n++
	c.args = append(c.args, goValue(v))
	b.WriteString(c.ph(c.n))
}

func binaryOpSQL(op stmt.BinaryOp) string {
	switch op {
	case stmt.OpEq:
		return "="
	case stmt.OpNe:
		return "<>"
	case stmt.OpLt:
		return "<"
	case stmt.OpLe:
		return "<="
	case stmt.OpGt:
		return ">"
	case stmt.OpGe:
		return ">="
	default:
		return "="
	}
}

func castTypeSQL(t stmt.Type) string {
	switch t.Kind {
	case stmt.KindString:
		return "TEXT"
	default:
		return "TEXT"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlLiteralString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
