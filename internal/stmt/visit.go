package stmt

// MapExpr rewrites expr in post-order: every child is rewritten first, then
// fn is applied to the rebuilt node. This is the single traversal primitive
// the simplifier, lowering pass and materialization planner all build on —
// in place of a hand-rolled visitor method per Expr variant, a mutable
// post-order walk driven by one exhaustive switch keeps every call site a
// compile error away from silently skipping a new variant.
func MapExpr(expr Expr, fn func(Expr) Expr) Expr {
	switch e := expr.(type) {
	case ExprValue, ExprArg, ExprField, ExprColumn, ExprCte, ExprKey:
		return fn(expr)
	case ExprAnd:
		operands := make([]Expr, len(e.Operands))
		for i, o := range e.Operands {
			operands[i] = MapExpr(o, fn)
		}
		return fn(ExprAnd{Operands: operands})
	case ExprOr:
		operands := make([]Expr, len(e.Operands))
		for i, o := range e.Operands {
			operands[i] = MapExpr(o, fn)
		}
		return fn(ExprOr{Operands: operands})
	case ExprNot:
		return fn(ExprNot{Expr: MapExpr(e.Expr, fn)})
	case ExprBinaryOp:
		return fn(ExprBinaryOp{Op: e.Op, Lhs: MapExpr(e.Lhs, fn), Rhs: MapExpr(e.Rhs, fn)})
	case ExprInList:
		return fn(ExprInList{Expr: MapExpr(e.Expr, fn), List: MapExpr(e.List, fn)})
	case ExprInSubquery:
		return fn(ExprInSubquery{Expr: MapExpr(e.Expr, fn), Query: e.Query})
	case ExprIsNull:
		return fn(ExprIsNull{Expr: MapExpr(e.Expr, fn), Negate: e.Negate})
	case ExprPattern:
		return fn(ExprPattern{Kind: e.Kind, Expr: MapExpr(e.Expr, fn), Pattern: MapExpr(e.Pattern, fn)})
	case ExprConcat:
		operands := make([]Expr, len(e.Operands))
		for i, o := range e.Operands {
			operands[i] = MapExpr(o, fn)
		}
		return fn(ExprConcat{Operands: operands})
	case ExprConcatStr:
		return fn(ExprConcatStr{Lhs: MapExpr(e.Lhs, fn), Rhs: MapExpr(e.Rhs, fn), Sep: e.Sep})
	case ExprRecord:
		fields := make([]Expr, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = MapExpr(f, fn)
		}
		return fn(ExprRecord{Fields: fields})
	case ExprList:
		items := make([]Expr, len(e.Items))
		for i, it := range e.Items {
			items[i] = MapExpr(it, fn)
		}
		return fn(ExprList{Items: items})
	case ExprProject:
		return fn(ExprProject{Base: MapExpr(e.Base, fn), Path: e.Path})
	case ExprMap:
		return fn(ExprMap{Base: MapExpr(e.Base, fn), Body: MapExpr(e.Body, fn)})
	case ExprAny:
		return fn(ExprAny{Base: MapExpr(e.Base, fn)})
	case ExprCast:
		return fn(ExprCast{Expr: MapExpr(e.Expr, fn), Type: e.Type})
	case ExprUncast:
		return fn(ExprUncast{Expr: MapExpr(e.Expr, fn), Type: e.Type})
	case ExprDecodeEnum:
		return fn(ExprDecodeEnum{Base: MapExpr(e.Base, fn), Disc: e.Disc, BranchType: e.BranchType})
	case ExprCount:
		return fn(ExprCount{Arg: MapExpr(e.Arg, fn)})
	case ExprFuncCall:
		args := make([]Expr, len(e.Args))
		for i, a := range e.Args {
			args[i] = MapExpr(a, fn)
		}
		return fn(ExprFuncCall{Name: e.Name, Args: args})
	case ExprStmt:
		// Sub-statements are planned independently; MapExpr does not
		// recurse into them so a lowering pass over the parent never
		// accidentally rewrites the child's own altitude.
		return fn(expr)
	default:
		panic("stmt: MapExpr: unhandled Expr variant")
	}
}

// WalkExpr visits every node of expr in pre-order, calling fn on each. It
// does not recurse into nested ExprStmt sub-statements.
func WalkExpr(expr Expr, fn func(Expr)) {
	fn(expr)
	switch e := expr.(type) {
	case ExprAnd:
		for _, o := range e.Operands {
			WalkExpr(o, fn)
		}
	case ExprOr:
		for _, o := range e.Operands {
			WalkExpr(o, fn)
		}
	case ExprNot:
		WalkExpr(e.Expr, fn)
	case ExprBinaryOp:
		WalkExpr(e.Lhs, fn)
		WalkExpr(e.Rhs, fn)
	case ExprInList:
		WalkExpr(e.Expr, fn)
		WalkExpr(e.List, fn)
	case ExprInSubquery:
		WalkExpr(e.Expr, fn)
	case ExprIsNull:
		WalkExpr(e.Expr, fn)
	case ExprPattern:
		WalkExpr(e.Expr, fn)
		WalkExpr(e.Pattern, fn)
	case ExprConcat:
		for _, o := range e.Operands {
			WalkExpr(o, fn)
		}
	case ExprConcatStr:
		WalkExpr(e.Lhs, fn)
		WalkExpr(e.Rhs, fn)
	case ExprRecord:
		for _, f := range e.Fields {
			WalkExpr(f, fn)
		}
	case ExprList:
		for _, it := range e.Items {
			WalkExpr(it, fn)
		}
	case ExprProject:
		WalkExpr(e.Base, fn)
	case ExprMap:
		WalkExpr(e.Base, fn)
		WalkExpr(e.Body, fn)
	case ExprAny:
		WalkExpr(e.Base, fn)
	case ExprCast:
		WalkExpr(e.Expr, fn)
	case ExprUncast:
		WalkExpr(e.Expr, fn)
	case ExprDecodeEnum:
		WalkExpr(e.Base, fn)
	case ExprCount:
		WalkExpr(e.Arg, fn)
	case ExprFuncCall:
		for _, a := range e.Args {
			WalkExpr(a, fn)
		}
	}
}

// Equal reports deep structural equality between two expressions, used by
// the simplifier's idempotence, absorption and complement rules in place of
// the derived PartialEq the reference implementation relies on.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case ExprValue:
		y, ok := b.(ExprValue)
		return ok && valueEqual(x.Value, y.Value)
	case ExprArg:
		y, ok := b.(ExprArg)
		return ok && x.Position == y.Position
	case ExprField:
		y, ok := b.(ExprField)
		return ok && x == y
	case ExprColumn:
		y, ok := b.(ExprColumn)
		return ok && x == y
	case ExprCte:
		y, ok := b.(ExprCte)
		return ok && x == y
	case ExprKey:
		_, ok := b.(ExprKey)
		return ok
	case ExprAnd:
		y, ok := b.(ExprAnd)
		return ok && equalExprSlice(x.Operands, y.Operands)
	case ExprOr:
		y, ok := b.(ExprOr)
		return ok && equalExprSlice(x.Operands, y.Operands)
	case ExprNot:
		y, ok := b.(ExprNot)
		return ok && Equal(x.Expr, y.Expr)
	case ExprBinaryOp:
		y, ok := b.(ExprBinaryOp)
		return ok && x.Op == y.Op && Equal(x.Lhs, y.Lhs) && Equal(x.Rhs, y.Rhs)
	case ExprInList:
		y, ok := b.(ExprInList)
		return ok && Equal(x.Expr, y.Expr) && Equal(x.List, y.List)
	case ExprIsNull:
		y, ok := b.(ExprIsNull)
		return ok && x.Negate == y.Negate && Equal(x.Expr, y.Expr)
	case ExprPattern:
		y, ok := b.(ExprPattern)
		return ok && x.Kind == y.Kind && Equal(x.Expr, y.Expr) && Equal(x.Pattern, y.Pattern)
	case ExprConcatStr:
		y, ok := b.(ExprConcatStr)
		return ok && x.Sep == y.Sep && Equal(x.Lhs, y.Lhs) && Equal(x.Rhs, y.Rhs)
	case ExprProject:
		y, ok := b.(ExprProject)
		if !ok || len(x.Path) != len(y.Path) {
			return false
		}
		for i := range x.Path {
			if x.Path[i] != y.Path[i] {
				return false
			}
		}
		return Equal(x.Base, y.Base)
	case ExprCast:
		y, ok := b.(ExprCast)
		return ok && x.Type.Equal(y.Type) && Equal(x.Expr, y.Expr)
	case ExprDecodeEnum:
		y, ok := b.(ExprDecodeEnum)
		return ok && x.Disc == y.Disc && Equal(x.Base, y.Base)
	case ExprCount:
		y, ok := b.(ExprCount)
		return ok && Equal(x.Arg, y.Arg)
	case ExprRecord:
		y, ok := b.(ExprRecord)
		return ok && equalExprSlice(x.Fields, y.Fields)
	case ExprList:
		y, ok := b.(ExprList)
		return ok && equalExprSlice(x.Items, y.Items)
	default:
		// The remaining variants (Map/Any/Stmt/FuncCall and the like) are
		// never reported equal, so an idempotence/absorption rule never
		// merges them.
		return false
	}
}

func equalExprSlice(a, b []Expr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, b Value) bool {
	if a.valueKind() != b.valueKind() {
		return false
	}
	switch x := a.(type) {
	case BoolValue:
		return x == b.(BoolValue)
	case I8Value:
		return x == b.(I8Value)
	case I16Value:
		return x == b.(I16Value)
	case I32Value:
		return x == b.(I32Value)
	case I64Value:
		return x == b.(I64Value)
	case U8Value:
		return x == b.(U8Value)
	case U16Value:
		return x == b.(U16Value)
	case U32Value:
		return x == b.(U32Value)
	case U64Value:
		return x == b.(U64Value)
	case StringValue:
		return x == b.(StringValue)
	case UuidValue:
		return x == b.(UuidValue)
	case NullValue:
		return true
	case BytesValue:
		y := b.(BytesValue)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if x[i] != y[i] {
				return false
			}
		}
		return true
	case IdValue:
		y := b.(IdValue)
		return x.Model == y.Model && valueEqual(x.Key, y.Key)
	case DecimalValue, BigDecimalValue, TimestampValue, ZonedValue, DateValue, TimeValue, DateTimeValue:
		return a == b
	default:
		return false
	}
}
