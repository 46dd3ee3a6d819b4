package simplify

import (
	"bytes"
	"strings"

	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// simplifyBinaryOp implements spec.md §4.1's comparison rules: constant
// folding, self-comparison, boolean collapse, canonical orientation, tuple
// decomposition and Id-cast stripping. Each rule is tried in order and the
// first that applies wins; the fixed-point driver in simplify.go re-enters
// this function on every pass until nothing changes.
func (s Simplifier) simplifyBinaryOp(v stmt.ExprBinaryOp) stmt.Expr {
	if lv, lok := v.Lhs.(stmt.ExprValue); lok {
		if rv, rok := v.Rhs.(stmt.ExprValue); rok {
			if folded, ok := foldConstant(v.Op, lv.Value, rv.Value); ok {
				return folded
			}
		}
	}

	// Self-comparison: f = f -> true, f != f -> false, but only when f is
	// known non-nullable (NULL = NULL is NULL, not true).
	if stmt.Equal(v.Lhs, v.Rhs) && s.isNonNullable(v.Lhs) {
		switch v.Op {
		case stmt.OpEq, stmt.OpLe, stmt.OpGe:
			return stmt.True
		case stmt.OpNe, stmt.OpLt, stmt.OpGt:
			return stmt.False
		}
	}

	// Boolean collapse against a literal boolean operand.
	if collapsed, ok := collapseBoolCompare(v); ok {
		return collapsed
	}

	// Tuple decomposition: (a, b) = (x, y) -> and(a = x, b = y);
	// (a, b) != (x, y) -> or(a != x, b != y).
	if lr, lok := v.Lhs.(stmt.ExprRecord); lok {
		if rr, rok := v.Rhs.(stmt.ExprRecord); rok && len(lr.Fields) == len(rr.Fields) {
			return decomposeTuple(v.Op, lr.Fields, rr.Fields)
		}
	}

	// Id-cast stripping: eq(cast(e, Id(m)), cast(other, Id(m))) -> eq(e, other).
	if stripped, ok := stripIdCast(v); ok {
		return stripped
	}

	// Canonical orientation: move a literal to the right-hand side.
	if _, lok := v.Lhs.(stmt.ExprValue); lok {
		if _, rok := v.Rhs.(stmt.ExprValue); !rok {
			return stmt.ExprBinaryOp{Op: v.Op.Reverse(), Lhs: v.Rhs, Rhs: v.Lhs}
		}
	}

	return v
}

func collapseBoolCompare(v stmt.ExprBinaryOp) (stmt.Expr, bool) {
	lit, other, litOnRight := boolLiteralOperand(v)
	if lit == nil {
		return nil, false
	}
	if !litOnRight {
		v = stmt.ExprBinaryOp{Op: v.Op.Reverse(), Lhs: other, Rhs: v.Rhs}
	}
	switch v.Op {
	case stmt.OpEq:
		if *lit {
			return other, true
		}
		return stmt.ExprNot{Expr: other}, true
	case stmt.OpNe:
		if *lit {
			return stmt.ExprNot{Expr: other}, true
		}
		return other, true
	default:
		return nil, false
	}
}

func boolLiteralOperand(v stmt.ExprBinaryOp) (*bool, stmt.Expr, bool) {
	if rv, ok := v.Rhs.(stmt.ExprValue); ok {
		if b, ok := rv.Value.(stmt.BoolValue); ok {
			val := bool(b)
			return &val, v.Lhs, true
		}
	}
	if lv, ok := v.Lhs.(stmt.ExprValue); ok {
		if b, ok := lv.Value.(stmt.BoolValue); ok {
			val := bool(b)
			return &val, v.Rhs, false
		}
	}
	return nil, nil, false
}

func decomposeTuple(op stmt.BinaryOp, lhs, rhs []stmt.Expr) stmt.Expr {
	pairs := make([]stmt.Expr, len(lhs))
	for i := range lhs {
		pairs[i] = stmt.ExprBinaryOp{Op: op, Lhs: lhs[i], Rhs: rhs[i]}
	}
	if op == stmt.OpNe {
		return stmt.ExprOr{Operands: pairs}
	}
	return stmt.ExprAnd{Operands: pairs}
}

func stripIdCast(v stmt.ExprBinaryOp) (stmt.Expr, bool) {
	if v.Op != stmt.OpEq && v.Op != stmt.OpNe {
		return nil, false
	}
	lc, lok := v.Lhs.(stmt.ExprCast)
	if !lok || lc.Type.Kind != stmt.KindID {
		return nil, false
	}
	rc, rok := v.Rhs.(stmt.ExprCast)
	if !rok || rc.Type.Kind != stmt.KindID || rc.Type.Model != lc.Type.Model {
		return nil, false
	}
	return stmt.ExprBinaryOp{Op: v.Op, Lhs: lc.Expr, Rhs: rc.Expr}, true
}

// collapseRanges implements and(x >= k, x <= k) -> x = k for any pair of
// ExprBinaryOp operands sharing the same non-literal side and the same
// literal bound; the reference planner applies this as part of index range
// analysis, but folding it here lets downstream simplification (idempotence,
// complement) see a single equality instead of two inequalities.
func collapseRanges(operands []stmt.Expr) []stmt.Expr {
	type bound struct {
		idx    int
		lhs    stmt.Expr
		value  stmt.Value
		isLow  bool // Ge == lower bound, Le == upper bound
	}
	var bounds []bound
	for i, o := range operands {
		b, ok := o.(stmt.ExprBinaryOp)
		if !ok {
			continue
		}
		rv, ok := b.Rhs.(stmt.ExprValue)
		if !ok {
			continue
		}
		switch b.Op {
		case stmt.OpGe:
			bounds = append(bounds, bound{idx: i, lhs: b.Lhs, value: rv.Value, isLow: true})
		case stmt.OpLe:
			bounds = append(bounds, bound{idx: i, lhs: b.Lhs, value: rv.Value, isLow: false})
		}
	}

	drop := make(map[int]bool)
	collapsedAt := make(map[int]stmt.Expr)
	for i := 0; i < len(bounds); i++ {
		if drop[bounds[i].idx] {
			continue
		}
		for j := i + 1; j < len(bounds); j++ {
			if drop[bounds[j].idx] {
				continue
			}
			if bounds[i].isLow == bounds[j].isLow {
				continue
			}
			if !stmt.Equal(bounds[i].lhs, bounds[j].lhs) {
				continue
			}
			if !stmt.Equal(stmt.ExprValue{Value: bounds[i].value}, stmt.ExprValue{Value: bounds[j].value}) {
				continue
			}
			collapsedAt[bounds[i].idx] = stmt.Eq(bounds[i].lhs, stmt.ExprValue{Value: bounds[i].value})
			drop[bounds[j].idx] = true
			break
		}
	}

	if len(drop) == 0 {
		return operands
	}
	out := make([]stmt.Expr, 0, len(operands))
	for i, o := range operands {
		if drop[i] {
			continue
		}
		if c, ok := collapsedAt[i]; ok {
			out = append(out, c)
			continue
		}
		out = append(out, o)
	}
	return out
}

// foldConstant evaluates op over two literal Values, returning the folded
// Expr and true, or (nil, false) if the combination isn't a foldable
// literal pair. A NULL operand on either side always folds to NULL — SQL
// three-valued logic, not a boolean.
func foldConstant(op stmt.BinaryOp, lhs, rhs stmt.Value) (stmt.Expr, bool) {
	if stmt.IsNull(lhs) || stmt.IsNull(rhs) {
		return stmt.ExprValue{Value: stmt.NullValue{}}, true
	}

	cmp, ok := compareValues(lhs, rhs)
	if !ok {
		return nil, false
	}

	var result bool
	switch op {
	case stmt.OpEq:
		result = cmp == 0
	case stmt.OpNe:
		result = cmp != 0
	case stmt.OpLt:
		result = cmp < 0
	case stmt.OpLe:
		result = cmp <= 0
	case stmt.OpGt:
		result = cmp > 0
	case stmt.OpGe:
		result = cmp >= 0
	default:
		return nil, false
	}
	if result {
		return stmt.True, true
	}
	return stmt.False, true
}

// compareValues orders two like-kinded Values, returning -1/0/1 and true, or
// (0, false) if the pair isn't a comparable kind this rule understands
// (Record/List/Enum comparisons are left to downstream driver evaluation).
func compareValues(lhs, rhs stmt.Value) (int, bool) {
	switch l := lhs.(type) {
	case stmt.BoolValue:
		r, ok := rhs.(stmt.BoolValue)
		if !ok {
			return 0, false
		}
		return boolCompare(bool(l), bool(r)), true
	case stmt.I8Value:
		r, ok := rhs.(stmt.I8Value)
		if !ok {
			return 0, false
		}
		return intCompare(int64(l), int64(r)), true
	case stmt.I16Value:
		r, ok := rhs.(stmt.I16Value)
		if !ok {
			return 0, false
		}
		return intCompare(int64(l), int64(r)), true
	case stmt.I32Value:
		r, ok := rhs.(stmt.I32Value)
		if !ok {
			return 0, false
		}
		return intCompare(int64(l), int64(r)), true
	case stmt.I64Value:
		r, ok := rhs.(stmt.I64Value)
		if !ok {
			return 0, false
		}
		return intCompare(int64(l), int64(r)), true
	case stmt.U8Value:
		r, ok := rhs.(stmt.U8Value)
		if !ok {
			return 0, false
		}
		return uintCompare(uint64(l), uint64(r)), true
	case stmt.U16Value:
		r, ok := rhs.(stmt.U16Value)
		if !ok {
			return 0, false
		}
		return uintCompare(uint64(l), uint64(r)), true
	case stmt.U32Value:
		r, ok := rhs.(stmt.U32Value)
		if !ok {
			return 0, false
		}
		return uintCompare(uint64(l), uint64(r)), true
	case stmt.U64Value:
		r, ok := rhs.(stmt.U64Value)
		if !ok {
			return 0, false
		}
		return uintCompare(uint64(l), uint64(r)), true
	case stmt.StringValue:
		r, ok := rhs.(stmt.StringValue)
		if !ok {
			return 0, false
		}
		return strings.Compare(string(l), string(r)), true
	case stmt.BytesValue:
		r, ok := rhs.(stmt.BytesValue)
		if !ok {
			return 0, false
		}
		return bytes.Compare(l, r), true
	case stmt.UuidValue:
		r, ok := rhs.(stmt.UuidValue)
		if !ok {
			return 0, false
		}
		return bytes.Compare(l[:], r[:]), true
	default:
		return 0, false
	}
}

func boolCompare(l, r bool) int {
	if l == r {
		return 0
	}
	if !l && r {
		return -1
	}
	return 1
}

func intCompare(l, r int64) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}

func uintCompare(l, r uint64) int {
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	default:
		return 0
	}
}
