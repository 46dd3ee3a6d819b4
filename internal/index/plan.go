package index

import (
	"github.com/satishbabariya/toasty-go/internal/capability"
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// Plan is the result of choosing an index for a lowered filter over one
// table: which index, and the filter split into the portion the storage
// engine evaluates as part of the index lookup, the portion it evaluates
// against candidate rows, and the portion evaluated in-memory after results
// return.
type Plan struct {
	Table       schema.Table
	Index       schema.Index
	IndexFilter stmt.Expr
	ResultFilter stmt.Expr
	PostFilter  stmt.Expr
}

// candidate pairs an index with its eligible (partition-scope-filtered)
// column matches and declaration position, for costing.
type candidate struct {
	pos     int
	idx     schema.Index
	cols    columnSet
}

// Select chooses the cheapest matching index for filter over table and
// partitions filter accordingly. cap gates the "primary_key_ne_predicate"
// rewrite: when the backend can't push a != predicate on the PK, that
// operand is neutralized in both index_filter and result_filter and the
// whole original filter is appended to post_filter instead.
func Select(table schema.Table, cap capability.Capability, filter stmt.Expr) Plan {
	var best *candidate
	var bestCost int

	for pos, idx := range table.Indices {
		cols := buildMatch(table, idx, filter)
		cols = dropIneligiblePartitionMatches(idx, cols)
		if !hasFirstColumnMatch(idx, cols) {
			continue
		}
		cost := costOf(idx, cols)
		if best == nil || cost < bestCost {
			c := candidate{pos: pos, idx: idx, cols: cols}
			best = &c
			bestCost = cost
		}
	}

	if best == nil {
		// No index matches at all: the PK index (always present, always
		// declared first) takes the whole filter as its result filter, a
		// full table scan.
		pk := table.PKIndex()
		plan := Plan{Table: table, Index: pk, IndexFilter: stmt.True, ResultFilter: filter}
		if !cap.PrimaryKeyNePredicate {
			plan = applyPkNeGap(table, plan, filter)
		}
		return plan
	}

	idxFilter, resultFilter := partition(table, best.idx, best.cols, filter)

	plan := Plan{Table: table, Index: best.idx, IndexFilter: idxFilter, ResultFilter: resultFilter}
	if !cap.PrimaryKeyNePredicate && best.pos == 0 {
		plan = applyPkNeGap(table, plan, filter)
	}
	return plan
}

// dropIneligiblePartitionMatches removes range-tagged matches on
// partition-scoped columns: such a column requires an eq match exclusively,
// so a range-only match leaves it effectively unmatched for this index.
func dropIneligiblePartitionMatches(idx schema.Index, cols columnSet) columnSet {
	if len(idx.PartitionScope) == 0 {
		return cols
	}
	scoped := map[int]bool{}
	for _, p := range idx.PartitionScope {
		scoped[p] = true
	}
	out := columnSet{}
	for pos, m := range cols {
		if scoped[pos] && m.tag != tagEq {
			continue
		}
		out[pos] = m
	}
	return out
}

func hasFirstColumnMatch(idx schema.Index, cols columnSet) bool {
	_, ok := cols[0]
	return ok
}

// costOf implements §4.3's cost function: for a unique index, sum 1 (eq) or
// 10 (range) over the matched column prefix, stopping at the first
// unmatched column; for a non-unique index, a flat 10.
func costOf(idx schema.Index, cols columnSet) int {
	if !idx.Unique {
		return 10
	}
	cost := 0
	for pos := range idx.Columns {
		m, ok := cols[pos]
		if !ok {
			break
		}
		if m.tag == tagEq {
			cost++
		} else {
			cost += 10
		}
	}
	return cost
}

// partition walks filter exactly as buildMatch did, but rebuilds it into
// (indexPart, resultPart) instead of a column table: AND is split
// conjunct-by-conjunct, everything else routes as a whole to whichever side
// classify says it belongs on.
func partition(table schema.Table, idx schema.Index, chosen columnSet, filter stmt.Expr) (stmt.Expr, stmt.Expr) {
	if and, ok := filter.(stmt.ExprAnd); ok {
		var idxParts, resParts []stmt.Expr
		for _, o := range and.Operands {
			ip, rp := partition(table, idx, chosen, o)
			if !stmt.IsTrue(ip) {
				idxParts = append(idxParts, ip)
			}
			if !stmt.IsTrue(rp) {
				resParts = append(resParts, rp)
			}
		}
		return andOf(idxParts), andOf(resParts)
	}

	col, _, ok := classify(table, idx, filter)
	if ok {
		if _, chosenOK := chosen[col]; chosenOK {
			return filter, stmt.True
		}
	}
	return stmt.True, filter
}

func andOf(operands []stmt.Expr) stmt.Expr {
	switch len(operands) {
	case 0:
		return stmt.True
	case 1:
		return operands[0]
	default:
		return stmt.ExprAnd{Operands: operands}
	}
}

// applyPkNeGap implements the capability-gated rewrite: a BinaryOp(!=) that
// hit the PK column on a backend lacking primary_key_ne_predicate is
// neutralized in both filters, and the whole original (pre-partition)
// filter is appended to post_filter so the `!=` still gets evaluated,
// in-memory, after rows return.
func applyPkNeGap(table schema.Table, plan Plan, originalFilter stmt.Expr) Plan {
	hasPkNe := false
	stmt.WalkExpr(originalFilter, func(e stmt.Expr) {
		b, ok := e.(stmt.ExprBinaryOp)
		if !ok || b.Op != stmt.OpNe {
			return
		}
		if col, ok := b.Lhs.(stmt.ExprColumn); ok && isPkColumn(table, col.Column) {
			hasPkNe = true
		}
		if col, ok := b.Rhs.(stmt.ExprColumn); ok && isPkColumn(table, col.Column) {
			hasPkNe = true
		}
	})
	if !hasPkNe {
		return plan
	}
	neutralize := func(e stmt.Expr) stmt.Expr {
		return stmt.MapExpr(e, func(n stmt.Expr) stmt.Expr {
			b, ok := n.(stmt.ExprBinaryOp)
			if !ok || b.Op != stmt.OpNe {
				return n
			}
			if col, ok := b.Lhs.(stmt.ExprColumn); ok && isPkColumn(table, col.Column) {
				return stmt.True
			}
			if col, ok := b.Rhs.(stmt.ExprColumn); ok && isPkColumn(table, col.Column) {
				return stmt.True
			}
			return n
		})
	}
	plan.IndexFilter = neutralize(plan.IndexFilter)
	plan.ResultFilter = neutralize(plan.ResultFilter)
	plan.PostFilter = originalFilter
	return plan
}

func isPkColumn(table schema.Table, name string) bool {
	pk := table.PKIndex()
	for _, col := range pk.Columns {
		if table.Columns[col].Name == name {
			return true
		}
	}
	return false
}
