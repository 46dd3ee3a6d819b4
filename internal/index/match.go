// Package index chooses which table index a lowered filter should be
// evaluated against and partitions the filter into index/result/post
// portions, per original_source/.../engine/index/index_match.rs and
// .../engine/planner/index.rs. DESIGN NOTES §9 flags that the reference
// implementation keys its match table by the filter subtree's stable memory
// address; several Expr variants here embed slices (ExprAnd.Operands,
// ExprRecord.Fields, ...) which Go forbids as map keys entirely, so rather
// than pre-assign per-node ids this package classifies each subtree by a
// structural recursive descent (classify/classifyOr below) that is run
// identically during matching and during partitioning — the same shape
// always classifies the same way, so there is no tree-identity problem to
// solve in the first place.
package index

import (
	"github.com/satishbabariya/toasty-go/internal/schema"
	"github.com/satishbabariya/toasty-go/internal/stmt"
)

// matchTag marks whether a filter subtree constrains a column to a single
// value (equality-like: =, IN, IS NULL) or a range (<, <=, >, >=,
// BeginsWith).
type matchTag int

const (
	tagEq matchTag = iota
	tagRange
)

// columnMatch records the strongest tag a table column was matched with
// (eq if any contributing subtree was eq, per the AND-propagation rule).
type columnMatch struct {
	col int
	tag matchTag
}

type columnSet map[int]columnMatch

func (cs columnSet) add(col int, tag matchTag) {
	m, ok := cs[col]
	if !ok {
		cs[col] = columnMatch{col: col, tag: tag}
		return
	}
	if tag == tagEq {
		m.tag = tagEq
		cs[col] = m
	}
}

func columnPosition(table schema.Table, idx schema.Index, name string) (int, bool) {
	for pos, col := range idx.Columns {
		if table.Columns[col].Name == name {
			return pos, true
		}
	}
	return 0, false
}

func columnOf(table schema.Table, idx schema.Index, e stmt.Expr) (int, bool) {
	c, ok := e.(stmt.ExprColumn)
	if !ok {
		return 0, false
	}
	return columnPosition(table, idx, c.Column)
}

// classify reports whether e constrains a single index column, and how. It
// does not special-case ExprAnd — an AND contributes per-conjunct via
// buildMatch's own recursion, not as a single classified unit — but every
// other shape from spec.md §4.3's match table is handled here so the same
// function serves both matching (buildMatch) and partitioning (Partition).
func classify(table schema.Table, idx schema.Index, e stmt.Expr) (int, matchTag, bool) {
	switch v := e.(type) {
	case stmt.ExprOr:
		return classifyOr(table, idx, v)
	case stmt.ExprAny:
		if m, ok := v.Base.(stmt.ExprMap); ok {
			return classify(table, idx, m.Body)
		}
		return 0, 0, false
	case stmt.ExprIsNull:
		if pos, ok := columnOf(table, idx, v.Expr); ok {
			return pos, tagEq, true
		}
	case stmt.ExprInList:
		if pos, ok := columnOf(table, idx, v.Expr); ok {
			return pos, tagEq, true
		}
	case stmt.ExprPattern:
		// BeginsWith never promotes to equality (resolved Open Question,
		// see DESIGN.md): the discriminant guard BeginsWith(pk, "<p>#")
		// injected by lowering must stay a range match on a
		// partition-scoped PK column, never an accidental equality.
		if pos, ok := columnOf(table, idx, v.Expr); ok {
			return pos, tagRange, true
		}
	case stmt.ExprBinaryOp:
		if pos, ok := columnOf(table, idx, v.Lhs); ok {
			tag := tagRange
			if v.Op == stmt.OpEq {
				tag = tagEq
			}
			return pos, tag, true
		}
		if pos, ok := columnOf(table, idx, v.Rhs); ok {
			tag := tagRange
			if v.Op.Reverse() == stmt.OpEq {
				tag = tagEq
			}
			return pos, tag, true
		}
	}
	return 0, 0, false
}

// classifyOr matches only when every operand classifies to the same column;
// the combined tag is eq only if every operand's is.
func classifyOr(table schema.Table, idx schema.Index, v stmt.ExprOr) (int, matchTag, bool) {
	col := -1
	tag := tagEq
	for i, o := range v.Operands {
		c, t, ok := classify(table, idx, o)
		if !ok {
			return 0, 0, false
		}
		if i == 0 {
			col = c
		} else if c != col {
			return 0, 0, false
		}
		if t == tagRange {
			tag = tagRange
		}
	}
	if col < 0 {
		return 0, 0, false
	}
	return col, tag, true
}

// buildMatch walks filter, recursing through ExprAnd conjuncts (the only
// shape that contributes many independent column constraints from one
// node), and classifying every other subtree as a unit.
func buildMatch(table schema.Table, idx schema.Index, filter stmt.Expr) columnSet {
	cols := columnSet{}
	collectMatches(table, idx, filter, cols)
	return cols
}

func collectMatches(table schema.Table, idx schema.Index, e stmt.Expr, cols columnSet) {
	if and, ok := e.(stmt.ExprAnd); ok {
		for _, o := range and.Operands {
			collectMatches(table, idx, o, cols)
		}
		return
	}
	if col, tag, ok := classify(table, idx, e); ok {
		cols.add(col, tag)
	}
}
