package querysheets

import (
	"slices"
	"strings"

	"insight-agents/internal/models"
)

// ExecuteOperations applies the plan to rows: filter, then group, then sort,
// then limit. It does not modify rows and always yields the same output for
// the same input.
func ExecuteOperations(rows []models.Row, plan Plan) ExecutionResult {
	filtered := ApplyFilters(rows, plan.Filters)

	var records []Record
	if plan.GroupBy != "" {
		for _, g := range groupRows(filtered, plan.GroupBy) {
			records = append(records, g)
		}
	} else {
		records = make([]Record, 0, len(filtered))
		for _, r := range filtered {
			records = append(records, r)
		}
	}

	if plan.SortBy != nil && plan.SortBy.Column != "" {
		sortRecords(records, plan.SortBy.Column, plan.SortBy.Desc)
	}

	if plan.Limit > 0 && len(records) > plan.Limit {
		records = records[:plan.Limit]
	}
	if records == nil {
		records = []Record{}
	}

	return ExecutionResult{
		Plan:        plan,
		ResultCount: len(records),
		Results:     records,
	}
}

// ApplyFilters keeps the rows that satisfy every clause, in input order.
func ApplyFilters(rows []models.Row, filters []Filter) []models.Row {
	out := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		if matchesAll(r, filters) {
			out = append(out, r)
		}
	}
	return out
}

func matchesAll(r models.Row, filters []Filter) bool {
	for _, f := range filters {
		if !matches(r, f) {
			return false
		}
	}
	return true
}

// matches evaluates one clause. A missing column fails the clause; an unknown
// operator passes every row.
func matches(r models.Row, f Filter) bool {
	v, ok := r.Get(f.Column)
	if !ok {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(f.Operator)) {
	case OpEqual:
		return equalValues(v, f.Value)
	case OpNotEqual:
		return !equalValues(v, f.Value)
	case OpGreaterThan:
		a, aok := v.Float()
		b, bok := f.Value.Float()
		return aok && bok && a > b
	case OpLessThan:
		a, aok := v.Float()
		b, bok := f.Value.Float()
		return aok && bok && a < b
	case OpContains:
		return strings.Contains(strings.ToLower(v.String()), strings.ToLower(f.Value.String()))
	default:
		return true
	}
}

func equalValues(a, b models.Value) bool {
	af, aok := a.Float()
	bf, bok := b.Float()
	if aok && bok {
		return af == bf
	}
	return a.String() == b.String()
}

// groupRows partitions rows by the string value of column, keeping groups in
// order of first appearance. Rows without the column group under "".
func groupRows(rows []models.Row, column string) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, r := range rows {
		v, _ := r.Get(column)
		key := v.String()
		i, seen := index[key]
		if !seen {
			i = len(groups)
			index[key] = i
			groups = append(groups, Group{GroupKey: key})
		}
		groups[i].Items = append(groups[i].Items, r)
		groups[i].Count++
	}
	return groups
}

func sortRecords(records []Record, column string, desc bool) {
	slices.SortStableFunc(records, func(a, b Record) int {
		av, _ := a.Get(column)
		bv, _ := b.Get(column)
		c := CompareValues(av, bv)
		if desc {
			return -c
		}
		return c
	})
}

// CompareValues orders numerically when both values are numeric and
// lexicographically by their string form otherwise.
func CompareValues(a, b models.Value) int {
	af, aok := a.Float()
	bf, bok := b.Float()
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		}
		return 0
	}
	return strings.Compare(a.String(), b.String())
}
