// Package pipeline narrows a transaction dataset by user criteria and derives
// the six chart tables from the result.
package pipeline

import (
	"time"

	"retaildash/internal/core"
)

// ApplyFilters returns the transactions matching every predicate of c, in
// their original order. A row is kept when its date lies in the closed
// interval [c.Start, c.End] and its status, type and tier are each selected.
// Rows with an unparseable date never match. The input slice is not modified.
//
// An empty selection matches nothing unless c.EmptyMatchesAll is set.
func ApplyFilters(rows []core.Transaction, c core.Criteria) []core.Transaction {
	statuses := toSet(c.Statuses)
	types := toSet(c.Types)
	tiers := toSet(c.Tiers)

	out := make([]core.Transaction, 0)
	for _, tx := range InDateRange(rows, c.Start, c.End) {
		if !selected(statuses, tx.Status, c.EmptyMatchesAll) ||
			!selected(types, tx.Type, c.EmptyMatchesAll) ||
			!selected(tiers, tx.Tier, c.EmptyMatchesAll) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// InDateRange returns the rows dated within [start, end], in their original
// order, ignoring the categorical selections. This is the set the data
// preview lists.
func InDateRange(rows []core.Transaction, start, end time.Time) []core.Transaction {
	out := make([]core.Transaction, 0)
	if start.After(end) {
		return out
	}
	for _, tx := range rows {
		if !tx.DateValid || tx.Date.Before(start) || tx.Date.After(end) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func selected(set map[string]struct{}, v string, emptyMatchesAll bool) bool {
	if len(set) == 0 {
		return emptyMatchesAll
	}
	_, ok := set[v]
	return ok
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		set[item] = struct{}{}
	}
	return set
}
