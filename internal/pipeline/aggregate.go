package pipeline

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"retaildash/internal/core"
)

// TimestampCap bounds the rows considered by TransactionsByTimestamp.
const TimestampCap = 10000

// PointsByTier sums points per member tier, ordered by tier.
func PointsByTier(rows []core.Transaction) []core.CategoryTotal {
	return sumBy(rows, func(tx core.Transaction) string { return tx.Tier })
}

// PointsByGroup sums points per points group, ordered by group.
func PointsByGroup(rows []core.Transaction) []core.CategoryTotal {
	return sumBy(rows, func(tx core.Transaction) string { return tx.PointsGroup })
}

// TransactionsOverTime counts transactions per calendar day (UTC).
func TransactionsOverTime(rows []core.Transaction) []core.TimeCount {
	return countBy(rows, func(tx core.Transaction) time.Time {
		y, m, d := tx.Date.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	})
}

// TransactionsByTimestamp counts transactions per exact timestamp over the
// first limit rows, in their original order. Later rows are ignored.
func TransactionsByTimestamp(rows []core.Transaction, limit int) []core.TimeCount {
	if limit >= 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return countBy(rows, func(tx core.Transaction) time.Time { return tx.Date })
}

// Scatter projects each transaction onto the fields of the points-vs-date plot.
func Scatter(rows []core.Transaction) []core.ScatterPoint {
	out := make([]core.ScatterPoint, 0, len(rows))
	for _, tx := range rows {
		out = append(out, core.ScatterPoint{
			Date:   tx.Date,
			Points: tx.Points,
			Tier:   tx.Tier,
			Name:   tx.Name,
		})
	}
	return out
}

// Preview returns at most n rows for tabular display.
func Preview(rows []core.Transaction, n int) []core.Transaction {
	if n < 0 || len(rows) <= n {
		n = len(rows)
	}
	out := make([]core.Transaction, n)
	copy(out, rows[:n])
	return out
}

func sumBy(rows []core.Transaction, key func(core.Transaction) string) []core.CategoryTotal {
	sums := make(map[string]decimal.Decimal)
	for _, tx := range rows {
		k := key(tx)
		if cur, ok := sums[k]; ok {
			sums[k] = cur.Add(tx.Points)
		} else {
			sums[k] = tx.Points
		}
	}

	out := make([]core.CategoryTotal, 0, len(sums))
	for k, v := range sums {
		out = append(out, core.CategoryTotal{Key: k, Points: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func countBy(rows []core.Transaction, key func(core.Transaction) time.Time) []core.TimeCount {
	// keyed by instant so equal times in different locations collapse
	counts := make(map[int64]*core.TimeCount)
	for _, tx := range rows {
		t := key(tx)
		k := t.UnixNano()
		if c, ok := counts[k]; ok {
			c.Count++
			continue
		}
		counts[k] = &core.TimeCount{Time: t, Count: 1}
	}

	out := make([]core.TimeCount, 0, len(counts))
	for _, c := range counts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}
