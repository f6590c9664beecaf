package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// CategoryTotal is a points sum for one category value.
type CategoryTotal struct {
	Key    string
	Points decimal.Decimal
}

// TimeCount is a transaction count for one point in time.
type TimeCount struct {
	Time  time.Time
	Count int
}

// CorrelationMatrix is a symmetric Pearson matrix; NaN marks undefined cells.
type CorrelationMatrix struct {
	Labels [2]string
	Values [2][2]float64
	N      int
}

// ScatterPoint is one projected transaction for the points-vs-date plot.
type ScatterPoint struct {
	Date   time.Time
	Points decimal.Decimal
	Tier   string
	Name   string
}

// Dashboard holds the six chart tables derived from a filtered dataset.
type Dashboard struct {
	Rows                    int
	PointsByTier            []CategoryTotal
	TransactionsOverTime    []TimeCount
	PointsByGroup           []CategoryTotal
	Correlation             CorrelationMatrix
	Scatter                 []ScatterPoint
	TransactionsByTimestamp []TimeCount
}

// TotalPoints sums a category table.
func TotalPoints(totals []CategoryTotal) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t.Points)
	}
	return sum
}
