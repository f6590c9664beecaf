// Package render describes the dashboard charts and draws them as PNG images.
package render

import (
	"io"

	"retaildash/internal/core"
)

type Kind string

const (
	KindBar     Kind = "bar"
	KindLine    Kind = "line"
	KindPie     Kind = "pie"
	KindHeatmap Kind = "heatmap"
	KindScatter Kind = "scatter"
)

// ChartSpec is the presentation metadata of one dashboard chart. Field names
// refer to columns of the table the chart draws.
type ChartSpec struct {
	Name   string            `json:"name"`
	Kind   Kind              `json:"kind"`
	Title  string            `json:"title"`
	X      string            `json:"x,omitempty"`
	Y      string            `json:"y,omitempty"`
	Color  string            `json:"color,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Label returns the display label of a field, or the field name itself.
func (s ChartSpec) Label(field string) string {
	if l, ok := s.Labels[field]; ok {
		return l
	}
	return field
}

const (
	fieldTransactions = "transactions"
	fieldCorrelation  = "correlation"
)

const (
	ChartPointsByTier            = "points-by-tier"
	ChartTransactionsOverTime    = "transactions-over-time"
	ChartPointsByGroup           = "points-by-group"
	ChartCorrelation             = "correlation"
	ChartPointsVsDate            = "points-vs-date"
	ChartTransactionsByTimestamp = "transactions-by-timestamp"
)

// Specs lists the dashboard charts in display order.
var Specs = []ChartSpec{
	{
		Name: ChartPointsByTier, Kind: KindBar, Title: "Points by Member Tier",
		X: core.ColTier, Y: core.ColPoints, Color: core.ColTier,
		Labels: map[string]string{core.ColTier: "Member Tier", core.ColPoints: "Total Points"},
	},
	{
		Name: ChartTransactionsOverTime, Kind: KindLine, Title: "Transactions Over Time",
		X: core.ColDate, Y: fieldTransactions,
		Labels: map[string]string{core.ColDate: "Transaction Date", fieldTransactions: "Transactions"},
	},
	{
		Name: ChartPointsByGroup, Kind: KindPie, Title: "Points by Points Group",
		X: core.ColPointsGroup, Y: core.ColPoints,
		Labels: map[string]string{core.ColPointsGroup: "Points Group", core.ColPoints: "Total Points"},
	},
	{
		Name: ChartCorrelation, Kind: KindHeatmap, Title: "Correlation Heatmap",
		X: core.ColPoints, Y: core.ColDate, Color: fieldCorrelation,
	},
	{
		Name: ChartPointsVsDate, Kind: KindScatter, Title: "Member Points vs Transaction Date",
		X: core.ColDate, Y: core.ColPoints, Color: core.ColTier,
		Labels: map[string]string{core.ColDate: "Transaction Date", core.ColPoints: "Member Points"},
	},
	{
		Name: ChartTransactionsByTimestamp, Kind: KindBar, Title: "Transactions by Date and Time",
		X: core.ColDate, Y: fieldTransactions, Color: fieldTransactions,
		Labels: map[string]string{core.ColDate: "Transaction Date & Time", fieldTransactions: "Number of Transactions"},
	},
}

// Lookup finds a chart spec by name.
func Lookup(name string) (ChartSpec, bool) {
	for _, s := range Specs {
		if s.Name == name {
			return s, true
		}
	}
	return ChartSpec{}, false
}

// Renderer draws one chart of a dashboard.
type Renderer interface {
	Render(w io.Writer, spec ChartSpec, d core.Dashboard) error
	ContentType() string
}
