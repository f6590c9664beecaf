package pipeline

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"retaildash/internal/core"
)

// Correlation computes the Pearson matrix of points against the transaction
// date in whole epoch seconds. Cells are NaN when fewer than two rows are
// present or a column has zero variance.
func Correlation(rows []core.Transaction) core.CorrelationMatrix {
	m := core.CorrelationMatrix{
		Labels: [2]string{core.ColPoints, core.ColDate},
		N:      len(rows),
	}

	points := make([]float64, len(rows))
	dates := make([]float64, len(rows))
	for i, tx := range rows {
		points[i] = tx.Points.InexactFloat64()
		dates[i] = float64(tx.Date.Unix())
	}

	cols := [2][]float64{points, dates}
	var defined [2]bool
	for i, col := range cols {
		defined[i] = len(col) >= 2 && stat.Variance(col, nil) > 0
	}

	for i := range cols {
		for j := range cols {
			switch {
			case !defined[i] || !defined[j]:
				m.Values[i][j] = math.NaN()
			case i == j:
				m.Values[i][j] = 1
			default:
				m.Values[i][j] = clamp(stat.Correlation(cols[i], cols[j], nil))
			}
		}
	}
	return m
}

func clamp(r float64) float64 {
	return math.Max(-1, math.Min(1, r))
}
