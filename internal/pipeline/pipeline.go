package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"retaildash/internal/core"
	"retaildash/internal/metrics"
)

// Run derives the six chart tables from already-filtered rows. The derivations
// only read rows and each writes its own field, so they run concurrently.
func Run(ctx context.Context, rows []core.Transaction) (core.Dashboard, error) {
	d := core.Dashboard{Rows: len(rows)}

	g, ctx := errgroup.WithContext(ctx)
	step := func(fn func()) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn()
			return nil
		})
	}

	step(func() { d.PointsByTier = PointsByTier(rows) })
	step(func() { d.TransactionsOverTime = TransactionsOverTime(rows) })
	step(func() { d.PointsByGroup = PointsByGroup(rows) })
	step(func() { d.Correlation = Correlation(rows) })
	step(func() { d.Scatter = Scatter(rows) })
	step(func() { d.TransactionsByTimestamp = TransactionsByTimestamp(rows, TimestampCap) })

	if err := g.Wait(); err != nil {
		return core.Dashboard{}, err
	}
	return d, nil
}

// Compute validates c, filters rows and derives the dashboard, recording the
// run in the pipeline metrics. An invalid date range is reported as an error
// so callers can reject the request; ApplyFilters alone would return nothing.
func Compute(ctx context.Context, rows []core.Transaction, c core.Criteria) (core.Dashboard, error) {
	start := time.Now()
	if err := c.Validate(); err != nil {
		metrics.ObservePipelineRun(time.Since(start), metrics.OutcomeError)
		return core.Dashboard{}, err
	}

	d, err := Run(ctx, ApplyFilters(rows, c))
	if err != nil {
		metrics.ObservePipelineRun(time.Since(start), metrics.OutcomeError)
		return core.Dashboard{}, err
	}
	metrics.ObservePipelineRun(time.Since(start), metrics.OutcomeSuccess)
	return d, nil
}
