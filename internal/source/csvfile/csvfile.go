// Package csvfile reads the transaction table from a CSV file.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"retaildash/internal/core"
	"retaildash/internal/source"
)

var _ source.TransactionReader = (*Reader)(nil)

// Reader loads transactions from a CSV file with a header row.
type Reader struct {
	path string
}

func New(path string) *Reader {
	return &Reader{path: path}
}

func (r *Reader) Source() string { return r.path }

func (r *Reader) ReadTransactions(ctx context.Context) (core.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return core.Dataset{}, err
	}
	f, err := os.Open(r.path)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("open %s: %w", r.path, err)
	}
	defer f.Close()

	return Parse(r.path, f)
}

// Parse reads CSV content into a dataset. Every column is loaded as text so
// that points and dates go through the shared row mapping. A file with only a
// header row yields an empty dataset. Rows with a different number of cells
// than the header are padded or cut to the header width.
func Parse(src string, in io.Reader) (core.Dataset, error) {
	cr := csv.NewReader(in)
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return core.Dataset{}, fmt.Errorf("read csv %s: %w", src, err)
	}
	if len(records) == 0 {
		return core.Dataset{}, core.ErrEmptySource
	}
	if len(records) == 1 {
		return source.MapRows(src, records[0], nil)
	}

	width := len(records[0])
	for i, rec := range records[1:] {
		records[i+1] = fitWidth(rec, width)
	}

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{}),
	)
	if df.Err != nil {
		return core.Dataset{}, fmt.Errorf("load csv %s: %w", src, df.Err)
	}
	return source.MapRows(src, df.Names(), df.Records()[1:])
}

func fitWidth(rec []string, width int) []string {
	if len(rec) >= width {
		return rec[:width]
	}
	out := make([]string, width)
	copy(out, rec)
	return out
}
