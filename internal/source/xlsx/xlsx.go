// Package xlsx reads the transaction table from the first sheet of an Excel
// workbook.
package xlsx

import (
	"context"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"retaildash/internal/core"
	"retaildash/internal/source"
)

var _ source.TransactionReader = (*Reader)(nil)

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
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("open workbook %s: %w", r.path, err)
	}
	defer f.Close()

	return fromFile(r.path, f)
}

// Parse reads a workbook from in.
func Parse(src string, in io.Reader) (core.Dataset, error) {
	f, err := excelize.OpenReader(in)
	if err != nil {
		return core.Dataset{}, fmt.Errorf("open workbook %s: %w", src, err)
	}
	defer f.Close()

	return fromFile(src, f)
}

func fromFile(src string, f *excelize.File) (core.Dataset, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return core.Dataset{}, core.ErrEmptySource
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return core.Dataset{}, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return core.Dataset{}, core.ErrEmptySource
	}
	return source.MapRows(src, rows[0], rows[1:])
}
