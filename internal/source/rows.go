package source

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"

	"retaildash/internal/core"
)

// MapRows converts a header and its data rows into a dataset. Column lookup
// is by name, so column order in the input does not matter. Short rows are
// padded with empty cells.
//
// Rows whose points are missing, unparseable or negative are skipped and
// counted in Dataset.Skipped. Rows with an unparseable date are kept with
// DateValid unset. Blank rows are ignored.
func MapRows(src string, header []string, rows [][]string) (core.Dataset, error) {
	if len(header) == 0 {
		return core.Dataset{}, core.ErrEmptySource
	}

	idx, err := columnIndex(header)
	if err != nil {
		return core.Dataset{}, err
	}

	ds := core.Dataset{
		Source:   src,
		Rows:     make([]core.Transaction, 0, len(rows)),
		LoadedAt: time.Now().UTC(),
	}
	for i, row := range rows {
		if blank(row) {
			continue
		}
		get := func(col string) string {
			return cell(row, idx[col])
		}

		points, ok := ParsePoints(get(core.ColPoints))
		if !ok {
			ds.Skipped++
			continue
		}
		date, dateOK := ParseDate(get(core.ColDate))

		ds.Rows = append(ds.Rows, core.Transaction{
			ID:          i + 1,
			Status:      get(core.ColStatus),
			Type:        get(core.ColType),
			Tier:        get(core.ColTier),
			Points:      points,
			Date:        date,
			DateValid:   dateOK,
			PointsGroup: get(core.ColPointsGroup),
			Name:        get(core.ColName),
		})
	}
	return ds, nil
}

// ParsePoints parses a non-negative decimal points value.
func ParsePoints(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// ParseDate parses a transaction timestamp in any common layout. Values
// without a zone are read as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(core.RequiredColumns))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}

	var missing []string
	for _, col := range core.RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrMissingColumn, strings.Join(missing, ", "))
	}
	return idx, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
