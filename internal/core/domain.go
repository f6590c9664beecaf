package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Column names of the transaction table. Names are contract; order is not.
const (
	ColStatus      = "memberStatus"
	ColType        = "memberType"
	ColTier        = "memberTier"
	ColPoints      = "memberPoints"
	ColDate        = "transactionDate"
	ColPointsGroup = "pointsGroup"
	ColName        = "memberName"
)

// RequiredColumns lists every column a transaction source must provide.
var RequiredColumns = []string{
	ColStatus,
	ColType,
	ColTier,
	ColPoints,
	ColDate,
	ColPointsGroup,
	ColName,
}

type (
	// Transaction is one row of the input table.
	Transaction struct {
		ID          int // 1-based position in the source
		Status      string
		Type        string
		Tier        string
		Points      decimal.Decimal
		Date        time.Time
		DateValid   bool // false when the source value could not be parsed
		PointsGroup string
		Name        string
	}

	// Dataset is an immutable snapshot of a transaction source.
	// Rows must not be modified once the dataset has been published.
	Dataset struct {
		Source   string
		Rows     []Transaction
		Skipped  int
		LoadedAt time.Time
	}

	// Criteria selects the subset of a dataset shown on the dashboard.
	Criteria struct {
		Statuses []string
		Types    []string
		Tiers    []string
		Start    time.Time
		End      time.Time

		// EmptyMatchesAll turns an empty selection into "no restriction"
		// instead of "nothing matches".
		EmptyMatchesAll bool
	}

	// FilterOptions are the values a UI can offer for filtering.
	FilterOptions struct {
		Statuses []string
		Types    []string
		Tiers    []string
		MinDate  time.Time
		MaxDate  time.Time
	}
)

var (
	ErrMissingColumn    = errors.New("missing required column")
	ErrEmptySource      = errors.New("transaction source has no header row")
	ErrInvalidDateRange = errors.New("start date is after end date")
	ErrMissingDateRange = errors.New("date range requires both start and end")
)

// Len returns the number of rows in the dataset.
func (d Dataset) Len() int {
	return len(d.Rows)
}

// Options returns the distinct categorical values present in the dataset,
// in order of first appearance, and the range of valid transaction dates.
func (d Dataset) Options() FilterOptions {
	var opts FilterOptions
	statuses := newOrderedSet()
	types := newOrderedSet()
	tiers := newOrderedSet()

	for _, tx := range d.Rows {
		statuses.add(tx.Status)
		types.add(tx.Type)
		tiers.add(tx.Tier)
		if !tx.DateValid {
			continue
		}
		if opts.MinDate.IsZero() || tx.Date.Before(opts.MinDate) {
			opts.MinDate = tx.Date
		}
		if opts.MaxDate.IsZero() || tx.Date.After(opts.MaxDate) {
			opts.MaxDate = tx.Date
		}
	}

	opts.Statuses = statuses.values
	opts.Types = types.values
	opts.Tiers = tiers.values
	return opts
}

// DefaultCriteria selects every categorical value and the full date range,
// which is what the dashboard shows before the user touches a filter.
func DefaultCriteria(opts FilterOptions) Criteria {
	return Criteria{
		Statuses: append([]string(nil), opts.Statuses...),
		Types:    append([]string(nil), opts.Types...),
		Tiers:    append([]string(nil), opts.Tiers...),
		Start:    opts.MinDate,
		End:      opts.MaxDate,
	}
}

func (c Criteria) Validate() error {
	if c.Start.IsZero() || c.End.IsZero() {
		return ErrMissingDateRange
	}
	if c.Start.After(c.End) {
		return ErrInvalidDateRange
	}
	return nil
}

// orderedSet keeps distinct non-empty strings in insertion order.
type orderedSet struct {
	seen   map[string]struct{}
	values []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), values: []string{}}
}

func (s *orderedSet) add(v string) {
	if strings.TrimSpace(v) == "" {
		return
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.values = append(s.values, v)
}
