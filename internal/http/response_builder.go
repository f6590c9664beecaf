package http

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"retaildash/internal/core"
	"retaildash/internal/render"
)

// ResponseBuilder provides a fluent API for JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

func NewJSONResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *ResponseBuilder) Body(v any) *ResponseBuilder {
	b.body = v
	return b
}

// Write encodes the body as JSON. Responses are never cached: they depend on
// a dataset that can be reloaded at any time.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	w.WriteHeader(b.statusCode)
	if b.body != nil {
		_ = json.NewEncoder(w).Encode(b.body)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func ErrorResponse(statusCode int, message string) *ResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func ServiceUnavailableError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusServiceUnavailable, message)
}

func InternalServerError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// Wire forms of the dashboard tables. Points travel as JSON numbers written
// from their exact decimal text; undefined correlations are null.

type criteriaJSON struct {
	Statuses        []string  `json:"statuses"`
	Types           []string  `json:"types"`
	Tiers           []string  `json:"tiers"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	EmptyMatchesAll bool      `json:"emptyMatchesAll"`
}

type optionsJSON struct {
	Source   string     `json:"source"`
	Rows     int        `json:"rows"`
	Skipped  int        `json:"skipped"`
	LoadedAt time.Time  `json:"loadedAt"`
	Statuses []string   `json:"statuses"`
	Types    []string   `json:"types"`
	Tiers    []string   `json:"tiers"`
	MinDate  *time.Time `json:"minDate"`
	MaxDate  *time.Time `json:"maxDate"`
}

type categoryTotalJSON struct {
	Key    string      `json:"key"`
	Points json.Number `json:"points"`
}

type timeCountJSON struct {
	Time  time.Time `json:"time"`
	Count int       `json:"count"`
}

type correlationJSON struct {
	Labels [2]string      `json:"labels"`
	Values [2][2]*float64 `json:"values"`
	N      int            `json:"n"`
}

type scatterPointJSON struct {
	Date   time.Time   `json:"date"`
	Points json.Number `json:"points"`
	Tier   string      `json:"tier"`
	Name   string      `json:"name"`
}

type dashboardJSON struct {
	Source                  string              `json:"source"`
	Rows                    int                 `json:"rows"`
	Criteria                criteriaJSON        `json:"criteria"`
	PointsByTier            []categoryTotalJSON `json:"pointsByTier"`
	TransactionsOverTime    []timeCountJSON     `json:"transactionsOverTime"`
	PointsByGroup           []categoryTotalJSON `json:"pointsByGroup"`
	Correlation             correlationJSON     `json:"correlation"`
	Scatter                 []scatterPointJSON  `json:"scatter"`
	TransactionsByTimestamp []timeCountJSON     `json:"transactionsByTimestamp"`
	Charts                  []render.ChartSpec  `json:"charts"`
}

type transactionJSON struct {
	ID          int         `json:"id"`
	Status      string      `json:"memberStatus"`
	Type        string      `json:"memberType"`
	Tier        string      `json:"memberTier"`
	Points      json.Number `json:"memberPoints"`
	Date        *time.Time  `json:"transactionDate"`
	PointsGroup string      `json:"pointsGroup"`
	Name        string      `json:"memberName"`
}

type previewJSON struct {
	Source  string            `json:"source"`
	Matched int               `json:"matched"`
	Rows    []transactionJSON `json:"rows"`
}

func newCriteriaJSON(c core.Criteria) criteriaJSON {
	return criteriaJSON{
		Statuses:        nonNil(c.Statuses),
		Types:           nonNil(c.Types),
		Tiers:           nonNil(c.Tiers),
		Start:           c.Start,
		End:             c.End,
		EmptyMatchesAll: c.EmptyMatchesAll,
	}
}

func newOptionsJSON(ds core.Dataset) optionsJSON {
	opts := ds.Options()
	return optionsJSON{
		Source:   ds.Source,
		Rows:     ds.Len(),
		Skipped:  ds.Skipped,
		LoadedAt: ds.LoadedAt,
		Statuses: opts.Statuses,
		Types:    opts.Types,
		Tiers:    opts.Tiers,
		MinDate:  timePtr(opts.MinDate),
		MaxDate:  timePtr(opts.MaxDate),
	}
}

func newDashboardJSON(source string, c core.Criteria, d core.Dashboard) dashboardJSON {
	out := dashboardJSON{
		Source:                  source,
		Rows:                    d.Rows,
		Criteria:                newCriteriaJSON(c),
		PointsByTier:            categoryTotals(d.PointsByTier),
		TransactionsOverTime:    timeCounts(d.TransactionsOverTime),
		PointsByGroup:           categoryTotals(d.PointsByGroup),
		Correlation:             correlationJSON{Labels: d.Correlation.Labels, N: d.Correlation.N},
		Scatter:                 make([]scatterPointJSON, 0, len(d.Scatter)),
		TransactionsByTimestamp: timeCounts(d.TransactionsByTimestamp),
		Charts:                  render.Specs,
	}
	for i, row := range d.Correlation.Values {
		for j, v := range row {
			out.Correlation.Values[i][j] = finite(v)
		}
	}
	for _, p := range d.Scatter {
		out.Scatter = append(out.Scatter, scatterPointJSON{
			Date:   p.Date,
			Points: number(p.Points),
			Tier:   p.Tier,
			Name:   p.Name,
		})
	}
	return out
}

func newPreviewJSON(source string, matched int, rows []core.Transaction) previewJSON {
	out := previewJSON{Source: source, Matched: matched, Rows: make([]transactionJSON, 0, len(rows))}
	for _, tx := range rows {
		var date *time.Time
		if tx.DateValid {
			date = timePtr(tx.Date)
		}
		out.Rows = append(out.Rows, transactionJSON{
			ID:          tx.ID,
			Status:      tx.Status,
			Type:        tx.Type,
			Tier:        tx.Tier,
			Points:      number(tx.Points),
			Date:        date,
			PointsGroup: tx.PointsGroup,
			Name:        tx.Name,
		})
	}
	return out
}

func categoryTotals(in []core.CategoryTotal) []categoryTotalJSON {
	out := make([]categoryTotalJSON, 0, len(in))
	for _, t := range in {
		out = append(out, categoryTotalJSON{Key: t.Key, Points: number(t.Points)})
	}
	return out
}

func timeCounts(in []core.TimeCount) []timeCountJSON {
	out := make([]timeCountJSON, 0, len(in))
	for _, c := range in {
		out = append(out, timeCountJSON{Time: c.Time, Count: c.Count})
	}
	return out
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// finite maps NaN and infinities to nil so they encode as null.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
