package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"sort"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"retaildash/internal/core"
)

const (
	defaultWidth  = 640
	defaultHeight = 400
	// pixels per point for gonum output
	pxPerPoint = 96.0 / 72.0
)

// PNGRenderer draws charts with go-chart. The correlation heatmap and
// placeholders for empty tables are drawn with gonum/plot.
type PNGRenderer struct {
	Width  int
	Height int
}

var _ Renderer = PNGRenderer{}

func NewPNGRenderer() PNGRenderer {
	return PNGRenderer{Width: defaultWidth, Height: defaultHeight}
}

func (PNGRenderer) ContentType() string { return "image/png" }

func (r PNGRenderer) Render(w io.Writer, spec ChartSpec, d core.Dashboard) error {
	switch spec.Name {
	case ChartPointsByTier:
		return r.categoryBars(w, spec, d.PointsByTier)
	case ChartTransactionsOverTime:
		return r.timeLine(w, spec, d.TransactionsOverTime, false)
	case ChartPointsByGroup:
		return r.pie(w, spec, d.PointsByGroup)
	case ChartCorrelation:
		return r.heatmap(w, spec, d.Correlation)
	case ChartPointsVsDate:
		return r.scatter(w, spec, d.Scatter)
	case ChartTransactionsByTimestamp:
		return r.timeLine(w, spec, d.TransactionsByTimestamp, true)
	default:
		return fmt.Errorf("unknown chart %q", spec.Name)
	}
}

func (r PNGRenderer) categoryBars(w io.Writer, spec ChartSpec, totals []core.CategoryTotal) error {
	if len(totals) == 0 {
		return r.placeholder(w, spec)
	}

	bars := make([]chart.Value, 0, len(totals))
	maxY := 0.0
	for i, t := range totals {
		v := t.Points.InexactFloat64()
		maxY = math.Max(maxY, v)
		bars = append(bars, chart.Value{
			Label: t.Key,
			Value: v,
			Style: chart.Style{FillColor: chart.GetDefaultColor(i), StrokeColor: chart.GetDefaultColor(i)},
		})
	}

	barWidth := 50
	if fit := (r.Width - 120) * 2 / (3 * len(bars)); fit < barWidth {
		barWidth = max(fit, 2)
	}

	bc := chart.BarChart{
		Title:    spec.Title,
		Width:    r.Width,
		Height:   r.Height,
		BarWidth: barWidth,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			Name:  spec.Label(spec.Y),
			Range: upperRange(maxY),
		},
		Bars: bars,
	}
	return bc.Render(chart.PNG, w)
}

func (r PNGRenderer) timeLine(w io.Writer, spec ChartSpec, counts []core.TimeCount, filled bool) error {
	if len(counts) == 0 {
		return r.placeholder(w, spec)
	}

	xs := make([]time.Time, 0, len(counts)+1)
	ys := make([]float64, 0, len(counts)+1)
	maxY := 0.0
	for _, c := range counts {
		xs = append(xs, c.Time)
		ys = append(ys, float64(c.Count))
		maxY = math.Max(maxY, float64(c.Count))
	}

	style := chart.Style{StrokeColor: chart.GetDefaultColor(0), StrokeWidth: 2}
	if filled {
		style.FillColor = chart.GetDefaultColor(0).WithAlpha(96)
	}

	ch := chart.Chart{
		Title:  spec.Title,
		Width:  r.Width,
		Height: r.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16},
		},
		XAxis: chart.XAxis{
			Name:           spec.Label(spec.X),
			ValueFormatter: chart.TimeValueFormatterWithFormat(timeFormat(filled)),
			Range:          timeRange(xs),
		},
		YAxis: chart.YAxis{
			Name:  spec.Label(spec.Y),
			Range: upperRange(maxY),
		},
		Series: []chart.Series{
			chart.TimeSeries{Name: spec.Label(spec.Y), XValues: xs, YValues: ys, Style: style},
		},
	}
	return ch.Render(chart.PNG, w)
}

func (r PNGRenderer) pie(w io.Writer, spec ChartSpec, totals []core.CategoryTotal) error {
	values := make([]chart.Value, 0, len(totals))
	for _, t := range totals {
		if !t.Points.IsPositive() {
			continue
		}
		values = append(values, chart.Value{Label: t.Key, Value: t.Points.InexactFloat64()})
	}
	if len(values) == 0 {
		return r.placeholder(w, spec)
	}

	pc := chart.PieChart{
		Title:  spec.Title,
		Width:  r.Width,
		Height: r.Height,
		Values: values,
	}
	return pc.Render(chart.PNG, w)
}

func (r PNGRenderer) scatter(w io.Writer, spec ChartSpec, points []core.ScatterPoint) error {
	if len(points) == 0 {
		return r.placeholder(w, spec)
	}

	type series struct {
		xs []time.Time
		ys []float64
	}
	byTier := make(map[string]*series)
	var all []time.Time
	maxY := 0.0
	for _, p := range points {
		s, ok := byTier[p.Tier]
		if !ok {
			s = &series{}
			byTier[p.Tier] = s
		}
		y := p.Points.InexactFloat64()
		s.xs = append(s.xs, p.Date)
		s.ys = append(s.ys, y)
		all = append(all, p.Date)
		maxY = math.Max(maxY, y)
	}

	tiers := make([]string, 0, len(byTier))
	for t := range byTier {
		tiers = append(tiers, t)
	}
	sort.Strings(tiers)

	ch := chart.Chart{
		Title:  spec.Title,
		Width:  r.Width,
		Height: r.Height,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 16, Right: 16},
		},
		XAxis: chart.XAxis{
			Name:           spec.Label(spec.X),
			ValueFormatter: chart.TimeValueFormatterWithFormat("2006-01-02"),
			Range:          timeRange(all),
		},
		YAxis: chart.YAxis{
			Name:  spec.Label(spec.Y),
			Range: upperRange(maxY),
		},
	}
	for i, tier := range tiers {
		s := byTier[tier]
		ch.Series = append(ch.Series, chart.TimeSeries{
			Name:    tier,
			XValues: s.xs,
			YValues: s.ys,
			Style:   dotStyle(chart.GetDefaultColor(i)),
		})
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}
	return ch.Render(chart.PNG, w)
}

// heatmapGrid adapts a correlation matrix to plotter.GridXYZ.
type heatmapGrid struct {
	m core.CorrelationMatrix
}

func (g heatmapGrid) Dims() (c, r int)   { return 2, 2 }
func (g heatmapGrid) Z(c, r int) float64 { return g.m.Values[r][c] }
func (g heatmapGrid) X(c int) float64    { return float64(c) }
func (g heatmapGrid) Y(r int) float64    { return float64(r) }

func (r PNGRenderer) heatmap(w io.Writer, spec ChartSpec, m core.CorrelationMatrix) error {
	p := plot.New()
	p.Title.Text = spec.Title
	p.NominalX(m.Labels[0], m.Labels[1])
	p.NominalY(m.Labels[0], m.Labels[1])

	hm := plotter.NewHeatMap(heatmapGrid{m: m}, palette.Heat(12, 1))
	hm.Min, hm.Max = -1, 1
	hm.NaN = color.Gray{Y: 200}
	p.Add(hm)

	var (
		xys  []plotter.XY
		text []string
	)
	for row := 0; row < 2; row++ {
		for col := 0; col < 2; col++ {
			xys = append(xys, plotter.XY{X: float64(col), Y: float64(row)})
			text = append(text, formatCorrelation(m.Values[row][col]))
		}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: text})
	if err != nil {
		return fmt.Errorf("heatmap labels: %w", err)
	}
	p.Add(labels)

	return r.writePlot(w, p)
}

// placeholder draws an empty, titled plot for charts without data.
func (r PNGRenderer) placeholder(w io.Writer, spec ChartSpec) error {
	p := plot.New()
	p.Title.Text = spec.Title + " (no data)"
	p.X.Label.Text = spec.Label(spec.X)
	p.Y.Label.Text = spec.Label(spec.Y)
	return r.writePlot(w, p)
}

func (r PNGRenderer) writePlot(w io.Writer, p *plot.Plot) error {
	width := vg.Length(float64(r.Width) / pxPerPoint)
	height := vg.Length(float64(r.Height) / pxPerPoint)
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("plot writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func dotStyle(c drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    3,
		DotColor:    c,
	}
}

// upperRange spans [0, max] with headroom; a flat zero series still gets a
// non-empty range.
func upperRange(maxY float64) *chart.ContinuousRange {
	if maxY <= 0 {
		maxY = 1
	}
	return &chart.ContinuousRange{Min: 0, Max: maxY * 1.1}
}

// timeRange covers ts, widened by an hour on each side when all times are equal.
func timeRange(ts []time.Time) *chart.ContinuousRange {
	lo, hi := ts[0], ts[0]
	for _, t := range ts[1:] {
		if t.Before(lo) {
			lo = t
		}
		if t.After(hi) {
			hi = t
		}
	}
	if lo.Equal(hi) {
		lo, hi = lo.Add(-time.Hour), hi.Add(time.Hour)
	}
	return &chart.ContinuousRange{Min: chart.TimeToFloat64(lo), Max: chart.TimeToFloat64(hi)}
}

func timeFormat(withClock bool) string {
	if withClock {
		return "2006-01-02 15:04"
	}
	return "2006-01-02"
}

func formatCorrelation(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", v)
}
