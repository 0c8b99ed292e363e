// Package chart renders the spending summary and daily trend as PNG images.
package chart

import (
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"spendlens/src/models"
	"spendlens/src/storage"
)

const (
	CategoryChartFile = "spending_by_category.png"
	DailyChartFile    = "daily_spending_trend.png"

	// TopCategories caps the bars in the category chart.
	TopCategories = 15
)

var (
	barColor  = drawing.ColorFromHex("87ceeb")
	lineColor = drawing.ColorFromHex("008080")
)

// CategoryBars draws the largest categories of summary as a bar chart.
func CategoryBars(w io.Writer, summary []models.CategoryTotal) error {
	if len(summary) == 0 {
		return fmt.Errorf("category chart: no summary rows")
	}
	if len(summary) > TopCategories {
		summary = summary[:TopCategories]
	}

	bars := make([]chart.Value, 0, len(summary))
	maxValue := 0.0
	for _, row := range summary {
		v, _ := row.Amount.Abs().Float64()
		maxValue = max(maxValue, v)
		bars = append(bars, chart.Value{
			Label: row.Category,
			Value: v,
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		})
	}

	graph := chart.BarChart{
		Title:  fmt.Sprintf("Top %d Spending by Category", TopCategories),
		Width:  1200,
		Height: 800,
		Background: chart.Style{
			Padding: chart.Box{Top: 60, Bottom: 200},
		},
		BarWidth: 50,
		XAxis:    chart.Style{TextRotationDegrees: 45.0},
		YAxis: chart.YAxis{
			Name:  "Amount ($)",
			Range: &chart.ContinuousRange{Min: 0, Max: maxValue * 1.1},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "$%.2f")
			},
		},
		Bars: bars,
	}

	return graph.Render(chart.PNG, w)
}

// DailyTrend draws daily totals as a line over time.
func DailyTrend(w io.Writer, daily []models.DailyTotal) error {
	if len(daily) == 0 {
		return fmt.Errorf("daily chart: no expenses")
	}

	xs := make([]time.Time, 0, len(daily))
	ys := make([]float64, 0, len(daily))
	maxValue := 0.0
	for _, d := range daily {
		v, _ := d.Amount.Abs().Float64()
		maxValue = max(maxValue, v)
		xs = append(xs, d.Date)
		ys = append(ys, v)
	}

	// A single day has no x extent; widen the axis by a day on each side.
	first, last := xs[0], xs[len(xs)-1]
	if first.Equal(last) {
		first, last = first.AddDate(0, 0, -1), last.AddDate(0, 0, 1)
	}

	graph := chart.Chart{
		Title:  "Daily Spending Trend",
		Width:  1400,
		Height: 700,
		Background: chart.Style{
			Padding: chart.Box{Top: 60, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis: chart.XAxis{
			Name:           "Date",
			ValueFormatter: chart.TimeValueFormatterWithFormat(models.DateLayout),
			Range:          &chart.ContinuousRange{Min: chart.TimeToFloat64(first), Max: chart.TimeToFloat64(last)},
			Style:          chart.Style{TextRotationDegrees: 45.0},
		},
		YAxis: chart.YAxis{
			Name:  "Total Spending ($)",
			Range: &chart.ContinuousRange{Min: 0, Max: maxValue * 1.1},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Daily spending",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: lineColor,
					StrokeWidth: 2,
					DotColor:    lineColor,
					DotWidth:    4,
				},
			},
		},
	}

	return graph.Render(chart.PNG, w)
}

// RenderFiles writes both charts into dir. A chart with no input is skipped;
// the names of the files written are returned.
func RenderFiles(dir storage.Dir, summary []models.CategoryTotal, daily []models.DailyTotal) ([]string, error) {
	var written []string

	if len(summary) > 0 {
		path := dir.File(CategoryChartFile)
		if err := storage.WriteAtomic(path, func(w io.Writer) error { return CategoryBars(w, summary) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	if len(daily) > 0 {
		path := dir.File(DailyChartFile)
		if err := storage.WriteAtomic(path, func(w io.Writer) error { return DailyTrend(w, daily) }); err != nil {
			return written, err
		}
		written = append(written, path)
	}

	return written, nil
}
