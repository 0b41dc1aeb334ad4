package report

import (
	"bytes"
	"context"
	"errors"

	"github.com/wcharczuk/go-chart/v2"

	"github.com/nexuscomply/backend/internal/util"
)

// ChartRenderer rasterises trend points into a PNG image. Rendering is
// synchronous; the image is complete when the call returns.
type ChartRenderer func(ctx context.Context, title string, points []TrendPoint) ([]byte, error)

var errNoPoints = errors.New("no chart data")

const maxBars = 24

// RenderBarChart draws one bar per point with the Y axis fixed to 0-100%.
func RenderBarChart(ctx context.Context, title string, points []TrendPoint) ([]byte, error) {
	if len(points) == 0 {
		return nil, errNoPoints
	}
	if len(points) > maxBars {
		points = points[:maxBars]
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	bars := make([]chart.Value, 0, len(points))
	for _, p := range points {
		v := p.Rate
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		bars = append(bars, chart.Value{Value: v, Label: util.Truncate(p.Label, 12)})
	}

	graph := chart.BarChart{
		Title:    title,
		Width:    1024,
		Height:   480,
		BarWidth: barWidth(len(bars)),
		Background: chart.Style{
			Padding: chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return FormatRate(f)
				}
				return ""
			},
		},
		Bars: bars,
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func barWidth(n int) int {
	w := 800 / (n + 1)
	if w > 80 {
		return 80
	}
	if w < 12 {
		return 12
	}
	return w
}
