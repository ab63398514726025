package posfreq

import (
	"errors"
	"fmt"
	"os"

	chart "github.com/wcharczuk/go-chart/v2"
)

const (
	barWidth   = 40
	barSpacing = 20
	minWidth   = 512
	chartPad   = 160
)

// RenderChart draws counts as a PNG bar chart at path, one bar per tag in
// tag order.
func RenderChart(path, title string, counts map[string]int) error {
	if len(counts) == 0 {
		return errors.New("no frequencies to draw")
	}

	freqs := Sorted(counts)
	bars := make([]chart.Value, 0, len(freqs))
	highest := 0
	for _, f := range freqs {
		bars = append(bars, chart.Value{Label: f.Tag, Value: float64(f.Count)})
		highest = max(highest, f.Count)
	}

	width := len(bars)*(barWidth+barSpacing) + chartPad
	if width < minWidth {
		width = minWidth
	}

	graph := chart.BarChart{
		Title: title,
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		YAxis: chart.YAxis{
			// Bars start at zero, and a single distinct count still has a range
			Range: &chart.ContinuousRange{Min: 0, Max: float64(highest)},
		},
		Width:      width,
		Height:     512,
		BarWidth:   barWidth,
		BarSpacing: barSpacing,
		Bars:       bars,
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create chart file: %w", err)
	}
	defer f.Close()

	if err := graph.Render(chart.PNG, f); err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}
	return f.Close()
}
