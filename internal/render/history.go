package render

import (
	"fmt"
	"io"

	"github.com/couchcryptid/noise-map-service/internal/domain"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// HistoryChart writes an HTML line chart of a device's daily averages with
// the min and max band and the level thresholds marked.
func HistoryChart(w io.Writer, deviceID string, days []domain.DailyAverage) error {
	xs := make([]string, len(days))
	avg := make([]opts.LineData, len(days))
	lo := make([]opts.LineData, len(days))
	hi := make([]opts.LineData, len(days))
	for i, d := range days {
		xs[i] = d.Day
		avg[i] = opts.LineData{Value: d.AverageDB}
		lo[i] = opts.LineData{Value: d.Min}
		hi[i] = opts.LineData{Value: d.Max}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Noise history", Theme: "dark", Width: "900px", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Daily noise levels", Subtitle: fmt.Sprintf("device=%s days=%d", deviceID, len(days))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Day", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "dB", Min: MinLevelDB, Max: MaxLevelDB}),
	)
	line.SetXAxis(xs).
		AddSeries("average", avg,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
			charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: "moderate", YAxis: domain.QuietMaxDB},
				opts.MarkLineNameYAxisItem{Name: "loud", YAxis: domain.ModerateMaxDB},
			),
		).
		AddSeries("min", lo).
		AddSeries("max", hi)

	if err := line.Render(w); err != nil {
		return fmt.Errorf("render history chart: %w", err)
	}
	return nil
}
