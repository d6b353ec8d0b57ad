// echarts.go
package render

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"TitanicExplorer/src/processor"
)

// NoDataText 筛选结果为空时图表中显示的提示
const NoDataText = "No data for the current selection"

const (
	chartWidth  = "900px"
	chartHeight = "500px"
)

// HTML 用 go-echarts 把图表渲染为完整的 HTML 页面
func HTML(w io.Writer, c processor.Chart) error {
	meta := c.Info()
	if c.Empty() {
		return placeholder(meta).Render(w)
	}

	switch v := c.(type) {
	case processor.BarChart:
		return barHTML(v).Render(w)
	case processor.PieChart:
		return pieHTML(v).Render(w)
	case processor.HeatMap:
		return heatMapHTML(v).Render(w)
	case processor.Histogram:
		return histogramHTML(v).Render(w)
	default:
		return fmt.Errorf("不支持的图表类型 %T", c)
	}
}

func initOpts(meta processor.Meta) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		PageTitle: meta.Title,
		Width:     chartWidth,
		Height:    chartHeight,
	})
}

func titleOpts(meta processor.Meta) charts.GlobalOpts {
	return charts.WithTitleOpts(opts.Title{
		Title:    meta.Title,
		Subtitle: meta.Caption,
		Left:     "center",
	})
}

func placeholder(meta processor.Meta) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(meta),
		charts.WithTitleOpts(opts.Title{
			Title:    meta.Title,
			Subtitle: NoDataText,
			Left:     "center",
			Top:      "middle",
		}),
	)
	return bar
}

func barHTML(c processor.BarChart) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(c.Meta),
		titleOpts(c.Meta),
		charts.WithXAxisOpts(opts.XAxis{Name: c.XLabel}),
		charts.WithYAxisOpts(opts.YAxis{Name: c.YLabel, Min: 0, Max: 1}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	data := make([]opts.BarData, len(c.Values))
	for i, v := range c.Values {
		data[i] = opts.BarData{
			Name:      c.Categories[i],
			Value:     round(v, 4),
			ItemStyle: &opts.ItemStyle{Color: processor.ColorNavy},
		}
	}
	bar.SetXAxis(c.Categories).
		AddSeries(c.YLabel, data).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

func pieHTML(c processor.PieChart) *charts.Pie {
	pie := charts.NewPie()
	pie.SetGlobalOptions(
		initOpts(c.Meta),
		titleOpts(c.Meta),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	data := make([]opts.PieData, len(c.Labels))
	for i, l := range c.Labels {
		data[i] = opts.PieData{
			Name:      l,
			Value:     c.Counts[i],
			ItemStyle: &opts.ItemStyle{Color: c.Colors[i]},
		}
	}
	inner := fmt.Sprintf("%.0f%%", c.Hole*70)
	pie.AddSeries(c.Title, data).
		SetSeriesOptions(
			charts.WithPieChartOpts(opts.PieChart{Radius: []string{inner, "70%"}}),
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {d}%"}),
		)
	return pie
}

func heatMapHTML(c processor.HeatMap) *charts.HeatMap {
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		initOpts(c.Meta),
		titleOpts(c.Meta),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: c.Labels, SplitArea: &opts.SplitArea{Show: opts.Bool(true)}}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        -1,
			Max:        1,
			InRange:    &opts.VisualMapInRange{Color: []string{"#f7fbff", "#6baed6", "#08306b"}},
		}),
	)

	data := make([]opts.HeatMapData, 0, len(c.Labels)*len(c.Labels))
	for i, row := range c.Matrix {
		for j, v := range row {
			var value interface{} = "-"
			if !math.IsNaN(v) {
				value = round(v, 2)
			}
			data = append(data, opts.HeatMapData{Value: [3]interface{}{j, i, value}})
		}
	}
	hm.SetXAxis(c.Labels).
		AddSeries("correlation", data).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(true)}))
	return hm
}

func histogramHTML(c processor.Histogram) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts(c.Meta),
		titleOpts(c.Meta),
		charts.WithXAxisOpts(opts.XAxis{Name: c.XLabel, Type: "value", Min: c.Edges[0], Max: c.Edges[len(c.Edges)-1]}),
		charts.WithYAxisOpts(opts.YAxis{Name: c.YLabel}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	data := make([]opts.BarData, len(c.Counts))
	for i, n := range c.Counts {
		center := (c.Edges[i] + c.Edges[i+1]) / 2
		data[i] = opts.BarData{
			Value:     []interface{}{round(center, 4), n},
			ItemStyle: &opts.ItemStyle{Color: processor.ColorNavy},
		}
	}
	bar.AddSeries(c.YLabel, data).
		SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{BarCategoryGap: "0%"}))

	if len(c.KDE) > 0 {
		line := charts.NewLine()
		points := make([]opts.LineData, len(c.KDE))
		for i, p := range c.KDE {
			points[i] = opts.LineData{Value: []interface{}{round(p.X, 4), round(p.Y, 4)}}
		}
		line.AddSeries("KDE", points).
			SetSeriesOptions(
				charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true), ShowSymbol: opts.Bool(false)}),
				charts.WithLineStyleOpts(opts.LineStyle{Color: processor.ColorCoral, Width: 2}),
			)
		bar.Overlap(line)
	}
	return bar
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
