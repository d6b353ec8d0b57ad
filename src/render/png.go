// png.go
package render

import (
	"fmt"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"TitanicExplorer/src/processor"
)

// 静态图片尺寸
const (
	pngWidth  = 8 * vg.Inch
	pngHeight = 5 * vg.Inch
)

// PNG 把图表渲染为 PNG 图片，饼图使用 go-chart，其余使用 gonum/plot
func PNG(w io.Writer, c processor.Chart) error {
	if c.Empty() {
		return writePlot(w, emptyPlot(c.Info()))
	}

	switch v := c.(type) {
	case processor.PieChart:
		return piePNG(w, v)
	case processor.BarChart:
		p, err := barPlot(v)
		if err != nil {
			return err
		}
		return writePlot(w, p)
	case processor.HeatMap:
		p, err := heatMapPlot(v)
		if err != nil {
			return err
		}
		return writePlot(w, p)
	case processor.Histogram:
		p, err := histogramPlot(v)
		if err != nil {
			return err
		}
		return writePlot(w, p)
	default:
		return fmt.Errorf("不支持的图表类型 %T", c)
	}
}

func writePlot(w io.Writer, p *plot.Plot) error {
	wt, err := p.WriterTo(pngWidth, pngHeight, "png")
	if err != nil {
		return fmt.Errorf("生成图片失败: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("写入图片失败: %w", err)
	}
	return nil
}

func hexColor(hex string) color.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

func newPlot(meta processor.Meta) *plot.Plot {
	p := plot.New()
	p.Title.Text = meta.Title
	p.Title.TextStyle.Color = hexColor(processor.ColorNavy)
	p.X.Label.Text = meta.XLabel
	p.Y.Label.Text = meta.YLabel
	return p
}

func emptyPlot(meta processor.Meta) *plot.Plot {
	p := newPlot(meta)
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.HideAxes()

	labels, err := plotter.NewLabels(plotter.XYLabels{
		XYs:    plotter.XYs{{X: 0.5, Y: 0.5}},
		Labels: []string{NoDataText},
	})
	if err == nil {
		labels.Offset.X = -vg.Length(len(NoDataText)) * 2.5
		p.Add(labels)
	}
	return p
}

func barPlot(c processor.BarChart) (*plot.Plot, error) {
	p := newPlot(c.Meta)

	bars, err := plotter.NewBarChart(plotter.Values(c.Values), vg.Points(40))
	if err != nil {
		return nil, fmt.Errorf("创建柱状图失败: %w", err)
	}
	bars.Color = hexColor(processor.ColorNavy)
	bars.LineStyle.Width = 0
	p.Add(bars)
	p.NominalX(c.Categories...)
	p.Y.Min = 0
	p.Y.Max = math.Max(1, p.Y.Max)
	return p, nil
}

// corrGrid 实现 plotter.GridXYZ
type corrGrid struct {
	m [][]float64
}

func (g corrGrid) Dims() (int, int) { return len(g.m), len(g.m) }
func (g corrGrid) Z(c, r int) float64 { return g.m[r][c] }
func (g corrGrid) X(c int) float64 { return float64(c) }
func (g corrGrid) Y(r int) float64 { return float64(r) }

func heatMapPlot(c processor.HeatMap) (*plot.Plot, error) {
	p := newPlot(c.Meta)

	// 亮度需单调递增，取反后相关系数越高颜色越深
	cmap, err := moreland.NewLuminance([]color.Color{
		hexColor("#08306b"),
		hexColor("#6baed6"),
		hexColor("#f7fbff"),
	})
	if err != nil {
		return nil, fmt.Errorf("创建色带失败: %w", err)
	}
	cmap.SetMin(-1)
	cmap.SetMax(1)

	grid := corrGrid{m: c.Matrix}
	hm := plotter.NewHeatMap(grid, palette.Reverse(cmap).Palette(255))
	hm.Min, hm.Max = -1, 1
	hm.NaN = color.Gray{Y: 200}
	p.Add(hm)

	var (
		xys  plotter.XYs
		text []string
	)
	for r, row := range c.Matrix {
		for col, v := range row {
			xys = append(xys, plotter.XY{X: float64(col), Y: float64(r)})
			if math.IsNaN(v) {
				text = append(text, "nan")
			} else {
				text = append(text, strconv.FormatFloat(v, 'f', 2, 64))
			}
		}
	}
	labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: text})
	if err != nil {
		return nil, fmt.Errorf("创建标注失败: %w", err)
	}
	for i := range labels.TextStyle {
		labels.TextStyle[i].XAlign = -0.5
		labels.TextStyle[i].YAlign = -0.5
	}
	p.Add(labels)

	p.NominalX(c.Labels...)
	p.NominalY(c.Labels...)
	return p, nil
}

func histogramPlot(c processor.Histogram) (*plot.Plot, error) {
	p := newPlot(c.Meta)

	bins := make([]plotter.HistogramBin, len(c.Counts))
	for i, n := range c.Counts {
		bins[i] = plotter.HistogramBin{Min: c.Edges[i], Max: c.Edges[i+1], Weight: n}
	}
	hist := &plotter.Histogram{
		Bins:      bins,
		Width:     c.Edges[1] - c.Edges[0],
		FillColor: hexColor(processor.ColorNavy),
		LineStyle: plotter.DefaultLineStyle,
	}
	hist.LineStyle.Color = color.White
	p.Add(hist)

	if len(c.KDE) > 0 {
		pts := make(plotter.XYs, len(c.KDE))
		for i, pt := range c.KDE {
			pts[i] = plotter.XY{X: pt.X, Y: pt.Y}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("创建密度曲线失败: %w", err)
		}
		line.LineStyle.Color = hexColor(processor.ColorCoral)
		line.LineStyle.Width = vg.Points(2)
		p.Add(line)
	}
	p.Y.Min = 0
	return p, nil
}

func piePNG(w io.Writer, c processor.PieChart) error {
	values := make([]chart.Value, len(c.Labels))
	for i, l := range c.Labels {
		values[i] = chart.Value{
			Label: fmt.Sprintf("%s (%.1f%%)", l, c.Shares[i]*100),
			Value: float64(c.Counts[i]),
			Style: chart.Style{
				FillColor:   drawing.ColorFromHex(strings.TrimPrefix(c.Colors[i], "#")),
				StrokeColor: drawing.ColorWhite,
				FontColor:   drawing.ColorWhite,
			},
		}
	}

	pie := chart.PieChart{
		Title:  c.Title,
		Width:  int(pngWidth.Dots(96)),
		Height: int(pngHeight.Dots(96)),
		Background: chart.Style{
			Padding: chart.Box{Top: 40},
		},
		Values: values,
	}
	if err := pie.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("生成饼图失败: %w", err)
	}
	return nil
}
