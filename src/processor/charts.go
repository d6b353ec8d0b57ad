// charts.go
package processor

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"

	"TitanicExplorer/src/dataset"
)

// ErrUnknownKind 未知的图表类型
var ErrUnknownKind = errors.New("未知的图表类型")

// Kind 图表类型
type Kind string

// 七种图表类型，顺序即菜单顺序
const (
	KindSurvivalByClass  Kind = "survival-by-class"
	KindSurvivalByGender Kind = "survival-by-gender"
	KindClassShare       Kind = "class-share"
	KindSurvivalShare    Kind = "survival-share"
	KindCorrelation      Kind = "correlation"
	KindAgeDistribution  Kind = "age-distribution"
	KindFareDistribution Kind = "fare-distribution"
)

// DefaultBins 直方图默认分箱数
const DefaultBins = 20

// 图表配色
const (
	ColorNavy  = "#001f3f"
	ColorCoral = "#FF6F61"
)

// CorrelationColumns 参与相关性计算的数值列
var CorrelationColumns = []string{dataset.ColAge, dataset.ColFare, dataset.ColSibSp, dataset.ColParch}

// SurvivalLabels 生存标记的显示名称
var SurvivalLabels = map[string]string{"0": "Did not survive", "1": "Survived"}

var kinds = []Kind{
	KindSurvivalByClass,
	KindSurvivalByGender,
	KindClassShare,
	KindSurvivalShare,
	KindCorrelation,
	KindAgeDistribution,
	KindFareDistribution,
}

// 菜单中显示的名称
var kindLabels = map[Kind]string{
	KindSurvivalByClass:  "Survival Rates by Class",
	KindSurvivalByGender: "Survival Rates by Gender",
	KindClassShare:       "Percentage of Passengers by Class",
	KindSurvivalShare:    "Survival Rate Percentage",
	KindCorrelation:      "Correlation Heatmap",
	KindAgeDistribution:  "Age Distribution",
	KindFareDistribution: "Fare Distribution",
}

// Kinds 返回全部图表类型
func Kinds() []Kind {
	out := make([]Kind, len(kinds))
	copy(out, kinds)
	return out
}

// Label 返回菜单显示名称
func (k Kind) Label() string {
	if l, ok := kindLabels[k]; ok {
		return l
	}
	return string(k)
}

// ParseKind 解析图表类型，接受标识或菜单名称(不区分大小写)，空字符串返回第一种
func ParseKind(s string) (Kind, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return kinds[0], nil
	}
	for _, k := range kinds {
		if strings.EqualFold(s, string(k)) || strings.EqualFold(s, kindLabels[k]) {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Meta 图表的公共描述信息
type Meta struct {
	Kind    Kind   `json:"kind"`
	Title   string `json:"title"`
	Caption string `json:"caption"`
	XLabel  string `json:"x_label,omitempty"`
	YLabel  string `json:"y_label,omitempty"`
}

// Info 返回描述信息
func (m Meta) Info() Meta { return m }

// Chart 计算完成的图表数据，由 render 包负责绘制
type Chart interface {
	Info() Meta
	// Empty 没有可绘制的数据
	Empty() bool
	// Records 以表格形式返回图表数据，第一行为标题
	Records() [][]string
}

// BarChart 柱状图
type BarChart struct {
	Meta
	Categories []string  `json:"categories"`
	Values     []float64 `json:"values"`
	Counts     []int     `json:"counts"`
}

func (c BarChart) Empty() bool { return len(c.Categories) == 0 }

func (c BarChart) Records() [][]string {
	out := [][]string{{c.XLabel, c.YLabel, "Count"}}
	for i, cat := range c.Categories {
		out = append(out, []string{cat, formatFloat(c.Values[i]), strconv.Itoa(c.Counts[i])})
	}
	return out
}

// PieChart 饼图
type PieChart struct {
	Meta
	Labels []string  `json:"labels"`
	Counts []int     `json:"counts"`
	Shares []float64 `json:"shares"`
	Colors []string  `json:"colors"`
	Hole   float64   `json:"hole"`
}

func (c PieChart) Empty() bool { return len(c.Labels) == 0 }

func (c PieChart) Records() [][]string {
	out := [][]string{{"Label", "Count", "Share"}}
	for i, l := range c.Labels {
		out = append(out, []string{l, strconv.Itoa(c.Counts[i]), formatFloat(c.Shares[i])})
	}
	return out
}

// HeatMap 带数值标注的热力图，NaN 表示无法计算
type HeatMap struct {
	Meta
	Labels []string    `json:"labels"`
	Matrix [][]float64 `json:"matrix"`
}

func (c HeatMap) Empty() bool {
	for _, row := range c.Matrix {
		for _, v := range row {
			if !math.IsNaN(v) {
				return false
			}
		}
	}
	return true
}

func (c HeatMap) Records() [][]string {
	out := [][]string{append([]string{""}, c.Labels...)}
	for i, row := range c.Matrix {
		line := []string{c.Labels[i]}
		for _, v := range row {
			line = append(line, formatFloat(v))
		}
		out = append(out, line)
	}
	return out
}

// MarshalJSON NaN 输出为 null
func (c HeatMap) MarshalJSON() ([]byte, error) {
	matrix := make([][]*float64, len(c.Matrix))
	for i, row := range c.Matrix {
		matrix[i] = make([]*float64, len(row))
		for j, v := range row {
			if !math.IsNaN(v) {
				v := v
				matrix[i][j] = &v
			}
		}
	}
	return json.Marshal(struct {
		Meta
		Labels []string     `json:"labels"`
		Matrix [][]*float64 `json:"matrix"`
	}{c.Meta, c.Labels, matrix})
}

// Histogram 直方图与密度曲线
type Histogram struct {
	Meta
	Edges  []float64 `json:"edges"`
	Counts []float64 `json:"counts"`
	KDE    []Point   `json:"kde"`
	Total  int       `json:"total"`
}

func (c Histogram) Empty() bool { return c.Total == 0 }

func (c Histogram) Records() [][]string {
	out := [][]string{{"From", "To", "Count"}}
	for i, n := range c.Counts {
		out = append(out, []string{formatFloat(c.Edges[i]), formatFloat(c.Edges[i+1]), formatFloat(n)})
	}
	return out
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SurvivalByClass 各舱位等级的生存率
func SurvivalByClass(df dataframe.DataFrame) BarChart {
	return survivalBar(df, dataset.ColPclass, Meta{
		Kind:    KindSurvivalByClass,
		Title:   "Survival Rate by Class",
		Caption: "This bar chart shows the survival rate of passengers by class.",
		XLabel:  "Passenger Class",
		YLabel:  "Survival Rate",
	})
}

// SurvivalByGender 各性别的生存率
func SurvivalByGender(df dataframe.DataFrame) BarChart {
	return survivalBar(df, dataset.ColSex, Meta{
		Kind:    KindSurvivalByGender,
		Title:   "Survival Rate by Gender",
		Caption: "This bar chart illustrates the survival rates based on gender.",
		XLabel:  "Gender",
		YLabel:  "Survival Rate",
	})
}

func survivalBar(df dataframe.DataFrame, by string, meta Meta) BarChart {
	c := BarChart{Meta: meta, Categories: []string{}, Values: []float64{}, Counts: []int{}}
	for _, g := range GroupMean(df, by, dataset.ColSurvived) {
		c.Categories = append(c.Categories, g.Key)
		c.Values = append(c.Values, g.Mean)
		c.Counts = append(c.Counts, g.Count)
	}
	return c
}

// ClassShare 各舱位等级的乘客占比
func ClassShare(df dataframe.DataFrame) PieChart {
	return sharePie(df, dataset.ColPclass, nil, Meta{
		Kind:    KindClassShare,
		Title:   "Percentage of Passengers by Class",
		Caption: "This pie chart shows the distribution of passengers across different classes.",
	}, []string{ColorNavy, ColorCoral, ColorCoral})
}

// SurvivalShare 生还与遇难的乘客占比
func SurvivalShare(df dataframe.DataFrame) PieChart {
	return sharePie(df, dataset.ColSurvived, SurvivalLabels, Meta{
		Kind:    KindSurvivalShare,
		Title:   "Survival Rate Percentage",
		Caption: "This pie chart illustrates the overall survival rate among passengers.",
	}, []string{ColorNavy, ColorCoral})
}

func sharePie(df dataframe.DataFrame, col string, labels map[string]string, meta Meta, palette []string) PieChart {
	c := PieChart{Meta: meta, Labels: []string{}, Counts: []int{}, Shares: []float64{}, Colors: []string{}, Hole: 0.3}
	for i, s := range Proportions(df, col) {
		label := s.Key
		if l, ok := labels[s.Key]; ok {
			label = l
		}
		c.Labels = append(c.Labels, label)
		c.Counts = append(c.Counts, s.Count)
		c.Shares = append(c.Shares, s.Share)
		c.Colors = append(c.Colors, palette[i%len(palette)])
	}
	return c
}

// CorrelationHeatmap 数值特征之间的相关系数矩阵
func CorrelationHeatmap(df dataframe.DataFrame) HeatMap {
	return HeatMap{
		Meta: Meta{
			Kind:    KindCorrelation,
			Title:   "Correlation Heatmap of Features",
			Caption: "This heatmap displays the correlation between numerical features in the dataset.",
		},
		Labels: append([]string(nil), CorrelationColumns...),
		Matrix: PearsonMatrix(df, CorrelationColumns),
	}
}

// AgeDistribution 年龄直方图
func AgeDistribution(df dataframe.DataFrame, bins int) Histogram {
	return distribution(df, dataset.ColAge, bins, Meta{
		Kind:    KindAgeDistribution,
		Title:   "Age Distribution",
		Caption: "This histogram shows the age distribution of the passengers.",
		XLabel:  "Age",
		YLabel:  "Count",
	})
}

// FareDistribution 票价直方图
func FareDistribution(df dataframe.DataFrame, bins int) Histogram {
	return distribution(df, dataset.ColFare, bins, Meta{
		Kind:    KindFareDistribution,
		Title:   "Fare Distribution",
		Caption: "This histogram illustrates the fare distribution among passengers.",
		XLabel:  "Fare",
		YLabel:  "Count",
	})
}

// NewHistogram 对数值分箱并生成按计数缩放的密度曲线
func NewHistogram(values []float64, bins int) Histogram {
	if bins <= 0 {
		bins = DefaultBins
	}
	h := Histogram{Edges: []float64{}, Counts: []float64{}}
	edges, counts := HistogramBins(values, bins)
	if edges == nil {
		return h
	}
	h.Edges, h.Counts = edges, counts

	present := Present(values)
	h.Total = len(present)
	width := edges[1] - edges[0]
	h.KDE = KDE(present, KDEPoints, float64(h.Total)*width)
	return h
}

func distribution(df dataframe.DataFrame, col string, bins int, meta Meta) Histogram {
	var values []float64
	if df.Nrow() > 0 {
		values = df.Col(col).Float()
	}
	h := NewHistogram(values, bins)
	h.Meta = meta
	return h
}

type settings struct {
	bins int
}

// Option 图表计算选项
type Option func(*settings)

// WithBins 设置直方图分箱数
func WithBins(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.bins = n
		}
	}
}

type renderFunc func(df dataframe.DataFrame, s settings) Chart

var renderers = map[Kind]renderFunc{
	KindSurvivalByClass:  func(df dataframe.DataFrame, _ settings) Chart { return SurvivalByClass(df) },
	KindSurvivalByGender: func(df dataframe.DataFrame, _ settings) Chart { return SurvivalByGender(df) },
	KindClassShare:       func(df dataframe.DataFrame, _ settings) Chart { return ClassShare(df) },
	KindSurvivalShare:    func(df dataframe.DataFrame, _ settings) Chart { return SurvivalShare(df) },
	KindCorrelation:      func(df dataframe.DataFrame, _ settings) Chart { return CorrelationHeatmap(df) },
	KindAgeDistribution:  func(df dataframe.DataFrame, s settings) Chart { return AgeDistribution(df, s.bins) },
	KindFareDistribution: func(df dataframe.DataFrame, s settings) Chart { return FareDistribution(df, s.bins) },
}

// Compute 计算筛选结果上指定类型的图表
func Compute(kind Kind, df dataframe.DataFrame, opts ...Option) (Chart, error) {
	render, ok := renderers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	s := settings{bins: DefaultBins}
	for _, opt := range opts {
		opt(&s)
	}
	return render(df, s), nil
}
