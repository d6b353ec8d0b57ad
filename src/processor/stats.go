// stats.go
package processor

import (
	"math"
	"sort"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// KDEPoints 密度曲线的采样点数
const KDEPoints = 200

// Group 分组聚合结果
type Group struct {
	Key   string  `json:"key"`
	Mean  float64 `json:"mean"`
	Count int     `json:"count"`
}

// Share 分类占比
type Share struct {
	Key   string  `json:"key"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// Point 曲线上的一个点
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// GroupMean 按 by 列分组计算 col 列均值
// 分组键或数值缺失的行被忽略，没有有效数值的分组不出现在结果中，结果按键排序
func GroupMean(df dataframe.DataFrame, by, col string) []Group {
	if df.Nrow() == 0 {
		return nil
	}
	keys := df.Col(by)
	values := df.Col(col).Float()

	buckets := make(map[string][]float64)
	for i := 0; i < df.Nrow(); i++ {
		el := keys.Elem(i)
		if el.IsNA() || math.IsNaN(values[i]) {
			continue
		}
		k := el.String()
		buckets[k] = append(buckets[k], values[i])
	}

	groups := make([]Group, 0, len(buckets))
	for k, vs := range buckets {
		groups = append(groups, Group{Key: k, Mean: stat.Mean(vs, nil), Count: len(vs)})
	}
	sort.Slice(groups, func(i, j int) bool { return lessKey(groups[i].Key, groups[j].Key) })
	return groups
}

// Proportions 统计 col 列各取值的行数与占比，缺失值不计入
// 结果按行数降序排列，行数相同时按键排序
func Proportions(df dataframe.DataFrame, col string) []Share {
	if df.Nrow() == 0 {
		return nil
	}
	s := df.Col(col)
	counts := make(map[string]int)
	total := 0
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() {
			continue
		}
		counts[el.String()]++
		total++
	}

	shares := make([]Share, 0, len(counts))
	for k, n := range counts {
		shares = append(shares, Share{Key: k, Count: n, Share: float64(n) / float64(total)})
	}
	sort.Slice(shares, func(i, j int) bool {
		if shares[i].Count != shares[j].Count {
			return shares[i].Count > shares[j].Count
		}
		return lessKey(shares[i].Key, shares[j].Key)
	})
	return shares
}

// lessKey 两个键都是数字时按数值比较，否则按字符串比较
func lessKey(a, b string) bool {
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA == nil && errB == nil {
		return fa < fb
	}
	return a < b
}

// PearsonMatrix 计算 cols 两两之间的皮尔逊相关系数
// 每一对只使用两列都不缺失的行，有效行数少于 2 或方差为 0 时为 NaN
func PearsonMatrix(df dataframe.DataFrame, cols []string) [][]float64 {
	data := make([][]float64, len(cols))
	for i, c := range cols {
		if df.Nrow() > 0 {
			data[i] = df.Col(c).Float()
		}
	}

	m := make([][]float64, len(cols))
	for i := range m {
		m[i] = make([]float64, len(cols))
	}
	for i := range cols {
		for j := i; j < len(cols); j++ {
			r := Pearson(data[i], data[j])
			m[i][j], m[j][i] = r, r
		}
	}
	return m
}

// Pearson 计算成对完整观测的皮尔逊相关系数
func Pearson(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		xs = append(xs, x[i])
		ys = append(ys, y[i])
	}
	if len(xs) < 2 {
		return math.NaN()
	}
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return math.NaN()
	}
	r := stat.Correlation(xs, ys, nil)
	return math.Max(-1, math.Min(1, r))
}

// Present 返回去掉 NaN 后的数值
func Present(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// HistogramBins 把数值按等宽分箱计数
// 区间为 [min, max]，最后一个箱包含右端点；所有值相同时区间取 [v-0.5, v+0.5]
// 返回 bins+1 个边界和 bins 个计数，没有有效值时都为 nil
func HistogramBins(values []float64, bins int) (edges, counts []float64) {
	xs := Present(values)
	if len(xs) == 0 || bins <= 0 {
		return nil, nil
	}
	sort.Float64s(xs)

	lo, hi := xs[0], xs[len(xs)-1]
	if lo == hi {
		// 数值很大时 ±0.5 会被舍入掉，按数量级放宽
		d := math.Max(0.5, math.Abs(lo)*1e-9)
		lo, hi = lo-d, hi+d
	}
	edges = floats.Span(make([]float64, bins+1), lo, hi)
	edges[bins] = hi

	// stat.Histogram 的最后一个边界是开区间，稍微放大以包含最大值
	dividers := make([]float64, len(edges))
	copy(dividers, edges)
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts = stat.Histogram(nil, dividers, xs, nil)
	return edges, counts
}

// KDE 高斯核密度估计，带宽使用 Scott 规则 n^(-1/5)*std
// 在 [min, max] 上均匀取 points 个点，结果乘以 scale
// 有效值少于 2 个或标准差为 0 时返回 nil
func KDE(values []float64, points int, scale float64) []Point {
	xs := Present(values)
	n := len(xs)
	if n < 2 || points < 2 {
		return nil
	}
	sd := stat.StdDev(xs, nil)
	if sd == 0 || math.IsNaN(sd) {
		return nil
	}
	bw := sd * math.Pow(float64(n), -0.2)

	lo, hi := floats.Min(xs), floats.Max(xs)
	grid := floats.Span(make([]float64, points), lo, hi)
	grid[points-1] = hi

	kernels := make([]distuv.Normal, n)
	for i, x := range xs {
		kernels[i] = distuv.Normal{Mu: x, Sigma: bw}
	}

	curve := make([]Point, points)
	for i, g := range grid {
		var density float64
		for _, k := range kernels {
			density += k.Prob(g)
		}
		curve[i] = Point{X: g, Y: density / float64(n) * scale}
	}
	return curve
}
