package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 面板服务的 Prometheus 指标
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ChartsComputed  *prometheus.CounterVec
	ChartDuration   *prometheus.HistogramVec
	DatasetRows     prometheus.Gauge
	DatasetLoads    *prometheus.CounterVec
	LastLoad        prometheus.Gauge
}

// New 在 reg 上注册全部指标，reg 为 nil 时使用默认注册器
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	buckets := []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "titanic_http_requests_total",
			Help: "HTTP 请求总数",
		}, []string{"route", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "titanic_http_request_duration_seconds",
			Help:    "HTTP 请求耗时",
			Buckets: buckets,
		}, []string{"route"}),
		ChartsComputed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "titanic_charts_computed_total",
			Help: "按类型统计的图表计算次数",
		}, []string{"kind"}),
		ChartDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "titanic_chart_duration_seconds",
			Help:    "筛选加图表计算耗时",
			Buckets: buckets,
		}, []string{"kind"}),
		DatasetRows: f.NewGauge(prometheus.GaugeOpts{
			Name: "titanic_dataset_rows",
			Help: "当前数据集行数",
		}),
		DatasetLoads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "titanic_dataset_loads_total",
			Help: "数据集加载次数",
		}, []string{"result"}),
		LastLoad: f.NewGauge(prometheus.GaugeOpts{
			Name: "titanic_dataset_last_load_timestamp_seconds",
			Help: "最近一次成功加载的时间",
		}),
	}
}

// ObserveRequest 记录一次 HTTP 请求
func (m *Metrics) ObserveRequest(route string, status int, start time.Time) {
	m.Requests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}

// ObserveChart 记录一次图表计算
func (m *Metrics) ObserveChart(kind string, start time.Time) {
	m.ChartsComputed.WithLabelValues(kind).Inc()
	m.ChartDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// DatasetLoaded 记录一次成功加载
func (m *Metrics) DatasetLoaded(rows int, at time.Time) {
	m.DatasetLoads.WithLabelValues("ok").Inc()
	m.DatasetRows.Set(float64(rows))
	m.LastLoad.Set(float64(at.Unix()))
}

// DatasetLoadFailed 记录一次失败的加载
func (m *Metrics) DatasetLoadFailed() {
	m.DatasetLoads.WithLabelValues("error").Inc()
}
