// handlers.go
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"

	"TitanicExplorer/src/config"
	"TitanicExplorer/src/dataset"
	"TitanicExplorer/src/processor"
	"TitanicExplorer/src/render"
	"TitanicExplorer/src/utils"
)

// 查询参数
const (
	ParamAgeLo    = "age_lo"
	ParamAgeHi    = "age_hi"
	ParamClass    = "class"
	ParamKind     = "kind"
	ParamFiltered = "filtered" // 表单提交标记，存在时未勾选任何舱位表示空集合
)

var errNoDataset = errors.New("数据集尚未加载")

// Query 解析后的请求参数
type Query struct {
	Selection processor.Selection
	Kind      processor.Kind
}

// Encode 编码为查询字符串，用于页面内链接
func (q Query) Encode() string {
	v := url.Values{}
	v.Set(ParamAgeLo, strconv.Itoa(q.Selection.AgeLo))
	v.Set(ParamAgeHi, strconv.Itoa(q.Selection.AgeHi))
	for _, c := range q.Selection.Classes {
		v.Add(ParamClass, strconv.Itoa(c))
	}
	v.Set(ParamKind, string(q.Kind))
	v.Set(ParamFiltered, "1")
	return v.Encode()
}

// ParseQuery 从查询参数解析筛选条件和图表类型，缺省值取自配置
func ParseQuery(values url.Values, cfg *config.Config) (Query, error) {
	q := Query{
		Selection: processor.Selection{
			AgeLo:   cfg.Defaults.AgeLo,
			AgeHi:   cfg.Defaults.AgeHi,
			Classes: append([]int(nil), cfg.Defaults.Classes...),
		},
	}

	var err error
	if q.Selection.AgeLo, err = intParam(values, ParamAgeLo, q.Selection.AgeLo); err != nil {
		return q, err
	}
	if q.Selection.AgeHi, err = intParam(values, ParamAgeHi, q.Selection.AgeHi); err != nil {
		return q, err
	}

	if raw, ok := values[ParamClass]; ok || values.Get(ParamFiltered) != "" {
		q.Selection.Classes = []int{}
		for _, s := range raw {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			c, err := strconv.Atoi(s)
			if err != nil {
				return q, fmt.Errorf("%w: %s=%q", processor.ErrInvalidClass, ParamClass, s)
			}
			if !utils.Contains(q.Selection.Classes, c) {
				q.Selection.Classes = append(q.Selection.Classes, c)
			}
		}
	}

	kind := values.Get(ParamKind)
	if kind == "" {
		kind = cfg.Defaults.Kind
	}
	if q.Kind, err = processor.ParseKind(kind); err != nil {
		return q, err
	}
	return q, q.Selection.Validate()
}

func intParam(values url.Values, name string, def int) (int, error) {
	s := strings.TrimSpace(values.Get(name))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", processor.ErrInvalidRange, name, s)
	}
	return v, nil
}

func isBadRequest(err error) bool {
	return errors.Is(err, processor.ErrInvalidRange) ||
		errors.Is(err, processor.ErrInvalidClass) ||
		errors.Is(err, processor.ErrUnknownKind)
}

func statusFor(err error) int {
	switch {
	case isBadRequest(err):
		return http.StatusBadRequest
	case errors.Is(err, errNoDataset):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// result 一次请求的计算结果
type result struct {
	query   Query
	dataset *dataset.Dataset
	view    dataframe.DataFrame
	chart   processor.Chart
}

// compute 按请求参数筛选数据并计算图表，每次请求都从完整数据集重新计算
func (s *Server) compute(r *http.Request) (*result, error) {
	q, err := ParseQuery(r.URL.Query(), s.cfg)
	if err != nil {
		return nil, err
	}
	ds := s.holder.Get()
	if ds == nil {
		return nil, errNoDataset
	}

	start := time.Now()
	view, err := q.Selection.Apply(ds.Frame())
	if err != nil {
		return nil, err
	}
	chart, err := processor.Compute(q.Kind, view, processor.WithBins(s.cfg.Defaults.Bins))
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		s.metrics.ObserveChart(string(q.Kind), start)
	}
	return &result{query: q, dataset: ds, view: view, chart: chart}, nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(fmt.Sprintf("%s %s 失败(id=%s): %v", r.Method, r.URL.Path, RequestID(r.Context()), err))
	}
	http.Error(w, err.Error(), status)
}

func (s *Server) failJSON(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(fmt.Sprintf("%s %s 失败(id=%s): %v", r.Method, r.URL.Path, RequestID(r.Context()), err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleChartHTML(w http.ResponseWriter, r *http.Request) {
	res, err := s.compute(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := render.HTML(&buf, res.chart); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleChartPNG(w http.ResponseWriter, r *http.Request) {
	res, err := s.compute(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := render.PNG(&buf, res.chart); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	res, err := s.compute(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var buf bytes.Buffer
	chart := utils.ChartData{Title: res.chart.Info().Title, Records: res.chart.Records()}
	if err := utils.WriteExcel(&buf, res.view, chart); err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "titanic-"+string(res.query.Kind)+".xlsx"))
	_, _ = buf.WriteTo(w)
}

// Bounds /api/bounds 的响应
type Bounds struct {
	AgeMin    int       `json:"age_min"`
	AgeMax    int       `json:"age_max"`
	DefaultLo int       `json:"default_lo"`
	DefaultHi int       `json:"default_hi"`
	Classes   []int     `json:"classes"`
	Rows      int       `json:"rows"`
	Source    string    `json:"source"`
	LoadedAt  time.Time `json:"loaded_at"`
}

func (s *Server) bounds(ds *dataset.Dataset) Bounds {
	lo, hi := ds.AgeBounds()
	return Bounds{
		AgeMin:    lo,
		AgeMax:    hi,
		DefaultLo: s.cfg.Defaults.AgeLo,
		DefaultHi: s.cfg.Defaults.AgeHi,
		Classes:   processor.ValidClasses,
		Rows:      ds.Len(),
		Source:    ds.Source(),
		LoadedAt:  ds.LoadedAt(),
	}
}

func (s *Server) handleBounds(w http.ResponseWriter, r *http.Request) {
	ds := s.holder.Get()
	if ds == nil {
		s.failJSON(w, r, errNoDataset)
		return
	}
	writeJSON(w, http.StatusOK, s.bounds(ds))
}

// KindInfo /api/kinds 的响应元素
type KindInfo struct {
	Kind  processor.Kind `json:"kind"`
	Label string         `json:"label"`
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	kinds := processor.Kinds()
	out := make([]KindInfo, len(kinds))
	for i, k := range kinds {
		out[i] = KindInfo{Kind: k, Label: k.Label()}
	}
	writeJSON(w, http.StatusOK, out)
}

// View /api/view 的响应
type View struct {
	Selection processor.Selection `json:"selection"`
	Count     int                 `json:"count"`
	Records   []dataset.Passenger `json:"records"`
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	q, err := ParseQuery(r.URL.Query(), s.cfg)
	if err != nil {
		s.failJSON(w, r, err)
		return
	}
	ds := s.holder.Get()
	if ds == nil {
		s.failJSON(w, r, errNoDataset)
		return
	}
	view, err := q.Selection.Apply(ds.Frame())
	if err != nil {
		s.failJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, View{Selection: q.Selection, Count: view.Nrow(), Records: dataset.Records(view)})
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	res, err := s.compute(r)
	if err != nil {
		s.failJSON(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.chart)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ds := s.holder.Get()
	if ds == nil {
		s.failJSON(w, r, errNoDataset)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "rows": ds.Len()})
}

// handleLogs 以分块方式持续输出日志
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	// 设置响应头
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	// 创建日志订阅通道
	logChan := s.logger.Subscribe()
	defer s.logger.Unsubscribe(logChan)

	flusher, _ := w.(http.Flusher)
	if flusher != nil {
		flusher.Flush()
	}
	for {
		select {
		case msg, ok := <-logChan:
			if !ok {
				return
			}
			// 如果写入失败(如客户端断开连接)，则退出循环
			if _, err := fmt.Fprint(w, msg); err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return
		}
	}
}
