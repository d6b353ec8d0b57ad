package web

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"TitanicExplorer/src/config"
	"TitanicExplorer/src/dataset"
	"TitanicExplorer/src/metrics"
	"TitanicExplorer/src/processor"
	"TitanicExplorer/src/storage"
)

func testDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	df := dataset.LoadRecords([][]string{
		{"PassengerId", "Survived", "Pclass", "Sex", "Age", "Fare", "SibSp", "Parch"},
		{"1", "0", "3", "male", "22", "7.25", "1", "0"},
		{"2", "1", "1", "female", "38", "71.2833", "1", "0"},
		{"3", "1", "3", "female", "26", "7.925", "0", "0"},
		{"4", "1", "1", "female", "35", "53.1", "1", "0"},
		{"5", "0", "3", "male", "35", "8.05", "0", "0"},
		{"6", "0", "3", "male", "", "8.4583", "0", "0"},
		{"7", "0", "1", "male", "54", "51.8625", "0", "0"},
		{"8", "0", "3", "male", "2", "21.075", "3", "1"},
		{"9", "1", "2", "female", "14", "30.0708", "1", "0"},
		{"10", "0", "2", "male", "66", "10.5", "0", "0"},
	})
	ds, err := dataset.New(df, "test")
	require.NoError(t, err)
	return ds
}

type fixture struct {
	srv     *httptest.Server
	logger  *storage.Logger
	holder  *dataset.Holder
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg, _ := config.Default()
	logger := storage.NewWriterLogger(&bytes.Buffer{})
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	holder := dataset.NewHolder(testDataset(t))

	s := NewServer(holder, cfg, logger, m, reg)
	srv := httptest.NewServer(s.Routes())
	t.Cleanup(srv.Close)
	return &fixture{srv: srv, logger: logger, holder: holder, metrics: m}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func TestParseQueryDefaults(t *testing.T) {
	cfg, _ := config.Default()
	q, err := ParseQuery(url.Values{}, cfg)
	require.NoError(t, err)
	assert.Equal(t, 10, q.Selection.AgeLo)
	assert.Equal(t, 50, q.Selection.AgeHi)
	assert.Equal(t, []int{1, 2, 3}, q.Selection.Classes)
	assert.Equal(t, processor.KindSurvivalByClass, q.Kind)
}

func TestParseQueryValues(t *testing.T) {
	cfg, _ := config.Default()
	q, err := ParseQuery(url.Values{
		"age_lo": {"0"}, "age_hi": {"80"}, "class": {"3", "1", "3"}, "kind": {"Fare Distribution"},
	}, cfg)
	require.NoError(t, err)
	assert.Equal(t, processor.Selection{AgeLo: 0, AgeHi: 80, Classes: []int{3, 1}}, q.Selection)
	assert.Equal(t, processor.KindFareDistribution, q.Kind)

	back, err := url.ParseQuery(q.Encode())
	require.NoError(t, err)
	again, err := ParseQuery(back, cfg)
	require.NoError(t, err)
	assert.Equal(t, q, again)
}

func TestParseQueryEmptyClasses(t *testing.T) {
	cfg, _ := config.Default()
	q, err := ParseQuery(url.Values{"filtered": {"1"}}, cfg)
	require.NoError(t, err)
	assert.Empty(t, q.Selection.Classes)

	q, err = ParseQuery(url.Values{"class": {""}}, cfg)
	require.NoError(t, err)
	assert.Empty(t, q.Selection.Classes)
}

func TestParseQueryErrors(t *testing.T) {
	cfg, _ := config.Default()
	cases := map[string]struct {
		values url.Values
		want   error
	}{
		"reversed range": {url.Values{"age_lo": {"60"}, "age_hi": {"20"}}, processor.ErrInvalidRange},
		"bad number":     {url.Values{"age_lo": {"ten"}}, processor.ErrInvalidRange},
		"bad class":      {url.Values{"class": {"first"}}, processor.ErrInvalidClass},
		"unknown class":  {url.Values{"class": {"4"}}, processor.ErrInvalidClass},
		"unknown kind":   {url.Values{"kind": {"scatter"}}, processor.ErrUnknownKind},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseQuery(tc.values, cfg)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/?age_lo=0&age_hi=80&class=1&class=3&kind=correlation")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))

	page := string(body)
	assert.Contains(t, page, "Titanic Data Exploration App")
	assert.Contains(t, page, "Introduction")
	assert.Contains(t, page, "Conclusion")
	assert.Contains(t, page, "7 of 10 passengers")
	assert.Contains(t, page, `value="correlation" selected`)
	assert.Contains(t, page, "kind=correlation")
	assert.Contains(t, page, "This heatmap displays the correlation")
}

func TestDashboardShowsAllColumns(t *testing.T) {
	f := newFixture(t)
	ds, err := dataset.New(dataset.LoadRecords([][]string{
		{"PassengerId", "Survived", "Pclass", "Name", "Sex", "Age", "Fare", "SibSp", "Parch", "Cabin"},
		{"2", "1", "1", "Cumings, Mrs. John Bradley", "female", "38", "71.2833", "1", "0", "C85"},
	}), "test")
	require.NoError(t, err)
	f.holder.Set(ds)

	_, body := f.get(t, "/")
	page := string(body)
	assert.Contains(t, page, "<th>Name</th>")
	assert.Contains(t, page, "<th>Cabin</th>")
	assert.Contains(t, page, "Cumings, Mrs. John Bradley")
	assert.Contains(t, page, "<td>C85</td>")
}

func TestDashboardEmptySelection(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/?filtered=1&age_lo=0&age_hi=80")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "0 of 10 passengers")
}

func TestDashboardBadRange(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.get(t, "/?age_lo=60&age_hi=20")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBounds(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/bounds")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var b Bounds
	require.NoError(t, json.Unmarshal(body, &b))
	assert.Equal(t, 2, b.AgeMin)
	assert.Equal(t, 66, b.AgeMax)
	assert.Equal(t, 10, b.DefaultLo)
	assert.Equal(t, 50, b.DefaultHi)
	assert.Equal(t, 10, b.Rows)
	assert.Equal(t, []int{1, 2, 3}, b.Classes)
}

func TestKinds(t *testing.T) {
	f := newFixture(t)
	_, body := f.get(t, "/api/kinds")

	var kinds []KindInfo
	require.NoError(t, json.Unmarshal(body, &kinds))
	require.Len(t, kinds, 7)
	assert.Equal(t, processor.KindSurvivalByClass, kinds[0].Kind)
	assert.Equal(t, "Survival Rates by Class", kinds[0].Label)
}

func TestView(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/view")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var v View
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, []int{1, 2, 3}, v.Selection.Classes)
	assert.Equal(t, 6, v.Count)
	ids := []int{}
	for _, p := range v.Records {
		ids = append(ids, p.ID)
		require.NotNil(t, p.Age)
		assert.True(t, *p.Age >= 10 && *p.Age <= 50)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 9}, ids)
}

func TestViewEmptyClasses(t *testing.T) {
	f := newFixture(t)
	_, body := f.get(t, "/api/view?filtered=1")

	var v View
	require.NoError(t, json.Unmarshal(body, &v))
	assert.Equal(t, 0, v.Count)
	assert.Empty(t, v.Records)
}

func TestChartJSON(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/chart?kind=survival-by-class&age_lo=0&age_hi=100")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var c processor.BarChart
	require.NoError(t, json.Unmarshal(body, &c))
	assert.Equal(t, processor.KindSurvivalByClass, c.Kind)
	assert.Equal(t, []string{"1", "2", "3"}, c.Categories)
	assert.InDelta(t, 2.0/3.0, c.Values[0], 1e-9)
}

func TestChartJSONNaN(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/chart?kind=correlation&class=2")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "null")
}

func TestChartJSONErrors(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/chart?kind=scatter")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var e map[string]string
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Contains(t, e["error"], "scatter")
}

func TestChartHTML(t *testing.T) {
	f := newFixture(t)
	for _, k := range processor.Kinds() {
		resp, body := f.get(t, "/chart.html?kind="+string(k))
		require.Equal(t, http.StatusOK, resp.StatusCode, k)
		assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
		assert.Contains(t, string(body), "echarts")
	}
}

func TestChartPNG(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/chart.png?kind=age-distribution")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	_, err := png.Decode(bytes.NewReader(body))
	assert.NoError(t, err)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/export.xlsx?kind=class-share")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "titanic-class-share.xlsx")

	x, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer x.Close()
	rows, err := x.GetRows("View")
	require.NoError(t, err)
	assert.Len(t, rows, 7)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.get(t, "/api/chart")
	_, body := f.get(t, "/metrics")
	assert.Contains(t, string(body), "titanic_http_requests_total")
	assert.Contains(t, string(body), `route="/api/chart"`)
	assert.Contains(t, string(body), "titanic_charts_computed_total")
}

func TestNoDataset(t *testing.T) {
	cfg, _ := config.Default()
	reg := prometheus.NewRegistry()
	s := NewServer(dataset.NewHolder(nil), cfg, storage.NewWriterLogger(&bytes.Buffer{}), metrics.New(reg), reg)

	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chart", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestLogsStream(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.srv.URL+"/logs", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := make(chan string, 1)
	go func() {
		r := bufio.NewReader(resp.Body)
		line, _ := r.ReadString('\n')
		lines <- line
	}()

	// 订阅在响应头发出前完成
	f.logger.Info("数据集已重新加载")

	select {
	case line := <-lines:
		assert.True(t, strings.HasSuffix(strings.TrimSpace(line), "INFO: 数据集已重新加载"), line)
	case <-ctx.Done():
		t.Fatal("no log line received")
	}
}
