// server.go
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TitanicExplorer/src/config"
	"TitanicExplorer/src/dataset"
	"TitanicExplorer/src/metrics"
	"TitanicExplorer/src/storage"
)

// RequestIDHeader 请求ID响应头
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID 从上下文中取出请求ID
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Server 面板 HTTP 服务
type Server struct {
	holder   *dataset.Holder
	cfg      *config.Config
	logger   *storage.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

// NewServer 创建服务，gatherer 用于 /metrics 输出
func NewServer(holder *dataset.Holder, cfg *config.Config, logger *storage.Logger, m *metrics.Metrics, gatherer prometheus.Gatherer) *Server {
	return &Server{holder: holder, cfg: cfg, logger: logger, metrics: m, gatherer: gatherer}
}

// Routes 返回注册了全部路由的 chi 路由器
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.observe)

	r.Get("/", s.handleDashboard)
	r.Get("/chart.html", s.handleChartHTML)
	r.Get("/chart.png", s.handleChartPNG)
	r.Get("/export.xlsx", s.handleExport)

	r.Route("/api", func(r chi.Router) {
		r.Get("/bounds", s.handleBounds)
		r.Get("/kinds", s.handleKinds)
		r.Get("/view", s.handleView)
		r.Get("/chart", s.handleChart)
	})

	r.Get("/logs", s.handleLogs)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// NewHTTPServer 用默认超时创建 http.Server
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// observe 记录访问日志和请求指标
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		if s.metrics != nil {
			s.metrics.ObserveRequest(route, status, start)
		}
		if route == "/logs" || route == "/metrics" {
			return
		}
		s.logger.Debug(fmt.Sprintf("%s %s %d %v id=%s", r.Method, r.URL.RequestURI(), status, time.Since(start), RequestID(r.Context())))
	})
}
