// Package dashboard serves the stock room web pages and the JSON API.
package dashboard

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockroom/internal/adapters/exports"
	"stockroom/internal/core"
)

//go:embed templates/*
var templateFS embed.FS

var pageNames = []string{"index.gohtml", "categories.gohtml", "history.gohtml"}

// Server wires the inventory service into HTTP handlers.
type Server struct {
	svc     *core.Service
	exports exports.Scheduler
	metrics http.Handler
	logger  core.Logger
	pages   map[string]*template.Template
}

// Option customises a Server.
type Option func(*Server)

// WithExports enables the history export endpoints.
func WithExports(s exports.Scheduler) Option {
	return func(srv *Server) { srv.exports = s }
}

// WithMetrics serves g on /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(srv *Server) {
		if g != nil {
			srv.metrics = promhttp.HandlerFor(g, promhttp.HandlerOpts{})
		}
	}
}

// WithLogger installs the request logger.
func WithLogger(l core.Logger) Option {
	return func(srv *Server) {
		if l != nil {
			srv.logger = l
		}
	}
}

// New parses the page templates and returns a server for svc.
func New(svc *core.Service, opts ...Option) (*Server, error) {
	srv := &Server{
		svc:    svc,
		logger: core.NoopLogger(),
		pages:  make(map[string]*template.Template, len(pageNames)),
	}
	for _, opt := range opts {
		opt(srv)
	}
	funcs := template.FuncMap{"signed": signed}
	for _, name := range pageNames {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.gohtml", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		srv.pages[name] = tmpl
	}
	return srv, nil
}

// Handler returns the mux with every page, form and API route.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /categories", s.handleCategoriesPage)
	mux.HandleFunc("GET /history", s.handleHistoryPage)
	mux.HandleFunc("GET /history.csv", s.handleHistoryCSV)
	mux.HandleFunc("POST /products", s.submitProduct)
	mux.HandleFunc("POST /products/delete", s.submitDeleteProduct)
	mux.HandleFunc("POST /variants", s.submitVariant)
	mux.HandleFunc("POST /items/{id}/increment", s.submitAdjust(1))
	mux.HandleFunc("POST /items/{id}/decrement", s.submitAdjust(-1))
	mux.HandleFunc("POST /items/{id}/delete", s.submitDeleteVariant)
	mux.HandleFunc("POST /categories", s.submitCategory)
	mux.HandleFunc("POST /categories/delete", s.submitDeleteCategory)
	mux.HandleFunc("POST /history/exports", s.submitExport)
	mux.HandleFunc("GET /history/exports/{id}/download", s.handleExportDownload)

	mux.HandleFunc("GET /api/v1/items", s.apiItems)
	mux.HandleFunc("DELETE /api/v1/items/{id}", s.apiDeleteVariant)
	mux.HandleFunc("POST /api/v1/items/{id}/increment", s.apiAdjust(1))
	mux.HandleFunc("POST /api/v1/items/{id}/decrement", s.apiAdjust(-1))
	mux.HandleFunc("GET /api/v1/inventory", s.apiInventory)
	mux.HandleFunc("GET /api/v1/summary", s.apiSummary)
	mux.HandleFunc("GET /api/v1/products", s.apiProducts)
	mux.HandleFunc("POST /api/v1/products", s.apiCreateProduct)
	mux.HandleFunc("DELETE /api/v1/products/{name...}", s.apiDeleteProduct)
	mux.HandleFunc("POST /api/v1/variants", s.apiAddVariant)
	mux.HandleFunc("GET /api/v1/categories", s.apiCategories)
	mux.HandleFunc("POST /api/v1/categories", s.apiAddCategory)
	mux.HandleFunc("DELETE /api/v1/categories/{name...}", s.apiDeleteCategory)
	mux.HandleFunc("GET /api/v1/history", s.apiHistory)
	mux.HandleFunc("GET /api/v1/history.csv", s.handleHistoryCSV)
	mux.HandleFunc("GET /api/v1/history/exports", s.apiListExports)
	mux.HandleFunc("POST /api/v1/history/exports", s.apiCreateExport)
	mux.HandleFunc("GET /api/v1/history/exports/{id}", s.apiGetExport)
	mux.HandleFunc("GET /api/v1/history/exports/{id}/download", s.handleExportDownload)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	})
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}
	return s.logRequests(mux)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(started),
		)
	})
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, core.ValidationError{Field: "id", Message: "must be an integer"}
	}
	return id, nil
}

func signed(n int) string {
	if n > 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
