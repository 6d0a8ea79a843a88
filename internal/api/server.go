package api

import (
	"context"
	"encoding/json"
	stdErrors "errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/auth"
	xerrors "github.com/Streamweaver/CodebaseDocumentationCrew/internal/errors"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/observability/metrics"
	"github.com/Streamweaver/CodebaseDocumentationCrew/internal/run"
)

// Server 负责暴露 REST 接口，供外部提交与查询文档生成运行。
type Server struct {
	addr    string
	service *run.Service
	auth    *auth.Service
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, service *run.Service, authService *auth.Service) *Server {
	return &Server{addr: addr, service: service, auth: authService}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !stdErrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Handler 组装全部路由。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())

	api := http.NewServeMux()
	api.HandleFunc("/api/v1/runs", s.handleRuns)
	api.HandleFunc("/api/v1/runs/", s.handleRunDetail)
	api.HandleFunc("/api/v1/stats", s.handleStats)

	var apiHandler http.Handler = api
	if s.auth != nil {
		apiHandler = s.auth.Middleware(auth.MiddlewareConfig{AuditEvent: "doccrew_api"})(api)
	}
	mux.Handle("/api/v1/", observed("api", apiHandler))
	return mux
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitRun(w, r)
	case http.MethodGet:
		s.handleListRuns(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSubmitRun(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		http.Error(w, "运行服务未初始化", http.StatusServiceUnavailable)
		return
	}

	var req run.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "请求体解析失败", http.StatusBadRequest)
		return
	}

	submitted, err := s.service.Submit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(submitted)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		http.Error(w, "运行服务未初始化", http.StatusServiceUnavailable)
		return
	}

	opts := parseListOptions(r)
	runs, err := s.service.List(r.Context(), opts...)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(runs)
}

// handleRunDetail 处理 /api/v1/runs/{id} 的查询。
func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "运行服务未初始化", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if id == "" || strings.Contains(id, "/") {
		http.Error(w, "缺少运行 ID", http.StatusBadRequest)
		return
	}

	found, err := s.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(found)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "仅支持 GET", http.StatusMethodNotAllowed)
		return
	}
	if s.service == nil {
		http.Error(w, "运行服务未初始化", http.StatusServiceUnavailable)
		return
	}

	stats, err := s.service.Stats(r.Context(), parseListOptions(r)...)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(stats)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// parseListOptions 把查询参数转换成列表过滤条件。
func parseListOptions(r *http.Request) []run.ListOption {
	query := r.URL.Query()
	opts := make([]run.ListOption, 0, 4)

	if raw := query.Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, run.WithLimit(parsed))
		}
	}
	if raw := query.Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			opts = append(opts, run.WithOffset(parsed))
		}
	}
	if raw := query.Get("status"); raw != "" {
		statuses := make([]run.Status, 0, 4)
		for _, value := range strings.Split(raw, ",") {
			statuses = append(statuses, run.Status(strings.TrimSpace(value)))
		}
		opts = append(opts, run.WithStatuses(statuses...))
	}
	if raw := query.Get("q"); raw != "" {
		opts = append(opts, run.WithQuery(raw))
	}
	if raw := query.Get("since"); raw != "" {
		if ts, err := time.Parse(time.RFC3339, raw); err == nil {
			opts = append(opts, run.WithUpdatedSince(ts))
		}
	}
	if query.Get("order") == "asc" {
		opts = append(opts, run.WithSortOrder(run.SortByUpdatedAsc))
	}
	return opts
}

// writeError 把统一错误映射成 HTTP 状态码。
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case stdErrors.Is(err, run.ErrRunNotFound):
		status = http.StatusNotFound
	case stdErrors.Is(err, run.ErrRunConflict):
		status = http.StatusConflict
	default:
		switch xerrors.CodeOf(err) {
		case run.CodeRunValidation, xerrors.CodeInvalidArgument:
			status = http.StatusBadRequest
		case xerrors.CodeNotFound:
			status = http.StatusNotFound
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": err.Error(),
		"code":  string(xerrors.CodeOf(err)),
	})
}

// observed 包装处理器以采集请求指标。
func observed(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.ObserveHTTPRequest(name, r.Method, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
