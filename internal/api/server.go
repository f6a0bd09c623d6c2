package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"Attest-Resolver/internal/auth"
	"Attest-Resolver/internal/observability/metrics"
	"Attest-Resolver/internal/resolver"
	"Attest-Resolver/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Server 负责暴露解析器的 REST 接口。
type Server struct {
	addr     string
	registry *resolver.Registry
	logger   *slog.Logger
	audit    *slog.Logger
}

// Option 定义 Server 的可选配置。
type Option func(*Server)

// WithLogger 替换默认的运行日志记录器。
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithAuditLogger 替换默认的审计日志记录器。
func WithAuditLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.audit = l
		}
	}
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, registry *resolver.Registry, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		registry: registry,
		logger:   logger.Named("api"),
		audit:    logger.Audit(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Handler 返回挂载了全部路由和凭证中间件的 http.Handler。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.route(mux, "GET /api/v1/resolvers", s.handleList)
	s.route(mux, "GET /api/v1/resolvers/{name}/metadata", s.handleMetadata)
	s.route(mux, "POST /api/v1/resolvers/{name}/onattest", s.handleOnAttest)
	s.route(mux, "POST /api/v1/resolvers/{name}/onrevoke", s.handleOnRevoke)
	s.route(mux, "POST /api/v1/resolvers/{name}/onresolve", s.handleOnResolve)
	s.route(mux, "POST /api/v1/resolvers/{name}/admin/{op}", s.handleAdmin)
	s.route(mux, "GET /api/v1/resolvers/{name}/state", s.handleState)
	s.route(mux, "GET /api/v1/resolvers/{name}/accounts/{address}", s.handleAccount)

	return auth.Middleware(auth.MiddlewareConfig{Audit: s.audit})(mux)
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
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info("api server listening", slog.String("address", s.addr))

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

// route 注册处理器并记录请求指标。
func (s *Server) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		r.Body = http.MaxBytesReader(sw, r.Body, maxBodyBytes)
		h(sw, r)
		metrics.ObserveHTTPRequest(pattern, r.Method, sw.status, time.Since(start))
	})
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

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
