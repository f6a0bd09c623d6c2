package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	loggerpkg "Attest-Resolver/pkg/logger"
)

// ProofHeader 允许调用方通过请求头传递 JSON 编码的凭证列表。
const ProofHeader = "X-Resolver-Proofs"

// MiddlewareConfig 配置凭证中间件的行为。
type MiddlewareConfig struct {
	// AuditEvent 指定记录审计日志时使用的事件名称。
	AuditEvent string
	// Audit 覆盖默认的审计日志记录器。
	Audit *slog.Logger
}

// Middleware 解析请求头中的凭证并写入上下文，同时为每个请求记录审计日志。
// 凭证的真正校验发生在解析器调用内部。
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := cfg.Audit
			if logger == nil {
				logger = loggerpkg.Audit()
			}

			ctx := r.Context()
			var proofs Proofs
			if raw := r.Header.Get(ProofHeader); raw != "" {
				if err := json.Unmarshal([]byte(raw), &proofs); err != nil {
					status := http.StatusBadRequest
					http.Error(w, "凭证格式错误", status)
					logger.Warn("malformed_proofs",
						"path", r.URL.Path,
						"method", r.Method,
						"status", status,
						"error", err.Error(),
					)
					return
				}
				ctx = WithProofs(ctx, proofs)
			}

			// 记录审计日志。
			start := time.Now()
			aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(aw, r.WithContext(ctx))
			event := cfg.AuditEvent
			if event == "" {
				event = r.URL.Path
			}
			signers := make([]string, 0, len(proofs))
			for _, addr := range proofs.Signers() {
				signers = append(signers, addr.Hex())
			}
			logger.Info("api_request",
				"event", event,
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"signers", signers,
			)
		})
	}
}

// auditWriter 包装 http.ResponseWriter 以捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

// WriteHeader 捕获响应状态码并调用底层的 WriteHeader 方法。
func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
