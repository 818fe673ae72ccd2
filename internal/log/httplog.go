package log

import (
	"net/http"

	"github.com/felixge/httpsnoop"
	"go.uber.org/zap"
)

// RequestIDHeader carries the per-request identifier echoed in access logs.
const RequestIDHeader = "X-Request-ID"

// AccessLog wraps next and logs one line per request with its status, size
// and duration. Requests answered with 5xx are logged at error level.
func AccessLog(logger *zap.SugaredLogger, next http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)

		fields := []interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"duration_ms", m.Duration.Milliseconds(),
			"size", m.Written,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		}
		if id := w.Header().Get(RequestIDHeader); id != "" {
			fields = append(fields, "request_id", id)
		}

		if m.Code >= http.StatusInternalServerError {
			logger.Errorw("http request", fields...)
			return
		}
		logger.Infow("http request", fields...)
	})
}
