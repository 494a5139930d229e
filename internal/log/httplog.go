package log

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID returns the request id assigned by AccessLog, or "" outside a request.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// AccessLog returns middleware that tags each request with an id, reusing one sent by
// the client, and writes one access log entry per request to logger.
func AccessLog(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	format := func(_ io.Writer, p handlers.LogFormatterParams) {
		logger.Infow("http request",
			"request_id", RequestID(p.Request.Context()),
			"method", p.Request.Method,
			"path", p.URL.Path,
			"status", p.StatusCode,
			"size", p.Size,
			"duration_ms", time.Since(p.TimeStamp).Milliseconds(),
			"remote_addr", p.Request.RemoteAddr,
		)
	}

	return func(next http.Handler) http.Handler {
		logged := handlers.CustomLoggingHandler(io.Discard, next, format)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			id := req.Header.Get(RequestIDHeader)
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)
			logged.ServeHTTP(w, req.WithContext(context.WithValue(req.Context(), requestIDKey{}, id)))
		})
	}
}
