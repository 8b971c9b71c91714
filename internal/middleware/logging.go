package middleware

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AnshRaj112/storefront-backend/internal/apperr"
	"github.com/AnshRaj112/storefront-backend/pkg/clientip"
)

const RequestIDHeader = "X-Request-ID"

type requestIDKey struct{}

// RequestID tags each request with an id, reusing a well-formed incoming
// X-Request-ID header.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

// GetRequestID returns the id stored by RequestID, or "".
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestLogger writes one structured line per request. trustProxy selects
// X-Forwarded-For over the socket address for the logged client IP.
func RequestLogger(log *zap.Logger, trustProxy bool) func(http.Handler) http.Handler {
	clientIP := clientip.Resolver(trustProxy)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("request_id", GetRequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", LogPath(r)),
				zap.Int("status", status),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("ip", clientIP(r)),
			}
			switch {
			case status >= 500:
				log.Error("request", fields...)
			case status >= 400:
				log.Warn("request", fields...)
			default:
				log.Info("request", fields...)
			}
		})
	}
}

// Recoverer turns a handler panic into a 500 response and logs the stack.
func Recoverer(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic recovered",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("path", LogPath(r)),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				apperr.Write(w, apperr.Unexpected("Something went wrong", nil))
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// secretAfter names path segments whose following segment is a credential.
var secretAfter = map[string]struct{}{
	"resetPassword": {},
}

const redacted = "[redacted]"

// routePattern is the matched chi pattern, or "" before or without a match.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// LogPath is the request path as it may be written to logs: the matched
// route pattern, or the raw path with credential segments masked.
func LogPath(r *http.Request) string {
	if p := routePattern(r); p != "" {
		return p
	}
	return RedactPath(r.URL.Path)
}

// RedactPath masks the segment after every credential-bearing segment.
func RedactPath(path string) string {
	parts := strings.Split(path, "/")
	for i := 0; i < len(parts)-1; i++ {
		if _, ok := secretAfter[parts[i]]; ok && parts[i+1] != "" {
			parts[i+1] = redacted
			i++
		}
	}
	return strings.Join(parts, "/")
}
