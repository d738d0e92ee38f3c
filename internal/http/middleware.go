package http

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type contextKey string

const clientIPContextKey contextKey = "client_ip"

// MaxBodyBytes caps request bodies accepted by the API.
const MaxBodyBytes = 1 << 20

// ExtractClientIP returns the first X-Forwarded-For hop, else X-Real-IP,
// else the host part of RemoteAddr. The server is expected to sit behind a
// proxy that overwrites these headers.
func ExtractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// ClientIPFromContext returns the address stored by ClientIPMiddleware, or
// "" outside it.
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey).(string)
	return ip
}

// ClientIPMiddleware stores the client IP in the request context so request
// logs and rate decisions can use it.
func ClientIPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ExtractClientIP(r)
			ctx := context.WithValue(r.Context(), clientIPContextKey, ip)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLogger attaches a request scoped copy of logger to the context and
// logs every completed request. It must run inside ClientIPMiddleware.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()

			ctx := logger.With().
				Str("client_ip", ClientIPFromContext(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Logger().WithContext(r.Context())

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r.WithContext(ctx))

			evt := zerolog.Ctx(ctx).Info()
			if sw.status >= http.StatusInternalServerError {
				evt = zerolog.Ctx(ctx).Error()
			}
			evt.Int("status", sw.status).
				Dur("duration", time.Since(started)).
				Msg("http request")
		})
	}
}

// MaxBody limits request bodies to n bytes.
func MaxBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, n)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Chain applies middleware so the first one listed is the outermost.
func Chain(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (s *statusWriter) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// Hijack supports websocket upgrades through the logger.
func (s *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
