package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sumitkumar2005/xeno-crm/internal/auth"
	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/observability"
)

var tracer = otel.Tracer("xeno-crm/httpapi")

// unmatchedRoute labels requests that matched no route, keeping scanner
// traffic from creating a series per path.
const unmatchedRoute = "not_found"

// RequestLogger installs a request-scoped logger (carrying the request id)
// in the context and logs each completed request.
// Info for success, Warn for 4xx, Error for 5xx.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLog := base.With(slog.String("request_id", middleware.GetReqID(r.Context())))
			ctx := logger.WithContext(r.Context(), reqLog)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			level := slog.LevelInfo
			status := ww.Status()
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			reqLog.Log(ctx, level, "HTTP request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", status),
				slog.String("duration", time.Since(start).String()),
				slog.String("remote_ip", r.RemoteAddr),
			)
		})
	}
}

// Instrument records request metrics and a server span per request. The
// route label is the matched chi pattern, never the raw path.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ctx, span := tracer.Start(r.Context(), "http.request", trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := unmatchedRoute
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		code := strconv.Itoa(status)

		observability.HTTPReqTotal.WithLabelValues(r.Method, route, code).Inc()
		observability.HTTPReqDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())

		span.SetName(r.Method + " " + route)
		span.SetAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
			attribute.Int("http.response.status_code", status),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	})
}

// Authenticate rejects requests without a valid operator bearer token and
// stores the operator in the request context.
func Authenticate(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, err := v.VerifyHeader(r.Header.Get("Authorization"))
			if err != nil {
				msg := "Invalid or expired token"
				if errors.Is(err, auth.ErrMissingToken) {
					msg = "Missing or malformed Authorization header (expected 'Bearer <token>')"
				}
				logger.FromContext(r.Context()).Warn("rejected unauthenticated request", slog.String("error", err.Error()))
				writeError(w, r, http.StatusUnauthorized, codeUnauthorized, msg)
				return
			}

			ctx := auth.WithOperator(r.Context(), op)
			ctx = logger.With(ctx, slog.String("operator_id", op.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
