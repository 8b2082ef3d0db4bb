package rpcapi

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/sumitkumar2005/xeno-crm/internal/auth"
	"github.com/sumitkumar2005/xeno-crm/internal/logger"
	"github.com/sumitkumar2005/xeno-crm/internal/observability"
)

var tracer = otel.Tracer("xeno-crm/rpcapi")

// RequestLoggerInterceptor extracts or generates a request id, installs a
// request-scoped logger in the context and logs each completed call.
func RequestLoggerInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		// 1. Resolve request id (metadata keys are lowercase)
		reqID := firstMetadata(ctx, "x-request-id")
		if reqID == "" {
			reqID = uuid.NewString()
		}

		// 2. Request-scoped logger
		rpcLogger := base.With(
			slog.String("request_id", reqID),
			slog.String("rpc_method", info.FullMethod),
		)
		newCtx := logger.WithContext(ctx, rpcLogger)

		// 3. Handle
		resp, err := handler(newCtx, req)

		// 4. Log outcome. Client-side codes stay at Info.
		code := status.Code(err)
		level := slog.LevelInfo
		switch code {
		case codes.Internal, codes.Unavailable, codes.DataLoss, codes.Unknown:
			level = slog.LevelError
		case codes.DeadlineExceeded, codes.Unimplemented:
			level = slog.LevelWarn
		}

		rpcLogger.Log(newCtx, level, "grpc request completed",
			slog.String("code", code.String()),
			slog.Duration("duration", time.Since(start)),
			slog.String("peer_addr", peerAddr(ctx)),
		)
		return resp, err
	}
}

// ObservabilityInterceptor records the RPC metrics and a server span per call.
func ObservabilityInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		ctx, span := tracer.Start(ctx, strings.TrimPrefix(info.FullMethod, "/"),
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("rpc.system", "grpc")),
		)
		defer span.End()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		observability.RPCTotal.WithLabelValues(info.FullMethod, code.String()).Inc()
		observability.RPCDuration.WithLabelValues(info.FullMethod, code.String()).Observe(time.Since(start).Seconds())

		span.SetAttributes(attribute.String("rpc.grpc.status_code", code.String()))
		if err != nil {
			span.SetStatus(otelcodes.Error, code.String())
		}
		return resp, err
	}
}

// AuthInterceptor requires an operator bearer token in the "authorization"
// metadata for the segment service. Other services (health, reflection) pass through.
func AuthInterceptor(v *auth.Verifier) grpc.UnaryServerInterceptor {
	prefix := "/" + ServiceName + "/"
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}

		op, err := v.VerifyHeader(firstMetadata(ctx, "authorization"))
		if err != nil {
			logger.FromContext(ctx).Warn("rejected unauthenticated call", slog.String("error", err.Error()))
			return nil, status.Error(codes.Unauthenticated, "valid bearer token required")
		}

		ctx = auth.WithOperator(ctx, op)
		ctx = logger.With(ctx, slog.String("operator_id", op.ID))
		return handler(ctx, req)
	}
}

func firstMetadata(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(key); len(vals) > 0 {
			return vals[0]
		}
	}
	return ""
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok {
		return p.Addr.String()
	}
	return "unknown"
}
