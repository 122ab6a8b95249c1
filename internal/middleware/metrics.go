package middleware

import (
	"context"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/workaholic/internal/metrics"
)

// MetricsInterceptor records request counts and latency for handled RPCs.
type MetricsInterceptor struct{}

var _ connect.Interceptor = MetricsInterceptor{}

// WrapUnary implements connect.Interceptor.
func (MetricsInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if req.Spec().IsClient {
			return next(ctx, req)
		}
		start := time.Now()
		resp, err := next(ctx, req)
		metrics.ObserveRPC(req.Spec().Procedure, resultCode(err), time.Since(start))
		return resp, err
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (MetricsInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (MetricsInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		start := time.Now()
		err := next(ctx, conn)
		metrics.ObserveRPC(conn.Spec().Procedure, resultCode(err), time.Since(start))
		return err
	}
}

func resultCode(err error) string {
	if err == nil {
		return "ok"
	}
	return connect.CodeOf(err).String()
}
