package metrics

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// UnaryServerInterceptor returns a gRPC interceptor that records metrics for each request.
// NotFound is an ordinary outcome of a single-row lookup and is not counted as an error.
func UnaryServerInterceptor(collector *Collector, exporter *PrometheusExporter) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		method := info.FullMethod

		collector.RecordRequest(method)
		if exporter != nil {
			exporter.RecordRequest(method)
		}

		resp, err := handler(ctx, req)

		duration := time.Since(start).Seconds()
		collector.RecordDuration(method, duration)
		if exporter != nil {
			exporter.RecordDuration(method, duration)
		}

		if err != nil && status.Code(err) != codes.NotFound {
			collector.RecordError(method)
			if exporter != nil {
				exporter.RecordError(method)
			}
		}

		return resp, err
	}
}
