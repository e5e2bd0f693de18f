package grpc

import (
	"context"
	"path"
	"runtime/debug"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/smartbasket/smartbasket-backend/internal/metrics"
	"github.com/smartbasket/smartbasket-backend/pkg/logger"
)

// RecoveryInterceptor turns a panicking handler into an Internal error
func RecoveryInterceptor(log *logger.Log) grpc.UnaryServerInterceptor {
	entry := log.WithComponent("grpc")
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				entry.WithFields(logger.Fields{
					"method": info.FullMethod,
					"panic":  r,
					"stack":  string(debug.Stack()),
				}).Error("Handler panicked")
				resp = nil
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs every call with its status code and duration.
// Server-side failures log at error level, client mistakes at warn.
func LoggingInterceptor(log *logger.Log) grpc.UnaryServerInterceptor {
	entry := log.WithComponent("grpc")
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err)
		e := entry.WithFields(logger.Fields{
			"method": info.FullMethod,
			"code":   code.String(),
		}).WithDuration(time.Since(start))

		switch code {
		case codes.OK:
			e.Info("Request handled")
		case codes.Internal, codes.Unknown, codes.DataLoss, codes.Unavailable:
			e.WithError(err).Error("Request failed")
		default:
			e.WithError(err).Warn("Request rejected")
		}
		return resp, err
	}
}

// MetricsInterceptor counts calls per method and status code and observes their latency
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		metrics.RecordGRPCRequest(path.Base(info.FullMethod), status.Code(err).String(), time.Since(start))
		return resp, err
	}
}
