package rpcfacade

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/yutiansut/bastionlab/internal/errs"
	"github.com/yutiansut/bastionlab/internal/observability"
	"github.com/yutiansut/bastionlab/internal/token"
)

type identityKey struct{}

// IdentityFromContext recovers the caller's verified token.Identity, or
// the empty Identity if token checking is disabled or absent (spec.md
// §4.E's pass-through case).
func IdentityFromContext(ctx context.Context) token.Identity {
	id, _ := ctx.Value(identityKey{}).(token.Identity)
	return id
}

func headerValue(ctx context.Context, name string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(name)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// TokenUnaryInterceptor verifies the accesstoken header (spec.md §4.E) on
// every unary RPC except GetChallenge, which is explicitly unauthenticated.
func TokenUnaryInterceptor(log *observability.Logger, metrics *observability.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if info.FullMethod == "/bastionlab.DataPlane/GetChallenge" {
			return handler(ctx, req)
		}
		id, err := token.Verify(headerValue(ctx, token.HeaderName))
		if err != nil {
			metrics.TokenVerifications.WithLabelValues("denied").Inc()
			log.WithMethod(info.FullMethod).WarnErr(err, "token verification failed")
			return nil, toStatus(err)
		}
		metrics.TokenVerifications.WithLabelValues("ok").Inc()
		return handler(context.WithValue(ctx, identityKey{}, id), req)
	}
}

// TokenStreamInterceptor is TokenUnaryInterceptor's streaming counterpart,
// used for SendDataFrame and FetchDataFrame.
func TokenStreamInterceptor(log *observability.Logger, metrics *observability.Metrics) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		id, err := token.Verify(headerValue(ss.Context(), token.HeaderName))
		if err != nil {
			metrics.TokenVerifications.WithLabelValues("denied").Inc()
			log.WithMethod(info.FullMethod).WarnErr(err, "token verification failed")
			return toStatus(err)
		}
		metrics.TokenVerifications.WithLabelValues("ok").Inc()
		return handler(srv, &identityStream{ServerStream: ss, identity: id})
	}
}

// MetricsUnaryInterceptor records request count (by method and resulting
// status code) and latency for every unary RPC.
func MetricsUnaryInterceptor(metrics *observability.Metrics) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		metrics.RPCDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		metrics.RPCRequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return resp, err
	}
}

// MetricsStreamInterceptor is MetricsUnaryInterceptor's streaming
// counterpart, used for SendDataFrame and FetchDataFrame.
func MetricsStreamInterceptor(metrics *observability.Metrics) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := handler(srv, ss)
		metrics.RPCDuration.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
		metrics.RPCRequestsTotal.WithLabelValues(info.FullMethod, status.Code(err).String()).Inc()
		return err
	}
}

type identityStream struct {
	grpc.ServerStream
	identity token.Identity
}

func (s *identityStream) Context() context.Context {
	return context.WithValue(s.ServerStream.Context(), identityKey{}, s.identity)
}

// RecoveryUnaryInterceptor turns a panic inside a handler into an
// Internal status instead of crashing the process (spec.md §7's
// catch-all, per SPEC_FULL.md's error-handling section).
func RecoveryUnaryInterceptor(log *observability.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.WithMethod(info.FullMethod).Error(nil, "panic in unary handler")
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// RecoveryStreamInterceptor is RecoveryUnaryInterceptor's streaming
// counterpart.
func RecoveryStreamInterceptor(log *observability.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.WithMethod(info.FullMethod).Error(nil, "panic in stream handler")
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()
		return handler(srv, ss)
	}
}

// toStatus maps an internal errs.Kind onto the gRPC status code spec.md
// §7 assigns it, the single central translation SPEC_FULL.md's
// error-handling section calls for.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch errs.KindOf(err) {
	case errs.InvalidArgument, errs.InvalidPayload, errs.InvalidPolicy, errs.InvalidMetadata:
		code = codes.InvalidArgument
	case errs.NotFound:
		code = codes.NotFound
	case errs.PermissionDenied:
		code = codes.PermissionDenied
	case errs.Unauthenticated:
		code = codes.Unauthenticated
	default:
		code = codes.Internal
	}
	return status.Error(code, err.Error())
}
