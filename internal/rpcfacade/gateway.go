package rpcfacade

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/yutiansut/bastionlab/internal/observability"
)

// StartAPIServers starts the gRPC server and its REST counterpart side
// by side, exactly the shape the teacher's daemon/api/server.StartAPIServers
// uses: one listener for gRPC, one http.Server for REST, composed behind
// a best-effort grpc-gateway mux that falls back to svc.RegisterHTTP when
// RegisterGateway fails, which it always does (see fallback.go).
func StartAPIServers(ctx context.Context, grpcAddr, restAddr string, svc *Service, log *observability.Logger, metrics *observability.Metrics) (grpcStop func(), restStop func(), err error) {
	grpcServer := grpc.NewServer(
		grpc.ChainUnaryInterceptor(RecoveryUnaryInterceptor(log), MetricsUnaryInterceptor(metrics), TokenUnaryInterceptor(log, metrics)),
		grpc.ChainStreamInterceptor(RecoveryStreamInterceptor(log), MetricsStreamInterceptor(metrics), TokenStreamInterceptor(log, metrics)),
	)
	RegisterDataPlaneServer(grpcServer, svc)

	l, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return nil, nil, err
	}
	go func() { _ = grpcServer.Serve(l) }()
	grpcStop = func() { grpcServer.GracefulStop(); _ = l.Close() }

	gwMux := http.NewServeMux()
	gw := runtime.NewServeMux(runtime.WithErrorHandler(JSONErrorHandler))
	dialOpts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if err := RegisterGateway(ctx, gw, grpcAddr, dialOpts); err == nil {
		gwMux.Handle("/", gw)
	} else {
		svc.RegisterHTTP(gwMux)
	}

	server := &http.Server{Addr: restAddr, Handler: gwMux}
	go func() { _ = server.ListenAndServe() }()
	restStop = func() { _ = server.Close() }

	return grpcStop, restStop, nil
}

// JSONErrorHandler converts a grpc-gateway error into the same JSON
// error shape writeDomainError produces for the native fallback path,
// so clients see one error contract regardless of which path served
// the request.
func JSONErrorHandler(ctx context.Context, mux *runtime.ServeMux, marshaler runtime.Marshaler, w http.ResponseWriter, r *http.Request, err error) {
	st, ok := status.FromError(err)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"code":"INTERNAL","message":"internal error"}`))
		return
	}
	httpStatus := runtime.HTTPStatusFromCode(st.Code())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	payload := map[string]string{"code": codeToString(st.Code()), "message": st.Message()}
	b, _ := json.Marshal(payload)
	_, _ = w.Write(b)
}

func codeToString(c codes.Code) string {
	switch c {
	case codes.InvalidArgument:
		return "INVALID_ARGUMENT"
	case codes.NotFound:
		return "NOT_FOUND"
	case codes.PermissionDenied:
		return "PERMISSION_DENIED"
	case codes.Unauthenticated:
		return "UNAUTHENTICATED"
	case codes.Unimplemented:
		return "UNIMPLEMENTED"
	case codes.Unavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}
