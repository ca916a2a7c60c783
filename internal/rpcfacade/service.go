package rpcfacade

import (
	"context"

	"google.golang.org/grpc"
)

// DataPlaneServer is the interface cmd/server/main.go implements and
// registers, the hand-written equivalent of a protoc-gen-go-grpc
// "<Service>Server" interface.
type DataPlaneServer interface {
	SendDataFrame(DataPlane_SendDataFrameServer) error
	RunQuery(context.Context, *QueryRequest) (*ReferenceResponse, error)
	FetchDataFrame(*ReferenceRequest, DataPlane_FetchDataFrameServer) error
	GetChallenge(context.Context, *Empty) (*ChallengeResponse, error)
}

// DataPlane_SendDataFrameServer is the server-side handle for the
// client-streaming SendDataFrame RPC.
type DataPlane_SendDataFrameServer interface {
	grpc.ServerStream
	Recv() (*Chunk, error)
	SendAndClose(*ReferenceResponse) error
}

type dataPlaneSendDataFrameServer struct {
	grpc.ServerStream
}

func (x *dataPlaneSendDataFrameServer) Recv() (*Chunk, error) {
	m := new(Chunk)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *dataPlaneSendDataFrameServer) SendAndClose(m *ReferenceResponse) error {
	return x.ServerStream.SendMsg(m)
}

// DataPlane_FetchDataFrameServer is the server-side handle for the
// server-streaming FetchDataFrame RPC.
type DataPlane_FetchDataFrameServer interface {
	grpc.ServerStream
	Send(*FetchChunk) error
}

type dataPlaneFetchDataFrameServer struct {
	grpc.ServerStream
}

func (x *dataPlaneFetchDataFrameServer) Send(m *FetchChunk) error {
	return x.ServerStream.SendMsg(m)
}

func _DataPlane_SendDataFrame_Handler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(DataPlaneServer).SendDataFrame(&dataPlaneSendDataFrameServer{stream})
}

func _DataPlane_FetchDataFrame_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(ReferenceRequest)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(DataPlaneServer).FetchDataFrame(m, &dataPlaneFetchDataFrameServer{stream})
}

func _DataPlane_RunQuery_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(QueryRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DataPlaneServer).RunQuery(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/bastionlab.DataPlane/RunQuery"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DataPlaneServer).RunQuery(ctx, req.(*QueryRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _DataPlane_GetChallenge_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DataPlaneServer).GetChallenge(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/bastionlab.DataPlane/GetChallenge"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DataPlaneServer).GetChallenge(ctx, req.(*Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// DataPlane_ServiceDesc is the grpc.ServiceDesc a generated _grpc.pb.go
// would define, assembled by hand per this package's doc comment.
var DataPlane_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "bastionlab.DataPlane",
	HandlerType: (*DataPlaneServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "RunQuery", Handler: _DataPlane_RunQuery_Handler},
		{MethodName: "GetChallenge", Handler: _DataPlane_GetChallenge_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "SendDataFrame", Handler: _DataPlane_SendDataFrame_Handler, ClientStreams: true},
		{StreamName: "FetchDataFrame", Handler: _DataPlane_FetchDataFrame_Handler, ServerStreams: true},
	},
	Metadata: "bastionlab.proto",
}

// RegisterDataPlaneServer registers srv on s the way generated code would.
func RegisterDataPlaneServer(s grpc.ServiceRegistrar, srv DataPlaneServer) {
	s.RegisterService(&DataPlane_ServiceDesc, srv)
}
