package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "shipdocs.v1.Paperwork"

// PaperworkServer is the gRPC surface. Every message is a google.protobuf.Struct carrying
// the JSON form of the domain records.
type PaperworkServer interface {
	ParseOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ParseEmail(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reconcile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ProcessPair(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitFolder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRuns(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExportRun(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(context.Context, *structpb.Struct) (*structpb.Struct, error)

func method(name string, pick func(PaperworkServer) unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			fn := pick(srv.(PaperworkServer))
			if interceptor == nil {
				return fn(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + name}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return fn(ctx, req.(*structpb.Struct))
			})
		},
	}
}

var paperworkServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PaperworkServer)(nil),
	Methods: []grpc.MethodDesc{
		method("ParseOrder", func(s PaperworkServer) unaryFunc { return s.ParseOrder }),
		method("ParseEmail", func(s PaperworkServer) unaryFunc { return s.ParseEmail }),
		method("Reconcile", func(s PaperworkServer) unaryFunc { return s.Reconcile }),
		method("ProcessPair", func(s PaperworkServer) unaryFunc { return s.ProcessPair }),
		method("SubmitFolder", func(s PaperworkServer) unaryFunc { return s.SubmitFolder }),
		method("GetRun", func(s PaperworkServer) unaryFunc { return s.GetRun }),
		method("ListRuns", func(s PaperworkServer) unaryFunc { return s.ListRuns }),
		method("ExportRun", func(s PaperworkServer) unaryFunc { return s.ExportRun }),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shipdocs/v1/paperwork.proto",
}

// RegisterPaperworkServer attaches srv to s.
func RegisterPaperworkServer(s grpc.ServiceRegistrar, srv PaperworkServer) {
	s.RegisterService(&paperworkServiceDesc, srv)
}

// PaperworkClient calls a remote Paperwork service.
type PaperworkClient struct {
	cc grpc.ClientConnInterface
}

func NewPaperworkClient(cc grpc.ClientConnInterface) *PaperworkClient {
	return &PaperworkClient{cc: cc}
}

// Call invokes method with a Struct request.
func (c *PaperworkClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
