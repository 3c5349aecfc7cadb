package entityrpc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hanpama/fedgraph/internal/value"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// BackendFunc loads one entity. It returns nil when the entity does not exist;
// any other result is encoded as a JSON object.
type BackendFunc func(ctx context.Context, typeName string, representation value.Value) (any, error)

// RegisterBackend serves the contract on s with fn. It is the Go side of an
// entity backend and is mostly useful for tests and small services.
func RegisterBackend(s grpc.ServiceRegistrar, c *Contract, fn BackendFunc) {
	svc := c.file.Services().ByName(serviceName)
	desc := &grpc.ServiceDesc{
		ServiceName: string(svc.FullName()),
		HandlerType: (*any)(nil),
		Metadata:    c.file.Path(),
	}
	methods := svc.Methods()
	for i := 0; i < methods.Len(); i++ {
		md := methods.Get(i)
		fullMethod := fmt.Sprintf("/%s/%s", svc.FullName(), md.Name())
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: string(md.Name()),
			Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
				req := dynamicpb.NewMessage(md.Input())
				if err := dec(req); err != nil {
					return nil, err
				}
				handle := func(ctx context.Context, in any) (any, error) {
					return serveEntity(ctx, md, in.(*dynamicpb.Message), fn)
				}
				if interceptor == nil {
					return handle(ctx, req)
				}
				return interceptor(ctx, req, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handle)
			},
		})
	}
	s.RegisterService(desc, fn)
}

func serveEntity(ctx context.Context, md protoreflect.MethodDescriptor, req *dynamicpb.Message, fn BackendFunc) (*dynamicpb.Message, error) {
	fields := md.Input().Fields()
	typeName := req.Get(fields.ByName(typenameField)).String()
	rep, err := value.ParseJSON(req.Get(fields.ByName(representationField)).Bytes())
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "representation: %v", err)
	}

	entity, err := fn(ctx, typeName, rep)
	if err != nil {
		if _, ok := status.FromError(err); ok {
			return nil, err
		}
		return nil, status.Error(codes.Internal, err.Error())
	}

	resp := dynamicpb.NewMessage(md.Output())
	if entity == nil {
		return resp, nil
	}
	var payload []byte
	if v, ok := entity.(value.Value); ok {
		payload, err = v.MarshalJSON()
	} else {
		payload, err = json.Marshal(entity)
	}
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode entity: %v", err)
	}
	resp.Set(md.Output().Fields().ByName(entityField), protoreflect.ValueOfBytes(payload))
	return resp, nil
}
