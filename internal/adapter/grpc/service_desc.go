package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "smartbasket.v1.BasketService"

// Every method takes and returns a google.protobuf.Struct, so the service
// needs no generated message types.
const (
	MethodCompareBasket    = "CompareBasket"
	MethodRecordPrice      = "RecordPrice"
	MethodBatchRecordPrice = "BatchRecordPrice"
	MethodGetPriceHistory  = "GetPriceHistory"
	MethodCreateOffering   = "CreateOffering"
	MethodDeleteOffering   = "DeleteOffering"
	MethodGetOffering      = "GetOffering"

	MethodListOfferingsByMarket        = "ListOfferingsByMarket"
	MethodListOfferingsByReferenceItem = "ListOfferingsByReferenceItem"
)

// BasketServiceServer is the server API for the basket service
type BasketServiceServer interface {
	CompareBasket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordPrice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BatchRecordPrice(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPriceHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateOffering(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteOffering(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetOffering(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOfferingsByMarket(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOfferingsByReferenceItem(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(BasketServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// BasketServiceDesc describes the service for grpc.Server.RegisterService
var BasketServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BasketServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodCompareBasket, Handler: unaryHandler(MethodCompareBasket, BasketServiceServer.CompareBasket)},
		{MethodName: MethodRecordPrice, Handler: unaryHandler(MethodRecordPrice, BasketServiceServer.RecordPrice)},
		{MethodName: MethodBatchRecordPrice, Handler: unaryHandler(MethodBatchRecordPrice, BasketServiceServer.BatchRecordPrice)},
		{MethodName: MethodGetPriceHistory, Handler: unaryHandler(MethodGetPriceHistory, BasketServiceServer.GetPriceHistory)},
		{MethodName: MethodCreateOffering, Handler: unaryHandler(MethodCreateOffering, BasketServiceServer.CreateOffering)},
		{MethodName: MethodDeleteOffering, Handler: unaryHandler(MethodDeleteOffering, BasketServiceServer.DeleteOffering)},
		{MethodName: MethodGetOffering, Handler: unaryHandler(MethodGetOffering, BasketServiceServer.GetOffering)},
		{MethodName: MethodListOfferingsByMarket, Handler: unaryHandler(MethodListOfferingsByMarket, BasketServiceServer.ListOfferingsByMarket)},
		{MethodName: MethodListOfferingsByReferenceItem, Handler: unaryHandler(MethodListOfferingsByReferenceItem, BasketServiceServer.ListOfferingsByReferenceItem)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "smartbasket/v1/basket.proto",
}

// RegisterBasketServiceServer registers srv with s
func RegisterBasketServiceServer(s grpc.ServiceRegistrar, srv BasketServiceServer) {
	s.RegisterService(&BasketServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

func unaryHandler(method string, call unaryMethod) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BasketServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod(method),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(BasketServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// BasketServiceClient calls the basket service over a client connection
type BasketServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewBasketServiceClient creates a client on cc
func NewBasketServiceClient(cc grpc.ClientConnInterface) *BasketServiceClient {
	return &BasketServiceClient{cc: cc}
}

// Call invokes method with in and returns the decoded response
func (c *BasketServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
