package grpc

import (
	"context"

	"github.com/galleria/storefront/internal/stock/domain"
	"google.golang.org/grpc"
)

const serviceName = "storefront.stock.v1.StockService"

type GetStockRequest struct {
	ProductID string `json:"productId"`
}

type GetStockResponse struct {
	ProductID string `json:"productId"`
	InStock   bool   `json:"inStock"`
}

type SetStockRequest struct {
	ProductIDs []string `json:"productIds"`
	InStock    bool     `json:"inStock"`
}

type SetStockResponse struct {
	Updated int32         `json:"updated"`
	Skipped []domain.Skip `json:"skipped,omitempty"`
}

type StockServiceServer interface {
	GetStock(context.Context, *GetStockRequest) (*GetStockResponse, error)
	SetStock(context.Context, *SetStockRequest) (*SetStockResponse, error)
}

func RegisterStockServiceServer(s grpc.ServiceRegistrar, srv StockServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*StockServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStock", Handler: getStockHandler},
		{MethodName: "SetStock", Handler: setStockHandler},
	},
	Streams: []grpc.StreamDesc{},
}

func getStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StockServiceServer).GetStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/GetStock"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StockServiceServer).GetStock(ctx, req.(*GetStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func setStockHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SetStockRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(StockServiceServer).SetStock(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/SetStock"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(StockServiceServer).SetStock(ctx, req.(*SetStockRequest))
	}
	return interceptor(ctx, in, info, handler)
}
