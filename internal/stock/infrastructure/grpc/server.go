package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"

	"github.com/galleria/storefront/internal/stock/application"
	"github.com/galleria/storefront/internal/stock/domain"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Server struct {
	log *slog.Logger
	svc *application.Service
}

func NewServer(log *slog.Logger, svc *application.Service) *Server {
	return &Server{log: log, svc: svc}
}

func (s *Server) GetStock(ctx context.Context, req *GetStockRequest) (*GetStockResponse, error) {
	inStock, err := s.svc.GetStock(ctx, req.ProductID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetStockResponse{ProductID: req.ProductID, InStock: inStock}, nil
}

func (s *Server) SetStock(ctx context.Context, req *SetStockRequest) (*SetStockResponse, error) {
	res, err := s.svc.Update(ctx, req.ProductIDs, req.InStock)
	if err != nil {
		s.log.Error("grpc set stock", "err", err)
		return nil, toStatus(err)
	}
	return &SetStockResponse{Updated: int32(res.Updated), Skipped: res.Skipped}, nil
}

func toStatus(err error) error {
	if errors.Is(err, domain.ErrInvalidProductID) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return status.Error(codes.Unavailable, err.Error())
}

func NewGRPCServer(srv *Server) *grpc.Server {
	gs := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	RegisterStockServiceServer(gs, srv)
	return gs
}

// Run listens on addr and serves in the background. Stop the returned server
// with GracefulStop.
func Run(addr string, srv *Server) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	gs := NewGRPCServer(srv)
	go func() {
		if err := gs.Serve(lis); err != nil {
			srv.log.Error("grpc serve", "err", err)
		}
	}()
	return gs, nil
}
