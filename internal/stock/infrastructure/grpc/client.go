package grpc

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client lets processes other than the API write stock through its owner.
type Client struct {
	log  *slog.Logger
	conn *grpc.ClientConn
}

func NewClient(log *slog.Logger, addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &Client{log: log, conn: conn}, nil
}

func (c *Client) SetStock(ctx context.Context, productIDs []string, inStock bool) (int, error) {
	out := new(SetStockResponse)
	err := c.conn.Invoke(ctx, "/"+serviceName+"/SetStock", &SetStockRequest{ProductIDs: productIDs, InStock: inStock}, out)
	if err != nil {
		return 0, err
	}
	if len(out.Skipped) > 0 {
		c.log.Warn("stock service skipped product ids", "count", len(out.Skipped))
	}
	return int(out.Updated), nil
}

func (c *Client) GetStock(ctx context.Context, productID string) (bool, error) {
	out := new(GetStockResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/GetStock", &GetStockRequest{ProductID: productID}, out); err != nil {
		return false, err
	}
	return out.InStock, nil
}

func (c *Client) Close() error { return c.conn.Close() }
