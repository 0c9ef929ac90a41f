package grpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/galleria/storefront/internal/stock/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type memRepo struct {
	mu   sync.Mutex
	rows map[string]bool
	err  error
}

func (r *memRepo) SetMany(_ context.Context, ids []string, inStock bool, _ time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	for _, id := range ids {
		r.rows[id] = inStock
	}
	return len(ids), nil
}

func (r *memRepo) GetMany(_ context.Context, ids []string) (map[string]bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := map[string]bool{}
	for _, id := range ids {
		v, ok := r.rows[id]
		out[id] = !ok || v
	}
	return out, nil
}

func (r *memRepo) Seed(context.Context, []string, time.Time) (int, error) { return 0, nil }

func startServer(t *testing.T, repo *memRepo) *Client {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := application.NewService(log, repo)

	lis := bufconn.Listen(1 << 20)
	gs := NewGRPCServer(NewServer(log, svc))
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	client, err := NewClient(log, "passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestStockServiceRoundTrip(t *testing.T) {
	client := startServer(t, &memRepo{rows: map[string]bool{}})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	inStock, err := client.GetStock(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, inStock)

	n, err := client.SetStock(ctx, []string{"p1", "p2", "", "p1"}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	inStock, err = client.GetStock(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, inStock)
}

func TestStockServiceRejectsInvalidID(t *testing.T) {
	client := startServer(t, &memRepo{rows: map[string]bool{}})

	_, err := client.GetStock(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStockServiceStorageFailureIsUnavailable(t *testing.T) {
	client := startServer(t, &memRepo{rows: map[string]bool{}, err: errors.New("connection refused")})

	_, err := client.SetStock(context.Background(), []string{"p1"}, false)
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))

	_, err = client.GetStock(context.Background(), "p1")
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}
