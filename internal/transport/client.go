package transport

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/prompt-refiner/internal/orchestrator"
)

// #region client-struct
// Client calls a remote Refiner service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}
// #endregion client-struct

// #region constructor
// NewClient connects to the refiner gRPC server at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn wraps an existing connection. Close is a no-op for
// clients built this way.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region calls
func (c *Client) call(ctx context.Context, method string, in, out any) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := &structpb.Struct{}
	if err := c.cc.Invoke(ctx, FullMethod(method), req, resp); err != nil {
		return fmt.Errorf("%s rpc: %w", method, err)
	}
	return fromStruct(resp, out)
}

// Refine runs a refinement session on the server.
func (c *Client) Refine(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error) {
	var res orchestrator.Result
	if err := c.call(ctx, MethodRefine, req, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetSession fetches a session's records and metrics.
func (c *Client) GetSession(ctx context.Context, sessionID string) (SessionDetail, error) {
	var out SessionDetail
	err := c.call(ctx, MethodGetSession, SessionQuery{SessionID: sessionID}, &out)
	return out, err
}

// ListSessions lists recent sessions.
func (c *Client) ListSessions(ctx context.Context, limit int) (SessionList, error) {
	var out SessionList
	err := c.call(ctx, MethodListSessions, ListQuery{Limit: limit}, &out)
	return out, err
}

// DeleteSession removes a session and returns the number of records deleted.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	var out DeleteResult
	if err := c.call(ctx, MethodDeleteSession, SessionQuery{SessionID: sessionID}, &out); err != nil {
		return 0, err
	}
	return out.Deleted, nil
}

// ListWeights lists feature weights; limit > 0 returns the most updated.
func (c *Client) ListWeights(ctx context.Context, limit int) (WeightList, error) {
	var out WeightList
	err := c.call(ctx, MethodListWeights, ListQuery{Limit: limit}, &out)
	return out, err
}

// MetricsSummary returns per-method accuracy aggregates.
func (c *Client) MetricsSummary(ctx context.Context) (MethodList, error) {
	var out MethodList
	err := c.call(ctx, MethodMetricsSummary, struct{}{}, &out)
	return out, err
}
// #endregion calls
