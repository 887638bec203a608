package transport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/prompt-refiner/internal/logging"
	"github.com/danielpatrickdp/prompt-refiner/internal/orchestrator"
	"github.com/danielpatrickdp/prompt-refiner/internal/store"
	"github.com/danielpatrickdp/prompt-refiner/internal/weights"
)

// #region backends
// Refiner runs refinement sessions.
type Refiner interface {
	Refine(ctx context.Context, req orchestrator.Request) (*orchestrator.Result, error)
}

// SessionStore is the read side of the refinement history.
type SessionStore interface {
	SessionRecords(ctx context.Context, sessionID string) ([]store.RefinementRecord, error)
	SessionMetrics(ctx context.Context, sessionID string) (store.RegressionMetrics, error)
	ListSessions(ctx context.Context, limit int) ([]store.SessionSummary, error)
	DeleteSession(ctx context.Context, sessionID string) (int64, error)
	MetricsSummary(ctx context.Context) ([]store.MethodSummary, error)
}

// WeightLister reads the feature weight table.
type WeightLister interface {
	List(ctx context.Context) ([]weights.Stat, error)
	MostUpdated(ctx context.Context, limit int) ([]weights.Stat, error)
}
// #endregion backends

// #region messages
// SessionQuery selects a session.
type SessionQuery struct {
	SessionID string `json:"sessionId"`
}

// ListQuery bounds a listing. Zero means the server default.
type ListQuery struct {
	Limit int `json:"limit,omitempty"`
}

// SessionDetail is the GetSession response.
type SessionDetail struct {
	SessionID string                   `json:"sessionId"`
	Records   []store.RefinementRecord `json:"records"`
	Metrics   *store.RegressionMetrics `json:"metrics,omitempty"`
}

// SessionList is the ListSessions response.
type SessionList struct {
	Sessions []store.SessionSummary `json:"sessions"`
}

// DeleteResult is the DeleteSession response.
type DeleteResult struct {
	Deleted int64 `json:"deleted"`
}

// WeightList is the ListWeights response.
type WeightList struct {
	Weights []weights.Stat `json:"weights"`
}

// MethodList is the MetricsSummary response.
type MethodList struct {
	Methods []store.MethodSummary `json:"methods"`
}
// #endregion messages

// DefaultListLimit applies when a ListQuery carries no limit.
const DefaultListLimit = 20

// #region server
// Server implements RefinerServer over the orchestrator and the stores.
type Server struct {
	refiner  Refiner
	sessions SessionStore
	weights  WeightLister
	logger   logging.Logger
}

var _ RefinerServer = (*Server)(nil)

// NewServer wires the service backends. A nil logger disables logging.
func NewServer(r Refiner, sessions SessionStore, w WeightLister, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{refiner: r, sessions: sessions, weights: w, logger: logger}
}

// Refine runs one session. The request body is an orchestrator.Request.
func (s *Server) Refine(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req orchestrator.Request
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	res, err := s.refiner.Refine(ctx, req)
	if err != nil {
		return nil, err
	}
	return toStruct(res)
}

// GetSession returns a session's records and, when computed, its metrics.
func (s *Server) GetSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q SessionQuery
	if err := fromStruct(in, &q); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if q.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "sessionId is required")
	}
	recs, err := s.sessions.SessionRecords(ctx, q.SessionID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, status.Errorf(codes.NotFound, "session %s not found", q.SessionID)
	}
	out := SessionDetail{SessionID: q.SessionID, Records: recs}
	m, err := s.sessions.SessionMetrics(ctx, q.SessionID)
	switch {
	case err == nil:
		out.Metrics = &m
	case !errors.Is(err, sql.ErrNoRows):
		return nil, err
	}
	return toStruct(out)
}

// ListSessions returns the most recent sessions.
func (s *Server) ListSessions(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q ListQuery
	if err := fromStruct(in, &q); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	list, err := s.sessions.ListSessions(ctx, limitOr(q.Limit))
	if err != nil {
		return nil, err
	}
	return toStruct(SessionList{Sessions: list})
}

// DeleteSession removes a session's records and metrics.
func (s *Server) DeleteSession(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q SessionQuery
	if err := fromStruct(in, &q); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	if q.SessionID == "" {
		return nil, status.Error(codes.InvalidArgument, "sessionId is required")
	}
	n, err := s.sessions.DeleteSession(ctx, q.SessionID)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, status.Errorf(codes.NotFound, "session %s not found", q.SessionID)
	}
	return toStruct(DeleteResult{Deleted: n})
}

// ListWeights returns every weight row, or the most updated ones when a
// limit is given.
func (s *Server) ListWeights(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var q ListQuery
	if err := fromStruct(in, &q); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	var (
		list []weights.Stat
		err  error
	)
	if q.Limit > 0 {
		list, err = s.weights.MostUpdated(ctx, q.Limit)
	} else {
		list, err = s.weights.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	return toStruct(WeightList{Weights: list})
}

// MetricsSummary aggregates accuracy per regression method.
func (s *Server) MetricsSummary(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	list, err := s.sessions.MetricsSummary(ctx)
	if err != nil {
		return nil, err
	}
	return toStruct(MethodList{Methods: list})
}

func limitOr(n int) int {
	if n <= 0 {
		return DefaultListLimit
	}
	return n
}
// #endregion server

// #region grpc-server
// NewGRPCServer builds a grpc.Server with the Refiner and health services
// registered. Handler errors are mapped to status codes by the interceptor.
func NewGRPCServer(srv RefinerServer, logger logging.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if logger == nil {
		logger = logging.Nop()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(unaryInterceptor(logger)))
	g := grpc.NewServer(opts...)
	g.RegisterService(&ServiceDesc, srv)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(g, hs)
	return g
}

// Serve listens on addr and blocks until ctx is cancelled or the server
// fails. Cancellation triggers a graceful stop.
func Serve(ctx context.Context, g *grpc.Server, addr string, logger logging.Logger) error {
	if logger == nil {
		logger = logging.Nop()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	logger.Info("[GRPC] listening", "addr", lis.Addr().String())

	errc := make(chan error, 1)
	go func() { errc <- g.Serve(lis) }()

	select {
	case <-ctx.Done():
		logger.Info("[GRPC] shutting down")
		g.GracefulStop()
		return nil
	case err := <-errc:
		return err
	}
}

func unaryInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		err = toStatus(err)
		code := status.Code(err)
		if err != nil && code == codes.Internal {
			logger.Error("[GRPC] call failed", "method", info.FullMethod, "err", err, "elapsed", time.Since(start))
		} else {
			logger.Debug("[GRPC] call", "method", info.FullMethod, "code", code.String(), "elapsed", time.Since(start))
		}
		return resp, err
	}
}

// toStatus maps domain errors to gRPC status errors. Errors that already
// carry a status pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, orchestrator.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, sql.ErrNoRows):
		return status.Error(codes.NotFound, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
// #endregion grpc-server
