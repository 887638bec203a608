package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/prompt-refiner/internal/generator"
	"github.com/danielpatrickdp/prompt-refiner/internal/logging"
	"github.com/danielpatrickdp/prompt-refiner/internal/orchestrator"
	"github.com/danielpatrickdp/prompt-refiner/internal/regression"
	"github.com/danielpatrickdp/prompt-refiner/internal/store"
	"github.com/danielpatrickdp/prompt-refiner/internal/weights"
)

// #region fixtures
type fixture struct {
	client *Client
	conn   *grpc.ClientConn
	store  *store.Store
}

func newFixture(t *testing.T, gen generator.TextGenerator) *fixture {
	t.Helper()
	st, err := store.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ws, err := weights.NewStore(st.DB())
	require.NoError(t, err)

	orch := orchestrator.New(st, ws, gen,
		orchestrator.WithNeuralConfig(regression.NeuralConfig{Hidden1: 4, Hidden2: 2, Epochs: 2, LearningRate: 0.01, Seed: 1}))

	lis := bufconn.Listen(1 << 20)
	g := NewGRPCServer(NewServer(orch, st, ws, logging.Nop()), logging.Nop())
	go g.Serve(lis)
	t.Cleanup(g.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &fixture{client: NewClientWithConn(conn), conn: conn, store: st}
}

func (f *fixture) refine(t *testing.T, prompt string) *orchestrator.Result {
	t.Helper()
	res, err := f.client.Refine(context.Background(), orchestrator.Request{
		Prompt:           prompt,
		MaxIterations:    2,
		RegressionMethod: regression.MethodLinear,
	})
	require.NoError(t, err)
	return res
}
// #endregion fixtures

// #region rpc-tests
func TestRefine_RoundTrip(t *testing.T) {
	f := newFixture(t, generator.NewStatic("Explain the data in detail."))

	res := f.refine(t, "tell me stuff")

	assert.NotEmpty(t, res.SessionID)
	assert.Equal(t, "tell me stuff", res.OriginalPrompt)
	assert.Equal(t, regression.MethodLinear, res.RegressionMethod)
	assert.Len(t, res.Iterations, res.TotalIterations)
	assert.Equal(t, 2, res.TotalIterations)
	assert.Equal(t, "Explain the data in detail.", res.RefinedPrompt)
	assert.NotEmpty(t, res.FinalWeights)
}

func TestRefine_InvalidRequest(t *testing.T) {
	f := newFixture(t, generator.Echo{})

	_, err := f.client.Refine(context.Background(), orchestrator.Request{Prompt: "   "})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestRefine_GeneratorFailureIsInternal(t *testing.T) {
	f := newFixture(t, generator.NewFailing(errors.New("backend down")))

	_, err := f.client.Refine(context.Background(), orchestrator.Request{Prompt: "tell me stuff", MaxIterations: 3})
	require.Error(t, err)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, err.Error(), "backend down")
}

func TestGetSession(t *testing.T) {
	f := newFixture(t, generator.NewStatic("Explain the data in detail."))
	res := f.refine(t, "tell me stuff")

	detail, err := f.client.GetSession(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, res.SessionID, detail.SessionID)
	require.Len(t, detail.Records, 2)
	assert.Equal(t, 0, detail.Records[0].Iteration)
	require.NotNil(t, detail.Metrics)
	assert.Equal(t, "LINEAR", detail.Metrics.Method)
}

func TestGetSession_NotFound(t *testing.T) {
	f := newFixture(t, generator.Echo{})

	_, err := f.client.GetSession(context.Background(), "missing")
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = f.client.GetSession(context.Background(), "")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestListAndDeleteSessions(t *testing.T) {
	f := newFixture(t, generator.NewStatic("Explain the data in detail."))
	first := f.refine(t, "tell me stuff")
	f.refine(t, "write something")

	list, err := f.client.ListSessions(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, list.Sessions, 2)

	n, err := f.client.DeleteSession(context.Background(), first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err = f.client.ListSessions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list.Sessions, 1)
	assert.NotEqual(t, first.SessionID, list.Sessions[0].SessionID)

	_, err = f.client.DeleteSession(context.Background(), first.SessionID)
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestListWeights(t *testing.T) {
	f := newFixture(t, generator.NewStatic("Explain the data in detail."))
	f.refine(t, "tell me stuff")

	all, err := f.client.ListWeights(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all.Weights, len(weights.DefaultWeights()))

	top, err := f.client.ListWeights(context.Background(), 3)
	require.NoError(t, err)
	assert.Len(t, top.Weights, 3)
}

func TestMetricsSummary(t *testing.T) {
	f := newFixture(t, generator.NewStatic("Explain the data in detail."))
	f.refine(t, "tell me stuff")

	sum, err := f.client.MetricsSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, sum.Methods, 1)
	assert.Equal(t, "LINEAR", sum.Methods[0].Method)
	assert.Equal(t, 1, sum.Methods[0].Sessions)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, generator.Echo{})

	resp, err := healthpb.NewHealthClient(f.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
// #endregion rpc-tests

// #region mapping-tests
func TestToStatus(t *testing.T) {
	cases := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("%w: prompt cannot be empty", orchestrator.ErrInvalidRequest), codes.InvalidArgument},
		{&orchestrator.SessionError{SessionID: "s", Op: "rewrite", Err: context.DeadlineExceeded}, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.NotFound, "gone"), codes.NotFound},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, status.Code(toStatus(tc.err)), "err %v", tc.err)
	}
	assert.NoError(t, toStatus(nil))
}

func TestStructConversion(t *testing.T) {
	s, err := toStruct(ListQuery{Limit: 7})
	require.NoError(t, err)
	assert.Equal(t, 7.0, s.GetFields()["limit"].GetNumberValue())

	var q ListQuery
	require.NoError(t, fromStruct(s, &q))
	assert.Equal(t, 7, q.Limit)

	require.NoError(t, fromStruct(nil, &q))

	_, err = toStruct([]int{1})
	assert.Error(t, err)

	bad, err := structpb.NewStruct(map[string]any{"limit": "seven"})
	require.NoError(t, err)
	assert.Error(t, fromStruct(bad, &q))
}
// #endregion mapping-tests
