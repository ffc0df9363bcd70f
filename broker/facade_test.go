package broker

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	sberrors "github.com/c360/signalbridge/errors"
)

// fakeConn implements grpc.ClientConnInterface for tests. Invoke and
// NewStream delegate to the configured functions; every call is recorded.
type fakeConn struct {
	mu       sync.Mutex
	invokes  int
	streams  int
	invokeFn func(ctx context.Context, method string, args, reply any) error
	streamFn func(ctx context.Context, method string) (grpc.ClientStream, error)
}

func (c *fakeConn) Invoke(ctx context.Context, method string, args, reply any, _ ...grpc.CallOption) error {
	c.mu.Lock()
	c.invokes++
	fn := c.invokeFn
	c.mu.Unlock()
	if fn == nil {
		return status.Error(codes.Unimplemented, "no invoke handler")
	}
	return fn(ctx, method, args, reply)
}

func (c *fakeConn) NewStream(
	ctx context.Context, _ *grpc.StreamDesc, method string, _ ...grpc.CallOption,
) (grpc.ClientStream, error) {
	c.mu.Lock()
	c.streams++
	fn := c.streamFn
	c.mu.Unlock()
	if fn == nil {
		return nil, status.Error(codes.Unimplemented, "no stream handler")
	}
	return fn(ctx, method)
}

func (c *fakeConn) invokeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.invokes
}

// fakeStream feeds a fixed sequence of responses to RecvMsg, then the
// terminal error (io.EOF for a graceful end of stream).
type fakeStream struct {
	ctx       context.Context
	mu        sync.Mutex
	request   *ListenReportRequest
	responses []*ListenReportResponse
	finalErr  error
}

func (s *fakeStream) Header() (metadata.MD, error) { return nil, nil }
func (s *fakeStream) Trailer() metadata.MD         { return nil }
func (s *fakeStream) CloseSend() error             { return nil }
func (s *fakeStream) Context() context.Context     { return s.ctx }

func (s *fakeStream) SendMsg(m any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if req, ok := m.(*ListenReportRequest); ok {
		s.request = req
	}
	return nil
}

func (s *fakeStream) RecvMsg(m any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ctx.Err(); err != nil {
		return status.FromContextError(err).Err()
	}
	if len(s.responses) == 0 {
		if s.finalErr != nil {
			return s.finalErr
		}
		return io.EOF
	}
	next := s.responses[0]
	s.responses = s.responses[1:]
	*m.(*ListenReportResponse) = *next
	return nil
}

func TestFacadeGetDatapointsRequestShape(t *testing.T) {
	var (
		gotMethod string
		gotReq    *GetReportRequest
		gotMD     metadata.MD
	)
	conn := &fakeConn{
		invokeFn: func(ctx context.Context, method string, args, reply any) error {
			gotMethod = method
			gotReq = args.(*GetReportRequest)
			gotMD, _ = metadata.FromOutgoingContext(ctx)
			reply.(*GetReportResponse).Item = structpb.NewNumberValue(42)
			return nil
		},
	}

	facade, err := NewFacade(conn, WithMetadata(metadata.Pairs("dapr-app-id", "databroker")))
	require.NoError(t, err)

	replies := make(chan *GetReportResponse, 1)
	facade.GetDatapoints(context.Background(), []string{"Vehicle.Speed", "Vehicle.Ignored"},
		func(r *GetReportResponse) { replies <- r },
		func(err error) { t.Errorf("unexpected error: %v", err) })

	select {
	case reply := <-replies:
		assert.Equal(t, float64(42), reply.Item.GetNumberValue())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
	}

	assert.Equal(t, methodGetReport, gotMethod)
	assert.Equal(t, "vss", gotReq.Thing)
	// Only the first path is transmitted, translated to wire form.
	assert.Equal(t, "Vehicle/Speed", gotReq.Path)
	assert.Equal(t, []string{"databroker"}, gotMD.Get("dapr-app-id"))
}

func TestFacadeGetDatapointsEmptyPathsNoDispatch(t *testing.T) {
	conn := &fakeConn{}
	facade, err := NewFacade(conn)
	require.NoError(t, err)

	facade.GetDatapoints(context.Background(), nil,
		func(*GetReportResponse) { t.Error("reply handler must not run") },
		func(error) { t.Error("error handler must not run") })

	assert.Equal(t, 0, conn.invokeCount())
}

func TestFacadeGetDatapointsTransportError(t *testing.T) {
	conn := &fakeConn{
		invokeFn: func(context.Context, string, any, any) error {
			return status.Error(codes.Unavailable, "broker down")
		},
	}
	facade, err := NewFacade(conn)
	require.NoError(t, err)

	errs := make(chan error, 1)
	facade.GetDatapoints(context.Background(), []string{"Vehicle.Speed"},
		func(*GetReportResponse) { t.Error("reply handler must not run") },
		func(err error) { errs <- err })

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "RPC 'GetDatapoints' failed: broker down")
		assert.True(t, sberrors.IsTransient(err))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for error")
	}
}

func TestFacadeSetDatapointsBuildsCommandDocument(t *testing.T) {
	var gotReq *CreateJobRequest
	conn := &fakeConn{
		invokeFn: func(_ context.Context, method string, args, _ any) error {
			assert.Equal(t, methodCreateJob, method)
			gotReq = args.(*CreateJobRequest)
			return nil
		},
	}
	facade, err := NewFacade(conn)
	require.NoError(t, err)

	done := make(chan struct{})
	facade.SetDatapoints(context.Background(),
		[]PathValue{
			{Path: "Vehicle.Cabin.DesiredTemp", Value: structpb.NewNumberValue(21)},
			{Path: "Vehicle.Ignored", Value: structpb.NewNumberValue(99)},
		},
		func(*CreateJobResponse) { close(done) },
		func(err error) { t.Errorf("unexpected error: %v", err) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for reply")
	}

	require.NotNil(t, gotReq)
	assert.Equal(t, "vss", gotReq.Thing)
	fields := gotReq.Document.GetFields()
	assert.Equal(t, "set", fields["action"].GetStringValue())
	// The command document addresses the target by its dotted path.
	assert.Equal(t, "Vehicle.Cabin.DesiredTemp", fields["target"].GetStringValue())
	assert.Equal(t, float64(21), fields["value"].GetNumberValue())
}

func TestFacadeSetDatapointsEmptyNoDispatch(t *testing.T) {
	conn := &fakeConn{}
	facade, err := NewFacade(conn)
	require.NoError(t, err)

	facade.SetDatapoints(context.Background(), nil,
		func(*CreateJobResponse) { t.Error("reply handler must not run") },
		func(error) { t.Error("error handler must not run") })

	assert.Equal(t, 0, conn.invokeCount())
}

func TestFacadeSubscribeStreamsUntilEOF(t *testing.T) {
	var stream *fakeStream
	conn := &fakeConn{
		streamFn: func(ctx context.Context, method string) (grpc.ClientStream, error) {
			assert.Equal(t, methodListenReport, method)
			stream = &fakeStream{
				ctx: ctx,
				responses: []*ListenReportResponse{
					{Items: &structpb.ListValue{Values: []*structpb.Value{structpb.NewNumberValue(1)}}},
					{Items: &structpb.ListValue{Values: []*structpb.Value{structpb.NewNumberValue(2)}}},
				},
			}
			return stream, nil
		},
	}
	facade, err := NewFacade(conn)
	require.NoError(t, err)

	items := make(chan *ListenReportResponse, 2)
	finished := make(chan error, 1)
	facade.Subscribe(context.Background(), []string{"Vehicle/Speed"},
		func(r *ListenReportResponse) { items <- r },
		func(err error) { finished <- err })

	select {
	case err := <-finished:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stream end")
	}
	assert.Len(t, items, 2)

	require.NotNil(t, stream.request)
	assert.Equal(t, "vss", stream.request.Thing)
	assert.True(t, stream.request.NeedsInitialValue)
	assert.Equal(t, []string{"Vehicle/Speed"}, stream.request.Filters)
}

func TestFacadeSubscribeStreamError(t *testing.T) {
	conn := &fakeConn{
		streamFn: func(ctx context.Context, _ string) (grpc.ClientStream, error) {
			return &fakeStream{
				ctx:      ctx,
				finalErr: status.Error(codes.Internal, "stream broken"),
			}, nil
		},
	}
	facade, err := NewFacade(conn)
	require.NoError(t, err)

	finished := make(chan error, 1)
	facade.Subscribe(context.Background(), []string{"Vehicle/Speed"},
		func(*ListenReportResponse) {},
		func(err error) { finished <- err })

	select {
	case err := <-finished:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RPC 'Subscribe' failed: stream broken")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stream error")
	}
}

func TestFacadeCloseCancelsPendingCalls(t *testing.T) {
	started := make(chan struct{})
	conn := &fakeConn{
		invokeFn: func(ctx context.Context, _ string, _, _ any) error {
			close(started)
			<-ctx.Done()
			return status.FromContextError(ctx.Err()).Err()
		},
	}
	facade, err := NewFacade(conn)
	require.NoError(t, err)

	errs := make(chan error, 1)
	facade.GetDatapoints(context.Background(), []string{"Vehicle.Speed"},
		func(*GetReportResponse) { t.Error("reply handler must not run") },
		func(err error) { errs <- err })

	<-started
	facade.Close()

	select {
	case err := <-errs:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancellation")
	}

	// Closed facades reject new calls with an immediate error.
	errs2 := make(chan error, 1)
	facade.GetDatapoints(context.Background(), []string{"Vehicle.Speed"},
		func(*GetReportResponse) { t.Error("reply handler must not run") },
		func(err error) { errs2 <- err })
	select {
	case err := <-errs2:
		require.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for rejection")
	}
}
