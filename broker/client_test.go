package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/c360/signalbridge/signal"
)

func newTestClient(t *testing.T, conn *fakeConn) *Client {
	t.Helper()
	client, err := NewClientWithConn(conn)
	require.NoError(t, err)
	return client
}

func TestClientGetDatapoints(t *testing.T) {
	conn := &fakeConn{
		invokeFn: func(_ context.Context, _ string, _, reply any) error {
			reply.(*GetReportResponse).Item = structpb.NewNumberValue(42.5)
			return nil
		},
	}
	client := newTestClient(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	reply, err := client.GetDatapoints(ctx, []string{"Vehicle.Speed"}).Await(ctx)
	require.NoError(t, err)

	value, err := reply.Get("Vehicle.Speed")
	require.NoError(t, err)
	assert.Equal(t, signal.KindDouble, value.Kind())
	payload, err := value.Payload()
	require.NoError(t, err)
	assert.Equal(t, 42.5, payload)

	// The raw wire payload is retained for re-decoding with an expected kind.
	require.NotNil(t, reply.Raw())
	assert.Equal(t, 42.5, reply.Raw().GetNumberValue())
}

func TestClientGetDatapointsNullIsNotAvailable(t *testing.T) {
	conn := &fakeConn{
		invokeFn: func(_ context.Context, _ string, _, reply any) error {
			reply.(*GetReportResponse).Item = structpb.NewNullValue()
			return nil
		},
	}
	client := newTestClient(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	reply, err := client.GetDatapoints(ctx, []string{"X.Y"}).Await(ctx)
	require.NoError(t, err)

	value, err := reply.Get("X.Y")
	require.NoError(t, err)
	assert.False(t, value.Valid())
	assert.Equal(t, signal.FailureNotAvailable, value.Failure())
}

func TestClientGetDatapointsTransportError(t *testing.T) {
	conn := &fakeConn{
		invokeFn: func(context.Context, string, any, any) error {
			return status.Error(codes.Unavailable, "broker down")
		},
	}
	client := newTestClient(t, conn)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.GetDatapoints(ctx, []string{"Vehicle.Speed"}).Await(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RPC 'GetDatapoints' failed: broker down")
}

func TestClientSetDatapoints(t *testing.T) {
	var gotReq *CreateJobRequest
	conn := &fakeConn{
		invokeFn: func(_ context.Context, _ string, args, _ any) error {
			gotReq = args.(*CreateJobRequest)
			return nil
		},
	}
	client := newTestClient(t, conn)

	speed, err := signal.New("Vehicle.Speed", signal.KindFloat, float32(88.5))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	errMap, err := client.SetDatapoints(ctx, []*signal.Value{speed}).Await(ctx)
	require.NoError(t, err)
	assert.Empty(t, errMap)

	require.NotNil(t, gotReq)
	fields := gotReq.Document.GetFields()
	assert.Equal(t, "set", fields["action"].GetStringValue())
	assert.Equal(t, "Vehicle.Speed", fields["target"].GetStringValue())
	assert.InDelta(t, 88.5, fields["value"].GetNumberValue(), 1e-9)
}

func TestClientSetDatapointsEmptyNoDispatch(t *testing.T) {
	conn := &fakeConn{}
	client := newTestClient(t, conn)

	result := client.SetDatapoints(context.Background(), nil)

	// Nothing is dispatched and the result stays pending.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := result.Await(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, conn.invokeCount())
}

func TestClientSetDatapointsEncodesEagerly(t *testing.T) {
	conn := &fakeConn{}
	client := newTestClient(t, conn)

	speed, err := signal.New("Vehicle.Speed", signal.KindFloat, float32(88.5))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// A nil value later in the list fails the whole call before dispatch,
	// even though only the first value would be transmitted.
	_, err = client.SetDatapoints(ctx, []*signal.Value{speed, nil}).Await(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, conn.invokeCount())
}

// replyCollector gathers streamed replies for assertion.
type replyCollector struct {
	mu      sync.Mutex
	replies []*signal.Reply
	arrived chan struct{}
}

func newReplyCollector() *replyCollector {
	return &replyCollector{arrived: make(chan struct{}, 16)}
}

func (c *replyCollector) collect(reply *signal.Reply) {
	c.mu.Lock()
	c.replies = append(c.replies, reply)
	c.mu.Unlock()
	c.arrived <- struct{}{}
}

func (c *replyCollector) wait(t *testing.T, n int) []*signal.Reply {
	t.Helper()
	for {
		c.mu.Lock()
		count := len(c.replies)
		c.mu.Unlock()
		if count >= n {
			break
		}
		select {
		case <-c.arrived:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %d replies, have %d", n, count)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*signal.Reply(nil), c.replies...)
}

func subscribeConn(responses ...*ListenReportResponse) *fakeConn {
	return &fakeConn{
		streamFn: func(ctx context.Context, _ string) (grpc.ClientStream, error) {
			return &fakeStream{ctx: ctx, responses: responses}, nil
		},
	}
}

func TestClientSubscribeFlattensNestedStruct(t *testing.T) {
	payload, err := structpb.NewValue(map[string]any{
		"B": map[string]any{"C": 5.0, "D": "x"},
	})
	require.NoError(t, err)

	conn := subscribeConn(&ListenReportResponse{
		Items: &structpb.ListValue{Values: []*structpb.Value{payload}},
	})
	client := newTestClient(t, conn)

	collector := newReplyCollector()
	subscription := client.Subscribe(context.Background(), "A.B")
	defer subscription.Stop()
	subscription.OnItem(collector.collect)

	replies := collector.wait(t, 2)

	// A subscription to a subtree yields per-field updates, each keyed by
	// its own flattened path rooted at the subscribed subtree.
	byPath := map[string]*signal.Value{}
	for _, reply := range replies {
		for _, path := range reply.Paths() {
			value, err := reply.Get(path)
			require.NoError(t, err)
			byPath[path] = value
		}
	}
	require.Len(t, byPath, 2)

	c := byPath["A/B/C"]
	require.NotNil(t, c)
	payloadC, err := c.Payload()
	require.NoError(t, err)
	assert.Equal(t, 5.0, payloadC)

	d := byPath["A/B/D"]
	require.NotNil(t, d)
	payloadD, err := d.Payload()
	require.NoError(t, err)
	assert.Equal(t, "x", payloadD)
}

func TestClientSubscribeScalarKeyedBySubscribedPath(t *testing.T) {
	conn := subscribeConn(&ListenReportResponse{
		Items: &structpb.ListValue{Values: []*structpb.Value{
			structpb.NewNumberValue(100),
			structpb.NewStringValue("drive"),
			structpb.NewBoolValue(true),
		}},
	})
	client := newTestClient(t, conn)

	collector := newReplyCollector()
	subscription := client.Subscribe(context.Background(), "Vehicle.Speed")
	defer subscription.Stop()
	subscription.OnItem(collector.collect)

	replies := collector.wait(t, 3)
	for _, reply := range replies {
		_, err := reply.Get("Vehicle.Speed")
		assert.NoError(t, err)
	}
}

func TestClientSubscribeStreamError(t *testing.T) {
	conn := &fakeConn{
		streamFn: func(ctx context.Context, _ string) (grpc.ClientStream, error) {
			return &fakeStream{
				ctx:      ctx,
				finalErr: status.Error(codes.Internal, "stream broken"),
			}, nil
		},
	}
	client := newTestClient(t, conn)

	errs := make(chan error, 1)
	subscription := client.Subscribe(context.Background(), "Vehicle.Speed")
	defer subscription.Stop()
	subscription.OnError(func(err error) { errs <- err })

	select {
	case err := <-errs:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RPC 'Subscribe' failed: stream broken")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for stream error")
	}
}

func TestClientSubscribeSkipsUndecodableItems(t *testing.T) {
	mixed, err := structpb.NewValue([]any{1.0, "two"})
	require.NoError(t, err)

	conn := subscribeConn(&ListenReportResponse{
		Items: &structpb.ListValue{Values: []*structpb.Value{
			mixed,
			structpb.NewNumberValue(7),
		}},
	})
	client := newTestClient(t, conn)

	collector := newReplyCollector()
	subscription := client.Subscribe(context.Background(), "Vehicle.Speed")
	defer subscription.Stop()
	subscription.OnItem(collector.collect)
	subscription.OnError(func(err error) {
		t.Errorf("decode failures must not end the stream: %v", err)
	})

	replies := collector.wait(t, 1)
	value, err := replies[0].Get("Vehicle.Speed")
	require.NoError(t, err)
	payload, err := value.Payload()
	require.NoError(t, err)
	assert.Equal(t, 7.0, payload)
}
