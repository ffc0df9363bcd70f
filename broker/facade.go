package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	sberrors "github.com/c360/signalbridge/errors"
	"github.com/c360/signalbridge/metric"
	"github.com/c360/signalbridge/wirepath"
)

// listenReportDesc describes the server-streaming subscribe call.
var listenReportDesc = &grpc.StreamDesc{
	StreamName:    "ListenReport",
	ServerStreams: true,
}

// Facade owns the unary and streaming call plumbing against the broker's
// gRPC service. It shapes paths and values onto the wire protocol but does
// not interpret signal semantics; decoding happens at the Client layer.
//
// All operations return immediately and invoke their handlers from
// transport-managed goroutines. Handlers must be safe to run concurrently
// with the issuing goroutine and with each other.
type Facade struct {
	conn     grpc.ClientConnInterface
	metadata metadata.MD
	logger   *slog.Logger
	metrics  *Metrics
	name     string
	calls    *pendingCalls
}

// NewFacade creates a facade over an established gRPC connection. The
// metadata, when non-nil, is attached to every outgoing call.
func NewFacade(conn grpc.ClientConnInterface, opts ...FacadeOption) (*Facade, error) {
	if conn == nil {
		return nil, sberrors.WrapInvalid(
			errors.New("nil connection"), "Facade", "NewFacade", "validate transport")
	}

	f := &Facade{
		conn:   conn,
		logger: slog.Default(),
		name:   "broker",
		calls:  newPendingCalls(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// FacadeOption configures optional facade behavior
type FacadeOption func(*Facade)

// WithMetadata sets transport metadata attached to every outgoing call
func WithMetadata(md metadata.MD) FacadeOption {
	return func(f *Facade) { f.metadata = md }
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) FacadeOption {
	return func(f *Facade) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithMetrics registers broker metrics on the given registry. A nil registry
// disables collection.
func WithMetrics(registry *metric.MetricsRegistry) FacadeOption {
	return func(f *Facade) { f.metrics = newMetrics(registry, f.name) }
}

// rpcStatus wraps a transport failure into the adapter's error taxonomy,
// embedding the failing operation's name and the transport's own message.
func rpcStatus(operation string, err error) error {
	st := status.Convert(err)
	return &sberrors.ClassifiedError{
		Class:     sberrors.ErrorTransient,
		Err:       err,
		Message:   fmt.Sprintf("RPC '%s' failed: %s", operation, st.Message()),
		Component: "Facade",
		Operation: operation,
	}
}

// beginCall derives a per-call context carrying the facade's metadata and
// registers its cancel function so Close can release in-flight calls.
func (f *Facade) beginCall(ctx context.Context) (context.Context, uint64, bool) {
	if len(f.metadata) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, f.metadata)
	}
	callCtx, cancel := context.WithCancel(ctx)
	id, ok := f.calls.add(cancel)
	if !ok {
		cancel()
		return nil, 0, false
	}
	return callCtx, id, true
}

func (f *Facade) endCall(id uint64) {
	f.calls.remove(id)
	f.metrics.callFinished()
}

// GetDatapoints issues a point read for the first path in the list. The
// broker's read request carries a single path; multi-path reads require one
// call per path. An empty path list dispatches nothing and invokes no
// handler.
func (f *Facade) GetDatapoints(
	ctx context.Context,
	paths []string,
	onReply func(*GetReportResponse),
	onError func(error),
) {
	if len(paths) == 0 {
		f.logger.Error("GetDatapoints called without any datapoint paths")
		return
	}

	wire := wirepath.ToWire(paths[0])
	request := &GetReportRequest{Thing: thingNamespace, Path: wire}

	callCtx, id, ok := f.beginCall(ctx)
	if !ok {
		onError(rpcStatus("GetDatapoints", sberrors.ErrShuttingDown))
		return
	}
	f.metrics.callStarted()
	f.logger.Debug("issuing point read", "path", wire)

	go func() {
		defer f.endCall(id)
		started := time.Now()

		response := &GetReportResponse{}
		err := f.conn.Invoke(callCtx, methodGetReport, request, response, grpc.ForceCodec(jsonCodec{}))
		if err != nil {
			f.metrics.recordCall(f.name, "GetDatapoints", "error", time.Since(started))
			onError(rpcStatus("GetDatapoints", err))
			return
		}

		f.metrics.recordCall(f.name, "GetDatapoints", "ok", time.Since(started))
		f.logger.Debug("point read returned", "path", wire, "item", response.Item)
		onReply(response)
	}()
}

// PathValue pairs a dotted signal path with its encoded wire value for a
// write.
type PathValue struct {
	Path  string
	Value *structpb.Value
}

// buildSetDocument shapes one write into the broker's generic command
// document form.
func buildSetDocument(path string, value *structpb.Value) (*structpb.Struct, error) {
	if value == nil {
		return nil, fmt.Errorf("%w: nil wire value for path %q", sberrors.ErrInvalidValue, path)
	}
	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"action": structpb.NewStringValue("set"),
			"target": structpb.NewStringValue(path),
			"value":  value,
		},
	}, nil
}

// SetDatapoints submits a write for the first (path, value) pair as a
// command document job. The job's target field uses the dotted path form.
// An empty list dispatches nothing and invokes no handler.
func (f *Facade) SetDatapoints(
	ctx context.Context,
	pathValues []PathValue,
	onReply func(*CreateJobResponse),
	onError func(error),
) {
	if len(pathValues) == 0 {
		f.logger.Warn("SetDatapoints called without payload")
		return
	}

	first := pathValues[0]
	document, err := buildSetDocument(first.Path, first.Value)
	if err != nil {
		onError(sberrors.WrapInvalid(err, "Facade", "SetDatapoints", "build command document"))
		return
	}
	request := &CreateJobRequest{Thing: thingNamespace, Document: document}

	callCtx, id, ok := f.beginCall(ctx)
	if !ok {
		onError(rpcStatus("SetDatapoints", sberrors.ErrShuttingDown))
		return
	}
	f.metrics.callStarted()
	f.logger.Debug("issuing point write", "target", first.Path)

	go func() {
		defer f.endCall(id)
		started := time.Now()

		response := &CreateJobResponse{}
		err := f.conn.Invoke(callCtx, methodCreateJob, request, response, grpc.ForceCodec(jsonCodec{}))
		if err != nil {
			f.metrics.recordCall(f.name, "SetDatapoints", "error", time.Since(started))
			onError(rpcStatus("SetDatapoints", err))
			return
		}

		f.metrics.recordCall(f.name, "SetDatapoints", "ok", time.Since(started))
		onReply(response)
	}()
}

// Subscribe opens a server-streaming call for the first target wire path,
// requesting the current value followed by future updates. Each streamed
// item is handed to onItem unmodified; onFinish receives nil on graceful end
// of stream or the wrapped status on failure. The returned cancel function
// releases the stream's transport context.
func (f *Facade) Subscribe(
	ctx context.Context,
	targets []string,
	onItem func(*ListenReportResponse),
	onFinish func(error),
) context.CancelFunc {
	request := &ListenReportRequest{
		Thing:             thingNamespace,
		NeedsInitialValue: true,
	}
	if len(targets) > 0 {
		request.Filters = append(request.Filters, targets[0])
	}

	callCtx, id, ok := f.beginCall(ctx)
	if !ok {
		onFinish(rpcStatus("Subscribe", sberrors.ErrShuttingDown))
		return func() {}
	}
	f.metrics.callStarted()
	f.metrics.subscriptionOpened()
	f.logger.Debug("opening subscription stream", "filters", request.Filters)

	callCtx, cancel := context.WithCancel(callCtx)

	go func() {
		defer f.endCall(id)
		defer f.metrics.subscriptionClosed()
		defer cancel()

		stream, err := f.conn.NewStream(callCtx, listenReportDesc, methodListenReport, grpc.ForceCodec(jsonCodec{}))
		if err != nil {
			onFinish(rpcStatus("Subscribe", err))
			return
		}
		if err := stream.SendMsg(request); err != nil {
			onFinish(rpcStatus("Subscribe", err))
			return
		}
		if err := stream.CloseSend(); err != nil {
			onFinish(rpcStatus("Subscribe", err))
			return
		}

		for {
			response := &ListenReportResponse{}
			err := stream.RecvMsg(response)
			if err != nil {
				if errors.Is(err, io.EOF) {
					onFinish(nil)
				} else {
					onFinish(rpcStatus("Subscribe", err))
				}
				return
			}
			f.metrics.recordStreamItem(f.name)
			onItem(response)
		}
	}()

	return cancel
}

// Close cancels every in-flight call and rejects new ones. Safe to call more
// than once.
func (f *Facade) Close() {
	f.calls.close()
}

// PendingCalls reports the number of in-flight RPCs, for diagnostics.
func (f *Facade) PendingCalls() int {
	return f.calls.len()
}
