package broker

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/c360/signalbridge/codec"
	"github.com/c360/signalbridge/errors"
	"github.com/c360/signalbridge/metric"
	"github.com/c360/signalbridge/signal"
	"github.com/c360/signalbridge/wirepath"
)

// SetErrorMap maps signal paths to per-path write failures. The broker's
// job-based write protocol reports no per-path errors today, so a
// successful write resolves to an empty map.
type SetErrorMap map[string]error

// Client is the public-facing broker adapter. It wraps the Facade, decodes
// raw wire payloads into typed signal values, and flattens streamed nested
// updates into per-path replies.
//
// GetDatapoints and SetDatapoints operate on at most one path per call; the
// broker's request messages carry a single path. Callers needing several
// paths issue several calls.
type Client struct {
	facade *Facade
	conn   *grpc.ClientConn
	logger *slog.Logger
}

// ClientOption configures optional client behavior
type ClientOption func(*clientOptions)

type clientOptions struct {
	logger   *slog.Logger
	metadata metadata.MD
	registry *metric.MetricsRegistry
}

// WithClientLogger sets the structured logger for the client and its facade
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClientMetadata sets transport metadata attached to every call
func WithClientMetadata(md metadata.MD) ClientOption {
	return func(o *clientOptions) { o.metadata = md }
}

// WithClientMetrics enables metrics collection on the given registry
func WithClientMetrics(registry *metric.MetricsRegistry) ClientOption {
	return func(o *clientOptions) { o.registry = registry }
}

// NewClient connects to a broker at the given address and returns a client
// over the fresh connection. The connection is owned by the client and
// released by Close.
func NewClient(address string, opts ...ClientOption) (*Client, error) {
	options := applyClientOptions(opts)

	conn, err := grpc.NewClient(address,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	if err != nil {
		return nil, errors.WrapTransient(err, "Client", "NewClient", "dial broker")
	}

	options.logger.Info("connecting to data broker", "address", address)

	client, err := newClientWithConn(conn, options)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	client.conn = conn
	return client, nil
}

// NewClientWithConn returns a client over an existing connection. The caller
// retains ownership of the connection; Close does not release it.
func NewClientWithConn(conn grpc.ClientConnInterface, opts ...ClientOption) (*Client, error) {
	return newClientWithConn(conn, applyClientOptions(opts))
}

func applyClientOptions(opts []ClientOption) *clientOptions {
	options := &clientOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

func newClientWithConn(conn grpc.ClientConnInterface, options *clientOptions) (*Client, error) {
	facadeOpts := []FacadeOption{WithLogger(options.logger)}
	if options.metadata != nil {
		facadeOpts = append(facadeOpts, WithMetadata(options.metadata))
	}
	if options.registry != nil {
		facadeOpts = append(facadeOpts, WithMetrics(options.registry))
	}

	facade, err := NewFacade(conn, facadeOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{facade: facade, logger: options.logger}, nil
}

// GetDatapoints reads the datapoint at paths[0] and resolves to a reply
// keyed by that dotted path. The leaf's kind is inferred from the wire
// payload; callers needing a specific kind re-decode the reply's raw
// payload. An empty path list dispatches nothing, leaving the result
// pending.
func (c *Client) GetDatapoints(ctx context.Context, paths []string) *Result[*signal.Reply] {
	result := newResult[*signal.Reply]()

	c.facade.GetDatapoints(ctx, paths,
		func(response *GetReportResponse) {
			path := paths[0]
			reply := signal.NewReply()
			reply.SetRaw(response.Item)

			if response.Item != nil {
				value, err := codec.Infer(path, response.Item)
				if err != nil {
					c.facade.metrics.recordDecodeError(c.facade.name, "GetDatapoints")
					c.logger.Warn("failed to convert broker response",
						"path", path, "error", err)
				} else {
					reply.Add(value)
				}
			}

			result.complete(reply)
		},
		func(err error) {
			result.fail(err)
		})

	return result
}

// SetDatapoints writes the given values. Every value is encoded eagerly,
// surfacing type errors for all of them, though only the first is
// transmitted. Resolves to an empty error map on success. An empty value
// list dispatches nothing and leaves the result pending.
func (c *Client) SetDatapoints(ctx context.Context, values []*signal.Value) *Result[SetErrorMap] {
	result := newResult[SetErrorMap]()
	if len(values) == 0 {
		c.logger.Warn("SetDatapoints called without values")
		return result
	}

	pathValues := make([]PathValue, 0, len(values))
	for _, value := range values {
		wire, err := codec.Encode(value)
		if err != nil {
			result.fail(errors.WrapInvalid(err, "Client", "SetDatapoints", "encode value"))
			return result
		}
		pathValues = append(pathValues, PathValue{Path: value.Path(), Value: wire})
	}

	c.facade.SetDatapoints(ctx, pathValues,
		func(*CreateJobResponse) {
			result.complete(SetErrorMap{})
		},
		func(err error) {
			result.fail(err)
		})

	return result
}

// Subscribe opens a stream of updates for the dotted path. Scalar payloads
// yield one reply keyed by the subscribed path; nested struct payloads are
// flattened into one reply per leaf, each keyed by its own slash-joined
// path rooted at the subscribed subtree. Decode failures on individual
// items are logged and skipped; they do not end the stream. A transport
// failure ends the subscription and is delivered to the error handler.
func (c *Client) Subscribe(ctx context.Context, path string) *Subscription {
	wire := wirepath.ToWire(path)

	// Struct payloads carry only the segments below the subscribed leaf, so
	// flattened paths are prefixed with everything above it.
	segments := wirepath.Split(path)
	var parentPrefix string
	if len(segments) > 1 {
		parentPrefix = wirepath.Join(segments[:len(segments)-1])
	}

	subscription := newSubscription(nil)

	cancel := c.facade.Subscribe(ctx, []string{wire},
		func(response *ListenReportResponse) {
			c.handleStreamItem(subscription, path, parentPrefix, response)
		},
		func(err error) {
			if err != nil {
				subscription.dispatchError(err)
			}
		})

	subscription.setCancel(cancel)
	return subscription
}

// handleStreamItem decomposes one streamed notification into replies.
func (c *Client) handleStreamItem(
	subscription *Subscription,
	subscribedPath string,
	parentPrefix string,
	response *ListenReportResponse,
) {
	if response.Items == nil {
		return
	}

	for _, item := range response.Items.Values {
		if item.GetStructValue() == nil {
			// Bare scalar for the subscribed path itself.
			c.emitLeaf(subscription, subscribedPath, item)
			continue
		}

		for _, leaf := range wirepath.CollectLeaves(item) {
			leafPath := leaf.Path
			if parentPrefix != "" {
				leafPath = parentPrefix + "/" + leafPath
			}
			c.emitLeaf(subscription, leafPath, leaf.Value)
		}
	}
}

// emitLeaf decodes one leaf and pushes it to the subscriber. A value that
// cannot be decoded is logged and dropped without ending the stream.
func (c *Client) emitLeaf(subscription *Subscription, path string, leaf *structpb.Value) {
	value, err := codec.Infer(path, leaf)
	if err != nil {
		c.facade.metrics.recordDecodeError(c.facade.name, "Subscribe")
		c.logger.Warn("skipping undecodable stream value", "path", path, "error", err)
		return
	}

	c.logger.Debug("received update", "path", path)

	reply := signal.NewReply()
	reply.Add(value)
	reply.SetRaw(leaf)
	subscription.dispatch(reply)
}

// Close tears down every in-flight call and, when the client owns its
// connection, closes it.
func (c *Client) Close() error {
	c.facade.Close()
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			return errors.WrapTransient(err, "Client", "Close", "close connection")
		}
	}
	return nil
}
