// Package bridge subscribes a configured set of vehicle signal routes on the
// broker and republishes every update as JSON on NATS.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/c360/signalbridge/broker"
	"github.com/c360/signalbridge/codec"
	"github.com/c360/signalbridge/component"
	"github.com/c360/signalbridge/config"
	"github.com/c360/signalbridge/errors"
	"github.com/c360/signalbridge/metric"
	"github.com/c360/signalbridge/pkg/retry"
	"github.com/c360/signalbridge/signal"
	"github.com/c360/signalbridge/wirepath"
)

// Publisher is the NATS surface the bridge needs. *natsclient.Client
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	PublishToStream(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler func(context.Context, []byte)) error
}

// Route is one resolved routing table entry: exactly one signal path mapped
// to one NATS subject. Matching is exact; a route for "Vehicle.Speed" never
// fires for "Vehicle.Speed.Displayed".
type Route struct {
	Path           string
	Subject        string
	Field          string
	Kind           signal.Kind
	RequestSubject string

	// wire-form prefix of the path's parent segments, precomputed for
	// relating flattened stream paths back to the raw payload
	parent string
}

// Update is the JSON document published for every routed signal change.
type Update struct {
	Path      string    `json:"path"`
	Field     string    `json:"field,omitempty"`
	Kind      string    `json:"kind,omitempty"`
	Value     any       `json:"value"`
	Failure   string    `json:"failure,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Deps holds runtime dependencies for the bridge component
type Deps struct {
	Name            string
	Config          config.BridgeConfig
	Broker          *broker.Client
	NATS            Publisher
	MetricsRegistry *metric.MetricsRegistry
	Logger          *slog.Logger
	CallTimeout     time.Duration
	UseJetStream    bool
}

// Bridge routes broker signal updates onto NATS subjects and answers
// on-demand read requests for routes that declare a request subject.
type Bridge struct {
	*component.Base

	cfg    config.BridgeConfig
	broker *broker.Client
	nats   Publisher
	logger *slog.Logger

	metrics     *Metrics
	core        *metric.Metrics
	retryConfig retry.Config

	callTimeout  time.Duration
	useJetStream bool

	routes map[string]Route

	mu     sync.Mutex
	subs   []*broker.Subscription
	cancel context.CancelFunc
}

var _ component.Component = (*Bridge)(nil)

// New creates a bridge component from its dependencies.
func New(deps Deps) *Bridge {
	name := deps.Name
	if name == "" {
		name = "bridge"
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default().With("component", name)
	}

	callTimeout := deps.CallTimeout
	if callTimeout <= 0 {
		callTimeout = 5 * time.Second
	}

	var core *metric.Metrics
	if deps.MetricsRegistry != nil {
		core = deps.MetricsRegistry.CoreMetrics()
	}

	return &Bridge{
		Base:         component.NewBase(name),
		cfg:          deps.Config,
		broker:       deps.Broker,
		nats:         deps.NATS,
		logger:       logger,
		metrics:      newMetrics(deps.MetricsRegistry, name),
		core:         core,
		retryConfig:  retry.DefaultConfig(),
		callTimeout:  callTimeout,
		useJetStream: deps.UseJetStream,
	}
}

// Initialize validates dependencies and builds the routing table.
func (b *Bridge) Initialize() error {
	if b.broker == nil {
		return errors.WrapInvalid(fmt.Errorf("nil broker client"),
			"bridge", "Initialize", "dependency check")
	}
	if b.nats == nil {
		return errors.WrapInvalid(fmt.Errorf("nil NATS publisher"),
			"bridge", "Initialize", "dependency check")
	}
	if len(b.cfg.Routes) == 0 {
		return errors.WrapInvalid(fmt.Errorf("no routes configured"),
			"bridge", "Initialize", "route table")
	}

	routes := make(map[string]Route, len(b.cfg.Routes))
	for _, rc := range b.cfg.Routes {
		if err := rc.Validate(); err != nil {
			return errors.WrapInvalid(err, "bridge", "Initialize", "route validation")
		}
		if _, dup := routes[rc.Path]; dup {
			return errors.WrapInvalid(fmt.Errorf("duplicate route for %q", rc.Path),
				"bridge", "Initialize", "route table")
		}

		segments := wirepath.Split(rc.Path)
		var parent string
		if len(segments) > 1 {
			parent = wirepath.Join(segments[:len(segments)-1])
		}

		routes[rc.Path] = Route{
			Path:           rc.Path,
			Subject:        b.subject(rc.Subject),
			Field:          rc.Field,
			Kind:           rc.SignalKind(),
			RequestSubject: b.subject(rc.RequestSubject),
			parent:         parent,
		}
	}

	b.routes = routes
	b.SetState(component.StateInitialized)
	return nil
}

// subject applies the configured subject prefix.
func (b *Bridge) subject(s string) string {
	if s == "" || b.cfg.SubjectPrefix == "" {
		return s
	}
	return b.cfg.SubjectPrefix + "." + s
}

// Routes returns the resolved routing table, keyed by signal path.
func (b *Bridge) Routes() map[string]Route {
	out := make(map[string]Route, len(b.routes))
	for k, v := range b.routes {
		out[k] = v
	}
	return out
}

// Start opens one broker subscription per route and registers request
// handlers. It is idempotent while running.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.State() == component.StateStarted {
		return nil
	}
	if b.routes == nil {
		return errors.WrapInvalid(fmt.Errorf("not initialized"),
			"bridge", "Start", "state check")
	}

	ctx, cancel := context.WithCancel(ctx)
	b.cancel = cancel

	for _, route := range b.routes {
		route := route

		sub := b.broker.Subscribe(ctx, route.Path)
		sub.OnItem(func(rep *signal.Reply) {
			b.handleUpdate(ctx, rep)
		})
		sub.OnError(func(err error) {
			b.RecordError(err)
			if b.core != nil {
				b.core.RecordError(b.Name(), "subscription")
			}
			b.logger.Error("subscription ended",
				"path", route.Path, "error", err)
		})
		b.subs = append(b.subs, sub)

		if route.RequestSubject != "" {
			if err := b.nats.Subscribe(ctx, route.RequestSubject, b.requestHandler(route)); err != nil {
				cancel()
				b.stopSubsLocked()
				return errors.WrapTransient(err, "bridge", "Start", "request subscription")
			}
		}

		b.logger.Info("route active",
			"path", route.Path, "subject", route.Subject, "kind", route.Kind.String())
	}

	b.metrics.setActiveRoutes(len(b.routes))
	b.SetState(component.StateStarted)
	if b.core != nil {
		b.core.RecordComponentStatus(b.Name(), 1)
	}
	return nil
}

// Stop tears down subscriptions. Pending callbacks are silenced by the
// subscription teardown; Stop never blocks past the timeout.
func (b *Bridge) Stop(timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.State() != component.StateStarted {
		return nil
	}

	done := make(chan struct{})
	go func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.stopSubsLocked()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		return errors.WrapTransient(fmt.Errorf("stop timeout after %v", timeout),
			"bridge", "Stop", "graceful shutdown")
	}

	b.metrics.setActiveRoutes(0)
	b.SetState(component.StateStopped)
	if b.core != nil {
		b.core.RecordComponentStatus(b.Name(), 0)
	}
	return nil
}

func (b *Bridge) stopSubsLocked() {
	for _, sub := range b.subs {
		sub.Stop()
	}
	b.subs = nil
}

// handleUpdate fans one decomposed stream reply out to the routing table.
// Paths without an exact route are counted and skipped.
func (b *Bridge) handleUpdate(ctx context.Context, rep *signal.Reply) {
	for _, p := range rep.Paths() {
		dotted := wirepath.ToApp(p)

		route, ok := b.routes[dotted]
		if !ok {
			b.metrics.recordSkipped()
			b.logger.Debug("no route for update", "path", dotted)
			continue
		}

		if b.core != nil {
			b.core.RecordSignalReceived(b.Name(), dotted)
		}

		inferred, err := rep.Get(p)
		if err != nil {
			continue
		}

		b.publish(ctx, route, b.typedValue(route, p, rep, inferred))
	}
}

// typedValue re-decodes the update with the route's declared kind. When no
// kind is declared, or the typed decode fails, the inferred value is used.
func (b *Bridge) typedValue(route Route, replyPath string, rep *signal.Reply, inferred *signal.Value) *signal.Value {
	if route.Kind == signal.KindUnspecified {
		return inferred
	}

	raw := rep.Raw()
	if raw == nil {
		return inferred
	}

	var v *signal.Value
	var err error
	if raw.GetStructValue() != nil {
		rel := replyPath
		if route.parent != "" {
			rel = strings.TrimPrefix(replyPath, route.parent+"/")
		}
		v, err = codec.Decode(wirepath.ToApp(rel), route.Kind, raw)
	} else {
		v, err = codec.Coerce(route.Path, route.Kind, raw)
	}

	if err != nil {
		b.metrics.recordDecodeFallback()
		b.logger.Debug("typed decode failed, using inferred value",
			"path", route.Path, "kind", route.Kind.String(), "error", err)
		return inferred
	}
	return v
}

// publish serializes the update and publishes it with retry. Failures after
// retries are counted, logged and recorded against component health.
func (b *Bridge) publish(ctx context.Context, route Route, v *signal.Value) {
	if v == nil {
		return
	}

	update := Update{
		Path:      route.Path,
		Field:     route.Field,
		Timestamp: v.Timestamp(),
	}
	if v.Kind() != signal.KindUnspecified {
		update.Kind = v.Kind().String()
	}
	if v.Valid() {
		payload, err := v.Payload()
		if err == nil {
			update.Value = payload
		}
	} else {
		update.Failure = v.Failure().String()
	}

	data, err := json.Marshal(update)
	if err != nil {
		b.RecordError(err)
		b.logger.Error("failed to marshal update", "path", route.Path, "error", err)
		return
	}

	start := time.Now()
	publishFn := func() error {
		if b.useJetStream {
			return b.nats.PublishToStream(ctx, route.Subject, data)
		}
		return b.nats.Publish(ctx, route.Subject, data)
	}

	if err := retry.Do(ctx, b.retryConfig, publishFn); err != nil {
		b.metrics.recordPublishError()
		b.RecordError(err)
		if b.core != nil {
			b.core.RecordError(b.Name(), "publish")
		}
		b.logger.Error("failed to publish update",
			"path", route.Path, "subject", route.Subject, "error", err)
		return
	}

	b.metrics.recordRouted(route.Path, time.Since(start))
	if b.core != nil {
		b.core.RecordSignalPublished(b.Name(), route.Subject)
		b.core.RecordProcessingDuration(b.Name(), "publish", time.Since(start))
	}
}

// requestHandler serves on-demand reads: any message on the route's request
// subject triggers a point read and the result is published on the route's
// subject.
func (b *Bridge) requestHandler(route Route) func(context.Context, []byte) {
	return func(ctx context.Context, _ []byte) {
		b.metrics.recordRequest(route.Path)

		reqCtx, cancel := context.WithTimeout(ctx, b.callTimeout)
		defer cancel()

		rep, err := b.broker.GetDatapoints(reqCtx, []string{route.Path}).Await(reqCtx)
		if err != nil {
			b.RecordError(err)
			if b.core != nil {
				b.core.RecordError(b.Name(), "get")
			}
			b.logger.Error("on-demand read failed", "path", route.Path, "error", err)
			return
		}

		inferred, err := rep.Get(route.Path)
		if err != nil {
			b.logger.Warn("on-demand read returned no value", "path", route.Path)
			return
		}

		b.publish(ctx, route, b.typedValue(route, route.Path, rep, inferred))
	}
}
