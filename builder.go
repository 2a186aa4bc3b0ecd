package ripple

import (
	"context"

	"go.opentelemetry.io/otel/metric"

	"github.com/driftvale/ripple/internal/observe"
	"github.com/driftvale/ripple/pkg/backend"
	"github.com/driftvale/ripple/pkg/backend/lavalink"
	"github.com/driftvale/ripple/pkg/gateway"
	"github.com/driftvale/ripple/pkg/player"
	"github.com/driftvale/ripple/pkg/types"
	"github.com/driftvale/ripple/pkg/voice"
)

// Option configures a Client under construction.
type Option func(*options)

type options struct {
	node          lavalink.Config
	backend       backend.Backend
	gw            gateway.Gateway
	handler       Handler
	meterProvider metric.MeterProvider
	waitEvents    int
}

// WithNode sets the audio node address and password. Ignored when
// [WithBackend] supplies a backend directly.
func WithNode(host string, port uint16, password string) Option {
	return func(o *options) {
		o.node.Host = host
		o.node.Port = port
		o.node.Password = password
	}
}

// WithTLS selects an encrypted connection to the audio node.
func WithTLS(secure bool) Option {
	return func(o *options) { o.node.Secure = secure }
}

// WithBotID sets the bot's user ID for the audio node handshake.
func WithBotID(id types.UserID) Option {
	return func(o *options) { o.node.BotID = id }
}

// WithShardCount sets the platform shard count for the audio node
// handshake. Unsharded bots can leave it at the default of 1.
func WithShardCount(n uint64) Option {
	return func(o *options) { o.node.ShardCount = n }
}

// WithBackend bypasses the built-in audio node client and drives the
// given backend instead.
func WithBackend(b backend.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithGateway attaches the platform gateway used by Join and Leave.
// Without one, voice events must be fed in through RawVoiceStateUpdate and
// RawVoiceServerUpdate.
func WithGateway(g gateway.Gateway) Option {
	return func(o *options) { o.gw = g }
}

// WithHandler registers the event handler. See [Handler] for the dispatch
// contract.
func WithHandler(h Handler) Option {
	return func(o *options) { o.handler = h }
}

// WithMeterProvider sets the OpenTelemetry meter provider backing the
// client's instruments. Defaults to the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// WithConnectionWaitBudget sets how many unrelated guild voice events a
// connection info wait tolerates before giving up with
// [voice.ErrTimeout]. Defaults to [voice.DefaultMaxEvents].
func WithConnectionWaitBudget(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.waitEvents = n
		}
	}
}

// NewClient builds a Client and starts its event dispatch. Unless
// [WithBackend] overrides it, the audio node configured through
// [WithNode], [WithTLS], [WithBotID] and [WithShardCount] is dialed here.
// Shut the client down with [Client.Close].
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	o := options{waitEvents: voice.DefaultMaxEvents}
	o.node.ShardCount = 1
	for _, opt := range opts {
		opt(&o)
	}

	metrics := observe.DefaultMetrics()
	if o.meterProvider != nil {
		var err error
		if metrics, err = observe.NewMetrics(o.meterProvider); err != nil {
			return nil, err
		}
	}

	be := o.backend
	if be == nil {
		var err error
		if be, err = lavalink.Connect(ctx, o.node); err != nil {
			return nil, err
		}
	}

	c := &Client{
		backend:    be,
		gw:         o.gw,
		assembler:  voice.NewAssembler(),
		registry:   player.NewRegistry(),
		loops:      newLoopSet(),
		metrics:    metrics,
		waitEvents: o.waitEvents,
	}
	c.dispatcher = newDispatcher(c, o.handler, metrics)
	go c.dispatcher.run(be.Events())
	return c, nil
}
