package ripple

import (
	"context"
	"log/slog"
	"sync"

	"github.com/driftvale/ripple/internal/observe"
	"github.com/driftvale/ripple/pkg/backend"
	"github.com/driftvale/ripple/pkg/types"
)

// dispatcher fans the backend's event stream out to per-guild queues. One
// drain goroutine per guild with pending events keeps delivery ordered
// within a guild while guilds never block each other; the queues are
// unbounded so a slow handler cannot stall the pump either.
type dispatcher struct {
	client  *Client
	handler Handler
	metrics *observe.Metrics

	mu       sync.Mutex
	queues   map[types.GuildID][]backend.Event
	draining map[types.GuildID]bool

	wg   sync.WaitGroup
	done chan struct{}
}

func newDispatcher(c *Client, handler Handler, metrics *observe.Metrics) *dispatcher {
	return &dispatcher{
		client:   c,
		handler:  handler,
		metrics:  metrics,
		queues:   make(map[types.GuildID][]backend.Event),
		draining: make(map[types.GuildID]bool),
		done:     make(chan struct{}),
	}
}

// run pumps events until the channel closes, then waits for every guild
// queue to drain.
func (d *dispatcher) run(events <-chan backend.Event) {
	defer close(d.done)
	for ev := range events {
		d.enqueue(ev)
	}
	d.wg.Wait()
}

// wait blocks until run has returned and all queued events were delivered.
func (d *dispatcher) wait() {
	<-d.done
}

func (d *dispatcher) enqueue(ev backend.Event) {
	gid := eventGuild(ev)

	d.mu.Lock()
	d.queues[gid] = append(d.queues[gid], ev)
	if !d.draining[gid] {
		d.draining[gid] = true
		d.wg.Add(1)
		go d.drain(gid)
	}
	d.mu.Unlock()
}

func (d *dispatcher) drain(gid types.GuildID) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[gid]
		if len(q) == 0 {
			d.draining[gid] = false
			delete(d.queues, gid)
			d.mu.Unlock()
			return
		}
		ev := q[0]
		d.queues[gid] = q[1:]
		d.mu.Unlock()

		d.deliver(ev)
	}
}

// deliver runs the coordinator's own bookkeeping for the event, then the
// user handler. Both happen inside the guild's drain goroutine so the
// per-guild ordering covers them.
func (d *dispatcher) deliver(ev backend.Event) {
	ctx := context.Background()
	d.client.handleInternal(ctx, ev)
	d.invokeHandler(ctx, ev)
}

func (d *dispatcher) invokeHandler(ctx context.Context, ev backend.Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("ripple: event handler panicked",
				"event", ev.EventName(), "panic", r)
			d.metrics.RecordHandlerPanic(ctx, ev.EventName())
		}
	}()

	handled := false
	switch e := ev.(type) {
	case backend.Stats:
		if h, ok := d.handler.(StatsHandler); ok {
			h.OnStats(ctx, d.client, e)
			handled = true
		}
	case backend.PlayerUpdate:
		if h, ok := d.handler.(PlayerUpdateHandler); ok {
			h.OnPlayerUpdate(ctx, d.client, e)
			handled = true
		}
	case backend.TrackStart:
		if h, ok := d.handler.(TrackStartHandler); ok {
			h.OnTrackStart(ctx, d.client, e)
			handled = true
		}
	case backend.TrackFinish:
		if h, ok := d.handler.(TrackFinishHandler); ok {
			h.OnTrackFinish(ctx, d.client, e)
			handled = true
		}
	case backend.TrackException:
		if h, ok := d.handler.(TrackExceptionHandler); ok {
			h.OnTrackException(ctx, d.client, e)
			handled = true
		}
	case backend.TrackStuck:
		if h, ok := d.handler.(TrackStuckHandler); ok {
			h.OnTrackStuck(ctx, d.client, e)
			handled = true
		}
	case backend.WebSocketClosed:
		if h, ok := d.handler.(WebSocketClosedHandler); ok {
			h.OnWebSocketClosed(ctx, d.client, e)
			handled = true
		}
	case backend.PlayerDestroyed:
		if h, ok := d.handler.(PlayerDestroyedHandler); ok {
			h.OnPlayerDestroyed(ctx, d.client, e)
			handled = true
		}
	default:
		slog.Warn("ripple: event with no dispatch route", "event", ev.EventName())
		d.metrics.UndefinedEvents.Add(ctx, 1)
		return
	}

	if handled {
		d.metrics.RecordEventDispatched(ctx, ev.EventName())
		return
	}
	// Not an error: a handler is free to ignore event kinds.
	slog.Debug("ripple: no handler method for event", "event", ev.EventName())
	d.metrics.UndefinedEvents.Add(ctx, 1)
}

// eventGuild picks the ordering key for an event. Node-global events share
// the zero key.
func eventGuild(ev backend.Event) types.GuildID {
	switch e := ev.(type) {
	case backend.PlayerUpdate:
		return e.GuildID
	case backend.TrackStart:
		return e.GuildID
	case backend.TrackFinish:
		return e.GuildID
	case backend.TrackException:
		return e.GuildID
	case backend.TrackStuck:
		return e.GuildID
	case backend.WebSocketClosed:
		return e.GuildID
	case backend.PlayerDestroyed:
		return e.GuildID
	default:
		return 0
	}
}
