package ripple

import (
	"context"

	"github.com/driftvale/ripple/pkg/backend"
)

// Handler is the event sink passed to [WithHandler]. It is a plain value;
// the dispatcher discovers which events it wants by checking, per event,
// whether it implements the matching single-method interface below. A
// handler implementing none of them is valid and receives nothing.
//
// Handler methods for different guilds run concurrently; methods for the
// same guild run one at a time, in arrival order. A panic inside a method
// is recovered and logged without disturbing other guilds' streams.
type Handler any

// StatsHandler receives the audio node's periodic statistics pushes.
type StatsHandler interface {
	OnStats(ctx context.Context, c *Client, ev backend.Stats)
}

// PlayerUpdateHandler receives per-guild playback position updates.
type PlayerUpdateHandler interface {
	OnPlayerUpdate(ctx context.Context, c *Client, ev backend.PlayerUpdate)
}

// TrackStartHandler receives track start notifications.
type TrackStartHandler interface {
	OnTrackStart(ctx context.Context, c *Client, ev backend.TrackStart)
}

// TrackFinishHandler receives track end notifications.
type TrackFinishHandler interface {
	OnTrackFinish(ctx context.Context, c *Client, ev backend.TrackFinish)
}

// TrackExceptionHandler receives playback error notifications.
type TrackExceptionHandler interface {
	OnTrackException(ctx context.Context, c *Client, ev backend.TrackException)
}

// TrackStuckHandler receives stuck track notifications.
type TrackStuckHandler interface {
	OnTrackStuck(ctx context.Context, c *Client, ev backend.TrackStuck)
}

// WebSocketClosedHandler receives notifications that the audio node's voice
// websocket to the platform closed.
type WebSocketClosedHandler interface {
	OnWebSocketClosed(ctx context.Context, c *Client, ev backend.WebSocketClosed)
}

// PlayerDestroyedHandler receives player teardown notifications.
type PlayerDestroyedHandler interface {
	OnPlayerDestroyed(ctx context.Context, c *Client, ev backend.PlayerDestroyed)
}
