package backend

import (
	"time"

	"github.com/driftvale/ripple/pkg/types"
)

// Event is a server-pushed notification from the audio backend. The
// concrete types are [Stats], [PlayerUpdate], [TrackStart], [TrackFinish],
// [TrackException], [TrackStuck], [WebSocketClosed], and [PlayerDestroyed].
type Event interface {
	// EventName returns the canonical snake_case event name used in logs
	// and metrics.
	EventName() string
}

// Stats is the backend's periodic server-wide statistics report. It is not
// scoped to a guild.
type Stats struct {
	Players        int64
	PlayingPlayers int64
	Uptime         time.Duration

	Memory     MemoryStats
	CPU        CPUStats
	FrameStats *FrameStats
}

// MemoryStats reports the backend process's memory usage in bytes.
type MemoryStats struct {
	Free       int64
	Used       int64
	Allocated  int64
	Reservable int64
}

// CPUStats reports the backend host's CPU usage.
type CPUStats struct {
	Cores       int64
	SystemLoad  float64
	ProcessLoad float64
}

// FrameStats reports audio frame delivery counts. Absent on nodes that do
// not track frames.
type FrameStats struct {
	Sent    int64
	Nulled  int64
	Deficit int64
}

func (Stats) EventName() string { return "stats" }

// PlayerUpdate reports the guild player's playback position.
type PlayerUpdate struct {
	GuildID types.GuildID

	// Time is the backend's clock when the position was sampled.
	Time time.Time

	// Position is the playback offset into the current track.
	Position time.Duration
}

func (PlayerUpdate) EventName() string { return "player_update" }

// TrackStart signals that a track began playing on a guild's player.
type TrackStart struct {
	GuildID types.GuildID

	// Track is the opaque encoded handle of the started track.
	Track string
}

func (TrackStart) EventName() string { return "track_start" }

// TrackFinish signals that a track stopped playing, for any reason.
type TrackFinish struct {
	GuildID types.GuildID
	Track   string

	// Reason is the backend's end reason, e.g. "FINISHED" or "REPLACED".
	Reason string
}

func (TrackFinish) EventName() string { return "track_finish" }

// TrackException signals that the backend hit an error while playing a
// track.
type TrackException struct {
	GuildID types.GuildID
	Track   string

	// Error is the backend's error message.
	Error string

	Severity string
	Cause    string
}

func (TrackException) EventName() string { return "track_exception" }

// TrackStuck signals that a track produced no audio frames for longer than
// the backend's threshold.
type TrackStuck struct {
	GuildID   types.GuildID
	Track     string
	Threshold time.Duration
}

func (TrackStuck) EventName() string { return "track_stuck" }

// WebSocketClosed signals that the backend's voice websocket to the
// platform closed.
type WebSocketClosed struct {
	GuildID  types.GuildID
	Code     int
	Reason   string
	ByRemote bool
}

func (WebSocketClosed) EventName() string { return "websocket_closed" }

// PlayerDestroyed signals that the guild's player was destroyed on the
// backend.
type PlayerDestroyed struct {
	GuildID types.GuildID

	// Cleanup reports whether the backend destroyed the player itself
	// (e.g. after a stale session) rather than in response to a destroy
	// command.
	Cleanup bool
}

func (PlayerDestroyed) EventName() string { return "player_destroyed" }
