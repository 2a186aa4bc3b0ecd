// Package backend defines the boundary to the audio backend: the external
// system that holds the actual players, streams audio into voice channels,
// and pushes playback events back.
//
// The two abstractions are:
//
//   - [Backend] — accepts per-guild playback commands (create/destroy
//     session, play, stop, pause, seek, volume, equalizer).
//   - [Event] — the typed stream of server-pushed notifications delivered
//     through [Backend.Events].
//
// The encoded track handle is an opaque string minted and consumed entirely
// by the backend; this package never interprets it. A production
// implementation speaking the Lavalink v3 protocol lives in
// backend/lavalink; a recording in-memory implementation for tests lives in
// backend/mock.
package backend

import (
	"context"
	"time"

	"github.com/driftvale/ripple/pkg/player"
	"github.com/driftvale/ripple/pkg/types"
	"github.com/driftvale/ripple/pkg/voice"
)

// PlayOptions carries the optional parameters of a play command.
type PlayOptions struct {
	// StartTime is the offset playback begins at.
	StartTime time.Duration

	// EndTime is the offset playback stops at. Zero means play to the
	// track's natural end and is omitted from the wire request.
	EndTime time.Duration

	// NoReplace tells the backend to ignore the command if a track is
	// already playing, instead of replacing it.
	NoReplace bool

	// Pause starts the player in a paused state.
	Pause bool
}

// Backend is the command surface of the audio backend. Implementations must
// be safe for concurrent use; every method that talks to the backend
// honours ctx for cancellation.
type Backend interface {
	// CreateSession hands a completed voice connection descriptor to the
	// backend so it can open the guild's player. Returns a
	// [*MissingFieldError] if ci is incomplete.
	CreateSession(ctx context.Context, ci voice.ConnectionInfo) error

	// Destroy tears down the guild's player on the backend.
	Destroy(ctx context.Context, guildID types.GuildID) error

	// Play starts the encoded track on the guild's player.
	Play(ctx context.Context, guildID types.GuildID, track string, opts PlayOptions) error

	// Stop halts the guild's player without destroying it.
	Stop(ctx context.Context, guildID types.GuildID) error

	// SetPause pauses or resumes the guild's player.
	SetPause(ctx context.Context, guildID types.GuildID, pause bool) error

	// Seek jumps to a position in the currently playing track.
	Seek(ctx context.Context, guildID types.GuildID, position time.Duration) error

	// SetVolume sets the player volume, 0 to 1000.
	SetVolume(ctx context.Context, guildID types.GuildID, volume uint16) error

	// Equalize applies gain adjustments to the given bands. Unmentioned
	// bands are left as they are.
	Equalize(ctx context.Context, guildID types.GuildID, bands []player.Band) error

	// Events returns the stream of server-pushed events. The channel is
	// closed when the backend connection terminates. Per-guild emission
	// order is preserved.
	Events() <-chan Event

	// Close releases the backend connection. Safe to call more than once.
	Close() error
}

// ValidateConnectionInfo checks that every field required by CreateSession
// is populated, returning a [*MissingFieldError] naming the first absent
// field.
func ValidateConnectionInfo(ci voice.ConnectionInfo) error {
	switch {
	case ci.GuildID == 0:
		return &MissingFieldError{Field: "guild_id"}
	case ci.ChannelID == 0:
		return &MissingFieldError{Field: "channel_id"}
	case ci.SessionID == "":
		return &MissingFieldError{Field: "session_id"}
	case ci.Endpoint == "":
		return &MissingFieldError{Field: "endpoint"}
	case ci.Token == "":
		return &MissingFieldError{Field: "token"}
	}
	return nil
}
