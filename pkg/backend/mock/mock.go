// Package mock provides an in-memory recording implementation of
// [backend.Backend] for unit tests.
//
// The mock records every command so tests can assert on call counts and
// arguments, exposes Err fields to inject failures, and lets tests push
// server events through [Backend.Emit].
//
// Typical usage:
//
//	be := mock.NewBackend()
//	be.PlayErr = &backend.NetworkError{Op: "play", Err: io.ErrClosedPipe}
//	client := ripple.NewClient(..., ripple.WithBackend(be))
//	be.Emit(backend.TrackFinish{GuildID: 1, Track: "abc", Reason: "FINISHED"})
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/driftvale/ripple/pkg/backend"
	"github.com/driftvale/ripple/pkg/player"
	"github.com/driftvale/ripple/pkg/types"
	"github.com/driftvale/ripple/pkg/voice"
)

// PlayCall records one Play invocation.
type PlayCall struct {
	GuildID types.GuildID
	Track   string
	Opts    backend.PlayOptions
}

// PauseCall records one SetPause invocation.
type PauseCall struct {
	GuildID types.GuildID
	Pause   bool
}

// SeekCall records one Seek invocation.
type SeekCall struct {
	GuildID  types.GuildID
	Position time.Duration
}

// VolumeCall records one SetVolume invocation.
type VolumeCall struct {
	GuildID types.GuildID
	Volume  uint16
}

// EqualizeCall records one Equalize invocation.
type EqualizeCall struct {
	GuildID types.GuildID
	Bands   []player.Band
}

// Backend is a mock implementation of [backend.Backend].
// Set the exported Err fields before use; inspect the call records after.
type Backend struct {
	mu sync.Mutex

	// Errors returned by the corresponding methods. CreateSession always
	// validates the descriptor first, like the real implementation.
	CreateSessionErr error
	DestroyErr       error
	PlayErr          error
	StopErr          error
	SetPauseErr      error
	SeekErr          error
	SetVolumeErr     error
	EqualizeErr      error

	CreateSessionCalls []voice.ConnectionInfo
	DestroyCalls       []types.GuildID
	PlayCalls          []PlayCall
	StopCalls          []types.GuildID
	SetPauseCalls      []PauseCall
	SeekCalls          []SeekCall
	SetVolumeCalls     []VolumeCall
	EqualizeCalls      []EqualizeCall

	events    chan backend.Event
	closeOnce sync.Once
}

// NewBackend creates a mock with a buffered event channel.
func NewBackend() *Backend {
	return &Backend{events: make(chan backend.Event, 64)}
}

// Emit pushes a server event onto the event stream.
func (b *Backend) Emit(ev backend.Event) {
	b.events <- ev
}

// CreateSession implements [backend.Backend].
func (b *Backend) CreateSession(_ context.Context, ci voice.ConnectionInfo) error {
	if err := backend.ValidateConnectionInfo(ci); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CreateSessionCalls = append(b.CreateSessionCalls, ci)
	return b.CreateSessionErr
}

// Destroy implements [backend.Backend].
func (b *Backend) Destroy(_ context.Context, guildID types.GuildID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.DestroyCalls = append(b.DestroyCalls, guildID)
	return b.DestroyErr
}

// Play implements [backend.Backend].
func (b *Backend) Play(_ context.Context, guildID types.GuildID, track string, opts backend.PlayOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.PlayCalls = append(b.PlayCalls, PlayCall{GuildID: guildID, Track: track, Opts: opts})
	return b.PlayErr
}

// Stop implements [backend.Backend].
func (b *Backend) Stop(_ context.Context, guildID types.GuildID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.StopCalls = append(b.StopCalls, guildID)
	return b.StopErr
}

// SetPause implements [backend.Backend].
func (b *Backend) SetPause(_ context.Context, guildID types.GuildID, pause bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.SetPauseCalls = append(b.SetPauseCalls, PauseCall{GuildID: guildID, Pause: pause})
	return b.SetPauseErr
}

// Seek implements [backend.Backend].
func (b *Backend) Seek(_ context.Context, guildID types.GuildID, position time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.SeekCalls = append(b.SeekCalls, SeekCall{GuildID: guildID, Position: position})
	return b.SeekErr
}

// SetVolume implements [backend.Backend].
func (b *Backend) SetVolume(_ context.Context, guildID types.GuildID, volume uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.SetVolumeCalls = append(b.SetVolumeCalls, VolumeCall{GuildID: guildID, Volume: volume})
	return b.SetVolumeErr
}

// Equalize implements [backend.Backend].
func (b *Backend) Equalize(_ context.Context, guildID types.GuildID, bands []player.Band) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.EqualizeCalls = append(b.EqualizeCalls, EqualizeCall{GuildID: guildID, Bands: bands})
	return b.EqualizeErr
}

// Events implements [backend.Backend].
func (b *Backend) Events() <-chan backend.Event { return b.events }

// Close implements [backend.Backend]. Closes the event stream.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() { close(b.events) })
	return nil
}

// PlayCount returns the number of recorded Play calls.
func (b *Backend) PlayCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.PlayCalls)
}

// LastPlay returns the most recent Play call, or (zero, false) if none.
func (b *Backend) LastPlay() (PlayCall, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.PlayCalls) == 0 {
		return PlayCall{}, false
	}
	return b.PlayCalls[len(b.PlayCalls)-1], true
}
