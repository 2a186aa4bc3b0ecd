// Package voice assembles voice-gateway handshake events into complete
// connection descriptors.
//
// A usable voice connection needs data from two independent gateway events
// that may arrive in either order, or not at all: VOICE_STATE_UPDATE carries
// the session ID and channel, VOICE_SERVER_UPDATE carries the endpoint and
// token. The [Assembler] merges them per guild and lets callers wait for a
// descriptor to become complete, or to be removed, with an event-count
// bounded timeout.
//
// The timeout is deliberately an event-count bound rather than a wall-clock
// bound: slow but steady event delivery never produces a false timeout, while
// a guild that will never complete (no permission, deleted channel) still
// terminates the wait after a bounded number of ingestions.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/driftvale/ripple/pkg/types"
)

// DefaultMaxEvents is the number of relevant ingestions a wait observes
// before giving up, when the caller passes a non-positive bound.
const DefaultMaxEvents = 10

// ErrTimeout is returned when a wait's event-count budget is exhausted
// before the descriptor completes (or is removed).
var ErrTimeout = errors.New("event count exceeded")

// ConnectionInfo is the assembled descriptor needed to establish a voice
// session. It is complete once all five fields are populated.
type ConnectionInfo struct {
	GuildID   types.GuildID
	ChannelID types.ChannelID
	Endpoint  string
	Token     string
	SessionID string
}

// Complete reports whether every field required to create a session is set.
func (ci ConnectionInfo) Complete() bool {
	return ci.GuildID != 0 &&
		ci.ChannelID != 0 &&
		ci.Endpoint != "" &&
		ci.Token != "" &&
		ci.SessionID != ""
}

// Assembler merges raw voice-gateway events into per-guild connection
// descriptors. All methods are safe for concurrent use.
type Assembler struct {
	mu      sync.Mutex
	conns   map[types.GuildID]ConnectionInfo
	waiters map[types.GuildID]chan struct{}
}

// NewAssembler creates an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		conns:   make(map[types.GuildID]ConnectionInfo),
		waiters: make(map[types.GuildID]chan struct{}),
	}
}

// HandleVoiceStateUpdate ingests a raw VOICE_STATE_UPDATE for the bot user.
// A zero channelID means the bot left (or was moved out of) the voice
// channel; the in-progress descriptor is dropped and removal waiters wake.
// Otherwise the session ID and channel are upserted into the guild's
// descriptor, creating it on first contact.
func (a *Assembler) HandleVoiceStateUpdate(guildID types.GuildID, userID types.UserID, sessionID string, channelID types.ChannelID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if channelID == 0 {
		delete(a.conns, guildID)
		slog.Debug("voice: state update signalled disconnect", "guild_id", guildID, "user_id", userID)
		a.notify(guildID)
		return
	}

	ci := a.conns[guildID]
	ci.GuildID = guildID
	ci.ChannelID = channelID
	ci.SessionID = sessionID
	a.conns[guildID] = ci
	a.notify(guildID)
}

// HandleVoiceServerUpdate ingests a raw VOICE_SERVER_UPDATE, upserting the
// endpoint and token into the guild's descriptor.
func (a *Assembler) HandleVoiceServerUpdate(guildID types.GuildID, endpoint, token string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	ci := a.conns[guildID]
	ci.GuildID = guildID
	ci.Endpoint = endpoint
	ci.Token = token
	a.conns[guildID] = ci
	a.notify(guildID)
}

// Get returns the guild's current descriptor, complete or not.
func (a *Assembler) Get(guildID types.GuildID) (ConnectionInfo, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ci, ok := a.conns[guildID]
	return ci, ok
}

// Remove deletes the guild's descriptor and wakes removal waiters.
// Removing a guild that has no descriptor is a no-op.
func (a *Assembler) Remove(guildID types.GuildID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conns, guildID)
	a.notify(guildID)
}

// WaitForFullInfo blocks until the guild's descriptor is complete and
// returns it. If the descriptor is already complete it returns immediately
// without consuming any budget. Otherwise each relevant ingestion for the
// guild consumes one unit of maxEvents; when the budget runs out the wait
// fails with [ErrTimeout]. A non-positive maxEvents uses [DefaultMaxEvents].
func (a *Assembler) WaitForFullInfo(ctx context.Context, guildID types.GuildID, maxEvents int) (ConnectionInfo, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	for remaining := maxEvents; ; remaining-- {
		a.mu.Lock()
		if ci, ok := a.conns[guildID]; ok && ci.Complete() {
			a.mu.Unlock()
			return ci, nil
		}
		if remaining == 0 {
			a.mu.Unlock()
			return ConnectionInfo{}, fmt.Errorf("voice: wait for connection info on guild %d: %w", guildID, ErrTimeout)
		}
		ch := a.waitCh(guildID)
		a.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ConnectionInfo{}, fmt.Errorf("voice: wait for connection info on guild %d: %w", guildID, ctx.Err())
		}
	}
}

// WaitForRemoval blocks until the guild's descriptor is removed, with the
// same event-count budget policy as [Assembler.WaitForFullInfo]. It returns
// immediately if no descriptor exists.
func (a *Assembler) WaitForRemoval(ctx context.Context, guildID types.GuildID, maxEvents int) error {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}

	for remaining := maxEvents; ; remaining-- {
		a.mu.Lock()
		if _, ok := a.conns[guildID]; !ok {
			a.mu.Unlock()
			return nil
		}
		if remaining == 0 {
			a.mu.Unlock()
			return fmt.Errorf("voice: wait for connection info removal on guild %d: %w", guildID, ErrTimeout)
		}
		ch := a.waitCh(guildID)
		a.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return fmt.Errorf("voice: wait for connection info removal on guild %d: %w", guildID, ctx.Err())
		}
	}
}

// waitCh returns the channel that the next relevant event for guildID will
// close. Caller must hold a.mu.
func (a *Assembler) waitCh(guildID types.GuildID) chan struct{} {
	ch, ok := a.waiters[guildID]
	if !ok {
		ch = make(chan struct{})
		a.waiters[guildID] = ch
	}
	return ch
}

// notify wakes every waiter currently parked on guildID by closing the
// guild's wait channel. Caller must hold a.mu.
func (a *Assembler) notify(guildID types.GuildID) {
	if ch, ok := a.waiters[guildID]; ok {
		close(ch)
		delete(a.waiters, guildID)
	}
}
