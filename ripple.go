// Package ripple coordinates guild voice sessions for a chat-platform
// music bot. It assembles the platform's raw voice dispatches into
// connection descriptors, drives an external audio node over
// [backend.Backend], keeps per-guild player state in a snapshot registry,
// auto-advances track queues, and fans node events out to user handlers
// with per-guild ordering.
//
// Construct a [Client] with [NewClient] and the With* options; see the
// cmd/ripple-bot program for end-to-end usage.
package ripple

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/driftvale/ripple/internal/observe"
	"github.com/driftvale/ripple/pkg/backend"
	"github.com/driftvale/ripple/pkg/gateway"
	"github.com/driftvale/ripple/pkg/player"
	"github.com/driftvale/ripple/pkg/types"
	"github.com/driftvale/ripple/pkg/voice"
)

// Client is the session coordinator facade. All methods are safe for
// concurrent use.
type Client struct {
	backend    backend.Backend
	gw         gateway.Gateway
	assembler  *voice.Assembler
	registry   *player.Registry
	loops      *loopSet
	dispatcher *dispatcher
	metrics    *observe.Metrics
	waitEvents int

	closeOnce sync.Once
	closeErr  error
}

// Close stops all queue loops, closes the audio node connection, and waits
// for in-flight event deliveries to finish.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if n := c.loops.stopAll(); n > 0 {
			c.metrics.ActiveLoops.Add(context.Background(), int64(-n))
		}
		c.closeErr = c.backend.Close()
		c.dispatcher.wait()
	})
	return c.closeErr
}

// handleInternal runs the coordinator's own reaction to a node event
// before the user handler sees it.
func (c *Client) handleInternal(ctx context.Context, ev backend.Event) {
	switch e := ev.(type) {
	case backend.TrackFinish:
		c.notifyFinish(e)
	case backend.Stats:
		c.metrics.NodePlayers.Record(ctx, e.Players)
		c.metrics.NodePlayingPlayers.Record(ctx, e.PlayingPlayers)
		c.metrics.NodeCPULoad.Record(ctx, e.CPU.ProcessLoad)
	}
}

// ---- voice channel membership ----

// Join asks the platform gateway to connect the bot to the voice channel
// and waits for the full connection descriptor to assemble. The wait gives
// up with [voice.ErrTimeout] after the client's event budget is spent.
func (c *Client) Join(ctx context.Context, guildID types.GuildID, channelID types.ChannelID, selfDeaf bool) (voice.ConnectionInfo, error) {
	if c.gw == nil {
		return voice.ConnectionInfo{}, ErrNoGateway
	}
	if err := c.gw.JoinVoiceChannel(ctx, guildID, channelID, selfDeaf); err != nil {
		return voice.ConnectionInfo{}, err
	}
	return c.assembler.WaitForFullInfo(ctx, guildID, c.waitEvents)
}

// Leave asks the platform gateway to disconnect the bot from the guild's
// voice channel and waits for the descriptor to be dropped.
func (c *Client) Leave(ctx context.Context, guildID types.GuildID) error {
	if c.gw == nil {
		return ErrNoGateway
	}
	if err := c.gw.LeaveVoiceChannel(ctx, guildID); err != nil {
		return err
	}
	return c.assembler.WaitForRemoval(ctx, guildID, c.waitEvents)
}

// ---- raw voice event ingestion ----

// RawVoiceStateUpdate feeds a platform VOICE_STATE_UPDATE for the bot user
// into the connection assembler. Bots not using the bundled gateway
// adapter call this from their own event handler.
func (c *Client) RawVoiceStateUpdate(guildID types.GuildID, userID types.UserID, sessionID string, channelID types.ChannelID) {
	c.assembler.HandleVoiceStateUpdate(guildID, userID, sessionID, channelID)
}

// RawVoiceServerUpdate feeds a platform VOICE_SERVER_UPDATE into the
// connection assembler.
func (c *Client) RawVoiceServerUpdate(guildID types.GuildID, endpoint, token string) {
	c.assembler.HandleVoiceServerUpdate(guildID, endpoint, token)
}

// GetGuildGatewayConnectionInfo returns the guild's current connection
// descriptor, complete or not.
func (c *Client) GetGuildGatewayConnectionInfo(guildID types.GuildID) (voice.ConnectionInfo, bool) {
	return c.assembler.Get(guildID)
}

// WaitForFullConnectionInfo blocks until the guild's connection descriptor
// is complete, the client's event budget is spent ([voice.ErrTimeout]), or
// ctx is done.
func (c *Client) WaitForFullConnectionInfo(ctx context.Context, guildID types.GuildID) (voice.ConnectionInfo, error) {
	return c.assembler.WaitForFullInfo(ctx, guildID, c.waitEvents)
}

// WaitForConnectionInfoRemove blocks until the guild has no connection
// descriptor, under the same budget rules as WaitForFullConnectionInfo.
func (c *Client) WaitForConnectionInfoRemove(ctx context.Context, guildID types.GuildID) error {
	return c.assembler.WaitForRemoval(ctx, guildID, c.waitEvents)
}

// ---- session lifecycle ----

// CreateSession forwards the assembled connection descriptor to the audio
// node so it can open the guild's player, and ensures a node entry exists
// in the registry. An existing entry keeps its state.
func (c *Client) CreateSession(ctx context.Context, ci voice.ConnectionInfo) error {
	if err := c.backend.CreateSession(ctx, ci); err != nil {
		return err
	}
	if _, ok := c.registry.Get(ci.GuildID); !ok {
		c.registry.Insert(ci.GuildID, player.NewNode(ci.GuildID))
	}
	c.metrics.ActiveSessions.Add(ctx, 1)
	return nil
}

// DestroySession tells the audio node to tear down the guild's player. The
// registry entry survives so queued state can be inspected afterwards;
// remove it with [Client.RemoveGuildNode] when done.
func (c *Client) DestroySession(ctx context.Context, guildID types.GuildID) error {
	if err := c.backend.Destroy(ctx, guildID); err != nil {
		return err
	}
	c.metrics.ActiveSessions.Add(ctx, -1)
	return nil
}

// ---- node registry access ----

// GetGuildNode returns a snapshot of the guild's player node.
func (c *Client) GetGuildNode(guildID types.GuildID) (*player.Node, bool) {
	return c.registry.Get(guildID)
}

// SetGuildNode stores a snapshot of n as the guild's player node.
func (c *Client) SetGuildNode(guildID types.GuildID, n *player.Node) {
	c.registry.Insert(guildID, n)
}

// RemoveGuildNode drops the guild's player node. A running queue loop is
// unaffected; it idles until a node reappears.
func (c *Client) RemoveGuildNode(guildID types.GuildID) {
	c.registry.Remove(guildID)
}

// ---- playback control ----

// Skip pops the head of the guild's queue and returns it. When another
// entry follows it starts immediately; when the queue empties the current
// track keeps playing to its natural end. Without a node or with an empty
// queue Skip returns (nil, nil).
func (c *Client) Skip(ctx context.Context, guildID types.GuildID) (*player.TrackQueue, error) {
	node, ok := c.registry.Get(guildID)
	if !ok || len(node.Queue) == 0 {
		return nil, nil
	}

	skipped := node.Queue[0]
	node.Queue = node.Queue[1:]

	if len(node.Queue) == 0 {
		c.registry.Insert(guildID, node)
		return &skipped, nil
	}

	next := node.Queue[0]
	node.NowPlaying = &next
	c.registry.Insert(guildID, node)
	if err := c.backend.Play(ctx, guildID, next.Track.Encoded, playOptionsFor(next, true)); err != nil {
		return &skipped, err
	}
	c.metrics.RecordPlayCommand(ctx, "queue")
	return &skipped, nil
}

// Stop halts playback in the guild without touching its queue or loop.
func (c *Client) Stop(ctx context.Context, guildID types.GuildID) error {
	if _, err := c.requireNode(guildID); err != nil {
		return err
	}
	return c.backend.Stop(ctx, guildID)
}

// SetPause pauses or resumes playback in the guild.
func (c *Client) SetPause(ctx context.Context, guildID types.GuildID, pause bool) error {
	node, err := c.requireNode(guildID)
	if err != nil {
		return err
	}
	if err := c.backend.SetPause(ctx, guildID, pause); err != nil {
		return err
	}
	node.IsPaused = pause
	c.registry.Insert(guildID, node)
	return nil
}

// Pause pauses playback in the guild.
func (c *Client) Pause(ctx context.Context, guildID types.GuildID) error {
	return c.SetPause(ctx, guildID, true)
}

// Resume resumes paused playback in the guild.
func (c *Client) Resume(ctx context.Context, guildID types.GuildID) error {
	return c.SetPause(ctx, guildID, false)
}

// Seek jumps to the given position in the currently playing track.
func (c *Client) Seek(ctx context.Context, guildID types.GuildID, position time.Duration) error {
	if _, err := c.requireNode(guildID); err != nil {
		return err
	}
	return c.backend.Seek(ctx, guildID, position)
}

// SeekSecs jumps to the given position in whole seconds.
func (c *Client) SeekSecs(ctx context.Context, guildID types.GuildID, secs uint64) error {
	return c.Seek(ctx, guildID, time.Duration(secs)*time.Second)
}

// SeekMillis jumps to the given position in milliseconds.
func (c *Client) SeekMillis(ctx context.Context, guildID types.GuildID, ms uint64) error {
	return c.Seek(ctx, guildID, time.Duration(ms)*time.Millisecond)
}

// Volume sets the guild's playback volume. Values above
// [player.MaxVolume] are clamped; [player.DefaultVolume] is the node
// default.
func (c *Client) Volume(ctx context.Context, guildID types.GuildID, volume uint16) error {
	node, err := c.requireNode(guildID)
	if err != nil {
		return err
	}
	if volume > player.MaxVolume {
		volume = player.MaxVolume
	}
	if err := c.backend.SetVolume(ctx, guildID, volume); err != nil {
		return err
	}
	node.Volume = volume
	c.registry.Insert(guildID, node)
	return nil
}

// ---- equalizer ----

// EqualizeAll applies a gain to every equalizer band. Gains run from
// [player.GainMin] to [player.GainMax]; zero is neutral.
func (c *Client) EqualizeAll(ctx context.Context, guildID types.GuildID, gains [player.NumBands]float64) error {
	bands := make([]player.Band, player.NumBands)
	for i := range gains {
		bands[i] = player.Band{Band: uint8(i), Gain: gains[i]}
	}
	return c.EqualizeDynamic(ctx, guildID, bands)
}

// EqualizeDynamic applies gains to an arbitrary subset of bands, leaving
// the rest untouched.
func (c *Client) EqualizeDynamic(ctx context.Context, guildID types.GuildID, bands []player.Band) error {
	node, err := c.requireNode(guildID)
	if err != nil {
		return err
	}
	if err := c.backend.Equalize(ctx, guildID, bands); err != nil {
		return err
	}
	for _, b := range bands {
		if int(b.Band) < player.NumBands {
			node.Bands[b.Band] = b.Gain
		}
	}
	c.registry.Insert(guildID, node)
	return nil
}

// EqualizeBand applies a single band's gain.
func (c *Client) EqualizeBand(ctx context.Context, guildID types.GuildID, band player.Band) error {
	return c.EqualizeDynamic(ctx, guildID, []player.Band{band})
}

// EqualizeReset returns every band to neutral gain.
func (c *Client) EqualizeReset(ctx context.Context, guildID types.GuildID) error {
	return c.EqualizeAll(ctx, guildID, [player.NumBands]float64{})
}

func (c *Client) requireNode(guildID types.GuildID) (*player.Node, error) {
	node, ok := c.registry.Get(guildID)
	if !ok {
		return nil, fmt.Errorf("guild %s: %w", guildID, ErrNoSession)
	}
	return node, nil
}
