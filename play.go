package ripple

import (
	"context"
	"time"

	"github.com/driftvale/ripple/pkg/backend"
	"github.com/driftvale/ripple/pkg/player"
	"github.com/driftvale/ripple/pkg/types"
)

// PlayParams accumulates the optional parameters of a play request. Obtain
// one from [Client.Play], chain setters, then call either [PlayParams.Start]
// to play immediately or [PlayParams.Queue] to append to the guild's queue
// under loop control.
type PlayParams struct {
	c         *Client
	guildID   types.GuildID
	track     player.Track
	requester types.UserID
	replace   bool
	start     time.Duration
	finish    time.Duration
}

// Play begins a play request for an already resolved track.
func (c *Client) Play(guildID types.GuildID, track player.Track) *PlayParams {
	return &PlayParams{c: c, guildID: guildID, track: track}
}

// Requester records which user asked for the track.
func (p *PlayParams) Requester(id types.UserID) *PlayParams {
	p.requester = id
	return p
}

// Replace makes Start interrupt a currently playing track instead of being
// ignored while one plays. It has no effect on Queue.
func (p *PlayParams) Replace(replace bool) *PlayParams {
	p.replace = replace
	return p
}

// StartTimeSecs sets the playback start offset in whole seconds.
func (p *PlayParams) StartTimeSecs(secs uint64) *PlayParams {
	p.start = time.Duration(secs) * time.Second
	return p
}

// StartTimeMillis sets the playback start offset in milliseconds.
func (p *PlayParams) StartTimeMillis(ms uint64) *PlayParams {
	p.start = time.Duration(ms) * time.Millisecond
	return p
}

// FinishTimeSecs sets the point at which playback cuts off, in whole
// seconds. Zero means the track plays to its natural end.
func (p *PlayParams) FinishTimeSecs(secs uint64) *PlayParams {
	p.finish = time.Duration(secs) * time.Second
	return p
}

// FinishTimeMillis sets the cutoff point in milliseconds. Zero means the
// track plays to its natural end.
func (p *PlayParams) FinishTimeMillis(ms uint64) *PlayParams {
	p.finish = time.Duration(ms) * time.Millisecond
	return p
}

// ToTrackQueue captures the accumulated parameters as a queue entry.
func (p *PlayParams) ToTrackQueue() player.TrackQueue {
	return player.TrackQueue{
		Track:     p.track,
		StartTime: p.start,
		EndTime:   p.finish,
		Requester: p.requester,
	}
}

// Start plays the track immediately, bypassing the queue and the loop. The
// guild's node is created if it does not exist yet; NowPlaying is updated
// once the play op is accepted by the transport.
func (p *PlayParams) Start(ctx context.Context) error {
	tq := p.ToTrackQueue()

	if err := p.c.backend.Play(ctx, p.guildID, tq.Track.Encoded, playOptionsFor(tq, p.replace)); err != nil {
		return err
	}

	node, ok := p.c.registry.Get(p.guildID)
	if !ok {
		node = player.NewNode(p.guildID)
	}
	node.NowPlaying = &tq
	p.c.registry.Insert(p.guildID, node)
	p.c.metrics.RecordPlayCommand(ctx, "start")
	return nil
}

// Queue appends the track to the guild's queue and ensures the queue loop
// is running. When nothing is playing the new head starts right away, and
// a transport failure on that first play is returned to the caller.
func (p *PlayParams) Queue(ctx context.Context) error {
	tq := p.ToTrackQueue()

	node, ok := p.c.registry.Get(p.guildID)
	if !ok {
		node = player.NewNode(p.guildID)
	}
	node.Queue = append(node.Queue, tq)
	node.IsOnLoops = true
	needPlay := node.NowPlaying == nil && len(node.Queue) == 1
	p.c.registry.Insert(p.guildID, node)

	p.c.startLoop(p.guildID)

	if !needPlay {
		return nil
	}

	if err := p.c.backend.Play(ctx, p.guildID, tq.Track.Encoded, playOptionsFor(tq, true)); err != nil {
		return err
	}
	node.NowPlaying = &tq
	p.c.registry.Insert(p.guildID, node)
	p.c.metrics.RecordPlayCommand(ctx, "queue")
	return nil
}

func playOptionsFor(tq player.TrackQueue, replace bool) backend.PlayOptions {
	return backend.PlayOptions{
		StartTime: tq.StartTime,
		EndTime:   tq.EndTime,
		NoReplace: !replace,
	}
}
