package ripple

import (
	"context"
	"log/slog"
	"sync"

	"github.com/driftvale/ripple/pkg/backend"
	"github.com/driftvale/ripple/pkg/player"
	"github.com/driftvale/ripple/pkg/types"
)

// LoopState describes a guild's queue loop.
type LoopState int

const (
	// LoopAbsent means no loop exists for the guild; queued tracks will not
	// auto-advance until one is started by PlayParams.Queue.
	LoopAbsent LoopState = iota

	// LoopRunning means a loop goroutine is consuming the guild's track
	// finish notifications and advancing the queue.
	LoopRunning
)

func (s LoopState) String() string {
	if s == LoopRunning {
		return "running"
	}
	return "absent"
}

// loopSet tracks which guilds have a running queue loop. It is keyed
// independently of the node registry: removing a guild's node leaves its
// loop running, and the loop simply idles until a node reappears.
type loopSet struct {
	mu    sync.Mutex
	loops map[types.GuildID]*queueLoop
}

type queueLoop struct {
	finish   chan backend.TrackFinish
	stop     chan struct{}
	stopOnce sync.Once
}

func newLoopSet() *loopSet {
	return &loopSet{loops: make(map[types.GuildID]*queueLoop)}
}

func (s *loopSet) state(guildID types.GuildID) LoopState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.loops[guildID]; ok {
		return LoopRunning
	}
	return LoopAbsent
}

// add registers a loop for the guild if none exists. It returns the loop
// and whether it was newly created.
func (s *loopSet) add(guildID types.GuildID) (*queueLoop, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.loops[guildID]; ok {
		return l, false
	}
	l := &queueLoop{
		finish: make(chan backend.TrackFinish, 64),
		stop:   make(chan struct{}),
	}
	s.loops[guildID] = l
	return l, true
}

// get returns the guild's loop if one is running.
func (s *loopSet) get(guildID types.GuildID) (*queueLoop, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.loops[guildID]
	return l, ok
}

// remove unregisters the guild's loop and signals its goroutine to exit.
// It reports whether a loop was present.
func (s *loopSet) remove(guildID types.GuildID) bool {
	s.mu.Lock()
	l, ok := s.loops[guildID]
	delete(s.loops, guildID)
	s.mu.Unlock()
	if ok {
		l.stopOnce.Do(func() { close(l.stop) })
	}
	return ok
}

// removeIf unregisters the guild's loop only if it still is l, so a loop
// winding itself down cannot tear down a successor started in the interim.
func (s *loopSet) removeIf(guildID types.GuildID, l *queueLoop) bool {
	s.mu.Lock()
	cur, ok := s.loops[guildID]
	if ok && cur == l {
		delete(s.loops, guildID)
	} else {
		ok = false
	}
	s.mu.Unlock()
	if ok {
		l.stopOnce.Do(func() { close(l.stop) })
	}
	return ok
}

// stopAll unregisters every loop and signals their goroutines to exit. It
// returns how many loops were stopped.
func (s *loopSet) stopAll() int {
	s.mu.Lock()
	stopped := make([]*queueLoop, 0, len(s.loops))
	for gid, l := range s.loops {
		stopped = append(stopped, l)
		delete(s.loops, gid)
	}
	s.mu.Unlock()
	for _, l := range stopped {
		l.stopOnce.Do(func() { close(l.stop) })
	}
	return len(stopped)
}

// startLoop ensures a queue loop is running for the guild. Reports whether
// a new loop was started.
func (c *Client) startLoop(guildID types.GuildID) bool {
	l, created := c.loops.add(guildID)
	if !created {
		return false
	}
	c.metrics.ActiveLoops.Add(context.Background(), 1)
	go c.runLoop(guildID, l)
	return true
}

// notifyFinish routes a track finish notification to the guild's loop, if
// any. Called from the dispatcher's per-guild drain goroutine.
func (c *Client) notifyFinish(ev backend.TrackFinish) {
	l, ok := c.loops.get(ev.GuildID)
	if !ok {
		return
	}
	select {
	case l.finish <- ev:
	default:
		slog.Warn("ripple: queue loop finish buffer full, dropping notification",
			"guild_id", ev.GuildID)
	}
}

func (c *Client) runLoop(guildID types.GuildID, l *queueLoop) {
	for {
		select {
		case <-l.stop:
			return
		case fin := <-l.finish:
			if !shouldAdvance(fin.Reason) {
				continue
			}
			if c.advanceAfterFinish(context.Background(), guildID) {
				if c.loops.removeIf(guildID, l) {
					c.metrics.ActiveLoops.Add(context.Background(), -1)
				}
				return
			}
		}
	}
}

// shouldAdvance filters finish reasons: a track that was replaced or
// stopped by an explicit command must not trigger the next queue entry.
func shouldAdvance(reason string) bool {
	switch reason {
	case "REPLACED", "STOPPED", "CLEANUP":
		return false
	default:
		return true
	}
}

// advanceAfterFinish drops the finished head of the guild's queue and
// starts the next entry. It reports whether the loop should wind down
// because the queue is drained. A missing node is not a wind-down: the
// loop survives node removal and resumes once a node is back.
func (c *Client) advanceAfterFinish(ctx context.Context, guildID types.GuildID) (done bool) {
	node, ok := c.registry.Get(guildID)
	if !ok {
		return false
	}

	if len(node.Queue) > 0 {
		node.Queue = node.Queue[1:]
	}
	if len(node.Queue) == 0 {
		node.NowPlaying = nil
		node.IsOnLoops = false
		c.registry.Insert(guildID, node)
		return true
	}

	next := node.Queue[0]
	node.NowPlaying = &next
	c.registry.Insert(guildID, node)

	if err := c.backend.Play(ctx, guildID, next.Track.Encoded, playOptionsFor(next, true)); err != nil {
		slog.Error("ripple: queue advance failed",
			"guild_id", guildID, "track", trackLabel(next.Track), "err", err)
		return false
	}
	c.metrics.RecordPlayCommand(ctx, "queue")
	return false
}

// RemoveGuildFromLoops stops the guild's queue loop if one is running and
// clears the node's loop flag. The guild's queue is left as-is.
func (c *Client) RemoveGuildFromLoops(guildID types.GuildID) {
	if c.loops.remove(guildID) {
		c.metrics.ActiveLoops.Add(context.Background(), -1)
	}
	if node, ok := c.registry.Get(guildID); ok && node.IsOnLoops {
		node.IsOnLoops = false
		c.registry.Insert(guildID, node)
	}
}

// LoopState reports whether the guild currently has a running queue loop.
func (c *Client) LoopState(guildID types.GuildID) LoopState {
	return c.loops.state(guildID)
}

func trackLabel(t player.Track) string {
	if t.Info != nil && t.Info.Title != "" {
		return t.Info.Title
	}
	return t.Encoded
}
