package ripple_test

import (
	"context"
	"testing"
	"time"

	"github.com/driftvale/ripple"
	"github.com/driftvale/ripple/pkg/backend"
	"github.com/driftvale/ripple/pkg/player"
	"github.com/driftvale/ripple/pkg/types"
)

func finished(guildID types.GuildID, encoded string) backend.TrackFinish {
	return backend.TrackFinish{GuildID: guildID, Track: encoded, Reason: "FINISHED"}
}

func TestQueue_StartsLoopAndPlaysFirstTrack(t *testing.T) {
	t.Parallel()
	c, be := newTestClient(t, nil)
	ctx := context.Background()
	const guild types.GuildID = 21

	if got := c.LoopState(guild); got != ripple.LoopAbsent {
		t.Fatalf("LoopState before queue = %v, want absent", got)
	}

	if err := c.Play(guild, track("t1")).Queue(ctx); err != nil {
		t.Fatalf("Queue() error = %v", err)
	}

	if got := c.LoopState(guild); got != ripple.LoopRunning {
		t.Errorf("LoopState after queue = %v, want running", got)
	}
	if be.PlayCount() != 1 {
		t.Fatalf("PlayCount = %d, want 1 (head plays immediately)", be.PlayCount())
	}
	node, _ := c.GetGuildNode(guild)
	if node.NowPlaying == nil || node.NowPlaying.Track.Encoded != "t1" {
		t.Errorf("NowPlaying = %+v, want t1", node.NowPlaying)
	}
	if !node.IsOnLoops {
		t.Error("IsOnLoops = false after Queue")
	}
}

func TestQueue_SecondTrackDoesNotPlayImmediately(t *testing.T) {
	t.Parallel()
	c, be := newTestClient(t, nil)
	ctx := context.Background()
	const guild types.GuildID = 22

	_ = c.Play(guild, track("t1")).Queue(ctx)
	_ = c.Play(guild, track("t2")).Queue(ctx)

	if be.PlayCount() != 1 {
		t.Errorf("PlayCount = %d, want 1 while t1 still playing", be.PlayCount())
	}
	node, _ := c.GetGuildNode(guild)
	if len(node.Queue) != 2 {
		t.Errorf("queue length = %d, want 2", len(node.Queue))
	}
}

func TestLoop_AdvancesOnFinish(t *testing.T) {
	t.Parallel()
	c, be := newTestClient(t, nil)
	ctx := context.Background()
	const guild types.GuildID = 23

	_ = c.Play(guild, track("t1")).Queue(ctx)
	_ = c.Play(guild, track("t2")).Queue(ctx)

	be.Emit(finished(guild, "t1"))

	waitFor(t, "advance to t2", func() bool { return be.PlayCount() == 2 })
	call, _ := be.LastPlay()
	if call.Track != "t2" {
		t.Errorf("advanced to %q, want t2", call.Track)
	}
	waitFor(t, "node head update", func() bool {
		node, ok := c.GetGuildNode(guild)
		return ok && len(node.Queue) == 1 && node.NowPlaying != nil && node.NowPlaying.Track.Encoded == "t2"
	})
	if got := c.LoopState(guild); got != ripple.LoopRunning {
		t.Errorf("LoopState = %v, want running with entries left", got)
	}
}

func TestLoop_WindsDownWhenQueueDrains(t *testing.T) {
	t.Parallel()
	c, be := newTestClient(t, nil)
	ctx := context.Background()
	const guild types.GuildID = 24

	_ = c.Play(guild, track("t1")).Queue(ctx)
	be.Emit(finished(guild, "t1"))

	waitFor(t, "loop wind down", func() bool { return c.LoopState(guild) == ripple.LoopAbsent })
	node, _ := c.GetGuildNode(guild)
	if node.NowPlaying != nil {
		t.Errorf("NowPlaying = %+v, want nil after drain", node.NowPlaying)
	}
	if node.IsOnLoops {
		t.Error("IsOnLoops = true after drain")
	}
	if be.PlayCount() != 1 {
		t.Errorf("PlayCount = %d, want 1", be.PlayCount())
	}

	// Queueing again revives the loop from scratch.
	if err := c.Play(guild, track("t2")).Queue(ctx); err != nil {
		t.Fatalf("Queue() after drain error = %v", err)
	}
	if got := c.LoopState(guild); got != ripple.LoopRunning {
		t.Errorf("LoopState = %v, want running again", got)
	}
	if be.PlayCount() != 2 {
		t.Errorf("PlayCount = %d, want 2", be.PlayCount())
	}
}

func TestLoop_ReplacedFinishDoesNotAdvance(t *testing.T) {
	t.Parallel()
	c, be := newTestClient(t, nil)
	ctx := context.Background()
	const guild types.GuildID = 25

	_ = c.Play(guild, track("t1")).Queue(ctx)
	_ = c.Play(guild, track("t2")).Queue(ctx)

	be.Emit(backend.TrackFinish{GuildID: guild, Track: "t1", Reason: "REPLACED"})

	time.Sleep(50 * time.Millisecond)
	if be.PlayCount() != 1 {
		t.Errorf("PlayCount = %d, want 1 after REPLACED finish", be.PlayCount())
	}
	if got := c.LoopState(guild); got != ripple.LoopRunning {
		t.Errorf("LoopState = %v, want still running", got)
	}
}

func TestLoop_SurvivesNodeRemoval(t *testing.T) {
	t.Parallel()
	c, be := newTestClient(t, nil)
	ctx := context.Background()
	const guild types.GuildID = 26

	_ = c.Play(guild, track("t1")).Queue(ctx)
	_ = c.Play(guild, track("t2")).Queue(ctx)

	c.RemoveGuildNode(guild)
	be.Emit(finished(guild, "t1"))

	time.Sleep(50 * time.Millisecond)
	if got := c.LoopState(guild); got != ripple.LoopRunning {
		t.Fatalf("LoopState = %v, want running despite missing node", got)
	}
	if be.PlayCount() != 1 {
		t.Errorf("PlayCount = %d, want 1 while node is gone", be.PlayCount())
	}

	// Re-insert the node with its queue; the next finish advances normally.
	n := player.NewNode(guild)
	head := player.TrackQueue{Track: track("t1")}
	n.NowPlaying = &head
	n.Queue = []player.TrackQueue{head, {Track: track("t2")}}
	n.IsOnLoops = true
	c.SetGuildNode(guild, n)

	be.Emit(finished(guild, "t1"))
	waitFor(t, "advance after node re-insert", func() bool { return be.PlayCount() == 2 })
	call, _ := be.LastPlay()
	if call.Track != "t2" {
		t.Errorf("advanced to %q, want t2", call.Track)
	}
}

func TestRemoveGuildFromLoops(t *testing.T) {
	t.Parallel()
	c, be := newTestClient(t, nil)
	ctx := context.Background()
	const guild types.GuildID = 27

	_ = c.Play(guild, track("t1")).Queue(ctx)
	_ = c.Play(guild, track("t2")).Queue(ctx)

	c.RemoveGuildFromLoops(guild)
	if got := c.LoopState(guild); got != ripple.LoopAbsent {
		t.Fatalf("LoopState = %v, want absent after removal", got)
	}
	node, _ := c.GetGuildNode(guild)
	if node.IsOnLoops {
		t.Error("IsOnLoops = true after loop removal")
	}
	if len(node.Queue) != 2 {
		t.Errorf("queue length = %d, want queue untouched at 2", len(node.Queue))
	}

	// Finishes no longer advance anything.
	be.Emit(finished(guild, "t1"))
	time.Sleep(50 * time.Millisecond)
	if be.PlayCount() != 1 {
		t.Errorf("PlayCount = %d, want 1 with loop removed", be.PlayCount())
	}
}

func TestSkip_PlaysNextEntry(t *testing.T) {
	t.Parallel()
	c, be := newTestClient(t, nil)
	ctx := context.Background()
	const guild types.GuildID = 28

	_ = c.Play(guild, track("t1")).Requester(9).Queue(ctx)
	_ = c.Play(guild, track("t2")).Queue(ctx)

	skipped, err := c.Skip(ctx, guild)
	if err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if skipped == nil || skipped.Track.Encoded != "t1" || skipped.Requester != 9 {
		t.Fatalf("skipped = %+v, want t1 requested by 9", skipped)
	}
	if be.PlayCount() != 2 {
		t.Fatalf("PlayCount = %d, want 2 (t2 starts immediately)", be.PlayCount())
	}
	call, _ := be.LastPlay()
	if call.Track != "t2" || call.Opts.NoReplace {
		t.Errorf("Play call = %+v, want replacing play of t2", call)
	}
}

func TestSkip_EmptyQueueLeavesPlaybackAlone(t *testing.T) {
	t.Parallel()
	c, be := newTestClient(t, nil)
	ctx := context.Background()
	const guild types.GuildID = 29

	_ = c.Play(guild, track("t1")).Queue(ctx)

	skipped, err := c.Skip(ctx, guild)
	if err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	if skipped == nil || skipped.Track.Encoded != "t1" {
		t.Fatalf("skipped = %+v, want t1", skipped)
	}

	// No stop, no new play: the current track runs out on its own.
	if be.PlayCount() != 1 {
		t.Errorf("PlayCount = %d, want 1", be.PlayCount())
	}
	if len(be.StopCalls) != 0 {
		t.Errorf("Stop calls = %d, want 0", len(be.StopCalls))
	}

	// Skipping with nothing queued is a no-op.
	again, err := c.Skip(ctx, guild)
	if err != nil || again != nil {
		t.Errorf("Skip() on empty queue = (%+v, %v), want (nil, nil)", again, err)
	}
}

func TestSkip_WithoutNode(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t, nil)

	skipped, err := c.Skip(context.Background(), 999)
	if err != nil || skipped != nil {
		t.Errorf("Skip() without node = (%+v, %v), want (nil, nil)", skipped, err)
	}
}
