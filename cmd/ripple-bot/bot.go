package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/driftvale/ripple"
	"github.com/driftvale/ripple/pkg/backend"
	"github.com/driftvale/ripple/pkg/player"
	"github.com/driftvale/ripple/pkg/types"
)

const prefix = "!"

// bot routes prefix commands from guild text channels to the coordinator.
type bot struct {
	client *ripple.Client
	botID  types.UserID
}

func (b *bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || !strings.HasPrefix(m.Content, prefix) {
		return
	}
	guildID, err := types.ParseGuildID(m.GuildID)
	if err != nil || guildID == 0 {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(m.Content, prefix))
	if len(fields) == 0 {
		return
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var reply string
	switch cmd {
	case "join":
		reply = b.join(ctx, s, m, guildID)
	case "leave":
		reply = b.leave(ctx, guildID)
	case "play":
		reply = b.play(ctx, m, guildID, args)
	case "skip":
		reply = b.skip(ctx, guildID)
	case "stop":
		reply = runSimple(func() error { return b.client.Stop(ctx, guildID) }, "stopped")
	case "pause":
		reply = runSimple(func() error { return b.client.Pause(ctx, guildID) }, "paused")
	case "resume":
		reply = runSimple(func() error { return b.client.Resume(ctx, guildID) }, "resumed")
	case "volume":
		reply = b.volume(ctx, guildID, args)
	case "seek":
		reply = b.seek(ctx, guildID, args)
	case "np":
		reply = b.nowPlaying(guildID)
	default:
		return
	}

	if reply == "" {
		return
	}
	if _, err := s.ChannelMessageSend(m.ChannelID, reply); err != nil {
		slog.Warn("failed to send reply", "channel_id", m.ChannelID, "err", err)
	}
}

// join connects to the author's voice channel and opens the audio node
// session with the assembled connection descriptor.
func (b *bot) join(ctx context.Context, s *discordgo.Session, m *discordgo.MessageCreate, guildID types.GuildID) string {
	vs, err := s.State.VoiceState(m.GuildID, m.Author.ID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "join a voice channel first"
	}
	channelID, err := types.ParseChannelID(vs.ChannelID)
	if err != nil {
		return "could not resolve your voice channel"
	}

	ci, err := b.client.Join(ctx, guildID, channelID, true)
	if err != nil {
		slog.Error("join failed", "guild_id", guildID, "err", err)
		return "could not join: " + err.Error()
	}
	if err := b.client.CreateSession(ctx, ci); err != nil {
		slog.Error("session create failed", "guild_id", guildID, "err", err)
		return "could not open the player: " + err.Error()
	}
	return "joined <#" + vs.ChannelID + ">"
}

func (b *bot) leave(ctx context.Context, guildID types.GuildID) string {
	if err := b.client.DestroySession(ctx, guildID); err != nil {
		slog.Warn("destroy failed", "guild_id", guildID, "err", err)
	}
	b.client.RemoveGuildFromLoops(guildID)
	b.client.RemoveGuildNode(guildID)
	if err := b.client.Leave(ctx, guildID); err != nil {
		return "could not leave: " + err.Error()
	}
	return "left the voice channel"
}

// play queues an encoded track handle. Track resolution (search, URL
// loading) is out of scope here; pipe the node's loadtracks output in.
func (b *bot) play(ctx context.Context, m *discordgo.MessageCreate, guildID types.GuildID, args []string) string {
	if len(args) == 0 {
		return "usage: !play <encoded-track>"
	}
	requester, _ := types.ParseUserID(m.Author.ID)

	err := b.client.Play(guildID, player.Track{Encoded: args[0]}).
		Requester(requester).
		Queue(ctx)
	if err != nil {
		var nerr *backend.NetworkError
		if errors.As(err, &nerr) {
			return "audio node unreachable"
		}
		return "could not queue: " + err.Error()
	}
	return "queued"
}

func (b *bot) skip(ctx context.Context, guildID types.GuildID) string {
	skipped, err := b.client.Skip(ctx, guildID)
	if err != nil {
		return "could not skip: " + err.Error()
	}
	if skipped == nil {
		return "nothing to skip"
	}
	return "skipped " + trackTitle(skipped)
}

func (b *bot) volume(ctx context.Context, guildID types.GuildID, args []string) string {
	if len(args) == 0 {
		return "usage: !volume <0-1000>"
	}
	v, err := strconv.ParseUint(args[0], 10, 16)
	if err != nil {
		return "usage: !volume <0-1000>"
	}
	if err := b.client.Volume(ctx, guildID, uint16(v)); err != nil {
		if errors.Is(err, ripple.ErrNoSession) {
			return "nothing is playing"
		}
		return "could not set volume: " + err.Error()
	}
	return fmt.Sprintf("volume set to %d", min(v, player.MaxVolume))
}

func (b *bot) seek(ctx context.Context, guildID types.GuildID, args []string) string {
	if len(args) == 0 {
		return "usage: !seek <seconds>"
	}
	secs, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return "usage: !seek <seconds>"
	}
	if err := b.client.SeekSecs(ctx, guildID, secs); err != nil {
		if errors.Is(err, ripple.ErrNoSession) {
			return "nothing is playing"
		}
		return "could not seek: " + err.Error()
	}
	return fmt.Sprintf("jumped to %ds", secs)
}

func (b *bot) nowPlaying(guildID types.GuildID) string {
	node, ok := b.client.GetGuildNode(guildID)
	if !ok || node.NowPlaying == nil {
		return "nothing is playing"
	}
	msg := "now playing " + trackTitle(node.NowPlaying)
	if n := len(node.Queue); n > 1 {
		msg += fmt.Sprintf(" (%d more queued)", n-1)
	}
	return msg
}

func runSimple(op func() error, ok string) string {
	if err := op(); err != nil {
		if errors.Is(err, ripple.ErrNoSession) {
			return "nothing is playing"
		}
		return "error: " + err.Error()
	}
	return ok
}

func trackTitle(tq *player.TrackQueue) string {
	if tq.Track.Info != nil && tq.Track.Info.Title != "" {
		return tq.Track.Info.Title
	}
	return "the current track"
}

// announcer logs playback lifecycle events.
type announcer struct {
	session *discordgo.Session
}

func (a *announcer) OnTrackStart(_ context.Context, _ *ripple.Client, ev backend.TrackStart) {
	slog.Info("track started", "guild_id", ev.GuildID)
}

func (a *announcer) OnTrackFinish(_ context.Context, _ *ripple.Client, ev backend.TrackFinish) {
	slog.Info("track finished", "guild_id", ev.GuildID, "reason", ev.Reason)
}

func (a *announcer) OnTrackException(_ context.Context, _ *ripple.Client, ev backend.TrackException) {
	slog.Warn("track errored", "guild_id", ev.GuildID, "error", ev.Error, "severity", ev.Severity)
}

func (a *announcer) OnWebSocketClosed(_ context.Context, _ *ripple.Client, ev backend.WebSocketClosed) {
	slog.Warn("voice websocket closed", "guild_id", ev.GuildID, "code", ev.Code, "reason", ev.Reason)
}
