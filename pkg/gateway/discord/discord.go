// Package discord adapts a discordgo session to [gateway.Gateway] and
// bridges Discord's voice dispatches into a [voice.Assembler].
package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/driftvale/ripple/pkg/types"
	"github.com/driftvale/ripple/pkg/voice"
)

// Gateway wraps an open discordgo session. Create it with [New] after the
// session is opened so the bot's own user ID is known.
type Gateway struct {
	session *discordgo.Session
	botID   types.UserID
}

// New registers voice event handlers on the session and returns the
// adapter. Voice state updates for users other than the bot are ignored;
// everything relevant is forwarded to asm.
func New(session *discordgo.Session, asm *voice.Assembler) (*Gateway, error) {
	if session.State == nil || session.State.User == nil {
		return nil, fmt.Errorf("discord: session has no authenticated user, open it first")
	}
	botID, err := types.ParseUserID(session.State.User.ID)
	if err != nil {
		return nil, fmt.Errorf("discord: parse bot user ID: %w", err)
	}

	g := &Gateway{session: session, botID: botID}

	session.AddHandler(func(_ *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
		g.onVoiceStateUpdate(asm, vsu)
	})
	session.AddHandler(func(_ *discordgo.Session, vsu *discordgo.VoiceServerUpdate) {
		g.onVoiceServerUpdate(asm, vsu)
	})

	return g, nil
}

// JoinVoiceChannel implements [gateway.Gateway] by sending the voice state
// op over the main gateway socket without opening discordgo's own voice
// connection; the audio node owns the actual voice socket.
func (g *Gateway) JoinVoiceChannel(_ context.Context, guildID types.GuildID, channelID types.ChannelID, selfDeaf bool) error {
	if err := g.session.ChannelVoiceJoinManual(guildID.String(), channelID.String(), false, selfDeaf); err != nil {
		return fmt.Errorf("discord: join voice channel %s: %w", channelID, err)
	}
	return nil
}

// LeaveVoiceChannel implements [gateway.Gateway].
func (g *Gateway) LeaveVoiceChannel(_ context.Context, guildID types.GuildID) error {
	if err := g.session.ChannelVoiceJoinManual(guildID.String(), "", false, false); err != nil {
		return fmt.Errorf("discord: leave voice channel in guild %s: %w", guildID, err)
	}
	return nil
}

func (g *Gateway) onVoiceStateUpdate(asm *voice.Assembler, vsu *discordgo.VoiceStateUpdate) {
	userID, err := types.ParseUserID(vsu.UserID)
	if err != nil || userID != g.botID {
		return
	}
	guildID, err := types.ParseGuildID(vsu.GuildID)
	if err != nil {
		slog.Debug("discord: voice state update with bad guild ID", "guild_id", vsu.GuildID)
		return
	}
	channelID, err := types.ParseChannelID(vsu.ChannelID)
	if err != nil {
		slog.Debug("discord: voice state update with bad channel ID", "channel_id", vsu.ChannelID)
		return
	}
	asm.HandleVoiceStateUpdate(guildID, userID, vsu.SessionID, channelID)
}

func (g *Gateway) onVoiceServerUpdate(asm *voice.Assembler, vsu *discordgo.VoiceServerUpdate) {
	guildID, err := types.ParseGuildID(vsu.GuildID)
	if err != nil {
		slog.Debug("discord: voice server update with bad guild ID", "guild_id", vsu.GuildID)
		return
	}
	asm.HandleVoiceServerUpdate(guildID, vsu.Endpoint, vsu.Token)
}
