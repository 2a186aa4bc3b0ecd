// Package gateway abstracts the chat platform's realtime connection. The
// coordinator only needs two things from it: asking the platform to move
// the bot in or out of a voice channel, and a feed of the raw voice events
// the platform answers with. The latter is pushed straight into a
// [voice.Assembler] by the platform adapter.
package gateway

import (
	"context"

	"github.com/driftvale/ripple/pkg/types"
)

// Gateway sends voice channel intents to the chat platform. The platform
// replies asynchronously over its event stream; callers that need the
// resulting connection descriptor wait on the voice assembler.
type Gateway interface {
	// JoinVoiceChannel asks the platform to connect the bot to the given
	// voice channel. selfDeaf suppresses inbound audio for the bot.
	JoinVoiceChannel(ctx context.Context, guildID types.GuildID, channelID types.ChannelID, selfDeaf bool) error

	// LeaveVoiceChannel asks the platform to disconnect the bot from
	// whatever voice channel it occupies in the guild.
	LeaveVoiceChannel(ctx context.Context, guildID types.GuildID) error
}
