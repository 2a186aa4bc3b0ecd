// Package types defines the shared identifier types used across all Ripple
// packages.
//
// Each package defines its own domain types; the snowflake identifiers live
// here because every layer (voice assembly, player state, backend transport,
// the client facade) keys its state by them, and a shared leaf package avoids
// circular imports.
package types

import "strconv"

// GuildID identifies a guild, the unit of isolation for voice sessions.
type GuildID uint64

// String returns the decimal representation used on the Discord wire.
func (g GuildID) String() string {
	return strconv.FormatUint(uint64(g), 10)
}

// UserID identifies a platform user (a bot or a track requester).
type UserID uint64

// String returns the decimal representation used on the Discord wire.
func (u UserID) String() string {
	return strconv.FormatUint(uint64(u), 10)
}

// ChannelID identifies a voice channel within a guild.
type ChannelID uint64

// String returns the decimal representation used on the Discord wire.
func (c ChannelID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// ParseGuildID parses a decimal snowflake string. An empty string parses to
// zero, matching how the gateway omits optional IDs.
func ParseGuildID(s string) (GuildID, error) {
	v, err := parseSnowflake(s)
	return GuildID(v), err
}

// ParseUserID parses a decimal snowflake string.
func ParseUserID(s string) (UserID, error) {
	v, err := parseSnowflake(s)
	return UserID(v), err
}

// ParseChannelID parses a decimal snowflake string.
func ParseChannelID(s string) (ChannelID, error) {
	v, err := parseSnowflake(s)
	return ChannelID(v), err
}

func parseSnowflake(s string) (uint64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}
