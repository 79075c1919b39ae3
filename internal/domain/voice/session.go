// Package voice provides the voice session handle shared by the controller and transports.
package voice

// Session is an active connection to one voice channel in a guild.
// Implementations are owned by the transport that created them.
type Session interface {
	ID() string        // Unique per connection, so a reconnect yields a different handle
	GuildID() string   // Guild the connection belongs to
	ChannelID() string // Voice channel joined
}
