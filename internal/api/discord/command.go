// Package discord provides the chat command surface of the bot.
package discord

import "strings"

// Command names.
const (
	cmdPlay       = "play"
	cmdPause      = "pause"
	cmdResume     = "resume"
	cmdSkip       = "skip"
	cmdStop       = "stop"
	cmdQueue      = "queue"
	cmdNowPlaying = "nowplaying"
	cmdVolume     = "volume"
	cmdShuffle    = "shuffle"
	cmdDisconnect = "disconnect"
	cmdHelp       = "help"
)

// canonical returns the command name for a word or one of its aliases.
func canonical(word string) string {
	switch word {
	case "play", "p":
		return cmdPlay
	case "skip", "s":
		return cmdSkip
	case "queue", "q":
		return cmdQueue
	case "nowplaying", "np":
		return cmdNowPlaying
	case "volume", "vol":
		return cmdVolume
	case "disconnect", "dc", "leave":
		return cmdDisconnect
	case cmdPause, cmdResume, cmdStop, cmdShuffle, cmdHelp:
		return word
	}
	return ""
}

// helpLines lists the commands in the order the help text shows them.
var helpLines = []struct{ usage, text string }{
	{"play <song/url>", "Play a song, a playlist, or the first search match"},
	{"pause", "Pause the current song"},
	{"resume", "Resume playback"},
	{"skip", "Skip to the next song"},
	{"stop", "Stop playback and clear the queue"},
	{"queue", "Show the queue"},
	{"nowplaying", "Show the current song"},
	{"volume <1-100>", "Set the playback volume"},
	{"shuffle", "Shuffle the queue"},
	{"disconnect", "Leave the voice channel"},
}

// command is a parsed chat command.
type command struct {
	Name string // canonical name, empty if unknown
	Word string // command word as typed
	Args string
}

// parseCommand splits a message into a command. ok is false when content
// does not start with prefix or has no command word.
func parseCommand(prefix, content string) (cmd command, ok bool) {
	content = strings.TrimSpace(content)
	if prefix == "" || !strings.HasPrefix(content, prefix) {
		return command{}, false
	}
	rest := strings.TrimSpace(content[len(prefix):])
	if rest == "" {
		return command{}, false
	}

	word, args, _ := strings.Cut(rest, " ")
	word = strings.ToLower(word)
	return command{
		Name: canonical(word),
		Word: word,
		Args: strings.TrimSpace(args),
	}, true
}
