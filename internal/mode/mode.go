// Package mode classifies playback events into abstract lighting modes.
package mode

import "strings"

// Mode is the lighting intent derived from a playback event.
type Mode int

const (
	// Ignore means the event produces no lighting change at all.
	Ignore Mode = iota
	Movie
	Pause
	Normal
)

// String returns the lowercase mode name used in logs, responses and storage.
func (m Mode) String() string {
	switch m {
	case Movie:
		return "movie"
	case Pause:
		return "pause"
	case Normal:
		return "normal"
	default:
		return "ignore"
	}
}

// Event is a playback notification parsed from an inbound webhook.
// It lives for the duration of one request and is never persisted.
type Event struct {
	Event     string
	Player    string
	Title     string
	MediaType string
}

// Resolve maps a playback event to a lighting mode.
//
// Only movie and episode playback may touch the lights. When playerFilter is
// non-empty, events from any other player are ignored; the comparison is
// case-sensitive because player names come verbatim from the media server.
// Event names are matched case-insensitively.
func Resolve(ev Event, playerFilter string) Mode {
	if !SupportedMediaType(ev.MediaType) {
		return Ignore
	}
	if playerFilter != "" && ev.Player != playerFilter {
		return Ignore
	}

	switch strings.ToLower(ev.Event) {
	case "play", "resume":
		return Movie
	case "pause":
		return Pause
	case "stop", "ended":
		return Normal
	default:
		return Ignore
	}
}

// SupportedMediaType reports whether a media type may trigger lighting changes.
// Music, photos and empty types never do.
func SupportedMediaType(mediaType string) bool {
	return mediaType == "movie" || mediaType == "episode"
}
