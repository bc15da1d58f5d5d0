package webhook

import (
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/plexlights/plexlightsd/internal/mode"
)

// ParsePayload extracts a flat field map from a webhook body. Three shapes are
// accepted: a JSON object (Plex webhooks, Tautulli in JSON mode), a form body
// whose "body" field carries nested JSON (Tautulli's webhook agent in form
// mode), and a plain form body taking the first value per key. Anything else
// yields an empty map, which the handler resolves to an ignored event.
func ParsePayload(body []byte) map[string]any {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil && parsed != nil {
		return parsed
	}

	form, err := url.ParseQuery(string(body))
	if err != nil || len(form) == 0 {
		return map[string]any{}
	}

	if values := form["body"]; len(values) > 0 && values[0] != "" {
		var nested any
		if err := json.Unmarshal([]byte(values[0]), &nested); err != nil {
			return map[string]any{}
		}
		if obj, ok := nested.(map[string]any); ok {
			return obj
		}
		// Valid JSON that is not an object falls through to the flat form.
	}

	flat := make(map[string]any, len(form))
	for key, values := range form {
		if len(values) > 0 && values[0] != "" {
			flat[key] = values[0]
		}
	}
	return flat
}

// EventFromPayload folds the field variants of the common webhook senders into
// one event: player may be a string or an object, title falls back to
// full_title, media_type falls back to mediaType.
func EventFromPayload(payload map[string]any) mode.Event {
	return mode.Event{
		Event:     NormalizeEvent(stringField(payload, "event")),
		Player:    playerName(payload),
		Title:     titleField(payload),
		MediaType: mediaTypeField(payload),
	}
}

// NormalizeEvent trims and lowercases an event name and folds the naming
// styles of the common senders (Tautulli triggers, dotted Plex names, past
// tense) into play, resume, pause and stop. Unknown names pass through
// lowercased and resolve to no lighting change.
func NormalizeEvent(event string) string {
	event = strings.ToLower(strings.TrimSpace(event))
	switch event {
	case "play", "playback start", "playback.start", "played":
		return "play"
	case "resume", "playback resume", "playback.resume", "resumed":
		return "resume"
	case "pause", "playback pause", "playback.pause", "paused":
		return "pause"
	case "stop", "ended", "playback stop", "playback.stop", "playback ended", "stopped":
		return "stop"
	}
	return event
}

// playerName reads the player from a string or an object ({title} or {name}),
// falling back to the flat player_title field some agents send instead.
func playerName(payload map[string]any) string {
	var name string
	switch v := payload["player"].(type) {
	case map[string]any:
		name, _ = v["title"].(string)
		if strings.TrimSpace(name) == "" {
			name, _ = v["name"].(string)
		}
	case string:
		name = v
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = strings.TrimSpace(stringField(payload, "player_title"))
	}
	return name
}

func titleField(payload map[string]any) string {
	title := stringField(payload, "title")
	if title == "" {
		title = stringField(payload, "full_title")
	}
	if title == "" {
		return "unknown"
	}
	return strings.TrimSpace(title)
}

func mediaTypeField(payload map[string]any) string {
	mediaType := stringField(payload, "media_type")
	if mediaType == "" {
		mediaType = stringField(payload, "mediaType")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func stringField(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}
