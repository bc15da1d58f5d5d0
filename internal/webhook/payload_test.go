package webhook

import (
	"net/url"
	"testing"
)

func TestParsePayload_JSONObject(t *testing.T) {
	body := []byte(`{"event":"play","player":"Living Room TV","media_type":"movie"}`)
	payload := ParsePayload(body)
	if got := payload["event"]; got != "play" {
		t.Errorf("payload[event] = %v, want play", got)
	}
	if got := payload["player"]; got != "Living Room TV" {
		t.Errorf("payload[player] = %v, want Living Room TV", got)
	}
}

func TestParsePayload_TautulliFormMode(t *testing.T) {
	// Tautulli's webhook agent in form mode wraps the JSON payload in a
	// form-encoded "body" field.
	form := url.Values{}
	form.Set("body", `{"event":"pause","player":{"title":"Shield"},"media_type":"episode"}`)
	payload := ParsePayload([]byte(form.Encode()))

	if got := payload["event"]; got != "pause" {
		t.Errorf("payload[event] = %v, want pause", got)
	}
	player, ok := payload["player"].(map[string]any)
	if !ok {
		t.Fatalf("payload[player] = %T, want object", payload["player"])
	}
	if got := player["title"]; got != "Shield" {
		t.Errorf("player[title] = %v, want Shield", got)
	}
}

func TestParsePayload_FlatForm(t *testing.T) {
	payload := ParsePayload([]byte("event=play&player=Living+Room+TV&media_type=movie&media_type=photo"))
	if got := payload["event"]; got != "play" {
		t.Errorf("payload[event] = %v, want play", got)
	}
	if got := payload["player"]; got != "Living Room TV" {
		t.Errorf("payload[player] = %v, want Living Room TV", got)
	}
	// Repeated keys keep only their first value.
	if got := payload["media_type"]; got != "movie" {
		t.Errorf("payload[media_type] = %v, want movie", got)
	}
}

func TestParsePayload_MalformedNestedBodyIsEmpty(t *testing.T) {
	// A broken body field means the sender intended JSON mode; the flat
	// form fallback would produce misleading fields.
	payload := ParsePayload([]byte("body=%7Bnot-json&event=play"))
	if len(payload) != 0 {
		t.Errorf("ParsePayload() = %v, want empty map", payload)
	}
}

func TestParsePayload_NonObjectNestedBodyFallsToFlatForm(t *testing.T) {
	payload := ParsePayload([]byte("body=42&event=play"))
	if got := payload["event"]; got != "play" {
		t.Errorf("payload[event] = %v, want play", got)
	}
	if got := payload["body"]; got != "42" {
		t.Errorf("payload[body] = %v, want the raw string", got)
	}
}

func TestParsePayload_UnparseableBodies(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{name: "empty", body: nil},
		{name: "garbage", body: []byte("\x00\x01\x02")},
		{name: "json_array", body: []byte(`[1,2,3]`)},
		{name: "json_scalar", body: []byte(`42`)},
		{name: "json_null", body: []byte(`null`)},
		{name: "bare_word", body: []byte("hello")},
		{name: "blank_values_only", body: []byte("event=&player=")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if payload := ParsePayload(tt.body); len(payload) != 0 {
				t.Errorf("ParsePayload(%q) = %v, want empty map", tt.body, payload)
			}
		})
	}
}

func TestNormalizeEvent(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"play", "play"},
		{"playback start", "play"},
		{"playback.start", "play"},
		{"played", "play"},
		{"resume", "resume"},
		{"playback resume", "resume"},
		{"playback.resume", "resume"},
		{"resumed", "resume"},
		{"pause", "pause"},
		{"playback pause", "pause"},
		{"playback.pause", "pause"},
		{"paused", "pause"},
		{"stop", "stop"},
		{"ended", "stop"},
		{"playback stop", "stop"},
		{"playback.stop", "stop"},
		{"playback ended", "stop"},
		{"stopped", "stop"},
		{"Playback.Start", "play"},
		{"  STOPPED  ", "stop"},
		{"media.rate", "media.rate"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeEvent(tt.raw); got != tt.expected {
			t.Errorf("NormalizeEvent(%q) = %q, want %q", tt.raw, got, tt.expected)
		}
	}
}

func TestEventFromPayload_PlayerShapes(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		expected string
	}{
		{name: "string", payload: map[string]any{"player": "Shield"}, expected: "Shield"},
		{name: "object_title", payload: map[string]any{"player": map[string]any{"title": "Shield"}}, expected: "Shield"},
		{name: "object_name", payload: map[string]any{"player": map[string]any{"name": "Shield"}}, expected: "Shield"},
		{name: "object_blank_title_falls_to_name", payload: map[string]any{"player": map[string]any{"title": " ", "name": "Shield"}}, expected: "Shield"},
		{name: "player_title_fallback", payload: map[string]any{"player_title": "Shield"}, expected: "Shield"},
		{name: "string_wins_over_fallback", payload: map[string]any{"player": "Shield", "player_title": "Other"}, expected: "Shield"},
		{name: "whitespace_trimmed", payload: map[string]any{"player": "  Shield  "}, expected: "Shield"},
		{name: "missing", payload: map[string]any{}, expected: ""},
		{name: "unusable_type", payload: map[string]any{"player": 42.0}, expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EventFromPayload(tt.payload).Player; got != tt.expected {
				t.Errorf("Player = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEventFromPayload_TitleFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		expected string
	}{
		{name: "title", payload: map[string]any{"title": "Alien"}, expected: "Alien"},
		{name: "full_title", payload: map[string]any{"full_title": "Alien (1979)"}, expected: "Alien (1979)"},
		{name: "title_wins", payload: map[string]any{"title": "Alien", "full_title": "Alien (1979)"}, expected: "Alien"},
		{name: "missing", payload: map[string]any{}, expected: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EventFromPayload(tt.payload).Title; got != tt.expected {
				t.Errorf("Title = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEventFromPayload_MediaTypeFallbacks(t *testing.T) {
	tests := []struct {
		name     string
		payload  map[string]any
		expected string
	}{
		{name: "media_type", payload: map[string]any{"media_type": "movie"}, expected: "movie"},
		{name: "camel_case_fallback", payload: map[string]any{"mediaType": "episode"}, expected: "episode"},
		{name: "lowercased", payload: map[string]any{"media_type": "Movie"}, expected: "movie"},
		{name: "trimmed", payload: map[string]any{"media_type": " EPISODE "}, expected: "episode"},
		{name: "missing", payload: map[string]any{}, expected: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EventFromPayload(tt.payload).MediaType; got != tt.expected {
				t.Errorf("MediaType = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEventFromPayload_NormalizesEventName(t *testing.T) {
	ev := EventFromPayload(map[string]any{"event": "Playback.Stop", "media_type": "movie"})
	if ev.Event != "stop" {
		t.Errorf("Event = %q, want stop", ev.Event)
	}
}
