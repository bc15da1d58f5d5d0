package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/plexlights/plexlightsd/internal/config"
	"github.com/plexlights/plexlightsd/internal/mode"
	"github.com/plexlights/plexlightsd/internal/provider"
	"github.com/plexlights/plexlightsd/internal/provider/dryrun"
	"github.com/plexlights/plexlightsd/internal/provider/govee"
	"github.com/plexlights/plexlightsd/internal/provider/homeassistant"
	"github.com/plexlights/plexlightsd/internal/provider/hue"
)

type stubAdapter struct {
	kind  provider.Kind
	fail  bool
	boom  string
	delay time.Duration

	mu      sync.Mutex
	applied []config.ModeSettings
}

func (s *stubAdapter) Kind() provider.Kind {
	return s.kind
}

func (s *stubAdapter) Plan(m mode.Mode, _ config.ModeSettings) string {
	return "stub plan for " + m.String()
}

func (s *stubAdapter) Apply(ctx context.Context, _ mode.Mode, settings config.ModeSettings) provider.Outcome {
	s.mu.Lock()
	s.applied = append(s.applied, settings)
	s.mu.Unlock()

	if s.boom != "" {
		panic(s.boom)
	}
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return provider.Outcome{Provider: s.kind, Success: false, Detail: ctx.Err().Error()}
		}
	}
	if s.fail {
		return provider.Outcome{Provider: s.kind, Success: false, Detail: "stub failure"}
	}
	return provider.Outcome{Provider: s.kind, Success: true, Detail: "ok"}
}

func (s *stubAdapter) appliedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.applied)
}

func testModes() config.ModesConfig {
	return config.ModesConfig{
		Movie:  config.ModeSettings{HueBrightness: 13},
		Pause:  config.ModeSettings{HueBrightness: 77},
		Normal: config.ModeSettings{HueBrightness: 254},
	}
}

func newTestDispatcher(concurrent bool, adapters ...provider.Adapter) *Dispatcher {
	return New(adapters, testModes(), config.DispatchConfig{
		Timeout:    time.Second,
		Concurrent: concurrent,
	})
}

func TestDispatch_IgnoreDispatchesNothing(t *testing.T) {
	stub := &stubAdapter{kind: provider.KindHue}
	d := newTestDispatcher(false, stub)

	outcomes := d.Dispatch(context.Background(), mode.Ignore)

	if outcomes != nil {
		t.Errorf("Dispatch(Ignore) = %v, want nil", outcomes)
	}
	if stub.appliedCount() != 0 {
		t.Errorf("adapter applied %d times on Ignore, want 0", stub.appliedCount())
	}
}

func TestDispatch_EveryAdapterGetsTheMode(t *testing.T) {
	hue := &stubAdapter{kind: provider.KindHue}
	govee := &stubAdapter{kind: provider.KindGovee}
	ha := &stubAdapter{kind: provider.KindHomeAssistant}
	d := newTestDispatcher(false, hue, govee, ha)

	outcomes := d.Dispatch(context.Background(), mode.Movie)

	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	wantOrder := []provider.Kind{provider.KindHue, provider.KindGovee, provider.KindHomeAssistant}
	for i, out := range outcomes {
		if out.Provider != wantOrder[i] {
			t.Errorf("outcome %d provider = %s, want %s", i, out.Provider, wantOrder[i])
		}
		if !out.Success {
			t.Errorf("outcome %d failed: %s", i, out.Detail)
		}
	}
	for _, stub := range []*stubAdapter{hue, govee, ha} {
		if stub.appliedCount() != 1 {
			t.Errorf("%s applied %d times, want 1", stub.kind, stub.appliedCount())
		}
		if got := stub.applied[0].HueBrightness; got != 13 {
			t.Errorf("%s saw settings %d, want the movie settings", stub.kind, got)
		}
	}
}

func TestDispatch_RoutesSettingsByMode(t *testing.T) {
	stub := &stubAdapter{kind: provider.KindHue}
	d := newTestDispatcher(false, stub)

	tests := []struct {
		mode mode.Mode
		want int
	}{
		{mode.Movie, 13},
		{mode.Pause, 77},
		{mode.Normal, 254},
	}
	for i, tt := range tests {
		d.Dispatch(context.Background(), tt.mode)
		if got := stub.applied[i].HueBrightness; got != tt.want {
			t.Errorf("Dispatch(%s) routed settings %d, want %d", tt.mode, got, tt.want)
		}
	}
}

func TestDispatch_FailureDoesNotStopOthers(t *testing.T) {
	hue := &stubAdapter{kind: provider.KindHue, fail: true}
	govee := &stubAdapter{kind: provider.KindGovee}
	d := newTestDispatcher(false, hue, govee)

	outcomes := d.Dispatch(context.Background(), mode.Pause)

	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Success {
		t.Error("hue outcome succeeded, want failure")
	}
	if !outcomes[1].Success {
		t.Errorf("govee outcome failed after hue failure: %s", outcomes[1].Detail)
	}
	if govee.appliedCount() != 1 {
		t.Error("govee was not applied after the hue failure")
	}
}

func TestDispatch_PanicBecomesFailedOutcome(t *testing.T) {
	hue := &stubAdapter{kind: provider.KindHue, boom: "wires crossed"}
	govee := &stubAdapter{kind: provider.KindGovee}
	d := newTestDispatcher(false, hue, govee)

	outcomes := d.Dispatch(context.Background(), mode.Normal)

	if len(outcomes) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(outcomes))
	}
	if outcomes[0].Success {
		t.Error("panicking adapter reported success")
	}
	if !strings.Contains(outcomes[0].Detail, "wires crossed") {
		t.Errorf("Detail = %q, want the panic value", outcomes[0].Detail)
	}
	if outcomes[0].Provider != provider.KindHue {
		t.Errorf("Provider = %s, want hue", outcomes[0].Provider)
	}
	if !outcomes[1].Success {
		t.Error("adapter after the panic did not run")
	}
}

func TestDispatch_PerCallTimeout(t *testing.T) {
	slow := &stubAdapter{kind: provider.KindGovee, delay: time.Second}
	d := New([]provider.Adapter{slow}, testModes(), config.DispatchConfig{Timeout: 20 * time.Millisecond})

	outcomes := d.Dispatch(context.Background(), mode.Movie)

	if len(outcomes) != 1 {
		t.Fatalf("got %d outcomes, want 1", len(outcomes))
	}
	if outcomes[0].Success {
		t.Error("slow adapter succeeded, want timeout failure")
	}
	if !strings.Contains(outcomes[0].Detail, "deadline") {
		t.Errorf("Detail = %q, want a deadline error", outcomes[0].Detail)
	}
}

func TestDispatch_ConcurrentKeepsAdapterOrder(t *testing.T) {
	// The first adapter finishes last; outcome order must stay by adapter.
	hue := &stubAdapter{kind: provider.KindHue, delay: 50 * time.Millisecond}
	govee := &stubAdapter{kind: provider.KindGovee, delay: 10 * time.Millisecond}
	ha := &stubAdapter{kind: provider.KindHomeAssistant}
	d := newTestDispatcher(true, hue, govee, ha)

	outcomes := d.Dispatch(context.Background(), mode.Movie)

	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	wantOrder := []provider.Kind{provider.KindHue, provider.KindGovee, provider.KindHomeAssistant}
	for i, out := range outcomes {
		if out.Provider != wantOrder[i] {
			t.Errorf("outcome %d provider = %s, want %s", i, out.Provider, wantOrder[i])
		}
	}
}

func TestDispatch_NoAdapters(t *testing.T) {
	d := newTestDispatcher(false)
	if outcomes := d.Dispatch(context.Background(), mode.Movie); outcomes != nil {
		t.Errorf("Dispatch() with no adapters = %v, want nil", outcomes)
	}
}

func TestDispatch_DryRunTouchesNoProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		t.Errorf("network call reached %s during dry run", r.URL.Path)
	}))
	t.Cleanup(srv.Close)

	// The real adapters behind dry-run wrappers, as buildAdapters assembles
	// them when dry_run is set.
	adapters := []provider.Adapter{
		dryrun.Wrap(hue.New(config.HueConfig{BridgeIP: srv.URL, APIUser: "u", Lights: []int{1, 2}})),
		dryrun.Wrap(govee.New(config.GoveeConfig{APIKey: "k", Device: "AA:BB:CC", Model: "H6159"})),
		dryrun.Wrap(homeassistant.New(config.HomeAssistantConfig{BaseURL: srv.URL, Token: "t", Entities: []string{"light.tv"}})),
	}
	d := New(adapters, testModes(), config.DispatchConfig{Timeout: time.Second})

	outcomes := d.Dispatch(context.Background(), mode.Movie)

	if len(outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(outcomes))
	}
	wantKinds := []provider.Kind{provider.KindHue, provider.KindGovee, provider.KindHomeAssistant}
	for i, out := range outcomes {
		if out.Provider != wantKinds[i] {
			t.Errorf("outcome %d provider = %s, want %s", i, out.Provider, wantKinds[i])
		}
		if !out.Success {
			t.Errorf("%s dry-run outcome failed: %s", out.Provider, out.Detail)
		}
	}
}
