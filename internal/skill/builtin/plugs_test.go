package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fantasma-ai/fantasma/internal/skill"
)

// fakeRelay mimics a Shelly-style plug: /relay/0 reports state, ?turn=
// switches it, /status serves sensor readings.
type fakeRelay struct {
	on       bool
	turns    []string
	readings string
}

func (f *fakeRelay) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/relay/0", func(w http.ResponseWriter, r *http.Request) {
		if turn := r.URL.Query().Get("turn"); turn != "" {
			f.turns = append(f.turns, turn)
			f.on = turn == "on"
		}
		if f.on {
			w.Write([]byte(`{"ison":true}`))
		} else {
			w.Write([]byte(`{"ison":false}`))
		}
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(f.readings))
	})
	return mux
}

func newTestPlugs(t *testing.T, relay *fakeRelay, kind PlugKind, nickname string) *Plugs {
	t.Helper()
	srv := httptest.NewServer(relay.handler())
	t.Cleanup(srv.Close)
	return NewPlugs([]PlugDevice{{Nickname: nickname, URL: srv.URL, Kind: kind}}, skill.NewStatusBoard())
}

func TestPlugsSwitchOnAndOff(t *testing.T) {
	relay := &fakeRelay{}
	p := newTestPlugs(t, relay, PlugToggle, "luz da sala")

	got, err := p.Handle(context.Background(), "liga a luz da sala", "liga a luz da sala")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got != "Liguei a luz da sala." {
		t.Fatalf("Handle() = %q", got)
	}

	got, _ = p.Handle(context.Background(), "desliga a luz da sala", "desliga a luz da sala")
	if got != "Desliguei a luz da sala." {
		t.Fatalf("Handle() = %q", got)
	}
	if len(relay.turns) != 2 || relay.turns[0] != "on" || relay.turns[1] != "off" {
		t.Fatalf("relay turns = %v, want [on off]", relay.turns)
	}
}

func TestPlugsFuzzyNickname(t *testing.T) {
	relay := &fakeRelay{}
	p := newTestPlugs(t, relay, PlugToggle, "aquecedor do quarto")

	// Mistranscription of "aquecedor".
	got, err := p.Handle(context.Background(), "liga o aquesedor do quarto", "liga o aquesedor do quarto")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got != "Liguei a aquecedor do quarto." {
		t.Fatalf("Handle() = %q, fuzzy nickname did not resolve", got)
	}
}

func TestPlugsUnknownDeviceDeclines(t *testing.T) {
	p := newTestPlugs(t, &fakeRelay{}, PlugToggle, "luz da sala")

	got, err := p.Handle(context.Background(), "liga o televisor da cozinha", "liga o televisor da cozinha")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got != "" {
		t.Fatalf("Handle() = %q, want decline", got)
	}
}

func TestPlugsStatusQuestion(t *testing.T) {
	relay := &fakeRelay{on: true}
	p := newTestPlugs(t, relay, PlugToggle, "luz da sala")

	got, _ := p.Handle(context.Background(), "a luz da sala está ligada", "a luz da sala está ligada")
	if got != "A luz da sala está ligada." {
		t.Fatalf("Handle() = %q", got)
	}
}

func TestPlugsSensorReadings(t *testing.T) {
	relay := &fakeRelay{readings: `{"gas_sensor":{"sensor_state":"normal"}}`}
	p := newTestPlugs(t, relay, PlugSensor, "sensor de gás")

	got, _ := p.Handle(context.Background(), "qual é o estado do sensor de gás", "qual é o estado do sensor de gás")
	if got != "A sensor de gás reporta gas_sensor.sensor_state normal." {
		t.Fatalf("Handle() = %q", got)
	}
}

func TestPlugsDeviceStatusAndListing(t *testing.T) {
	relay := &fakeRelay{on: true}
	p := newTestPlugs(t, relay, PlugToggle, "luz da sala")

	st, ok := p.DeviceStatus(context.Background(), "Luz da Sala")
	if !ok || st["state"] != "on" {
		t.Fatalf("DeviceStatus() = %v, %v", st, ok)
	}
	if _, ok := p.DeviceStatus(context.Background(), "inexistente"); ok {
		t.Fatal("unknown nickname reported as known")
	}

	toggles, status := p.Devices()
	if len(toggles) != 1 || toggles[0] != "luz da sala" || len(status) != 0 {
		t.Fatalf("Devices() = %v, %v", toggles, status)
	}
}

func TestPlugsUnreachableDevice(t *testing.T) {
	p := NewPlugs([]PlugDevice{{Nickname: "luz da sala", URL: "http://127.0.0.1:1", Kind: PlugToggle}},
		skill.NewStatusBoard())

	got, _ := p.Handle(context.Background(), "liga a luz da sala", "liga a luz da sala")
	if got != "Não consegui contactar a luz da sala." {
		t.Fatalf("Handle() = %q", got)
	}

	st, ok := p.DeviceStatus(context.Background(), "luz da sala")
	if !ok || st["state"] != "unreachable" {
		t.Fatalf("DeviceStatus() = %v, %v", st, ok)
	}
}
