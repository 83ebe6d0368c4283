package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/antzucaro/matchr"

	"github.com/fantasma-ai/fantasma/internal/skill"
)

// PlugKind distinguishes switchable relays from read-only sensors.
type PlugKind string

const (
	PlugToggle PlugKind = "toggle"
	PlugSensor PlugKind = "sensor"
)

// PlugDevice describes one HTTP-controlled device.
type PlugDevice struct {
	// Nickname is how the device is referred to in speech ("luz da sala").
	Nickname string

	// URL is the base URL of the device's HTTP relay (Shelly-style).
	URL string

	Kind PlugKind

	// PollInterval is how often the daemon refreshes the device's status
	// snapshot. Zero disables polling for this device.
	PollInterval time.Duration
}

// Action words, checked against whole words of the utterance. Off words are
// matched first: "desliga" contains "liga".
var (
	plugOffWords    = []string{"desliga", "desligar", "apaga", "desativa", "para"}
	plugOnWords     = []string{"liga", "ligar", "acende", "ativa"}
	plugStatusWords = []string{"estado", "consumo", "leitura", "ligada", "ligado", "como"}
)

const plugFuzzyFloor = 0.84

// Plugs controls smart plugs and reads sensors over their local HTTP
// relays. Device nicknames are resolved fuzzily, so "luz da sala" still
// matches when the transcript came out as "luz da chala".
type Plugs struct {
	devices []PlugDevice
	board   *skill.StatusBoard
	client  *http.Client
}

var (
	_ skill.Skill          = (*Plugs)(nil)
	_ skill.StatusProvider = (*Plugs)(nil)
	_ skill.DeviceLister   = (*Plugs)(nil)
	_ skill.Daemon         = (*Plugs)(nil)
)

// PlugsOption configures the Plugs skill.
type PlugsOption func(*Plugs)

// WithPlugsHTTPClient overrides the HTTP client.
func WithPlugsHTTPClient(c *http.Client) PlugsOption {
	return func(p *Plugs) { p.client = c }
}

// NewPlugs creates the skill. board receives the status snapshots the
// pollers produce; it may be shared with other skills.
func NewPlugs(devices []PlugDevice, board *skill.StatusBoard, opts ...PlugsOption) *Plugs {
	p := &Plugs{
		devices: devices,
		board:   board,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements [skill.Skill].
func (*Plugs) Name() string { return "plugs" }

// TriggerType implements [skill.Skill].
func (*Plugs) TriggerType() skill.TriggerType { return skill.TriggerContains }

// Triggers implements [skill.Skill]. The content words of every nickname
// act as triggers; fuzzy resolution happens later, in Handle.
func (p *Plugs) Triggers() []string {
	seen := map[string]bool{"tomada": true, "ficha": true}
	out := []string{"tomada", "ficha"}
	for _, d := range p.devices {
		for _, w := range contentWords(d.Nickname) {
			if !seen[w] {
				seen[w] = true
				out = append(out, w)
			}
		}
	}
	return out
}

// Handle implements [skill.Skill].
func (p *Plugs) Handle(ctx context.Context, lower, _ string) (string, error) {
	dev, ok := p.resolve(lower)
	if !ok {
		return "", nil
	}

	switch {
	case dev.Kind == PlugToggle && hasWord(lower, plugOffWords):
		return p.switchRelay(ctx, dev, false)
	case dev.Kind == PlugToggle && hasWord(lower, plugOnWords):
		return p.switchRelay(ctx, dev, true)
	default:
		return p.describe(ctx, dev), nil
	}
}

// Run implements [skill.Daemon]: one poller per device with a poll
// interval, each the single writer of its status snapshot.
func (p *Plugs) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, dev := range p.devices {
		if dev.PollInterval <= 0 {
			continue
		}
		wg.Add(1)
		go func(dev PlugDevice) {
			defer wg.Done()
			p.poll(ctx, dev)
		}(dev)
	}
	wg.Wait()
	return nil
}

func (p *Plugs) poll(ctx context.Context, dev PlugDevice) {
	ticker := time.NewTicker(dev.PollInterval)
	defer ticker.Stop()
	for {
		p.board.Publish(dev.Nickname, p.snapshot(ctx, dev))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// DeviceStatus implements [skill.StatusProvider]. Polled devices answer from
// their snapshot; the rest are probed live.
func (p *Plugs) DeviceStatus(ctx context.Context, nickname string) (map[string]any, bool) {
	dev, ok := p.lookup(nickname)
	if !ok {
		return nil, false
	}
	if st, ok := p.board.Get(dev.Nickname); ok {
		return st, true
	}
	return p.snapshot(ctx, dev), true
}

// Devices implements [skill.DeviceLister].
func (p *Plugs) Devices() (toggles, status []string) {
	for _, d := range p.devices {
		if d.Kind == PlugToggle {
			toggles = append(toggles, d.Nickname)
		} else {
			status = append(status, d.Nickname)
		}
	}
	return toggles, status
}

// ─── Device access ──────────────────────────────────────────────────────────

func (p *Plugs) switchRelay(ctx context.Context, dev PlugDevice, on bool) (string, error) {
	turn := "off"
	verb := "Desliguei"
	if on {
		turn = "on"
		verb = "Liguei"
	}
	if err := p.getJSON(ctx, dev.URL+"/relay/0?turn="+turn, nil); err != nil {
		slog.Warn("plugs: switch failed", "device", dev.Nickname, "err", err)
		return fmt.Sprintf("Não consegui contactar a %s.", dev.Nickname), nil
	}
	return fmt.Sprintf("%s a %s.", verb, dev.Nickname), nil
}

// describe answers a spoken status question.
func (p *Plugs) describe(ctx context.Context, dev PlugDevice) string {
	st := p.snapshot(ctx, dev)
	if state, _ := st["state"].(string); state == "unreachable" {
		return fmt.Sprintf("A %s não está a responder.", dev.Nickname)
	}

	if dev.Kind == PlugToggle {
		if st["state"] == "on" {
			return fmt.Sprintf("A %s está ligada.", dev.Nickname)
		}
		return fmt.Sprintf("A %s está desligada.", dev.Nickname)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A %s reporta", dev.Nickname)
	n := 0
	for k, v := range st {
		if k == "state" {
			continue
		}
		if n > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, " %s %v", k, v)
		n++
	}
	if n == 0 {
		return fmt.Sprintf("A %s está acessível mas não reporta leituras.", dev.Nickname)
	}
	b.WriteString(".")
	return b.String()
}

// snapshot reads the device's current state into a status snapshot.
func (p *Plugs) snapshot(ctx context.Context, dev PlugDevice) map[string]any {
	if dev.Kind == PlugToggle {
		var relay struct {
			IsOn bool `json:"ison"`
		}
		if err := p.getJSON(ctx, dev.URL+"/relay/0", &relay); err != nil {
			return map[string]any{"state": "unreachable"}
		}
		state := "off"
		if relay.IsOn {
			state = "on"
		}
		return map[string]any{"state": state}
	}

	var readings map[string]any
	if err := p.getJSON(ctx, dev.URL+"/status", &readings); err != nil {
		return map[string]any{"state": "unreachable"}
	}
	st := map[string]any{"state": "on"}
	for k, v := range flatten("", readings) {
		st[k] = v
	}
	return st
}

func (p *Plugs) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("device returned %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// flatten turns nested sensor readings into dotted scalar keys.
func flatten(prefix string, in map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for nk, nv := range flatten(key, nested) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}

// ─── Nickname resolution ────────────────────────────────────────────────────

// resolve picks the device whose nickname best matches the utterance. A
// device qualifies when most of its nickname's content words have a fuzzy
// counterpart in the utterance.
func (p *Plugs) resolve(lower string) (PlugDevice, bool) {
	promptWords := strings.Fields(lower)
	best := -1
	bestScore := 0.0
	for i, dev := range p.devices {
		score := nicknameScore(dev.Nickname, promptWords)
		if score > bestScore {
			bestScore = score
			best = i
		}
	}
	if best < 0 || bestScore < 0.5 {
		return PlugDevice{}, false
	}
	return p.devices[best], true
}

// lookup finds a device by exact nickname, case-insensitively.
func (p *Plugs) lookup(nickname string) (PlugDevice, bool) {
	for _, d := range p.devices {
		if strings.EqualFold(d.Nickname, nickname) {
			return d, true
		}
	}
	return PlugDevice{}, false
}

// nicknameScore is the fraction of the nickname's content words present in
// the utterance, allowing phonetic near-misses.
func nicknameScore(nickname string, promptWords []string) float64 {
	words := contentWords(nickname)
	if len(words) == 0 {
		return 0
	}
	matched := 0
	for _, w := range words {
		for _, pw := range promptWords {
			if wordsAlike(w, pw) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(words))
}

// wordsAlike reports whether two words sound or look the same: identical,
// same Double Metaphone encoding, or a high Jaro-Winkler similarity.
func wordsAlike(a, b string) bool {
	if a == b {
		return true
	}
	pa, sa := matchr.DoubleMetaphone(a)
	pb, sb := matchr.DoubleMetaphone(b)
	if pa != "" && (pa == pb || pa == sb || (sa != "" && sa == pb)) {
		return true
	}
	return matchr.JaroWinkler(a, b, false) >= plugFuzzyFloor
}

// hasWord reports whether any of words appears as a whole word in lower.
func hasWord(lower string, words []string) bool {
	for _, f := range strings.Fields(lower) {
		f = strings.Trim(f, ".,!?")
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}

// contentWords returns the lower-cased words of a nickname that carry
// meaning (articles and prepositions dropped).
func contentWords(s string) []string {
	var out []string
	for _, w := range strings.Fields(strings.ToLower(s)) {
		if len([]rune(w)) > 2 {
			out = append(out, w)
		}
	}
	return out
}
