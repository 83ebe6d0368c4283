package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fantasma-ai/fantasma/internal/skill"
)

const defaultForecastURL = "https://api.open-meteo.com/v1/forecast"

// WMO weather interpretation codes, spoken form.
var weatherCodes = map[int]string{
	0:  "céu limpo",
	1:  "céu pouco nublado",
	2:  "parcialmente nublado",
	3:  "encoberto",
	45: "nevoeiro",
	48: "nevoeiro com geada",
	51: "chuvisco fraco",
	53: "chuvisco",
	55: "chuvisco forte",
	61: "chuva fraca",
	63: "chuva moderada",
	65: "chuva forte",
	66: "chuva gelada fraca",
	67: "chuva gelada forte",
	71: "neve fraca",
	73: "neve moderada",
	75: "neve forte",
	80: "aguaceiros fracos",
	81: "aguaceiros moderados",
	82: "aguaceiros fortes",
	95: "trovoada",
	96: "trovoada com granizo",
	99: "trovoada com granizo forte",
}

// Weather answers forecast questions for the configured home location using
// the open-meteo forecast API.
type Weather struct {
	latitude  float64
	longitude float64
	location  string

	baseURL string
	client  *http.Client
}

var _ skill.Skill = (*Weather)(nil)

// WeatherOption configures the Weather skill.
type WeatherOption func(*Weather)

// WithForecastURL overrides the forecast endpoint (tests).
func WithForecastURL(u string) WeatherOption {
	return func(w *Weather) { w.baseURL = u }
}

// WithWeatherHTTPClient overrides the HTTP client.
func WithWeatherHTTPClient(c *http.Client) WeatherOption {
	return func(w *Weather) { w.client = c }
}

// NewWeather creates the skill for the given coordinates. location is the
// spoken name of the place ("no Porto").
func NewWeather(latitude, longitude float64, location string, opts ...WeatherOption) *Weather {
	w := &Weather{
		latitude:  latitude,
		longitude: longitude,
		location:  location,
		baseURL:   defaultForecastURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Name implements [skill.Skill].
func (*Weather) Name() string { return "weather" }

// TriggerType implements [skill.Skill].
func (*Weather) TriggerType() skill.TriggerType { return skill.TriggerContains }

// Triggers implements [skill.Skill].
func (*Weather) Triggers() []string {
	return []string{"tempo", "clima", "meteorologia", "previsão", "vai chover", "vai estar"}
}

type forecastResponse struct {
	Current struct {
		Temperature float64 `json:"temperature_2m"`
		WeatherCode int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		TemperatureMax []float64 `json:"temperature_2m_max"`
		TemperatureMin []float64 `json:"temperature_2m_min"`
		WeatherCode    []int     `json:"weather_code"`
	} `json:"daily"`
}

// Handle implements [skill.Skill]. Failures return an error so the router
// falls through to the LLM instead of leaving the question unanswered.
func (w *Weather) Handle(ctx context.Context, lower, _ string) (string, error) {
	fc, err := w.fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("weather: %w", err)
	}

	place := ""
	if w.location != "" {
		place = " " + w.location
	}

	if strings.Contains(lower, "amanhã") {
		if len(fc.Daily.WeatherCode) < 2 {
			return "", fmt.Errorf("weather: forecast missing tomorrow")
		}
		code := fc.Daily.WeatherCode[1]
		answer := fmt.Sprintf("A previsão para amanhã%s é %s, com máxima de %.0f e mínima de %.0f graus.",
			place, describeWeather(code), fc.Daily.TemperatureMax[1], fc.Daily.TemperatureMin[1])
		if rainyCode(code) {
			answer += " Amanhã vai chover."
		} else {
			answer += " Amanhã não chove."
		}
		return answer, nil
	}

	if len(fc.Daily.TemperatureMax) < 1 {
		return "", fmt.Errorf("weather: forecast missing today")
	}
	return fmt.Sprintf("Atualmente%s estão %.0f graus com %s. A máxima para hoje é %.0f e a mínima %.0f.",
		place, fc.Current.Temperature, describeWeather(fc.Current.WeatherCode),
		fc.Daily.TemperatureMax[0], fc.Daily.TemperatureMin[0]), nil
}

func (w *Weather) fetch(ctx context.Context) (*forecastResponse, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", w.latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", w.longitude))
	q.Set("current", "temperature_2m,weather_code")
	q.Set("daily", "temperature_2m_max,temperature_2m_min,weather_code")
	q.Set("forecast_days", "2")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("forecast API returned %s", resp.Status)
	}

	var fc forecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

func describeWeather(code int) string {
	if desc, ok := weatherCodes[code]; ok {
		return desc
	}
	return "condições desconhecidas"
}

// rainyCode reports whether a WMO code means precipitation.
func rainyCode(code int) bool {
	return code >= 51 && code <= 99
}
