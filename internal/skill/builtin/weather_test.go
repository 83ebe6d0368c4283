package builtin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const forecastBody = `{
	"current": {"temperature_2m": 17.4, "weather_code": 61},
	"daily": {
		"temperature_2m_max": [19.2, 22.8],
		"temperature_2m_min": [12.1, 14.0],
		"weather_code": [61, 0]
	}
}`

func newTestWeather(t *testing.T, body string, status int) *Weather {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("latitude") == "" {
			t.Error("request missing latitude")
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewWeather(41.15, -8.61, "no Porto", WithForecastURL(srv.URL))
}

func TestWeatherToday(t *testing.T) {
	w := newTestWeather(t, forecastBody, http.StatusOK)

	got, err := w.Handle(context.Background(), "como está o tempo", "")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	want := "Atualmente no Porto estão 17 graus com chuva fraca. A máxima para hoje é 19 e a mínima 12."
	if got != want {
		t.Fatalf("Handle() = %q, want %q", got, want)
	}
}

func TestWeatherTomorrow(t *testing.T) {
	w := newTestWeather(t, forecastBody, http.StatusOK)

	got, err := w.Handle(context.Background(), "qual é a previsão para amanhã", "")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !strings.Contains(got, "A previsão para amanhã no Porto é céu limpo") {
		t.Fatalf("Handle() = %q, missing forecast", got)
	}
	if !strings.Contains(got, "Amanhã não chove.") {
		t.Fatalf("Handle() = %q, missing rain summary", got)
	}
}

func TestWeatherRainSummary(t *testing.T) {
	body := strings.Replace(forecastBody, `"weather_code": [61, 0]`, `"weather_code": [61, 80]`, 1)
	w := newTestWeather(t, body, http.StatusOK)

	got, err := w.Handle(context.Background(), "vai chover amanhã", "")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !strings.Contains(got, "Amanhã vai chover.") {
		t.Fatalf("Handle() = %q, missing rain warning", got)
	}
}

func TestWeatherAPIFailureFallsThrough(t *testing.T) {
	w := newTestWeather(t, "oops", http.StatusInternalServerError)

	got, err := w.Handle(context.Background(), "como está o tempo", "")
	if err == nil {
		t.Fatal("Handle() error = nil, want failure so the router falls through")
	}
	if got != "" {
		t.Fatalf("Handle() = %q, want empty on failure", got)
	}
}
