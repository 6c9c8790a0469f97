package builtin

import (
	"context"
	"strings"
	"testing"
)

func TestWeatherInitSeedsDefaultConfig(t *testing.T) {
	w := NewWeather()
	h := newFakeHost()
	if err := w.Init(context.Background(), h); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if v, _ := h.ConfigGet("city"); v != weatherDefaultCity {
		t.Errorf("city default = %q, want %q", v, weatherDefaultCity)
	}
	if v, _ := h.ConfigGet("api_key"); v != weatherPlaceholder {
		t.Errorf("api_key default = %q, want placeholder", v)
	}
}

func TestWeatherInitDoesNotOverwriteExistingConfig(t *testing.T) {
	w := NewWeather()
	h := newFakeHost()
	h.cfg["city"] = "Paris,FR"
	if err := w.Init(context.Background(), h); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if v, _ := h.ConfigGet("city"); v != "Paris,FR" {
		t.Errorf("Init overwrote an existing city config: %q", v)
	}
}

func TestWeatherFetchFailsWithoutAPIKey(t *testing.T) {
	w := NewWeather()
	h := newFakeHost()
	if err := w.Init(context.Background(), h); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := w.Update(context.Background(), h); err == nil {
		t.Fatalf("Update without a real API key should fail")
	}
}

func TestWeatherFetchParsesResponseAndRenders(t *testing.T) {
	w := NewWeather()
	h := newFakeHost()
	h.cfg["api_key"] = "real-key"
	h.cfg["city"] = "London,UK"
	h.cfg["units"] = "metric"
	h.getFn = func(ctx context.Context, rawURL string) ([]byte, error) {
		if !strings.Contains(rawURL, "appid=real-key") {
			t.Errorf("request URL missing api key: %s", rawURL)
		}
		return []byte(`{
			"name": "London",
			"sys": {"country": "GB"},
			"main": {"temp": 12.5, "humidity": 80},
			"weather": [{"main": "Clouds", "description": "overcast clouds"}]
		}`), nil
	}

	if err := w.fetch(context.Background(), h); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := w.Render(context.Background(), h); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(h.content, "London, GB") {
		t.Errorf("rendered content = %q, want it to mention London, GB", h.content)
	}
	if !strings.Contains(h.content, "overcast clouds") {
		t.Errorf("rendered content = %q, want the description", h.content)
	}
}

func TestWeatherUpdateSkipsRefetchWhenFresh(t *testing.T) {
	w := NewWeather()
	h := newFakeHost()
	h.cfg["api_key"] = "real-key"
	calls := 0
	h.getFn = func(ctx context.Context, rawURL string) ([]byte, error) {
		calls++
		return []byte(`{"name":"X","main":{"temp":1,"humidity":1},"weather":[{"main":"Clear","description":"clear"}]}`), nil
	}

	if err := w.Update(context.Background(), h); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	if err := w.Update(context.Background(), h); err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if calls != 1 {
		t.Fatalf("HTTPGet called %d times, want 1 (second Update should reuse fresh data)", calls)
	}
}

func TestWeatherCleanupResetsState(t *testing.T) {
	w := NewWeather()
	h := newFakeHost()
	h.cfg["api_key"] = "real-key"
	h.getFn = func(ctx context.Context, rawURL string) ([]byte, error) {
		return []byte(`{"name":"X","main":{"temp":1,"humidity":1}}`), nil
	}
	if err := w.Update(context.Background(), h); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := w.Cleanup(context.Background(), h); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if w.hasData {
		t.Fatalf("Cleanup did not clear hasData")
	}
	if got := w.format(); got != "Weather: No data" {
		t.Fatalf("format() after Cleanup = %q", got)
	}
}

func TestWeatherFormatWithoutData(t *testing.T) {
	w := NewWeather()
	if got := w.format(); got != "Weather: No data" {
		t.Fatalf("format() = %q, want placeholder", got)
	}
}
