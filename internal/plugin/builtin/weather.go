package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"pin/internal/perr"
	"pin/internal/plugin"
)

const (
	weatherDefaultCity  = "London,UK"
	weatherDefaultUnits = "metric"
	weatherPlaceholder  = "YOUR_OPENWEATHERMAP_API_KEY"
	weatherAPIBase      = "http://api.openweathermap.org/data/2.5/weather"
	weatherFreshFor     = 10 * time.Minute
)

// Weather fetches current conditions from OpenWeatherMap and renders a
// compact multi-line summary, following the reference plugin's
// init/config_get-or-default/fetch-on-update shape.
type Weather struct {
	plugin.Base

	lastFetch time.Time
	data      weatherData
	hasData   bool
}

type weatherData struct {
	Location    string
	Condition   string
	Description string
	Temperature float64
	Humidity    int
}

type weatherResponse struct {
	Name string `json:"name"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity int     `json:"humidity"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

func NewWeather() *Weather { return &Weather{} }

func (w *Weather) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        "weather",
		Version:     "1.0.0",
		Author:      "Pin Team",
		Description: "OpenWeatherMap weather display",
		Homepage:    "https://openweathermap.org",
	}
}

func (w *Weather) DefaultConfig() plugin.Config {
	return plugin.Config{
		MemoryLimit:    8192,
		UpdateInterval: weatherFreshFor,
		APIRateLimit:   60,
		AutoStart:      true,
		Persistent:     true,
	}
}

func (w *Weather) Init(ctx context.Context, host plugin.HostAPI) error {
	if _, ok := host.ConfigGet("api_key"); !ok {
		_ = host.ConfigSet("api_key", weatherPlaceholder)
	}
	if _, ok := host.ConfigGet("city"); !ok {
		_ = host.ConfigSet("city", weatherDefaultCity)
	}
	if _, ok := host.ConfigGet("units"); !ok {
		_ = host.ConfigSet("units", weatherDefaultUnits)
	}
	return nil
}

func (w *Weather) Start(ctx context.Context, host plugin.HostAPI) error {
	if err := w.fetch(ctx, host); err != nil {
		host.Log(plugin.LogWarn, "weather", "initial fetch failed: %v", err)
	}
	return nil
}

func (w *Weather) Update(ctx context.Context, host plugin.HostAPI) error {
	if w.hasData && time.Since(w.lastFetch) < weatherFreshFor {
		return nil
	}
	return w.fetch(ctx, host)
}

func (w *Weather) ConfigChanged(ctx context.Context, host plugin.HostAPI, key, value string) error {
	if key == "city" || key == "api_key" {
		w.hasData = false
		return w.fetch(ctx, host)
	}
	return nil
}

func (w *Weather) Render(ctx context.Context, host plugin.HostAPI) error {
	host.UpdateContent(w.format())
	return nil
}

func (w *Weather) Cleanup(ctx context.Context, host plugin.HostAPI) error {
	w.data = weatherData{}
	w.hasData = false
	return nil
}

func (w *Weather) fetch(ctx context.Context, host plugin.HostAPI) error {
	apiKey, _ := host.ConfigGet("api_key")
	if apiKey == "" || apiKey == weatherPlaceholder {
		return perr.New(perr.InvalidArgument, "weather.fetch", "no API key configured")
	}
	city, ok := host.ConfigGet("city")
	if !ok || city == "" {
		city = weatherDefaultCity
	}
	units, ok := host.ConfigGet("units")
	if !ok || units == "" {
		units = weatherDefaultUnits
	}

	q := url.Values{}
	q.Set("q", city)
	q.Set("appid", apiKey)
	q.Set("units", units)
	reqURL := weatherAPIBase + "?" + q.Encode()

	body, err := host.HTTPGet(ctx, reqURL)
	if err != nil {
		return perr.Wrap(perr.Timeout, "weather.fetch", city, err)
	}

	var resp weatherResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return perr.Wrap(perr.InvalidArgument, "weather.fetch", "malformed response", err)
	}

	loc := resp.Name
	if resp.Sys.Country != "" {
		loc = fmt.Sprintf("%s, %s", loc, resp.Sys.Country)
	}

	d := weatherData{
		Location:    loc,
		Temperature: resp.Main.Temp,
		Humidity:    resp.Main.Humidity,
	}
	if len(resp.Weather) > 0 {
		d.Condition = resp.Weather[0].Main
		d.Description = resp.Weather[0].Description
	}

	w.data = d
	w.hasData = true
	w.lastFetch = time.Now()

	host.UpdateContent(w.format())
	return nil
}

func (w *Weather) format() string {
	if !w.hasData {
		return "Weather: No data"
	}
	return fmt.Sprintf("%.0f°\n%s\n%s %d%%", w.data.Temperature, w.data.Location, w.data.Description, w.data.Humidity)
}
