// Package builtin holds the plugins shipped with the firmware itself,
// registered at boot through the same Runtime.Register path as any other
// plugin: clock, weather, and calendar, grounded on the reference implementation's
// pin_clock_plugin.c, pin_weather_plugin.c and the teacher's ICS app.
package builtin

import (
	"context"
	"time"

	"pin/internal/color"
	"pin/internal/plugin"
)

// Clock renders the current time into its widget on every update tick.
// It carries no state beyond what HostAPI.FormatTime already provides.
type Clock struct {
	plugin.Base
}

func NewClock() *Clock { return &Clock{} }

func (c *Clock) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        "clock",
		Version:     "1.0.0",
		Author:      "Pin Team",
		Description: "Simple clock display plugin",
		Homepage:    "https://github.com/pin-project",
	}
}

func (c *Clock) DefaultConfig() plugin.Config {
	return plugin.Config{
		MemoryLimit:    4096,
		UpdateInterval: 30 * time.Second,
		APIRateLimit:   10,
		AutoStart:      true,
		Persistent:     true,
	}
}

func (c *Clock) Init(ctx context.Context, host plugin.HostAPI) error {
	host.SetFontSize(32)
	return nil
}

func (c *Clock) Update(ctx context.Context, host plugin.HostAPI) error {
	host.UpdateContent(host.FormatTime("15:04:05"))
	return nil
}

func (c *Clock) Render(ctx context.Context, host plugin.HostAPI) error {
	host.UpdateContent(host.FormatTime("15:04"))
	host.SetColor(color.Black)
	return nil
}
