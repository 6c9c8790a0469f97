package builtin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pin/internal/calendar"
	"pin/internal/perr"
	"pin/internal/plugin"
)

const (
	calendarDefaultWindow = 7 * 24 * time.Hour
	calendarMaxLines      = 5
)

// Calendar renders upcoming occurrences from one or more ICS subscription
// URLs, wiring the fetch/parse/expand pipeline adapted from the teacher's
// standalone ICS application into a single registered widget.
type Calendar struct {
	plugin.Base

	fetcher *calendar.Fetcher
	loc     *time.Location

	lines []string
}

// NewCalendar builds a Calendar plugin whose HTTP cache lives under
// cacheDir (e.g. a subdirectory of the daemon's state directory).
func NewCalendar(cacheDir string, loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.Local
	}
	return &Calendar{
		fetcher: calendar.NewFetcher(cacheDir),
		loc:     loc,
	}
}

func (c *Calendar) Metadata() plugin.Metadata {
	return plugin.Metadata{
		Name:        "calendar",
		Version:     "1.0.0",
		Author:      "Pin Team",
		Description: "Upcoming events from subscribed ICS calendars",
		Homepage:    "https://github.com/pin-project",
	}
}

func (c *Calendar) DefaultConfig() plugin.Config {
	return plugin.Config{
		MemoryLimit:    32 * 1024,
		UpdateInterval: 15 * time.Minute,
		APIRateLimit:   20,
		AutoStart:      true,
		Persistent:     true,
	}
}

func (c *Calendar) Start(ctx context.Context, host plugin.HostAPI) error {
	if err := c.refresh(ctx, host); err != nil {
		host.Log(plugin.LogWarn, "calendar", "initial refresh failed: %v", err)
	}
	return nil
}

func (c *Calendar) Update(ctx context.Context, host plugin.HostAPI) error {
	return c.refresh(ctx, host)
}

func (c *Calendar) ConfigChanged(ctx context.Context, host plugin.HostAPI, key, value string) error {
	if key == "ics_urls" {
		return c.refresh(ctx, host)
	}
	return nil
}

func (c *Calendar) Render(ctx context.Context, host plugin.HostAPI) error {
	host.UpdateContent(c.format())
	return nil
}

func (c *Calendar) Cleanup(ctx context.Context, host plugin.HostAPI) error {
	c.lines = nil
	return nil
}

func (c *Calendar) sources(host plugin.HostAPI) []calendar.Source {
	raw, ok := host.ConfigGet("ics_urls")
	if !ok || raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]calendar.Source, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, calendar.Source{ID: fmt.Sprintf("src%d", i), URL: p})
	}
	return out
}

func (c *Calendar) refresh(ctx context.Context, host plugin.HostAPI) error {
	srcs := c.sources(host)
	if len(srcs) == 0 {
		return perr.New(perr.InvalidArgument, "calendar.refresh", "no ics_urls configured")
	}

	results, errs := c.fetcher.FetchAll(ctx, srcs)
	if len(results) == 0 && len(errs) > 0 {
		return perr.Wrap(perr.Timeout, "calendar.refresh", "all sources failed", errs[0])
	}

	var parsed []calendar.ParsedEvent
	for _, res := range results {
		events, err := calendar.ParseICS(res.Source, res.Body)
		if err != nil {
			host.Log(plugin.LogWarn, "calendar", "parse failed for %s: %v", res.Source.ID, err)
			continue
		}
		parsed = append(parsed, events...)
	}

	now := time.Now().In(c.loc)
	expanded, err := calendar.ExpandOccurrences(parsed, calendar.ExpandConfig{
		DisplayLocation: c.loc,
		RangeStart:      now,
		RangeEnd:        now.Add(calendarDefaultWindow),
	})
	if err != nil {
		return perr.Wrap(perr.InvalidArgument, "calendar.refresh", "expand failed", err)
	}

	occ := expanded.Occurrences
	sortOccurrences(occ)

	lines := make([]string, 0, calendarMaxLines)
	for i, o := range occ {
		if i >= calendarMaxLines {
			break
		}
		lines = append(lines, formatOccurrence(o))
	}
	c.lines = lines

	host.UpdateContent(c.format())
	return nil
}

func sortOccurrences(occ []calendar.Occurrence) {
	for i := 1; i < len(occ); i++ {
		for j := i; j > 0 && occ[j].Start.Before(occ[j-1].Start); j-- {
			occ[j], occ[j-1] = occ[j-1], occ[j]
		}
	}
}

func formatOccurrence(o calendar.Occurrence) string {
	if o.AllDay {
		return fmt.Sprintf("%s  %s", o.Start.Format("Jan 2"), o.Summary)
	}
	return fmt.Sprintf("%s  %s", o.Start.Format("Jan 2 15:04"), o.Summary)
}

func (c *Calendar) format() string {
	if len(c.lines) == 0 {
		return "No upcoming events"
	}
	return strings.Join(c.lines, "\n")
}
