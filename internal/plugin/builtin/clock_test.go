package builtin

import (
	"context"
	"testing"
	"time"

	"pin/internal/color"
	"pin/internal/plugin"
)

// fakeHost is a test double for plugin.HostAPI (this package's own
// contract), letting the built-in plugins be exercised without a real
// registry, KV store, or network.
type fakeHost struct {
	content  string
	clr      color.Color
	fontSize int
	cfg      map[string]string
	getFn    func(ctx context.Context, rawURL string) ([]byte, error)
}

func newFakeHost() *fakeHost {
	return &fakeHost{cfg: make(map[string]string)}
}

func (h *fakeHost) Log(level plugin.LogLevel, tag, format string, args ...any) {}

func (h *fakeHost) HTTPGet(ctx context.Context, rawURL string) ([]byte, error) {
	if h.getFn != nil {
		return h.getFn(ctx, rawURL)
	}
	return nil, nil
}
func (h *fakeHost) HTTPPost(ctx context.Context, rawURL string, body []byte) ([]byte, error) {
	return nil, nil
}

func (h *fakeHost) ConfigGet(key string) (string, bool) {
	v, ok := h.cfg[key]
	return v, ok
}
func (h *fakeHost) ConfigSet(key, value string) error {
	h.cfg[key] = value
	return nil
}
func (h *fakeHost) ConfigDelete(key string) error {
	delete(h.cfg, key)
	return nil
}

func (h *fakeHost) TimestampMS() int64 { return 0 }
func (h *fakeHost) FormatTime(format string) string {
	return time.Date(2026, 1, 15, 13, 4, 5, 0, time.UTC).Format(format)
}

func (h *fakeHost) UpdateContent(text string) { h.content = text }
func (h *fakeHost) SetColor(c color.Color)    { h.clr = c }
func (h *fakeHost) SetFontSize(n int)         { h.fontSize = n }

func (h *fakeHost) ScheduleUpdate(delay time.Duration) {}
func (h *fakeHost) CancelScheduledUpdate()             {}

func (h *fakeHost) Emit(name string, payload any)                           {}
func (h *fakeHost) Subscribe(name string, cb func(payload any)) func()      { return func() {} }

func (h *fakeHost) Alloc(size int) error { return nil }
func (h *fakeHost) Free(size int)        {}

func TestClockMetadataAndDefaultConfig(t *testing.T) {
	c := NewClock()
	if c.Metadata().Name != "clock" {
		t.Fatalf("Metadata().Name = %q, want clock", c.Metadata().Name)
	}
	if !c.DefaultConfig().AutoStart {
		t.Fatalf("clock's DefaultConfig should AutoStart")
	}
}

func TestClockUpdateWritesFormattedTime(t *testing.T) {
	c := NewClock()
	h := newFakeHost()
	if err := c.Init(context.Background(), h); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if h.fontSize != 32 {
		t.Errorf("Init did not set font size, got %d", h.fontSize)
	}
	if err := c.Update(context.Background(), h); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if h.content != "13:04:05" {
		t.Errorf("content = %q, want 13:04:05", h.content)
	}
}

func TestClockRenderSetsColorAndShorterFormat(t *testing.T) {
	c := NewClock()
	h := newFakeHost()
	if err := c.Render(context.Background(), h); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if h.content != "13:04" {
		t.Errorf("content = %q, want 13:04", h.content)
	}
	if h.clr != color.Black {
		t.Errorf("color = %v, want black", h.clr)
	}
}
