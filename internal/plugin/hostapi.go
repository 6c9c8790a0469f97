package plugin

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"pin/internal/color"
	"pin/internal/kv"
	"pin/internal/perr"
)

// LogLevel mirrors the severity levels the host logger accepts.
type LogLevel int

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
)

// HostAPI is the complete surface a plugin sees (spec §4.3 "Host API"). It
// is injected into every lifecycle call explicitly via its context
// argument rather than looked up through thread-local storage (spec §9
// Open Question 2: "treat the lookup as context passed explicitly").
type HostAPI interface {
	Log(level LogLevel, tag, format string, args ...any)

	HTTPGet(ctx context.Context, rawURL string) ([]byte, error)
	HTTPPost(ctx context.Context, rawURL string, body []byte) ([]byte, error)

	ConfigGet(key string) (string, bool)
	ConfigSet(key, value string) error
	ConfigDelete(key string) error

	TimestampMS() int64
	FormatTime(format string) string

	UpdateContent(text string)
	SetColor(c color.Color)
	SetFontSize(n int)

	ScheduleUpdate(delay time.Duration)
	CancelScheduledUpdate()

	Emit(name string, payload any)
	Subscribe(name string, cb func(payload any)) func()

	Alloc(size int) error
	Free(size int)
}

// hostContext is the concrete HostAPI handed to one plugin instance. Each
// registered plugin gets its own, closing over its own name, stats and
// widget region so the runtime can enforce quotas without the plugin
// knowing it is being metered.
type hostContext struct {
	name      string
	logf      func(level LogLevel, tag, format string, args ...any)
	allowlist []string
	client    *http.Client
	store     kv.Store
	bus       *eventBus
	widget    *WidgetState

	rec *record // owning registry record, for quota bookkeeping
}

func newHostContext(rec *record, store kv.Store, bus *eventBus, allowlist []string, logf func(LogLevel, string, string, ...any)) *hostContext {
	return &hostContext{
		name:      rec.plugin.Metadata().Name,
		logf:      logf,
		allowlist: allowlist,
		client:    &http.Client{Timeout: 10 * time.Second},
		store:     store,
		bus:       bus,
		widget:    &rec.widget,
		rec:       rec,
	}
}

// checkRateLimit meters one host-API call against the plugin's
// api_calls_count budget (spec §4.3), suspending the plugin for the
// supervisor's cooldown when a call trips the limit.
func (h *hostContext) checkRateLimit() error {
	if err := h.rec.checkRateLimit(); err != nil {
		h.rec.suspendSelf()
		return err
	}
	return nil
}

func (h *hostContext) Log(level LogLevel, tag, format string, args ...any) {
	if h.checkRateLimit() != nil {
		return
	}
	h.logf(level, tag, format, args...)
}

func (h *hostContext) domainAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	for _, allowed := range h.allowlist {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func (h *hostContext) HTTPGet(ctx context.Context, rawURL string) ([]byte, error) {
	if err := h.checkRateLimit(); err != nil {
		return nil, err
	}
	if !h.domainAllowed(rawURL) {
		return nil, perr.New(perr.NotAllowed, "plugin.http_get", rawURL)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, perr.Wrap(perr.InvalidArgument, "plugin.http_get", rawURL, err)
	}
	return h.doRequest(req)
}

func (h *hostContext) HTTPPost(ctx context.Context, rawURL string, body []byte) ([]byte, error) {
	if err := h.checkRateLimit(); err != nil {
		return nil, err
	}
	if !h.domainAllowed(rawURL) {
		return nil, perr.New(perr.NotAllowed, "plugin.http_post", rawURL)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, perr.Wrap(perr.InvalidArgument, "plugin.http_post", rawURL, err)
	}
	return h.doRequest(req)
}

func (h *hostContext) doRequest(req *http.Request) ([]byte, error) {
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, perr.Wrap(perr.Timeout, "plugin.http", req.URL.String(), err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perr.Wrap(perr.Timeout, "plugin.http", req.URL.String(), err)
	}
	return data, nil
}

func (h *hostContext) configKey(key string) string {
	return "plugin_" + h.name + "_" + key
}

func (h *hostContext) ConfigGet(key string) (string, bool) {
	if h.checkRateLimit() != nil {
		return "", false
	}
	blob, err := h.store.GetBlob("plugins", h.configKey(key))
	if err != nil {
		return "", false
	}
	return string(blob), true
}

func (h *hostContext) ConfigSet(key, value string) error {
	if err := h.checkRateLimit(); err != nil {
		return err
	}
	return h.store.SetBlob("plugins", h.configKey(key), []byte(value))
}

func (h *hostContext) ConfigDelete(key string) error {
	if err := h.checkRateLimit(); err != nil {
		return err
	}
	return h.store.Erase("plugins", h.configKey(key))
}

func (h *hostContext) TimestampMS() int64 { return time.Now().UnixMilli() }

func (h *hostContext) FormatTime(format string) string {
	return time.Now().Format(format)
}

func (h *hostContext) UpdateContent(text string) {
	h.widget.mu.Lock()
	defer h.widget.mu.Unlock()
	h.widget.Content = text
}

func (h *hostContext) SetColor(c color.Color) {
	h.widget.mu.Lock()
	defer h.widget.mu.Unlock()
	h.widget.Color = c
}

func (h *hostContext) SetFontSize(n int) {
	h.widget.mu.Lock()
	defer h.widget.mu.Unlock()
	h.widget.FontSize = n
}

func (h *hostContext) ScheduleUpdate(delay time.Duration) {
	h.rec.requestTick(delay)
}

func (h *hostContext) CancelScheduledUpdate() {
	h.rec.cancelTick()
}

func (h *hostContext) Emit(name string, payload any) {
	h.bus.emit(name, payload)
}

func (h *hostContext) Subscribe(name string, cb func(payload any)) func() {
	return h.bus.subscribe(name, cb)
}

func (h *hostContext) Alloc(size int) error {
	return h.rec.alloc(size)
}

func (h *hostContext) Free(size int) {
	h.rec.free(size)
}

// WidgetState is the advisory display signal a plugin's widget region
// carries (spec §4.3 Display category). The canvas/web layers read it
// when composing a plugin's region into the scene.
type WidgetState struct {
	mu       sync.Mutex
	Content  string
	Color    color.Color
	FontSize int
}

// WidgetSnapshot is a lock-free copy of a WidgetState, safe to read or
// pass by value outside the owning plugin's worker.
type WidgetSnapshot struct {
	Content  string
	Color    color.Color
	FontSize int
}

// Snapshot returns a copy safe to read outside the owning plugin's worker.
func (w *WidgetState) Snapshot() WidgetSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WidgetSnapshot{Content: w.Content, Color: w.Color, FontSize: w.FontSize}
}
