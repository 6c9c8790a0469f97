package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"pin/internal/battery"
	"pin/internal/config"
)

type fakeBatteryReader struct {
	status battery.Status
	err    error
}

func (f *fakeBatteryReader) Read(ctx context.Context) (battery.Status, error) {
	return f.status, f.err
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = t.TempDir()
	}
	return NewServer(Deps{
		Config:    cfg,
		BatteryRd: &fakeBatteryReader{status: battery.Status{Percent: 80, VoltageMv: 4100}},
	})
}

func TestHandleStatusReturnsFirmwareAndDeviceInfo(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.FirmwareVersion = "1.2.3"
	cfg.DeviceName = "desk-panel"
	s := newTestServer(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body statusResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.FirmwareVersion != "1.2.3" || body.DeviceName != "desk-panel" {
		t.Errorf("body = %+v", body)
	}
	if body.BatteryPercentage != 80 {
		t.Errorf("BatteryPercentage = %d, want 80", body.BatteryPercentage)
	}
}

func TestHandleDisplayRefreshWithoutServiceIs503(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/display/refresh", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}

func TestHandleStaticFileServesIndexAndMisses404(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StaticDir = t.TempDir()
	if err := os.WriteFile(filepath.Join(cfg.StaticDir, "index.html"), []byte("<html></html>"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s := newTestServer(t, cfg)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", rr.Code)
	}

	rr2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	if rr2.Code != http.StatusNotFound {
		t.Fatalf("GET /app.js status = %d, want 404", rr2.Code)
	}
}

func TestBasicAuthMiddlewareExemptsStaticShellButGuardsAPI(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.StaticDir = t.TempDir()
	if err := os.WriteFile(filepath.Join(cfg.StaticDir, "index.html"), []byte("ok"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	s := newTestServer(t, cfg)

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("exempt path status = %d, want 200", rr.Code)
	}

	rr2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr2, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rr2.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated API status = %d, want 401", rr2.Code)
	}

	req3 := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req3.SetBasicAuth("admin", "secret")
	rr3 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr3, req3)
	if rr3.Code != http.StatusOK {
		t.Fatalf("authenticated API status = %d, want 200", rr3.Code)
	}
}

func TestSecureCompare(t *testing.T) {
	if !secureCompare("abc", "abc") {
		t.Errorf("secureCompare(abc, abc) = false, want true")
	}
	if secureCompare("abc", "abcd") {
		t.Errorf("secureCompare with different lengths should be false")
	}
	if secureCompare("abc", "abd") {
		t.Errorf("secureCompare with different content should be false")
	}
}

func TestBasicAuthEnabledRequiresBothFields(t *testing.T) {
	cfg := config.DefaultConfig()
	s := newTestServer(t, cfg)
	if s.basicAuthEnabled() {
		t.Errorf("basicAuthEnabled() with no BasicAuth config should be false")
	}

	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin"}
	if s.basicAuthEnabled() {
		t.Errorf("basicAuthEnabled() with only a username should be false")
	}
}
