package web

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"pin/internal/battery"
	"pin/internal/panel"
)

// statusResponse mirrors the fields spec §6 names for GET /api/status,
// all left at their zero value where a dependency wasn't wired in.
type statusResponse struct {
	FirmwareVersion    string      `json:"firmware_version"`
	DeviceName         string      `json:"device_name"`
	BatteryVoltage     int         `json:"battery_voltage"`
	BatteryPercentage  int         `json:"battery_percentage"`
	Wifi               wifiStatus  `json:"wifi"`
	System             systemStats `json:"system"`
}

type wifiStatus struct {
	Connected bool   `json:"connected"`
	SSID      string `json:"ssid"`
	RSSI      int    `json:"rssi"`
}

type systemStats struct {
	FreeHeap uint64 `json:"free_heap"`
	Uptime   int64  `json:"uptime"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		FirmwareVersion: s.cfg.FirmwareVersion,
		DeviceName:      s.cfg.DeviceName,
		System:          s.currentSystemStats(),
	}

	if s.batteryRd != nil {
		if st, ok := s.cachedBattery(r.Context()); ok {
			resp.BatteryVoltage = st.VoltageMv
			resp.BatteryPercentage = st.Percent
		}
	}

	if s.wifiFSM != nil {
		wst := s.wifiFSM.Status()
		resp.Wifi = wifiStatus{
			Connected: wst.Connected,
			SSID:      wst.TargetSSID,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) currentSystemStats() systemStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return systemStats{
		FreeHeap: mem.HeapIdle,
		Uptime:   int64(time.Since(s.startTime).Seconds()),
	}
}

// cachedBattery applies the same short-TTL in-memory cache the teacher
// uses for /api/battery, since a full I2C transaction on every status
// poll is wasted work for a value that barely moves second to second.
func (s *Server) cachedBattery(ctx context.Context) (battery.Status, bool) {
	const ttl = 30 * time.Second
	now := time.Now()

	s.batteryMu.RLock()
	bc := s.batteryCache
	s.batteryMu.RUnlock()
	if bc != nil && now.Sub(bc.updatedAt) < ttl {
		return bc.status, true
	}

	st, err := s.batteryRd.Read(ctx)
	if err != nil {
		return battery.Status{}, false
	}

	s.batteryMu.Lock()
	s.batteryCache = &batteryCache{status: st, updatedAt: now}
	s.batteryMu.Unlock()
	return st, true
}

func (s *Server) handleDisplayRefresh(w http.ResponseWriter, r *http.Request) {
	if s.displaySvc == nil {
		writeError(w, http.StatusServiceUnavailable, "display not available")
		return
	}
	if err := s.displaySvc.Refresh(r.Context(), panel.RefreshFull); err != nil {
		writeErr(w, "web.display_refresh", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDisplayClear(w http.ResponseWriter, r *http.Request) {
	if s.displaySvc == nil {
		writeError(w, http.StatusServiceUnavailable, "display not available")
		return
	}
	if err := s.displaySvc.Clear(r.Context()); err != nil {
		writeErr(w, "web.display_clear", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
