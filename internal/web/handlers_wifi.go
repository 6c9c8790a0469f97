package web

import (
	"net/http"
	"sort"
)

type networkDTO struct {
	SSID    string `json:"ssid"`
	RSSI    int    `json:"rssi"`
	Auth    string `json:"auth"`
	Channel int    `json:"channel"`
}

// handleWifiScan delegates to the FSM's radio, returning results sorted
// by descending RSSI per spec §6.
func (s *Server) handleWifiScan(w http.ResponseWriter, r *http.Request) {
	if s.wifiFSM == nil {
		writeError(w, http.StatusServiceUnavailable, "wifi not available")
		return
	}
	networks, err := s.wifiFSM.Scan(r.Context())
	if err != nil {
		writeErr(w, "web.wifi_scan", err)
		return
	}

	sort.Slice(networks, func(i, j int) bool { return networks[i].RSSI > networks[j].RSSI })

	out := make([]networkDTO, 0, len(networks))
	for _, n := range networks {
		out = append(out, networkDTO{SSID: n.SSID, RSSI: n.RSSI, Auth: n.Auth, Channel: n.Channel})
	}
	writeJSON(w, http.StatusOK, map[string]any{"networks": out})
}

// handleWifiConnect hands the submitted credentials to the FSM, which
// owns every subsequent transition and persistence decision (spec §5:
// "HTTP handlers hand new credentials in via SubmitCredentials, never by
// writing the store directly").
func (s *Server) handleWifiConnect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SSID     string `json:"ssid"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if s.wifiFSM == nil {
		writeError(w, http.StatusServiceUnavailable, "wifi not available")
		return
	}
	if err := s.wifiFSM.SubmitCredentials(req.SSID, req.Password); err != nil {
		writeErr(w, "web.wifi_connect", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
