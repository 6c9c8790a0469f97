package web

import (
	"net/http"

	"pin/internal/config"
)

func (s *Server) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg)
}

// handleSettingsPost merges the submitted fields onto the in-memory
// config and persists it via the same atomic-write path config.Save
// uses everywhere else (spec §6 "GET /api/settings, POST /api/settings").
func (s *Server) handleSettingsPost(w http.ResponseWriter, r *http.Request) {
	var next config.Config
	if err := decodeJSON(r, &next); err != nil {
		writeError(w, http.StatusBadRequest, "malformed settings json")
		return
	}
	next.Normalize()

	if s.cfgPath != "" {
		if err := config.Save(s.cfgPath, &next); err != nil {
			writeErr(w, "web.settings_post", err)
			return
		}
	}
	*s.cfg = next
	writeJSON(w, http.StatusOK, s.cfg)
}

func (s *Server) handleSystemRestart(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if s.restart != nil {
		go s.restart(false)
	}
}

// handleSystemFactoryReset clears saved Wi-Fi credentials and sets the
// provisioning FSM to choose AP mode at its next saved-credentials
// check, then triggers the same restart
// hook as a plain restart with factoryReset=true so main.go can decide
// whether to also wipe canvases/plugin config.
func (s *Server) handleSystemFactoryReset(w http.ResponseWriter, r *http.Request) {
	if s.wifiFSM != nil {
		if err := s.wifiFSM.ClearCredentials(); err != nil {
			writeErr(w, "web.factory_reset", err)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	if s.restart != nil {
		go s.restart(true)
	}
}

func (s *Server) handleSystemCheckUpdate(w http.ResponseWriter, r *http.Request) {
	if s.otaEngine == nil {
		writeError(w, http.StatusServiceUnavailable, "ota engine not available")
		return
	}
	if err := s.otaEngine.CheckUpdate(r.Context(), s.cfg.OTA.ManifestURL); err != nil {
		writeErr(w, "web.check_update", err)
		return
	}
	writeJSON(w, http.StatusOK, s.otaEngine.Status())
}
