package web

import (
	"net/http"
)

// pluginSummaryDTO is the JSON-friendly view of plugin.Summary for
// GET /api/plugins.
type pluginSummaryDTO struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Description string `json:"description"`
	State       string `json:"state"`
	AutoStart   bool   `json:"auto_start"`
	MemoryUsed  int    `json:"memory_used"`
	MemoryLimit int    `json:"memory_limit"`
	ErrorCount  int    `json:"error_count"`
}

func (s *Server) handlePluginList(w http.ResponseWriter, r *http.Request) {
	if s.pluginRT == nil {
		writeJSON(w, http.StatusOK, []pluginSummaryDTO{})
		return
	}

	list := s.pluginRT.List()
	out := make([]pluginSummaryDTO, 0, len(list))
	for _, sum := range list {
		out = append(out, pluginSummaryDTO{
			Name:        sum.Metadata.Name,
			Version:     sum.Metadata.Version,
			Author:      sum.Metadata.Author,
			Description: sum.Metadata.Description,
			State:       sum.State.String(),
			AutoStart:   sum.Config.AutoStart,
			MemoryUsed:  sum.Stats.MemoryUsed,
			MemoryLimit: sum.Config.MemoryLimit,
			ErrorCount:  sum.Stats.ErrorCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePluginToggle enables or disables the named plugin per spec §6
// ("body { enabled: bool }").
func (s *Server) handlePluginToggle(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if s.pluginRT == nil {
		writeError(w, http.StatusServiceUnavailable, "plugin runtime not available")
		return
	}

	var err error
	if req.Enabled {
		err = s.pluginRT.Enable(r.Context(), name)
	} else {
		err = s.pluginRT.Disable(r.Context(), name)
	}
	if err != nil {
		writeErr(w, "web.plugin_toggle", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
