package web

import (
	"encoding/json"
	"io"
	"net/http"

	"pin/internal/canvas"
)

// canvasSummary is the list-view shape for GET /api/canvas, trimmed of
// the element payload the detail endpoint returns in full.
type canvasSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ElementCount int    `json:"element_count"`
	ModifiedTime int64  `json:"modified_time"`
}

func (s *Server) handleCanvasList(w http.ResponseWriter, r *http.Request) {
	ids, err := s.canvasEngine.List()
	if err != nil {
		writeErr(w, "web.canvas_list", err)
		return
	}

	summaries := make([]canvasSummary, 0, len(ids))
	for _, id := range ids {
		c, err := s.canvasEngine.Get(id)
		if err != nil {
			continue
		}
		summaries = append(summaries, canvasSummary{
			ID:           c.ID,
			Name:         c.Name,
			ElementCount: len(c.Elements),
			ModifiedTime: c.ModifiedTime,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"canvases": summaries,
		"total":    len(summaries),
	})
}

func (s *Server) handleCanvasCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		Background int    `json:"background_color"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	c, err := s.canvasEngine.Create(req.ID, req.Name, req.Background)
	if err != nil {
		writeErr(w, "web.canvas_create", err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleCanvasGet(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	c, err := s.canvasEngine.Get(id)
	if err != nil {
		writeErr(w, "web.canvas_get", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleCanvasUpdate(w http.ResponseWriter, r *http.Request) {
	var c canvas.Canvas
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "malformed canvas json")
		return
	}
	updated, err := s.canvasEngine.Update(c)
	if err != nil {
		writeErr(w, "web.canvas_update", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleCanvasDelete(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if err := s.canvasEngine.Delete(id); err != nil {
		writeErr(w, "web.canvas_delete", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCanvasDisplay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CanvasID string `json:"canvas_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if s.displaySvc == nil {
		writeError(w, http.StatusServiceUnavailable, "display not available")
		return
	}
	if err := s.canvasEngine.Display(r.Context(), s.displaySvc, req.CanvasID); err != nil {
		writeErr(w, "web.canvas_display", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleCanvasElement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CanvasID string          `json:"canvas_id"`
		Element  json.RawMessage `json:"element"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	el, err := canvas.ElementFromJSON(req.Element)
	if err != nil {
		writeErr(w, "web.canvas_element", err)
		return
	}
	if el.ID == "" {
		el.ID = canvas.NewElementID()
	}

	c, err := s.canvasEngine.AddElement(req.CanvasID, el)
	if err != nil {
		writeErr(w, "web.canvas_element", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// handleImageUpload stores a raw image body, classifying its format by
// magic bytes per spec §6 ("PNG/JPG/BMP detected by magic"); rasterizing
// it happens later, at render time, via internal/convert.
func (s *Server) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, canvas.MaxImageBytes+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	entry, err := s.canvasEngine.StoreImage(id, data, detectImageFormat(data))
	if err != nil {
		writeErr(w, "web.image_upload", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          id,
		"size":        entry.Size,
		"format":      int(entry.Format),
		"stored_time": entry.StoredTime,
	})
}

func detectImageFormat(data []byte) canvas.ImageFormat {
	switch {
	case len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n":
		return canvas.FormatPng
	case len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8:
		return canvas.FormatJpg
	case len(data) >= 2 && data[0] == 'B' && data[1] == 'M':
		return canvas.FormatBmp
	default:
		return canvas.FormatBmp
	}
}
