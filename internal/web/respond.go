package web

import (
	"encoding/json"
	"net/http"

	appLog "pin/internal/log"
	"pin/internal/perr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

// errResp is the JSON error envelope from spec §7: a message plus the
// domain status it maps to, so a client can branch on status without
// parsing the message text.
type errResp struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errResp{Error: msg, Status: status})
}

// writeErr inspects err for a *perr.Error and maps its Kind to the
// conventional HTTP status from spec §7; anything else is a 500.
func writeErr(w http.ResponseWriter, op string, err error) {
	if pe, ok := err.(*perr.Error); ok {
		writeError(w, perr.HTTPStatus(pe.Kind), pe.Error())
		return
	}
	appLog.Error(op+": unclassified error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}
