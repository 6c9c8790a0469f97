package wifi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	appLog "pin/internal/log"
)

const portalIP = "192.168.4.1"

// portalServer is the captive-portal HTTP surface plus the DNS
// catch-all server, started on entry into ApMode and stopped once
// PortalActive hands off to Connecting.
type portalServer struct {
	fsm    *FSM
	http   *http.Server
	dns    *dnsServer
	cancel context.CancelFunc
}

func newPortalServer(fsm *FSM) *portalServer {
	return &portalServer{fsm: fsm}
}

func (p *portalServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/wifi/scan", p.handleScan)
	mux.HandleFunc("/api/wifi/connect", p.handleConnect)
	mux.HandleFunc("/api/status", p.handleStatus)
	mux.HandleFunc("/", p.handleRoot)

	p.http = &http.Server{
		Addr:         portalIP + ":80",
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		if err := p.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Error("wifi portal: http server exited", err)
		}
	}()

	dns, err := newDNSServer(portalIP)
	if err != nil {
		return err
	}
	p.dns = dns
	go p.dns.Serve()

	return nil
}

func (p *portalServer) Stop() {
	if p.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = p.http.Shutdown(ctx)
	}
	if p.dns != nil {
		p.dns.Close()
	}
}

func (p *portalServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "http://"+portalIP+"/config", http.StatusFound)
}

func (p *portalServer) handleScan(w http.ResponseWriter, r *http.Request) {
	nets, err := p.fsm.Scan(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"networks": nets})
}

type connectRequest struct {
	SSID     string `json:"ssid"`
	Password string `json:"password"`
}

func (p *portalServer) handleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request"})
		return
	}
	if err := p.fsm.SubmitCredentials(req.SSID, req.Password); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (p *portalServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, p.fsm.Status())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
