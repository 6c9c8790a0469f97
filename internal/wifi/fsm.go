package wifi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pin/internal/kv"
	appLog "pin/internal/log"
	"pin/internal/perr"
)

// FSM runs the eight-state provisioning/connection machine as a single
// 1 Hz worker, reacting to link events coalesced between ticks (spec §5
// "Wi-Fi FSM transitions are monotonic within a run of the FSM tick;
// external link events are coalesced between ticks").
type FSM struct {
	cfg   Config
	radio Radio
	creds *credentialStore

	mu              sync.Mutex
	state           State
	apSSID          string
	target          Credentials
	configReceived  bool
	forceAPMode     bool
	retryCount      int
	persistedCreds  Credentials
	portalStart     time.Time
	connectDeadline time.Time
	waitUntil       time.Time

	portal *portalServer

	quit chan struct{}
	done chan struct{}
}

// New builds an FSM in the Idle state. Credentials are written only by
// the FSM itself (spec §5): HTTP handlers hand new credentials in via
// SubmitCredentials, never by writing the store directly.
func New(radio Radio, store kv.Store, cfg Config) *FSM {
	return &FSM{
		cfg:   cfg,
		radio: radio,
		creds: newCredentialStore(store),
		state: Idle,
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Run drives the tick loop until ctx is cancelled or Stop is called.
func (f *FSM) Run(ctx context.Context) {
	defer close(f.done)

	ticker := time.NewTicker(f.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.quit:
			return
		case <-ticker.C:
			f.tick()
		}
	}
}

// Stop requests the worker exit; it does not block on exit.
func (f *FSM) Stop() { close(f.quit) }

// Done reports whether Run has returned.
func (f *FSM) Done() <-chan struct{} { return f.done }

// SetForceAPMode makes CheckSaved always choose ApMode regardless of
// saved credentials, for a user-initiated "re-provision" action.
func (f *FSM) SetForceAPMode(v bool) {
	f.mu.Lock()
	f.forceAPMode = v
	f.mu.Unlock()
}

// SubmitCredentials is how the captive-portal HTTP handler hands new
// credentials to the FSM (spec §5): it sets a flag and a struct, never
// writing the credential store directly.
func (f *FSM) SubmitCredentials(ssid, password string) error {
	if ssid == "" {
		return perr.New(perr.InvalidArgument, "wifi.submit_credentials", "ssid is required")
	}
	f.mu.Lock()
	f.target = Credentials{SSID: ssid, Password: password}
	f.configReceived = true
	f.mu.Unlock()
	return nil
}

// Status returns a read-only provisioning snapshot for GET /api/status.
func (f *FSM) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Status{
		State:      f.state,
		APSSID:     f.apSSID,
		TargetSSID: f.target.SSID,
		Connected:  f.state == Connected,
		RetryCount: f.retryCount,
	}
}

// Scan delegates to the radio for the captive portal's /api/wifi/scan.
func (f *FSM) Scan(ctx context.Context) ([]Network, error) {
	return f.radio.Scan(ctx)
}

// ClearCredentials erases any saved station credentials and sets the
// force-AP flag, so the FSM chooses ApMode the next time it passes
// through CheckSaved, for a user-initiated factory reset. It does not
// change the current state: a station link that is up stays up.
func (f *FSM) ClearCredentials() error {
	f.SetForceAPMode(true)
	return f.creds.Clear()
}

func (f *FSM) setState(s State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *FSM) getState() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FSM) tick() {
	switch f.getState() {
	case Idle:
		f.tickIdle()
	case CheckSaved:
		f.tickCheckSaved()
	case ApMode:
		f.tickApMode()
	case PortalActive:
		f.tickPortalActive()
	case Connecting:
		f.tickConnecting()
	case Connected:
		f.tickConnected()
	case Failed:
		f.tickFailed()
	case Timeout:
		f.tickTimeout()
	}
}

func (f *FSM) tickIdle() {
	appLog.Info("wifi fsm: idle -> check_saved")
	f.setState(CheckSaved)
}

func (f *FSM) tickCheckSaved() {
	f.mu.Lock()
	force := f.forceAPMode
	f.mu.Unlock()

	creds, err := f.creds.Load()
	if err == nil && !force {
		f.mu.Lock()
		f.target = creds
		f.persistedCreds = creds
		f.mu.Unlock()
		appLog.Info("wifi fsm: check_saved -> connecting", "ssid", creds.SSID)
		f.beginConnecting()
		return
	}
	appLog.Info("wifi fsm: check_saved -> ap_mode")
	f.setState(ApMode)
}

func (f *FSM) tickApMode() {
	ssid := fmt.Sprintf("%s%s", f.cfg.APSSIDPrefix, f.radio.MACSuffix())

	if err := f.radio.StartAP(APConfig{SSID: ssid, Channel: 1, IP: "192.168.4.1"}); err != nil {
		appLog.Error("wifi fsm: start_ap failed", err)
	}

	f.mu.Lock()
	f.apSSID = ssid
	f.configReceived = false
	f.portalStart = time.Now()
	f.mu.Unlock()

	if f.portal == nil {
		f.portal = newPortalServer(f)
	}
	if err := f.portal.Start(); err != nil {
		appLog.Error("wifi fsm: captive portal start failed", err)
	}

	appLog.Info("wifi fsm: ap_mode -> portal_active", "ssid", ssid)
	f.setState(PortalActive)
}

func (f *FSM) tickPortalActive() {
	f.mu.Lock()
	received := f.configReceived
	elapsed := time.Since(f.portalStart)
	f.mu.Unlock()

	if received {
		if f.portal != nil {
			f.portal.Stop()
		}
		appLog.Info("wifi fsm: portal_active -> connecting")
		f.beginConnecting()
		return
	}
	if elapsed > f.cfg.ConfigTimeout {
		appLog.Info("wifi fsm: portal_active -> timeout")
		f.setState(Timeout)
	}
}

func (f *FSM) beginConnecting() {
	f.mu.Lock()
	target := f.target
	f.connectDeadline = time.Now().Add(f.cfg.ConnectTimeout)
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.ConnectTimeout)
	defer cancel()
	if err := f.radio.ConnectStation(ctx, target.SSID, target.Password); err != nil {
		appLog.Error("wifi fsm: connect_station failed", err)
	}
	f.setState(Connecting)
}

func (f *FSM) tickConnecting() {
	select {
	case ev := <-f.radio.Events():
		switch ev {
		case LinkGotIP:
			appLog.Info("wifi fsm: connecting -> connected")
			f.setState(Connected)
			f.tickConnected()
			return
		case LinkDisconnected, LinkFailed:
			appLog.Info("wifi fsm: connecting -> failed")
			f.setState(Failed)
			return
		}
	default:
	}

	f.mu.Lock()
	deadline := f.connectDeadline
	f.mu.Unlock()
	if time.Now().After(deadline) {
		appLog.Info("wifi fsm: connecting -> failed (timeout)")
		f.setState(Failed)
	}
}

func (f *FSM) tickConnected() {
	select {
	case ev := <-f.radio.Events():
		if ev == LinkDisconnected || ev == LinkFailed {
			appLog.Info("wifi fsm: connected -> connecting (link lost)")
			f.setState(Connecting)
			return
		}
	default:
	}

	f.mu.Lock()
	target := f.target
	needPersist := target != f.persistedCreds
	f.retryCount = 0
	f.mu.Unlock()

	if needPersist {
		if err := f.creds.Save(target); err != nil {
			appLog.Error("wifi fsm: persist credentials failed", err)
			return
		}
		f.mu.Lock()
		f.persistedCreds = target
		f.mu.Unlock()
	}
}

func (f *FSM) tickFailed() {
	f.mu.Lock()
	f.retryCount++
	retry := f.retryCount
	max := f.cfg.MaxRetry
	f.mu.Unlock()

	if retry <= max {
		appLog.Info("wifi fsm: failed -> connecting (retry)", "retry", retry, "max", max)
		time.Sleep(f.cfg.RetryDelay)
		f.beginConnecting()
		return
	}

	appLog.Info("wifi fsm: failed -> ap_mode (retries exhausted)")
	f.mu.Lock()
	f.retryCount = 0
	f.mu.Unlock()
	f.setState(ApMode)
}

func (f *FSM) tickTimeout() {
	appLog.Info("wifi fsm: timeout -> ap_mode")
	if f.portal != nil {
		f.portal.Stop()
	}
	time.Sleep(f.cfg.FailedCooldown)
	f.setState(ApMode)
}
