package wifi

import (
	"context"
	"testing"
	"time"

	"pin/internal/kv"
)

// fakeRadio is a test double for the Radio interface (wifi.go's own
// contract), not a stand-in for a missing third-party dependency; there
// is no library in the retrieval pack that drives wpa_supplicant/hostapd.
type fakeRadio struct {
	events       chan LinkEvent
	connectCalls int
	connectErr   error
	networks     []Network
	apStarted    bool
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{events: make(chan LinkEvent, 4)}
}

func (r *fakeRadio) StartAP(cfg APConfig) error { r.apStarted = true; return nil }
func (r *fakeRadio) StopAP() error              { r.apStarted = false; return nil }
func (r *fakeRadio) ConnectStation(ctx context.Context, ssid, password string) error {
	r.connectCalls++
	return r.connectErr
}
func (r *fakeRadio) Disconnect() error                       { return nil }
func (r *fakeRadio) Scan(ctx context.Context) ([]Network, error) { return r.networks, nil }
func (r *fakeRadio) Events() <-chan LinkEvent                 { return r.events }
func (r *fakeRadio) MACSuffix() string                        { return "ABCD" }

func newTestFSM(t *testing.T, radio Radio) *FSM {
	t.Helper()
	store, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	cfg := DefaultConfig()
	cfg.TickInterval = time.Millisecond
	cfg.ConfigTimeout = 50 * time.Millisecond
	cfg.ConnectTimeout = 20 * time.Millisecond
	cfg.RetryDelay = time.Millisecond
	cfg.FailedCooldown = time.Millisecond
	return New(radio, store, cfg)
}

func TestTickIdleMovesToCheckSaved(t *testing.T) {
	f := newTestFSM(t, newFakeRadio())
	f.tick()
	if got := f.getState(); got != CheckSaved {
		t.Fatalf("state after idle tick = %v, want %v", got, CheckSaved)
	}
}

func TestCheckSavedGoesToApModeWithNoSavedCredentials(t *testing.T) {
	f := newTestFSM(t, newFakeRadio())
	f.setState(CheckSaved)
	f.tick()
	if got := f.getState(); got != ApMode {
		t.Fatalf("state = %v, want %v", got, ApMode)
	}
}

func TestCheckSavedConnectsWithSavedCredentials(t *testing.T) {
	radio := newFakeRadio()
	f := newTestFSM(t, radio)
	if err := f.creds.Save(Credentials{SSID: "home", Password: "pw"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	f.setState(CheckSaved)
	f.tick()

	if got := f.getState(); got != Connecting {
		t.Fatalf("state = %v, want %v", got, Connecting)
	}
	if radio.connectCalls != 1 {
		t.Fatalf("ConnectStation calls = %d, want 1", radio.connectCalls)
	}
}

func TestForceAPModeSkipsSavedCredentials(t *testing.T) {
	f := newTestFSM(t, newFakeRadio())
	if err := f.creds.Save(Credentials{SSID: "home", Password: "pw"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	f.SetForceAPMode(true)

	f.setState(CheckSaved)
	f.tick()

	if got := f.getState(); got != ApMode {
		t.Fatalf("state = %v, want %v", got, ApMode)
	}
}

func TestTickApModeStartsPortal(t *testing.T) {
	radio := newFakeRadio()
	f := newTestFSM(t, radio)
	f.setState(ApMode)
	f.tick()

	if !radio.apStarted {
		t.Fatalf("StartAP was not called")
	}
	if got := f.getState(); got != PortalActive {
		t.Fatalf("state = %v, want %v", got, PortalActive)
	}
	if f.Status().APSSID == "" {
		t.Fatalf("apSSID was not recorded in Status()")
	}
	t.Cleanup(func() {
		if f.portal != nil {
			f.portal.Stop()
		}
	})
}

func TestSubmitCredentialsDrivesPortalToConnecting(t *testing.T) {
	f := newTestFSM(t, newFakeRadio())
	f.setState(ApMode)
	f.tick() // -> PortalActive, starts the portal

	if err := f.SubmitCredentials("neighbor", "pw"); err != nil {
		t.Fatalf("SubmitCredentials: %v", err)
	}
	f.tick()

	if got := f.getState(); got != Connecting {
		t.Fatalf("state = %v, want %v", got, Connecting)
	}
}

func TestSubmitCredentialsRejectsEmptySSID(t *testing.T) {
	f := newTestFSM(t, newFakeRadio())
	if err := f.SubmitCredentials("", "pw"); err == nil {
		t.Fatalf("SubmitCredentials with empty ssid should fail")
	}
}

func TestPortalTimesOutToTimeoutState(t *testing.T) {
	f := newTestFSM(t, newFakeRadio())
	f.setState(ApMode)
	f.tick() // -> PortalActive

	time.Sleep(60 * time.Millisecond)
	f.tick()

	if got := f.getState(); got != Timeout {
		t.Fatalf("state = %v, want %v", got, Timeout)
	}
}

func TestConnectingSucceedsOnGotIP(t *testing.T) {
	radio := newFakeRadio()
	f := newTestFSM(t, radio)
	f.setState(Connecting)
	f.connectDeadline = time.Now().Add(time.Minute)
	radio.events <- LinkGotIP

	f.tick()

	if got := f.getState(); got != Connected {
		t.Fatalf("state = %v, want %v", got, Connected)
	}
}

func TestConnectingFailsOnLinkFailed(t *testing.T) {
	radio := newFakeRadio()
	f := newTestFSM(t, radio)
	f.setState(Connecting)
	f.connectDeadline = time.Now().Add(time.Minute)
	radio.events <- LinkFailed

	f.tick()

	if got := f.getState(); got != Failed {
		t.Fatalf("state = %v, want %v", got, Failed)
	}
}

func TestConnectingTimesOutToFailed(t *testing.T) {
	f := newTestFSM(t, newFakeRadio())
	f.setState(Connecting)
	f.connectDeadline = time.Now().Add(-time.Second)

	f.tick()

	if got := f.getState(); got != Failed {
		t.Fatalf("state = %v, want %v", got, Failed)
	}
}

func TestFailedRetriesThenFallsBackToApMode(t *testing.T) {
	f := newTestFSM(t, newFakeRadio())
	f.target = Credentials{SSID: "home", Password: "pw"}
	f.setState(Failed)

	for i := 0; i < f.cfg.MaxRetry; i++ {
		f.tick()
		if got := f.getState(); got != Connecting {
			t.Fatalf("retry %d: state = %v, want %v", i, got, Connecting)
		}
		f.setState(Failed)
	}

	f.tick()
	if got := f.getState(); got != ApMode {
		t.Fatalf("state after exhausting retries = %v, want %v", got, ApMode)
	}
}

func TestConnectedPersistsCredentialsAfterARetry(t *testing.T) {
	f := newTestFSM(t, newFakeRadio())
	f.target = Credentials{SSID: "home", Password: "pw"}
	f.retryCount = 1
	f.setState(Connected)

	f.tick()

	saved, err := f.creds.Load()
	if err != nil {
		t.Fatalf("creds.Load: %v", err)
	}
	if saved.SSID != "home" {
		t.Fatalf("persisted credentials = %+v, want ssid home", saved)
	}
	if f.Status().RetryCount != 0 {
		t.Fatalf("RetryCount not reset after persisting, got %d", f.Status().RetryCount)
	}
}

func TestConnectedPersistsCredentialsOnTheHappyPathWithNoRetry(t *testing.T) {
	radio := newFakeRadio()
	f := newTestFSM(t, radio)
	f.setState(ApMode)
	f.tick() // -> PortalActive, starts the portal

	if err := f.SubmitCredentials("home", "pw"); err != nil {
		t.Fatalf("SubmitCredentials: %v", err)
	}
	f.tick() // -> Connecting

	radio.events <- LinkGotIP
	f.tick() // -> Connected

	if got := f.getState(); got != Connected {
		t.Fatalf("state = %v, want %v", got, Connected)
	}
	if f.Status().RetryCount != 0 {
		t.Fatalf("RetryCount = %d, want 0 (no retry occurred on this path)", f.Status().RetryCount)
	}

	saved, err := f.creds.Load()
	if err != nil {
		t.Fatalf("creds.Load: %v", err)
	}
	if saved.SSID != "home" {
		t.Fatalf("persisted credentials = %+v, want ssid home", saved)
	}
}

func TestConnectedDropsBackToConnectingOnLinkLoss(t *testing.T) {
	radio := newFakeRadio()
	f := newTestFSM(t, radio)
	f.setState(Connected)
	radio.events <- LinkDisconnected

	f.tick()

	if got := f.getState(); got != Connecting {
		t.Fatalf("state = %v, want %v", got, Connecting)
	}
}

func TestClearCredentialsForcesAPModeAndErasesStore(t *testing.T) {
	f := newTestFSM(t, newFakeRadio())
	if err := f.creds.Save(Credentials{SSID: "home", Password: "pw"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := f.ClearCredentials(); err != nil {
		t.Fatalf("ClearCredentials: %v", err)
	}

	if _, err := f.creds.Load(); err == nil {
		t.Fatalf("credentials were not erased")
	}

	f.setState(CheckSaved)
	f.tick()
	if got := f.getState(); got != ApMode {
		t.Fatalf("state after ClearCredentials = %v, want %v", got, ApMode)
	}
}

func TestScanDelegatesToRadio(t *testing.T) {
	radio := newFakeRadio()
	radio.networks = []Network{{SSID: "a", RSSI: -50}}
	f := newTestFSM(t, radio)

	got, err := f.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 1 || got[0].SSID != "a" {
		t.Fatalf("Scan = %+v", got)
	}
}

func TestStatusReflectsState(t *testing.T) {
	f := newTestFSM(t, newFakeRadio())
	f.setState(Connected)
	st := f.Status()
	if !st.Connected || st.State != Connected {
		t.Fatalf("Status = %+v", st)
	}
}
