// Package wifi implements the eight-state provisioning/connection FSM
// that brings the device onto a station network or, failing that, into
// an access-point captive portal: saved-credentials check, AP/portal
// activation, credential receipt, station connect with retry, and
// encrypted credential persistence.
package wifi

import "time"

// State is a node in the provisioning FSM.
type State int

const (
	Idle State = iota
	CheckSaved
	ApMode
	PortalActive
	Connecting
	Connected
	Failed
	Timeout
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CheckSaved:
		return "check_saved"
	case ApMode:
		return "ap_mode"
	case PortalActive:
		return "portal_active"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	case Timeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Credentials is a station network's SSID/password pair.
type Credentials struct {
	SSID     string
	Password string
}

// Network is one access point discovered by a scan.
type Network struct {
	SSID    string
	RSSI    int
	Auth    string
	Channel int
}

// Config tunes the FSM's timers and retry policy.
type Config struct {
	APSSIDPrefix     string // default "Pin-Device-"
	ConfigTimeout    time.Duration
	ConnectTimeout   time.Duration
	MaxRetry         int
	RetryDelay       time.Duration
	FailedCooldown   time.Duration // how long Timeout waits before returning to ApMode
	TickInterval     time.Duration
}

// DefaultConfig mirrors the timers named in the provisioning FSM table.
func DefaultConfig() Config {
	return Config{
		APSSIDPrefix:   "Pin-Device-",
		ConfigTimeout:  5 * time.Minute,
		ConnectTimeout: 30 * time.Second,
		MaxRetry:       3,
		RetryDelay:     5 * time.Second,
		FailedCooldown: 3 * time.Second,
		TickInterval:   time.Second,
	}
}

// Status is the read-only provisioning snapshot exposed to the HTTP
// surface's GET /api/status.
type Status struct {
	State      State
	APSSID     string
	TargetSSID string
	Connected  bool
	RetryCount int
}
