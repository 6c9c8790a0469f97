// Package plugin implements the registration, lifecycle, scheduling and
// host-API surface for display-producing extensions (spec §4.3). It
// generalizes the teacher's ICS-subscription model (one static config
// entry per source, fetched/expanded on a schedule) into a capability-set
// interface per spec §9 ("Dynamic dispatch via function tables" — model
// plugins as a trait/interface, not a vtable of raw function pointers).
package plugin

import (
	"context"
	"time"
)

// MaxErrors is the error budget before a running plugin is permanently
// disabled until explicit re-enable (spec §3 Invariants).
const MaxErrors = 5

// SuspensionCooldown is how long a quota-violating plugin sits in
// Suspended before the supervisor lets its worker resume (spec §4.3).
const SuspensionCooldown = 60 * time.Second

// MaxPlugins bounds the registry (spec §4.3 "Registry").
const MaxPlugins = 8

const (
	DefaultMemoryLimit   = 64 * 1024
	MaxMemoryLimit       = 256 * 1024
	DefaultUpdateInterval = 60 * time.Second
	MinUpdateInterval     = time.Second
	DefaultAPIRateLimit   = 100
	APIRateWindow         = 60 * time.Second
)

// State is a node in the plugin lifecycle FSM (spec §4.3).
type State int

const (
	Unloaded State = iota
	Loaded
	Initialized
	Running
	Suspended
	Error
)

func (s State) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loaded:
		return "loaded"
	case Initialized:
		return "initialized"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Metadata is the static descriptor supplied at registration (spec §3).
type Metadata struct {
	Name               string
	Version            string
	Author             string
	Description        string
	Homepage           string
	MinFirmwareVersion string
}

// Config holds the tunable, validated knobs for a plugin instance.
type Config struct {
	MemoryLimit    int
	UpdateInterval time.Duration
	APIRateLimit   int
	AutoStart      bool
	Persistent     bool
}

// normalize clamps and defaults config fields (spec §4.3 "register"
// validation: "clamps/defaults memory_limit and update_interval").
func (c Config) normalize() Config {
	if c.MemoryLimit <= 0 {
		c.MemoryLimit = DefaultMemoryLimit
	}
	if c.MemoryLimit > MaxMemoryLimit {
		c.MemoryLimit = MaxMemoryLimit
	}
	if c.UpdateInterval < MinUpdateInterval {
		if c.UpdateInterval == 0 {
			c.UpdateInterval = DefaultUpdateInterval
		} else {
			c.UpdateInterval = MinUpdateInterval
		}
	}
	if c.APIRateLimit <= 0 {
		c.APIRateLimit = DefaultAPIRateLimit
	}
	return c
}

// Stats are the observable runtime counters (spec §3 "Per-plugin context").
type Stats struct {
	MemoryUsed           int
	MemoryPeak           int
	APICallsCount        int
	APICallsWindowStart  time.Time
	UpdateCount          int
	ErrorCount           int
}

// Plugin is the capability-set interface every extension implements (spec
// §9). The runtime calls every hook directly; a plugin that does not use a
// hook embeds Base to get a no-op for it.
type Plugin interface {
	Metadata() Metadata
	DefaultConfig() Config

	Init(ctx context.Context, host HostAPI) error
	Start(ctx context.Context, host HostAPI) error
	Update(ctx context.Context, host HostAPI) error
	Render(ctx context.Context, host HostAPI) error
	ConfigChanged(ctx context.Context, host HostAPI, key, value string) error
	Stop(ctx context.Context, host HostAPI) error
	Cleanup(ctx context.Context, host HostAPI) error
}

// Base supplies every lifecycle hook as a no-op returning nil. A plugin
// embedding Base satisfies Plugin once it adds Metadata and DefaultConfig,
// and overrides only the hooks it uses.
type Base struct{}

func (Base) Init(ctx context.Context, host HostAPI) error                               { return nil }
func (Base) Start(ctx context.Context, host HostAPI) error                              { return nil }
func (Base) Update(ctx context.Context, host HostAPI) error                             { return nil }
func (Base) Render(ctx context.Context, host HostAPI) error                             { return nil }
func (Base) ConfigChanged(ctx context.Context, host HostAPI, key, value string) error   { return nil }
func (Base) Stop(ctx context.Context, host HostAPI) error                               { return nil }
func (Base) Cleanup(ctx context.Context, host HostAPI) error                            { return nil }
