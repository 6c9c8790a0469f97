package plugin

import (
	"context"
	"testing"
	"time"

	"pin/internal/kv"
)

type stubPlugin struct {
	Base
	name         string
	updateCalls  int
	updateErr    error
	initErr      error
}

func (p *stubPlugin) Metadata() Metadata { return Metadata{Name: p.name, Version: "1.0.0"} }
func (p *stubPlugin) DefaultConfig() Config {
	return Config{UpdateInterval: time.Millisecond}
}
func (p *stubPlugin) Init(ctx context.Context, host HostAPI) error { return p.initErr }
func (p *stubPlugin) Update(ctx context.Context, host HostAPI) error {
	p.updateCalls++
	return p.updateErr
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	store, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	rt := New(store, nil, nil)
	t.Cleanup(rt.Close)
	return rt
}

func waitForState(t *testing.T, rt *Runtime, name string, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rec, err := rt.lookup(name)
		if err != nil {
			t.Fatalf("lookup(%q): %v", name, err)
		}
		if rec.getState() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("plugin %q never reached state %v", name, want)
}

func TestRegisterRejectsMissingNameOrVersion(t *testing.T) {
	rt := newTestRuntime(t)
	p := &stubPlugin{}
	if err := rt.Register(p, Config{}); err == nil {
		t.Fatalf("Register with empty name should fail")
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	rt := newTestRuntime(t)
	p1 := &stubPlugin{name: "clock"}
	p2 := &stubPlugin{name: "clock"}
	if err := rt.Register(p1, Config{}); err != nil {
		t.Fatalf("Register p1: %v", err)
	}
	if err := rt.Register(p2, Config{}); err == nil {
		t.Fatalf("Register duplicate name should fail")
	}
}

func TestRegisterRejectsFullRegistry(t *testing.T) {
	rt := newTestRuntime(t)
	for i := 0; i < MaxPlugins; i++ {
		p := &stubPlugin{name: string(rune('a' + i))}
		if err := rt.Register(p, Config{}); err != nil {
			t.Fatalf("Register %d: %v", i, err)
		}
	}
	if err := rt.Register(&stubPlugin{name: "overflow"}, Config{}); err == nil {
		t.Fatalf("Register past MaxPlugins should fail")
	}
}

func TestRegisterNormalizesConfig(t *testing.T) {
	rt := newTestRuntime(t)
	p := &stubPlugin{name: "clock"}
	if err := rt.Register(p, Config{MemoryLimit: -1}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	rec, err := rt.lookup("clock")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if rec.cfg.MemoryLimit != DefaultMemoryLimit {
		t.Errorf("MemoryLimit = %d, want default %d", rec.cfg.MemoryLimit, DefaultMemoryLimit)
	}
}

func TestListReturnsRegistrationOrder(t *testing.T) {
	rt := newTestRuntime(t)
	for _, name := range []string{"a", "b", "c"} {
		if err := rt.Register(&stubPlugin{name: name}, Config{}); err != nil {
			t.Fatalf("Register %q: %v", name, err)
		}
	}
	list := rt.List()
	if len(list) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(list))
	}
	for i, name := range []string{"a", "b", "c"} {
		if list[i].Metadata.Name != name {
			t.Errorf("List()[%d].Metadata.Name = %q, want %q", i, list[i].Metadata.Name, name)
		}
	}
}

func TestEnableRunsPluginUntilDisabled(t *testing.T) {
	rt := newTestRuntime(t)
	p := &stubPlugin{name: "clock"}
	if err := rt.Register(p, Config{UpdateInterval: time.Millisecond}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := rt.Enable(context.Background(), "clock"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	waitForState(t, rt, "clock", Running)

	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && p.updateCalls == 0 {
		time.Sleep(time.Millisecond)
	}
	if p.updateCalls == 0 {
		t.Fatalf("plugin's Update was never called while running")
	}

	if err := rt.Disable(context.Background(), "clock"); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	waitForState(t, rt, "clock", Unloaded)
}

func TestEnableOnInitErrorTransitionsToError(t *testing.T) {
	rt := newTestRuntime(t)
	p := &stubPlugin{name: "broken", initErr: context.DeadlineExceeded}
	if err := rt.Register(p, Config{}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := rt.Enable(context.Background(), "broken"); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	waitForState(t, rt, "broken", Error)
}

func TestEnableUnknownPluginFails(t *testing.T) {
	rt := newTestRuntime(t)
	if err := rt.Enable(context.Background(), "nope"); err == nil {
		t.Fatalf("Enable on unknown plugin should fail")
	}
}
