package main

import (
	"context"
	"flag"
	"os"
	"testing"

	"pin/internal/config"
	"pin/internal/kv"
	"pin/internal/plugin"
)

func TestParseFlagsDefaults(t *testing.T) {
	oldArgs := os.Args
	oldFlags := flag.CommandLine
	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldFlags
	}()

	flag.CommandLine = flag.NewFlagSet(oldArgs[0], flag.ContinueOnError)
	os.Args = []string{"pind"}

	f := parseFlags()
	if f.configPath != "/etc/pin/config.yaml" {
		t.Errorf("configPath = %q, want default", f.configPath)
	}
	if f.listen != "" {
		t.Errorf("listen = %q, want empty", f.listen)
	}
	if f.noPanel {
		t.Errorf("noPanel = true, want false")
	}
}

func TestParseFlagsOverrides(t *testing.T) {
	oldArgs := os.Args
	oldFlags := flag.CommandLine
	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldFlags
	}()

	flag.CommandLine = flag.NewFlagSet(oldArgs[0], flag.ContinueOnError)
	os.Args = []string{"pind", "-config", "/tmp/x.yaml", "-listen", "0.0.0.0:9999", "-no-panel"}

	f := parseFlags()
	if f.configPath != "/tmp/x.yaml" {
		t.Errorf("configPath = %q", f.configPath)
	}
	if f.listen != "0.0.0.0:9999" {
		t.Errorf("listen = %q", f.listen)
	}
	if !f.noPanel {
		t.Errorf("noPanel = false, want true")
	}
}

func TestRegisterBuiltinPluginsRegistersAllThree(t *testing.T) {
	store, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}

	rt := plugin.New(store, nil, pluginLogAdapter{})
	defer rt.Close()

	cfg := config.DefaultConfig()
	cfg.StateDir = t.TempDir()

	registerBuiltinPlugins(context.Background(), rt, cfg)

	list := rt.List()
	if len(list) != 3 {
		t.Fatalf("len(List()) = %d, want 3", len(list))
	}
	names := map[string]bool{}
	for _, s := range list {
		names[s.Metadata.Name] = true
	}
	for _, want := range []string{"clock", "weather", "calendar"} {
		if !names[want] {
			t.Errorf("plugin %q was not registered, got %+v", want, list)
		}
	}
}

func TestRegisterBuiltinPluginsAutoStartsConfiguredPlugins(t *testing.T) {
	store, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}

	rt := plugin.New(store, nil, pluginLogAdapter{})
	defer rt.Close()

	cfg := config.DefaultConfig()
	cfg.StateDir = t.TempDir()
	cfg.Plugins.AutoStart = []string{"clock"}

	registerBuiltinPlugins(context.Background(), rt, cfg)

	var found bool
	for _, s := range rt.List() {
		if s.Metadata.Name == "clock" {
			found = true
			if s.State != plugin.Running && s.State != plugin.Loaded {
				t.Errorf("clock state = %v after auto-start", s.State)
			}
		}
	}
	if !found {
		t.Fatalf("clock plugin not found")
	}
}

func TestRegisterBuiltinPluginsFallsBackToUTCOnBadTimezone(t *testing.T) {
	store, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}

	rt := plugin.New(store, nil, pluginLogAdapter{})
	defer rt.Close()

	cfg := config.DefaultConfig()
	cfg.StateDir = t.TempDir()
	cfg.Timezone = "Not/A_Real_Zone"

	registerBuiltinPlugins(context.Background(), rt, cfg)

	if len(rt.List()) != 3 {
		t.Fatalf("registration should still succeed with an invalid timezone")
	}
}
