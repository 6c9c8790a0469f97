package log

import "testing"

func TestEnabledRespectsMinLevel(t *testing.T) {
	cases := []struct {
		min  Level
		lvl  Level
		want bool
	}{
		{LevelDebug, LevelDebug, true},
		{LevelDebug, LevelInfo, true},
		{LevelDebug, LevelError, true},
		{LevelInfo, LevelDebug, false},
		{LevelInfo, LevelInfo, true},
		{LevelInfo, LevelError, true},
		{LevelError, LevelDebug, false},
		{LevelError, LevelInfo, false},
		{LevelError, LevelError, true},
	}
	for _, c := range cases {
		minLevel = c.min
		if got := enabled(c.lvl); got != c.want {
			t.Errorf("enabled(%v) with min=%v = %v, want %v", c.lvl, c.min, got, c.want)
		}
	}
	minLevel = LevelInfo
}

func TestFormatKVsPairsUpEvenArgs(t *testing.T) {
	got := formatKVs("key1", "val1", "key2", 42)
	want := " key1=val1 key2=42"
	if got != want {
		t.Errorf("formatKVs = %q, want %q", got, want)
	}
}

func TestFormatKVsIgnoresTrailingOddArg(t *testing.T) {
	got := formatKVs("key1", "val1", "dangling")
	want := " key1=val1"
	if got != want {
		t.Errorf("formatKVs = %q, want %q", got, want)
	}
}

func TestFormatKVsSkipsNonStringKeys(t *testing.T) {
	got := formatKVs(1, "val1", "key2", "val2")
	want := " key2=val2"
	if got != want {
		t.Errorf("formatKVs = %q, want %q", got, want)
	}
}

func TestFormatKVsEmpty(t *testing.T) {
	if got := formatKVs(); got != "" {
		t.Errorf("formatKVs() = %q, want empty", got)
	}
}

func TestSafeSprintUsesFmtSprint(t *testing.T) {
	if got := safeSprint(42); got != "42" {
		t.Errorf("safeSprint(42) = %q, want 42", got)
	}
	if got := safeSprint("hi"); got != "hi" {
		t.Errorf("safeSprint(%q) = %q, want hi", "hi", got)
	}
}
