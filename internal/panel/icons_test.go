package panel

import (
	"testing"

	"pin/internal/color"
)

func TestRssiToBars(t *testing.T) {
	cases := []struct {
		rssi int
		want int
	}{
		{-40, 4},
		{-55, 4},
		{-60, 3},
		{-65, 3},
		{-70, 2},
		{-75, 2},
		{-80, 1},
		{-85, 1},
		{-95, 0},
	}
	for _, c := range cases {
		if got := rssiToBars(c.rssi); got != c.want {
			t.Errorf("rssiToBars(%d) = %d, want %d", c.rssi, got, c.want)
		}
	}
}

func TestDrawBatteryIconClampsPercentage(t *testing.T) {
	d := newTestDriver()
	// Should not panic and should behave the same as 0/100 respectively.
	d.DrawBatteryIcon(0, 0, -10, color.Black)
	d.DrawBatteryIcon(0, 0, 150, color.Black)
}

func TestDrawWiFiIconDoesNotPanicAcrossSignalRange(t *testing.T) {
	d := newTestDriver()
	for _, rssi := range []int{-30, -60, -80, -100} {
		d.DrawWiFiIcon(0, 0, rssi, color.Black)
	}
}

func TestDrawLoadingAnimationIsDeterministic(t *testing.T) {
	d1 := newTestDriver()
	d2 := newTestDriver()
	d1.DrawLoadingAnimation(50, 50, 20, 3)
	d2.DrawLoadingAnimation(50, 50, 20, 3)
	for i := range d1.fb {
		if d1.fb[i] != d2.fb[i] {
			t.Fatalf("DrawLoadingAnimation is not deterministic for the same frame")
		}
	}
}
