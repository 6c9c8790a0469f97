package panel

import (
	"math"

	"pin/internal/color"
)

// DrawWiFiIcon renders a signal-strength glyph at (x,y): four vertical
// bars of rising height, the number lit (filled rather than outlined)
// scaled by rssi. Composed entirely from DrawRect, matching the original firmware's
// pin_display_draw_wifi_icon which is itself built on the same primitives
// (see SPEC_FULL.md "Supplemented features").
func (d *Driver) DrawWiFiIcon(x, y int, rssi int, c color.Color) {
	bars := rssiToBars(rssi)
	const barWidth = 3
	const gap = 1
	const maxHeight = 12

	for i := 0; i < 4; i++ {
		barHeight := (i + 1) * maxHeight / 4
		bx := x + i*(barWidth+gap)
		by := y + maxHeight - barHeight
		lit := i < bars
		if lit {
			d.DrawRect(bx, by, barWidth, barHeight, c, true)
		} else {
			d.DrawRect(bx, by, barWidth, barHeight, c, false)
		}
	}
}

func rssiToBars(rssi int) int {
	switch {
	case rssi >= -55:
		return 4
	case rssi >= -65:
		return 3
	case rssi >= -75:
		return 2
	case rssi >= -85:
		return 1
	default:
		return 0
	}
}

// DrawBatteryIcon renders a battery glyph: an outlined cell with a nub and
// an interior fill proportional to percentage.
func (d *Driver) DrawBatteryIcon(x, y int, percentage int, c color.Color) {
	if percentage < 0 {
		percentage = 0
	}
	if percentage > 100 {
		percentage = 100
	}

	const w, h = 22, 10
	const nubW, nubH = 2, 4

	d.DrawRect(x, y, w, h, c, false)
	d.DrawRect(x+w, y+(h-nubH)/2, nubW, nubH, c, true)

	fillMax := w - 4
	fillW := fillMax * percentage / 100
	if fillW > 0 {
		d.DrawRect(x+2, y+2, fillW, h-4, c, true)
	}
}

// DrawLoadingAnimation renders a ring of dots with one highlighted dot
// selected by frame, giving the appearance of motion across successive
// calls. This is a deterministic pure function of frame, matching the
// original firmware's pin_display_draw_loading_animation contract.
func (d *Driver) DrawLoadingAnimation(cx, cy, size int, frame int) {
	const dots = 8
	ringRadius := size / 2
	dotRadius := size / 10
	if dotRadius < 1 {
		dotRadius = 1
	}

	for i := 0; i < dots; i++ {
		angle := 2 * math.Pi * float64(i) / float64(dots)
		dx := cx + int(float64(ringRadius)*math.Cos(angle))
		dy := cy + int(float64(ringRadius)*math.Sin(angle))

		c := color.Black
		filled := i == frame%dots
		if !filled {
			c = color.White
		}
		d.DrawCircle(dx, dy, dotRadius, c, filled)
	}
}
