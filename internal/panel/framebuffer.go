package panel

import "pin/internal/color"

// inBounds reports whether (x,y) is a valid panel coordinate.
func inBounds(x, y int) bool {
	return x >= 0 && x < Width && y >= 0 && y < Height
}

// SetPixel writes color at (x,y). Out-of-bounds writes are silently
// dropped, by design (spec §4.1 "Failure semantics") to keep the
// rasterizers above it branch-free.
func (d *Driver) SetPixel(x, y int, c color.Color) {
	if !inBounds(x, y) {
		return
	}
	idx := y*StrideBytes + x/2
	if x%2 == 0 {
		d.fb[idx] = (byte(c) << 4) | (d.fb[idx] & 0x0F)
	} else {
		d.fb[idx] = (d.fb[idx] & 0xF0) | byte(c)
	}
}

// GetPixel reads the color at (x,y). Out-of-bounds reads are no-ops that
// return the zero Color (Black); callers should check bounds themselves
// if that distinction matters.
func (d *Driver) GetPixel(x, y int) color.Color {
	if !inBounds(x, y) {
		return color.Black
	}
	idx := y*StrideBytes + x/2
	if x%2 == 0 {
		return color.Color(d.fb[idx] >> 4)
	}
	return color.Color(d.fb[idx] & 0x0F)
}

// Bytes exposes the raw framebuffer. The returned slice aliases the
// driver's internal buffer; callers must not retain it past the call
// that produced it, matching spec §9 "Framebuffer as value".
func (d *Driver) Bytes() []byte { return d.fb }
