package panel

import "pin/internal/color"

// DrawLine rasterizes a line from (x0,y0) to (x1,y1) using Bresenham's
// algorithm, per spec §4.1.
func (d *Driver) DrawLine(x0, y0, x1, y1 int, c color.Color) {
	dx := abs(x1 - x0)
	dy := abs(y1 - y0)
	sx := sign(x1 - x0)
	sy := sign(y1 - y0)

	x, y := x0, y0
	if dx >= dy {
		err := dx / 2
		for i := 0; i <= dx; i++ {
			d.SetPixel(x, y, c)
			err -= dy
			if err < 0 {
				y += sy
				err += dx
			}
			x += sx
		}
		return
	}
	err := dy / 2
	for i := 0; i <= dy; i++ {
		d.SetPixel(x, y, c)
		err -= dx
		if err < 0 {
			x += sx
			err += dy
		}
		y += sy
	}
}

// DrawRect draws a rectangle at (x,y) of size w x h. When filled is false,
// only the outline is drawn; when true, every row in the interior is
// filled, per spec §4.1.
func (d *Driver) DrawRect(x, y, w, h int, c color.Color, filled bool) {
	if w <= 0 || h <= 0 {
		return
	}
	if !filled {
		d.DrawLine(x, y, x+w-1, y, c)
		d.DrawLine(x, y+h-1, x+w-1, y+h-1, c)
		d.DrawLine(x, y, x, y+h-1, c)
		d.DrawLine(x+w-1, y, x+w-1, y+h-1, c)
		return
	}
	for row := y; row < y+h; row++ {
		for col := x; col < x+w; col++ {
			d.SetPixel(col, row, c)
		}
	}
}

// DrawCircle draws a circle centered at (cx,cy) with the given radius using
// the midpoint circle algorithm. The filled variant plots two horizontal
// spans per octave (spec §9, Open Question 5's resolution), rather than
// mixing per-pixel plotting rules between the filled and unfilled paths.
func (d *Driver) DrawCircle(cx, cy, r int, c color.Color, filled bool) {
	if r < 0 {
		return
	}
	x, y := r, 0
	err := 1 - r

	plotOctants := func(x, y int) {
		if filled {
			d.DrawLine(cx-x, cy+y, cx+x, cy+y, c)
			d.DrawLine(cx-x, cy-y, cx+x, cy-y, c)
			d.DrawLine(cx-y, cy+x, cx+y, cy+x, c)
			d.DrawLine(cx-y, cy-x, cx+y, cy-x, c)
			return
		}
		d.SetPixel(cx+x, cy+y, c)
		d.SetPixel(cx-x, cy+y, c)
		d.SetPixel(cx+x, cy-y, c)
		d.SetPixel(cx-x, cy-y, c)
		d.SetPixel(cx+y, cy+x, c)
		d.SetPixel(cx-y, cy+x, c)
		d.SetPixel(cx+y, cy-x, c)
		d.SetPixel(cx-y, cy-x, c)
	}

	for x >= y {
		plotOctants(x, y)
		y++
		if err < 0 {
			err += 2*y + 1
		} else {
			x--
			err += 2*(y-x) + 1
		}
	}
}

// DrawBitmap copies a nibble-packed source bitmap of size w x h into the
// framebuffer at (x,y), clipping per pixel (spec §4.1). src must contain
// ceil(w/2)*h bytes in the same row-major, high-nibble-first layout as the
// framebuffer itself.
func (d *Driver) DrawBitmap(x, y, w, h int, src []byte) {
	srcStride := (w + 1) / 2
	for row := 0; row < h; row++ {
		for col := 0; col < w; col++ {
			idx := row*srcStride + col/2
			if idx >= len(src) {
				continue
			}
			var c color.Color
			if col%2 == 0 {
				c = color.Color(src[idx] >> 4)
			} else {
				c = color.Color(src[idx] & 0x0F)
			}
			d.SetPixel(x+col, y+row, c)
		}
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}
