package canvas

import (
	"sort"

	"pin/internal/color"
	"pin/internal/convert"
	"pin/internal/panel"
	"pin/internal/perr"
)

// Render fills drv's framebuffer with c's background, then draws every
// visible element in ascending z_index order (stable), dispatching to the
// per-kind rasterizer (spec §4.2 "render").
func (e *Engine) Render(c Canvas, drv *panel.Driver) error {
	drv.Clear(c.BackgroundColor)

	ordered := make([]Element, len(c.Elements))
	copy(ordered, c.Elements)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ZIndex < ordered[j].ZIndex })

	for _, el := range ordered {
		if !el.Visible {
			continue
		}
		if err := e.renderElement(el, drv); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) renderElement(el Element, drv *panel.Driver) error {
	switch el.Kind {
	case KindText:
		return renderText(el, drv)
	case KindImage:
		return e.renderImage(el, drv)
	case KindRect:
		return renderRect(el, drv)
	case KindLine:
		return renderLine(el, drv)
	case KindCircle:
		return renderCircle(el, drv)
	default:
		return perr.New(perr.InvalidArgument, "canvas.render", "unknown element kind")
	}
}

// renderText draws a filled rectangle per character in a font_size/2 wide
// by font_size tall cell (the rectangle is one pixel narrower than the
// cell, leaving a gap between characters), honoring alignment within bounds (spec §4.2
// "Rasterization contracts"). This is the documented placeholder; a real
// font renderer may replace it behind the same signature.
func renderText(el Element, drv *panel.Driver) error {
	if el.Text == nil {
		return perr.New(perr.InvalidArgument, "canvas.render_text", el.ID)
	}
	t := el.Text
	cellW := t.FontSize / 2
	cellH := t.FontSize
	if cellW <= 0 || cellH <= 0 {
		return nil
	}

	n := len([]rune(t.Text))
	textWidth := n * cellW

	startX := int(el.Bounds.X)
	switch t.Align {
	case AlignCenter:
		startX += (int(el.Bounds.W) - textWidth) / 2
	case AlignRight:
		startX += int(el.Bounds.W) - textWidth
	}

	y := int(el.Bounds.Y)
	x := startX
	for range t.Text {
		drv.DrawRect(x, y, cellW-1, cellH, t.Color, true)
		x += cellW
	}
	return nil
}

// renderImage decodes the referenced image into the bounds rectangle; if
// the image is absent or cannot be decoded, it draws an outlined rectangle
// with both diagonals as a placeholder (spec §4.2).
func (e *Engine) renderImage(el Element, drv *panel.Driver) error {
	if el.Image == nil {
		return perr.New(perr.InvalidArgument, "canvas.render_image", el.ID)
	}

	x, y, w, h := int(el.Bounds.X), int(el.Bounds.Y), int(el.Bounds.W), int(el.Bounds.H)

	entry, err := e.GetImage(el.Image.ImageID)
	if err == nil {
		if packed, decodeErr := convert.DecodeToPanel(entry.Data, w, h); decodeErr == nil {
			drv.DrawBitmap(x, y, w, h, packed)
			return nil
		}
	}

	placeholderColor := color.Black
	drv.DrawRect(x, y, w, h, placeholderColor, false)
	drv.DrawLine(x, y, x+w-1, y+h-1, placeholderColor)
	drv.DrawLine(x+w-1, y, x, y+h-1, placeholderColor)
	return nil
}

func renderRect(el Element, drv *panel.Driver) error {
	if el.Shape == nil {
		return perr.New(perr.InvalidArgument, "canvas.render_rect", el.ID)
	}
	x, y, w, h := int(el.Bounds.X), int(el.Bounds.Y), int(el.Bounds.W), int(el.Bounds.H)
	if el.Shape.Filled {
		drv.DrawRect(x, y, w, h, el.Shape.FillColor, true)
	}
	drv.DrawRect(x, y, w, h, el.Shape.BorderColor, false)
	return nil
}

func renderLine(el Element, drv *panel.Driver) error {
	if el.Shape == nil {
		return perr.New(perr.InvalidArgument, "canvas.render_line", el.ID)
	}
	x, y, w, h := int(el.Bounds.X), int(el.Bounds.Y), int(el.Bounds.W), int(el.Bounds.H)
	drv.DrawLine(x, y, x+w-1, y+h-1, el.Shape.BorderColor)
	return nil
}

func renderCircle(el Element, drv *panel.Driver) error {
	if el.Shape == nil {
		return perr.New(perr.InvalidArgument, "canvas.render_circle", el.ID)
	}
	x, y, w, h := int(el.Bounds.X), int(el.Bounds.Y), int(el.Bounds.W), int(el.Bounds.H)
	cx, cy := x+w/2, y+h/2
	radius := w
	if h < w {
		radius = h
	}
	radius /= 2

	if el.Shape.Filled {
		drv.DrawCircle(cx, cy, radius, el.Shape.FillColor, true)
	}
	drv.DrawCircle(cx, cy, radius, el.Shape.BorderColor, false)
	return nil
}
