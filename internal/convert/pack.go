// Package convert decodes images into the panel's nibble-packed,
// seven-color framebuffer format. It generalizes the teacher's tri-color
// (black/red) NRGBA packer to the full seven-ink palette, replacing the
// bespoke luma/redness heuristic with stdlib image/color.Palette's
// nearest-match lookup against internal/color.Palette.
package convert

import (
	"bytes"
	"image"
	stdcolor "image/color"
	"image/jpeg"
	"image/png"

	"pin/internal/color"
	"pin/internal/perr"
)

// panelPalette mirrors internal/color.Palette as a stdlib color.Palette so
// that color.Palette.Index can do the nearest-neighbor lookup for us; no
// third-party quantization library appears anywhere in the retrieval pack,
// and the standard library already solves exactly this problem.
var panelPalette = buildPalette()

func buildPalette() stdcolor.Palette {
	p := make(stdcolor.Palette, len(color.Palette))
	for i, c := range color.Palette {
		r, g, b := c.RGB()
		p[i] = stdcolor.RGBA{R: r, G: g, B: b, A: 255}
	}
	return p
}

// Quantize maps an arbitrary RGBA pixel to the nearest panel ink.
func Quantize(c stdcolor.Color) color.Color {
	idx := panelPalette.Index(c)
	pc, _ := color.FromIndex(idx)
	return pc
}

// DecodeToPanel decodes a PNG or JPEG image (detected by magic bytes) and
// resamples it to w x h with nearest-neighbor scaling, quantizing every
// pixel to the panel's seven inks and packing the result nibble-first
// (spec §4.2 "Image" rasterization contract). BMP is not decoded here
// (spec §1 Non-goals: "full image decoding is a future concern" — the
// caller falls back to the outlined placeholder on error).
func DecodeToPanel(data []byte, w, h int) ([]byte, error) {
	if w <= 0 || h <= 0 {
		return nil, perr.New(perr.InvalidArgument, "convert.decode", "non-positive target size")
	}

	img, err := decodeKnown(data)
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, perr.New(perr.InvalidArgument, "convert.decode", "empty source image")
	}

	stride := (w + 1) / 2
	out := make([]byte, stride*h)

	for y := 0; y < h; y++ {
		srcY := bounds.Min.Y + y*srcH/h
		for x := 0; x < w; x++ {
			srcX := bounds.Min.X + x*srcW/w
			ink := Quantize(img.At(srcX, srcY))

			idx := y*stride + x/2
			if x%2 == 0 {
				out[idx] = (byte(ink) << 4) | (out[idx] & 0x0F)
			} else {
				out[idx] = (out[idx] & 0xF0) | byte(ink)
			}
		}
	}
	return out, nil
}

func decodeKnown(data []byte) (image.Image, error) {
	r := bytes.NewReader(data)
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		img, err := png.Decode(r)
		if err != nil {
			return nil, perr.Wrap(perr.InvalidArgument, "convert.decode", "png decode failed", err)
		}
		return img, nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8}):
		img, err := jpeg.Decode(r)
		if err != nil {
			return nil, perr.Wrap(perr.InvalidArgument, "convert.decode", "jpeg decode failed", err)
		}
		return img, nil
	default:
		return nil, perr.New(perr.InvalidArgument, "convert.decode", "unsupported image format")
	}
}

