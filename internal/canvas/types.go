// Package canvas implements the persisted, z-ordered scene graph (spec
// §3, §4.2): canvases made of text/image/shape elements, JSON import and
// export, and deterministic rasterization onto a panel framebuffer. It is
// grounded on the teacher's internal/model event types for the shape of a
// persisted record and internal/convert for pixel-level rendering.
package canvas

import "pin/internal/color"

// MaxElements is the per-canvas element cap (spec §3 Invariants).
const MaxElements = 50

// MaxImageBytes bounds a single stored image (spec §4.2 Failures).
const MaxImageBytes = 64 * 1024

// ElementKind discriminates the tagged union of drawable element types,
// numbered to match the canonical JSON "type" field (spec §6).
type ElementKind int

const (
	KindText ElementKind = iota
	KindImage
	KindRect
	KindLine
	KindCircle
)

func (k ElementKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindImage:
		return "image"
	case KindRect:
		return "rect"
	case KindLine:
		return "line"
	case KindCircle:
		return "circle"
	default:
		return "unknown"
	}
}

// Align controls text alignment inside bounds.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// ImageFormat names the supported image encodings (spec §3).
type ImageFormat int

const (
	FormatBmp ImageFormat = iota
	FormatPng
	FormatJpg
)

// Bounds is the element's placement rectangle. x/y may be negative
// (off-canvas elements clip at render time, never at store time, per
// spec §3 Invariants); w/h are unsigned.
type Bounds struct {
	X int16
	Y int16
	W uint16
	H uint16
}

// TextProps holds the fields specific to a Text element.
type TextProps struct {
	Text     string
	FontSize int // one of 12, 16, 24, 32
	Color    color.Color
	Align    Align
	Bold     bool
	Italic   bool
}

// ImageProps holds the fields specific to an Image element.
type ImageProps struct {
	ImageID        string
	Format         ImageFormat
	MaintainAspect bool
	Opacity        uint8
}

// ShapeProps holds the fields specific to Rect/Line/Circle elements.
type ShapeProps struct {
	FillColor   color.Color
	BorderColor color.Color
	BorderWidth int
	Filled      bool
}

// Element is a single drawable entity. Exactly one of Text/Image/Shape is
// non-nil, selected by Kind (spec §9 "Tagged sum for canvas elements").
type Element struct {
	ID      string
	Kind    ElementKind
	Bounds  Bounds
	ZIndex  uint8
	Visible bool

	Text  *TextProps
	Image *ImageProps
	Shape *ShapeProps
}

// Canvas is a named, persisted scene (spec §3).
type Canvas struct {
	ID              string
	Name            string
	BackgroundColor color.Color
	CreatedTime     int64
	ModifiedTime    int64
	Elements        []Element
}

// ImageEntry is a stored image (spec §3 "Image store entry").
type ImageEntry struct {
	Data       []byte
	Format     ImageFormat
	Size       int
	StoredTime int64
}
