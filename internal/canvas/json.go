package canvas

import (
	"encoding/json"

	"pin/internal/color"
	"pin/internal/perr"
)

// wireCanvas and wireElement mirror the canonical JSON schema from spec
// §6 exactly, including field names and the numeric element "type". Canvas
// and Element keep Go-idiomatic shapes; these wire types are the
// translation layer, the same separation the teacher draws between
// internal/model and internal/web's request/response structs.
type wireCanvas struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	BackgroundColor int           `json:"background_color"`
	CreatedTime     int64         `json:"created_time"`
	ModifiedTime    int64         `json:"modified_time"`
	Elements        []wireElement `json:"elements"`
}

type wireElement struct {
	ID      string          `json:"id"`
	Type    int             `json:"type"`
	X       int16           `json:"x"`
	Y       int16           `json:"y"`
	Width   uint16          `json:"width"`
	Height  uint16          `json:"height"`
	ZIndex  uint8           `json:"z_index"`
	Visible bool            `json:"visible"`
	Props   json.RawMessage `json:"props"`
}

type wireTextProps struct {
	Text     string `json:"text"`
	FontSize int    `json:"font_size"`
	Color    int    `json:"color"`
	Align    int    `json:"align"`
	Bold     bool   `json:"bold"`
	Italic   bool   `json:"italic"`
}

type wireImageProps struct {
	ImageID        string `json:"image_id"`
	Format         int    `json:"format"`
	MaintainAspect bool   `json:"maintain_aspect_ratio"`
	Opacity        int    `json:"opacity"`
}

type wireShapeProps struct {
	FillColor   int  `json:"fill_color"`
	BorderColor int  `json:"border_color"`
	BorderWidth int  `json:"border_width"`
	Filled      bool `json:"filled"`
}

// MarshalJSON emits the canonical schema, order preserved (spec §6).
func (c Canvas) MarshalJSON() ([]byte, error) {
	w := wireCanvas{
		ID:              c.ID,
		Name:            c.Name,
		BackgroundColor: c.BackgroundColor.Index(),
		CreatedTime:     c.CreatedTime,
		ModifiedTime:    c.ModifiedTime,
		Elements:        make([]wireElement, len(c.Elements)),
	}
	for i, e := range c.Elements {
		we, err := elementToWire(e)
		if err != nil {
			return nil, err
		}
		w.Elements[i] = we
	}
	return json.Marshal(w)
}

// UnmarshalJSON parses the canonical schema. Unknown fields inside "props"
// are ignored by virtue of decoding into fixed wire structs.
func (c *Canvas) UnmarshalJSON(data []byte) error {
	var w wireCanvas
	if err := json.Unmarshal(data, &w); err != nil {
		return perr.Wrap(perr.InvalidArgument, "canvas.unmarshal", "malformed canvas json", err)
	}

	bg, ok := color.FromIndex(w.BackgroundColor)
	if !ok {
		return perr.New(perr.InvalidArgument, "canvas.unmarshal", "invalid background_color")
	}

	elements := make([]Element, len(w.Elements))
	for i, we := range w.Elements {
		el, err := wireToElement(we)
		if err != nil {
			return err
		}
		elements[i] = el
	}

	c.ID = w.ID
	c.Name = w.Name
	c.BackgroundColor = bg
	c.CreatedTime = w.CreatedTime
	c.ModifiedTime = w.ModifiedTime
	c.Elements = elements
	return nil
}

// ElementFromJSON parses a single element in the canonical wire schema
// (spec §6), the same shape Canvas uses for each entry of "elements", for
// callers (the HTTP "add element" endpoint) that receive one element at
// a time rather than a whole canvas document.
func ElementFromJSON(data []byte) (Element, error) {
	var we wireElement
	if err := json.Unmarshal(data, &we); err != nil {
		return Element{}, perr.Wrap(perr.InvalidArgument, "canvas.unmarshal_element", "malformed element json", err)
	}
	return wireToElement(we)
}

// ElementToJSON renders e in the canonical wire schema.
func ElementToJSON(e Element) ([]byte, error) {
	we, err := elementToWire(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(we)
}

func elementToWire(e Element) (wireElement, error) {
	we := wireElement{
		ID:      e.ID,
		Type:    int(e.Kind),
		X:       e.Bounds.X,
		Y:       e.Bounds.Y,
		Width:   e.Bounds.W,
		Height:  e.Bounds.H,
		ZIndex:  e.ZIndex,
		Visible: e.Visible,
	}

	var props any
	switch e.Kind {
	case KindText:
		if e.Text == nil {
			return we, perr.New(perr.InvalidArgument, "canvas.marshal", "text element missing props")
		}
		props = wireTextProps{
			Text:     e.Text.Text,
			FontSize: e.Text.FontSize,
			Color:    e.Text.Color.Index(),
			Align:    int(e.Text.Align),
			Bold:     e.Text.Bold,
			Italic:   e.Text.Italic,
		}
	case KindImage:
		if e.Image == nil {
			return we, perr.New(perr.InvalidArgument, "canvas.marshal", "image element missing props")
		}
		props = wireImageProps{
			ImageID:        e.Image.ImageID,
			Format:         int(e.Image.Format),
			MaintainAspect: e.Image.MaintainAspect,
			Opacity:        int(e.Image.Opacity),
		}
	case KindRect, KindLine, KindCircle:
		if e.Shape == nil {
			return we, perr.New(perr.InvalidArgument, "canvas.marshal", "shape element missing props")
		}
		props = wireShapeProps{
			FillColor:   e.Shape.FillColor.Index(),
			BorderColor: e.Shape.BorderColor.Index(),
			BorderWidth: e.Shape.BorderWidth,
			Filled:      e.Shape.Filled,
		}
	default:
		return we, perr.New(perr.InvalidArgument, "canvas.marshal", "unknown element kind")
	}

	raw, err := json.Marshal(props)
	if err != nil {
		return we, perr.Wrap(perr.InvalidArgument, "canvas.marshal", "props encode failed", err)
	}
	we.Props = raw
	return we, nil
}

func wireToElement(we wireElement) (Element, error) {
	kind := ElementKind(we.Type)
	e := Element{
		ID: we.ID,
		Kind: kind,
		Bounds: Bounds{X: we.X, Y: we.Y, W: we.Width, H: we.Height},
		ZIndex:  we.ZIndex,
		Visible: we.Visible,
	}

	switch kind {
	case KindText:
		var p wireTextProps
		if err := json.Unmarshal(we.Props, &p); err != nil {
			return e, perr.Wrap(perr.InvalidArgument, "canvas.unmarshal", "bad text props", err)
		}
		c, ok := color.FromIndex(p.Color)
		if !ok {
			return e, perr.New(perr.InvalidArgument, "canvas.unmarshal", "invalid text color")
		}
		e.Text = &TextProps{
			Text: p.Text, FontSize: p.FontSize, Color: c,
			Align: Align(p.Align), Bold: p.Bold, Italic: p.Italic,
		}
	case KindImage:
		var p wireImageProps
		if err := json.Unmarshal(we.Props, &p); err != nil {
			return e, perr.Wrap(perr.InvalidArgument, "canvas.unmarshal", "bad image props", err)
		}
		e.Image = &ImageProps{
			ImageID: p.ImageID, Format: ImageFormat(p.Format),
			MaintainAspect: p.MaintainAspect, Opacity: uint8(p.Opacity),
		}
	case KindRect, KindLine, KindCircle:
		var p wireShapeProps
		if err := json.Unmarshal(we.Props, &p); err != nil {
			return e, perr.Wrap(perr.InvalidArgument, "canvas.unmarshal", "bad shape props", err)
		}
		fill, ok := color.FromIndex(p.FillColor)
		if !ok {
			return e, perr.New(perr.InvalidArgument, "canvas.unmarshal", "invalid fill_color")
		}
		border, ok := color.FromIndex(p.BorderColor)
		if !ok {
			return e, perr.New(perr.InvalidArgument, "canvas.unmarshal", "invalid border_color")
		}
		e.Shape = &ShapeProps{FillColor: fill, BorderColor: border, BorderWidth: p.BorderWidth, Filled: p.Filled}
	default:
		return e, perr.New(perr.InvalidArgument, "canvas.unmarshal", "unknown element type")
	}

	return e, nil
}
