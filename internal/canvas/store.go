package canvas

import (
	"encoding/json"
	"sort"
	"sync"

	"pin/internal/kv"
	"pin/internal/perr"
)

// Namespaces per spec §6 "Persisted state layout".
const (
	nsCanvas = "pin_canvas"
	nsImages = "pin_images"
)

// Engine owns scene persistence and mutation, serialized by its own
// internal mutex (spec §5 "the canvas engine uses a separate internal
// mutex to serialize scene mutations"). It is independent of panel access;
// rendering is a separate concern handled by Render/Display.
type Engine struct {
	mu    sync.Mutex
	store kv.Store
	now   func() int64
}

// New wraps a persistence backend. now defaults to a real wall-clock
// source if nil; tests substitute a deterministic one.
func New(store kv.Store, now func() int64) *Engine {
	if now == nil {
		now = wallClockSeconds
	}
	return &Engine{store: store, now: now}
}

func (e *Engine) load(id string) (Canvas, error) {
	blob, err := e.store.GetBlob(nsCanvas, id)
	if err != nil {
		if perr.Is(err, perr.NotFound) {
			return Canvas{}, perr.New(perr.NotFound, "canvas.load", id)
		}
		return Canvas{}, err
	}
	var c Canvas
	if err := json.Unmarshal(blob, &c); err != nil {
		return Canvas{}, perr.Wrap(perr.StorageFail, "canvas.load", id, err)
	}
	return c, nil
}

func (e *Engine) save(c Canvas) error {
	blob, err := json.Marshal(c)
	if err != nil {
		return perr.Wrap(perr.StorageFail, "canvas.save", c.ID, err)
	}
	if err := e.store.SetBlob(nsCanvas, c.ID, blob); err != nil {
		return err
	}
	return nil
}

// Create registers a new empty canvas. Returns AlreadyExists if id is taken.
func (e *Engine) Create(id, name string, background int) (Canvas, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.load(id); err == nil {
		return Canvas{}, perr.New(perr.AlreadyExists, "canvas.create", id)
	}

	bg, ok := colorFromIndex(background)
	if !ok {
		return Canvas{}, perr.New(perr.InvalidArgument, "canvas.create", "invalid background_color")
	}

	now := e.now()
	c := Canvas{
		ID: id, Name: name, BackgroundColor: bg,
		CreatedTime: now, ModifiedTime: now, Elements: nil,
	}
	if err := e.save(c); err != nil {
		return Canvas{}, err
	}
	return c, nil
}

// Delete removes a canvas. NotFound if absent.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.load(id); err != nil {
		return err
	}
	return e.store.Erase(nsCanvas, id)
}

// Get returns a canvas by id.
func (e *Engine) Get(id string) (Canvas, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.load(id)
}

// Update upserts a full canvas record, bumping modified_time.
func (e *Engine) Update(c Canvas) (Canvas, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(c.Elements) > MaxElements {
		return Canvas{}, perr.New(perr.Full, "canvas.update", "element count exceeds limit")
	}
	if err := validateUniqueIDs(c.Elements); err != nil {
		return Canvas{}, err
	}
	c.ModifiedTime = e.now()
	if err := e.save(c); err != nil {
		return Canvas{}, err
	}
	return c, nil
}

// List returns every stored canvas id.
func (e *Engine) List() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	keys, err := e.store.Keys(nsCanvas)
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// AddElement appends an element, failing with Full past MaxElements and
// AlreadyExists on a colliding element id (spec §4.2 Failures).
func (e *Engine) AddElement(id string, el Element) (Canvas, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.load(id)
	if err != nil {
		return Canvas{}, err
	}
	if len(c.Elements) >= MaxElements {
		return Canvas{}, perr.New(perr.Full, "canvas.add_element", id)
	}
	for _, existing := range c.Elements {
		if existing.ID == el.ID {
			return Canvas{}, perr.New(perr.AlreadyExists, "canvas.add_element", el.ID)
		}
	}

	c.Elements = append(c.Elements, el)
	c.ModifiedTime = e.now()
	if err := e.save(c); err != nil {
		return Canvas{}, err
	}
	return c, nil
}

// UpdateElement replaces an existing element by id.
func (e *Engine) UpdateElement(id, elementID string, el Element) (Canvas, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.load(id)
	if err != nil {
		return Canvas{}, err
	}
	idx := -1
	for i, existing := range c.Elements {
		if existing.ID == elementID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Canvas{}, perr.New(perr.NotFound, "canvas.update_element", elementID)
	}
	el.ID = elementID
	c.Elements[idx] = el
	c.ModifiedTime = e.now()
	if err := e.save(c); err != nil {
		return Canvas{}, err
	}
	return c, nil
}

// RemoveElement deletes an element by id.
func (e *Engine) RemoveElement(id, elementID string) (Canvas, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	c, err := e.load(id)
	if err != nil {
		return Canvas{}, err
	}
	out := c.Elements[:0]
	found := false
	for _, existing := range c.Elements {
		if existing.ID == elementID {
			found = true
			continue
		}
		out = append(out, existing)
	}
	if !found {
		return Canvas{}, perr.New(perr.NotFound, "canvas.remove_element", elementID)
	}
	c.Elements = out
	c.ModifiedTime = e.now()
	if err := e.save(c); err != nil {
		return Canvas{}, err
	}
	return c, nil
}

// StoreImage persists image bytes under image_id, rejecting anything over
// MaxImageBytes (spec §4.2 Failures: TooLarge).
func (e *Engine) StoreImage(imageID string, data []byte, format ImageFormat) (ImageEntry, error) {
	if len(data) > MaxImageBytes {
		return ImageEntry{}, perr.New(perr.TooLarge, "canvas.store_image", imageID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	entry := ImageEntry{Data: data, Format: format, Size: len(data), StoredTime: e.now()}
	if err := e.store.SetBlob(nsImages, imageID, data); err != nil {
		return ImageEntry{}, err
	}
	meta, err := json.Marshal(wireImageMeta{Format: int(format), Size: entry.Size, StoredTime: entry.StoredTime})
	if err != nil {
		return ImageEntry{}, perr.Wrap(perr.StorageFail, "canvas.store_image", imageID, err)
	}
	if err := e.store.SetBlob(nsImages, imageID+"_meta", meta); err != nil {
		return ImageEntry{}, err
	}
	return entry, nil
}

// GetImage returns a previously stored image.
func (e *Engine) GetImage(imageID string) (ImageEntry, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	data, err := e.store.GetBlob(nsImages, imageID)
	if err != nil {
		return ImageEntry{}, err
	}
	metaBlob, err := e.store.GetBlob(nsImages, imageID+"_meta")
	if err != nil {
		return ImageEntry{}, err
	}
	var meta wireImageMeta
	if err := json.Unmarshal(metaBlob, &meta); err != nil {
		return ImageEntry{}, perr.Wrap(perr.StorageFail, "canvas.get_image", imageID, err)
	}
	return ImageEntry{Data: data, Format: ImageFormat(meta.Format), Size: meta.Size, StoredTime: meta.StoredTime}, nil
}

// DeleteImage removes a stored image and its metadata.
func (e *Engine) DeleteImage(imageID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.store.Erase(nsImages, imageID); err != nil {
		return err
	}
	return e.store.Erase(nsImages, imageID+"_meta")
}

// ExportJSON renders the canonical JSON form of a canvas (spec §4.2).
func (e *Engine) ExportJSON(id string) (string, error) {
	c, err := e.Get(id)
	if err != nil {
		return "", err
	}
	blob, err := json.Marshal(c)
	if err != nil {
		return "", perr.Wrap(perr.StorageFail, "canvas.export_json", id, err)
	}
	return string(blob), nil
}

// ImportJSON parses and upserts a canvas from its canonical JSON form.
func (e *Engine) ImportJSON(data string) (Canvas, error) {
	var c Canvas
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return Canvas{}, err
	}
	return e.Update(c)
}

type wireImageMeta struct {
	Format     int   `json:"format"`
	Size       int   `json:"size"`
	StoredTime int64 `json:"stored_time"`
}

func validateUniqueIDs(elements []Element) error {
	seen := make(map[string]struct{}, len(elements))
	for _, el := range elements {
		if _, dup := seen[el.ID]; dup {
			return perr.New(perr.AlreadyExists, "canvas.validate", el.ID)
		}
		seen[el.ID] = struct{}{}
	}
	return nil
}
