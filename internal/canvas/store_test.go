package canvas

import (
	"testing"

	"pin/internal/color"
	"pin/internal/kv"
	"pin/internal/perr"
)

func testEngine(t *testing.T) (*Engine, kv.Store) {
	t.Helper()
	store, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("kv.Open: %v", err)
	}
	tick := int64(1000)
	clock := func() int64 {
		tick++
		return tick
	}
	return New(store, clock), store
}

func textElement(id string) Element {
	return Element{
		ID:     id,
		Kind:   KindText,
		Bounds: Bounds{X: 0, Y: 0, W: 100, H: 20},
		Text:   &TextProps{Text: "hi", FontSize: 16, Color: color.Black},
	}
}

func TestCreateAndGet(t *testing.T) {
	e, _ := testEngine(t)

	c, err := e.Create("home", "Home", color.White.Index())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.ID != "home" || c.Name != "Home" {
		t.Errorf("Create returned %+v", c)
	}

	got, err := e.Get("home")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID != "home" {
		t.Errorf("Get returned %+v", got)
	}
}

func TestCreateDuplicateFails(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.Create("home", "Home", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.Create("home", "Again", 0); !perr.Is(err, perr.AlreadyExists) {
		t.Fatalf("second Create err = %v, want AlreadyExists", err)
	}
}

func TestCreateInvalidBackground(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.Create("home", "Home", 99); !perr.Is(err, perr.InvalidArgument) {
		t.Fatalf("Create with bad background err = %v, want InvalidArgument", err)
	}
}

func TestGetMissingIsNotFound(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.Get("nope"); !perr.Is(err, perr.NotFound) {
		t.Fatalf("Get missing err = %v, want NotFound", err)
	}
}

func TestDelete(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.Create("home", "Home", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := e.Delete("home"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.Get("home"); !perr.Is(err, perr.NotFound) {
		t.Fatalf("Get after Delete err = %v, want NotFound", err)
	}
}

func TestAddElementAndLimit(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.Create("home", "Home", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}

	for i := 0; i < MaxElements; i++ {
		id := "el" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		if _, err := e.AddElement("home", textElement(id)); err != nil {
			t.Fatalf("AddElement %d: %v", i, err)
		}
	}

	if _, err := e.AddElement("home", textElement("overflow")); !perr.Is(err, perr.Full) {
		t.Fatalf("AddElement past limit err = %v, want Full", err)
	}
}

func TestAddElementDuplicateID(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.Create("home", "Home", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.AddElement("home", textElement("e1")); err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	if _, err := e.AddElement("home", textElement("e1")); !perr.Is(err, perr.AlreadyExists) {
		t.Fatalf("AddElement duplicate err = %v, want AlreadyExists", err)
	}
}

func TestUpdateElement(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.Create("home", "Home", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.AddElement("home", textElement("e1")); err != nil {
		t.Fatalf("AddElement: %v", err)
	}

	updated := textElement("ignored")
	updated.Text.Text = "changed"
	c, err := e.UpdateElement("home", "e1", updated)
	if err != nil {
		t.Fatalf("UpdateElement: %v", err)
	}
	if c.Elements[0].Text.Text != "changed" {
		t.Errorf("UpdateElement did not apply: %+v", c.Elements[0])
	}
	if c.Elements[0].ID != "e1" {
		t.Errorf("UpdateElement should keep the original id, got %q", c.Elements[0].ID)
	}
}

func TestUpdateElementMissing(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.Create("home", "Home", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.UpdateElement("home", "nope", textElement("nope")); !perr.Is(err, perr.NotFound) {
		t.Fatalf("UpdateElement missing err = %v, want NotFound", err)
	}
}

func TestRemoveElement(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.Create("home", "Home", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.AddElement("home", textElement("e1")); err != nil {
		t.Fatalf("AddElement: %v", err)
	}
	c, err := e.RemoveElement("home", "e1")
	if err != nil {
		t.Fatalf("RemoveElement: %v", err)
	}
	if len(c.Elements) != 0 {
		t.Errorf("RemoveElement left %d elements, want 0", len(c.Elements))
	}
}

func TestListSorted(t *testing.T) {
	e, _ := testEngine(t)
	for _, id := range []string{"c", "a", "b"} {
		if _, err := e.Create(id, id, 0); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}
	ids, err := e.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(ids) != len(want) {
		t.Fatalf("List = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("List[%d] = %q, want %q", i, ids[i], want[i])
		}
	}
}

func TestStoreImageTooLarge(t *testing.T) {
	e, _ := testEngine(t)
	data := make([]byte, MaxImageBytes+1)
	if _, err := e.StoreImage("img1", data, FormatPng); !perr.Is(err, perr.TooLarge) {
		t.Fatalf("StoreImage oversized err = %v, want TooLarge", err)
	}
}

func TestStoreAndGetImage(t *testing.T) {
	e, _ := testEngine(t)
	data := []byte{0x89, 'P', 'N', 'G'}
	entry, err := e.StoreImage("img1", data, FormatPng)
	if err != nil {
		t.Fatalf("StoreImage: %v", err)
	}
	if entry.Size != len(data) {
		t.Errorf("StoreImage entry.Size = %d, want %d", entry.Size, len(data))
	}

	got, err := e.GetImage("img1")
	if err != nil {
		t.Fatalf("GetImage: %v", err)
	}
	if string(got.Data) != string(data) || got.Format != FormatPng {
		t.Errorf("GetImage = %+v", got)
	}
}

func TestDeleteImage(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.StoreImage("img1", []byte("x"), FormatBmp); err != nil {
		t.Fatalf("StoreImage: %v", err)
	}
	if err := e.DeleteImage("img1"); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	if _, err := e.GetImage("img1"); !perr.Is(err, perr.NotFound) {
		t.Fatalf("GetImage after delete err = %v, want NotFound", err)
	}
}

func TestExportImportJSONRoundTrip(t *testing.T) {
	e, _ := testEngine(t)
	if _, err := e.Create("home", "Home", 0); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := e.AddElement("home", textElement("e1")); err != nil {
		t.Fatalf("AddElement: %v", err)
	}

	data, err := e.ExportJSON("home")
	if err != nil {
		t.Fatalf("ExportJSON: %v", err)
	}

	imported, err := e.ImportJSON(data)
	if err != nil {
		t.Fatalf("ImportJSON: %v", err)
	}
	if imported.ID != "home" || len(imported.Elements) != 1 {
		t.Errorf("ImportJSON round trip mismatch: %+v", imported)
	}
}

func TestUpdateRejectsTooManyElements(t *testing.T) {
	e, _ := testEngine(t)
	c, err := e.Create("home", "Home", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for i := 0; i <= MaxElements; i++ {
		id := "x" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		c.Elements = append(c.Elements, textElement(id))
	}
	if _, err := e.Update(c); !perr.Is(err, perr.Full) {
		t.Fatalf("Update over limit err = %v, want Full", err)
	}
}

func TestUpdateRejectsDuplicateElementIDs(t *testing.T) {
	e, _ := testEngine(t)
	c, err := e.Create("home", "Home", 0)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	c.Elements = []Element{textElement("dup"), textElement("dup")}
	if _, err := e.Update(c); !perr.Is(err, perr.AlreadyExists) {
		t.Fatalf("Update with duplicate element ids err = %v, want AlreadyExists", err)
	}
}
