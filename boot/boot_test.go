package boot

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/rtl/catalog"
	"github.com/chazu/rtl/loader"
	"github.com/chazu/rtl/manifest"
	"github.com/chazu/rtl/rtl"
	"github.com/chazu/rtl/wire"
)

const shapesUnit = `
[[interface]]
name = "IShape"
guid = "{6A1D0C6E-0B77-4C55-9B0A-2C1D7E0F3A11}"
methods = ["area"]

[[class]]
name = "TSquare"
ancestor = "TInterfacedObject"
implements = ["IShape"]

  [[class.field]]
  name = "fside"
  type = "double"

  [[class.method]]
  name = "area"
  kind = "function"
  result = "double"
  native = "shapes.area"
`

const appUnit = `
uses = ["shapes"]

[[class]]
name = "TApp"
`

func natives() map[string]rtl.MethodFunc {
	return map[string]rtl.MethodFunc{
		"shapes.area": func(self *rtl.Instance, args []any) (any, error) {
			side, _ := self.Field("fside")
			s := side.(float64)
			return s * s, nil
		},
	}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

// newProject lays out an app project whose "shapes" unit lives in a path
// dependency, stored compact.
func newProject(t *testing.T) *manifest.Manifest {
	t.Helper()
	root := t.TempDir()
	app := filepath.Join(root, "app")
	lib := filepath.Join(root, "shapes")

	writeFile(t, filepath.Join(app, manifest.FileName), []byte(`
[project]
name = "app"

[source]
entry = ["app"]

[dependencies]
shapes = { path = "../shapes" }
`))
	writeFile(t, filepath.Join(app, "units", "app.unit"), []byte(appUnit))

	packed, err := loader.Compress([]byte(shapesUnit))
	if err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(lib, "shapes.unit.gz"), packed)

	m, err := manifest.Load(app)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRunEntryUnits(t *testing.T) {
	m := newProject(t)
	h, err := New(m, natives())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := h.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if got := strings.Join(h.Loader.Loaded(), ","); got != "system,shapes,app" {
		t.Errorf("Loaded() = %s, want system,shapes,app", got)
	}
	journal := h.Loader.Journal()
	if journal[1].Form != loader.FormCompact || journal[2].Form != loader.FormPlain {
		t.Errorf("journal forms = %v, %v; want compact, plain", journal[1].Form, journal[2].Form)
	}

	square, err := h.Runtime.LookupClass("TSquare")
	if err != nil {
		t.Fatal(err)
	}
	inst := square.MustConstruct()
	inst.SetField("fside", 4.0)
	area, err := inst.Call("area")
	if err != nil {
		t.Fatal(err)
	}
	if area != 16.0 {
		t.Errorf("area = %v, want 16", area)
	}
}

func TestRunExplicitUnits(t *testing.T) {
	m := newProject(t)
	h, err := New(m, natives())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Run("shapes"); err != nil {
		t.Fatal(err)
	}
	if h.Loader.IsLoaded("app") {
		t.Error("app should not load when units are named explicitly")
	}
}

func TestRunWithoutEntry(t *testing.T) {
	m, err := manifest.Default(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h, err := New(m, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Run(); err == nil {
		t.Error("expected an error without entry units")
	}
}

func TestRunMissingUnit(t *testing.T) {
	m, err := manifest.Default(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	h, err := New(m, nil)
	if err != nil {
		t.Fatal(err)
	}
	err = h.Run("ghost")
	if !errors.Is(err, loader.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestExportAndCatalog(t *testing.T) {
	m := newProject(t)
	h, err := New(m, natives())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Run(); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "out", "rtti.cbor")
	if err := h.Export(out); err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	snap, err := wire.Unmarshal(data)
	if err != nil {
		t.Fatalf("exported snapshot does not decode: %v", err)
	}
	if snap.Class("TApp") == nil || len(snap.Units) != 3 {
		t.Errorf("exported snapshot missing content: %d units", len(snap.Units))
	}

	if err := h.SaveCatalog(""); err != nil {
		t.Fatalf("SaveCatalog failed: %v", err)
	}
	cat, err := catalog.Open(m.CatalogPath())
	if err != nil {
		t.Fatal(err)
	}
	defer cat.Close()
	names, err := cat.Implementors("{6a1d0c6e-0b77-4c55-9b0a-2c1d7e0f3a11}")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "TSquare" {
		t.Errorf("Implementors = %v, want [TSquare]", names)
	}
}
