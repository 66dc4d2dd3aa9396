package catalog

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/rtl/rtl"
	"github.com/chazu/rtl/wire"
)

const shapeGUID = "{6A1D0C6E-0B77-4C55-9B0A-2C1D7E0F3A11}"

func testSnapshot() *wire.Snapshot {
	return &wire.Snapshot{
		Version: wire.Version,
		Classes: []wire.ClassRecord{
			{Name: "TObject"},
			{Name: "TShape", Ancestor: "TObject", Interfaces: []string{shapeGUID}},
			{
				Name:     "TSquare",
				Ancestor: "TShape",
				Methods: []wire.MethodRecord{
					{Name: "area", Ordinal: 0, Kind: "function", Result: "double",
						Params: []wire.ParamRecord{{Name: "scale", Type: "double", Flags: uint8(rtl.ParamConst)}}},
					{Name: "paint", Ordinal: 1, Kind: "procedure"},
				},
				Fields:     []wire.FieldRecord{{Name: "fside", Ordinal: 0, Type: "double"}},
				Interfaces: []string{shapeGUID},
			},
		},
		Interfaces: []wire.InterfaceRecord{
			{Name: "IUnknown", GUID: rtl.IUnknownGUID.String(), Kind: "com",
				Methods: []string{"queryinterface", "_addref", "_release"}},
			{Name: "IShape", GUID: shapeGUID, Ancestor: "IUnknown", Kind: "com", Methods: []string{"area"}},
			{Name: "IShapeAlias", GUID: shapeGUID, Ancestor: "IUnknown", Kind: "com"},
		},
		Units: []wire.UnitRecord{
			{Name: "system", Form: "native", Order: 0},
			{Name: "shapes", Form: "compact", Path: "/units/shapes.unit.gz", Order: 1},
		},
	}
}

func openTest(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "sub", "catalog.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestSaveAndQuery(t *testing.T) {
	c := openTest(t)
	s := testSnapshot()
	if err := c.Save(s); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	classes, err := c.Classes()
	if err != nil {
		t.Fatal(err)
	}
	if len(classes) != 3 || classes[2].Name != "TSquare" || classes[2].Ancestor != "TShape" {
		t.Errorf("Classes() = %+v", classes)
	}
	if classes[0].Ancestor != "" {
		t.Errorf("root ancestor = %q, want empty", classes[0].Ancestor)
	}

	methods, err := c.Methods("tsquare")
	if err != nil {
		t.Fatal(err)
	}
	if len(methods) != 2 {
		t.Fatalf("Methods() = %+v, want 2", methods)
	}
	area := methods[0]
	if area.Name != "area" || area.Result != "double" || len(area.Params) != 1 || area.Params[0].Name != "scale" {
		t.Errorf("area = %+v", area)
	}
	if methods[1].Name != "paint" || methods[1].Result != "" || len(methods[1].Params) != 0 {
		t.Errorf("paint = %+v", methods[1])
	}

	fields, err := c.Fields("TSquare")
	if err != nil {
		t.Fatal(err)
	}
	if len(fields) != 1 || fields[0].Name != "fside" {
		t.Errorf("Fields() = %+v", fields)
	}

	units, err := c.Units()
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 2 || units[1].Path != "/units/shapes.unit.gz" || units[0].Path != "" {
		t.Errorf("Units() = %+v", units)
	}

	digest, err := c.Digest()
	if err != nil {
		t.Fatal(err)
	}
	if len(digest) != 64 {
		t.Errorf("Digest() = %q, want 64 hex chars", digest)
	}
}

func TestMethodsUnknownClass(t *testing.T) {
	c := openTest(t)
	if err := c.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Methods("TCircle"); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestInterfaceByGUID(t *testing.T) {
	c := openTest(t)
	if err := c.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		guid    string
		want    string
		wantErr error
	}{
		{"canonical", shapeGUID, "IShape", nil},
		{"lower case", "{6a1d0c6e-0b77-4c55-9b0a-2c1d7e0f3a11}", "IShape", nil},
		{"iunknown", rtl.IUnknownGUID.String(), "IUnknown", nil},
		{"missing", "{00000000-0000-0000-0000-000000000001}", "", ErrNotFound},
		{"malformed", "shape", "", rtl.ErrInvalidGUID},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec, err := c.InterfaceByGUID(tc.guid)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("error = %v, want %v", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if rec.Name != tc.want {
				t.Errorf("InterfaceByGUID(%q) = %s, want %s", tc.guid, rec.Name, tc.want)
			}
		})
	}

	rec, err := c.InterfaceByGUID(shapeGUID)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Methods) != 1 || rec.Methods[0] != "area" || rec.Ancestor != "IUnknown" {
		t.Errorf("IShape record = %+v", rec)
	}
}

func TestImplementors(t *testing.T) {
	c := openTest(t)
	if err := c.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	names, err := c.Implementors(shapeGUID)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "TShape" || names[1] != "TSquare" {
		t.Errorf("Implementors() = %v, want [TShape TSquare]", names)
	}
}

func TestSaveReplaces(t *testing.T) {
	c := openTest(t)
	if err := c.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	small := &wire.Snapshot{Version: wire.Version, Classes: []wire.ClassRecord{{Name: "TObject"}}}
	if err := c.Save(small); err != nil {
		t.Fatal(err)
	}
	classes, err := c.Classes()
	if err != nil {
		t.Fatal(err)
	}
	if len(classes) != 1 {
		t.Errorf("Classes() after replace = %+v, want only TObject", classes)
	}
	units, err := c.Units()
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 0 {
		t.Errorf("Units() after replace = %+v, want none", units)
	}
}

func TestSaveRejectsInvalid(t *testing.T) {
	c := openTest(t)
	if err := c.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	bad := &wire.Snapshot{Version: wire.Version, Classes: []wire.ClassRecord{{Name: "TChild", Ancestor: "TMissing"}}}
	if err := c.Save(bad); err == nil {
		t.Fatal("expected Save to reject an invalid snapshot")
	}
	classes, err := c.Classes()
	if err != nil {
		t.Fatal(err)
	}
	if len(classes) != 3 {
		t.Errorf("invalid save should leave content intact, got %+v", classes)
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Save(testSnapshot()); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	units, err := c.Units()
	if err != nil {
		t.Fatal(err)
	}
	if len(units) != 2 {
		t.Errorf("Units() after reopen = %+v, want 2", units)
	}
}
