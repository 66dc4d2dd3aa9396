package wire

import (
	"bytes"
	"testing"

	"github.com/chazu/rtl/loader"
	"github.com/chazu/rtl/rtl"
)

var shapeGUID = rtl.MustParseGUID("{6A1D0C6E-0B77-4C55-9B0A-2C1D7E0F3A11}")

// newRuntime builds a runtime with the system classes, one interface and
// one class, loaded through a loader so the journal is populated.
func newRuntime(t *testing.T) (*rtl.Runtime, *loader.Loader) {
	t.Helper()
	rt := rtl.New()
	ld := loader.New(nil, nil)
	units := []*loader.Unit{
		{Name: "system", Init: func() error { return rtl.RegisterSystem(rt) }},
		{Name: "shapes", Uses: []string{"system"}, Init: func() error {
			ishape, err := rt.RegisterInterface("IShape", shapeGUID, []string{"area"}, nil, nil)
			if err != nil {
				return err
			}
			_, err = rt.RegisterClass("TSquare", rt.InterfacedObjectClass, func(c *rtl.Class) error {
				if _, err := c.AddField("fside", rtl.TagDouble); err != nil {
					return err
				}
				result := rtl.TagDouble
				if _, err := c.AddMethod(&rtl.MethodDescriptor{
					Name: "area", Kind: rtl.MethodFunction, Result: &result,
					Params: []rtl.Param{{Name: "scale", Type: rtl.TagDouble, Flags: rtl.ParamConst}},
				}, nil); err != nil {
					return err
				}
				c.Implements(ishape, nil)
				c.SetMessageHandler(15, "area")
				c.SetStringMessageHandler("measure", "area")
				return nil
			})
			return err
		}},
	}
	for _, u := range units {
		if err := ld.Define(u); err != nil {
			t.Fatal(err)
		}
	}
	if err := ld.Require("shapes"); err != nil {
		t.Fatal(err)
	}
	return rt, ld
}

func TestCapture(t *testing.T) {
	rt, ld := newRuntime(t)
	s := Capture(rt, ld)

	if s.Version != Version {
		t.Errorf("Version = %d, want %d", s.Version, Version)
	}
	if len(s.Classes) != rt.Classes.Len() {
		t.Errorf("captured %d classes, want %d", len(s.Classes), rt.Classes.Len())
	}
	if len(s.Interfaces) != rt.Interfaces.Len() {
		t.Errorf("captured %d interfaces, want %d", len(s.Interfaces), rt.Interfaces.Len())
	}
	if s.Classes[0].Name != "TObject" || s.Classes[0].Ancestor != "" {
		t.Errorf("first class = %+v, want root TObject", s.Classes[0])
	}

	square := s.Class("tsquare")
	if square == nil {
		t.Fatal("TSquare missing from snapshot")
	}
	if square.Ancestor != "TInterfacedObject" {
		t.Errorf("Ancestor = %q, want TInterfacedObject", square.Ancestor)
	}
	if len(square.Methods) != 1 {
		t.Fatalf("Methods = %+v, want one", square.Methods)
	}
	m := square.Methods[0]
	if m.Name != "area" || m.Kind != "function" || m.Result != "double" {
		t.Errorf("method = %+v", m)
	}
	if len(m.Params) != 1 || m.Params[0].Type != "double" || m.Params[0].Flags != uint8(rtl.ParamConst) {
		t.Errorf("params = %+v", m.Params)
	}
	if len(square.Fields) != 1 || square.Fields[0].Type != "double" {
		t.Errorf("fields = %+v", square.Fields)
	}
	if len(square.Interfaces) != 1 || square.Interfaces[0] != shapeGUID.String() {
		t.Errorf("interfaces = %v, want [%s]", square.Interfaces, shapeGUID)
	}
	if square.Messages[15] != "area" || square.StrMessages["measure"] != "area" {
		t.Errorf("messages = %v / %v", square.Messages, square.StrMessages)
	}
	if len(square.Slots) != 1 || square.Slots[0] != "area" {
		t.Errorf("slots = %v, want [area]", square.Slots)
	}

	if len(s.Units) != 2 || s.Units[0].Name != "system" || s.Units[1].Form != "native" {
		t.Errorf("units = %+v", s.Units)
	}
}

func TestSnapshotCBORRoundTrip(t *testing.T) {
	rt, ld := newRuntime(t)
	s := Capture(rt, ld)

	data, err := Marshal(s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	again, err := Marshal(got)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, again) {
		t.Error("re-encoding a decoded snapshot should yield identical bytes")
	}

	d1, err := s.Digest()
	if err != nil {
		t.Fatal(err)
	}
	d2, err := got.Digest()
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Error("Digest mismatch after round trip")
	}
}

func TestMarshalDeterministic(t *testing.T) {
	rt1, ld1 := newRuntime(t)
	rt2, ld2 := newRuntime(t)
	a, err := Marshal(Capture(rt1, ld1))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Marshal(Capture(rt2, ld2))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(a, b) {
		t.Error("equal runtimes should encode to equal bytes")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		s    Snapshot
		ok   bool
	}{
		{"empty", Snapshot{Version: Version}, true},
		{"bad version", Snapshot{Version: 9}, false},
		{"nameless class", Snapshot{Version: Version, Classes: []ClassRecord{{}}}, false},
		{"orphan class", Snapshot{Version: Version, Classes: []ClassRecord{{Name: "TChild", Ancestor: "TParent"}}}, false},
		{"ordered classes", Snapshot{Version: Version, Classes: []ClassRecord{{Name: "TParent"}, {Name: "TChild", Ancestor: "TParent"}}}, true},
		{"bad interface guid", Snapshot{Version: Version, Interfaces: []InterfaceRecord{{Name: "IX", GUID: "x"}}}, false},
		{"bad class guid", Snapshot{Version: Version, Classes: []ClassRecord{{Name: "TX", Interfaces: []string{"nope"}}}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			if (err == nil) != tc.ok {
				t.Errorf("Validate() = %v, want ok = %v", err, tc.ok)
			}
		})
	}
}

func TestUnmarshalGarbage(t *testing.T) {
	if _, err := Unmarshal([]byte{0xff, 0x00, 0x13}); err == nil {
		t.Error("expected an error for malformed CBOR")
	}
}
