package rtl

import (
	"errors"
	"testing"
)

var (
	shapeGUID = MustParseGUID("{1F3C2B5A-0D7E-4C11-9B2A-6E8F00A1B201}")
	solidGUID = MustParseGUID("{1F3C2B5A-0D7E-4C11-9B2A-6E8F00A1B202}")
	otherGUID = MustParseGUID("{1F3C2B5A-0D7E-4C11-9B2A-6E8F00A1B203}")
)

func registerShapes(t *testing.T, rt *Runtime) (*Interface, *Interface, *Class) {
	t.Helper()
	ishape, err := rt.RegisterInterface("IShape", shapeGUID, []string{"area"}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	isolid, err := rt.RegisterInterface("ISolid", solidGUID, []string{"volume"}, ishape, nil)
	if err != nil {
		t.Fatal(err)
	}
	cube, err := rt.RegisterClass("TCube", rt.InterfacedObjectClass, func(c *Class) error {
		c.DefineMethod("cubearea", ret(int64(6)))
		c.DefineMethod("volume", ret(int64(1)))
		c.Implements(isolid, map[string]string{"area": "cubearea"})
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return ishape, isolid, cube
}

func TestQueryInterfaceHitAndMiss(t *testing.T) {
	rt := newSystemRuntime(t)
	_, _, cube := registerShapes(t, rt)
	inst := cube.MustConstruct()

	tests := []struct {
		name string
		iid  GUID
		want bool
	}{
		{"declared", solidGUID, true},
		{"interface ancestor", shapeGUID, true},
		{"inherited from class ancestor", IUnknownGUID, true},
		{"object instance", IObjectInstanceGUID, true},
		{"unrelated", otherGUID, false},
		{"nil guid", NilGUID, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			found, ok := inst.QueryInterface(tc.iid)
			if ok != tc.want {
				t.Fatalf("QueryInterface(%s) ok = %v, want %v", tc.iid, ok, tc.want)
			}
			if ok && found != inst {
				t.Error("QueryInterface should return the instance itself")
			}
			if !ok && found != nil {
				t.Error("a miss should return nil")
			}
			if inst.Supports(tc.iid) != tc.want {
				t.Errorf("Supports(%s) = %v, want %v", tc.iid, !tc.want, tc.want)
			}
		})
	}

	if inst.RefCount() != 0 {
		t.Errorf("QueryInterface changed RefCount() to %d", inst.RefCount())
	}
}

func TestQueryInterfaceOnPlainObject(t *testing.T) {
	rt := newSystemRuntime(t)
	inst := rt.ObjectClass.MustConstruct()
	if _, ok := inst.QueryInterface(IUnknownGUID); ok {
		t.Error("TObject does not implement IUnknown")
	}
	if found, ok := inst.QueryInterface(IObjectInstanceGUID); !ok || found != inst {
		t.Error("every instance answers IObjectInstance with itself")
	}
}

func TestQueryInterfaceByName(t *testing.T) {
	rt := newSystemRuntime(t)
	registerShapes(t, rt)
	inst := rt.Classes.Lookup("TCube").MustConstruct()

	for _, in := range []string{"IShape", "ishape", shapeGUID.String(), "{1f3c2b5a-0d7e-4c11-9b2a-6e8f00a1b202}"} {
		if _, ok := inst.QueryInterfaceByName(in); !ok {
			t.Errorf("QueryInterfaceByName(%q) missed", in)
		}
	}
	if _, ok := inst.QueryInterfaceByName("IMissing"); ok {
		t.Error("unknown name should miss")
	}
}

func TestDuplicateGUIDFirstWins(t *testing.T) {
	rt := newSystemRuntime(t)
	first := rt.MustRegisterInterface("IFirst", otherGUID, nil, nil, nil)
	second := rt.MustRegisterInterface("ISecond", otherGUID, nil, nil, nil)

	got, ok := rt.QueryInterfaceByGUID(otherGUID)
	if !ok || got != first {
		t.Errorf("QueryInterfaceByGUID = %v, want IFirst", got)
	}
	if rt.Interfaces.Lookup("isecond") != second {
		t.Error("second interface should still be reachable by name")
	}

	c := rt.MustRegisterClass("TSecond", nil, func(c *Class) error {
		c.Implements(second, nil)
		return nil
	})
	if !c.MustConstruct().Supports(otherGUID) {
		t.Error("equal GUIDs are the same identity")
	}
}

func TestDuplicateInterfaceName(t *testing.T) {
	rt := newSystemRuntime(t)
	_, err := rt.RegisterInterface("iunknown", otherGUID, nil, nil, nil)
	if !errors.Is(err, ErrDuplicateInterface) {
		t.Errorf("error = %v, want ErrDuplicateInterface", err)
	}
}

func TestInterfaceAncestry(t *testing.T) {
	rt := newSystemRuntime(t)
	ishape, isolid, _ := registerShapes(t, rt)

	if !isolid.InheritsFrom(ishape) || !isolid.InheritsFrom(rt.IUnknown) {
		t.Error("ISolid should inherit from IShape and IUnknown")
	}
	if ishape.InheritsFrom(isolid) {
		t.Error("IShape should not inherit from ISolid")
	}
	want := []string{"queryinterface", "_addref", "_release", "area", "volume"}
	got := isolid.AllMethods()
	if len(got) != len(want) {
		t.Fatalf("AllMethods() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AllMethods()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if isolid.Kind != KindCOM {
		t.Errorf("Kind = %v, want com", isolid.Kind)
	}
}

func TestGetInterfaceAddsReference(t *testing.T) {
	rt := newSystemRuntime(t)
	_, _, cube := registerShapes(t, rt)
	inst := cube.MustConstruct()

	if _, ok := inst.GetInterface(shapeGUID); !ok {
		t.Fatal("GetInterface should find IShape")
	}
	if inst.RefCount() != 1 {
		t.Errorf("RefCount() after GetInterface = %d, want 1", inst.RefCount())
	}
	if _, ok := inst.GetInterfaceWeak(shapeGUID); !ok {
		t.Fatal("GetInterfaceWeak should find IShape")
	}
	if inst.RefCount() != 1 {
		t.Errorf("RefCount() after GetInterfaceWeak = %d, want 1", inst.RefCount())
	}
	if _, ok := inst.GetInterface(otherGUID); ok {
		t.Error("GetInterface should miss unrelated GUIDs")
	}
	if inst.RefCount() != 1 {
		t.Errorf("RefCount() after a miss = %d, want 1", inst.RefCount())
	}
}

func TestInvokeInterface(t *testing.T) {
	rt := newSystemRuntime(t)
	_, _, cube := registerShapes(t, rt)
	inst := cube.MustConstruct()

	v, err := inst.InvokeInterface(shapeGUID, "area")
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(6) {
		t.Errorf("area = %v, want 6", v)
	}
	v, err = inst.InvokeInterface(solidGUID, "volume")
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(1) {
		t.Errorf("volume = %v, want 1", v)
	}
	if _, err := inst.InvokeInterface(otherGUID, "area"); !errors.Is(err, ErrUnknownInterface) {
		t.Errorf("error = %v, want ErrUnknownInterface", err)
	}
}

func TestQueryDestroyedInstance(t *testing.T) {
	rt := newSystemRuntime(t)
	inst := rt.InterfacedObjectClass.MustConstruct()
	if err := inst.Free(); err != nil {
		t.Fatal(err)
	}
	if _, ok := inst.QueryInterface(IUnknownGUID); ok {
		t.Error("destroyed instance should not answer queries")
	}
}
