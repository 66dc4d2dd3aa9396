package rtl

import (
	"errors"
	"testing"
)

func newSystemRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt := New()
	if err := RegisterSystem(rt); err != nil {
		t.Fatalf("RegisterSystem failed: %v", err)
	}
	return rt
}

func ret(v any) MethodFunc {
	return func(self *Instance, args []any) (any, error) { return v, nil }
}

// ---------------------------------------------------------------------------
// Registration
// ---------------------------------------------------------------------------

func TestNewRuntimeRoots(t *testing.T) {
	rt := New()
	if rt.ObjectClass == nil || rt.ObjectClass.Name != "TObject" {
		t.Fatal("TObject should be registered")
	}
	if rt.ObjectClass.Ancestor != nil {
		t.Error("root class should have nil ancestor")
	}
	if rt.IUnknown == nil || rt.IUnknown.GUID != IUnknownGUID {
		t.Fatal("IUnknown should be registered with its GUID")
	}
	if rt.IUnknown.Ancestor != nil {
		t.Error("IUnknown should have no ancestor")
	}
	if rt.Classes.Len() != 1 {
		t.Errorf("Classes.Len() = %d, want 1", rt.Classes.Len())
	}
}

func TestRegisterClassDefaultsToRoot(t *testing.T) {
	rt := New()
	c, err := rt.RegisterClass("TPoint", nil, nil)
	if err != nil {
		t.Fatalf("RegisterClass failed: %v", err)
	}
	if c.Ancestor != rt.ObjectClass {
		t.Errorf("ancestor = %v, want TObject", c.Ancestor)
	}
	if c.VTable.Parent() != rt.ObjectClass.VTable {
		t.Error("VTable parent should be TObject's vtable")
	}
	if c.Info.Ancestor != rt.ObjectClass.Info {
		t.Error("RTTI ancestor should be TObject's RTTI")
	}
	if rt.Classes.Lookup("tpoint") != c {
		t.Error("class lookup should ignore case")
	}
}

func TestRegisterClassDuplicate(t *testing.T) {
	rt := New()
	if _, err := rt.RegisterClass("TPoint", nil, nil); err != nil {
		t.Fatal(err)
	}

	ran := false
	_, err := rt.RegisterClass("TPOINT", nil, func(c *Class) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrDuplicateClass) {
		t.Fatalf("error = %v, want ErrDuplicateClass", err)
	}
	if ran {
		t.Error("body should not run for a duplicate class")
	}
	if rt.Classes.Len() != 2 {
		t.Errorf("Classes.Len() = %d, want 2", rt.Classes.Len())
	}
}

func TestMustRegisterClassPanicsOnConflict(t *testing.T) {
	rt := New()
	defer func() {
		if recover() == nil {
			t.Error("MustRegisterClass should panic on duplicate TObject")
		}
	}()
	rt.MustRegisterClass("TObject", nil, nil)
}

func TestRegisterClassBodyError(t *testing.T) {
	rt := New()
	boom := errors.New("boom")
	_, err := rt.RegisterClass("TBroken", nil, func(c *Class) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if rt.Classes.Has("TBroken") {
		t.Error("failed class should not be registered")
	}
}

func TestRegisterClassForeignAncestor(t *testing.T) {
	rt1 := New()
	rt2 := New()
	_, err := rt2.RegisterClass("TChild", rt1.ObjectClass, nil)
	if !errors.Is(err, ErrUnknownClass) {
		t.Fatalf("error = %v, want ErrUnknownClass", err)
	}
}

// ---------------------------------------------------------------------------
// Hierarchy
// ---------------------------------------------------------------------------

func TestClassChain(t *testing.T) {
	rt := New()
	shape := rt.MustRegisterClass("TShape", nil, nil)
	square := rt.MustRegisterClass("TSquare", shape, nil)

	chain := square.Chain()
	want := []*Class{rt.ObjectClass, shape, square}
	if len(chain) != len(want) {
		t.Fatalf("Chain() length = %d, want %d", len(chain), len(want))
	}
	for i := range want {
		if chain[i] != want[i] {
			t.Errorf("chain[%d] = %v, want %v", i, chain[i], want[i])
		}
	}

	ancestors := square.Ancestors()
	if len(ancestors) != 2 || ancestors[0] != shape || ancestors[1] != rt.ObjectClass {
		t.Errorf("Ancestors() = %v, want [TShape TObject]", ancestors)
	}
	if square.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", square.Depth())
	}
	if !square.IsSubclassOf(rt.ObjectClass) || !square.IsSubclassOf(square) {
		t.Error("TSquare should be a subclass of TObject and of itself")
	}
	if shape.IsSubclassOf(square) {
		t.Error("TShape should not be a subclass of TSquare")
	}
}

// ---------------------------------------------------------------------------
// VTable
// ---------------------------------------------------------------------------

func TestVTableCopiesAncestorSlots(t *testing.T) {
	rt := New()
	base := rt.MustRegisterClass("TBase", nil, func(c *Class) error {
		c.DefineMethod("name", ret("base"))
		c.DefineMethod("kind", ret("base-kind"))
		return nil
	})
	derived := rt.MustRegisterClass("TDerived", base, func(c *Class) error {
		c.DefineMethod("name", ret("derived"))
		return nil
	})

	if derived.LookupMethod("kind") != base.LookupMethod("kind") {
		t.Error("inherited slot should hold the ancestor's method")
	}
	if derived.LookupMethod("name") == base.LookupMethod("name") {
		t.Error("overridden slot should hold the derived method")
	}
	if derived.HasMethod("kind") {
		t.Error("HasMethod should not report inherited slots")
	}
	if !derived.HasMethod("name") {
		t.Error("HasMethod should report overridden slots")
	}
	if base.LookupMethod("name").Owner != base {
		t.Error("method owner should be the defining class")
	}

	inst := derived.MustConstruct()
	if v, _ := inst.Call("name"); v != "derived" {
		t.Errorf("name = %v, want derived", v)
	}
	if v, _ := inst.Call("kind"); v != "base-kind" {
		t.Errorf("kind = %v, want base-kind", v)
	}
	if _, err := inst.Call("missing"); !errors.Is(err, ErrNoMethod) {
		t.Errorf("Call(missing) error = %v, want ErrNoMethod", err)
	}
}

func TestVTableLocalMethods(t *testing.T) {
	rt := New()
	c := rt.MustRegisterClass("TThing", nil, func(c *Class) error {
		c.DefineMethod("a", ret(1))
		c.DefineMethod("b", ret(2))
		return nil
	})
	local := c.VTable.LocalMethods()
	if len(local) != 2 {
		t.Errorf("LocalMethods() length = %d, want 2", len(local))
	}
	if c.VTable.MethodCount() < 2 {
		t.Errorf("MethodCount() = %d, want at least 2", c.VTable.MethodCount())
	}
	sel := rt.Selectors.Lookup("a")
	if c.VTable.LookupLocal(sel) == nil {
		t.Error("LookupLocal(a) should find the method")
	}
	if c.VTable.LookupLocal(rt.Selectors.Lookup(selCreate)) != nil {
		t.Error("LookupLocal(create) should not see TObject's slot")
	}
}

func TestSelectorTable(t *testing.T) {
	st := NewSelectorTable()
	a := st.Intern("area")
	if st.Intern("area") != a {
		t.Error("Intern should be idempotent")
	}
	if st.Intern("Area") == a {
		t.Error("selectors are case-sensitive")
	}
	if st.Lookup("perimeter") != -1 {
		t.Error("Lookup of unknown selector should return -1")
	}
	if st.Name(a) != "area" {
		t.Errorf("Name(%d) = %q, want area", a, st.Name(a))
	}
	if st.Name(99) != "" {
		t.Error("Name of invalid id should be empty")
	}
	if st.Len() != 2 {
		t.Errorf("Len() = %d, want 2", st.Len())
	}
}

func TestClassTableOrder(t *testing.T) {
	rt := newSystemRuntime(t)
	all := rt.Classes.All()
	want := []string{"TObject", "TCustomAttribute", "TInterfacedObject", "TAggregatedObject", "TContainedObject"}
	if len(all) != len(want) {
		t.Fatalf("All() length = %d, want %d", len(all), len(want))
	}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("All()[%d] = %s, want %s", i, all[i].Name, name)
		}
	}
}
