package rtl

// MethodFunc is the Go implementation behind a vtable slot.
type MethodFunc func(self *Instance, args []any) (any, error)

// Method is a vtable entry. Methods are compared by pointer identity: the
// same *Method in two slots is the same method.
type Method struct {
	Name  string
	Owner *Class // class whose body defined the method
	fn    MethodFunc
}

// NewMethod wraps fn as a method named name.
func NewMethod(name string, fn MethodFunc) *Method {
	return &Method{Name: name, fn: fn}
}

// Invoke calls the method on self. A method without an implementation
// (published RTTI with no bound body) returns nil.
func (m *Method) Invoke(self *Instance, args []any) (any, error) {
	if m.fn == nil {
		return nil, nil
	}
	return m.fn(self, args)
}

// VTable is the explicit method table of a class.
//
// A vtable is built once, when its class is created, by copying every slot
// of the ancestor's vtable; the class body then overrides or adds slots.
// Lookup therefore never walks the ancestor chain.
type VTable struct {
	class   *Class
	parent  *VTable
	methods []*Method    // indexed by selector ID, inherited slots included
	local   map[int]bool // selectors defined by this class itself
}

// NewVTable creates the vtable for class, inheriting every slot of parent.
func NewVTable(class *Class, parent *VTable) *VTable {
	vt := &VTable{
		class:  class,
		parent: parent,
		local:  make(map[int]bool),
	}
	if parent != nil {
		vt.methods = make([]*Method, len(parent.methods), len(parent.methods)+8)
		copy(vt.methods, parent.methods)
	} else {
		vt.methods = make([]*Method, 0, 32)
	}
	return vt
}

// Lookup finds the method in the given slot. Returns nil for an empty slot.
func (vt *VTable) Lookup(selector int) *Method {
	if selector >= 0 && selector < len(vt.methods) {
		return vt.methods[selector]
	}
	return nil
}

// LookupLocal finds a method defined by this vtable's own class.
func (vt *VTable) LookupLocal(selector int) *Method {
	if vt.local[selector] {
		return vt.methods[selector]
	}
	return nil
}

// AddMethod adds or overrides the method at the given selector ID.
func (vt *VTable) AddMethod(selector int, method *Method) {
	if selector >= len(vt.methods) {
		grown := make([]*Method, selector+1)
		copy(grown, vt.methods)
		vt.methods = grown
	}
	vt.methods[selector] = method
	vt.local[selector] = true
}

// HasMethod returns true if this vtable's class (not an ancestor) defines selector.
func (vt *VTable) HasMethod(selector int) bool {
	return vt.local[selector]
}

// Parent returns the ancestor's vtable.
func (vt *VTable) Parent() *VTable {
	return vt.parent
}

// Class returns the class this vtable belongs to.
func (vt *VTable) Class() *Class {
	return vt.class
}

// MethodCount returns the number of slots (including empty ones).
func (vt *VTable) MethodCount() int {
	return len(vt.methods)
}

// LocalMethods returns the methods this class defines, keyed by selector.
func (vt *VTable) LocalMethods() map[int]*Method {
	result := make(map[int]*Method, len(vt.local))
	for sel := range vt.local {
		result[sel] = vt.methods[sel]
	}
	return result
}
