package rtl

import (
	"fmt"
	"strings"
	"sync"
)

// ---------------------------------------------------------------------------
// Class: registered class descriptor
// ---------------------------------------------------------------------------

// Class is the descriptor of one class in the single-rooted inheritance tree.
//
// Every class except the universal root has exactly one Ancestor. The class
// owns its own RTTI (Info) and vtable; inherited members are reached through
// Ancestor, never copied into Info.
type Class struct {
	Name     string
	Ancestor *Class
	VTable   *VTable
	Info     *ClassInfo

	// Init is this level's field-initialization step. It runs once per
	// construction, after the level's declared fields have been zeroed.
	Init func(self *Instance)
	// Final is this level's finalization step, run once per destruction.
	Final func(self *Instance)

	rt     *Runtime
	impls  []*implementation
	msgInt map[int]string
	msgStr map[string]string
}

// implementation records that a class implements an interface. Map renames
// interface method names to class method names; nil means identity.
type implementation struct {
	Interface *Interface
	Map       map[string]string
}

func newClass(rt *Runtime, name string, ancestor *Class) *Class {
	var parentVT *VTable
	var parentInfo *ClassInfo
	if ancestor != nil {
		parentVT = ancestor.VTable
		parentInfo = ancestor.Info
	}
	c := &Class{
		Name:     name,
		Ancestor: ancestor,
		Info:     newClassInfo(name, parentInfo),
		rt:       rt,
	}
	c.VTable = NewVTable(c, parentVT)
	return c
}

// Runtime returns the runtime the class is registered with.
func (c *Class) Runtime() *Runtime {
	return c.rt
}

// String implements the Stringer interface.
func (c *Class) String() string {
	return c.Name
}

// ---------------------------------------------------------------------------
// Class hierarchy helpers
// ---------------------------------------------------------------------------

// IsSubclassOf returns true if c is other or descends from it.
func (c *Class) IsSubclassOf(other *Class) bool {
	if other == nil {
		return false
	}
	for current := c; current != nil; current = current.Ancestor {
		if current == other {
			return true
		}
	}
	return false
}

// Ancestors returns all ancestors from immediate parent to root.
func (c *Class) Ancestors() []*Class {
	var result []*Class
	for current := c.Ancestor; current != nil; current = current.Ancestor {
		result = append(result, current)
	}
	return result
}

// Chain returns the class chain ordered root first, c last.
func (c *Class) Chain() []*Class {
	chain := make([]*Class, 0, c.Depth()+1)
	for current := c; current != nil; current = current.Ancestor {
		chain = append(chain, current)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Depth returns the inheritance depth (0 for the root class).
func (c *Class) Depth() int {
	depth := 0
	for current := c.Ancestor; current != nil; current = current.Ancestor {
		depth++
	}
	return depth
}

// ---------------------------------------------------------------------------
// Members
// ---------------------------------------------------------------------------

// DefineMethod installs fn in the named vtable slot without publishing RTTI.
// It overrides whatever the slot held, inherited or not.
func (c *Class) DefineMethod(name string, fn MethodFunc) *Method {
	m := &Method{Name: name, Owner: c, fn: fn}
	c.VTable.AddMethod(c.rt.Selectors.Intern(name), m)
	return m
}

// AddMethod publishes md in the class RTTI and installs fn in its slot.
// A nil fn leaves a published slot that returns nil when called.
func (c *Class) AddMethod(md *MethodDescriptor, fn MethodFunc) (*Method, error) {
	if err := c.Info.AddMethod(md); err != nil {
		return nil, err
	}
	m := c.DefineMethod(md.Name, fn)
	c.rt.log.Debugf("rtti: %s.%s", c.Name, md.Signature())
	return m, nil
}

// AddField publishes a field in the class RTTI. Constructed instances get
// the field's zero value before this level's Init step runs.
func (c *Class) AddField(name string, tag TypeTag) (*FieldDescriptor, error) {
	fd := &FieldDescriptor{Name: name, Type: tag}
	if err := c.Info.AddField(fd); err != nil {
		return nil, err
	}
	c.rt.log.Debugf("rtti: %s.%s: %s", c.Name, name, tag)
	return fd, nil
}

// LookupMethod returns the method occupying the named slot, or nil.
func (c *Class) LookupMethod(name string) *Method {
	sel := c.rt.Selectors.Lookup(name)
	if sel < 0 {
		return nil
	}
	return c.VTable.Lookup(sel)
}

// HasMethod returns true if this class (not an ancestor) defines the slot.
func (c *Class) HasMethod(name string) bool {
	sel := c.rt.Selectors.Lookup(name)
	if sel < 0 {
		return false
	}
	return c.VTable.HasMethod(sel)
}

// RefCounted reports whether instances of the class take part in
// reference counting, i.e. whether the class has an _addref slot.
func (c *Class) RefCounted() bool {
	return c.LookupMethod(selAddRef) != nil
}

// ---------------------------------------------------------------------------
// Interfaces
// ---------------------------------------------------------------------------

// Implements records that the class implements intf (and therefore every
// ancestor of intf). methodMap optionally maps interface method names to
// class method names.
func (c *Class) Implements(intf *Interface, methodMap map[string]string) {
	for _, impl := range c.impls {
		if impl.Interface.GUID == intf.GUID {
			impl.Map = methodMap
			return
		}
	}
	c.impls = append(c.impls, &implementation{Interface: intf, Map: methodMap})
	c.rt.log.Debugf("rtti: %s implements %s %s", c.Name, intf.Name, intf.GUID)
}

// Interfaces returns the interfaces this class itself declares.
func (c *Class) Interfaces() []*Interface {
	result := make([]*Interface, len(c.impls))
	for i, impl := range c.impls {
		result[i] = impl.Interface
	}
	return result
}

// findInterface walks the class chain, most-derived first, for an
// implementation whose interface (or one of its ancestors) has the GUID.
func (c *Class) findInterface(guid GUID) (*Interface, *implementation) {
	for current := c; current != nil; current = current.Ancestor {
		for _, impl := range current.impls {
			for intf := impl.Interface; intf != nil; intf = intf.Ancestor {
				if intf.GUID == guid {
					return intf, impl
				}
			}
		}
	}
	return nil, nil
}

// ImplementsGUID reports whether the class chain implements the GUID.
func (c *Class) ImplementsGUID(guid GUID) bool {
	intf, _ := c.findInterface(guid)
	return intf != nil
}

// ---------------------------------------------------------------------------
// Message tables
// ---------------------------------------------------------------------------

// SetMessageHandler routes numeric message id to the named method.
func (c *Class) SetMessageHandler(id int, method string) {
	if c.msgInt == nil {
		c.msgInt = make(map[int]string)
	}
	c.msgInt[id] = method
}

// SetStringMessageHandler routes string message id to the named method.
func (c *Class) SetStringMessageHandler(id string, method string) {
	if c.msgStr == nil {
		c.msgStr = make(map[string]string)
	}
	c.msgStr[id] = method
}

// MessageHandler returns the handler this class itself registers for id.
func (c *Class) MessageHandler(id int) (string, bool) {
	name, ok := c.msgInt[id]
	return name, ok
}

// StringMessageHandler returns the handler this class itself registers for id.
func (c *Class) StringMessageHandler(id string) (string, bool) {
	name, ok := c.msgStr[id]
	return name, ok
}

// MessageTable returns a copy of the numeric message table.
func (c *Class) MessageTable() map[int]string {
	result := make(map[int]string, len(c.msgInt))
	for k, v := range c.msgInt {
		result[k] = v
	}
	return result
}

// StringMessageTable returns a copy of the string message table.
func (c *Class) StringMessageTable() map[string]string {
	result := make(map[string]string, len(c.msgStr))
	for k, v := range c.msgStr {
		result[k] = v
	}
	return result
}

// ---------------------------------------------------------------------------
// ClassTable: class registry
// ---------------------------------------------------------------------------

// ClassTable manages registered classes by name. Names are unique without
// regard to case. Classes are kept in registration order.
type ClassTable struct {
	mu      sync.RWMutex
	classes map[string]*Class
	order   []*Class
}

// NewClassTable creates a new empty class table.
func NewClassTable() *ClassTable {
	return &ClassTable{
		classes: make(map[string]*Class),
	}
}

// Register adds a class to the table. Registering a second class under an
// existing name is a registration conflict.
func (ct *ClassTable) Register(c *Class) error {
	ct.mu.Lock()
	defer ct.mu.Unlock()

	key := strings.ToLower(c.Name)
	if _, ok := ct.classes[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateClass, c.Name)
	}
	ct.classes[key] = c
	ct.order = append(ct.order, c)
	return nil
}

// Lookup finds a class by name.
func (ct *ClassTable) Lookup(name string) *Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return ct.classes[strings.ToLower(name)]
}

// Has returns true if a class with this name is registered.
func (ct *ClassTable) Has(name string) bool {
	return ct.Lookup(name) != nil
}

// All returns all registered classes in registration order.
func (ct *ClassTable) All() []*Class {
	ct.mu.RLock()
	defer ct.mu.RUnlock()

	result := make([]*Class, len(ct.order))
	copy(result, ct.order)
	return result
}

// Len returns the number of registered classes.
func (ct *ClassTable) Len() int {
	ct.mu.RLock()
	defer ct.mu.RUnlock()
	return len(ct.order)
}
