package rtl

import (
	"fmt"
	"strings"
)

type instanceState uint8

const (
	stateConstructing instanceState = iota
	stateAlive
	stateDestroying
	stateDestroyed
)

// Instance is an object created from exactly one class, its runtime class,
// which is fixed for the instance's lifetime. Every structural query about
// the instance is a walk from that single back-reference.
type Instance struct {
	class    *Class
	fields   map[string]any
	refCount int
	state    instanceState
}

// ---------------------------------------------------------------------------
// Construction and destruction
// ---------------------------------------------------------------------------

// Construct allocates an instance of c, runs each level's field-init step
// exactly once from root to leaf, then invokes the most-derived create slot
// with args followed by afterconstruction.
//
// If create or afterconstruction fails, the destructor and finalization
// steps run on the partial instance and the error is returned.
func (c *Class) Construct(args ...any) (*Instance, error) {
	inst := &Instance{
		class:  c,
		fields: make(map[string]any),
	}
	for _, level := range c.Chain() {
		for _, fd := range level.Info.fields {
			inst.fields[fieldKey(fd.Name)] = fd.Type.Zero()
		}
		if level.Init != nil {
			level.Init(inst)
		}
	}

	inst.state = stateAlive
	if _, err := inst.callSlot(selCreate, args); err != nil {
		inst.abandon()
		return nil, fmt.Errorf("%s.create: %w", c.Name, err)
	}
	if _, err := inst.callSlot(selAfterConstruction, nil); err != nil {
		inst.abandon()
		return nil, fmt.Errorf("%s.afterconstruction: %w", c.Name, err)
	}
	return inst, nil
}

// abandon tears down an instance whose construction failed. The destroy
// slot's own error is dropped in favor of the constructor's.
func (inst *Instance) abandon() {
	inst.state = stateDestroying
	inst.callSlot(selDestroy, nil)
	inst.finalize()
	inst.state = stateDestroyed
}

// MustConstruct is like Construct but panics on error.
func (c *Class) MustConstruct(args ...any) *Instance {
	inst, err := c.Construct(args...)
	if err != nil {
		panic(err)
	}
	return inst
}

// Destroy runs beforedestruction, the destroy destructor slot, and then
// each level's finalization step exactly once from leaf to root.
//
// If beforedestruction fails (a reference-counted instance with outstanding
// references reports ErrHeapConsistency) the instance is left untouched.
// Destroying an instance twice returns ErrDestroyed.
func (inst *Instance) Destroy() error {
	if inst.state != stateAlive {
		return fmt.Errorf("%w: %s", ErrDestroyed, inst.class.Name)
	}
	if _, err := inst.callSlot(selBeforeDestruction, nil); err != nil {
		return err
	}
	inst.state = stateDestroying
	_, err := inst.callSlot(selDestroy, nil)
	inst.finalize()
	inst.state = stateDestroyed
	if err != nil {
		return fmt.Errorf("%s.destroy: %w", inst.class.Name, err)
	}
	return nil
}

// Free destroys the instance on behalf of its owner. Free on nil is a no-op.
func (inst *Instance) Free() error {
	if inst == nil {
		return nil
	}
	return inst.Destroy()
}

func (inst *Instance) finalize() {
	for c := inst.class; c != nil; c = c.Ancestor {
		if c.Final != nil {
			c.Final(inst)
		}
	}
}

// Destroyed reports whether the instance has been destroyed.
func (inst *Instance) Destroyed() bool {
	return inst.state == stateDestroyed
}

// ---------------------------------------------------------------------------
// Structural dispatch
// ---------------------------------------------------------------------------

// Call invokes whatever method currently occupies the named vtable slot.
func (inst *Instance) Call(name string, args ...any) (any, error) {
	if inst.state == stateDestroyed {
		return nil, fmt.Errorf("%w: %s.%s", ErrDestroyed, inst.class.Name, name)
	}
	m := inst.class.LookupMethod(name)
	if m == nil {
		return nil, fmt.Errorf("%w: %s.%s", ErrNoMethod, inst.class.Name, name)
	}
	return m.Invoke(inst, args)
}

// callSlot invokes a lifecycle slot if the class chain has one.
func (inst *Instance) callSlot(name string, args []any) (any, error) {
	m := inst.class.LookupMethod(name)
	if m == nil {
		return nil, nil
	}
	return m.Invoke(inst, args)
}

// ---------------------------------------------------------------------------
// Fields
// ---------------------------------------------------------------------------

func fieldKey(name string) string {
	return strings.ToLower(name)
}

// Field returns the stored value of a field.
func (inst *Instance) Field(name string) (any, bool) {
	v, ok := inst.fields[fieldKey(name)]
	return v, ok
}

// SetField stores a field value. Field-init steps may store private fields
// that are not published in RTTI.
func (inst *Instance) SetField(name string, value any) {
	inst.fields[fieldKey(name)] = value
}

// ---------------------------------------------------------------------------
// TObject-level queries
// ---------------------------------------------------------------------------

// Class returns the runtime class.
func (inst *Instance) Class() *Class {
	return inst.class
}

// ClassName returns the runtime class name.
func (inst *Instance) ClassName() string {
	return inst.class.Name
}

// ClassNameIs compares the class name without regard to case.
func (inst *Instance) ClassNameIs(name string) bool {
	return strings.EqualFold(inst.class.Name, name)
}

// InheritsFrom reports whether the runtime class is c or descends from it.
func (inst *Instance) InheritsFrom(c *Class) bool {
	return inst.class.IsSubclassOf(c)
}

// ClassInfo returns the RTTI of the runtime class.
func (inst *Instance) ClassInfo() *ClassInfo {
	return inst.class.Info
}

// Equals reports identity.
func (inst *Instance) Equals(other *Instance) bool {
	return inst == other
}

// ToString invokes the tostring slot; TObject answers the class name.
func (inst *Instance) ToString() string {
	v, err := inst.Call(selToString)
	if err != nil {
		return inst.class.Name
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func (inst *Instance) String() string {
	return inst.ToString()
}

// ---------------------------------------------------------------------------
// Reflection
// ---------------------------------------------------------------------------

// MethodName returns the published name under which m currently occupies a
// slot of the instance, searching the RTTI chain most-derived first.
// Returns "" if m is nil or not published anywhere in the chain.
func (inst *Instance) MethodName(m *Method) string {
	if m == nil {
		return ""
	}
	for ti := inst.class.Info; ti != nil; ti = ti.Ancestor {
		for _, md := range ti.methods {
			if inst.class.LookupMethod(md.Name) == m {
				return md.Name
			}
		}
	}
	return ""
}

// MethodAddress returns the method in the slot of the published method
// matching name without regard to case. Returns nil if nothing in the
// chain publishes it.
func (inst *Instance) MethodAddress(name string) *Method {
	md := inst.class.Info.FindMethod(name)
	if md == nil {
		return nil
	}
	return inst.class.LookupMethod(md.Name)
}

// FindMethod returns the published descriptor matching name without regard
// to case, or nil.
func (inst *Instance) FindMethod(name string) *MethodDescriptor {
	return inst.class.Info.FindMethod(name)
}

// FieldAddress returns the published field matching name without regard to
// case, or nil.
func (inst *Instance) FieldAddress(name string) *FieldDescriptor {
	return inst.class.Info.FindField(name)
}
