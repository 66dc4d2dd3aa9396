package rtl

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// Well-known vtable slots.
const (
	selCreate            = "create"
	selDestroy           = "destroy"
	selAfterConstruction = "afterconstruction"
	selBeforeDestruction = "beforedestruction"
	selAddRef            = "_addref"
	selRelease           = "_release"
	selQueryInterface    = "queryinterface"
	selDefaultHandler    = "defaulthandler"
	selDefaultHandlerStr = "defaulthandlerstr"
	selToString          = "tostring"
)

// GUIDs of the built-in interfaces.
var (
	IUnknownGUID        = MustParseGUID("{00000000-0000-0000-C000-000000000046}")
	IInvokableGUID      = MustParseGUID("{88387EF6-BCEE-3E17-9E85-5D491ED4FC10}")
	IEnumeratorGUID     = MustParseGUID("{ECEC7568-4E50-30C9-A2F0-439342DE2ADB}")
	IEnumerableGUID     = MustParseGUID("{9791C368-4E51-3424-A3CE-D4911D54F385}")
	IObjectInstanceGUID = MustParseGUID("{D91C9AF4-3C93-420F-A303-BF5BA82BFD23}")
)

// Runtime is the process-scoped context that owns the class and interface
// registries. Registration is expected to happen from unit initializers on
// a single goroutine; the tables are guarded so concurrent readers (an
// inspection server, for example) are safe.
type Runtime struct {
	Selectors  *SelectorTable
	Classes    *ClassTable
	Interfaces *InterfaceTable

	// Universal roots, always present.
	ObjectClass *Class
	IUnknown    *Interface

	// Populated by RegisterSystem.
	CustomAttributeClass  *Class
	InterfacedObjectClass *Class
	AggregatedObjectClass *Class
	ContainedObjectClass  *Class
	IInvokable            *Interface
	IEnumerator           *Interface
	IEnumerable           *Interface

	log commonlog.Logger
}

// New creates a runtime holding the universal root class TObject and the
// universal interface IUnknown.
func New() *Runtime {
	rt := &Runtime{
		Selectors:  NewSelectorTable(),
		Classes:    NewClassTable(),
		Interfaces: NewInterfaceTable(),
		log:        commonlog.GetLogger("rtl"),
	}
	rt.bootstrap()
	return rt
}

// RegisterClass creates a class named name under ancestor (TObject when nil),
// runs body to populate its members, and registers it.
//
// A duplicate name is a registration conflict; nothing is registered and
// body does not run.
func (rt *Runtime) RegisterClass(name string, ancestor *Class, body func(c *Class) error) (*Class, error) {
	if ancestor == nil {
		ancestor = rt.ObjectClass
	}
	if ancestor != nil && ancestor.rt != rt {
		return nil, fmt.Errorf("%w: ancestor %s of %s belongs to another runtime", ErrUnknownClass, ancestor.Name, name)
	}
	if rt.Classes.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateClass, name)
	}

	c := newClass(rt, name, ancestor)
	if body != nil {
		if err := body(c); err != nil {
			return nil, fmt.Errorf("class %s: %w", name, err)
		}
	}
	if err := rt.Classes.Register(c); err != nil {
		return nil, err
	}
	rt.log.Debugf("class %s registered (ancestor %v)", name, ancestor)
	return c, nil
}

// MustRegisterClass is RegisterClass for static initialization code:
// a registration conflict panics.
func (rt *Runtime) MustRegisterClass(name string, ancestor *Class, body func(c *Class) error) *Class {
	c, err := rt.RegisterClass(name, ancestor, body)
	if err != nil {
		panic(err)
	}
	return c
}

// RegisterInterface creates an interface with the given GUID and method
// names under ancestor (IUnknown when nil), runs body and registers it.
// The interface inherits its kind from the ancestor.
func (rt *Runtime) RegisterInterface(name string, guid GUID, methods []string, ancestor *Interface, body func(i *Interface) error) (*Interface, error) {
	if ancestor == nil {
		ancestor = rt.IUnknown
	}
	if rt.Interfaces.Lookup(name) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateInterface, name)
	}

	intf := &Interface{
		Name:     name,
		GUID:     guid,
		Methods:  append([]string(nil), methods...),
		Ancestor: ancestor,
	}
	var parentInfo *ClassInfo
	if ancestor != nil {
		intf.Kind = ancestor.Kind
		parentInfo = ancestor.Info
	}
	intf.Info = newClassInfo(name, parentInfo)

	if body != nil {
		if err := body(intf); err != nil {
			return nil, fmt.Errorf("interface %s: %w", name, err)
		}
	}
	if err := rt.Interfaces.Register(intf); err != nil {
		return nil, err
	}
	if prev := rt.Interfaces.LookupGUID(guid); prev != intf {
		rt.log.Warningf("interface %s shares GUID %s with %s; GUID lookups resolve to %s", name, guid, prev.Name, prev.Name)
	}
	rt.log.Debugf("interface %s %s registered", name, guid)
	return intf, nil
}

// MustRegisterInterface is RegisterInterface for static initialization code.
func (rt *Runtime) MustRegisterInterface(name string, guid GUID, methods []string, ancestor *Interface, body func(i *Interface) error) *Interface {
	intf, err := rt.RegisterInterface(name, guid, methods, ancestor, body)
	if err != nil {
		panic(err)
	}
	return intf
}

// LookupClass returns the class registered under name, or an ErrUnknownClass error.
func (rt *Runtime) LookupClass(name string) (*Class, error) {
	c := rt.Classes.Lookup(name)
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	return c, nil
}

// QueryInterfaceByGUID returns the interface descriptor for guid, the
// first one registered when several share it.
func (rt *Runtime) QueryInterfaceByGUID(guid GUID) (*Interface, bool) {
	intf := rt.Interfaces.LookupGUID(guid)
	return intf, intf != nil
}

// ResolveInterface resolves an interface by name or by GUID text.
func (rt *Runtime) ResolveInterface(nameOrGUID string) (*Interface, bool) {
	if g, err := ParseGUID(nameOrGUID); err == nil {
		return rt.QueryInterfaceByGUID(g)
	}
	intf := rt.Interfaces.Lookup(nameOrGUID)
	return intf, intf != nil
}
