package rtl

import "fmt"

// Supports reports whether the instance's class chain implements iid.
// Every instance supports IObjectInstance.
func (inst *Instance) Supports(iid GUID) bool {
	return iid == IObjectInstanceGUID || inst.class.ImplementsGUID(iid)
}

// QueryInterface returns the instance when it supports iid, or (nil, false).
// A miss is an ordinary outcome, not an error. The lookup goes through the
// queryinterface slot when the class has one, so aggregated objects answer
// on behalf of their controller. The reference count is not touched.
func (inst *Instance) QueryInterface(iid GUID) (*Instance, bool) {
	if iid == IObjectInstanceGUID {
		return inst, true
	}
	if inst.state == stateDestroyed {
		return nil, false
	}
	if m := inst.class.LookupMethod(selQueryInterface); m != nil {
		v, err := m.Invoke(inst, []any{iid})
		if err != nil {
			return nil, false
		}
		found, _ := v.(*Instance)
		return found, found != nil
	}
	return inst.ownInterface(iid)
}

func (inst *Instance) ownInterface(iid GUID) (*Instance, bool) {
	if inst.Supports(iid) {
		return inst, true
	}
	return nil, false
}

// QueryInterfaceByName resolves nameOrGUID (an interface name or a GUID in
// text form) and queries it.
func (inst *Instance) QueryInterfaceByName(nameOrGUID string) (*Instance, bool) {
	if g, err := ParseGUID(nameOrGUID); err == nil {
		return inst.QueryInterface(g)
	}
	intf, ok := inst.class.rt.ResolveInterface(nameOrGUID)
	if !ok {
		return nil, false
	}
	return inst.QueryInterface(intf.GUID)
}

// GetInterface is QueryInterface for a holder that keeps the result: a COM
// interface found on a reference-counted instance gets one reference added.
func (inst *Instance) GetInterface(iid GUID) (*Instance, bool) {
	found, ok := inst.QueryInterface(iid)
	if !ok {
		return nil, false
	}
	intf, _ := found.class.findInterface(iid)
	if intf != nil && intf.Kind == KindCOM && found.class.RefCounted() {
		if _, err := found.AddRef(); err != nil {
			return nil, false
		}
	}
	return found, true
}

// GetInterfaceWeak is QueryInterface without adding a reference.
func (inst *Instance) GetInterfaceWeak(iid GUID) (*Instance, bool) {
	return inst.QueryInterface(iid)
}

// InvokeInterface calls an interface method on the instance, applying the
// implementing class's method-name mapping.
func (inst *Instance) InvokeInterface(iid GUID, method string, args ...any) (any, error) {
	intf, impl := inst.class.findInterface(iid)
	if intf == nil {
		return nil, fmt.Errorf("%w: %s does not implement %s", ErrUnknownInterface, inst.class.Name, iid)
	}
	name := method
	if impl.Map != nil {
		if mapped, ok := impl.Map[method]; ok {
			name = mapped
		}
	}
	return inst.Call(name, args...)
}
