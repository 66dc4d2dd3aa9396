package rtl

import "fmt"

// ---------------------------------------------------------------------------
// Bootstrap: universal roots
// ---------------------------------------------------------------------------

func (rt *Runtime) bootstrap() {
	rt.ObjectClass = rt.MustRegisterClass("TObject", nil, func(c *Class) error {
		noop := func(self *Instance, args []any) (any, error) { return nil, nil }
		c.DefineMethod(selCreate, noop)
		c.DefineMethod(selDestroy, noop)
		c.DefineMethod(selAfterConstruction, noop)
		c.DefineMethod(selBeforeDestruction, noop)
		c.DefineMethod(selDefaultHandler, noop)
		c.DefineMethod(selDefaultHandlerStr, noop)
		c.DefineMethod(selToString, func(self *Instance, args []any) (any, error) {
			return self.class.Name, nil
		})
		return nil
	})

	rt.IUnknown = rt.MustRegisterInterface("IUnknown", IUnknownGUID,
		[]string{selQueryInterface, selAddRef, selRelease}, nil,
		func(i *Interface) error {
			i.Kind = KindCOM
			result := TagInteger
			for _, md := range []*MethodDescriptor{
				{Name: selQueryInterface, Kind: MethodFunction, Result: &result, Params: []Param{
					{Name: "iid", Type: TypeTag{Kind: KindRecord, Name: "TGuid"}, Flags: ParamConst},
					{Name: "obj", Type: TagInterface, Flags: ParamOut},
				}},
				{Name: selAddRef, Kind: MethodFunction, Result: &result},
				{Name: selRelease, Kind: MethodFunction, Result: &result},
			} {
				if err := i.Info.AddMethod(md); err != nil {
					return err
				}
			}
			return nil
		})
}

// ---------------------------------------------------------------------------
// System unit
// ---------------------------------------------------------------------------

// RegisterSystem registers the standard interfaces and the reference
// counting base classes. It is the body of the "system" unit and runs once
// per runtime.
func RegisterSystem(rt *Runtime) error {
	var err error

	rt.CustomAttributeClass, err = rt.RegisterClass("TCustomAttribute", nil, nil)
	if err != nil {
		return err
	}

	rt.IInvokable, err = rt.RegisterInterface("IInvokable", IInvokableGUID, nil, rt.IUnknown, nil)
	if err != nil {
		return err
	}

	rt.IEnumerator, err = rt.RegisterInterface("IEnumerator", IEnumeratorGUID,
		[]string{"getcurrent", "movenext", "reset"}, rt.IUnknown,
		func(i *Interface) error {
			boolean := TagBool
			object := TagObject
			return addDescriptors(i.Info,
				&MethodDescriptor{Name: "getcurrent", Kind: MethodFunction, Result: &object},
				&MethodDescriptor{Name: "movenext", Kind: MethodFunction, Result: &boolean},
				&MethodDescriptor{Name: "reset", Kind: MethodProcedure},
			)
		})
	if err != nil {
		return err
	}

	rt.IEnumerable, err = rt.RegisterInterface("IEnumerable", IEnumerableGUID,
		[]string{"getenumerator"}, rt.IUnknown,
		func(i *Interface) error {
			enumerator := TypeTag{Kind: KindInterface, Name: "IEnumerator"}
			return addDescriptors(i.Info,
				&MethodDescriptor{Name: "getenumerator", Kind: MethodFunction, Result: &enumerator},
			)
		})
	if err != nil {
		return err
	}

	rt.InterfacedObjectClass, err = rt.RegisterClass("TInterfacedObject", nil, func(c *Class) error {
		c.Init = func(self *Instance) { self.refCount = 0 }
		c.DefineMethod(selQueryInterface, func(self *Instance, args []any) (any, error) {
			return queryOwn(self, args)
		})
		c.DefineMethod(selAddRef, func(self *Instance, args []any) (any, error) {
			return self.incRef(), nil
		})
		c.DefineMethod(selRelease, func(self *Instance, args []any) (any, error) {
			return self.decRef()
		})
		c.DefineMethod(selBeforeDestruction, func(self *Instance, args []any) (any, error) {
			if self.refCount != 0 {
				return nil, fmt.Errorf("%w: %s destroyed with %d outstanding references",
					ErrHeapConsistency, self.class.Name, self.refCount)
			}
			return nil, nil
		})
		c.Implements(rt.IUnknown, nil)
		return nil
	})
	if err != nil {
		return err
	}

	rt.AggregatedObjectClass, err = rt.RegisterClass("TAggregatedObject", nil, func(c *Class) error {
		c.Init = func(self *Instance) { self.SetField("fcontroller", nil) }
		c.DefineMethod(selCreate, func(self *Instance, args []any) (any, error) {
			if len(args) == 0 {
				return nil, fmt.Errorf("%s.create: controller required", self.class.Name)
			}
			controller, ok := args[0].(*Instance)
			if !ok || controller == nil {
				return nil, fmt.Errorf("%s.create: controller must be an instance, got %T", self.class.Name, args[0])
			}
			self.SetField("fcontroller", controller)
			return nil, nil
		})
		c.DefineMethod("getcontroller", func(self *Instance, args []any) (any, error) {
			return Controller(self), nil
		})
		c.DefineMethod(selQueryInterface, func(self *Instance, args []any) (any, error) {
			iid, _ := args[0].(GUID)
			found, _ := Controller(self).QueryInterface(iid)
			return found, nil
		})
		c.DefineMethod(selAddRef, func(self *Instance, args []any) (any, error) {
			return Controller(self).AddRef()
		})
		c.DefineMethod(selRelease, func(self *Instance, args []any) (any, error) {
			return Controller(self).Release()
		})
		return nil
	})
	if err != nil {
		return err
	}

	rt.ContainedObjectClass, err = rt.RegisterClass("TContainedObject", rt.AggregatedObjectClass, func(c *Class) error {
		c.DefineMethod(selQueryInterface, func(self *Instance, args []any) (any, error) {
			return queryOwn(self, args)
		})
		c.Implements(rt.IUnknown, nil)
		return nil
	})
	return err
}

// Controller returns the controlling instance of an aggregated object, or
// nil for any other instance.
func Controller(inst *Instance) *Instance {
	v, _ := inst.Field("fcontroller")
	controller, _ := v.(*Instance)
	return controller
}

func queryOwn(self *Instance, args []any) (any, error) {
	if len(args) == 0 {
		return nil, nil
	}
	iid, _ := args[0].(GUID)
	if found, ok := self.ownInterface(iid); ok {
		return found, nil
	}
	return nil, nil
}

func addDescriptors(ci *ClassInfo, mds ...*MethodDescriptor) error {
	for _, md := range mds {
		if err := ci.AddMethod(md); err != nil {
			return err
		}
	}
	return nil
}
