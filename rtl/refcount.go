package rtl

import "fmt"

// AddRef increments the reference count through the instance's _addref
// slot and returns the new count. Instances whose class has no such slot
// are not reference counted and get ErrNotRefCounted.
func (inst *Instance) AddRef() (int, error) {
	return inst.countSlot(selAddRef)
}

// Release decrements the reference count through the _release slot and
// returns the new count. Reaching zero destroys the instance.
func (inst *Instance) Release() (int, error) {
	return inst.countSlot(selRelease)
}

// RefCount returns the count held on this instance. Aggregated objects
// delegate counting to their controller and always report zero here.
func (inst *Instance) RefCount() int {
	return inst.refCount
}

func (inst *Instance) countSlot(name string) (int, error) {
	if inst.class.LookupMethod(name) == nil {
		return 0, fmt.Errorf("%w: %s", ErrNotRefCounted, inst.class.Name)
	}
	v, err := inst.Call(name)
	if err != nil {
		return 0, err
	}
	n, _ := v.(int)
	return n, nil
}

// incRef and decRef implement TInterfacedObject's counting.
func (inst *Instance) incRef() int {
	inst.refCount++
	return inst.refCount
}

func (inst *Instance) decRef() (int, error) {
	if inst.refCount <= 0 {
		return inst.refCount, fmt.Errorf("%w: release of %s without a reference", ErrHeapConsistency, inst.class.Name)
	}
	inst.refCount--
	if inst.refCount == 0 {
		if err := inst.Destroy(); err != nil {
			return 0, err
		}
	}
	return inst.refCount, nil
}
