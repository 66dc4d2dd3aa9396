package rtl

import (
	"fmt"
	"strings"
	"sync"
)

// InterfaceKind tells whether an interface participates in reference
// counting (COM) or not (CORBA).
type InterfaceKind uint8

const (
	KindCOM InterfaceKind = iota
	KindCORBA
)

func (k InterfaceKind) String() string {
	if k == KindCORBA {
		return "corba"
	}
	return "com"
}

// Interface is the descriptor of one GUID-identified interface contract.
// Interfaces form single-inheritance chains rooted at IUnknown.
type Interface struct {
	Name     string
	GUID     GUID
	Methods  []string
	Ancestor *Interface
	Kind     InterfaceKind

	// Info holds published method descriptors for the interface's methods.
	Info *ClassInfo
}

func (i *Interface) String() string {
	return i.Name + " " + i.GUID.String()
}

// InheritsFrom reports whether i is other or extends it, comparing by GUID.
func (i *Interface) InheritsFrom(other *Interface) bool {
	if other == nil {
		return false
	}
	for current := i; current != nil; current = current.Ancestor {
		if current.GUID == other.GUID {
			return true
		}
	}
	return false
}

// AllMethods returns the method names of the whole chain, root first.
func (i *Interface) AllMethods() []string {
	if i.Ancestor == nil {
		return append([]string(nil), i.Methods...)
	}
	return append(i.Ancestor.AllMethods(), i.Methods...)
}

// ---------------------------------------------------------------------------
// InterfaceTable: interface registry
// ---------------------------------------------------------------------------

// InterfaceTable indexes interfaces by name and by GUID.
//
// Names are unique (case-insensitive). GUIDs need not be: two descriptors
// with equal GUIDs are the same identity, and LookupGUID resolves to the
// first one registered.
type InterfaceTable struct {
	mu     sync.RWMutex
	byName map[string]*Interface
	byGUID map[GUID]*Interface
	order  []*Interface
}

// NewInterfaceTable creates a new empty interface table.
func NewInterfaceTable() *InterfaceTable {
	return &InterfaceTable{
		byName: make(map[string]*Interface),
		byGUID: make(map[GUID]*Interface),
	}
}

// Register adds an interface to the table.
func (it *InterfaceTable) Register(intf *Interface) error {
	it.mu.Lock()
	defer it.mu.Unlock()

	key := strings.ToLower(intf.Name)
	if _, ok := it.byName[key]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateInterface, intf.Name)
	}
	it.byName[key] = intf
	if _, ok := it.byGUID[intf.GUID]; !ok {
		it.byGUID[intf.GUID] = intf
	}
	it.order = append(it.order, intf)
	return nil
}

// Lookup finds an interface by name.
func (it *InterfaceTable) Lookup(name string) *Interface {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.byName[strings.ToLower(name)]
}

// LookupGUID finds the first interface registered with the GUID.
func (it *InterfaceTable) LookupGUID(guid GUID) *Interface {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return it.byGUID[guid]
}

// All returns all interfaces in registration order.
func (it *InterfaceTable) All() []*Interface {
	it.mu.RLock()
	defer it.mu.RUnlock()

	result := make([]*Interface, len(it.order))
	copy(result, it.order)
	return result
}

// Len returns the number of registered interfaces.
func (it *InterfaceTable) Len() int {
	it.mu.RLock()
	defer it.mu.RUnlock()
	return len(it.order)
}
