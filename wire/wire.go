// Package wire exports runtime RTTI as canonical CBOR snapshots for
// external inspection tooling.
package wire

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/rtl/loader"
	"github.com/chazu/rtl/rtl"
)

// Version is the snapshot format version.
const Version = 1

// Snapshot is the RTTI of a runtime at one point in time. Classes and
// interfaces appear in registration order, so every ancestor precedes its
// descendants.
type Snapshot struct {
	Version    uint8             `cbor:"1,keyasint"`
	Classes    []ClassRecord     `cbor:"2,keyasint,omitempty"`
	Interfaces []InterfaceRecord `cbor:"3,keyasint,omitempty"`
	Units      []UnitRecord      `cbor:"4,keyasint,omitempty"`
}

// ClassRecord is the exported RTTI of one class.
type ClassRecord struct {
	Name        string            `cbor:"1,keyasint"`
	Ancestor    string            `cbor:"2,keyasint,omitempty"`
	Methods     []MethodRecord    `cbor:"3,keyasint,omitempty"`
	Fields      []FieldRecord     `cbor:"4,keyasint,omitempty"`
	Interfaces  []string          `cbor:"5,keyasint,omitempty"` // GUID text
	Messages    map[int]string    `cbor:"6,keyasint,omitempty"`
	StrMessages map[string]string `cbor:"7,keyasint,omitempty"`
	Slots       []string          `cbor:"8,keyasint,omitempty"` // vtable slots the class defines
}

// MethodRecord is one published method descriptor.
type MethodRecord struct {
	Name    string        `cbor:"1,keyasint"`
	Ordinal int           `cbor:"2,keyasint"`
	Kind    string        `cbor:"3,keyasint"`
	Params  []ParamRecord `cbor:"4,keyasint,omitempty"`
	Result  string        `cbor:"5,keyasint,omitempty"` // type tag text, empty for procedures
}

// ParamRecord is one formal parameter.
type ParamRecord struct {
	Name  string `cbor:"1,keyasint"`
	Type  string `cbor:"2,keyasint"`
	Flags uint8  `cbor:"3,keyasint,omitempty"`
}

// FieldRecord is one published field descriptor.
type FieldRecord struct {
	Name    string `cbor:"1,keyasint"`
	Ordinal int    `cbor:"2,keyasint"`
	Type    string `cbor:"3,keyasint"`
}

// InterfaceRecord is the exported descriptor of one interface.
type InterfaceRecord struct {
	Name     string   `cbor:"1,keyasint"`
	GUID     string   `cbor:"2,keyasint"`
	Ancestor string   `cbor:"3,keyasint,omitempty"`
	Kind     string   `cbor:"4,keyasint"`
	Methods  []string `cbor:"5,keyasint,omitempty"`
}

// UnitRecord is one entry of the loader journal.
type UnitRecord struct {
	Name  string `cbor:"1,keyasint"`
	Form  string `cbor:"2,keyasint"`
	Path  string `cbor:"3,keyasint,omitempty"`
	Order int    `cbor:"4,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// ---------------------------------------------------------------------------
// Capture
// ---------------------------------------------------------------------------

// Capture builds a snapshot of rt. ld may be nil, in which case no units
// are recorded.
func Capture(rt *rtl.Runtime, ld *loader.Loader) *Snapshot {
	s := &Snapshot{Version: Version}
	for _, c := range rt.Classes.All() {
		s.Classes = append(s.Classes, ClassOf(c))
	}
	for _, intf := range rt.Interfaces.All() {
		s.Interfaces = append(s.Interfaces, InterfaceOf(intf))
	}
	if ld != nil {
		s.Units = UnitsOf(ld)
	}
	return s
}

// UnitsOf exports the loader journal.
func UnitsOf(ld *loader.Loader) []UnitRecord {
	var units []UnitRecord
	for _, r := range ld.Journal() {
		units = append(units, UnitRecord{
			Name:  r.Name,
			Form:  r.Form.String(),
			Path:  r.Path,
			Order: r.Order,
		})
	}
	return units
}

// ClassOf exports one class.
func ClassOf(c *rtl.Class) ClassRecord {
	rec := ClassRecord{Name: c.Name}
	if c.Ancestor != nil {
		rec.Ancestor = c.Ancestor.Name
	}
	for _, md := range c.Info.Methods() {
		rec.Methods = append(rec.Methods, MethodOf(md))
	}
	for _, fd := range c.Info.Fields() {
		rec.Fields = append(rec.Fields, FieldRecord{Name: fd.Name, Ordinal: fd.Ordinal, Type: fd.Type.Text()})
	}
	for _, intf := range c.Interfaces() {
		rec.Interfaces = append(rec.Interfaces, intf.GUID.String())
	}
	if table := c.MessageTable(); len(table) > 0 {
		rec.Messages = table
	}
	if table := c.StringMessageTable(); len(table) > 0 {
		rec.StrMessages = table
	}
	for _, m := range c.VTable.LocalMethods() {
		rec.Slots = append(rec.Slots, m.Name)
	}
	sort.Strings(rec.Slots)
	return rec
}

// MethodOf exports one method descriptor.
func MethodOf(md *rtl.MethodDescriptor) MethodRecord {
	rec := MethodRecord{Name: md.Name, Ordinal: md.Ordinal, Kind: md.Kind.String()}
	for _, p := range md.Params {
		rec.Params = append(rec.Params, ParamRecord{Name: p.Name, Type: p.Type.Text(), Flags: uint8(p.Flags)})
	}
	if md.Result != nil {
		rec.Result = md.Result.Text()
	}
	return rec
}

// InterfaceOf exports one interface.
func InterfaceOf(intf *rtl.Interface) InterfaceRecord {
	rec := InterfaceRecord{
		Name:    intf.Name,
		GUID:    intf.GUID.String(),
		Kind:    intf.Kind.String(),
		Methods: append([]string(nil), intf.Methods...),
	}
	if intf.Ancestor != nil {
		rec.Ancestor = intf.Ancestor.Name
	}
	return rec
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Marshal serializes a snapshot to canonical CBOR: equal snapshots encode
// to equal bytes.
func Marshal(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// Unmarshal deserializes and validates a snapshot.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("wire: unmarshal snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Digest returns the SHA-256 of the canonical encoding.
func (s *Snapshot) Digest() ([32]byte, error) {
	data, err := Marshal(s)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

// Validate checks the structural invariants of a snapshot: a known
// version, named entries, parsable GUIDs and ancestors that precede their
// descendants.
func (s *Snapshot) Validate() error {
	if s.Version != Version {
		return fmt.Errorf("wire: unsupported snapshot version %d", s.Version)
	}

	interfaces := make(map[string]bool, len(s.Interfaces))
	for _, intf := range s.Interfaces {
		if intf.Name == "" {
			return fmt.Errorf("wire: interface without a name")
		}
		if _, err := rtl.ParseGUID(intf.GUID); err != nil {
			return fmt.Errorf("wire: interface %s: %w", intf.Name, err)
		}
		if intf.Ancestor != "" && !interfaces[intf.Ancestor] {
			return fmt.Errorf("wire: interface %s precedes its ancestor %s", intf.Name, intf.Ancestor)
		}
		interfaces[intf.Name] = true
	}

	classes := make(map[string]bool, len(s.Classes))
	for _, c := range s.Classes {
		if c.Name == "" {
			return fmt.Errorf("wire: class without a name")
		}
		if c.Ancestor != "" && !classes[c.Ancestor] {
			return fmt.Errorf("wire: class %s precedes its ancestor %s", c.Name, c.Ancestor)
		}
		for _, g := range c.Interfaces {
			if _, err := rtl.ParseGUID(g); err != nil {
				return fmt.Errorf("wire: class %s: %w", c.Name, err)
			}
		}
		classes[c.Name] = true
	}
	return nil
}

// Class returns the record of the named class without regard to case,
// or nil.
func (s *Snapshot) Class(name string) *ClassRecord {
	for i := range s.Classes {
		if strings.EqualFold(s.Classes[i].Name, name) {
			return &s.Classes[i]
		}
	}
	return nil
}
