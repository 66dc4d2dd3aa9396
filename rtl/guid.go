package rtl

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GUID is a 128-bit interface identity: a 32-bit group, two 16-bit groups
// and eight explicit bytes. Two GUIDs are equal iff all 16 bytes are equal,
// so the struct is directly comparable and usable as a map key.
type GUID struct {
	D1 uint32
	D2 uint16
	D3 uint16
	D4 [8]byte
}

// NilGUID is the all-zero GUID.
var NilGUID GUID

// ParseGUID parses the canonical text form {AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE}.
// The bare 36-character form without braces is accepted as well.
func ParseGUID(s string) (GUID, error) {
	if len(s) != 36 && len(s) != 38 {
		return NilGUID, fmt.Errorf("%w: %q", ErrInvalidGUID, s)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return NilGUID, fmt.Errorf("%w: %q: %v", ErrInvalidGUID, s, err)
	}
	return GUIDFromBytes(u), nil
}

// MustParseGUID is like ParseGUID but panics on malformed input.
// Intended for static registration code.
func MustParseGUID(s string) GUID {
	g, err := ParseGUID(s)
	if err != nil {
		panic(err)
	}
	return g
}

// NewGUID returns a random (version 4) GUID.
func NewGUID() GUID {
	return GUIDFromBytes(uuid.New())
}

// GUIDFromBytes builds a GUID from its 16-byte wire layout.
func GUIDFromBytes(b [16]byte) GUID {
	var g GUID
	g.D1 = binary.BigEndian.Uint32(b[0:4])
	g.D2 = binary.BigEndian.Uint16(b[4:6])
	g.D3 = binary.BigEndian.Uint16(b[6:8])
	copy(g.D4[:], b[8:16])
	return g
}

// Bytes returns the 16-byte wire layout: D1, D2, D3 big-endian, then D4.
func (g GUID) Bytes() [16]byte {
	var b [16]byte
	binary.BigEndian.PutUint32(b[0:4], g.D1)
	binary.BigEndian.PutUint16(b[4:6], g.D2)
	binary.BigEndian.PutUint16(b[6:8], g.D3)
	copy(b[8:16], g.D4[:])
	return b
}

// IsZero reports whether g is the all-zero GUID.
func (g GUID) IsZero() bool {
	return g == NilGUID
}

// String renders the canonical upper-case braced form.
func (g GUID) String() string {
	return "{" + strings.ToUpper(uuid.UUID(g.Bytes()).String()) + "}"
}

// MarshalText implements encoding.TextMarshaler.
func (g GUID) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GUID) UnmarshalText(text []byte) error {
	parsed, err := ParseGUID(string(text))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}
