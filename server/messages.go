package server

import "github.com/chazu/rtl/wire"

// Inspect service messages.

type SnapshotRequest struct{}

type SnapshotResponse struct {
	Snapshot *wire.Snapshot `cbor:"1,keyasint"`
	Digest   []byte         `cbor:"2,keyasint"`
}

type ClassRequest struct {
	Name string `cbor:"1,keyasint"`
}

type ClassResponse struct {
	Class wire.ClassRecord `cbor:"1,keyasint"`
	// Chain lists the class and its ancestors, most derived first.
	Chain []string `cbor:"2,keyasint"`
	// Methods lists every vtable slot name, inherited ones included.
	Methods []string `cbor:"3,keyasint,omitempty"`
}

// InterfaceRequest names an interface by name or GUID text.
type InterfaceRequest struct {
	Key string `cbor:"1,keyasint"`
}

type InterfaceResponse struct {
	Interface    wire.InterfaceRecord `cbor:"1,keyasint"`
	AllMethods   []string             `cbor:"2,keyasint,omitempty"`
	Implementors []string             `cbor:"3,keyasint,omitempty"`
}

type UnitsRequest struct{}

type UnitsResponse struct {
	Units []wire.UnitRecord `cbor:"1,keyasint,omitempty"`
}

// Objects service messages.

type CreateRequest struct {
	Class string `cbor:"1,keyasint"`
	Args  []any  `cbor:"2,keyasint,omitempty"`
}

type CreateResponse struct {
	Handle   string `cbor:"1,keyasint"`
	Class    string `cbor:"2,keyasint"`
	RefCount int    `cbor:"3,keyasint"`
}

type CallRequest struct {
	Handle string `cbor:"1,keyasint"`
	Method string `cbor:"2,keyasint"`
	Args   []any  `cbor:"3,keyasint,omitempty"`
}

// CallResponse carries a plain result, or a handle when the method
// returned an instance.
type CallResponse struct {
	Result any    `cbor:"1,keyasint,omitempty"`
	Handle string `cbor:"2,keyasint,omitempty"`
}

// DispatchRequest sends a message through the message tables. A non-empty
// StrID selects string dispatch; otherwise ID is used.
type DispatchRequest struct {
	Handle  string `cbor:"1,keyasint"`
	ID      int    `cbor:"2,keyasint,omitempty"`
	StrID   string `cbor:"3,keyasint,omitempty"`
	Payload any    `cbor:"4,keyasint,omitempty"`
}

type DispatchResponse struct {
	Result any `cbor:"1,keyasint,omitempty"`
}

// QueryRequest asks whether an instance supports an interface, given by
// name or GUID text.
type QueryRequest struct {
	Handle    string `cbor:"1,keyasint"`
	Interface string `cbor:"2,keyasint"`
}

type QueryResponse struct {
	Supported bool   `cbor:"1,keyasint"`
	Handle    string `cbor:"2,keyasint,omitempty"`
	RefCount  int    `cbor:"3,keyasint,omitempty"`
}

type ReleaseRequest struct {
	Handle string `cbor:"1,keyasint"`
}

type ReleaseResponse struct {
	RefCount  int  `cbor:"1,keyasint"`
	Destroyed bool `cbor:"2,keyasint"`
}
