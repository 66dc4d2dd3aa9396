// Package rtl implements an embeddable object runtime.
//
// This package contains:
//   - GUID identities and their canonical text form
//   - Class descriptors with single-rooted inheritance (root TObject)
//   - Explicit per-class vtables built by copy/override at registration
//   - GUID-identified interfaces (root IUnknown) and interface queries
//   - Reference counting for TInterfacedObject descendants
//   - RTTI over published methods and fields, and message dispatch tables
//
// A Runtime owns every registry. Registration is meant to run from unit
// initializers on one goroutine; see package loader.
package rtl
