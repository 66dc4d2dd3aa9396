package rtl

import "errors"

// Registration conflicts. These indicate a build/configuration defect and
// abort the unit initializer that triggered them.
var (
	ErrDuplicateClass     = errors.New("rtl: duplicate class")
	ErrDuplicateInterface = errors.New("rtl: duplicate interface")
	ErrDuplicateMember    = errors.New("rtl: duplicate member")
	ErrUnknownClass       = errors.New("rtl: unknown class")
	ErrUnknownInterface   = errors.New("rtl: unknown interface")
)

// Lifetime errors.
var (
	// ErrHeapConsistency is raised when a reference-counted instance is
	// destroyed while holders still own references to it.
	ErrHeapConsistency = errors.New("rtl: heap consistency error")
	ErrNotRefCounted   = errors.New("rtl: instance is not reference counted")
	ErrDestroyed       = errors.New("rtl: instance already destroyed")
)

var (
	ErrNoMethod    = errors.New("rtl: no such method")
	ErrNoField     = errors.New("rtl: no such field")
	ErrInvalidGUID = errors.New("rtl: invalid GUID")
)
