// Package loader resolves named units and runs their initializers in
// dependency order, each at most once.
package loader

import (
	"errors"
	"fmt"
)

// Unit is the registration triple of one unit: its name, its ordered
// dependency list and the body that registers the unit's classes and
// interfaces.
type Unit struct {
	Name string
	Uses []string
	Init func() error
}

// Form tells which representation a unit source was acquired from.
type Form uint8

const (
	FormNative Form = iota
	FormCompact
	FormPlain
)

func (f Form) String() string {
	switch f {
	case FormCompact:
		return "compact"
	case FormPlain:
		return "plain"
	default:
		return "native"
	}
}

// Source is the raw text of a unit as delivered by a Locator. Data is
// always the decoded text; compact sources are decompressed by the locator.
type Source struct {
	Name string
	Path string
	Data []byte
	Form Form
}

// Compiler turns a unit source into a unit.
type Compiler interface {
	Compile(src *Source) (*Unit, error)
}

// CompilerFunc adapts a function to the Compiler interface.
type CompilerFunc func(src *Source) (*Unit, error)

// Compile calls f(src).
func (f CompilerFunc) Compile(src *Source) (*Unit, error) {
	return f(src)
}

var (
	ErrNotFound = errors.New("unit not found")
	ErrCycle    = errors.New("unit dependency cycle")
)

// LoadError identifies the unit whose load failed.
type LoadError struct {
	Unit string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading unit %s: %v", e.Unit, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
