// Package boot assembles a host process from an rtl.toml manifest: a
// runtime, a unit loader over the project's source directories and the
// native system unit.
package boot

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/chazu/rtl/catalog"
	"github.com/chazu/rtl/decl"
	"github.com/chazu/rtl/loader"
	"github.com/chazu/rtl/manifest"
	"github.com/chazu/rtl/rtl"
	"github.com/chazu/rtl/server"
	"github.com/chazu/rtl/wire"
)

// Host is a runtime plus the loader that populates it.
type Host struct {
	Manifest *manifest.Manifest
	Runtime  *rtl.Runtime
	Loader   *loader.Loader

	log commonlog.Logger
}

// New builds a host for m. Units are located in the manifest's source
// directories followed by those of its dependencies, compiled by decl with
// natives bound to method bodies. The system unit is predefined.
func New(m *manifest.Manifest, natives map[string]rtl.MethodFunc) (*Host, error) {
	dirs, err := m.UnitDirs()
	if err != nil {
		return nil, err
	}

	rt := rtl.New()
	locator := &loader.DirLocator{
		Dirs:       dirs,
		CompactExt: m.Source.CompactExt,
		PlainExt:   m.Source.PlainExt,
	}
	ld := loader.New(locator, decl.NewCompiler(rt, natives))
	if err := ld.Define(&loader.Unit{
		Name: decl.SystemUnit,
		Init: func() error { return rtl.RegisterSystem(rt) },
	}); err != nil {
		return nil, err
	}

	h := &Host{
		Manifest: m,
		Runtime:  rt,
		Loader:   ld,
		log:      commonlog.GetLogger("rtl"),
	}
	h.log.Debugf("unit search path: %v", dirs)
	return h, nil
}

// Run requires units in order, or the manifest's entry units when none are
// given.
func (h *Host) Run(units ...string) error {
	if len(units) == 0 {
		units = h.Manifest.Source.Entry
	}
	if len(units) == 0 {
		return fmt.Errorf("no entry units: name some or set source.entry in %s", manifest.FileName)
	}
	if err := h.Loader.RequireAll(units...); err != nil {
		return err
	}
	h.log.Infof("loaded %d units, %d classes, %d interfaces",
		len(h.Loader.Loaded()), h.Runtime.Classes.Len(), h.Runtime.Interfaces.Len())
	return nil
}

// Snapshot captures the current RTTI.
func (h *Host) Snapshot() *wire.Snapshot {
	return wire.Capture(h.Runtime, h.Loader)
}

// Export writes the CBOR snapshot to path.
func (h *Host) Export(path string) error {
	data, err := wire.Marshal(h.Snapshot())
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	h.log.Infof("exported snapshot to %s (%d bytes)", path, len(data))
	return nil
}

// SaveCatalog stores the snapshot in the catalog database at path, or at
// the manifest's catalog path when path is empty.
func (h *Host) SaveCatalog(path string) error {
	if path == "" {
		path = h.Manifest.CatalogPath()
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return err
	}
	defer cat.Close()
	if err := cat.Save(h.Snapshot()); err != nil {
		return err
	}
	h.log.Infof("saved catalog %s", path)
	return nil
}

// Server returns an inspection server over the host's runtime.
func (h *Host) Server(opts ...server.Option) *server.Server {
	return server.New(h.Runtime, h.Loader, opts...)
}
