// Package manifest handles rtl.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the project configuration file.
const FileName = "rtl.toml"

// Manifest represents an rtl.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Source       Source                `toml:"source"`
	Dependencies map[string]Dependency `toml:"dependencies"`
	Log          LogConfig             `toml:"log"`
	Catalog      CatalogConfig         `toml:"catalog"`
	Server       ServerConfig          `toml:"server"`

	// Dir is the directory containing the rtl.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures where units are found and which ones to start.
type Source struct {
	Dirs       []string `toml:"dirs"`
	CompactExt string   `toml:"compact-ext"`
	PlainExt   string   `toml:"plain-ext"`
	Entry      []string `toml:"entry"`
}

// Dependency is a unit library in another directory. Its own rtl.toml, if
// any, contributes its source dirs and further dependencies.
type Dependency struct {
	Path string `toml:"path"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// CatalogConfig configures the RTTI catalog database.
type CatalogConfig struct {
	Path string `toml:"path"`
}

// ServerConfig configures the inspection server.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// Defaults for keys missing from rtl.toml.
const (
	DefaultSourceDir   = "units"
	DefaultCompactExt  = ".unit.gz"
	DefaultPlainExt    = ".unit"
	DefaultCatalogPath = ".rtl/catalog.db"
	DefaultServerAddr  = "localhost:4567"
)

// Load parses an rtl.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes rtl.toml content and applies defaults. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.applyDefaults()
	return &m, nil
}

// Default returns the manifest used when no rtl.toml exists: dir is the
// project directory and every setting has its default.
func Default(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	m := &Manifest{Dir: abs}
	m.applyDefaults()
	return m, nil
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{DefaultSourceDir}
	}
	if m.Source.CompactExt == "" {
		m.Source.CompactExt = DefaultCompactExt
	}
	if m.Source.PlainExt == "" {
		m.Source.PlainExt = DefaultPlainExt
	}
	if m.Catalog.Path == "" {
		m.Catalog.Path = DefaultCatalogPath
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultServerAddr
	}
}

// FindAndLoad walks up from startDir to find an rtl.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		if filepath.IsAbs(d) {
			paths = append(paths, d)
			continue
		}
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// CatalogPath returns the absolute path of the catalog database.
func (m *Manifest) CatalogPath() string {
	if filepath.IsAbs(m.Catalog.Path) {
		return m.Catalog.Path
	}
	return filepath.Join(m.Dir, m.Catalog.Path)
}
