package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Manifest  *Manifest // the dependency's own manifest (may be nil)
}

// SourceDirPaths returns the unit directories the dependency contributes:
// its manifest's source dirs, or the dependency directory itself when it
// has no rtl.toml.
func (rd ResolvedDep) SourceDirPaths() []string {
	if rd.Manifest != nil {
		return rd.Manifest.SourceDirPaths()
	}
	return []string{rd.LocalPath}
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
	stack    []string
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// Resolve resolves all dependencies and returns them in load order
// (topologically sorted: dependencies before dependents). Siblings are
// visited in name order so the result is deterministic.
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	resolved := make(map[string]*ResolvedDep)
	return r.resolveAll(r.manifest, resolved)
}

// resolveAll resolves a set of dependencies recursively.
// Returns dependencies in topological order (deps before dependents).
func (r *Resolver) resolveAll(m *Manifest, resolved map[string]*ResolvedDep) ([]ResolvedDep, error) {
	var order []ResolvedDep

	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, pending := range r.stack {
			if pending == name {
				return nil, fmt.Errorf("dependency cycle: %s -> %s", strings.Join(r.stack, " -> "), name)
			}
		}
		if _, ok := resolved[name]; ok {
			continue // already resolved
		}

		rd, err := resolveOne(m, name, m.Dependencies[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}

		// Check for transitive dependencies
		if rd.Manifest != nil && len(rd.Manifest.Dependencies) > 0 {
			r.stack = append(r.stack, name)
			transitive, err := r.resolveAll(rd.Manifest, resolved)
			r.stack = r.stack[:len(r.stack)-1]
			if err != nil {
				return nil, err
			}
			order = append(order, transitive...)
		}

		resolved[name] = rd
		order = append(order, *rd)
	}

	return order, nil
}

// resolveOne resolves a single dependency relative to the manifest that
// declares it.
func resolveOne(m *Manifest, name string, dep Dependency) (*ResolvedDep, error) {
	if dep.Path == "" {
		return nil, fmt.Errorf("dependency %q has no path specified", name)
	}

	localPath := dep.Path
	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(m.Dir, localPath)
	}

	localPath, err := filepath.Abs(localPath)
	if err != nil {
		return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
	}

	// Verify it exists
	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
	}

	// A library without rtl.toml is just a directory of units.
	var depManifest *Manifest
	if _, err := os.Stat(filepath.Join(localPath, FileName)); err == nil {
		depManifest, err = Load(localPath)
		if err != nil {
			return nil, err
		}
	}

	return &ResolvedDep{
		Name:      name,
		LocalPath: localPath,
		Manifest:  depManifest,
	}, nil
}

// UnitDirs returns the full unit search path: the project's own source
// dirs first, then each dependency's in load order.
func (m *Manifest) UnitDirs() ([]string, error) {
	deps, err := NewResolver(m).Resolve()
	if err != nil {
		return nil, err
	}
	dirs := m.SourceDirPaths()
	for _, rd := range deps {
		dirs = append(dirs, rd.SourceDirPaths()...)
	}
	return dirs, nil
}
