// Package config implements the Config Loader (component C1): it walks a
// project's descriptor tree, expands glob patterns, merges conditional
// sections and {{ }} interpolations, and produces a single unified
// graph.Project ready for graph.Build.
package config

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/kyanite-build/kyanite/internal/graph"
	"github.com/kyanite-build/kyanite/internal/rawtoml"
)

// ConfigLoadError indicates a descriptor file could not be opened or read
// (missing, unreadable, permission denied) — distinct from ConfigParseError,
// whose file was read fine but whose contents were invalid.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string { return fmt.Sprintf("config: reading %s: %v", e.Path, e.Err) }
func (e *ConfigLoadError) Unwrap() error { return e.Err }

// ConfigParseError indicates a descriptor file was read successfully but its
// contents could not be turned into a valid Descriptor: malformed TOML, a
// failing {{ }} expression or conditional subtable, or a malformed target.
type ConfigParseError struct {
	Path string
	Err  error
}

func (e *ConfigParseError) Error() string { return fmt.Sprintf("config: parsing %s: %v", e.Path, e.Err) }
func (e *ConfigParseError) Unwrap() error { return e.Err }

// Load reads the descriptor tree rooted at (or reachable from) path,
// promotes to the true workspace root if path is itself an included module,
// and returns the unified, deduplicated graph.Project.
func Load(path string) (*graph.Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	root, err := findWorkspaceRoot(abs)
	if err != nil {
		return nil, err
	}

	l := &loader{
		seen:   make(map[string]bool),
		byName: make(map[string]bool),
		env:    NewEnv(filepath.Dir(root)),
	}
	if err := l.walk(root, true); err != nil {
		return nil, err
	}

	var cxxStd *int
	if l.cxxStandard != 0 {
		cxxStd = &l.cxxStandard
	}
	return graph.NewProject(l.projectName, cxxStd, l.targets), nil
}

type loader struct {
	projectName string
	cxxStandard int
	targets     []*graph.Target
	seen        map[string]bool // descriptor paths already walked, guards include cycles
	byName      map[string]bool // target names already claimed (first-wins)
	env         Env
}

// walk loads one descriptor file, appends its (not-yet-seen) targets, then
// recurses depth-first into its includes, each resolved relative to this
// file's own directory. isRootFile selects whether this descriptor's
// project-wide fields (name, version, cxx_standard) are honored — only the
// true root carries those; every included module's equivalent fields are
// ignored even if present.
func (l *loader) walk(file string, isRootFile bool) error {
	if l.seen[file] {
		return nil
	}
	l.seen[file] = true
	dir := filepath.Dir(file)

	d, err := parseDescriptor(file, NewEnv(dir))
	if err != nil {
		return err
	}

	includes := d.Module.Includes
	if isRootFile {
		l.projectName = d.Project.Name
		l.cxxStandard = d.Project.CxxStandard
		includes = d.Project.Includes
	}

	for _, t := range d.Target {
		target, err := materialize(dir, t)
		if err != nil {
			return &ConfigParseError{Path: file, Err: err}
		}
		if l.byName[target.Name] {
			continue // first-wins
		}
		l.byName[target.Name] = true
		l.targets = append(l.targets, target)
	}

	for _, inc := range includes {
		incPath := filepath.Clean(filepath.Join(dir, inc))
		if err := l.walk(incPath, false); err != nil {
			return err
		}
	}
	return nil
}

// materialize turns one parsed TargetSection into a graph.Target, resolving
// source/include/lib globs against dir and normalizing every path to
// absolute.
func materialize(dir string, t rawtoml.TargetSection) (*graph.Target, error) {
	sources, err := expandGlobs(dir, t.Sources, false)
	if err != nil {
		return nil, fmt.Errorf("target %q: sources: %w", t.Name, err)
	}
	includeDirs, err := expandGlobs(dir, t.IncludeDir, true)
	if err != nil {
		return nil, fmt.Errorf("target %q: include_dirs: %w", t.Name, err)
	}
	libDirs, err := expandGlobs(dir, t.LibDir, true)
	if err != nil {
		return nil, fmt.Errorf("target %q: lib_dirs: %w", t.Name, err)
	}

	outputDir := t.OutputDir
	if outputDir == "" {
		outputDir = filepath.Join(dir, "build")
	} else if !filepath.IsAbs(outputDir) {
		outputDir = filepath.Join(dir, outputDir)
	}

	return &graph.Target{
		Name:         t.Name,
		Kind:         parseKind(t.Kind),
		Sources:      sources,
		IncludeDirs:  includeDirs,
		LibDirs:      libDirs,
		Links:        t.Links,
		CompileFlags: t.Cflags,
		LinkFlags:    t.Ldflags,
		LegacyFlags:  t.Flags,
		CxxStandard:  t.CxxStd,
		Compiler:     parseCompiler(t.Compiler),
		OutputDir:    outputDir,
		Deps:         t.Deps,
		Defines:      t.Defines,
	}, nil
}

func parseKind(k string) graph.Kind {
	switch k {
	case "static_library":
		return graph.StaticLibrary
	case "shared_library":
		return graph.SharedLibrary
	default:
		return graph.Executable
	}
}

func parseCompiler(c string) graph.CompilerSelector {
	switch c {
	case "c++-compiler":
		return graph.CxxCompiler
	case "clang":
		return graph.Clang
	default:
		return graph.CCompiler
	}
}

// expandGlobs resolves each pattern relative to dir via doublestar, absolute
// patterns are taken as-is, and results are sorted for determinism. When
// stripToDir is true (used for include/lib directory lists), a matched file
// contributes its containing directory instead of itself.
func expandGlobs(dir string, patterns []string, stripToDir bool) ([]string, error) {
	var out []string
	seen := make(map[string]bool)

	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pat := range patterns {
		if filepath.IsAbs(pat) {
			add(filepath.Clean(pat))
			continue
		}
		matches, err := doublestar.Glob(dirFS(dir), pat)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			abs := filepath.Join(dir, m)
			if stripToDir && fileExists(abs) {
				abs = filepath.Dir(abs)
			}
			add(abs)
		}
	}
	sort.Strings(out)
	return out, nil
}

// findWorkspaceRoot walks upward from path looking for an ancestor
// descriptor whose includes (transitively) reach path, promoting that
// ancestor to the real root so the whole workspace resolves as one graph
// regardless of which module the caller pointed at.
func findWorkspaceRoot(path string) (string, error) {
	dir := filepath.Dir(path)
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return path, nil
		}
		candidate := filepath.Join(parent, filepath.Base(defaultDescriptorName))
		if fileExists(candidate) && candidate != path {
			if reaches(candidate, path, make(map[string]bool)) {
				return findWorkspaceRoot(candidate)
			}
		}
		dir = parent
	}
}

const defaultDescriptorName = "build.toml"

func reaches(from, target string, seen map[string]bool) bool {
	from = filepath.Clean(from)
	if seen[from] {
		return false
	}
	seen[from] = true
	if from == target {
		return true
	}

	env := NewEnv(filepath.Dir(from))
	d, err := parseDescriptor(from, env)
	if err != nil {
		return false
	}
	includes := d.Project.Includes
	if len(includes) == 0 {
		includes = d.Module.Includes
	}
	for _, inc := range includes {
		incPath := filepath.Clean(filepath.Join(filepath.Dir(from), inc))
		if reaches(incPath, target, seen) {
			return true
		}
	}
	return false
}
