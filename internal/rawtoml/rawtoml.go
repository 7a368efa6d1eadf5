// Package rawtoml is the external collaborator that decodes one descriptor
// file into a raw project tree. It knows nothing about includes, globs,
// multi-file merging, or the target graph — that is internal/config's job.
package rawtoml

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// ProjectSection is the [project] table, present only in a root descriptor.
type ProjectSection struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	CxxStandard int      `toml:"cxx_standard"`
	Includes    []string `toml:"includes"`
}

// ModuleSection is the [module] table, present only in an included
// descriptor. Project-wide fields (version, cxx_standard) are not honored
// here; only a name and further includes are.
type ModuleSection struct {
	Name     string   `toml:"name"`
	Includes []string `toml:"includes"`
}

// TargetSection is one [[target]] entry.
type TargetSection struct {
	Name       string            `toml:"name"`
	Kind       string            `toml:"kind"` // "executable" (default), "static_library", "shared_library"
	Sources    []string          `toml:"sources"`
	IncludeDir []string          `toml:"include_dirs"`
	LibDir     []string          `toml:"lib_dirs"`
	Links      []string          `toml:"links"`
	Cflags     []string          `toml:"cflags"`
	Ldflags    []string          `toml:"ldflags"`
	Flags      []string          `toml:"flags"` // legacy, compile-only
	CxxStd     *int              `toml:"cxx_standard"`
	Compiler   string            `toml:"compiler"` // "c-compiler" (default), "c++-compiler", "clang"
	OutputDir  string            `toml:"output_dir"`
	Deps       []string          `toml:"deps"`
	Defines    map[string]string `toml:"defines"`
}

// Descriptor is the raw, un-normalized contents of a single file.
type Descriptor struct {
	Project ProjectSection  `toml:"project"`
	Module  ModuleSection   `toml:"module"`
	Target  []TargetSection `toml:"target"`
}

// Decode parses one descriptor file's contents. It performs no filesystem
// access beyond reading rdr, and no semantic validation.
func Decode(rdr io.Reader) (*Descriptor, error) {
	var d Descriptor
	dec := toml.NewDecoder(bufio.NewReader(rdr))
	if err := dec.Decode(&d); err != nil {
		if derr, ok := err.(*toml.DecodeError); ok {
			return nil, fmt.Errorf("%s", derr.String())
		}
		return nil, err
	}
	return &d, nil
}

// DecodeFile opens and decodes a descriptor file from disk.
func DecodeFile(path string) (*Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// DecodeRaw parses rdr into an untyped table, for callers (internal/config)
// that need to evaluate {{ }} interpolation and conditional subtables
// before committing to the typed Descriptor shape.
func DecodeRaw(rdr io.Reader) (map[string]any, error) {
	var raw map[string]any
	dec := toml.NewDecoder(bufio.NewReader(rdr))
	if err := dec.Decode(&raw); err != nil {
		if derr, ok := err.(*toml.DecodeError); ok {
			return nil, fmt.Errorf("%s", derr.String())
		}
		return nil, err
	}
	return raw, nil
}

// Marshal re-serializes an already-decoded value back to TOML text, used by
// internal/config to round-trip a merged map through the typed unmarshaler.
func Marshal(v any) (string, error) {
	out, err := toml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
