// Package plan synthesizes compiler and linker invocations for a target:
// component C4, the Compile Planner.
package plan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kyanite-build/kyanite/internal/graph"
	"github.com/kyanite-build/kyanite/internal/toolchain"
)

// CompileJob is one (Target, source file) compilation derived by the
// planner. InputFiles is the set of files whose mtime governs staleness —
// per spec.md this is deliberately just the source file.
type CompileJob struct {
	Target     string
	Source     string
	Object     string
	Args       []string // [compiler, "-c", source, "-o", object, flags...]
	InputFiles []string
}

// LinkJob is the final-artifact link (or archive) step for a Target.
type LinkJob struct {
	Target     string
	Args       []string
	Archiver   bool // true for StaticLibrary: use `ar` instead of the compiler driver
	Output     string
	ObjectDeps []string // object files this target owns
	LibDeps    []string // artifact paths of direct library dependencies
}

func isCxxSource(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".cc", ".cpp", ".cxx", ".c++":
		return true
	default:
		return false
	}
}

// ArtifactPath returns the final artifact path for a target under its
// output directory, per spec.md §6.
func ArtifactPath(t *graph.Target) string {
	switch t.Kind {
	case graph.StaticLibrary:
		return filepath.Join(t.OutputDir, "lib"+t.Name+".a")
	case graph.SharedLibrary:
		return filepath.Join(t.OutputDir, "lib"+t.Name+".so")
	default:
		return filepath.Join(t.OutputDir, t.Name)
	}
}

// ObjectPath returns the object-file path for a source file belonging to t.
func ObjectPath(t *graph.Target, source string) string {
	stem := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(t.OutputDir, "obj", t.Name, stem+".o")
}

// InferPIC computes, for every StaticLibrary in the DAG, whether it must be
// compiled with -fPIC because a SharedLibrary depends on it (one hop is
// enough), per spec.md §9.
func InferPIC(d *graph.DAG) map[string]bool {
	pic := make(map[string]bool)
	for _, t := range d.Order {
		if t.Kind != graph.SharedLibrary {
			continue
		}
		for _, dep := range d.DirectDeps(t.Name) {
			if dep.Kind == graph.StaticLibrary {
				pic[dep.Name] = true
			}
		}
	}
	return pic
}

// compileFlags computes, in the order spec.md §4.4 requires, the flags
// common to every compile job for t.
func compileFlags(t *graph.Target, d *graph.DAG, needsPIC bool) []string {
	var flags []string

	if t.CxxStandard != nil {
		flags = append(flags, fmt.Sprintf("-std=c++%d", *t.CxxStandard))
	}
	if t.Kind == graph.SharedLibrary || needsPIC {
		flags = append(flags, "-fPIC")
	}

	for _, inc := range t.IncludeDirs {
		flags = append(flags, "-I"+inc)
	}
	// one-hop propagation only: direct dependency include dirs, not
	// transitive (spec.md §4.4, §9).
	for _, dep := range d.DirectDeps(t.Name) {
		for _, inc := range dep.IncludeDirs {
			flags = append(flags, "-I"+inc)
		}
	}

	flags = append(flags, t.CompileFlags...)
	flags = append(flags, t.LegacyFlags...)

	for k, v := range t.Defines {
		if v != "" {
			flags = append(flags, fmt.Sprintf("-D%s=%s", k, v))
		} else {
			flags = append(flags, "-D"+k)
		}
	}

	return flags
}

func compilerFor(t *graph.Target, source string) string {
	if isCxxSource(source) {
		if t.Compiler == graph.Clang {
			return toolchain.FindCxx(t.Compiler)
		}
		return toolchain.Find(graph.CxxCompiler)
	}
	if t.Compiler == graph.Clang {
		return toolchain.Find(graph.Clang)
	}
	return toolchain.Find(t.Compiler)
}

// Compile synthesizes the compile job for one source file of t.
func Compile(t *graph.Target, d *graph.DAG, source string, needsPIC bool) CompileJob {
	obj := ObjectPath(t, source)
	cc := compilerFor(t, source)
	flags := compileFlags(t, d, needsPIC)

	args := []string{cc, "-c", source, "-o", obj}
	args = append(args, flags...)

	return CompileJob{
		Target:     t.Name,
		Source:     source,
		Object:     obj,
		Args:       args,
		InputFiles: []string{source},
	}
}

// hasCxx reports whether t or any of its direct dependencies contains a C++
// translation unit, deciding whether the link step needs the C++ driver.
func hasCxx(t *graph.Target, d *graph.DAG) bool {
	for _, src := range t.Sources {
		if isCxxSource(src) {
			return true
		}
	}
	for _, dep := range d.DirectDeps(t.Name) {
		for _, src := range dep.Sources {
			if isCxxSource(src) {
				return true
			}
		}
	}
	return false
}

// Link synthesizes the link (or archive) job for t.
func Link(t *graph.Target, d *graph.DAG) LinkJob {
	out := ArtifactPath(t)

	objects := make([]string, len(t.Sources))
	for i, src := range t.Sources {
		objects[i] = ObjectPath(t, src)
	}

	if t.Kind == graph.StaticLibrary {
		args := []string{"rcs", out}
		args = append(args, objects...)
		return LinkJob{
			Target:     t.Name,
			Args:       args,
			Archiver:   true,
			Output:     out,
			ObjectDeps: objects,
		}
	}

	cc := toolchain.Find(graph.CCompiler)
	if hasCxx(t, d) {
		cc = toolchain.Find(graph.CxxCompiler)
	}
	if t.Compiler == graph.Clang {
		cc = toolchain.Find(graph.Clang)
		if hasCxx(t, d) {
			cc = toolchain.FindCxx(t.Compiler)
		}
	}

	var libDeps []string
	args := []string{cc, "-o", out}
	args = append(args, objects...)

	for _, dep := range d.DirectDeps(t.Name) {
		depArtifact := ArtifactPath(dep)
		libDeps = append(libDeps, depArtifact)
		if dep.Kind == graph.SharedLibrary {
			args = append(args, "-L"+dep.OutputDir, "-l"+dep.Name)
		} else {
			args = append(args, depArtifact)
		}
	}

	for _, dir := range t.LibDirs {
		args = append(args, "-L"+dir)
	}
	for _, lib := range t.Links {
		args = append(args, "-l"+lib)
	}
	args = append(args, t.LinkFlags...)
	if t.Kind == graph.SharedLibrary {
		args = append(args, "-shared")
	}

	return LinkJob{
		Target:     t.Name,
		Args:       args,
		Archiver:   false,
		Output:     out,
		ObjectDeps: objects,
		LibDeps:    libDeps,
	}
}

// EnsureOutputDir creates a target's output directory and its obj/<name>
// subtree before jobs are submitted, as required of the planner.
func EnsureOutputDir(t *graph.Target) error {
	return os.MkdirAll(filepath.Join(t.OutputDir, "obj", t.Name), 0o755)
}
