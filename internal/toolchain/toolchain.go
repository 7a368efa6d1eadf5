// Package toolchain resolves the concrete compiler binary for a target's
// compiler selector (component C4's compiler-selector mapping), generalized
// from the teacher's cc.go.
package toolchain

import (
	"os"
	"os/exec"

	"github.com/kyanite-build/kyanite/internal/graph"
)

// TODO: zig cc
var (
	commonCCompilers   = []string{"clang", "gcc", "icx", "icc", "tcc", "cl"}
	commonCxxCompilers = []string{"clang++", "g++", "clang", "gcc", "icpx", "icx", "icpc", "icc", "cl"}
	commonClang        = []string{"clang"}
	commonClangxx      = []string{"clang++"}
)

// Find resolves the compiler binary for the given selector. CC/CXX
// environment variables take priority, except when the selector explicitly
// asks for clang, which only ever searches for a clang binary.
func Find(sel graph.CompilerSelector) string {
	if sel == Clang() {
		return findFirst(commonClang)
	}

	cc := os.Getenv("CC")
	cxx := os.Getenv("CXX")

	switch sel {
	case graph.CxxCompiler:
		if cxx != "" {
			return cxx
		}
		return findFirst(commonCxxCompilers)
	default: // graph.CCompiler
		if cc != "" {
			return cc
		}
		return findFirst(commonCCompilers)
	}
}

// FindCxx resolves the C++ driver to pair with a clang selector (used by
// the link step when any translation unit in the target is C++).
func FindCxx(sel graph.CompilerSelector) string {
	if sel == Clang() {
		return findFirst(commonClangxx)
	}
	return Find(graph.CxxCompiler)
}

// Clang is a convenience accessor mirroring graph.Clang, kept local so
// callers don't need to import graph just for the constant.
func Clang() graph.CompilerSelector { return graph.Clang }

// msvcFallback is overridden on windows (see msvc_windows.go) to probe the
// Visual Studio Setup COM API once no clang/gcc/cl binary turns up on PATH.
var msvcFallback = func() string { return "" }

func findFirst(candidates []string) string {
	for _, c := range candidates {
		if path, err := exec.LookPath(c); err == nil {
			return path
		}
	}
	return msvcFallback()
}
