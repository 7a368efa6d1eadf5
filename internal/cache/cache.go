// Package cache implements the Incremental Cache (component C5): a pure
// function of on-disk mtimes deciding whether a compile or link step may be
// skipped. Nothing is persisted here beyond the artifacts the compiler and
// linker themselves produce.
package cache

import (
	"os"

	"github.com/kyanite-build/kyanite/internal/plan"
)

// Oracle decides staleness. The executor depends only on this interface so
// that an alternative staleness strategy (see HashOracle) can stand in for
// it in tests without changing any scheduling code.
type Oracle interface {
	NeedsCompile(job plan.CompileJob) (bool, error)
	NeedsLink(job plan.LinkJob) (bool, error)
}

// MtimeOracle is the engine's production cache: it never considers headers,
// only the declared source list and dependency artifacts, per spec.md §4.5
// and §9.
type MtimeOracle struct{}

// NeedsCompile reports whether src must be recompiled into obj: true when
// obj does not exist, or when src is newer than obj.
func (MtimeOracle) NeedsCompile(job plan.CompileJob) (bool, error) {
	objInfo, err := os.Stat(job.Object)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}

	for _, input := range job.InputFiles {
		srcInfo, err := os.Stat(input)
		if err != nil {
			return false, err
		}
		if srcInfo.ModTime().After(objInfo.ModTime()) {
			return true, nil
		}
	}
	return false, nil
}

// NeedsLink reports whether a target's artifact must be relinked: true when
// the artifact is missing, any object file is newer than it, or any
// dependency library's artifact is newer than it.
func (MtimeOracle) NeedsLink(job plan.LinkJob) (bool, error) {
	outInfo, err := os.Stat(job.Output)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, err
	}

	for _, obj := range job.ObjectDeps {
		objInfo, err := os.Stat(obj)
		if err != nil {
			// The object was planned for a recompile this run; treat as stale.
			if os.IsNotExist(err) {
				return true, nil
			}
			return false, err
		}
		if objInfo.ModTime().After(outInfo.ModTime()) {
			return true, nil
		}
	}

	for _, dep := range job.LibDeps {
		depInfo, err := os.Stat(dep)
		if err != nil {
			if os.IsNotExist(err) {
				return true, nil
			}
			return false, err
		}
		if depInfo.ModTime().After(outInfo.ModTime()) {
			return true, nil
		}
	}

	return false, nil
}
