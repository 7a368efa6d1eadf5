package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Env is the expr-lang evaluation environment available to every {{ }}
// interpolation and conditional-section predicate in a descriptor: target_os,
// target_arch and environ mirror the teacher's ConfigEnv.
type Env struct {
	TargetOS   string            `expr:"target_os"`
	TargetArch string            `expr:"target_arch"`
	Environ    map[string]string `expr:"environ"`
	basedir    string
}

// NewEnv builds an Env rooted at basedir, capturing the current process
// environment and host OS/arch.
func NewEnv(basedir string) Env {
	environ := make(map[string]string)
	for _, e := range os.Environ() {
		if i := strings.Index(e, "="); i >= 0 {
			environ[e[:i]] = e[i+1:]
		}
	}
	return Env{
		TargetOS:   runtime.GOOS,
		TargetArch: runtime.GOARCH,
		Environ:    environ,
		basedir:    basedir,
	}
}

// ReadFile reads a file relative to the descriptor's directory, for use from
// build-time expressions that need to inspect source content.
func (e Env) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(filepath.Join(e.basedir, path))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Patch applies a unified-diff-style patch (as produced by diffmatchpatch) to
// a file relative to the descriptor's directory. It reports true and writes
// the result when at least one hunk applied, even if others did not; when no
// hunk applies it reports false and leaves the file unchanged. Used by
// generated-source workflows that tweak a vendored dependency's sources
// without forking them.
func (e Env) Patch(path, patchText string) (bool, error) {
	fullPath := filepath.Join(e.basedir, path)
	data, err := os.ReadFile(fullPath)
	if err != nil {
		return false, err
	}

	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patchText)
	if err != nil {
		return false, err
	}
	patchedText, results := dmp.PatchApply(patches, string(data))

	applied := false
	for _, ok := range results {
		if ok {
			applied = true
			break
		}
	}
	if !applied {
		return false, nil
	}
	return true, os.WriteFile(fullPath, []byte(patchedText), 0o644)
}
