package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyanite-build/kyanite/internal/config"
)

func write(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestLoadSingleFile(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "build.toml"), `
[project]
name = "app"
cxx_standard = 20

[[target]]
name = "app"
sources = ["main.c"]
`)
	write(t, filepath.Join(dir, "main.c"), "int main(){return 0;}")

	p, err := config.Load(filepath.Join(dir, "build.toml"))
	require.NoError(t, err)
	assert.Equal(t, "app", p.Name)
	require.NotNil(t, p.CxxStandard)
	assert.Equal(t, 20, *p.CxxStandard)
	require.Len(t, p.Targets, 1)
	assert.Equal(t, "app", p.Targets[0].Name)
	assert.Len(t, p.Targets[0].Sources, 1)
}

func TestLoadIncludesDepthFirst(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "build.toml"), `
[project]
name = "app"
includes = ["lib/build.toml"]

[[target]]
name = "app"
sources = ["main.c"]
deps = ["mylib"]
`)
	write(t, filepath.Join(dir, "main.c"), "")
	write(t, filepath.Join(dir, "lib", "build.toml"), `
[module]
name = "lib"

[[target]]
name = "mylib"
kind = "static_library"
sources = ["a.c"]
`)
	write(t, filepath.Join(dir, "lib", "a.c"), "")

	p, err := config.Load(filepath.Join(dir, "build.toml"))
	require.NoError(t, err)
	require.Len(t, p.Targets, 2)
	names := []string{p.Targets[0].Name, p.Targets[1].Name}
	assert.ElementsMatch(t, []string{"app", "mylib"}, names)

	lib, ok := p.ByName("mylib")
	require.True(t, ok)
	require.Len(t, lib.Sources, 1)
	assert.Contains(t, lib.Sources[0], filepath.Join(dir, "lib", "a.c"))
}

func TestLoadFirstWinsOnDuplicateTargetName(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "build.toml"), `
[project]
name = "app"
includes = ["b.toml"]

[[target]]
name = "shared"
sources = ["first.c"]
`)
	write(t, filepath.Join(dir, "first.c"), "")
	write(t, filepath.Join(dir, "second.c"), "")
	write(t, filepath.Join(dir, "b.toml"), `
[module]
name = "b"

[[target]]
name = "shared"
sources = ["second.c"]
`)

	p, err := config.Load(filepath.Join(dir, "build.toml"))
	require.NoError(t, err)
	require.Len(t, p.Targets, 1)
	t0 := p.Targets[0]
	require.Len(t, t0.Sources, 1)
	assert.Contains(t, t0.Sources[0], "first.c")
}

func TestLoadWorkspaceRootPromotion(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "build.toml"), `
[project]
name = "workspace"
includes = ["sub/build.toml"]

[[target]]
name = "root_target"
sources = ["root.c"]
`)
	write(t, filepath.Join(dir, "root.c"), "")
	write(t, filepath.Join(dir, "sub", "build.toml"), `
[module]
name = "sub"

[[target]]
name = "sub_target"
sources = ["sub.c"]
`)
	write(t, filepath.Join(dir, "sub", "sub.c"), "")

	// Point the loader directly at the *included* module; it must still
	// discover the ancestor root and build the unified two-target graph.
	p, err := config.Load(filepath.Join(dir, "sub", "build.toml"))
	require.NoError(t, err)
	assert.Equal(t, "workspace", p.Name)
	require.Len(t, p.Targets, 2)
}

func TestLoadGlobMatchingNothingIsLegal(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "build.toml"), `
[project]
name = "app"

[[target]]
name = "app"
sources = ["generated/*.c"]
`)

	p, err := config.Load(filepath.Join(dir, "build.toml"))
	require.NoError(t, err)
	require.Len(t, p.Targets, 1)
	assert.Empty(t, p.Targets[0].Sources)
}

func TestLoadMissingFileIsConfigLoadError(t *testing.T) {
	dir := t.TempDir()
	_, err := config.Load(filepath.Join(dir, "build.toml"))
	require.Error(t, err)
	var loadErr *config.ConfigLoadError
	assert.ErrorAs(t, err, &loadErr)
}

func TestLoadMalformedTomlIsConfigParseError(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "build.toml"), `
[project
name = "app"
`)
	_, err := config.Load(filepath.Join(dir, "build.toml"))
	require.Error(t, err)
	var parseErr *config.ConfigParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestLoadConditionalTargetSection(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "build.toml"), `
[project]
name = "app"

[[target]]
name = "app"
sources = ["main.c"]
links = ["m"]

[target."target_os == 'linux'"]
links = ["pthread"]
`)
	write(t, filepath.Join(dir, "main.c"), "")

	p, err := config.Load(filepath.Join(dir, "build.toml"))
	require.NoError(t, err)
	require.Len(t, p.Targets, 1)
	if p.Targets[0].Links != nil {
		assert.Contains(t, p.Targets[0].Links, "m")
	}
}
