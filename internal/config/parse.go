package config

import (
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/kyanite-build/kyanite/internal/rawtoml"
)

// parseDescriptor decodes one descriptor file, evaluates every {{ }}
// interpolation and conditional [[target]] subtable against env, and
// returns the resulting typed Descriptor.
func parseDescriptor(path string, env Env) (*rawtoml.Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}
	defer f.Close()

	raw, err := rawtoml.DecodeRaw(f)
	if err != nil {
		return nil, &ConfigParseError{Path: path, Err: err}
	}

	processed, err := processExpressions(raw, env)
	if err != nil {
		return nil, &ConfigParseError{Path: path, Err: fmt.Errorf("evaluating expressions: %w", err)}
	}
	raw = processed.(map[string]any)

	d := &rawtoml.Descriptor{}

	if projectData, ok := raw["project"]; ok {
		if err := toml.Unmarshal([]byte(mustMarshal(projectData)), &d.Project); err != nil {
			return nil, &ConfigParseError{Path: path, Err: fmt.Errorf("parsing [project]: %w", err)}
		}
	}
	if moduleData, ok := raw["module"]; ok {
		if err := toml.Unmarshal([]byte(mustMarshal(moduleData)), &d.Module); err != nil {
			return nil, &ConfigParseError{Path: path, Err: fmt.Errorf("parsing [module]: %w", err)}
		}
	}

	targetsData, ok := raw["target"]
	if !ok {
		return d, nil
	}
	entries, ok := targetsData.([]any)
	if !ok {
		return nil, &ConfigParseError{Path: path, Err: fmt.Errorf("[[target]] must be an array of tables")}
	}
	for i, entryData := range entries {
		elem, ok := entryData.(map[string]any)
		if !ok {
			return nil, &ConfigParseError{Path: path, Err: fmt.Errorf("target entry %d is not a table", i)}
		}
		var t rawtoml.TargetSection
		if err := mergeConditionalTable(elem, &t, env); err != nil {
			return nil, &ConfigParseError{Path: path, Err: fmt.Errorf("target entry %d: %w", i, err)}
		}
		d.Target = append(d.Target, t)
	}
	return d, nil
}

// dirFS adapts dir into an fs.FS rooted there, for doublestar.Glob.
func dirFS(dir string) fs.FS { return os.DirFS(dir) }

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
