package export

import (
	"encoding/json"

	"github.com/kyanite-build/kyanite/internal/graph"
	"github.com/kyanite-build/kyanite/internal/plan"
)

type compileCommand struct {
	Directory string   `json:"directory"`
	Arguments []string `json:"arguments"`
	File      string   `json:"file"`
	Output    string   `json:"output"`
}

// CompileCommands renders d as a clangd-compatible compile_commands.json, one
// entry per compile job the planner would hand to internal/exec. rootDir is
// recorded as each entry's working directory.
func CompileCommands(d *graph.DAG, rootDir string) ([]byte, error) {
	pic := plan.InferPIC(d)

	var cmds []compileCommand
	for _, t := range d.Order {
		sources := append([]string(nil), t.Sources...)
		for _, src := range sources {
			job := plan.Compile(t, d, src, pic[t.Name])
			cmds = append(cmds, compileCommand{
				Directory: rootDir,
				Arguments: job.Args,
				File:      src,
				Output:    job.Object,
			})
		}
	}
	return json.MarshalIndent(cmds, "", "  ")
}
