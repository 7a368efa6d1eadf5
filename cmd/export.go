// kyanite export --format=ninja|compile-commands|vs2022 [path]
package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kyanite-build/kyanite/internal/config"
	"github.com/kyanite-build/kyanite/internal/export"
	"github.com/kyanite-build/kyanite/internal/graph"
	"github.com/kyanite-build/kyanite/internal/msg"
)

var flagExportFormat string

func loadGraph(path string) *graph.DAG {
	descriptor := flagConfig
	if path != "." {
		descriptor = path
	}
	proj, err := config.Load(descriptor)
	if err != nil {
		msg.Fatal("%v", err)
	}
	dag, err := graph.Build(proj)
	if err != nil {
		msg.Fatal("%v", err)
	}
	if len(flagTargets) > 0 {
		subset, err := graph.Filter(dag, flagTargets)
		if err != nil {
			msg.Fatal("%v", err)
		}
		dag = dag.Subgraph(subset)
	}
	return dag
}

func doExport(cmd *cobra.Command, args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	dag := loadGraph(target)

	cwd, err := os.Getwd()
	if err != nil {
		msg.Fatal("could not get current directory: %v", err)
	}

	switch flagExportFormat {
	case "ninja":
		writeExportFile("build.ninja", export.Ninja(dag))
	case "compile-commands":
		data, err := export.CompileCommands(dag, cwd)
		if err != nil {
			msg.Fatal("export: %v", err)
		}
		writeExportFile("compile_commands.json", string(data))
	case "vs2022":
		files, err := export.VS2022(dag, cwd)
		if err != nil {
			msg.Fatal("export: %v", err)
		}
		for name, contents := range files {
			writeExportFile(name, contents)
		}
	default:
		msg.Fatal("unknown export format %q (want ninja, compile-commands, or vs2022)", flagExportFormat)
	}
}

func writeExportFile(name, contents string) {
	if err := os.WriteFile(name, []byte(contents), 0o644); err != nil {
		msg.Fatal("writing %s: %v", name, err)
	}
	msg.Info("wrote %s", filepath.Clean(name))
}

var exportCmd = &cobra.Command{
	Use:   "export [path]",
	Short: "Render the build graph for an external build tool instead of running it",
	Args:  cobra.MaximumNArgs(1),
	Run:   doExport,
}

func init() {
	exportCmd.Flags().StringVarP(&flagConfig, "config", "c", "build.toml", "root descriptor path")
	exportCmd.Flags().StringSliceVarP(&flagTargets, "target", "t", nil, "restrict to the closure of these targets (may repeat)")
	exportCmd.Flags().StringVar(&flagExportFormat, "format", "ninja", "output format: ninja, compile-commands, or vs2022")
	rootCmd.AddCommand(exportCmd)
}
