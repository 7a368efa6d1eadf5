// kyanite [path], kyanite build [path]
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kyanite-build/kyanite/internal/cache"
	"github.com/kyanite-build/kyanite/internal/config"
	"github.com/kyanite-build/kyanite/internal/event"
	"github.com/kyanite-build/kyanite/internal/exec"
	"github.com/kyanite-build/kyanite/internal/graph"
	"github.com/kyanite-build/kyanite/internal/msg"
	"github.com/kyanite-build/kyanite/internal/spawn"
)

var (
	flagConfig     string
	flagTargets    []string
	flagClean      bool
	flagJobs       int
	flagVerbose    bool
	flagQuiet      bool
	flagNoLdPath   bool
	flagIgnoreErrs bool
	flagStream     bool
)

func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&flagConfig, "config", "c", "build.toml", "root descriptor path")
	cmd.Flags().StringSliceVarP(&flagTargets, "target", "t", nil, "restrict to the closure of these targets (may repeat)")
	cmd.Flags().BoolVar(&flagClean, "clean", false, "wipe every target's output_dir before building")
	cmd.Flags().IntVarP(&flagJobs, "jobs", "j", runtime.NumCPU(), "concurrency bound")
	cmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "print per-target error summaries and the shared-library path hint; child command lines are not echoed")
	cmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress info messages; per-target build lines and the summary are still printed")
	cmd.Flags().BoolVar(&flagNoLdPath, "no-ld-path", false, "suppress the informational shared-library path hint")
	cmd.Flags().BoolVarP(&flagIgnoreErrs, "ignore-errors", "i", false, "keep building independent branches after a failure")
	cmd.Flags().BoolVar(&flagStream, "stream", false, "emit the machine-parseable event stream instead of TTY output")
}

func doBuild(cmd *cobra.Command, args []string) {
	target := "."
	if len(args) > 0 {
		target = args[0]
	}
	runBuild(target)
}

var rootCmd = &cobra.Command{
	Use:   "kyanite [path]",
	Short: "A declarative C/C++ build engine",
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

var buildCmd = &cobra.Command{
	Use:   "build [path]",
	Short: "Build the project",
	Args:  cobra.MaximumNArgs(1),
	Run:   doBuild,
}

func init() {
	addBuildFlags(rootCmd)
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

// runBuild drives a standalone build (the `kyanite`/`kyanite build` entry
// points) and exits the process reflecting success.
func runBuild(path string) {
	_, summary := buildProject(path)
	if !summary.Success {
		os.Exit(1)
	}
}

// buildProject loads the descriptor tree rooted at (or reachable near) path,
// builds and validates the DAG, and runs the executor, returning the
// resulting DAG (for callers like `kyanite run` that need to resolve an
// artifact path afterward) and the run summary. It does not exit the
// process; callers decide what a failure means for them.
func buildProject(path string) (*graph.DAG, exec.Summary) {
	msg.Quiet = flagQuiet
	msg.Verbose = flagVerbose

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

	if flagClean {
		for _, t := range dag.Order {
			os.RemoveAll(t.OutputDir)
		}
	}

	var sink event.Sink
	if flagStream {
		sink = event.NewStreamSink(os.Stdout)
	} else {
		sink = event.NewTTYSink(os.Stdout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := exec.Run(ctx, dag, cache.MtimeOracle{}, spawn.ProcessRunner{}, sink, exec.Options{
		Jobs:      flagJobs,
		KeepGoing: flagIgnoreErrs,
	})
	if err != nil && !summary.Success {
		for name, failErr := range summary.Errors {
			msg.Detail("%s: %v", name, failErr)
		}
	}

	if !flagNoLdPath {
		printLdPathHint(dag)
	}

	return dag, summary
}

// printLdPathHint reminds the user how to run an executable that links
// against a SharedLibrary built in this same workspace.
func printLdPathHint(dag *graph.DAG) {
	var dirs []string
	seen := make(map[string]bool)
	for _, t := range dag.Order {
		if t.Kind == graph.SharedLibrary && !seen[t.OutputDir] {
			seen[t.OutputDir] = true
			dirs = append(dirs, t.OutputDir)
		}
	}
	if len(dirs) == 0 {
		return
	}
	envVar := "LD_LIBRARY_PATH"
	if runtime.GOOS == "darwin" {
		envVar = "DYLD_LIBRARY_PATH"
	}
	msg.Detail("shared libraries built; you may need %s to include: %v", envVar, dirs)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
