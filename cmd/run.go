// kyanite run [path]
package cmd

import (
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/kyanite-build/kyanite/internal/graph"
	"github.com/kyanite-build/kyanite/internal/msg"
	"github.com/kyanite-build/kyanite/internal/plan"
)

func doRun(cmd *cobra.Command, args []string) {
	target := "."
	var runTarget string
	var extraArgs []string
	if len(args) > 0 {
		target = args[0]
		if len(flagTargets) == 1 {
			runTarget = flagTargets[0]
		}
		extraArgs = args[1:]
	}

	dag, summary := buildProject(target)
	if !summary.Success {
		os.Exit(1)
	}

	if runTarget == "" {
		runTarget = pickExecutable(dag)
	}
	if runTarget == "" {
		msg.Fatal("no executable target to run (use --target to pick one)")
	}

	t, ok := dag.Target(runTarget)
	if !ok {
		msg.Fatal("unknown target %q", runTarget)
	}
	if t.Kind != graph.Executable {
		msg.Fatal("can't run %q: not an executable target", runTarget)
	}

	child := exec.Command(plan.ArtifactPath(t), extraArgs...)
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Stdin = os.Stdin
	if err := child.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			os.Exit(exitErr.ExitCode())
		}
		msg.Fatal("%v", err)
	}
}

// pickExecutable returns the sole Executable target in dag, or "" if there
// isn't exactly one (ambiguous without an explicit --target).
func pickExecutable(dag *graph.DAG) string {
	found := ""
	for _, t := range dag.Order {
		if t.Kind != graph.Executable {
			continue
		}
		if found != "" {
			return "" // more than one candidate, ambiguous
		}
		found = t.Name
	}
	return found
}

var runCmd = &cobra.Command{
	Use:   "run [path] [-- args...]",
	Short: "Build and run an executable target",
	Args:  cobra.ArbitraryArgs,
	Run:   doRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	addBuildFlags(runCmd)
}
