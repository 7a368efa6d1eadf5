// Package export renders a validated DAG as build files for external
// tools — an alternative back end to internal/exec's own scheduler, for
// users who want to hand a project off to ninja, clangd, or Visual Studio
// instead of running kyanite's own executor.
package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kyanite-build/kyanite/internal/graph"
	"github.com/kyanite-build/kyanite/internal/plan"
)

var ninjaEscaper = strings.NewReplacer(":", "$:", " ", "$ ")

func ninjaQuote(s string) string { return ninjaEscaper.Replace(s) }

// Ninja renders d as a build.ninja file equivalent to running internal/exec
// directly: every compile and link/archive job becomes one build edge,
// carrying the exact argv internal/plan would otherwise hand to
// internal/spawn.
func Ninja(d *graph.DAG) string {
	var sb strings.Builder

	fmt.Fprintln(&sb, "ninja_required_version = 1.1")
	fmt.Fprintln(&sb)
	fmt.Fprintln(&sb, "rule cc")
	fmt.Fprintln(&sb, "  command = $command")
	fmt.Fprintln(&sb, "  description = CC $out")
	fmt.Fprintln(&sb)
	fmt.Fprintln(&sb, "rule link")
	fmt.Fprintln(&sb, "  command = $command")
	fmt.Fprintln(&sb, "  description = LINK $out")
	fmt.Fprintln(&sb)

	pic := plan.InferPIC(d)

	for _, t := range d.Order {
		sources := append([]string(nil), t.Sources...)
		sort.Strings(sources)
		for _, src := range sources {
			job := plan.Compile(t, d, src, pic[t.Name])
			fmt.Fprintf(&sb, "build %s: cc %s\n", ninjaQuote(job.Object), ninjaQuote(src))
			fmt.Fprintf(&sb, "  command = %s\n", strings.Join(job.Args, " "))
		}
	}
	fmt.Fprintln(&sb)

	for _, t := range d.Order {
		link := plan.Link(t, d)
		argv := link.Args
		if link.Archiver {
			argv = append([]string{"ar"}, argv...)
		}

		fmt.Fprintf(&sb, "build %s: link", ninjaQuote(link.Output))
		for _, obj := range link.ObjectDeps {
			fmt.Fprintf(&sb, " %s", ninjaQuote(obj))
		}
		for _, dep := range link.LibDeps {
			fmt.Fprintf(&sb, " %s", ninjaQuote(dep))
		}
		fmt.Fprintln(&sb)
		fmt.Fprintf(&sb, "  command = %s\n", strings.Join(argv, " "))
	}

	return sb.String()
}
