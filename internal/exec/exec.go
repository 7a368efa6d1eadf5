// Package exec drives the parallel build (component C6): given a validated
// DAG, it schedules each target's compile and link steps with bounded
// concurrency, Ninja-style readiness (a target starts the instant its last
// dependency finishes, not when a whole "wave" drains), and either
// fail-fast or keep-going failure semantics.
package exec

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/kyanite-build/kyanite/internal/cache"
	"github.com/kyanite-build/kyanite/internal/event"
	"github.com/kyanite-build/kyanite/internal/graph"
	"github.com/kyanite-build/kyanite/internal/plan"
	"github.com/kyanite-build/kyanite/internal/spawn"
)

// Options configures a Run.
type Options struct {
	// Jobs is the maximum number of targets building at once. <= 0 means 1.
	Jobs int
	// KeepGoing, when true, lets independent branches keep building after a
	// failure instead of cancelling the whole run; only targets that
	// transitively depend on the failed one are not built, and they are
	// reported as Failed.
	KeepGoing bool
}

// Summary reports the terminal state of a run.
type Summary struct {
	Success bool
	Counts  event.Counts
	Errors  map[string]error // target -> failure, only for Failed outcomes
}

type targetState struct {
	done    chan struct{}
	outcome event.Outcome
	err     error
}

// Run schedules every target in d for building, per spec.md §4.6.
func Run(ctx context.Context, d *graph.DAG, oracle cache.Oracle, runner spawn.Runner, sink event.Sink, opts Options) (Summary, error) {
	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = 1
	}

	runID := uuid.NewString()
	sink.RunStart(runID, len(d.Order))

	sem := semaphore.NewWeighted(int64(jobs))
	states := make(map[string]*targetState, len(d.Order))
	for _, t := range d.Order {
		states[t.Name] = &targetState{done: make(chan struct{})}
	}
	pic := plan.InferPIC(d)

	var mu sync.Mutex
	counts := event.Counts{Total: len(d.Order)}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(runCtx)

	// abandon marks a target that never ran because the run was cancelled
	// before it could even be scheduled, so Counts always sums to Total.
	abandon := func(t *graph.Target, st *targetState) {
		st.outcome = event.Skipped
		sink.TargetFinished(t.Name, event.Skipped)
		mu.Lock()
		counts.Skipped++
		mu.Unlock()
		close(st.done)
	}

	for _, t := range d.Order {
		t := t
		st := states[t.Name]
		g.Go(func() error {
			// Wait for every dependency to settle before this target may
			// even attempt to acquire a permit.
			var depFailed string
			for _, dep := range t.Deps {
				depSt := states[dep]
				select {
				case <-depSt.done:
				case <-gctx.Done():
					abandon(t, st)
					return nil
				}
				if depFailed == "" && depSt.outcome != event.Succeeded {
					depFailed = dep
				}
			}

			if depFailed != "" {
				st.outcome = event.Failed
				st.err = fmt.Errorf("%s: dependency %q did not succeed", t.Name, depFailed)
				sink.TargetLine(t.Name, event.Skip, fmt.Sprintf("not built: dependency %q did not succeed", depFailed))
				sink.TargetFinished(t.Name, event.Failed)
				mu.Lock()
				counts.Failed++
				mu.Unlock()
				close(st.done)
				return nil
			}

			if err := sem.Acquire(gctx, 1); err != nil {
				abandon(t, st)
				return nil
			}
			defer sem.Release(1)

			// A permit was granted under a cancelled context only when the
			// run is already winding down; treat that as a skip, not a
			// failure, so KeepGoing summaries stay accurate.
			select {
			case <-gctx.Done():
				abandon(t, st)
				return nil
			default:
			}

			ran, err := buildOne(gctx, t, d, oracle, runner, sink, pic[t.Name])
			if err != nil {
				st.outcome = event.Failed
				st.err = err
				sink.TargetLine(t.Name, event.Error, err.Error())
				sink.TargetFinished(t.Name, event.Failed)
				mu.Lock()
				counts.Failed++
				mu.Unlock()
				close(st.done)
				if !opts.KeepGoing {
					cancel()
					return err
				}
				return nil
			}

			if ran {
				st.outcome = event.Succeeded
				sink.TargetLine(t.Name, event.Ok, "built")
				sink.TargetFinished(t.Name, event.Succeeded)
				mu.Lock()
				counts.Succeeded++
				mu.Unlock()
			} else {
				st.outcome = event.Skipped
				sink.TargetLine(t.Name, event.Skip, "already up to date")
				sink.TargetFinished(t.Name, event.Skipped)
				mu.Lock()
				counts.Skipped++
				mu.Unlock()
			}
			close(st.done)
			return nil
		})
	}

	runErr := g.Wait()

	errs := make(map[string]error)
	for name, st := range states {
		if st.outcome == event.Failed {
			errs[name] = st.err
		}
	}

	summary := Summary{
		Success: counts.Failed == 0,
		Counts:  counts,
		Errors:  errs,
	}
	sink.RunFinished(summary.Success, counts)

	if !summary.Success && !opts.KeepGoing {
		return summary, runErr
	}
	if !summary.Success {
		return summary, fmt.Errorf("exec: %d target(s) failed", counts.Failed)
	}
	return summary, nil
}

// buildOne runs every stale compile job for t, then its link/archive step if
// needed, holding the target's single executor permit for the whole span. It
// reports whether any subprocess actually ran, so the caller can tell a
// genuine rebuild from a target that was already entirely up to date.
func buildOne(ctx context.Context, t *graph.Target, d *graph.DAG, oracle cache.Oracle, runner spawn.Runner, sink event.Sink, needsPIC bool) (bool, error) {
	if err := plan.EnsureOutputDir(t); err != nil {
		return false, fmt.Errorf("%s: %w", t.Name, err)
	}

	sources := append([]string(nil), t.Sources...)
	sort.Strings(sources)

	anyRecompiled := false
	for _, src := range sources {
		job := plan.Compile(t, d, src, needsPIC)
		stale, err := oracle.NeedsCompile(job)
		if err != nil {
			return false, fmt.Errorf("%s: staleness check for %s: %w", t.Name, src, err)
		}
		if !stale {
			continue
		}
		anyRecompiled = true

		stage := event.Compile
		sink.TargetLine(t.Name, stage, src)

		var out bytes.Buffer
		if err := runner.Run(ctx, job.Args, &out); err != nil {
			if out.Len() > 0 {
				sink.TargetLine(t.Name, event.Detail, out.String())
			}
			return true, fmt.Errorf("%s: compiling %s: %w", t.Name, src, err)
		}
		if out.Len() > 0 {
			sink.TargetLine(t.Name, event.Detail, out.String())
		}
	}

	link := plan.Link(t, d)
	relink := anyRecompiled
	if !relink {
		stale, err := oracle.NeedsLink(link)
		if err != nil {
			return anyRecompiled, fmt.Errorf("%s: link staleness check: %w", t.Name, err)
		}
		relink = stale
	}
	if !relink {
		return anyRecompiled, nil
	}

	stage := event.Link
	if link.Archiver {
		stage = event.Archive
	}
	sink.TargetLine(t.Name, stage, link.Output)

	argv := link.Args
	if link.Archiver {
		argv = append([]string{"ar"}, link.Args...)
	}

	var out bytes.Buffer
	if err := runner.Run(ctx, argv, &out); err != nil {
		if out.Len() > 0 {
			sink.TargetLine(t.Name, event.Detail, out.String())
		}
		return true, fmt.Errorf("%s: linking: %w", t.Name, err)
	}
	if out.Len() > 0 {
		sink.TargetLine(t.Name, event.Detail, out.String())
	}
	return true, nil
}
