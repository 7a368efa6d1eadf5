package exec_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyanite-build/kyanite/internal/cache"
	"github.com/kyanite-build/kyanite/internal/event"
	"github.com/kyanite-build/kyanite/internal/exec"
	"github.com/kyanite-build/kyanite/internal/graph"
	"github.com/kyanite-build/kyanite/internal/spawn"
)

// writeFakeOutputs is a spawn.Fake Fail hook that actually creates the
// object/artifact file a real compiler or archiver would have produced, so
// cache.MtimeOracle sees genuine up-to-date state on a second run.
func writeFakeOutputs(argv []string) error {
	if len(argv) >= 3 && argv[0] == "ar" && argv[1] == "rcs" {
		return os.WriteFile(argv[2], []byte("ar"), 0o644)
	}
	for i, a := range argv {
		if a == "-o" && i+1 < len(argv) {
			return os.WriteFile(argv[i+1], []byte("bin"), 0o644)
		}
	}
	return nil
}

func mkTarget(dir, name string, kind graph.Kind, deps ...string) *graph.Target {
	return &graph.Target{
		Name:      name,
		Kind:      kind,
		Sources:   []string{name + ".c"},
		OutputDir: dir,
		Deps:      deps,
		Compiler:  graph.CCompiler,
	}
}

func buildDAG(t *testing.T, dir string, targets ...*graph.Target) *graph.DAG {
	t.Helper()
	p := graph.NewProject("p", nil, targets)
	d, err := graph.Build(p)
	require.NoError(t, err)
	return d
}

// countingSink is an event.Sink that only records each TargetFinished call as
// "target:outcome" and ignores every other message, used where tests don't
// care about the rest of the message stream.
type countingSink struct {
	mu       sync.Mutex
	finished []string
}

func (s *countingSink) RunStart(runID string, total int) {}
func (s *countingSink) TargetLine(target string, stage event.Stage, text string) {}
func (s *countingSink) TargetFinished(target string, outcome event.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, fmt.Sprintf("%s:%s", target, outcome))
}
func (s *countingSink) RunFinished(success bool, counts event.Counts) {}

func TestLinearChain(t *testing.T) {
	dir := t.TempDir()
	a := mkTarget(dir, "a", graph.StaticLibrary)
	b := mkTarget(dir, "b", graph.StaticLibrary, "a")
	c := mkTarget(dir, "c", graph.Executable, "b")
	d := buildDAG(t, dir, a, b, c)

	runner := &spawn.Fake{}
	sink := &countingSink{}
	summary, err := exec.Run(context.Background(), d, cache.MtimeOracle{}, runner, sink, exec.Options{Jobs: 2})

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 3, summary.Counts.Succeeded)
	assert.Equal(t, []string{"a:succeeded", "b:succeeded", "c:succeeded"}, sink.finished)
}

func TestDiamondConcurrency(t *testing.T) {
	dir := t.TempDir()
	base := mkTarget(dir, "base", graph.StaticLibrary)
	left := mkTarget(dir, "left", graph.StaticLibrary, "base")
	right := mkTarget(dir, "right", graph.StaticLibrary, "base")
	top := mkTarget(dir, "top", graph.Executable, "left", "right")
	d := buildDAG(t, dir, base, left, right, top)

	var current, max int64
	runner := &spawn.Fake{
		Fail: func(argv []string) error {
			n := atomic.AddInt64(&current, 1)
			for {
				old := atomic.LoadInt64(&max)
				if n <= old || atomic.CompareAndSwapInt64(&max, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil
		},
	}
	sink := &countingSink{}
	summary, err := exec.Run(context.Background(), d, cache.MtimeOracle{}, runner, sink, exec.Options{Jobs: 2})

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 4, summary.Counts.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt64(&max), int64(2))
	assert.GreaterOrEqual(t, atomic.LoadInt64(&max), int64(2), "left and right should overlap under -j 2")
}

func TestJobsOneSerializes(t *testing.T) {
	dir := t.TempDir()
	base := mkTarget(dir, "base", graph.StaticLibrary)
	left := mkTarget(dir, "left", graph.StaticLibrary, "base")
	right := mkTarget(dir, "right", graph.StaticLibrary, "base")
	d := buildDAG(t, dir, base, left, right)

	var current, max int64
	runner := &spawn.Fake{
		Fail: func(argv []string) error {
			n := atomic.AddInt64(&current, 1)
			if n > atomic.LoadInt64(&max) {
				atomic.StoreInt64(&max, n)
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt64(&current, -1)
			return nil
		},
	}
	sink := &countingSink{}
	summary, err := exec.Run(context.Background(), d, cache.MtimeOracle{}, runner, sink, exec.Options{Jobs: 1})

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, int64(1), atomic.LoadInt64(&max))
}

func TestKeepGoingSkipsTransitiveFailures(t *testing.T) {
	dir := t.TempDir()
	base := mkTarget(dir, "base", graph.StaticLibrary)
	left := mkTarget(dir, "left", graph.StaticLibrary, "base")
	right := mkTarget(dir, "right", graph.StaticLibrary, "base")
	top := mkTarget(dir, "top", graph.Executable, "left", "right")
	d := buildDAG(t, dir, base, left, right, top)

	runner := &spawn.Fake{
		Fail: func(argv []string) error {
			for _, a := range argv {
				if a == "left.c" {
					return fmt.Errorf("boom")
				}
			}
			return nil
		},
	}
	sink := &countingSink{}
	summary, _ := exec.Run(context.Background(), d, cache.MtimeOracle{}, runner, sink, exec.Options{Jobs: 2, KeepGoing: true})

	assert.False(t, summary.Success)
	assert.Equal(t, 2, summary.Counts.Succeeded) // base, right
	assert.Equal(t, 2, summary.Counts.Failed)    // left, top (transitive)
	assert.Equal(t, 0, summary.Counts.Skipped)
	_, failed := summary.Errors["left"]
	assert.True(t, failed)
}

func TestFailFastCancelsDownstream(t *testing.T) {
	dir := t.TempDir()
	base := mkTarget(dir, "base", graph.StaticLibrary)
	top := mkTarget(dir, "top", graph.Executable, "base")
	d := buildDAG(t, dir, base, top)

	runner := &spawn.Fake{
		Fail: func(argv []string) error {
			for _, a := range argv {
				if a == "base.c" {
					return fmt.Errorf("boom")
				}
			}
			return nil
		},
	}
	sink := &countingSink{}
	summary, err := exec.Run(context.Background(), d, cache.MtimeOracle{}, runner, sink, exec.Options{Jobs: 2})

	require.Error(t, err)
	assert.False(t, summary.Success)
	assert.Equal(t, 2, summary.Counts.Failed) // base, top (transitive)
	assert.Equal(t, 0, summary.Counts.Skipped)
}

func TestOracleAgnosticWithHashOracle(t *testing.T) {
	dir := t.TempDir()
	a := mkTarget(dir, "a", graph.StaticLibrary)
	b := mkTarget(dir, "b", graph.Executable, "a")
	d := buildDAG(t, dir, a, b)

	runner := &spawn.Fake{}
	sink := &countingSink{}
	summary, err := exec.Run(context.Background(), d, cache.NewHashOracle(), runner, sink, exec.Options{Jobs: 2})

	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 2, summary.Counts.Succeeded)
}

func TestSecondRunReportsSkipped(t *testing.T) {
	dir := t.TempDir()
	srcA := filepath.Join(dir, "a.c")
	require.NoError(t, os.WriteFile(srcA, []byte("int a(void){return 0;}"), 0o644))

	a := &graph.Target{
		Name:      "a",
		Kind:      graph.StaticLibrary,
		Sources:   []string{srcA},
		OutputDir: dir,
		Compiler:  graph.CCompiler,
	}
	d := buildDAG(t, dir, a)

	runner := &spawn.Fake{Fail: writeFakeOutputs}

	first := &countingSink{}
	summary1, err := exec.Run(context.Background(), d, cache.MtimeOracle{}, runner, first, exec.Options{Jobs: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, summary1.Counts.Succeeded)
	assert.Equal(t, 0, summary1.Counts.Skipped)
	assert.Equal(t, []string{"a:succeeded"}, first.finished)

	second := &countingSink{}
	summary2, err := exec.Run(context.Background(), d, cache.MtimeOracle{}, runner, second, exec.Options{Jobs: 1})
	require.NoError(t, err)
	assert.Equal(t, 0, summary2.Counts.Succeeded)
	assert.Equal(t, 1, summary2.Counts.Skipped)
	assert.Equal(t, []string{"a:skipped"}, second.finished)
}

func TestContextCancellationStopsScheduling(t *testing.T) {
	dir := t.TempDir()
	a := mkTarget(dir, "a", graph.StaticLibrary)
	b := mkTarget(dir, "b", graph.Executable, "a")
	d := buildDAG(t, dir, a, b)

	block := make(chan struct{})
	runner := &spawn.Fake{Block: block}
	sink := &countingSink{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		exec.Run(ctx, d, cache.MtimeOracle{}, runner, sink, exec.Options{Jobs: 1})
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	close(block)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("exec.Run did not return after cancellation")
	}
}
