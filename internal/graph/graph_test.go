package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkTarget(name string, deps ...string) *Target {
	return &Target{Name: name, Kind: Executable, Deps: deps}
}

func names(ts []*Target) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Name
	}
	return out
}

func TestBuildLinearChain(t *testing.T) {
	p := NewProject("", nil, []*Target{
		mkTarget("a"),
		mkTarget("b", "a"),
		mkTarget("app", "b"),
	})

	dag, err := Build(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "app"}, names(dag.Order))
}

func TestBuildDiamond(t *testing.T) {
	p := NewProject("", nil, []*Target{
		mkTarget("base"),
		mkTarget("left", "base"),
		mkTarget("right", "base"),
		mkTarget("top", "left", "right"),
	})

	dag, err := Build(p)
	require.NoError(t, err)
	order := names(dag.Order)
	assert.Equal(t, "base", order[0])
	assert.Equal(t, "top", order[3])
	assert.Contains(t, order, "left")
	assert.Contains(t, order, "right")
}

func TestBuildCycleDetection(t *testing.T) {
	p := NewProject("", nil, []*Target{
		mkTarget("x", "y"),
		mkTarget("y", "x"),
	})

	_, err := Build(p)
	require.Error(t, err)
	var cycleErr *CycleError
	require.True(t, errors.As(err, &cycleErr))
	assert.ElementsMatch(t, []string{"x", "y"}, cycleErr.Nodes)
}

func TestBuildUnknownDependency(t *testing.T) {
	p := NewProject("", nil, []*Target{
		mkTarget("app", "ghost"),
	})

	_, err := Build(p)
	require.Error(t, err)
	var unknownErr *UnknownDependencyError
	require.True(t, errors.As(err, &unknownErr))
	assert.Equal(t, "app", unknownErr.Target)
	assert.Equal(t, "ghost", unknownErr.Dep)
}

func TestBuildDeclarationOrderTieBreak(t *testing.T) {
	// Three independent targets: the topological order among siblings with
	// no edges between them must follow declaration order.
	p := NewProject("", nil, []*Target{
		mkTarget("z"),
		mkTarget("a"),
		mkTarget("m"),
	})

	dag, err := Build(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a", "m"}, names(dag.Order))
}

func TestBuildReorderingDeclarationsChangesOnlyTieBreak(t *testing.T) {
	p1 := NewProject("", nil, []*Target{
		mkTarget("base"),
		mkTarget("left", "base"),
		mkTarget("right", "base"),
	})
	p2 := NewProject("", nil, []*Target{
		mkTarget("base"),
		mkTarget("right", "base"),
		mkTarget("left", "base"),
	})

	dag1, err := Build(p1)
	require.NoError(t, err)
	dag2, err := Build(p2)
	require.NoError(t, err)

	assert.ElementsMatch(t, names(dag1.Order), names(dag2.Order))
	assert.Equal(t, []string{"base", "left", "right"}, names(dag1.Order))
	assert.Equal(t, []string{"base", "right", "left"}, names(dag2.Order))
}

func TestFilterEmptyReturnsFullOrder(t *testing.T) {
	p := NewProject("", nil, []*Target{
		mkTarget("a"),
		mkTarget("b", "a"),
	})
	dag, err := Build(p)
	require.NoError(t, err)

	filtered, err := Filter(dag, nil)
	require.NoError(t, err)
	assert.Equal(t, dag.Order, filtered)
}

func TestFilterTransitiveClosure(t *testing.T) {
	p := NewProject("", nil, []*Target{
		mkTarget("base"),
		mkTarget("left", "base"),
		mkTarget("right", "base"),
		mkTarget("top", "left", "right"),
		mkTarget("unrelated"),
	})
	dag, err := Build(p)
	require.NoError(t, err)

	filtered, err := Filter(dag, []string{"left"})
	require.NoError(t, err)
	assert.Equal(t, []string{"base", "left"}, names(filtered))
}

func TestFilterUnknownTarget(t *testing.T) {
	p := NewProject("", nil, []*Target{mkTarget("a")})
	dag, err := Build(p)
	require.NoError(t, err)

	_, err = Filter(dag, []string{"ghost"})
	require.Error(t, err)
	var unknownErr *UnknownTargetError
	require.True(t, errors.As(err, &unknownErr))
}

func TestDirectAndReverseDeps(t *testing.T) {
	p := NewProject("", nil, []*Target{
		mkTarget("base"),
		mkTarget("shared", "base"),
	})
	dag, err := Build(p)
	require.NoError(t, err)

	assert.Equal(t, []string{"base"}, names(dag.DirectDeps("shared")))
	assert.Equal(t, []string{"shared"}, names(dag.ReverseDeps("base")))
}
