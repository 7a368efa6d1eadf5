package plan

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/kyanite-build/kyanite/internal/graph"
	"github.com/stretchr/testify/require"
)

func buildDAG(t *testing.T, targets []*graph.Target) *graph.DAG {
	t.Helper()
	p := graph.NewProject("", nil, targets)
	dag, err := graph.Build(p)
	require.NoError(t, err)
	return dag
}

func TestObjectAndArtifactPaths(t *testing.T) {
	lib := &graph.Target{Name: "mylib", Kind: graph.StaticLibrary, OutputDir: "/out"}
	assert := require.New(t)
	assert.Equal("/out/libmylib.a", ArtifactPath(lib))

	shared := &graph.Target{Name: "mylib", Kind: graph.SharedLibrary, OutputDir: "/out"}
	assert.Equal("/out/libmylib.so", ArtifactPath(shared))

	exe := &graph.Target{Name: "app", Kind: graph.Executable, OutputDir: "/out"}
	assert.Equal("/out/app", ArtifactPath(exe))

	assert.Equal("/out/obj/app/main.o", ObjectPath(exe, "/src/main.cpp"))
}

func TestInferPIC(t *testing.T) {
	base := &graph.Target{Name: "base", Kind: graph.StaticLibrary}
	shared := &graph.Target{Name: "shared", Kind: graph.SharedLibrary, Deps: []string{"base"}}
	dag := buildDAG(t, []*graph.Target{base, shared})

	pic := InferPIC(dag)
	require.True(t, pic["base"])
	require.False(t, pic["shared"])
}

func TestCompileFlagsOneHopPropagation(t *testing.T) {
	std := 17
	grandparent := &graph.Target{Name: "gp", Kind: graph.StaticLibrary, IncludeDirs: []string{"/gp/include"}}
	parent := &graph.Target{
		Name: "p", Kind: graph.StaticLibrary, Deps: []string{"gp"},
		IncludeDirs: []string{"/p/include"},
	}
	leaf := &graph.Target{
		Name: "leaf", Kind: graph.Executable, Deps: []string{"p"},
		IncludeDirs: []string{"/leaf/include"}, CxxStandard: &std,
		CompileFlags: []string{"-Wall"},
	}
	dag := buildDAG(t, []*graph.Target{grandparent, parent, leaf})

	flags := compileFlags(leaf, dag, false)

	require.Contains(t, flags, "-std=c++17")
	require.Contains(t, flags, "-I/leaf/include")
	require.Contains(t, flags, "-I/p/include")
	require.NotContains(t, flags, "-I/gp/include", "propagation is one hop only")
	require.Contains(t, flags, "-Wall")
}

func TestLinkArgumentOrder(t *testing.T) {
	base := &graph.Target{Name: "base", Kind: graph.StaticLibrary, OutputDir: "/out"}
	app := &graph.Target{
		Name: "app", Kind: graph.Executable, OutputDir: "/out",
		Sources: []string{"/src/main.c"}, Deps: []string{"base"},
		LibDirs: []string{"/usr/local/lib"}, Links: []string{"m"},
		LinkFlags: []string{"-Wl,--gc-sections"},
	}
	dag := buildDAG(t, []*graph.Target{base, app})

	job := Link(app, dag)

	wantTail := []string{
		"/out/obj/app/main.o",
		"/out/libbase.a",
		"-L/usr/local/lib",
		"-lm",
		"-Wl,--gc-sections",
	}
	got := job.Args[3:] // skip [compiler, "-o", out]
	if diff := cmp.Diff(wantTail, got); diff != "" {
		t.Errorf("link argument order mismatch (-want +got):\n%s", diff)
	}
	require.False(t, job.Archiver)
}

func TestLinkSharedLibraryDependency(t *testing.T) {
	shared := &graph.Target{Name: "shared", Kind: graph.SharedLibrary, OutputDir: "/out"}
	app := &graph.Target{
		Name: "app", Kind: graph.Executable, OutputDir: "/out",
		Sources: []string{"/src/main.c"}, Deps: []string{"shared"},
	}
	dag := buildDAG(t, []*graph.Target{shared, app})

	job := Link(app, dag)
	require.Contains(t, job.Args, "-L/out")
	require.Contains(t, job.Args, "-lshared")
}

func TestStaticLibraryArchiveIgnoresLinkFlagsAndExternalLibs(t *testing.T) {
	lib := &graph.Target{
		Name: "mylib", Kind: graph.StaticLibrary, OutputDir: "/out",
		Sources: []string{"/src/a.c", "/src/b.c"},
		Links:   []string{"m"}, LinkFlags: []string{"-s"},
	}
	dag := buildDAG(t, []*graph.Target{lib})

	job := Link(lib, dag)
	require.True(t, job.Archiver)
	require.Equal(t, []string{"rcs", "/out/libmylib.a", "/out/obj/mylib/a.o", "/out/obj/mylib/b.o"}, job.Args)
}

func TestSharedLibraryGetsFPICEvenWithoutReverseEdge(t *testing.T) {
	shared := &graph.Target{
		Name: "shared", Kind: graph.SharedLibrary, OutputDir: "/out",
		Sources: []string{"/src/a.c"},
	}
	dag := buildDAG(t, []*graph.Target{shared})

	job := Compile(shared, dag, "/src/a.c", false)
	require.Contains(t, job.Args, "-fPIC")
}
