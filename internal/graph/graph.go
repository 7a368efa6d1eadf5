// Package graph builds and validates the target dependency DAG: component
// C2 (Graph Builder) and C3 (Target Filter) of the build engine.
package graph

import "sort"

// Kind identifies the artifact shape a Target produces.
type Kind int

const (
	Executable Kind = iota
	StaticLibrary
	SharedLibrary
)

func (k Kind) String() string {
	switch k {
	case Executable:
		return "executable"
	case StaticLibrary:
		return "static_library"
	case SharedLibrary:
		return "shared_library"
	default:
		return "unknown"
	}
}

// CompilerSelector names which compiler family a target is built with.
type CompilerSelector int

const (
	CCompiler CompilerSelector = iota
	CxxCompiler
	Clang
)

// Target is a single named build unit, immutable once constructed.
type Target struct {
	Name          string
	Kind          Kind
	Sources       []string // absolute paths, post-glob
	IncludeDirs   []string // absolute paths
	LibDirs       []string // absolute paths
	Links         []string // external library names
	CompileFlags  []string
	LinkFlags     []string
	LegacyFlags   []string // compile-only, backward-compat
	CxxStandard   *int     // nil if unset
	Compiler      CompilerSelector
	OutputDir     string // absolute
	Deps          []string
	Defines       map[string]string

	// declIndex is the position this target was declared in, across the
	// whole unified project, used as the Kahn tie-break (spec: declaration
	// order among siblings must be preserved).
	declIndex int
}

// DeclIndex reports the position at which this target was first declared.
func (t *Target) DeclIndex() int { return t.declIndex }

// Project is the merged, flat set of targets produced by the config loader.
type Project struct {
	Name        string
	CxxStandard *int // project-wide; overrides every target's standard if set
	Targets     []*Target
	byName      map[string]*Target
}

// NewProject constructs a Project from a flat, already-deduplicated target
// list, assigning declaration indices and applying project-wide overrides.
func NewProject(name string, cxxStandard *int, targets []*Target) *Project {
	p := &Project{Name: name, CxxStandard: cxxStandard, byName: make(map[string]*Target, len(targets))}
	for i, t := range targets {
		t.declIndex = i
		if cxxStandard != nil {
			t.CxxStandard = cxxStandard
		}
		p.Targets = append(p.Targets, t)
		p.byName[t.Name] = t
	}
	return p
}

// ByName looks up a target, reporting whether it exists.
func (p *Project) ByName(name string) (*Target, bool) {
	t, ok := p.byName[name]
	return t, ok
}

// DAG is the validated, topologically ordered dependency graph.
type DAG struct {
	Order   []*Target // topological order, stable tie-break by declaration order
	project *Project
}

// Target resolves a name against the DAG's underlying project.
func (d *DAG) Target(name string) (*Target, bool) { return d.project.ByName(name) }

// Subgraph returns a DAG restricted to order (expected to be a
// topologically-sorted subset produced by Filter), sharing the same
// underlying project so dependency lookups still resolve.
func (d *DAG) Subgraph(order []*Target) *DAG {
	return &DAG{Order: order, project: d.project}
}

// Build validates every dependency reference, detects cycles, and computes
// a topological order via Kahn's algorithm with a declaration-order
// tie-break, per spec C2.
func Build(p *Project) (*DAG, error) {
	inDegree := make(map[string]int, len(p.Targets))
	dependents := make(map[string][]string, len(p.Targets)) // dep -> targets that depend on it

	for _, t := range p.Targets {
		if _, ok := inDegree[t.Name]; !ok {
			inDegree[t.Name] = 0
		}
		for _, dep := range t.Deps {
			if dep == t.Name {
				return nil, &CycleError{Nodes: []string{t.Name}}
			}
			if _, ok := p.ByName(dep); !ok {
				return nil, &UnknownDependencyError{Target: t.Name, Dep: dep}
			}
			inDegree[t.Name]++
			dependents[dep] = append(dependents[dep], t.Name)
		}
	}

	// queue is a FIFO of targets with in-degree 0, seeded in declaration
	// order. Nodes that become ready later are appended to the back in
	// declaration order among themselves, per Kahn's algorithm with a
	// stable tie-break.
	var queue []*Target
	for _, t := range p.Targets {
		if inDegree[t.Name] == 0 {
			queue = append(queue, t)
		}
	}
	sortByDecl(queue)

	var order []*Target
	for len(queue) > 0 {
		u := queue[0]
		queue = queue[1:]
		order = append(order, u)

		var newlyReady []*Target
		for _, vName := range dependents[u.Name] {
			inDegree[vName]--
			if inDegree[vName] == 0 {
				v, _ := p.ByName(vName)
				newlyReady = append(newlyReady, v)
			}
		}
		sortByDecl(newlyReady)
		queue = append(queue, newlyReady...)
	}

	if len(order) != len(p.Targets) {
		var stuck []string
		for _, t := range p.Targets {
			if inDegree[t.Name] > 0 {
				stuck = append(stuck, t.Name)
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{Nodes: stuck}
	}

	return &DAG{Order: order, project: p}, nil
}

func sortByDecl(ts []*Target) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].declIndex < ts[j].declIndex })
}

// DirectDeps returns, for a given target name, every direct dependency in
// declaration order, whatever its kind (used by the -fPIC inference pass,
// include propagation and link-job synthesis).
func (d *DAG) DirectDeps(name string) []*Target {
	t, ok := d.Target(name)
	if !ok {
		return nil
	}
	out := make([]*Target, 0, len(t.Deps))
	for _, depName := range t.Deps {
		if dep, ok := d.Target(depName); ok {
			out = append(out, dep)
		}
	}
	return out
}

// ReverseDeps returns every target in the DAG that directly depends on name.
func (d *DAG) ReverseDeps(name string) []*Target {
	var out []*Target
	for _, t := range d.Order {
		for _, dep := range t.Deps {
			if dep == name {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
