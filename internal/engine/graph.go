package engine

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/kilnhq/kiln/internal/ir"
)

// Graph is the validated dependency DAG of a declaration set.
type Graph struct {
	nodes map[string]*node
	order []string // creation order, deterministic
}

type node struct {
	id         string
	index      int // declaration order, used as the topological tie-break
	deps       []string
	dependents []string
}

// BuildGraph validates a declaration set into a DAG. Edges come from
// explicit depends_on entries and from ref:// attribute references.
// Building is a pure transformation: no adapter is touched.
func BuildGraph(resources []*ir.Resource) (*Graph, error) {
	g := &Graph{nodes: make(map[string]*node)}

	for i, res := range resources {
		if _, exists := g.nodes[res.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate resource id %q", ir.ErrValidation, res.ID)
		}
		g.nodes[res.ID] = &node{id: res.ID, index: i}
	}

	for _, res := range resources {
		n := g.nodes[res.ID]
		seen := make(map[string]bool)

		for _, dep := range res.DependsOn {
			if _, ok := g.nodes[dep]; !ok {
				return nil, &ir.DanglingReferenceError{ResourceID: res.ID, Target: dep}
			}
			if dep == res.ID {
				return nil, &ir.CycleError{Involved: []string{res.ID}}
			}
			if !seen[dep] {
				seen[dep] = true
				n.deps = append(n.deps, dep)
			}
		}

		for _, ref := range ExtractRefs(res.Attributes) {
			target := RefTarget(ref)
			if target == "" {
				return nil, fmt.Errorf("%w: resource %q has malformed reference %q", ir.ErrValidation, res.ID, ref)
			}
			if _, ok := g.nodes[target]; !ok {
				return nil, &ir.DanglingReferenceError{ResourceID: res.ID, Target: target}
			}
			if target == res.ID {
				return nil, &ir.CycleError{Involved: []string{res.ID}}
			}
			if !seen[target] {
				seen[target] = true
				n.deps = append(n.deps, target)
			}
		}
	}

	for id, n := range g.nodes {
		for _, dep := range n.deps {
			g.nodes[dep].dependents = append(g.nodes[dep].dependents, id)
		}
	}

	order, err := g.topoSort()
	if err != nil {
		return nil, err
	}
	g.order = order

	return g, nil
}

// Order returns resource ids in creation order: every resource appears
// after all of its dependencies, ties broken by declaration order.
func (g *Graph) Order() []string {
	return g.order
}

// Dependencies returns the direct dependencies of a resource.
func (g *Graph) Dependencies(id string) []string {
	if n, ok := g.nodes[id]; ok {
		return n.deps
	}
	return nil
}

// TransitiveDependents returns every resource that directly or indirectly
// depends on id. Used to skip an entire subtree after a permanent failure.
func (g *Graph) TransitiveDependents(id string) []string {
	visited := make(map[string]bool)
	var out []string

	var walk func(string)
	walk = func(cur string) {
		n, ok := g.nodes[cur]
		if !ok {
			return
		}
		for _, dep := range n.dependents {
			if !visited[dep] {
				visited[dep] = true
				out = append(out, dep)
				walk(dep)
			}
		}
	}
	walk(id)

	sort.Strings(out)
	return out
}

// topoSort runs Kahn's algorithm. The ready set is drained in declaration
// order so repeated runs of the same file produce the same plan.
func (g *Graph) topoSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.nodes))
	for id, n := range g.nodes {
		inDegree[id] = len(n.deps)
	}

	var ready []*node
	for id, deg := range inDegree {
		if deg == 0 {
			ready = append(ready, g.nodes[id])
		}
	}

	sorted := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		// Pick the ready node declared earliest.
		best := 0
		for i := 1; i < len(ready); i++ {
			if ready[i].index < ready[best].index {
				best = i
			}
		}
		n := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		sorted = append(sorted, n.id)

		for _, dep := range n.dependents {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, g.nodes[dep])
			}
		}
	}

	if len(sorted) != len(g.nodes) {
		var involved []string
		for id, deg := range inDegree {
			if deg > 0 {
				involved = append(involved, id)
			}
		}
		sort.Strings(involved)
		return nil, &ir.CycleError{Involved: involved}
	}

	return sorted, nil
}

// Dot writes a Graphviz representation of the graph.
func (g *Graph) Dot(w io.Writer, name string) {
	fmt.Fprintf(w, "digraph %q {\n", name)
	fmt.Fprintf(w, "  rankdir=\"LR\";\n")
	fmt.Fprintf(w, "  node [shape=box, style=rounded];\n")

	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		n := g.nodes[id]
		if len(n.deps) == 0 {
			fmt.Fprintf(w, "  %q;\n", id)
			continue
		}
		for _, dep := range n.deps {
			fmt.Fprintf(w, "  %q -> %q;\n", dep, id)
		}
	}
	fmt.Fprintf(w, "}\n")
}

const refScheme = "ref://"

// ExtractRefs collects every ref:// reference in an attribute value.
func ExtractRefs(v any) []string {
	var refs []string
	switch val := v.(type) {
	case string:
		if strings.HasPrefix(val, refScheme) {
			refs = append(refs, val)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			refs = append(refs, ExtractRefs(val[k])...)
		}
	case []any:
		for _, item := range val {
			refs = append(refs, ExtractRefs(item)...)
		}
	}
	return refs
}

// RefTarget returns the resource id a ref://<id>[/<attribute>] reference
// points at, or "" if the reference is malformed.
func RefTarget(ref string) string {
	if !strings.HasPrefix(ref, refScheme) {
		return ""
	}
	rest := ref[len(refScheme):]
	if rest == "" {
		return ""
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}
