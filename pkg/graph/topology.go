package graph

import "slices"

// Edge is a transition in a graph's topology. Label is empty for unconditional edges.
type Edge struct {
	From  string
	To    string
	Label string
}

// Topology is a read-only description of a compiled graph, used for visualization.
type Topology struct {
	Name  string
	Entry string
	Nodes []string
	Edges []Edge
}

// Topology describes the compiled graph. Nodes keep declaration order and
// router edges are sorted by label.
func (g *Compiled[S]) Topology() Topology {
	t := Topology{
		Name:  g.name,
		Entry: g.entry,
		Nodes: append([]string(nil), g.order...),
	}
	for _, from := range g.order {
		if to, ok := g.edges[from]; ok {
			t.Edges = append(t.Edges, Edge{From: from, To: to})
			continue
		}
		rt := g.routes[from]
		labels := append([]string(nil), rt.router.Labels...)
		slices.Sort(labels)
		for _, label := range labels {
			t.Edges = append(t.Edges, Edge{From: from, To: rt.targets[label], Label: label})
		}
	}
	return t
}
