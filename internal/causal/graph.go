// Package causal builds the signed directed graph over named variables and
// enumerates its feedback loops with polarity classification.
package causal

import (
	"sort"

	"github.com/abakhtiari/loopscope/internal/topology"
)

// Edge is one signed causal edge. Parallel edges between the same ordered
// pair are kept distinct; Seq preserves source order and breaks ties
// deterministically.
type Edge struct {
	From     string
	To       string
	Polarity topology.Polarity
	Seq      int
}

// Graph is a signed digraph keyed by variable name. Node order is
// lexicographic so every traversal is deterministic.
type Graph struct {
	names []string
	index map[string]int
	out   [][]arc
}

type arc struct {
	to       int
	polarity topology.Polarity
	seq      int
}

// Build constructs the graph from resolved causal connections.
func Build(conns []topology.Connection) *Graph {
	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, c := range conns {
		add(c.From)
		add(c.To)
	}
	sort.Strings(names)

	g := &Graph{
		names: names,
		index: make(map[string]int, len(names)),
		out:   make([][]arc, len(names)),
	}
	for i, n := range names {
		g.index[n] = i
	}
	for _, c := range conns {
		u, v := g.index[c.From], g.index[c.To]
		g.out[u] = append(g.out[u], arc{to: v, polarity: c.Polarity, seq: c.Seq})
	}
	for _, arcs := range g.out {
		sort.Slice(arcs, func(i, j int) bool {
			if arcs[i].to != arcs[j].to {
				return arcs[i].to < arcs[j].to
			}
			return arcs[i].seq < arcs[j].seq
		})
	}
	return g
}

// Nodes returns the variable names in graph order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.names))
	copy(out, g.names)
	return out
}

// EdgeCount returns the number of edges, counting parallels separately.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, arcs := range g.out {
		n += len(arcs)
	}
	return n
}

// polarityBetween returns the polarity of the edge u→v. With parallel edges
// the one that appeared first in the source wins; arcs are sorted by
// (to, seq) so the first match is that edge.
func (g *Graph) polarityBetween(u, v int) (topology.Polarity, bool) {
	for _, a := range g.out[u] {
		if a.to == v {
			return a.polarity, true
		}
		if a.to > v {
			break
		}
	}
	return "", false
}

// ConnectionJSON is the boundary contract for one causal connection, as
// consumed by the external description/validation collaborators.
type ConnectionJSON struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Relationship string `json:"relationship"`
}

// ConnectionsDoc is the top-level connections artifact.
type ConnectionsDoc struct {
	Connections []ConnectionJSON `json:"connections"`
}

// ExportConnections converts resolved connections to the JSON boundary
// shape, preserving source order.
func ExportConnections(conns []topology.Connection) ConnectionsDoc {
	doc := ConnectionsDoc{Connections: make([]ConnectionJSON, 0, len(conns))}
	for _, c := range conns {
		doc.Connections = append(doc.Connections, ConnectionJSON{
			From:         c.From,
			To:           c.To,
			Relationship: string(c.Polarity),
		})
	}
	return doc
}
