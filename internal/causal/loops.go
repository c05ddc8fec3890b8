package causal

import (
	"sort"

	"github.com/abakhtiari/loopscope/internal/topology"
)

// Loop is one simple directed cycle in the causal graph, in the JSON shape
// consumed by the external collaborators.
type Loop struct {
	Nodes         []string   `json:"nodes"`
	Edges         []LoopEdge `json:"edges"`
	NegativeEdges int        `json:"negative_edges"`
	Type          string     `json:"type"` // "R" reinforcing, "B" balancing
	Length        int        `json:"length"`
}

// LoopEdge is one edge of a loop in cycle order.
type LoopEdge struct {
	From         string `json:"from"`
	To           string `json:"to"`
	Relationship string `json:"relationship"`
}

// Summary aggregates a loop report.
type Summary struct {
	Reinforcing int `json:"reinforcing_loops"`
	Balancing   int `json:"balancing_loops"`
	Shortest    int `json:"shortest_loop"`
	Longest     int `json:"longest_loop"`
}

// Report is the loops artifact. Truncated is set when enumeration stopped
// at a configured bound rather than exhausting the graph.
type Report struct {
	TotalLoops int     `json:"total_loops"`
	Loops      []Loop  `json:"loops"`
	Summary    Summary `json:"summary"`
	Truncated  bool    `json:"truncated,omitempty"`
}

// Options bound loop enumeration. The number of simple cycles can be
// exponential in a densely connected model; stopping at a bound is a
// deliberate correctness/performance tradeoff, not a failure. Zero values
// mean unbounded.
type Options struct {
	// MaxLength caps the number of nodes on a reported cycle.
	MaxLength int
	// MaxLoops caps how many loops FindLoops collects.
	MaxLoops int
	// Budget caps the number of DFS edge expansions across the whole
	// enumeration.
	Budget int
}

// Enumerator walks all simple directed cycles lazily. Cycles are produced
// with their lexicographically smallest node first, starts in ascending
// name order, so two runs over the same graph yield the same sequence.
// Callers drain it with Next; abandoning it early is free.
type Enumerator struct {
	g    *Graph
	opts Options

	start  int
	stack  []frame
	path   []int
	onPath []bool

	steps     int
	exhausted bool
	truncated bool
}

type frame struct {
	node int
	next int // index of the next arc to consider
}

// NewEnumerator prepares a lazy cycle walk over g.
func NewEnumerator(g *Graph, opts Options) *Enumerator {
	e := &Enumerator{
		g:      g,
		opts:   opts,
		onPath: make([]bool, len(g.names)),
	}
	if len(g.names) == 0 {
		e.exhausted = true
	}
	return e
}

// Truncated reports whether enumeration stopped on the step budget rather
// than completing.
func (e *Enumerator) Truncated() bool { return e.truncated }

// Next returns the next cycle. ok is false once the walk is complete or the
// budget is spent.
func (e *Enumerator) Next() (loop Loop, ok bool) {
	for !e.exhausted {
		if len(e.stack) == 0 {
			if e.start >= len(e.g.names) {
				e.exhausted = true
				return Loop{}, false
			}
			// Each start node anchors the cycles whose smallest node it
			// is: the DFS below never descends to a smaller index.
			e.push(e.start)
			e.start++
			continue
		}

		top := &e.stack[len(e.stack)-1]
		arcs := e.g.out[top.node]
		if top.next >= len(arcs) {
			e.pop()
			continue
		}
		a := arcs[top.next]
		top.next++

		if e.spend() {
			return Loop{}, false
		}

		s := e.path[0]
		switch {
		case a.to == s:
			return e.emit(), true
		case a.to < s || e.onPath[a.to]:
			// Smaller-index nodes belong to earlier anchors; on-path nodes
			// would repeat.
		case e.opts.MaxLength > 0 && len(e.path) >= e.opts.MaxLength:
			// Extending would exceed the cycle-length cap.
		default:
			e.push(a.to)
		}
	}
	return Loop{}, false
}

func (e *Enumerator) push(n int) {
	e.stack = append(e.stack, frame{node: n})
	e.path = append(e.path, n)
	e.onPath[n] = true
}

func (e *Enumerator) pop() {
	n := e.stack[len(e.stack)-1].node
	e.stack = e.stack[:len(e.stack)-1]
	e.path = e.path[:len(e.path)-1]
	e.onPath[n] = false
}

func (e *Enumerator) spend() (out bool) {
	if e.opts.Budget <= 0 {
		return false
	}
	e.steps++
	if e.steps > e.opts.Budget {
		e.exhausted = true
		e.truncated = true
		return true
	}
	return false
}

func (e *Enumerator) emit() Loop {
	n := len(e.path)
	loop := Loop{
		Nodes:  make([]string, n),
		Edges:  make([]LoopEdge, 0, n),
		Length: n,
	}
	for i, idx := range e.path {
		loop.Nodes[i] = e.g.names[idx]
	}
	for i := 0; i < n; i++ {
		u := e.path[i]
		v := e.path[(i+1)%n]
		p, _ := e.g.polarityBetween(u, v)
		loop.Edges = append(loop.Edges, LoopEdge{
			From:         e.g.names[u],
			To:           e.g.names[v],
			Relationship: string(p),
		})
		if p == topology.Negative {
			loop.NegativeEdges++
		}
	}
	if loop.NegativeEdges%2 == 0 {
		loop.Type = "R"
	} else {
		loop.Type = "B"
	}
	return loop
}

// FindLoops drains an enumerator into a sorted report: length ascending,
// then the lexicographic order of the node sequence.
func FindLoops(g *Graph, opts Options) Report {
	e := NewEnumerator(g, opts)
	var loops []Loop
	for {
		loop, ok := e.Next()
		if !ok {
			break
		}
		loops = append(loops, loop)
		if opts.MaxLoops > 0 && len(loops) >= opts.MaxLoops {
			// Probe once more so the report can say whether the cap cut
			// anything off.
			if _, more := e.Next(); more {
				e.truncated = true
			}
			break
		}
	}

	sort.Slice(loops, func(i, j int) bool {
		if loops[i].Length != loops[j].Length {
			return loops[i].Length < loops[j].Length
		}
		a, b := loops[i].Nodes, loops[j].Nodes
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})

	r := Report{TotalLoops: len(loops), Loops: loops, Truncated: e.Truncated()}
	for _, l := range loops {
		if l.Type == "R" {
			r.Summary.Reinforcing++
		} else {
			r.Summary.Balancing++
		}
		if r.Summary.Shortest == 0 || l.Length < r.Summary.Shortest {
			r.Summary.Shortest = l.Length
		}
		if l.Length > r.Summary.Longest {
			r.Summary.Longest = l.Length
		}
	}
	return r
}
