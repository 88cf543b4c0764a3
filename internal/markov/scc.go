package markov

import "sort"

// stronglyConnected returns the strongly connected components of the directed
// graph, Tarjan's algorithm. Roots are visited in sorted order so the
// component list is deterministic for a given graph.
func stronglyConnected(graph map[string][]string) [][]string {
	t := &tarjan{
		graph:   graph,
		index:   make(map[string]int, len(graph)),
		lowlink: make(map[string]int, len(graph)),
		onStack: make(map[string]bool, len(graph)),
	}
	roots := make([]string, 0, len(graph))
	for n := range graph {
		roots = append(roots, n)
	}
	sort.Strings(roots)
	for _, n := range roots {
		if _, seen := t.index[n]; !seen {
			t.visit(n)
		}
	}
	return t.comps
}

type tarjan struct {
	graph   map[string][]string
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	next    int
	comps   [][]string
}

func (t *tarjan) visit(v string) {
	t.index[v] = t.next
	t.lowlink[v] = t.next
	t.next++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.graph[v] {
		if _, seen := t.index[w]; !seen {
			t.visit(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] != t.index[v] {
		return
	}
	var comp []string
	for {
		w := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.onStack[w] = false
		comp = append(comp, w)
		if w == v {
			break
		}
	}
	t.comps = append(t.comps, comp)
}
